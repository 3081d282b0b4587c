package testutil

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-assets/internal/procurement"
)

// ProcurementRepo adapts Store to procurement.RepositoryPort.
type ProcurementRepo struct{ s *Store }

// Procurement returns the procurement repository view of the store.
func (s *Store) Procurement() ProcurementRepo { return ProcurementRepo{s: s} }

// WithTx implements procurement.RepositoryPort.
func (r ProcurementRepo) WithTx(ctx context.Context, fn func(context.Context, procurement.TxRepository) error) error {
	return r.s.run(ctx, func(ctx context.Context, tx *memTx) error { return fn(ctx, tx) })
}

// SeedRequest stores a request directly.
func (s *Store) SeedRequest(pr procurement.PurchaseRequest) procurement.PurchaseRequest {
	if pr.ID == uuid.Nil {
		pr.ID = uuid.New()
	}
	s.mu.Lock()
	s.requests[pr.ID] = pr
	s.mu.Unlock()
	return pr
}

// SeedOrder stores an order directly.
func (s *Store) SeedOrder(po procurement.PurchaseOrder) procurement.PurchaseOrder {
	if po.ID == uuid.Nil {
		po.ID = uuid.New()
	}
	s.mu.Lock()
	s.orders[po.ID] = po
	s.mu.Unlock()
	return po
}

// Order returns the committed state of an order.
func (s *Store) Order(id uuid.UUID) procurement.PurchaseOrder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orders[id]
}

func (tx *memTx) InsertRequest(_ context.Context, pr procurement.PurchaseRequest) error {
	return tx.write("InsertRequest", func(s *Store) (func(), error) {
		s.requests[pr.ID] = pr
		return func() { delete(s.requests, pr.ID) }, nil
	})
}

func (tx *memTx) LockRequest(ctx context.Context, tenantID, id uuid.UUID) (procurement.PurchaseRequest, error) {
	if err := tx.lock(ctx, id); err != nil {
		return procurement.PurchaseRequest{}, err
	}
	return tx.GetRequestTx(ctx, tenantID, id)
}

func (tx *memTx) GetRequestTx(_ context.Context, tenantID, id uuid.UUID) (procurement.PurchaseRequest, error) {
	var pr procurement.PurchaseRequest
	var ok bool
	tx.read(func(s *Store) { pr, ok = s.requests[id] })
	if !ok || pr.TenantID != tenantID {
		return procurement.PurchaseRequest{}, procurement.ErrRequestNotFound
	}
	return pr, nil
}

func (tx *memTx) SaveDecision(_ context.Context, pr procurement.PurchaseRequest) error {
	return tx.write("SaveDecision", func(s *Store) (func(), error) {
		prev := s.requests[pr.ID]
		s.requests[pr.ID] = pr
		return func() { s.requests[pr.ID] = prev }, nil
	})
}

func (tx *memTx) RequestHasOrder(_ context.Context, requestID uuid.UUID) (bool, error) {
	found := false
	tx.read(func(s *Store) {
		for _, po := range s.orders {
			if po.RequestID == requestID {
				found = true
				return
			}
		}
	})
	return found, nil
}

func (tx *memTx) InsertOrder(_ context.Context, po procurement.PurchaseOrder) error {
	return tx.write("InsertOrder", func(s *Store) (func(), error) {
		for _, existing := range s.orders {
			if existing.RequestID == po.RequestID {
				return nil, procurement.ErrRequestHasOrder
			}
		}
		s.orders[po.ID] = po
		return func() { delete(s.orders, po.ID) }, nil
	})
}

func (tx *memTx) LockOrder(ctx context.Context, tenantID, id uuid.UUID) (procurement.PurchaseOrder, error) {
	if err := tx.lock(ctx, id); err != nil {
		return procurement.PurchaseOrder{}, err
	}
	var po procurement.PurchaseOrder
	var ok bool
	tx.read(func(s *Store) { po, ok = s.orders[id] })
	if !ok || po.TenantID != tenantID {
		return procurement.PurchaseOrder{}, procurement.ErrOrderNotFound
	}
	return po, nil
}

func (tx *memTx) UpdateOrderStatus(_ context.Context, id uuid.UUID, status procurement.OrderStatus) error {
	return tx.write("UpdateOrderStatus", func(s *Store) (func(), error) {
		prev := s.orders[id]
		next := prev
		next.Status = status
		s.orders[id] = next
		return func() { s.orders[id] = prev }, nil
	})
}

// GetRequest implements procurement.RepositoryPort.
func (r ProcurementRepo) GetRequest(_ context.Context, tenantID, id uuid.UUID) (procurement.PurchaseRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	pr, ok := r.s.requests[id]
	if !ok || pr.TenantID != tenantID {
		return procurement.PurchaseRequest{}, procurement.ErrRequestNotFound
	}
	return pr, nil
}

// ListRequests implements procurement.RepositoryPort.
func (r ProcurementRepo) ListRequests(_ context.Context, tenantID uuid.UUID, filter procurement.RequestFilter) ([]procurement.PurchaseRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []procurement.PurchaseRequest
	for _, pr := range r.s.requests {
		if pr.TenantID != tenantID {
			continue
		}
		if filter.Status != "" && pr.Status != filter.Status {
			continue
		}
		if filter.DepartmentID != nil && pr.DepartmentID != *filter.DepartmentID {
			continue
		}
		out = append(out, pr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// GetOrder implements procurement.RepositoryPort.
func (r ProcurementRepo) GetOrder(_ context.Context, tenantID, id uuid.UUID) (procurement.PurchaseOrder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	po, ok := r.s.orders[id]
	if !ok || po.TenantID != tenantID {
		return procurement.PurchaseOrder{}, procurement.ErrOrderNotFound
	}
	return po, nil
}

// ListOrders implements procurement.RepositoryPort.
func (r ProcurementRepo) ListOrders(_ context.Context, tenantID uuid.UUID, filter procurement.OrderFilter) ([]procurement.PurchaseOrder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []procurement.PurchaseOrder
	for _, po := range r.s.orders {
		if po.TenantID != tenantID {
			continue
		}
		if filter.Status != "" && po.Status != filter.Status {
			continue
		}
		if filter.SupplierID != nil && po.SupplierID != *filter.SupplierID {
			continue
		}
		out = append(out, po)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
