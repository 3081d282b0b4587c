package testutil

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-assets/internal/assets"
	"github.com/odyssey-erp/odyssey-assets/internal/valuation"
)

// AssetRepo adapts Store to assets.RepositoryPort.
type AssetRepo struct{ s *Store }

// AssetReads returns the asset read model view of the store.
func (s *Store) AssetReads() AssetRepo { return AssetRepo{s: s} }

// ValuationRepo adapts Store to valuation.RepositoryPort.
type ValuationRepo struct{ s *Store }

// Valuation returns the valuation repository view of the store.
func (s *Store) Valuation() ValuationRepo { return ValuationRepo{s: s} }

// WithTx implements valuation.RepositoryPort.
func (r ValuationRepo) WithTx(ctx context.Context, fn func(context.Context, valuation.TxRepository) error) error {
	return r.s.run(ctx, func(ctx context.Context, tx *memTx) error { return fn(ctx, tx) })
}

// SeedAsset stores an asset directly.
func (s *Store) SeedAsset(a assets.Asset) assets.Asset {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	s.mu.Lock()
	s.assets[a.ID] = a
	s.mu.Unlock()
	return a
}

// Asset returns the committed state of an asset.
func (s *Store) Asset(id uuid.UUID) (assets.Asset, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assets[id]
	return a, ok
}

// AssetCount returns how many assets exist in total.
func (s *Store) AssetCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.assets)
}

// StatusID returns the id of a named tenant status created on demand.
func (s *Store) StatusID(tenantID uuid.UUID, name string) (uuid.UUID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.statuses[statusKey{tenantID, name}]
	return id, ok
}

// Records returns the valuation records of an asset in insertion order.
func (s *Store) Records(assetID uuid.UUID) []valuation.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []valuation.Record
	for _, rec := range s.records {
		if rec.AssetID == assetID {
			out = append(out, rec)
		}
	}
	return out
}

func (tx *memTx) InsertAsset(_ context.Context, a assets.Asset) error {
	return tx.write("InsertAsset", func(s *Store) (func(), error) {
		for _, existing := range s.assets {
			if existing.TenantID == a.TenantID && existing.InternalCode == a.InternalCode {
				return nil, assets.ErrDuplicateAsset
			}
			if a.PurchaseOrderID != nil && existing.PurchaseOrderID != nil && *existing.PurchaseOrderID == *a.PurchaseOrderID {
				return nil, assets.ErrDuplicateAsset
			}
		}
		s.assets[a.ID] = a
		return func() { delete(s.assets, a.ID) }, nil
	})
}

func (tx *memTx) CodeInUse(_ context.Context, tenantID uuid.UUID, code string) (bool, error) {
	found := false
	tx.read(func(s *Store) {
		for _, a := range s.assets {
			if a.TenantID == tenantID && a.InternalCode == code {
				found = true
				return
			}
		}
	})
	return found, nil
}

func (tx *memTx) AssetExistsForOrder(_ context.Context, orderID uuid.UUID) (bool, error) {
	found := false
	tx.read(func(s *Store) {
		for _, a := range s.assets {
			if a.PurchaseOrderID != nil && *a.PurchaseOrderID == orderID {
				found = true
				return
			}
		}
	})
	return found, nil
}

func (tx *memTx) LockAsset(ctx context.Context, tenantID, assetID uuid.UUID) (assets.Asset, error) {
	if err := tx.lock(ctx, assetID); err != nil {
		return assets.Asset{}, err
	}
	var a assets.Asset
	var ok bool
	tx.read(func(s *Store) { a, ok = s.assets[assetID] })
	if !ok || a.TenantID != tenantID {
		return assets.Asset{}, assets.ErrAssetNotFound
	}
	return a, nil
}

func (tx *memTx) UpdateAssetValue(_ context.Context, assetID uuid.UUID, value decimal.Decimal) error {
	return tx.write("UpdateAssetValue", func(s *Store) (func(), error) {
		prev := s.assets[assetID]
		next := prev
		next.CurrentValue = value
		s.assets[assetID] = next
		return func() { s.assets[assetID] = prev }, nil
	})
}

func (tx *memTx) UpdateAssetStatus(_ context.Context, assetID, statusID uuid.UUID) error {
	return tx.write("UpdateAssetStatus", func(s *Store) (func(), error) {
		prev := s.assets[assetID]
		next := prev
		next.StatusID = statusID
		s.assets[assetID] = next
		return func() { s.assets[assetID] = prev }, nil
	})
}

func (tx *memTx) EnsureStatus(_ context.Context, tenantID uuid.UUID, name, _ string) (uuid.UUID, error) {
	var id uuid.UUID
	err := tx.write("EnsureStatus", func(s *Store) (func(), error) {
		key := statusKey{tenantID, name}
		if existing, ok := s.statuses[key]; ok {
			id = existing
			return nil, nil
		}
		id = uuid.New()
		s.statuses[key] = id
		return func() { delete(s.statuses, key) }, nil
	})
	return id, err
}

func (tx *memTx) AssetDisposed(_ context.Context, assetID uuid.UUID) (bool, error) {
	disposed := false
	tx.read(func(s *Store) {
		for _, rec := range s.records {
			if rec.AssetID == assetID && rec.Operation == valuation.OperationDispose {
				disposed = true
				return
			}
		}
	})
	return disposed, nil
}

func (tx *memTx) InsertRecord(_ context.Context, rec valuation.Record) (valuation.Record, error) {
	err := tx.write("InsertRecord", func(s *Store) (func(), error) {
		rec.ID, rec.RecordedAt = s.nextSeq()
		s.records = append(s.records, rec)
		id := rec.ID
		return func() {
			for i := range s.records {
				if s.records[i].ID == id {
					s.records = append(s.records[:i], s.records[i+1:]...)
					return
				}
			}
		}, nil
	})
	return rec, err
}

// Get implements assets.RepositoryPort.
func (r AssetRepo) Get(_ context.Context, tenantID, assetID uuid.UUID) (assets.Asset, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.assets[assetID]
	if !ok || a.TenantID != tenantID {
		return assets.Asset{}, assets.ErrAssetNotFound
	}
	return a, nil
}

// List implements assets.RepositoryPort.
func (r AssetRepo) List(_ context.Context, tenantID uuid.UUID, filter assets.ListFilter) ([]assets.Asset, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	match := func(want *uuid.UUID, got uuid.UUID) bool { return want == nil || *want == got }
	var out []assets.Asset
	for _, a := range r.s.assets {
		if a.TenantID != tenantID {
			continue
		}
		if !match(filter.StatusID, a.StatusID) || !match(filter.CategoryID, a.CategoryID) ||
			!match(filter.DepartmentID, a.DepartmentID) || !match(filter.LocationID, a.LocationID) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InternalCode < out[j].InternalCode })
	return out, nil
}

// AssetExists implements valuation.RepositoryPort.
func (r ValuationRepo) AssetExists(_ context.Context, tenantID, assetID uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.assets[assetID]
	return ok && a.TenantID == tenantID, nil
}

// ListRecords implements valuation.RepositoryPort.
func (r ValuationRepo) ListRecords(_ context.Context, tenantID, assetID uuid.UUID) ([]valuation.Record, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []valuation.Record
	for i := len(r.s.records) - 1; i >= 0; i-- {
		rec := r.s.records[i]
		if rec.AssetID == assetID && rec.TenantID == tenantID {
			out = append(out, rec)
		}
	}
	return out, nil
}
