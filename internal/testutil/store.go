// Package testutil provides an in-memory store that mimics the PostgreSQL
// repositories closely enough for service tests: row locks are held until the
// transaction ends and every write is undone when the callback fails.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-assets/internal/assets"
	"github.com/odyssey-erp/odyssey-assets/internal/budget"
	"github.com/odyssey-erp/odyssey-assets/internal/masterdata"
	"github.com/odyssey-erp/odyssey-assets/internal/procurement"
	"github.com/odyssey-erp/odyssey-assets/internal/valuation"
)

var (
	_ masterdata.Lookup          = (*Store)(nil)
	_ budget.RepositoryPort      = BudgetRepo{}
	_ procurement.RepositoryPort = ProcurementRepo{}
	_ valuation.RepositoryPort   = ValuationRepo{}
	_ assets.RepositoryPort      = AssetRepo{}
	_ procurement.TxRepository   = (*memTx)(nil)
	_ valuation.TxRepository     = (*memTx)(nil)
)

type refKey struct {
	tenant uuid.UUID
	kind   masterdata.Kind
	id     uuid.UUID
}

type statusKey struct {
	tenant uuid.UUID
	name   string
}

// Store holds every table used by the core services.
type Store struct {
	mu sync.Mutex

	refs      map[refKey]bool
	periods   map[uuid.UUID]budget.Period
	lines     map[uuid.UUID]budget.Line
	movements []budget.Movement
	requests  map[uuid.UUID]procurement.PurchaseRequest
	orders    map[uuid.UUID]procurement.PurchaseOrder
	assets    map[uuid.UUID]assets.Asset
	statuses  map[statusKey]uuid.UUID
	records   []valuation.Record

	rowLocks map[uuid.UUID]chan struct{}
	failures map[string]error
	seq      int64
	epoch    time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		refs:     make(map[refKey]bool),
		periods:  make(map[uuid.UUID]budget.Period),
		lines:    make(map[uuid.UUID]budget.Line),
		requests: make(map[uuid.UUID]procurement.PurchaseRequest),
		orders:   make(map[uuid.UUID]procurement.PurchaseOrder),
		assets:   make(map[uuid.UUID]assets.Asset),
		statuses: make(map[statusKey]uuid.UUID),
		rowLocks: make(map[uuid.UUID]chan struct{}),
		failures: make(map[string]error),
		epoch:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// FailOn makes the named transactional write return err until cleared with a nil err.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// AddRef registers a master data row and returns its id.
func (s *Store) AddRef(tenantID uuid.UUID, kind masterdata.Kind) uuid.UUID {
	id := uuid.New()
	s.mu.Lock()
	s.refs[refKey{tenantID, kind, id}] = true
	s.mu.Unlock()
	return id
}

// Exists implements masterdata.Lookup.
func (s *Store) Exists(_ context.Context, tenantID uuid.UUID, kind masterdata.Kind, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if kind == masterdata.KindBudgetLine {
		line, ok := s.lines[id]
		if !ok {
			return false, nil
		}
		return s.periods[line.PeriodID].TenantID == tenantID, nil
	}
	return s.refs[refKey{tenantID, kind, id}], nil
}

// nextSeq returns a strictly increasing id and timestamp. Callers hold mu.
func (s *Store) nextSeq() (int64, time.Time) {
	s.seq++
	return s.seq, s.epoch.Add(time.Duration(s.seq) * time.Millisecond)
}

// HoldRowLock takes the row lock for id outside any transaction, standing in
// for a concurrent writer. The returned func releases it.
func (s *Store) HoldRowLock(id uuid.UUID) func() {
	ch := s.rowLock(id)
	ch <- struct{}{}
	return func() { <-ch }
}

func (s *Store) failure(op string) error {
	return s.failures[op]
}

func (s *Store) rowLock(id uuid.UUID) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.rowLocks[id]
	if !ok {
		ch = make(chan struct{}, 1)
		s.rowLocks[id] = ch
	}
	return ch
}

// memTx is one unit of work. It implements the transactional repository of
// every package so cross-package workflows share it.
type memTx struct {
	store *Store
	held  map[uuid.UUID]chan struct{}
	undo  []func()
}

func (s *Store) begin() *memTx {
	return &memTx{store: s, held: make(map[uuid.UUID]chan struct{})}
}

// run executes fn inside a transaction, rolling back every write when fn fails.
func (s *Store) run(ctx context.Context, fn func(context.Context, *memTx) error) (err error) {
	tx := s.begin()
	defer func() {
		if p := recover(); p != nil {
			tx.rollback()
			tx.release()
			panic(p)
		}
		if err != nil {
			tx.rollback()
		}
		tx.release()
	}()
	return fn(ctx, tx)
}

// lock blocks until the row lock is free. The store mutex is never held while waiting.
func (tx *memTx) lock(ctx context.Context, id uuid.UUID) error {
	if _, ok := tx.held[id]; ok {
		return nil
	}
	ch := tx.store.rowLock(id)
	select {
	case ch <- struct{}{}:
		tx.held[id] = ch
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (tx *memTx) release() {
	for id, ch := range tx.held {
		<-ch
		delete(tx.held, id)
	}
}

func (tx *memTx) rollback() {
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
}

// write applies mutate under the store mutex and registers its inverse.
func (tx *memTx) write(op string, mutate func(s *Store) (undo func(), err error)) error {
	s := tx.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure(op); err != nil {
		return err
	}
	undo, err := mutate(s)
	if err != nil {
		return err
	}
	if undo != nil {
		tx.undo = append(tx.undo, undo)
	}
	return nil
}

func (tx *memTx) read(fn func(s *Store)) {
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	fn(tx.store)
}

func (tx *memTx) Budget() budget.TxRepository { return tx }

func (tx *memTx) Assets() assets.TxRepository { return tx }
