package testutil

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-assets/internal/budget"
	"github.com/odyssey-erp/odyssey-assets/internal/shared"
)

// BudgetRepo adapts Store to budget.RepositoryPort.
type BudgetRepo struct{ s *Store }

// Budget returns the budget repository view of the store.
func (s *Store) Budget() BudgetRepo { return BudgetRepo{s: s} }

// WithTx implements budget.RepositoryPort.
func (r BudgetRepo) WithTx(ctx context.Context, fn func(context.Context, budget.TxRepository) error) error {
	return r.s.run(ctx, func(ctx context.Context, tx *memTx) error { return fn(ctx, tx) })
}

// SeedPeriod stores a period directly.
func (s *Store) SeedPeriod(p budget.Period) budget.Period {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	s.mu.Lock()
	s.periods[p.ID] = p
	s.mu.Unlock()
	return p
}

// SeedLine stores a line directly and refreshes its period total.
func (s *Store) SeedLine(l budget.Line) budget.Line {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	s.mu.Lock()
	s.lines[l.ID] = l
	p := s.periods[l.PeriodID]
	p.Total = s.sumAssigned(l.PeriodID)
	s.periods[l.PeriodID] = p
	s.mu.Unlock()
	return l
}

// Line returns the committed state of a line.
func (s *Store) Line(id uuid.UUID) budget.Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lines[id]
}

// Period returns the stored period.
func (s *Store) Period(id uuid.UUID) budget.Period {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.periods[id]
}

// Movements returns all movements of a line in insertion order.
func (s *Store) Movements(lineID uuid.UUID) []budget.Movement {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []budget.Movement
	for _, m := range s.movements {
		if m.LineID == lineID {
			out = append(out, m)
		}
	}
	return out
}

func (s *Store) sumAssigned(periodID uuid.UUID) decimal.Decimal {
	total := decimal.Zero
	for _, l := range s.lines {
		if l.PeriodID == periodID {
			total = total.Add(l.Assigned)
		}
	}
	return total
}

func (s *Store) lineInTenant(tenantID, lineID uuid.UUID) (budget.Line, bool) {
	l, ok := s.lines[lineID]
	if !ok || s.periods[l.PeriodID].TenantID != tenantID {
		return budget.Line{}, false
	}
	return l, true
}

func (tx *memTx) InsertPeriod(_ context.Context, p budget.Period) error {
	return tx.write("InsertPeriod", func(s *Store) (func(), error) {
		if p.EndDate.Before(p.StartDate) {
			return nil, shared.Validationf("value rejected by budget_periods_check")
		}
		for _, existing := range s.periods {
			if existing.TenantID == p.TenantID && existing.Name == p.Name {
				return nil, budget.ErrDuplicatePeriod
			}
		}
		p.Total = decimal.Zero
		s.periods[p.ID] = p
		return func() { delete(s.periods, p.ID) }, nil
	})
}

func (tx *memTx) LockPeriod(ctx context.Context, tenantID, periodID uuid.UUID) (budget.Period, error) {
	if err := tx.lock(ctx, periodID); err != nil {
		return budget.Period{}, err
	}
	var p budget.Period
	var ok bool
	tx.read(func(s *Store) { p, ok = s.periods[periodID] })
	if !ok || p.TenantID != tenantID {
		return budget.Period{}, budget.ErrPeriodNotFound
	}
	return p, nil
}

func (tx *memTx) UpdatePeriodStatus(_ context.Context, periodID uuid.UUID, status budget.PeriodStatus) error {
	return tx.write("UpdatePeriodStatus", func(s *Store) (func(), error) {
		prev := s.periods[periodID]
		next := prev
		next.Status = status
		s.periods[periodID] = next
		return func() { s.periods[periodID] = prev }, nil
	})
}

func (tx *memTx) ClosePeriodIfExpired(ctx context.Context, periodID uuid.UUID, today time.Time) (bool, error) {
	if err := tx.lock(ctx, periodID); err != nil {
		return false, err
	}
	closed := false
	err := tx.write("ClosePeriodIfExpired", func(s *Store) (func(), error) {
		prev, ok := s.periods[periodID]
		if !ok || prev.Status != budget.PeriodActive || !prev.EndDate.Before(today) {
			return nil, nil
		}
		next := prev
		next.Status = budget.PeriodClosed
		s.periods[periodID] = next
		closed = true
		return func() { s.periods[periodID] = prev }, nil
	})
	return closed, err
}

func (tx *memTx) LockLineForEdit(ctx context.Context, tenantID, lineID uuid.UUID) (budget.Line, error) {
	if err := tx.lock(ctx, lineID); err != nil {
		return budget.Line{}, err
	}
	var l budget.Line
	var ok bool
	tx.read(func(s *Store) { l, ok = s.lineInTenant(tenantID, lineID) })
	if !ok {
		return budget.Line{}, budget.ErrLineNotFound
	}
	return l, nil
}

func (tx *memTx) InsertLine(_ context.Context, l budget.Line) error {
	return tx.write("InsertLine", func(s *Store) (func(), error) {
		for _, existing := range s.lines {
			if existing.PeriodID == l.PeriodID && existing.DepartmentID == l.DepartmentID && existing.Name == l.Name {
				return nil, budget.ErrDuplicateLine
			}
		}
		l.Spent = decimal.Zero
		s.lines[l.ID] = l
		return func() { delete(s.lines, l.ID) }, nil
	})
}

func (tx *memTx) UpdateLine(_ context.Context, l budget.Line) error {
	return tx.write("UpdateLine", func(s *Store) (func(), error) {
		for _, existing := range s.lines {
			if existing.ID != l.ID && existing.PeriodID == l.PeriodID && existing.DepartmentID == l.DepartmentID && existing.Name == l.Name {
				return nil, budget.ErrDuplicateLine
			}
		}
		prev := s.lines[l.ID]
		next := prev
		next.DepartmentID, next.Name, next.Code, next.Assigned = l.DepartmentID, l.Name, l.Code, l.Assigned
		s.lines[l.ID] = next
		return func() { s.lines[l.ID] = prev }, nil
	})
}

func (tx *memTx) DeleteLine(_ context.Context, lineID uuid.UUID) error {
	return tx.write("DeleteLine", func(s *Store) (func(), error) {
		prev, ok := s.lines[lineID]
		if !ok {
			return nil, nil
		}
		delete(s.lines, lineID)
		return func() { s.lines[lineID] = prev }, nil
	})
}

func (tx *memTx) LineHasMovements(_ context.Context, lineID uuid.UUID) (bool, error) {
	found := false
	tx.read(func(s *Store) {
		for _, m := range s.movements {
			if m.LineID == lineID {
				found = true
				return
			}
		}
	})
	return found, nil
}

func (tx *memTx) RecalculateTotal(_ context.Context, periodID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := tx.write("RecalculateTotal", func(s *Store) (func(), error) {
		prev := s.periods[periodID]
		next := prev
		next.Total = s.sumAssigned(periodID)
		total = next.Total
		s.periods[periodID] = next
		return func() { s.periods[periodID] = prev }, nil
	})
	return total, err
}

func (tx *memTx) LockLine(ctx context.Context, tenantID, lineID uuid.UUID) (budget.Line, budget.PeriodStatus, error) {
	if err := tx.lock(ctx, lineID); err != nil {
		return budget.Line{}, "", err
	}
	var l budget.Line
	var ok bool
	tx.read(func(s *Store) { l, ok = s.lineInTenant(tenantID, lineID) })
	if !ok {
		return budget.Line{}, "", budget.ErrLineNotFound
	}
	// PostgreSQL takes FOR SHARE on the period; an exclusive lock serializes at least as much.
	if err := tx.lock(ctx, l.PeriodID); err != nil {
		return budget.Line{}, "", err
	}
	var status budget.PeriodStatus
	tx.read(func(s *Store) {
		l = s.lines[lineID]
		status = s.periods[l.PeriodID].Status
	})
	return l, status, nil
}

func (tx *memTx) InsertMovement(_ context.Context, m budget.Movement) (budget.Movement, error) {
	err := tx.write("InsertMovement", func(s *Store) (func(), error) {
		m.ID, m.RecordedAt = s.nextSeq()
		s.movements = append(s.movements, m)
		id := m.ID
		return func() {
			for i := range s.movements {
				if s.movements[i].ID == id {
					s.movements = append(s.movements[:i], s.movements[i+1:]...)
					return
				}
			}
		}, nil
	})
	return m, err
}

func (tx *memTx) AddSpent(_ context.Context, lineID uuid.UUID, delta decimal.Decimal) error {
	return tx.write("AddSpent", func(s *Store) (func(), error) {
		prev := s.lines[lineID]
		next := prev
		next.Spent = prev.Spent.Add(delta)
		s.lines[lineID] = next
		return func() { s.lines[lineID] = prev }, nil
	})
}

// GetPeriod implements budget.RepositoryPort.
func (r BudgetRepo) GetPeriod(_ context.Context, tenantID, id uuid.UUID) (budget.Period, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.periods[id]
	if !ok || p.TenantID != tenantID {
		return budget.Period{}, budget.ErrPeriodNotFound
	}
	return p, nil
}

// ListPeriods implements budget.RepositoryPort.
func (r BudgetRepo) ListPeriods(_ context.Context, tenantID uuid.UUID, filter budget.PeriodFilter) ([]budget.Period, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []budget.Period
	for _, p := range r.s.periods {
		if p.TenantID == tenantID && matchPeriod(p, filter) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.After(out[j].StartDate)
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// ListLines implements budget.RepositoryPort.
func (r BudgetRepo) ListLines(_ context.Context, tenantID, periodID uuid.UUID) ([]budget.Line, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []budget.Line
	for _, l := range r.s.lines {
		if l.PeriodID == periodID && r.s.periods[periodID].TenantID == tenantID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Code != out[j].Code {
			return out[i].Code < out[j].Code
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// GetLine implements budget.RepositoryPort.
func (r BudgetRepo) GetLine(_ context.Context, tenantID, lineID uuid.UUID) (budget.Line, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.lineInTenant(tenantID, lineID)
	if !ok {
		return budget.Line{}, budget.ErrLineNotFound
	}
	return l, nil
}

// ListMovements implements budget.RepositoryPort.
func (r BudgetRepo) ListMovements(_ context.Context, tenantID, lineID uuid.UUID) ([]budget.Movement, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.lineInTenant(tenantID, lineID); !ok {
		return nil, nil
	}
	var out []budget.Movement
	for i := len(r.s.movements) - 1; i >= 0; i-- {
		if r.s.movements[i].LineID == lineID {
			out = append(out, r.s.movements[i])
		}
	}
	return out, nil
}

// ListExpiredPeriods implements budget.RepositoryPort.
func (r BudgetRepo) ListExpiredPeriods(_ context.Context, today time.Time) ([]budget.ExpiredPeriod, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []budget.ExpiredPeriod
	for _, p := range r.s.periods {
		if p.Status == budget.PeriodActive && p.EndDate.Before(today) {
			out = append(out, budget.ExpiredPeriod{ID: p.ID, TenantID: p.TenantID, Name: p.Name, EndDate: p.EndDate})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndDate.Before(out[j].EndDate) })
	return out, nil
}

// ReportSummaries implements budget.RepositoryPort.
func (r BudgetRepo) ReportSummaries(ctx context.Context, tenantID uuid.UUID, filter budget.PeriodFilter) ([]budget.PeriodSummary, error) {
	periods, err := r.ListPeriods(ctx, tenantID, filter)
	if err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]budget.PeriodSummary, 0, len(periods))
	for _, p := range periods {
		spent := decimal.Zero
		for _, l := range r.s.lines {
			if l.PeriodID == p.ID {
				spent = spent.Add(l.Spent)
			}
		}
		out = append(out, budget.Summarize(budget.PeriodSummary{Period: p, Spent: spent}))
	}
	return out, nil
}

func matchPeriod(p budget.Period, f budget.PeriodFilter) bool {
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	if f.StartFrom != nil && p.StartDate.Before(*f.StartFrom) {
		return false
	}
	if f.StartTo != nil && p.StartDate.After(*f.StartTo) {
		return false
	}
	if f.EndFrom != nil && p.EndDate.Before(*f.EndFrom) {
		return false
	}
	if f.EndTo != nil && p.EndDate.After(*f.EndTo) {
		return false
	}
	return true
}
