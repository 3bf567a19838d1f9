package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cpacheco/cyclecount/internal/core/domain"
	"github.com/cpacheco/cyclecount/internal/port"
)

// Mock AssignmentRepository
type mockAssignmentRepo struct {
	mu          sync.Mutex
	assignments map[string]domain.Assignment
}

func newMockAssignmentRepo(seed ...domain.Assignment) *mockAssignmentRepo {
	m := &mockAssignmentRepo{assignments: make(map[string]domain.Assignment)}
	for _, a := range seed {
		m.assignments[a.AssignmentID] = a
	}
	return m
}

func (m *mockAssignmentRepo) CreateBatch(ctx context.Context, assignments []domain.Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range assignments {
		m.assignments[a.AssignmentID] = a
	}
	return nil
}

func (m *mockAssignmentRepo) Get(ctx context.Context, id string) (*domain.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assignments[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (m *mockAssignmentRepo) ListByLocation(ctx context.Context, location string) ([]domain.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.ToUpper(strings.TrimSpace(location))
	var out []domain.Assignment
	for _, a := range m.assignments {
		if strings.ToUpper(strings.TrimSpace(a.Location)) == key {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockAssignmentRepo) List(ctx context.Context, filter port.AssignmentFilter) ([]domain.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Assignment
	for _, a := range m.assignments {
		if filter.Assignee != "" && !strings.EqualFold(a.Assignee, filter.Assignee) {
			continue
		}
		if filter.Location != "" && !strings.EqualFold(a.Location, filter.Location) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (m *mockAssignmentRepo) SetLock(ctx context.Context, id, owner string, start, expires time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assignments[id]
	if !ok {
		return nil
	}
	a.Status = domain.StatusInProgress
	a.LockOwner = owner
	a.LockStart = &start
	a.LockExpires = &expires
	m.assignments[id] = a
	return nil
}

func (m *mockAssignmentRepo) Reopen(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assignments[id]
	if !ok {
		return false, nil
	}
	a.Status = domain.StatusAssigned
	a.LockOwner = ""
	a.LockStart = nil
	a.LockExpires = nil
	m.assignments[id] = a
	return true, nil
}

// Mock InventoryCache
type mockInventoryCache struct {
	mu   sync.Mutex
	rows map[string][]domain.InventoryRow
}

func newMockInventoryCache(rows ...domain.InventoryRow) *mockInventoryCache {
	m := &mockInventoryCache{rows: make(map[string][]domain.InventoryRow)}
	for _, r := range rows {
		key := strings.ToUpper(strings.TrimSpace(r.Location))
		m.rows[key] = append(m.rows[key], r)
	}
	return m
}

func (m *mockInventoryCache) Replace(ctx context.Context, rows []domain.InventoryRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = make(map[string][]domain.InventoryRow)
	for _, r := range rows {
		key := strings.ToUpper(strings.TrimSpace(r.Location))
		m.rows[key] = append(m.rows[key], r)
	}
	return nil
}

func (m *mockInventoryCache) RowsForLocation(ctx context.Context, location string) ([]domain.InventoryRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[strings.ToUpper(strings.TrimSpace(location))], nil
}

// Mock SubmissionRepository. Finalizing the referenced assignment is
// part of the repository contract, so the mock reaches into the
// assignment mock the way the MySQL adapter shares a transaction.
type mockSubmissionRepo struct {
	mu          sync.Mutex
	subs        map[string]domain.Submission
	deleted     map[string]domain.Submission
	audits      map[string]domain.DeleteAudit
	assignments *mockAssignmentRepo
}

func newMockSubmissionRepo(assignments *mockAssignmentRepo) *mockSubmissionRepo {
	return &mockSubmissionRepo{
		subs:        make(map[string]domain.Submission),
		deleted:     make(map[string]domain.Submission),
		audits:      make(map[string]domain.DeleteAudit),
		assignments: assignments,
	}
}

func (m *mockSubmissionRepo) Create(ctx context.Context, sub domain.Submission) error {
	m.mu.Lock()
	m.subs[sub.SubmissionID] = sub
	m.mu.Unlock()

	if sub.AssignmentID != "" && m.assignments != nil {
		m.assignments.mu.Lock()
		defer m.assignments.mu.Unlock()
		if a, ok := m.assignments.assignments[sub.AssignmentID]; ok {
			a.Status = domain.StatusSubmitted
			a.LockOwner = ""
			a.LockStart = nil
			a.LockExpires = nil
			m.assignments.assignments[sub.AssignmentID] = a
		}
	}
	return nil
}

func (m *mockSubmissionRepo) Get(ctx context.Context, id string) (*domain.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *mockSubmissionRepo) List(ctx context.Context) ([]domain.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Submission
	for _, s := range m.subs {
		out = append(out, s)
	}
	return out, nil
}

func (m *mockSubmissionRepo) Delete(ctx context.Context, id string, audit domain.DeleteAudit) (*domain.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[id]
	if !ok {
		return nil, nil
	}
	delete(m.subs, id)
	m.deleted[id] = s
	m.audits[id] = audit
	return &s, nil
}

func fixedNow() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func sequentialIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return prefix + "-" + string(rune('0'+n))
	}
}

func intp(v int) *int { return &v }
