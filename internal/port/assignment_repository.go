package port

import (
	"context"
	"time"

	"github.com/cpacheco/cyclecount/internal/core/domain"
)

// AssignmentFilter narrows List results; zero values match everything.
type AssignmentFilter struct {
	Assignee string
	Location string
}

type AssignmentRepository interface {
	// CreateBatch persists new assignments in a single transaction
	CreateBatch(ctx context.Context, assignments []domain.Assignment) error

	// Get returns the assignment, or nil when the id is unknown
	Get(ctx context.Context, id string) (*domain.Assignment, error)

	// ListByLocation returns every assignment for a location, any status
	ListByLocation(ctx context.Context, location string) ([]domain.Assignment, error)

	// List returns assignments matching the filter, newest first
	List(ctx context.Context, filter AssignmentFilter) ([]domain.Assignment, error)

	// SetLock overwrites the lock fields and moves the assignment to
	// In Progress, regardless of any current lock holder
	SetLock(ctx context.Context, id, owner string, start, expires time.Time) error

	// Reopen resets status to Assigned and clears the lock, returns
	// false when the id is unknown
	Reopen(ctx context.Context, id string) (bool, error)
}
