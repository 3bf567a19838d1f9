package port

import (
	"context"

	"github.com/cpacheco/cyclecount/internal/core/domain"
)

type SubmissionRepository interface {
	// Create persists the submission and, when it references an existing
	// assignment, finalizes that assignment (status Submitted, lock
	// cleared) in the same transaction
	Create(ctx context.Context, sub domain.Submission) error

	// Get returns the submission, or nil when the id is unknown
	Get(ctx context.Context, id string) (*domain.Submission, error)

	// List returns all submissions, newest first
	List(ctx context.Context) ([]domain.Submission, error)

	// Delete moves the submission into the deleted log with audit
	// fields attached; returns the moved row, or nil when absent
	Delete(ctx context.Context, id string, audit domain.DeleteAudit) (*domain.Submission, error)
}
