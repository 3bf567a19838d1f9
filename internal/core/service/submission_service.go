package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cpacheco/cyclecount/internal/core/domain"
	"github.com/cpacheco/cyclecount/internal/port"
)

// SubmissionService validates and records completed counts, and carries
// the admin delete flow that moves submissions to the deleted log.
type SubmissionService struct {
	subs    port.SubmissionRepository
	assigns port.AssignmentRepository
	locks   *LockService
	now     func() time.Time
	newID   func() string
}

func NewSubmissionService(subs port.SubmissionRepository, assigns port.AssignmentRepository, locks *LockService, tz *time.Location) *SubmissionService {
	if tz == nil {
		tz = time.Local
	}
	return &SubmissionService{
		subs:    subs,
		assigns: assigns,
		locks:   locks,
		now:     func() time.Time { return time.Now().In(tz) },
		newID:   uuid.NewString,
	}
}

// SubmitRequest is one count entry. CountedQty arrives as free text
// from the count form and must parse as a non-negative integer.
type SubmitRequest struct {
	AssignmentID string // empty for ad-hoc counts
	Assignee     string
	Location     string
	SKU          string
	LotNumber    string
	PalletID     string
	CountedQty   string
	ExpectedQty  *int // optional; falls back to the assignment's value
	DeviceID     string
	Note         string

	IssueType       string
	ActualPalletID  string
	ActualLotNumber string
}

// Submit validates the count, classifies the variance and writes the
// immutable submission record. When the count references an existing
// assignment, that assignment is finalized in the same transaction:
// status Submitted and every lock field cleared, whoever held the lock.
func (s *SubmissionService) Submit(ctx context.Context, req SubmitRequest) (*domain.Submission, error) {
	assignee := strings.TrimSpace(req.Assignee)
	location := strings.TrimSpace(req.Location)
	if assignee == "" || location == "" {
		return nil, fmt.Errorf("%w: assignee and location are required", ErrInvalidInput)
	}

	counted, err := parseCountedQty(req.CountedQty)
	if err != nil {
		return nil, err
	}

	if err := s.locks.ValidateForSubmit(ctx, req.AssignmentID, assignee); err != nil {
		return nil, err
	}

	assignmentID := strings.TrimSpace(req.AssignmentID)
	expected := req.ExpectedQty
	if expected == nil && assignmentID != "" {
		a, err := s.assigns.Get(ctx, assignmentID)
		if err != nil {
			return nil, fmt.Errorf("load assignment: %w", err)
		}
		if a != nil {
			expected = a.ExpectedQty
		}
	}

	variance, flag := domain.ClassifyVariance(counted, expected)
	sub := domain.Submission{
		SubmissionID: s.newID(),
		AssignmentID: assignmentID,
		Assignee:     assignee,
		Location:     location,
		SKU:          strings.TrimSpace(req.SKU),
		LotNumber:    domain.NormalizeLot(req.LotNumber),
		PalletID:     strings.TrimSpace(req.PalletID),
		CountedQty:   counted,
		ExpectedQty:  expected,
		Variance:     variance,
		VarianceFlag: flag,
		Timestamp:    s.now(),
		DeviceID:     strings.TrimSpace(req.DeviceID),
		Note:         strings.TrimSpace(req.Note),

		IssueType:       strings.TrimSpace(req.IssueType),
		ActualPalletID:  strings.TrimSpace(req.ActualPalletID),
		ActualLotNumber: domain.NormalizeLot(req.ActualLotNumber),
	}

	if err := s.subs.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("store submission: %w", err)
	}
	return &sub, nil
}

func (s *SubmissionService) List(ctx context.Context) ([]domain.Submission, error) {
	return s.subs.List(ctx)
}

// Delete moves a submission into the deleted log with audit fields and,
// when it referenced an assignment, reopens that assignment so the
// count can be redone.
func (s *SubmissionService) Delete(ctx context.Context, id, deletedBy, reason, note string) error {
	audit := domain.DeleteAudit{
		DeletedBy: strings.TrimSpace(deletedBy),
		DeletedTS: s.now(),
		Reason:    strings.TrimSpace(reason),
		Note:      strings.TrimSpace(note),
	}
	moved, err := s.subs.Delete(ctx, id, audit)
	if err != nil {
		return fmt.Errorf("delete submission: %w", err)
	}
	if moved == nil {
		return ErrSubmissionNotFound
	}
	if moved.AssignmentID != "" {
		// The referenced assignment may itself be gone; that is fine.
		if _, err := s.assigns.Reopen(ctx, moved.AssignmentID); err != nil {
			return fmt.Errorf("reopen assignment: %w", err)
		}
	}
	return nil
}

func parseCountedQty(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: counted quantity must be a non-negative whole number", ErrInvalidInput)
	}
	return n, nil
}
