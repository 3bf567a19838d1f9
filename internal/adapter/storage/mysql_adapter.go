package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cpacheco/cyclecount/internal/core/domain"
	"github.com/cpacheco/cyclecount/internal/port"
)

var ErrNoSuchAssignment = errors.New("no such assignment")

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS assignments (
		assignment_id   VARCHAR(64)  PRIMARY KEY,
		assigned_by     VARCHAR(255) NOT NULL DEFAULT '',
		assignee        VARCHAR(255) NOT NULL DEFAULT '',
		location        VARCHAR(255) NOT NULL DEFAULT '',
		sku             VARCHAR(255) NOT NULL DEFAULT '',
		lot_number      VARCHAR(64)  NOT NULL DEFAULT '',
		pallet_id       VARCHAR(64)  NOT NULL DEFAULT '',
		expected_qty    INT          NULL,
		status          VARCHAR(32)  NOT NULL,
		lock_owner      VARCHAR(255) NOT NULL DEFAULT '',
		lock_start_ts   DATETIME     NULL,
		lock_expires_ts DATETIME     NULL,
		created_at      DATETIME     NOT NULL,
		INDEX idx_assignments_location (location),
		INDEX idx_assignments_assignee (assignee)
	)`,
	`CREATE TABLE IF NOT EXISTS submissions (
		submission_id     VARCHAR(64)  PRIMARY KEY,
		assignment_id     VARCHAR(64)  NOT NULL DEFAULT '',
		assignee          VARCHAR(255) NOT NULL DEFAULT '',
		location          VARCHAR(255) NOT NULL DEFAULT '',
		sku               VARCHAR(255) NOT NULL DEFAULT '',
		lot_number        VARCHAR(64)  NOT NULL DEFAULT '',
		pallet_id         VARCHAR(64)  NOT NULL DEFAULT '',
		counted_qty       INT          NOT NULL,
		expected_qty      INT          NULL,
		variance          INT          NULL,
		variance_flag     VARCHAR(16)  NOT NULL,
		ts                DATETIME     NOT NULL,
		device_id         VARCHAR(255) NOT NULL DEFAULT '',
		note              TEXT         NOT NULL,
		issue_type        VARCHAR(255) NOT NULL DEFAULT '',
		actual_pallet_id  VARCHAR(64)  NOT NULL DEFAULT '',
		actual_lot_number VARCHAR(64)  NOT NULL DEFAULT '',
		INDEX idx_submissions_assignment (assignment_id)
	)`,
	`CREATE TABLE IF NOT EXISTS deleted_submissions (
		submission_id     VARCHAR(64)  PRIMARY KEY,
		assignment_id     VARCHAR(64)  NOT NULL DEFAULT '',
		assignee          VARCHAR(255) NOT NULL DEFAULT '',
		location          VARCHAR(255) NOT NULL DEFAULT '',
		sku               VARCHAR(255) NOT NULL DEFAULT '',
		lot_number        VARCHAR(64)  NOT NULL DEFAULT '',
		pallet_id         VARCHAR(64)  NOT NULL DEFAULT '',
		counted_qty       INT          NOT NULL,
		expected_qty      INT          NULL,
		variance          INT          NULL,
		variance_flag     VARCHAR(16)  NOT NULL,
		ts                DATETIME     NOT NULL,
		device_id         VARCHAR(255) NOT NULL DEFAULT '',
		note              TEXT         NOT NULL,
		issue_type        VARCHAR(255) NOT NULL DEFAULT '',
		actual_pallet_id  VARCHAR(64)  NOT NULL DEFAULT '',
		actual_lot_number VARCHAR(64)  NOT NULL DEFAULT '',
		deleted_by        VARCHAR(255) NOT NULL DEFAULT '',
		deleted_ts        DATETIME     NOT NULL,
		delete_reason     VARCHAR(255) NOT NULL DEFAULT '',
		delete_note       TEXT         NOT NULL
	)`,
}

// EnsureSchema creates the record-store tables when they do not exist.
// Column names and semantics match the original CSV schema; unlocked
// lock fields are NULL instead of the CSV's empty strings.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

const assignmentColumns = `assignment_id, assigned_by, assignee, location, sku, lot_number,
	pallet_id, expected_qty, status, lock_owner, lock_start_ts, lock_expires_ts, created_at`

// AssignmentStore implements port.AssignmentRepository on MySQL.
type AssignmentStore struct {
	db *sql.DB
}

func NewAssignmentStore(db *sql.DB) *AssignmentStore {
	return &AssignmentStore{db: db}
}

func (s *AssignmentStore) CreateBatch(ctx context.Context, assignments []domain.Assignment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, a := range assignments {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO assignments (`+assignmentColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.AssignmentID, a.AssignedBy, a.Assignee, a.Location, a.SKU, a.LotNumber,
			a.PalletID, nullInt(a.ExpectedQty), a.Status, a.LockOwner,
			nullTime(a.LockStart), nullTime(a.LockExpires), a.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert assignment %s: %w", a.AssignmentID, err)
		}
	}
	return tx.Commit()
}

func (s *AssignmentStore) Get(ctx context.Context, id string) (*domain.Assignment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+assignmentColumns+` FROM assignments WHERE assignment_id = ?`, id)

	a, err := scanAssignment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query assignment: %w", err)
	}
	return a, nil
}

func (s *AssignmentStore) ListByLocation(ctx context.Context, location string) ([]domain.Assignment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+assignmentColumns+` FROM assignments WHERE UPPER(location) = ?`,
		strings.ToUpper(strings.TrimSpace(location)))
	if err != nil {
		return nil, fmt.Errorf("query assignments by location: %w", err)
	}
	defer rows.Close()
	return collectAssignments(rows)
}

func (s *AssignmentStore) List(ctx context.Context, filter port.AssignmentFilter) ([]domain.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments`
	var conds []string
	var args []any
	if filter.Assignee != "" {
		conds = append(conds, "LOWER(assignee) = ?")
		args = append(args, strings.ToLower(strings.TrimSpace(filter.Assignee)))
	}
	if filter.Location != "" {
		conds = append(conds, "UPPER(location) = ?")
		args = append(args, strings.ToUpper(strings.TrimSpace(filter.Location)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query assignments: %w", err)
	}
	defer rows.Close()
	return collectAssignments(rows)
}

func (s *AssignmentStore) SetLock(ctx context.Context, id, owner string, start, expires time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE assignments
		SET status = ?, lock_owner = ?, lock_start_ts = ?, lock_expires_ts = ?
		WHERE assignment_id = ?`,
		domain.StatusInProgress, owner, start, expires, id,
	)
	if err != nil {
		return fmt.Errorf("update lock: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNoSuchAssignment
	}
	return nil
}

func (s *AssignmentStore) Reopen(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE assignments
		SET status = ?, lock_owner = '', lock_start_ts = NULL, lock_expires_ts = NULL
		WHERE assignment_id = ?`,
		domain.StatusAssigned, id,
	)
	if err != nil {
		return false, fmt.Errorf("reopen assignment: %w", err)
	}

	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

const submissionColumns = `submission_id, assignment_id, assignee, location, sku, lot_number,
	pallet_id, counted_qty, expected_qty, variance, variance_flag, ts, device_id, note,
	issue_type, actual_pallet_id, actual_lot_number`

// SubmissionStore implements port.SubmissionRepository on MySQL.
type SubmissionStore struct {
	db *sql.DB
}

func NewSubmissionStore(db *sql.DB) *SubmissionStore {
	return &SubmissionStore{db: db}
}

func (s *SubmissionStore) Create(ctx context.Context, sub domain.Submission) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO submissions (`+submissionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.SubmissionID, sub.AssignmentID, sub.Assignee, sub.Location, sub.SKU, sub.LotNumber,
		sub.PalletID, sub.CountedQty, nullInt(sub.ExpectedQty), nullInt(sub.Variance),
		sub.VarianceFlag, sub.Timestamp, sub.DeviceID, sub.Note,
		sub.IssueType, sub.ActualPalletID, sub.ActualLotNumber,
	)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}

	if sub.AssignmentID != "" {
		// Finalize the referenced assignment and release whatever lock
		// is on it. Zero rows affected just means the assignment is
		// already gone, which does not invalidate the count.
		_, err = tx.ExecContext(ctx, `
			UPDATE assignments
			SET status = ?, lock_owner = '', lock_start_ts = NULL, lock_expires_ts = NULL
			WHERE assignment_id = ?`,
			domain.StatusSubmitted, sub.AssignmentID,
		)
		if err != nil {
			return fmt.Errorf("finalize assignment: %w", err)
		}
	}

	return tx.Commit()
}

func (s *SubmissionStore) Get(ctx context.Context, id string) (*domain.Submission, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+submissionColumns+` FROM submissions WHERE submission_id = ?`, id)

	sub, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query submission: %w", err)
	}
	return sub, nil
}

func (s *SubmissionStore) List(ctx context.Context) ([]domain.Submission, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+submissionColumns+` FROM submissions ORDER BY ts DESC`)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	defer rows.Close()

	var out []domain.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		out = append(out, *sub)
	}
	return out, rows.Err()
}

func (s *SubmissionStore) Delete(ctx context.Context, id string, audit domain.DeleteAudit) (*domain.Submission, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT `+submissionColumns+` FROM submissions WHERE submission_id = ? FOR UPDATE`, id)
	sub, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query submission: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO deleted_submissions (`+submissionColumns+`, deleted_by, deleted_ts, delete_reason, delete_note)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.SubmissionID, sub.AssignmentID, sub.Assignee, sub.Location, sub.SKU, sub.LotNumber,
		sub.PalletID, sub.CountedQty, nullInt(sub.ExpectedQty), nullInt(sub.Variance),
		sub.VarianceFlag, sub.Timestamp, sub.DeviceID, sub.Note,
		sub.IssueType, sub.ActualPalletID, sub.ActualLotNumber,
		audit.DeletedBy, audit.DeletedTS, audit.Reason, audit.Note,
	)
	if err != nil {
		return nil, fmt.Errorf("insert deleted submission: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM submissions WHERE submission_id = ?`, id); err != nil {
		return nil, fmt.Errorf("delete submission: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return sub, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAssignment(r rowScanner) (*domain.Assignment, error) {
	var a domain.Assignment
	var expected sql.NullInt64
	var lockStart, lockExpires sql.NullTime
	err := r.Scan(
		&a.AssignmentID, &a.AssignedBy, &a.Assignee, &a.Location, &a.SKU, &a.LotNumber,
		&a.PalletID, &expected, &a.Status, &a.LockOwner, &lockStart, &lockExpires, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.ExpectedQty = intPtr(expected)
	a.LockStart = timePtr(lockStart)
	a.LockExpires = timePtr(lockExpires)
	return &a, nil
}

func scanSubmission(r rowScanner) (*domain.Submission, error) {
	var s domain.Submission
	var expected, variance sql.NullInt64
	err := r.Scan(
		&s.SubmissionID, &s.AssignmentID, &s.Assignee, &s.Location, &s.SKU, &s.LotNumber,
		&s.PalletID, &s.CountedQty, &expected, &variance, &s.VarianceFlag, &s.Timestamp,
		&s.DeviceID, &s.Note, &s.IssueType, &s.ActualPalletID, &s.ActualLotNumber,
	)
	if err != nil {
		return nil, err
	}
	s.ExpectedQty = intPtr(expected)
	s.Variance = intPtr(variance)
	return &s, nil
}

func collectAssignments(rows *sql.Rows) ([]domain.Assignment, error) {
	var out []domain.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
