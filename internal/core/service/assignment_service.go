package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cpacheco/cyclecount/internal/core/domain"
	"github.com/cpacheco/cyclecount/internal/port"
)

// AssignmentService creates count assignments from requested locations
// (the expander), exposes the assignment table to the API, and carries
// the reopen path used by the admin delete flow.
type AssignmentService struct {
	repo  port.AssignmentRepository
	cache port.InventoryCache
	now   func() time.Time
	newID func() string
}

func NewAssignmentService(repo port.AssignmentRepository, cache port.InventoryCache, tz *time.Location) *AssignmentService {
	if tz == nil {
		tz = time.Local
	}
	return &AssignmentService{
		repo:  repo,
		cache: cache,
		now:   func() time.Time { return time.Now().In(tz) },
		newID: uuid.NewString,
	}
}

// ExpandRequest is one assignment-creation action. Locations keep
// caller order: explicit selections first, then pasted entries.
type ExpandRequest struct {
	AssignedBy string
	Assignee   string
	Locations  []string
	Lots       []string // optional filter, normalized before matching
	PalletIDs  []string // optional allow-list for bulk fan-out
}

// ExpandResult reports what one expansion did. NotInCache is
// informational only; placeholder assignments are still created.
type ExpandResult struct {
	Created    []domain.Assignment
	Duplicates []string
	Locked     []string
	NotInCache []string
}

// Expand turns the requested locations into assignment records. Rack
// locations become one assignment; bulk locations fan out to one
// assignment per distinct pallet in the inventory cache, with
// duplicate/lock conflicts filtered per unit so one conflicting pallet
// never blocks the rest.
func (s *AssignmentService) Expand(ctx context.Context, req ExpandRequest) (*ExpandResult, error) {
	assignee := strings.TrimSpace(req.Assignee)
	if assignee == "" {
		return nil, fmt.Errorf("%w: assignee is required", ErrInvalidInput)
	}

	lots := normalizeLots(req.Lots)
	allowed := trimSet(req.PalletIDs)
	now := s.now()
	res := &ExpandResult{}

	seen := make(map[string]bool)
	for _, raw := range req.Locations {
		loc := strings.TrimSpace(raw)
		if loc == "" {
			continue
		}
		key := strings.ToUpper(loc)
		if seen[key] {
			continue
		}
		seen[key] = true

		existing, err := s.repo.ListByLocation(ctx, loc)
		if err != nil {
			return nil, fmt.Errorf("list assignments for %s: %w", loc, err)
		}
		rows, err := s.cache.RowsForLocation(ctx, loc)
		if err != nil {
			return nil, fmt.Errorf("inventory lookup for %s: %w", loc, err)
		}
		rows = filterByLots(rows, lots)
		if len(rows) == 0 {
			res.NotInCache = append(res.NotInCache, loc)
		}

		if !domain.IsBulkLocation(loc) {
			s.expandWholeLocation(req, assignee, loc, rows, existing, now, res)
			continue
		}

		bulkRows := rows
		if len(allowed) > 0 {
			bulkRows = filterByPallets(rows, allowed)
		}
		pallets := distinctPallets(bulkRows)
		if len(pallets) == 0 {
			// No usable pallet breakdown; fall back to a single
			// assignment for the whole location.
			s.expandWholeLocation(req, assignee, loc, bulkRows, existing, now, res)
			continue
		}

		for _, pallet := range pallets {
			unit := loc + "/" + pallet
			if hasActiveAssignment(existing, pallet) {
				res.Duplicates = append(res.Duplicates, unit)
				continue
			}
			if hasActiveLock(existing, pallet, now) {
				res.Locked = append(res.Locked, unit)
				continue
			}
			res.Created = append(res.Created, s.newAssignment(req, assignee, loc, firstRowForPallet(bulkRows, pallet), now))
		}
	}

	if len(res.Created) > 0 {
		if err := s.repo.CreateBatch(ctx, res.Created); err != nil {
			return nil, fmt.Errorf("store assignments: %w", err)
		}
	}
	return res, nil
}

// expandWholeLocation handles rack locations and bulk locations without
// a pallet breakdown: one assignment for the whole location, autofilled
// from the first matching cache row when there is one.
func (s *AssignmentService) expandWholeLocation(req ExpandRequest, assignee, loc string, rows []domain.InventoryRow, existing []domain.Assignment, now time.Time, res *ExpandResult) {
	if hasActiveAssignment(existing, "") {
		res.Duplicates = append(res.Duplicates, loc)
		return
	}
	if hasActiveLock(existing, "", now) {
		res.Locked = append(res.Locked, loc)
		return
	}
	var row *domain.InventoryRow
	if len(rows) > 0 {
		row = &rows[0]
	}
	res.Created = append(res.Created, s.newAssignment(req, assignee, loc, row, now))
}

func (s *AssignmentService) newAssignment(req ExpandRequest, assignee, loc string, row *domain.InventoryRow, now time.Time) domain.Assignment {
	a := domain.Assignment{
		AssignmentID: s.newID(),
		AssignedBy:   strings.TrimSpace(req.AssignedBy),
		Assignee:     assignee,
		Location:     loc,
		Status:       domain.StatusAssigned,
		CreatedAt:    now,
	}
	if row != nil {
		a.SKU = row.SKU
		a.LotNumber = row.LotNumber
		a.PalletID = row.PalletID
		if row.ExpectedQty != nil {
			qty := *row.ExpectedQty
			a.ExpectedQty = &qty
		}
	}
	return a
}

// Get returns the assignment or ErrAssignmentNotFound.
func (s *AssignmentService) Get(ctx context.Context, id string) (*domain.Assignment, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load assignment: %w", err)
	}
	if a == nil {
		return nil, ErrAssignmentNotFound
	}
	return a, nil
}

func (s *AssignmentService) List(ctx context.Context, filter port.AssignmentFilter) ([]domain.Assignment, error) {
	return s.repo.List(ctx, filter)
}

// Reopen resets an assignment to Assigned and clears its lock. This is
// the one write path into assignment state that originates outside the
// core, used when an admin removes a submission.
func (s *AssignmentService) Reopen(ctx context.Context, id string) error {
	ok, err := s.repo.Reopen(ctx, id)
	if err != nil {
		return fmt.Errorf("reopen assignment: %w", err)
	}
	if !ok {
		return ErrAssignmentNotFound
	}
	return nil
}

// Lookup returns the first cached inventory row matching the query,
// nil when the cache has nothing for it. Used to pre-fill expected
// quantities on the count form.
func (s *AssignmentService) Lookup(ctx context.Context, location, lot, pallet string) (*domain.InventoryRow, error) {
	rows, err := s.cache.RowsForLocation(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("inventory lookup: %w", err)
	}
	lotN := domain.NormalizeLot(lot)
	pallet = strings.TrimSpace(pallet)
	for _, r := range rows {
		if lotN != "" && r.LotNumber != lotN {
			continue
		}
		if pallet != "" && !strings.EqualFold(strings.TrimSpace(r.PalletID), pallet) {
			continue
		}
		row := r
		return &row, nil
	}
	return nil, nil
}

// ReplaceInventory swaps the inventory cache wholesale, normalizing lot
// numbers on the way in so cache contents always compare exact-match.
func (s *AssignmentService) ReplaceInventory(ctx context.Context, rows []domain.InventoryRow) error {
	for i := range rows {
		rows[i].Location = strings.TrimSpace(rows[i].Location)
		rows[i].LotNumber = domain.NormalizeLot(rows[i].LotNumber)
	}
	if err := s.cache.Replace(ctx, rows); err != nil {
		return fmt.Errorf("replace inventory cache: %w", err)
	}
	return nil
}

func normalizeLots(raw []string) map[string]bool {
	set := make(map[string]bool)
	for _, l := range raw {
		if n := domain.NormalizeLot(l); n != "" {
			set[n] = true
		}
	}
	return set
}

func trimSet(raw []string) map[string]bool {
	set := make(map[string]bool)
	for _, v := range raw {
		if t := strings.ToUpper(strings.TrimSpace(v)); t != "" {
			set[t] = true
		}
	}
	return set
}

func filterByLots(rows []domain.InventoryRow, lots map[string]bool) []domain.InventoryRow {
	if len(lots) == 0 {
		return rows
	}
	var out []domain.InventoryRow
	for _, r := range rows {
		if lots[r.LotNumber] {
			out = append(out, r)
		}
	}
	return out
}

func filterByPallets(rows []domain.InventoryRow, allowed map[string]bool) []domain.InventoryRow {
	var out []domain.InventoryRow
	for _, r := range rows {
		if allowed[strings.ToUpper(strings.TrimSpace(r.PalletID))] {
			out = append(out, r)
		}
	}
	return out
}

// distinctPallets returns pallet IDs in first-seen order, skipping
// blanks and the "nan" artifacts that spreadsheet exports produce.
func distinctPallets(rows []domain.InventoryRow) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range rows {
		p := strings.TrimSpace(r.PalletID)
		if p == "" || strings.EqualFold(p, "nan") {
			continue
		}
		key := strings.ToUpper(p)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}

func firstRowForPallet(rows []domain.InventoryRow, pallet string) *domain.InventoryRow {
	for _, r := range rows {
		if strings.EqualFold(strings.TrimSpace(r.PalletID), pallet) {
			row := r
			return &row
		}
	}
	return nil
}

// hasActiveAssignment reports an open (Assigned/In Progress) assignment
// for the unit; pallet narrows the check to (location, pallet), empty
// pallet means the whole location.
func hasActiveAssignment(existing []domain.Assignment, pallet string) bool {
	for _, e := range existing {
		if pallet != "" && !strings.EqualFold(strings.TrimSpace(e.PalletID), pallet) {
			continue
		}
		if e.Active() {
			return true
		}
	}
	return false
}

func hasActiveLock(existing []domain.Assignment, pallet string, now time.Time) bool {
	for _, e := range existing {
		if pallet != "" && !strings.EqualFold(strings.TrimSpace(e.PalletID), pallet) {
			continue
		}
		if e.LockActive(now) {
			return true
		}
	}
	return false
}
