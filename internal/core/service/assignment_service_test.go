package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cpacheco/cyclecount/internal/core/domain"
)

func newExpandFixture(repo *mockAssignmentRepo, cache *mockInventoryCache) *AssignmentService {
	svc := NewAssignmentService(repo, cache, time.UTC)
	svc.now = fixedNow
	svc.newID = sequentialIDs("asg")
	return svc
}

func TestExpand_RackAutofill(t *testing.T) {
	cache := newMockInventoryCache(domain.InventoryRow{
		Location: "11400804", SKU: "SKU-9", LotNumber: "91", PalletID: "P-1", ExpectedQty: intp(40),
	})
	svc := newExpandFixture(newMockAssignmentRepo(), cache)

	res, err := svc.Expand(context.Background(), ExpandRequest{
		AssignedBy: "sup",
		Assignee:   "maria",
		Locations:  []string{"11400804"},
	})
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}

	if len(res.Created) != 1 {
		t.Fatalf("expected 1 assignment, got %d", len(res.Created))
	}
	a := res.Created[0]
	if a.SKU != "SKU-9" || a.LotNumber != "91" || a.PalletID != "P-1" {
		t.Errorf("rack assignment not autofilled from cache: %+v", a)
	}
	if a.ExpectedQty == nil || *a.ExpectedQty != 40 {
		t.Errorf("expected qty not autofilled: %v", a.ExpectedQty)
	}
	if a.Status != domain.StatusAssigned || a.LockOwner != "" || a.LockExpires != nil {
		t.Errorf("new assignment should be Assigned and unlocked: %+v", a)
	}
}

func TestExpand_BulkFanOut(t *testing.T) {
	cache := newMockInventoryCache(
		domain.InventoryRow{Location: "G001", SKU: "SKU-1", LotNumber: "10", PalletID: "P-1", ExpectedQty: intp(5)},
		domain.InventoryRow{Location: "G001", SKU: "SKU-2", LotNumber: "20", PalletID: "P-2", ExpectedQty: intp(6)},
		domain.InventoryRow{Location: "G001", SKU: "SKU-3", LotNumber: "30", PalletID: "P-3", ExpectedQty: intp(7)},
		domain.InventoryRow{Location: "G001", SKU: "SKU-X", LotNumber: "40", PalletID: ""},    // blank pallet excluded
		domain.InventoryRow{Location: "G001", SKU: "SKU-Y", LotNumber: "50", PalletID: "nan"}, // export artifact excluded
	)
	svc := newExpandFixture(newMockAssignmentRepo(), cache)

	res, err := svc.Expand(context.Background(), ExpandRequest{
		Assignee:  "maria",
		Locations: []string{"G001"},
	})
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}

	if len(res.Created) != 3 {
		t.Fatalf("expected 3 assignments, got %d", len(res.Created))
	}
	wantByPallet := map[string]struct {
		lot string
		qty int
	}{
		"P-1": {"10", 5},
		"P-2": {"20", 6},
		"P-3": {"30", 7},
	}
	seen := map[string]bool{}
	for _, a := range res.Created {
		want, ok := wantByPallet[a.PalletID]
		if !ok {
			t.Errorf("unexpected pallet %q", a.PalletID)
			continue
		}
		if seen[a.PalletID] {
			t.Errorf("pallet %q assigned twice", a.PalletID)
		}
		seen[a.PalletID] = true
		if a.LotNumber != want.lot || a.ExpectedQty == nil || *a.ExpectedQty != want.qty {
			t.Errorf("pallet %q not filled from its inventory row: %+v", a.PalletID, a)
		}
	}
}

func TestExpand_BulkNoRowsCreatesPlaceholder(t *testing.T) {
	svc := newExpandFixture(newMockAssignmentRepo(), newMockInventoryCache())

	res, err := svc.Expand(context.Background(), ExpandRequest{
		Assignee:  "maria",
		Locations: []string{"G001"},
	})
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}

	if len(res.Created) != 1 {
		t.Fatalf("expected 1 placeholder assignment, got %d", len(res.Created))
	}
	a := res.Created[0]
	if a.SKU != "" || a.LotNumber != "" || a.PalletID != "" || a.ExpectedQty != nil {
		t.Errorf("placeholder should be blank: %+v", a)
	}
	if len(res.NotInCache) != 1 || res.NotInCache[0] != "G001" {
		t.Errorf("missing location not reported: %v", res.NotInCache)
	}
}

func TestExpand_DuplicateSkipped(t *testing.T) {
	repo := newMockAssignmentRepo(domain.Assignment{
		AssignmentID: "a-1",
		Location:     "11400804",
		Status:       domain.StatusAssigned,
	})
	svc := newExpandFixture(repo, newMockInventoryCache())

	res, err := svc.Expand(context.Background(), ExpandRequest{
		Assignee:  "maria",
		Locations: []string{"11400804"},
	})
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}

	if len(res.Created) != 0 {
		t.Errorf("expected no assignments, got %d", len(res.Created))
	}
	if len(res.Duplicates) != 1 || res.Duplicates[0] != "11400804" {
		t.Errorf("duplicate not reported: %v", res.Duplicates)
	}
}

func TestExpand_SubmittedAssignmentDoesNotBlock(t *testing.T) {
	repo := newMockAssignmentRepo(domain.Assignment{
		AssignmentID: "a-1",
		Location:     "11400804",
		Status:       domain.StatusSubmitted,
	})
	svc := newExpandFixture(repo, newMockInventoryCache())

	res, err := svc.Expand(context.Background(), ExpandRequest{
		Assignee:  "maria",
		Locations: []string{"11400804"},
	})
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}
	if len(res.Created) != 1 {
		t.Errorf("submitted assignment should not block a recount, got %d created", len(res.Created))
	}
}

func TestExpand_LockConflictSkipsPerPallet(t *testing.T) {
	// A submitted assignment no longer counts as a duplicate, but a
	// stale unexpired lock on it still protects the pallet. The other
	// pallets fan out normally.
	expires := fixedNow().Add(10 * time.Minute)
	repo := newMockAssignmentRepo(domain.Assignment{
		AssignmentID: "a-1",
		Location:     "G001",
		PalletID:     "P-2",
		Status:       domain.StatusSubmitted,
		LockOwner:    "jose",
		LockExpires:  &expires,
	})
	cache := newMockInventoryCache(
		domain.InventoryRow{Location: "G001", PalletID: "P-1"},
		domain.InventoryRow{Location: "G001", PalletID: "P-2"},
		domain.InventoryRow{Location: "G001", PalletID: "P-3"},
	)
	svc := newExpandFixture(repo, cache)

	res, err := svc.Expand(context.Background(), ExpandRequest{
		Assignee:  "maria",
		Locations: []string{"G001"},
	})
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}

	if len(res.Created) != 2 {
		t.Fatalf("expected 2 assignments, got %d", len(res.Created))
	}
	for _, a := range res.Created {
		if a.PalletID == "P-2" {
			t.Error("locked pallet should have been skipped")
		}
	}
	if len(res.Locked) != 1 || res.Locked[0] != "G001/P-2" {
		t.Errorf("lock conflict not reported: %v", res.Locked)
	}
}

func TestExpand_DuplicatePalletSkipsOnlyThatPallet(t *testing.T) {
	repo := newMockAssignmentRepo(domain.Assignment{
		AssignmentID: "a-1",
		Location:     "G001",
		PalletID:     "P-1",
		Status:       domain.StatusInProgress,
	})
	cache := newMockInventoryCache(
		domain.InventoryRow{Location: "G001", PalletID: "P-1"},
		domain.InventoryRow{Location: "G001", PalletID: "P-2"},
	)
	svc := newExpandFixture(repo, cache)

	res, err := svc.Expand(context.Background(), ExpandRequest{
		Assignee:  "maria",
		Locations: []string{"G001"},
	})
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}

	if len(res.Created) != 1 || res.Created[0].PalletID != "P-2" {
		t.Errorf("expected only P-2 created, got %+v", res.Created)
	}
	if len(res.Duplicates) != 1 || res.Duplicates[0] != "G001/P-1" {
		t.Errorf("duplicate pallet not reported: %v", res.Duplicates)
	}
}

func TestExpand_LotFilterNarrowsRows(t *testing.T) {
	cache := newMockInventoryCache(
		domain.InventoryRow{Location: "G001", PalletID: "P-1", LotNumber: "10"},
		domain.InventoryRow{Location: "G001", PalletID: "P-2", LotNumber: "20"},
	)
	svc := newExpandFixture(newMockAssignmentRepo(), cache)

	res, err := svc.Expand(context.Background(), ExpandRequest{
		Assignee:  "maria",
		Locations: []string{"G001"},
		Lots:      []string{"LOT-0020"}, // normalizes to "20"
	})
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}

	if len(res.Created) != 1 || res.Created[0].PalletID != "P-2" {
		t.Errorf("lot filter not applied, got %+v", res.Created)
	}
}

func TestExpand_PalletAllowList(t *testing.T) {
	cache := newMockInventoryCache(
		domain.InventoryRow{Location: "G001", PalletID: "P-1"},
		domain.InventoryRow{Location: "G001", PalletID: "P-2"},
		domain.InventoryRow{Location: "G001", PalletID: "P-3"},
	)
	svc := newExpandFixture(newMockAssignmentRepo(), cache)

	res, err := svc.Expand(context.Background(), ExpandRequest{
		Assignee:  "maria",
		Locations: []string{"G001"},
		PalletIDs: []string{"p-1", "P-3"},
	})
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}

	if len(res.Created) != 2 {
		t.Fatalf("expected 2 assignments, got %d", len(res.Created))
	}
	for _, a := range res.Created {
		if a.PalletID == "P-2" {
			t.Error("pallet outside the allow-list was assigned")
		}
	}
}

func TestExpand_DedupPreservesOrder(t *testing.T) {
	svc := newExpandFixture(newMockAssignmentRepo(), newMockInventoryCache())

	res, err := svc.Expand(context.Background(), ExpandRequest{
		Assignee:  "maria",
		Locations: []string{"G002", "g001", "G001", " G002 ", "G003"},
	})
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}

	var locs []string
	for _, a := range res.Created {
		locs = append(locs, a.Location)
	}
	want := []string{"G002", "g001", "G003"}
	if len(locs) != len(want) {
		t.Fatalf("expected %d assignments, got %v", len(want), locs)
	}
	for i := range want {
		if locs[i] != want[i] {
			t.Errorf("order not preserved: got %v, want %v", locs, want)
			break
		}
	}
}

func TestExpand_BlankAssignee(t *testing.T) {
	svc := newExpandFixture(newMockAssignmentRepo(), newMockInventoryCache())

	_, err := svc.Expand(context.Background(), ExpandRequest{Locations: []string{"G001"}})
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got: %v", err)
	}
}

func TestReopen(t *testing.T) {
	expires := fixedNow().Add(10 * time.Minute)
	repo := newMockAssignmentRepo(domain.Assignment{
		AssignmentID: "a-1",
		Status:       domain.StatusSubmitted,
		LockOwner:    "maria",
		LockExpires:  &expires,
	})
	svc := newExpandFixture(repo, newMockInventoryCache())

	if err := svc.Reopen(context.Background(), "a-1"); err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}

	a, _ := repo.Get(context.Background(), "a-1")
	if a.Status != domain.StatusAssigned {
		t.Errorf("status = %q, want Assigned", a.Status)
	}
	if a.LockOwner != "" || a.LockStart != nil || a.LockExpires != nil {
		t.Error("lock fields not cleared on reopen")
	}

	if err := svc.Reopen(context.Background(), "missing"); !errors.Is(err, ErrAssignmentNotFound) {
		t.Errorf("expected ErrAssignmentNotFound, got: %v", err)
	}
}

func TestLookup(t *testing.T) {
	cache := newMockInventoryCache(
		domain.InventoryRow{Location: "G001", PalletID: "P-1", LotNumber: "10", ExpectedQty: intp(5)},
		domain.InventoryRow{Location: "G001", PalletID: "P-2", LotNumber: "20", ExpectedQty: intp(8)},
	)
	svc := newExpandFixture(newMockAssignmentRepo(), cache)

	row, err := svc.Lookup(context.Background(), "G001", "LOT-20", "")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if row == nil || row.PalletID != "P-2" {
		t.Errorf("expected P-2 row, got %+v", row)
	}

	row, err = svc.Lookup(context.Background(), "G001", "", "p-1")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if row == nil || *row.ExpectedQty != 5 {
		t.Errorf("expected qty 5 row, got %+v", row)
	}

	row, err = svc.Lookup(context.Background(), "NOPE", "", "")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if row != nil {
		t.Errorf("expected nil for unknown location, got %+v", row)
	}
}
