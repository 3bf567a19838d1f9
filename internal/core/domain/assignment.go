package domain

import (
	"strings"
	"time"
)

type AssignmentStatus string

const (
	StatusAssigned   AssignmentStatus = "Assigned"
	StatusInProgress AssignmentStatus = "In Progress"
	StatusSubmitted  AssignmentStatus = "Submitted"
)

type Assignment struct {
	AssignmentID string
	AssignedBy   string
	Assignee     string
	Location     string
	SKU          string
	LotNumber    string // normalized
	PalletID     string
	ExpectedQty  *int
	Status       AssignmentStatus
	LockOwner    string // empty when unlocked
	LockStart    *time.Time
	LockExpires  *time.Time
	CreatedAt    time.Time
}

// Active reports whether the assignment still claims its count unit.
// Submitted assignments do not block new ones for the same location.
func (a Assignment) Active() bool {
	return a.Status == StatusAssigned || a.Status == StatusInProgress
}

// LockActive reports whether the lock is held at the given instant.
// Expiry is strict: a lock expiring exactly now is no longer active.
func (a Assignment) LockActive(now time.Time) bool {
	return a.LockExpires != nil && now.Before(*a.LockExpires)
}

// LockOwnedBy compares the lock owner to user, trimmed and
// case-insensitive.
func (a Assignment) LockOwnedBy(user string) bool {
	return strings.EqualFold(strings.TrimSpace(a.LockOwner), strings.TrimSpace(user))
}
