package port

import (
	"context"

	"github.com/cpacheco/cyclecount/internal/core/domain"
)

type InventoryCache interface {
	// Replace swaps the whole cache for the given rows
	Replace(ctx context.Context, rows []domain.InventoryRow) error

	// RowsForLocation returns cached rows for a location, nil when the
	// location is not in the cache
	RowsForLocation(ctx context.Context, location string) ([]domain.InventoryRow, error)
}
