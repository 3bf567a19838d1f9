package domain

// InventoryRow is one row of the read-only inventory cache, produced by
// an external upload workflow and consumed when expanding assignments
// and pre-filling expected quantities.
type InventoryRow struct {
	Location    string
	SKU         string
	LotNumber   string // normalized
	PalletID    string
	ExpectedQty *int
}
