// Command loadinv replaces the Redis inventory cache from a CSV export.
// Column names are mapped with flags so exports from different WMS
// report layouts can be loaded without editing the file.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/cpacheco/cyclecount/internal/adapter/storage"
	"github.com/cpacheco/cyclecount/internal/core/domain"
)

func main() {
	var (
		file      = flag.String("file", "", "CSV file to load (required)")
		redisAddr = flag.String("redis", "localhost:6379", "Redis address")
		locCol    = flag.String("loc-col", "Location", "location column name")
		skuCol    = flag.String("sku-col", "SKU", "SKU column name")
		lotCol    = flag.String("lot-col", "LotNumber", "lot number column name")
		palletCol = flag.String("pallet-col", "PalletID", "pallet ID column name")
		qtyCol    = flag.String("qty-col", "ExpectedQty", "expected quantity column name")
	)
	flag.Parse()

	if *file == "" {
		flag.Usage()
		os.Exit(2)
	}

	ctx := context.Background()

	rdb := redis.NewClient(&redis.Options{Addr: *redisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer rdb.Close()

	f, err := os.Open(*file)
	if err != nil {
		log.Fatalf("failed to open %s: %v", *file, err)
	}
	defer f.Close()

	rows, skipped, badQty, err := readInventoryCSV(f, columnMap{
		location: *locCol,
		sku:      *skuCol,
		lot:      *lotCol,
		pallet:   *palletCol,
		qty:      *qtyCol,
	})
	if err != nil {
		log.Fatalf("failed to read %s: %v", *file, err)
	}

	cache := storage.NewRedisAdapter(rdb)
	if err := cache.Replace(ctx, rows); err != nil {
		log.Fatalf("failed to replace cache: %v", err)
	}

	locations := make(map[string]bool)
	for _, r := range rows {
		locations[strings.ToUpper(r.Location)] = true
	}

	fmt.Println("========== INVENTORY LOAD ==========")
	fmt.Printf("File:             %s\n", *file)
	fmt.Printf("Rows loaded:      %d\n", len(rows))
	fmt.Printf("Locations:        %d\n", len(locations))
	fmt.Printf("Skipped (no loc): %d\n", skipped)
	fmt.Printf("Blank qty:        %d\n", badQty)
	fmt.Println("====================================")
}

type columnMap struct {
	location, sku, lot, pallet, qty string
}

func readInventoryCSV(r io.Reader, cols columnMap) (rows []domain.InventoryRow, skipped, blankQty int, err error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, 0, 0, fmt.Errorf("read header: %w", err)
	}
	idx := make(map[string]int)
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}

	locIdx, ok := idx[strings.ToLower(cols.location)]
	if !ok {
		return nil, 0, 0, fmt.Errorf("column %q not found in header", cols.location)
	}
	skuIdx := optionalColumn(idx, cols.sku)
	lotIdx := optionalColumn(idx, cols.lot)
	palletIdx := optionalColumn(idx, cols.pallet)
	qtyIdx := optionalColumn(idx, cols.qty)

	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, 0, fmt.Errorf("read row: %w", err)
		}

		loc := strings.TrimSpace(field(record, locIdx))
		if loc == "" {
			skipped++
			continue
		}

		row := domain.InventoryRow{
			Location:  loc,
			SKU:       strings.TrimSpace(field(record, skuIdx)),
			LotNumber: domain.NormalizeLot(field(record, lotIdx)),
			PalletID:  strings.TrimSpace(field(record, palletIdx)),
		}
		if raw := strings.TrimSpace(field(record, qtyIdx)); raw != "" {
			if qty, err := strconv.Atoi(raw); err == nil {
				row.ExpectedQty = &qty
			} else {
				blankQty++
			}
		} else {
			blankQty++
		}
		rows = append(rows, row)
	}
	return rows, skipped, blankQty, nil
}

func optionalColumn(idx map[string]int, name string) int {
	if i, ok := idx[strings.ToLower(name)]; ok {
		return i
	}
	return -1
}

func field(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return record[i]
}
