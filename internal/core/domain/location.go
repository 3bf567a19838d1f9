package domain

import "strings"

// IsBulkLocation classifies a location for assignment fan-out. Rack
// locations (exactly 8 digits, or prefixed "TUN") are counted as a
// single unit; everything else is a bulk area that gets one assignment
// per pallet found in the inventory cache.
func IsBulkLocation(location string) bool {
	u := strings.ToUpper(strings.TrimSpace(location))
	if strings.HasPrefix(u, "TUN") {
		return false
	}
	if len(u) == 8 && allDigits(u) {
		return false
	}
	return true
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
