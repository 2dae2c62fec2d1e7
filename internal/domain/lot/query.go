package lot

import "strings"

// Filter selects lots by computed current status and/or farmer. Empty fields
// do not constrain the selection.
type Filter struct {
	Statuses []Status
	FarmerID string
}

func (f Filter) Matches(l Lot) bool {
	if farmerID := strings.TrimSpace(f.FarmerID); farmerID != "" && l.Farmer.ID != farmerID {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}

	current, err := CurrentStatus(l)
	if err != nil {
		return false
	}
	for _, status := range f.Statuses {
		if status == current {
			return true
		}
	}
	return false
}

// Query scans every lot and keeps the matching ones in input order. Cost is
// proportional to the total number of lots, not the number of matches.
func Query(lots []Lot, f Filter) []Lot {
	out := make([]Lot, 0, len(lots))
	for _, l := range lots {
		if f.Matches(l) {
			out = append(out, l)
		}
	}
	return out
}
