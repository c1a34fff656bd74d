package schedule

import (
	"github.com/google/uuid"

	"github.com/clinicdesk/clinicdesk/internal/catalog"
)

// Totals holds the aggregate duration and price of a procedure selection.
// Prices are integer cents so summation stays exact.
type Totals struct {
	DurationMinutes int   `json:"duration_minutes"`
	PriceCents      int64 `json:"price_cents"`
}

// Aggregate sums duration and price over the selected procedures, ignoring
// duplicate ids. Order of the selection is preserved by the caller; it does
// not affect the totals.
func Aggregate(procs []catalog.Procedure) Totals {
	var t Totals
	seen := make(map[uuid.UUID]struct{}, len(procs))
	for _, p := range procs {
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		t.DurationMinutes += p.DurationMinutes
		t.PriceCents += p.PriceCents
	}
	return t
}
