package schedule

import (
	"fmt"

	"github.com/google/uuid"
)

// Conflicts decides whether the candidate interval collides with any of the
// existing bookings. Only bookings for the same provider that are not
// cancelled and are not the excluded booking are considered. Intervals are
// half-open: a booking ending at 10:00 does not block one starting at 10:00.
//
// The first conflicting booking in iteration order is reported; one conflict
// is enough to reject a slot. Pure and synchronous, no I/O.
func Conflicts(candidate CandidateSlot, existing []Booking) ConflictResult {
	if candidate.DurationMinutes <= 0 {
		return ConflictResult{}
	}
	cStart := candidate.StartTime
	cEnd := candidate.EndTime()

	for _, b := range existing {
		if b.ProviderID != candidate.ProviderID {
			continue
		}
		if !b.Active() {
			continue
		}
		if candidate.ExcludeBookingID != uuid.Nil && b.ID == candidate.ExcludeBookingID {
			continue
		}
		// [s1, e1) overlaps [s2, e2) iff s1 < e2 && s2 < e1.
		if cStart.Before(b.EndTime()) && b.StartTime.Before(cEnd) {
			return ConflictResult{
				HasConflict:          true,
				ConflictingBookingID: b.ID,
				Message: fmt.Sprintf("provider already booked %s–%s",
					b.StartTime.UTC().Format("15:04"), b.EndTime().UTC().Format("15:04")),
			}
		}
	}
	return ConflictResult{}
}
