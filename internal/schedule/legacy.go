package schedule

import "github.com/google/uuid"

// LegacyProcedureID flattens a multi-procedure selection into the single
// procedure id older report and billing consumers still read from the
// bookings table. The first selected procedure wins. The booking_procedures
// rows remain the authoritative record.
func LegacyProcedureID(ids []uuid.UUID) uuid.UUID {
	if len(ids) == 0 {
		return uuid.Nil
	}
	return ids[0]
}
