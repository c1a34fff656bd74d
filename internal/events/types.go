package events

import "time"

// Event type names carried in the outbox and over the calendar socket.
const (
	TypeBookingCreated       = "booking.created.v1"
	TypeBookingRescheduled   = "booking.rescheduled.v1"
	TypeBookingStatusChanged = "booking.status_changed.v1"
)

// BookingCreatedV1 announces a new booking on a provider's calendar.
type BookingCreatedV1 struct {
	EventID         string    `json:"event_id"`
	OrgID           string    `json:"org_id"`
	BookingID       string    `json:"booking_id"`
	ProviderID      string    `json:"provider_id"`
	PatientID       string    `json:"patient_id"`
	StartTime       time.Time `json:"start_time"`
	DurationMinutes int       `json:"duration_minutes"`
	CreatedAt       time.Time `json:"created_at"`
}

// BookingRescheduledV1 announces a committed drag-reschedule.
type BookingRescheduledV1 struct {
	EventID         string    `json:"event_id"`
	OrgID           string    `json:"org_id"`
	BookingID       string    `json:"booking_id"`
	ProviderID      string    `json:"provider_id"`
	OldStartTime    time.Time `json:"old_start_time"`
	NewStartTime    time.Time `json:"new_start_time"`
	DurationMinutes int       `json:"duration_minutes"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// BookingStatusChangedV1 announces a lifecycle transition.
type BookingStatusChangedV1 struct {
	EventID    string    `json:"event_id"`
	OrgID      string    `json:"org_id"`
	BookingID  string    `json:"booking_id"`
	ProviderID string    `json:"provider_id"`
	OldStatus  string    `json:"old_status"`
	NewStatus  string    `json:"new_status"`
	OccurredAt time.Time `json:"occurred_at"`
}
