package schedule

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status tracks the lifecycle of a booking.
type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// ErrSlotConflict indicates the requested slot overlaps an active booking.
var ErrSlotConflict = errors.New("schedule: slot conflicts with an existing booking")

// ErrCommitConflict indicates a write was rejected by the database overlap
// constraint after the advisory pre-check had passed (lost race with another
// session).
var ErrCommitConflict = errors.New("schedule: booking overlaps a concurrently committed booking")

// ErrInvalidTransition indicates a status change the lifecycle does not allow.
var ErrInvalidTransition = errors.New("schedule: invalid status transition")

// ErrNotFound indicates the booking does not exist for the org.
var ErrNotFound = errors.New("schedule: booking not found")

// Valid reports whether s is one of the four permitted statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransition reports whether a booking may move from one status to another.
// Bookings start out scheduled; completed and cancelled are terminal.
func CanTransition(from, to Status) bool {
	if !from.Valid() || !to.Valid() || from == to {
		return false
	}
	switch from {
	case StatusScheduled:
		return to == StatusInProgress || to == StatusCompleted || to == StatusCancelled
	case StatusInProgress:
		return to == StatusCompleted || to == StatusCancelled
	}
	return false
}

// Booking represents one scheduled patient/provider encounter.
// StartTime is always an absolute UTC instant; durations derive from the
// booking's procedures.
type Booking struct {
	ID              uuid.UUID   `json:"id"`
	OrgID           string      `json:"org_id"`
	PatientID       uuid.UUID   `json:"patient_id"`
	ProviderID      uuid.UUID   `json:"provider_id"`
	ProcedureIDs    []uuid.UUID `json:"procedure_ids"`
	StartTime       time.Time   `json:"start_time"`
	DurationMinutes int         `json:"duration_minutes"`
	Status          Status      `json:"status"`
	Notes           string      `json:"notes,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// EndTime returns the exclusive end of the booking's interval.
func (b Booking) EndTime() time.Time {
	return b.StartTime.Add(time.Duration(b.DurationMinutes) * time.Minute)
}

// Active reports whether the booking still occupies its slot. Cancelled
// bookings are retired and never contribute conflicts; completed bookings
// keep their historical slot.
func (b Booking) Active() bool {
	return b.Status != StatusCancelled
}

// CandidateSlot is the ephemeral interval being validated or dragged.
// ExcludeBookingID carries the booking being edited so it does not conflict
// with itself.
type CandidateSlot struct {
	ProviderID       uuid.UUID
	StartTime        time.Time
	DurationMinutes  int
	ExcludeBookingID uuid.UUID
}

// EndTime returns the exclusive end of the candidate interval.
func (c CandidateSlot) EndTime() time.Time {
	return c.StartTime.Add(time.Duration(c.DurationMinutes) * time.Minute)
}

// ConflictResult is produced fresh by every conflict check and never stored.
type ConflictResult struct {
	HasConflict          bool      `json:"has_conflict"`
	Message              string    `json:"message,omitempty"`
	ConflictingBookingID uuid.UUID `json:"conflicting_booking_id,omitempty"`
}
