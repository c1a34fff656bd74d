// Package reschedule drives the drag-to-reschedule gesture as an explicit
// state machine fed discrete pointer events, so the transition logic is
// testable without a UI harness.
package reschedule

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clinicdesk/clinicdesk/internal/availability"
	"github.com/clinicdesk/clinicdesk/internal/grid"
	"github.com/clinicdesk/clinicdesk/internal/observability/metrics"
	"github.com/clinicdesk/clinicdesk/internal/schedule"
	"github.com/clinicdesk/clinicdesk/pkg/logging"
)

// Phase is the orchestrator's current state for the active gesture.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseDragging    Phase = "dragging"
	PhaseDropPending Phase = "drop_pending"
)

// Outcome reports how a completed gesture ended.
type Outcome string

const (
	// OutcomeNoop: dropped outside the grid or back on the original slot.
	OutcomeNoop Outcome = "noop"
	// OutcomeCommitted: the move was verified and persisted.
	OutcomeCommitted Outcome = "committed"
	// OutcomeRolledBack: conflict or failure; the visual position must be
	// restored to the original slot.
	OutcomeRolledBack Outcome = "rolled_back"
)

// ErrBusy rejects a pointer-down while another gesture is unresolved or the
// target booking is awaiting a commit.
var ErrBusy = errors.New("reschedule: booking is locked by a pending gesture")

// Availability verifies the drop slot before committing.
type Availability interface {
	CheckAvailability(ctx context.Context, req availability.Request) (availability.Decision, error)
}

// Bookings persists the accepted move.
type Bookings interface {
	Update(ctx context.Context, orgID string, id uuid.UUID, input schedule.UpdateInput) (*schedule.Booking, error)
}

// DragState is the transient gesture state; it exists only between
// pointer-down and resolution.
type DragState struct {
	Booking    schedule.Booking
	OriginSlot grid.Slot
	StartX     int
	StartY     int
	CurrentX   int
	CurrentY   int
}

// Result describes how a pointer-up resolved.
type Result struct {
	Outcome  Outcome
	Message  string
	Booking  *schedule.Booking
	NewStart time.Time
	// Origin is where the booking must be rendered after a rollback.
	Origin grid.Point
}

// Orchestrator owns the drag gesture lifecycle:
// Idle → Dragging → DropPending → (Committed | RolledBack) → Idle.
type Orchestrator struct {
	mapper  *grid.Mapper
	avail   Availability
	store   Bookings
	metrics *metrics.SchedulingMetrics
	logger  *logging.Logger

	// onCommitted fires after a successful move, for view refresh fan-out.
	onCommitted func(*schedule.Booking)

	mu     sync.Mutex
	phase  Phase
	drag   *DragState
	locked map[uuid.UUID]struct{}
}

// New creates an orchestrator over the given grid geometry and collaborators.
func New(mapper *grid.Mapper, avail Availability, store Bookings, m *metrics.SchedulingMetrics, logger *logging.Logger) *Orchestrator {
	if mapper == nil || avail == nil || store == nil {
		panic("reschedule: mapper, availability and store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Orchestrator{
		mapper:  mapper,
		avail:   avail,
		store:   store,
		metrics: m,
		logger:  logger,
		phase:   PhaseIdle,
		locked:  map[uuid.UUID]struct{}{},
	}
}

// OnCommitted registers a callback invoked after each committed move.
func (o *Orchestrator) OnCommitted(fn func(*schedule.Booking)) {
	o.mu.Lock()
	o.onCommitted = fn
	o.mu.Unlock()
}

// Phase returns the current gesture phase.
func (o *Orchestrator) Phase() Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

// PointerDown begins a drag over the booking. The original slot is captured
// via inverse mapping for a potential rollback. Rejected while another
// gesture is unresolved or the booking awaits a commit.
func (o *Orchestrator) PointerDown(b schedule.Booking, x, y int) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.phase != PhaseIdle {
		return ErrBusy
	}
	if _, held := o.locked[b.ID]; held {
		return ErrBusy
	}
	origin, ok := o.mapper.SlotForTime(b.StartTime)
	if !ok {
		return errors.New("reschedule: booking is not on the displayed grid")
	}
	o.drag = &DragState{
		Booking:    b,
		OriginSlot: origin,
		StartX:     x,
		StartY:     y,
		CurrentX:   x,
		CurrentY:   y,
	}
	o.phase = PhaseDragging
	return nil
}

// PointerMove updates the preview position. Called for every pointer-move
// event, so it only writes two ints and allocates nothing.
func (o *Orchestrator) PointerMove(x, y int) {
	o.mu.Lock()
	if o.phase == PhaseDragging {
		o.drag.CurrentX = x
		o.drag.CurrentY = y
	}
	o.mu.Unlock()
}

// Preview returns the drag preview's top-left pixel, snapped to the hovered
// slot when over the grid, raw pointer position otherwise.
func (o *Orchestrator) Preview() (grid.Point, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.drag == nil {
		return grid.Point{}, false
	}
	if slot, ok := o.mapper.PositionToSlot(o.drag.CurrentX, o.drag.CurrentY); ok {
		return o.mapper.SlotToPosition(slot), true
	}
	return grid.Point{X: o.drag.CurrentX, Y: o.drag.CurrentY}, true
}

// PointerUp resolves the gesture. Drops outside the grid or on the original
// slot are silent no-ops. Otherwise the new interval is verified and either
// committed through the store or rolled back with an explanatory message.
func (o *Orchestrator) PointerUp(ctx context.Context, x, y int) (Result, error) {
	o.mu.Lock()
	if o.phase != PhaseDragging {
		o.mu.Unlock()
		return Result{}, errors.New("reschedule: pointer up without active drag")
	}
	drag := o.drag
	origin := o.mapper.SlotToPosition(drag.OriginSlot)

	target, ok := o.mapper.PositionToSlot(x, y)
	if !ok || target == drag.OriginSlot {
		o.drag = nil
		o.phase = PhaseIdle
		o.mu.Unlock()
		o.metrics.ObserveReschedule(string(OutcomeNoop))
		return Result{Outcome: OutcomeNoop, Origin: origin}, nil
	}

	newStart := o.mapper.SlotStart(target)
	o.phase = PhaseDropPending
	o.locked[drag.Booking.ID] = struct{}{}
	o.mu.Unlock()

	res := o.resolve(ctx, drag, newStart, origin)

	o.mu.Lock()
	delete(o.locked, drag.Booking.ID)
	o.drag = nil
	o.phase = PhaseIdle
	o.mu.Unlock()

	o.metrics.ObserveReschedule(string(res.Outcome))
	return res, nil
}

func (o *Orchestrator) resolve(ctx context.Context, drag *DragState, newStart time.Time, origin grid.Point) Result {
	b := drag.Booking
	dec, err := o.avail.CheckAvailability(ctx, availability.Request{
		OrgID:            b.OrgID,
		ProviderID:       b.ProviderID,
		StartTime:        newStart,
		ProcedureIDs:     b.ProcedureIDs,
		ExcludeBookingID: b.ID,
	})
	if err != nil {
		o.logger.Warn("reschedule: availability check failed",
			"booking_id", b.ID, "error", err)
		return Result{
			Outcome: OutcomeRolledBack,
			Message: "could not verify availability, try again",
			Origin:  origin,
		}
	}
	if !dec.Available {
		return Result{
			Outcome: OutcomeRolledBack,
			Message: dec.ConflictMessage,
			Origin:  origin,
		}
	}

	updated, err := o.store.Update(ctx, b.OrgID, b.ID, schedule.UpdateInput{StartTime: &newStart})
	if err != nil {
		if errors.Is(err, schedule.ErrCommitConflict) {
			o.metrics.ObserveCommitConflict()
			return Result{
				Outcome: OutcomeRolledBack,
				Message: "slot was taken by another session, pick a different time",
				Origin:  origin,
			}
		}
		o.logger.Error("reschedule: commit failed", "booking_id", b.ID, "error", err)
		return Result{
			Outcome: OutcomeRolledBack,
			Message: "could not save the new time, try again",
			Origin:  origin,
		}
	}

	o.logger.Info("booking rescheduled",
		"org_id", b.OrgID,
		"booking_id", b.ID,
		"new_start", newStart.UTC().Format(time.RFC3339),
	)
	o.mu.Lock()
	fn := o.onCommitted
	o.mu.Unlock()
	if fn != nil {
		fn(updated)
	}
	return Result{Outcome: OutcomeCommitted, Booking: updated, NewStart: newStart}
}
