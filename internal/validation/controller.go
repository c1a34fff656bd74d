package validation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clinicdesk/clinicdesk/internal/availability"
	"github.com/clinicdesk/clinicdesk/internal/catalog"
	"github.com/clinicdesk/clinicdesk/pkg/logging"
)

// DefaultDebounce is how long input must stay quiet before a check fires.
const DefaultDebounce = 300 * time.Millisecond

// DefaultTimeout bounds each availability call. A timeout is a failure, not
// an available slot.
const DefaultTimeout = 10 * time.Second

// Phase describes what the form should show for the watched inputs.
type Phase string

const (
	// PhaseIdle means there is nothing to report: inputs incomplete or just
	// changed.
	PhaseIdle Phase = "idle"
	// PhaseChecking means a debounce timer or availability call is pending.
	PhaseChecking Phase = "checking"
	// PhaseAvailable means the latest check confirmed the slot is free.
	PhaseAvailable Phase = "available"
	// PhaseConflict means the latest check found an overlap; submission must
	// stay blocked until the inputs change.
	PhaseConflict Phase = "conflict"
	// PhaseError means the check could not be completed; the slot is
	// unverified, never assumed free.
	PhaseError Phase = "error"
)

// State is the inline validation outcome surfaced to the form.
type State struct {
	Phase    Phase
	Message  string
	Decision *availability.Decision
}

// Checker issues the availability call.
type Checker interface {
	CheckAvailability(ctx context.Context, req availability.Request) (availability.Decision, error)
}

// Options configures a Controller.
type Options struct {
	Debounce time.Duration
	Timeout  time.Duration
	// OnState receives every state change. Called without internal locks held.
	OnState func(State)
	Logger  *logging.Logger
}

// Controller watches the three booking-form inputs (start time, provider,
// procedures) and issues debounced availability checks. Results are gated by
// a monotonically increasing sequence number so a slow stale response can
// never overwrite a fresher one.
type Controller struct {
	checker  Checker
	debounce time.Duration
	timeout  time.Duration
	onState  func(State)
	logger   *logging.Logger

	mu           sync.Mutex
	orgID        string
	providerID   uuid.UUID
	startTime    time.Time
	procedureIDs []uuid.UUID
	excludeID    uuid.UUID

	timer  *time.Timer
	seq    uint64
	cancel context.CancelFunc
	state  State
	closed bool
}

// NewController creates a controller for one form instance.
func NewController(orgID string, checker Checker, opts Options) *Controller {
	if checker == nil {
		panic("validation: checker required")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	return &Controller{
		checker:  checker,
		debounce: opts.Debounce,
		timeout:  opts.Timeout,
		onState:  opts.OnState,
		logger:   opts.Logger,
		orgID:    orgID,
		state:    State{Phase: PhaseIdle},
	}
}

// SetStartTime records a start-time edit and restarts the debounce window.
func (c *Controller) SetStartTime(t time.Time) {
	c.mu.Lock()
	c.startTime = t
	s := c.inputChangedLocked()
	c.mu.Unlock()
	c.emit(s)
}

// SetProvider records a provider edit and restarts the debounce window.
func (c *Controller) SetProvider(id uuid.UUID) {
	c.mu.Lock()
	c.providerID = id
	s := c.inputChangedLocked()
	c.mu.Unlock()
	c.emit(s)
}

// SetProcedures records a procedure-selection edit and restarts the debounce
// window.
func (c *Controller) SetProcedures(ids []uuid.UUID) {
	c.mu.Lock()
	c.procedureIDs = append([]uuid.UUID(nil), ids...)
	s := c.inputChangedLocked()
	c.mu.Unlock()
	c.emit(s)
}

// SetExcludeBooking marks the booking being edited so it does not conflict
// with itself. Set once when the form opens; does not trigger validation.
func (c *Controller) SetExcludeBooking(id uuid.UUID) {
	c.mu.Lock()
	c.excludeID = id
	c.mu.Unlock()
}

// State returns the current validation state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Close suppresses the pending timer and any in-flight result. Safe to call
// more than once; the controller is dead afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.seq++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// inputChangedLocked clears prior validation state, invalidates in-flight
// results, and arms a fresh debounce timer when all inputs are present.
func (c *Controller) inputChangedLocked() State {
	c.seq++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.closed {
		return c.state
	}
	if c.providerID == uuid.Nil || c.startTime.IsZero() || len(c.procedureIDs) == 0 {
		c.state = State{Phase: PhaseIdle}
		return c.state
	}
	c.state = State{Phase: PhaseChecking}
	c.timer = time.AfterFunc(c.debounce, c.fire)
	return c.state
}

// fire issues exactly one availability call for the values captured at timer
// expiry, tagged with the latest sequence number.
func (c *Controller) fire() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	seq := c.seq
	req := availability.Request{
		OrgID:            c.orgID,
		ProviderID:       c.providerID,
		StartTime:        c.startTime,
		ProcedureIDs:     append([]uuid.UUID(nil), c.procedureIDs...),
		ExcludeBookingID: c.excludeID,
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	c.cancel = cancel
	c.mu.Unlock()

	dec, err := c.checker.CheckAvailability(ctx, req)
	cancel()

	c.mu.Lock()
	if c.closed || seq != c.seq {
		c.mu.Unlock()
		// Stale response: a newer edit superseded this call. Not an error.
		c.logger.Debug("validation: stale availability result discarded", "seq", seq)
		return
	}
	c.cancel = nil
	switch {
	case err != nil && errors.Is(err, catalog.ErrUnknownProcedure):
		c.state = State{Phase: PhaseError, Message: "selected procedure no longer exists"}
	case err != nil:
		c.state = State{Phase: PhaseError, Message: "could not verify availability, try again"}
	case dec.Available:
		c.state = State{Phase: PhaseAvailable, Decision: &dec}
	default:
		c.state = State{Phase: PhaseConflict, Message: dec.ConflictMessage, Decision: &dec}
	}
	s := c.state
	c.mu.Unlock()
	c.emit(s)
}

func (c *Controller) emit(s State) {
	if c.onState != nil {
		c.onState(s)
	}
}
