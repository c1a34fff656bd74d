package reschedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicdesk/clinicdesk/internal/availability"
	"github.com/clinicdesk/clinicdesk/internal/grid"
	"github.com/clinicdesk/clinicdesk/internal/schedule"
)

type fakeAvailability struct {
	decision availability.Decision
	err      error
	lastReq  availability.Request
}

func (f *fakeAvailability) CheckAvailability(_ context.Context, req availability.Request) (availability.Decision, error) {
	f.lastReq = req
	return f.decision, f.err
}

type fakeBookings struct {
	updated *schedule.Booking
	err     error
	lastID  uuid.UUID
	lastIn  schedule.UpdateInput
}

func (f *fakeBookings) Update(_ context.Context, _ string, id uuid.UUID, input schedule.UpdateInput) (*schedule.Booking, error) {
	f.lastID = id
	f.lastIn = input
	return f.updated, f.err
}

func dayGeometry() grid.Geometry {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	var slots []time.Duration
	for offset := 8 * time.Hour; offset < 18*time.Hour; offset += 15 * time.Minute {
		slots = append(slots, offset)
	}
	return grid.Geometry{
		ColumnWidth:  140,
		RowHeight:    40,
		HeaderOffset: 60,
		Days:         []time.Time{day},
		SlotTimes:    slots,
	}
}

func testBooking() schedule.Booking {
	return schedule.Booking{
		ID:              uuid.New(),
		OrgID:           "org-1",
		PatientID:       uuid.New(),
		ProviderID:      uuid.New(),
		ProcedureIDs:    []uuid.UUID{uuid.New()},
		StartTime:       time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		DurationMinutes: 45,
		Status:          schedule.StatusScheduled,
	}
}

// pixelFor returns a point inside the cell for the given slot offset.
func pixelFor(m *grid.Mapper, t *testing.T, start time.Time) (int, int) {
	t.Helper()
	slot, ok := m.SlotForTime(start)
	require.True(t, ok)
	p := m.SlotToPosition(slot)
	return p.X + 5, p.Y + 5
}

func TestDragCommitsVerifiedMove(t *testing.T) {
	mapper := grid.NewMapper(dayGeometry())
	b := testBooking()
	newStart := time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC)
	moved := b
	moved.StartTime = newStart

	avail := &fakeAvailability{decision: availability.Decision{Available: true}}
	store := &fakeBookings{updated: &moved}
	o := New(mapper, avail, store, nil, nil)

	var committed *schedule.Booking
	o.OnCommitted(func(updated *schedule.Booking) { committed = updated })

	require.NoError(t, o.PointerDown(b, 10, 400))
	assert.Equal(t, PhaseDragging, o.Phase())

	x, y := pixelFor(mapper, t, newStart)
	o.PointerMove(x, y)

	res, err := o.PointerUp(context.Background(), x, y)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCommitted, res.Outcome)
	assert.True(t, res.NewStart.Equal(newStart))
	require.NotNil(t, res.Booking)
	assert.True(t, res.Booking.StartTime.Equal(newStart))
	// Duration is derived from the procedures and must survive the move.
	assert.Equal(t, 45, res.Booking.DurationMinutes)
	assert.Equal(t, PhaseIdle, o.Phase())

	// The store received only a start-time patch.
	assert.Equal(t, b.ID, store.lastID)
	require.NotNil(t, store.lastIn.StartTime)
	assert.True(t, store.lastIn.StartTime.Equal(newStart))
	assert.Nil(t, store.lastIn.Status)
	assert.Empty(t, store.lastIn.ProcedureIDs)

	// The availability check excluded the booking being moved.
	assert.Equal(t, b.ID, avail.lastReq.ExcludeBookingID)

	require.NotNil(t, committed)
	assert.Equal(t, moved.ID, committed.ID)
}

func TestDragRollsBackOnConflict(t *testing.T) {
	mapper := grid.NewMapper(dayGeometry())
	b := testBooking()

	avail := &fakeAvailability{decision: availability.Decision{
		ConflictMessage: "provider already booked 11:00–12:00",
	}}
	store := &fakeBookings{}
	o := New(mapper, avail, store, nil, nil)

	require.NoError(t, o.PointerDown(b, 10, 400))
	originSlot, ok := mapper.SlotForTime(b.StartTime)
	require.True(t, ok)

	x, y := pixelFor(mapper, t, time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC))
	res, err := o.PointerUp(context.Background(), x, y)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRolledBack, res.Outcome)
	assert.Equal(t, "provider already booked 11:00–12:00", res.Message)
	assert.Equal(t, mapper.SlotToPosition(originSlot), res.Origin)
	assert.Equal(t, uuid.Nil, store.lastID, "store must not be called on conflict")
	assert.Equal(t, PhaseIdle, o.Phase())
}

func TestDragRollsBackWhenCheckFails(t *testing.T) {
	mapper := grid.NewMapper(dayGeometry())
	b := testBooking()

	avail := &fakeAvailability{err: availability.ErrAvailabilityUnknown}
	store := &fakeBookings{}
	o := New(mapper, avail, store, nil, nil)

	require.NoError(t, o.PointerDown(b, 10, 400))
	x, y := pixelFor(mapper, t, time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC))
	res, err := o.PointerUp(context.Background(), x, y)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRolledBack, res.Outcome)
	assert.Equal(t, "could not verify availability, try again", res.Message)
	assert.Equal(t, uuid.Nil, store.lastID)
}

func TestDragRollsBackOnCommitConflict(t *testing.T) {
	mapper := grid.NewMapper(dayGeometry())
	b := testBooking()

	avail := &fakeAvailability{decision: availability.Decision{Available: true}}
	store := &fakeBookings{err: schedule.ErrCommitConflict}
	o := New(mapper, avail, store, nil, nil)

	require.NoError(t, o.PointerDown(b, 10, 400))
	x, y := pixelFor(mapper, t, time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC))
	res, err := o.PointerUp(context.Background(), x, y)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRolledBack, res.Outcome)
	assert.Equal(t, "slot was taken by another session, pick a different time", res.Message)
}

func TestDropOutsideGridIsNoop(t *testing.T) {
	mapper := grid.NewMapper(dayGeometry())
	b := testBooking()

	avail := &fakeAvailability{}
	store := &fakeBookings{}
	o := New(mapper, avail, store, nil, nil)

	require.NoError(t, o.PointerDown(b, 10, 400))
	res, err := o.PointerUp(context.Background(), -50, 400)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoop, res.Outcome)
	assert.Equal(t, uuid.Nil, store.lastID)
	assert.Equal(t, PhaseIdle, o.Phase())
}

func TestDropOnOriginalSlotIsNoop(t *testing.T) {
	mapper := grid.NewMapper(dayGeometry())
	b := testBooking()

	o := New(mapper, &fakeAvailability{}, &fakeBookings{}, nil, nil)

	x, y := pixelFor(mapper, t, b.StartTime)
	require.NoError(t, o.PointerDown(b, x, y))
	res, err := o.PointerUp(context.Background(), x+3, y+3)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoop, res.Outcome)
}

func TestPointerDownWhileDraggingIsRejected(t *testing.T) {
	mapper := grid.NewMapper(dayGeometry())
	o := New(mapper, &fakeAvailability{}, &fakeBookings{}, nil, nil)

	require.NoError(t, o.PointerDown(testBooking(), 10, 400))
	err := o.PointerDown(testBooking(), 10, 400)
	assert.ErrorIs(t, err, ErrBusy)
}

func TestPointerDownOffGridIsRejected(t *testing.T) {
	mapper := grid.NewMapper(dayGeometry())
	o := New(mapper, &fakeAvailability{}, &fakeBookings{}, nil, nil)

	b := testBooking()
	b.StartTime = time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	err := o.PointerDown(b, 10, 400)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrBusy)
	assert.Equal(t, PhaseIdle, o.Phase())
}

func TestPreviewSnapsToHoveredSlot(t *testing.T) {
	mapper := grid.NewMapper(dayGeometry())
	o := New(mapper, &fakeAvailability{}, &fakeBookings{}, nil, nil)

	b := testBooking()
	require.NoError(t, o.PointerDown(b, 10, 400))

	o.PointerMove(17, 133)
	p, ok := o.Preview()
	require.True(t, ok)
	slot, found := mapper.PositionToSlot(17, 133)
	require.True(t, found)
	assert.Equal(t, mapper.SlotToPosition(slot), p)

	// Off-grid positions track the raw pointer.
	o.PointerMove(-30, 400)
	p, ok = o.Preview()
	require.True(t, ok)
	assert.Equal(t, grid.Point{X: -30, Y: 400}, p)
}

func TestPointerUpWithoutDrag(t *testing.T) {
	mapper := grid.NewMapper(dayGeometry())
	o := New(mapper, &fakeAvailability{}, &fakeBookings{}, nil, nil)

	_, err := o.PointerUp(context.Background(), 10, 400)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrBusy))
}
