package schedule

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func booking(providerID uuid.UUID, start string, mins int, status Status) Booking {
	return Booking{
		ID:              uuid.New(),
		OrgID:           "org-1",
		ProviderID:      providerID,
		StartTime:       mustTime(start),
		DurationMinutes: mins,
		Status:          status,
	}
}

func TestConflictsOverlapDetection(t *testing.T) {
	provider := uuid.New()
	existing := []Booking{booking(provider, "2026-03-02T10:00:00Z", 60, StatusScheduled)}

	tests := []struct {
		name     string
		start    string
		mins     int
		conflict bool
	}{
		{"fully inside", "2026-03-02T10:15:00Z", 30, true},
		{"overlaps tail", "2026-03-02T10:30:00Z", 60, true},
		{"overlaps head", "2026-03-02T09:30:00Z", 45, true},
		{"covers existing", "2026-03-02T09:00:00Z", 180, true},
		{"identical interval", "2026-03-02T10:00:00Z", 60, true},
		{"starts at existing end", "2026-03-02T11:00:00Z", 30, false},
		{"ends at existing start", "2026-03-02T09:30:00Z", 30, false},
		{"well before", "2026-03-02T08:00:00Z", 60, false},
		{"well after", "2026-03-02T13:00:00Z", 60, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Conflicts(CandidateSlot{
				ProviderID:      provider,
				StartTime:       mustTime(tt.start),
				DurationMinutes: tt.mins,
			}, existing)
			assert.Equal(t, tt.conflict, res.HasConflict)
			if tt.conflict {
				assert.Equal(t, existing[0].ID, res.ConflictingBookingID)
				assert.NotEmpty(t, res.Message)
			} else {
				assert.Empty(t, res.Message)
			}
		})
	}
}

func TestConflictsIsSymmetric(t *testing.T) {
	provider := uuid.New()
	a := booking(provider, "2026-03-02T10:00:00Z", 60, StatusScheduled)
	b := booking(provider, "2026-03-02T10:30:00Z", 60, StatusScheduled)

	fromA := Conflicts(CandidateSlot{ProviderID: provider, StartTime: a.StartTime, DurationMinutes: a.DurationMinutes}, []Booking{b})
	fromB := Conflicts(CandidateSlot{ProviderID: provider, StartTime: b.StartTime, DurationMinutes: b.DurationMinutes}, []Booking{a})
	assert.True(t, fromA.HasConflict)
	assert.True(t, fromB.HasConflict)
}

func TestConflictsIgnoresOtherProviders(t *testing.T) {
	existing := []Booking{booking(uuid.New(), "2026-03-02T10:00:00Z", 60, StatusScheduled)}
	res := Conflicts(CandidateSlot{
		ProviderID:      uuid.New(),
		StartTime:       mustTime("2026-03-02T10:00:00Z"),
		DurationMinutes: 60,
	}, existing)
	assert.False(t, res.HasConflict)
}

func TestConflictsIgnoresCancelled(t *testing.T) {
	provider := uuid.New()
	existing := []Booking{
		booking(provider, "2026-03-02T10:00:00Z", 60, StatusCancelled),
	}
	res := Conflicts(CandidateSlot{
		ProviderID:      provider,
		StartTime:       mustTime("2026-03-02T10:00:00Z"),
		DurationMinutes: 60,
	}, existing)
	assert.False(t, res.HasConflict)
}

func TestConflictsCompletedStillOccupiesSlot(t *testing.T) {
	provider := uuid.New()
	existing := []Booking{booking(provider, "2026-03-02T10:00:00Z", 60, StatusCompleted)}
	res := Conflicts(CandidateSlot{
		ProviderID:      provider,
		StartTime:       mustTime("2026-03-02T10:30:00Z"),
		DurationMinutes: 30,
	}, existing)
	assert.True(t, res.HasConflict)
}

func TestConflictsExcludesBookingBeingEdited(t *testing.T) {
	provider := uuid.New()
	own := booking(provider, "2026-03-02T10:00:00Z", 60, StatusScheduled)
	other := booking(provider, "2026-03-02T11:00:00Z", 60, StatusScheduled)

	// Moving own booking 30 minutes later overlaps only itself.
	res := Conflicts(CandidateSlot{
		ProviderID:       provider,
		StartTime:        mustTime("2026-03-02T10:30:00Z"),
		DurationMinutes:  30,
		ExcludeBookingID: own.ID,
	}, []Booking{own, other})
	assert.False(t, res.HasConflict)

	// Without the exclusion the same move conflicts with itself.
	res = Conflicts(CandidateSlot{
		ProviderID:      provider,
		StartTime:       mustTime("2026-03-02T10:30:00Z"),
		DurationMinutes: 30,
	}, []Booking{own, other})
	assert.True(t, res.HasConflict)
	assert.Equal(t, own.ID, res.ConflictingBookingID)
}

func TestConflictsZeroDuration(t *testing.T) {
	provider := uuid.New()
	existing := []Booking{booking(provider, "2026-03-02T10:00:00Z", 60, StatusScheduled)}
	res := Conflicts(CandidateSlot{
		ProviderID:      provider,
		StartTime:       mustTime("2026-03-02T10:00:00Z"),
		DurationMinutes: 0,
	}, existing)
	assert.False(t, res.HasConflict)
}

func TestConflictMessageNamesTheInterval(t *testing.T) {
	provider := uuid.New()
	existing := []Booking{booking(provider, "2026-03-02T10:00:00Z", 60, StatusScheduled)}
	res := Conflicts(CandidateSlot{
		ProviderID:      provider,
		StartTime:       mustTime("2026-03-02T10:30:00Z"),
		DurationMinutes: 30,
	}, existing)
	require.True(t, res.HasConflict)
	assert.Equal(t, "provider already booked 10:00–11:00", res.Message)
}
