package catalog

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicdesk/clinicdesk/pkg/logging"
)

type countingSource struct {
	procs []Procedure
	err   error
	calls int
}

func (s *countingSource) ListByOrg(_ context.Context, _ string) ([]Procedure, error) {
	s.calls++
	return s.procs, s.err
}

func newTestCache(t *testing.T, source Source) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, source, 5*time.Minute, quietLogger())
}

func quietLogger() *logging.Logger {
	return logging.NewWithWriter("error", io.Discard)
}

func TestCacheReadThrough(t *testing.T) {
	source := &countingSource{procs: []Procedure{
		{ID: uuid.New(), OrgID: "org-1", Name: "Cleaning", DurationMinutes: 30, PriceCents: 10000},
	}}
	cache := newTestCache(t, source)

	first, err := cache.ListByOrg(context.Background(), "org-1")
	require.NoError(t, err)
	assert.Len(t, first, 1)
	assert.Equal(t, 1, source.calls)

	// Second read is served from the cache.
	second, err := cache.ListByOrg(context.Background(), "org-1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, source.calls)
}

func TestCacheInvalidateForcesRefetch(t *testing.T) {
	source := &countingSource{procs: []Procedure{
		{ID: uuid.New(), OrgID: "org-1", Name: "Cleaning", DurationMinutes: 30},
	}}
	cache := newTestCache(t, source)

	_, err := cache.ListByOrg(context.Background(), "org-1")
	require.NoError(t, err)
	require.NoError(t, cache.Invalidate(context.Background(), "org-1"))

	_, err = cache.ListByOrg(context.Background(), "org-1")
	require.NoError(t, err)
	assert.Equal(t, 2, source.calls)
}

func TestCacheServesSourceWhenRedisDown(t *testing.T) {
	source := &countingSource{procs: []Procedure{
		{ID: uuid.New(), OrgID: "org-1", Name: "Cleaning", DurationMinutes: 30, PriceCents: 10000},
	}}
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	cache := NewCache(client, source, 5*time.Minute, quietLogger())

	// A redis outage must not fail catalog reads while the source is healthy.
	procs, err := cache.ListByOrg(context.Background(), "org-1")
	require.NoError(t, err)
	assert.Len(t, procs, 1)
	assert.Equal(t, 1, source.calls)

	// Every read keeps hitting the source until redis comes back.
	_, err = cache.ListByOrg(context.Background(), "org-1")
	require.NoError(t, err)
	assert.Equal(t, 2, source.calls)

	// Resolve rides the same degraded path.
	resolved, err := cache.Resolve(context.Background(), "org-1", []uuid.UUID{source.procs[0].ID})
	require.NoError(t, err)
	assert.Len(t, resolved, 1)
}

func TestCacheSourceErrorPropagates(t *testing.T) {
	wantErr := errors.New("db down")
	cache := newTestCache(t, &countingSource{err: wantErr})

	_, err := cache.ListByOrg(context.Background(), "org-1")
	assert.ErrorIs(t, err, wantErr)
}

func TestResolvePreservesRequestOrder(t *testing.T) {
	a := Procedure{ID: uuid.New(), Name: "Exam", DurationMinutes: 30, PriceCents: 10000}
	b := Procedure{ID: uuid.New(), Name: "Filling", DurationMinutes: 45, PriceCents: 15000}
	cache := newTestCache(t, &countingSource{procs: []Procedure{a, b}})

	resolved, err := cache.Resolve(context.Background(), "org-1", []uuid.UUID{b.ID, a.ID})
	require.NoError(t, err)
	require.Len(t, resolved, 2)
	assert.Equal(t, b.ID, resolved[0].ID)
	assert.Equal(t, a.ID, resolved[1].ID)
}

func TestResolveUnknownProcedure(t *testing.T) {
	cache := newTestCache(t, &countingSource{procs: []Procedure{
		{ID: uuid.New(), Name: "Exam", DurationMinutes: 30},
	}})

	_, err := cache.Resolve(context.Background(), "org-1", []uuid.UUID{uuid.New()})
	assert.ErrorIs(t, err, ErrUnknownProcedure)
}
