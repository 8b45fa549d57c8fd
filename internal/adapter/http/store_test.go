package http

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/flood-risk-dashboard/internal/dashboard"
	"github.com/couchcryptid/flood-risk-dashboard/internal/domain"
	"github.com/couchcryptid/flood-risk-dashboard/internal/observability"
)

type emptyBackend struct{}

func (emptyBackend) ListStations(context.Context) ([]domain.Station, error) { return nil, nil }
func (emptyBackend) Predict(context.Context, domain.Coordinates) (domain.PredictionResult, error) {
	return domain.PredictionResult{}, nil
}
func (emptyBackend) History(context.Context, domain.Coordinates, int) (domain.HistoryResponse, error) {
	return domain.HistoryResponse{NoData: true}, nil
}
func (emptyBackend) Evaluate(context.Context) (domain.EvaluationMetrics, error) {
	return domain.EvaluationMetrics{}, nil
}

func newTestStore(t *testing.T, maxEntries int) (*SessionStore, *observability.Metrics) {
	t.Helper()
	m := observability.NewMetricsForTesting()
	store := NewSessionStore(context.Background(), maxEntries, dashboard.Deps{
		Backend: emptyBackend{},
		Metrics: m,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return store, m
}

func TestSessionStore_CreateAndGet(t *testing.T) {
	store, m := newTestStore(t, 10)

	s := store.Create()
	got, ok := store.Get(s.ID())

	require.True(t, ok)
	assert.Same(t, s, got)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ActiveSessions), 0)
}

func TestSessionStore_IDsAreUnique(t *testing.T) {
	store, _ := newTestStore(t, 10)
	assert.NotEqual(t, store.Create().ID(), store.Create().ID())
}

func TestSessionStore_Eviction(t *testing.T) {
	store, m := newTestStore(t, 2)

	a := store.Create()
	b := store.Create()
	// Touch a so b becomes least recently used.
	_, ok := store.Get(a.ID())
	require.True(t, ok)
	c := store.Create()

	_, ok = store.Get(b.ID())
	assert.False(t, ok, "b should have been evicted")
	_, ok = store.Get(a.ID())
	assert.True(t, ok)
	_, ok = store.Get(c.ID())
	assert.True(t, ok)

	require.ErrorIs(t, b.Context().Err(), context.Canceled)
	assert.NoError(t, a.Context().Err())
	assert.Equal(t, 2, store.Len())
	assert.InDelta(t, 2, testutil.ToFloat64(m.ActiveSessions), 0)
}

func TestSessionStore_Delete(t *testing.T) {
	store, m := newTestStore(t, 10)
	s := store.Create()

	assert.True(t, store.Delete(s.ID()))
	assert.False(t, store.Delete(s.ID()))

	_, ok := store.Get(s.ID())
	assert.False(t, ok)
	require.ErrorIs(t, s.Context().Err(), context.Canceled)
	assert.InDelta(t, 0, testutil.ToFloat64(m.ActiveSessions), 0)
}
