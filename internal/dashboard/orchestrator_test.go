package dashboard

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/flood-risk-dashboard/internal/domain"
	"github.com/couchcryptid/flood-risk-dashboard/internal/observability"
)

func newTestOrchestrator(backend *fakeBackend, events domain.EventPublisher) (*Orchestrator, *observability.Metrics) {
	m := observability.NewMetricsForTesting()
	logger := discardLogger()
	sink := &eventSink{publisher: events, sessionID: "s1", metrics: m, logger: logger}
	return NewOrchestrator(backend, NewHistoryFetcher(backend, 30, logger), sink, m, logger), m
}

func TestOrchestrator_InitialState(t *testing.T) {
	o, _ := newTestOrchestrator(newFakeBackend(), nil)

	sel := o.Snapshot()
	assert.Nil(t, sel.Station)
	assert.False(t, sel.LoadingPrediction)
	assert.Nil(t, sel.Prediction)
	assert.Nil(t, sel.History)
	assert.Equal(t, PhaseIdle, sel.Phase())
}

func TestOrchestrator_SelectSuccessFetchesHistory(t *testing.T) {
	backend := newFakeBackend()
	a := station("A", -23.5, -46.6)
	at, _ := a.Coordinates()
	readings := domain.Readings{Temperature: 22.5, Humidity: 80, WindSpeed: 12, Precipitation: 4.2}
	backend.predictions[at.Key()] = predictReply{result: domain.NewPrediction(0.82, readings)}
	backend.histories[at.Key()] = historyReply{resp: domain.HistoryResponse{Records: []domain.TimeSeriesPoint{
		{Timestamp: "t1", Probability: 0.2},
		{Timestamp: "t2", Probability: 0.4},
	}}}
	o, m := newTestOrchestrator(backend, nil)

	require.NoError(t, o.Select(context.Background(), a))
	o.Wait()

	sel := o.Snapshot()
	require.NotNil(t, sel.Prediction)
	assert.Equal(t, PhaseSuccess, sel.Phase())
	assert.False(t, sel.LoadingPrediction)
	assert.InDelta(t, 0.82, sel.Prediction.Probability, 1e-9)
	assert.Equal(t, readings, sel.Prediction.Readings)
	require.NotNil(t, sel.History)
	assert.Equal(t, domain.TimeSeriesSeries, sel.History.Kind)
	assert.Len(t, sel.History.Series, 2)
	assert.Equal(t, 1, backend.historyCallCount())
	assert.InDelta(t, 1, testutil.ToFloat64(m.Selections), 0)
}

func TestOrchestrator_SelectClearsPreviousResultsImmediately(t *testing.T) {
	backend := newFakeBackend()
	a := station("A", -23.5, -46.6)
	b := station("B", -22.9, -43.2)
	o, _ := newTestOrchestrator(backend, nil)

	require.NoError(t, o.Select(context.Background(), a))
	o.Wait()
	require.NotNil(t, o.Snapshot().Prediction)

	atB, _ := b.Coordinates()
	gate := backend.gate(atB)
	require.NoError(t, o.Select(context.Background(), b))

	sel := o.Snapshot()
	assert.Equal(t, "B", sel.Station.Name)
	assert.True(t, sel.LoadingPrediction)
	assert.Nil(t, sel.Prediction)
	assert.Nil(t, sel.History)
	assert.Equal(t, PhaseRequesting, sel.Phase())

	close(gate)
	o.Wait()
	assert.False(t, o.Snapshot().LoadingPrediction)
}

func TestOrchestrator_PredictionFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"detail", &domain.UpstreamError{Endpoint: "predict", Status: 500, Detail: "Station offline"}, "Station offline"},
		{"no detail", &domain.UpstreamError{Endpoint: "predict", Status: 502}, FallbackPredictionError},
		{"transport", errors.New("dial tcp: connection refused"), FallbackPredictionError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newFakeBackend()
			a := station("A", -23.5, -46.6)
			at, _ := a.Coordinates()
			backend.predictions[at.Key()] = predictReply{err: tt.err}
			o, _ := newTestOrchestrator(backend, nil)

			require.NoError(t, o.Select(context.Background(), a))
			o.Wait()

			sel := o.Snapshot()
			require.NotNil(t, sel.Prediction)
			assert.Equal(t, PhaseFailed, sel.Phase())
			assert.Equal(t, tt.want, sel.Prediction.Error)
			assert.False(t, sel.LoadingPrediction)
			assert.Nil(t, sel.History)
			assert.Zero(t, backend.historyCallCount())
		})
	}
}

func TestOrchestrator_HistoryFailureKeepsPrediction(t *testing.T) {
	backend := newFakeBackend()
	a := station("A", -23.5, -46.6)
	at, _ := a.Coordinates()
	backend.predictions[at.Key()] = predictReply{result: domain.NewPrediction(0.3, domain.Readings{})}
	backend.histories[at.Key()] = historyReply{err: errors.New("timeout")}
	o, _ := newTestOrchestrator(backend, nil)

	require.NoError(t, o.Select(context.Background(), a))
	o.Wait()

	sel := o.Snapshot()
	assert.Equal(t, PhaseSuccess, sel.Phase())
	require.NotNil(t, sel.History)
	assert.Equal(t, domain.TimeSeriesError, sel.History.Kind)
}

func TestOrchestrator_StaleResponseIsDiscarded(t *testing.T) {
	backend := newFakeBackend()
	a := station("A", -23.5, -46.6)
	b := station("B", -22.9, -43.2)
	atA, _ := a.Coordinates()
	atB, _ := b.Coordinates()
	backend.predictions[atA.Key()] = predictReply{result: domain.NewPrediction(0.9, domain.Readings{})}
	backend.predictions[atB.Key()] = predictReply{result: domain.NewPrediction(0.2, domain.Readings{})}
	gateA := backend.gate(atA)
	o, m := newTestOrchestrator(backend, nil)

	require.NoError(t, o.Select(context.Background(), a))
	require.NoError(t, o.Select(context.Background(), b))

	// B resolves while A is still pending.
	require.Eventually(t, func() bool { return o.Snapshot().History != nil }, waitFor, tick)

	close(gateA)
	o.Wait()

	sel := o.Snapshot()
	assert.Equal(t, "B", sel.Station.Name)
	require.NotNil(t, sel.Prediction)
	assert.InDelta(t, 0.2, sel.Prediction.Probability, 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(m.StaleResponses.WithLabelValues("prediction")), 0)
	assert.Equal(t, 1, backend.historyCallCount())
}

func TestOrchestrator_StaleHistoryIsDiscarded(t *testing.T) {
	backend := newFakeBackend()
	a := station("A", -23.5, -46.6)
	b := station("B", -22.9, -43.2)
	atA, _ := a.Coordinates()
	atB, _ := b.Coordinates()
	backend.predictions[atA.Key()] = predictReply{result: domain.NewPrediction(0.9, domain.Readings{})}
	backend.predictions[atB.Key()] = predictReply{result: domain.NewPrediction(0.2, domain.Readings{})}
	backend.histories[atA.Key()] = historyReply{resp: domain.HistoryResponse{NoData: true}}
	seriesB := []domain.TimeSeriesPoint{{Timestamp: "t1", Probability: 0.1}, {Timestamp: "t2", Probability: 0.2}}
	backend.histories[atB.Key()] = historyReply{resp: domain.HistoryResponse{Records: seriesB}}
	gateA := backend.gateHistory(atA)
	o, m := newTestOrchestrator(backend, nil)

	require.NoError(t, o.Select(context.Background(), a))
	// A's prediction lands; its history stays in flight.
	require.Eventually(t, func() bool { return o.Snapshot().Prediction != nil }, waitFor, tick)
	require.Nil(t, o.Snapshot().History)

	require.NoError(t, o.Select(context.Background(), b))
	require.Eventually(t, func() bool { return o.Snapshot().History != nil }, waitFor, tick)

	close(gateA)
	o.Wait()

	sel := o.Snapshot()
	assert.Equal(t, "B", sel.Station.Name)
	require.NotNil(t, sel.Prediction)
	assert.InDelta(t, 0.2, sel.Prediction.Probability, 1e-9)
	require.NotNil(t, sel.History)
	assert.Equal(t, domain.TimeSeriesSeries, sel.History.Kind)
	assert.Equal(t, seriesB, sel.History.Series)
	assert.InDelta(t, 1, testutil.ToFloat64(m.StaleResponses.WithLabelValues("history")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(m.StaleResponses.WithLabelValues("prediction")), 0)
	assert.Equal(t, 2, backend.historyCallCount())
}

func TestOrchestrator_CloseResetsAndDropsLateResponses(t *testing.T) {
	backend := newFakeBackend()
	a := station("A", -23.5, -46.6)
	at, _ := a.Coordinates()
	gate := backend.gate(at)
	o, m := newTestOrchestrator(backend, nil)

	require.NoError(t, o.Select(context.Background(), a))
	o.Close(context.Background())

	sel := o.Snapshot()
	assert.Nil(t, sel.Station)
	assert.False(t, sel.LoadingPrediction)
	assert.Nil(t, sel.Prediction)
	assert.Nil(t, sel.History)

	close(gate)
	o.Wait()

	sel = o.Snapshot()
	assert.Nil(t, sel.Station)
	assert.Nil(t, sel.Prediction)
	assert.Equal(t, PhaseIdle, sel.Phase())
	assert.InDelta(t, 1, testutil.ToFloat64(m.StaleResponses.WithLabelValues("prediction")), 0)
	assert.Zero(t, backend.historyCallCount())
}

func TestOrchestrator_SelectWithoutCoordinates(t *testing.T) {
	o, _ := newTestOrchestrator(newFakeBackend(), nil)

	err := o.Select(context.Background(), domain.Station{Name: "nowhere", Lat: ptr(-10)})
	require.ErrorIs(t, err, ErrNoCoordinates)
	assert.Equal(t, PhaseIdle, o.Snapshot().Phase())
}

func TestOrchestrator_PublishesAppliedEvents(t *testing.T) {
	backend := newFakeBackend()
	a := station("A", -23.5, -46.6)
	at, _ := a.Coordinates()
	backend.predictions[at.Key()] = predictReply{result: domain.NewPrediction(0.6, domain.Readings{})}
	pub := &recordingPublisher{}
	o, m := newTestOrchestrator(backend, pub)

	require.NoError(t, o.Select(context.Background(), a))
	o.Wait()
	o.Close(context.Background())

	assert.Equal(t, []domain.ActivityKind{
		domain.ActivitySelection,
		domain.ActivityPrediction,
		domain.ActivityHistory,
		domain.ActivityClose,
	}, pub.kinds())

	pred := pub.events[1]
	assert.Equal(t, "s1", pred.SessionID)
	assert.Equal(t, "success", pred.Outcome)
	assert.Equal(t, domain.TierMedium, pred.Tier)
	require.NotNil(t, pred.Probability)
	assert.InDelta(t, 0.6, *pred.Probability, 1e-9)
	assert.Equal(t, "no_data", pub.events[2].Outcome)
	assert.InDelta(t, 4, testutil.ToFloat64(m.EventsPublished), 0)
}

func TestOrchestrator_PublishFailureIsNotFatal(t *testing.T) {
	backend := newFakeBackend()
	pub := &recordingPublisher{err: errors.New("broker down")}
	o, m := newTestOrchestrator(backend, pub)

	require.NoError(t, o.Select(context.Background(), station("A", -23.5, -46.6)))
	o.Wait()

	assert.Equal(t, PhaseSuccess, o.Snapshot().Phase())
	assert.Positive(t, testutil.ToFloat64(m.EventPublishFails))
}
