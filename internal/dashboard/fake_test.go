package dashboard

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/couchcryptid/flood-risk-dashboard/internal/domain"
	"github.com/couchcryptid/flood-risk-dashboard/internal/observability"
)

type predictReply struct {
	result domain.PredictionResult
	err    error
}

type historyReply struct {
	resp domain.HistoryResponse
	err  error
}

// fakeBackend answers from canned replies keyed by coordinate. A gate
// registered for a coordinate holds the prediction (or the history request)
// until it is closed.
type fakeBackend struct {
	mu           sync.Mutex
	stations     []domain.Station
	stationsErr  error
	evaluation   domain.EvaluationMetrics
	evaluateErr  error
	predictions  map[string]predictReply
	histories    map[string]historyReply
	gates        map[string]chan struct{}
	historyGates map[string]chan struct{}
	historyCalls []domain.Coordinates
	historyLimit int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		predictions:  map[string]predictReply{},
		histories:    map[string]historyReply{},
		gates:        map[string]chan struct{}{},
		historyGates: map[string]chan struct{}{},
		evaluation:   domain.EvaluationMetrics{},
	}
}

func (f *fakeBackend) ListStations(context.Context) ([]domain.Station, error) {
	return f.stations, f.stationsErr
}

func (f *fakeBackend) Predict(ctx context.Context, at domain.Coordinates) (domain.PredictionResult, error) {
	f.mu.Lock()
	gate := f.gates[at.Key()]
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return domain.PredictionResult{}, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.predictions[at.Key()]
	if !ok {
		return domain.NewPrediction(0.1, domain.Readings{}), nil
	}
	return r.result, r.err
}

func (f *fakeBackend) History(ctx context.Context, at domain.Coordinates, limit int) (domain.HistoryResponse, error) {
	f.mu.Lock()
	gate := f.historyGates[at.Key()]
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return domain.HistoryResponse{}, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.historyCalls = append(f.historyCalls, at)
	f.historyLimit = limit
	r, ok := f.histories[at.Key()]
	if !ok {
		return domain.HistoryResponse{NoData: true}, nil
	}
	return r.resp, r.err
}

func (f *fakeBackend) Evaluate(context.Context) (domain.EvaluationMetrics, error) {
	return f.evaluation, f.evaluateErr
}

func (f *fakeBackend) gate(at domain.Coordinates) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[at.Key()] = ch
	return ch
}

func (f *fakeBackend) gateHistory(at domain.Coordinates) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.historyGates[at.Key()] = ch
	return ch
}

func (f *fakeBackend) historyCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.historyCalls)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.ActivityEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev domain.ActivityEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) kinds() []domain.ActivityKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	kinds := make([]domain.ActivityKind, len(p.events))
	for i, ev := range p.events {
		kinds[i] = ev.Kind
	}
	return kinds
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ptr(v float64) *float64 { return &v }

func station(name string, lat, lon float64) domain.Station {
	return domain.Station{Name: name, Lat: ptr(lat), Lon: ptr(lon)}
}

func newTestView(backend *fakeBackend, events domain.EventPublisher) (*ViewState, *observability.Metrics) {
	m := observability.NewMetricsForTesting()
	v := NewViewState("test-session", Deps{
		Backend:      backend,
		Events:       events,
		Metrics:      m,
		Logger:       discardLogger(),
		HistoryLimit: domain.DefaultHistoryLimit,
		GuidancePath: "/dicas",
	})
	return v, m
}
