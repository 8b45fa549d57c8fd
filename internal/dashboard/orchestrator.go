package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/couchcryptid/flood-risk-dashboard/internal/domain"
	"github.com/couchcryptid/flood-risk-dashboard/internal/observability"
)

// FallbackPredictionError is shown when a prediction fails without a usable detail.
const FallbackPredictionError = "Error connecting to the prediction API."

var (
	// ErrNoCoordinates is returned when selecting a station that has no position.
	ErrNoCoordinates = errors.New("station has no coordinates")
	// ErrUnknownStation is returned when a selection index is outside the inventory.
	ErrUnknownStation = errors.New("unknown station")
)

// Phase is the lifecycle position of the current selection.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseRequesting Phase = "requesting"
	PhaseSuccess    Phase = "success"
	PhaseFailed     Phase = "failed"
)

// Selection is a point-in-time copy of the orchestrator state. Station is nil
// when nothing is selected; Prediction and History are nil until their
// responses arrive.
type Selection struct {
	Seq               uint64
	Station           *domain.Station
	LoadingPrediction bool
	Prediction        *domain.PredictionResult
	History           *domain.TimeSeriesState
}

// Phase derives the lifecycle phase from the populated fields.
func (s Selection) Phase() Phase {
	switch {
	case s.Station == nil:
		return PhaseIdle
	case s.LoadingPrediction || s.Prediction == nil:
		return PhaseRequesting
	case s.Prediction.Failed():
		return PhaseFailed
	default:
		return PhaseSuccess
	}
}

// Orchestrator runs the selection lifecycle: it clears prior results, requests
// a prediction, and on success fetches the location history. Every selection
// or deselection bumps a sequence number; responses tagged with an older
// sequence are dropped so they can never overwrite a newer selection.
type Orchestrator struct {
	predictor domain.Predictor
	history   *HistoryFetcher
	events    *eventSink
	metrics   *observability.Metrics
	logger    *slog.Logger

	mu    sync.Mutex
	seq   uint64
	sel   Selection
	tasks sync.WaitGroup
}

// NewOrchestrator creates an Orchestrator with nothing selected.
func NewOrchestrator(predictor domain.Predictor, history *HistoryFetcher, events *eventSink, metrics *observability.Metrics, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		predictor: predictor,
		history:   history,
		events:    events,
		metrics:   metrics,
		logger:    logger,
	}
}

// Select makes station current and starts its prediction in the background.
// Previous results are cleared before Select returns. ctx bounds the
// background requests, so it should outlive the caller's request.
func (o *Orchestrator) Select(ctx context.Context, station domain.Station) error {
	at, ok := station.Coordinates()
	if !ok {
		return ErrNoCoordinates
	}

	o.mu.Lock()
	o.seq++
	seq := o.seq
	o.sel = Selection{Seq: seq, Station: &station, LoadingPrediction: true}
	o.tasks.Add(1)
	o.mu.Unlock()

	o.metrics.Selections.Inc()
	o.logger.Debug("station selected", "station", station.Name, "seq", seq)
	o.events.emit(ctx, domain.ActivityEvent{Kind: domain.ActivitySelection, Station: station.Name, Location: &at})

	go func() {
		defer o.tasks.Done()
		o.runPrediction(ctx, seq, station, at)
	}()
	return nil
}

// Close clears the selection. Responses still in flight for it are discarded.
func (o *Orchestrator) Close(ctx context.Context) {
	o.mu.Lock()
	prev := o.sel.Station
	o.seq++
	o.sel = Selection{Seq: o.seq}
	o.mu.Unlock()

	if prev != nil {
		o.events.emit(ctx, domain.ActivityEvent{Kind: domain.ActivityClose, Station: prev.Name, Location: locationOf(*prev)})
	}
}

// Snapshot returns the current selection state.
func (o *Orchestrator) Snapshot() Selection {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sel
}

// Wait blocks until every background request started so far has settled.
func (o *Orchestrator) Wait() {
	o.tasks.Wait()
}

func (o *Orchestrator) runPrediction(ctx context.Context, seq uint64, station domain.Station, at domain.Coordinates) {
	result, err := o.predictor.Predict(ctx, at)
	if err != nil {
		msg := FallbackPredictionError
		if detail, ok := domain.FailureDetail(err); ok {
			msg = detail
		}
		o.logger.Warn("prediction failed", "station", station.Name, "error", err)
		result = domain.NewPredictionError(msg)
	}

	applied := o.apply(seq, func(s *Selection) {
		s.Prediction = &result
		s.LoadingPrediction = false
		if !result.Failed() {
			o.tasks.Add(1)
		}
	})
	if !applied {
		o.discard("prediction", station, seq)
		return
	}

	ev := domain.ActivityEvent{Kind: domain.ActivityPrediction, Station: station.Name, Location: &at}
	if result.Failed() {
		ev.Outcome = "error"
		ev.Error = result.Error
		o.events.emit(ctx, ev)
		return
	}
	p := result.Probability
	ev.Outcome = "success"
	ev.Probability = &p
	ev.Tier = domain.SelectTier(p)
	o.events.emit(ctx, ev)

	go func() {
		defer o.tasks.Done()
		o.runHistory(ctx, seq, station, at)
	}()
}

func (o *Orchestrator) runHistory(ctx context.Context, seq uint64, station domain.Station, at domain.Coordinates) {
	state := o.history.Fetch(ctx, at)
	if !o.apply(seq, func(s *Selection) { s.History = &state }) {
		o.discard("history", station, seq)
		return
	}

	ev := domain.ActivityEvent{Kind: domain.ActivityHistory, Station: station.Name, Location: &at, Points: len(state.Series)}
	switch state.Kind {
	case domain.TimeSeriesNoData:
		ev.Outcome = "no_data"
	case domain.TimeSeriesError:
		ev.Outcome = "error"
	default:
		ev.Outcome = "success"
	}
	o.events.emit(ctx, ev)
}

// apply runs fn against the state only if seq is still current.
func (o *Orchestrator) apply(seq uint64, fn func(*Selection)) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.seq != seq {
		return false
	}
	fn(&o.sel)
	return true
}

func (o *Orchestrator) discard(kind string, station domain.Station, seq uint64) {
	o.metrics.StaleResponses.WithLabelValues(kind).Inc()
	o.logger.Debug("discarding stale response", "kind", kind, "station", station.Name, "seq", seq)
}
