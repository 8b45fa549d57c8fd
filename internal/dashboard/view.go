package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/flood-risk-dashboard/internal/domain"
	"github.com/couchcryptid/flood-risk-dashboard/internal/observability"
)

// Panel messages.
const (
	MsgLoadingPrediction = "Loading prediction..."
	MsgLoadingHistory    = "Loading history..."
	MsgHistoryFailed     = "Error loading history."
	MsgHistoryNoData     = "No historical data for this location."
	MsgLoadingEvaluation = "Loading evaluation metrics..."
	MsgEvaluationFailed  = "Error loading metrics."
)

// PanelStatus is what a panel currently displays.
type PanelStatus string

const (
	PanelHidden  PanelStatus = "hidden"
	PanelLoading PanelStatus = "loading"
	PanelFailed  PanelStatus = "failed"
	PanelNoData  PanelStatus = "no_data"
	PanelReady   PanelStatus = "ready"
)

// Panel is a status plus the text shown with it.
type Panel struct {
	Status  PanelStatus `json:"status"`
	Message string      `json:"message,omitempty"`
}

// View is the full render model of one dashboard session.
type View struct {
	SessionID string           `json:"session_id"`
	Loading   bool             `json:"loading"`
	Viewport  domain.Viewport  `json:"viewport"`
	Stations  []domain.Station `json:"stations"`
	Markers   []domain.Marker  `json:"markers"`

	Selected          *domain.Station          `json:"selected,omitempty"`
	SelectedMarker    *domain.Marker           `json:"selected_marker,omitempty"`
	Phase             Phase                    `json:"phase"`
	LoadingPrediction bool                     `json:"loading_prediction"`
	Prediction        *domain.PredictionResult `json:"prediction,omitempty"`
	PredictionPanel   Panel                    `json:"prediction_panel"`
	GuidancePath      string                   `json:"guidance_path,omitempty"`

	History      *domain.TimeSeriesState `json:"history,omitempty"`
	HistoryPanel Panel                   `json:"history_panel"`
	HistoryChart *domain.LineChart       `json:"history_chart,omitempty"`

	EvaluationPanel Panel            `json:"evaluation_panel"`
	EvaluationChart *domain.BarChart `json:"evaluation_chart,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Deps are the collaborators shared by every session.
type Deps struct {
	Backend      domain.Backend
	Events       domain.EventPublisher // optional
	Metrics      *observability.Metrics
	Logger       *slog.Logger
	HistoryLimit int
	GuidancePath string
}

// ViewState owns one session: the station inventory, the evaluation panel
// and the selection orchestrator.
type ViewState struct {
	id           string
	loader       *StationLoader
	evaluation   *EvaluationAggregator
	orchestrator *Orchestrator
	guidancePath string
	logger       *slog.Logger

	startOnce sync.Once
	startup   errgroup.Group

	mu        sync.RWMutex
	loading   bool
	stations  []domain.Station
	markers   []domain.Marker
	eval      EvaluationState
	updatedAt time.Time
}

// NewViewState creates a session in its initial state: inventory loading,
// evaluation loading, nothing selected.
func NewViewState(id string, deps Deps) *ViewState {
	logger := deps.Logger.With("session", id)
	sink := &eventSink{publisher: deps.Events, sessionID: id, metrics: deps.Metrics, logger: logger}
	return &ViewState{
		id:           id,
		loader:       NewStationLoader(deps.Backend, logger),
		evaluation:   NewEvaluationAggregator(deps.Backend, logger),
		orchestrator: NewOrchestrator(deps.Backend, NewHistoryFetcher(deps.Backend, deps.HistoryLimit, logger), sink, deps.Metrics, logger),
		guidancePath: deps.GuidancePath,
		logger:       logger,
		loading:      true,
		stations:     []domain.Station{},
		markers:      []domain.Marker{},
		eval:         EvaluationState{Status: EvaluationLoading},
		updatedAt:    domain.Now(),
	}
}

// ID returns the session identifier.
func (v *ViewState) ID() string { return v.id }

// Start launches the inventory and evaluation fetches concurrently. Each load
// settles into its own terminal state and never returns an error, so the
// group only joins them for Wait. Only the first call has any effect.
func (v *ViewState) Start(ctx context.Context) {
	v.startOnce.Do(func() {
		v.startup.Go(func() error {
			stations := v.loader.Load(ctx)
			markers := domain.Markers(stations)
			v.mu.Lock()
			v.stations = stations
			v.markers = markers
			v.loading = false
			v.updatedAt = domain.Now()
			v.mu.Unlock()
			return nil
		})
		v.startup.Go(func() error {
			state := v.evaluation.Fetch(ctx)
			v.mu.Lock()
			v.eval = state
			v.updatedAt = domain.Now()
			v.mu.Unlock()
			return nil
		})
	})
}

// Select makes the station at index current. ctx bounds the background
// prediction and history requests.
func (v *ViewState) Select(ctx context.Context, index int) error {
	v.mu.RLock()
	if index < 0 || index >= len(v.stations) {
		v.mu.RUnlock()
		return fmt.Errorf("%w: index %d", ErrUnknownStation, index)
	}
	station := v.stations[index]
	v.mu.RUnlock()

	if err := v.orchestrator.Select(ctx, station); err != nil {
		return fmt.Errorf("select %q: %w", station.Name, err)
	}
	v.touch()
	return nil
}

// Close clears the current selection.
func (v *ViewState) Close(ctx context.Context) {
	v.orchestrator.Close(ctx)
	v.touch()
}

// Wait blocks until startup and all selection requests launched so far have settled.
func (v *ViewState) Wait() {
	_ = v.startup.Wait()
	v.orchestrator.Wait()
}

func (v *ViewState) touch() {
	v.mu.Lock()
	v.updatedAt = domain.Now()
	v.mu.Unlock()
}

// Snapshot renders the current state.
func (v *ViewState) Snapshot() View {
	sel := v.orchestrator.Snapshot()

	v.mu.RLock()
	view := View{
		SessionID: v.id,
		Loading:   v.loading,
		Viewport:  domain.DefaultViewport,
		Stations:  v.stations,
		Markers:   v.markers,
		UpdatedAt: v.updatedAt,
	}
	eval := v.eval
	v.mu.RUnlock()

	view.Selected = sel.Station
	view.Phase = sel.Phase()
	view.LoadingPrediction = sel.LoadingPrediction
	view.Prediction = sel.Prediction
	view.PredictionPanel = predictionPanel(sel)
	view.HistoryPanel = Panel{Status: PanelHidden}

	if view.Phase == PhaseSuccess {
		view.GuidancePath = v.guidancePath
		if at, ok := sel.Station.Coordinates(); ok {
			tier := domain.SelectTier(sel.Prediction.Probability)
			view.SelectedMarker = &domain.Marker{
				Index:    -1,
				Name:     sel.Station.Name,
				Position: at,
				Tier:     tier,
				Icon:     domain.IconFor(tier),
			}
		}
		view.History = sel.History
		view.HistoryPanel, view.HistoryChart = historyPanel(sel.History)
	}

	switch eval.Status {
	case EvaluationReady:
		view.EvaluationPanel = Panel{Status: PanelReady}
		view.EvaluationChart = eval.Chart
	case EvaluationFailed:
		view.EvaluationPanel = Panel{Status: PanelFailed, Message: MsgEvaluationFailed}
	default:
		view.EvaluationPanel = Panel{Status: PanelLoading, Message: MsgLoadingEvaluation}
	}
	return view
}

func predictionPanel(sel Selection) Panel {
	switch sel.Phase() {
	case PhaseRequesting:
		return Panel{Status: PanelLoading, Message: MsgLoadingPrediction}
	case PhaseFailed:
		return Panel{Status: PanelFailed, Message: sel.Prediction.Error}
	case PhaseSuccess:
		return Panel{
			Status:  PanelReady,
			Message: fmt.Sprintf("The flood probability today is %.2f%%", sel.Prediction.Percent()),
		}
	default:
		return Panel{Status: PanelHidden}
	}
}

func historyPanel(state *domain.TimeSeriesState) (Panel, *domain.LineChart) {
	if state == nil {
		return Panel{Status: PanelLoading, Message: MsgLoadingHistory}, nil
	}
	switch state.Kind {
	case domain.TimeSeriesNoData:
		return Panel{Status: PanelNoData, Message: MsgHistoryNoData}, nil
	case domain.TimeSeriesError:
		return Panel{Status: PanelFailed, Message: MsgHistoryFailed}, nil
	}
	chart, ok := domain.BuildHistoryChart(*state)
	if !ok {
		return Panel{Status: PanelLoading, Message: MsgLoadingHistory}, nil
	}
	return Panel{Status: PanelReady}, &chart
}
