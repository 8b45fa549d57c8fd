package dashboard

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/flood-risk-dashboard/internal/domain"
)

// EvaluationStatus distinguishes a pending evaluation fetch from its outcomes.
type EvaluationStatus string

const (
	EvaluationLoading EvaluationStatus = "loading"
	EvaluationFailed  EvaluationStatus = "failed"
	EvaluationReady   EvaluationStatus = "ready"
)

// EvaluationState is the model-comparison panel's data. Chart is set only when Ready.
type EvaluationState struct {
	Status  EvaluationStatus
	Metrics domain.EvaluationMetrics
	Chart   *domain.BarChart
}

// EvaluationAggregator fetches cross-model metrics and shapes them into a chart.
type EvaluationAggregator struct {
	source domain.EvaluationSource
	logger *slog.Logger
}

// NewEvaluationAggregator creates an EvaluationAggregator.
func NewEvaluationAggregator(source domain.EvaluationSource, logger *slog.Logger) *EvaluationAggregator {
	return &EvaluationAggregator{source: source, logger: logger}
}

// Fetch resolves to Ready with a chart or to Failed; it never returns Loading.
func (a *EvaluationAggregator) Fetch(ctx context.Context) EvaluationState {
	metrics, err := a.source.Evaluate(ctx)
	if err != nil {
		a.logger.Error("failed to load evaluation metrics", "error", err)
		return EvaluationState{Status: EvaluationFailed}
	}
	chart := domain.BuildEvaluationChart(metrics)
	return EvaluationState{Status: EvaluationReady, Metrics: metrics, Chart: &chart}
}
