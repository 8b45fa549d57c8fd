package domain

import "context"

// StationSource fetches the station inventory.
type StationSource interface {
	ListStations(ctx context.Context) ([]Station, error)
}

// Predictor requests an on-demand risk prediction for a location.
type Predictor interface {
	Predict(ctx context.Context, at Coordinates) (PredictionResult, error)
}

// HistorySource fetches up to limit recent predictions for a location.
type HistorySource interface {
	History(ctx context.Context, at Coordinates, limit int) (HistoryResponse, error)
}

// EvaluationSource fetches the cross-model evaluation metrics.
type EvaluationSource interface {
	Evaluate(ctx context.Context) (EvaluationMetrics, error)
}

// Backend is the full prediction service contract.
type Backend interface {
	StationSource
	Predictor
	HistorySource
	EvaluationSource
}
