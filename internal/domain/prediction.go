package domain

import "math"

// Readings are the current sensor values the backend used for a prediction.
type Readings struct {
	Temperature   float64 `json:"temperature"`    // °C
	Humidity      float64 `json:"humidity"`       // %
	WindSpeed     float64 `json:"wind_speed"`     // km/h
	Precipitation float64 `json:"precipitation"`  // mm
}

// PredictionResult is the outcome of one prediction request. Exactly one of
// the success shape (Probability, Readings) or Error is populated.
type PredictionResult struct {
	Probability float64  `json:"probability"`
	Readings    Readings `json:"readings"`
	Error       string   `json:"error,omitempty"`
}

// NewPrediction builds the success variant.
func NewPrediction(probability float64, readings Readings) PredictionResult {
	return PredictionResult{Probability: probability, Readings: readings}
}

// NewPredictionError builds the error variant.
func NewPredictionError(message string) PredictionResult {
	return PredictionResult{Error: message}
}

// Failed reports whether this is the error variant.
func (p PredictionResult) Failed() bool {
	return p.Error != ""
}

// Percent returns the probability as a percentage rounded to two decimals.
func (p PredictionResult) Percent() float64 {
	return math.Round(p.Probability*100*100) / 100
}
