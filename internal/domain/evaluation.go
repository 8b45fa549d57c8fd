package domain

import "math"

// ModelMetrics are the precomputed scores of one candidate model. Any score
// may be absent.
type ModelMetrics struct {
	Accuracy  *float64 `json:"accuracy"`
	Precision *float64 `json:"precision"`
	Recall    *float64 `json:"recall"`
	F1Score   *float64 `json:"f1_score"`
}

func (m ModelMetrics) values() [4]*float64 {
	return [4]*float64{m.Accuracy, m.Precision, m.Recall, m.F1Score}
}

// EvaluationMetrics maps a backend model key to its scores.
type EvaluationMetrics map[string]ModelMetrics

// Model is one entry of the fixed comparison set.
type Model struct {
	Label string   // series label shown in the chart
	Keys  []string // accepted backend keys, first match wins
}

// Models is the fixed set of compared models, in chart order.
var Models = []Model{
	{Label: "Ensemble", Keys: []string{"Ensemble"}},
	{Label: "Random Forest", Keys: []string{"Random_Forest", "Random Forest"}},
	{Label: "XGBoost", Keys: []string{"XGBoost"}},
	{Label: "LSTM", Keys: []string{"LSTM"}},
}

// MetricLabels are the chart categories, in ModelMetrics field order.
var MetricLabels = []string{"Accuracy", "Precision", "Recall", "F1-Score"}

// Lookup returns the metrics for a model, or the zero value when the backend did not report it.
func (e EvaluationMetrics) Lookup(m Model) ModelMetrics {
	for _, k := range m.Keys {
		if mm, ok := e[k]; ok {
			return mm
		}
	}
	return ModelMetrics{}
}

// BarChart is a grouped bar chart: one dataset per model over MetricLabels.
type BarChart struct {
	Labels   []string     `json:"labels"`
	Datasets []BarDataset `json:"datasets"`
	YMin     float64      `json:"y_min"`
	YMax     float64      `json:"y_max"`
}

// BarDataset holds one model's cells. Missing[i] is true when Data[i] is the
// 0 fallback for an absent score rather than a reported value.
type BarDataset struct {
	Label   string    `json:"label"`
	Data    []float64 `json:"data"`
	Missing []bool    `json:"missing"`
}

// BuildEvaluationChart reshapes evaluation metrics into a comparison chart.
// Present scores are rounded to 4 decimal places; absent scores become 0 and
// are flagged in Missing.
func BuildEvaluationChart(metrics EvaluationMetrics) BarChart {
	chart := BarChart{
		Labels:   append([]string(nil), MetricLabels...),
		Datasets: make([]BarDataset, 0, len(Models)),
		YMin:     0,
		YMax:     1,
	}
	for _, m := range Models {
		values := metrics.Lookup(m).values()
		ds := BarDataset{
			Label:   m.Label,
			Data:    make([]float64, len(values)),
			Missing: make([]bool, len(values)),
		}
		for i, v := range values {
			if v == nil {
				ds.Missing[i] = true
				continue
			}
			ds.Data[i] = Round4(*v)
		}
		chart.Datasets = append(chart.Datasets, ds)
	}
	return chart
}

// Round4 rounds to 4 decimal places, half away from zero.
func Round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
