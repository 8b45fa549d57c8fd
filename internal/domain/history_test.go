package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildHistoryChart_PreservesOrder(t *testing.T) {
	points := []TimeSeriesPoint{
		{Timestamp: "14/10 09h", Probability: 0.1},
		{Timestamp: "15/10 09h", Probability: 0.8},
		{Timestamp: "16/10 09h", Probability: 0.3},
		{Timestamp: "17/10 09h", Probability: 0.55},
		{Timestamp: "18/10 09h", Probability: 0.2},
	}

	chart, ok := BuildHistoryChart(NewSeries(points))
	require.True(t, ok)

	assert.Equal(t, []string{"14/10 09h", "15/10 09h", "16/10 09h", "17/10 09h", "18/10 09h"}, chart.Labels)
	assert.Equal(t, []float64{0.1, 0.8, 0.3, 0.55, 0.2}, chart.Dataset.Data)
	assert.Equal(t, "Flood probability", chart.Dataset.Label)
	assert.Equal(t, 1.0, chart.YMax)
}

func TestBuildHistoryChart_NonSeriesStates(t *testing.T) {
	for _, state := range []TimeSeriesState{{}, NoDataSeries(), FailedSeries()} {
		_, ok := BuildHistoryChart(state)
		assert.False(t, ok, "kind %q", state.Kind)
	}
}

func TestNewSeries_NilBecomesEmpty(t *testing.T) {
	s := NewSeries(nil)
	assert.Equal(t, TimeSeriesSeries, s.Kind)
	assert.NotNil(t, s.Series)
	assert.Empty(t, s.Series)
}
