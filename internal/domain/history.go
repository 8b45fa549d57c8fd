package domain

// DefaultHistoryLimit is the number of most recent history points requested per station.
const DefaultHistoryLimit = 30

// TimeSeriesPoint is one historical prediction.
type TimeSeriesPoint struct {
	Timestamp   string  `json:"timestamp"`
	Probability float64 `json:"probability"`
}

// TimeSeriesKind tags the active variant of a TimeSeriesState. The zero value
// means not yet loaded.
type TimeSeriesKind string

const (
	TimeSeriesAbsent TimeSeriesKind = ""
	TimeSeriesNoData TimeSeriesKind = "no_data"
	TimeSeriesError  TimeSeriesKind = "error"
	TimeSeriesSeries TimeSeriesKind = "series"
)

// TimeSeriesState is the tagged history variant for the selected station.
// Series is only populated when Kind is TimeSeriesSeries.
type TimeSeriesState struct {
	Kind   TimeSeriesKind    `json:"kind"`
	Series []TimeSeriesPoint `json:"series,omitempty"`
}

// NoDataSeries is the explicit "no history for this location" state.
func NoDataSeries() TimeSeriesState { return TimeSeriesState{Kind: TimeSeriesNoData} }

// FailedSeries is the fetch-failure state.
func FailedSeries() TimeSeriesState { return TimeSeriesState{Kind: TimeSeriesError} }

// NewSeries wraps points in server order.
func NewSeries(points []TimeSeriesPoint) TimeSeriesState {
	if points == nil {
		points = []TimeSeriesPoint{}
	}
	return TimeSeriesState{Kind: TimeSeriesSeries, Series: points}
}

// HistoryResponse is a decoded history payload: either the explicit no-data
// signal or the ordered records.
type HistoryResponse struct {
	NoData  bool
	Records []TimeSeriesPoint
}

// LineChart is a single-series chart ready for a line renderer.
type LineChart struct {
	Labels  []string    `json:"labels"`
	Dataset LineDataset `json:"dataset"`
	YMin    float64     `json:"y_min"`
	YMax    float64     `json:"y_max"`
}

// LineDataset is the plotted series of a LineChart.
type LineDataset struct {
	Label string    `json:"label"`
	Data  []float64 `json:"data"`
}

// BuildHistoryChart maps a series 1:1 into chart labels and values, keeping
// timestamps verbatim and the server order. It returns false for any state
// other than TimeSeriesSeries.
func BuildHistoryChart(state TimeSeriesState) (LineChart, bool) {
	if state.Kind != TimeSeriesSeries {
		return LineChart{}, false
	}
	labels := make([]string, len(state.Series))
	data := make([]float64, len(state.Series))
	for i, p := range state.Series {
		labels[i] = p.Timestamp
		data[i] = p.Probability
	}
	return LineChart{
		Labels:  labels,
		Dataset: LineDataset{Label: "Flood probability", Data: data},
		YMin:    0,
		YMax:    1,
	}, true
}
