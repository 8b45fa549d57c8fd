package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/flood-risk-dashboard/internal/domain"
	"github.com/couchcryptid/flood-risk-dashboard/internal/observability"
	"github.com/klauspost/compress/gzip"
	"github.com/sony/gobreaker/v2"
)

const (
	endpointStations = "stations"
	endpointPredict  = "predict"
	endpointHistory  = "history"
	endpointEvaluate = "evaluate"

	pathStations = "/estacoes/"
	pathPredict  = "/predict/"
	pathHistory  = "/predict/history/"
	pathEvaluate = "/evaluate/"

	maxBodyBytes = 10 << 20
)

// Options tunes the HTTP client and its circuit breaker.
type Options struct {
	Timeout     time.Duration
	MaxFailures int
	OpenTimeout time.Duration
}

// Client implements domain.Backend over the prediction service REST API.
// Every call goes through a circuit breaker; an open breaker fails fast with
// gobreaker.ErrOpenState and is reported like any other network failure.
// There are no retries.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[[]byte]
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a backend client rooted at baseURL.
func NewClient(baseURL string, opts Options, metrics *observability.Metrics, logger *slog.Logger) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		metrics: metrics,
		logger:  logger,
	}
	c.breaker = newBreaker(opts, logger)
	return c
}

func newBreaker(opts Options, logger *slog.Logger) *gobreaker.CircuitBreaker[[]byte] {
	maxFailures := uint32(max(opts.MaxFailures, 1)) //nolint:gosec // validated positive by config
	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "prediction-backend",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		// Client errors mean the backend is up and answering; only transport
		// failures and 5xx count against it.
		IsSuccessful: func(err error) bool {
			if err == nil || errors.Is(err, context.Canceled) {
				return true
			}
			var ue *domain.UpstreamError
			return errors.As(err, &ue) && ue.Status < http.StatusInternalServerError
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
}

// CheckReadiness reports an error while the breaker is open.
func (c *Client) CheckReadiness(_ context.Context) error {
	if c.breaker.State() == gobreaker.StateOpen {
		return errors.New("prediction backend circuit breaker is open")
	}
	return nil
}

// ListStations fetches the station inventory. A payload whose station list is
// not an array yields an error wrapping domain.ErrMalformedResponse. Entries are
// decoded one by one: an entry that is not an object is skipped, and one with a
// badly typed coordinate is kept without that coordinate.
func (c *Client) ListStations(ctx context.Context) (stations []domain.Station, err error) {
	defer c.observe(endpointStations, &err)

	body, err := c.get(ctx, endpointStations, pathStations, nil)
	if err != nil {
		return nil, err
	}

	var resp stationsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, malformed(endpointStations, err.Error())
	}
	if !isJSONArray(resp.Estacoes) {
		return nil, malformed(endpointStations, "estacoes is not an array")
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(resp.Estacoes, &entries); err != nil {
		return nil, malformed(endpointStations, err.Error())
	}
	stations = make([]domain.Station, 0, len(entries))
	for i, raw := range entries {
		var s domain.Station
		if err := json.Unmarshal(raw, &s); err != nil {
			c.logger.Debug("skipping station entry", "index", i, "error", err)
			continue
		}
		stations = append(stations, s)
	}
	return stations, nil
}

// Predict requests a prediction for a location. Non-2xx answers are returned
// as *domain.UpstreamError carrying the body's "detail" when present.
func (c *Client) Predict(ctx context.Context, at domain.Coordinates) (result domain.PredictionResult, err error) {
	defer c.observe(endpointPredict, &err)

	body, err := c.get(ctx, endpointPredict, pathPredict, coordinateParams(at))
	if err != nil {
		return domain.PredictionResult{}, err
	}

	var resp predictResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.PredictionResult{}, malformed(endpointPredict, err.Error())
	}
	if resp.Probabilidade == nil {
		return domain.PredictionResult{}, malformed(endpointPredict, "missing probabilidade")
	}

	return domain.NewPrediction(*resp.Probabilidade, domain.Readings{
		Temperature:   resp.DadosAtuais.Temperatura,
		Humidity:      resp.DadosAtuais.Umidade,
		WindSpeed:     resp.DadosAtuais.Vento,
		Precipitation: resp.DadosAtuais.Precipitacao,
	}), nil
}

// History fetches up to limit recent predictions for a location, in server order.
func (c *Client) History(ctx context.Context, at domain.Coordinates, limit int) (result domain.HistoryResponse, err error) {
	defer c.observe(endpointHistory, &err)

	params := coordinateParams(at)
	params.Set("limit", strconv.Itoa(limit))

	body, err := c.get(ctx, endpointHistory, pathHistory, params)
	if err != nil {
		return domain.HistoryResponse{}, err
	}

	if isJSONArray(body) {
		var records []historyRecord
		if err := json.Unmarshal(body, &records); err != nil {
			return domain.HistoryResponse{}, malformed(endpointHistory, err.Error())
		}
		points := make([]domain.TimeSeriesPoint, len(records))
		for i, r := range records {
			points[i] = domain.TimeSeriesPoint{Timestamp: r.Timestamp, Probability: r.Probability}
		}
		return domain.HistoryResponse{Records: points}, nil
	}

	var flags historyFlags
	if err := json.Unmarshal(body, &flags); err != nil {
		return domain.HistoryResponse{}, malformed(endpointHistory, err.Error())
	}
	switch {
	case flags.NoData:
		return domain.HistoryResponse{NoData: true}, nil
	case flags.Erro:
		return domain.HistoryResponse{}, &domain.UpstreamError{Endpoint: endpointHistory, Status: http.StatusOK, Detail: flags.Detail}
	default:
		return domain.HistoryResponse{}, malformed(endpointHistory, "neither a record list nor a noData signal")
	}
}

// Evaluate fetches per-model evaluation metrics. A null payload or one
// flagged {"erro": true} is an error; entries that are not metric objects are skipped.
func (c *Client) Evaluate(ctx context.Context) (metrics domain.EvaluationMetrics, err error) {
	defer c.observe(endpointEvaluate, &err)

	body, err := c.get(ctx, endpointEvaluate, pathEvaluate, nil)
	if err != nil {
		return nil, err
	}

	var entries map[string]json.RawMessage
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, malformed(endpointEvaluate, err.Error())
	}
	if entries == nil {
		return nil, malformed(endpointEvaluate, "null payload")
	}
	if raw, ok := entries["erro"]; ok && string(bytes.TrimSpace(raw)) == "true" {
		return nil, &domain.UpstreamError{Endpoint: endpointEvaluate, Status: http.StatusOK, Detail: "backend reported evaluation failure"}
	}

	metrics = make(domain.EvaluationMetrics, len(entries))
	for name, raw := range entries {
		var mm domain.ModelMetrics
		if err := json.Unmarshal(raw, &mm); err != nil {
			c.logger.Debug("skipping evaluation entry", "key", name, "error", err)
			continue
		}
		metrics[name] = mm
	}
	return metrics, nil
}

func (c *Client) get(ctx context.Context, endpoint, path string, params url.Values) ([]byte, error) {
	fullURL := c.baseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	start := time.Now()
	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.doRequest(ctx, endpoint, fullURL)
	})
	c.metrics.BackendDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if c.breaker.State() == gobreaker.StateOpen {
		c.metrics.BreakerOpen.Set(1)
	} else {
		c.metrics.BreakerOpen.Set(0)
	}
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) doRequest(ctx context.Context, endpoint, fullURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "gzip")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		return nil, fmt.Errorf("%s read body: %w", endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &domain.UpstreamError{Endpoint: endpoint, Status: resp.StatusCode, Detail: errorDetail(body)}
	}
	return body, nil
}

// observe records the outcome of a completed call.
func (c *Client) observe(endpoint string, errp *error) {
	outcome := "success"
	switch err := *errp; {
	case err == nil:
	case errors.Is(err, domain.ErrMalformedResponse):
		outcome = "malformed"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		outcome = "rejected"
	default:
		outcome = "error"
	}
	c.metrics.BackendRequests.WithLabelValues(endpoint, outcome).Inc()
}

func readBody(resp *http.Response) ([]byte, error) {
	var r io.Reader = resp.Body
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer zr.Close()
		r = zr
	}
	return io.ReadAll(io.LimitReader(r, maxBodyBytes))
}

// errorDetail pulls a string "detail" out of a FastAPI-style error body.
func errorDetail(body []byte) string {
	var e struct {
		Detail json.RawMessage `json:"detail"`
	}
	if json.Unmarshal(body, &e) != nil || len(e.Detail) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(e.Detail, &s) != nil {
		return ""
	}
	return s
}

func coordinateParams(at domain.Coordinates) url.Values {
	return url.Values{
		"lat": {strconv.FormatFloat(at.Lat, 'f', -1, 64)},
		"lon": {strconv.FormatFloat(at.Lon, 'f', -1, 64)},
	}
}

func isJSONArray(raw []byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}

func malformed(endpoint, reason string) error {
	return fmt.Errorf("%s: %w: %s", endpoint, domain.ErrMalformedResponse, reason)
}

// Backend API response types.

type stationsResponse struct {
	Estacoes json.RawMessage `json:"estacoes"`
}

type predictResponse struct {
	Probabilidade *float64 `json:"probabilidade"`
	DadosAtuais   struct {
		Temperatura  float64 `json:"Temperatura"`
		Umidade      float64 `json:"Umidade"`
		Vento        float64 `json:"Vento"`
		Precipitacao float64 `json:"Precipitacao"`
	} `json:"dados_atuais"`
}

type historyRecord struct {
	Timestamp   string  `json:"timestamp"`
	Probability float64 `json:"probability"`
}

type historyFlags struct {
	NoData bool   `json:"noData"`
	Erro   bool   `json:"erro"`
	Detail string `json:"detail"`
}
