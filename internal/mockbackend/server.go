// Package mockbackend is a deterministic stand-in for the flood prediction
// backend. It serves the station inventory, predictions, prediction history
// and model evaluation with the same wire shapes as the real service, and
// records every successful prediction in a per-location history.
package mockbackend

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/couchcryptid/flood-risk-dashboard/internal/domain"
)

// MaxHistory is the default number of history records returned per location.
const MaxHistory = 30

// WeatherUnavailableDetail is the failure detail returned for stations marked unavailable.
const WeatherUnavailableDetail = "Unable to fetch current weather data from the external API."

// Station is an inventory entry. A nil coordinate is omitted from the payload.
type Station struct {
	Name        string
	Lat         *float64
	Lon         *float64
	Unavailable bool // predictions fail with a 503 and WeatherUnavailableDetail
}

func coord(v float64) *float64 { return &v }

// DefaultStations is the inventory served when none is given.
var DefaultStations = []Station{
	{Name: "Sao Paulo", Lat: coord(-23.5505), Lon: coord(-46.6333)},
	{Name: "Rio de Janeiro", Lat: coord(-22.9068), Lon: coord(-43.1729)},
	{Name: "Belo Horizonte", Lat: coord(-19.9167), Lon: coord(-43.9345)},
	{Name: "Porto Alegre", Lat: coord(-30.0346), Lon: coord(-51.2177)},
	{Name: "Recife", Lat: coord(-8.0476), Lon: coord(-34.877)},
	{Name: "Manaus", Lat: coord(-3.119), Lon: coord(-60.0217), Unavailable: true},
	{Name: "Petropolis", Lat: coord(-22.505)},
}

// DefaultEvaluation mirrors the shape of the backend's evaluation payload.
// LSTM carries no F1 score.
var DefaultEvaluation = map[string]map[string]*float64{
	"Ensemble":      {"accuracy": coord(0.9132), "precision": coord(0.8841), "recall": coord(0.8027), "f1_score": coord(0.8415)},
	"Random_Forest": {"accuracy": coord(0.8975), "precision": coord(0.8612), "recall": coord(0.7793), "f1_score": coord(0.8182)},
	"XGBoost":       {"accuracy": coord(0.9051), "precision": coord(0.8734), "recall": coord(0.7912), "f1_score": coord(0.8303)},
	"LSTM":          {"accuracy": coord(0.8623), "precision": coord(0.8105), "recall": coord(0.7431), "f1_score": nil},
}

type record struct {
	Timestamp   string  `json:"timestamp"`
	Probability float64 `json:"probability"`
}

// Server is the fake backend.
type Server struct {
	stations   []Station
	evaluation map[string]map[string]*float64

	mu      sync.Mutex
	rng     *rand.Rand
	history map[string][]record
}

// New creates a Server serving DefaultStations. The seed fixes the sequence
// of generated predictions.
func New(seed uint64) *Server {
	return NewWithStations(seed, DefaultStations)
}

// NewWithStations creates a Server serving the given inventory.
func NewWithStations(seed uint64, stations []Station) *Server {
	return &Server{
		stations:   stations,
		evaluation: DefaultEvaluation,
		rng:        rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		history:    make(map[string][]record),
	}
}

// Handler returns the HTTP routes of the fake backend. Responses are gzip
// compressed when the client accepts it.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Compress(5))
	r.Get("/estacoes/", s.handleStations)
	r.Get("/predict/", s.handlePredict)
	r.Get("/predict/history/", s.handleHistory)
	r.Get("/evaluate/", s.handleEvaluate)
	return r
}

func (s *Server) handleStations(w http.ResponseWriter, _ *http.Request) {
	type entry struct {
		Nome string   `json:"nome"`
		Lat  *float64 `json:"lat,omitempty"`
		Lon  *float64 `json:"lon,omitempty"`
	}
	out := make([]entry, len(s.stations))
	for i, st := range s.stations {
		out[i] = entry{Nome: st.Name, Lat: st.Lat, Lon: st.Lon}
	}
	writeJSON(w, http.StatusOK, map[string]any{"estacoes": out})
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	at, ok := parseCoordinates(w, r)
	if !ok {
		return
	}
	if s.unavailable(at) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"detail": WeatherUnavailableDetail})
		return
	}

	s.mu.Lock()
	probability := round(s.rng.Float64(), 4)
	readings := map[string]float64{
		"Temperatura":  round(15+s.rng.Float64()*20, 1),
		"Umidade":      round(40+s.rng.Float64()*60, 0),
		"Vento":        round(s.rng.Float64()*40, 1),
		"Precipitacao": round(s.rng.Float64()*50, 1),
	}
	key := at.Key()
	s.history[key] = append(s.history[key], record{
		Timestamp:   domain.Now().Format("02/01 15h"),
		Probability: probability,
	})
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"probabilidade": probability,
		"dados_atuais":  readings,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	at, ok := parseCoordinates(w, r)
	if !ok {
		return
	}
	limit := MaxHistory
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	s.mu.Lock()
	all := s.history[at.Key()]
	start := max(0, len(all)-limit)
	recent := append([]record(nil), all[start:]...)
	s.mu.Unlock()

	if len(recent) == 0 {
		writeJSON(w, http.StatusOK, map[string]bool{"noData": true})
		return
	}
	writeJSON(w, http.StatusOK, recent)
}

func (s *Server) handleEvaluate(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.evaluation)
}

func (s *Server) unavailable(at domain.Coordinates) bool {
	for _, st := range s.stations {
		if pos, ok := (domain.Station{Lat: st.Lat, Lon: st.Lon}).Coordinates(); ok && pos == at {
			return st.Unavailable
		}
	}
	return false
}

func parseCoordinates(w http.ResponseWriter, r *http.Request) (domain.Coordinates, bool) {
	q := r.URL.Query()
	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(q.Get("lon"), 64)
	if errLat != nil || errLon != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"detail": fmt.Sprintf("invalid coordinates lat=%q lon=%q", q.Get("lat"), q.Get("lon")),
		})
		return domain.Coordinates{}, false
	}
	return domain.Coordinates{Lat: lat, Lon: lon}, true
}

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client went away
}
