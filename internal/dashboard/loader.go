package dashboard

import (
	"context"
	"errors"
	"log/slog"

	"github.com/couchcryptid/flood-risk-dashboard/internal/domain"
)

// StationLoader fetches the station inventory once per session.
type StationLoader struct {
	source domain.StationSource
	logger *slog.Logger
}

// NewStationLoader creates a StationLoader.
func NewStationLoader(source domain.StationSource, logger *slog.Logger) *StationLoader {
	return &StationLoader{source: source, logger: logger}
}

// Load returns the inventory in server order. A malformed payload or a failed
// request yields an empty, non-nil inventory; the cause is logged only.
func (l *StationLoader) Load(ctx context.Context) []domain.Station {
	stations, err := l.source.ListStations(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrMalformedResponse) {
			l.logger.Error("station list is not a valid array", "error", err)
		} else {
			l.logger.Error("failed to load stations", "error", err)
		}
		return []domain.Station{}
	}
	if stations == nil {
		stations = []domain.Station{}
	}
	l.logger.Info("station inventory loaded", "count", len(stations))
	return stations
}
