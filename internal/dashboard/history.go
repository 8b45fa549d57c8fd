package dashboard

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/flood-risk-dashboard/internal/domain"
)

// HistoryFetcher fetches and normalizes the recent probability series for a location.
type HistoryFetcher struct {
	source domain.HistorySource
	limit  int
	logger *slog.Logger
}

// NewHistoryFetcher creates a HistoryFetcher requesting at most limit points.
// A non-positive limit falls back to domain.DefaultHistoryLimit.
func NewHistoryFetcher(source domain.HistorySource, limit int, logger *slog.Logger) *HistoryFetcher {
	if limit <= 0 {
		limit = domain.DefaultHistoryLimit
	}
	return &HistoryFetcher{source: source, limit: limit, logger: logger}
}

// Fetch always resolves to one of the no-data, error or series variants.
func (h *HistoryFetcher) Fetch(ctx context.Context, at domain.Coordinates) domain.TimeSeriesState {
	resp, err := h.source.History(ctx, at, h.limit)
	if err != nil {
		h.logger.Warn("failed to fetch prediction history", "lat", at.Lat, "lon", at.Lon, "error", err)
		return domain.FailedSeries()
	}
	if resp.NoData {
		return domain.NoDataSeries()
	}
	points := make([]domain.TimeSeriesPoint, len(resp.Records))
	copy(points, resp.Records)
	return domain.NewSeries(points)
}
