package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/tahahayali/type-int--disasterRecovery/internal/models"
)

const (
	defaultLocationHours = 24
	defaultLocationLimit = 1000
)

type locationsResponse struct {
	Status    string                  `json:"status"`
	Count     int                     `json:"count"`
	Locations []models.LatestLocation `json:"locations"`
}

// Locations handles GET /api/locations?hours=24&limit=1000: the merged
// latest-position-per-device view, newest first.
func (a *API) Locations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	hours := parseInt(r.URL.Query().Get("hours"), defaultLocationHours)
	limit := parseInt(r.URL.Query().Get("limit"), defaultLocationLimit)

	locations, err := a.merger.Latest(r.Context(), hours, limit)
	if err != nil {
		a.logger.Error("Failed to merge latest locations", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}

	writeJSON(w, http.StatusOK, locationsResponse{
		Status:    "success",
		Count:     len(locations),
		Locations: locations,
	})
}

type statsResponse struct {
	Status string `json:"status"`
	models.StoreStats
}

// Stats handles GET /api/stats.
func (a *API) Stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	stats, err := a.merger.Stats(r.Context())
	if err != nil {
		a.logger.Error("Failed to compute stats", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}

	writeJSON(w, http.StatusOK, statsResponse{
		Status:     "success",
		StoreStats: *stats,
	})
}
