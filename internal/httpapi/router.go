package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/tahahayali/type-int--disasterRecovery/internal/buffer"
	"github.com/tahahayali/type-int--disasterRecovery/internal/repository"
	"github.com/tahahayali/type-int--disasterRecovery/internal/service"
)

// API carries the handler dependencies for the telemetry HTTP surface.
type API struct {
	pipeline    *service.IngestionPipeline
	merger      *service.LocationMerger
	store       repository.RecordStore
	buffer      *buffer.LocationBuffer
	dbConnected bool
	logger      *zap.Logger
}

// NewAPI creates the HTTP API. dbConnected feeds the health endpoint: false
// means the server is running on the in-memory fallback store.
func NewAPI(
	pipeline *service.IngestionPipeline,
	merger *service.LocationMerger,
	store repository.RecordStore,
	buf *buffer.LocationBuffer,
	dbConnected bool,
	logger *zap.Logger,
) *API {
	return &API{
		pipeline:    pipeline,
		merger:      merger,
		store:       store,
		buffer:      buf,
		dbConnected: dbConnected,
		logger:      logger,
	}
}

// Routes builds the mux for all /api endpoints. Uses the standard library
// ServeMux; method checks are inline per handler.
func (a *API) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/health", a.Health)
	mux.HandleFunc("/api/byte_string", a.IngestByteString)
	mux.HandleFunc("/api/device-data", a.DeviceData)
	mux.HandleFunc("/api/locations", a.Locations)
	mux.HandleFunc("/api/locations/export", a.ExportLocations)
	mux.HandleFunc("/api/stats", a.Stats)
	mux.HandleFunc("/api/devices", a.RegisterDevice)
	mux.HandleFunc("/api/devices/", a.GetDevice)

	return mux
}
