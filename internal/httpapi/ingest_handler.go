package httpapi

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/tahahayali/type-int--disasterRecovery/internal/service"
)

type ingestRequest struct {
	// Pointer so a body without a messages key is distinguishable from an
	// explicit empty batch.
	Messages *[]string `json:"messages"`
}

type ingestResponse struct {
	Status    string                `json:"status"`
	Processed int                   `json:"processed"`
	Total     int                   `json:"total"`
	Errors    []service.IngestError `json:"errors"`
}

// IngestByteString handles POST /api/byte_string: a batch of hex/base64
// encoded 20-byte frames. Per-frame failures come back in the errors list
// with a 200; only a missing messages array (400) or an unreachable store
// (503) fails the call.
func (a *API) IngestByteString(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req ingestRequest
	if err := readBodyJSON(r, 4<<20, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: body is not valid JSON")
		return
	}
	if req.Messages == nil {
		writeError(w, http.StatusBadRequest, "invalid request: missing messages array")
		return
	}

	result, err := a.pipeline.Ingest(r.Context(), *req.Messages)
	if err != nil {
		a.logger.Error("Batch ingest failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}

	writeJSON(w, http.StatusOK, ingestResponse{
		Status:    "success",
		Processed: result.Processed,
		Total:     result.Total,
		Errors:    result.Errors,
	})
}
