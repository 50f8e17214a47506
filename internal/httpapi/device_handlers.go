package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tahahayali/type-int--disasterRecovery/internal/models"
	"github.com/tahahayali/type-int--disasterRecovery/internal/repository"
)

// Health handles GET /api/health.
func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":             "healthy",
		"database_connected": a.dbConnected,
		"buffered_devices":   a.buffer.Size(),
	})
}

type deviceDataRequest struct {
	DeviceID          string   `json:"device_id"`
	Latitude          *float64 `json:"latitude"`
	Longitude         *float64 `json:"longitude"`
	Accuracy          float64  `json:"accuracy"`
	BatteryPercentage int      `json:"battery_percentage"`
	Type              string   `json:"type"`
	QuestionnaireData string   `json:"questionnaire_data"`
}

// DeviceData handles POST /api/device-data: the JSON fast path. The sample
// goes straight into the buffer; no device record is touched, so unlike the
// binary path this accepts unregistered device ids.
func (a *API) DeviceData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req deviceDataRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: body is not valid JSON")
		return
	}
	if req.DeviceID == "" || req.Latitude == nil || req.Longitude == nil {
		writeError(w, http.StatusBadRequest, "device_id, latitude and longitude are required")
		return
	}
	if req.Type == "" {
		req.Type = models.PersonTypeVictim
	}

	a.buffer.Put(models.LocationSample{
		DeviceID:          req.DeviceID,
		Latitude:          *req.Latitude,
		Longitude:         *req.Longitude,
		Accuracy:          req.Accuracy,
		BatteryPercentage: req.BatteryPercentage,
		Type:              req.Type,
		QuestionnaireData: req.QuestionnaireData,
		SampleTime:        time.Now().UTC(),
	})

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":         "success",
		"message":        "data buffered",
		"device_id":      req.DeviceID,
		"buffered_count": a.buffer.Size(),
	})
}

type registerDeviceRequest struct {
	DeviceID     string   `json:"device_id"`
	Type         string   `json:"type"`
	Name         string   `json:"name"`
	Age          *int     `json:"age"`
	HeightCM     *float64 `json:"height_cm"`
	WeightKG     *float64 `json:"weight_kg"`
	MedicalNotes *string  `json:"medical_notes"`
}

// RegisterDevice handles POST /api/devices. Registration is the only way a
// device record comes into existence; telemetry for an unknown device is
// rejected, never auto-registered.
func (a *API) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req registerDeviceRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: body is not valid JSON")
		return
	}
	if req.DeviceID == "" {
		writeError(w, http.StatusBadRequest, "device_id is required")
		return
	}
	if req.Type == "" {
		req.Type = models.PersonTypeVictim
	}
	if req.Type != models.PersonTypeVictim && req.Type != models.PersonTypeFirstResponder {
		writeError(w, http.StatusBadRequest, "type must be victim or first_responder")
		return
	}

	now := time.Now().UTC()
	rec := &models.DeviceRecord{
		DeviceID: req.DeviceID,
		RecordID: uuid.NewString(),
		Profile: models.DeviceProfile{
			Type:         req.Type,
			Name:         req.Name,
			Age:          req.Age,
			HeightCM:     req.HeightCM,
			WeightKG:     req.WeightKG,
			MedicalNotes: req.MedicalNotes,
		},
		Messages:  []models.MessageEntry{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := a.store.Insert(r.Context(), rec); err != nil {
		if errors.Is(err, repository.ErrDeviceExists) {
			writeError(w, http.StatusConflict, "device already registered: "+req.DeviceID)
			return
		}
		a.logger.Error("Failed to register device",
			zap.String("device_id", req.DeviceID),
			zap.Error(err),
		)
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}

	a.logger.Info("Registered device",
		zap.String("device_id", rec.DeviceID),
		zap.String("type", rec.Profile.Type),
	)
	writeJSON(w, http.StatusCreated, rec)
}

// GetDevice handles GET /api/devices/{id}. Messages are sorted by message
// time for display; the stored order is delivery order.
func (a *API) GetDevice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	deviceID := strings.TrimPrefix(r.URL.Path, "/api/devices/")
	if deviceID == "" || strings.Contains(deviceID, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	rec, err := a.store.FindByID(r.Context(), deviceID)
	if err != nil {
		if errors.Is(err, repository.ErrDeviceNotFound) {
			writeError(w, http.StatusNotFound, "unknown device: "+deviceID)
			return
		}
		a.logger.Error("Failed to load device",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}

	rec.Messages = rec.MessagesByTime()
	writeJSON(w, http.StatusOK, rec)
}
