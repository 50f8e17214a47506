package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tahahayali/type-int--disasterRecovery/internal/buffer"
	"github.com/tahahayali/type-int--disasterRecovery/internal/models"
	"github.com/tahahayali/type-int--disasterRecovery/internal/repository"
	"github.com/tahahayali/type-int--disasterRecovery/internal/service"
)

// Location frame for device "0001" at (42.8864, -78.8784).
const buffaloFrame = "00000001000000016747a00001bcfe76247e8a01"

func newTestAPI(t *testing.T) (*API, *repository.MemoryStore, *buffer.LocationBuffer) {
	t.Helper()
	store := repository.NewMemoryStore()
	buf := buffer.NewLocationBuffer()
	pipeline := service.NewIngestionPipeline(store, buf, zap.NewNop())
	merger := service.NewLocationMerger(store, buf, zap.NewNop())
	return NewAPI(pipeline, merger, store, buf, false, zap.NewNop()), store, buf
}

func doRequest(t *testing.T, api *API, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	api.Routes().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func registerTestDevice(t *testing.T, store repository.RecordStore, deviceID string) {
	t.Helper()
	err := store.Insert(context.Background(), &models.DeviceRecord{
		DeviceID: deviceID,
		RecordID: uuid.NewString(),
		Profile:  models.DeviceProfile{Type: models.PersonTypeVictim, Name: "Device " + deviceID},
	})
	require.NoError(t, err)
}

func TestHealth(t *testing.T) {
	api, _, buf := newTestAPI(t)
	buf.Put(models.LocationSample{DeviceID: "0001", SampleTime: time.Now().UTC()})

	rec := doRequest(t, api, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	decodeBody(t, rec, &body)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, false, body["database_connected"])
	assert.Equal(t, float64(1), body["buffered_devices"])
}

func TestIngestByteString_MissingMessagesArray(t *testing.T) {
	api, _, _ := newTestAPI(t)

	rec := doRequest(t, api, http.MethodPost, "/api/byte_string", `{"other": 1}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	decodeBody(t, rec, &body)
	assert.Contains(t, body["error"], "messages")
}

func TestIngestByteString_Batch(t *testing.T) {
	api, store, _ := newTestAPI(t)
	registerTestDevice(t, store, "0001")

	rec := doRequest(t, api, http.MethodPost, "/api/byte_string",
		`{"messages": ["`+buffaloFrame+`", "zzzz"]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body ingestResponse
	decodeBody(t, rec, &body)
	assert.Equal(t, "success", body.Status)
	assert.Equal(t, 1, body.Processed)
	assert.Equal(t, 2, body.Total)
	require.Len(t, body.Errors, 1)
	assert.Equal(t, 1, body.Errors[0].Index)

	found, err := store.FindByID(context.Background(), "0001")
	require.NoError(t, err)
	require.NotNil(t, found.Location)
	assert.InDelta(t, 42.8864, found.Location.Latitude, 1e-4)
	assert.InDelta(t, -78.8784, found.Location.Longitude, 1e-4)
}

func TestDeviceData_Buffered(t *testing.T) {
	api, _, buf := newTestAPI(t)

	rec := doRequest(t, api, http.MethodPost, "/api/device-data",
		`{"device_id": "X9", "latitude": 42.9, "longitude": -78.8, "battery_percentage": 55}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var body map[string]any
	decodeBody(t, rec, &body)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "X9", body["device_id"])
	assert.Equal(t, float64(1), body["buffered_count"])

	sample, ok := buf.Get("X9")
	require.True(t, ok)
	assert.Equal(t, 42.9, sample.Latitude)
	assert.Equal(t, 55, sample.BatteryPercentage)
	assert.Equal(t, models.PersonTypeVictim, sample.Type)
}

func TestDeviceData_MissingCoordinates(t *testing.T) {
	api, _, _ := newTestAPI(t)

	rec := doRequest(t, api, http.MethodPost, "/api/device-data",
		`{"device_id": "X9", "latitude": 42.9}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterDevice(t *testing.T) {
	api, store, _ := newTestAPI(t)

	rec := doRequest(t, api, http.MethodPost, "/api/devices",
		`{"device_id": "8U4A", "type": "first_responder", "name": "Unit 12", "age": 34}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created models.DeviceRecord
	decodeBody(t, rec, &created)
	assert.Equal(t, "8U4A", created.DeviceID)
	assert.NotEmpty(t, created.RecordID)
	assert.Equal(t, models.PersonTypeFirstResponder, created.Profile.Type)
	require.NotNil(t, created.Profile.Age)
	assert.Equal(t, 34, *created.Profile.Age)

	_, err := store.FindByID(context.Background(), "8U4A")
	require.NoError(t, err)

	// Same id again is a conflict.
	rec = doRequest(t, api, http.MethodPost, "/api/devices",
		`{"device_id": "8U4A", "type": "victim"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRegisterDevice_BadType(t *testing.T) {
	api, _, _ := newTestAPI(t)

	rec := doRequest(t, api, http.MethodPost, "/api/devices",
		`{"device_id": "0001", "type": "bystander"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetDevice(t *testing.T) {
	api, store, _ := newTestAPI(t)
	registerTestDevice(t, store, "0001")

	rec := doRequest(t, api, http.MethodGet, "/api/devices/0001", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body models.DeviceRecord
	decodeBody(t, rec, &body)
	assert.Equal(t, "0001", body.DeviceID)

	rec = doRequest(t, api, http.MethodGet, "/api/devices/NOPE", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLocations(t *testing.T) {
	api, _, buf := newTestAPI(t)

	now := time.Now().UTC()
	buf.Put(models.LocationSample{DeviceID: "0001", Latitude: 42.9, Longitude: -78.8, SampleTime: now})
	buf.Put(models.LocationSample{DeviceID: "0002", Latitude: 43.0, Longitude: -78.7, SampleTime: now.Add(-time.Minute)})

	rec := doRequest(t, api, http.MethodGet, "/api/locations?hours=1&limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body locationsResponse
	decodeBody(t, rec, &body)
	assert.Equal(t, "success", body.Status)
	assert.Equal(t, 2, body.Count)
	require.Len(t, body.Locations, 2)
	assert.Equal(t, "0001", body.Locations[0].DeviceID, "newest first")
}

func TestStatsEndpoint(t *testing.T) {
	api, store, buf := newTestAPI(t)

	now := time.Now().UTC()
	_, err := store.BulkInsertLocations(context.Background(), []models.LocationSample{
		{DeviceID: "0001", SampleTime: now.Add(-time.Second), RecordedTime: now},
	})
	require.NoError(t, err)
	buf.Put(models.LocationSample{DeviceID: "0002", SampleTime: now})

	rec := doRequest(t, api, http.MethodGet, "/api/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	decodeBody(t, rec, &body)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, float64(1), body["total_locations"])
	assert.Equal(t, float64(1), body["unique_devices"])
	assert.Equal(t, float64(1), body["buffered_devices"])
	assert.NotNil(t, body["latest_location_time"])
}

func TestExportLocations(t *testing.T) {
	api, _, buf := newTestAPI(t)
	buf.Put(models.LocationSample{DeviceID: "0001", Latitude: 42.9, Longitude: -78.8, SampleTime: time.Now().UTC()})

	rec := doRequest(t, api, http.MethodGet, "/api/locations/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		rec.Header().Get("Content-Type"),
	)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.NotZero(t, rec.Body.Len())
}

func TestMethodNotAllowed(t *testing.T) {
	api, _, _ := newTestAPI(t)

	rec := doRequest(t, api, http.MethodGet, "/api/byte_string", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = doRequest(t, api, http.MethodPost, "/api/locations", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
