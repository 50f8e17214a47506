package repository

import (
	"context"
	"errors"
	"time"

	"github.com/tahahayali/type-int--disasterRecovery/internal/models"
)

var ErrDeviceNotFound = errors.New("device record not found")
var ErrDeviceExists = errors.New("device record already exists")

// RecordStore is the persistence boundary for device records and flushed
// location history. PostgresStore backs it in production; MemoryStore backs
// it when DB_ENABLED=false.
type RecordStore interface {
	// FindByID returns the record for one device, ErrDeviceNotFound when
	// the device was never registered.
	FindByID(ctx context.Context, deviceID string) (*models.DeviceRecord, error)

	// Insert registers a new device record, ErrDeviceExists when the
	// device_id is already taken.
	Insert(ctx context.Context, record *models.DeviceRecord) error

	// SetFields updates the whitelisted columns listed in recordFields.
	// Unknown keys are ignored; a map with no whitelisted keys is a no-op.
	// Values use the Go types the columns map to: string, int, float64,
	// time.Time. Callers mutating a record pass updated_at alongside the
	// changed fields.
	SetFields(ctx context.Context, deviceID string, fields map[string]any) error

	// AppendMessage appends one message entry unless an entry with the same
	// message_id is already stored. Returns false (and no error) for the
	// duplicate case.
	AppendMessage(ctx context.Context, deviceID string, entry models.MessageEntry) (bool, error)

	// BulkInsertLocations persists drained buffer samples as history rows,
	// all-or-nothing. Returns the number of rows written.
	BulkInsertLocations(ctx context.Context, samples []models.LocationSample) (int, error)

	// LatestLocationsSince returns the newest history row per device with
	// recorded_time >= since.
	LatestLocationsSince(ctx context.Context, since time.Time) ([]models.LocationSample, error)

	// CountLocations returns total history rows, distinct devices, and the
	// newest recorded_time (nil when the table is empty).
	CountLocations(ctx context.Context) (int64, int64, *time.Time, error)
}

// recordFields is the SetFields whitelist, in the order clauses are added
// to the UPDATE statement. Keys match device_records columns.
var recordFields = []string{
	"person_type",
	"name",
	"age",
	"height_cm",
	"weight_kg",
	"medical_notes",
	"latitude",
	"longitude",
	"location_time",
	"battery_pct",
	"battery_secs",
	"battery_time",
	"questionnaire",
	"updated_at",
}
