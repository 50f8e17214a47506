package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tahahayali/type-int--disasterRecovery/internal/models"
)

var _ RecordStore = (*PostgresStore)(nil)

// PostgresStore persists device records and location history in PostgreSQL.
type PostgresStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresStore creates a new PostgreSQL-backed record store.
func NewPostgresStore(db *sql.DB, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: logger,
	}
}

// FindByID loads one device record by device_id.
func (s *PostgresStore) FindByID(ctx context.Context, deviceID string) (*models.DeviceRecord, error) {
	query := `
		SELECT
			device_id,
			record_id,
			person_type,
			name,
			age,
			height_cm,
			weight_kg,
			medical_notes,
			latitude,
			longitude,
			location_time,
			battery_pct,
			battery_secs,
			battery_time,
			questionnaire,
			messages,
			created_at,
			updated_at
		FROM device_records
		WHERE device_id = $1
	`

	var (
		rec           models.DeviceRecord
		age           sql.NullInt64
		heightCM      sql.NullFloat64
		weightKG      sql.NullFloat64
		medicalNotes  sql.NullString
		latitude      sql.NullFloat64
		longitude     sql.NullFloat64
		locationTime  sql.NullTime
		batteryPct    sql.NullInt64
		batterySecs   sql.NullInt64
		batteryTime   sql.NullTime
		questionnaire sql.NullString
		messagesJSON  []byte
	)

	err := s.db.QueryRowContext(ctx, query, deviceID).Scan(
		&rec.DeviceID,
		&rec.RecordID,
		&rec.Profile.Type,
		&rec.Profile.Name,
		&age,
		&heightCM,
		&weightKG,
		&medicalNotes,
		&latitude,
		&longitude,
		&locationTime,
		&batteryPct,
		&batterySecs,
		&batteryTime,
		&questionnaire,
		&messagesJSON,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("failed to query device record: %w", err)
	}

	if age.Valid {
		v := int(age.Int64)
		rec.Profile.Age = &v
	}
	if heightCM.Valid {
		rec.Profile.HeightCM = &heightCM.Float64
	}
	if weightKG.Valid {
		rec.Profile.WeightKG = &weightKG.Float64
	}
	if medicalNotes.Valid {
		rec.Profile.MedicalNotes = &medicalNotes.String
	}
	if latitude.Valid && longitude.Valid {
		rec.Location = &models.LocationState{
			Latitude:  latitude.Float64,
			Longitude: longitude.Float64,
		}
		if locationTime.Valid {
			rec.Location.LastUpdated = locationTime.Time
		}
	}
	if batteryPct.Valid {
		rec.Battery = &models.BatteryState{
			Percentage:       int(batteryPct.Int64),
			SecondsRemaining: int(batterySecs.Int64),
		}
		if batteryTime.Valid {
			rec.Battery.LastUpdated = batteryTime.Time
		}
	}
	if questionnaire.Valid {
		rec.Questionnaire = &questionnaire.String
	}
	if len(messagesJSON) > 0 {
		if err := json.Unmarshal(messagesJSON, &rec.Messages); err != nil {
			return nil, fmt.Errorf("failed to decode messages for %s: %w", deviceID, err)
		}
	}

	return &rec, nil
}

// Insert registers a new device record.
func (s *PostgresStore) Insert(ctx context.Context, rec *models.DeviceRecord) error {
	messages := rec.Messages
	if messages == nil {
		messages = []models.MessageEntry{}
	}
	messagesJSON, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to encode messages: %w", err)
	}

	now := time.Now().UTC()
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	updatedAt := rec.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = now
	}

	var latitude, longitude, locationTime any
	if rec.Location != nil {
		latitude = rec.Location.Latitude
		longitude = rec.Location.Longitude
		locationTime = rec.Location.LastUpdated
	}
	var batteryPct, batterySecs, batteryTime any
	if rec.Battery != nil {
		batteryPct = rec.Battery.Percentage
		batterySecs = rec.Battery.SecondsRemaining
		batteryTime = rec.Battery.LastUpdated
	}

	query := `
		INSERT INTO device_records (
			device_id,
			record_id,
			person_type,
			name,
			age,
			height_cm,
			weight_kg,
			medical_notes,
			latitude,
			longitude,
			location_time,
			battery_pct,
			battery_secs,
			battery_time,
			questionnaire,
			messages,
			created_at,
			updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18
		)
		ON CONFLICT (device_id) DO NOTHING
	`

	res, err := s.db.ExecContext(ctx, query,
		rec.DeviceID,
		rec.RecordID,
		rec.Profile.Type,
		rec.Profile.Name,
		rec.Profile.Age,
		rec.Profile.HeightCM,
		rec.Profile.WeightKG,
		rec.Profile.MedicalNotes,
		latitude,
		longitude,
		locationTime,
		batteryPct,
		batterySecs,
		batteryTime,
		rec.Questionnaire,
		messagesJSON,
		createdAt,
		updatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert device record: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read insert result: %w", err)
	}
	if n == 0 {
		return ErrDeviceExists
	}
	return nil
}

// SetFields updates whitelisted columns.
func (s *PostgresStore) SetFields(ctx context.Context, deviceID string, fields map[string]any) error {
	set := []string{}
	args := []any{deviceID}
	argN := 2
	for _, col := range recordFields {
		v, ok := fields[col]
		if !ok {
			continue
		}
		set = append(set, fmt.Sprintf("%s = $%d", col, argN))
		args = append(args, v)
		argN++
	}
	if len(set) == 0 {
		return nil
	}

	q := "UPDATE device_records SET " + strings.Join(set, ", ") + " WHERE device_id = $1"
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("failed to update device record: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if n == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// AppendMessage appends one message entry unless its message_id is already
// stored. The containment guard makes the check-then-append a single
// statement, so concurrent deliveries of the same message cannot insert it
// twice.
func (s *PostgresStore) AppendMessage(ctx context.Context, deviceID string, entry models.MessageEntry) (bool, error) {
	item, err := json.Marshal([]models.MessageEntry{entry})
	if err != nil {
		return false, fmt.Errorf("failed to encode message: %w", err)
	}
	probe := fmt.Sprintf(`[{"message_id":%d}]`, entry.MessageID)

	query := `
		UPDATE device_records
		SET messages = messages || $2::jsonb,
		    updated_at = now()
		WHERE device_id = $1
		  AND NOT messages @> $3::jsonb
	`

	res, err := s.db.ExecContext(ctx, query, deviceID, item, probe)
	if err != nil {
		return false, fmt.Errorf("failed to append message: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read append result: %w", err)
	}
	if n == 1 {
		return true, nil
	}

	// Zero rows updated: either the id is already stored or the device is
	// unknown.
	var exists bool
	err = s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM device_records WHERE device_id = $1)`,
		deviceID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check device record: %w", err)
	}
	if !exists {
		return false, ErrDeviceNotFound
	}
	return false, nil
}

// BulkInsertLocations writes drained buffer samples as history rows inside
// one transaction.
func (s *PostgresStore) BulkInsertLocations(ctx context.Context, samples []models.LocationSample) (int, error) {
	if len(samples) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `
		INSERT INTO location_history (
			device_id,
			geo_point,
			latitude,
			longitude,
			accuracy,
			battery_pct,
			person_type,
			questionnaire,
			sample_time,
			recorded_time
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	for _, sample := range samples {
		point, err := json.Marshal(models.NewGeoPoint(sample.Latitude, sample.Longitude))
		if err != nil {
			return 0, fmt.Errorf("failed to encode geo point: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query,
			sample.DeviceID,
			point,
			sample.Latitude,
			sample.Longitude,
			sample.Accuracy,
			sample.BatteryPercentage,
			sample.Type,
			sample.QuestionnaireData,
			sample.SampleTime,
			sample.RecordedTime,
		); err != nil {
			return 0, fmt.Errorf("failed to insert location for %s: %w", sample.DeviceID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit locations: %w", err)
	}
	return len(samples), nil
}

// LatestLocationsSince returns the newest history row per device with
// recorded_time >= since.
func (s *PostgresStore) LatestLocationsSince(ctx context.Context, since time.Time) ([]models.LocationSample, error) {
	query := `
		SELECT DISTINCT ON (device_id)
			device_id,
			latitude,
			longitude,
			accuracy,
			battery_pct,
			person_type,
			questionnaire,
			sample_time,
			recorded_time
		FROM location_history
		WHERE recorded_time >= $1
		ORDER BY device_id, recorded_time DESC
	`

	rows, err := s.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query locations: %w", err)
	}
	defer rows.Close()

	var samples []models.LocationSample
	for rows.Next() {
		var sample models.LocationSample
		if err := rows.Scan(
			&sample.DeviceID,
			&sample.Latitude,
			&sample.Longitude,
			&sample.Accuracy,
			&sample.BatteryPercentage,
			&sample.Type,
			&sample.QuestionnaireData,
			&sample.SampleTime,
			&sample.RecordedTime,
		); err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		samples = append(samples, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read locations: %w", err)
	}

	return samples, nil
}

// CountLocations returns total history rows, distinct devices, and the
// newest recorded_time.
func (s *PostgresStore) CountLocations(ctx context.Context) (int64, int64, *time.Time, error) {
	query := `
		SELECT COUNT(*), COUNT(DISTINCT device_id), MAX(recorded_time)
		FROM location_history
	`

	var (
		total   int64
		devices int64
		latest  sql.NullTime
	)
	if err := s.db.QueryRowContext(ctx, query).Scan(&total, &devices, &latest); err != nil {
		return 0, 0, nil, fmt.Errorf("failed to count locations: %w", err)
	}

	if latest.Valid {
		t := latest.Time
		return total, devices, &t, nil
	}
	return total, devices, nil, nil
}
