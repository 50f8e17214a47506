package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tahahayali/type-int--disasterRecovery/internal/models"
)

var _ RecordStore = (*MemoryStore)(nil)

// MemoryStore keeps device records and location history in process memory.
// It backs the server when DB_ENABLED=false and mirrors PostgresStore
// semantics, including the updated_at refresh and message dedup.
type MemoryStore struct {
	mu        sync.RWMutex
	records   map[string]*models.DeviceRecord
	locations []models.LocationSample
}

// NewMemoryStore creates an empty in-memory record store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: map[string]*models.DeviceRecord{},
	}
}

func cloneRecord(rec *models.DeviceRecord) *models.DeviceRecord {
	out := *rec
	if rec.Profile.Age != nil {
		v := *rec.Profile.Age
		out.Profile.Age = &v
	}
	if rec.Profile.HeightCM != nil {
		v := *rec.Profile.HeightCM
		out.Profile.HeightCM = &v
	}
	if rec.Profile.WeightKG != nil {
		v := *rec.Profile.WeightKG
		out.Profile.WeightKG = &v
	}
	if rec.Profile.MedicalNotes != nil {
		v := *rec.Profile.MedicalNotes
		out.Profile.MedicalNotes = &v
	}
	if rec.Location != nil {
		v := *rec.Location
		out.Location = &v
	}
	if rec.Battery != nil {
		v := *rec.Battery
		out.Battery = &v
	}
	if rec.Questionnaire != nil {
		v := *rec.Questionnaire
		out.Questionnaire = &v
	}
	if rec.Messages != nil {
		out.Messages = make([]models.MessageEntry, len(rec.Messages))
		copy(out.Messages, rec.Messages)
	}
	return &out
}

func (s *MemoryStore) FindByID(_ context.Context, deviceID string) (*models.DeviceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[deviceID]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	return cloneRecord(rec), nil
}

func (s *MemoryStore) Insert(_ context.Context, rec *models.DeviceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[rec.DeviceID]; ok {
		return ErrDeviceExists
	}

	stored := cloneRecord(rec)
	now := time.Now().UTC()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = now
	}
	if stored.Messages == nil {
		stored.Messages = []models.MessageEntry{}
	}
	s.records[rec.DeviceID] = stored
	return nil
}

func (s *MemoryStore) SetFields(_ context.Context, deviceID string, fields map[string]any) error {
	has := false
	for _, col := range recordFields {
		if _, ok := fields[col]; ok {
			has = true
			break
		}
	}
	if !has {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[deviceID]
	if !ok {
		return ErrDeviceNotFound
	}

	for _, col := range recordFields {
		v, ok := fields[col]
		if !ok {
			continue
		}
		switch col {
		case "person_type":
			if t, ok := v.(string); ok {
				rec.Profile.Type = t
			}
		case "name":
			if n, ok := v.(string); ok {
				rec.Profile.Name = n
			}
		case "age":
			if n, ok := v.(int); ok {
				rec.Profile.Age = &n
			}
		case "height_cm":
			if f, ok := v.(float64); ok {
				rec.Profile.HeightCM = &f
			}
		case "weight_kg":
			if f, ok := v.(float64); ok {
				rec.Profile.WeightKG = &f
			}
		case "medical_notes":
			if n, ok := v.(string); ok {
				rec.Profile.MedicalNotes = &n
			}
		case "latitude":
			if f, ok := v.(float64); ok {
				if rec.Location == nil {
					rec.Location = &models.LocationState{}
				}
				rec.Location.Latitude = f
			}
		case "longitude":
			if f, ok := v.(float64); ok {
				if rec.Location == nil {
					rec.Location = &models.LocationState{}
				}
				rec.Location.Longitude = f
			}
		case "location_time":
			if t, ok := v.(time.Time); ok {
				if rec.Location == nil {
					rec.Location = &models.LocationState{}
				}
				rec.Location.LastUpdated = t
			}
		case "battery_pct":
			if n, ok := v.(int); ok {
				if rec.Battery == nil {
					rec.Battery = &models.BatteryState{}
				}
				rec.Battery.Percentage = n
			}
		case "battery_secs":
			if n, ok := v.(int); ok {
				if rec.Battery == nil {
					rec.Battery = &models.BatteryState{}
				}
				rec.Battery.SecondsRemaining = n
			}
		case "battery_time":
			if t, ok := v.(time.Time); ok {
				if rec.Battery == nil {
					rec.Battery = &models.BatteryState{}
				}
				rec.Battery.LastUpdated = t
			}
		case "questionnaire":
			if q, ok := v.(string); ok {
				rec.Questionnaire = &q
			}
		case "updated_at":
			if t, ok := v.(time.Time); ok {
				rec.UpdatedAt = t
			}
		}
	}
	return nil
}

func (s *MemoryStore) AppendMessage(_ context.Context, deviceID string, entry models.MessageEntry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[deviceID]
	if !ok {
		return false, ErrDeviceNotFound
	}
	if rec.HasMessage(entry.MessageID) {
		return false, nil
	}
	rec.Messages = append(rec.Messages, entry)
	rec.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (s *MemoryStore) BulkInsertLocations(_ context.Context, samples []models.LocationSample) (int, error) {
	if len(samples) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.locations = append(s.locations, samples...)
	return len(samples), nil
}

func (s *MemoryStore) LatestLocationsSince(_ context.Context, since time.Time) ([]models.LocationSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	latest := map[string]models.LocationSample{}
	for _, sample := range s.locations {
		if sample.RecordedTime.Before(since) {
			continue
		}
		cur, ok := latest[sample.DeviceID]
		if !ok || sample.RecordedTime.After(cur.RecordedTime) {
			latest[sample.DeviceID] = sample
		}
	}

	out := make([]models.LocationSample, 0, len(latest))
	for _, sample := range latest {
		out = append(out, sample)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].DeviceID < out[j].DeviceID
	})
	return out, nil
}

func (s *MemoryStore) CountLocations(_ context.Context) (int64, int64, *time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	devices := map[string]bool{}
	var latest *time.Time
	for _, sample := range s.locations {
		devices[sample.DeviceID] = true
		if latest == nil || sample.RecordedTime.After(*latest) {
			t := sample.RecordedTime
			latest = &t
		}
	}
	return int64(len(s.locations)), int64(len(devices)), latest, nil
}
