package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/tahahayali/type-int--disasterRecovery/internal/buffer"
	"github.com/tahahayali/type-int--disasterRecovery/internal/models"
	"github.com/tahahayali/type-int--disasterRecovery/internal/repository"
)

// LocationMerger joins the persisted location history with the live buffer
// into one latest-position-per-device view. Read-only.
type LocationMerger struct {
	store  repository.RecordStore
	buffer *buffer.LocationBuffer
	logger *zap.Logger
}

// NewLocationMerger creates a new location merger.
func NewLocationMerger(store repository.RecordStore, buf *buffer.LocationBuffer, logger *zap.Logger) *LocationMerger {
	return &LocationMerger{
		store:  store,
		buffer: buf,
		logger: logger,
	}
}

// Latest returns the newest known position per device within the last
// withinHours hours, newest first, truncated to limit. A buffered sample
// beats the persisted row for the same device only when it is strictly
// newer (or when no persisted row exists).
func (m *LocationMerger) Latest(ctx context.Context, withinHours int, limit int) ([]models.LatestLocation, error) {
	since := time.Now().UTC().Add(-time.Duration(withinHours) * time.Hour)

	persisted, err := m.store.LatestLocationsSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load persisted locations: %w", err)
	}

	merged := make(map[string]models.LatestLocation, len(persisted))
	for _, sample := range persisted {
		merged[sample.DeviceID] = models.LatestLocation{
			DeviceID:          sample.DeviceID,
			Latitude:          sample.Latitude,
			Longitude:         sample.Longitude,
			Accuracy:          sample.Accuracy,
			BatteryPercentage: sample.BatteryPercentage,
			Type:              sample.Type,
			QuestionnaireData: sample.QuestionnaireData,
			Timestamp:         sample.RecordedTime,
			LastSeen:          sample.SampleTime,
		}
	}

	for deviceID, sample := range m.buffer.GetAll() {
		if cur, ok := merged[deviceID]; ok && !sample.SampleTime.After(cur.Timestamp) {
			continue
		}
		merged[deviceID] = models.LatestLocation{
			DeviceID:          sample.DeviceID,
			Latitude:          sample.Latitude,
			Longitude:         sample.Longitude,
			Accuracy:          sample.Accuracy,
			BatteryPercentage: sample.BatteryPercentage,
			Type:              sample.Type,
			QuestionnaireData: sample.QuestionnaireData,
			Timestamp:         sample.SampleTime,
			LastSeen:          sample.SampleTime,
		}
	}

	out := make([]models.LatestLocation, 0, len(merged))
	for _, loc := range merged {
		out = append(out, loc)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Stats reports persisted history totals plus the live buffer size.
func (m *LocationMerger) Stats(ctx context.Context) (*models.StoreStats, error) {
	total, devices, latest, err := m.store.CountLocations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count locations: %w", err)
	}

	return &models.StoreStats{
		TotalLocations:     total,
		UniqueDevices:      devices,
		BufferedDevices:    m.buffer.Size(),
		LatestLocationTime: latest,
	}, nil
}
