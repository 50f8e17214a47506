package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tahahayali/type-int--disasterRecovery/internal/buffer"
	"github.com/tahahayali/type-int--disasterRecovery/internal/models"
	"github.com/tahahayali/type-int--disasterRecovery/internal/repository"
)

// flakyStore wraps the memory store so tests can fail the bulk insert and
// interleave buffer writes with an in-flight flush.
type flakyStore struct {
	repository.RecordStore
	failBulk   bool
	beforeBulk func()
}

func (s *flakyStore) BulkInsertLocations(ctx context.Context, samples []models.LocationSample) (int, error) {
	if s.beforeBulk != nil {
		s.beforeBulk()
	}
	if s.failBulk {
		return 0, errors.New("connection refused")
	}
	return s.RecordStore.BulkInsertLocations(ctx, samples)
}

func sampleFor(deviceID string, at time.Time) models.LocationSample {
	return models.LocationSample{
		DeviceID:   deviceID,
		Latitude:   42.88,
		Longitude:  -78.87,
		Type:       models.PersonTypeVictim,
		SampleTime: at,
	}
}

func TestFlushOnce_EmptyBufferIsNoOp(t *testing.T) {
	store := repository.NewMemoryStore()
	buf := buffer.NewLocationBuffer()
	scheduler := NewFlushScheduler(store, buf, time.Minute, zap.NewNop())

	n, err := scheduler.FlushOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestFlushOnce_PersistsAndClearsBuffer(t *testing.T) {
	store := repository.NewMemoryStore()
	buf := buffer.NewLocationBuffer()
	scheduler := NewFlushScheduler(store, buf, time.Minute, zap.NewNop())

	sampleTime := time.Now().UTC().Add(-time.Minute)
	buf.Put(sampleFor("0001", sampleTime))
	buf.Put(sampleFor("0002", sampleTime))

	n, err := scheduler.FlushOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 0, buf.Size())

	rows, err := store.LatestLocationsSince(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.False(t, row.RecordedTime.IsZero(), "flush must stamp recorded_time")
		assert.Equal(t, sampleTime, row.SampleTime)
	}
}

func TestFlushOnce_FailureRestoresBuffer(t *testing.T) {
	store := &flakyStore{RecordStore: repository.NewMemoryStore(), failBulk: true}
	buf := buffer.NewLocationBuffer()
	scheduler := NewFlushScheduler(store, buf, time.Minute, zap.NewNop())

	sample := sampleFor("0001", time.Now().UTC())
	buf.Put(sample)

	_, err := scheduler.FlushOnce(context.Background())
	require.Error(t, err)

	restored, ok := buf.Get("0001")
	require.True(t, ok, "failed flush must not lose the sample")
	assert.Equal(t, sample.SampleTime, restored.SampleTime)
}

func TestFlushOnce_FailureKeepsNewerConcurrentPut(t *testing.T) {
	memory := repository.NewMemoryStore()
	buf := buffer.NewLocationBuffer()

	old := sampleFor("0001", time.Now().UTC().Add(-time.Minute))
	newer := sampleFor("0001", time.Now().UTC())

	store := &flakyStore{
		RecordStore: memory,
		failBulk:    true,
		// Simulates a request goroutine writing while the flush holds the
		// drained set.
		beforeBulk: func() { buf.Put(newer) },
	}
	scheduler := NewFlushScheduler(store, buf, time.Minute, zap.NewNop())

	buf.Put(old)
	_, err := scheduler.FlushOnce(context.Background())
	require.Error(t, err)

	kept, ok := buf.Get("0001")
	require.True(t, ok)
	assert.Equal(t, newer.SampleTime, kept.SampleTime, "restore must not clobber the newer sample")
}
