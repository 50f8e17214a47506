package buffer

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tahahayali/type-int--disasterRecovery/internal/models"
)

func sampleAt(deviceID string, lat float64, ts time.Time) models.LocationSample {
	return models.LocationSample{
		DeviceID:   deviceID,
		Latitude:   lat,
		Longitude:  -78.8784,
		SampleTime: ts,
	}
}

func TestLocationBuffer_PutLastWriteWins(t *testing.T) {
	buf := NewLocationBuffer()
	t0 := time.Date(2024, 11, 27, 20, 0, 0, 0, time.UTC)

	buf.Put(sampleAt("8U4A", 42.1, t0))
	buf.Put(sampleAt("8U4A", 42.2, t0.Add(time.Minute)))

	assert.Equal(t, 1, buf.Size())
	got, ok := buf.Get("8U4A")
	require.True(t, ok)
	assert.InDelta(t, 42.2, got.Latitude, 1e-9)
}

func TestLocationBuffer_DrainEmptiesBuffer(t *testing.T) {
	buf := NewLocationBuffer()
	t0 := time.Date(2024, 11, 27, 20, 0, 0, 0, time.UTC)

	buf.Put(sampleAt("8U4A", 42.1, t0))
	buf.Put(sampleAt("0042", 43.0, t0))

	drained := buf.Drain()
	assert.Len(t, drained, 2)
	assert.Equal(t, 0, buf.Size())

	// Second drain sees nothing.
	assert.Len(t, buf.Drain(), 0)
}

func TestLocationBuffer_RestoreSkipsRefreshedDevices(t *testing.T) {
	buf := NewLocationBuffer()
	t0 := time.Date(2024, 11, 27, 20, 0, 0, 0, time.UTC)

	buf.Put(sampleAt("8U4A", 42.1, t0))
	buf.Put(sampleAt("0042", 43.0, t0))

	drained := buf.Drain()
	require.Len(t, drained, 2)

	// A fresh sample arrives for one device while the flush is failing.
	buf.Put(sampleAt("8U4A", 42.9, t0.Add(time.Minute)))

	buf.Restore(drained)

	assert.Equal(t, 2, buf.Size())
	got, ok := buf.Get("8U4A")
	require.True(t, ok)
	assert.InDelta(t, 42.9, got.Latitude, 1e-9, "refreshed device keeps the newer sample")
	got, ok = buf.Get("0042")
	require.True(t, ok)
	assert.InDelta(t, 43.0, got.Latitude, 1e-9)
}

func TestLocationBuffer_GetAllIsSnapshot(t *testing.T) {
	buf := NewLocationBuffer()
	t0 := time.Date(2024, 11, 27, 20, 0, 0, 0, time.UTC)

	buf.Put(sampleAt("8U4A", 42.1, t0))

	snap := buf.GetAll()
	delete(snap, "8U4A")

	assert.Equal(t, 1, buf.Size())
}

func TestLocationBuffer_ConcurrentPutAndDrain(t *testing.T) {
	buf := NewLocationBuffer()
	t0 := time.Date(2024, 11, 27, 20, 0, 0, 0, time.UTC)

	const writers = 10
	const perWriter = 100

	var wg sync.WaitGroup
	done := make(chan struct{})
	drainerDone := make(chan struct{})

	collected := map[string]models.LocationSample{}

	// One drainer races the writers.
	go func() {
		defer close(drainerDone)
		for {
			select {
			case <-done:
				return
			default:
			}
			for id, sample := range buf.Drain() {
				collected[id] = sample
			}
		}
	}()

	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				buf.Put(sampleAt(fmt.Sprintf("w%d-d%03d", w, i), 42.0, t0))
			}
		}(w)
	}

	wg.Wait()
	close(done)
	<-drainerDone

	// Whatever the drainer missed is still in the buffer; nothing is lost.
	for id, sample := range buf.Drain() {
		collected[id] = sample
	}
	assert.Len(t, collected, writers*perWriter)
}
