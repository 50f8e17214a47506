package buffer

import (
	"sync"

	"github.com/tahahayali/type-int--disasterRecovery/internal/models"
)

// LocationBuffer holds the most recent location sample per device between
// flushes. Request goroutines upsert concurrently; the flush scheduler
// drains it atomically.
type LocationBuffer struct {
	mu      sync.RWMutex
	entries map[string]models.LocationSample
}

// NewLocationBuffer creates an empty buffer.
func NewLocationBuffer() *LocationBuffer {
	return &LocationBuffer{
		entries: map[string]models.LocationSample{},
	}
}

// Put upserts the sample for its device. Last write wins.
func (b *LocationBuffer) Put(sample models.LocationSample) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[sample.DeviceID] = sample
}

// Get returns the buffered sample for one device.
func (b *LocationBuffer) Get(deviceID string) (models.LocationSample, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	sample, ok := b.entries[deviceID]
	return sample, ok
}

// GetAll returns a snapshot of the buffered samples keyed by device.
func (b *LocationBuffer) GetAll() map[string]models.LocationSample {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make(map[string]models.LocationSample, len(b.entries))
	for id, sample := range b.entries {
		out[id] = sample
	}
	return out
}

// Drain removes and returns all buffered samples in one swap. A Put racing
// with Drain lands either in the returned set or in the fresh buffer,
// never nowhere.
func (b *LocationBuffer) Drain() map[string]models.LocationSample {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := b.entries
	b.entries = map[string]models.LocationSample{}
	return out
}

// Restore puts drained samples back after a failed flush. A device that
// took a newer Put while the flush was in flight keeps the newer sample.
func (b *LocationBuffer) Restore(samples map[string]models.LocationSample) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, sample := range samples {
		if _, ok := b.entries[id]; ok {
			continue
		}
		b.entries[id] = sample
	}
}

// Size returns the number of devices currently buffered.
func (b *LocationBuffer) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}
