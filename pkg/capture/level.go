package capture

import (
	"context"
	"encoding/binary"
	"sync"
	"time"
)

// LevelBuckets is the fixed number of loudness samples published by a
// [LevelMeter]. The meter output always has exactly this length.
const LevelBuckets = 30

// levelFloor keeps every bucket visibly non-zero so rendered bars never
// fully collapse during silence.
const levelFloor = 0.1

// DefaultMeterInterval is the cadence at which [LevelMeter.Run] republishes
// samples.
const DefaultMeterInterval = 50 * time.Millisecond

// LevelMeter derives a fixed-width sequence of normalized loudness samples
// from the live capture stream. It is purely derived state: it reads PCM fed
// to it, never touches the device.
//
// Safe for concurrent use: the capture callback calls Feed while the polling
// loop in Run republishes.
type LevelMeter struct {
	mu      sync.Mutex
	latest  []byte
	samples [LevelBuckets]float64
}

// NewLevelMeter returns a meter with all buckets at the silence floor.
func NewLevelMeter() *LevelMeter {
	m := &LevelMeter{}
	m.Reset()
	return m
}

// Feed records the most recent PCM chunk from the capture callback. The
// chunk is copied; the caller may reuse its buffer.
func (m *LevelMeter) Feed(pcm []byte) {
	buf := make([]byte, len(pcm))
	copy(buf, pcm)
	m.mu.Lock()
	m.latest = buf
	m.mu.Unlock()
}

// Run polls the latest chunk on the given cadence and republishes the bucket
// samples until ctx is canceled. It checks cancellation on every tick, so no
// reads are scheduled after the recording stops.
func (m *LevelMeter) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultMeterInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.update()
		}
	}
}

// update downsamples the latest chunk into exactly [LevelBuckets] buckets by
// picking evenly spaced samples, normalized to [0,1] with the silence floor.
func (m *LevelMeter) update() {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.latest) / 2
	if n == 0 {
		return
	}
	for i := range m.samples {
		idx := i * n / LevelBuckets
		sample := int16(binary.LittleEndian.Uint16(m.latest[idx*2 : idx*2+2]))
		v := float64(sample)
		if v < 0 {
			v = -v
		}
		norm := v / 32767
		if norm < levelFloor {
			norm = levelFloor
		}
		if norm > 1 {
			norm = 1
		}
		m.samples[i] = norm
	}
}

// Samples returns a copy of the current loudness buckets. The length is
// always [LevelBuckets].
func (m *LevelMeter) Samples() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]float64, LevelBuckets)
	copy(out, m.samples[:])
	return out
}

// Reset drops the buffered chunk and floors every bucket.
func (m *LevelMeter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latest = nil
	for i := range m.samples {
		m.samples[i] = levelFloor
	}
}
