// Package progress bounds the volume of download and fusion progress events.
// Native callbacks fire on every chunk; the throttler forwards a fraction
// only when it moved far enough since the last forwarded one.
package progress

import (
	"sync"
	"time"
)

// Sink receives a fractional progress value in [0,1].
type Sink func(fraction float64)

// Throttler forwards fractions whose distance from the last forwarded value
// is at least the configured threshold. The first report always passes.
type Throttler struct {
	mu        sync.Mutex
	threshold float64
	last      float64
	sink      Sink
}

// NewThrottler wraps sink with a fractional-delta gate. Thresholds in use
// range from 0.02 (per-stream transfers) to 0.1 depending on the call site.
func NewThrottler(threshold float64, sink Sink) *Throttler {
	return &Throttler{threshold: threshold, last: -1, sink: sink}
}

// Report offers a fraction to the throttler, forwarding it when it cleared
// the threshold. Safe for concurrent use.
func (t *Throttler) Report(fraction float64) {
	t.mu.Lock()
	if fraction-t.last < t.threshold {
		t.mu.Unlock()
		return
	}
	t.last = fraction
	sink := t.sink
	t.mu.Unlock()

	if sink != nil {
		sink(fraction)
	}
}

// Sink adapts the throttler to the Sink type.
func (t *Throttler) Sink() Sink { return t.Report }

// Meter derives byte counts and transfer rates from fractional progress
// against a known total size.
type Meter struct {
	mu   sync.Mutex
	size int64
	seen int64
	prev time.Time
	now  func() time.Time
}

// NewMeter creates a meter for a transfer of size bytes. A non-positive size
// disables rate estimation.
func NewMeter(size int64) *Meter {
	m := &Meter{size: size, now: time.Now}
	m.prev = m.now()
	return m
}

// Observe converts a fraction into the interval's byte delta and a rate in
// bytes per second. Rate is 0 when size or elapsed time is unavailable.
func (m *Meter) Observe(fraction float64) (bytes int64, rate float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.size <= 0 {
		return 0, 0
	}

	total := int64(float64(m.size) * fraction)
	bytes = total - m.seen
	m.seen = total

	now := m.now()
	elapsed := now.Sub(m.prev).Seconds()
	m.prev = now
	if elapsed > 0 {
		rate = float64(bytes) / elapsed
	}
	return bytes, rate
}

// Tracker publishes the most recent progress of the active stream for
// read-only observers such as the terminal status view.
type Tracker struct {
	mu       sync.Mutex
	label    string
	fraction float64
	active   bool
}

// Set records the active transfer label and its current fraction.
func (t *Tracker) Set(label string, fraction float64) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.label = label
	t.fraction = fraction
	t.active = true
	t.mu.Unlock()
}

// Clear marks the tracker idle.
func (t *Tracker) Clear() {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.active = false
	t.mu.Unlock()
}

// Current returns the last published label and fraction, and whether a
// transfer is active at all.
func (t *Tracker) Current() (label string, fraction float64, active bool) {
	if t == nil {
		return "", 0, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.label, t.fraction, t.active
}
