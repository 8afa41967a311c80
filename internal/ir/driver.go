package ir

import (
	"context"
	"sync"
	"time"
)

// FlushPeriod is how often Run folds elapsed wall time into the capture
// while the receiver line is quiet.
const FlushPeriod = 2 * time.Millisecond

// EdgeDriver feeds a Capture from timestamped line transitions instead of
// a 50µs timer. Edge events from the kernel carry their own timestamps, so
// the sample count between two edges is exact; Flush covers the silence
// after the last edge so the end-of-transmission gap is still detected.
type EdgeDriver struct {
	mu      sync.Mutex
	capture *Capture
	level   bool
	started bool
	last    time.Duration
	flushed uint32
	base    time.Time
	now     func() time.Time
}

// NewEdgeDriver returns a driver for c. The line is assumed idle (space).
func NewEdgeDriver(c *Capture) *EdgeDriver {
	return &EdgeDriver{capture: c, now: time.Now}
}

func ticksIn(d time.Duration) uint32 {
	if d <= 0 {
		return 0
	}
	return uint32(d / TickPeriod)
}

// Edge records a transition to mark at the monotonic timestamp at.
func (d *EdgeDriver) Edge(mark bool, at time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		n := ticksIn(at - d.last)
		if n > d.flushed {
			d.capture.Advance(d.level, n-d.flushed)
		}
	}
	d.started = true
	d.level = mark
	d.last = at
	d.flushed = 0
	d.base = d.now()
}

// Flush advances the capture at the current level by the wall time since
// the last edge that has not been accounted for yet.
func (d *EdgeDriver) Flush(now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.started {
		return
	}
	n := ticksIn(now.Sub(d.base))
	if n > d.flushed {
		d.capture.Advance(d.level, n-d.flushed)
		d.flushed = n
	}
}

// Run calls Flush every FlushPeriod until ctx is done.
func (d *EdgeDriver) Run(ctx context.Context) {
	t := time.NewTicker(FlushPeriod)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			d.Flush(now)
		}
	}
}
