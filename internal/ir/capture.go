// Package ir decodes infra-red remote transmissions into protocol-agnostic
// fingerprints and maps them to logical keys.
//
// Capture is the receiver side: a tick-driven state machine that records
// mark/space durations. The tick source (a 50µs timer, or gpio edge events
// converted to ticks) runs on its own goroutine; everything else reads the
// result through Take, which copies the buffer out under the capture lock.
package ir

import (
	"sync"
	"time"
)

const (
	// TickPeriod is the sampling period of the capture state machine.
	TickPeriod = 50 * time.Microsecond

	// GapTicks is the minimum silence (5ms) separating two transmissions.
	GapTicks = uint32(5 * time.Millisecond / TickPeriod)

	// BufferSize is the capacity of the capture buffer.
	BufferSize = 100
)

// CaptureState is the state of the capture state machine.
type CaptureState uint8

const (
	CaptureIdle CaptureState = iota
	CaptureMark
	CaptureSpace
	CaptureStopped
)

func (s CaptureState) String() string {
	switch s {
	case CaptureIdle:
		return "IDLE"
	case CaptureMark:
		return "MARK"
	case CaptureSpace:
		return "SPACE"
	case CaptureStopped:
		return "STOPPED"
	}
	return "UNKNOWN"
}

// Capture records the timing shape of one transmission at a time.
type Capture struct {
	mu    sync.Mutex
	state CaptureState
	cnt   uint32
	n     int
	buf   [BufferSize]uint32
}

// NewCapture returns an idle capture.
func NewCapture() *Capture {
	return &Capture{}
}

// Tick advances the state machine by one sample period. mark is true while
// the receiver sees IR light.
func (c *Capture) Tick(mark bool) {
	c.mu.Lock()
	c.tick(mark)
	c.mu.Unlock()
}

func (c *Capture) tick(mark bool) {
	c.cnt++

	switch c.state {
	case CaptureIdle:
		if mark {
			// A shorter gap means we joined mid-transmission; keep waiting.
			if c.cnt >= GapTicks {
				c.state = CaptureMark
				c.buf[0] = c.cnt
				c.n = 1
			}
			c.cnt = 0
		}
	case CaptureMark:
		if !mark {
			c.record(CaptureSpace)
		}
	case CaptureSpace:
		if mark {
			c.record(CaptureMark)
		} else if c.cnt > GapTicks {
			c.state = CaptureStopped
		}
	case CaptureStopped:
		if mark {
			c.cnt = 0
		}
	}
}

func (c *Capture) record(next CaptureState) {
	c.state = next
	c.buf[c.n] = c.cnt
	c.n++
	c.cnt = 0
	if c.n >= BufferSize {
		c.state = CaptureStopped
	}
}

// Advance is equivalent to n calls of Tick at the same level. Spans where no
// transition is possible are folded into the counter in one step.
func (c *Capture) Advance(mark bool, n uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for n > 0 {
		switch {
		case c.state == CaptureMark && mark,
			c.state == CaptureIdle && !mark,
			c.state == CaptureStopped && !mark:
			c.cnt += n
			return
		case c.state == CaptureStopped && mark:
			c.cnt = 0
			return
		case c.state == CaptureIdle && mark && c.cnt == 0:
			// Steady state: each tick counts one and resets again.
			return
		}
		c.tick(mark)
		n--
	}
}

// State returns the current state.
func (c *Capture) State() CaptureState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Take returns a copy of a finished transmission and restarts recording.
// It returns false if no transmission is complete.
func (c *Capture) Take() ([]uint32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != CaptureStopped {
		return nil, false
	}
	out := make([]uint32, c.n)
	copy(out, c.buf[:c.n])
	c.state = CaptureIdle
	c.n = 0
	return out, true
}

// Resume discards whatever was recorded and returns to idle.
func (c *Capture) Resume() {
	c.mu.Lock()
	c.state = CaptureIdle
	c.n = 0
	c.mu.Unlock()
}
