package button

import "time"

// Detector debounces the input and turns level changes into gestures.
type Detector struct {
	timing    Timing
	line      LineState
	pressedAt time.Time
	reported  bool
	counts    Counts
}

// NewDetector creates a detector with the given timing.
func NewDetector(timing Timing) *Detector {
	return &Detector{timing: timing}
}

// Process takes a new input sample and returns any gestures that should be
// handled. Gestures are only returned after baseline is established, so an
// input that is active at startup must be released first.
func (d *Detector) Process(input Input) []Event {
	var events []Event

	if edge, ok := d.processLine(boolToState(input.Active), input.Time); ok {
		switch edge {
		case StateActive:
			d.pressedAt = d.line.PendingSince
			d.reported = false
		case StateIdle:
			if !d.reported && d.timing.PressOnHold == 0 {
				events = append(events, d.emit(EventPress, input.Time))
			}
			d.reported = true
		}
		d.line.Pending = ""
	}

	if d.line.Baselined && d.line.Stable == StateActive && !d.reported {
		held := input.Time.Sub(d.pressedAt)
		switch {
		case d.timing.PressOnHold > 0 && held >= d.timing.PressOnHold:
			events = append(events, d.emit(EventPress, input.Time))
			d.reported = true
		case d.timing.PressOnHold == 0 && d.timing.LongPress > 0 && held >= d.timing.LongPress:
			events = append(events, d.emit(EventLongPress, input.Time))
			d.reported = true
		}
	}

	return events
}

func (d *Detector) emit(t EventType, now time.Time) Event {
	switch t {
	case EventPress:
		d.counts.Press++
	case EventLongPress:
		d.counts.LongPress++
	}
	return Event{Timestamp: now, Type: t}
}

// processLine handles debounce logic. It returns the new stable state if a
// transition occurred after baseline.
func (d *Detector) processLine(newState State, now time.Time) (State, bool) {
	ln := &d.line

	// First time seeing the line
	if !ln.Baselined {
		if ln.Pending != newState {
			// Start observing, or restart on change
			ln.Pending = newState
			ln.PendingSince = now
			return "", false
		}

		if now.Sub(ln.PendingSince) >= d.timing.Debounce {
			ln.Stable = newState
			ln.Baselined = true
			ln.Pending = ""
			// Held at startup: wait for a release first.
			d.reported = true
		}
		return "", false
	}

	if newState == ln.Stable {
		// No change from stable state, clear any pending
		ln.Pending = ""
		return "", false
	}

	if ln.Pending != newState {
		ln.Pending = newState
		ln.PendingSince = now
		return "", false
	}

	if now.Sub(ln.PendingSince) >= d.timing.Debounce {
		ln.Stable = newState
		return newState, true
	}

	return "", false
}

func boolToState(b bool) State {
	if b {
		return StateActive
	}
	return StateIdle
}

// IsBaselined returns whether the detector has established a baseline.
func (d *Detector) IsBaselined() bool {
	return d.line.Baselined
}

// Level reports whether the debounced input is active.
func (d *Detector) Level() bool {
	return d.line.Baselined && d.line.Stable == StateActive
}

// Counts returns gesture counts since startup.
func (d *Detector) Counts() Counts {
	return d.counts
}
