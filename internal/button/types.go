// Package button contains pure debounce and press detection for the time
// travel input. It is used both for the push button and for the wired
// trigger line of a Time Circuits Display.
// This package has NO external dependencies (no GPIO, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package button

import "time"

// State represents the debounced level of the input.
type State string

const (
	StateActive State = "ACTIVE"
	StateIdle   State = "IDLE"
)

// EventType represents a detected gesture.
type EventType string

const (
	EventPress     EventType = "PRESS"
	EventLongPress EventType = "LONG_PRESS"
)

// Event represents a gesture to be handled by the controller.
type Event struct {
	Timestamp time.Time
	Type      EventType
}

// Timing configures the detector.
type Timing struct {
	// Debounce is how long a new level must persist to be accepted.
	Debounce time.Duration
	// LongPress is the hold time that reports a long press instead of a
	// press. Zero disables long presses.
	LongPress time.Duration
	// PressOnHold, if non-zero, reports the press once the input has been
	// active this long rather than on release.
	PressOnHold time.Duration
}

var (
	// ButtonTiming suits the mechanical push button.
	ButtonTiming = Timing{Debounce: 50 * time.Millisecond, LongPress: 5 * time.Second}
	// WiredTiming suits the wired trigger from a TCD. The line stays high
	// for the whole travel, so the press is taken on the leading edge.
	WiredTiming = Timing{Debounce: 5 * time.Millisecond, PressOnHold: 50 * time.Millisecond}
)

// LineState tracks debounce state for the input line.
type LineState struct {
	// Current stable (debounced) state
	Stable State
	// Pending state during debounce
	Pending State
	// Time when pending state was first observed
	PendingSince time.Time
	// Whether we have established a baseline
	Baselined bool
}

// Input represents a single sample of the input level.
type Input struct {
	Active bool // true while pressed / driven
	Time   time.Time
}

// Counts tracks the number of each gesture since startup.
type Counts struct {
	Press     int
	LongPress int
}
