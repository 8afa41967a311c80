// Package gpio provides the prop's pin I/O with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementations allow testing without hardware.
package gpio

import "time"

// Input reads a single logical input level.
type Input interface {
	// Read returns true while the input is active.
	Read() (bool, error)

	// Close releases GPIO resources.
	Close() error
}

// EdgeSink receives transitions of the IR receiver line. mark is true when
// the receiver starts seeing IR light; at is the kernel event timestamp.
type EdgeSink interface {
	Edge(mark bool, at time.Duration)
}

// Pins holds the line offsets (BCM numbering) of the prop's wiring.
type Pins struct {
	Chip       string `mapstructure:"chip"`
	TT         int    `mapstructure:"tt"`
	IR         int    `mapstructure:"ir"`
	Feedback   int    `mapstructure:"feedback"`
	ShiftData  int    `mapstructure:"shift_data"`
	ShiftClock int    `mapstructure:"shift_clock"`
	ShiftLatch int    `mapstructure:"shift_latch"`
}

// Default pin definitions.
const (
	DefaultChip       = "gpiochip0"
	DefaultPinTT      = 27
	DefaultPinIR      = 17
	DefaultPinFB      = 22
	DefaultPinSerData = 23
	DefaultPinSerClk  = 24
	DefaultPinRegClk  = 25
)

// DefaultPins returns the stock wiring.
func DefaultPins() Pins {
	return Pins{
		Chip:       DefaultChip,
		TT:         DefaultPinTT,
		IR:         DefaultPinIR,
		Feedback:   DefaultPinFB,
		ShiftData:  DefaultPinSerData,
		ShiftClock: DefaultPinSerClk,
		ShiftLatch: DefaultPinRegClk,
	}
}

// shiftBits returns the data line levels for mask, most significant bit
// first, as clocked into the shift register.
func shiftBits(mask uint8) [8]int {
	var out [8]int
	for i := 0; i < 8; i++ {
		if mask&(0x80>>i) != 0 {
			out[i] = 1
		}
	}
	return out
}
