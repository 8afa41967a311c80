//go:build linux

package gpio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"
)

// Board drives the prop's pins through the Linux GPIO character device.
type Board struct {
	chip     *gpiocdev.Chip
	tt       *gpiocdev.Line
	ir       *gpiocdev.Line
	feedback *gpiocdev.Line

	mu    sync.Mutex
	shift *gpiocdev.Lines
}

// shift line order within Board.shift
const (
	lineData = iota
	lineClock
	lineLatch
)

// OpenBoard requests all lines. IR transitions are delivered to sink from
// the gpiocdev event goroutine.
func OpenBoard(p Pins, sink EdgeSink) (*Board, error) {
	chip, err := gpiocdev.NewChip(p.Chip)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	b := &Board{chip: chip}

	// Pull-down matches the Pi boot default; the TCD drives the line high.
	b.tt, err = chip.RequestLine(p.TT, gpiocdev.AsInput, gpiocdev.WithPullDown)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("request TT pin %d: %w", p.TT, err)
	}

	// The receiver output is active-low: a falling edge starts a mark.
	b.ir, err = chip.RequestLine(p.IR,
		gpiocdev.WithPullUp,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
			if sink != nil {
				sink.Edge(evt.Type == gpiocdev.LineEventFallingEdge, evt.Timestamp)
			}
		}))
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("request IR pin %d: %w", p.IR, err)
	}

	b.feedback, err = chip.RequestLine(p.Feedback, gpiocdev.AsOutput(0))
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("request feedback pin %d: %w", p.Feedback, err)
	}

	b.shift, err = chip.RequestLines([]int{p.ShiftData, p.ShiftClock, p.ShiftLatch}, gpiocdev.AsOutput(0, 0, 0))
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("request shift register pins: %w", err)
	}

	return b, nil
}

// Read returns the level of the time travel input.
func (b *Board) Read() (bool, error) {
	v, err := b.tt.Value()
	if err != nil {
		return false, fmt.Errorf("read TT pin: %w", err)
	}
	return v == 1, nil
}

// WriteMask clocks mask into the flux LED shift register and latches it.
func (b *Board) WriteMask(mask uint8) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	vals := []int{0, 0, 0}
	set := func() error {
		if err := b.shift.SetValues(vals); err != nil {
			return fmt.Errorf("write shift register: %w", err)
		}
		return nil
	}
	for _, bit := range shiftBits(mask) {
		vals[lineData], vals[lineClock], vals[lineLatch] = bit, 0, 0
		if err := set(); err != nil {
			return err
		}
		vals[lineClock] = 1
		if err := set(); err != nil {
			return err
		}
	}
	vals[lineClock], vals[lineLatch] = 0, 1
	if err := set(); err != nil {
		return err
	}
	vals[lineLatch] = 0
	return set()
}

// SetFeedback drives the IR feedback LED.
func (b *Board) SetFeedback(on bool) error {
	v := 0
	if on {
		v = 1
	}
	if err := b.feedback.SetValue(v); err != nil {
		return fmt.Errorf("write feedback pin: %w", err)
	}
	return nil
}

// Close releases all lines. Outputs are returned to inputs with pull-down
// to match the Pi boot defaults.
func (b *Board) Close() error {
	var errs []error

	if b.shift != nil {
		if err := b.shift.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure shift pins: %w", err))
		}
		if err := b.shift.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close shift pins: %w", err))
		}
	}
	for _, l := range []struct {
		name string
		line *gpiocdev.Line
	}{{"feedback", b.feedback}, {"IR", b.ir}, {"TT", b.tt}} {
		if l.line == nil {
			continue
		}
		if err := l.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s pin: %w", l.name, err))
		}
	}
	if b.chip != nil {
		if err := b.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	return errors.Join(errs...)
}
