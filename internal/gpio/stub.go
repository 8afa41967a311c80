//go:build !linux

package gpio

import "errors"

// Board is not available on non-Linux platforms.
type Board struct{}

// OpenBoard returns an error on non-Linux platforms.
func OpenBoard(p Pins, sink EdgeSink) (*Board, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Read is not implemented on non-Linux platforms.
func (b *Board) Read() (bool, error) {
	return false, errors.New("gpio: not supported")
}

// WriteMask is not implemented on non-Linux platforms.
func (b *Board) WriteMask(mask uint8) error {
	return errors.New("gpio: not supported")
}

// SetFeedback is not implemented on non-Linux platforms.
func (b *Board) SetFeedback(on bool) error {
	return errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (b *Board) Close() error {
	return nil
}
