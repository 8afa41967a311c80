package gpio

import (
	"errors"
	"sync"
)

// FakeInput is a test double that returns scripted input levels.
type FakeInput struct {
	// Levels contains scripted values to return.
	// Each call to Read() consumes the next level.
	Levels []bool

	// index tracks current position in Levels
	index int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Read()
	ReadError error
}

// NewFakeInput creates a FakeInput with the given levels.
func NewFakeInput(levels ...bool) *FakeInput {
	return &FakeInput{Levels: levels}
}

// Read returns the next scripted level.
// If levels are exhausted, returns the last level repeatedly.
func (f *FakeInput) Read() (bool, error) {
	if f.ReadError != nil {
		return false, f.ReadError
	}

	if len(f.Levels) == 0 {
		return false, errors.New("no levels configured")
	}

	level := f.Levels[f.index]
	if f.index < len(f.Levels)-1 {
		f.index++
	}

	return level, nil
}

// Close marks the input as closed.
func (f *FakeInput) Close() error {
	f.Closed = true
	return nil
}

// Reset rewinds the input to the first level.
func (f *FakeInput) Reset() {
	f.index = 0
	f.Closed = false
}

// Set makes every following Read return level.
func (f *FakeInput) Set(level bool) {
	f.Levels = []bool{level}
	f.index = 0
}

// FakeOutputs records writes to the shift register and feedback LED.
type FakeOutputs struct {
	mu       sync.Mutex
	masks    []uint8
	feedback []bool

	// WriteError, if set, is returned by WriteMask and SetFeedback.
	WriteError error
}

// WriteMask records mask.
func (f *FakeOutputs) WriteMask(mask uint8) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.WriteError != nil {
		return f.WriteError
	}
	f.masks = append(f.masks, mask)
	return nil
}

// SetFeedback records the feedback level.
func (f *FakeOutputs) SetFeedback(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.WriteError != nil {
		return f.WriteError
	}
	f.feedback = append(f.feedback, on)
	return nil
}

// Masks returns a copy of all masks written so far.
func (f *FakeOutputs) Masks() []uint8 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint8(nil), f.masks...)
}

// Mask returns the last mask written, or 0.
func (f *FakeOutputs) Mask() uint8 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.masks) == 0 {
		return 0
	}
	return f.masks[len(f.masks)-1]
}

// Feedback returns the last feedback level written.
func (f *FakeOutputs) Feedback() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.feedback) == 0 {
		return false
	}
	return f.feedback[len(f.feedback)-1]
}

// FeedbackWrites returns how many times the feedback LED was written.
func (f *FakeOutputs) FeedbackWrites() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.feedback)
}

// FakeDuty records duty cycle writes.
type FakeDuty struct {
	mu     sync.Mutex
	duties []uint8
}

// SetDuty records duty.
func (f *FakeDuty) SetDuty(duty uint8) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.duties = append(f.duties, duty)
	return nil
}

// Duty returns the last duty written, or 0.
func (f *FakeDuty) Duty() uint8 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.duties) == 0 {
		return 0
	}
	return f.duties[len(f.duties)-1]
}
