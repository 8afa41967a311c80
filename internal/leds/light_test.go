package leds

import (
	"errors"
	"testing"

	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/logger"
)

type fakeDuty struct {
	last  uint8
	calls int
	err   error
}

func (f *fakeDuty) SetDuty(d uint8) error {
	f.last = d
	f.calls++
	return f.err
}

func TestLight_SetClamps(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{-1, 0},
		{0, 0},
		{128, 128},
		{255, 255},
		{300, 255},
	}
	for _, tc := range tests {
		w := &fakeDuty{}
		l := NewLight("center", w, nil)
		l.Set(tc.in)
		if l.Duty() != tc.want {
			t.Errorf("Set(%d): Duty() = %d, want %d", tc.in, l.Duty(), tc.want)
		}
		if int(w.last) != tc.want {
			t.Errorf("Set(%d): wrote %d, want %d", tc.in, w.last, tc.want)
		}
	}
}

func TestLight_LastWriteWins(t *testing.T) {
	w := &fakeDuty{}
	l := NewLight("box", w, nil)
	l.Set(10)
	l.Set(200)
	l.Set(3)
	if w.calls != 3 || w.last != 3 || l.Duty() != 3 {
		t.Errorf("calls=%d last=%d duty=%d", w.calls, w.last, l.Duty())
	}
}

func TestLight_WriteErrorKeepsDuty(t *testing.T) {
	w := &fakeDuty{err: errors.New("no pwm")}
	l := NewLight("box", w, logger.Nop())
	l.Set(42)
	if l.Duty() != 42 {
		t.Errorf("Duty() = %d, want 42", l.Duty())
	}
}
