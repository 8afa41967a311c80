package leds

import (
	"sync"

	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/logger"
)

// MaxDuty is full brightness.
const MaxDuty = 255

// DutyWriter sets the PWM duty cycle of one output.
type DutyWriter interface {
	SetDuty(duty uint8) error
}

// Light is a dimmable light. Writes go straight to the hardware; the last
// write wins.
type Light struct {
	name string
	w    DutyWriter
	log  *logger.Logger

	mu   sync.Mutex
	duty int
}

// NewLight returns a light at duty 0. The hardware is not touched until the
// first Set.
func NewLight(name string, w DutyWriter, log *logger.Logger) *Light {
	return &Light{name: name, w: w, log: log}
}

// Set writes the duty cycle, clamped to 0..MaxDuty.
func (l *Light) Set(duty int) {
	if duty < 0 {
		duty = 0
	}
	if duty > MaxDuty {
		duty = MaxDuty
	}
	l.mu.Lock()
	l.duty = duty
	l.mu.Unlock()

	if l.w == nil {
		return
	}
	if err := l.w.SetDuty(uint8(duty)); err != nil && l.log != nil {
		l.log.Warnw("pwm write failed", "light", l.name, "duty", duty, "err", err)
	}
}

// Duty returns the last duty cycle written.
func (l *Light) Duty() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.duty
}
