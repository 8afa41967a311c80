// Package leds drives the chase LED bank and the two dimmable lights.
//
// The chase bank is fed from a shift register once per pattern tick. Tick is
// the body of the periodic timer; all other methods are the configuration
// surface and take the same lock, so a tick always sees a complete
// configuration.
package leds

import (
	"context"
	"sync"
	"time"

	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/logger"
)

const (
	// TickPeriod is the pattern timer period.
	TickPeriod = 10 * time.Millisecond

	// MinRate and MaxRate bound the ticks per pattern step (10ms..5s).
	MinRate = 1
	MaxRate = 500

	// IdleRate is the default chase speed.
	IdleRate = 20
)

// Register receives the LED mask, one bit per LED.
type Register interface {
	WriteMask(mask uint8) error
}

type overlay struct {
	active bool
	id     Signal
	idx    int
	ticks  uint16
}

// Engine animates the chase LEDs.
type Engine struct {
	mu  sync.Mutex
	reg Register
	log *logger.Logger

	pattern Pattern
	index   int
	ticks   int
	rate    int
	off     bool
	blanked bool
	stopped bool
	redraw  bool

	sig overlay

	shown uint8
	err   error
}

// NewEngine returns an engine that is switched off and runs at IdleRate.
func NewEngine(reg Register, log *logger.Logger) *Engine {
	return &Engine{
		reg:  reg,
		log:  log,
		rate: IdleRate,
		off:  true,
	}
}

// Run drives Tick every TickPeriod until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	t := time.NewTicker(TickPeriod)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			e.Tick()
			if err := e.takeErr(); err != nil && e.log != nil {
				e.log.Warnw("led register write failed", "err", err)
			}
		}
	}
}

// Tick advances the active animation by one period.
func (e *Engine) Tick() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sig.active && e.tickSignal() {
		return
	}
	e.tickBase()
}

func (e *Engine) tickSignal() bool {
	s := &e.sig
	def := &signals[s.id]
	if s.ticks == 0 && s.idx >= len(def.steps) {
		if !def.loop {
			s.active = false
			e.redraw = true
			return false
		}
		s.idx = 0
	}
	st := def.steps[s.idx]
	if s.ticks == 0 {
		e.write(st.mask)
	}
	s.ticks++
	if s.ticks >= st.ticks {
		s.ticks = 0
		s.idx++
	}
	return true
}

func (e *Engine) tickBase() {
	if e.off {
		if !e.blanked {
			e.write(0)
			e.blanked = true
		}
		return
	}

	seq := patterns[e.pattern]
	wrote := false
	if e.blanked || e.redraw {
		e.write(seq[e.index])
		e.blanked = false
		e.redraw = false
		wrote = true
	}
	if e.stopped {
		return
	}
	if e.ticks == 0 && !wrote {
		e.write(seq[e.index])
	}
	e.ticks++
	if e.ticks >= e.rate {
		e.ticks = 0
		e.index = (e.index + 1) % len(seq)
	}
}

func (e *Engine) write(mask uint8) {
	e.shown = mask
	if e.reg == nil {
		return
	}
	if err := e.reg.WriteMask(mask); err != nil && e.err == nil {
		e.err = err
	}
}

func (e *Engine) takeErr() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	err := e.err
	e.err = nil
	return err
}

// On enables output; the pattern continues where it was switched off.
func (e *Engine) On() {
	e.mu.Lock()
	e.off = false
	e.mu.Unlock()
}

// Off blanks the output without touching the pattern phase.
func (e *Engine) Off() {
	e.mu.Lock()
	e.off = true
	e.mu.Unlock()
}

// IsOn reports whether output is enabled.
func (e *Engine) IsOn() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.off
}

// Stop freezes (true) or resumes (false) pattern advancement.
func (e *Engine) Stop(stop bool) {
	e.mu.Lock()
	e.stopped = stop
	e.mu.Unlock()
}

// SetRate sets the ticks per pattern step, clamped to MinRate..MaxRate.
func (e *Engine) SetRate(rate int) {
	if rate < MinRate {
		rate = MinRate
	}
	if rate > MaxRate {
		rate = MaxRate
	}
	e.mu.Lock()
	e.rate = rate
	e.mu.Unlock()
}

// Rate returns the ticks per pattern step.
func (e *Engine) Rate() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rate
}

// SetPattern selects a chase sequence and restarts it. Unknown values
// select PatternRun.
func (e *Engine) SetPattern(p Pattern) {
	if p >= NumPatterns {
		p = PatternRun
	}
	e.mu.Lock()
	e.pattern = p
	e.index = 0
	e.ticks = 0
	e.redraw = true
	e.mu.Unlock()
}

// Pattern returns the active chase sequence.
func (e *Engine) Pattern() Pattern {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pattern
}

// Phase returns the pattern cursor and the tick counter within the step.
func (e *Engine) Phase() (index, ticks int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.index, e.ticks
}

// Signal starts a special signal on top of the pattern. SignalNone clears
// any running signal.
func (e *Engine) Signal(id Signal) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if id == SignalNone || id >= numSignals {
		if e.sig.active {
			e.sig.active = false
			e.redraw = true
		}
		return
	}
	e.sig = overlay{active: true, id: id}
	e.blanked = false
}

// ClearSignal ends a running signal.
func (e *Engine) ClearSignal() {
	e.Signal(SignalNone)
}

// SignalDone reports whether no signal is running.
func (e *Engine) SignalDone() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.sig.active
}

// Mask returns the mask most recently written to the register.
func (e *Engine) Mask() uint8 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.shown
}
