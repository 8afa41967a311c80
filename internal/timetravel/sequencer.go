// Package timetravel implements the three phase time travel sequence.
//
// A Sequencer is polled from the main loop. It drives the chase rate and the
// two lights directly and reports everything else (sound cues, phase
// changes) as Effects for the caller to carry out.
package timetravel

import (
	"math/rand"
	"time"
)

// Phase of a trip.
type Phase uint8

const (
	Idle Phase = iota
	Accel
	Peak
	Reentry
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Accel:
		return "accel"
	case Peak:
		return "peak"
	case Reentry:
		return "reentry"
	}
	return "unknown"
}

// Source identifies what started a trip.
type Source uint8

const (
	SourceButton Source = iota
	SourceIR
	SourceCommand
	SourceWire
	SourceNetwork
	SourceBroker
)

func (s Source) String() string {
	switch s {
	case SourceButton:
		return "button"
	case SourceIR:
		return "ir"
	case SourceCommand:
		return "command"
	case SourceWire:
		return "wire"
	case SourceNetwork:
		return "network"
	case SourceBroker:
		return "broker"
	}
	return "unknown"
}

// Mode decides how the accel and peak phases end.
type Mode uint8

const (
	// Standalone phases run for fixed durations.
	Standalone Mode = iota
	// Wired runs end the peak when the trigger input drops.
	Wired
	// Network runs end the peak on a reentry or abort notice.
	Network
)

func (m Mode) String() string {
	switch m {
	case Standalone:
		return "standalone"
	case Wired:
		return "wired"
	case Network:
		return "network"
	}
	return "unknown"
}

func modeFor(src Source) Mode {
	switch src {
	case SourceWire:
		return Wired
	case SourceNetwork, SourceBroker:
		return Network
	}
	return Standalone
}

// Default timing.
const (
	AccelDuration = 5 * time.Second
	PeakDuration  = 5 * time.Second
	LeadTime      = 5 * time.Second
)

const (
	maxDuty = 255

	flickerMask   = 0b11000111
	flickerPeriod = 20 * time.Millisecond
	flickerEnd    = 4800 * time.Millisecond
	darkEnd       = 5500 * time.Millisecond

	centerPace = 3 * time.Millisecond
	boxPace    = 2 * time.Millisecond
	ratePace   = 250 * time.Millisecond
)

type boxStep struct {
	at    time.Duration
	level int
}

// boxScript is the box light's opening of the peak phase.
var boxScript = []boxStep{
	{0, 255}, {30 * time.Millisecond, 0}, {120 * time.Millisecond, 255},
	{140 * time.Millisecond, 0}, {200 * time.Millisecond, 255}, {230 * time.Millisecond, 0},
	{380 * time.Millisecond, 255}, {420 * time.Millisecond, 0}, {510 * time.Millisecond, 255},
	{560 * time.Millisecond, 0}, {650 * time.Millisecond, 255}, {700 * time.Millisecond, 0},
	{1500 * time.Millisecond, 0},
}

// Rate is the chase LED speed control.
type Rate interface {
	Rate() int
	SetRate(rate int)
}

// Dimmer is a PWM light.
type Dimmer interface {
	Duty() int
	Set(duty int)
}

// Inhibitor blocks triggers while active (IR learning).
type Inhibitor interface {
	Active() bool
}

// EffectKind names a side effect of Poll or TryTrigger.
type EffectKind uint8

const (
	// EffectPhase reports a phase change; Effect.Phase holds the new phase.
	EffectPhase EffectKind = iota
	// EffectFluxStart starts the flux sound loop at trigger time.
	EffectFluxStart
	// EffectTravelStart plays the travel start cue.
	EffectTravelStart
	// EffectTimeTravel plays the time travel cue.
	EffectTimeTravel
	// EffectFluxAppend queues the flux loop after the current sound.
	EffectFluxAppend
)

func (k EffectKind) String() string {
	switch k {
	case EffectPhase:
		return "phase"
	case EffectFluxStart:
		return "flux-start"
	case EffectTravelStart:
		return "travel-start"
	case EffectTimeTravel:
		return "time-travel"
	case EffectFluxAppend:
		return "flux-append"
	}
	return "unknown"
}

// Effect is a side effect the caller must carry out.
type Effect struct {
	Kind  EffectKind
	Phase Phase
}

// Config holds timing and sound options. Zero durations select the defaults.
type Config struct {
	AccelDuration time.Duration
	PeakDuration  time.Duration
	LeadTime      time.Duration

	// PlaySounds enables the trip sound cues.
	PlaySounds bool
	// PlayFlux appends the flux loop after the time travel cue.
	PlayFlux bool
	// BoxFloor is the box light level reentry fades to.
	BoxFloor int

	// Rand feeds the box light flicker. Nil uses math/rand.
	Rand func() uint32
}

func (c *Config) setDefaults() {
	if c.AccelDuration <= 0 {
		c.AccelDuration = AccelDuration
	}
	if c.PeakDuration <= 0 {
		c.PeakDuration = PeakDuration
	}
	if c.LeadTime <= 0 {
		c.LeadTime = LeadTime
	}
	if c.Rand == nil {
		c.Rand = rand.Uint32
	}
}

// Snapshot is a copy of the sequencer state.
type Snapshot struct {
	Phase    Phase
	Source   Source
	Mode     Mode
	Started  time.Time
	Target   int
	Steps    int
	Interval time.Duration
	Aborted  bool

	CenterDone bool
	BoxDone    bool
	RateDone   bool
}

// Sequencer runs at most one trip at a time. It is not safe for concurrent
// use; all calls come from the main loop.
type Sequencer struct {
	rate    Rate
	center  Dimmer
	box     Dimmer
	inhibit Inhibitor
	cfg     Config

	phase    Phase
	source   Source
	mode     Mode
	tripAt   time.Time
	start    time.Time
	target   int
	steps    int
	interval time.Duration

	lastRate   time.Time
	lastCenter time.Time
	lastBox    time.Time
	scriptIdx  int

	centerDone bool
	boxDone    bool
	rateDone   bool

	wireHigh bool
	reentry  bool
	abort    bool

	pending []Effect
}

// New returns an idle sequencer. inhibit may be nil.
func New(rate Rate, center, box Dimmer, inhibit Inhibitor, cfg Config) *Sequencer {
	cfg.setDefaults()
	return &Sequencer{
		rate:    rate,
		center:  center,
		box:     box,
		inhibit: inhibit,
		cfg:     cfg,
	}
}

// SetSounds changes the sound options for the next boundary.
func (s *Sequencer) SetSounds(playSounds, playFlux bool) {
	s.cfg.PlaySounds = playSounds
	s.cfg.PlayFlux = playFlux
}

// SetBoxFloor sets the level the box light fades to during reentry.
func (s *Sequencer) SetBoxFloor(level int) {
	s.cfg.BoxFloor = level
}

// SetWireLevel records the debounced level of the wired trigger input.
func (s *Sequencer) SetWireLevel(high bool) {
	s.wireHigh = high
}

// Phase returns the current phase.
func (s *Sequencer) Phase() Phase { return s.phase }

// Running reports whether a trip is in progress.
func (s *Sequencer) Running() bool { return s.phase != Idle }

// Source returns what started the current or last trip.
func (s *Sequencer) Source() Source { return s.source }

// Target returns the rate the current or last trip returns to.
func (s *Sequencer) Target() int { return s.target }

// Snapshot returns a copy of the current state.
func (s *Sequencer) Snapshot() Snapshot {
	return Snapshot{
		Phase:      s.phase,
		Source:     s.source,
		Mode:       s.mode,
		Started:    s.tripAt,
		Target:     s.target,
		Steps:      s.steps,
		Interval:   s.interval,
		Aborted:    s.abort,
		CenterDone: s.centerDone,
		BoxDone:    s.boxDone,
		RateDone:   s.rateDone,
	}
}

// TryTrigger starts a trip. It returns false, changing nothing, if a trip is
// already running or the inhibitor is active.
func (s *Sequencer) TryTrigger(src Source, now time.Time) bool {
	if s.phase != Idle {
		return false
	}
	if s.inhibit != nil && s.inhibit.Active() {
		return false
	}

	s.source = src
	s.mode = modeFor(src)
	s.reentry = false
	s.abort = false
	s.centerDone = false
	s.boxDone = false
	s.rateDone = false

	if s.cfg.PlaySounds {
		s.pending = append(s.pending, Effect{Kind: EffectFluxStart})
	}

	cur := s.rate.Rate()
	s.target = TargetRate(cur)
	if s.target != cur {
		s.rate.SetRate(s.target)
	}
	s.steps = StepCount(s.target)
	s.interval = 0
	if s.steps > 0 {
		s.interval = s.accelDuration() / time.Duration(s.steps)
	}

	s.tripAt = now
	s.lastRate = now
	s.pending = s.enter(Accel, now, s.pending)
	return true
}

// Reentry tells a network run that the companion has started reentry.
func (s *Sequencer) Reentry() bool {
	if s.phase == Idle || s.mode != Network {
		return false
	}
	s.reentry = true
	return true
}

// Abort tells a network run that the companion aborted the trip. Remaining
// cues of the accel and peak boundaries are skipped.
func (s *Sequencer) Abort() bool {
	if s.phase == Idle || s.mode != Network {
		return false
	}
	s.abort = true
	return true
}

// Cancel ends a running trip at once and restores the target rate.
func (s *Sequencer) Cancel() bool {
	if s.phase == Idle {
		return false
	}
	s.rate.SetRate(s.target)
	s.phase = Idle
	s.pending = nil
	return true
}

// Poll advances the running phase and returns the effects of this call and
// of any TryTrigger since the last Poll. At most one phase transition
// happens per call.
func (s *Sequencer) Poll(now time.Time) []Effect {
	out := s.pending
	s.pending = nil

	switch s.phase {
	case Accel:
		out = s.pollAccel(now, out)
	case Peak:
		out = s.pollPeak(now, out)
	case Reentry:
		out = s.pollReentry(now, out)
	}
	return out
}

func (s *Sequencer) enter(p Phase, now time.Time, out []Effect) []Effect {
	s.phase = p
	s.start = now
	return append(out, Effect{Kind: EffectPhase, Phase: p})
}

func (s *Sequencer) accelDuration() time.Duration {
	if s.mode == Standalone {
		return s.cfg.AccelDuration
	}
	return s.cfg.LeadTime
}

func (s *Sequencer) pollAccel(now time.Time, out []Effect) []Effect {
	if !s.abort && now.Sub(s.start) < s.accelDuration() {
		if s.interval > 0 && now.Sub(s.lastRate) >= s.interval {
			s.rate.SetRate(Decelerate(s.rate.Rate()))
			s.lastRate = now
		}
		return out
	}

	s.rate.SetRate(PeakRate)
	s.scriptIdx = 0
	s.lastBox = now
	out = s.enter(Peak, now, out)
	if s.cfg.PlaySounds && !s.abort {
		out = append(out, Effect{Kind: EffectTravelStart})
	}
	return out
}

func (s *Sequencer) peakOver(now time.Time) bool {
	switch s.mode {
	case Wired:
		return !s.wireHigh
	case Network:
		return s.reentry || s.abort
	}
	return now.Sub(s.start) >= s.cfg.PeakDuration
}

func (s *Sequencer) pollPeak(now time.Time, out []Effect) []Effect {
	if !s.peakOver(now) {
		if d := s.center.Duty(); d < maxDuty {
			s.center.Set(min(d+2, maxDuty))
		}
		s.animateBox(now)
		if s.rate.Rate() != PeakRate {
			s.rate.SetRate(PeakRate)
		}
		return out
	}

	if s.mode == Standalone {
		s.box.Set(maxDuty)
	}
	s.lastRate = now
	s.lastCenter = now
	s.lastBox = now
	out = s.enter(Reentry, now, out)
	if s.cfg.PlaySounds {
		if !s.abort {
			out = append(out, Effect{Kind: EffectTimeTravel})
		}
		if s.cfg.PlayFlux {
			out = append(out, Effect{Kind: EffectFluxAppend})
		}
	}
	return out
}

func (s *Sequencer) animateBox(now time.Time) {
	el := now.Sub(s.start)
	if s.scriptIdx < len(boxScript) {
		if st := boxScript[s.scriptIdx]; el > st.at {
			s.box.Set(st.level)
			s.scriptIdx++
		}
		s.lastBox = now
		return
	}

	switch {
	case el < flickerEnd:
		if now.Sub(s.lastBox) > flickerPeriod {
			s.box.Set(int(s.cfg.Rand()%255) & flickerMask)
			s.lastBox = now
		}
	case el < darkEnd:
		if s.box.Duty() != 0 {
			s.box.Set(0)
		}
	default:
		if d := s.box.Duty(); d < maxDuty {
			s.box.Set(d + 1)
		}
	}
}

func (s *Sequencer) pollReentry(now time.Time, out []Effect) []Effect {
	if !s.centerDone && now.Sub(s.lastCenter) > centerPace {
		if d := s.center.Duty(); d > 0 {
			s.center.Set(d - 1)
			s.lastCenter = now
		} else {
			s.centerDone = true
			s.center.Set(0)
		}
	}

	if !s.boxDone && now.Sub(s.lastBox) > boxPace {
		floor := s.cfg.BoxFloor
		if d := s.box.Duty(); d > floor {
			s.box.Set(d - 1)
			s.lastBox = now
		} else {
			s.boxDone = true
			s.box.Set(floor)
		}
	}

	if !s.rateDone && now.Sub(s.lastRate) >= ratePace {
		if r := s.rate.Rate(); r < s.target {
			s.rate.SetRate(min(Accelerate(r), s.target))
			s.lastRate = now
		} else {
			s.rateDone = true
			s.rate.SetRate(s.target)
		}
	}

	if s.centerDone && s.boxDone && s.rateDone {
		out = s.enter(Idle, now, out)
	}
	return out
}
