// Package control owns the prop's state and runs its main loop.
//
// Everything except the two timer goroutines (IR capture and LED engine)
// happens in Step, on a single goroutine. Blocking spans such as waiting
// for a signal animation to finish go through wait, which keeps the audio
// player and the network client serviced.
package control

import (
	"context"
	"time"

	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/audio"
	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/bttfn"
	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/button"
	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/gpio"
	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/ir"
	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/leds"
	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/logger"
	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/mqtt"
	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/store"
	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/timetravel"
)

// LoopPeriod is how often the main loop calls Step.
const LoopPeriod = 2 * time.Millisecond

const (
	feedbackDuration = 300 * time.Millisecond
	learnBlink       = 200 * time.Millisecond
	inputTimeout     = 30 * time.Second
	saveDelay        = 10 * time.Second
	nightScreenSaver = 10 * time.Second
	signalTimeout    = 10 * time.Second
	waitStep         = 10 * time.Millisecond
	storeTimeout     = 3 * time.Second
)

// boxLevels are the box light floors selectable with *10..*14.
var boxLevels = [...]int{0, 1, 3, 8, 12}

// Feedback drives the IR feedback LED.
type Feedback interface {
	SetFeedback(on bool) error
}

// Store persists settings and the trip log.
type Store interface {
	SaveSetting(ctx context.Context, key store.Key, value int) error
	RecordTrip(ctx context.Context, t store.Trip) (string, error)
}

// Deps are the collaborators of a Controller. Only Engine, Center, Box and
// Player are required.
type Deps struct {
	Engine *leds.Engine
	Center *leds.Light
	Box    *leds.Light
	Player audio.Player

	Feedback  Feedback
	Button    gpio.Input
	IR        ir.Source
	Net       *bttfn.Client
	LinkUp    func(now time.Time) bool
	Broker    mqtt.Bridge
	Store     Store
	Persister ir.Persister
	Log       *logger.Logger

	// Now and Sleep default to the wall clock.
	Now   func() time.Time
	Sleep func(time.Duration)
}

// Options are the behaviour switches and the restored settings.
type Options struct {
	PlaySounds  bool
	Wired       bool
	UseGPSSpeed bool
	FollowNight bool
	FollowPower bool
	// ScreenSaver blanks the prop after this much idle time; 0 disables.
	ScreenSaver time.Duration
	// DefaultSpeed is what *20 restores; 0 selects leds.IdleRate.
	DefaultSpeed int

	DisableDefaultKeys bool
	UserCodes          ir.Codes
	LearnedCodes       ir.Codes

	Settings store.Settings
	Timing   timetravel.Config
}

// Controller is the prop. It is not safe for concurrent use.
type Controller struct {
	log   *logger.Logger
	now   func() time.Time
	sleep func(time.Duration)
	opts  Options

	eng    *leds.Engine
	center *leds.Light
	box    *leds.Light
	player audio.Player
	fb     Feedback
	btn    gpio.Input
	net    *bttfn.Client
	linkUp func(time.Time) bool
	broker mqtt.Bridge
	store  Store

	table   *ir.Table
	learner *ir.Learner
	decoder *ir.Decoder
	seq     *timetravel.Sequencer
	det     *button.Detector

	powered   bool
	waitPower bool

	speed    int
	usingGPS bool
	boxFloor int
	irLocked bool
	folder   int
	shuffle  bool

	fluxMode    int
	fluxTimer   bool
	fluxSince   time.Time
	fluxTimeout time.Duration
	fluxSeen    bool

	ssActive bool
	ssLast   time.Time
	ssDelay  time.Duration
	night    bool

	recording bool
	input     []byte
	lastKey   time.Time
	lastKeyID string

	feedback      bool
	feedbackSince time.Time
	blinkAt       time.Time

	alarm   bool
	notices []bttfn.Notice
	dirty   map[store.Key]time.Time

	trip  timetravel.Snapshot
	trips int
}

// New builds a controller in the powered off state. Call Start before the
// first Step.
func New(d Deps, opts Options) *Controller {
	log := d.Log
	if log == nil {
		log = logger.Nop()
	}
	now := d.Now
	if now == nil {
		now = time.Now
	}
	sleep := d.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	table := ir.NewTable()
	table.SetColumn(ir.ColumnUser, opts.UserCodes)
	table.SetColumn(ir.ColumnLearned, opts.LearnedCodes)
	table.DisableDefault(opts.DisableDefaultKeys)

	c := &Controller{
		log:     log,
		now:     now,
		sleep:   sleep,
		opts:    opts,
		eng:     d.Engine,
		center:  d.Center,
		box:     d.Box,
		player:  d.Player,
		fb:      d.Feedback,
		btn:     d.Button,
		net:     d.Net,
		linkUp:  d.LinkUp,
		broker:  d.Broker,
		store:   d.Store,
		table:   table,
		dirty:   make(map[store.Key]time.Time),
		ssDelay: opts.ScreenSaver,
	}
	c.learner = ir.NewLearner(table, d.Persister)
	if d.IR != nil {
		c.decoder = ir.NewDecoder(d.IR)
	}

	timing := button.ButtonTiming
	if opts.Wired {
		timing = button.WiredTiming
	}
	c.det = button.NewDetector(timing)

	c.opts.DefaultSpeed = clampSpeed(opts.DefaultSpeed)
	st := opts.Settings
	c.speed = clampSpeed(st.Speed)
	c.boxFloor = min(max(st.BoxFloor, 0), len(boxLevels)-1)
	c.irLocked = st.IRLocked
	c.folder = st.MusicFolder
	c.shuffle = st.Shuffle
	c.setFluxTimeout(st.FluxMode)
	c.fluxMode = min(max(st.FluxMode, 0), 3)

	cfg := opts.Timing
	cfg.PlaySounds = opts.PlaySounds
	cfg.PlayFlux = c.fluxMode > 0
	cfg.BoxFloor = boxLevels[c.boxFloor]
	c.seq = timetravel.New(c.eng, c.center, c.box, c.learner, cfg)

	c.eng.SetRate(c.speed)
	return c
}

// Start restores the player state and powers up, or waits for the display
// to report power on when following its fake power switch.
func (c *Controller) Start() {
	now := c.now()
	c.player.Update(now)
	c.player.SetVolume(c.opts.Settings.Volume)
	if c.folder != 0 && !c.player.MusicFolder(c.folder) {
		c.log.Warnw("music folder is empty", "folder", c.folder)
	}
	c.player.MusicShuffle(c.shuffle)

	if c.opts.FollowPower && c.net != nil {
		c.waitPower = true
		c.log.Infow("waiting for display power")
		return
	}
	c.powerOn()
}

// Step runs one iteration of the main loop.
func (c *Controller) Step() {
	now := c.now()
	c.player.Update(now)
	c.trackFlux(now)

	if c.powered {
		c.pollIR(now)
	}
	c.pollBroker(now)
	c.handleNotices(now)
	c.pollButton(now)
	c.pollSequencer(now)
	c.pollNet(now)
	c.applyParams(now)
	c.housekeeping(now)
}

// wait blocks for d while keeping audio and the network client going.
// Notices are queued and handled by the next Step.
func (c *Controller) wait(d time.Duration) {
	start := c.now()
	for {
		c.sleep(waitStep)
		now := c.now()
		c.player.Update(now)
		c.pollNet(now)
		if now.Sub(start) >= d {
			return
		}
	}
}

// waitSignal blocks until the running signal animation ends.
func (c *Controller) waitSignal() {
	start := c.now()
	for !c.eng.SignalDone() {
		c.wait(waitStep)
		if c.now().Sub(start) > signalTimeout {
			c.log.Warnw("signal did not finish", "after", signalTimeout)
			c.eng.ClearSignal()
			return
		}
	}
}

func (c *Controller) flushIR() {
	if c.decoder != nil {
		c.decoder.Flush()
	}
}

func (c *Controller) setFeedback(on bool, now time.Time) {
	c.feedback = on
	if on {
		c.feedbackSince = now
	}
	if c.fb == nil {
		return
	}
	if err := c.fb.SetFeedback(on); err != nil {
		c.log.Warnw("feedback led write failed", "err", err)
	}
}

func (c *Controller) pollButton(now time.Time) {
	if c.btn == nil {
		return
	}
	active, err := c.btn.Read()
	if err != nil {
		c.log.Warnw("button read failed", "err", err)
		return
	}
	events := c.det.Process(button.Input{Active: active, Time: now})
	c.seq.SetWireLevel(c.det.Level())
	if !c.powered {
		return
	}

	for _, ev := range events {
		c.log.Debugw("button", "event", ev.Type, "wired", c.opts.Wired)
		switch ev.Type {
		case button.EventLongPress:
			c.ssEnd(true)
			if !c.seq.Running() && !c.learner.Active() {
				c.startLearning()
			}
		case button.EventPress:
			switch {
			case c.learner.Active():
				c.endLearning(true)
			case !c.opts.Wired && c.ssActive:
				c.ssEnd(true)
			case c.opts.Wired:
				c.trigger(timetravel.SourceWire, now)
			default:
				c.trigger(timetravel.SourceButton, now)
			}
		}
	}
}

// trigger starts a trip if the prop is on and idle.
func (c *Controller) trigger(src timetravel.Source, now time.Time) bool {
	if !c.powered {
		return false
	}
	c.ssEnd(false)
	if !c.seq.TryTrigger(src, now) {
		c.log.Debugw("trigger ignored", "source", src, "phase", c.seq.Phase(), "learning", c.learner.Active())
		return false
	}
	c.log.Infow("time travel", "source", src, "rate", c.seq.Target())
	return true
}

func (c *Controller) pollSequencer(now time.Time) {
	c.seq.SetSounds(c.opts.PlaySounds, c.fluxMode > 0)
	for _, ef := range c.seq.Poll(now) {
		switch ef.Kind {
		case timetravel.EffectPhase:
			c.phaseChanged(ef.Phase, now)
		case timetravel.EffectFluxStart:
			wasMusic := c.player.MusicActive()
			if wasMusic {
				c.player.MusicStop()
			}
			if wasMusic || c.player.Playing() != audio.CueFlux {
				c.playFlux()
			}
			c.fluxSeen = true
			c.fluxTimer = false
		case timetravel.EffectTravelStart:
			c.player.Play(audio.CueTravelStart)
		case timetravel.EffectTimeTravel:
			c.player.Play(audio.CueTimeTravel)
		case timetravel.EffectFluxAppend:
			c.appendFlux()
		}
	}
}

func (c *Controller) phaseChanged(p timetravel.Phase, now time.Time) {
	snap := c.seq.Snapshot()
	c.log.Infow("phase", "phase", p, "source", snap.Source, "mode", snap.Mode)
	switch p {
	case timetravel.Accel:
		c.trip = snap
	case timetravel.Idle:
		c.ssRestart(now)
		c.recordTrip(snap)
	}
	c.publish(mqtt.StatusEvent{
		Timestamp: now,
		Event:     "PHASE",
		Phase:     p.String(),
		Source:    snap.Source.String(),
	})
}

func (c *Controller) recordTrip(snap timetravel.Snapshot) {
	c.trips++
	if c.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	id, err := c.store.RecordTrip(ctx, store.Trip{
		StartedAt: c.trip.Started,
		Source:    c.trip.Source.String(),
		Mode:      c.trip.Mode.String(),
		Aborted:   snap.Aborted,
	})
	if err != nil {
		c.log.Warnw("record trip failed", "err", err)
		return
	}
	c.log.Debugw("trip recorded", "id", id)
}

func (c *Controller) publish(ev mqtt.StatusEvent) {
	if c.broker == nil {
		return
	}
	if err := c.broker.PublishStatus(ev); err != nil {
		c.log.Warnw("status publish failed", "event", ev.Event, "err", err)
	}
}

func (c *Controller) housekeeping(now time.Time) {
	if c.recording && now.Sub(c.lastKey) > inputTimeout {
		c.recording = false
		c.input = c.input[:0]
	}

	if c.feedback && !c.learner.Active() && now.Sub(c.feedbackSince) >= feedbackDuration {
		c.setFeedback(false, now)
	}

	if c.learner.Active() {
		c.ssRestart(now)
		if now.Sub(c.blinkAt) >= learnBlink {
			c.blinkAt = now
			c.setFeedback(!c.feedback, now)
		}
		if c.learner.Expired(now) {
			c.log.Infow("ir learning timed out")
			c.endLearning(false)
		}
	}

	running := c.seq.Running()
	if c.powered && !running && !c.ssActive && c.ssDelay > 0 && now.Sub(c.ssLast) > c.ssDelay {
		c.ssStart()
	}

	if c.fluxTimer && now.Sub(c.fluxSince) > c.fluxTimeout {
		if c.player.Playing() == audio.CueFlux {
			c.player.Stop()
		}
		c.fluxTimer = false
	}

	if !running {
		c.saveDirty(now)
	}

	if c.alarm && !running && !c.learner.Active() {
		c.alarm = false
		c.player.Play(audio.CueAlarm)
		if c.powered && !c.ssActive && c.fluxMode == 1 {
			c.appendFlux()
		}
		c.eng.Signal(leds.SignalAlarm)
	}
}

// Rate limits.
const (
	minSpeed = leds.MinRate
	maxSpeed = leds.MaxRate
)

func clampSpeed(s int) int {
	if s < minSpeed || s > maxSpeed {
		return leds.IdleRate
	}
	return s
}
