package control

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/audio"
	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/bttfn"
	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/gpio"
	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/ir"
	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/leds"
	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/logger"
	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/mqtt"
	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/store"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type bufSource struct {
	bufs [][]uint32
}

func (s *bufSource) Take() ([]uint32, bool) {
	if len(s.bufs) == 0 {
		return nil, false
	}
	b := s.bufs[0]
	s.bufs = s.bufs[1:]
	return b, true
}

func (s *bufSource) Resume() {
	if len(s.bufs) > 0 {
		s.bufs = s.bufs[1:]
	}
}

type fakeStore struct {
	saved map[store.Key]int
	saves []store.Key
	trips []store.Trip
	err   error
}

func (s *fakeStore) SaveSetting(_ context.Context, key store.Key, value int) error {
	if s.err != nil {
		return s.err
	}
	if s.saved == nil {
		s.saved = make(map[store.Key]int)
	}
	s.saved[key] = value
	s.saves = append(s.saves, key)
	return nil
}

func (s *fakeStore) RecordTrip(_ context.Context, t store.Trip) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.trips = append(s.trips, t)
	return "trip", nil
}

type fakePersister struct {
	saved []ir.Codes
}

func (f *fakePersister) PersistLearnedKeys(codes ir.Codes) error {
	f.saved = append(f.saved, codes)
	return nil
}

// remote is what the fake display answers to every request.
type remote struct {
	speed    int
	night    bool
	powerOff bool
}

// keyBuf returns a capture whose fingerprint is unique to k: the key number
// in base 3 becomes the three compare digits.
func keyBuf(k ir.Key) []uint32 {
	scale := func(a uint32, d int) uint32 {
		switch d {
		case 0:
			return a / 2
		case 2:
			return a * 2
		}
		return a
	}
	n := int(k)
	buf := []uint32{201, 1000, 1000, 0, 0, 0}
	buf[3] = scale(buf[1], n%3)
	buf[4] = scale(buf[2], n/3%3)
	buf[5] = scale(buf[3], n/9%3)
	return buf
}

func keyCodes() ir.Codes {
	var codes ir.Codes
	for k := ir.Key0; k <= ir.KeyOK; k++ {
		codes[k], _ = ir.Hash(keyBuf(k))
	}
	return codes
}

type rig struct {
	t *testing.T

	now      time.Time
	nextTick time.Time

	eng     *leds.Engine
	reg     *gpio.FakeOutputs
	center  *leds.Light
	box     *leds.Light
	player  *audio.Virtual
	btn     *gpio.FakeInput
	ir      *bufSource
	tr      *bttfn.FakeTransport
	broker  *mqtt.FakeBridge
	store   *fakeStore
	persist *fakePersister

	remote   *remote
	answered uint32

	c *Controller
}

func baseOptions() Options {
	return Options{
		PlaySounds:         true,
		DisableDefaultKeys: true,
		UserCodes:          keyCodes(),
		Settings:           store.DefaultSettings(),
	}
}

// newRig builds and starts a controller. withNet adds a display client.
func newRig(t *testing.T, opts Options, withNet bool) *rig {
	t.Helper()
	log := logger.Wrap(zaptest.NewLogger(t))
	r := &rig{
		t:        t,
		now:      t0,
		nextTick: t0,
		reg:      &gpio.FakeOutputs{},
		btn:      gpio.NewFakeInput(false),
		ir:       &bufSource{},
		broker:   mqtt.NewFakeBridge(),
		store:    &fakeStore{},
		persist:  &fakePersister{},
	}
	r.eng = leds.NewEngine(r.reg, log)
	r.center = leds.NewLight("center", &gpio.FakeDuty{}, log)
	r.box = leds.NewLight("box", &gpio.FakeDuty{}, log)
	r.player = audio.NewVirtual(log)

	d := Deps{
		Engine:    r.eng,
		Center:    r.center,
		Box:       r.box,
		Player:    r.player,
		Feedback:  r.reg,
		Button:    r.btn,
		IR:        r.ir,
		Broker:    r.broker,
		Store:     r.store,
		Persister: r.persist,
		Log:       log,
		Now:       func() time.Time { return r.now },
		Sleep:     r.advance,
	}
	if withNet {
		r.tr = &bttfn.FakeTransport{}
		d.Net = bttfn.NewClient(r.tr, "flux", log)
	}
	r.c = New(d, opts)
	r.c.Start()
	// Let the button detector settle.
	r.run(100 * time.Millisecond)
	return r
}

// advance moves the clock, ticks the LED engine and answers the display
// requests.
func (r *rig) advance(d time.Duration) {
	r.now = r.now.Add(d)
	for !r.now.Before(r.nextTick) {
		r.eng.Tick()
		r.nextTick = r.nextTick.Add(leds.TickPeriod)
	}
	if r.remote != nil && r.tr != nil {
		if id, ok := r.tr.LastID(); ok && id != r.answered {
			r.tr.Respond(r.remote.speed, r.remote.night, r.remote.powerOff)
			r.answered = id
		}
	}
}

func (r *rig) step() {
	r.advance(LoopPeriod)
	r.c.Step()
}

func (r *rig) run(d time.Duration) {
	end := r.now.Add(d)
	for r.now.Before(end) {
		r.step()
	}
}

// press sends one key through the IR path and lets the repeat window pass.
func (r *rig) press(keys ...ir.Key) {
	for _, k := range keys {
		r.ir.bufs = append(r.ir.bufs, keyBuf(k))
		r.step()
		r.run(350 * time.Millisecond)
	}
}

// code enters *digits OK.
func (r *rig) code(digits string) {
	r.press(ir.KeyStar)
	for _, ch := range digits {
		r.press(ir.Key(ch - '0'))
	}
	r.press(ir.KeyOK)
}

func (r *rig) pushButton(hold time.Duration) {
	r.btn.Set(true)
	r.run(hold)
	r.btn.Set(false)
	r.run(100 * time.Millisecond)
}

// notify delivers a display notice. It is received by one Step and acted
// on by the next.
func (r *rig) notify(n bttfn.Notice) {
	r.tr.Inject(bttfn.EncodeNotification(n))
	r.step()
	r.step()
}
