package internal

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/audio"
	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/control"
	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/gpio"
	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/leds"
	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/logger"
	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/mqtt"
	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/status"
	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/store"
)

// prop is a controller wired to fakes for everything but the database.
type prop struct {
	t      *testing.T
	now    time.Time
	next   time.Time
	eng    *leds.Engine
	reg    *gpio.FakeOutputs
	btn    *gpio.FakeInput
	broker *mqtt.FakeBridge
	st     *store.Store
	ctrl   *control.Controller
}

func openStore(t *testing.T, path string) *store.Store {
	t.Helper()
	db, err := store.Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	st := store.New(db)
	t.Cleanup(func() { st.Close() })
	return st
}

func newProp(t *testing.T, st *store.Store) *prop {
	t.Helper()
	log := logger.Wrap(zaptest.NewLogger(t))

	settings, err := st.LoadSettings(context.Background())
	if err != nil {
		t.Fatalf("load settings: %v", err)
	}

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := &prop{
		t:      t,
		now:    start,
		next:   start,
		reg:    &gpio.FakeOutputs{},
		btn:    gpio.NewFakeInput(false),
		broker: mqtt.NewFakeBridge(),
		st:     st,
	}
	p.eng = leds.NewEngine(p.reg, log)
	p.ctrl = control.New(control.Deps{
		Engine:    p.eng,
		Center:    leds.NewLight("center", &gpio.FakeDuty{}, log),
		Box:       leds.NewLight("box", &gpio.FakeDuty{}, log),
		Player:    audio.NewVirtual(log),
		Feedback:  p.reg,
		Button:    p.btn,
		Broker:    p.broker,
		Store:     st,
		Persister: st,
		Log:       log,
		Now:       func() time.Time { return p.now },
		Sleep:     p.advance,
	}, control.Options{
		PlaySounds: true,
		Settings:   settings,
	})
	p.ctrl.Start()
	p.run(100 * time.Millisecond)
	return p
}

func (p *prop) advance(d time.Duration) {
	p.now = p.now.Add(d)
	for !p.now.Before(p.next) {
		p.eng.Tick()
		p.next = p.next.Add(leds.TickPeriod)
	}
}

func (p *prop) run(d time.Duration) {
	end := p.now.Add(d)
	for p.now.Before(end) {
		p.advance(control.LoopPeriod)
		p.ctrl.Step()
	}
}

func (p *prop) push() {
	p.btn.Set(true)
	p.run(200 * time.Millisecond)
	p.btn.Set(false)
	p.run(100 * time.Millisecond)
}

// TestIntegrationTripIsLogged runs a button trip end to end and checks the
// trip log, the MQTT phase stream and the status document.
func TestIntegrationTripIsLogged(t *testing.T) {
	st := openStore(t, filepath.Join(t.TempDir(), "fc.db"))
	p := newProp(t, st)

	p.push()
	p.run(15 * time.Second)

	n, err := st.CountTrips(context.Background())
	if err != nil {
		t.Fatalf("count trips: %v", err)
	}
	if n != 1 {
		t.Fatalf("trips: got %d, want 1", n)
	}
	trips, err := st.RecentTrips(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent trips: %v", err)
	}
	if trips[0].Source != "button" || trips[0].Aborted {
		t.Errorf("trip: got %+v", trips[0])
	}

	want := []string{"accel", "peak", "reentry", "idle"}
	got := p.broker.Phases()
	if len(got) != len(want) {
		t.Fatalf("phases: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("phase %d: got %s, want %s", i, got[i], want[i])
		}
	}

	tr := status.NewTracker(p.now, status.Config{})
	tr.Update(p.ctrl.State())
	var sj status.StatusJSON
	if err := json.Unmarshal(status.FormatJSON(tr.Snapshot()), &sj); err != nil {
		t.Fatalf("invalid status JSON: %v", err)
	}
	if sj.Status.Prop.Trips != 1 || sj.Status.Prop.Phase != "idle" {
		t.Errorf("status: got trips=%d phase=%s", sj.Status.Prop.Trips, sj.Status.Prop.Phase)
	}
}

// TestIntegrationSettingsSurviveRestart changes the flux mode over MQTT and
// checks that a second controller on the same database starts with it.
func TestIntegrationSettingsSurviveRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fc.db")
	p := newProp(t, openStore(t, path))

	if p.ctrl.State().FluxMode != control.FluxOn {
		t.Fatalf("default flux mode: got %d", p.ctrl.State().FluxMode)
	}
	p.broker.Deliver(mqtt.TopicCommand, "flux_off")
	p.run(11 * time.Second)

	if got := p.ctrl.State().FluxMode; got != control.FluxOff {
		t.Fatalf("flux mode: got %d, want off", got)
	}

	p2 := newProp(t, openStore(t, path))
	if got := p2.ctrl.State().FluxMode; got != control.FluxOff {
		t.Errorf("flux mode after restart: got %d, want off", got)
	}
}

// TestIntegrationFlushOnShutdown saves pending changes without waiting.
func TestIntegrationFlushOnShutdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fc.db")
	p := newProp(t, openStore(t, path))

	p.broker.Deliver(mqtt.TopicCommand, "MP_SHUFFLE_ON")
	p.run(time.Second)
	p.ctrl.Flush()

	settings, err := openStore(t, path).LoadSettings(context.Background())
	if err != nil {
		t.Fatalf("load settings: %v", err)
	}
	if !settings.Shuffle {
		t.Error("shuffle was not saved by Flush")
	}
}
