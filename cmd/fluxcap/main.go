// Command fluxcap runs the flux capacitor prop: LED chase, lights, IR
// remote, time travel trigger and the link to the time circuits.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/audio"
	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/bttfn"
	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/config"
	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/control"
	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/gpio"
	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/ir"
	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/leds"
	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/logger"
	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/mqtt"
	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/status"
	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/store"
	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/web"
)

const (
	// statusEvery is how often the web status is refreshed from the loop.
	statusEvery = 100 * time.Millisecond
	// networkEvery is how often pi-helper network info is re-read.
	networkEvery = time.Minute
	// linkEvery is how often the network interfaces are checked.
	linkEvery = 5 * time.Second

	startupTimeout = 5 * time.Second
)

func main() {
	configPath := flag.String("config", "", "Path to fluxcap.yaml (default: ./fluxcap.yaml, then /etc/fluxcap/fluxcap.yaml)")
	printKeys := flag.Bool("print-keys", false, "Print the IR key table and exit")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
	log := logger.Get(cfg.LogLevel)
	defer log.Sync()

	if err := run(cfg, *printKeys, log); err != nil {
		log.Fatalw("fatal", "err", err)
	}
}

func run(cfg config.Config, printKeys bool, log *logger.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize persistence
	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	st := store.New(db)
	defer st.Close()

	loadCtx, loadCancel := context.WithTimeout(ctx, startupTimeout)
	defer loadCancel()

	settings, err := st.LoadSettings(loadCtx)
	if err != nil {
		log.Warnw("loading settings failed, using defaults", "err", err)
		settings = store.DefaultSettings()
	}
	learned, haveLearned, err := st.LoadLearnedKeys(loadCtx)
	if err != nil {
		log.Warnw("loading learned keys failed", "err", err)
	}
	userCodes, _, err := cfg.IR.Codes()
	if err != nil {
		return err
	}

	// Print key table mode
	if printKeys {
		printKeyTable(os.Stdout, userCodes, learned, cfg.IR.DisableDefault)
		return nil
	}
	if haveLearned {
		log.Infow("learned ir keys loaded")
	}
	if n, err := st.CountTrips(loadCtx); err == nil {
		log.Infow("trip log opened", "trips", n)
	}

	// Initialize GPIO
	capture := ir.NewCapture()
	irDriver := ir.NewEdgeDriver(capture)
	board, err := gpio.OpenBoard(cfg.Pins, irDriver)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer board.Close()

	center, err := openLight("center", cfg.PWM, cfg.PWM.Center, log)
	if err != nil {
		return err
	}
	box, err := openLight("box", cfg.PWM, cfg.PWM.Box, log)
	if err != nil {
		return err
	}

	engine := leds.NewEngine(board, log.Named("leds"))
	go engine.Run(ctx)
	go irDriver.Run(ctx)

	deps := control.Deps{
		Engine:    engine,
		Center:    center,
		Box:       box,
		Player:    audio.NewVirtual(log.Named("audio")),
		Feedback:  board,
		Button:    board,
		IR:        capture,
		Store:     st,
		Persister: st,
		Log:       log.Named("control"),
	}

	// Initialize MQTT
	var mqttStatus mqtt.ConnectionStatus
	if cfg.MQTT.Broker != "" {
		client := mqtt.NewClient(mqtt.Config{
			Broker:   cfg.MQTT.Broker,
			Auth:     cfg.MQTT.Auth,
			ClientID: cfg.MQTT.ClientID,
		}, log.Named("mqtt"))
		defer client.Close()
		mqttStatus = client
		if cfg.MQTT.PublishStatus {
			deps.Broker = client
		} else {
			deps.Broker = receiveOnly{client}
		}
	}

	// Initialize the time circuits link
	if cfg.BTTFN.Host != "" {
		tr, err := bttfn.ListenUDP(ctx, cfg.BTTFN.Host, cfg.BTTFN.LocalPort, log.Named("bttfn"))
		if err != nil {
			return fmt.Errorf("init bttfn: %w", err)
		}
		defer tr.Close()
		deps.Net = bttfn.NewClient(tr, cfg.BTTFN.Hostname, log.Named("bttfn"))
		deps.LinkUp = (&bttfn.LinkWatcher{Every: linkEvery}).Up
	}

	ctrl := control.New(deps, control.Options{
		PlaySounds:         cfg.Prop.PlaySounds,
		Wired:              cfg.Prop.Wired,
		UseGPSSpeed:        cfg.Prop.UseGPSSpeed,
		FollowNight:        cfg.Prop.FollowNight,
		FollowPower:        cfg.Prop.FollowPower,
		ScreenSaver:        cfg.Prop.ScreenSaver,
		DefaultSpeed:       cfg.Prop.DefaultSpeed,
		DisableDefaultKeys: cfg.IR.DisableDefault,
		UserCodes:          userCodes,
		LearnedCodes:       learned,
		Settings:           settings,
	})

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		Broker:      cfg.MQTT.Broker,
		HTTPAddr:    cfg.HTTPAddr,
		Display:     cfg.BTTFN.Host,
		Wired:       cfg.Prop.Wired,
		PlaySounds:  cfg.Prop.PlaySounds,
		UseGPSSpeed: cfg.Prop.UseGPSSpeed,
		FollowNight: cfg.Prop.FollowNight,
		FollowPower: cfg.Prop.FollowPower,
		ScreenSaver: cfg.Prop.ScreenSaver,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	ctrl.Start()
	tracker.Update(ctrl.State())

	// Publish startup event with full status snapshot
	if deps.Broker != nil {
		snap := tracker.Snapshot()
		startupEvent := mqtt.StatusEvent{
			Timestamp:  snap.Now,
			Event:      "STARTUP",
			Retained:   true,
			RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
		}
		if err := deps.Broker.PublishStatus(startupEvent); err != nil {
			log.Warnw("failed to publish startup event", "err", err)
		} else {
			log.Infow("published startup event")
		}
	}

	// Start HTTP status server
	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker, st, log.Named("web"))
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorw("http server error", "err", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Infow("http status server listening", "addr", cfg.HTTPAddr)
	}

	log.Infow("started",
		"wired", cfg.Prop.Wired,
		"broker", cfg.MQTT.Broker,
		"display", cfg.BTTFN.Host,
		"speed", settings.Speed,
	)

	ticker := time.NewTicker(control.LoopPeriod)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(ctrl, deps.Broker, mqttStatus, tracker, log, time.Now, ticker.C, sigCh)
}

// prop is the part of the controller the main loop drives.
type prop interface {
	Step()
	State() control.State
	Flush()
}

func runLoop(p prop, broker mqtt.Bridge, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, log *logger.Logger, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	var lastStatus, lastNetwork time.Time

	refresh := func() {
		tracker.Update(p.State())
		if mqttStatus != nil {
			tracker.SetMQTTConnected(mqttStatus.IsConnected())
		}
	}

	for {
		select {
		case s := <-sig:
			log.Infow("shutting down", "signal", s)
			p.Flush()

			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			if broker == nil {
				return nil
			}
			event := mqtt.StatusEvent{
				Timestamp: now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if tracker != nil {
				refresh()
				snap := tracker.Snapshot()
				event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
			}
			if err := broker.PublishStatus(event); err != nil {
				log.Warnw("failed to publish shutdown event", "err", err)
			} else {
				log.Infow("published shutdown event")
			}
			return nil

		case <-tick:
			p.Step()

			if tracker == nil {
				continue
			}
			t := now()
			if t.Sub(lastStatus) >= statusEvery {
				lastStatus = t
				refresh()
			}
			if t.Sub(lastNetwork) >= networkEvery {
				lastNetwork = t
				if net := readNetworkInfo(); net != nil {
					tracker.SetNetwork(net)
				}
			}
		}
	}
}

// receiveOnly takes commands from the broker but keeps status to itself.
type receiveOnly struct {
	mqtt.Bridge
}

func (receiveOnly) PublishStatus(mqtt.StatusEvent) error { return nil }

// openLight returns a light on the given PWM channel. A negative channel
// gives a light that is tracked but not wired.
func openLight(name string, cfg config.PWMConfig, channel int, log *logger.Logger) (*leds.Light, error) {
	if channel < 0 {
		return leds.NewLight(name, nil, log), nil
	}
	pwm, err := gpio.OpenPWM(cfg.Chip, channel, cfg.Period)
	if err != nil {
		return nil, fmt.Errorf("open %s light: %w", name, err)
	}
	return leds.NewLight(name, pwm, log), nil
}

// printKeyTable lists every key with its codes in lookup order.
func printKeyTable(w io.Writer, user, learned ir.Codes, disableDefault bool) {
	code := func(c uint32) string {
		if c == 0 {
			return "-"
		}
		return fmt.Sprintf("%08x", c)
	}
	fmt.Fprintf(w, "%-6s %-9s %-9s %-9s\n", "KEY", "USER", "LEARNED", "DEFAULT")
	for k := ir.Key0; k <= ir.KeyOK; k++ {
		def := ir.DefaultCodes[k]
		if disableDefault {
			def = 0
		}
		fmt.Fprintf(w, "%-6s %-9s %-9s %-9s\n", k, code(user[k]), code(learned[k]), code(def))
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
