package control

import (
	"time"

	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/audio"
	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/store"
)

// Flux modes: off, always on, and on for a while after each trigger.
const (
	FluxOff = iota
	FluxOn
	Flux30s
	Flux60s
)

func (c *Controller) setFluxTimeout(mode int) {
	if mode == Flux60s {
		c.fluxTimeout = 60 * time.Second
	} else {
		c.fluxTimeout = 30 * time.Second
	}
}

// playFlux starts the flux loop unless flux is disabled.
func (c *Controller) playFlux() {
	if c.fluxMode == FluxOff {
		return
	}
	c.player.Play(audio.CueFlux)
}

// appendFlux queues the flux loop unless flux is disabled.
func (c *Controller) appendFlux() {
	if c.fluxMode == FluxOff {
		return
	}
	c.player.Append(audio.CueFlux)
}

// trackFlux arms the flux timer whenever the loop starts playing.
func (c *Controller) trackFlux(now time.Time) {
	playing := c.player.Playing() == audio.CueFlux
	if playing && !c.fluxSeen {
		c.startFluxTimer(now)
	}
	c.fluxSeen = playing
}

func (c *Controller) startFluxTimer(now time.Time) {
	if c.fluxMode >= Flux30s {
		c.fluxTimer = true
		c.fluxSince = now
	}
}

// contFlux reports whether the flux loop should resume after another
// sound.
func (c *Controller) contFlux() bool {
	switch c.fluxMode {
	case FluxOn:
		return true
	case Flux30s, Flux60s:
		return c.fluxTimer
	}
	return false
}

// setFluxMode switches the flux mode. It may be called while the screen
// saver is active but never while powered off.
func (c *Controller) setFluxMode(mode int, now time.Time) {
	switch mode {
	case FluxOff:
		if c.player.Playing() == audio.CueFlux {
			c.player.Stop()
		}
		c.fluxMode = FluxOff
		c.fluxTimer = false
	case FluxOn:
		c.fluxMode = FluxOn
		if !c.player.MusicActive() && !c.ssActive {
			c.appendFlux()
		}
		c.fluxTimer = false
	case Flux30s, Flux60s:
		if c.player.Playing() == audio.CueFlux {
			c.fluxTimer = true
			c.fluxSince = now
		}
		c.fluxMode = mode
		c.setFluxTimeout(mode)
	default:
		return
	}
	c.log.Infow("flux mode", "mode", mode)
	c.markDirty(store.KeyFluxMode, now)
}

// prepare is the display's early warning of a trip: wake up and get the
// flux loop going.
func (c *Controller) prepare(now time.Time) {
	c.ssEnd(false)
	if !c.opts.PlaySounds {
		return
	}
	wasMusic := c.player.MusicActive()
	if wasMusic {
		c.player.MusicStop()
	}
	if wasMusic || c.player.Playing() != audio.CueFlux {
		c.playFlux()
		c.fluxSeen = c.player.Playing() == audio.CueFlux
	}
	c.startFluxTimer(now)
}

func (c *Controller) ssRestart(now time.Time) {
	c.ssLast = now
}

func (c *Controller) ssStart() {
	if c.ssActive {
		return
	}
	if c.player.Playing() == audio.CueFlux {
		c.player.Stop()
	}
	c.fluxTimer = false
	c.eng.Off()
	c.box.Set(0)
	c.ssActive = true
	c.log.Debugw("screen saver on")
}

// ssEnd wakes the prop. With sound, the flux loop resumes if music is
// not playing.
func (c *Controller) ssEnd(sound bool) {
	if !c.powered {
		return
	}
	c.ssRestart(c.now())
	if !c.ssActive {
		return
	}
	c.eng.On()
	c.box.Set(boxLevels[c.boxFloor])
	if sound && !c.player.MusicActive() && c.fluxMode > FluxOff {
		c.playFlux()
	}
	c.ssActive = false
	c.log.Debugw("screen saver off")
}
