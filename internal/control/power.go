package control

import (
	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/audio"
	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/leds"
	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/mqtt"
	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/timetravel"
)

// powerOn lights the prop and plays the startup sequence.
func (c *Controller) powerOn() {
	c.log.Infow("power on")
	c.powered = true
	c.eng.On()
	c.box.Set(boxLevels[c.boxFloor])

	c.player.Play(audio.CueStartup)
	c.appendFlux()
	c.eng.Signal(leds.SignalStartup)
	c.eng.Stop(false)
	c.waitSignal()

	c.ssRestart(c.now())
	c.ssActive = false
	c.flushIR()
}

// powerOff blanks the prop. A running trip ends at once.
func (c *Controller) powerOff() {
	c.log.Infow("power off")
	c.powered = false

	now := c.now()
	if c.seq.Cancel() {
		// Cancelled trips are not logged.
		c.publish(mqtt.StatusEvent{
			Timestamp: now,
			Event:     "PHASE",
			Phase:     timetravel.Idle.String(),
			Source:    c.seq.Source().String(),
		})
	}
	c.player.MusicStop()
	c.player.Stop()
	c.fluxTimer = false

	c.setFeedback(false, now)
	if c.learner.Active() {
		c.endLearning(true)
	}
	c.eng.Off()
	c.box.Set(0)
	c.center.Set(0)
}
