package control

import (
	"time"

	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/bttfn"
	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/leds"
	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/mqtt"
	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/timetravel"
)

// GPS speed at and above which the chase runs at peak rate.
const gpsPeakSpeed = 88

// GPSRate maps a reported speed of 0..87 linearly onto the idle rate down
// to 3 ticks per step; 88 and above gives the peak rate.
func GPSRate(speed int) int {
	if speed >= gpsPeakSpeed {
		return timetravel.PeakRate
	}
	return (gpsPeakSpeed-1-speed)*(leds.IdleRate-3)/(gpsPeakSpeed-1) + 3
}

// pollNet services the network client and queues its notices.
func (c *Controller) pollNet(now time.Time) {
	if c.net == nil {
		return
	}
	up := true
	if c.linkUp != nil {
		up = c.linkUp(now)
	}
	c.notices = append(c.notices, c.net.Poll(now, up)...)
}

func (c *Controller) handleNotices(now time.Time) {
	notes := c.notices
	c.notices = nil
	for _, n := range notes {
		c.log.Debugw("network notice", "notice", n)
		switch n {
		case bttfn.NoticePrepare:
			if c.powered && !c.seq.Running() && !c.learner.Active() {
				c.prepare(now)
			}
		// The wire drives trips when it is connected.
		case bttfn.NoticeStart:
			if !c.opts.Wired {
				c.trigger(timetravel.SourceNetwork, now)
			}
		case bttfn.NoticeReentry:
			if !c.opts.Wired {
				c.seq.Reentry()
			}
		case bttfn.NoticeAbort:
			if !c.opts.Wired {
				c.seq.Abort()
			}
		case bttfn.NoticeAlarm:
			c.alarm = true
		}
	}
}

// applyParams follows the display's speed, night mode and fake power.
func (c *Controller) applyParams(now time.Time) {
	if c.net == nil {
		return
	}
	p := c.net.Params()

	if c.opts.FollowPower && p.PowerOff != bttfn.FlagUnset {
		on := !p.PowerOff.On()
		switch {
		case on && (!c.powered || c.waitPower):
			c.waitPower = false
			c.powerOn()
		case !on && c.powered:
			c.powerOff()
		}
	}

	if c.opts.UseGPSSpeed && c.powered && !c.seq.Running() && !c.learner.Active() {
		if p.Speed >= 0 {
			c.usingGPS = true
			if r := GPSRate(p.Speed); c.eng.Rate() != r {
				c.eng.SetRate(r)
			}
		} else if c.usingGPS {
			c.usingGPS = false
			c.eng.SetRate(c.speed)
		}
	}

	if c.opts.FollowNight {
		night := p.Night.On()
		if night != c.night {
			c.night = night
			c.log.Infow("night mode", "on", night)
			if night {
				c.ssDelay = nightScreenSaver
			} else {
				c.ssEnd(true)
				c.ssDelay = c.opts.ScreenSaver
			}
		}
	}
}

func (c *Controller) pollBroker(now time.Time) {
	if c.broker == nil {
		return
	}
	for {
		msg, ok := c.broker.Receive()
		if !ok {
			return
		}
		c.log.Debugw("mqtt command", "origin", msg.Origin, "command", msg.Command)
		if msg.Origin == mqtt.OriginDisplay {
			c.displayCommand(msg.Command, now)
		} else {
			c.userCommand(msg.Command, now)
		}
	}
}

func (c *Controller) displayCommand(cmd mqtt.Command, now time.Time) {
	switch cmd {
	case mqtt.CmdTimeTravel:
		c.trigger(timetravel.SourceBroker, now)
	case mqtt.CmdReentry:
		c.seq.Reentry()
	case mqtt.CmdAlarm:
		c.alarm = true
	}
}

func (c *Controller) userCommand(cmd mqtt.Command, now time.Time) {
	if c.seq.Running() || c.learner.Active() {
		return
	}
	music := c.player.HaveMusic()
	switch cmd {
	case mqtt.CmdTimeTravel:
		c.trigger(timetravel.SourceCommand, now)
	case mqtt.CmdFluxOn:
		if c.powered {
			c.setFluxMode(FluxOn, now)
		}
	case mqtt.CmdFluxOff:
		c.setFluxMode(FluxOff, now)
	case mqtt.CmdShuffleOn, mqtt.CmdShuffleOff:
		c.setShuffle(cmd == mqtt.CmdShuffleOn, now)
	case mqtt.CmdPlay:
		if music {
			c.player.MusicPlay()
		}
	case mqtt.CmdStop:
		if music && c.player.MusicActive() {
			c.player.MusicStop()
			c.playFlux()
		}
	case mqtt.CmdNext:
		if music {
			c.player.MusicNext()
		}
	case mqtt.CmdPrev:
		if music {
			c.player.MusicPrev()
		}
	}
}
