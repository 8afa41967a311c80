package control

import (
	"strconv"
	"time"

	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/audio"
	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/ir"
	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/leds"
	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/store"
	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/timetravel"
)

// maxInput is the longest code that can be entered after *.
const maxInput = 6

func (c *Controller) pollIR(now time.Time) {
	if c.decoder == nil {
		return
	}
	fp, ok := c.decoder.Poll(now)
	if !ok {
		return
	}
	if c.learner.Active() {
		c.learnCode(fp.Hash, now)
		return
	}
	key, ok := c.table.Lookup(fp.Hash)
	if !ok {
		c.log.Debugw("unknown ir code", "hash", hashString(fp.Hash))
		return
	}
	c.handleKey(key, now)
}

func hashString(h uint32) string {
	return "0x" + strconv.FormatUint(uint64(h), 16)
}

// SlowerSpeed is the chase rate one left-arrow step above rate.
func SlowerSpeed(rate int) int {
	if rate >= 100 {
		rate = rate / 10 * 10
	}
	switch {
	case rate >= 130:
		rate += 20
	case rate >= 90:
		rate += 10
	case rate >= 15:
		rate += 5
	case rate >= 1:
		rate++
	}
	return min(rate, maxSpeed)
}

// FasterSpeed is the chase rate one right-arrow step below rate.
func FasterSpeed(rate int) int {
	if rate >= 100 {
		rate = rate / 10 * 10
	}
	switch {
	case rate >= 150:
		rate -= 20
	case rate >= 100:
		rate -= 10
	case rate >= 20:
		rate -= 5
	case rate > 1:
		rate--
	}
	return max(rate, minSpeed)
}

// handleKey executes one key press.
func (c *Controller) handleKey(key ir.Key, now time.Time) {
	c.log.Debugw("ir key", "key", key, "locked", c.irLocked)
	c.lastKeyID = key.String()

	if c.ssActive && (!c.irLocked || key == ir.KeyHash) {
		c.ssEnd(true)
		return
	}
	if !c.irLocked {
		c.ssRestart(now)
		c.setFeedback(true, now)
	}
	c.lastKey = now

	if c.recording && key <= ir.Key9 {
		if len(c.input) < maxInput {
			c.input = append(c.input, byte('0'+key))
		}
		return
	}

	if c.irLocked && key != ir.KeyStar && key != ir.KeyHash && key != ir.KeyOK {
		return
	}

	running := c.seq.Running()
	switch key {
	case ir.Key0:
		c.trigger(timetravel.SourceIR, now)
	case ir.Key2:
		if (!running || !c.opts.PlaySounds) && c.player.HaveMusic() {
			c.player.MusicPrev()
		}
	case ir.Key3, ir.Key6:
		if !running {
			cue := audio.CueKey3
			if key == ir.Key6 {
				cue = audio.CueKey6
			}
			c.player.Play(cue)
			if c.contFlux() {
				c.appendFlux()
			}
		}
	case ir.Key5:
		if !c.player.HaveMusic() {
			break
		}
		if c.player.MusicActive() {
			c.player.MusicStop()
			if c.contFlux() {
				c.playFlux()
			}
		} else if !running || !c.opts.PlaySounds {
			c.player.MusicPlay()
		}
	case ir.Key8:
		if (!running || !c.opts.PlaySounds) && c.player.HaveMusic() {
			c.player.MusicNext()
		}
	case ir.KeyStar:
		c.input = c.input[:0]
		c.recording = true
	case ir.KeyHash:
		c.input = c.input[:0]
		c.recording = false
	case ir.KeyUp, ir.KeyDown:
		v := c.player.Volume()
		if key == ir.KeyUp {
			v++
		} else {
			v--
		}
		c.player.SetVolume(v)
		c.markDirty(store.KeyVolume, now)
	case ir.KeyLeft, ir.KeyRight:
		if running {
			break
		}
		if key == ir.KeyLeft {
			c.speed = SlowerSpeed(c.speed)
		} else {
			c.speed = FasterSpeed(c.speed)
		}
		if !c.usingGPS {
			c.eng.SetRate(c.speed)
		}
		c.markDirty(store.KeySpeed, now)
	case ir.KeyOK:
		c.execute(string(c.input), now)
		c.input = c.input[:0]
		c.recording = false
	}
}

// execute runs a code entered as *code OK.
func (c *Controller) execute(code string, now time.Time) {
	if code == "" {
		return
	}
	c.log.Infow("ir command", "code", code)
	running := c.seq.Running()
	n, _ := strconv.Atoi(code)

	switch len(code) {
	case 1:
		if !c.irLocked {
			c.eng.SetPattern(leds.Pattern(n))
		}
	case 2:
		if running {
			return
		}
		switch {
		case n <= Flux60s:
			if !c.irLocked {
				c.setFluxMode(n, now)
			}
		case n >= 10 && n <= 14:
			if !c.irLocked {
				c.setBoxFloor(n-10, now)
			}
		case n == 20:
			if !c.irLocked {
				c.speed = c.opts.DefaultSpeed
				if !c.usingGPS {
					c.eng.SetRate(c.speed)
				}
				c.markDirty(store.KeySpeed, now)
			}
		case n == 70:
			c.irLocked = !c.irLocked
			c.markDirty(store.KeyIRLock, now)
			c.log.Infow("ir lock", "locked", c.irLocked)
			if !c.irLocked {
				c.setFeedback(true, now)
			}
		case n == 89:
			if !c.irLocked {
				c.player.Play(audio.CueFluxing)
				if c.contFlux() {
					c.appendFlux()
				}
			}
		case n >= 50 && n <= 59:
			if !c.irLocked {
				c.switchFolder(n-50, now)
			}
		default:
			c.badInput()
		}
	case 3:
		if c.irLocked || running {
			return
		}
		switch {
		case n <= Flux60s:
			c.setFluxMode(n, now)
		case n == 222 || n == 555:
			c.setShuffle(n == 555, now)
		case n == 888:
			c.player.MusicGoto(0)
		default:
			c.badInput()
		}
	case 6:
		if c.irLocked || running {
			return
		}
		if code[:3] == "888" {
			if !c.player.MusicGoto(n % 1000) {
				c.badInput()
			}
			return
		}
		c.badInput()
	default:
		if !c.irLocked {
			c.badInput()
		}
	}
}

func (c *Controller) badInput() {
	if c.seq.Running() {
		return
	}
	c.eng.Signal(leds.SignalBadInput)
}

func (c *Controller) setBoxFloor(idx int, now time.Time) {
	c.boxFloor = idx
	c.box.Set(boxLevels[idx])
	c.seq.SetBoxFloor(boxLevels[idx])
	c.markDirty(store.KeyBoxFloor, now)
}

func (c *Controller) setShuffle(on bool, now time.Time) {
	if !c.player.HaveMusic() {
		return
	}
	c.shuffle = on
	c.player.MusicShuffle(on)
	c.markDirty(store.KeyShuffle, now)
}

// switchFolder selects music folder n, stopping whatever plays from the
// current one.
func (c *Controller) switchFolder(n int, now time.Time) {
	if n == c.folder {
		return
	}
	wasActive := c.player.MusicActive()
	if wasActive {
		c.player.MusicStop()
	}
	if c.player.Playing() == audio.CueFlux {
		c.player.Stop()
	}

	c.eng.Signal(leds.SignalWait)
	have := c.player.MusicFolder(n)
	c.folder = n
	c.saveNow(store.KeyMusicFolder, n)
	c.eng.ClearSignal()
	c.log.Infow("music folder", "folder", n, "music", have)

	if wasActive && c.contFlux() {
		c.playFlux()
	}
}
