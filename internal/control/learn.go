package control

import (
	"time"

	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/ir"
	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/leds"
)

// startLearning freezes the chase, plays the start signal and arms the
// learner. Key codes then arrive through pollIR.
func (c *Controller) startLearning() {
	c.log.Infow("ir learning started")
	c.eng.Stop(true)
	c.eng.Off()
	c.eng.Signal(leds.SignalLearnStart)
	c.waitSignal()

	now := c.now()
	c.learner.Start(now)
	c.blinkAt = now
	c.flushIR()
}

func (c *Controller) learnCode(hash uint32, now time.Time) {
	c.setFeedback(false, now)
	key := ir.Key(c.learner.Index())
	res, err := c.learner.Feed(hash, now)
	if err != nil {
		c.log.Errorw("saving learned keys failed", "err", err)
	}

	switch res {
	case ir.LearnDone:
		c.log.Infow("ir learning finished")
		c.eng.Signal(leds.SignalLearnDone)
		c.waitSignal()
		c.endLearning(false)
	case ir.LearnNext:
		c.log.Debugw("ir key learned", "key", key, "hash", hashString(hash))
		c.eng.Signal(leds.SignalLearnNext)
		c.waitSignal()
		c.learner.Touch(c.now())
		c.flushIR()
	}
}

// endLearning leaves learning mode. With cancel, any codes learned in this
// session are discarded.
func (c *Controller) endLearning(cancel bool) {
	if cancel {
		c.log.Infow("ir learning cancelled")
		c.learner.Cancel()
	}
	c.eng.Stop(false)
	if c.powered && !c.ssActive {
		c.eng.On()
	}
	c.setFeedback(false, c.now())
	c.flushIR()
}
