package control

import (
	"context"
	"time"

	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/store"
)

// markDirty schedules key to be saved once it has been left alone for
// saveDelay.
func (c *Controller) markDirty(key store.Key, now time.Time) {
	c.dirty[key] = now
}

func (c *Controller) saveDirty(now time.Time) {
	for key, at := range c.dirty {
		if now.Sub(at) > saveDelay {
			delete(c.dirty, key)
			c.saveNow(key, c.settingValue(key))
		}
	}
}

func (c *Controller) saveNow(key store.Key, value int) {
	if c.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := c.store.SaveSetting(ctx, key, value); err != nil {
		c.log.Warnw("saving setting failed", "key", key, "err", err)
		return
	}
	c.log.Debugw("setting saved", "key", key, "value", value)
}

// Settings returns the current values of everything that is persisted.
func (c *Controller) Settings() store.Settings {
	return store.Settings{
		Speed:       c.speed,
		BoxFloor:    c.boxFloor,
		IRLocked:    c.irLocked,
		Volume:      c.player.Volume(),
		FluxMode:    c.fluxMode,
		MusicFolder: c.folder,
		Shuffle:     c.shuffle,
	}
}

func (c *Controller) settingValue(key store.Key) int {
	v, _ := c.Settings().Get(key)
	return v
}

// Flush saves every pending change at once, e.g. on shutdown.
func (c *Controller) Flush() {
	for key := range c.dirty {
		delete(c.dirty, key)
		c.saveNow(key, c.settingValue(key))
	}
}
