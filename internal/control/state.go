package control

import (
	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/audio"
	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/bttfn"
)

// State is a point in time view of the prop for status consumers.
type State struct {
	Powered     bool
	Phase       string
	Source      string
	Rate        int
	Pattern     int
	Mask        uint8
	Center      int
	Box         int
	FluxMode    int
	FluxPlaying bool
	IRLocked    bool
	Learning    bool
	LearnIndex  int
	ScreenSaver bool
	Night       bool
	GPSSpeed    bool
	Volume      int
	Music       bool
	LastKey     string
	Trips       int

	Remote   bttfn.Params
	NetStats bttfn.Stats
	HaveNet  bool
}

// State returns the current state.
func (c *Controller) State() State {
	st := State{
		Powered:     c.powered,
		Phase:       c.seq.Phase().String(),
		Rate:        c.eng.Rate(),
		Pattern:     int(c.eng.Pattern()),
		Mask:        c.eng.Mask(),
		Center:      c.center.Duty(),
		Box:         c.box.Duty(),
		FluxMode:    c.fluxMode,
		FluxPlaying: c.player.Playing() == audio.CueFlux,
		IRLocked:    c.irLocked,
		Learning:    c.learner.Active(),
		ScreenSaver: c.ssActive,
		Night:       c.night,
		GPSSpeed:    c.usingGPS,
		Volume:      c.player.Volume(),
		Music:       c.player.MusicActive(),
		LastKey:     c.lastKeyID,
		Trips:       c.trips,
		Remote:      bttfn.UnsetParams,
	}
	if c.seq.Running() {
		st.Source = c.seq.Source().String()
	}
	if st.Learning {
		st.LearnIndex = c.learner.Index()
	}
	if c.net != nil {
		st.HaveNet = true
		st.Remote = c.net.Params()
		st.NetStats = c.net.Stats()
	}
	return st
}
