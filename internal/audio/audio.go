// Package audio defines the sound collaborator of the controller. Cues are
// identifiers; mapping them to files and decoding is up to the player.
package audio

import "time"

// Cue identifies a sound.
type Cue string

const (
	CueNone        Cue = ""
	CueStartup     Cue = "startup"
	CueTravelStart Cue = "travelstart"
	CueTimeTravel  Cue = "timetravel"
	CueAlarm       Cue = "alarm"
	CueKey3        Cue = "key3"
	CueKey6        Cue = "key6"
	CueFluxing     Cue = "fluxing"
	// CueFlux is the flux hum. It loops until stopped.
	CueFlux Cue = "flux"
)

// Volume range.
const (
	MinVolume     = 0
	MaxVolume     = 19
	DefaultVolume = 6
)

// Player plays cues and drives the music player.
type Player interface {
	// Update advances playback to now.
	Update(now time.Time)

	// Play stops whatever is playing, including music, and starts cue.
	Play(cue Cue)
	// Append queues cue after the current one, or plays it now if idle.
	Append(cue Cue)
	// Stop stops the current cue and clears the queue.
	Stop()
	// Playing returns the current cue, or CueNone.
	Playing() Cue
	// Done reports whether nothing is playing or queued.
	Done() bool

	Volume() int
	SetVolume(v int)

	HaveMusic() bool
	MusicActive() bool
	MusicPlay()
	MusicStop()
	MusicNext()
	MusicPrev()
	MusicShuffle(on bool)
	// MusicGoto plays track n of the current folder. It reports false if
	// there is no such track.
	MusicGoto(n int) bool
	// MusicFolder switches to folder n (0-9). It reports false if the
	// folder holds no music.
	MusicFolder(n int) bool
}
