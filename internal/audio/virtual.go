package audio

import (
	"time"

	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/logger"
)

// Nominal cue lengths used by Virtual.
var cueLengths = map[Cue]time.Duration{
	CueStartup:     1500 * time.Millisecond,
	CueTravelStart: 5 * time.Second,
	CueTimeTravel:  3 * time.Second,
	CueAlarm:       2 * time.Second,
	CueKey3:        2 * time.Second,
	CueKey6:        2 * time.Second,
	CueFluxing:     4 * time.Second,
}

const defaultTrackLength = 3 * time.Minute

// Virtual is a Player that keeps playback state and timing without an
// audio device. Every change is logged. Folders listed in Tracks hold
// music; all others are empty.
type Virtual struct {
	log *logger.Logger

	now     time.Time
	cur     Cue
	started time.Time
	queue   []Cue
	volume  int

	// Tracks per music folder.
	Tracks      map[int]int
	TrackLength time.Duration
	folder      int
	track       int
	music       bool
	shuffle     bool
	trackStart  time.Time
}

// NewVirtual returns an idle player with music in folder 0.
func NewVirtual(log *logger.Logger) *Virtual {
	if log == nil {
		log = logger.Nop()
	}
	return &Virtual{
		log:         log,
		volume:      DefaultVolume,
		Tracks:      map[int]int{0: 10},
		TrackLength: defaultTrackLength,
	}
}

// Update advances playback to now.
func (v *Virtual) Update(now time.Time) {
	v.now = now

	if v.cur != CueNone && v.cur != CueFlux {
		if now.Sub(v.started) >= cueLengths[v.cur] {
			v.cur = CueNone
			v.next()
		}
	}

	if v.music && now.Sub(v.trackStart) >= v.TrackLength {
		v.MusicNext()
	}
}

func (v *Virtual) next() {
	if len(v.queue) == 0 {
		return
	}
	c := v.queue[0]
	v.queue = v.queue[1:]
	v.start(c)
}

func (v *Virtual) start(c Cue) {
	v.cur = c
	v.started = v.now
	v.log.Debugw("play", "cue", c)
}

// Play stops whatever is playing and starts cue.
func (v *Virtual) Play(c Cue) {
	if v.music {
		v.MusicStop()
	}
	v.queue = nil
	v.start(c)
}

// Append queues cue after the current one.
func (v *Virtual) Append(c Cue) {
	if v.cur == CueNone {
		v.start(c)
		return
	}
	v.queue = append(v.queue, c)
}

// Stop stops the current cue and clears the queue.
func (v *Virtual) Stop() {
	if v.cur != CueNone {
		v.log.Debugw("stop", "cue", v.cur)
	}
	v.cur = CueNone
	v.queue = nil
}

// Playing returns the current cue.
func (v *Virtual) Playing() Cue {
	return v.cur
}

// Done reports whether nothing is playing or queued.
func (v *Virtual) Done() bool {
	return v.cur == CueNone && len(v.queue) == 0
}

// Volume returns the current volume.
func (v *Virtual) Volume() int {
	return v.volume
}

// SetVolume sets the volume, clamped to MinVolume..MaxVolume.
func (v *Virtual) SetVolume(vol int) {
	v.volume = min(max(vol, MinVolume), MaxVolume)
	v.log.Debugw("volume", "level", v.volume)
}

// HaveMusic reports whether the current folder holds music.
func (v *Virtual) HaveMusic() bool {
	return v.Tracks[v.folder] > 0
}

// MusicActive reports whether music is playing.
func (v *Virtual) MusicActive() bool {
	return v.music
}

// MusicPlay starts the current track.
func (v *Virtual) MusicPlay() {
	if !v.HaveMusic() {
		return
	}
	v.Stop()
	v.music = true
	v.trackStart = v.now
	v.log.Infow("music play", "folder", v.folder, "track", v.track, "shuffle", v.shuffle)
}

// MusicStop stops music playback.
func (v *Virtual) MusicStop() {
	if !v.music {
		return
	}
	v.music = false
	v.log.Infow("music stop", "folder", v.folder, "track", v.track)
}

func (v *Virtual) step(delta int) {
	n := v.Tracks[v.folder]
	if n == 0 {
		return
	}
	if v.shuffle {
		delta *= 7
	}
	v.track = ((v.track+delta)%n + n) % n
	if v.music {
		v.trackStart = v.now
	}
	v.log.Infow("music track", "folder", v.folder, "track", v.track)
}

// MusicNext skips to the next track.
func (v *Virtual) MusicNext() {
	v.step(1)
}

// MusicPrev goes back one track.
func (v *Virtual) MusicPrev() {
	v.step(-1)
}

// MusicShuffle turns shuffle on or off.
func (v *Virtual) MusicShuffle(on bool) {
	v.shuffle = on
	v.log.Infow("music shuffle", "on", on)
}

// MusicFolder switches folders and stops music.
func (v *Virtual) MusicFolder(n int) bool {
	if n < 0 || n > 9 {
		return false
	}
	v.MusicStop()
	v.folder = n
	v.track = 0
	v.log.Infow("music folder", "folder", n, "tracks", v.Tracks[n])
	return v.HaveMusic()
}

// Folder returns the current music folder.
func (v *Virtual) Folder() int {
	return v.folder
}

// Track returns the current track index.
func (v *Virtual) Track() int {
	return v.track
}

// Shuffle reports whether shuffle is on.
func (v *Virtual) Shuffle() bool {
	return v.shuffle
}

// MusicGoto jumps to track n of the current folder and plays it.
func (v *Virtual) MusicGoto(n int) bool {
	if n < 0 || n >= v.Tracks[v.folder] {
		return false
	}
	v.track = n
	v.MusicPlay()
	return true
}

var _ Player = (*Virtual)(nil)
