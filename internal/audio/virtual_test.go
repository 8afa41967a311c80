package audio

import (
	"testing"
	"time"

	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/logger"
	"go.uber.org/zap/zaptest"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func newPlayer(t *testing.T) *Virtual {
	p := NewVirtual(logger.Wrap(zaptest.NewLogger(t)))
	p.Update(t0)
	return p
}

func TestCueEndsAfterLength(t *testing.T) {
	p := newPlayer(t)

	p.Play(CueAlarm)
	if p.Playing() != CueAlarm || p.Done() {
		t.Fatal("expected alarm playing")
	}
	p.Update(t0.Add(cueLengths[CueAlarm] - time.Millisecond))
	if p.Playing() != CueAlarm {
		t.Error("alarm ended early")
	}
	p.Update(t0.Add(cueLengths[CueAlarm]))
	if !p.Done() {
		t.Errorf("expected done, playing %q", p.Playing())
	}
}

func TestAppendQueuesFluxAfterCue(t *testing.T) {
	p := newPlayer(t)

	p.Play(CueTimeTravel)
	p.Append(CueFlux)
	if p.Playing() != CueTimeTravel {
		t.Fatalf("append should not interrupt, playing %q", p.Playing())
	}

	p.Update(t0.Add(cueLengths[CueTimeTravel]))
	if p.Playing() != CueFlux {
		t.Fatalf("expected flux after time travel cue, got %q", p.Playing())
	}

	// Flux loops.
	p.Update(t0.Add(time.Hour))
	if p.Playing() != CueFlux || p.Done() {
		t.Error("flux should keep playing until stopped")
	}

	p.Stop()
	if !p.Done() {
		t.Error("expected done after Stop")
	}
}

func TestAppendWhenIdlePlaysNow(t *testing.T) {
	p := newPlayer(t)
	p.Append(CueFlux)
	if p.Playing() != CueFlux {
		t.Errorf("got %q, want flux", p.Playing())
	}
}

func TestPlayReplacesQueue(t *testing.T) {
	p := newPlayer(t)

	p.Play(CueStartup)
	p.Append(CueFlux)
	p.Play(CueKey3)
	p.Update(t0.Add(cueLengths[CueKey3]))
	if !p.Done() {
		t.Errorf("queued flux should have been dropped, playing %q", p.Playing())
	}
}

func TestVolumeClamped(t *testing.T) {
	p := newPlayer(t)

	if p.Volume() != DefaultVolume {
		t.Errorf("default volume: got %d", p.Volume())
	}
	tests := []struct{ in, want int }{
		{-3, MinVolume},
		{0, 0},
		{12, 12},
		{MaxVolume, MaxVolume},
		{40, MaxVolume},
	}
	for _, tt := range tests {
		p.SetVolume(tt.in)
		if p.Volume() != tt.want {
			t.Errorf("SetVolume(%d): got %d, want %d", tt.in, p.Volume(), tt.want)
		}
	}
}

func TestMusicPlayback(t *testing.T) {
	p := newPlayer(t)

	p.Append(CueFlux)
	p.MusicPlay()
	if !p.MusicActive() || p.Playing() != CueNone {
		t.Fatal("music should replace the flux hum")
	}

	p.MusicNext()
	p.MusicNext()
	p.MusicPrev()
	if p.Track() != 1 {
		t.Errorf("track: got %d, want 1", p.Track())
	}

	// Tracks advance on their own.
	p.Update(t0.Add(p.TrackLength))
	if p.Track() != 2 {
		t.Errorf("track after one length: got %d, want 2", p.Track())
	}

	p.Play(CueKey6)
	if p.MusicActive() {
		t.Error("a cue should stop music")
	}
}

func TestMusicWraps(t *testing.T) {
	p := newPlayer(t)
	p.Tracks[0] = 3

	p.MusicPrev()
	if p.Track() != 2 {
		t.Errorf("prev from 0: got %d, want 2", p.Track())
	}
	p.MusicNext()
	if p.Track() != 0 {
		t.Errorf("next from last: got %d, want 0", p.Track())
	}

	p.MusicShuffle(true)
	p.MusicNext()
	if p.Track() != 1 {
		t.Errorf("shuffle next: got %d, want 1", p.Track())
	}
}

func TestMusicFolder(t *testing.T) {
	p := newPlayer(t)
	p.Tracks[3] = 5

	p.MusicPlay()
	if !p.MusicFolder(3) {
		t.Error("folder 3 has music")
	}
	if p.MusicActive() {
		t.Error("switching folders should stop music")
	}
	if p.MusicFolder(4) {
		t.Error("folder 4 is empty")
	}
	p.MusicPlay()
	if p.MusicActive() {
		t.Error("cannot play an empty folder")
	}
	if p.MusicFolder(10) {
		t.Error("folder 10 is out of range")
	}
	if p.Folder() != 4 {
		t.Errorf("folder: got %d, want 4", p.Folder())
	}
}

func TestMusicGoto(t *testing.T) {
	p := newPlayer(t)

	if !p.MusicGoto(7) {
		t.Fatal("track 7 exists in folder 0")
	}
	if p.Track() != 7 || !p.MusicActive() {
		t.Errorf("got track %d active=%v, want 7 playing", p.Track(), p.MusicActive())
	}
	if p.MusicGoto(10) {
		t.Error("track 10 is past the end of folder 0")
	}
	if p.Track() != 7 {
		t.Errorf("failed goto moved the track to %d", p.Track())
	}
}
