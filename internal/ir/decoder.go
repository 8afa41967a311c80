package ir

import "time"

const (
	// MinEntries is the shortest capture a fingerprint can be computed from.
	MinEntries = 6

	// RepeatWindow folds identical fingerprints into a single key press.
	RepeatWindow = 300 * time.Millisecond

	fnvBasis32 = 0x811C9DC5
	fnvPrime32 = 16777619
)

// Fingerprint is a decoded transmission.
type Fingerprint struct {
	Hash uint32
	At   time.Time
}

// compare returns 0 if b is significantly shorter than a, 2 if a is
// significantly shorter than b, and 1 if both are within 20% of each other.
func compare(a, b uint32) uint32 {
	if uint64(b) < uint64(a)*80/100 {
		return 0
	}
	if uint64(a) < uint64(b)*80/100 {
		return 2
	}
	return 1
}

// Hash reduces a capture buffer to a 32-bit FNV-1 fingerprint of its timing
// shape. Entry 0 (the leading gap) is ignored.
func Hash(buf []uint32) (uint32, bool) {
	if len(buf) < MinEntries {
		return 0, false
	}
	hash := uint32(fnvBasis32)
	for i := 1; i+2 < len(buf); i++ {
		hash = (hash * fnvPrime32) ^ compare(buf[i], buf[i+2])
	}
	return hash, true
}

// Source yields finished capture buffers. Resume discards what it holds.
type Source interface {
	Take() ([]uint32, bool)
	Resume()
}

// Decoder turns captures into fingerprints and suppresses key repeats.
type Decoder struct {
	src  Source
	prev Fingerprint
}

// NewDecoder returns a decoder reading from src.
func NewDecoder(src Source) *Decoder {
	return &Decoder{src: src}
}

// Poll consumes a finished capture, if any, and reports a new key press.
func (d *Decoder) Poll(now time.Time) (Fingerprint, bool) {
	buf, ok := d.src.Take()
	if !ok {
		return Fingerprint{}, false
	}
	return d.Feed(buf, now)
}

// Feed decodes buf as if it was captured at now.
func (d *Decoder) Feed(buf []uint32, now time.Time) (Fingerprint, bool) {
	hash, ok := Hash(buf)
	if !ok {
		return Fingerprint{}, false
	}
	if !d.prev.At.IsZero() && hash == d.prev.Hash && now.Sub(d.prev.At) < RepeatWindow {
		// Held keys repeat; refresh so the whole burst counts once.
		d.prev.At = now
		return Fingerprint{}, false
	}
	d.prev = Fingerprint{Hash: hash, At: now}
	return d.prev, true
}

// Flush drops any capture received so far, finished or not, e.g. after a
// blocking span.
func (d *Decoder) Flush() {
	d.src.Resume()
}
