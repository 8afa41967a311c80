package ir

import (
	"fmt"
	"time"
)

// Key is a logical remote control key.
type Key int

const (
	Key0 Key = iota
	Key1
	Key2
	Key3
	Key4
	Key5
	Key6
	Key7
	Key8
	Key9
	KeyStar
	KeyHash
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyOK

	NumKeys = 17
)

func (k Key) String() string {
	switch {
	case k >= Key0 && k <= Key9:
		return fmt.Sprintf("%d", int(k))
	case k == KeyStar:
		return "*"
	case k == KeyHash:
		return "#"
	case k == KeyUp:
		return "UP"
	case k == KeyDown:
		return "DOWN"
	case k == KeyLeft:
		return "LEFT"
	case k == KeyRight:
		return "RIGHT"
	case k == KeyOK:
		return "OK"
	}
	return "?"
}

// Column identifies one of the three code sources of the key table, in
// lookup order.
type Column int

const (
	ColumnUser Column = iota
	ColumnLearned
	ColumnDefault

	numColumns = 3
)

// Codes holds one code per key.
type Codes [NumKeys]uint32

// DefaultCodes are the fingerprints of the remote shipped with the device.
var DefaultCodes = Codes{
	0x97483bfb, // 0
	0xe318261b, // 1
	0x00511dbb, // 2
	0xee886d7f, // 3
	0x52a3d41f, // 4
	0xd7e84b1b, // 5
	0x20fe4dbb, // 6
	0xf076c13b, // 7
	0xa3c8eddb, // 8
	0xe5cfbd7f, // 9
	0xc101e57b, // *
	0xf0c41643, // #
	0x3d9ae3f7, // up
	0x1bc0157b, // down
	0x8c22657b, // left
	0x0449e79f, // right
	0x488f3cbb, // OK
}

// Table maps fingerprints to keys.
type Table struct {
	codes   [NumKeys][numColumns]uint32
	columns int
}

// NewTable returns a table holding the default codes only.
func NewTable() *Table {
	t := &Table{columns: numColumns}
	t.SetColumn(ColumnDefault, DefaultCodes)
	return t
}

// DisableDefault excludes the default column from lookups.
func (t *Table) DisableDefault(disable bool) {
	if disable {
		t.columns = numColumns - 1
	} else {
		t.columns = numColumns
	}
}

// SetColumn replaces all codes of one column.
func (t *Table) SetColumn(col Column, codes Codes) {
	for i := range codes {
		t.codes[i][col] = codes[i]
	}
}

// Column returns a copy of one column.
func (t *Table) Column(col Column) Codes {
	var out Codes
	for i := range out {
		out[i] = t.codes[i][col]
	}
	return out
}

func (t *Table) set(k Key, col Column, code uint32) {
	t.codes[k][col] = code
}

// Lookup returns the first key holding hash. Zero slots never match.
func (t *Table) Lookup(hash uint32) (Key, bool) {
	if hash == 0 {
		return 0, false
	}
	for k := 0; k < NumKeys; k++ {
		for col := 0; col < t.columns; col++ {
			if t.codes[k][col] == hash {
				return Key(k), true
			}
		}
	}
	return 0, false
}

// LearnTimeout ends a learning session that receives nothing.
const LearnTimeout = 10 * time.Second

// Persister stores the learned column once a session completes.
type Persister interface {
	PersistLearnedKeys(codes Codes) error
}

// LearnResult is the outcome of feeding one fingerprint to a session.
type LearnResult int

const (
	LearnIgnored LearnResult = iota
	LearnNext
	LearnDone
)

// Learner runs IR learning sessions against a table.
type Learner struct {
	table   *Table
	store   Persister
	active  bool
	index   int
	backup  Codes
	touched time.Time
}

// NewLearner returns an inactive learner.
func NewLearner(table *Table, store Persister) *Learner {
	return &Learner{table: table, store: store}
}

// Active reports whether a session is running.
func (l *Learner) Active() bool {
	return l.active
}

// Index returns the key the next fingerprint will be stored for.
func (l *Learner) Index() int {
	return l.index
}

// Start begins a session. It is a no-op if one is running.
func (l *Learner) Start(now time.Time) {
	if l.active {
		return
	}
	l.backup = l.table.Column(ColumnLearned)
	l.index = 0
	l.touched = now
	l.active = true
}

// Feed stores hash for the current key. When the last key is stored the
// session ends and the learned column is persisted.
func (l *Learner) Feed(hash uint32, now time.Time) (LearnResult, error) {
	if !l.active {
		return LearnIgnored, nil
	}
	l.table.set(Key(l.index), ColumnLearned, hash)
	l.index++
	l.touched = now
	if l.index < NumKeys {
		return LearnNext, nil
	}
	l.active = false
	if l.store == nil {
		return LearnDone, nil
	}
	if err := l.store.PersistLearnedKeys(l.table.Column(ColumnLearned)); err != nil {
		return LearnDone, fmt.Errorf("persist learned keys: %w", err)
	}
	return LearnDone, nil
}

// Cancel ends the session and restores the learned column to its state at
// Start.
func (l *Learner) Cancel() {
	if !l.active {
		return
	}
	l.table.SetColumn(ColumnLearned, l.backup)
	l.active = false
}

// Touch restarts the receive timeout.
func (l *Learner) Touch(now time.Time) {
	if l.active {
		l.touched = now
	}
}

// Expired cancels the session if nothing was received for LearnTimeout and
// reports whether it did.
func (l *Learner) Expired(now time.Time) bool {
	if !l.active || now.Sub(l.touched) <= LearnTimeout {
		return false
	}
	l.Cancel()
	return true
}
