package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Key names a persisted setting.
type Key string

const (
	KeySpeed       Key = "speed"
	KeyBoxFloor    Key = "box_floor"
	KeyIRLock      Key = "ir_lock"
	KeyVolume      Key = "volume"
	KeyFluxMode    Key = "flux_mode"
	KeyMusicFolder Key = "music_folder"
	KeyShuffle     Key = "shuffle"
)

// Settings are the user adjustable values that survive a restart.
type Settings struct {
	Speed       int
	BoxFloor    int // index into the box light floor levels
	IRLocked    bool
	Volume      int
	FluxMode    int
	MusicFolder int
	Shuffle     bool
}

// DefaultSettings are used for anything never saved.
func DefaultSettings() Settings {
	return Settings{
		Speed:    20,
		Volume:   6,
		FluxMode: 1,
	}
}

const (
	upsertSettingSQL = `
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value=excluded.value,
			updated_at=excluded.updated_at
	`

	selectSettingsSQL = `SELECT key, value FROM settings`
)

// Store is the SQLite backed persistence layer.
type Store struct {
	db      *sql.DB
	timeout time.Duration
}

// New wraps an open database.
func New(db *sql.DB) *Store {
	return &Store{db: db, timeout: 3 * time.Second}
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveSetting stores one value.
func (s *Store) SaveSetting(ctx context.Context, key Key, value int) error {
	_, err := s.db.ExecContext(ctx, upsertSettingSQL, string(key), value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save setting %s: %w", key, err)
	}
	return nil
}

// SaveSettings stores every value of st in one transaction.
func (s *Store) SaveSettings(ctx context.Context, st Settings) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin settings transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	for _, kv := range st.values() {
		if _, err := tx.ExecContext(ctx, upsertSettingSQL, string(kv.key), kv.value, now); err != nil {
			return fmt.Errorf("save setting %s: %w", kv.key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit settings: %w", err)
	}
	return nil
}

// LoadSettings returns the stored settings on top of DefaultSettings.
// Unknown keys are ignored.
func (s *Store) LoadSettings(ctx context.Context) (Settings, error) {
	st := DefaultSettings()

	rows, err := s.db.QueryContext(ctx, selectSettingsSQL)
	if err != nil {
		return st, fmt.Errorf("load settings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key   string
			value int
		)
		if err := rows.Scan(&key, &value); err != nil {
			return st, fmt.Errorf("scan setting: %w", err)
		}
		st.set(Key(key), value)
	}
	if err := rows.Err(); err != nil {
		return st, fmt.Errorf("load settings: %w", err)
	}
	return st, nil
}

type keyValue struct {
	key   Key
	value int
}

func btoi(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (st Settings) values() []keyValue {
	return []keyValue{
		{KeySpeed, st.Speed},
		{KeyBoxFloor, st.BoxFloor},
		{KeyIRLock, btoi(st.IRLocked)},
		{KeyVolume, st.Volume},
		{KeyFluxMode, st.FluxMode},
		{KeyMusicFolder, st.MusicFolder},
		{KeyShuffle, btoi(st.Shuffle)},
	}
}

func (st *Settings) set(key Key, value int) {
	switch key {
	case KeySpeed:
		st.Speed = value
	case KeyBoxFloor:
		st.BoxFloor = value
	case KeyIRLock:
		st.IRLocked = value != 0
	case KeyVolume:
		st.Volume = value
	case KeyFluxMode:
		st.FluxMode = value
	case KeyMusicFolder:
		st.MusicFolder = value
	case KeyShuffle:
		st.Shuffle = value != 0
	}
}

// Get returns the value of key, as stored.
func (st Settings) Get(key Key) (int, bool) {
	for _, kv := range st.values() {
		if kv.key == key {
			return kv.value, true
		}
	}
	return 0, false
}
