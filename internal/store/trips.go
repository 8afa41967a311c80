package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Trip is one logged time travel.
type Trip struct {
	ID        string
	StartedAt time.Time
	Source    string
	Mode      string
	Aborted   bool
}

const (
	insertTripSQL = `
		INSERT INTO trips (id, started_at, source, mode, aborted)
		VALUES (?, ?, ?, ?, ?)
	`
	selectRecentTripsSQL = `
		SELECT id, started_at, source, mode, aborted
		FROM trips ORDER BY started_at DESC LIMIT ?
	`
	countTripsSQL = `SELECT COUNT(*) FROM trips`
)

// RecordTrip appends a trip. A missing ID is generated.
func (s *Store) RecordTrip(ctx context.Context, t Trip) (string, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.StartedAt.IsZero() {
		t.StartedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, insertTripSQL,
		t.ID,
		t.StartedAt.UTC().Format("2006-01-02 15:04:05"),
		t.Source,
		t.Mode,
		t.Aborted,
	)
	if err != nil {
		return "", fmt.Errorf("record trip: %w", err)
	}
	return t.ID, nil
}

// RecentTrips returns up to limit trips, newest first.
func (s *Store) RecentTrips(ctx context.Context, limit int) ([]Trip, error) {
	rows, err := s.db.QueryContext(ctx, selectRecentTripsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("list trips: %w", err)
	}
	defer rows.Close()

	var out []Trip
	for rows.Next() {
		var (
			t       Trip
			started string
		)
		if err := rows.Scan(&t.ID, &started, &t.Source, &t.Mode, &t.Aborted); err != nil {
			return nil, fmt.Errorf("scan trip: %w", err)
		}
		if t.StartedAt, err = parseTimestamp(started); err != nil {
			return nil, fmt.Errorf("parse trip time %q: %w", started, err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CountTrips returns the number of logged trips.
func (s *Store) CountTrips(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, countTripsSQL).Scan(&n); err != nil {
		return 0, fmt.Errorf("count trips: %w", err)
	}
	return n, nil
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Parse("2006-01-02 15:04:05", s)
}
