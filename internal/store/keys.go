package store

import (
	"context"
	"fmt"
	"time"

	"github.com/CircuitSetup/Flux-Capacitor-backup/internal/ir"
)

const (
	deleteIRKeysSQL = `DELETE FROM ir_keys`
	insertIRKeySQL  = `INSERT INTO ir_keys (idx, code, learned_at) VALUES (?, ?, ?)`
	selectIRKeysSQL = `SELECT idx, code FROM ir_keys ORDER BY idx ASC`
)

// PersistLearnedKeys replaces the learned key column.
func (s *Store) PersistLearnedKeys(codes ir.Codes) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ir keys transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, deleteIRKeysSQL); err != nil {
		return fmt.Errorf("clear ir keys: %w", err)
	}
	now := time.Now().UTC()
	for i, code := range codes {
		if _, err := tx.ExecContext(ctx, insertIRKeySQL, i, int64(code), now); err != nil {
			return fmt.Errorf("insert ir key %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ir keys: %w", err)
	}
	return nil
}

// LoadLearnedKeys returns the learned key column. ok is false if nothing
// was ever learned.
func (s *Store) LoadLearnedKeys(ctx context.Context) (codes ir.Codes, ok bool, err error) {
	rows, err := s.db.QueryContext(ctx, selectIRKeysSQL)
	if err != nil {
		return codes, false, fmt.Errorf("load ir keys: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			idx  int
			code int64
		)
		if err := rows.Scan(&idx, &code); err != nil {
			return codes, false, fmt.Errorf("scan ir key: %w", err)
		}
		if idx < 0 || idx >= ir.NumKeys {
			return codes, false, fmt.Errorf("ir key index %d out of range", idx)
		}
		codes[idx] = uint32(code)
		ok = true
	}
	if err := rows.Err(); err != nil {
		return codes, false, fmt.Errorf("load ir keys: %w", err)
	}
	return codes, ok, nil
}

// DeleteLearnedKeys forgets every learned key.
func (s *Store) DeleteLearnedKeys(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, deleteIRKeysSQL); err != nil {
		return fmt.Errorf("delete ir keys: %w", err)
	}
	return nil
}
