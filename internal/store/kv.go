package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/menagerie/internal/kv"
)

var (
	_ kv.Store     = (*Store)(nil)
	_ kv.Committer = (*Store)(nil)
)

// Get implements kv.Reader.
func (s *Store) Get(key []byte) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("kv get: %w", err)
	}
	if value == nil {
		value = []byte{}
	}
	return value, true, nil
}

// Has implements kv.Reader.
func (s *Store) Has(key []byte) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM kv WHERE key = ?`, key).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("kv has: %w", err)
	}
	return true, nil
}

// Iterate implements kv.Reader. Matching rows are read in full before fn
// is called, so fn may write to the store.
func (s *Store) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	var (
		rows *sql.Rows
		err  error
	)
	if end := kv.PrefixEnd(prefix); end != nil {
		rows, err = s.db.Query(`
			SELECT key, value FROM kv
			WHERE key >= ? AND key < ?
			ORDER BY key ASC
		`, nonNil(prefix), end)
	} else {
		rows, err = s.db.Query(`
			SELECT key, value FROM kv
			WHERE key >= ?
			ORDER BY key ASC
		`, nonNil(prefix))
	}
	if err != nil {
		return fmt.Errorf("kv iterate: %w", err)
	}

	var entries []kv.Change
	for rows.Next() {
		var c kv.Change
		if err := rows.Scan(&c.Key, &c.Value); err != nil {
			rows.Close()
			return fmt.Errorf("kv iterate: scan: %w", err)
		}
		entries = append(entries, c)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("kv iterate: %w", err)
	}
	rows.Close()

	for _, c := range entries {
		if err := fn(c.Key, nonNil(c.Value)); err != nil {
			if err == kv.ErrStop {
				return nil
			}
			return err
		}
	}
	return nil
}

// Put implements kv.Writer.
func (s *Store) Put(key, value []byte) error {
	if _, err := s.db.Exec(upsertKV, key, nonNil(value)); err != nil {
		return fmt.Errorf("kv put: %w", err)
	}
	return nil
}

// Delete implements kv.Writer.
func (s *Store) Delete(key []byte) error {
	if _, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("kv delete: %w", err)
	}
	return nil
}

// ApplyChanges implements kv.Committer. The whole set lands in one
// transaction.
func (s *Store) ApplyChanges(changes []kv.Change) error {
	return s.withTx(context.Background(), func(tx *sql.Tx) error {
		return applyChanges(tx, changes)
	})
}

const upsertKV = `
	INSERT INTO kv (key, value) VALUES (?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value
`

func applyChanges(tx *sql.Tx, changes []kv.Change) error {
	for _, c := range changes {
		var err error
		if c.Deleted {
			_, err = tx.Exec(`DELETE FROM kv WHERE key = ?`, c.Key)
		} else {
			_, err = tx.Exec(upsertKV, c.Key, nonNil(c.Value))
		}
		if err != nil {
			return fmt.Errorf("apply change %x: %w", c.Key, err)
		}
	}
	return nil
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
