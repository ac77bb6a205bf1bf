package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/menagerie/internal/ir"
)

// ReadCalls returns every journaled call ordered by seq.
//
// Returns an empty slice (not nil) if no calls exist.
func (s *Store) ReadCalls(ctx context.Context) ([]CallRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, id, op, caller, args, digest, block, call_index, module_version, journal_version
		FROM calls
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query calls: %w", err)
	}
	defer rows.Close()

	calls := []CallRecord{}
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		calls = append(calls, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate calls: %w", err)
	}
	return calls, nil
}

// ReadCall retrieves a single call by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadCall(ctx context.Context, id string) (CallRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT seq, id, op, caller, args, digest, block, call_index, module_version, journal_version
		FROM calls
		WHERE id = ?
	`, id)
	return scanCall(row)
}

// ReadEvents returns the notifications of every call with seq greater than
// since, ordered by call seq and emission index.
//
// Returns an empty slice (not nil) if there are none.
func (s *Store) ReadEvents(ctx context.Context, since int64) ([]EventRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT call_seq, idx, kind, who, entity_id, recipient, seller, dna, name, digest
		FROM events
		WHERE call_seq > ?
		ORDER BY call_seq ASC, idx ASC
	`, since)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []EventRecord{}
	for rows.Next() {
		var (
			rec                                     EventRecord
			kind, who, recipient, seller, dna, name string
			id                                      int64
		)
		if err := rows.Scan(&rec.CallSeq, &rec.Index, &kind, &who, &id, &recipient, &seller, &dna, &name, &rec.Digest); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev, err := eventFromColumns(kind, who, id, recipient, seller, dna, name)
		if err != nil {
			return nil, fmt.Errorf("event %d/%d: %w", rec.CallSeq, rec.Index, err)
		}
		rec.Event = ev
		events = append(events, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// ReadUpgrades returns every journaled upgrade ordered by seq.
func (s *Store) ReadUpgrades(ctx context.Context) ([]UpgradeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, from_version, to_version, reads, writes, done
		FROM upgrades
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query upgrades: %w", err)
	}
	defer rows.Close()

	upgrades := []UpgradeRecord{}
	for rows.Next() {
		var (
			u                             UpgradeRecord
			from, to, reads, writes, done int64
		)
		if err := rows.Scan(&u.Seq, &from, &to, &reads, &writes, &done); err != nil {
			return nil, fmt.Errorf("scan upgrade: %w", err)
		}
		u.FromVersion = uint32(from)
		u.ToVersion = uint32(to)
		u.Reads = uint64(reads)
		u.Writes = uint64(writes)
		u.Done = done != 0
		upgrades = append(upgrades, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate upgrades: %w", err)
	}
	return upgrades, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanCall scans a row into a CallRecord. sql.ErrNoRows is returned as is.
func scanCall(row scanner) (CallRecord, error) {
	var (
		c            CallRecord
		caller, args string
		block, index int64
	)
	err := row.Scan(&c.Seq, &c.ID, &c.Op, &caller, &args, &c.Digest, &block, &index, &c.ModuleVersion, &c.JournalVersion)
	if err == sql.ErrNoRows {
		return CallRecord{}, err
	}
	if err != nil {
		return CallRecord{}, fmt.Errorf("scan call: %w", err)
	}
	c.Caller = ir.AccountID(caller)
	c.Block = uint64(block)
	c.Index = uint32(index)
	c.Args, err = unmarshalArgs(args)
	if err != nil {
		return CallRecord{}, err
	}
	return c, nil
}

// Query runs a read-only query against the journal tables. The scenario
// harness uses it for final_state assertions.
// Callers are responsible for closing the returned rows.
func (s *Store) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, query, args...)
}
