package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/menagerie/internal/kv"
)

// CommitCall applies a call's staged changes and journals the call with its
// notifications, all in one transaction. Either everything lands or nothing
// does.
//
// The call's Args are serialized to canonical JSON per RFC 8785 for
// deterministic replay.
func (s *Store) CommitCall(ctx context.Context, changes []kv.Change, call CallRecord, events []EventRecord) error {
	argsJSON, err := marshalArgs(call.Args)
	if err != nil {
		return fmt.Errorf("commit call: %w", err)
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if err := applyChanges(tx, changes); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO calls
			(seq, id, op, caller, args, digest, block, call_index, module_version, journal_version)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			call.Seq,
			call.ID,
			call.Op,
			string(call.Caller),
			argsJSON,
			call.Digest,
			int64(call.Block),
			int64(call.Index),
			call.ModuleVersion,
			call.JournalVersion,
		)
		if err != nil {
			return fmt.Errorf("insert call: %w", err)
		}

		for _, ev := range events {
			dna, name := eventColumns(ev.Event)
			_, err := tx.ExecContext(ctx, `
				INSERT INTO events
				(call_seq, idx, kind, who, entity_id, recipient, seller, dna, name, digest)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`,
				call.Seq,
				ev.Index,
				string(ev.Event.Kind),
				string(ev.Event.Who),
				int64(ev.Event.EntityID),
				string(ev.Event.Recipient),
				string(ev.Event.Seller),
				dna,
				name,
				ev.Digest,
			)
			if err != nil {
				return fmt.Errorf("insert event %d: %w", ev.Index, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("commit call: %w", err)
	}
	return nil
}

// CommitUpgrade applies the migration's staged changes and journals the
// upgrade signal in one transaction.
func (s *Store) CommitUpgrade(ctx context.Context, changes []kv.Change, rec UpgradeRecord) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := applyChanges(tx, changes); err != nil {
			return err
		}
		done := 0
		if rec.Done {
			done = 1
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO upgrades
			(seq, from_version, to_version, reads, writes, done)
			VALUES (?, ?, ?, ?, ?, ?)
		`,
			rec.Seq,
			int64(rec.FromVersion),
			int64(rec.ToVersion),
			int64(rec.Reads),
			int64(rec.Writes),
			done,
		)
		if err != nil {
			return fmt.Errorf("insert upgrade: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("commit upgrade: %w", err)
	}
	return nil
}
