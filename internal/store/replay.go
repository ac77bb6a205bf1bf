package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/menagerie/internal/ir"
)

// ErrDigestMismatch is returned by VerifyJournal when a stored digest does not
// match its recomputed content.
var ErrDigestMismatch = errors.New("journal digest mismatch")

// JournalState summarizes the journal for recovery.
type JournalState struct {
	LastSeq     int64
	LastBlock   uint64
	Calls       int
	Events      int
	LastUpgrade *UpgradeRecord
}

// CallPayload returns the content a call digest is computed over.
func CallPayload(c CallRecord) map[string]any {
	args := c.Args
	if args == nil {
		args = map[string]any{}
	}
	return map[string]any{
		"op":     c.Op,
		"caller": string(c.Caller),
		"args":   args,
		"block":  c.Block,
		"index":  c.Index,
	}
}

// GetLastSeq returns the highest seq number used in the store.
// Used for recovery to resume the logical clock from the correct position.
func (s *Store) GetLastSeq(ctx context.Context) (int64, error) {
	var callSeq, upgradeSeq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM calls
	`).Scan(&callSeq)
	if err != nil {
		return 0, fmt.Errorf("get last seq from calls: %w", err)
	}
	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM upgrades
	`).Scan(&upgradeSeq)
	if err != nil {
		return 0, fmt.Errorf("get last seq from upgrades: %w", err)
	}
	return max(callSeq, upgradeSeq), nil
}

// GetJournalState reads the counters a runtime needs to resume.
func (s *Store) GetJournalState(ctx context.Context) (JournalState, error) {
	var st JournalState

	seq, err := s.GetLastSeq(ctx)
	if err != nil {
		return st, fmt.Errorf("get journal state: %w", err)
	}
	st.LastSeq = seq

	var block int64
	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(block), 0), COUNT(*) FROM calls
	`).Scan(&block, &st.Calls)
	if err != nil {
		return st, fmt.Errorf("get journal state: %w", err)
	}
	st.LastBlock = uint64(block)

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&st.Events); err != nil {
		return st, fmt.Errorf("get journal state: %w", err)
	}

	upgrades, err := s.ReadUpgrades(ctx)
	if err != nil {
		return st, fmt.Errorf("get journal state: %w", err)
	}
	if n := len(upgrades); n > 0 {
		last := upgrades[n-1]
		st.LastUpgrade = &last
	}
	return st, nil
}

// VerifyJournal recomputes every call and event digest and compares it with
// the stored one.
func (s *Store) VerifyJournal(ctx context.Context) error {
	calls, err := s.ReadCalls(ctx)
	if err != nil {
		return err
	}
	for _, c := range calls {
		digest, err := ir.CallDigest(CallPayload(c))
		if err != nil {
			return fmt.Errorf("call %d: %w", c.Seq, err)
		}
		if digest != c.Digest {
			return fmt.Errorf("%w: call %d", ErrDigestMismatch, c.Seq)
		}
	}

	events, err := s.ReadEvents(ctx, 0)
	if err != nil {
		return err
	}
	for _, e := range events {
		digest, err := ir.EventDigest(e.Event)
		if err != nil {
			return fmt.Errorf("event %d/%d: %w", e.CallSeq, e.Index, err)
		}
		if digest != e.Digest {
			return fmt.Errorf("%w: event %d/%d", ErrDigestMismatch, e.CallSeq, e.Index)
		}
	}
	return nil
}
