package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// resume restores the clock and block number from the journal so a restarted
// engine continues the same sequence. Call indexes restart at zero in the
// next block; the host is expected to call BeginBlock before dispatching.
func (e *Engine) resume(ctx context.Context) error {
	st, err := e.journal.GetJournalState(ctx)
	if err != nil {
		return fmt.Errorf("resume: %w", err)
	}
	e.clock = NewClockAt(st.LastSeq)
	e.block = st.LastBlock
	if st.LastSeq > 0 {
		e.logger.Info("engine resumed",
			zap.Int64("seq", st.LastSeq),
			zap.Uint64("block", st.LastBlock),
			zap.Int("calls", st.Calls),
			zap.Int("events", st.Events))
	}
	return nil
}

// VerifyJournal recomputes every journaled digest. It is a no-op for
// backends without a journal.
func (e *Engine) VerifyJournal(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.journal == nil {
		return nil
	}
	return e.journal.VerifyJournal(ctx)
}

// Seq returns the last journal sequence number used.
func (e *Engine) Seq() int64 {
	return e.clock.Current()
}
