package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/menagerie/internal/ir"
	"github.com/roach88/menagerie/internal/kv"
)

// createTestStore creates a new file-backed store in a temp directory.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestCall creates a journaled create call with a valid digest.
func createTestCall(t *testing.T, seq int64, caller ir.AccountID, name string) CallRecord {
	t.Helper()
	c := CallRecord{
		Seq:            seq,
		ID:             "call-" + name,
		Op:             "create",
		Caller:         caller,
		Args:           map[string]any{"op": "create", "name": name},
		Block:          1,
		Index:          uint32(seq - 1),
		ModuleVersion:  ir.ModuleVersion,
		JournalVersion: ir.JournalVersion,
	}
	digest, err := ir.CallDigest(CallPayload(c))
	if err != nil {
		t.Fatalf("CallDigest() failed: %v", err)
	}
	c.Digest = digest
	return c
}

// createTestEvent wraps ev with its digest.
func createTestEvent(t *testing.T, callSeq int64, idx int, ev ir.Event) EventRecord {
	t.Helper()
	digest, err := ir.EventDigest(ev)
	if err != nil {
		t.Fatalf("EventDigest() failed: %v", err)
	}
	return EventRecord{CallSeq: callSeq, Index: idx, Event: ev, Digest: digest}
}

func put(key, value string) kv.Change {
	return kv.Change{Key: []byte(key), Value: []byte(value)}
}

func del(key string) kv.Change {
	return kv.Change{Key: []byte(key), Deleted: true}
}
