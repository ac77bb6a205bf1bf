package store

import "github.com/roach88/menagerie/internal/ir"

// CallRecord is a committed call in the journal.
type CallRecord struct {
	Seq            int64          `json:"seq"`
	ID             string         `json:"id"`
	Op             string         `json:"op"`
	Caller         ir.AccountID   `json:"caller"`
	Args           map[string]any `json:"args"`
	Digest         string         `json:"digest"`
	Block          uint64         `json:"block"`
	Index          uint32         `json:"index"`
	ModuleVersion  string         `json:"module_version"`
	JournalVersion string         `json:"journal_version"`
}

// EventRecord is a notification emitted by a committed call.
type EventRecord struct {
	CallSeq int64    `json:"call_seq"`
	Index   int      `json:"index"`
	Event   ir.Event `json:"event"`
	Digest  string   `json:"digest"`
}

// UpgradeRecord is one upgrade signal and the migration work it did.
type UpgradeRecord struct {
	Seq         int64  `json:"seq"`
	FromVersion uint32 `json:"from_version"`
	ToVersion   uint32 `json:"to_version"`
	Reads       uint64 `json:"reads"`
	Writes      uint64 `json:"writes"`
	Done        bool   `json:"done"`
}
