// Package engine is the host side of the registry: it owns the backing store
// and applies inbound calls and upgrade signals one at a time.
//
// Each call runs against a fresh overlay of staged writes. A handler that
// fails leaves nothing behind: the overlay is discarded, no journal entry is
// written and no notification is published. A handler that succeeds has its
// writes committed, and when the backing store is a *store.Store the commit
// and the journal rows land in one SQL transaction. Notifications reach
// subscribers only after that commit.
//
// The engine serializes all access with one mutex, so the backing store
// does not need to be safe for concurrent use. Subscribers run while that
// mutex is held and must not call back into the engine.
package engine
