// Package store provides SQLite-backed durable storage for the registry.
//
// The store holds two things:
//   - kv: the raw key-value namespace the registry and ledger live in. Store
//     implements kv.Store and kv.Committer over it.
//   - A journal of committed calls, their notifications and upgrade signals.
//
// # Ordering
//
// A call's staged changes and its journal rows commit in one SQL
// transaction, or not at all. All ordering uses seq INTEGER, assigned by
// the engine, never timestamps. Journal queries order by seq and event
// index; kv iteration orders by key, where BLOB comparison is byte order.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Two drivers are supported: mattn/go-sqlite3 (cgo, the default) and
// modernc.org/sqlite (pure Go).
package store
