// Package kv is the raw key-value layer the registry is stored on, plus the
// staged-write overlay that makes every call all-or-nothing.
//
// Keys and values are opaque byte strings. Iteration is always in ascending
// byte order of the key and always over a snapshot, so callbacks may write to
// the store they are iterating (the migration engine relies on this).
//
// An Overlay stages writes in memory on top of a base Reader. Nothing reaches
// the base until Commit; Discard drops the staged set. Overlays implement Store
// themselves and can be stacked.
package kv
