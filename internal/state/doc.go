// Package state holds the identifier allocator and the four keyed registries
// (entities, owners, lineage, sale markers) over a kv.Store.
//
// Keys follow a hashed layout so that each item lives in its own namespace:
//
//	plain value: Twox128(module) ‖ Twox128(item)
//	map entry:   Twox128(module) ‖ Twox128(item) ‖ Blake2_128(enc(id)) ‖ enc(id)
//
// The id is appended in the clear so map keys can be decoded back during
// iteration. No policy lives here; handlers in package kitties decide what is
// allowed.
package state
