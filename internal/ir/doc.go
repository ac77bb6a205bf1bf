// Package ir provides the shared vocabulary of the registry: entity and account
// identities, genetic codes, records, notifications, and the byte-level helpers
// (fixed-width codec, hashing, canonical JSON) every other package builds on.
//
// This package imports nothing internal. All other internal packages import ir;
// ir stays the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - On-disk values use the fixed-width little-endian codec in codec.go, never JSON
//   - Genetic codes are derived by pure functions of (seed, caller, index); there is
//     no RNG state anywhere in the module
//   - Journal payloads use canonical JSON so that persisted bytes are stable
//   - All JSON tags use snake_case
package ir
