// Package migration rewrites stored entity records from one on-disk layout to
// the next.
//
// Layouts are an explicit enum, each with a pure Decode and Encode. A Step
// names the version it upgrades from, the version it produces and a pure
// transform between the two layouts. The Engine walks the step table from the
// stored version to a target version, rewriting every record under the entity
// prefix in key order and bumping the stored version after each completed
// step. A step never runs unless the stored version equals its From, so
// re-running an upgrade is a no-op.
//
// Work per Upgrade call can be bounded with WithMaxRecords. When the bound is
// hit mid-step the last rewritten key is saved as a cursor and the version is
// left alone; the next call resumes after the cursor.
package migration
