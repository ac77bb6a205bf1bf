// Package testutil provides deterministic fixtures shared by tests and the
// scenario harness.
package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDGenerator issues call IDs "<prefix>-000001", "<prefix>-000002",
// and so on, so journals and traces are byte-identical across runs.
//
// Unlike engine.FixedGenerator it never runs out, and it can be reset for
// test reuse.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type SequentialIDGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialIDGenerator creates a generator. An empty prefix means "call".
func NewSequentialIDGenerator(prefix string) *SequentialIDGenerator {
	if prefix == "" {
		prefix = "call"
	}
	return &SequentialIDGenerator{prefix: prefix}
}

// Generate returns the next ID. Implements engine.CallIDGenerator.
func (g *SequentialIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%06d", g.prefix, g.n)
}

// Issued returns how many IDs have been generated since the last reset.
func (g *SequentialIDGenerator) Issued() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.n
}

// Reset restarts the sequence. The next ID ends in 000001.
func (g *SequentialIDGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
