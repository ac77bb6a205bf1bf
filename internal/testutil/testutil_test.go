package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequentialIDGenerator(t *testing.T) {
	g := NewSequentialIDGenerator("")
	assert.Equal(t, "call-000001", g.Generate())
	assert.Equal(t, "call-000002", g.Generate())
	assert.Equal(t, 2, g.Issued())

	g.Reset()
	assert.Equal(t, "call-000001", g.Generate())
}

func TestSequentialIDGenerator_Concurrent(t *testing.T) {
	g := NewSequentialIDGenerator("tx")
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				g.Generate()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1000, g.Issued())
	assert.Equal(t, "tx-001001", g.Generate())
}

func TestSeed(t *testing.T) {
	assert.Equal(t, Seed("block-1"), Seed("block-1"))
	assert.NotEqual(t, Seed("block-1"), Seed("block-2"))
}

func TestAccountsDistinct(t *testing.T) {
	seen := map[string]bool{}
	for _, a := range Accounts() {
		assert.False(t, seen[string(a)])
		seen[string(a)] = true
	}
	assert.Len(t, seen, 4)
}
