package state

import (
	"errors"
	"fmt"

	"github.com/roach88/menagerie/internal/ir"
	"github.com/roach88/menagerie/internal/kv"
)

// ErrCounterOverflow is returned when the next-ID counter cannot advance.
var ErrCounterOverflow = errors.New("entity id counter overflow")

// Allocator hands out entity IDs from the next-ID counter.
type Allocator struct {
	store kv.Store
}

// Peek returns the ID the next Allocate call would issue. A missing counter
// reads as zero.
func (a Allocator) Peek() (ir.EntityID, error) {
	b, ok, err := a.store.Get(PlainKey(ItemNextID))
	if err != nil || !ok {
		return 0, err
	}
	id, err := ir.DecodeEntityID(b)
	if err != nil {
		return 0, fmt.Errorf("next id: %w", err)
	}
	return id, nil
}

// Set overwrites the counter. Genesis and tests use it.
func (a Allocator) Set(id ir.EntityID) error {
	return a.store.Put(PlainKey(ItemNextID), ir.EncodeEntityID(id))
}

// Allocate returns the current counter value and advances it by one. When
// the counter is already at ir.MaxEntityID it fails with ErrCounterOverflow
// and writes nothing.
func (a Allocator) Allocate() (ir.EntityID, error) {
	id, err := a.Peek()
	if err != nil {
		return 0, err
	}
	if id == ir.MaxEntityID {
		return 0, ErrCounterOverflow
	}
	if err := a.Set(id + 1); err != nil {
		return 0, err
	}
	return id, nil
}
