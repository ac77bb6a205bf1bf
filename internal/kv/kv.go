package kv

import (
	"bytes"
	"errors"
)

// ErrStop may be returned by an Iterate callback to end iteration early.
// Iterate then returns nil.
var ErrStop = errors.New("kv: stop iteration")

// Reader provides read access to a key-value namespace.
type Reader interface {
	// Get returns the value stored under key and whether it exists.
	Get(key []byte) ([]byte, bool, error)

	// Has reports whether key exists.
	Has(key []byte) (bool, error)

	// Iterate calls fn for every key with the given prefix in ascending key
	// order. The set of visited entries is fixed when Iterate starts.
	Iterate(prefix []byte, fn func(key, value []byte) error) error
}

// Writer provides write access to a key-value namespace.
type Writer interface {
	// Put stores value under key, replacing any previous value.
	Put(key, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key []byte) error
}

// Store is a readable and writable key-value namespace.
type Store interface {
	Reader
	Writer
}

// Change is one staged mutation.
type Change struct {
	Key     []byte
	Value   []byte // nil when Deleted
	Deleted bool
}

// Committer accepts a change set atomically. Stores that can apply a batch
// in one transaction implement it; Overlay.Commit prefers it over Writer.
type Committer interface {
	ApplyChanges(changes []Change) error
}

// Apply writes changes to w one by one, in order.
func Apply(w Writer, changes []Change) error {
	for _, c := range changes {
		var err error
		if c.Deleted {
			err = w.Delete(c.Key)
		} else {
			err = w.Put(c.Key, c.Value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// PrefixEnd returns the smallest key greater than every key with prefix, or
// nil when no such key exists (prefix is empty or all 0xFF).
func PrefixEnd(prefix []byte) []byte {
	end := bytes.Clone(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xFF {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return bytes.Clone(b)
}
