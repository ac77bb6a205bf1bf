package kv

import (
	"bytes"
	"maps"
	"slices"
	"strings"
)

// Memory is an in-memory Store. It is not safe for concurrent use; the host
// applies calls strictly one at a time.
type Memory struct {
	data map[string][]byte
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

// Get implements Reader.
func (m *Memory) Get(key []byte) ([]byte, bool, error) {
	v, ok := m.data[string(key)]
	if !ok {
		return nil, false, nil
	}
	return clone(v), true, nil
}

// Has implements Reader.
func (m *Memory) Has(key []byte) (bool, error) {
	_, ok := m.data[string(key)]
	return ok, nil
}

// Iterate implements Reader.
func (m *Memory) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	p := string(prefix)
	keys := slices.Sorted(maps.Keys(m.data))
	snapshot := make([][2][]byte, 0)
	for _, k := range keys {
		if strings.HasPrefix(k, p) {
			snapshot = append(snapshot, [2][]byte{[]byte(k), clone(m.data[k])})
		}
	}
	for _, kvp := range snapshot {
		if err := fn(kvp[0], kvp[1]); err != nil {
			if err == ErrStop {
				return nil
			}
			return err
		}
	}
	return nil
}

// Put implements Writer.
func (m *Memory) Put(key, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	m.data[string(key)] = bytes.Clone(value)
	return nil
}

// Delete implements Writer.
func (m *Memory) Delete(key []byte) error {
	delete(m.data, string(key))
	return nil
}

// Len returns the number of stored keys.
func (m *Memory) Len() int {
	return len(m.data)
}

// ApplyChanges implements Committer.
func (m *Memory) ApplyChanges(changes []Change) error {
	return Apply(m, changes)
}
