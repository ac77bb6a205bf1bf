package kv

import (
	"maps"
	"slices"
	"strings"
)

type staged struct {
	value   []byte
	deleted bool
}

// Overlay stages writes on top of a base Reader. Reads see staged writes
// first and fall through to the base otherwise.
type Overlay struct {
	base   Reader
	staged map[string]staged
}

// NewOverlay returns an empty overlay over base.
func NewOverlay(base Reader) *Overlay {
	return &Overlay{base: base, staged: make(map[string]staged)}
}

// Get implements Reader.
func (o *Overlay) Get(key []byte) ([]byte, bool, error) {
	if s, ok := o.staged[string(key)]; ok {
		if s.deleted {
			return nil, false, nil
		}
		return clone(s.value), true, nil
	}
	return o.base.Get(key)
}

// Has implements Reader.
func (o *Overlay) Has(key []byte) (bool, error) {
	if s, ok := o.staged[string(key)]; ok {
		return !s.deleted, nil
	}
	return o.base.Has(key)
}

// Iterate implements Reader. Staged writes shadow base entries.
func (o *Overlay) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	merged := make(map[string][]byte)
	err := o.base.Iterate(prefix, func(k, v []byte) error {
		merged[string(k)] = v
		return nil
	})
	if err != nil {
		return err
	}
	p := string(prefix)
	for k, s := range o.staged {
		if !strings.HasPrefix(k, p) {
			continue
		}
		if s.deleted {
			delete(merged, k)
		} else {
			merged[k] = clone(s.value)
		}
	}
	for _, k := range slices.Sorted(maps.Keys(merged)) {
		if err := fn([]byte(k), merged[k]); err != nil {
			if err == ErrStop {
				return nil
			}
			return err
		}
	}
	return nil
}

// Put implements Writer.
func (o *Overlay) Put(key, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	o.staged[string(key)] = staged{value: clone(value)}
	return nil
}

// Delete implements Writer.
func (o *Overlay) Delete(key []byte) error {
	o.staged[string(key)] = staged{deleted: true}
	return nil
}

// Len returns the number of staged keys.
func (o *Overlay) Len() int {
	return len(o.staged)
}

// Changes returns the staged mutations ordered by key.
func (o *Overlay) Changes() []Change {
	out := make([]Change, 0, len(o.staged))
	for _, k := range slices.Sorted(maps.Keys(o.staged)) {
		s := o.staged[k]
		out = append(out, Change{Key: []byte(k), Value: clone(s.value), Deleted: s.deleted})
	}
	return out
}

// Commit writes the staged mutations to w and clears the overlay. When w
// implements Committer the whole set is handed over in one batch. On error
// the staged set is kept so the caller can retry or Discard.
func (o *Overlay) Commit(w Writer) error {
	changes := o.Changes()
	var err error
	if c, ok := w.(Committer); ok {
		err = c.ApplyChanges(changes)
	} else {
		err = Apply(w, changes)
	}
	if err != nil {
		return err
	}
	o.Discard()
	return nil
}

// Discard drops every staged mutation.
func (o *Overlay) Discard() {
	clear(o.staged)
}
