package state

import (
	"fmt"

	"github.com/roach88/menagerie/internal/ir"
	"github.com/roach88/menagerie/internal/kv"
)

// Entities maps an entity ID to its record in the current layout.
type Entities struct {
	store kv.Store
}

// Get returns the record for id.
func (e Entities) Get(id ir.EntityID) (ir.Record, bool, error) {
	b, ok, err := e.store.Get(MapKey(ItemEntities, id))
	if err != nil || !ok {
		return ir.Record{}, false, err
	}
	r, err := ir.DecodeRecord(b)
	if err != nil {
		return ir.Record{}, false, fmt.Errorf("entity %d: %w", id, err)
	}
	return r, true, nil
}

// Contains reports whether a record exists for id.
func (e Entities) Contains(id ir.EntityID) (bool, error) {
	return e.store.Has(MapKey(ItemEntities, id))
}

// Insert writes the record for id.
func (e Entities) Insert(id ir.EntityID, r ir.Record) error {
	return e.store.Put(MapKey(ItemEntities, id), ir.EncodeRecord(r))
}

// Remove deletes the record for id.
func (e Entities) Remove(id ir.EntityID) error {
	return e.store.Delete(MapKey(ItemEntities, id))
}

// Range calls fn for every record in key order (which is hash order, not ID
// order).
func (e Entities) Range(fn func(id ir.EntityID, r ir.Record) error) error {
	return e.store.Iterate(MapPrefix(ItemEntities), func(k, v []byte) error {
		id, err := IDFromKey(k)
		if err != nil {
			return err
		}
		r, err := ir.DecodeRecord(v)
		if err != nil {
			return fmt.Errorf("entity %d: %w", id, err)
		}
		return fn(id, r)
	})
}

// Owners maps an entity ID to its owner.
type Owners struct {
	store kv.Store
}

// Get returns the owner of id.
func (o Owners) Get(id ir.EntityID) (ir.AccountID, bool, error) {
	b, ok, err := o.store.Get(MapKey(ItemOwners, id))
	if err != nil || !ok {
		return "", false, err
	}
	a, err := ir.DecodeAccount(b)
	if err != nil {
		return "", false, fmt.Errorf("owner of %d: %w", id, err)
	}
	return a, true, nil
}

// Contains reports whether id has an owner entry.
func (o Owners) Contains(id ir.EntityID) (bool, error) {
	return o.store.Has(MapKey(ItemOwners, id))
}

// Insert sets the owner of id.
func (o Owners) Insert(id ir.EntityID, owner ir.AccountID) error {
	return o.store.Put(MapKey(ItemOwners, id), ir.EncodeAccount(owner))
}

// Remove deletes the owner entry of id.
func (o Owners) Remove(id ir.EntityID) error {
	return o.store.Delete(MapKey(ItemOwners, id))
}

// Range calls fn for every owner entry in key order.
func (o Owners) Range(fn func(id ir.EntityID, owner ir.AccountID) error) error {
	return o.store.Iterate(MapPrefix(ItemOwners), func(k, v []byte) error {
		id, err := IDFromKey(k)
		if err != nil {
			return err
		}
		a, err := ir.DecodeAccount(v)
		if err != nil {
			return fmt.Errorf("owner of %d: %w", id, err)
		}
		return fn(id, a)
	})
}

// Lineages maps a bred entity to its parents. Entries are never removed.
type Lineages struct {
	store kv.Store
}

// Get returns the parents of id.
func (l Lineages) Get(id ir.EntityID) (ir.Lineage, bool, error) {
	b, ok, err := l.store.Get(MapKey(ItemLineages, id))
	if err != nil || !ok {
		return ir.Lineage{}, false, err
	}
	lin, err := ir.DecodeLineage(b)
	if err != nil {
		return ir.Lineage{}, false, fmt.Errorf("lineage of %d: %w", id, err)
	}
	return lin, true, nil
}

// Contains reports whether id has a lineage entry.
func (l Lineages) Contains(id ir.EntityID) (bool, error) {
	return l.store.Has(MapKey(ItemLineages, id))
}

// Insert records the parents of id.
func (l Lineages) Insert(id ir.EntityID, lin ir.Lineage) error {
	return l.store.Put(MapKey(ItemLineages, id), ir.EncodeLineage(lin))
}

// Market is the set of entities currently listed for sale.
type Market struct {
	store kv.Store
}

// Contains reports whether id carries a sale marker.
func (m Market) Contains(id ir.EntityID) (bool, error) {
	return m.store.Has(MapKey(ItemMarket, id))
}

// Insert sets the sale marker for id.
func (m Market) Insert(id ir.EntityID) error {
	return m.store.Put(MapKey(ItemMarket, id), []byte{})
}

// Remove clears the sale marker for id.
func (m Market) Remove(id ir.EntityID) error {
	return m.store.Delete(MapKey(ItemMarket, id))
}

// StorageVersion is the on-disk record layout version of the entity store.
type StorageVersion struct {
	store kv.Store
}

// Get returns the stored version. A missing value reads as zero.
func (v StorageVersion) Get() (uint32, error) {
	b, ok, err := v.store.Get(PlainKey(ItemStorageVersion))
	if err != nil || !ok {
		return 0, err
	}
	d := ir.NewDecoder(b)
	n := d.U32()
	if err := d.Finish(); err != nil {
		return 0, fmt.Errorf("storage version: %w", err)
	}
	return n, nil
}

// Initialized reports whether a version has ever been recorded.
func (v StorageVersion) Initialized() (bool, error) {
	return v.store.Has(PlainKey(ItemStorageVersion))
}

// Put records the on-disk version.
func (v StorageVersion) Put(n uint32) error {
	return v.store.Put(PlainKey(ItemStorageVersion), new(ir.Encoder).U32(n).Out())
}

// Registry bundles the allocator and registries over one store. During a
// call the store is the call's overlay.
type Registry struct {
	Store     kv.Store
	Allocator Allocator
	Entities  Entities
	Owners    Owners
	Lineages  Lineages
	Market    Market
	Version   StorageVersion
}

// New returns a Registry over s.
func New(s kv.Store) *Registry {
	return &Registry{
		Store:     s,
		Allocator: Allocator{store: s},
		Entities:  Entities{store: s},
		Owners:    Owners{store: s},
		Lineages:  Lineages{store: s},
		Market:    Market{store: s},
		Version:   StorageVersion{store: s},
	}
}

// EntityPrefix returns the key prefix of the entity store.
func EntityPrefix() []byte {
	return MapPrefix(ItemEntities)
}
