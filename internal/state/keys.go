package state

import (
	"errors"
	"fmt"

	"github.com/roach88/menagerie/internal/ir"
)

// ModulePrefix is the namespace every registry key starts with.
const ModulePrefix = "Kitties"

// Storage item names.
const (
	ItemNextID         = "NextKittyId"
	ItemEntities       = "Kitties"
	ItemOwners         = "KittyOwner"
	ItemLineages       = "KittyParents"
	ItemMarket         = "KittyOnSale"
	ItemStorageVersion = ":__STORAGE_VERSION__:"
)

// ErrMalformedKey is returned when a map key cannot be decoded.
var ErrMalformedKey = errors.New("malformed storage key")

const (
	prefixLen = 32
	hashLen   = 16
	idLen     = 4
)

// PlainKey returns the key of a single-value item.
func PlainKey(item string) []byte {
	m := ir.Twox128([]byte(ModulePrefix))
	i := ir.Twox128([]byte(item))
	key := make([]byte, 0, prefixLen)
	key = append(key, m[:]...)
	return append(key, i[:]...)
}

// MapPrefix returns the prefix shared by every entry of a map item.
func MapPrefix(item string) []byte {
	return PlainKey(item)
}

// MapKey returns the key of one map entry.
func MapKey(item string, id ir.EntityID) []byte {
	enc := ir.EncodeEntityID(id)
	h := ir.Blake2_128(enc)
	key := make([]byte, 0, prefixLen+hashLen+idLen)
	key = append(key, PlainKey(item)...)
	key = append(key, h[:]...)
	return append(key, enc...)
}

// IDFromKey extracts the entity ID from a map key and checks its hash.
func IDFromKey(key []byte) (ir.EntityID, error) {
	if len(key) != prefixLen+hashLen+idLen {
		return 0, fmt.Errorf("%w: length %d", ErrMalformedKey, len(key))
	}
	enc := key[prefixLen+hashLen:]
	if ir.Blake2_128(enc) != [16]byte(key[prefixLen:prefixLen+hashLen]) {
		return 0, fmt.Errorf("%w: hash mismatch", ErrMalformedKey)
	}
	return ir.DecodeEntityID(enc)
}
