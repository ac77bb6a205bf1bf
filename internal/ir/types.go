package ir

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math"
)

// EntityID identifies a collectible. IDs are assigned monotonically and never reused.
type EntityID uint32

// MaxEntityID is the last value the allocator can hold. Once the counter reaches
// it, further allocation fails instead of wrapping.
const MaxEntityID EntityID = math.MaxUint32

// AccountID is an authenticated caller or payment party, as supplied by the host.
// The registry treats it as opaque bytes.
type AccountID string

// Balance is an amount in the ledger's smallest unit.
type Balance uint64

// DNASize is the width of a genetic code in bytes.
const DNASize = 16

// DNA is the 16-byte genetic code characterising an entity.
type DNA [DNASize]byte

// String renders the code as lowercase hex.
func (d DNA) String() string {
	return hex.EncodeToString(d[:])
}

// IsZero reports whether every byte of the code is zero.
func (d DNA) IsZero() bool {
	return d == DNA{}
}

// NameSize is the display-name width of the current record layout.
const NameSize = 4

// Name is the fixed-width display name supplied at creation time.
type Name [NameSize]byte

// ErrInvalidName is returned when a name does not fit the fixed width exactly.
var ErrInvalidName = errors.New("name must be exactly 4 bytes")

// ParseName converts s to a Name. The string must be exactly NameSize bytes.
func ParseName(s string) (Name, error) {
	var n Name
	if len(s) != NameSize {
		return n, fmt.Errorf("%w: got %d", ErrInvalidName, len(s))
	}
	copy(n[:], s)
	return n, nil
}

// MustParseName is like ParseName but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustParseName(s string) Name {
	n, err := ParseName(s)
	if err != nil {
		panic(err)
	}
	return n
}

// String returns the raw name bytes as a string.
func (n Name) String() string {
	return string(n[:])
}

// Record is an entity as stored under the current layout.
type Record struct {
	DNA  DNA  `json:"dna"`
	Name Name `json:"name"`
}

// Lineage holds the two parents of a bred entity.
type Lineage struct {
	ParentA EntityID `json:"parent_a"`
	ParentB EntityID `json:"parent_b"`
}
