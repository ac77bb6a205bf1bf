package migration

import (
	"errors"
	"fmt"

	"github.com/roach88/menagerie/internal/ir"
)

// ErrLayout is returned when a value does not match the layout it is decoded
// or encoded with.
var ErrLayout = errors.New("record does not match layout")

// Layout identifies a historical on-disk record layout.
type Layout int

const (
	// LayoutV0 is dna[16].
	LayoutV0 Layout = iota
	// LayoutV1 is dna[16] ‖ name[4].
	LayoutV1
	// LayoutV2 is dna[16] ‖ name[8].
	LayoutV2
)

// String returns the layout name.
func (l Layout) String() string {
	switch l {
	case LayoutV0:
		return "v0"
	case LayoutV1:
		return "v1"
	case LayoutV2:
		return "v2"
	default:
		return fmt.Sprintf("Layout(%d)", int(l))
	}
}

// NameWidth returns the width of the name field, zero when absent.
func (l Layout) NameWidth() int {
	switch l {
	case LayoutV1:
		return 4
	case LayoutV2:
		return 8
	default:
		return 0
	}
}

// Size returns the encoded width of a record.
func (l Layout) Size() int {
	return ir.DNASize + l.NameWidth()
}

// Entry is a record decoded from any layout. Name is nil for LayoutV0.
type Entry struct {
	DNA  ir.DNA
	Name []byte
}

// Decode parses b under layout l.
func (l Layout) Decode(b []byte) (Entry, error) {
	if len(b) != l.Size() {
		return Entry{}, fmt.Errorf("%w %s: want %d bytes, got %d", ErrLayout, l, l.Size(), len(b))
	}
	var e Entry
	d := ir.NewDecoder(b)
	d.Raw(e.DNA[:])
	if w := l.NameWidth(); w > 0 {
		e.Name = make([]byte, w)
		d.Raw(e.Name)
	}
	if err := d.Finish(); err != nil {
		return Entry{}, fmt.Errorf("decode %s: %w", l, err)
	}
	return e, nil
}

// Encode renders e under layout l.
func (l Layout) Encode(e Entry) ([]byte, error) {
	if len(e.Name) != l.NameWidth() {
		return nil, fmt.Errorf("%w %s: name is %d bytes, want %d", ErrLayout, l, len(e.Name), l.NameWidth())
	}
	return new(ir.Encoder).Raw(e.DNA[:]).Raw(e.Name).Out(), nil
}
