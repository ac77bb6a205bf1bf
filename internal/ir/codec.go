package ir

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrShortBuffer is returned when a value is truncated.
var ErrShortBuffer = errors.New("codec: unexpected end of input")

// ErrTrailingBytes is returned when a decoder finishes with unread input.
var ErrTrailingBytes = errors.New("codec: trailing bytes")

// Encoder appends fixed-width little-endian values to a byte slice.
// The zero value is ready to use.
type Encoder struct {
	buf []byte
}

// U32 appends a 32-bit unsigned integer.
func (e *Encoder) U32(v uint32) *Encoder {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, v)
	return e
}

// U64 appends a 64-bit unsigned integer.
func (e *Encoder) U64(v uint64) *Encoder {
	e.buf = binary.LittleEndian.AppendUint64(e.buf, v)
	return e
}

// Raw appends bytes verbatim, without a length prefix.
func (e *Encoder) Raw(b []byte) *Encoder {
	e.buf = append(e.buf, b...)
	return e
}

// Bytes appends a u32 length prefix followed by b.
func (e *Encoder) Bytes(b []byte) *Encoder {
	e.U32(uint32(len(b)))
	return e.Raw(b)
}

// Account appends a length-prefixed account identity.
func (e *Encoder) Account(a AccountID) *Encoder {
	return e.Bytes([]byte(a))
}

// Out returns the encoded bytes.
func (e *Encoder) Out() []byte {
	return e.buf
}

// Decoder reads values written by Encoder. The first error sticks; later reads
// return zero values and Err reports the original failure.
type Decoder struct {
	buf []byte
	err error
}

// NewDecoder returns a decoder over b.
func NewDecoder(b []byte) *Decoder {
	return &Decoder{buf: b}
}

func (d *Decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if len(d.buf) < n {
		d.err = fmt.Errorf("%w: need %d bytes, have %d", ErrShortBuffer, n, len(d.buf))
		return nil
	}
	out := d.buf[:n]
	d.buf = d.buf[n:]
	return out
}

// U32 reads a 32-bit unsigned integer.
func (d *Decoder) U32() uint32 {
	b := d.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

// U64 reads a 64-bit unsigned integer.
func (d *Decoder) U64() uint64 {
	b := d.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

// Raw reads exactly n bytes into dst.
func (d *Decoder) Raw(dst []byte) {
	b := d.take(len(dst))
	if b != nil {
		copy(dst, b)
	}
}

// Bytes reads a u32 length prefix and the bytes that follow.
func (d *Decoder) Bytes() []byte {
	n := d.U32()
	if d.err != nil {
		return nil
	}
	b := d.take(int(n))
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Account reads a length-prefixed account identity.
func (d *Decoder) Account() AccountID {
	return AccountID(d.Bytes())
}

// Err returns the first decoding error, if any.
func (d *Decoder) Err() error {
	return d.err
}

// Finish returns the first decoding error, or ErrTrailingBytes when input remains.
func (d *Decoder) Finish() error {
	if d.err != nil {
		return d.err
	}
	if len(d.buf) != 0 {
		return fmt.Errorf("%w: %d unread", ErrTrailingBytes, len(d.buf))
	}
	return nil
}

// EncodeEntityID returns the 4-byte little-endian form of id.
func EncodeEntityID(id EntityID) []byte {
	return new(Encoder).U32(uint32(id)).Out()
}

// DecodeEntityID parses a 4-byte little-endian entity ID.
func DecodeEntityID(b []byte) (EntityID, error) {
	d := NewDecoder(b)
	id := EntityID(d.U32())
	if err := d.Finish(); err != nil {
		return 0, fmt.Errorf("decode entity id: %w", err)
	}
	return id, nil
}

// EncodeRecord encodes a record in the current layout: dna[16] ‖ name[4].
func EncodeRecord(r Record) []byte {
	return new(Encoder).Raw(r.DNA[:]).Raw(r.Name[:]).Out()
}

// DecodeRecord parses a record in the current layout.
func DecodeRecord(b []byte) (Record, error) {
	var r Record
	d := NewDecoder(b)
	d.Raw(r.DNA[:])
	d.Raw(r.Name[:])
	if err := d.Finish(); err != nil {
		return Record{}, fmt.Errorf("decode record: %w", err)
	}
	return r, nil
}

// EncodeLineage encodes a parent pair as two u32 values.
func EncodeLineage(l Lineage) []byte {
	return new(Encoder).U32(uint32(l.ParentA)).U32(uint32(l.ParentB)).Out()
}

// DecodeLineage parses a parent pair.
func DecodeLineage(b []byte) (Lineage, error) {
	d := NewDecoder(b)
	l := Lineage{ParentA: EntityID(d.U32()), ParentB: EntityID(d.U32())}
	if err := d.Finish(); err != nil {
		return Lineage{}, fmt.Errorf("decode lineage: %w", err)
	}
	return l, nil
}

// EncodeAccount encodes a length-prefixed account identity.
func EncodeAccount(a AccountID) []byte {
	return new(Encoder).Account(a).Out()
}

// DecodeAccount parses a length-prefixed account identity.
func DecodeAccount(b []byte) (AccountID, error) {
	d := NewDecoder(b)
	a := d.Account()
	if err := d.Finish(); err != nil {
		return "", fmt.Errorf("decode account: %w", err)
	}
	return a, nil
}

// EncodeBalance encodes a balance as u64.
func EncodeBalance(v Balance) []byte {
	return new(Encoder).U64(uint64(v)).Out()
}

// DecodeBalance parses a u64 balance.
func DecodeBalance(b []byte) (Balance, error) {
	d := NewDecoder(b)
	v := Balance(d.U64())
	if err := d.Finish(); err != nil {
		return 0, fmt.Errorf("decode balance: %w", err)
	}
	return v, nil
}
