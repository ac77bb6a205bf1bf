package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeRecordLayout(t *testing.T) {
	r := Record{Name: MustParseName("abcd")}
	for i := range r.DNA {
		r.DNA[i] = byte(i)
	}

	b := EncodeRecord(r)
	require.Len(t, b, DNASize+NameSize)
	assert.Equal(t, byte(15), b[15])
	assert.Equal(t, "abcd", string(b[16:]))

	got, err := DecodeRecord(b)
	require.NoError(t, err)
	assert.Equal(t, r, got)
}

func TestDecodeRecordRejectsWrongWidth(t *testing.T) {
	_, err := DecodeRecord(make([]byte, DNASize))
	assert.ErrorIs(t, err, ErrShortBuffer)

	_, err = DecodeRecord(make([]byte, DNASize+8))
	assert.ErrorIs(t, err, ErrTrailingBytes)
}

func TestEntityIDLittleEndian(t *testing.T) {
	assert.Equal(t, []byte{0x01, 0x02, 0x00, 0x00}, EncodeEntityID(0x0201))

	id, err := DecodeEntityID([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	require.NoError(t, err)
	assert.Equal(t, MaxEntityID, id)
}

func TestAccountLengthPrefix(t *testing.T) {
	b := EncodeAccount("bob")
	assert.Equal(t, []byte{3, 0, 0, 0, 'b', 'o', 'b'}, b)

	a, err := DecodeAccount(b)
	require.NoError(t, err)
	assert.Equal(t, AccountID("bob"), a)

	_, err = DecodeAccount([]byte{9, 0, 0, 0, 'b'})
	assert.ErrorIs(t, err, ErrShortBuffer)
}

func TestDecoderErrorSticks(t *testing.T) {
	d := NewDecoder([]byte{1})
	assert.Equal(t, uint32(0), d.U32())
	assert.Equal(t, uint64(0), d.U64())
	assert.ErrorIs(t, d.Err(), ErrShortBuffer)
}

func TestParseName(t *testing.T) {
	n, err := ParseName("kitt")
	require.NoError(t, err)
	assert.Equal(t, "kitt", n.String())

	_, err = ParseName("kitty")
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = ParseName("")
	assert.ErrorIs(t, err, ErrInvalidName)
}
