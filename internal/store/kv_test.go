package store

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/menagerie/internal/kv"
)

func keys(t *testing.T, r kv.Reader, prefix []byte) []string {
	t.Helper()
	var out []string
	require.NoError(t, r.Iterate(prefix, func(k, v []byte) error {
		out = append(out, string(k)+"="+string(v))
		return nil
	}))
	return out
}

func TestKV_GetPutDelete(t *testing.T) {
	s := createTestStore(t)

	_, ok, err := s.Get([]byte("a"))
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put([]byte("a"), []byte("1")))
	require.NoError(t, s.Put([]byte("a"), []byte("2")))
	v, ok, err := s.Get([]byte("a"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("2"), v)

	require.NoError(t, s.Delete([]byte("a")))
	has, err := s.Has([]byte("a"))
	require.NoError(t, err)
	assert.False(t, has)
}

func TestKV_EmptyValue(t *testing.T) {
	s := createTestStore(t)

	require.NoError(t, s.Put([]byte("marker"), nil))
	v, ok, err := s.Get([]byte("marker"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, v)
}

func TestKV_IterateByteOrder(t *testing.T) {
	s := createTestStore(t)
	for _, k := range []string{"b\xff", "a", "b\x00", "b", "c"} {
		require.NoError(t, s.Put([]byte(k), []byte("x")))
	}

	assert.Equal(t, []string{"b=x", "b\x00=x", "b\xff=x"}, keys(t, s, []byte("b")))
	assert.Len(t, keys(t, s, nil), 5)

	// A prefix of 0xFF bytes has no upper bound.
	require.NoError(t, s.Put([]byte("\xff\xff"), []byte("x")))
	assert.Equal(t, []string{"\xff\xff=x"}, keys(t, s, []byte("\xff")))
}

func TestKV_IterateAllowsWrites(t *testing.T) {
	s := createTestStore(t)
	require.NoError(t, s.Put([]byte("k1"), []byte("old")))
	require.NoError(t, s.Put([]byte("k2"), []byte("old")))

	err := s.Iterate([]byte("k"), func(k, v []byte) error {
		return s.Put(k, []byte("new"))
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"k1=new", "k2=new"}, keys(t, s, []byte("k")))
}

func TestKV_IterateStop(t *testing.T) {
	s := createTestStore(t)
	require.NoError(t, s.Put([]byte("a"), []byte("1")))
	require.NoError(t, s.Put([]byte("b"), []byte("2")))

	n := 0
	require.NoError(t, s.Iterate(nil, func(k, v []byte) error {
		n++
		return kv.ErrStop
	}))
	assert.Equal(t, 1, n)

	boom := errors.New("boom")
	assert.ErrorIs(t, s.Iterate(nil, func(k, v []byte) error { return boom }), boom)
}

func TestKV_OverlayCommitUsesTransaction(t *testing.T) {
	s := createTestStore(t)
	require.NoError(t, s.Put([]byte("gone"), []byte("1")))

	ov := kv.NewOverlay(s)
	require.NoError(t, ov.Put([]byte("new"), []byte("2")))
	require.NoError(t, ov.Delete([]byte("gone")))
	assert.Equal(t, []string{"gone=1"}, keys(t, s, nil))

	require.NoError(t, ov.Commit(s))
	assert.Equal(t, []string{"new=2"}, keys(t, s, nil))
}
