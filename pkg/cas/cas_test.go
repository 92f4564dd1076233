package cas

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemory_PutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	cid, err := m.Put(ctx, []byte("hello"))
	require.NoError(t, err)

	got, err := m.Get(ctx, cid)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), got)
}

func TestMemory_PutIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	cid1, err := m.Put(ctx, []byte("hello"))
	require.NoError(t, err)
	cid2, err := m.Put(ctx, []byte("hello"))
	require.NoError(t, err)
	require.Equal(t, cid1, cid2)
}

func TestMemory_GetMissingReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.Get(ctx, "b3:0000000000000000000000000000000000000000000000000000000000000000")
	require.ErrorIs(t, err, ErrNotFound)
}
