package offchain

import (
	"testing"

	dbm "github.com/cometbft/cometbft-db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOverlayMergeAndFlush(t *testing.T) {
	db := dbm.NewMemDB()
	require.NoError(t, db.Set([]byte("b"), []byte("old")))
	require.NoError(t, db.Set([]byte("c"), []byte("gone")))

	parent := newOverlay()
	parent.set([]byte("b"), []byte("parent"))

	child := newOverlay()
	child.set([]byte("a"), nil)
	child.set([]byte("b"), []byte("child"))
	child.delete([]byte("c"))

	v, ok := child.get([]byte("c"))
	assert.True(t, ok)
	assert.Nil(t, v)
	_, ok = child.get([]byte("d"))
	assert.False(t, ok)

	child.mergeInto(parent)
	v, ok = parent.get([]byte("b"))
	require.True(t, ok)
	assert.Equal(t, []byte("child"), v)

	batch := db.NewBatch()
	require.NoError(t, parent.writeTo(batch))
	require.NoError(t, batch.WriteSync())
	require.NoError(t, batch.Close())

	got, err := db.Get([]byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte{}, got)
	got, err = db.Get([]byte("b"))
	require.NoError(t, err)
	assert.Equal(t, []byte("child"), got)
	has, err := db.Has([]byte("c"))
	require.NoError(t, err)
	assert.False(t, has)
}
