package veracity

import (
	"crypto/sha256"
	"testing"

	"github.com/image-veracity/veracity/imagehash"
	"github.com/image-veracity/veracity/smt/node"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testVeracityHash(first byte, fill byte) imagehash.VeracityHash {
	var h imagehash.VeracityHash
	for i := range h.Crypto {
		h.Crypto[i] = fill
		h.Perceptual[i] = fill ^ 0xff
	}
	h.Crypto[0] = first
	return h
}

func TestMapLeaf(t *testing.T) {
	assert := assert.New(t)

	h := testVeracityHash(0xab, 0x11)
	leaf := MapLeaf(h)

	assert.Equal(uint(leafDepth), leaf.ID.BitLen())
	assert.Equal(node.NewID(string(h.Crypto[:1]), 8), leaf.ID.Prefix(8))

	want := sha256.Sum256(h.Perceptual[:])
	assert.Equal(want[:], leaf.Hash[:])
}

func TestTileMapStage(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	m := NewTileMap()
	tiles, leaves := m.Size()
	assert.Equal(0, tiles)
	assert.Equal(0, leaves)

	// two keys under one tile root, one under another
	a1 := MapLeaf(testVeracityHash(0xab, 0x01))
	a2 := MapLeaf(testVeracityHash(0xab, 0x02))
	b1 := MapLeaf(testVeracityHash(0xcd, 0x03))
	require.NoError(m.Stage(a1, a2, b1))

	tiles, leaves = m.Size()
	assert.Equal(2, tiles)
	assert.Equal(3, leaves)

	rootA := node.NewID("\xab", 8)
	row, ok := m.Leaves(rootA)
	require.True(ok)
	assert.Equal(2, row.Len())

	_, ok = m.Leaves(node.NewID("\xee", 8))
	assert.False(ok)
}

func TestTileMapStageReplaces(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	m := NewTileMap()

	h1 := testVeracityHash(0xab, 0x01)
	require.NoError(m.Stage(MapLeaf(h1)))

	// same key, new value
	h2 := h1
	h2.Perceptual[0] ^= 0xff
	require.NoError(m.Stage(MapLeaf(h2)))

	tiles, leaves := m.Size()
	assert.Equal(1, tiles)
	assert.Equal(1, leaves)

	row, ok := m.Leaves(node.NewID("\xab", 8))
	require.True(ok)
	require.Equal(1, row.Len())
	want := sha256.Sum256(h2.Perceptual[:])
	assert.Equal(want[:], row[0].Hash[:])
}

func TestTileMapStageConcurrent(t *testing.T) {
	assert := assert.New(t)

	m := NewTileMap()
	done := make(chan error)
	for i := 0; i < 8; i++ {
		go func(i int) {
			var errs error
			for j := 0; j < 32; j++ {
				h := testVeracityHash(byte(j), byte(i))
				if err := m.Stage(MapLeaf(h)); err != nil {
					errs = err
				}
			}
			done <- errs
		}(i)
	}
	for i := 0; i < 8; i++ {
		assert.NoError(<-done)
	}

	tiles, leaves := m.Size()
	assert.Equal(32, tiles)
	assert.Equal(32*8, leaves)
}
