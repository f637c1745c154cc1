package smt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/image-veracity/veracity/smt/node"
)

// leaf returns a depth-15 node under the given 8-bit prefix byte.
func leaf(prefix, last byte, h *Hash) Node {
	return NewNode(node.NewIDWithLast(string([]byte{prefix}), last, 7), h)
}

func mustRow(t *testing.T, nodes ...Node) NodesRow {
	t.Helper()
	row, err := NewNodesRow(nodes)
	require.NoError(t, err)
	return row
}

func TestTileMergeEmptyUpdate(t *testing.T) {
	tile := NewTile(node.NewID("\xab", 8))
	leaves := mustRow(t, leaf(0xab, 0x10, testHash(1)), leaf(0xab, 0x20, testHash(2)))
	require.NoError(t, tile.Merge(leaves))

	require.NoError(t, tile.Merge(NodesRow{}))
	assert.Equal(t, leaves, tile.Leaves())
}

func TestTileMergeIntoEmptyTile(t *testing.T) {
	tile := NewTile(node.NewID("\xab", 8))
	update := mustRow(t, leaf(0xab, 0x10, testHash(1)))
	require.NoError(t, tile.Merge(update))
	assert.Equal(t, update, tile.Leaves())
}

func TestTileMergeDisjoint(t *testing.T) {
	tile := NewTile(node.NewID("\xab", 8))
	require.NoError(t, tile.Merge(mustRow(t,
		leaf(0xab, 0x10, testHash(1)),
		leaf(0xab, 0x40, testHash(4)),
	)))
	require.NoError(t, tile.Merge(mustRow(t,
		leaf(0xab, 0x20, testHash(2)),
		leaf(0xab, 0x80, testHash(8)),
	)))

	got := tile.Leaves()
	require.Equal(t, 4, got.Len())
	for i := 1; i < got.Len(); i++ {
		assert.Equal(t, -1, got[i-1].ID.Compare(got[i].ID))
	}
}

func TestTileMergeOverlapReplacement(t *testing.T) {
	// Leaves at depth 15 under the 8-bit root. The update rewrites one
	// existing slot, adds a fresh one, and restates one unchanged leaf.
	root := node.NewID("\xab", 8)
	a0 := leaf(0xab, 0x00, testHash(0xa0))
	a1 := leaf(0xab, 0x10, testHash(0xa1))
	a2 := leaf(0xab, 0x20, testHash(0xa2))
	a3 := leaf(0xab, 0x30, testHash(0xa3))

	tile := NewTile(root)
	require.NoError(t, tile.Merge(mustRow(t, a0, a1, a2, a3)))

	a1new := leaf(0xab, 0x10, testHash(0xb1))
	a2fresh := leaf(0xab, 0x28, testHash(0xb2))
	a3same := leaf(0xab, 0x30, testHash(0xa3))
	require.NoError(t, tile.Merge(mustRow(t, a1new, a2fresh, a3same)))

	got := tile.Leaves()
	require.Equal(t, 5, got.Len())
	want := []Node{a0, a1new, a2, a2fresh, a3}
	for i, n := range want {
		assert.Equal(t, n.ID, got[i].ID, "slot %d", i)
		assert.Equal(t, *n.Hash, *got[i].Hash, "slot %d", i)
	}
}

func TestTileMergeDepthMismatch(t *testing.T) {
	tile := NewTile(node.NewID("\xab", 8))
	before := mustRow(t, leaf(0xab, 0x10, testHash(1)))
	require.NoError(t, tile.Merge(before))

	update := mustRow(t, NewNode(node.NewID("\xab\x01\x00", 24), testHash(2)))
	err := tile.Merge(update)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDepthMismatch)
	assert.Contains(t, err.Error(), "24")
	assert.Contains(t, err.Error(), "15")
	assert.Equal(t, before, tile.Leaves(), "failed merge must not mutate the tile")
}

func TestTileMergeOutsideSubtree(t *testing.T) {
	tile := NewTile(node.NewID("\xab", 8))
	before := mustRow(t, leaf(0xab, 0x10, testHash(1)))
	require.NoError(t, tile.Merge(before))

	// First 8 bits differ from the tile root.
	update := mustRow(t, leaf(0xac, 0x10, testHash(2)))
	err := tile.Merge(update)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOutsideTile)
	assert.Equal(t, before, tile.Leaves(), "failed merge must not mutate the tile")
}

func TestTileMergeIdempotent(t *testing.T) {
	tile := NewTile(node.NewID("\xab", 8))
	update := mustRow(t, leaf(0xab, 0x10, testHash(1)), leaf(0xab, 0x20, testHash(2)))
	require.NoError(t, tile.Merge(update))
	require.NoError(t, tile.Merge(update))
	assert.Equal(t, update, tile.Leaves())
}

func TestNewTileWithLeaves(t *testing.T) {
	root := node.NewID("\xab", 8)
	row := mustRow(t, leaf(0xab, 0x10, testHash(1)))

	tile, err := NewTileWithLeaves(root, row)
	require.NoError(t, err)
	assert.Equal(t, row, tile.Leaves())

	_, err = NewTileWithLeaves(node.NewID("\xac", 8), row)
	assert.ErrorIs(t, err, ErrOutsideTile)
}

func TestTileMergeSharesHashBuffers(t *testing.T) {
	tile := NewTile(node.NewID("\xab", 8))
	h := testHash(1)
	require.NoError(t, tile.Merge(mustRow(t, leaf(0xab, 0x10, h))))
	require.NoError(t, tile.Merge(mustRow(t, leaf(0xab, 0x20, testHash(2)))))

	// Carried-through nodes keep pointing at the original buffer.
	got := tile.Leaves()
	require.Equal(t, 2, got.Len())
	assert.Same(t, h, got[0].Hash)
}
