package smt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/image-veracity/veracity/smt/node"
)

func testHash(fill byte) *Hash {
	var h Hash
	for i := range h {
		h[i] = fill
	}
	return &h
}

func TestNewNodesRowEmpty(t *testing.T) {
	row, err := NewNodesRow(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, row.Len())
	assert.Equal(t, uint(0), row.Depth())
}

func TestNewNodesRowSorts(t *testing.T) {
	nodes := []Node{
		NewEmptyNode(node.NewID("\x00\x01", 16)),
		NewEmptyNode(node.NewID("\x00\x00", 16)),
		NewEmptyNode(node.NewID("\x00\x02", 16)),
	}
	row, err := NewNodesRow(nodes)
	require.NoError(t, err)
	require.Equal(t, 3, row.Len())
	assert.Equal(t, uint(16), row.Depth())
	for i := 1; i < row.Len(); i++ {
		assert.Equal(t, -1, row[i-1].ID.Compare(row[i].ID))
	}
}

func TestNewNodesRowDepthMismatch(t *testing.T) {
	nodes := []Node{
		NewEmptyNode(node.NewID("\x00\x00", 16)),
		NewEmptyNode(node.NewID("\x00\x00\x01", 24)),
	}
	_, err := NewNodesRow(nodes)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDepthMismatch)
	// The error names the offending index and both depths.
	assert.Contains(t, err.Error(), "node 1")
	assert.Contains(t, err.Error(), "24")
	assert.Contains(t, err.Error(), "16")
}

func TestNewNodesRowDedup(t *testing.T) {
	id := node.NewID("\x00\x01", 16)
	other := node.NewID("\x00\x02", 16)

	t.Run("exact-duplicates", func(t *testing.T) {
		row, err := NewNodesRow([]Node{
			NewNode(id, testHash(7)),
			NewNode(id, testHash(7)),
			NewNode(other, testHash(9)),
		})
		require.NoError(t, err)
		assert.Equal(t, 2, row.Len())
	})

	t.Run("shared-hash-pointer", func(t *testing.T) {
		h := testHash(7)
		row, err := NewNodesRow([]Node{NewNode(id, h), NewNode(id, h)})
		require.NoError(t, err)
		assert.Equal(t, 1, row.Len())
	})

	t.Run("same-id-different-hash", func(t *testing.T) {
		// Dedup is by full equality, so both entries survive.
		row, err := NewNodesRow([]Node{
			NewNode(id, testHash(1)),
			NewNode(id, testHash(2)),
		})
		require.NoError(t, err)
		assert.Equal(t, 2, row.Len())
	})
}

func TestNodesRowInSubtree(t *testing.T) {
	root := node.NewID("\xab", 8)
	under := func(last byte) Node {
		return NewEmptyNode(node.NewIDWithLast("\xab", last, 7))
	}
	outside := NewEmptyNode(node.NewIDWithLast("\xac", 0x00, 7))

	t.Run("empty", func(t *testing.T) {
		assert.False(t, NodesRow{}.InSubtree(root))
	})

	t.Run("single-under", func(t *testing.T) {
		row, err := NewNodesRow([]Node{under(0x10)})
		require.NoError(t, err)
		assert.True(t, row.InSubtree(root))
	})

	t.Run("all-under", func(t *testing.T) {
		row, err := NewNodesRow([]Node{under(0x10), under(0x20), under(0xfe)})
		require.NoError(t, err)
		assert.True(t, row.InSubtree(root))
	})

	t.Run("first-outside", func(t *testing.T) {
		row, err := NewNodesRow([]Node{
			NewEmptyNode(node.NewIDWithLast("\xaa", 0x00, 7)),
			under(0x20),
		})
		require.NoError(t, err)
		assert.False(t, row.InSubtree(root))
	})

	t.Run("last-outside", func(t *testing.T) {
		row, err := NewNodesRow([]Node{under(0x10), outside})
		require.NoError(t, err)
		assert.False(t, row.InSubtree(root))
	})

	t.Run("too-shallow", func(t *testing.T) {
		// Nodes at the root's own depth are not strictly below it.
		row, err := NewNodesRow([]Node{NewEmptyNode(node.NewID("\xab", 8))})
		require.NoError(t, err)
		assert.False(t, row.InSubtree(root))
	})

	t.Run("root-of-everything", func(t *testing.T) {
		row, err := NewNodesRow([]Node{under(0x10), under(0x20)})
		require.NoError(t, err)
		assert.True(t, row.InSubtree(node.NewID("", 0)))
	})
}
