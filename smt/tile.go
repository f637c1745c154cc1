package smt

import (
	"errors"
	"fmt"

	"github.com/image-veracity/veracity/smt/node"
)

// ErrOutsideTile indicates an update containing nodes that do not lie under
// the tile's root.
var ErrOutsideTile = errors.New("update not contained in tile subtree")

// Tile is a bounded subtree of a sparse Merkle tree, identified by its root
// ID and holding the current set of leaf nodes strictly below that root. The
// root is fixed at construction; the leaves change only through Merge.
//
// A Tile is a plain in-memory value with no internal locking. Concurrent
// readers are fine on a quiescent tile, but callers must serialize Merge
// calls per tile.
type Tile struct {
	Root   node.ID
	leaves NodesRow
}

// NewTile returns an empty tile rooted at the given ID.
func NewTile(root node.ID) *Tile {
	return &Tile{Root: root}
}

// NewTileWithLeaves returns a tile rooted at the given ID with an initial
// leaf row, which must be contained in the root's subtree.
func NewTileWithLeaves(root node.ID, leaves NodesRow) (*Tile, error) {
	if leaves.Len() != 0 && !leaves.InSubtree(root) {
		return nil, fmt.Errorf("%w: root %v", ErrOutsideTile, root)
	}
	return &Tile{Root: root, leaves: leaves}, nil
}

// Leaves returns the tile's current leaf row. The returned row must not be
// modified.
func (t *Tile) Leaves() NodesRow {
	return t.leaves
}

// Merge folds the update row into the tile's leaves. Nodes at IDs present in
// both rows take the update's hash; everything else carries through. The
// update must match the current leaves' depth and lie wholly under the
// tile's root, otherwise Merge fails (wrapping ErrDepthMismatch or
// ErrOutsideTile) and leaves the tile untouched. An empty update is a no-op,
// and an update into an empty tile is adopted verbatim; both shortcuts skip
// the validation that an established leaf set would require.
func (t *Tile) Merge(update NodesRow) error {
	if update.Len() == 0 {
		return nil
	}
	if t.leaves.Len() == 0 {
		t.leaves = update
		return nil
	}
	if got, want := update.Depth(), t.leaves.Depth(); got != want {
		return fmt.Errorf("%w: update depth %d, tile depth %d", ErrDepthMismatch, got, want)
	}
	if !update.InSubtree(t.Root) {
		return fmt.Errorf("%w: root %v", ErrOutsideTile, t.Root)
	}
	merged, err := NewNodesRow(mergeRows(t.leaves, update))
	if err != nil {
		return err
	}
	t.leaves = merged
	return nil
}

// mergeRows walks two sorted deduplicated rows in lock-step and returns
// their union ordered by ID, preferring upd on ID collisions. Runs in
// O(len(cur) + len(upd)).
func mergeRows(cur, upd NodesRow) []Node {
	out := make([]Node, 0, len(cur)+len(upd))
	i, j := 0, 0
	for i < len(cur) && j < len(upd) {
		switch cur[i].ID.Compare(upd[j].ID) {
		case -1:
			out = append(out, cur[i])
			i++
		case 1:
			out = append(out, upd[j])
			j++
		default:
			out = append(out, upd[j])
			i++
			j++
		}
	}
	out = append(out, cur[i:]...)
	out = append(out, upd[j:]...)
	return out
}
