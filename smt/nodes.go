// Package smt provides the building blocks for tile-based sparse Merkle tree
// updates: content-addressed tree nodes, validated rows of nodes at a fixed
// depth, and tiles that fold partial updates into their leaf sets.
package smt

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/image-veracity/veracity/smt/node"
)

// HashSize is the size of a node content hash in bytes.
const HashSize = 32

// Hash is a node content hash. Nodes hold pointers to hashes so that rows
// rebuilt during merges share the underlying buffers instead of copying them.
type Hash [HashSize]byte

// ErrDepthMismatch indicates that nodes of different depths were mixed where
// a uniform depth is required.
var ErrDepthMismatch = errors.New("node depth mismatch")

var zeroHash = &Hash{}

// Node is a tree node: an ID paired with a content hash. Nodes are immutable
// values ordered by ID; the hash does not participate in ordering.
type Node struct {
	ID   node.ID
	Hash *Hash
}

// NewNode returns a Node with the given ID and hash. The hash pointer is
// retained, not copied; callers must not modify the pointed-to buffer.
func NewNode(id node.ID, hash *Hash) Node {
	return Node{ID: id, Hash: hash}
}

// NewEmptyNode returns a Node with the given ID and an all-zero hash, for
// address-only lookups and comparisons.
func NewEmptyNode(id node.ID) Node {
	return Node{ID: id, Hash: zeroHash}
}

// equal reports full equality: same ID and same hash bytes.
func (n Node) equal(other Node) bool {
	if n.ID != other.ID {
		return false
	}
	if n.Hash == other.Hash {
		return true
	}
	if n.Hash == nil || other.Hash == nil {
		return false
	}
	return bytes.Equal(n.Hash[:], other.Hash[:])
}

// NodesRow is a sorted, deduplicated sequence of Nodes that all share the
// same ID bit length. Rows are built with NewNodesRow and replaced wholesale,
// never mutated element-wise.
type NodesRow []Node

// NewNodesRow validates and normalizes the given nodes into a row. An empty
// input yields an empty row. Otherwise the bit length of the first node sets
// the required depth: any node of a different depth fails the construction
// with an error wrapping ErrDepthMismatch that names the offending index and
// both depths. The nodes are then sorted ascending by ID, and exact
// duplicates (same ID and same hash) collapse to a single entry.
func NewNodesRow(nodes []Node) (NodesRow, error) {
	if len(nodes) == 0 {
		return NodesRow{}, nil
	}
	depth := nodes[0].ID.BitLen()
	for i, n := range nodes {
		if got := n.ID.BitLen(); got != depth {
			return nil, fmt.Errorf("node %d: %w: depth %d, want %d", i, ErrDepthMismatch, got, depth)
		}
	}
	row := make(NodesRow, len(nodes))
	copy(row, nodes)
	sort.Slice(row, func(i, j int) bool {
		return row[i].ID.Compare(row[j].ID) < 0
	})
	// The sort is by ID only, so duplicate runs are adjacent.
	out := row[:1]
	for _, n := range row[1:] {
		if !n.equal(out[len(out)-1]) {
			out = append(out, n)
		}
	}
	return out, nil
}

// Len returns the number of nodes in the row.
func (r NodesRow) Len() int {
	return len(r)
}

// Depth returns the shared bit length of the row's node IDs, 0 for an empty
// row.
func (r NodesRow) Depth() uint {
	if len(r) == 0 {
		return 0
	}
	return r[0].ID.BitLen()
}

// InSubtree reports whether every node of the row lies strictly below the
// given root, i.e. is longer than root and has root as a prefix. Since the
// row is sorted it suffices to check the first and last nodes. An empty row
// is not in any subtree.
func (r NodesRow) InSubtree(root node.ID) bool {
	if len(r) == 0 {
		return false
	}
	rootLen := root.BitLen()
	if first := r[0]; first.ID.BitLen() <= rootLen || first.ID.Prefix(rootLen) != root {
		return false
	}
	if len(r) == 1 {
		return true
	}
	return r[len(r)-1].ID.Prefix(rootLen) == root
}
