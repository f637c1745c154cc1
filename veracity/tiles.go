package veracity

import (
	"fmt"
	"sync"

	"github.com/image-veracity/veracity/imagehash"
	"github.com/image-veracity/veracity/smt"
	"github.com/image-veracity/veracity/smt/node"

	sha256 "github.com/minio/sha256-simd"
)

// tileRootBits is the depth of top-level tile roots. Leaves are bucketed by
// their first byte, giving at most 256 tiles.
const tileRootBits = 8

// leafDepth is the depth of map leaves, one bit per bit of the crypto hash.
const leafDepth = smt.HashSize * 8

// TileMap accumulates staged map leaves, bucketed into tiles by their
// top-level root. Each tile is guarded by its own mutex so merges into
// distinct tiles proceed concurrently; writes to one tile are serialized.
type TileMap struct {
	mu    sync.Mutex
	tiles map[node.ID]*tileSlot
}

type tileSlot struct {
	mu   sync.Mutex
	tile *smt.Tile
}

func NewTileMap() *TileMap {
	return &TileMap{tiles: make(map[node.ID]*tileSlot)}
}

// MapLeaf builds the map leaf for an image hash pair. The leaf sits at the
// key derived from the crypto hash, and carries a hash of the perceptual
// hash as its value.
func MapLeaf(h imagehash.VeracityHash) smt.Node {
	id := node.NewID(string(h.Crypto[:]), leafDepth)
	value := smt.Hash(sha256.Sum256(h.Perceptual[:]))
	return smt.NewNode(id, &value)
}

func (m *TileMap) slot(root node.ID) *tileSlot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.tiles[root]
	if !ok {
		s = &tileSlot{tile: smt.NewTile(root)}
		m.tiles[root] = s
		tilesStaged.Set(float64(len(m.tiles)))
	}
	return s
}

// Stage merges the given leaves into their tiles. All leaves must be at
// leafDepth. Later stagings of the same key replace the earlier value.
func (m *TileMap) Stage(leaves ...smt.Node) error {
	byRoot := make(map[node.ID][]smt.Node)
	for _, n := range leaves {
		root := n.ID.Prefix(tileRootBits)
		byRoot[root] = append(byRoot[root], n)
	}
	for root, group := range byRoot {
		row, err := smt.NewNodesRow(group)
		if err != nil {
			return fmt.Errorf("staging tile %v: %w", root, err)
		}
		s := m.slot(root)
		s.mu.Lock()
		err = s.tile.Merge(row)
		s.mu.Unlock()
		if err != nil {
			return fmt.Errorf("staging tile %v: %w", root, err)
		}
	}
	return nil
}

// Leaves returns a copy of the staged leaves for the tile rooted at root.
func (m *TileMap) Leaves(root node.ID) (smt.NodesRow, bool) {
	m.mu.Lock()
	s, ok := m.tiles[root]
	m.mu.Unlock()
	if !ok {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	leaves := s.tile.Leaves()
	out := make(smt.NodesRow, len(leaves))
	copy(out, leaves)
	return out, true
}

// Size returns the number of tiles holding staged leaves and the total
// staged leaf count.
func (m *TileMap) Size() (tiles, leaves int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.tiles {
		s.mu.Lock()
		leaves += s.tile.Leaves().Len()
		s.mu.Unlock()
	}
	return len(m.tiles), leaves
}
