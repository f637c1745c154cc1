// Package node implements addressing for sparse Merkle tree nodes.
package node

import (
	"fmt"
	"strings"
)

// ID identifies a node of a binary Merkle tree. It is a bit string counting
// the node down from the tree root, where 0 and 1 bits select the left or
// right child correspondingly.
//
// ID is immutable, comparable, and usable as a map key. The bit string bytes
// are held in a Go string so that transforming methods like Prefix and
// Sibling incur no allocations, and the final byte is stored separately so it
// can be amended cheaply.
//
// There is exactly one canonical encoding for every bit string: when the last
// byte is used partially, its unused low bits are always unset. That is what
// makes two IDs of the same logical bit string equal under ==, and makes
// Compare a plain lexicographic walk with no bit shifting.
//
// For example, an 11-bit ID [1010,1111,001] is stored as:
//   - path holding one byte, [1010,1111];
//   - last byte [0010,0000], note the unset lower 5 bits;
//   - bits == 3, so only the upper 3 bits [001] of last are significant.
type ID struct {
	path string
	last byte  // Invariant: the lowest (8-bits) bits are unset.
	bits uint8 // Invariant: 1 <= bits <= 8, or bits == 0 for the empty ID.
}

// NewID creates a node ID from the given path bytes truncated to the
// specified number of bits. Panics if bits exceeds what the path contains.
func NewID(path string, bits uint) ID {
	if bits == 0 {
		return ID{}
	} else if mx := uint(len(path)) * 8; bits > mx {
		panic(fmt.Sprintf("NewID: bits %d > %d", bits, mx))
	}
	bytes, tailBits := split(bits)
	// Substrings of an immutable string share the backing bytes, so this
	// costs nothing.
	return newMaskedID(path[:bytes], path[bytes], tailBits)
}

// NewIDWithLast creates a node ID from the given path bytes plus a separate
// last byte, of which only the given number of most significant bits is used.
// The number of bits must be between 1 and 8, and may be 0 only when path is
// empty; otherwise the function panics.
func NewIDWithLast(path string, last byte, bits uint8) ID {
	if bits > 8 {
		panic(fmt.Sprintf("NewIDWithLast: bits %d > 8", bits))
	} else if bits == 0 && len(path) != 0 {
		panic("NewIDWithLast: bits=0, but path is not empty")
	}
	return newMaskedID(path, last, bits)
}

// newMaskedID constructs an ID with its invariants enforced: the last byte is
// masked so that only the given number of upper bits remain set.
func newMaskedID(path string, last byte, bits uint8) ID {
	last &= ^byte(1<<(8-bits) - 1)
	return ID{path: path, last: last, bits: bits}
}

// BitLen returns the length of the ID in bits. It is 0 only for the empty
// (root) ID.
func (n ID) BitLen() uint {
	return uint(len(n.path))*8 + uint(n.bits)
}

// FullBytes returns the bytes of the ID that are fully used. Up to 8 more
// bits may follow; see LastByte.
func (n ID) FullBytes() string {
	return n.path
}

// LastByte returns the terminating byte of the ID together with the number of
// its upper bits that are significant (1 to 8, or 0 for the empty ID). The
// unused lower bits are always unset.
func (n ID) LastByte() (byte, uint8) {
	return n.last, n.bits
}

// Prefix returns the ID consisting of the first bits bits of this ID. Panics
// if bits exceeds BitLen. Prefix(0) is the empty ID.
func (n ID) Prefix(bits uint) ID {
	// Deliberately not NewID(n.path, bits): the last byte is not part of the
	// path string, so NewID would read out of bounds at the byte boundary.
	if bits == 0 {
		return ID{}
	} else if mx := n.BitLen(); bits > mx {
		panic(fmt.Sprintf("Prefix: bits %d > %d", bits, mx))
	}
	bytes, tailBits := split(bits)
	last := n.last
	if bytes != uint(len(n.path)) {
		last = n.path[bytes]
	}
	return newMaskedID(n.path[:bytes], last, tailBits)
}

// Sibling returns the ID of the node's sibling in the binary tree, i.e. the
// other child of its parent. The empty ID is its own sibling.
func (n ID) Sibling() ID {
	last := n.last ^ byte(1<<(8-n.bits))
	return ID{path: n.path, last: last, bits: n.bits}
}

// Compare orders IDs lexicographically as bit strings: a proper prefix sorts
// before any of its extensions, and otherwise the first differing bit
// decides. It returns -1, 0 or +1. Because the encoding is canonical this is
// a byte-wise comparison with a single bit-length tie break.
func (n ID) Compare(other ID) int {
	a, b := n, other
	for i := 0; ; i++ {
		ab, aok := a.byteAt(i)
		bb, bok := b.byteAt(i)
		if !aok || !bok {
			break
		}
		if ab != bb {
			if ab < bb {
				return -1
			}
			return 1
		}
	}
	// One encoding is a byte-wise prefix of the other, possibly sharing a
	// masked tail byte. The shorter bit string sorts first.
	switch al, bl := a.BitLen(), b.BitLen(); {
	case al < bl:
		return -1
	case al > bl:
		return 1
	}
	return 0
}

// byteAt returns the i-th byte of the canonical encoding, counting the tail
// byte as part of it.
func (n ID) byteAt(i int) (byte, bool) {
	if i < len(n.path) {
		return n.path[i], true
	}
	if i == len(n.path) && n.bits != 0 {
		return n.last, true
	}
	return 0, false
}

// String returns a human-readable bit string, e.g. [10100000 110].
func (n ID) String() string {
	if n.BitLen() == 0 {
		return "[]"
	}
	var sb strings.Builder
	sb.WriteByte('[')
	for i := 0; i < len(n.path); i++ {
		fmt.Fprintf(&sb, "%08b ", n.path[i])
	}
	fmt.Fprintf(&sb, "%0*b", n.bits, n.last>>(8-n.bits))
	sb.WriteByte(']')
	return sb.String()
}

// split decomposes a bit count into the number of full bytes and the number
// of bits used in the tail byte.
func split(bits uint) (bytes uint, tailBits uint8) {
	return (bits - 1) / 8, uint8(1 + (bits-1)%8)
}
