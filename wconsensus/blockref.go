package wconsensus

import (
	"fmt"
	"slices"
	"strings"

	"github.com/weft-engine/weft/internal/wlog"
)

// BlockRef is the unique identity of a block:
// the authority that authored it, the round it was proposed in,
// and the hash of its content.
//
// The Hash field holds raw hash bytes in a string
// so that BlockRef is comparable and usable as a map key.
type BlockRef struct {
	Author AuthorityIndex
	Round  Round
	Hash   string
}

// Compare orders block references by (Round, Author, Hash), ascending.
// This ordering is round-first so that sorted reference sets
// read in DAG-layer order, which keeps set differences
// and log output deterministic across nodes.
func (r BlockRef) Compare(o BlockRef) int {
	if r.Round != o.Round {
		if r.Round < o.Round {
			return -1
		}
		return 1
	}
	if r.Author != o.Author {
		if r.Author < o.Author {
			return -1
		}
		return 1
	}
	return strings.Compare(r.Hash, o.Hash)
}

func (r BlockRef) String() string {
	return fmt.Sprintf("B(%d,%d,%s)", r.Author, r.Round, wlog.Hex([]byte(r.Hash)))
}

// BlockRefSet is an unordered set of block references.
type BlockRefSet map[BlockRef]struct{}

// NewBlockRefSet returns a set containing the given refs.
func NewBlockRefSet(refs ...BlockRef) BlockRefSet {
	s := make(BlockRefSet, len(refs))
	for _, r := range refs {
		s[r] = struct{}{}
	}
	return s
}

// Add puts r in the set.
func (s BlockRefSet) Add(r BlockRef) {
	s[r] = struct{}{}
}

// Has reports whether r is in the set.
func (s BlockRefSet) Has(r BlockRef) bool {
	_, ok := s[r]
	return ok
}

// Clone returns an independent copy of the set.
func (s BlockRefSet) Clone() BlockRefSet {
	out := make(BlockRefSet, len(s))
	for r := range s {
		out[r] = struct{}{}
	}
	return out
}

// Sorted returns the set's members as a slice
// in the deterministic (Round, Author, Hash) order.
func (s BlockRefSet) Sorted() []BlockRef {
	out := make([]BlockRef, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	slices.SortFunc(out, BlockRef.Compare)
	return out
}
