package wconsensustest

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/weft-engine/weft/wconsensus"
)

// NewBlock returns a deterministic verified block for tests.
// The content hash commits to the author, round, and payload,
// so two fixture blocks collide only if all three match.
func NewBlock(author wconsensus.AuthorityIndex, round wconsensus.Round, payload []byte) wconsensus.VerifiedBlock {
	h, err := blake2b.New256(nil)
	if err != nil {
		panic(fmt.Errorf("unkeyed blake2b must initialize: %w", err))
	}

	var meta [8]byte
	binary.BigEndian.PutUint32(meta[:4], uint32(author))
	binary.BigEndian.PutUint32(meta[4:], uint32(round))
	_, _ = h.Write(meta[:])
	_, _ = h.Write(payload)

	return wconsensus.VerifiedBlock{
		Ref: wconsensus.BlockRef{
			Author: author,
			Round:  round,
			Hash:   string(h.Sum(nil)),
		},
		Payload: payload,
	}
}

// BlocksForRound returns one block per committee member for the given round.
func BlocksForRound(c *wconsensus.Committee, round wconsensus.Round) []wconsensus.VerifiedBlock {
	blocks := make([]wconsensus.VerifiedBlock, c.Size())
	for i := range blocks {
		blocks[i] = NewBlock(wconsensus.AuthorityIndex(i), round, nil)
	}
	return blocks
}
