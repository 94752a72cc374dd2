package wprober

import (
	"fmt"
	"slices"

	"github.com/weft-engine/weft/wconsensus"
)

// QuorumRound is the stake-weighted round watermark pair for one authority.
//
// Low is the highest round such that authorities holding
// at least a validity threshold (>1/3) of stake
// report having received that authority's block for it.
// High is the same for a quorum threshold (>2/3) of stake.
//
// Low <= High always: both come from the same cumulative walk
// over the same sorted reports, and the validity threshold
// is never larger than the quorum threshold.
type QuorumRound struct {
	Low, High wconsensus.Round
}

// Gap returns High - Low.
// A growing gap means a blocking minority of the committee
// is falling behind the quorum's view of this authority.
func (q QuorumRound) Gap() wconsensus.Round {
	return q.High - q.Low
}

func (q QuorumRound) String() string {
	return fmt.Sprintf("(%d,%d)", q.Low, q.High)
}

// Watermarks computes the watermark pair for a single target authority.
//
// reported[i] is the round that committee member i reports
// having received from the target.
// A member whose probe did not complete must be represented as zero,
// which deliberately drags the watermarks down:
// an unreachable peer is indistinguishable from one that received nothing.
//
// Watermarks panics if reported does not have one entry per committee member.
// Report rows are carved out of committee-sized matrices,
// so a mismatched row is a programming error,
// and walking a truncated row would silently understate the quorum.
func Watermarks(c *wconsensus.Committee, reported []wconsensus.Round) QuorumRound {
	if len(reported) != c.Size() {
		panic(fmt.Errorf(
			"reported rounds must have one entry per committee member: got %d, want %d",
			len(reported), c.Size(),
		))
	}

	type weighted struct {
		round wconsensus.Round
		stake wconsensus.Stake
	}

	pairs := make([]weighted, len(reported))
	for i, r := range reported {
		pairs[i] = weighted{
			round: r,
			stake: c.StakeOf(wconsensus.AuthorityIndex(i)),
		}
	}

	slices.SortFunc(pairs, func(a, b weighted) int {
		if a.round != b.round {
			if a.round < b.round {
				return -1
			}
			return 1
		}
		return 0
	})

	// Walk the sorted reports accumulating stake.
	// Each watermark is the round at the first position
	// where the cumulative stake, including that position's own stake,
	// reaches the respective threshold.
	var q QuorumRound
	var cumulative wconsensus.Stake
	lowSet := false
	for _, p := range pairs {
		cumulative += p.stake
		if !lowSet && cumulative >= c.ValidityThreshold() {
			q.Low = p.round
			lowSet = true
		}
		if cumulative >= c.QuorumThreshold() {
			q.High = p.round
			break
		}
	}

	return q
}

// ComputeQuorumRounds computes the watermark pair for every authority
// from a complete highest-received-rounds matrix,
// where matrix[i][j] is the round member i reports having received
// from member j.
// Rows for unresponsive members must be all zero.
func ComputeQuorumRounds(c *wconsensus.Committee, matrix [][]wconsensus.Round) []QuorumRound {
	out := make([]QuorumRound, c.Size())
	reported := make([]wconsensus.Round, c.Size())

	for target := range out {
		for i := range reported {
			reported[i] = matrix[i][target]
		}
		out[target] = Watermarks(c, reported)
	}

	return out
}
