package wconsensus

import "fmt"

// Authority is a single committee member.
// Its index within the committee is implied by its position
// in the slice passed to [NewCommittee].
type Authority struct {
	Stake Stake
}

// Committee is the stake-weighted membership table for one epoch.
// A Committee is immutable once constructed;
// the derived stake totals and thresholds are computed at construction time.
type Committee struct {
	authorities []Authority

	totalStake        Stake
	validityThreshold Stake
	quorumThreshold   Stake
}

// NewCommittee returns a Committee over the given authorities.
// It returns an error if the committee is empty
// or if any authority has zero stake,
// since a zero-stake member can never contribute to a threshold
// and would silently skew the quorum arithmetic.
func NewCommittee(authorities []Authority) (*Committee, error) {
	if len(authorities) == 0 {
		return nil, fmt.Errorf("cannot build committee with no authorities")
	}

	var total Stake
	for i, a := range authorities {
		if a.Stake == 0 {
			return nil, fmt.Errorf("authority %d has zero stake", i)
		}
		total += a.Stake
	}

	c := &Committee{
		authorities: authorities,

		totalStake: total,

		// Smallest v satisfying 3v > total:
		// the minimum stake held by more than one third of the committee.
		validityThreshold: total/3 + 1,

		// Smallest q satisfying 3q > 2*total:
		// the minimum stake held by more than two thirds of the committee.
		quorumThreshold: 2*total/3 + 1,
	}

	return c, nil
}

// Size returns the number of authorities in the committee.
func (c *Committee) Size() int {
	return len(c.authorities)
}

// StakeOf returns the stake of the authority at idx.
// It panics if idx is out of range, matching slice semantics;
// authority indices originate from the committee itself,
// so an out-of-range index is a programming error.
func (c *Committee) StakeOf(idx AuthorityIndex) Stake {
	return c.authorities[idx].Stake
}

// TotalStake returns the sum of all authorities' stake.
func (c *Committee) TotalStake() Stake {
	return c.totalStake
}

// ValidityThreshold returns the minimum cumulative stake
// representing more than one third of the committee.
// A set of authorities holding at least this much stake
// is guaranteed to contain at least one honest member
// under the usual f < n/3 fault assumption.
func (c *Committee) ValidityThreshold() Stake {
	return c.validityThreshold
}

// QuorumThreshold returns the minimum cumulative stake
// representing more than two thirds of the committee.
func (c *Committee) QuorumThreshold() Stake {
	return c.quorumThreshold
}
