package wconsensustest

import (
	"fmt"

	"github.com/weft-engine/weft/wconsensus"
)

// EqualStakeCommittee returns a committee of n authorities
// that all hold exactly one unit of stake.
// With equal stakes the thresholds are pure head counts,
// which keeps quorum arithmetic in tests easy to verify by hand.
func EqualStakeCommittee(n int) *wconsensus.Committee {
	auths := make([]wconsensus.Authority, n)
	for i := range auths {
		auths[i] = wconsensus.Authority{Stake: 1}
	}

	c, err := wconsensus.NewCommittee(auths)
	if err != nil {
		panic(fmt.Errorf("equal-stake committee of %d must be valid: %w", n, err))
	}
	return c
}

// DescendingStakeCommittee returns a committee of n authorities
// with stake ordered descending by authority index.
//
// The stake differences are negligible relative to the total,
// so tests that only care about index ordering can use this fixture
// without perturbing quorum outcomes.
func DescendingStakeCommittee(n int) *wconsensus.Committee {
	auths := make([]wconsensus.Authority, n)
	for i := range auths {
		auths[i] = wconsensus.Authority{Stake: wconsensus.Stake(100_000 - i)}
	}

	c, err := wconsensus.NewCommittee(auths)
	if err != nil {
		panic(fmt.Errorf("descending-stake committee of %d must be valid: %w", n, err))
	}
	return c
}
