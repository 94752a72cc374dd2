package wconsensus_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/weft-engine/weft/wconsensus"
)

func TestCommittee_thresholds(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name     string
		stakes   []wconsensus.Stake
		total    wconsensus.Stake
		validity wconsensus.Stake
		quorum   wconsensus.Stake
	}{
		{
			name:     "four equal authorities",
			stakes:   []wconsensus.Stake{1, 1, 1, 1},
			total:    4,
			validity: 2,
			quorum:   3,
		},
		{
			name:     "single authority",
			stakes:   []wconsensus.Stake{5},
			total:    5,
			validity: 2,
			quorum:   4,
		},
		{
			name:     "three equal authorities",
			stakes:   []wconsensus.Stake{1, 1, 1},
			total:    3,
			validity: 2,
			quorum:   3,
		},
		{
			name:     "uneven stakes",
			stakes:   []wconsensus.Stake{10, 20, 30, 40},
			total:    100,
			validity: 34,
			quorum:   67,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			auths := make([]wconsensus.Authority, len(tc.stakes))
			for i, s := range tc.stakes {
				auths[i] = wconsensus.Authority{Stake: s}
			}

			c, err := wconsensus.NewCommittee(auths)
			require.NoError(t, err)

			require.Equal(t, len(tc.stakes), c.Size())
			require.Equal(t, tc.total, c.TotalStake())
			require.Equal(t, tc.validity, c.ValidityThreshold())
			require.Equal(t, tc.quorum, c.QuorumThreshold())

			// Invariant from the committee contract.
			require.LessOrEqual(t, c.ValidityThreshold(), c.QuorumThreshold())
			require.LessOrEqual(t, c.QuorumThreshold(), c.TotalStake())
		})
	}
}

func TestCommittee_rejectsInvalidInput(t *testing.T) {
	t.Parallel()

	_, err := wconsensus.NewCommittee(nil)
	require.Error(t, err)

	_, err = wconsensus.NewCommittee([]wconsensus.Authority{
		{Stake: 1}, {Stake: 0},
	})
	require.Error(t, err)
}

func TestRound_SaturatingSub(t *testing.T) {
	t.Parallel()

	require.Equal(t, wconsensus.Round(3), wconsensus.Round(8).SaturatingSub(5))
	require.Equal(t, wconsensus.Round(0), wconsensus.Round(5).SaturatingSub(5))
	require.Equal(t, wconsensus.Round(0), wconsensus.Round(2).SaturatingSub(9))
	require.Equal(t, wconsensus.Round(0), wconsensus.Round(0).SaturatingSub(0))
}
