package wprober_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/weft-engine/weft/wconsensus"
	"github.com/weft-engine/weft/wconsensus/wconsensustest"
	"github.com/weft-engine/weft/wprober"
)

func TestWatermarks_fourEqualAuthorities(t *testing.T) {
	t.Parallel()

	c := wconsensustest.EqualStakeCommittee(4)

	// Cumulative stake crosses the validity threshold (2) at round 5
	// and the quorum threshold (3) at round 7.
	q := wprober.Watermarks(c, []wconsensus.Round{5, 5, 7, 9})
	require.Equal(t, wconsensus.Round(5), q.Low)
	require.Equal(t, wconsensus.Round(7), q.High)
	require.Equal(t, wconsensus.Round(2), q.Gap())
}

func TestWatermarks_degenerateCases(t *testing.T) {
	t.Parallel()

	c := wconsensustest.EqualStakeCommittee(4)

	// Unanimous reports collapse both watermarks to the reported round.
	q := wprober.Watermarks(c, []wconsensus.Round{12, 12, 12, 12})
	require.Equal(t, wconsensus.Round(12), q.Low)
	require.Equal(t, wconsensus.Round(12), q.High)

	// Genesis: nobody has received anything.
	q = wprober.Watermarks(c, []wconsensus.Round{0, 0, 0, 0})
	require.Zero(t, q.Low)
	require.Zero(t, q.High)
}

func TestWatermarks_rejectsMismatchedRow(t *testing.T) {
	t.Parallel()

	c := wconsensustest.EqualStakeCommittee(4)

	// A truncated row can never accumulate a quorum of stake;
	// walking it would quietly produce High < Low.
	require.Panics(t, func() {
		wprober.Watermarks(c, []wconsensus.Round{5, 5})
	})
	require.Panics(t, func() {
		wprober.Watermarks(c, []wconsensus.Round{5, 5, 5, 5, 5})
	})
}

func TestWatermarks_unevenStakes(t *testing.T) {
	t.Parallel()

	c, err := wconsensus.NewCommittee([]wconsensus.Authority{
		{Stake: 10}, {Stake: 20}, {Stake: 30}, {Stake: 40},
	})
	require.NoError(t, err)
	require.Equal(t, wconsensus.Stake(34), c.ValidityThreshold())
	require.Equal(t, wconsensus.Stake(67), c.QuorumThreshold())

	// Sorted reports: (1,10) (2,20) (3,30) (4,40);
	// cumulative 10, 30, 60, 100.
	q := wprober.Watermarks(c, []wconsensus.Round{1, 2, 3, 4})
	require.Equal(t, wconsensus.Round(3), q.Low)
	require.Equal(t, wconsensus.Round(4), q.High)
}

func TestWatermarks_lowNeverExceedsHigh(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(0x77e0))

	for range 500 {
		n := 1 + rng.Intn(12)

		auths := make([]wconsensus.Authority, n)
		for i := range auths {
			auths[i] = wconsensus.Authority{Stake: wconsensus.Stake(1 + rng.Intn(50))}
		}
		c, err := wconsensus.NewCommittee(auths)
		require.NoError(t, err)

		reported := make([]wconsensus.Round, n)
		for i := range reported {
			reported[i] = wconsensus.Round(rng.Intn(100))
		}

		q := wprober.Watermarks(c, reported)
		require.LessOrEqual(t, q.Low, q.High, "stakes=%v reported=%v", auths, reported)
	}
}

func TestComputeQuorumRounds(t *testing.T) {
	t.Parallel()

	c := wconsensustest.EqualStakeCommittee(3)

	// matrix[i][j]: what member i has received from member j.
	matrix := [][]wconsensus.Round{
		{4, 1, 0},
		{3, 2, 0},
		{4, 2, 1},
	}

	got := wprober.ComputeQuorumRounds(c, matrix)
	require.Equal(t, []wprober.QuorumRound{
		// Target 0: sorted 3,4,4.
		{Low: 4, High: 4},
		// Target 1: sorted 1,2,2.
		{Low: 2, High: 2},
		// Target 2: sorted 0,0,1.
		{Low: 0, High: 1},
	}, got)
}
