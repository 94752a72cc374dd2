package wconsensus_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/weft-engine/weft/wconsensus"
)

func TestBlockRef_Compare(t *testing.T) {
	t.Parallel()

	base := wconsensus.BlockRef{Author: 1, Round: 5, Hash: "bb"}

	require.Zero(t, base.Compare(base))

	// Round dominates.
	require.Negative(t, base.Compare(wconsensus.BlockRef{Author: 0, Round: 6, Hash: "aa"}))
	require.Positive(t, base.Compare(wconsensus.BlockRef{Author: 9, Round: 4, Hash: "zz"}))

	// Author breaks round ties.
	require.Negative(t, base.Compare(wconsensus.BlockRef{Author: 2, Round: 5, Hash: "aa"}))
	require.Positive(t, base.Compare(wconsensus.BlockRef{Author: 0, Round: 5, Hash: "zz"}))

	// Hash breaks the rest.
	require.Negative(t, base.Compare(wconsensus.BlockRef{Author: 1, Round: 5, Hash: "bc"}))
	require.Positive(t, base.Compare(wconsensus.BlockRef{Author: 1, Round: 5, Hash: "ba"}))
}

func TestBlockRefSet_Sorted(t *testing.T) {
	t.Parallel()

	r1 := wconsensus.BlockRef{Author: 2, Round: 1, Hash: "x"}
	r2 := wconsensus.BlockRef{Author: 0, Round: 2, Hash: "y"}
	r3 := wconsensus.BlockRef{Author: 1, Round: 2, Hash: "z"}

	s := wconsensus.NewBlockRefSet(r3, r1, r2)
	require.Len(t, s, 3)
	require.True(t, s.Has(r1))

	require.Equal(t, []wconsensus.BlockRef{r1, r2, r3}, s.Sorted())

	// Adding a duplicate does not grow the set.
	s.Add(r2)
	require.Len(t, s, 3)

	clone := s.Clone()
	clone.Add(wconsensus.BlockRef{Author: 3, Round: 3, Hash: "w"})
	require.Len(t, s, 3)
	require.Len(t, clone, 4)
}
