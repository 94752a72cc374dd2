package wconsensus

// Round identifies one layer of the block DAG.
// Under normal operation every authority proposes at most one block per round.
type Round uint32

// SaturatingSub returns r - o, clamped at zero.
// Round arithmetic around propagation measurements must never underflow,
// because a freshly started or lagging authority may observe
// a watermark ahead of its own proposals.
func (r Round) SaturatingSub(o Round) Round {
	if o >= r {
		return 0
	}
	return r - o
}

// AuthorityIndex is the stable position of an authority within its committee.
// It is used to index rows and columns of round matrices,
// so it must remain fixed for the lifetime of the committee.
type AuthorityIndex uint32

// Stake is the voting weight assigned to an authority.
type Stake uint64
