package wconsensus

// VerifiedBlock is a block that has already passed
// structural and signature verification.
//
// The consensus core only inspects the reference;
// the payload is carried opaquely for the DAG owner.
type VerifiedBlock struct {
	Ref BlockRef

	Payload []byte
}

// Round returns the round the block was proposed in.
func (b VerifiedBlock) Round() Round {
	return b.Ref.Round
}
