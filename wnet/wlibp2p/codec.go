package wlibp2p

import (
	"encoding/binary"
	"fmt"

	"github.com/weft-engine/weft/wconsensus"
)

const (
	int16Size = 2
	int32Size = 4

	versionSize = int16Size
	countSize   = int32Size
	roundSize   = int32Size

	headerSize = versionSize + countSize

	wireVersion = 1

	// maxRowLen bounds the committee size a peer may claim,
	// so a malicious frame cannot make us allocate unbounded memory.
	maxRowLen = 1 << 14

	// maxFrameSize is the largest well-formed frame.
	// Readers must stop buffering at this bound;
	// checking maxRowLen after reading an entire hostile stream
	// would defeat the point.
	maxFrameSize = headerSize + maxRowLen*roundSize
)

// encodeRounds frames one highest-received-rounds row for the wire.
// The frame is self-delimiting: version, row length, then the rounds.
func encodeRounds(rounds []wconsensus.Round) []byte {
	out := make([]byte, headerSize+len(rounds)*roundSize)

	binary.LittleEndian.PutUint16(out[:2], wireVersion)
	binary.LittleEndian.PutUint32(out[2:6], uint32(len(rounds)))

	for i, r := range rounds {
		off := headerSize + i*roundSize
		binary.LittleEndian.PutUint32(out[off:off+roundSize], uint32(r))
	}

	return out
}

// decodeRounds parses a frame produced by encodeRounds.
func decodeRounds(b []byte) ([]wconsensus.Round, error) {
	if len(b) < headerSize {
		return nil, fmt.Errorf("rounds frame too short: %d bytes", len(b))
	}

	if v := binary.LittleEndian.Uint16(b[:2]); v != wireVersion {
		return nil, fmt.Errorf("unsupported rounds frame version %d", v)
	}

	n := binary.LittleEndian.Uint32(b[2:6])
	if n > maxRowLen {
		return nil, fmt.Errorf("rounds frame claims %d entries, limit is %d", n, maxRowLen)
	}
	if want := headerSize + int(n)*roundSize; len(b) != want {
		return nil, fmt.Errorf("rounds frame length mismatch: got %d bytes, want %d", len(b), want)
	}

	rounds := make([]wconsensus.Round, n)
	for i := range rounds {
		off := headerSize + i*roundSize
		rounds[i] = wconsensus.Round(binary.LittleEndian.Uint32(b[off : off+roundSize]))
	}

	return rounds, nil
}
