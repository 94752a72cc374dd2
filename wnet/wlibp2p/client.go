package wlibp2p

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/weft-engine/weft/wconsensus"
	"github.com/weft-engine/weft/wprober"
)

// Client implements [wprober.NetworkClient] over libp2p streams.
//
// The committee's authority-to-peer mapping is fixed at construction;
// the host's peerstore must already know addresses for every peer
// (committee membership and addressing come from static configuration,
// not from discovery).
type Client struct {
	log *slog.Logger

	host  host.Host
	peers map[wconsensus.AuthorityIndex]peer.ID
}

var _ wprober.NetworkClient = (*Client)(nil)

// NewClient returns a Client that dials the given peers.
func NewClient(log *slog.Logger, h host.Host, peers map[wconsensus.AuthorityIndex]peer.ID) *Client {
	return &Client{
		log: log,

		host:  h,
		peers: peers,
	}
}

// GetLatestRounds fetches one peer's highest-received-rounds row.
// The dial, the exchange, and the read all respect ctx's deadline.
func (c *Client) GetLatestRounds(ctx context.Context, authority wconsensus.AuthorityIndex) ([]wconsensus.Round, error) {
	pid, ok := c.peers[authority]
	if !ok {
		return nil, fmt.Errorf("no peer known for authority %d", authority)
	}

	stream, err := c.host.NewStream(ctx, pid, ProtocolID)
	if err != nil {
		return nil, fmt.Errorf("failed to open rounds stream to authority %d: %w", authority, err)
	}
	defer stream.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = stream.SetDeadline(deadline)
	}

	// The request is the stream itself; just read the response frame.
	// The server half-closes after writing, so read to EOF,
	// but never buffer more than the largest well-formed frame:
	// the peer on the other end may be Byzantine.
	b, err := io.ReadAll(io.LimitReader(stream, maxFrameSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read rounds frame from authority %d: %w", authority, err)
	}
	if len(b) > maxFrameSize {
		return nil, fmt.Errorf(
			"rounds frame from authority %d exceeds %d bytes", authority, maxFrameSize,
		)
	}

	rounds, err := decodeRounds(b)
	if err != nil {
		return nil, fmt.Errorf("bad rounds frame from authority %d: %w", authority, err)
	}

	return rounds, nil
}
