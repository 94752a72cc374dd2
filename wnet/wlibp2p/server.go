// Package wlibp2p carries the round-prober's rounds exchange
// over libp2p streams.
//
// The protocol is a single half-duplex exchange:
// opening a stream is the request,
// and the server answers with its highest-received-rounds row
// as one self-delimiting binary frame, then closes.
package wlibp2p

import (
	"context"
	"log/slog"
	"time"

	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/protocol"

	"github.com/weft-engine/weft/wconsensus"
)

// ProtocolID identifies the rounds exchange protocol.
const ProtocolID = protocol.ID("/weft/rounds/1")

// serveTimeout bounds the entire handling of one inbound stream.
// Loading the local row goes through the dispatch queue,
// so a wedged core must not pin stream handlers forever.
const serveTimeout = 5 * time.Second

// RoundsProvider supplies the local highest-received-rounds row.
// It is satisfied by [github.com/weft-engine/weft/wdispatch.Dispatcher].
type RoundsProvider interface {
	HighestReceivedRounds(ctx context.Context) ([]wconsensus.Round, error)
}

// Server answers rounds exchange requests on a libp2p host.
type Server struct {
	log *slog.Logger

	host     host.Host
	provider RoundsProvider

	ctx context.Context
}

// NewServer registers the rounds exchange handler on h.
// The handler stops serving when ctx is canceled,
// but the caller should still call [*Server.Close]
// to deregister the protocol from the host.
func NewServer(ctx context.Context, log *slog.Logger, h host.Host, provider RoundsProvider) *Server {
	s := &Server{
		log: log,

		host:     h,
		provider: provider,

		ctx: ctx,
	}

	h.SetStreamHandler(ProtocolID, s.handleStream)

	return s
}

// Close deregisters the protocol handler.
func (s *Server) Close() {
	s.host.RemoveStreamHandler(ProtocolID)
}

func (s *Server) handleStream(stream network.Stream) {
	defer stream.Close()

	ctx, cancel := context.WithTimeout(s.ctx, serveTimeout)
	defer cancel()

	rounds, err := s.provider.HighestReceivedRounds(ctx)
	if err != nil {
		s.log.Warn(
			"Failed to load local rounds for peer request",
			"peer", stream.Conn().RemotePeer(),
			"err", err,
		)
		_ = stream.Reset()
		return
	}

	_ = stream.SetWriteDeadline(time.Now().Add(serveTimeout))
	if _, err := stream.Write(encodeRounds(rounds)); err != nil {
		s.log.Warn(
			"Failed to write rounds frame",
			"peer", stream.Conn().RemotePeer(),
			"err", err,
		)
		_ = stream.Reset()
	}
}
