package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	petname "github.com/dustinkirkland/golang-petname"
	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/peerstore"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/tv42/httpunix"

	"github.com/weft-engine/weft/wconsensus"
	"github.com/weft-engine/weft/wdispatch"
	"github.com/weft-engine/weft/whttp"
	"github.com/weft-engine/weft/wmetrics"
	"github.com/weft-engine/weft/wnet/wlibp2p"
	"github.com/weft-engine/weft/wprober"
)

func NewRootCommand(log *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "weft SUBCOMMAND",
		Short: "Weft DAG consensus node tooling",

		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	cmd.AddCommand(
		newRunCommand(log),
		newStatusCommand(log),
	)

	return cmd
}

func newRunCommand(log *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one authority's dispatch layer, round prober, and debug server",

		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			fs := cmd.Flags()

			moniker, _ := fs.GetString("moniker")
			log := log.With("moniker", moniker)

			ownIdx, _ := fs.GetUint32("index")
			peerSpecs, _ := fs.GetStringArray("peer")
			listenAddr, _ := fs.GetString("listen")
			debugSocket, _ := fs.GetString("debug-socket")
			debugListen, _ := fs.GetString("debug-listen")
			probeInterval, _ := fs.GetDuration("probe-interval")
			requestTimeout, _ := fs.GetDuration("request-timeout")
			proposeInterval, _ := fs.GetDuration("propose-interval")

			peers, err := parsePeerSpecs(peerSpecs)
			if err != nil {
				return err
			}

			own := wconsensus.AuthorityIndex(ownIdx)
			n, err := validatePeerIndices(peers, own)
			if err != nil {
				return err
			}
			committee, err := equalStakeCommittee(n)
			if err != nil {
				return err
			}

			reg := prometheus.NewRegistry()
			metrics := wmetrics.New(reg)

			core := newDemoCore(log.With("sys", "core"), own, n)

			d, err := wdispatch.New(ctx, log.With("sys", "dispatch"), wdispatch.Config{
				Core:    core,
				Metrics: metrics,
			})
			if err != nil {
				return fmt.Errorf("failed to start dispatcher: %w", err)
			}
			defer d.Wait()

			h, err := libp2p.New(
				libp2p.ListenAddrStrings(listenAddr),
			)
			if err != nil {
				return fmt.Errorf("failed to start libp2p host: %w", err)
			}
			defer h.Close()

			for idx, ai := range peers {
				h.Peerstore().AddAddrs(ai.ID, ai.Addrs, peerstore.PermanentAddrTTL)
				log.Info("Configured peer", "authority", idx, "peer_id", ai.ID)
			}

			for _, addr := range h.Addrs() {
				log.Info("Listening", "addr", fmt.Sprintf("%s/p2p/%s", addr, h.ID()))
			}

			srv := wlibp2p.NewServer(ctx, log.With("sys", "rounds_server"), h, d)
			defer srv.Close()

			peerIDs := make(map[wconsensus.AuthorityIndex]peer.ID, len(peers))
			for idx, ai := range peers {
				peerIDs[idx] = ai.ID
			}
			client := wlibp2p.NewClient(log.With("sys", "rounds_client"), h, peerIDs)

			prober, err := wprober.New(ctx, log.With("sys", "prober"), wprober.Config{
				Committee: committee,
				OwnIndex:  own,

				Dispatcher: d,
				Client:     client,
				View:       demoView{core: core},

				Interval:       probeInterval,
				RequestTimeout: requestTimeout,

				Metrics: metrics,
			})
			if err != nil {
				return fmt.Errorf("failed to start round prober: %w", err)
			}
			defer prober.Stop()

			ln, err := debugListener(debugSocket, debugListen)
			if err != nil {
				return err
			}
			httpSrv := whttp.NewHTTPServer(ctx, log.With("sys", "http"), whttp.HTTPServerConfig{
				Listener: ln,

				Dispatcher: d,
				Prober:     prober,

				Gatherer: reg,
			})
			defer httpSrv.Wait()
			log.Info("Debug server listening", "addr", ln.Addr())

			// Drive the demo core forward so the prober has
			// a moving last-proposed round to measure against.
			go propose(ctx, log, d, proposeInterval)

			<-ctx.Done()
			log.Info("Shutting down")
			return nil
		},
	}

	fs := cmd.Flags()
	fs.String("moniker", petname.Generate(2, "-"), "Operator-friendly name for this node, used in logs")
	fs.Uint32("index", 0, "This node's authority index within the committee")
	fs.StringArray("peer", nil, "Peer authority, as INDEX=MULTIADDR/p2p/PEER_ID; repeatable")
	fs.String("listen", "/ip4/127.0.0.1/tcp/0", "Multiaddr for the libp2p host to listen on")
	fs.String("debug-socket", "", "Unix socket path for the debug server; takes precedence over --debug-listen")
	fs.String("debug-listen", "127.0.0.1:26680", "TCP address for the debug server")
	fs.Duration("probe-interval", wprober.DefaultInterval, "Interval between propagation probes")
	fs.Duration("request-timeout", wprober.DefaultRequestTimeout, "Timeout for each per-peer probe request")
	fs.Duration("propose-interval", time.Second, "Interval between demo block proposals")

	return cmd
}

func newStatusCommand(log *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Query a running node's debug server over its unix socket",

		RunE: func(cmd *cobra.Command, args []string) error {
			fs := cmd.Flags()

			socket, _ := fs.GetString("debug-socket")
			if socket == "" {
				return fmt.Errorf("--debug-socket is required")
			}

			client := unixClient(socket)

			out := cmd.OutOrStdout()
			for _, path := range []string{"/debug/rounds", "/debug/probe"} {
				resp, err := client.Get("http+unix://weft" + path)
				if err != nil {
					return fmt.Errorf("failed to query %s: %w", path, err)
				}

				var body json.RawMessage
				err = json.NewDecoder(resp.Body).Decode(&body)
				resp.Body.Close()
				if err != nil {
					return fmt.Errorf("failed to decode %s response: %w", path, err)
				}

				fmt.Fprintf(out, "%s: %s\n", path, body)
			}

			return nil
		},
	}

	cmd.Flags().String("debug-socket", "", "Unix socket path the target node's debug server listens on")

	return cmd
}

// parsePeerSpecs parses repeated --peer flags of the form
// INDEX=MULTIADDR/p2p/PEER_ID.
func parsePeerSpecs(specs []string) (map[wconsensus.AuthorityIndex]peer.AddrInfo, error) {
	peers := make(map[wconsensus.AuthorityIndex]peer.AddrInfo, len(specs))

	for _, spec := range specs {
		idxStr, addrStr, ok := strings.Cut(spec, "=")
		if !ok {
			return nil, fmt.Errorf("malformed --peer %q: want INDEX=MULTIADDR", spec)
		}

		idx, err := strconv.ParseUint(idxStr, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("malformed --peer index %q: %w", idxStr, err)
		}

		addr, err := ma.NewMultiaddr(addrStr)
		if err != nil {
			return nil, fmt.Errorf("malformed --peer multiaddr %q: %w", addrStr, err)
		}

		ai, err := peer.AddrInfoFromP2pAddr(addr)
		if err != nil {
			return nil, fmt.Errorf("--peer multiaddr %q must end in /p2p/PEER_ID: %w", addrStr, err)
		}

		authority := wconsensus.AuthorityIndex(idx)
		if _, dup := peers[authority]; dup {
			return nil, fmt.Errorf("duplicate --peer index %d", idx)
		}
		peers[authority] = *ai
	}

	return peers, nil
}

// validatePeerIndices checks that the --peer indices plus the own index
// form a contiguous committee 0..n-1 and returns the committee size n.
// A gap would leave some authority with no reachable peer
// while an out-of-range entry could never be probed at all.
func validatePeerIndices(peers map[wconsensus.AuthorityIndex]peer.AddrInfo, own wconsensus.AuthorityIndex) (int, error) {
	n := len(peers) + 1
	if int(own) >= n {
		return 0, fmt.Errorf("own index %d out of range for committee of %d", own, n)
	}
	if _, taken := peers[own]; taken {
		return 0, fmt.Errorf("own index %d collides with a --peer entry", own)
	}

	for i := range n {
		idx := wconsensus.AuthorityIndex(i)
		if idx == own {
			continue
		}
		if _, ok := peers[idx]; !ok {
			return 0, fmt.Errorf(
				"--peer indices plus --index must cover 0..%d contiguously: no --peer for authority %d",
				n-1, i,
			)
		}
	}

	return n, nil
}

func equalStakeCommittee(n int) (*wconsensus.Committee, error) {
	authorities := make([]wconsensus.Authority, n)
	for i := range authorities {
		authorities[i] = wconsensus.Authority{Stake: 1}
	}
	return wconsensus.NewCommittee(authorities)
}

func debugListener(socket, tcpAddr string) (net.Listener, error) {
	if socket != "" {
		ln, err := net.Listen("unix", socket)
		if err != nil {
			return nil, fmt.Errorf("failed to listen on debug socket %s: %w", socket, err)
		}
		return ln, nil
	}

	ln, err := net.Listen("tcp", tcpAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on debug address %s: %w", tcpAddr, err)
	}
	return ln, nil
}

func unixClient(socket string) *http.Client {
	tr := &httpunix.Transport{
		DialTimeout:           100 * time.Millisecond,
		RequestTimeout:        time.Second,
		ResponseHeaderTimeout: time.Second,
	}
	tr.RegisterLocation("weft", socket)

	return &http.Client{
		Transport: tr,
		Timeout:   5 * time.Second,
	}
}
