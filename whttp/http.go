// Package whttp serves the node's debug and metrics endpoints.
package whttp

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/weft-engine/weft/wconsensus"
	"github.com/weft-engine/weft/wdispatch"
	"github.com/weft-engine/weft/wprober"
)

// ProbeResultSource exposes the most recent probe outcome.
// It is satisfied by [wprober.RoundProber].
type ProbeResultSource interface {
	LatestResult() (wprober.ProbeResult, bool)
}

type HTTPServer struct {
	done chan struct{}
}

type HTTPServerConfig struct {
	Listener net.Listener

	Dispatcher *wdispatch.Dispatcher
	Prober     ProbeResultSource

	// Gatherer backs the /metrics endpoint.
	// May be nil, in which case the route is not registered.
	Gatherer prometheus.Gatherer
}

func NewHTTPServer(ctx context.Context, log *slog.Logger, cfg HTTPServerConfig) *HTTPServer {
	srv := &http.Server{
		Handler: newMux(log, cfg),

		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	h := &HTTPServer{
		done: make(chan struct{}),
	}
	go h.serve(log, cfg.Listener, srv)
	go h.waitForShutdown(ctx, srv)

	return h
}

func (h *HTTPServer) Wait() {
	<-h.done
}

func (h *HTTPServer) waitForShutdown(ctx context.Context, srv *http.Server) {
	select {
	case <-h.done:
		// h.serve returned on its own, nothing left to do here.
		return
	case <-ctx.Done():
		// Forceful shutdown. We could probably log any returned error on this.
		_ = srv.Close()
	}
}

func (h *HTTPServer) serve(log *slog.Logger, ln net.Listener, srv *http.Server) {
	defer close(h.done)

	if err := srv.Serve(ln); err != nil {
		if errors.Is(err, net.ErrClosed) || errors.Is(err, http.ErrServerClosed) {
			log.Info("HTTP server shutting down")
		} else {
			log.Info("HTTP server shutting down due to error", "err", err)
		}
	}
}

func newMux(log *slog.Logger, cfg HTTPServerConfig) http.Handler {
	r := mux.NewRouter()

	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})).Methods("GET")
	}

	r.HandleFunc("/debug/probe", handleProbe(log, cfg)).Methods("GET")
	r.HandleFunc("/debug/rounds", handleRounds(log, cfg)).Methods("GET")
	r.HandleFunc("/debug/missing", handleMissing(log, cfg)).Methods("GET")

	return r
}

func handleProbe(log *slog.Logger, cfg HTTPServerConfig) func(w http.ResponseWriter, req *http.Request) {
	type jsonQuorumRound struct {
		Low  wconsensus.Round `json:"low"`
		High wconsensus.Round `json:"high"`
	}

	return func(w http.ResponseWriter, req *http.Request) {
		res, ok := cfg.Prober.LatestResult()
		if !ok {
			http.Error(w, "no probe has completed yet", http.StatusServiceUnavailable)
			return
		}

		var resp struct {
			QuorumRounds     []jsonQuorumRound `json:"quorum_rounds"`
			PropagationDelay wconsensus.Round  `json:"propagation_delay"`
			Failures         int               `json:"failures"`
		}
		resp.QuorumRounds = make([]jsonQuorumRound, len(res.QuorumRounds))
		for i, qr := range res.QuorumRounds {
			resp.QuorumRounds[i] = jsonQuorumRound{Low: qr.Low, High: qr.High}
		}
		resp.PropagationDelay = res.PropagationDelay
		resp.Failures = res.Failures

		if err := json.NewEncoder(w).Encode(resp); err != nil {
			log.Warn("Failed to marshal probe result", "err", err)
			return
		}
	}
}

func handleRounds(log *slog.Logger, cfg HTTPServerConfig) func(w http.ResponseWriter, req *http.Request) {
	return func(w http.ResponseWriter, req *http.Request) {
		rounds, err := cfg.Dispatcher.HighestReceivedRounds(req.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		var resp struct {
			Rounds []wconsensus.Round `json:"rounds"`
		}
		resp.Rounds = rounds

		if err := json.NewEncoder(w).Encode(resp); err != nil {
			log.Warn("Failed to marshal rounds response", "err", err)
			return
		}
	}
}

func handleMissing(log *slog.Logger, cfg HTTPServerConfig) func(w http.ResponseWriter, req *http.Request) {
	// Block refs are map keys internally,
	// so the JSON form is a sorted slice instead.
	type jsonBlockRef struct {
		Author wconsensus.AuthorityIndex `json:"author"`
		Round  wconsensus.Round          `json:"round"`
		Hash   string                    `json:"hash"`
	}

	return func(w http.ResponseWriter, req *http.Request) {
		missing, err := cfg.Dispatcher.GetMissingBlocks(req.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		var resp struct {
			Missing []jsonBlockRef `json:"missing"`
		}
		resp.Missing = make([]jsonBlockRef, 0, len(missing))
		for _, ref := range missing.Sorted() {
			resp.Missing = append(resp.Missing, jsonBlockRef{
				Author: ref.Author,
				Round:  ref.Round,
				Hash:   hex.EncodeToString([]byte(ref.Hash)),
			})
		}

		if err := json.NewEncoder(w).Encode(resp); err != nil {
			log.Warn("Failed to marshal missing blocks response", "err", err)
			return
		}
	}
}
