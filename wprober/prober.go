package wprober

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bits-and-blooms/bitset"

	"github.com/weft-engine/weft/wconsensus"
	"github.com/weft-engine/weft/wmetrics"
)

// Default timing for the probe loop.
// The interval is long enough that a round trip to every peer,
// bounded by the request timeout, comfortably completes in between.
const (
	DefaultInterval       = 2 * time.Second
	DefaultRequestTimeout = 1 * time.Second
)

// NetworkClient is the single RPC the prober needs from the network layer:
// ask one peer for its highest-received-rounds row.
// The call must respect ctx's deadline;
// the prober imposes a fresh per-call timeout on every request.
type NetworkClient interface {
	GetLatestRounds(ctx context.Context, peer wconsensus.AuthorityIndex) ([]wconsensus.Round, error)
}

// CoreDispatcher is the subset of the dispatch layer the prober consumes:
// reading the local core's view and pushing the delay measurement back in.
// It is satisfied by [github.com/weft-engine/weft/wdispatch.Dispatcher].
type CoreDispatcher interface {
	HighestReceivedRounds(ctx context.Context) ([]wconsensus.Round, error)
	SetPropagationDelay(ctx context.Context, delay wconsensus.Round) error
}

// DAGView provides concurrent read access to the local authority's
// last proposed round.
// Implementations are read-many snapshots maintained by the core's owner;
// the prober never writes through this interface.
type DAGView interface {
	LastProposedRound() wconsensus.Round
}

// Config holds the dependencies for a [RoundProber].
type Config struct {
	Committee *wconsensus.Committee
	OwnIndex  wconsensus.AuthorityIndex

	Dispatcher CoreDispatcher
	Client     NetworkClient
	View       DAGView

	// Interval between probe rounds; zero means [DefaultInterval].
	// A probe round that overruns the interval delays the next tick
	// rather than triggering catch-up ticks.
	Interval time.Duration

	// RequestTimeout bounds each individual peer request;
	// zero means [DefaultRequestTimeout].
	RequestTimeout time.Duration

	// Metrics may be nil to disable instrumentation.
	Metrics *wmetrics.Metrics
}

// ProbeResult is the outcome of one completed probe round.
type ProbeResult struct {
	// QuorumRounds holds the watermark pair per authority,
	// indexed by authority.
	QuorumRounds []QuorumRound

	// PropagationDelay is the number of rounds by which
	// the committee's blocking-minority view of our blocks
	// lags our own last proposal.
	PropagationDelay wconsensus.Round

	// Failures is the number of peers whose probe request
	// failed or timed out this round.
	Failures int
}

// RoundProber runs the background propagation measurement loop.
// Create one with [New]; it starts probing immediately,
// and runs until [*RoundProber.Stop] is called
// or the context passed to New is canceled.
type RoundProber struct {
	log *slog.Logger

	committee *wconsensus.Committee
	ownIndex  wconsensus.AuthorityIndex

	dispatcher CoreDispatcher
	client     NetworkClient
	view       DAGView

	interval       time.Duration
	requestTimeout time.Duration

	metrics *wmetrics.Metrics

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}

	// panicked holds a panic value recovered from the loop goroutine;
	// Stop re-raises it so a broken prober cannot fail silently.
	// Written only before done is closed, read only after.
	panicked any

	mu   sync.Mutex
	last ProbeResult
	ok   bool
}

// New validates cfg and starts the probe loop.
func New(ctx context.Context, log *slog.Logger, cfg Config) (*RoundProber, error) {
	if cfg.Committee == nil {
		return nil, fmt.Errorf("round prober requires a committee")
	}
	if int(cfg.OwnIndex) >= cfg.Committee.Size() {
		return nil, fmt.Errorf(
			"own index %d out of range for committee of %d",
			cfg.OwnIndex, cfg.Committee.Size(),
		)
	}
	if cfg.Dispatcher == nil || cfg.Client == nil || cfg.View == nil {
		return nil, fmt.Errorf("round prober requires a dispatcher, network client, and DAG view")
	}

	p := &RoundProber{
		log: log,

		committee: cfg.Committee,
		ownIndex:  cfg.OwnIndex,

		dispatcher: cfg.Dispatcher,
		client:     cfg.Client,
		view:       cfg.View,

		interval:       cfg.Interval,
		requestTimeout: cfg.RequestTimeout,

		metrics: cfg.Metrics,

		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
	if p.interval == 0 {
		p.interval = DefaultInterval
	}
	if p.requestTimeout == 0 {
		p.requestTimeout = DefaultRequestTimeout
	}

	go p.run(ctx)

	return p, nil
}

// Stop requests the loop to exit at its next cooperative check point
// and blocks until it has fully finished.
// In-flight peer requests are never forcibly canceled;
// a probe round in progress drains its outstanding requests
// (bounded by the per-request timeout) before the loop exits.
//
// Stop is idempotent.
// If the loop goroutine panicked, Stop re-raises that panic.
func (p *RoundProber) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
	})
	<-p.done

	if p.panicked != nil {
		panic(p.panicked)
	}
}

// LatestResult returns the most recent completed probe result, if any.
func (p *RoundProber) LatestResult() (ProbeResult, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.last, p.ok
}

func (p *RoundProber) run(ctx context.Context) {
	defer close(p.done)
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("Round prober loop panicked", "recovered", r)
			p.panicked = r
		}
	}()

	// A ticker drops ticks that fire while the loop is busy,
	// giving the required no-burst-catch-up behavior on late ticks.
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			p.log.Info("Round prober stopping")
			return
		case <-ctx.Done():
			p.log.Info(
				"Round prober stopping due to context cancellation",
				"cause", context.Cause(ctx),
			)
			return
		case <-ticker.C:
			p.probe(ctx)
		}
	}
}

type peerReply struct {
	peer   wconsensus.AuthorityIndex
	rounds []wconsensus.Round
	err    error
}

// probe performs one full measurement round:
// fan out to every peer, assemble the round matrix,
// compute the watermarks, and push the delay into the core.
func (p *RoundProber) probe(ctx context.Context) {
	n := p.committee.Size()
	own := p.ownIndex

	lastProposed := p.view.LastProposedRound()

	matrix := make([][]wconsensus.Round, n)
	for i := range matrix {
		matrix[i] = make([]wconsensus.Round, n)
	}

	// Launch all peer requests up front, each under its own timeout.
	// The replies channel is sized so every launched goroutine
	// can deliver its reply and exit even if nobody is reading anymore.
	replies := make(chan peerReply, n)
	launched := 0
	for i := range n {
		if wconsensus.AuthorityIndex(i) == own {
			continue
		}
		launched++
		go func(peer wconsensus.AuthorityIndex) {
			rctx, cancel := context.WithTimeout(ctx, p.requestTimeout)
			defer cancel()

			rounds, err := p.client.GetLatestRounds(rctx, peer)
			replies <- peerReply{peer: peer, rounds: rounds, err: err}
		}(wconsensus.AuthorityIndex(i))
	}

	// Seed our own row from the local core while the requests run.
	// The self/self cell is forced to the last proposed round,
	// so the local authority always has an opinion about its own output.
	probed := bitset.New(uint(n))
	if ownRow, err := p.dispatcher.HighestReceivedRounds(ctx); err != nil {
		p.log.Warn("Failed to read local highest received rounds", "err", err)
	} else if len(ownRow) != n {
		p.log.Warn(
			"Local highest received rounds has wrong length",
			"got", len(ownRow), "want", n,
		)
	} else {
		copy(matrix[own], ownRow)
	}
	matrix[own][own] = lastProposed
	probed.Set(uint(own))

	// Collect replies until every launched request has resolved.
	// A shutdown request only stops us from watching for further shutdowns;
	// outstanding requests are drained, never abandoned,
	// and each is bounded by its own timeout.
	stopCh := p.stopCh
	for received := 0; received < launched; {
		select {
		case reply := <-replies:
			received++

			if reply.err != nil {
				p.metrics.ProbeFailure()
				p.log.Warn(
					"Probe request failed; leaving peer row empty this round",
					"peer", reply.peer,
					"err", reply.err,
				)
				continue
			}
			if len(reply.rounds) != n {
				p.metrics.ProbeFailure()
				p.log.Warn(
					"Probe reply has wrong row length; discarding",
					"peer", reply.peer,
					"got", len(reply.rounds), "want", n,
				)
				continue
			}

			copy(matrix[reply.peer], reply.rounds)
			probed.Set(uint(reply.peer))

		case <-stopCh:
			p.log.Info("Shutdown requested mid-probe; draining outstanding requests")
			stopCh = nil
		}
	}

	failures := launched - int(probed.Count()) + 1

	quorumRounds := ComputeQuorumRounds(p.committee, matrix)
	for i, q := range quorumRounds {
		p.metrics.SetQuorumRoundGap(wconsensus.AuthorityIndex(i), q.Gap())
	}

	delay := lastProposed.SaturatingSub(quorumRounds[own].Low)
	p.metrics.SetPropagationDelay(delay)

	if err := p.dispatcher.SetPropagationDelay(ctx, delay); err != nil {
		p.log.Warn("Failed to push propagation delay into core", "err", err)
	}

	p.mu.Lock()
	p.last = ProbeResult{
		QuorumRounds:     quorumRounds,
		PropagationDelay: delay,
		Failures:         failures,
	}
	p.ok = true
	p.mu.Unlock()

	p.log.Debug(
		"Probe round complete",
		"last_proposed", lastProposed,
		"propagation_delay", delay,
		"failures", failures,
	)
}
