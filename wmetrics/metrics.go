// Package wmetrics holds the prometheus instrumentation
// for the dispatch and probing layers.
//
// All update methods are safe to call on a nil *Metrics,
// so components can treat instrumentation as optional
// without sprinkling nil checks at every call site.
package wmetrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/weft-engine/weft/wconsensus"
)

const namespace = "weft"

// Metrics is the set of collectors exported by the consensus core envelope.
type Metrics struct {
	commandsEnqueued prometheus.Counter
	commandsDequeued prometheus.Counter
	commandLatency   *prometheus.HistogramVec

	probeTimeouts    prometheus.Counter
	propagationDelay prometheus.Gauge
	quorumRoundGap   *prometheus.GaugeVec
}

// New registers the weft collectors with reg and returns the Metrics handle.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		commandsEnqueued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "core_commands_enqueued_total",
			Help:      "Number of commands accepted into the dispatch queue.",
		}),
		commandsDequeued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "core_commands_dequeued_total",
			Help:      "Number of commands executed by the dispatch kernel.",
		}),
		commandLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "core_command_latency_seconds",
			Help:      "Time spent executing a single command inside the core.",
			Buckets:   prometheus.ExponentialBuckets(100e-6, 4, 10),
		}, []string{"command"}),

		probeTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "round_prober_request_failures_total",
			Help:      "Number of per-peer probe requests that failed or timed out.",
		}),
		propagationDelay: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "round_propagation_delay",
			Help:      "Rounds by which the blocking-minority view of our blocks lags our own proposals.",
		}),
		quorumRoundGap: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "round_prober_quorum_round_gap",
			Help:      "Difference between the quorum and validity round watermarks, per authority.",
		}, []string{"authority"}),
	}
}

// CommandEnqueued records one command accepted into the dispatch queue.
func (m *Metrics) CommandEnqueued() {
	if m == nil {
		return
	}
	m.commandsEnqueued.Inc()
}

// CommandExecuted records one command leaving the queue,
// along with the time the kernel spent executing it.
func (m *Metrics) CommandExecuted(command string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.commandsDequeued.Inc()
	m.commandLatency.WithLabelValues(command).Observe(elapsed.Seconds())
}

// ProbeFailure records one peer probe that failed or timed out.
func (m *Metrics) ProbeFailure() {
	if m == nil {
		return
	}
	m.probeTimeouts.Inc()
}

// SetPropagationDelay records the most recent propagation delay measurement.
func (m *Metrics) SetPropagationDelay(delay wconsensus.Round) {
	if m == nil {
		return
	}
	m.propagationDelay.Set(float64(delay))
}

// SetQuorumRoundGap records the high-low watermark gap for one authority.
func (m *Metrics) SetQuorumRoundGap(authority wconsensus.AuthorityIndex, gap wconsensus.Round) {
	if m == nil {
		return
	}
	m.quorumRoundGap.WithLabelValues(strconv.FormatUint(uint64(authority), 10)).Set(float64(gap))
}
