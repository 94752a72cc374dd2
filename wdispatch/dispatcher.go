package wdispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/weft-engine/weft/wconsensus"
	"github.com/weft-engine/weft/wcore"
	"github.com/weft-engine/weft/wmetrics"
)

// DefaultQueueSize is the command queue capacity used
// when [Config.QueueSize] is zero.
//
// The queue is intentionally small:
// a caller hitting a full queue is experiencing backpressure
// from a core that cannot keep up,
// and buffering more commands would only hide that.
const DefaultQueueSize = 32

// Config holds the dependencies for a [Dispatcher].
type Config struct {
	Core wcore.Core

	// QueueSize bounds the command queue.
	// Zero means [DefaultQueueSize].
	QueueSize int

	// Metrics may be nil to disable instrumentation.
	Metrics *wmetrics.Metrics
}

// Dispatcher serializes all access to a [wcore.Core].
//
// A single kernel goroutine, started by [New],
// is the only owner of the core for the dispatcher's lifetime.
// The Dispatcher value is cheap to share:
// any number of goroutines may call its methods concurrently,
// and their commands are applied to the core strictly
// in queue-arrival order.
//
// Shutdown authority rests solely with the context passed to New.
// Once that context is canceled and the kernel exits,
// every method returns [wcore.ErrShutdown];
// no call ever blocks indefinitely against a stopped kernel.
type Dispatcher struct {
	log *slog.Logger

	core    wcore.Core
	metrics *wmetrics.Metrics

	cmds chan command
	done chan struct{}

	// onFatal handles a non-shutdown core error.
	// The default panics in the kernel goroutine,
	// taking down the process:
	// a core that failed mid-mutation holds a corrupted DAG,
	// and continuing to operate on it is worse than crashing.
	onFatal func(error)
}

// New returns a Dispatcher whose kernel goroutine runs
// until ctx is canceled or the core reports shutdown.
// Use [*Dispatcher.Wait] to block until the kernel has fully stopped.
func New(ctx context.Context, log *slog.Logger, cfg Config) (*Dispatcher, error) {
	if cfg.Core == nil {
		return nil, fmt.Errorf("dispatcher requires a core")
	}

	qs := cfg.QueueSize
	if qs == 0 {
		qs = DefaultQueueSize
	}

	d := &Dispatcher{
		log: log,

		core:    cfg.Core,
		metrics: cfg.Metrics,

		cmds: make(chan command, qs),
		done: make(chan struct{}),

		onFatal: func(err error) {
			panic(err)
		},
	}

	go d.kernel(ctx)

	return d, nil
}

// Wait blocks until the kernel goroutine has stopped.
// To begin shutdown, cancel the context passed to [New].
func (d *Dispatcher) Wait() {
	<-d.done
}

// kernel is the single consumer of the command queue,
// and the only goroutine that ever touches d.core.
func (d *Dispatcher) kernel(ctx context.Context) {
	defer close(d.done)

	for {
		select {
		case <-ctx.Done():
			d.log.Info(
				"Dispatch kernel stopping",
				"cause", context.Cause(ctx),
			)
			return

		case cmd := <-d.cmds:
			start := time.Now()
			err := cmd.execute(d.core)
			d.metrics.CommandExecuted(cmd.name(), time.Since(start))

			if err == nil {
				continue
			}

			if errors.Is(err, wcore.ErrShutdown) {
				d.log.Info("Core signaled shutdown; dispatch kernel stopping")
				return
			}

			// Any other core error means an invariant was violated
			// partway through a mutation.
			d.onFatal(fmt.Errorf(
				"fatal core error while executing %s command: %w",
				cmd.name(), err,
			))
			return
		}
	}
}

// enqueue attempts to place cmd on the command queue.
// It blocks while the queue is full (backpressure),
// unless the kernel stops or the caller's context is canceled first.
func (d *Dispatcher) enqueue(ctx context.Context, cmd command) error {
	select {
	case d.cmds <- cmd:
		d.metrics.CommandEnqueued()
		return nil
	case <-d.done:
		d.log.Warn(
			"Dropping command; dispatch kernel already stopped",
			"command", cmd.name(),
		)
		return wcore.ErrShutdown
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}

// awaitReply blocks until the kernel replies on resp,
// the kernel stops, or the caller's context is canceled.
func awaitReply[T any](ctx context.Context, d *Dispatcher, resp <-chan T) (T, error) {
	select {
	case v := <-resp:
		return v, nil

	case <-d.done:
		// The kernel may have replied and then stopped
		// before this select ran; prefer the reply if it is there.
		select {
		case v := <-resp:
			return v, nil
		default:
		}

		var zero T
		return zero, wcore.ErrShutdown

	case <-ctx.Done():
		// The caller is abandoning its interest in the result.
		// If the command was already enqueued it still runs to completion;
		// the kernel's reply lands in the buffered channel and is dropped.
		var zero T
		return zero, context.Cause(ctx)
	}
}

// AddBlocks hands verified blocks to the core for DAG inclusion,
// returning the ancestor references the core is still missing.
func (d *Dispatcher) AddBlocks(ctx context.Context, blocks []wconsensus.VerifiedBlock) (wconsensus.BlockRefSet, error) {
	resp := make(chan wconsensus.BlockRefSet, 1)

	if err := d.enqueue(ctx, addBlocksCommand{blocks: blocks, resp: resp}); err != nil {
		return nil, err
	}
	return awaitReply(ctx, d, resp)
}

// ForceNewBlock instructs the core to propose a block for round immediately.
func (d *Dispatcher) ForceNewBlock(ctx context.Context, round wconsensus.Round) error {
	resp := make(chan struct{}, 1)

	if err := d.enqueue(ctx, forceNewBlockCommand{round: round, resp: resp}); err != nil {
		return err
	}
	_, err := awaitReply(ctx, d, resp)
	return err
}

// GetMissingBlocks returns the references the core still needs from peers.
func (d *Dispatcher) GetMissingBlocks(ctx context.Context) (wconsensus.BlockRefSet, error) {
	resp := make(chan wconsensus.BlockRefSet, 1)

	if err := d.enqueue(ctx, getMissingBlocksCommand{resp: resp}); err != nil {
		return nil, err
	}
	return awaitReply(ctx, d, resp)
}

// HighestReceivedRounds returns the core's per-authority
// highest received rounds.
// Reads are dispatched exactly like mutations,
// preserving the single-owner property of the core.
func (d *Dispatcher) HighestReceivedRounds(ctx context.Context) ([]wconsensus.Round, error) {
	resp := make(chan []wconsensus.Round, 1)

	if err := d.enqueue(ctx, highestReceivedRoundsCommand{resp: resp}); err != nil {
		return nil, err
	}
	return awaitReply(ctx, d, resp)
}

// SetPropagationDelay feeds a propagation delay measurement into the core.
func (d *Dispatcher) SetPropagationDelay(ctx context.Context, delay wconsensus.Round) error {
	resp := make(chan struct{}, 1)

	if err := d.enqueue(ctx, setPropagationDelayCommand{delay: delay, resp: resp}); err != nil {
		return err
	}
	_, err := awaitReply(ctx, d, resp)
	return err
}
