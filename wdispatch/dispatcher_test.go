package wdispatch_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/weft-engine/weft/internal/wtest"
	"github.com/weft-engine/weft/wconsensus"
	"github.com/weft-engine/weft/wconsensus/wconsensustest"
	"github.com/weft-engine/weft/wcore"
	"github.com/weft-engine/weft/wcore/wcoretest"
	"github.com/weft-engine/weft/wdispatch"
	"github.com/weft-engine/weft/wmetrics"
)

func newFixture(t *testing.T) (*wcoretest.FakeCore, *wdispatch.Dispatcher, context.CancelFunc) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	core := wcoretest.NewFakeCore()
	d, err := wdispatch.New(ctx, wtest.NewLogger(t), wdispatch.Config{
		Core: core,
	})
	require.NoError(t, err)
	t.Cleanup(d.Wait)
	t.Cleanup(cancel)

	return core, d, cancel
}

func TestDispatcher_commandsAppliedInOrder(t *testing.T) {
	t.Parallel()

	core, d, _ := newFixture(t)
	ctx := context.Background()

	blocks := wconsensustest.BlocksForRound(wconsensustest.EqualStakeCommittee(4), 1)

	missing, err := d.AddBlocks(ctx, blocks)
	require.NoError(t, err)
	require.Empty(t, missing)

	require.NoError(t, d.ForceNewBlock(ctx, 2))

	_, err = d.GetMissingBlocks(ctx)
	require.NoError(t, err)

	_, err = d.HighestReceivedRounds(ctx)
	require.NoError(t, err)

	require.NoError(t, d.SetPropagationDelay(ctx, 3))

	require.Equal(t, []string{
		"AddBlocks(4)",
		"ForceNewBlock(2)",
		"GetMissingBlocks",
		"HighestReceivedRounds",
		"SetPropagationDelay(3)",
	}, core.Calls())
}

func TestDispatcher_returnsMissingAncestors(t *testing.T) {
	t.Parallel()

	core, d, _ := newFixture(t)

	want := wconsensus.NewBlockRefSet(
		wconsensus.BlockRef{Author: 1, Round: 3, Hash: "aa"},
		wconsensus.BlockRef{Author: 2, Round: 4, Hash: "bb"},
	)
	core.Missing = want

	missing, err := d.AddBlocks(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, want, missing)

	got, err := d.GetMissingBlocks(context.Background())
	require.NoError(t, err)
	require.Equal(t, want, got)
}

// The fake core panics if two commands ever execute concurrently,
// so this test passes only if the kernel maintains exclusivity
// under concurrent callers.
func TestDispatcher_exclusiveCoreAccess(t *testing.T) {
	t.Parallel()

	core, d, _ := newFixture(t)
	ctx := context.Background()

	const callers = 8
	const callsPerCaller = 25

	var wg sync.WaitGroup
	wg.Add(callers)
	for i := range callers {
		go func() {
			defer wg.Done()
			for j := range callsPerCaller {
				switch j % 3 {
				case 0:
					_, err := d.AddBlocks(ctx, nil)
					require.NoError(t, err)
				case 1:
					require.NoError(t, d.ForceNewBlock(ctx, wconsensus.Round(i*callsPerCaller+j)))
				case 2:
					_, err := d.GetMissingBlocks(ctx)
					require.NoError(t, err)
				}
			}
		}()
	}
	wg.Wait()

	require.Len(t, core.Calls(), callers*callsPerCaller)
}

func TestDispatcher_shutdownFailsAllOperations(t *testing.T) {
	t.Parallel()

	_, d, cancel := newFixture(t)

	// A couple of concurrent callers succeed while running.
	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := d.AddBlocks(context.Background(), nil)
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	cancel()
	d.Wait()

	// Every operation on the shared dispatcher now reports shutdown,
	// from any number of concurrent callers, without blocking.
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()

			ctx := context.Background()

			_, err := d.AddBlocks(ctx, nil)
			require.ErrorIs(t, err, wcore.ErrShutdown)

			require.ErrorIs(t, d.ForceNewBlock(ctx, 1), wcore.ErrShutdown)

			_, err = d.GetMissingBlocks(ctx)
			require.ErrorIs(t, err, wcore.ErrShutdown)

			_, err = d.HighestReceivedRounds(ctx)
			require.ErrorIs(t, err, wcore.ErrShutdown)

			require.ErrorIs(t, d.SetPropagationDelay(ctx, 0), wcore.ErrShutdown)
		}()
	}
	wg.Wait()
}

// gatedCore blocks inside AddBlocks until its gate is closed,
// so tests can hold the kernel busy at a known point.
type gatedCore struct {
	*wcoretest.FakeCore

	entered chan struct{}
	gate    chan struct{}
}

func (c *gatedCore) AddBlocks(blocks []wconsensus.VerifiedBlock) (wconsensus.BlockRefSet, error) {
	c.entered <- struct{}{}
	<-c.gate
	return c.FakeCore.AddBlocks(blocks)
}

func TestDispatcher_callerCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	core := &gatedCore{
		FakeCore: wcoretest.NewFakeCore(),

		entered: make(chan struct{}, 4),
		gate:    make(chan struct{}),
	}
	d, err := wdispatch.New(ctx, wtest.NewLogger(t), wdispatch.Config{
		Core: core,
	})
	require.NoError(t, err)
	t.Cleanup(d.Wait)
	t.Cleanup(cancel)

	// Occupy the kernel with a command that blocks inside the core.
	firstErr := make(chan error, 1)
	go func() {
		_, err := d.AddBlocks(context.Background(), nil)
		firstErr <- err
	}()
	<-core.entered

	// With the kernel busy, a second caller's command cannot complete;
	// canceling that caller's context must release it with the cause.
	wantCause := fmt.Errorf("caller gave up")
	callerCtx, callerCancel := context.WithCancelCause(context.Background())

	secondErr := make(chan error, 1)
	go func() {
		_, err := d.AddBlocks(callerCtx, nil)
		secondErr <- err
	}()
	callerCancel(wantCause)
	require.ErrorIs(t, <-secondErr, wantCause)

	// The kernel itself was unaffected.
	close(core.gate)
	require.NoError(t, <-firstErr)
}

func TestDispatcher_metricsCounters(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	reg := prometheus.NewRegistry()
	m := wmetrics.New(reg)

	d, err := wdispatch.New(ctx, wtest.NewLogger(t), wdispatch.Config{
		Core:    wcoretest.NewFakeCore(),
		Metrics: m,
	})
	require.NoError(t, err)
	t.Cleanup(d.Wait)
	t.Cleanup(cancel)

	_, err = d.AddBlocks(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, d.ForceNewBlock(ctx, 1))

	fams, err := reg.Gather()
	require.NoError(t, err)

	counts := map[string]float64{}
	for _, fam := range fams {
		if len(fam.GetMetric()) == 1 && fam.GetMetric()[0].GetCounter() != nil {
			counts[fam.GetName()] = fam.GetMetric()[0].GetCounter().GetValue()
		}
	}
	require.Equal(t, 2.0, counts["weft_core_commands_enqueued_total"])
	require.Equal(t, 2.0, counts["weft_core_commands_dequeued_total"])
}
