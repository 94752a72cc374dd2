package wdispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/weft-engine/weft/internal/wtest"
	"github.com/weft-engine/weft/wcore"
	"github.com/weft-engine/weft/wcore/wcoretest"
)

// In production a fatal core error panics the kernel goroutine,
// which takes down the whole process.
// These tests replace the onFatal hook before issuing any command,
// so the escalation is observable without killing the test binary.

func TestKernel_fatalCoreErrorEscalates(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	core := wcoretest.NewFakeCore()
	core.AddBlocksErr = errors.New("dag invariant violated")

	d, err := New(ctx, wtest.NewLogger(t), Config{Core: core})
	require.NoError(t, err)

	fatalCh := make(chan error, 1)
	d.onFatal = func(err error) {
		fatalCh <- err
	}

	_, err = d.AddBlocks(ctx, nil)
	require.ErrorIs(t, err, wcore.ErrShutdown)

	fatalErr := <-fatalCh
	require.ErrorIs(t, fatalErr, core.AddBlocksErr)
	require.Contains(t, fatalErr.Error(), "add_blocks")

	// The kernel must have stopped, not merely reported.
	d.Wait()
}

func TestKernel_coreShutdownStopsCleanly(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	core := wcoretest.NewFakeCore()
	core.ForceNewBlockErr = wcore.ErrShutdown

	d, err := New(ctx, wtest.NewLogger(t), Config{Core: core})
	require.NoError(t, err)

	d.onFatal = func(err error) {
		t.Errorf("onFatal must not fire for a shutdown signal, got %v", err)
	}

	require.ErrorIs(t, d.ForceNewBlock(ctx, 1), wcore.ErrShutdown)
	d.Wait()
}
