package main

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/weft-engine/weft/wconsensus"
	"github.com/weft-engine/weft/wcore"
	"github.com/weft-engine/weft/wdispatch"
)

// demoCore is a minimal in-memory [wcore.Core]:
// it tracks the highest round received per authority
// and a set of missing ancestors, nothing more.
//
// It relies entirely on the dispatch layer for synchronization;
// none of its state is locked.
type demoCore struct {
	log *slog.Logger

	idx wconsensus.AuthorityIndex

	rounds  []wconsensus.Round
	missing wconsensus.BlockRefSet

	delay wconsensus.Round

	// lastProposed is read concurrently through demoView,
	// so it lives outside the dispatch-guarded state.
	lastProposed atomic.Uint32
}

var _ wcore.Core = (*demoCore)(nil)

func newDemoCore(log *slog.Logger, idx wconsensus.AuthorityIndex, committeeSize int) *demoCore {
	return &demoCore{
		log: log,

		idx: idx,

		rounds:  make([]wconsensus.Round, committeeSize),
		missing: wconsensus.NewBlockRefSet(),
	}
}

func (c *demoCore) AddBlocks(blocks []wconsensus.VerifiedBlock) (wconsensus.BlockRefSet, error) {
	for _, b := range blocks {
		if int(b.Ref.Author) >= len(c.rounds) {
			c.log.Warn("Dropping block from unknown authority", "author", b.Ref.Author)
			continue
		}

		if b.Ref.Round > c.rounds[b.Ref.Author] {
			c.rounds[b.Ref.Author] = b.Ref.Round
		}
		delete(c.missing, b.Ref)
	}

	return c.missing.Clone(), nil
}

func (c *demoCore) ForceNewBlock(round wconsensus.Round) error {
	if uint32(round) <= c.lastProposed.Load() {
		return nil
	}

	c.lastProposed.Store(uint32(round))
	c.rounds[c.idx] = round
	c.log.Info("Proposed block", "round", round)
	return nil
}

func (c *demoCore) GetMissingBlocks() wconsensus.BlockRefSet {
	return c.missing.Clone()
}

func (c *demoCore) HighestReceivedRounds() []wconsensus.Round {
	out := make([]wconsensus.Round, len(c.rounds))
	copy(out, c.rounds)
	return out
}

func (c *demoCore) SetPropagationDelay(delay wconsensus.Round) error {
	if delay != c.delay {
		c.log.Info("Propagation delay changed", "old", c.delay, "new", delay)
	}
	c.delay = delay
	return nil
}

// demoView exposes the demo core's last proposed round
// for concurrent reads by the prober.
type demoView struct {
	core *demoCore
}

func (v demoView) LastProposedRound() wconsensus.Round {
	return wconsensus.Round(v.core.lastProposed.Load())
}

// propose advances the demo core by one round per tick
// until ctx is canceled or the dispatcher shuts down.
func propose(ctx context.Context, log *slog.Logger, d *wdispatch.Dispatcher, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()

	var round wconsensus.Round
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			round++
			if err := d.ForceNewBlock(ctx, round); err != nil {
				if !errors.Is(err, wcore.ErrShutdown) && !errors.Is(err, context.Canceled) {
					log.Warn("Failed to force new block", "round", round, "err", err)
				}
				return
			}
		}
	}
}
