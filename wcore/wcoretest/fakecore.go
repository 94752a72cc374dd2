package wcoretest

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/weft-engine/weft/wconsensus"
	"github.com/weft-engine/weft/wcore"
)

// FakeCore is an instrumented [wcore.Core] implementation for tests.
//
// Every entry point asserts the core's single-owner contract:
// if two calls ever overlap, the violating call panics.
// All calls are additionally recorded in order,
// so tests can assert FIFO delivery through the dispatch layer.
type FakeCore struct {
	// AddBlocksErr, ForceNewBlockErr, and SetPropagationDelayErr,
	// when non-nil, are returned by the corresponding method.
	AddBlocksErr           error
	ForceNewBlockErr       error
	SetPropagationDelayErr error

	// Missing is returned from GetMissingBlocks
	// and from successful AddBlocks calls.
	Missing wconsensus.BlockRefSet

	// Rounds is returned from HighestReceivedRounds.
	Rounds []wconsensus.Round

	// inCall guards the single-owner assertion.
	inCall atomic.Bool

	mu       sync.Mutex
	calls    []string
	delay    wconsensus.Round
	hasDelay bool
}

var _ wcore.Core = (*FakeCore)(nil)

// NewFakeCore returns a FakeCore with empty defaults.
func NewFakeCore() *FakeCore {
	return &FakeCore{
		Missing: wconsensus.NewBlockRefSet(),
	}
}

// enter asserts that no other call is currently inside the core.
// The returned func must be deferred to mark the call finished.
func (c *FakeCore) enter(call string) func() {
	if !c.inCall.CompareAndSwap(false, true) {
		panic(fmt.Errorf("concurrent core access detected during %s", call))
	}

	c.mu.Lock()
	c.calls = append(c.calls, call)
	c.mu.Unlock()

	return func() {
		c.inCall.Store(false)
	}
}

func (c *FakeCore) AddBlocks(blocks []wconsensus.VerifiedBlock) (wconsensus.BlockRefSet, error) {
	defer c.enter(fmt.Sprintf("AddBlocks(%d)", len(blocks)))()

	if c.AddBlocksErr != nil {
		return nil, c.AddBlocksErr
	}
	return c.Missing.Clone(), nil
}

func (c *FakeCore) ForceNewBlock(round wconsensus.Round) error {
	defer c.enter(fmt.Sprintf("ForceNewBlock(%d)", round))()

	return c.ForceNewBlockErr
}

func (c *FakeCore) GetMissingBlocks() wconsensus.BlockRefSet {
	defer c.enter("GetMissingBlocks")()

	return c.Missing.Clone()
}

func (c *FakeCore) HighestReceivedRounds() []wconsensus.Round {
	defer c.enter("HighestReceivedRounds")()

	out := make([]wconsensus.Round, len(c.Rounds))
	copy(out, c.Rounds)
	return out
}

func (c *FakeCore) SetPropagationDelay(delay wconsensus.Round) error {
	defer c.enter(fmt.Sprintf("SetPropagationDelay(%d)", delay))()

	if c.SetPropagationDelayErr != nil {
		return c.SetPropagationDelayErr
	}

	c.mu.Lock()
	c.delay = delay
	c.hasDelay = true
	c.mu.Unlock()
	return nil
}

// Calls returns the calls observed so far, in execution order.
func (c *FakeCore) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, len(c.calls))
	copy(out, c.calls)
	return out
}

// PropagationDelay returns the most recently set delay,
// and whether any delay has been set at all.
func (c *FakeCore) PropagationDelay() (wconsensus.Round, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.delay, c.hasDelay
}
