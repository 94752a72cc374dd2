// Package wcore defines the contract between the consensus core state machine
// and the rest of the system.
//
// The state machine owns the block DAG and all round bookkeeping.
// It is explicitly not safe for concurrent use:
// exactly one goroutine may call into it at any time.
// The [github.com/weft-engine/weft/wdispatch] package provides
// that single-owner access.
package wcore

import (
	"errors"

	"github.com/weft-engine/weft/wconsensus"
)

// ErrShutdown is the only error the dispatch layer reports to its callers.
// It indicates the dispatch kernel terminated,
// intentionally or otherwise, before completing the command.
//
// Internal core error types may evolve freely;
// callers only ever match against this sentinel.
var ErrShutdown = errors.New("core dispatcher has shut down")

// Core is the consensus core state machine.
//
// None of the methods accept a context:
// every call is a synchronous in-memory state transition,
// and the single owner must never suspend mid-transition.
type Core interface {
	// AddBlocks accepts verified blocks received from peers into the DAG.
	// It returns the references of ancestors that are still missing
	// and must be fetched before the new blocks become usable.
	AddBlocks(blocks []wconsensus.VerifiedBlock) (wconsensus.BlockRefSet, error)

	// ForceNewBlock instructs the core to propose a block for the given round
	// immediately, bypassing any timer-driven proposal logic.
	ForceNewBlock(round wconsensus.Round) error

	// GetMissingBlocks returns the references the core still needs
	// from peers in order to make progress.
	GetMissingBlocks() wconsensus.BlockRefSet

	// HighestReceivedRounds returns, per authority,
	// the highest round of a block authored by that authority
	// that this node has received.
	HighestReceivedRounds() []wconsensus.Round

	// SetPropagationDelay feeds the measured propagation delay back
	// into the core, which uses it to gate latency-sensitive optimizations
	// that are only safe while the network keeps up.
	SetPropagationDelay(delay wconsensus.Round) error
}
