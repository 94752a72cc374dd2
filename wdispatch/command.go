package wdispatch

import (
	"github.com/weft-engine/weft/wconsensus"
	"github.com/weft-engine/weft/wcore"
)

// command is one queued unit of work for the dispatch kernel.
//
// Each command carries its own single-use reply channel.
// Reply channels are 1-buffered so that the kernel's reply send
// can never block: if the caller has stopped waiting,
// the buffered value is simply dropped.
// A command whose execute returns an error sends no reply at all;
// its caller observes [wcore.ErrShutdown] when the kernel exits.
type command interface {
	name() string
	execute(core wcore.Core) error
}

type addBlocksCommand struct {
	blocks []wconsensus.VerifiedBlock
	resp   chan<- wconsensus.BlockRefSet
}

func (c addBlocksCommand) name() string { return "add_blocks" }

func (c addBlocksCommand) execute(core wcore.Core) error {
	missing, err := core.AddBlocks(c.blocks)
	if err != nil {
		return err
	}

	c.resp <- missing
	return nil
}

type forceNewBlockCommand struct {
	round wconsensus.Round
	resp  chan<- struct{}
}

func (c forceNewBlockCommand) name() string { return "force_new_block" }

func (c forceNewBlockCommand) execute(core wcore.Core) error {
	if err := core.ForceNewBlock(c.round); err != nil {
		return err
	}

	c.resp <- struct{}{}
	return nil
}

type getMissingBlocksCommand struct {
	resp chan<- wconsensus.BlockRefSet
}

func (c getMissingBlocksCommand) name() string { return "get_missing_blocks" }

func (c getMissingBlocksCommand) execute(core wcore.Core) error {
	c.resp <- core.GetMissingBlocks()
	return nil
}

type highestReceivedRoundsCommand struct {
	resp chan<- []wconsensus.Round
}

func (c highestReceivedRoundsCommand) name() string { return "highest_received_rounds" }

func (c highestReceivedRoundsCommand) execute(core wcore.Core) error {
	c.resp <- core.HighestReceivedRounds()
	return nil
}

type setPropagationDelayCommand struct {
	delay wconsensus.Round
	resp  chan<- struct{}
}

func (c setPropagationDelayCommand) name() string { return "set_propagation_delay" }

func (c setPropagationDelayCommand) execute(core wcore.Core) error {
	if err := core.SetPropagationDelay(c.delay); err != nil {
		return err
	}

	c.resp <- struct{}{}
	return nil
}
