// Command weft runs a single weft authority:
// the core dispatch layer, the round prober,
// the libp2p rounds exchange, and a debug HTTP server.
//
// The consensus core wired in here is an in-memory demonstration core;
// it tracks received rounds and missing ancestors
// but does not execute transactions.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	root := NewRootCommand(log)
	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
