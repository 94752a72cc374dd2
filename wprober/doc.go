// Package wprober measures how well the local authority's blocks
// are propagating through the committee.
//
// On a fixed interval, the [RoundProber] asks every peer
// which rounds it has received from every authority,
// merges the answers with the local core's own view,
// and reduces the result to a single propagation-delay scalar
// that is fed back into the core.
// The core uses that scalar to disable latency optimizations
// that are only safe while the network keeps up.
// Measuring propagation directly keeps the signal alive
// even when peers are not currently proposing blocks of their own.
package wprober
