// Package wdispatch provides exclusive, ordered access
// to a [github.com/weft-engine/weft/wcore.Core] state machine.
//
// The core is not safe for concurrent use,
// so the [Dispatcher] funnels every call through a bounded FIFO queue
// consumed by a single kernel goroutine that owns the core outright.
// Callers interact only with the Dispatcher,
// which is itself safe for arbitrary concurrent use.
package wdispatch
