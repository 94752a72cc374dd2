// Package wlog contains small helpers for formatting values in slog records.
package wlog

import "fmt"

type hexFormatter struct {
	b []byte
}

func (f hexFormatter) String() string {
	return fmt.Sprintf("%x", f.b)
}

// Hex wraps b in a [fmt.Stringer] that formats as lowercase hex.
// Formatting is deferred until the log line is actually written,
// so Hex is cheap to use on verbose log paths.
func Hex(b []byte) fmt.Stringer {
	return hexFormatter{b: b}
}
