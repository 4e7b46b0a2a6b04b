// Package iocontext carries command streams in a context so commands can run
// against buffers in tests.
package iocontext

import (
	"context"
	"io"
	"os"

	"golang.org/x/term"
)

// IO holds the streams a command reads from and writes to.
type IO struct {
	Out    io.Writer
	ErrOut io.Writer
	In     io.Reader
}

// Std returns the process streams.
func Std() *IO {
	return &IO{Out: os.Stdout, ErrOut: os.Stderr, In: os.Stdin}
}

type ioKey struct{}

// WithIO stores streams in ctx.
func WithIO(ctx context.Context, streams *IO) context.Context {
	return context.WithValue(ctx, ioKey{}, streams)
}

// FromContext returns the streams stored in ctx, or the process streams.
func FromContext(ctx context.Context) *IO {
	if streams, ok := ctx.Value(ioKey{}).(*IO); ok && streams != nil {
		return streams
	}
	return Std()
}

// IsTerminal reports whether stream is attached to a terminal. Buffers and
// pipes are not.
func IsTerminal(stream any) bool {
	f, ok := stream.(interface{ Fd() uintptr })
	return ok && term.IsTerminal(int(f.Fd()))
}
