package action

import (
	"context"
	"io"
	"os"
)

type outputKey struct{}

// WithOutput stores the writer that actions print to.
func WithOutput(ctx context.Context, w io.Writer) context.Context {
	return context.WithValue(ctx, outputKey{}, w)
}

// Output returns the writer stored by WithOutput, or os.Stdout.
func Output(ctx context.Context) io.Writer {
	if w, ok := ctx.Value(outputKey{}).(io.Writer); ok && w != nil {
		return w
	}
	return os.Stdout
}
