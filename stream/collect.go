package stream

import (
	"context"

	docsearch "github.com/haowjy/docsearch-go"
)

// Collect streams the answer to query and blocks until it ends, returning
// the final state. The returned error is the state's Err, or the context's
// error when ctx is cancelled first.
func Collect(ctx context.Context, source Source, query string, opts ...Option) (docsearch.StreamState, error) {
	c := NewConsumer(source, opts...)
	done := c.Start(ctx, query)
	<-done

	state := c.Snapshot()
	if state.Err != nil {
		return state, state.Err
	}
	if err := ctx.Err(); err != nil {
		return state, err
	}
	return state, nil
}
