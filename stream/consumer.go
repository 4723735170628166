// Package stream consumes the backend's streaming answer endpoint and folds
// its events into a live, observable answer state.
package stream

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	docsearch "github.com/haowjy/docsearch-go"
	"github.com/haowjy/docsearch-go/internal/logging"
)

// readBufferSize is the size of each body read.
const readBufferSize = 4096

// Source opens a streaming answer. *api.Client implements it.
type Source interface {
	OpenStream(ctx context.Context, req docsearch.StreamRequest) (io.ReadCloser, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, req docsearch.StreamRequest) (io.ReadCloser, error)

// OpenStream calls f.
func (f SourceFunc) OpenStream(ctx context.Context, req docsearch.StreamRequest) (io.ReadCloser, error) {
	return f(ctx, req)
}

// Consumer runs at most one streaming answer at a time and exposes its
// accumulated state.
//
// State transitions: Idle → Streaming (Start) → Terminal (end of stream,
// Stop, or failure). Starting a new stream always supersedes the active
// one. Observers registered with Subscribe are called after each chunk's
// events are folded, in the order the state changed. Observers run
// synchronously and must not call Start or Stop; they may call Snapshot.
type Consumer struct {
	source       Source
	logger       *zap.Logger
	metrics      *Metrics
	idleTimeout  time.Duration
	maxLineBytes int
	limit        int

	mu     sync.Mutex
	state  docsearch.StreamState
	answer strings.Builder
	gen    uint64 // identifies the stream allowed to modify state
	cancel context.CancelCauseFunc

	notifyMu  sync.Mutex // held while observers run; acquired before mu is released
	obsMu     sync.Mutex
	observers map[int]func(docsearch.StreamState)
	nextObs   int
}

// Option configures a Consumer.
type Option func(*Consumer)

// WithLogger sets the logger. Malformed events are logged at debug level.
func WithLogger(l *zap.Logger) Option {
	return func(c *Consumer) {
		c.logger = logging.OrNop(l)
	}
}

// WithMetrics records stream activity.
func WithMetrics(m *Metrics) Option {
	return func(c *Consumer) {
		c.metrics = m
	}
}

// WithIdleTimeout fails a stream that receives no bytes for d.
// Zero (the default) waits forever.
func WithIdleTimeout(d time.Duration) Option {
	return func(c *Consumer) {
		c.idleTimeout = d
	}
}

// WithMaxLineBytes bounds the buffered size of a single line.
func WithMaxLineBytes(n int) Option {
	return func(c *Consumer) {
		c.maxLineBytes = n
	}
}

// WithLimit sets the document limit sent with each stream request.
func WithLimit(n int) Option {
	return func(c *Consumer) {
		c.limit = n
	}
}

// NewConsumer creates an idle consumer reading from source.
func NewConsumer(source Source, opts ...Option) *Consumer {
	c := &Consumer{
		source:       source,
		logger:       zap.NewNop(),
		maxLineBytes: DefaultMaxLineBytes,
		observers:    make(map[int]func(docsearch.StreamState)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start begins streaming the answer to query. Any active stream is
// cancelled first without waiting for its teardown. State is reset and
// marked streaming before Start returns. The returned channel is closed
// when this stream reaches a terminal condition.
//
// Failures never come back from Start; they appear as State.Err.
func (c *Consumer) Start(ctx context.Context, query string) <-chan struct{} {
	streamCtx, cancel := context.WithCancelCause(ctx)
	done := make(chan struct{})

	c.mu.Lock()
	if c.cancel != nil {
		c.cancel(docsearch.ErrStreamAborted)
	}
	c.gen++
	gen := c.gen
	c.cancel = cancel
	c.answer.Reset()
	c.state = docsearch.StreamState{Query: query, Streaming: true}
	c.publishLocked()

	c.metrics.started()
	c.logger.Debug("stream started", zap.String("query", query), zap.Uint64("stream", gen))

	go c.run(streamCtx, cancel, gen, query, done)
	return done
}

// Stop cancels the active stream. It is a no-op when idle. Streaming is
// false when Stop returns; the network teardown finishes in the background.
func (c *Consumer) Stop() {
	c.mu.Lock()
	if c.cancel == nil && !c.state.Streaming {
		c.mu.Unlock()
		return
	}
	if c.cancel != nil {
		c.cancel(docsearch.ErrStreamAborted)
		c.cancel = nil
	}
	c.gen++ // detach the running stream from state
	c.state.Streaming = false
	c.publishLocked()
}

// Snapshot returns a copy of the current state.
func (c *Consumer) Snapshot() docsearch.StreamState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Streaming reports whether a stream is active.
func (c *Consumer) Streaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Streaming
}

// Subscribe registers fn to receive a snapshot after every state change.
// The returned function unregisters it.
func (c *Consumer) Subscribe(fn func(docsearch.StreamState)) (unsubscribe func()) {
	c.obsMu.Lock()
	id := c.nextObs
	c.nextObs++
	c.observers[id] = fn
	c.obsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.obsMu.Lock()
			delete(c.observers, id)
			c.obsMu.Unlock()
		})
	}
}

// run drives one stream from open to terminal.
func (c *Consumer) run(ctx context.Context, cancel context.CancelCauseFunc, gen uint64, query string, done chan struct{}) {
	defer close(done)
	defer cancel(nil)

	body, err := c.source.OpenStream(ctx, docsearch.StreamRequest{Query: query, Limit: c.limit})
	if err != nil {
		c.finish(ctx, gen, query, docsearch.StreamPhaseConnect, err)
		return
	}
	defer body.Close()

	// A pending Read must return promptly once the stream is cancelled.
	stopClose := context.AfterFunc(ctx, func() { body.Close() })
	defer stopClose()

	var idle *time.Timer
	if c.idleTimeout > 0 {
		idle = time.AfterFunc(c.idleTimeout, func() { cancel(docsearch.ErrStreamIdleTimeout) })
		defer idle.Stop()
	}

	splitter := NewLineSplitter(c.maxLineBytes)
	buf := make([]byte, readBufferSize)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if idle != nil {
				idle.Reset(c.idleTimeout)
			}
			lines, dropped := splitter.Feed(buf[:n])
			if !c.fold(ctx, gen, lines, dropped) {
				c.finish(ctx, gen, query, docsearch.StreamPhaseRead, nil)
				return
			}
		}

		if errors.Is(readErr, io.EOF) {
			if splitter.Pending() > 0 {
				c.logger.Debug("dropping unterminated final line", zap.Int("bytes", splitter.Pending()))
			}
			c.finish(ctx, gen, query, "", nil)
			return
		}
		if readErr != nil {
			c.finish(ctx, gen, query, docsearch.StreamPhaseRead, readErr)
			return
		}
	}
}

// fold applies one chunk's lines to state and notifies observers once.
// It returns false when the stream was cancelled or superseded; nothing
// is folded after that point.
func (c *Consumer) fold(ctx context.Context, gen uint64, lines []string, dropped int) bool {
	c.mu.Lock()
	if c.gen != gen || ctx.Err() != nil {
		c.mu.Unlock()
		return false
	}

	if dropped > 0 {
		c.logger.Debug("skipping over-long stream line", zap.Int("count", dropped), zap.Int("max_bytes", c.maxLineBytes))
		c.metrics.malformed(dropped)
	}

	changed := false
	for _, line := range lines {
		if ctx.Err() != nil {
			break
		}

		event, err := ParseLine(line)
		if err != nil {
			c.logger.Debug("skipping malformed stream event", zap.Error(err))
			c.metrics.malformed(1)
			continue
		}
		if event == nil {
			continue
		}
		if c.applyLocked(event) {
			changed = true
		}
	}

	if !changed {
		c.mu.Unlock()
		return ctx.Err() == nil
	}
	c.publishLocked()
	return ctx.Err() == nil
}

// applyLocked folds one event. It reports whether state changed.
func (c *Consumer) applyLocked(event *docsearch.StreamEvent) bool {
	switch event.Type {
	case docsearch.EventAnswerChunk:
		if event.Content == "" {
			return false
		}
		c.answer.WriteString(event.Content)

	case docsearch.EventCitation:
		c.state.Citations = append(c.state.Citations, event.Citation())

	case docsearch.EventDocument:
		if event.Document == nil {
			return false
		}
		c.state.Documents = append(c.state.Documents, *event.Document)

	case docsearch.EventComplete:
		c.state.TotalResults = event.TotalResults

	case docsearch.EventError:
		c.logger.Warn("backend reported stream error", zap.String("query", c.state.Query), zap.String("message", event.Message))
		if c.state.Err == nil {
			c.state.Err = &docsearch.StreamError{Query: c.state.Query, Phase: docsearch.StreamPhaseServer, Message: event.Message}
		}

	default:
		return false
	}

	c.metrics.event(event.Type)
	return true
}

// finish moves the stream to its terminal state. Cancellation through Stop,
// a superseding Start or the caller's context is not an error; idle timeouts,
// deadlines and transport failures are.
func (c *Consumer) finish(ctx context.Context, gen uint64, query, phase string, err error) {
	var streamErr error
	outcome := OutcomeCompleted

	cause := context.Cause(ctx)
	switch {
	case cause != nil && (errors.Is(cause, docsearch.ErrStreamAborted) || errors.Is(cause, context.Canceled)):
		outcome = OutcomeAborted
	case cause != nil:
		if phase == "" {
			phase = docsearch.StreamPhaseRead
		}
		outcome = OutcomeFailed
		streamErr = &docsearch.StreamError{Query: query, Phase: phase, Err: cause}
	case err != nil:
		outcome = OutcomeFailed
		streamErr = newStreamError(query, phase, err)
	}

	c.metrics.outcome(outcome)
	switch outcome {
	case OutcomeFailed:
		c.logger.Warn("stream failed", zap.String("query", query), zap.Uint64("stream", gen), zap.Error(streamErr))
	default:
		c.logger.Debug("stream ended", zap.String("query", query), zap.Uint64("stream", gen), zap.String("outcome", outcome))
	}

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.cancel = nil
	c.state.Streaming = false
	if streamErr != nil && c.state.Err == nil {
		c.state.Err = streamErr
	}
	c.publishLocked()
}

// publishLocked snapshots state, releases mu and notifies observers.
// notifyMu is taken before mu is released so observers see changes in order.
func (c *Consumer) publishLocked() {
	snap := c.snapshotLocked()
	c.notifyMu.Lock()
	c.mu.Unlock()
	defer c.notifyMu.Unlock()

	c.obsMu.Lock()
	observers := make([]func(docsearch.StreamState), 0, len(c.observers))
	for _, fn := range c.observers {
		observers = append(observers, fn)
	}
	c.obsMu.Unlock()

	for _, fn := range observers {
		fn(snap)
	}
}

func (c *Consumer) snapshotLocked() docsearch.StreamState {
	snap := c.state.Clone()
	snap.Answer = c.answer.String()
	return snap
}

func newStreamError(query, phase string, err error) *docsearch.StreamError {
	streamErr := &docsearch.StreamError{Query: query, Phase: phase, Err: err}
	var apiErr *docsearch.APIError
	if errors.As(err, &apiErr) {
		streamErr.StatusCode = apiErr.StatusCode
		streamErr.Message = apiErr.Message
	}
	return streamErr
}
