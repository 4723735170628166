package stream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	docsearch "github.com/haowjy/docsearch-go"
	"github.com/haowjy/docsearch-go/api"
)

const waitFor = 2 * time.Second

// line renders one event the way the backend frames it.
func line(t *testing.T, e docsearch.StreamEvent) string {
	t.Helper()
	b, err := json.Marshal(e)
	require.NoError(t, err)
	return "data: " + string(b) + "\n\n"
}

func chunk(t *testing.T, content string) string {
	return line(t, docsearch.StreamEvent{Type: docsearch.EventAnswerChunk, Content: content})
}

// chunkReader returns one chunk per Read.
type chunkReader struct {
	chunks []string
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	r.chunks[0] = r.chunks[0][n:]
	if r.chunks[0] == "" {
		r.chunks = r.chunks[1:]
	}
	return n, nil
}

func staticSource(chunks ...string) Source {
	return SourceFunc(func(context.Context, docsearch.StreamRequest) (io.ReadCloser, error) {
		return io.NopCloser(&chunkReader{chunks: append([]string(nil), chunks...)}), nil
	})
}

// split cuts s into pieces of at most n bytes, ignoring rune boundaries.
func split(s string, n int) []string {
	var out []string
	for len(s) > n {
		out = append(out, s[:n])
		s = s[n:]
	}
	return append(out, s)
}

// pipeSource hands each opened stream's writer to the test.
type pipeSource struct {
	opened   chan *io.PipeWriter
	mu       sync.Mutex
	requests []docsearch.StreamRequest
}

func newPipeSource() *pipeSource {
	return &pipeSource{opened: make(chan *io.PipeWriter, 4)}
}

func (s *pipeSource) OpenStream(_ context.Context, req docsearch.StreamRequest) (io.ReadCloser, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	pr, pw := io.Pipe()
	s.opened <- pw
	return pr, nil
}

func (s *pipeSource) next(t *testing.T) *io.PipeWriter {
	t.Helper()
	select {
	case pw := <-s.opened:
		return pw
	case <-time.After(waitFor):
		t.Fatal("stream was not opened")
		return nil
	}
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("stream did not terminate")
	}
}

func answerIs(c *Consumer, want string) func() bool {
	return func() bool { return c.Snapshot().Answer == want }
}

func TestConsumer_TwoChunks(t *testing.T) {
	src := newPipeSource()
	c := NewConsumer(src)

	done := c.Start(context.Background(), "flight logs")
	assert.True(t, c.Streaming())
	pw := src.next(t)

	_, err := pw.Write([]byte(chunk(t, "The")))
	require.NoError(t, err)
	assert.Eventually(t, answerIs(c, "The"), waitFor, 5*time.Millisecond)
	assert.True(t, c.Snapshot().Streaming)

	_, err = pw.Write([]byte(chunk(t, " documents show")))
	require.NoError(t, err)
	require.NoError(t, pw.Close())
	waitDone(t, done)

	state := c.Snapshot()
	assert.Equal(t, "The documents show", state.Answer)
	assert.Equal(t, "flight logs", state.Query)
	assert.False(t, state.Streaming)
	assert.NoError(t, state.Err)
}

func TestConsumer_FragmentationIndependent(t *testing.T) {
	body := chunk(t, "Über ") + chunk(t, "naïve ") + chunk(t, "日本語 ") +
		line(t, docsearch.StreamEvent{Type: docsearch.EventComplete, TotalResults: 3}) +
		chunk(t, "done")
	want := "Über naïve 日本語 done"

	for _, size := range []int{1, 2, 3, 7, 16, len(body)} {
		state, err := Collect(context.Background(), staticSource(split(body, size)...), "q")
		require.NoError(t, err, "chunk size %d", size)
		assert.Equal(t, want, state.Answer, "chunk size %d", size)
		assert.Equal(t, 3, state.TotalResults, "chunk size %d", size)
	}
}

func TestConsumer_CitationsKeptInOrder(t *testing.T) {
	var body strings.Builder
	ids := []string{"d1", "d2", "d1", "d3"}
	for _, id := range ids {
		body.WriteString(line(t, docsearch.StreamEvent{Type: docsearch.EventCitation, DocumentID: id, EFTAID: "EFTA-" + id, Snippet: "s-" + id}))
	}

	state, err := Collect(context.Background(), staticSource(body.String()), "q")
	require.NoError(t, err)

	require.Len(t, state.Citations, len(ids))
	for i, id := range ids {
		assert.Equal(t, id, state.Citations[i].DocumentID)
		assert.Equal(t, "EFTA-"+id, state.Citations[i].EFTAID)
		assert.Nil(t, state.Citations[i].DocType)
		assert.Zero(t, state.Citations[i].RelevanceScore)
	}
}

func TestConsumer_MalformedLineSkipped(t *testing.T) {
	valid := chunk(t, "a") + chunk(t, "b")
	withBad := chunk(t, "a") + "data: {\"type\":\"answer_chunk\",\"content\":\n" + chunk(t, "b")

	want, err := Collect(context.Background(), staticSource(valid), "q")
	require.NoError(t, err)
	got, err := Collect(context.Background(), staticSource(withBad), "q")
	require.NoError(t, err)

	assert.Equal(t, want, got)
	assert.Equal(t, "ab", got.Answer)
}

func TestConsumer_IgnoredLines(t *testing.T) {
	body := ": keep-alive\n" +
		"event: message\n" +
		"data: \n" +
		line(t, docsearch.StreamEvent{Type: "heartbeat"}) +
		line(t, docsearch.StreamEvent{Type: docsearch.EventDocument}) +
		chunk(t, "") +
		chunk(t, "x") +
		"data: " // unterminated tail is dropped

	state, err := Collect(context.Background(), staticSource(body), "q")
	require.NoError(t, err)
	assert.Equal(t, "x", state.Answer)
	assert.Empty(t, state.Documents)
}

func TestConsumer_Documents(t *testing.T) {
	title := "doc-1"
	doc := docsearch.Document{ID: "d1", EFTAID: "EFTA001", DocType: &title}
	body := line(t, docsearch.StreamEvent{Type: docsearch.EventDocument, Document: &doc}) +
		line(t, docsearch.StreamEvent{Type: docsearch.EventComplete, TotalResults: 1})

	state, err := Collect(context.Background(), staticSource(body), "q")
	require.NoError(t, err)
	require.Len(t, state.Documents, 1)
	assert.Equal(t, "d1", state.Documents[0].ID)
	assert.Equal(t, 1, state.TotalResults)
}

func TestConsumer_ServerErrorEvent(t *testing.T) {
	body := chunk(t, "partial") +
		line(t, docsearch.StreamEvent{Type: docsearch.EventError, Message: "search backend down"}) +
		line(t, docsearch.StreamEvent{Type: docsearch.EventError, Message: "second"}) +
		chunk(t, " more")

	state, err := Collect(context.Background(), staticSource(body), "q")
	require.Error(t, err)
	assert.Equal(t, "partial more", state.Answer)
	assert.False(t, state.Streaming)

	var streamErr *docsearch.StreamError
	require.True(t, errors.As(err, &streamErr))
	assert.Equal(t, docsearch.StreamPhaseServer, streamErr.Phase)
	assert.Equal(t, "search backend down", streamErr.Message)
	assert.True(t, errors.Is(err, docsearch.ErrStreamFailed))
}

func TestConsumer_StopWhileStreaming(t *testing.T) {
	src := newPipeSource()
	c := NewConsumer(src)

	done := c.Start(context.Background(), "first")
	pw := src.next(t)
	_, err := pw.Write([]byte(chunk(t, "partial")))
	require.NoError(t, err)
	require.Eventually(t, answerIs(c, "partial"), waitFor, 5*time.Millisecond)

	c.Stop()
	assert.False(t, c.Streaming())
	waitDone(t, done)

	// The body was closed, so further writes fail and nothing is folded.
	_, err = pw.Write([]byte(chunk(t, " ignored")))
	assert.Error(t, err)

	state := c.Snapshot()
	assert.Equal(t, "partial", state.Answer)
	assert.NoError(t, state.Err)
	assert.False(t, state.Streaming)

	// A fresh stream works after stopping.
	done = c.Start(context.Background(), "second")
	pw = src.next(t)
	_, err = pw.Write([]byte(chunk(t, "fresh")))
	require.NoError(t, err)
	require.NoError(t, pw.Close())
	waitDone(t, done)

	state = c.Snapshot()
	assert.Equal(t, "fresh", state.Answer)
	assert.Equal(t, "second", state.Query)
	assert.NoError(t, state.Err)
}

func TestConsumer_StopWhenIdle(t *testing.T) {
	c := NewConsumer(newPipeSource())
	c.Stop()
	assert.Equal(t, docsearch.StreamState{}, c.Snapshot())
}

func TestConsumer_StartSupersedes(t *testing.T) {
	src := newPipeSource()
	c := NewConsumer(src)

	first := c.Start(context.Background(), "first")
	pwA := src.next(t)
	_, err := pwA.Write([]byte(chunk(t, "A1")))
	require.NoError(t, err)
	require.Eventually(t, answerIs(c, "A1"), waitFor, 5*time.Millisecond)

	second := c.Start(context.Background(), "second")
	pwB := src.next(t)
	assert.Equal(t, "", c.Snapshot().Answer)

	// Late bytes from the superseded stream are either rejected or ignored.
	_, _ = pwA.Write([]byte(chunk(t, "A2")))
	waitDone(t, first)

	_, err = pwB.Write([]byte(chunk(t, "B1")))
	require.NoError(t, err)
	require.NoError(t, pwB.Close())
	waitDone(t, second)

	state := c.Snapshot()
	assert.Equal(t, "B1", state.Answer)
	assert.Equal(t, "second", state.Query)
	assert.False(t, state.Streaming)
	assert.NoError(t, state.Err)
}

func TestConsumer_HTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, err := api.NewClient(srv.URL, nil)
	require.NoError(t, err)

	c := NewConsumer(client)
	waitDone(t, c.Start(context.Background(), "q"))

	state := c.Snapshot()
	assert.False(t, state.Streaming)
	assert.Equal(t, "", state.Answer)
	require.Error(t, state.Err)
	assert.True(t, errors.Is(state.Err, docsearch.ErrStreamFailed))
	assert.True(t, errors.Is(state.Err, docsearch.ErrServerUnavailable))

	var streamErr *docsearch.StreamError
	require.True(t, errors.As(state.Err, &streamErr))
	assert.Equal(t, docsearch.StreamPhaseConnect, streamErr.Phase)
	assert.Equal(t, http.StatusInternalServerError, streamErr.StatusCode)
	assert.Equal(t, "Stream failed: 500", streamErr.Message)
}

func TestConsumer_ConnectError(t *testing.T) {
	boom := errors.New("dial refused")
	src := SourceFunc(func(context.Context, docsearch.StreamRequest) (io.ReadCloser, error) {
		return nil, boom
	})

	state, err := Collect(context.Background(), src, "q")
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	assert.True(t, errors.Is(err, docsearch.ErrStreamFailed))
	assert.False(t, state.Streaming)
}

func TestConsumer_ReadError(t *testing.T) {
	src := newPipeSource()
	c := NewConsumer(src)

	done := c.Start(context.Background(), "q")
	pw := src.next(t)
	_, err := pw.Write([]byte(chunk(t, "half")))
	require.NoError(t, err)
	pw.CloseWithError(errors.New("connection reset"))
	waitDone(t, done)

	state := c.Snapshot()
	assert.Equal(t, "half", state.Answer)
	var streamErr *docsearch.StreamError
	require.True(t, errors.As(state.Err, &streamErr))
	assert.Equal(t, docsearch.StreamPhaseRead, streamErr.Phase)
	assert.True(t, docsearch.IsRetryable(state.Err))
}

func TestConsumer_IdleTimeout(t *testing.T) {
	src := newPipeSource()
	c := NewConsumer(src, WithIdleTimeout(50*time.Millisecond))

	done := c.Start(context.Background(), "q")
	pw := src.next(t)
	_, err := pw.Write([]byte(chunk(t, "slow")))
	require.NoError(t, err)
	waitDone(t, done)

	state := c.Snapshot()
	assert.Equal(t, "slow", state.Answer)
	assert.False(t, state.Streaming)
	assert.True(t, errors.Is(state.Err, docsearch.ErrStreamIdleTimeout))
	assert.True(t, errors.Is(state.Err, docsearch.ErrStreamFailed))
}

func TestConsumer_ParentContextCancelled(t *testing.T) {
	src := newPipeSource()
	c := NewConsumer(src)

	ctx, cancel := context.WithCancel(context.Background())
	done := c.Start(ctx, "q")
	src.next(t)
	cancel()
	waitDone(t, done)

	state := c.Snapshot()
	assert.False(t, state.Streaming)
	assert.NoError(t, state.Err)
}

func TestConsumer_SendsLimit(t *testing.T) {
	src := newPipeSource()
	c := NewConsumer(src, WithLimit(7))

	done := c.Start(context.Background(), "q")
	require.NoError(t, src.next(t).Close())
	waitDone(t, done)

	src.mu.Lock()
	defer src.mu.Unlock()
	require.Len(t, src.requests, 1)
	assert.Equal(t, docsearch.StreamRequest{Query: "q", Limit: 7}, src.requests[0])
}

func TestConsumer_Subscribe(t *testing.T) {
	src := newPipeSource()
	c := NewConsumer(src)

	var mu sync.Mutex
	var seen []docsearch.StreamState
	unsubscribe := c.Subscribe(func(s docsearch.StreamState) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	done := c.Start(context.Background(), "q")
	pw := src.next(t)
	_, err := pw.Write([]byte(chunk(t, "a") + chunk(t, "b")))
	require.NoError(t, err)
	require.Eventually(t, answerIs(c, "ab"), waitFor, 5*time.Millisecond)
	_, err = pw.Write([]byte(chunk(t, "c")))
	require.NoError(t, err)
	require.NoError(t, pw.Close())
	waitDone(t, done)

	mu.Lock()
	got := append([]docsearch.StreamState(nil), seen...)
	mu.Unlock()

	// start, one per chunk (not per event), terminal
	require.Len(t, got, 4)
	assert.True(t, got[0].Streaming)
	assert.Equal(t, "", got[0].Answer)
	assert.Equal(t, "ab", got[1].Answer)
	assert.Equal(t, "abc", got[2].Answer)
	assert.False(t, got[3].Streaming)
	assert.Equal(t, "abc", got[3].Answer)

	unsubscribe()
	unsubscribe()
	done = c.Start(context.Background(), "again")
	require.NoError(t, src.next(t).Close())
	waitDone(t, done)
	mu.Lock()
	assert.Len(t, seen, 4)
	mu.Unlock()
}

func TestConsumer_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	body := chunk(t, "a") + "data: {oops\n" + chunk(t, "b") +
		line(t, docsearch.StreamEvent{Type: docsearch.EventComplete, TotalResults: 2})
	_, err = Collect(context.Background(), staticSource(body), "q", WithMetrics(m))
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Started))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Outcomes.WithLabelValues(OutcomeCompleted)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Events.WithLabelValues("answer_chunk")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Events.WithLabelValues("complete")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Malformed))

	_, err = NewMetrics(reg)
	assert.Error(t, err, "duplicate registration")
}

func TestCollect_ContextCancelled(t *testing.T) {
	src := newPipeSource()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-src.opened
		cancel()
	}()

	state, err := Collect(ctx, src, "q")
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, state.Streaming)
}
