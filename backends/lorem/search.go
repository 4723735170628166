package lorem

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	docsearch "github.com/haowjy/docsearch-go"
)

const (
	defaultLimit        = 20
	defaultRelatedLimit = 5
	maxRelatedLimit     = 20
	minQueryLength      = 2
)

// handleSearchStream streams an answer as "data: <json>\n\n" events:
// answer_chunk × chunks → citation × citations → document × limit → complete.
func (s *Server) handleSearchStream(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if len([]rune(query)) < minQueryLength {
		abort(c, http.StatusUnprocessableEntity, "Query must be at least 2 characters")
		return
	}
	limit, ok := intParam(c, "limit", defaultLimit, 1, maxSearchLimit)
	if !ok {
		return
	}

	if s.failStatus != 0 {
		s.logger.Debug("failing stream", zap.Int("status", s.failStatus))
		c.Status(s.failStatus)
		return
	}

	docs := s.match(query, nil, limit)
	cited := docs[:min(s.citations, len(docs))]

	h := c.Writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	ctx := c.Request.Context()
	send := func(event docsearch.StreamEvent) bool {
		b, err := json.Marshal(event)
		if err != nil {
			s.logger.Error("failed to encode stream event", zap.Error(err))
			return false
		}
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", b); err != nil {
			return false
		}
		c.Writer.Flush()
		return ctx.Err() == nil
	}

	for i, word := range s.answerWords(s.chunks) {
		content := word
		if i > 0 {
			content = " " + word
		}
		if !send(docsearch.StreamEvent{Type: docsearch.EventAnswerChunk, Content: content}) {
			return
		}
		if s.wordDelay > 0 {
			select {
			case <-time.After(s.wordDelay):
			case <-ctx.Done():
				s.logger.Debug("client went away", zap.String("query", query))
				return
			}
		}
	}

	if s.streamErrMsg != "" {
		send(docsearch.StreamEvent{Type: docsearch.EventError, Message: s.streamErrMsg})
		return
	}

	for _, d := range cited {
		if !send(docsearch.StreamEvent{Type: docsearch.EventCitation, DocumentID: d.ID, EFTAID: d.EFTAID, Snippet: deref(d.ContentPreview)}) {
			return
		}
	}
	for i := range docs {
		if !send(docsearch.StreamEvent{Type: docsearch.EventDocument, Document: &docs[i]}) {
			return
		}
	}
	send(docsearch.StreamEvent{Type: docsearch.EventComplete, TotalResults: len(docs)})
}

func (s *Server) handleSearch(c *gin.Context) {
	start := time.Now()

	var req docsearch.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusUnprocessableEntity, "Invalid request body")
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if len([]rune(req.Query)) < minQueryLength {
		abort(c, http.StatusUnprocessableEntity, "Query must be at least 2 characters")
		return
	}
	if req.Limit == 0 {
		req.Limit = defaultLimit
	}
	if req.Limit < 1 || req.Limit > maxSearchLimit {
		abort(c, http.StatusUnprocessableEntity, "limit must be between 1 and 100")
		return
	}

	docs := s.match(req.Query, req.Filters, req.Limit)
	citations := make([]docsearch.Citation, 0, s.citations)
	for _, d := range docs[:min(s.citations, len(docs))] {
		citations = append(citations, docsearch.Citation{
			DocumentID:     d.ID,
			EFTAID:         d.EFTAID,
			Snippet:        deref(d.ContentPreview),
			DocType:        d.DocType,
			RelevanceScore: *d.RelevanceScore,
		})
	}

	elapsed := float64(time.Since(start).Microseconds()) / 1000
	result := docsearch.SearchResult{
		QueryID:      uuid.NewString(),
		Query:        req.Query,
		AIAnswer:     docsearch.AIAnswer{Text: s.paragraphs(1), Citations: citations},
		Documents:    docs,
		TotalResults: len(docs),
		SearchTimeMs: &elapsed,
	}

	if user := currentUser(c); user != nil {
		s.recordSearch(user.ID, req, result)
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleDocument(c *gin.Context) {
	doc, ok := s.document(c.Param("id"))
	if !ok {
		abort(c, http.StatusNotFound, "Document not found")
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (s *Server) handleRelated(c *gin.Context) {
	doc, ok := s.document(c.Param("id"))
	if !ok {
		abort(c, http.StatusNotFound, "Document not found")
		return
	}
	limit, ok := intParam(c, "limit", defaultRelatedLimit, 1, maxRelatedLimit)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.related(doc, limit))
}

func (s *Server) handleFilterMetadata(c *gin.Context) {
	c.JSON(http.StatusOK, s.filterMetadata())
}

// intParam reads an optional integer query parameter within [lo, hi].
// It writes a 422 and returns false when the value is invalid.
func intParam(c *gin.Context, name string, def, lo, hi int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < lo || n > hi {
		abort(c, http.StatusUnprocessableEntity, fmt.Sprintf("%s must be between %d and %d", name, lo, hi))
		return 0, false
	}
	return n, true
}
