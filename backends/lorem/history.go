package lorem

import (
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	docsearch "github.com/haowjy/docsearch-go"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 100
)

func (s *Server) recordSearch(userID string, req docsearch.SearchRequest, result docsearch.SearchResult) {
	var filters map[string]any
	if req.Filters != nil && !req.Filters.IsEmpty() {
		filters = map[string]any{}
		if len(req.Filters.DocTypes) > 0 {
			filters["doc_types"] = req.Filters.DocTypes
		}
		if len(req.Filters.People) > 0 {
			filters["people"] = req.Filters.People
		}
		if len(req.Filters.Locations) > 0 {
			filters["locations"] = req.Filters.Locations
		}
		if len(req.Filters.EvidenceTypes) > 0 {
			filters["evidence_types"] = req.Filters.EvidenceTypes
		}
	}

	entry := docsearch.HistoryEntry{
		ID:           uuid.NewString(),
		Query:        req.Query,
		Filters:      filters,
		ResultCount:  result.TotalResults,
		SearchTimeMs: result.SearchTimeMs,
		CreatedAt:    time.Now().UTC().Format(time.RFC3339Nano),
	}

	s.histMu.Lock()
	s.history[userID] = append([]docsearch.HistoryEntry{entry}, s.history[userID]...)
	s.histMu.Unlock()
}

func (s *Server) handleListHistory(c *gin.Context) {
	limit, ok := intParam(c, "limit", defaultHistoryLimit, 1, maxHistoryLimit)
	if !ok {
		return
	}
	offset, ok := intParam(c, "offset", 0, 0, math.MaxInt32)
	if !ok {
		return
	}

	user := currentUser(c)
	s.histMu.Lock()
	all := s.history[user.ID]
	page := []docsearch.HistoryEntry{}
	if offset < len(all) {
		page = append(page, all[offset:min(offset+limit, len(all))]...)
	}
	total := len(all)
	s.histMu.Unlock()

	c.JSON(http.StatusOK, docsearch.HistoryList{History: page, Total: total})
}

func (s *Server) handleDeleteHistory(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		abort(c, http.StatusUnprocessableEntity, "Invalid history id")
		return
	}

	user := currentUser(c)
	s.histMu.Lock()
	entries := s.history[user.ID]
	deleted := false
	for i, e := range entries {
		if e.ID == id {
			s.history[user.ID] = append(entries[:i:i], entries[i+1:]...)
			deleted = true
			break
		}
	}
	s.histMu.Unlock()

	if !deleted {
		c.JSON(http.StatusOK, gin.H{"message": "Entry not found or already deleted"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Deleted"})
}

func (s *Server) handleClearHistory(c *gin.Context) {
	user := currentUser(c)
	s.histMu.Lock()
	count := len(s.history[user.ID])
	delete(s.history, user.ID)
	s.histMu.Unlock()

	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Cleared %d entries", count)})
}
