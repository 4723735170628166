package search

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	docsearch "github.com/haowjy/docsearch-go"
	"github.com/haowjy/docsearch-go/internal/logging"
)

// Backend runs a non-streaming search. *api.Client implements it.
type Backend interface {
	Search(ctx context.Context, req docsearch.SearchRequest) (*docsearch.SearchResult, error)
}

// State is the outcome of the most recent search.
type State struct {
	Query   string
	Result  *docsearch.SearchResult
	Loading bool
	Err     string
}

// Searcher runs searches and keeps the latest result.
type Searcher struct {
	backend Backend
	logger  *zap.Logger

	mu    sync.Mutex
	state State
	seq   uint64
}

// NewSearcher creates a searcher. logger may be nil.
func NewSearcher(backend Backend, logger *zap.Logger) *Searcher {
	return &Searcher{backend: backend, logger: logging.OrNop(logger)}
}

// Search runs query with filters. A blank query is ignored. Only the most
// recently started search may update state.
func (s *Searcher) Search(ctx context.Context, query string, filters docsearch.SearchFilters, limit int) (*docsearch.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.state.Query = query
	s.state.Loading = true
	s.state.Err = ""
	s.mu.Unlock()

	req := docsearch.SearchRequest{Query: query, Limit: limit}
	if !filters.IsEmpty() {
		req.Filters = &filters
	}
	result, err := s.backend.Search(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.seq {
		return result, err
	}
	s.state.Loading = false
	if err != nil {
		s.logger.Warn("search failed", zap.String("query", query), zap.Error(err))
		s.state.Err = err.Error()
		s.state.Result = nil
		return nil, err
	}
	s.state.Result = result
	return result, nil
}

// Clear forgets the last search.
func (s *Searcher) Clear() {
	s.mu.Lock()
	s.seq++
	s.state = State{}
	s.mu.Unlock()
}

// Snapshot returns the current state.
func (s *Searcher) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
