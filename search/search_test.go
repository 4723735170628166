package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	docsearch "github.com/haowjy/docsearch-go"
)

func TestFilters(t *testing.T) {
	var f Filters
	assert.False(t, f.HasActive())
	assert.True(t, f.Value().IsEmpty())

	require.NoError(t, f.Update(KeyPeople, []string{"A. Person"}))
	require.NoError(t, f.Update(KeyDocTypes, []string{"email", "flight_log"}))
	assert.True(t, f.HasActive())

	got := f.Value()
	assert.Equal(t, []string{"A. Person"}, got.People)
	assert.Equal(t, []string{"email", "flight_log"}, got.DocTypes)
	assert.Nil(t, got.Locations)

	require.NoError(t, f.Update(KeyPeople, nil))
	assert.Nil(t, f.Value().People)
	assert.True(t, f.HasActive())

	f.Clear()
	assert.False(t, f.HasActive())
}

func TestFilters_UnknownKey(t *testing.T) {
	var f Filters
	err := f.Update("aircraft", []string{"N908JE"})
	assert.True(t, errors.Is(err, docsearch.ErrInvalidRequest))
	assert.False(t, f.HasActive())
}

func TestFilters_ValueIsCopy(t *testing.T) {
	var f Filters
	values := []string{"a"}
	require.NoError(t, f.Update(KeyLocations, values))
	values[0] = "changed"

	got := f.Value()
	got.Locations[0] = "mutated"
	assert.Equal(t, []string{"a"}, f.Value().Locations)
}

type fakeBackend struct {
	calls []docsearch.SearchRequest
	err   error
}

func (b *fakeBackend) Search(_ context.Context, req docsearch.SearchRequest) (*docsearch.SearchResult, error) {
	b.calls = append(b.calls, req)
	if b.err != nil {
		return nil, b.err
	}
	return &docsearch.SearchResult{Query: req.Query, TotalResults: 2, Documents: []docsearch.Document{{ID: "d1"}, {ID: "d2"}}}, nil
}

func TestSearcher_Search(t *testing.T) {
	backend := &fakeBackend{}
	s := NewSearcher(backend, nil)

	result, err := s.Search(context.Background(), "  flight logs ", docsearch.SearchFilters{People: []string{"p"}}, 10)
	require.NoError(t, err)
	require.NotNil(t, result)

	require.Len(t, backend.calls, 1)
	assert.Equal(t, "flight logs", backend.calls[0].Query)
	assert.Equal(t, 10, backend.calls[0].Limit)
	require.NotNil(t, backend.calls[0].Filters)
	assert.Equal(t, []string{"p"}, backend.calls[0].Filters.People)

	state := s.Snapshot()
	assert.False(t, state.Loading)
	assert.Empty(t, state.Err)
	assert.Equal(t, "flight logs", state.Query)
	assert.Equal(t, 2, state.Result.TotalResults)
}

func TestSearcher_BlankQueryIgnored(t *testing.T) {
	backend := &fakeBackend{}
	s := NewSearcher(backend, nil)

	result, err := s.Search(context.Background(), "   ", docsearch.SearchFilters{}, 0)
	assert.NoError(t, err)
	assert.Nil(t, result)
	assert.Empty(t, backend.calls)
	assert.Equal(t, State{}, s.Snapshot())
}

func TestSearcher_EmptyFiltersOmitted(t *testing.T) {
	backend := &fakeBackend{}
	s := NewSearcher(backend, nil)

	_, err := s.Search(context.Background(), "q", docsearch.SearchFilters{}, 0)
	require.NoError(t, err)
	assert.Nil(t, backend.calls[0].Filters)
}

func TestSearcher_Error(t *testing.T) {
	backend := &fakeBackend{}
	s := NewSearcher(backend, nil)
	_, err := s.Search(context.Background(), "first", docsearch.SearchFilters{}, 0)
	require.NoError(t, err)

	backend.err = &docsearch.APIError{StatusCode: 503, Message: "Search unavailable", Err: docsearch.ErrServerUnavailable}
	_, err = s.Search(context.Background(), "second", docsearch.SearchFilters{}, 0)
	require.Error(t, err)

	state := s.Snapshot()
	assert.False(t, state.Loading)
	assert.Nil(t, state.Result)
	assert.Contains(t, state.Err, "Search unavailable")

	s.Clear()
	assert.Equal(t, State{}, s.Snapshot())
}
