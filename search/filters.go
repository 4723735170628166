// Package search holds client-side search state: the active filter
// selection and the result of the last non-streaming search.
package search

import (
	"fmt"
	"slices"
	"sync"

	docsearch "github.com/haowjy/docsearch-go"
)

// Filter keys accepted by Filters.Update.
const (
	KeyDocTypes      = "doc_types"
	KeyPeople        = "people"
	KeyLocations     = "locations"
	KeyEvidenceTypes = "evidence_types"
)

// Keys lists every filter key in display order.
var Keys = []string{KeyDocTypes, KeyPeople, KeyLocations, KeyEvidenceTypes}

// Filters is the user's current filter selection. The zero value has no
// active filters. Safe for concurrent use.
type Filters struct {
	mu     sync.RWMutex
	values map[string][]string
}

// Update replaces the values for key. Empty values remove the key.
func (f *Filters) Update(key string, values []string) error {
	if !slices.Contains(Keys, key) {
		return fmt.Errorf("%w: unknown filter %q", docsearch.ErrInvalidRequest, key)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if len(values) == 0 {
		delete(f.values, key)
		return nil
	}
	if f.values == nil {
		f.values = make(map[string][]string)
	}
	f.values[key] = slices.Clone(values)
	return nil
}

// Clear removes every filter.
func (f *Filters) Clear() {
	f.mu.Lock()
	f.values = nil
	f.mu.Unlock()
}

// HasActive reports whether any filter has a value.
func (f *Filters) HasActive() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.values) > 0
}

// Value returns the selection as request filters.
func (f *Filters) Value() docsearch.SearchFilters {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return docsearch.SearchFilters{
		DocTypes:      slices.Clone(f.values[KeyDocTypes]),
		People:        slices.Clone(f.values[KeyPeople]),
		Locations:     slices.Clone(f.values[KeyLocations]),
		EvidenceTypes: slices.Clone(f.values[KeyEvidenceTypes]),
	}
}
