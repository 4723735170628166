package docsearch

// User is the backend's profile of an authenticated user.
type User struct {
	ID        string  `json:"id"`
	Email     string  `json:"email"`
	Name      *string `json:"name"`
	Picture   *string `json:"picture"`
	GoogleID  string  `json:"google_id"`
	CreatedAt string  `json:"created_at"`
}

// DisplayName returns the user's name, falling back to the email address.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.Name != nil && *u.Name != "" {
		return *u.Name
	}
	return u.Email
}

// Citation points from an answer to a supporting source document.
type Citation struct {
	// DocumentID is the backend's internal document identity
	DocumentID string `json:"document_id"`

	// EFTAID is the human-facing document identifier
	EFTAID string `json:"efta_id"`

	// Snippet is the supporting text excerpt
	Snippet string `json:"snippet"`

	// DocType is nil for citations that arrive over the stream
	DocType *string `json:"doc_type"`

	// RelevanceScore is 0 for citations that arrive over the stream
	RelevanceScore float64 `json:"relevance_score"`
}

// AIAnswer is a complete (non-streamed) generated answer.
type AIAnswer struct {
	Text      string     `json:"text"`
	Citations []Citation `json:"citations"`
}

// Document is a full document record as returned by search and document endpoints.
type Document struct {
	ID             string   `json:"id"`
	EFTAID         string   `json:"efta_id"`
	Content        *string  `json:"content,omitempty"`
	ContentPreview *string  `json:"content_preview"`
	DocType        *string  `json:"doc_type"`
	People         []string `json:"people"`
	Locations      []string `json:"locations"`
	Aircraft       []string `json:"aircraft"`
	EvidenceTypes  []string `json:"evidence_types"`
	Pages          *int     `json:"pages"`
	Source         *string  `json:"source"`
	Dataset        *string  `json:"dataset"`
	FilePath       *string  `json:"file_path"`
	RelevanceScore *float64 `json:"relevance_score"`
	MatchType      *string  `json:"match_type"`
	SourceURL      *string  `json:"source_url,omitempty"`
}

// SearchFilters narrows a non-streaming search.
// Empty slices are omitted from the request.
type SearchFilters struct {
	DocTypes      []string `json:"doc_types,omitempty"`
	People        []string `json:"people,omitempty"`
	Locations     []string `json:"locations,omitempty"`
	EvidenceTypes []string `json:"evidence_types,omitempty"`
}

// IsEmpty reports whether no filter has any value.
func (f SearchFilters) IsEmpty() bool {
	return len(f.DocTypes) == 0 && len(f.People) == 0 && len(f.Locations) == 0 && len(f.EvidenceTypes) == 0
}

// SearchResult is the response of a non-streaming search.
type SearchResult struct {
	QueryID      string     `json:"query_id"`
	Query        string     `json:"query"`
	AIAnswer     AIAnswer   `json:"ai_answer"`
	Documents    []Document `json:"documents"`
	TotalResults int        `json:"total_results"`
	SearchTimeMs *float64   `json:"search_time_ms"`
	Cached       bool       `json:"cached"`
}

// HistoryEntry is one past search of the authenticated user.
type HistoryEntry struct {
	ID           string         `json:"id"`
	Query        string         `json:"query"`
	Filters      map[string]any `json:"filters"`
	ResultCount  int            `json:"result_count"`
	SearchTimeMs *float64       `json:"search_time_ms"`
	CreatedAt    string         `json:"created_at"`
}

// FilterOption is one selectable filter value with its document count.
type FilterOption struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// FilterMetadata lists the filter values available across the corpus.
type FilterMetadata struct {
	DocTypes      []FilterOption `json:"doc_types"`
	People        []FilterOption `json:"people"`
	Locations     []FilterOption `json:"locations"`
	EvidenceTypes []FilterOption `json:"evidence_types"`
}
