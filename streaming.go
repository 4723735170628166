package docsearch

// EventType discriminates stream events.
type EventType string

// Known stream event types
const (
	// EventAnswerChunk carries a fragment of answer text to append
	EventAnswerChunk EventType = "answer_chunk"

	// EventCitation carries one citation
	EventCitation EventType = "citation"

	// EventDocument carries one full document record
	EventDocument EventType = "document"

	// EventComplete carries the final result count
	EventComplete EventType = "complete"

	// EventError carries a failure reported by the backend mid-stream
	EventError EventType = "error"
)

// String returns the string representation of the event type
func (t EventType) String() string {
	return string(t)
}

// IsKnown returns true if the event type is one the consumer folds
func (t EventType) IsKnown() bool {
	switch t {
	case EventAnswerChunk, EventCitation, EventDocument, EventComplete, EventError:
		return true
	default:
		return false
	}
}

// StreamEvent is a single decoded event of a streaming answer.
// Exactly one group of fields is meaningful, selected by Type.
type StreamEvent struct {
	Type EventType `json:"type"`

	// Content is the text fragment (answer_chunk)
	Content string `json:"content,omitempty"`

	// DocumentID, EFTAID and Snippet describe a citation (citation)
	DocumentID string `json:"document_id,omitempty"`
	EFTAID     string `json:"efta_id,omitempty"`
	Snippet    string `json:"snippet,omitempty"`

	// Document is the full record (document); nil records are skipped
	Document *Document `json:"document,omitempty"`

	// TotalResults is the final count (complete)
	TotalResults int `json:"total_results,omitempty"`

	// Message is the backend's failure description (error)
	Message string `json:"message,omitempty"`
}

// Citation converts a citation event into a Citation with placeholder
// type and score.
func (e *StreamEvent) Citation() Citation {
	return Citation{
		DocumentID:     e.DocumentID,
		EFTAID:         e.EFTAID,
		Snippet:        e.Snippet,
		DocType:        nil,
		RelevanceScore: 0,
	}
}

// StreamState is the accumulated view of one streaming answer.
// All slices only grow while the stream is live.
type StreamState struct {
	// Query is the query this state belongs to
	Query string

	// Answer is the concatenation of every answer_chunk in arrival order
	Answer string

	// Citations in arrival order; duplicates by document are kept
	Citations []Citation

	// Documents in arrival order
	Documents []Document

	// TotalResults is 0 until a complete event arrives
	TotalResults int

	// Streaming is true from start until the stream reaches a terminal condition
	Streaming bool

	// Err is the stream's failure (a *StreamError), nil on success or cancellation
	Err error
}

// Clone returns a deep copy safe to hand to observers.
func (s StreamState) Clone() StreamState {
	out := s
	if s.Citations != nil {
		out.Citations = append([]Citation(nil), s.Citations...)
	}
	if s.Documents != nil {
		out.Documents = append([]Document(nil), s.Documents...)
	}
	return out
}
