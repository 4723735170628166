package lorem

import (
	"fmt"
	"slices"
	"strings"

	docsearch "github.com/haowjy/docsearch-go"
)

const (
	defaultCorpusSize = 24
	previewChars      = 200
	maxSearchLimit    = 100
)

var (
	docTypes      = []string{"email", "flight_log", "deposition", "court_filing", "financial_record"}
	people        = []string{"A. Reyes", "M. Lindqvist", "J. Okafor", "S. Patel", "R. Moreau"}
	locations     = []string{"New York", "Palm Beach", "London", "Santa Fe", "Paris"}
	evidenceTypes = []string{"testimony", "correspondence", "transaction", "travel"}
)

// generateCorpus builds n documents with rotating metadata and lorem text.
func (s *Server) generateCorpus(n int) []docsearch.Document {
	docs := make([]docsearch.Document, 0, n)
	for i := range n {
		content := s.paragraphs(2)
		preview := content
		if len(preview) > previewChars {
			preview = strings.TrimSpace(preview[:previewChars])
		}
		docType := docTypes[i%len(docTypes)]
		source := "mock"
		pages := 1 + i%9

		docs = append(docs, docsearch.Document{
			ID:             fmt.Sprintf("doc-%03d", i+1),
			EFTAID:         fmt.Sprintf("EFTA%08d", i+1),
			Content:        &content,
			ContentPreview: &preview,
			DocType:        &docType,
			People:         []string{people[i%len(people)], people[(i+2)%len(people)]},
			Locations:      []string{locations[i%len(locations)]},
			EvidenceTypes:  []string{evidenceTypes[i%len(evidenceTypes)]},
			Pages:          &pages,
			Source:         &source,
		})
	}
	return docs
}

func (s *Server) paragraphs(n int) string {
	s.genMu.Lock()
	defer s.genMu.Unlock()

	parts := make([]string, n)
	for i := range parts {
		parts[i] = s.generator.Paragraph(2, 4)
	}
	return strings.Join(parts, "\n\n")
}

// answerWords returns n lorem words.
func (s *Server) answerWords(n int) []string {
	s.genMu.Lock()
	defer s.genMu.Unlock()

	words := make([]string, 0, n)
	for len(words) < n {
		words = append(words, strings.Fields(s.generator.Sentence(5, 15))...)
	}
	return words[:n]
}

// match returns up to limit documents passing filters, scored by how many
// query terms their content contains. Documents matching no term still
// qualify so every query has results.
func (s *Server) match(query string, filters *docsearch.SearchFilters, limit int) []docsearch.Document {
	terms := strings.Fields(strings.ToLower(query))

	type scored struct {
		doc   docsearch.Document
		score int
	}
	var hits []scored
	for _, d := range s.docs {
		if !passes(d, filters) {
			continue
		}
		text := strings.ToLower(d.EFTAID + " " + deref(d.Content))
		score := 0
		for _, t := range terms {
			if strings.Contains(text, t) {
				score++
			}
		}
		hits = append(hits, scored{doc: d, score: score})
	}

	slices.SortStableFunc(hits, func(a, b scored) int { return b.score - a.score })
	if len(hits) > limit {
		hits = hits[:limit]
	}

	out := make([]docsearch.Document, len(hits))
	for i, h := range hits {
		doc := h.doc
		rel := 1 - float64(i)/float64(len(hits)+1)
		matchType := "hybrid"
		doc.RelevanceScore = &rel
		doc.MatchType = &matchType
		out[i] = doc
	}
	return out
}

func (s *Server) document(id string) (docsearch.Document, bool) {
	for _, d := range s.docs {
		if d.ID == id || d.EFTAID == id {
			return d, true
		}
	}
	return docsearch.Document{}, false
}

// related returns documents sharing a person or location with doc.
func (s *Server) related(doc docsearch.Document, limit int) []docsearch.Document {
	out := []docsearch.Document{}
	for _, d := range s.docs {
		if d.ID == doc.ID {
			continue
		}
		if overlaps(d.People, doc.People) || overlaps(d.Locations, doc.Locations) {
			out = append(out, d)
			if len(out) == limit {
				break
			}
		}
	}
	return out
}

func (s *Server) filterMetadata() docsearch.FilterMetadata {
	count := func(values func(docsearch.Document) []string) []docsearch.FilterOption {
		counts := map[string]int{}
		var order []string
		for _, d := range s.docs {
			for _, v := range values(d) {
				if counts[v] == 0 {
					order = append(order, v)
				}
				counts[v]++
			}
		}
		opts := make([]docsearch.FilterOption, 0, len(order))
		for _, v := range order {
			opts = append(opts, docsearch.FilterOption{Value: v, Count: counts[v]})
		}
		slices.SortStableFunc(opts, func(a, b docsearch.FilterOption) int { return b.Count - a.Count })
		return opts
	}

	return docsearch.FilterMetadata{
		DocTypes: count(func(d docsearch.Document) []string {
			if d.DocType == nil {
				return nil
			}
			return []string{*d.DocType}
		}),
		People:        count(func(d docsearch.Document) []string { return d.People }),
		Locations:     count(func(d docsearch.Document) []string { return d.Locations }),
		EvidenceTypes: count(func(d docsearch.Document) []string { return d.EvidenceTypes }),
	}
}

func passes(d docsearch.Document, f *docsearch.SearchFilters) bool {
	if f == nil {
		return true
	}
	if len(f.DocTypes) > 0 && (d.DocType == nil || !slices.Contains(f.DocTypes, *d.DocType)) {
		return false
	}
	if len(f.People) > 0 && !overlaps(d.People, f.People) {
		return false
	}
	if len(f.Locations) > 0 && !overlaps(d.Locations, f.Locations) {
		return false
	}
	if len(f.EvidenceTypes) > 0 && !overlaps(d.EvidenceTypes, f.EvidenceTypes) {
		return false
	}
	return true
}

func overlaps(a, b []string) bool {
	for _, v := range a {
		if slices.Contains(b, v) {
			return true
		}
	}
	return false
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
