package lexical

import "strings"

// ScoredDoc is one keyword-search hit.
type ScoredDoc struct {
	DocumentID string
	Score      float32
}

// Index is the interface for a lexical search index.
type Index interface {
	// Add indexes the text under the document id, replacing any prior text.
	Add(id string, text string) error
	// Remove drops a document from the index. Removing an unknown id is a
	// no-op.
	Remove(id string) error
	// Search scores documents against the query and returns up to k hits,
	// best first.
	Search(query string, k int) ([]ScoredDoc, error)
	// Len returns the number of indexed documents.
	Len() int
	// Close releases index resources.
	Close() error
}

// Tokenize lowercases the text and splits it on whitespace. Indexing and
// query-time scoring must use the same tokenizer or term lookups misfire.
func Tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}
