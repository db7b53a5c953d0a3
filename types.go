package docvec

import "time"

// Document is the caller-supplied unit of ingestion. ID may be left empty;
// the store assigns a fresh unique id on Add.
type Document struct {
	ID          string            `json:"id"`
	Title       string            `json:"title,omitempty"`
	Content     string            `json:"content"`
	PackageName string            `json:"package_name,omitempty"`
	DocType     string            `json:"doc_type,omitempty"`
	Language    string            `json:"language,omitempty"`
	Version     string            `json:"version,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// DocumentRecord is the persisted form of a Document: the document plus its
// embedding and timestamps. Embedding is empty for degraded entries written
// while the embedding backend was unavailable; when present its length
// always equals the store dimension.
type DocumentRecord struct {
	Document
	Embedding []float32 `json:"embedding,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Vectorized reports whether the record carries an embedding.
func (r *DocumentRecord) Vectorized() bool {
	return len(r.Embedding) > 0
}

// SearchResult is one ranked query hit. SimilarityScore is monotonically
// decreasing in vector distance and bounded to [0, 1]; it is not a
// calibrated probability.
type SearchResult struct {
	DocumentID      string            `json:"document_id"`
	Title           string            `json:"title,omitempty"`
	ContentSnippet  string            `json:"content_snippet"`
	SimilarityScore float32           `json:"similarity_score"`
	PackageName     string            `json:"package_name,omitempty"`
	DocType         string            `json:"doc_type,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// DatabaseStats is a cheap point-in-time snapshot of store state. Computing
// it never fails; under degraded vectorization it reports whatever is known.
type DatabaseStats struct {
	DocumentCount int       `json:"document_count"`
	VectorCount   int       `json:"vector_count"`
	TotalSizeMB   float64   `json:"total_size_mb"`
	MemoryUsageMB float64   `json:"memory_usage_mb"`
	IndexSizeMB   float64   `json:"index_size_mb"`
	LastUpdated   time.Time `json:"last_updated"`
}

func cloneMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}

	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}

	return out
}
