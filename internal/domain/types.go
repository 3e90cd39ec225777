package domain

// FieldText is the entity field holding a document's text.
const FieldText = "text"

// Document is a single corpus entry. IDs are stable for the corpus lifetime.
type Document struct {
	ID        int64
	Text      string
	Embedding []float32
}

// Record is the unit written to a vector index.
type Record struct {
	ID     int64
	Vector []float32
	Text   string
}

// CollectionInfo describes a named collection inside a vector index.
type CollectionInfo struct {
	Name      string
	Dimension int
	Count     int
}

// Hit is a single nearest-neighbor match as returned by a VectorIndex.
type Hit struct {
	ID       int64
	Distance float64
	Entity   map[string]string
}

// Entry is one ranked row of a SearchResult.
type Entry struct {
	Rank       int     `json:"rank"`
	ID         int64   `json:"id"`
	Text       string  `json:"text"`
	Distance   float64 `json:"distance"`
	Similarity float64 `json:"similarity"`
}

// SearchResult is the ranked output of a search, nearest first.
type SearchResult struct {
	Query   string  `json:"query"`
	TopK    int     `json:"top_k"`
	Entries []Entry `json:"entries"`
}

// Empty reports whether the search matched nothing.
func (r SearchResult) Empty() bool { return len(r.Entries) == 0 }

// ClampTopK bounds k to [1, size]. An empty corpus still yields 1 so that a
// search against it is well-formed and simply returns no entries.
func ClampTopK(k, size int) int {
	if size < 1 {
		return 1
	}
	if k < 1 {
		return 1
	}
	if k > size {
		return size
	}
	return k
}
