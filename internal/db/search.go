package db

// DefaultVectorField is the hash field holding the FLOAT32 blob.
const DefaultVectorField = "vector"

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	VectorField  string // defaults to DefaultVectorField
	Vector       []float32
	K            int
	ReturnFields []string
}

// TextQuery is the input for BM25 text search.
//
// Terms are OR-ed together; each term is escaped before it reaches FT.SEARCH.
// An empty Field searches every TEXT field of the index.
type TextQuery struct {
	IndexName    string
	Field        string
	Terms        []string
	TopK         int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
//
// For KNN hits Score holds the raw distance reported by the index;
// for BM25 hits it holds the text relevance score.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
