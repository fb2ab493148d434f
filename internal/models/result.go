package models

// Hit is a single search hit: a chunk from one document partition and its squared L2 distance.
type Hit struct {
	Chunk    Chunk   `json:"chunk"`
	Distance float64 `json:"distance"`
	DocID    string  `json:"doc_id"`
	Row      int     `json:"chunk_id"`
}

// SearchResponse is the response for a vector search request.
type SearchResponse struct {
	Hits      []*Hit `json:"hits"`
	Total     int    `json:"total"`
	QueryTime int64  `json:"query_time_ms"`
}

// Source is the citation view of a hit returned by text queries.
type Source struct {
	Title    string  `json:"title"`
	DocID    string  `json:"doc_id"`
	Page     int     `json:"page"`
	Text     string  `json:"text"`
	Distance float64 `json:"distance"`
}

// QueryResponse is the response for a text query: ranked sources plus the formatted context block.
type QueryResponse struct {
	Query     string    `json:"query"`
	Sources   []*Source `json:"sources"`
	Context   string    `json:"context"`
	QueryTime int64     `json:"query_time_ms"`
}
