package models

import (
	"fmt"
	"strings"
)

const (
	// DefaultK is the number of hits returned when a request does not set k.
	DefaultK = 5
	// MaxK caps k for a single request.
	MaxK = 100
)

// SearchRequest is a vector search with an optional document filter.
type SearchRequest struct {
	Vector []float32 `json:"vector"`
	K      int       `json:"k,omitempty"`
	DocIDs []string  `json:"doc_ids,omitempty"`
}

// Validate ensures the request has a query vector and normalizes k.
func (r *SearchRequest) Validate() error {
	return r.ValidateLimits(DefaultK, MaxK)
}

// ValidateLimits is Validate with configured k limits.
func (r *SearchRequest) ValidateLimits(defaultK, maxK int) error {
	if len(r.Vector) == 0 {
		return fmt.Errorf("vector cannot be empty")
	}
	r.K = clampK(r.K, defaultK, maxK)
	return nil
}

// QueryRequest is a text query that is embedded before searching.
type QueryRequest struct {
	Query  string   `json:"query"`
	K      int      `json:"k,omitempty"`
	DocIDs []string `json:"doc_ids,omitempty"`
}

// Validate ensures the query text is set and normalizes k.
func (r *QueryRequest) Validate() error {
	return r.ValidateLimits(DefaultK, MaxK)
}

// ValidateLimits is Validate with configured k limits.
func (r *QueryRequest) ValidateLimits(defaultK, maxK int) error {
	if strings.TrimSpace(r.Query) == "" {
		return fmt.Errorf("query cannot be empty")
	}
	r.K = clampK(r.K, defaultK, maxK)
	return nil
}

func clampK(k, defaultK, maxK int) int {
	if k <= 0 {
		k = defaultK
	}
	if k > maxK {
		k = maxK
	}
	return k
}
