// Package cms is a client for a Prismic-style headless content backend: it
// resolves the master ref, runs predicate queries, looks documents up by UID
// and follows the opaque next_page URLs returned with paginated results.
package cms

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned when no document matches a lookup.
var ErrNotFound = errors.New("cms: document not found")

// StatusError reports a non-2xx response from the backend.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("cms: %s returned status %d", e.URL, e.Code)
}

// Document is a raw backend document. Data holds the custom type's fields and
// is decoded by the caller.
type Document struct {
	ID                   string          `json:"id"`
	UID                  string          `json:"uid,omitempty"`
	Type                 string          `json:"type"`
	Href                 string          `json:"href,omitempty"`
	Tags                 []string        `json:"tags,omitempty"`
	FirstPublicationDate *string         `json:"first_publication_date"`
	LastPublicationDate  *string         `json:"last_publication_date"`
	Lang                 string          `json:"lang,omitempty"`
	Data                 json.RawMessage `json:"data"`
}

// SearchResponse is one page of query results.
type SearchResponse struct {
	Page             int        `json:"page"`
	ResultsPerPage   int        `json:"results_per_page"`
	ResultsSize      int        `json:"results_size"`
	TotalResultsSize int        `json:"total_results_size"`
	TotalPages       int        `json:"total_pages"`
	NextPage         *string    `json:"next_page"`
	PrevPage         *string    `json:"prev_page"`
	Results          []Document `json:"results"`
}

// Next returns the next page URL, or "" on the last page.
func (r SearchResponse) Next() string {
	if r.NextPage == nil {
		return ""
	}
	return *r.NextPage
}

// Ref is a content release pointer advertised by the API root.
type Ref struct {
	ID          string `json:"id"`
	Ref         string `json:"ref"`
	Label       string `json:"label"`
	IsMasterRef bool   `json:"isMasterRef"`
}

type apiRoot struct {
	Refs []Ref `json:"refs"`
}

// QueryOptions controls which fields are returned and how many per page.
type QueryOptions struct {
	Fetch     []string
	PageSize  int
	Page      int
	Orderings string
}
