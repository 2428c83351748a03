package catalog

import (
	"encoding/json"
	"fmt"
)

// Record is a single catalogue record, kept as raw JSON. Record shapes vary
// widely between categories and record levels, so the client does not force
// a schema on them; callers unmarshal into their own types when needed.
type Record []byte

// UnmarshalJSON stores data verbatim.
func (r *Record) UnmarshalJSON(data []byte) error {
	if r == nil {
		return fmt.Errorf("catalog: UnmarshalJSON on nil Record")
	}
	*r = append((*r)[0:0], data...)
	return nil
}

// MarshalJSON returns the stored bytes unchanged.
func (r Record) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}
	return r, nil
}

// Status returns the record's ingestion status, or "" when the record does
// not carry one. Only a minimal probe is decoded.
func (r Record) Status() string {
	var probe struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(r, &probe); err != nil {
		return ""
	}
	return probe.Status
}

// RecordSet is the paging window of one category within a search response:
// the cursor the window started at, the window size, the category's total
// hit count, the continuation cursor (empty when the category is exhausted)
// and the records themselves.
type RecordSet struct {
	Start    string
	PageSize int
	Total    int
	Next     string
	Records  []Record
}

// CategoryResult is the slice of a search response belonging to one
// category. Facets are passed through untouched.
type CategoryResult struct {
	Code    Category
	Records RecordSet
	Facets  json.RawMessage
}

// SearchResult is a decoded search response.
type SearchResult struct {
	Query      string
	Categories []CategoryResult
}

// Category returns the result slice for the given category code, or nil
// when the response does not contain it.
func (r *SearchResult) Category(code Category) *CategoryResult {
	for i := range r.Categories {
		if r.Categories[i].Code == code {
			return &r.Categories[i]
		}
	}
	return nil
}

// HasPending reports whether any record in the response is still pending
// ingestion.
func (r *SearchResult) HasPending() bool {
	for _, c := range r.Categories {
		for _, rec := range c.Records.Records {
			if rec.Status() == StatusPending {
				return true
			}
		}
	}
	return false
}

// MinTotal returns the smallest per-category total in the response. It
// returns 0 for a response without categories.
func (r *SearchResult) MinTotal() int {
	if len(r.Categories) == 0 {
		return 0
	}
	min := r.Categories[0].Records.Total
	for _, c := range r.Categories[1:] {
		if c.Records.Total < min {
			min = c.Records.Total
		}
	}
	return min
}

// searchEnvelope mirrors the raw response shape. The records object is kept
// as a field map because the record array lives under a category-dependent
// field name.
type searchEnvelope struct {
	Query    string `json:"query"`
	Category []struct {
		Code    Category                   `json:"code"`
		Records map[string]json.RawMessage `json:"records"`
		Facets  json.RawMessage            `json:"facets"`
	} `json:"category"`
}

// ParseSearchResult decodes a search response body. containerFor resolves
// the record container field per category; pass nil to use ContainerField.
func ParseSearchResult(data []byte, containerFor func(Category) string) (*SearchResult, error) {
	if containerFor == nil {
		containerFor = ContainerField
	}

	var env searchEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	result := &SearchResult{
		Query:      env.Query,
		Categories: make([]CategoryResult, 0, len(env.Category)),
	}
	for _, c := range env.Category {
		set, err := decodeRecordSet(c.Records, containerFor(c.Code))
		if err != nil {
			return nil, fmt.Errorf("decode category %q: %w", c.Code, err)
		}
		result.Categories = append(result.Categories, CategoryResult{
			Code:    c.Code,
			Records: set,
			Facets:  c.Facets,
		})
	}
	return result, nil
}

func decodeRecordSet(fields map[string]json.RawMessage, container string) (RecordSet, error) {
	var set RecordSet
	if fields == nil {
		return set, nil
	}
	if raw, ok := fields["s"]; ok {
		if err := json.Unmarshal(raw, &set.Start); err != nil {
			return set, fmt.Errorf("field s: %w", err)
		}
	}
	if raw, ok := fields["n"]; ok {
		if err := json.Unmarshal(raw, &set.PageSize); err != nil {
			return set, fmt.Errorf("field n: %w", err)
		}
	}
	if raw, ok := fields["total"]; ok {
		if err := json.Unmarshal(raw, &set.Total); err != nil {
			return set, fmt.Errorf("field total: %w", err)
		}
	}
	if raw, ok := fields["next"]; ok {
		if err := json.Unmarshal(raw, &set.Next); err != nil {
			return set, fmt.Errorf("field next: %w", err)
		}
	}
	// Categories with no hits may omit the container field entirely.
	if raw, ok := fields[container]; ok {
		if err := json.Unmarshal(raw, &set.Records); err != nil {
			return set, fmt.Errorf("field %s: %w", container, err)
		}
	}
	return set, nil
}

// ErrorBody is the JSON envelope the API attaches to non-2xx responses.
type ErrorBody struct {
	StatusCode  int    `json:"statusCode"`
	StatusText  string `json:"statusText"`
	Description string `json:"description"`
}

// ParseErrorBody decodes an error envelope. A body that is not valid JSON
// or carries no status yields ok=false; callers then fall back to the HTTP
// status line alone.
func ParseErrorBody(data []byte) (ErrorBody, bool) {
	var body ErrorBody
	if err := json.Unmarshal(data, &body); err != nil {
		return ErrorBody{}, false
	}
	if body.StatusCode == 0 && body.StatusText == "" && body.Description == "" {
		return ErrorBody{}, false
	}
	return body, true
}
