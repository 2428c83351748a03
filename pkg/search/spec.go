// Package search builds catalogue search requests. A Spec captures what a
// caller wants to find in typed fields; Compile validates the combination
// and lowers it to the query parameters the API expects. Validation happens
// entirely before any network traffic, so an impossible spec never costs a
// request token.
package search

import (
	"github.com/harvestlib/catalog-client/pkg/catalog"
)

// MaxPageSize is the largest page size the API accepts.
const MaxPageSize = 100

// Sort selects the result ordering.
type Sort string

const (
	SortRelevance Sort = "relevance"
	SortDateDesc  Sort = "datedesc"
	SortDateAsc   Sort = "dateasc"
)

// RecordLevel selects how much detail each record carries.
type RecordLevel string

const (
	RecordLevelBrief RecordLevel = "brief"
	RecordLevelFull  RecordLevel = "full"
)

// Availability restricts results by how they can be accessed.
type Availability string

const (
	AvailabilityOnline       Availability = "online"
	AvailabilityFree         Availability = "free"
	AvailabilityRestricted   Availability = "restricted"
	AvailabilitySubscription Availability = "subscription"
)

// includable lists the optional record extras the API can attach.
var includable = map[string]struct{}{
	"tags":         {},
	"comments":     {},
	"lists":        {},
	"holdings":     {},
	"links":        {},
	"workversions": {},
	"all":          {},
}

// Spec describes one search. The zero value is not usable: at least one
// category is required. Specs are plain data and safe to copy.
type Spec struct {
	// Categories are the zones to search. Order is preserved on the
	// wire; at least one is required and duplicates are rejected.
	Categories []catalog.Category

	// Query is the free-text query. May be empty for harvests that
	// select purely by category and filters.
	Query string

	// PageSize is the number of records per page. Zero means the server
	// default; values above MaxPageSize are rejected.
	PageSize int

	// Sort selects result ordering. Empty means relevance as decided by
	// the server. Incompatible with BulkHarvest, which fixes ordering
	// by identifier.
	Sort Sort

	// RecordLevel selects brief or full records. Empty means brief.
	RecordLevel RecordLevel

	// Include names record extras to attach (tags, comments, ...).
	Include []string

	// BulkHarvest requests stable identifier ordering for complete
	// harvests of a result set.
	BulkHarvest bool

	// Decade, Year and Month narrow results by date. For the newspaper
	// category the API requires the chain to be anchored: a month needs
	// a year and a year needs a decade.
	Decade string
	Year   string
	Month  string

	// Availability restricts results by access mode.
	Availability Availability

	// Formats and Languages restrict results by their catalogued format
	// and language. Multiple values widen the filter.
	Formats   []string
	Languages []string

	// RawFilters are extra parameters passed through verbatim, an
	// escape hatch for filters this package has no typed field for.
	// Values here bypass validation.
	RawFilters map[string][]string

	// Cursors resumes iteration from known positions, keyed by
	// category. Only valid on single-category specs; the pagination
	// engine fills it when continuing a category.
	Cursors map[catalog.Category]string
}

// ForCategory returns a copy of the spec narrowed to a single category,
// keeping any cursor known for it. The pagination engine uses this to
// continue one category of a multi-category search.
func (s *Spec) ForCategory(c catalog.Category) *Spec {
	narrowed := *s
	narrowed.Categories = []catalog.Category{c}
	narrowed.Cursors = nil
	if cur, ok := s.Cursors[c]; ok {
		narrowed.Cursors = map[catalog.Category]string{c: cur}
	}
	return &narrowed
}
