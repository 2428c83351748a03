package search

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/harvestlib/catalog-client/pkg/catalog"
)

// ValidationError reports a spec that cannot be compiled. Field names the
// offending spec field in wire form where one exists.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid search spec: %s: %s", e.Field, e.Message)
}

// Compile validates the spec and lowers it to query parameters. The result
// is deterministic: compiling the same spec twice yields identical values,
// which keeps cache keys stable.
func (s *Spec) Compile() (url.Values, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("q", s.Query)

	cats := make([]string, len(s.Categories))
	for i, c := range s.Categories {
		cats[i] = c.String()
	}
	params.Set("category", strings.Join(cats, ","))

	if s.PageSize > 0 {
		params.Set("n", strconv.Itoa(s.PageSize))
	}
	if s.Sort != "" {
		params.Set("sortby", string(s.Sort))
	}
	if s.RecordLevel != "" {
		params.Set("reclevel", string(s.RecordLevel))
	}
	if len(s.Include) > 0 {
		params.Set("include", strings.Join(s.Include, ","))
	}
	if s.BulkHarvest {
		params.Set("bulkHarvest", "true")
	}

	if s.Decade != "" {
		params.Set("l-decade", s.Decade)
	}
	if s.Year != "" {
		params.Set("l-year", s.Year)
	}
	if s.Month != "" {
		params.Set("l-month", s.Month)
	}
	if s.Availability != "" {
		params.Set("l-availability", string(s.Availability))
	}
	for _, f := range s.Formats {
		params.Add("l-format", f)
	}
	for _, l := range s.Languages {
		params.Add("l-language", l)
	}

	for name, values := range s.RawFilters {
		for _, v := range values {
			params.Add(name, v)
		}
	}

	if len(s.Categories) == 1 {
		if cursor := s.Cursors[s.Categories[0]]; cursor != "" {
			params.Set("s", cursor)
		}
	}

	return params, nil
}

func (s *Spec) validate() error {
	if len(s.Categories) == 0 {
		return &ValidationError{Field: "category", Message: "at least one category is required"}
	}

	seen := make(map[catalog.Category]struct{}, len(s.Categories))
	hasNewspaper := false
	for _, c := range s.Categories {
		if !c.Valid() {
			return &ValidationError{Field: "category", Message: fmt.Sprintf("unknown category %q", c)}
		}
		if _, dup := seen[c]; dup {
			return &ValidationError{Field: "category", Message: fmt.Sprintf("duplicate category %q", c)}
		}
		seen[c] = struct{}{}
		if c == catalog.CategoryNewspaper {
			hasNewspaper = true
		}
	}

	if len(s.Categories) > 1 && len(s.Cursors) > 0 {
		return &ValidationError{Field: "s", Message: "cursor continuation requires a single category"}
	}

	if s.PageSize < 0 {
		return &ValidationError{Field: "n", Message: "page size cannot be negative"}
	}
	if s.PageSize > MaxPageSize {
		return &ValidationError{Field: "n", Message: fmt.Sprintf("page size %d exceeds maximum %d", s.PageSize, MaxPageSize)}
	}

	switch s.Sort {
	case "", SortRelevance, SortDateDesc, SortDateAsc:
	default:
		return &ValidationError{Field: "sortby", Message: fmt.Sprintf("unknown sort order %q", s.Sort)}
	}
	if s.BulkHarvest && s.Sort != "" {
		return &ValidationError{Field: "sortby", Message: "sort order cannot be combined with bulk harvest"}
	}

	switch s.RecordLevel {
	case "", RecordLevelBrief, RecordLevelFull:
	default:
		return &ValidationError{Field: "reclevel", Message: fmt.Sprintf("unknown record level %q", s.RecordLevel)}
	}

	switch s.Availability {
	case "", AvailabilityOnline, AvailabilityFree, AvailabilityRestricted, AvailabilitySubscription:
	default:
		return &ValidationError{Field: "l-availability", Message: fmt.Sprintf("unknown availability %q", s.Availability)}
	}

	for _, inc := range s.Include {
		if _, ok := includable[inc]; !ok {
			return &ValidationError{Field: "include", Message: fmt.Sprintf("unknown include %q", inc)}
		}
	}

	if err := s.validateDates(hasNewspaper); err != nil {
		return err
	}

	return nil
}

// validateDates checks the date filter chain. The newspaper category
// indexes articles by issue date, so partial chains (a month with no year)
// would select nothing while still costing a request.
func (s *Spec) validateDates(hasNewspaper bool) error {
	if s.Decade != "" && !isDigits(s.Decade, 3) {
		return &ValidationError{Field: "l-decade", Message: fmt.Sprintf("decade must be three digits (e.g. 190 for the 1900s), got %q", s.Decade)}
	}
	if s.Year != "" && !isDigits(s.Year, 4) {
		return &ValidationError{Field: "l-year", Message: fmt.Sprintf("year must be four digits, got %q", s.Year)}
	}
	if s.Month != "" {
		m, err := strconv.Atoi(s.Month)
		if err != nil || m < 1 || m > 12 {
			return &ValidationError{Field: "l-month", Message: fmt.Sprintf("month must be 1-12, got %q", s.Month)}
		}
	}

	if hasNewspaper {
		if s.Month != "" && s.Year == "" {
			return &ValidationError{Field: "l-month", Message: "month filter requires a year filter for newspaper searches"}
		}
		if s.Year != "" && s.Decade == "" {
			return &ValidationError{Field: "l-year", Message: "year filter requires a decade filter for newspaper searches"}
		}
	}
	return nil
}

func isDigits(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
