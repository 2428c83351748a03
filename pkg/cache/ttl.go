package cache

import (
	"time"

	"github.com/harvestlib/catalog-client/pkg/catalog"
)

// TTL tier defaults. Search pages turn over as the catalogue is updated,
// sparse results often grow shortly after an announcement, pending records
// change status within minutes, while bulk harvest pages and individual
// records are effectively snapshots.
const (
	DefaultSearchTTL       = 10 * time.Minute
	DefaultSparseTTL       = 2 * time.Minute
	DefaultPendingTTL      = 30 * time.Second
	DefaultHarvestTTL      = 6 * time.Hour
	DefaultRecordTTL       = 24 * time.Hour
	DefaultSparseThreshold = 5
)

// TTLPolicy assigns a TTL to a response based on what the response
// contains, not on transport headers. The zero value disables caching for
// everything; use DefaultTTLPolicy for sensible tiers.
type TTLPolicy struct {
	// Search is the baseline TTL for search result pages.
	Search time.Duration

	// Sparse applies when some category's total is below SparseThreshold.
	Sparse time.Duration

	// Pending applies when any record in the response is still pending
	// ingestion. It overrides every other tier.
	Pending time.Duration

	// Harvest applies to bulk harvest pages, which iterate a stable
	// snapshot and can live much longer.
	Harvest time.Duration

	// Record applies to non-search paths (single record lookups).
	Record time.Duration

	// SparseThreshold is the total below which a category counts as
	// sparse.
	SparseThreshold int
}

// DefaultTTLPolicy returns the default tiers.
func DefaultTTLPolicy() TTLPolicy {
	return TTLPolicy{
		Search:          DefaultSearchTTL,
		Sparse:          DefaultSparseTTL,
		Pending:         DefaultPendingTTL,
		Harvest:         DefaultHarvestTTL,
		Record:          DefaultRecordTTL,
		SparseThreshold: DefaultSparseThreshold,
	}
}

// For picks the TTL for a response body received from path. bulkHarvest
// marks requests made with the bulk harvest flag. Bodies that fail to
// decode as search results fall back to the baseline tier.
func (p TTLPolicy) For(path string, body []byte, bulkHarvest bool) time.Duration {
	if path != catalog.SearchPath {
		return p.Record
	}

	result, err := catalog.ParseSearchResult(body, nil)
	if err != nil {
		return p.Search
	}

	if result.HasPending() {
		return p.Pending
	}
	if bulkHarvest {
		return p.Harvest
	}
	if len(result.Categories) > 0 && result.MinTotal() < p.SparseThreshold {
		return p.Sparse
	}
	return p.Search
}
