package pagination

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/url"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/harvestlib/catalog-client/pkg/catalog"
	"github.com/harvestlib/catalog-client/pkg/search"
)

// DefaultStartCursor is the cursor sent when a category has no position
// yet. The server's implicit default has shifted between API revisions, so
// the engine always sends an explicit start rather than relying on it.
const DefaultStartCursor = "*"

// Fetcher is the one client operation the engine needs. *client.Client
// implements it.
type Fetcher interface {
	Get(ctx context.Context, path string, params url.Values) ([]byte, error)
}

// ContainerFunc resolves the record container field for a category when
// decoding responses.
type ContainerFunc func(catalog.Category) string

// PageResult is one page of one category's results.
type PageResult struct {
	// Category identifies which category this page belongs to.
	Category catalog.Category

	// Total is the category's full hit count, not the page length.
	Total int

	// Records are the page's records in server order.
	Records []catalog.Record

	// NextCursor continues the category. Empty means exhausted.
	NextCursor string

	// Facets carries the category's facet block untouched, when present.
	Facets json.RawMessage
}

// Engine drives cursor pagination over a catalogue client. One Engine can
// serve many concurrent iteration sessions; all session state lives in the
// iterators it returns.
type Engine struct {
	fetcher      Fetcher
	containerFor ContainerFunc
	startCursor  string
	logger       zerolog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithContainerFunc overrides how the record container field is resolved
// per category, for deployments whose response layout differs from the
// defaults.
func WithContainerFunc(fn ContainerFunc) Option {
	return func(e *Engine) {
		e.containerFor = fn
	}
}

// WithStartCursor overrides the cursor sent for a category's first page.
// The value is opaque; validate it against the live API before changing it.
func WithStartCursor(cursor string) Option {
	return func(e *Engine) {
		e.startCursor = cursor
	}
}

// New creates a pagination engine over the given client.
func New(fetcher Fetcher, opts ...Option) *Engine {
	e := &Engine{
		fetcher:      fetcher,
		containerFor: catalog.ContainerField,
		startCursor:  DefaultStartCursor,
		logger:       log.With().Str("component", "pagination").Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Page fetches a single page for a single-category spec. The spec's cursor
// is used when set, the engine's start cursor otherwise; the continuation
// cursor comes back on the result for the caller to feed into the next
// spec.
func (e *Engine) Page(ctx context.Context, spec *search.Spec) (*PageResult, error) {
	if len(spec.Categories) != 1 {
		return nil, &search.ValidationError{Field: "category", Message: "page fetch requires exactly one category"}
	}

	result, err := e.fetch(ctx, spec)
	if err != nil {
		return nil, err
	}
	return e.categoryPage(result, spec.Categories[0])
}

// Pages iterates every page of a single-category spec, in order, until the
// category is exhausted. Specs with more than one category are rejected
// with a validation error before any request is made; silently paging just
// the first category would hide a caller bug.
func (e *Engine) Pages(ctx context.Context, spec *search.Spec) iter.Seq2[*PageResult, error] {
	return func(yield func(*PageResult, error) bool) {
		if len(spec.Categories) != 1 {
			yield(nil, &search.ValidationError{Field: "category", Message: "page iteration requires exactly one category"})
			return
		}

		cat := spec.Categories[0]
		cs := newCategoryState(cat, e.resumeCursor(spec, cat))

		for cs.state == StateActive {
			page, err := e.fetchCategory(ctx, spec, cs)
			if err != nil {
				cs.fail()
				yield(nil, err)
				return
			}
			cs.advance(page)
			if !yield(page, nil) {
				return
			}
		}

		e.logger.Debug().
			Str("category", string(cat)).
			Int("records", cs.fetched).
			Int("total", cs.total).
			Msg("Category exhausted")
	}
}

// Records iterates every record of a single-category spec, flattening the
// page sequence.
func (e *Engine) Records(ctx context.Context, spec *search.Spec) iter.Seq2[catalog.Record, error] {
	return func(yield func(catalog.Record, error) bool) {
		for page, err := range e.Pages(ctx, spec) {
			if err != nil {
				yield(nil, err)
				return
			}
			for _, rec := range page.Records {
				if !yield(rec, nil) {
					return
				}
			}
		}
	}
}

// pageOrErr carries one page or one per-category failure over the merge
// channel.
type pageOrErr struct {
	page *PageResult
	err  error
}

// PagesByCategory iterates every page of every category in the spec. The
// first request covers all categories at once; after that each category
// pages to completion on its own goroutine, since one category may exhaust
// long before another. Pages from different categories interleave in
// arrival order; within a category, order is preserved. A category that
// fails yields one error and stops, while the remaining categories keep
// going.
func (e *Engine) PagesByCategory(ctx context.Context, spec *search.Spec) iter.Seq2[*PageResult, error] {
	return func(yield func(*PageResult, error) bool) {
		first, err := e.fetch(ctx, spec)
		if err != nil {
			yield(nil, err)
			return
		}

		e.logger.Debug().
			Int("categories", len(spec.Categories)).
			Msg("Starting multi-category iteration")

		// Every category's first page is yielded before any continuation
		// request is made, in spec order.
		states := make([]*categoryState, 0, len(spec.Categories))
		for _, cat := range spec.Categories {
			cr := first.Category(cat)
			if cr == nil {
				if !yield(nil, fmt.Errorf("category %s: missing from response", cat)) {
					return
				}
				continue
			}
			cs := newCategoryState(cat, e.resumeCursor(spec, cat))
			page := newPageResult(cr)
			cs.advance(page)
			if !yield(page, nil) {
				return
			}
			if cs.state == StateActive {
				states = append(states, cs)
			}
		}
		if len(states) == 0 {
			return
		}

		cctx, cancel := context.WithCancel(ctx)
		defer cancel()

		results := make(chan pageOrErr)
		var wg sync.WaitGroup
		for _, cs := range states {
			wg.Add(1)
			go func(cs *categoryState) {
				defer wg.Done()
				e.driveCategory(cctx, spec, cs, results)
			}(cs)
		}
		go func() {
			wg.Wait()
			close(results)
		}()

		// After the consumer stops, keep draining so the drivers observe
		// the cancel and the channel closes.
		stopped := false
		for item := range results {
			if stopped {
				continue
			}
			if !yield(item.page, item.err) {
				stopped = true
				cancel()
			}
		}
	}
}

// driveCategory pages one category to a terminal state, sending each page
// (or the one failure) over results.
func (e *Engine) driveCategory(ctx context.Context, spec *search.Spec, cs *categoryState, results chan<- pageOrErr) {
	for cs.state == StateActive {
		page, err := e.fetchCategory(ctx, spec, cs)
		if err != nil {
			cs.fail()
			select {
			case results <- pageOrErr{err: fmt.Errorf("category %s: %w", cs.category, err)}:
			case <-ctx.Done():
			}
			return
		}
		cs.advance(page)

		select {
		case results <- pageOrErr{page: page}:
		case <-ctx.Done():
			return
		}
	}

	e.logger.Debug().
		Str("category", string(cs.category)).
		Int("records", cs.fetched).
		Int("total", cs.total).
		Msg("Category exhausted")
}

// fetchCategory requests the next page for one category, using the state's
// current cursor.
func (e *Engine) fetchCategory(ctx context.Context, spec *search.Spec, cs *categoryState) (*PageResult, error) {
	narrowed := spec.ForCategory(cs.category)
	narrowed.Cursors = map[catalog.Category]string{cs.category: cs.cursor}

	result, err := e.fetch(ctx, narrowed)
	if err != nil {
		return nil, err
	}
	return e.categoryPage(result, cs.category)
}

// fetch compiles the spec and performs one search request. Every request
// carries an explicit cursor: when the spec provides none, the engine's
// start cursor is sent rather than leaving the position to the server.
func (e *Engine) fetch(ctx context.Context, spec *search.Spec) (*catalog.SearchResult, error) {
	params, err := spec.Compile()
	if err != nil {
		return nil, err
	}
	if params.Get("s") == "" {
		params.Set("s", e.startCursor)
	}

	body, err := e.fetcher.Get(ctx, catalog.SearchPath, params)
	if err != nil {
		return nil, err
	}

	result, err := catalog.ParseSearchResult(body, e.containerFor)
	if err != nil {
		return nil, fmt.Errorf("parse search response: %w", err)
	}
	return result, nil
}

// categoryPage extracts one category's page from a decoded response.
func (e *Engine) categoryPage(result *catalog.SearchResult, cat catalog.Category) (*PageResult, error) {
	cr := result.Category(cat)
	if cr == nil {
		return nil, fmt.Errorf("category %s: missing from response", cat)
	}
	return newPageResult(cr), nil
}

// resumeCursor picks the first cursor for a category: the spec's stored
// position when the caller is resuming, the engine's start cursor
// otherwise.
func (e *Engine) resumeCursor(spec *search.Spec, cat catalog.Category) string {
	if cursor, ok := spec.Cursors[cat]; ok && cursor != "" {
		return cursor
	}
	return e.startCursor
}

func newPageResult(cr *catalog.CategoryResult) *PageResult {
	return &PageResult{
		Category:   cr.Code,
		Total:      cr.Records.Total,
		Records:    cr.Records.Records,
		NextCursor: cr.Records.Next,
		Facets:     cr.Facets,
	}
}
