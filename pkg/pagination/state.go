package pagination

import (
	"github.com/harvestlib/catalog-client/pkg/catalog"
)

// State tracks where one category's page sequence stands.
type State string

const (
	// StateActive means a cursor is held and more pages are expected.
	StateActive State = "active"

	// StateExhausted means the server returned no next cursor. Terminal.
	StateExhausted State = "exhausted"

	// StateErrored means iteration ended on a non-retryable failure.
	// Terminal.
	StateErrored State = "errored"
)

// Terminal reports whether no further pages can be fetched.
func (s State) Terminal() bool {
	return s == StateExhausted || s == StateErrored
}

// categoryState is the cursor bookkeeping for one category within one
// iteration session. The engine owns it exclusively; it is never shared
// between sessions.
type categoryState struct {
	category catalog.Category
	state    State
	cursor   string
	fetched  int
	total    int
}

func newCategoryState(c catalog.Category, startCursor string) *categoryState {
	return &categoryState{
		category: c,
		state:    StateActive,
		cursor:   startCursor,
	}
}

// advance applies one fetched page: record progress and either store the
// continuation cursor or mark the category exhausted. A server echoing
// back the cursor it was just given would page forever, so a repeated
// cursor counts as exhaustion too.
func (cs *categoryState) advance(page *PageResult) {
	cs.fetched += len(page.Records)
	cs.total = page.Total

	next := page.NextCursor
	if next == "" || next == cs.cursor {
		cs.state = StateExhausted
		return
	}
	cs.cursor = next
}

// fail marks the category terminally errored.
func (cs *categoryState) fail() {
	cs.state = StateErrored
}
