package listview

import (
	"context"
	"sync"
)

// Fetcher loads the full record collection for a view.
type Fetcher[T any] func(ctx context.Context) ([]T, error)

// Snapshot is a consistent read of a view: the visible page plus the record
// sets statistics are derived from.
type Snapshot[T any] struct {
	Items       []T         `json:"items"`
	Page        int         `json:"page"`
	PerPage     int         `json:"per_page"`
	TotalItems  int         `json:"total_items"`
	TotalPages  int         `json:"total_pages"`
	PageNumbers []PageToken `json:"page_numbers"`
	Criteria    Criteria    `json:"criteria"`
	Generation  Ticket      `json:"generation"`

	// Filtered holds every record passing the table criteria.
	Filtered []T `json:"-"`
	// Aggregated holds every record passing the aggregation criteria.
	Aggregated []T `json:"-"`
}

// View ties a store to a filter chain, table criteria, an independently
// tracked set of aggregation criteria, and a page window.
type View[T any] struct {
	mu          sync.Mutex
	store       *Store[T]
	chain       Chain[T]
	criteria    Criteria
	aggCriteria Criteria
	window      Window
}

// NewView creates an empty view paging perPage records at a time.
func NewView[T any](chain Chain[T], perPage int) *View[T] {
	return &View[T]{
		store:       NewStore[T](),
		chain:       chain,
		criteria:    Criteria{},
		aggCriteria: Criteria{},
		window:      NewWindow(perPage),
	}
}

// Store exposes the underlying record store.
func (v *View[T]) Store() *Store[T] {
	return v.store
}

// Chain exposes the filter chain.
func (v *View[T]) Chain() Chain[T] {
	return v.chain
}

// Refresh fetches and commits a new record collection. On error the store is
// left untouched. applied is false when a newer fetch already committed.
func (v *View[T]) Refresh(ctx context.Context, fetch Fetcher[T]) (applied bool, err error) {
	ticket := v.store.Begin()
	records, err := fetch(ctx)
	if err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if !v.store.Commit(ticket, records) {
		return false, nil
	}
	v.mu.Lock()
	v.window.Clamp(len(v.chain.Apply(v.store.Records(), v.criteria)))
	v.mu.Unlock()
	return true, nil
}

// SetCriteria replaces the table criteria. When they differ from the current
// ones the window returns to page 1; the return value reports that change.
func (v *View[T]) SetCriteria(c Criteria) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.criteria.Equal(c) {
		return false
	}
	v.criteria = c.Normalized()
	v.window.Reset()
	return true
}

// Criteria returns a copy of the table criteria.
func (v *View[T]) Criteria() Criteria {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.criteria.Clone()
}

// SetAggregationCriteria replaces the criteria used by summary panels. They
// never affect the table or its window.
func (v *View[T]) SetAggregationCriteria(c Criteria) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.aggCriteria = c.Normalized()
}

// AggregationCriteria returns a copy of the aggregation criteria.
func (v *View[T]) AggregationCriteria() Criteria {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.aggCriteria.Clone()
}

// Goto moves the window to page, clamped to the filtered result.
func (v *View[T]) Goto(page int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.window.Goto(page, len(v.chain.Apply(v.store.Records(), v.criteria)))
}

// Resize changes the page size.
func (v *View[T]) Resize(perPage int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.window.Resize(perPage)
}

// Window returns the current page window.
func (v *View[T]) Window() Window {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.window
}

// Snapshot derives the current page and record sets from the store.
func (v *View[T]) Snapshot() Snapshot[T] {
	v.mu.Lock()
	defer v.mu.Unlock()

	records := v.store.Records()
	generation := v.store.Generation()
	filtered := v.chain.Apply(records, v.criteria)
	aggregated := v.chain.Apply(records, v.aggCriteria)

	v.window.Clamp(len(filtered))
	total := TotalPages(len(filtered), v.window.PerPage)

	return Snapshot[T]{
		Items:       Slice(filtered, v.window.Page, v.window.PerPage),
		Page:        v.window.Page,
		PerPage:     v.window.PerPage,
		TotalItems:  len(filtered),
		TotalPages:  total,
		PageNumbers: PageNumbers(v.window.Page, total),
		Criteria:    v.criteria.Clone(),
		Generation:  generation,
		Filtered:    filtered,
		Aggregated:  aggregated,
	}
}
