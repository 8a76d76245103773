package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/edu-admin-console/internal/models"
	"github.com/noah-isme/edu-admin-console/internal/poller"
	"github.com/noah-isme/edu-admin-console/internal/session"
	"github.com/noah-isme/edu-admin-console/pkg/listview"
)

// ViewQuery is one request's filter and paging state for a page.
type ViewQuery struct {
	Criteria            listview.Criteria
	AggregationCriteria listview.Criteria
	Page                int
	PageSize            int
}

// PageResult is the response body of a page view.
type PageResult[T any] struct {
	Items               []T               `json:"items"`
	Criteria            listview.Criteria `json:"criteria"`
	AggregationCriteria listview.Criteria `json:"aggregation_criteria,omitempty"`
	Stats               interface{}       `json:"stats,omitempty"`
	Generation          uint64            `json:"generation"`
	PageReset           bool              `json:"page_reset"`
	Polling             bool              `json:"polling"`
	Pagination          models.Pagination `json:"-"`
}

// pageSpec describes how one page lists, filters and summarises its records.
type pageSpec[T any] struct {
	name     string
	chain    listview.Chain[T]
	aggKeys  []string
	fetch    func(ctx context.Context) ([]T, error)
	stats    func(snap listview.Snapshot[T]) interface{}
	interval time.Duration
	export   exportSpec[T]
}

// PageView is one user's mounted page: its record store, criteria, window
// and, for live pages, the poller keeping it fresh.
type PageView[T any] struct {
	spec    *pageSpec[T]
	view    *listview.View[T]
	sess    func() session.Context
	logger  *zap.Logger
	metrics *MetricsService

	mu     sync.Mutex
	poller *poller.Poller
	closed bool
}

func newPageView[T any](spec *pageSpec[T], perPage int, sess func() session.Context, logger *zap.Logger, metrics *MetricsService) *PageView[T] {
	return &PageView[T]{
		spec:    spec,
		view:    listview.NewView(spec.chain, perPage),
		sess:    sess,
		logger:  logger,
		metrics: metrics,
	}
}

// Name returns the page name.
func (p *PageView[T]) Name() string {
	return p.spec.name
}

// View exposes the underlying list view.
func (p *PageView[T]) View() *listview.View[T] {
	return p.view
}

// Refresh refetches the page with the workspace's current session. A
// response older than one already committed is dropped and reported as not applied.
func (p *PageView[T]) Refresh(ctx context.Context) (bool, error) {
	ctx = session.WithContext(ctx, p.sess())
	return p.view.Refresh(ctx, p.spec.fetch)
}

// refetch adapts Refresh for the dispatcher.
func (p *PageView[T]) refetch(ctx context.Context) error {
	_, err := p.Refresh(ctx)
	return err
}

// Mount performs the initial fetch when the store was never loaded and
// starts polling for live pages.
func (p *PageView[T]) Mount(ctx, background context.Context) error {
	if !p.view.Store().Loaded() {
		if _, err := p.Refresh(ctx); err != nil {
			return err
		}
	}
	p.startPolling(background)
	return nil
}

func (p *PageView[T]) startPolling(background context.Context) {
	if p.spec.interval <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	if p.poller == nil {
		p.poller = poller.New(p.spec.name, p.spec.interval, p.Refresh,
			poller.WithLogger(p.logger), poller.WithObserver(p.metrics))
	}
	p.poller.Start(background)
}

// Polling reports whether a poller is running.
func (p *PageView[T]) Polling() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.poller != nil && p.poller.Running()
}

// Unmount stops polling and waits for any in-flight poll to finish. An
// unmounted page never polls again, even if a request still holding it
// mounts it afterwards.
func (p *PageView[T]) Unmount() {
	p.mu.Lock()
	p.closed = true
	pl := p.poller
	p.mu.Unlock()
	if pl != nil {
		pl.Stop()
	}
}

// Apply installs the query's criteria and window. A criteria change returns
// the view to page 1 and the requested page is ignored.
func (p *PageView[T]) Apply(q ViewQuery) (reset bool) {
	reset = p.view.SetCriteria(q.Criteria)
	if q.AggregationCriteria != nil {
		p.view.SetAggregationCriteria(q.AggregationCriteria)
	}
	if q.PageSize > 0 && q.PageSize != p.view.Window().PerPage {
		p.view.Resize(q.PageSize)
		reset = true
	}
	if !reset && q.Page > 0 {
		p.view.Goto(q.Page)
	}
	return reset
}

// Result snapshots the view into a response.
func (p *PageView[T]) Result(reset bool) PageResult[T] {
	snap := p.view.Snapshot()
	result := PageResult[T]{
		Items:      snap.Items,
		Criteria:   snap.Criteria,
		Generation: uint64(snap.Generation),
		PageReset:  reset,
		Polling:    p.Polling(),
		Pagination: models.Pagination{
			Page:        snap.Page,
			PageSize:    snap.PerPage,
			TotalCount:  snap.TotalItems,
			TotalPages:  snap.TotalPages,
			PageNumbers: snap.PageNumbers,
		},
	}
	if len(p.spec.aggKeys) > 0 {
		result.AggregationCriteria = p.view.AggregationCriteria()
	}
	if p.spec.stats != nil {
		result.Stats = p.spec.stats(snap)
	}
	if result.Items == nil {
		result.Items = []T{}
	}
	return result
}
