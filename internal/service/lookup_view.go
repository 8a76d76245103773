package service

import (
	"context"

	"github.com/noah-isme/edu-admin-console/internal/models"
	"github.com/noah-isme/edu-admin-console/pkg/listview"
)

func cachedFetch[T any](s *ViewService, page string, load func(ctx context.Context) ([]T, error)) func(ctx context.Context) ([]T, error) {
	return func(ctx context.Context) ([]T, error) {
		return cachedLookup(ctx, s.cache, page, load)
	}
}

func stateName(st models.State) (string, bool) { return present(st.Name) }
func stateCode(st models.State) (string, bool) { return present(st.Code) }
func stateStatus(st models.State) (string, bool) {
	if st.IsActive {
		return models.UserStatusActive, true
	}
	return models.UserStatusInactive, true
}

func (s *ViewService) stateSpec() *pageSpec[models.State] {
	return &pageSpec[models.State]{
		name: PageStates,
		chain: listview.NewChain(
			listview.Search("search", stateName, stateCode),
			listview.Equals("status", stateStatus),
		),
		fetch: cachedFetch(s, PageStates, s.api.ListStates),
		export: exportSpec[models.State]{
			title:   "States",
			headers: []string{"ID", "Name", "Code", "Active"},
			row: func(st models.State) []string {
				return []string{st.ID, st.Name, st.Code, formatBool(st.IsActive)}
			},
		},
	}
}

func batchName(b models.Batch) (string, bool) { return present(b.Name) }
func batchCourse(b models.Batch) (string, bool) { return present(b.CourseName) }
func batchStart(b models.Batch) (string, bool) { return present(b.StartDate) }

func (s *ViewService) batchSpec() *pageSpec[models.Batch] {
	return &pageSpec[models.Batch]{
		name: PageBatches,
		chain: listview.NewChain(
			listview.Search("search", batchName, batchCourse),
			listview.Equals("course", batchCourse),
			listview.DateRange("start_date", "end_date", batchStart),
		),
		fetch: cachedFetch(s, PageBatches, s.api.ListBatches),
		export: exportSpec[models.Batch]{
			title:   "Batches",
			headers: []string{"ID", "Name", "Course", "Start", "End", "Students", "Active"},
			row: func(b models.Batch) []string {
				return []string{b.ID, b.Name, b.CourseName, b.StartDate, b.EndDate, b.StudentCount.String(), formatBool(b.IsActive)}
			},
		},
	}
}

// States opens the states lookup.
func (s *ViewService) States(ctx context.Context, actor Actor, q ViewQuery) (*PageResult[models.State], error) {
	return openPage(ctx, s, actor, PageStates, func(ws *Workspace) *PageView[models.State] { return ws.states }, q)
}

// Batches opens the batches lookup.
func (s *ViewService) Batches(ctx context.Context, actor Actor, q ViewQuery) (*PageResult[models.Batch], error) {
	return openPage(ctx, s, actor, PageBatches, func(ws *Workspace) *PageView[models.Batch] { return ws.batches }, q)
}
