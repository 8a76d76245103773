package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/noah-isme/edu-admin-console/internal/dispatch"
	"github.com/noah-isme/edu-admin-console/internal/dto"
	"github.com/noah-isme/edu-admin-console/internal/models"
	"github.com/noah-isme/edu-admin-console/pkg/listview"
)

func markStudent(m models.Mark) (string, bool) { return present(m.StudentName) }
func markRegistration(m models.Mark) (string, bool) { return present(m.RegistrationNumber) }
func markAssessment(m models.Mark) (string, bool) { return present(m.AssessmentTitle) }
func markMonth(m models.Mark) (string, bool) { return monthOf(m.AssessedAt) }
func markYear(m models.Mark) (string, bool) { return yearOf(m.AssessedAt) }
func markPercentage(m models.Mark) (float64, bool) { return m.Percentage() }
func markGraded(m models.Mark) bool {
	_, ok := m.Percentage()
	return ok
}

func (s *ViewService) markSpec() *pageSpec[models.Mark] {
	pass := s.cfg.MarksPassPercentage
	passed := func(m models.Mark) bool {
		pct, ok := m.Percentage()
		return ok && pct >= pass
	}
	return &pageSpec[models.Mark]{
		name: PageMarks,
		chain: listview.NewChain(
			listview.Search("search", markStudent, markRegistration, markAssessment),
			listview.Custom("batch", func(m models.Mark, v string) bool {
				return matchesIDOrName(v, m.BatchID, m.BatchName)
			}),
			listview.Custom("assessment", func(m models.Mark, v string) bool {
				return matchesIDOrName(v, m.AssessmentID, m.AssessmentTitle)
			}),
			listview.Equals("month", markMonth),
			listview.Equals("year", markYear),
		),
		fetch: s.api.ListMarks,
		stats: func(snap listview.Snapshot[models.Mark]) interface{} {
			graded := listview.Summarize(snap.Filtered, markGraded, markPercentage)
			byAssessment := listview.Breakdown(snap.Filtered, markGraded, markAssessment, markPercentage)
			for i := range byAssessment {
				byAssessment[i].Total = listview.Average(byAssessment[i].Total, byAssessment[i].Count)
			}
			return dto.MarkStats{
				AveragePercentage: graded.Average,
				Graded:            graded.Count,
				Passed:            listview.Count(snap.Filtered, passed),
				PassPercentage:    pass,
				ByAssessment:      byAssessment,
			}
		},
		export: exportSpec[models.Mark]{
			title:   "Marks",
			headers: []string{"ID", "Student", "Registration No.", "Batch", "Assessment", "Obtained", "Max", "Percentage", "Assessed At"},
			row: func(m models.Mark) []string {
				pct := ""
				if v, ok := m.Percentage(); ok {
					pct = strconv.FormatFloat(v, 'f', 1, 64)
				}
				return []string{m.ID, m.StudentName, m.RegistrationNumber, m.BatchName, m.AssessmentTitle, m.MarksObtained.String(), m.MaxMarks.String(), pct, m.AssessedAt}
			},
			summary: func(records []models.Mark) []string {
				graded := listview.Summarize(records, markGraded, markPercentage)
				return []string{
					fmt.Sprintf("Graded: %d", graded.Count),
					fmt.Sprintf("Average: %.1f%%", graded.Average),
					fmt.Sprintf("Passed (>= %.0f%%): %d", pass, listview.Count(records, passed)),
				}
			},
		},
	}
}

// Marks opens the marks page.
func (s *ViewService) Marks(ctx context.Context, actor Actor, q ViewQuery) (*PageResult[models.Mark], error) {
	return openPage(ctx, s, actor, PageMarks, func(ws *Workspace) *PageView[models.Mark] { return ws.marks }, q)
}

// UpdateMark corrects a mark. Obtained marks above the maximum are rejected
// before anything is sent upstream.
func (s *ViewService) UpdateMark(ctx context.Context, actor Actor, id string, req models.UpdateMarkRequest) (dispatch.Result, error) {
	if err := authorize(actor, PageMarks); err != nil {
		return dispatch.Result{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dispatch.Result{}, err
	}
	ws := s.registry.Acquire(actor.UserID, actor.Session)
	return dispatchOn(ctx, s, actor, ws.marks, mutation{
		page:     PageMarks,
		action:   "update",
		recordID: id,
		run:      func(ctx context.Context) error { return s.api.UpdateMark(ctx, id, req) },
	}, nil)
}
