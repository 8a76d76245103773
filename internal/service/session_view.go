package service

import (
	"context"
	"fmt"

	"github.com/noah-isme/edu-admin-console/internal/dispatch"
	"github.com/noah-isme/edu-admin-console/internal/dto"
	"github.com/noah-isme/edu-admin-console/internal/models"
	"github.com/noah-isme/edu-admin-console/pkg/listview"
)

func sessionTitle(s models.ClassSession) (string, bool) { return present(s.Title) }
func sessionTeacher(s models.ClassSession) (string, bool) { return present(s.TeacherName) }
func sessionTeacherID(s models.ClassSession) (string, bool) { return present(s.TeacherID) }
func sessionBatch(s models.ClassSession) (string, bool) { return present(s.BatchName) }
func sessionBatchID(s models.ClassSession) (string, bool) { return present(s.BatchID) }
func sessionStatus(s models.ClassSession) (string, bool) { return present(string(s.Status)) }
func sessionScheduled(s models.ClassSession) (string, bool) { return present(s.ScheduledAt) }
func sessionHours(s models.ClassSession) (float64, bool) { return s.Hours() }
func sessionIsScheduled(s models.ClassSession) bool {
	return s.Status == models.SessionStatusScheduled
}

func (s *ViewService) sessionSpec() *pageSpec[models.ClassSession] {
	return &pageSpec[models.ClassSession]{
		name: PageSessions,
		chain: listview.NewChain(
			listview.Search("search", sessionTitle, sessionTeacher, sessionBatch),
			listview.Equals("status", sessionStatus),
			listview.Custom("batch", func(cs models.ClassSession, v string) bool {
				return matchesIDOrName(v, cs.BatchID, cs.BatchName)
			}),
			listview.Custom("teacher", func(cs models.ClassSession, v string) bool {
				return matchesIDOrName(v, cs.TeacherID, cs.TeacherName)
			}),
			listview.DateRange("start_date", "end_date", sessionScheduled),
		),
		fetch:    s.api.ListSessions,
		interval: s.cfg.SessionPollInterval,
		stats: func(snap listview.Snapshot[models.ClassSession]) interface{} {
			return dto.SessionStats{
				ByStatus:       listview.Breakdown(snap.Filtered, nil, sessionStatus, listview.One[models.ClassSession]),
				ScheduledHours: listview.Summarize(snap.Filtered, sessionIsScheduled, sessionHours).Total,
			}
		},
		export: exportSpec[models.ClassSession]{
			title:   "Class Sessions",
			headers: []string{"ID", "Title", "Teacher", "Batch", "Status", "Scheduled At", "Duration (min)"},
			row: func(cs models.ClassSession) []string {
				return []string{cs.ID, cs.Title, cs.TeacherName, cs.BatchName, string(cs.Status), cs.ScheduledAt, cs.DurationMinutes.String()}
			},
			summary: func(records []models.ClassSession) []string {
				hours := listview.Summarize(records, sessionIsScheduled, sessionHours)
				return []string{fmt.Sprintf("Scheduled hours: %.1f", hours.Total)}
			},
		},
	}
}

// matchesIDOrName lets relation filters take either the id or the display name.
func matchesIDOrName(want, id, name string) bool {
	return (id != "" && id == want) || (name != "" && name == want)
}

// Sessions opens the class sessions page. It is polled while mounted.
func (s *ViewService) Sessions(ctx context.Context, actor Actor, q ViewQuery) (*PageResult[models.ClassSession], error) {
	return openPage(ctx, s, actor, PageSessions, func(ws *Workspace) *PageView[models.ClassSession] { return ws.sessions }, q)
}

// CreateSession schedules a class session.
func (s *ViewService) CreateSession(ctx context.Context, actor Actor, req models.CreateSessionRequest) (dispatch.Result, error) {
	if err := authorize(actor, PageSessions); err != nil {
		return dispatch.Result{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dispatch.Result{}, err
	}
	ws := s.registry.Acquire(actor.UserID, actor.Session)
	return dispatchOn(ctx, s, actor, ws.sessions, mutation{
		page:   PageSessions,
		action: "create",
		run:    func(ctx context.Context) error { return s.api.CreateSession(ctx, req) },
	}, nil)
}

// CancelSession cancels a scheduled session once the caller confirmed.
func (s *ViewService) CancelSession(ctx context.Context, actor Actor, id string, req models.CancelSessionRequest, confirmed bool) (dispatch.Result, error) {
	if err := authorize(actor, PageSessions); err != nil {
		return dispatch.Result{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dispatch.Result{}, err
	}
	ws := s.registry.Acquire(actor.UserID, actor.Session)
	return dispatchOn(ctx, s, actor, ws.sessions, mutation{
		page:        PageSessions,
		action:      "cancel",
		recordID:    id,
		destructive: true,
		prompt:      "Cancel this class session?",
		run:         func(ctx context.Context) error { return s.api.CancelSession(ctx, id, req) },
	}, dispatch.Confirmed(confirmed))
}
