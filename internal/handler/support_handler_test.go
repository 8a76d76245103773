package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-admin-console/internal/models"
	"github.com/noah-isme/edu-admin-console/internal/repository"
	"github.com/noah-isme/edu-admin-console/internal/service"
)

type fakePreferences struct {
	claims  models.DisplayClaims
	userID  string
	updated models.UpdatePreferencesRequest
}

func (f *fakePreferences) Me(_ context.Context, claims models.DisplayClaims) models.Me {
	f.claims = claims
	return models.Me{Claims: claims, Pages: service.PagesFor(claims.Role)}
}

func (f *fakePreferences) Update(_ context.Context, userID string, req models.UpdatePreferencesRequest) (models.Preferences, error) {
	f.userID = userID
	f.updated = req
	return models.Preferences{SidebarCollapsed: *req.SidebarCollapsed}, nil
}

func TestMeHandlerReturnsPagesForRole(t *testing.T) {
	prefs := &fakePreferences{}
	handler := NewMeHandler(prefs)

	c, rec := newTestContext(http.MethodGet, "/me", nil)
	signIn(c, models.RoleFinance)

	handler.Get(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ops@example.com", prefs.claims.Email)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, []interface{}{"payments", "chat", "states", "batches"}, envelope.Data["pages"])
}

func TestMeHandlerUpdatePreferences(t *testing.T) {
	prefs := &fakePreferences{}
	handler := NewMeHandler(prefs)

	c, rec := newTestContext(http.MethodPut, "/me/preferences", strings.NewReader(`{"sidebar_collapsed":true}`))
	signIn(c, models.RoleTeacher)

	handler.UpdatePreferences(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", prefs.userID)
	assert.Equal(t, true, decodeEnvelope(t, rec).Data["sidebar_collapsed"])
}

type fakeJournal struct {
	filter models.DispatchFilter
	page   string
}

func (f *fakeJournal) List(_ context.Context, filter models.DispatchFilter) ([]models.DispatchEntry, error) {
	f.filter = filter
	return nil, nil
}

func (f *fakeJournal) CountByOutcome(_ context.Context, page string) ([]repository.OutcomeCount, error) {
	f.page = page
	return []repository.OutcomeCount{{Outcome: models.DispatchOutcomeSucceeded, Count: 4}}, nil
}

func TestJournalHandlerListDefaults(t *testing.T) {
	journal := &fakeJournal{}
	handler := NewJournalHandler(journal)

	c, rec := newTestContext(http.MethodGet, "/journal?page=payments&outcome=failed", nil)
	signIn(c, models.RoleAdmin)

	handler.List(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "payments", journal.filter.Page)
	assert.Equal(t, models.DispatchOutcomeFailed, journal.filter.Outcome)
	assert.Equal(t, defaultJournalLimit, journal.filter.Limit)

	var body struct {
		Data []models.DispatchEntry `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotNil(t, body.Data)
}

func TestJournalHandlerCapsLimit(t *testing.T) {
	journal := &fakeJournal{}
	handler := NewJournalHandler(journal)

	c, rec := newTestContext(http.MethodGet, "/journal?limit=10000", nil)
	handler.List(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, maxJournalLimit, journal.filter.Limit)

	c, rec = newTestContext(http.MethodGet, "/journal?limit=abc", nil)
	handler.List(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type fixedCounter int

func (f fixedCounter) Len() int { return int(f) }

func TestMetricsHandlerReadyReportsFailingCheck(t *testing.T) {
	handler := NewMetricsHandler(nil, fixedCounter(2), map[string]Pinger{
		"upstream": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	})

	c, rec := newTestContext(http.MethodGet, "/ready", nil)
	handler.Ready(c)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "ok", body.Checks["upstream"])
	assert.Equal(t, "connection refused", body.Checks["redis"])
}

func TestMetricsHandlerStatusWithoutMetrics(t *testing.T) {
	handler := NewMetricsHandler(nil, fixedCounter(3), nil)

	c, rec := newTestContext(http.MethodGet, "/status", nil)
	handler.Status(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 3, decodeEnvelope(t, rec).Data["workspaces"])

	c, _ = newTestContext(http.MethodGet, "/metrics", nil)
	handler.Prometheus(c)
	assert.Equal(t, http.StatusServiceUnavailable, c.Writer.Status())
}
