package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-admin-console/internal/dispatch"
	"github.com/noah-isme/edu-admin-console/internal/middleware"
	"github.com/noah-isme/edu-admin-console/internal/models"
	"github.com/noah-isme/edu-admin-console/internal/service"
	"github.com/noah-isme/edu-admin-console/internal/session"
	appErrors "github.com/noah-isme/edu-admin-console/pkg/errors"
)

type responseEnvelope struct {
	Data       map[string]interface{} `json:"data"`
	Error      map[string]interface{} `json:"error"`
	Pagination map[string]interface{} `json:"pagination"`
	Meta       map[string]interface{} `json:"meta"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) responseEnvelope {
	t.Helper()
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}

func newTestContext(method, target string, body io.Reader) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.Request = req
	return c, rec
}

func signIn(c *gin.Context, role models.UserRole) {
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: role, Email: "ops@example.com", FullName: "Ops"})
	c.Request = c.Request.WithContext(session.WithContext(c.Request.Context(), session.Context{Token: "tok-1"}))
}

type fakeViews struct {
	viewService

	lastActor     service.Actor
	lastQuery     service.ViewQuery
	payments      *service.PageResult[models.Payment]
	err           error
	confirmed     bool
	forcePhrase   string
	forceCalled   bool
	mutation      dispatch.Result
	refreshedPage string
	closed        bool
}

func (f *fakeViews) FilterKeys(page string) ([]string, []string, bool) {
	switch page {
	case service.PagePayments:
		return []string{"batch", "course", "end_date", "search", "start_date", "status"}, []string{"batch", "course"}, true
	case service.PageUsers:
		return []string{"role", "search"}, nil, true
	}
	return nil, nil, false
}

func (f *fakeViews) Payments(_ context.Context, actor service.Actor, q service.ViewQuery) (*service.PageResult[models.Payment], error) {
	f.lastActor = actor
	f.lastQuery = q
	return f.payments, f.err
}

func (f *fakeViews) RefreshPage(_ context.Context, _ service.Actor, page string) (bool, error) {
	f.refreshedPage = page
	return true, f.err
}

func (f *fakeViews) CloseWorkspace(service.Actor) bool {
	f.closed = true
	return true
}

func (f *fakeViews) ApprovePayment(_ context.Context, _ service.Actor, _ string, confirmed bool) (dispatch.Result, error) {
	f.confirmed = confirmed
	if !confirmed {
		return dispatch.Result{}, appErrors.ErrConfirmationRequired
	}
	return f.mutation, f.err
}

func (f *fakeViews) DeleteUser(_ context.Context, _ service.Actor, _ string, confirmed bool) (dispatch.Result, error) {
	f.confirmed = confirmed
	return f.mutation, f.err
}

func (f *fakeViews) ForceDeleteUser(_ context.Context, _ service.Actor, _ string, phrase string) (dispatch.Result, error) {
	f.forceCalled = true
	f.forcePhrase = phrase
	return f.mutation, f.err
}

func (f *fakeViews) SendChatMessage(context.Context, service.Actor, models.SendChatMessageRequest) (dispatch.Result, error) {
	return f.mutation, f.err
}

func TestViewHandlerPaymentsParsesCriteria(t *testing.T) {
	views := &fakeViews{payments: &service.PageResult[models.Payment]{
		Items:      []models.Payment{{ID: "p1"}},
		Generation: 3,
		Pagination: models.Pagination{Page: 2, PageSize: 5, TotalCount: 7, TotalPages: 2},
	}}
	handler := NewViewHandler(views)

	c, rec := newTestContext(http.MethodGet, "/views/payments?status=pending&agg_course=Maths&start_date=2024-01-01&page=2&page_size=5&unknown=x", nil)
	signIn(c, models.RoleFinance)

	handler.Payments(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", views.lastActor.UserID)
	assert.Equal(t, "tok-1", views.lastActor.Session.Token)
	assert.Equal(t, "pending", views.lastQuery.Criteria["status"])
	assert.Equal(t, "2024-01-01", views.lastQuery.Criteria["start_date"])
	assert.NotContains(t, views.lastQuery.Criteria, "unknown")
	assert.NotContains(t, views.lastQuery.Criteria, "course")
	assert.Equal(t, "Maths", views.lastQuery.AggregationCriteria["course"])
	assert.Equal(t, 2, views.lastQuery.Page)
	assert.Equal(t, 5, views.lastQuery.PageSize)

	envelope := decodeEnvelope(t, rec)
	assert.EqualValues(t, 7, envelope.Pagination["total_count"])
	assert.EqualValues(t, 3, envelope.Meta["generation"])
	assert.Len(t, envelope.Data["items"], 1)
}

func TestViewHandlerRejectsBadDateBound(t *testing.T) {
	views := &fakeViews{}
	handler := NewViewHandler(views)

	c, rec := newTestContext(http.MethodGet, "/views/payments?end_date=31/31/2024", nil)
	signIn(c, models.RoleAdmin)

	handler.Payments(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, views.lastQuery.Criteria)
	envelope := decodeEnvelope(t, rec)
	assert.Contains(t, envelope.Meta, "end_date")
}

func TestViewHandlerRejectsBadPage(t *testing.T) {
	handler := NewViewHandler(&fakeViews{})

	c, rec := newTestContext(http.MethodGet, "/views/payments?page=0", nil)
	signIn(c, models.RoleAdmin)

	handler.Payments(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestViewHandlerRequiresClaims(t *testing.T) {
	handler := NewViewHandler(&fakeViews{})

	c, rec := newTestContext(http.MethodGet, "/views/payments", nil)

	handler.Payments(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestViewHandlerSurfacesServiceError(t *testing.T) {
	handler := NewViewHandler(&fakeViews{err: appErrors.Clone(appErrors.ErrForbidden, "role cannot open payments")})

	c, rec := newTestContext(http.MethodGet, "/views/payments", nil)
	signIn(c, models.RoleTeacher)

	handler.Payments(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, "role cannot open payments", envelope.Error["message"])
}

func TestViewHandlerApproveNeedsConfirm(t *testing.T) {
	views := &fakeViews{mutation: dispatch.Result{Refreshed: true}}
	handler := NewViewHandler(views)

	c, rec := newTestContext(http.MethodPost, "/views/payments/p1/approve", nil)
	c.Params = gin.Params{{Key: "id", Value: "p1"}}
	signIn(c, models.RoleFinance)
	handler.ApprovePayment(c)
	assert.Equal(t, http.StatusPreconditionRequired, rec.Code)

	c, rec = newTestContext(http.MethodPost, "/views/payments/p1/approve?confirm=true", nil)
	c.Params = gin.Params{{Key: "id", Value: "p1"}}
	signIn(c, models.RoleFinance)
	handler.ApprovePayment(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, views.confirmed)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, "approve", envelope.Data["action"])
	assert.Equal(t, "p1", envelope.Data["record_id"])
	assert.Equal(t, true, envelope.Data["refreshed"])
}

func TestViewHandlerForceDeleteBindsPhrase(t *testing.T) {
	views := &fakeViews{}
	handler := NewViewHandler(views)

	c, rec := newTestContext(http.MethodDelete, "/views/users/u9?force=true", strings.NewReader(`{"confirmation_text":"DELETE"}`))
	c.Params = gin.Params{{Key: "id", Value: "u9"}}
	signIn(c, models.RoleAdmin)

	handler.DeleteUser(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, views.forceCalled)
	assert.Equal(t, "DELETE", views.forcePhrase)
}

func TestViewHandlerPlainDeleteConflict(t *testing.T) {
	views := &fakeViews{err: appErrors.ErrReferenceConflict}
	handler := NewViewHandler(views)

	c, rec := newTestContext(http.MethodDelete, "/views/users/u9?confirm=1", nil)
	c.Params = gin.Params{{Key: "id", Value: "u9"}}
	signIn(c, models.RoleAdmin)

	handler.DeleteUser(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.True(t, views.confirmed)
	assert.False(t, views.forceCalled)
}

func TestViewHandlerMutationReportsRefetchFailure(t *testing.T) {
	views := &fakeViews{mutation: dispatch.Result{Refreshed: false, RefetchErr: appErrors.Clone(appErrors.ErrNetwork, "platform unreachable")}}
	handler := NewViewHandler(views)

	c, rec := newTestContext(http.MethodPost, "/views/chat", strings.NewReader(`{"batch_id":"b1","message":"hello"}`))
	signIn(c, models.RoleTeacher)

	handler.SendChatMessage(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, false, envelope.Data["refreshed"])
	assert.Equal(t, "platform unreachable", envelope.Data["refetch_error"])
}

func TestViewHandlerRejectsMalformedBody(t *testing.T) {
	handler := NewViewHandler(&fakeViews{})

	c, rec := newTestContext(http.MethodPost, "/views/chat", strings.NewReader(`{"batch_id":`))
	signIn(c, models.RoleTeacher)

	handler.SendChatMessage(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestViewHandlerRefreshAndClose(t *testing.T) {
	views := &fakeViews{}
	handler := NewViewHandler(views)

	c, rec := newTestContext(http.MethodPost, "/views/batches/refresh", nil)
	c.Params = gin.Params{{Key: "page", Value: service.PageBatches}}
	signIn(c, models.RoleAdmin)
	handler.Refresh(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, service.PageBatches, views.refreshedPage)
	assert.Equal(t, true, decodeEnvelope(t, rec).Data["applied"])

	c, _ = newTestContext(http.MethodDelete, "/views", nil)
	signIn(c, models.RoleAdmin)
	handler.Close(c)

	assert.True(t, views.closed)
	assert.Equal(t, http.StatusNoContent, c.Writer.Status())
}
