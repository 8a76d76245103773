package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-admin-console/internal/apiclient"
	"github.com/noah-isme/edu-admin-console/internal/dispatch"
	"github.com/noah-isme/edu-admin-console/internal/models"
	"github.com/noah-isme/edu-admin-console/internal/service"
)

func displayToken(t *testing.T, role models.UserRole) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &models.JWTClaims{UserID: "cli-user", Role: role})
	signed, err := token.SignedString([]byte("unknown-to-the-cli"))
	require.NoError(t, err)
	return signed
}

func newCLIViews(t *testing.T, handler http.HandlerFunc) *service.ViewService {
	t.Helper()
	upstream := httptest.NewServer(handler)
	t.Cleanup(upstream.Close)

	logr := zap.NewNop()
	api := apiclient.New(upstream.URL, time.Second, apiclient.WithLogger(logr))
	views := service.NewViewService(api, dispatch.NewDispatcher(dispatch.NewMemoryLocker(), logr), nil, nil, nil, service.ViewConfig{PageSize: 10}, logr)
	t.Cleanup(views.Registry().Close)
	return views
}

func TestRunViewPrintsFilteredPayments(t *testing.T) {
	var gotAuth string
	views := newCLIViews(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"success":true,"data":[
			{"id":"p1","student_name":"Asha","final_fees":"1200","approved":false,"created_at":"2024-03-02T10:00:00Z"},
			{"id":"p2","student_name":"Ben","final_fees":900,"approved":true,"created_at":"2024-03-05T10:00:00Z"}
		]}`))
	})
	token := displayToken(t, models.RoleFinance)

	var out bytes.Buffer
	err := runView(context.Background(), &out, views, service.PagePayments, viewOptions{
		token:   token,
		filters: map[string]string{"status": "pending"},
		page:    1,
	}, zap.NewNop())

	require.NoError(t, err)
	assert.Equal(t, "Bearer "+token, gotAuth)

	var printed struct {
		Items      []models.Payment  `json:"items"`
		Pagination models.Pagination `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &printed))
	require.Len(t, printed.Items, 1)
	assert.Equal(t, "p1", printed.Items[0].ID)
	assert.Equal(t, 1, printed.Pagination.TotalCount)
}

func TestRunViewRejectsBadInput(t *testing.T) {
	views := newCLIViews(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":[]}`))
	})
	token := displayToken(t, models.RoleAdmin)

	err := runView(context.Background(), &bytes.Buffer{}, views, "reports", viewOptions{token: token}, zap.NewNop())
	assert.Error(t, err)

	err = runView(context.Background(), &bytes.Buffer{}, views, service.PagePayments, viewOptions{token: token, filters: map[string]string{"colour": "red"}}, zap.NewNop())
	assert.Error(t, err)

	err = runView(context.Background(), &bytes.Buffer{}, views, service.PagePayments, viewOptions{token: token, filters: map[string]string{"start_date": "yesterday"}}, zap.NewNop())
	assert.Error(t, err)

	err = runView(context.Background(), &bytes.Buffer{}, views, service.PagePayments, viewOptions{}, zap.NewNop())
	assert.Error(t, err)
}

func TestRunViewSurfacesForbiddenPage(t *testing.T) {
	views := newCLIViews(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":[]}`))
	})

	err := runView(context.Background(), &bytes.Buffer{}, views, service.PagePayments, viewOptions{token: displayToken(t, models.RoleStudent)}, zap.NewNop())

	assert.Error(t, err)
}
