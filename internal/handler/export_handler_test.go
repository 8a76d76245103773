package handler

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-admin-console/internal/models"
	"github.com/noah-isme/edu-admin-console/internal/service"
	appErrors "github.com/noah-isme/edu-admin-console/pkg/errors"
	"github.com/noah-isme/edu-admin-console/pkg/listview"
)

type fakeExports struct {
	page     string
	format   models.ExportFormat
	criteria listview.Criteria
	job      *models.ExportJob
	err      error
	token    string
}

func (f *fakeExports) Create(_ context.Context, _ service.Actor, page string, req models.CreateExportRequest, criteria listview.Criteria) (*models.ExportJob, error) {
	f.page = page
	f.format = req.Format
	f.criteria = criteria
	return f.job, f.err
}

func (f *fakeExports) Get(service.Actor, string) (*models.ExportJob, error) {
	return f.job, f.err
}

func (f *fakeExports) ResolveDownload(_ service.Actor, token string) (*service.ExportDownload, error) {
	f.token = token
	return nil, f.err
}

func TestExportHandlerCreateQueuesFilteredExport(t *testing.T) {
	exports := &fakeExports{job: &models.ExportJob{
		ID:        "job-1",
		Page:      service.PagePayments,
		Format:    models.ExportFormatCSV,
		Status:    models.ExportStatusQueued,
		CreatedAt: time.Now(),
	}}
	handler := NewExportHandler(exports, &fakeViews{})

	c, rec := newTestContext(http.MethodPost, "/views/payments/exports?status=approved&month=2", strings.NewReader(`{"format":"csv"}`))
	c.Params = gin.Params{{Key: "page", Value: service.PagePayments}}
	signIn(c, models.RoleFinance)

	handler.Create(c)

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, service.PagePayments, exports.page)
	assert.Equal(t, models.ExportFormatCSV, exports.format)
	assert.Equal(t, listview.Criteria{"status": "approved"}, exports.criteria)

	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, "job-1", envelope.Data["id"])
	assert.Equal(t, "QUEUED", envelope.Data["status"])
}

func TestExportHandlerCreateUnknownPage(t *testing.T) {
	handler := NewExportHandler(&fakeExports{}, &fakeViews{})

	c, rec := newTestContext(http.MethodPost, "/views/reports/exports", strings.NewReader(`{"format":"csv"}`))
	c.Params = gin.Params{{Key: "page", Value: "reports"}}
	signIn(c, models.RoleAdmin)

	handler.Create(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExportHandlerDownloadRequiresToken(t *testing.T) {
	exports := &fakeExports{}
	handler := NewExportHandler(exports, &fakeViews{})

	c, rec := newTestContext(http.MethodGet, "/exports/download", nil)
	signIn(c, models.RoleAdmin)

	handler.Download(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, exports.token)
}

func TestExportHandlerDownloadForbidden(t *testing.T) {
	exports := &fakeExports{err: appErrors.Clone(appErrors.ErrForbidden, "invalid download token")}
	handler := NewExportHandler(exports, &fakeViews{})

	c, rec := newTestContext(http.MethodGet, "/exports/download?token=abc", nil)
	signIn(c, models.RoleAdmin)

	handler.Download(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "abc", exports.token)
}
