package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-admin-console/internal/models"
	appErrors "github.com/noah-isme/edu-admin-console/pkg/errors"
	"github.com/noah-isme/edu-admin-console/pkg/export"
	"github.com/noah-isme/edu-admin-console/pkg/jobs"
	"github.com/noah-isme/edu-admin-console/pkg/listview"
	"github.com/noah-isme/edu-admin-console/pkg/storage"
)

func newExportServiceForTest(t *testing.T, source datasetSource) *ExportService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	svc := NewExportService(source, store, signer, ExportConfig{
		APIPrefix: "/api/v1",
		ResultTTL: time.Hour,
		Queue:     jobs.QueueConfig{Workers: 1, BufferSize: 4, MaxRetries: 1, RetryDelay: time.Millisecond},
	}, nil, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	svc.Start(ctx)
	t.Cleanup(func() {
		svc.Stop()
		cancel()
	})
	return svc
}

func waitForExport(t *testing.T, svc *ExportService, actor Actor, id string) *models.ExportJob {
	t.Helper()
	var job *models.ExportJob
	require.Eventually(t, func() bool {
		current, err := svc.Get(actor, id)
		if err != nil {
			return false
		}
		job = current
		return job.Status == models.ExportStatusFinished || job.Status == models.ExportStatusFailed
	}, 2*time.Second, 10*time.Millisecond)
	return job
}

func TestExportCSVOfFilteredPayments(t *testing.T) {
	api := newFakeAPI()
	api.payments = samplePayments()
	views := newViewServiceForTest(t, api, ViewConfig{})
	svc := newExportServiceForTest(t, views)

	job, err := svc.Create(context.Background(), adminActor, PagePayments, models.CreateExportRequest{Format: models.ExportFormatCSV}, listview.Criteria{"status": "approved", "search": ""})
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusQueued, job.Status)
	assert.Equal(t, map[string]string{"status": "approved"}, job.Criteria)

	done := waitForExport(t, svc, adminActor, job.ID)
	require.Equal(t, models.ExportStatusFinished, done.Status)
	assert.Equal(t, 3, done.Rows)
	require.NotNil(t, done.ResultURL)
	require.True(t, strings.HasPrefix(*done.ResultURL, "/api/v1/exports/download?token="))

	token := strings.TrimPrefix(*done.ResultURL, "/api/v1/exports/download?token=")
	download, err := svc.ResolveDownload(adminActor, token)
	require.NoError(t, err)
	defer download.File.Close()
	body, err := io.ReadAll(download.File)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(body), "ID,Student,"))
	assert.Equal(t, "text/csv", download.ContentType)
	assert.True(t, strings.HasSuffix(download.Filename, ".csv"))

	_, err = svc.ResolveDownload(Actor{UserID: "someone-else", Role: models.RoleAdmin}, token)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	_, err = svc.Get(Actor{UserID: "someone-else", Role: models.RoleAdmin}, job.ID)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}

type failingSource struct{}

func (failingSource) ExportDataset(ctx context.Context, actor Actor, page string, criteria listview.Criteria) (export.Dataset, error) {
	return export.Dataset{}, appErrors.Clone(appErrors.ErrNetwork, "upstream unreachable")
}

func TestExportFailsAfterRetries(t *testing.T) {
	svc := newExportServiceForTest(t, failingSource{})

	job, err := svc.Create(context.Background(), adminActor, PageUsers, models.CreateExportRequest{Format: models.ExportFormatPDF}, nil)
	require.NoError(t, err)

	done := waitForExport(t, svc, adminActor, job.ID)
	require.Equal(t, models.ExportStatusFailed, done.Status)
	require.NotNil(t, done.ErrorMessage)
	assert.Equal(t, "upstream unreachable", *done.ErrorMessage)
}

func TestExportRejectsUnknownFormatAndForeignPage(t *testing.T) {
	svc := newExportServiceForTest(t, failingSource{})

	_, err := svc.Create(context.Background(), adminActor, PageUsers, models.CreateExportRequest{Format: "xlsx"}, nil)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.Create(context.Background(), teacherActor, PagePayments, models.CreateExportRequest{Format: models.ExportFormatCSV}, nil)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}

type countingSource struct {
	calls int32
	err   error
}

func (s *countingSource) ExportDataset(context.Context, Actor, string, listview.Criteria) (export.Dataset, error) {
	atomic.AddInt32(&s.calls, 1)
	return export.Dataset{}, s.err
}

func TestExportDoesNotRetryRejectedRequests(t *testing.T) {
	source := &countingSource{err: appErrors.Clone(appErrors.ErrForbidden, "token no longer valid for this page")}
	svc := newExportServiceForTest(t, source)

	job, err := svc.Create(context.Background(), adminActor, PageUsers, models.CreateExportRequest{Format: models.ExportFormatCSV}, nil)
	require.NoError(t, err)

	done := waitForExport(t, svc, adminActor, job.ID)
	require.Equal(t, models.ExportStatusFailed, done.Status)
	assert.Equal(t, "token no longer valid for this page", *done.ErrorMessage)
	assert.EqualValues(t, 1, atomic.LoadInt32(&source.calls))
}
