package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-admin-console/internal/models"
	appErrors "github.com/noah-isme/edu-admin-console/pkg/errors"
	"github.com/noah-isme/edu-admin-console/pkg/export"
	"github.com/noah-isme/edu-admin-console/pkg/jobs"
	"github.com/noah-isme/edu-admin-console/pkg/listview"
	"github.com/noah-isme/edu-admin-console/pkg/storage"
)

type datasetSource interface {
	ExportDataset(ctx context.Context, actor Actor, page string, criteria listview.Criteria) (export.Dataset, error)
}

type fileStorage interface {
	Save(name string, data []byte) (string, error)
	Open(name string) (*os.File, error)
	Delete(name string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix       string
	ResultTTL       time.Duration
	CleanupInterval time.Duration
	Queue           jobs.QueueConfig
}

// ExportDownload is a resolved download.
type ExportDownload struct {
	File        *os.File
	Filename    string
	ContentType string
	ExpiresAt   time.Time
}

type exportEntry struct {
	job     models.ExportJob
	actor   Actor
	relPath string
}

// ExportService renders filtered page views to CSV or PDF in the background
// and hands out owner-bound download tokens.
type ExportService struct {
	source    datasetSource
	storage   fileStorage
	signer    *storage.SignedURLSigner
	renderers map[models.ExportFormat]export.Renderer
	validator formValidator
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       ExportConfig
	queue     *jobs.Queue
	now       func() time.Time

	mu   sync.RWMutex
	jobs map[string]*exportEntry
}

// NewExportService constructs the service and its worker queue.
func NewExportService(source datasetSource, files fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, metrics *MetricsService, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	s := &ExportService{
		source:  source,
		storage: files,
		signer:  signer,
		renderers: map[models.ExportFormat]export.Renderer{
			models.ExportFormatCSV: export.NewCSVExporter(),
			models.ExportFormatPDF: export.NewPDFExporter(),
		},
		validator: NewFormValidator(),
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
		jobs:      make(map[string]*exportEntry),
	}
	queueCfg := cfg.Queue
	queueCfg.Logger = logger
	queueCfg.OnGiveUp = s.giveUp
	if metrics != nil {
		queueCfg.Observer = metrics
	}
	s.queue = jobs.NewQueue("exports", s.handle, queueCfg)
	return s
}

// Start launches the workers and the cleanup loop.
func (s *ExportService) Start(ctx context.Context) {
	s.queue.Start(ctx)
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(s.cfg.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Cleanup()
			}
		}
	}()
}

// Stop drains the workers.
func (s *ExportService) Stop() {
	s.queue.Stop()
}

// Create queues an export of the actor's page filtered by criteria.
func (s *ExportService) Create(ctx context.Context, actor Actor, page string, req models.CreateExportRequest, criteria listview.Criteria) (*models.ExportJob, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	if err := authorize(actor, page); err != nil {
		return nil, err
	}
	entry := &exportEntry{
		actor: actor,
		job: models.ExportJob{
			ID:        uuid.NewString(),
			Page:      page,
			Format:    req.Format,
			Criteria:  criteria.Normalized(),
			Status:    models.ExportStatusQueued,
			CreatedBy: actor.UserID,
			CreatedAt: s.now().UTC(),
		},
	}
	s.mu.Lock()
	s.jobs[entry.job.ID] = entry
	s.mu.Unlock()

	if err := s.queue.Enqueue(jobs.Job{ID: entry.job.ID, Kind: page}); err != nil {
		s.fail(entry.job.ID, "failed to enqueue export")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export")
	}
	s.metrics.ObserveExport(page, string(req.Format), string(models.ExportStatusQueued))
	job := entry.job
	return &job, nil
}

// Get returns an export job owned by the actor.
func (s *ExportService) Get(actor Actor, id string) (*models.ExportJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.jobs[id]
	if !ok {
		return nil, appErrors.ErrNotFound
	}
	if entry.job.CreatedBy != actor.UserID {
		return nil, appErrors.ErrForbidden
	}
	job := entry.job
	return &job, nil
}

// ResolveDownload validates the token against the requesting user and opens the file.
func (s *ExportService) ResolveDownload(actor Actor, token string) (*ExportDownload, error) {
	claims, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	if claims.Owner != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "download token belongs to another user")
	}
	s.mu.RLock()
	entry, ok := s.jobs[claims.JobID()]
	var format models.ExportFormat
	if ok {
		format = entry.job.Format
		ok = entry.job.Status == models.ExportStatusFinished && entry.relPath == claims.Path
	}
	s.mu.RUnlock()
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export not available")
	}
	file, err := s.storage.Open(claims.Path)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "export file missing")
	}
	download := &ExportDownload{
		File:     file,
		Filename: filepath.Base(claims.Path),
	}
	if r, ok := s.renderers[format]; ok {
		download.ContentType = r.ContentType()
	}
	if claims.ExpiresAt != nil {
		download.ExpiresAt = claims.ExpiresAt.Time
	}
	return download, nil
}

// Cleanup removes expired files and forgets their jobs.
func (s *ExportService) Cleanup() int {
	removed, err := s.storage.CleanupOlderThan(s.cfg.ResultTTL)
	if err != nil {
		s.logger.Warn("export cleanup failed", zap.Error(err))
	}
	cutoff := s.now().Add(-s.cfg.ResultTTL)
	s.mu.Lock()
	for id, entry := range s.jobs {
		if entry.job.FinishedAt != nil && entry.job.FinishedAt.Before(cutoff) {
			delete(s.jobs, id)
		}
	}
	s.mu.Unlock()
	return len(removed)
}

func (s *ExportService) handle(ctx context.Context, job jobs.Job) error {
	s.mu.Lock()
	entry, ok := s.jobs[job.ID]
	if ok {
		entry.job.Status = models.ExportStatusProcessing
	}
	s.mu.Unlock()
	if !ok {
		return jobs.Permanent(fmt.Errorf("export job %s not found", job.ID))
	}

	renderer, ok := s.renderers[entry.job.Format]
	if !ok {
		return jobs.Permanent(fmt.Errorf("unsupported format %s", entry.job.Format))
	}
	dataset, err := s.source.ExportDataset(ctx, entry.actor, entry.job.Page, entry.job.Criteria)
	if err != nil {
		if clientFault(err) {
			return jobs.Permanent(err)
		}
		return err
	}
	payload, err := renderer.Render(dataset)
	if err != nil {
		return jobs.Permanent(err)
	}
	relPath, err := s.storage.Save(s.filename(entry.job, renderer.Extension()), payload)
	if err != nil {
		return err
	}
	token, _, err := s.signer.Generate(entry.job.ID, relPath, entry.actor.UserID)
	if err != nil {
		return err
	}
	url := s.downloadURL(token)
	finished := s.now().UTC()

	s.mu.Lock()
	entry.relPath = relPath
	entry.job.Status = models.ExportStatusFinished
	entry.job.Rows = len(dataset.Rows)
	entry.job.ResultURL = &url
	entry.job.FinishedAt = &finished
	entry.job.ErrorMessage = nil
	s.mu.Unlock()

	s.metrics.ObserveExport(entry.job.Page, string(entry.job.Format), string(models.ExportStatusFinished))
	s.logger.Info("export finished", zap.String("job_id", job.ID), zap.String("page", entry.job.Page), zap.Int("rows", len(dataset.Rows)))
	return nil
}

func (s *ExportService) giveUp(job jobs.Job, err error) {
	message := err.Error()
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	s.fail(job.ID, message)
}

// clientFault reports errors that another attempt cannot fix, such as a
// rejected token or a role that lost access to the page.
func clientFault(err error) bool {
	var appErr *appErrors.Error
	return errors.As(err, &appErr) && appErr.Status >= 400 && appErr.Status < 500
}

func (s *ExportService) fail(id, message string) {
	finished := s.now().UTC()
	s.mu.Lock()
	entry, ok := s.jobs[id]
	if ok {
		entry.job.Status = models.ExportStatusFailed
		entry.job.ErrorMessage = &message
		entry.job.FinishedAt = &finished
	}
	s.mu.Unlock()
	if ok {
		s.metrics.ObserveExport(entry.job.Page, string(entry.job.Format), string(models.ExportStatusFailed))
	}
}

func (s *ExportService) downloadURL(token string) string {
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	return fmt.Sprintf("%s/exports/download?token=%s", prefix, token)
}

func (s *ExportService) filename(job models.ExportJob, ext string) string {
	return fmt.Sprintf("%s_%s_%s.%s", job.Page, job.CreatedAt.Format("20060102_150405"), job.ID[:8], ext)
}
