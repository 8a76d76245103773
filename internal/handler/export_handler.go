package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-admin-console/internal/dto"
	"github.com/noah-isme/edu-admin-console/internal/models"
	"github.com/noah-isme/edu-admin-console/internal/service"
	appErrors "github.com/noah-isme/edu-admin-console/pkg/errors"
	"github.com/noah-isme/edu-admin-console/pkg/listview"
	"github.com/noah-isme/edu-admin-console/pkg/response"
)

type exportService interface {
	Create(ctx context.Context, actor service.Actor, page string, req models.CreateExportRequest, criteria listview.Criteria) (*models.ExportJob, error)
	Get(actor service.Actor, id string) (*models.ExportJob, error)
	ResolveDownload(actor service.Actor, token string) (*service.ExportDownload, error)
}

type filterKeySource interface {
	FilterKeys(page string) (keys []string, aggKeys []string, ok bool)
}

// ExportHandler queues and serves page exports.
type ExportHandler struct {
	exports exportService
	keys    filterKeySource
}

// NewExportHandler constructs an export handler.
func NewExportHandler(exports exportService, keys filterKeySource) *ExportHandler {
	return &ExportHandler{exports: exports, keys: keys}
}

// Create godoc
// @Summary Export the filtered page
// @Description Queues a CSV or PDF export of every record matching the page filters given in the query string.
// @Tags Exports
// @Accept json
// @Produce json
// @Param page path string true "Page name"
// @Param payload body models.CreateExportRequest true "Export format"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /views/{page}/exports [post]
func (h *ExportHandler) Create(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	page := c.Param("page")
	keys, _, ok := h.keys.FilterKeys(page)
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "unknown page"))
		return
	}
	var req models.CreateExportRequest
	if !bindJSON(c, &req) {
		return
	}

	criteria := listview.Criteria{}
	for _, key := range keys {
		if value, present := c.GetQuery(key); present {
			criteria[key] = value
		}
	}

	job, err := h.exports.Create(c.Request.Context(), actor, page, req, criteria)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, toExportResponse(job))
}

// Get godoc
// @Summary Export job status
// @Tags Exports
// @Produce json
// @Param id path string true "Export job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /exports/{id} [get]
func (h *ExportHandler) Get(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	job, err := h.exports.Get(actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toExportResponse(job))
}

// Download godoc
// @Summary Download a finished export
// @Tags Exports
// @Produce octet-stream
// @Param token query string true "Signed download token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /exports/download [get]
func (h *ExportHandler) Download(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	token := c.Query("token")
	if strings.TrimSpace(token) == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	result, err := h.exports.ResolveDownload(actor, token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer result.File.Close() //nolint:errcheck

	info, err := result.File.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read export"))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", result.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, info.Size(), result.ContentType, result.File, nil)
}

func toExportResponse(job *models.ExportJob) dto.ExportJobResponse {
	return dto.ExportJobResponse{
		ID:          job.ID,
		Page:        job.Page,
		Format:      string(job.Format),
		Status:      string(job.Status),
		Rows:        job.Rows,
		DownloadURL: job.ResultURL,
		Error:       job.ErrorMessage,
	}
}
