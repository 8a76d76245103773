package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-admin-console/internal/models"
	"github.com/noah-isme/edu-admin-console/internal/repository"
	appErrors "github.com/noah-isme/edu-admin-console/pkg/errors"
	"github.com/noah-isme/edu-admin-console/pkg/response"
)

const (
	defaultJournalLimit = 50
	maxJournalLimit     = 500
)

type journalReader interface {
	List(ctx context.Context, filter models.DispatchFilter) ([]models.DispatchEntry, error)
	CountByOutcome(ctx context.Context, page string) ([]repository.OutcomeCount, error)
}

// JournalHandler exposes the mutation dispatch journal to administrators.
type JournalHandler struct {
	journal journalReader
}

// NewJournalHandler constructs a journal handler.
func NewJournalHandler(journal journalReader) *JournalHandler {
	return &JournalHandler{journal: journal}
}

// List godoc
// @Summary List dispatched mutations
// @Tags Journal
// @Produce json
// @Param page query string false "Page name"
// @Param actor_id query string false "Actor ID"
// @Param record_id query string false "Record ID"
// @Param outcome query string false "SUCCEEDED, FAILED, DECLINED or CONFLICT"
// @Param limit query int false "Max entries"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Router /journal [get]
func (h *JournalHandler) List(c *gin.Context) {
	filter := models.DispatchFilter{
		Page:     c.Query("page"),
		ActorID:  c.Query("actor_id"),
		RecordID: c.Query("record_id"),
		Outcome:  models.DispatchOutcome(strings.ToUpper(c.Query("outcome"))),
	}
	limit, err := positiveInt(c.Query("limit"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "limit must be a positive integer"))
		return
	}
	switch {
	case limit == 0:
		limit = defaultJournalLimit
	case limit > maxJournalLimit:
		limit = maxJournalLimit
	}
	filter.Limit = limit
	if raw := c.Query("offset"); raw != "" && raw != "0" {
		if filter.Offset, err = positiveInt(raw); err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "offset must be a non-negative integer"))
			return
		}
	}

	entries, err := h.journal.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read journal"))
		return
	}
	if entries == nil {
		entries = []models.DispatchEntry{}
	}
	response.JSON(c, http.StatusOK, entries, nil, map[string]interface{}{"limit": filter.Limit, "offset": filter.Offset})
}

// Summary godoc
// @Summary Mutation outcomes per page
// @Tags Journal
// @Produce json
// @Param page path string true "Page name"
// @Success 200 {object} response.Envelope
// @Router /journal/{page}/summary [get]
func (h *JournalHandler) Summary(c *gin.Context) {
	counts, err := h.journal.CountByOutcome(c.Request.Context(), c.Param("page"))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read journal"))
		return
	}
	if counts == nil {
		counts = []repository.OutcomeCount{}
	}
	response.OK(c, counts)
}
