package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-admin-console/internal/dispatch"
	"github.com/noah-isme/edu-admin-console/internal/middleware"
	"github.com/noah-isme/edu-admin-console/internal/models"
	"github.com/noah-isme/edu-admin-console/internal/service"
	appErrors "github.com/noah-isme/edu-admin-console/pkg/errors"
	"github.com/noah-isme/edu-admin-console/pkg/listview"
	"github.com/noah-isme/edu-admin-console/pkg/response"
)

// aggregationPrefix marks query keys that narrow the aggregation view only.
const aggregationPrefix = "agg_"

type viewService interface {
	FilterKeys(page string) (keys []string, aggKeys []string, ok bool)
	Payments(ctx context.Context, actor service.Actor, q service.ViewQuery) (*service.PageResult[models.Payment], error)
	Users(ctx context.Context, actor service.Actor, q service.ViewQuery) (*service.PageResult[models.User], error)
	Sessions(ctx context.Context, actor service.Actor, q service.ViewQuery) (*service.PageResult[models.ClassSession], error)
	Marks(ctx context.Context, actor service.Actor, q service.ViewQuery) (*service.PageResult[models.Mark], error)
	Chat(ctx context.Context, actor service.Actor, q service.ViewQuery) (*service.PageResult[models.ChatMessage], error)
	States(ctx context.Context, actor service.Actor, q service.ViewQuery) (*service.PageResult[models.State], error)
	Batches(ctx context.Context, actor service.Actor, q service.ViewQuery) (*service.PageResult[models.Batch], error)
	RefreshPage(ctx context.Context, actor service.Actor, page string) (bool, error)
	CloseWorkspace(actor service.Actor) bool

	ApprovePayment(ctx context.Context, actor service.Actor, id string, confirmed bool) (dispatch.Result, error)
	UpdatePayment(ctx context.Context, actor service.Actor, id string, req models.UpdatePaymentRequest) (dispatch.Result, error)
	CreateUser(ctx context.Context, actor service.Actor, req models.CreateUserRequest) (dispatch.Result, error)
	UpdateUser(ctx context.Context, actor service.Actor, id string, req models.UpdateUserRequest) (dispatch.Result, error)
	DeleteUser(ctx context.Context, actor service.Actor, id string, confirmed bool) (dispatch.Result, error)
	ForceDeleteUser(ctx context.Context, actor service.Actor, id, confirmationText string) (dispatch.Result, error)
	DeleteState(actor service.Actor, id string) dispatch.DeleteState
	CreateSession(ctx context.Context, actor service.Actor, req models.CreateSessionRequest) (dispatch.Result, error)
	CancelSession(ctx context.Context, actor service.Actor, id string, req models.CancelSessionRequest, confirmed bool) (dispatch.Result, error)
	UpdateMark(ctx context.Context, actor service.Actor, id string, req models.UpdateMarkRequest) (dispatch.Result, error)
	SendChatMessage(ctx context.Context, actor service.Actor, req models.SendChatMessageRequest) (dispatch.Result, error)
}

// ViewHandler serves the list pages and their mutations.
type ViewHandler struct {
	views viewService
}

// NewViewHandler constructs a view handler.
func NewViewHandler(views viewService) *ViewHandler {
	return &ViewHandler{views: views}
}

// Payments godoc
// @Summary Payments page
// @Description Filtered, paginated payments with revenue aggregations. Query keys prefixed with agg_ narrow the aggregations only.
// @Tags Views
// @Produce json
// @Param search query string false "Search term"
// @Param status query string false "approved or pending"
// @Param course query string false "Course name"
// @Param batch query string false "Batch name"
// @Param payment_type query string false "Payment type"
// @Param month query int false "Month 1-12"
// @Param year query int false "Year"
// @Param start_date query string false "Inclusive start date"
// @Param end_date query string false "Inclusive end date"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /views/payments [get]
func (h *ViewHandler) Payments(c *gin.Context) {
	serveView(c, h, service.PagePayments, h.views.Payments)
}

// Users godoc
// @Summary Users page
// @Tags Views
// @Produce json
// @Param search query string false "Search term"
// @Param role query string false "Role"
// @Param status query string false "active or inactive"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /views/users [get]
func (h *ViewHandler) Users(c *gin.Context) {
	serveView(c, h, service.PageUsers, h.views.Users)
}

// Sessions godoc
// @Summary Class sessions page
// @Tags Views
// @Produce json
// @Param status query string false "Session status"
// @Param batch query string false "Batch id or name"
// @Param teacher query string false "Teacher id or name"
// @Success 200 {object} response.Envelope
// @Router /views/sessions [get]
func (h *ViewHandler) Sessions(c *gin.Context) {
	serveView(c, h, service.PageSessions, h.views.Sessions)
}

// Marks godoc
// @Summary Marks page
// @Tags Views
// @Produce json
// @Param batch query string false "Batch id or name"
// @Param assessment query string false "Assessment id or title"
// @Success 200 {object} response.Envelope
// @Router /views/marks [get]
func (h *ViewHandler) Marks(c *gin.Context) {
	serveView(c, h, service.PageMarks, h.views.Marks)
}

// Chat godoc
// @Summary Batch chat page
// @Tags Views
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /views/chat [get]
func (h *ViewHandler) Chat(c *gin.Context) {
	serveView(c, h, service.PageChat, h.views.Chat)
}

// States godoc
// @Summary States lookup page
// @Tags Views
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /views/states [get]
func (h *ViewHandler) States(c *gin.Context) {
	serveView(c, h, service.PageStates, h.views.States)
}

// Batches godoc
// @Summary Batches lookup page
// @Tags Views
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /views/batches [get]
func (h *ViewHandler) Batches(c *gin.Context) {
	serveView(c, h, service.PageBatches, h.views.Batches)
}

// Refresh godoc
// @Summary Refetch a page
// @Description Replaces the page records with a fresh upstream fetch. Lookup pages also drop their shared cache entry.
// @Tags Views
// @Produce json
// @Param page path string true "Page name"
// @Success 200 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /views/{page}/refresh [post]
func (h *ViewHandler) Refresh(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	page := c.Param("page")
	applied, err := h.views.RefreshPage(c.Request.Context(), actor, page)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"page": page, "applied": applied}, middleware.ExtractMeta(c))
}

// Close godoc
// @Summary Close the console workspace
// @Description Stops polling and drops every mounted page of the signed-in user.
// @Tags Views
// @Success 204
// @Router /views [delete]
func (h *ViewHandler) Close(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.views.CloseWorkspace(actor)
	response.NoContent(c)
}

func serveView[T any](c *gin.Context, h *ViewHandler, page string, load func(context.Context, service.Actor, service.ViewQuery) (*service.PageResult[T], error)) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	query, err := h.parseQuery(c, page)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := load(c.Request.Context(), actor, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "generation", result.Generation)
	if result.PageReset {
		middleware.SetMeta(c, "page_reset", true)
	}
	response.JSON(c, http.StatusOK, result, &result.Pagination, middleware.ExtractMeta(c))
}

// parseQuery reads the page's filter keys from the query string. Keys the
// page does not know are ignored.
func (h *ViewHandler) parseQuery(c *gin.Context, page string) (service.ViewQuery, error) {
	keys, aggKeys, ok := h.views.FilterKeys(page)
	if !ok {
		return service.ViewQuery{}, appErrors.Clone(appErrors.ErrNotFound, "unknown page")
	}

	query := service.ViewQuery{Criteria: listview.Criteria{}}
	for _, key := range keys {
		if value, present := c.GetQuery(key); present {
			query.Criteria[key] = value
		}
	}
	if len(aggKeys) > 0 {
		query.AggregationCriteria = listview.Criteria{}
		for _, key := range aggKeys {
			if value, present := c.GetQuery(aggregationPrefix + key); present {
				query.AggregationCriteria[key] = value
			}
		}
	}

	invalid := map[string]interface{}{}
	for _, key := range []string{"start_date", "end_date"} {
		if raw, present := query.Criteria[key]; present && !listview.ValidBound(raw) {
			invalid[key] = "must be a date such as 2024-01-31"
		}
	}

	var err error
	if query.Page, err = positiveInt(c.Query("page")); err != nil {
		invalid["page"] = "must be a positive integer"
	}
	if query.PageSize, err = positiveInt(c.Query("page_size")); err != nil {
		invalid["page_size"] = "must be a positive integer"
	}
	if len(invalid) > 0 {
		return service.ViewQuery{}, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "invalid query"), invalid)
	}
	return query, nil
}

func positiveInt(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, strconv.ErrRange
	}
	return n, nil
}
