package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-admin-console/internal/dispatch"
	"github.com/noah-isme/edu-admin-console/internal/dto"
	"github.com/noah-isme/edu-admin-console/internal/models"
	"github.com/noah-isme/edu-admin-console/internal/service"
	appErrors "github.com/noah-isme/edu-admin-console/pkg/errors"
	"github.com/noah-isme/edu-admin-console/pkg/response"
)

// ApprovePayment godoc
// @Summary Approve a payment
// @Description Destructive; requires confirm=true.
// @Tags Payments
// @Produce json
// @Param id path string true "Payment ID"
// @Param confirm query bool false "Confirm the approval"
// @Success 200 {object} response.Envelope
// @Failure 428 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /views/payments/{id}/approve [post]
func (h *ViewHandler) ApprovePayment(c *gin.Context) {
	id := c.Param("id")
	h.mutate(c, "approve", id, http.StatusOK, func(ctx context.Context, actor service.Actor) (dispatch.Result, error) {
		return h.views.ApprovePayment(ctx, actor, id, boolQuery(c, "confirm"))
	})
}

// UpdatePayment godoc
// @Summary Edit a payment
// @Tags Payments
// @Accept json
// @Produce json
// @Param id path string true "Payment ID"
// @Param payload body models.UpdatePaymentRequest true "Payment fields"
// @Success 200 {object} response.Envelope
// @Router /views/payments/{id} [put]
func (h *ViewHandler) UpdatePayment(c *gin.Context) {
	var req models.UpdatePaymentRequest
	if !bindJSON(c, &req) {
		return
	}
	id := c.Param("id")
	h.mutate(c, "update", id, http.StatusOK, func(ctx context.Context, actor service.Actor) (dispatch.Result, error) {
		return h.views.UpdatePayment(ctx, actor, id, req)
	})
}

// CreateUser godoc
// @Summary Create a user
// @Tags Users
// @Accept json
// @Produce json
// @Param payload body models.CreateUserRequest true "User payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /views/users [post]
func (h *ViewHandler) CreateUser(c *gin.Context) {
	var req models.CreateUserRequest
	if !bindJSON(c, &req) {
		return
	}
	h.mutate(c, "create", "", http.StatusCreated, func(ctx context.Context, actor service.Actor) (dispatch.Result, error) {
		return h.views.CreateUser(ctx, actor, req)
	})
}

// UpdateUser godoc
// @Summary Edit a user
// @Tags Users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param payload body models.UpdateUserRequest true "User payload"
// @Success 200 {object} response.Envelope
// @Router /views/users/{id} [put]
func (h *ViewHandler) UpdateUser(c *gin.Context) {
	var req models.UpdateUserRequest
	if !bindJSON(c, &req) {
		return
	}
	id := c.Param("id")
	h.mutate(c, "update", id, http.StatusOK, func(ctx context.Context, actor service.Actor) (dispatch.Result, error) {
		return h.views.UpdateUser(ctx, actor, id, req)
	})
}

// DeleteUser godoc
// @Summary Delete a user
// @Description A plain delete needs confirm=true. When the account is still referenced the response is 409 and the delete can be repeated with force=true and the typed confirmation phrase.
// @Tags Users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param confirm query bool false "Confirm the delete"
// @Param force query bool false "Cascade the delete"
// @Param payload body dto.DeleteUserRequest false "Force confirmation phrase"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /views/users/{id} [delete]
func (h *ViewHandler) DeleteUser(c *gin.Context) {
	id := c.Param("id")
	if boolQuery(c, "force") {
		var req dto.DeleteUserRequest
		if !bindJSON(c, &req) {
			return
		}
		h.mutate(c, "force_delete", id, http.StatusOK, func(ctx context.Context, actor service.Actor) (dispatch.Result, error) {
			return h.views.ForceDeleteUser(ctx, actor, id, req.ConfirmationText)
		})
		return
	}
	h.mutate(c, "delete", id, http.StatusOK, func(ctx context.Context, actor service.Actor) (dispatch.Result, error) {
		return h.views.DeleteUser(ctx, actor, id, boolQuery(c, "confirm"))
	})
}

// DeleteUserState godoc
// @Summary Delete flow state of a user record
// @Tags Users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Router /views/users/{id}/delete-state [get]
func (h *ViewHandler) DeleteUserState(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	id := c.Param("id")
	response.OK(c, gin.H{"record_id": id, "state": h.views.DeleteState(actor, id)})
}

// CreateSession godoc
// @Summary Schedule a class session
// @Tags Sessions
// @Accept json
// @Produce json
// @Param payload body models.CreateSessionRequest true "Session payload"
// @Success 201 {object} response.Envelope
// @Router /views/sessions [post]
func (h *ViewHandler) CreateSession(c *gin.Context) {
	var req models.CreateSessionRequest
	if !bindJSON(c, &req) {
		return
	}
	h.mutate(c, "create", "", http.StatusCreated, func(ctx context.Context, actor service.Actor) (dispatch.Result, error) {
		return h.views.CreateSession(ctx, actor, req)
	})
}

// CancelSession godoc
// @Summary Cancel a class session
// @Description Destructive; requires confirm=true.
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param confirm query bool false "Confirm the cancellation"
// @Param payload body models.CancelSessionRequest false "Reason"
// @Success 200 {object} response.Envelope
// @Router /views/sessions/{id}/cancel [post]
func (h *ViewHandler) CancelSession(c *gin.Context) {
	var req models.CancelSessionRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	id := c.Param("id")
	h.mutate(c, "cancel", id, http.StatusOK, func(ctx context.Context, actor service.Actor) (dispatch.Result, error) {
		return h.views.CancelSession(ctx, actor, id, req, boolQuery(c, "confirm"))
	})
}

// UpdateMark godoc
// @Summary Correct a mark
// @Tags Marks
// @Accept json
// @Produce json
// @Param id path string true "Mark ID"
// @Param payload body models.UpdateMarkRequest true "Mark payload"
// @Success 200 {object} response.Envelope
// @Router /views/marks/{id} [put]
func (h *ViewHandler) UpdateMark(c *gin.Context) {
	var req models.UpdateMarkRequest
	if !bindJSON(c, &req) {
		return
	}
	id := c.Param("id")
	h.mutate(c, "update", id, http.StatusOK, func(ctx context.Context, actor service.Actor) (dispatch.Result, error) {
		return h.views.UpdateMark(ctx, actor, id, req)
	})
}

// SendChatMessage godoc
// @Summary Post to a batch thread
// @Tags Chat
// @Accept json
// @Produce json
// @Param payload body models.SendChatMessageRequest true "Message"
// @Success 201 {object} response.Envelope
// @Router /views/chat [post]
func (h *ViewHandler) SendChatMessage(c *gin.Context) {
	var req models.SendChatMessageRequest
	if !bindJSON(c, &req) {
		return
	}
	h.mutate(c, "send", "", http.StatusCreated, func(ctx context.Context, actor service.Actor) (dispatch.Result, error) {
		return h.views.SendChatMessage(ctx, actor, req)
	})
}

func (h *ViewHandler) mutate(c *gin.Context, action, id string, status int, run func(context.Context, service.Actor) (dispatch.Result, error)) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := run(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	resp := dto.MutationResponse{Action: action, RecordID: id, Refreshed: result.Refreshed}
	if result.RefetchErr != nil {
		resp.RefetchErr = errorMessage(result.RefetchErr)
	}
	response.JSON(c, status, resp, nil)
}

func errorMessage(err error) string {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return false
	}
	return true
}
