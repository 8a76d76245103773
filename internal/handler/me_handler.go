package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-admin-console/internal/models"
	"github.com/noah-isme/edu-admin-console/pkg/response"
)

type preferenceService interface {
	Me(ctx context.Context, claims models.DisplayClaims) models.Me
	Update(ctx context.Context, userID string, req models.UpdatePreferencesRequest) (models.Preferences, error)
}

// MeHandler serves the signed-in user's profile and console settings.
type MeHandler struct {
	prefs preferenceService
}

// NewMeHandler constructs a profile handler.
func NewMeHandler(prefs preferenceService) *MeHandler {
	return &MeHandler{prefs: prefs}
}

// Get godoc
// @Summary Current user profile
// @Description Returns the display claims, saved preferences and the pages the role may open.
// @Tags Me
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /me [get]
func (h *MeHandler) Get(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	claims := claimsFromContext(c)
	display := models.DisplayClaims{
		UserID:   actor.UserID,
		Role:     actor.Role,
		Email:    claims.Email,
		FullName: claims.FullName,
	}
	response.OK(c, h.prefs.Me(c.Request.Context(), display))
}

// UpdatePreferences godoc
// @Summary Save console preferences
// @Tags Me
// @Accept json
// @Produce json
// @Param payload body models.UpdatePreferencesRequest true "Preferences"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /me/preferences [put]
func (h *MeHandler) UpdatePreferences(c *gin.Context) {
	actor, err := actorFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req models.UpdatePreferencesRequest
	if !bindJSON(c, &req) {
		return
	}
	prefs, err := h.prefs.Update(c.Request.Context(), actor.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, prefs)
}
