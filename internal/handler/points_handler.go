package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/civicdesk/civicdesk-api/internal/service"
	appErrors "github.com/civicdesk/civicdesk-api/pkg/errors"
	"github.com/civicdesk/civicdesk-api/pkg/response"
)

// PointsHandler wires ledger and leaderboard endpoints.
type PointsHandler struct {
	service *service.PointsService
}

// NewPointsHandler creates a new handler.
func NewPointsHandler(svc *service.PointsService) *PointsHandler {
	return &PointsHandler{service: svc}
}

// Mine godoc
// @Summary Caller's point total and ledger history
// @Tags Points
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /points/me [get]
func (h *PointsHandler) Mine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	points, err := h.service.ForUser(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, points, nil)
}

// Leaderboard godoc
// @Summary Community leaderboard
// @Tags Points
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /points/leaderboard [get]
func (h *PointsHandler) Leaderboard(c *gin.Context) {
	entries, err := h.service.Leaderboard(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}
