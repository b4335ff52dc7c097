package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/civicdesk/civicdesk-api/internal/models"
	"github.com/civicdesk/civicdesk-api/internal/service"
	appErrors "github.com/civicdesk/civicdesk-api/pkg/errors"
	"github.com/civicdesk/civicdesk-api/pkg/response"
)

// LifecycleHandler wires authority actions on issues.
type LifecycleHandler struct {
	lifecycle *service.LifecycleService
}

// NewLifecycleHandler creates a new handler.
func NewLifecycleHandler(lifecycle *service.LifecycleService) *LifecycleHandler {
	return &LifecycleHandler{lifecycle: lifecycle}
}

// authorityDept returns the department scope for the acting user. Admins
// act across departments and return nil.
func authorityDept(claims *models.JWTClaims) *string {
	if claims.Role == models.RoleAdmin {
		return nil
	}
	return claims.DepartmentID
}

// Accept godoc
// @Summary Accept an open issue
// @Tags Lifecycle
// @Accept json
// @Produce json
// @Param id path string true "Issue ID"
// @Param payload body service.AcceptRequest true "Acceptance payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /issues/{id}/accept [post]
func (h *LifecycleHandler) Accept(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.AcceptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid accept payload"))
		return
	}
	detail, err := h.lifecycle.Accept(c.Request.Context(), c.Param("id"), claims.UserID, authorityDept(claims), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Decline godoc
// @Summary Decline an open issue
// @Tags Lifecycle
// @Accept json
// @Produce json
// @Param id path string true "Issue ID"
// @Param payload body service.DeclineRequest true "Decline payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /issues/{id}/decline [post]
func (h *LifecycleHandler) Decline(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.DeclineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid decline payload"))
		return
	}
	detail, err := h.lifecycle.Decline(c.Request.Context(), c.Param("id"), claims.UserID, authorityDept(claims), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// StartWork godoc
// @Summary Start work on an accepted issue
// @Tags Lifecycle
// @Produce json
// @Param id path string true "Issue ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /issues/{id}/start [post]
func (h *LifecycleHandler) StartWork(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	detail, err := h.lifecycle.StartWork(c.Request.Context(), c.Param("id"), authorityDept(claims))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Progress godoc
// @Summary Record work progress
// @Description Reaching 100% completes the issue; an extension carries a reason and new target date
// @Tags Lifecycle
// @Accept json
// @Produce json
// @Param id path string true "Issue ID"
// @Param payload body service.ProgressRequest true "Progress payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /issues/{id}/progress [patch]
func (h *LifecycleHandler) Progress(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.ProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid progress payload"))
		return
	}
	detail, err := h.lifecycle.UpdateProgress(c.Request.Context(), c.Param("id"), authorityDept(claims), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}
