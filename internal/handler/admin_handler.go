package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/civicdesk/civicdesk-api/internal/service"
	"github.com/civicdesk/civicdesk-api/pkg/response"
)

// AdminHandler wires operational endpoints: manual sweeps, priority
// recalculation and performance exports.
type AdminHandler struct {
	sweeper *service.SweeperService
	export  *service.ExportService
}

// NewAdminHandler creates a new handler.
func NewAdminHandler(sweeper *service.SweeperService, export *service.ExportService) *AdminHandler {
	return &AdminHandler{sweeper: sweeper, export: export}
}

// Sweep godoc
// @Summary Run an SLA escalation sweep now
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/sweep [post]
func (h *AdminHandler) Sweep(c *gin.Context) {
	count, err := h.sweeper.Sweep(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"escalated": count}, nil)
}

// Recalculate godoc
// @Summary Recompute priority scores for all unresolved issues
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/recalculate [post]
func (h *AdminHandler) Recalculate(c *gin.Context) {
	count, err := h.sweeper.Recalculate(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"recalculated": count}, nil)
}

// Export godoc
// @Summary Download the department performance report
// @Tags Admin
// @Produce octet-stream
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Router /admin/export [get]
func (h *AdminHandler) Export(c *gin.Context) {
	format := service.ExportFormat(c.DefaultQuery("format", "csv"))
	out, err := h.export.DepartmentPerformance(c.Request.Context(), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename="+out.Filename)
	c.Data(http.StatusOK, out.ContentType, out.Data)
}
