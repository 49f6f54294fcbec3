package handler

import (
	"net/http"

	"github.com/Baaaki/devmarket/internal/service"
	"github.com/gin-gonic/gin"
)

type ViewHandler struct {
	views *service.ViewService
}

func NewViewHandler(views *service.ViewService) *ViewHandler {
	return &ViewHandler{views: views}
}

type RecordViewRequest struct {
	ProjectID string `json:"projectId"`
	DeviceID  string `json:"deviceId"`
}

// POST /api/views always answers 200; analytics never break the page.
func (h *ViewHandler) Record(c *gin.Context) {
	var req RecordViewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, gin.H{"recorded": false})
		return
	}
	recorded := h.views.Record(c.Request.Context(), req.ProjectID, req.DeviceID)
	c.JSON(http.StatusOK, gin.H{"recorded": recorded})
}

// GET /api/views?projectId=
func (h *ViewHandler) Count(c *gin.Context) {
	count, err := h.views.Count(c.Request.Context(), c.Query("projectId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"views": count})
}
