package handler

import (
	"net/http"

	"github.com/Baaaki/devmarket/internal/journal"
	"github.com/Baaaki/devmarket/internal/middleware"
	"github.com/Baaaki/devmarket/internal/models"
	"github.com/Baaaki/devmarket/internal/service"
	"github.com/Baaaki/devmarket/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type AdminHandler struct {
	authService   *service.AuthService
	comments      *service.CommentService
	notifications *service.NotificationService
	audit         *service.AuditService
}

func NewAdminHandler(
	authService *service.AuthService,
	comments *service.CommentService,
	notifications *service.NotificationService,
	audit *service.AuditService,
) *AdminHandler {
	return &AdminHandler{
		authService:   authService,
		comments:      comments,
		notifications: notifications,
		audit:         audit,
	}
}

type SetRoleRequest struct {
	Role models.Role `json:"role" binding:"required"`
}

type MarkReadRequest struct {
	IDs []uuid.UUID `json:"ids"`
}

type PruneJournalRequest struct {
	IDs []string `json:"ids"`
}

// GET /api/admin/users
func (h *AdminHandler) GetAllUsers(c *gin.Context) {
	admin := middleware.CurrentUser(c)
	logger.Log.Info("Admin fetching all users", zap.String("admin_id", admin.ID.String()))

	users, err := h.authService.GetAllUsers(c.Request.Context(), admin)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// PATCH /api/admin/users/:id/role
func (h *AdminHandler) SetRole(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req SetRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	if err := h.authService.SetRole(c.Request.Context(), middleware.CurrentUser(c), id, req.Role); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Role updated", "role": req.Role})
}

// GET /api/admin/notifications
func (h *AdminHandler) Notifications(c *gin.Context) {
	summary, err := h.notifications.Summary(c.Request.Context(), middleware.CurrentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// PATCH /api/admin/comments/read; an empty id list marks everything read.
func (h *AdminHandler) MarkCommentsRead(c *gin.Context) {
	var req MarkReadRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}

	n, err := h.comments.MarkRead(c.Request.Context(), middleware.CurrentUser(c), req.IDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}

// GET /api/admin/journal?kind=
func (h *AdminHandler) Journal(c *gin.Context) {
	entries, err := h.audit.Entries(middleware.CurrentUser(c), journal.Kind(c.Query("kind")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
}

// DELETE /api/admin/journal
func (h *AdminHandler) PruneJournal(c *gin.Context) {
	var req PruneJournalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	removed, err := h.audit.Prune(middleware.CurrentUser(c), req.IDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}
