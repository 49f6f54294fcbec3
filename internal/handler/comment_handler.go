package handler

import (
	"net/http"

	"github.com/Baaaki/devmarket/internal/middleware"
	"github.com/Baaaki/devmarket/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type CommentHandler struct {
	comments *service.CommentService
}

func NewCommentHandler(comments *service.CommentService) *CommentHandler {
	return &CommentHandler{comments: comments}
}

type CommentRequest struct {
	ProjectID string     `json:"projectId" binding:"required"`
	ParentID  *uuid.UUID `json:"parentId"`
	Body      string     `json:"body"`
}

// GET /api/comments?projectId=
func (h *CommentHandler) List(c *gin.Context) {
	threads, err := h.comments.List(c.Request.Context(), c.Query("projectId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comments": threads})
}

// POST /api/comments
func (h *CommentHandler) Create(c *gin.Context) {
	var req CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	comment, err := h.comments.Create(c.Request.Context(), middleware.CurrentUser(c), service.CommentInput{
		ProjectRef: req.ProjectID,
		ParentID:   req.ParentID,
		Body:       req.Body,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}
