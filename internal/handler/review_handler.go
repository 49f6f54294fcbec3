package handler

import (
	"net/http"

	"github.com/Baaaki/devmarket/internal/middleware"
	"github.com/Baaaki/devmarket/internal/service"
	"github.com/gin-gonic/gin"
)

type ReviewHandler struct {
	reviews *service.ReviewService
}

func NewReviewHandler(reviews *service.ReviewService) *ReviewHandler {
	return &ReviewHandler{reviews: reviews}
}

type ReviewRequest struct {
	ProjectID   string `json:"projectId" binding:"required"`
	Rating      int    `json:"rating"`
	Comment     string `json:"comment"`
	AuthorEmail string `json:"authorEmail"`
	AuthorName  string `json:"authorName"`
}

// GET /api/reviews?projectId=
func (h *ReviewHandler) List(c *gin.Context) {
	list, err := h.reviews.List(c.Request.Context(), c.Query("projectId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// POST /api/reviews
func (h *ReviewHandler) Upsert(c *gin.Context) {
	var req ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	review, err := h.reviews.Upsert(c.Request.Context(), middleware.CurrentUser(c), service.ReviewInput{
		ProjectRef:  req.ProjectID,
		Rating:      req.Rating,
		Comment:     req.Comment,
		AuthorEmail: req.AuthorEmail,
		AuthorName:  req.AuthorName,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, review)
}
