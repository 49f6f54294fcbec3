package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"

	"github.com/Baaaki/devmarket/internal/middleware"
	"github.com/Baaaki/devmarket/internal/models"
	"github.com/Baaaki/devmarket/internal/service"
	"github.com/Baaaki/devmarket/internal/storage"
	"github.com/Baaaki/devmarket/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type PurchaseHandler struct {
	purchases *service.PurchaseService
}

func NewPurchaseHandler(purchases *service.PurchaseService) *PurchaseHandler {
	return &PurchaseHandler{purchases: purchases}
}

type ReviewPurchaseRequest struct {
	ID       string                `json:"id"`
	Status   models.PurchaseStatus `json:"status" binding:"required"`
	Feedback string                `json:"feedback"`
}

// POST /api/purchases (multipart: projectId, deliveryEmail, proof)
func (h *PurchaseHandler) Create(c *gin.Context) {
	projectID, err := uuid.Parse(c.PostForm("projectId"))
	if err != nil {
		badRequest(c, "projectId must be a valid id")
		return
	}

	in := service.CreatePurchaseInput{
		ProjectID:     projectID,
		DeliveryEmail: c.PostForm("deliveryEmail"),
	}

	if fh, err := c.FormFile("proof"); err == nil {
		f, err := fh.Open()
		if err != nil {
			badRequest(c, "unreadable proof upload")
			return
		}
		defer f.Close()
		in.Proof = service.Proof{Filename: fh.Filename, Content: f}
	} else if !errors.Is(err, http.ErrMissingFile) {
		badRequest(c, "invalid multipart form")
		return
	}

	purchase, err := h.purchases.Create(c.Request.Context(), middleware.CurrentUser(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, purchase)
}

// GET /api/purchases?projectId=&status=&scope=
func (h *PurchaseHandler) List(c *gin.Context) {
	q := service.PurchaseQuery{
		Status: models.PurchaseStatus(c.Query("status")),
		Scope:  service.PurchaseScope(c.DefaultQuery("scope", string(service.ScopeOwn))),
	}
	if v := c.Query("projectId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			badRequest(c, "projectId must be a valid id")
			return
		}
		q.ProjectID = &id
	}

	purchases, err := h.purchases.List(c.Request.Context(), middleware.CurrentUser(c), q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"purchases": purchases, "count": len(purchases)})
}

// GET /api/purchases/:id
func (h *PurchaseHandler) Get(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	purchase, err := h.purchases.Get(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, purchase)
}

// PATCH /api/purchases/:id, or PATCH /api/purchases with the id in the body
func (h *PurchaseHandler) Review(c *gin.Context) {
	var req ReviewPurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	raw := c.Param("id")
	if raw == "" {
		raw = req.ID
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		badRequest(c, "purchase id must be a valid id")
		return
	}

	purchase, err := h.purchases.Review(c.Request.Context(), middleware.CurrentUser(c), id, service.ReviewDecision{
		Status:   req.Status,
		Feedback: req.Feedback,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, purchase)
}

// GET /api/purchases/:id/download
func (h *PurchaseHandler) Download(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	dl, err := h.purchases.Download(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}

	filename := dl.Filename + path.Ext(dl.URL)
	h.stream(c, dl.URL, filename, "attachment")
}

// GET /api/purchases/:id/proof
func (h *PurchaseHandler) Proof(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	url, err := h.purchases.Proof(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	h.stream(c, url, path.Base(url), "inline")
}

// stream writes a stored object. URLs the store did not issue are external
// and handed back to the client instead.
func (h *PurchaseHandler) stream(c *gin.Context, url, filename, disposition string) {
	rc, contentType, err := h.purchases.OpenObject(c.Request.Context(), url)
	if errors.Is(err, storage.ErrForeignURL) {
		c.JSON(http.StatusOK, gin.H{"file_url": url})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	defer rc.Close()

	c.Header("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, filename))
	c.Header("Content-Type", contentType)
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		logger.Log.Warn("Object stream interrupted",
			zap.String("trace_id", middleware.TraceID(c)),
			zap.String("url", url),
			zap.Error(err),
		)
	}
}
