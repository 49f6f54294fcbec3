package handler

import (
	"net/http"
	"strconv"

	"github.com/Baaaki/devmarket/internal/middleware"
	"github.com/Baaaki/devmarket/internal/models"
	"github.com/Baaaki/devmarket/internal/service"
	"github.com/gin-gonic/gin"
)

type ProjectHandler struct {
	projects *service.ProjectService
}

func NewProjectHandler(projects *service.ProjectService) *ProjectHandler {
	return &ProjectHandler{projects: projects}
}

// GET /api/projects?type=&forSale=&tag=&search=&page=&pageSize=
func (h *ProjectHandler) List(c *gin.Context) {
	q := service.ProjectQuery{
		Type:   models.ProjectType(c.Query("type")),
		Tag:    c.Query("tag"),
		Search: c.Query("search"),
	}
	if v := c.Query("forSale"); v != "" {
		forSale, err := strconv.ParseBool(v)
		if err != nil {
			badRequest(c, "forSale must be true or false")
			return
		}
		q.ForSale = &forSale
	}
	var err error
	if q.Page, err = intQuery(c, "page"); err != nil {
		badRequest(c, "page must be a number")
		return
	}
	if q.PageSize, err = intQuery(c, "pageSize"); err != nil {
		badRequest(c, "pageSize must be a number")
		return
	}

	page, err := h.projects.List(c.Request.Context(), q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// GET /api/projects/:ref
func (h *ProjectHandler) Get(c *gin.Context) {
	detail, err := h.projects.Get(c.Request.Context(), c.Param("ref"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// POST /api/projects
func (h *ProjectHandler) Create(c *gin.Context) {
	var in service.ProjectInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	project, err := h.projects.Create(c.Request.Context(), middleware.CurrentUser(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, project)
}

// PUT /api/projects/:id
func (h *ProjectHandler) Update(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var in service.ProjectInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	project, err := h.projects.Update(c.Request.Context(), middleware.CurrentUser(c), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

// DELETE /api/projects/:id
func (h *ProjectHandler) Delete(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	if err := h.projects.Delete(c.Request.Context(), middleware.CurrentUser(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /api/projects/:id/seo
func (h *ProjectHandler) GenerateSEO(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	project, err := h.projects.GenerateSEO(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"title":       project.SEOTitle,
		"description": project.SEODescription,
		"keywords":    project.SEOKeywords,
	})
}

// GET /sitemap.xml
func (h *ProjectHandler) Sitemap(c *gin.Context) {
	body, err := h.projects.Sitemap(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/xml; charset=utf-8", body)
}

// GET /robots.txt
func (h *ProjectHandler) Robots(c *gin.Context) {
	c.String(http.StatusOK, h.projects.Robots())
}

func intQuery(c *gin.Context, key string) (int, error) {
	v := c.Query(key)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
