package handler

import (
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/Baaaki/devmarket/internal/middleware"
	"github.com/Baaaki/devmarket/internal/storage"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Auth          *AuthHandler
	Projects      *ProjectHandler
	Purchases     *PurchaseHandler
	Reviews       *ReviewHandler
	Views         *ViewHandler
	Comments      *CommentHandler
	Uploads       *UploadHandler
	Admin         *AdminHandler
	Notifications *NotificationHandler
	Health        *HealthHandler
}

type RouterConfig struct {
	JWTSecret    string
	Resolver     middleware.IdentityResolver
	RateLimiter  *middleware.RateLimiter // optional
	CORSOrigins  []string
	IsProduction bool
	// Public categories are served from UploadDir under UploadBaseURL.
	// Deliverables and payment proofs only leave through their endpoints.
	UploadDir     string
	UploadBaseURL string
}

func NewRouter(cfg RouterConfig, h Handlers) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.TraceMiddleware(),
		middleware.RequestLogger(),
		middleware.SecurityHeaders(middleware.SecurityConfig{
			Production:   cfg.IsProduction,
			ImageSources: imageSources(cfg.UploadBaseURL),
		}),
		cors.New(cors.Config{
			AllowOrigins:     cfg.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			ExposeHeaders:    []string{middleware.TraceHeader, "Content-Disposition"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
	)

	router.GET("/healthz", h.Health.Check)
	router.GET("/sitemap.xml", h.Projects.Sitemap)
	router.GET("/robots.txt", h.Projects.Robots)
	if prefix := uploadPath(cfg.UploadBaseURL); cfg.UploadDir != "" && prefix != "" {
		for _, category := range []storage.Category{storage.CategoryImages, storage.CategoryQR} {
			router.Static(prefix+"/"+string(category), filepath.Join(cfg.UploadDir, string(category)))
		}
	}

	api := router.Group("/api")
	if cfg.RateLimiter != nil {
		api.Use(cfg.RateLimiter.Middleware())
	}

	// Public routes
	api.POST("/auth/register", h.Auth.Register)
	api.POST("/auth/login", h.Auth.Login)
	api.POST("/auth/logout", h.Auth.Logout)
	api.GET("/projects", h.Projects.List)
	api.GET("/projects/:ref", h.Projects.Get)
	api.GET("/reviews", h.Reviews.List)
	api.POST("/views", h.Views.Record)
	api.GET("/views", h.Views.Count)
	api.GET("/comments", h.Comments.List)

	// Authenticated routes
	authed := api.Group("")
	authed.Use(middleware.AuthMiddleware(cfg.JWTSecret), middleware.IdentityMiddleware(cfg.Resolver))
	{
		authed.GET("/auth/me", h.Auth.Me)
		authed.POST("/uploads", h.Uploads.Upload)

		authed.POST("/projects", h.Projects.Create)
		authed.PUT("/projects/:id", h.Projects.Update)
		authed.DELETE("/projects/:id", h.Projects.Delete)
		authed.POST("/projects/:id/seo", h.Projects.GenerateSEO)

		authed.POST("/purchases", h.Purchases.Create)
		authed.GET("/purchases", h.Purchases.List)
		authed.GET("/purchases/:id", h.Purchases.Get)
		authed.GET("/purchases/:id/download", h.Purchases.Download)
		authed.GET("/purchases/:id/proof", h.Purchases.Proof)

		authed.POST("/reviews", h.Reviews.Upsert)
		authed.POST("/comments", h.Comments.Create)
	}

	// Admin routes
	admin := authed.Group("")
	admin.Use(middleware.AdminMiddleware())
	{
		admin.PATCH("/purchases", h.Purchases.Review)
		admin.PATCH("/purchases/:id", h.Purchases.Review)

		admin.GET("/admin/users", h.Admin.GetAllUsers)
		admin.PATCH("/admin/users/:id/role", h.Admin.SetRole)
		admin.GET("/admin/notifications", h.Admin.Notifications)
		admin.PATCH("/admin/comments/read", h.Admin.MarkCommentsRead)
		admin.GET("/admin/journal", h.Admin.Journal)
		admin.DELETE("/admin/journal", h.Admin.PruneJournal)
		admin.GET("/admin/ws", h.Notifications.HandleWebSocket)
	}

	return router
}

// uploadPath is the route prefix for served uploads. An absolute base URL
// (a CDN or proxy in front of this server) contributes only its path.
func uploadPath(uploadBaseURL string) string {
	u, err := url.Parse(uploadBaseURL)
	if err != nil {
		return ""
	}
	return strings.TrimRight(u.Path, "/")
}

// imageSources allows an absolute upload base URL as an image origin.
func imageSources(uploadBaseURL string) []string {
	u, err := url.Parse(uploadBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil
	}
	return []string{u.Scheme + "://" + u.Host}
}
