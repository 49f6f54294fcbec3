package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// SecurityConfig shapes the headers set on every response.
type SecurityConfig struct {
	Production bool
	// Extra origins allowed to serve images, e.g. a CDN in front of uploads.
	ImageSources []string
}

func (cfg SecurityConfig) contentPolicy() string {
	img := append([]string{"'self'", "data:"}, cfg.ImageSources...)
	directives := []string{
		"default-src 'none'",
		"img-src " + strings.Join(img, " "),
		"connect-src 'self' ws: wss:", // admin notification socket
		"frame-ancestors 'none'",
		"base-uri 'none'",
	}
	return strings.Join(directives, "; ")
}

// SecurityHeaders hardens API and upload responses. The API only returns
// JSON, XML and files, so the content policy denies everything by default.
// HSTS is only sent in production.
func SecurityHeaders(cfg SecurityConfig) gin.HandlerFunc {
	policy := cfg.contentPolicy()

	return func(c *gin.Context) {
		// Served uploads must never be reinterpreted as HTML or script.
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Content-Security-Policy", policy)
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Permissions-Policy", "camera=(), microphone=(), geolocation=(), payment=()")

		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			// Purchases, proofs and deliverables are per-user.
			c.Header("Cache-Control", "no-store")
		} else {
			// Project images are embedded by the storefront on another origin.
			c.Header("Cross-Origin-Resource-Policy", "cross-origin")
		}

		if cfg.Production {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
		}

		c.Next()
	}
}
