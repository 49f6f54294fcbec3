package handler_test

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/Baaaki/devmarket/internal/handler"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRouter_UploadBaseURL(t *testing.T) {
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "images"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "images", "cover.png"), []byte("png"), 0o644))

	tests := []struct {
		name       string
		baseURL    string
		wantStatus int
	}{
		{name: "path", baseURL: "/uploads", wantStatus: http.StatusOK},
		{name: "absolute url", baseURL: "https://cdn.example.com/uploads/", wantStatus: http.StatusOK},
		{name: "absolute url without path", baseURL: "https://cdn.example.com", wantStatus: http.StatusNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var router *gin.Engine
			require.NotPanics(t, func() {
				router = handler.NewRouter(handler.RouterConfig{
					CORSOrigins:   []string{"http://localhost:3000"},
					UploadDir:     dir,
					UploadBaseURL: tc.baseURL,
				}, handler.Handlers{})
			})

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/uploads/images/cover.png", nil))
			assert.Equal(t, tc.wantStatus, w.Code)
		})
	}
}
