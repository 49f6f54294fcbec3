package handler_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/Baaaki/devmarket/internal/config"
	"github.com/Baaaki/devmarket/internal/handler"
	"github.com/Baaaki/devmarket/internal/journal"
	"github.com/Baaaki/devmarket/internal/middleware"
	"github.com/Baaaki/devmarket/internal/models"
	"github.com/Baaaki/devmarket/internal/repository"
	"github.com/Baaaki/devmarket/internal/seo"
	"github.com/Baaaki/devmarket/internal/service"
	"github.com/Baaaki/devmarket/internal/testutil"
	"github.com/Baaaki/devmarket/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"
)

const testSecret = "test-secret-key"

// MarketplaceHandlerTestSuite drives the full router against in-memory SQLite.
type MarketplaceHandlerTestSuite struct {
	suite.Suite
	testDB   *testutil.TestDatabase
	store    *testutil.MemoryStore
	notifier *testutil.RecordingNotifier
	journal  *journal.Journal
	feed     *handler.NotificationHandler
	router   *gin.Engine

	buyer   *models.User
	admin   *models.User
	project *models.Project
}

func (s *MarketplaceHandlerTestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
}

func (s *MarketplaceHandlerTestSuite) SetupTest() {
	s.testDB = testutil.SetupTestDatabase(s.T())
	db := s.testDB.DB
	s.store = testutil.NewMemoryStore()
	s.notifier = &testutil.RecordingNotifier{}

	j, err := journal.Open(filepath.Join(s.T().TempDir(), "journal.log"))
	s.Require().NoError(err)
	s.journal = j

	users := repository.NewUserRepository(db)
	projects := repository.NewProjectRepository(db)
	reviews := repository.NewReviewRepository(db)
	identity := service.NewIdentityResolver(users)

	views := service.NewViewService(repository.NewViewRepository(db), projects, nil, 720*time.Hour)
	projectService := service.NewProjectService(projects, users, reviews, views, s.store,
		seo.NewDrafter(nil, 10, time.Second), "https://market.test")
	purchaseService, err := service.NewPurchaseService(repository.NewPurchaseRepository(db), projects,
		s.store, j, s.notifier, config.DefaultDeliveryEmailPattern, time.Second)
	s.Require().NoError(err)
	commentService := service.NewCommentService(repository.NewCommentRepository(db), projects, s.notifier)
	authService := service.NewAuthService(users, testSecret, time.Hour)
	s.feed = handler.NewNotificationHandler([]string{"http://localhost:3000"})

	s.router = handler.NewRouter(handler.RouterConfig{
		JWTSecret:   testSecret,
		Resolver:    identity,
		CORSOrigins: []string{"http://localhost:3000"},
	}, handler.Handlers{
		Auth:      handler.NewAuthHandler(authService, false),
		Projects:  handler.NewProjectHandler(projectService),
		Purchases: handler.NewPurchaseHandler(purchaseService),
		Reviews:   handler.NewReviewHandler(service.NewReviewService(reviews, projects, identity)),
		Views:     handler.NewViewHandler(views),
		Comments:  handler.NewCommentHandler(commentService),
		Uploads:   handler.NewUploadHandler(service.NewUploadService(s.store, time.Second)),
		Admin: handler.NewAdminHandler(authService, commentService,
			service.NewNotificationService(commentService, purchaseService), service.NewAuditService(j)),
		Notifications: s.feed,
		Health:        handler.NewHealthHandler(db, nil),
	})

	s.buyer = testutil.DefaultTestUser(s.T(), db)
	s.admin = testutil.DefaultAdminUser(s.T(), db)
	s.project = testutil.CreateProject(s.T(), db, s.admin, "Landing Page Kit")
	s.store.Put(s.project.FileURL, []byte("deliverable-bytes"))
}

func (s *MarketplaceHandlerTestSuite) TearDownTest() {
	s.journal.Close()
	s.testDB.Teardown(s.T())
}

func (s *MarketplaceHandlerTestSuite) token(u *models.User) string {
	tok, err := utils.GenerateToken(u, testSecret, time.Hour)
	s.Require().NoError(err)
	return tok
}

func (s *MarketplaceHandlerTestSuite) do(method, path string, body interface{}, as *models.User) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if as != nil {
		req.Header.Set("Authorization", "Bearer "+s.token(as))
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *MarketplaceHandlerTestSuite) submitPurchase(as *models.User, email string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	s.Require().NoError(mw.WriteField("projectId", s.project.ID.String()))
	s.Require().NoError(mw.WriteField("deliveryEmail", email))
	part, err := mw.CreateFormFile("proof", "receipt.png")
	s.Require().NoError(err)
	_, err = part.Write(testutil.PNG(s.T()))
	s.Require().NoError(err)
	s.Require().NoError(mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/purchases", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+s.token(as))
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder) map[string]interface{} {
	var out map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return out
}

func (s *MarketplaceHandlerTestSuite) TestRegisterAndSessionCookie() {
	w := s.do(http.MethodPost, "/api/auth/register", map[string]string{
		"name":     "New User",
		"email":    "newuser@example.com",
		"password": "SecurePass123",
	}, nil)

	s.Require().Equal(http.StatusCreated, w.Code)
	user := decode(w)["user"].(map[string]interface{})
	s.Equal("newuser@example.com", user["email"])
	s.Equal("user", user["role"])

	var tokenCookie *http.Cookie
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == middleware.TokenCookie {
			tokenCookie = cookie
		}
	}
	s.Require().NotNil(tokenCookie)
	s.True(tokenCookie.HttpOnly)
	s.Equal(http.SameSiteLaxMode, tokenCookie.SameSite)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(tokenCookie)
	me := httptest.NewRecorder()
	s.router.ServeHTTP(me, req)
	s.Equal(http.StatusOK, me.Code)
	s.Contains(me.Body.String(), "newuser@example.com")
}

func (s *MarketplaceHandlerTestSuite) TestAuthErrors() {
	testCases := []struct {
		name       string
		path       string
		body       map[string]string
		wantStatus int
		wantError  string
	}{
		{"duplicate_email", "/api/auth/register", map[string]string{"name": "Dup", "email": "test@example.com", "password": "SecurePass123"}, http.StatusConflict, "email already exists"},
		{"short_name", "/api/auth/register", map[string]string{"name": "a", "email": "a@example.com", "password": "SecurePass123"}, http.StatusBadRequest, "name must be between 2 and 60 characters"},
		{"invalid_email", "/api/auth/register", map[string]string{"name": "Ann", "email": "invalid-email", "password": "SecurePass123"}, http.StatusBadRequest, "invalid email format"},
		{"short_password", "/api/auth/register", map[string]string{"name": "Ann", "email": "ann@example.com", "password": "short"}, http.StatusBadRequest, "password must be at least 8 characters"},
		{"missing_fields", "/api/auth/login", map[string]string{"email": "test@example.com"}, http.StatusBadRequest, "invalid request body"},
		{"wrong_password", "/api/auth/login", map[string]string{"email": "test@example.com", "password": "WrongPass123"}, http.StatusUnauthorized, "invalid credentials"},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			w := s.do(http.MethodPost, tc.path, tc.body, nil)

			s.Equal(tc.wantStatus, w.Code)
			resp := decode(w)
			s.Contains(resp["error"], tc.wantError)
			s.NotEmpty(resp["trace_id"])
		})
	}

	w := s.do(http.MethodPost, "/api/auth/login", map[string]string{"email": "test@example.com", "password": testutil.DefaultPassword}, nil)
	s.Equal(http.StatusOK, w.Code)
	s.NotEmpty(decode(w)["token"])
}

func (s *MarketplaceHandlerTestSuite) TestPurchaseWorkflow() {
	w := s.submitPurchase(s.buyer, "foo@yahoo.com")
	s.Equal(http.StatusBadRequest, w.Code)

	w = s.submitPurchase(s.buyer, "buyer@gmail.com")
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	purchaseID := decode(w)["id"].(string)

	w = s.submitPurchase(s.buyer, "buyer@gmail.com")
	s.Equal(http.StatusConflict, w.Code)
	s.Equal(purchaseID, decode(w)["existing_id"])

	w = s.do(http.MethodGet, "/api/purchases/"+purchaseID+"/download", nil, s.buyer)
	s.Equal(http.StatusForbidden, w.Code, "pending purchases cannot download")

	w = s.do(http.MethodPatch, "/api/purchases/"+purchaseID, map[string]string{"status": "approved"}, s.buyer)
	s.Equal(http.StatusForbidden, w.Code)

	w = s.do(http.MethodPatch, "/api/purchases", map[string]string{"id": purchaseID, "status": "rejected"}, s.admin)
	s.Equal(http.StatusBadRequest, w.Code, "rejecting needs feedback")

	w = s.do(http.MethodPatch, "/api/purchases/"+purchaseID, map[string]string{"status": "approved"}, s.admin)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.Equal("approved", decode(w)["status"])

	w = s.do(http.MethodPatch, "/api/purchases/"+purchaseID, map[string]string{"status": "rejected", "feedback": "late"}, s.admin)
	s.Equal(http.StatusConflict, w.Code)

	w = s.do(http.MethodGet, "/api/purchases/"+purchaseID+"/download", nil, s.buyer)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal("deliverable-bytes", w.Body.String())
	s.Contains(w.Header().Get("Content-Disposition"), "landing-page-kit.zip")
}

func (s *MarketplaceHandlerTestSuite) TestPurchaseListScope() {
	other := testutil.CreateUser(s.T(), s.testDB.DB, "Other", "other@example.com", testutil.DefaultPassword, models.RoleUser)
	s.Require().Equal(http.StatusCreated, s.submitPurchase(s.buyer, "buyer@gmail.com").Code)
	s.Require().Equal(http.StatusCreated, s.submitPurchase(other, "other@gmail.com").Code)

	w := s.do(http.MethodGet, "/api/purchases?scope=all", nil, s.buyer)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal(float64(1), decode(w)["count"])

	w = s.do(http.MethodGet, "/api/purchases?scope=all", nil, s.admin)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal(float64(2), decode(w)["count"])
}

func (s *MarketplaceHandlerTestSuite) TestViewsAlwaysSucceed() {
	body := map[string]string{"projectId": s.project.Slug, "deviceId": "device-1"}

	w := s.do(http.MethodPost, "/api/views", body, nil)
	s.Equal(http.StatusOK, w.Code)
	s.Equal(true, decode(w)["recorded"])

	w = s.do(http.MethodPost, "/api/views", body, nil)
	s.Equal(http.StatusOK, w.Code)
	s.Equal(false, decode(w)["recorded"])

	w = s.do(http.MethodPost, "/api/views", map[string]string{"projectId": "unknown", "deviceId": "device-1"}, nil)
	s.Equal(http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/api/views?projectId="+s.project.ID.String(), nil, nil)
	s.Equal(http.StatusOK, w.Code)
	s.Equal(float64(1), decode(w)["views"])
}

func (s *MarketplaceHandlerTestSuite) TestProjectLifecycle() {
	w := s.do(http.MethodPost, "/api/projects", map[string]interface{}{
		"title": "Hello, World! 2024",
		"type":  "template",
		"price": 10,
	}, s.buyer)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	created := decode(w)
	s.Equal("hello-world-2024", created["slug"])
	s.NotContains(created, "file_url")

	w = s.do(http.MethodGet, "/api/projects/hello-world-2024", nil, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal("Hello, World! 2024", decode(w)["title"])

	w = s.do(http.MethodDelete, "/api/projects/"+s.project.ID.String(), nil, s.buyer)
	s.Equal(http.StatusForbidden, w.Code)

	w = s.do(http.MethodGet, "/api/projects/missing-slug", nil, nil)
	s.Equal(http.StatusNotFound, w.Code)

	w = s.do(http.MethodPut, "/api/projects/not-a-uuid", map[string]string{"title": "x"}, s.buyer)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *MarketplaceHandlerTestSuite) TestAdminRoutes() {
	s.Equal(http.StatusUnauthorized, s.do(http.MethodGet, "/api/admin/notifications", nil, nil).Code)
	s.Equal(http.StatusForbidden, s.do(http.MethodGet, "/api/admin/notifications", nil, s.buyer).Code)

	s.Require().Equal(http.StatusCreated, s.submitPurchase(s.buyer, "buyer@gmail.com").Code)
	w := s.do(http.MethodPost, "/api/comments", map[string]string{"projectId": s.project.Slug, "body": "Is there a demo?"}, s.buyer)
	s.Require().Equal(http.StatusCreated, w.Code)

	w = s.do(http.MethodGet, "/api/admin/notifications", nil, s.admin)
	s.Require().Equal(http.StatusOK, w.Code)
	summary := decode(w)
	s.Equal(float64(1), summary["pending_purchases"])
	s.Equal(float64(1), summary["unread_comments"])

	w = s.do(http.MethodPatch, "/api/admin/comments/read", map[string]interface{}{}, s.admin)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal(float64(1), decode(w)["updated"])

	w = s.do(http.MethodGet, "/api/admin/journal", nil, s.admin)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal(float64(0), decode(w)["count"])

	w = s.do(http.MethodPatch, "/api/admin/users/"+s.buyer.ID.String()+"/role", map[string]string{"role": "admin"}, s.admin)
	s.Equal(http.StatusOK, w.Code)
}

func (s *MarketplaceHandlerTestSuite) TestSEOEndpoints() {
	w := s.do(http.MethodGet, "/sitemap.xml", nil, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), "https://market.test/projects/landing-page-kit")

	w = s.do(http.MethodGet, "/robots.txt", nil, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), "Disallow: /api/")

	w = s.do(http.MethodPost, "/api/projects/"+s.project.ID.String()+"/seo", nil, s.admin)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal("Landing Page Kit", decode(w)["title"])
}

func (s *MarketplaceHandlerTestSuite) TestHealth() {
	w := s.do(http.MethodGet, "/healthz", nil, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	body := decode(w)
	s.Equal("ok", body["database"])
	s.Equal("disabled", body["redis"])
}

func TestMarketplaceHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(MarketplaceHandlerTestSuite))
}
