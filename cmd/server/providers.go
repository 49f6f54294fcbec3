package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Baaaki/devmarket/internal/broker"
	"github.com/Baaaki/devmarket/internal/cache"
	"github.com/Baaaki/devmarket/internal/config"
	"github.com/Baaaki/devmarket/internal/database"
	"github.com/Baaaki/devmarket/internal/handler"
	"github.com/Baaaki/devmarket/internal/journal"
	"github.com/Baaaki/devmarket/internal/middleware"
	"github.com/Baaaki/devmarket/internal/repository"
	"github.com/Baaaki/devmarket/internal/seo"
	"github.com/Baaaki/devmarket/internal/service"
	"github.com/Baaaki/devmarket/internal/storage"
	"github.com/Baaaki/devmarket/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var infraModule = fx.Provide(
	provideConfig,
	provideLogger,
	provideDB,
	provideRedis,
	provideStore,
	provideJournal,
	provideBroker,
	provideDrafter,
)

var repositoryModule = fx.Provide(
	repository.NewUserRepository,
	repository.NewProjectRepository,
	repository.NewPurchaseRepository,
	repository.NewReviewRepository,
	repository.NewViewRepository,
	repository.NewCommentRepository,
)

var serviceModule = fx.Provide(
	provideIdentity,
	provideAuthService,
	provideViewService,
	provideProjectService,
	providePurchaseService,
	provideReviewService,
	provideCommentService,
	service.NewNotificationService,
	provideAuditService,
	provideUploadService,
)

var handlerModule = fx.Provide(
	provideHandlers,
	provideRouter,
)

func provideConfig() (*config.Config, error) {
	return config.Load()
}

func provideLogger(cfg *config.Config) (*zap.Logger, error) {
	if err := logger.Init(!cfg.IsProduction()); err != nil {
		return nil, err
	}
	return logger.Log, nil
}

func provideDB(lc fx.Lifecycle, cfg *config.Config) (*gorm.DB, error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		database.Close(db)
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			database.Close(db)
			return nil
		},
	})
	return db, nil
}

// provideRedis returns a nil client when Redis is not configured or not
// reachable. The server then runs without rate limiting or the view cache,
// and notifications stay inside this process.
func provideRedis(lc fx.Lifecycle, cfg *config.Config) (*redis.Client, error) {
	if cfg.RedisURL == "" {
		logger.Log.Warn("REDIS_URL not set, running without Redis")
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := broker.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		logger.Log.Warn("Redis unavailable, running without it", zap.Error(err))
		return nil, nil
	}
	logger.Log.Info("Redis connected")
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}

func provideStore(cfg *config.Config) (storage.ObjectStore, error) {
	return storage.NewLocalStore(cfg.UploadDir, cfg.UploadBaseURL, cfg.UploadMaxBytes)
}

func provideJournal(lc fx.Lifecycle, cfg *config.Config) (*journal.Journal, error) {
	j, err := journal.Open(cfg.JournalPath)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return j.Close()
		},
	})
	return j, nil
}

func provideBroker(client *redis.Client) broker.NotificationBroker {
	if client == nil {
		return broker.NewLocalNotificationBroker()
	}
	return broker.NewRedisNotificationBroker(client)
}

func provideDrafter(lc fx.Lifecycle, cfg *config.Config) (*seo.Drafter, error) {
	var gen seo.Generator
	switch cfg.SEOProvider {
	case "openai":
		gen = seo.NewOpenAIGenerator(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	case "gemini":
		g, err := seo.NewGeminiGenerator(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return g.Close()
			},
		})
		gen = g
	}
	logger.Log.Info("SEO drafting configured", zap.String("provider", cfg.SEOProvider))
	return seo.NewDrafter(gen, cfg.SEORatePerMinute, cfg.SEOTimeout), nil
}

func provideIdentity(users *repository.UserRepository) *service.IdentityResolver {
	return service.NewIdentityResolver(users)
}

func provideAuthService(users *repository.UserRepository, cfg *config.Config) *service.AuthService {
	return service.NewAuthService(users, cfg.JWTSecret, cfg.JWTExpiry)
}

func provideViewService(views *repository.ViewRepository, projects *repository.ProjectRepository, client *redis.Client, cfg *config.Config) *service.ViewService {
	var seen service.SeenCache
	if client != nil {
		seen = cache.NewViewCache(client)
	}
	return service.NewViewService(views, projects, seen, cfg.ViewRetention)
}

func provideProjectService(
	projects *repository.ProjectRepository,
	users *repository.UserRepository,
	reviews *repository.ReviewRepository,
	views *service.ViewService,
	store storage.ObjectStore,
	drafter *seo.Drafter,
	cfg *config.Config,
) *service.ProjectService {
	return service.NewProjectService(projects, users, reviews, views, store, drafter, cfg.SiteBaseURL)
}

func providePurchaseService(
	purchases *repository.PurchaseRepository,
	projects *repository.ProjectRepository,
	store storage.ObjectStore,
	j *journal.Journal,
	b broker.NotificationBroker,
	cfg *config.Config,
) (*service.PurchaseService, error) {
	return service.NewPurchaseService(purchases, projects, store, j, b, cfg.DeliveryEmailPattern, cfg.StorageTimeout)
}

func provideReviewService(reviews *repository.ReviewRepository, projects *repository.ProjectRepository, identity *service.IdentityResolver) *service.ReviewService {
	return service.NewReviewService(reviews, projects, identity)
}

func provideCommentService(comments *repository.CommentRepository, projects *repository.ProjectRepository, b broker.NotificationBroker) *service.CommentService {
	return service.NewCommentService(comments, projects, b)
}

func provideAuditService(j *journal.Journal) *service.AuditService {
	return service.NewAuditService(j)
}

func provideUploadService(store storage.ObjectStore, cfg *config.Config) *service.UploadService {
	return service.NewUploadService(store, cfg.StorageTimeout)
}

type handlerParams struct {
	fx.In

	Config        *config.Config
	DB            *gorm.DB
	Redis         *redis.Client
	Auth          *service.AuthService
	Projects      *service.ProjectService
	Purchases     *service.PurchaseService
	Reviews       *service.ReviewService
	Views         *service.ViewService
	Comments      *service.CommentService
	Uploads       *service.UploadService
	Notifications *service.NotificationService
	Audit         *service.AuditService
}

func provideHandlers(p handlerParams) handler.Handlers {
	return handler.Handlers{
		Auth:          handler.NewAuthHandler(p.Auth, p.Config.IsProduction()),
		Projects:      handler.NewProjectHandler(p.Projects),
		Purchases:     handler.NewPurchaseHandler(p.Purchases),
		Reviews:       handler.NewReviewHandler(p.Reviews),
		Views:         handler.NewViewHandler(p.Views),
		Comments:      handler.NewCommentHandler(p.Comments),
		Uploads:       handler.NewUploadHandler(p.Uploads),
		Admin:         handler.NewAdminHandler(p.Auth, p.Comments, p.Notifications, p.Audit),
		Notifications: handler.NewNotificationHandler(p.Config.CORSOrigins),
		Health:        handler.NewHealthHandler(p.DB, p.Redis),
	}
}

func provideRouter(cfg *config.Config, h handler.Handlers, identity *service.IdentityResolver, client *redis.Client) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	return handler.NewRouter(handler.RouterConfig{
		JWTSecret:     cfg.JWTSecret,
		Resolver:      identity,
		RateLimiter:   provideRateLimiter(cfg, client),
		CORSOrigins:   cfg.CORSOrigins,
		IsProduction:  cfg.IsProduction(),
		UploadDir:     cfg.UploadDir,
		UploadBaseURL: cfg.UploadBaseURL,
	}, h)
}

func provideRateLimiter(cfg *config.Config, client *redis.Client) *middleware.RateLimiter {
	if client == nil {
		return nil
	}
	return middleware.NewRateLimiter(client, middleware.RateLimiterConfig{
		MaxRequests: cfg.RateLimitMaxRequests,
		Window:      cfg.RateLimitWindow,
		BlockTime:   cfg.RateLimitBlockTime,
	})
}

// startBackground runs the view janitor and the admin notification fan-out
// for the lifetime of the app.
func startBackground(lc fx.Lifecycle, cfg *config.Config, views *service.ViewService, h handler.Handlers, b broker.NotificationBroker) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go views.RunJanitor(ctx, cfg.ViewSweepInterval)
			return h.Notifications.Start(ctx, b)
		},
		OnStop: func(context.Context) error {
			cancel()
			return b.Close()
		},
	})
}

func startServer(lc fx.Lifecycle, cfg *config.Config, engine *gin.Engine, shutdowner fx.Shutdowner) {
	srv := &http.Server{
		Addr:              cfg.ServerPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				logger.Log.Info("Server starting", zap.String("addr", cfg.ServerPort), zap.String("environment", cfg.Environment))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Log.Error("HTTP server failed", zap.Error(err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Log.Info("Stopping HTTP server")
			err := srv.Shutdown(ctx)
			logger.Sync()
			return err
		},
	})
}
