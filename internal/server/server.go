// Package server contains the HTTP handlers for the courtside API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"courtside/internal/bootstrap"
	"courtside/internal/config"
	"courtside/internal/featureflags"
	"courtside/internal/media"
	"courtside/internal/middleware"
	"courtside/internal/models"
	"courtside/internal/notifications"
	"courtside/internal/repository"
	"courtside/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	notifier       *notifications.Notifier
	featureFlags   *featureflags.Manager

	courtships *service.CourtshipService
	users      *service.UserDirectory
	buckets    *service.BucketService
	uploads    *service.UploadService
	comments   *service.CommentService
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	rt, err := bootstrap.InitRuntime(cfg)
	if err != nil {
		return nil, err
	}
	return NewServerWithDeps(cfg, rt.DB, rt.Redis, rt.Media)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil; provider may be nil when object storage is off.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, provider media.Provider) (*Server, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	if provider == nil {
		provider = media.Disabled{}
	}
	middleware.InitMiddleware(cfg)

	userRepo := repository.NewUserRepository(db)
	relRepo := repository.NewRelationshipRepository(db)
	uploadRepo := repository.NewUploadRepository(db)
	bucketRepo := repository.NewBucketRepository(db)
	commentRepo := repository.NewCommentRepository(db)

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("courtside-api"),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
	}
	if redisClient != nil {
		s.notifier = notifications.NewNotifier(redisClient)
	}

	// a nil *Notifier must not become a non-nil interface value
	var publisher service.EventPublisher
	if s.notifier != nil {
		publisher = s.notifier
	}

	graph := service.NewRelationshipGraph(relRepo)
	shares := service.NewShareSet(uploadRepo, userRepo)
	policy := service.NewVisibilityPolicy(graph, shares, uploadRepo, s.featureFlags)

	s.courtships = service.NewCourtshipService(graph, userRepo, publisher)
	s.users = service.NewUserDirectory(userRepo, graph, uploadRepo, provider)
	s.buckets = service.NewBucketService(bucketRepo, userRepo, policy, provider)
	s.uploads = service.NewUploadService(uploadRepo, bucketRepo, userRepo, shares, policy, provider)
	s.comments = service.NewCommentService(commentRepo, uploadRepo, userRepo, policy)
	return s, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           86400,
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api", middleware.AuthRequired)
	api.Get("/feature-flags", s.GetFeatureFlags)

	courtships := api.Group("/courtships")
	// /requests routes before the generic /:userId
	courtships.Post("/requests", s.SendCourtshipRequest)
	courtships.Get("/requests", s.GetCourtshipRequests)
	courtships.Put("/requests/:userId", s.AnswerCourtshipRequest)
	courtships.Delete("/requests/:userId", s.CancelCourtshipRequest)
	courtships.Delete("/:userId", s.RemoveCourtship)

	users := api.Group("/users")
	users.Get("/me", s.GetMyProfile)
	users.Put("/me", s.UpdateMyProfile)
	users.Delete("/me", s.DeleteMyAccount)
	users.Get("/search", s.SearchUsers)
	users.Get("/:id/courtships", s.GetUserCourtships)
	users.Get("/:id/buckets", s.GetUserBuckets)
	users.Get("/:id/uploads", s.GetUserUploads)
	users.Get("/:id/comments", s.GetUserComments)
	users.Get("/:id", s.GetUserProfile)

	buckets := api.Group("/buckets")
	buckets.Post("/", s.CreateBucket)
	buckets.Put("/:id", s.RenameBucket)
	buckets.Delete("/:id", s.DeleteBucket)

	uploads := api.Group("/uploads")
	uploads.Post("/", s.CreateUpload)
	uploads.Post("/:id/convert", s.ConvertUpload)
	uploads.Get("/:id/download", s.DownloadUpload)
	uploads.Get("/:id", s.GetUpload)
	uploads.Put("/:id", s.UpdateUpload)
	uploads.Delete("/:id", s.DeleteUpload)

	comments := api.Group("/comments")
	comments.Post("/", s.CreateComment)
	comments.Get("/", s.GetComments)
	comments.Delete("/:id", s.DeleteComment)
}

// NewApp builds the Fiber app with middleware and routes installed.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: "courtside",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return models.RespondWithError(c, fe.Code, err)
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests. Redis is optional, so
// only the database decides readiness.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	s.app = s.NewApp()

	if s.notifier != nil {
		if err := s.notifier.StartPatternSubscriber(s.shutdownCtx, s.logDelivery); err != nil {
			middleware.Logger.Warn("notification subscriber not started", slog.String("error", err.Error()))
		}
	}

	middleware.Logger.Info("server starting", slog.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

func (s *Server) logDelivery(channel, payload string) {
	userID, ok := notifications.UserFromChannel(channel)
	if !ok {
		return
	}
	middleware.Logger.Debug("notification published",
		slog.Uint64("user_id", uint64(userID)),
		slog.Int("bytes", len(payload)))
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
