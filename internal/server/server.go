// Package server contains the HTTP handlers for the application's pages and API endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"buffonomics/internal/auth"
	"buffonomics/internal/cache"
	"buffonomics/internal/config"
	"buffonomics/internal/congress"
	"buffonomics/internal/database"
	"buffonomics/internal/middleware"
	"buffonomics/internal/models"
	"buffonomics/internal/repository"
	"buffonomics/internal/seed"
	"buffonomics/internal/service"
	"buffonomics/internal/session"
)

var (
	promOnce sync.Once
	prom     *fiberprometheus.FiberPrometheus
)

// metrics returns the process-wide HTTP metrics middleware. The collectors live in
// the default registry, so they are registered once.
func metrics() *fiberprometheus.FiberPrometheus {
	promOnce.Do(func() {
		prom = fiberprometheus.New("buffonomics")
	})
	return prom
}

// Server holds all dependencies and provides handlers
type Server struct {
	config   *config.Config
	db       *gorm.DB
	redis    *redis.Client
	cache    *cache.Cache
	app      *fiber.App
	started  time.Time
	sessions session.Store
	codec    *session.CookieCodec
	sweeper  *session.Sweeper

	authService       *service.AuthService
	politicianService *service.PoliticianService
	followService     *service.FollowService
	marketService     *service.MarketService

	users       repository.UserRepository
	politicians repository.CongressRepository
	hasher      *auth.Hasher
}

// Deps are the collaborators a Server is built from. DB and Redis are optional;
// when Verifier is nil registered users and AUTH_USERS credentials are accepted.
type Deps struct {
	DB          *gorm.DB
	Redis       *redis.Client
	Sessions    session.Store
	Users       repository.UserRepository
	Follows     repository.FollowRepository
	Politicians repository.CongressRepository
	Source      congress.Source
	Feed        congress.Feed
	Verifier    auth.Verifier
}

// NewServer creates a new server instance with all dependencies built from cfg.
func NewServer(cfg *config.Config) (*Server, error) {
	deps := Deps{}

	if cfg.RedisURL != "" {
		client, err := cache.Connect(context.Background(), cfg.RedisURL)
		switch {
		case err == nil:
			deps.Redis = client
		case cfg.SessionBackend == config.SessionBackendRedis:
			return nil, fmt.Errorf("redis connection failed: %w", err)
		default:
			middleware.Logger.Warn("Redis unavailable, continuing without cache", slog.String("error", err.Error()))
		}
	}

	if cfg.Datastore == config.DatastoreMemory {
		follows := repository.NewMemoryFollowRepository()
		deps.Follows = follows
		deps.Users = repository.NewMemoryUserRepository(follows)
		deps.Politicians = repository.NewMemoryCongressRepository()
		middleware.Logger.Info("Using in-memory repositories")
	} else {
		db, err := database.Connect(cfg)
		if err != nil {
			return nil, fmt.Errorf("database connection failed: %w", err)
		}
		deps.DB = db
		deps.Follows = repository.NewFollowRepository(db)
		deps.Users = repository.NewUserRepository(db)
		deps.Politicians = repository.NewCongressRepository(db)
	}

	if cfg.SessionBackend == config.SessionBackendRedis && deps.Redis != nil {
		deps.Sessions = session.NewRedisStore(deps.Redis, cfg.SessionTTL)
	} else {
		deps.Sessions = session.NewMemoryStore(cfg.SessionTTL, nil)
	}

	quiver := congress.NewQuiverClient(congress.QuiverConfig{
		BaseURL:    cfg.QuiverBaseURL,
		APIKey:     cfg.QuiverAPIKey,
		TradesPath: cfg.QuiverTradesPath,
		ExtraPaths: cfg.ExtraPaths(),
		LivePath:   cfg.QuiverLivePath,
		PageSize:   cfg.QuiverPageSize,
		Timeout:    cfg.QuiverTimeout,
		RateLimit:  cfg.QuiverRateLimit,
	}, nil)
	if !quiver.Enabled() {
		middleware.Logger.Warn("QUIVER_API_KEY is not set; live congressional data is disabled")
	}
	chain := congress.ChainSource{quiver}
	if dir := congress.NewDirectoryClient(cfg.PoliticianAPIURL, cfg.QuiverTimeout, nil); dir != nil {
		chain = append(chain, dir)
	}
	deps.Source = chain
	deps.Feed = quiver

	return NewServerWithDeps(cfg, deps)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
func NewServerWithDeps(cfg *config.Config, deps Deps) (*Server, error) {
	if deps.Sessions == nil {
		return nil, errors.New("session store is required")
	}
	if deps.Users == nil || deps.Follows == nil || deps.Politicians == nil {
		return nil, errors.New("repositories are required")
	}

	hasher := auth.NewHasher(cfg.BcryptCost)
	verifier := deps.Verifier
	if verifier == nil {
		verifier = auth.ChainVerifier{
			auth.NewUserVerifier(deps.Users, hasher),
			auth.NewEnvVerifier(cfg.AuthUsers, !cfg.IsProduction()),
		}
	}

	c := cache.New(deps.Redis)
	s := &Server{
		config:   cfg,
		db:       deps.DB,
		redis:    deps.Redis,
		cache:    c,
		started:  time.Now(),
		sessions: deps.Sessions,
		codec:    session.NewCookieCodec(cfg.SessionSecret),
		sweeper:  session.NewSweeper(deps.Sessions, cfg.SessionSweepInterval),

		users:       deps.Users,
		politicians: deps.Politicians,
		hasher:      hasher,
	}
	s.authService = service.NewAuthService(verifier, deps.Sessions, deps.Users, hasher)
	s.politicianService = service.NewPoliticianService(deps.Politicians, deps.Source, c, cfg.ProfileMaxAge)
	s.followService = service.NewFollowService(deps.Follows, deps.Politicians)
	s.marketService = service.NewMarketService(deps.Feed, c, cfg.MarketCacheTTL)

	s.app = fiber.New(fiber.Config{
		AppName:      "Buffonomics",
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
		ErrorHandler: s.errorHandler,
	})
	s.SetupMiddleware(s.app)
	s.SetupRoutes(s.app)
	return s, nil
}

// App returns the configured fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(middleware.TracingMiddleware())
	app.Use(s.loadSession())
	app.Use(middleware.ContextMiddleware())
	app.Use(metrics().Middleware)
	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:3000"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, X-Requested-With",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        300,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return models.RespondWithError(c, fiber.StatusTooManyRequests, models.NewRateLimitError())
		},
	}))
}

func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/healthz", s.Healthz)
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	metrics().RegisterAt(app, "/metrics")

	if s.config.StaticDir != "" {
		app.Static("/static", s.config.StaticDir)
	}
	if s.config.ScriptsDir != "" {
		app.Static("/scripts", s.config.ScriptsDir)
	}

	app.Get("/", s.Root)
	app.Get("/login", s.LoginPage)
	app.Post("/login", middleware.RateLimit(s.redis, 10, 5*time.Minute, "login"), s.Login)
	app.Post("/logout", s.Logout)
	app.Get("/register", s.page("register.html"))
	app.Post("/register", middleware.RateLimit(s.redis, 5, 10*time.Minute, "register"), s.Register)

	pageAuth := s.PageRequired()
	app.Get("/home", pageAuth, s.page("home.html"))
	app.Get("/dashboard", pageAuth, s.page("dashboard.html"))
	app.Get("/politicians", pageAuth, s.page("politicians.html"))
	app.Get("/profile", pageAuth, s.page("profile.html"))

	api := app.Group("/api")
	api.Get("/session", s.GetSession)
	api.Post("/login", middleware.RateLimit(s.redis, 10, 5*time.Minute, "login"), s.Login)
	api.Post("/logout", s.Logout)

	apiAuth := s.AuthRequired()
	api.Get("/politicians", apiAuth, s.GetPolitician("politician"))
	api.Get("/politicians/search", apiAuth, s.SearchPoliticians)
	api.Get("/politicians/highlights", apiAuth, s.GetHighlights)
	api.Get("/congress", apiAuth, s.GetPolitician("congress"))

	api.Get("/follows", apiAuth, s.GetFollows)
	api.Post("/follows", apiAuth, s.FollowPolitician)
	api.Delete("/follows", apiAuth, s.UnfollowPolitician)

	api.Get("/stocks/movers", apiAuth, middleware.RateLimit(s.redis, 30, time.Minute, "movers"), s.GetMovers)

	app.Use(s.NotFound)
}

// Healthz reports liveness with the process uptime in seconds.
func (s *Server) Healthz(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"ok":     true,
		"uptime": time.Since(s.started).Seconds(),
	})
}

func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "memory"
	if s.db != nil {
		dbStatus = "healthy"
		if err := database.Ping(ctx, s.db); err != nil {
			dbStatus = "unhealthy"
		}
	}

	redisStatus := "unavailable"
	if s.cache.Enabled() {
		redisStatus = "healthy"
		if err := s.cache.Ping(ctx); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus == "unhealthy" {
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

// errorHandler maps handler errors onto responses. Unknown errors become 500 server.
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		if fe.Code == fiber.StatusNotFound {
			return s.NotFound(c)
		}
		return models.RespondWithError(c, fe.Code, &models.AppError{
			Code:    statusCode(fe.Code),
			Message: fe.Message,
			Status:  fe.Code,
		})
	}

	appErr := models.AsAppError(err)
	if appErr.Status >= fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(c.UserContext(), "Request failed", slog.String("error", err.Error()))
	}
	return models.RespondWithError(c, 0, appErr)
}

func statusCode(status int) string {
	switch {
	case status == fiber.StatusUnauthorized:
		return models.CodeUnauthenticated
	case status == fiber.StatusTooManyRequests:
		return models.CodeRateLimited
	case status >= fiber.StatusInternalServerError:
		return models.CodeServer
	default:
		return models.CodeInvalid
	}
}

// SeedDemoData fills the configured repositories with generated profiles and users.
func (s *Server) SeedDemoData(ctx context.Context, opts seed.Options) (*seed.Result, error) {
	return seed.NewSeeder(seed.NewFactory(opts), s.politicians, s.users, s.hasher).Run(ctx)
}

// Start runs the session sweeper and listens on the configured port.
func (s *Server) Start(ctx context.Context) error {
	s.sweeper.Start(ctx)
	middleware.Logger.Info("Server starting", slog.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.sweeper.Stop()

	if err := s.app.ShutdownWithContext(ctx); err != nil {
		middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
	}

	if s.db != nil {
		if err := database.Close(s.db); err != nil {
			middleware.Logger.Error("error closing database", slog.String("error", err.Error()))
		}
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", err.Error()))
		}
	}

	middleware.Logger.Info("Server shutdown complete")
	return nil
}
