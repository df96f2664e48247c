package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"eventix/internal/cache"
	"eventix/internal/config"
	"eventix/internal/database"
	"eventix/internal/external"
	"eventix/internal/handlers"
	"eventix/internal/logger"
	"eventix/internal/messaging"
	"eventix/internal/middleware"
	"eventix/internal/models"
	"eventix/internal/repository"
	"eventix/internal/search"
	"eventix/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the HTTP API process
type Server struct {
	router   *gin.Engine
	config   *config.Config
	db       *database.DB
	nats     *messaging.NATSClient
	valkey   *cache.ValkeyClient
	services *service.Services
	repos    *repository.Repositories
}

// NewServer connects the stores the API depends on and builds the router.
// Postgres and NATS are required; Valkey and Elasticsearch are optional.
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	gin.SetMode(cfg.GinMode)

	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.RunMigrations(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	natsClient, err := messaging.NewNATSClient(cfg.NATS)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	db.ExportPoolMetrics()

	s := &Server{
		config: cfg,
		db:     db,
		nats:   natsClient,
		repos:  repository.NewRepositories(db),
	}

	var opts service.Options

	if cfg.Valkey.Enabled {
		valkeyClient, err := cache.NewValkeyClient(cfg.Valkey)
		if err != nil {
			slog.Warn("Valkey unavailable, continuing without cache and rate limiting", "error", err)
		} else {
			s.valkey = valkeyClient
			opts.Cache = valkeyClient
		}
	}

	if cfg.Elasticsearch.Enabled() {
		esClient, err := search.NewElasticsearchClient(cfg.Elasticsearch)
		if err != nil {
			slog.Warn("Elasticsearch unavailable, search disabled", "error", err)
		} else {
			opts.Index = esClient
		}
	} else {
		slog.Info("ELASTICSEARCH_URL not set, search disabled")
	}

	stores := service.Stores{
		Events:   s.repos.Events,
		Bookings: s.repos.Bookings,
		Users:    s.repos.Users,
	}
	s.services = service.NewServices(stores, natsClient, external.NewLazyGateway(cfg.Payment), cfg.Booking, opts)

	s.router = s.newRouter()
	return s, nil
}

func (s *Server) newRouter() *gin.Engine {
	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(middleware.Metrics())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS(s.config.ClientURL))

	RegisterRoutes(router, handlers.NewHandlers(s.services), RouteOptions{
		JWTSecret: s.config.JWTSecret,
		Users:     s.repos.Users,
		Limiter:   s.limiter(),
		RateLimit: s.config.RateLimit,
	})

	router.GET("/health", s.healthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}

func (s *Server) limiter() middleware.Limiter {
	if !s.config.RateLimit.Enabled || s.valkey == nil {
		return nil
	}
	return s.valkey
}

// RouteOptions carries what the /api routes need besides the handlers
type RouteOptions struct {
	JWTSecret string
	Users     middleware.UserLookup
	Limiter   middleware.Limiter // nil disables rate limiting
	RateLimit config.RateLimitConfig
}

// RegisterRoutes mounts the /api routes
func RegisterRoutes(router *gin.Engine, h *handlers.Handlers, opts RouteOptions) {
	// provider retries must not be throttled
	router.POST("/api/payment/webhook", h.PaymentWebhook)

	api := router.Group("/api")
	if opts.Limiter != nil {
		api.Use(middleware.RateLimit(opts.Limiter, opts.RateLimit.Requests, opts.RateLimit.Window))
	}

	auth := middleware.Auth(opts.JWTSecret, opts.Users)

	events := api.Group("/events")
	{
		events.GET("", h.ListEvents)
		events.GET("/search", h.SearchEvents)
		events.GET("/:id", h.GetEvent)
		events.POST("", auth, middleware.RequireRole(models.RoleAdmin), h.CreateEvent)
		events.PUT("/:id", auth, h.UpdateEvent)
		events.DELETE("/:id", auth, h.DeleteEvent)
	}

	bookings := api.Group("/bookings", auth)
	{
		bookings.POST("", h.CreateBooking)
		bookings.GET("/my-bookings", h.ListMyBookings)
	}

	payment := api.Group("/payment")
	{
		payment.POST("/create-checkout-session", auth, h.CreateCheckoutSession)
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	dbHealth := s.db.HealthCheck(c.Request.Context())

	status := http.StatusOK
	if !dbHealth.Healthy() {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"status":   dbHealth.Status,
		"service":  "eventix-api",
		"database": dbHealth,
	})
}

// Handler returns the router for http.Server and tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Cleanup closes connections
func (s *Server) Cleanup() error {
	if s.nats != nil {
		if err := s.nats.Close(); err != nil {
			logger.Get().Error("Error closing NATS connection", "error", err)
		}
	}

	if s.valkey != nil {
		if err := s.valkey.Close(); err != nil {
			logger.Get().Error("Error closing Valkey connection", "error", err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			logger.Get().Error("Error closing database connection", "error", err)
			return err
		}
	}

	return nil
}
