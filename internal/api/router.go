package api

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/charlesng35/gatepass/internal/app"
	iauth "github.com/charlesng35/gatepass/internal/auth"
	"github.com/charlesng35/gatepass/internal/handlers"
	"github.com/charlesng35/gatepass/internal/middleware"
	"github.com/charlesng35/gatepass/internal/monitoring"
	"github.com/charlesng35/gatepass/internal/monitoring/checks"
	"github.com/charlesng35/gatepass/internal/realtime"
	"github.com/charlesng35/gatepass/internal/security"
	"github.com/charlesng35/gatepass/internal/services"
	"github.com/charlesng35/gatepass/internal/ticket"
)

const (
	defaultRateLimitRequests = 100
	defaultRateLimitWindow   = time.Minute
)

// Dependencies carries the services exposed over HTTP. Hub and Dispatcher are
// optional; the live feed and the email test route are only mounted when set.
// Health defaults to a database-only readiness probe.
type Dependencies struct {
	DB           *gorm.DB
	Operators    *iauth.OperatorService
	Attendees    *services.AttendeeStore
	Registration *services.RegistrationService
	Redemption   *services.RedemptionService
	Scans        *services.ScanLogService
	Renderer     *ticket.Renderer
	Hub          *realtime.Hub
	Dispatcher   *services.DispatchService
	RateStore    middleware.RateStore
	Health       *monitoring.HealthManager
}

func (d Dependencies) validate() error {
	switch {
	case d.DB == nil:
		return errors.New("database handle must be provided")
	case d.Operators == nil:
		return errors.New("operator service must be provided")
	case d.Attendees == nil:
		return errors.New("attendee store must be provided")
	case d.Registration == nil:
		return errors.New("registration service must be provided")
	case d.Redemption == nil:
		return errors.New("redemption service must be provided")
	case d.Scans == nil:
		return errors.New("scan log service must be provided")
	}
	return nil
}

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(cfg *app.Config, deps Dependencies) (*gin.Engine, error) {
	if cfg == nil {
		return nil, errors.New("config must be provided")
	}
	if err := deps.validate(); err != nil {
		return nil, err
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins...))
	if cfg.Server.CSRF.Enabled {
		r.Use(middleware.CSRF())
	}

	requests, window := cfg.Server.RateLimit.Requests, cfg.Server.RateLimit.Window
	if requests <= 0 {
		requests = defaultRateLimitRequests
	}
	if window <= 0 {
		window = defaultRateLimitWindow
	}
	r.Use(middleware.RateLimit(deps.RateStore, requests, window))

	health := handlers.Health(deps.DB)
	r.GET("/health", health)
	r.GET("/api/health", health)

	readiness := deps.Health
	if readiness == nil {
		readiness = monitoring.NewHealthManager(checks.Database(deps.DB, 0))
	}
	r.GET("/health/ready", handlers.Readiness(readiness))

	registrationHandler, err := handlers.NewRegistrationHandler(deps.Registration)
	if err != nil {
		return nil, err
	}
	authHandler, err := handlers.NewAuthHandler(deps.Operators)
	if err != nil {
		return nil, err
	}
	verificationHandler, err := handlers.NewVerificationHandler(deps.Redemption)
	if err != nil {
		return nil, err
	}
	adminHandler, err := handlers.NewAdminHandler(deps.Attendees, deps.Scans, deps.Renderer)
	if err != nil {
		return nil, err
	}
	securityHandler, err := handlers.NewSecurityHandler(security.NewAuditService(cfg))
	if err != nil {
		return nil, err
	}

	public := r.Group("/api")
	registerRegistrationRoutes(public, registrationHandler)
	registerAuthRoutes(public, authHandler, deps.Operators)

	protected := r.Group("/api")
	protected.Use(middleware.Auth(deps.Operators))
	registerCheckinRoutes(protected, verificationHandler)
	registerAdminRoutes(protected, adminHandler)
	registerSecurityRoutes(protected, securityHandler)

	if deps.Dispatcher != nil {
		emailHandler, err := handlers.NewEmailHandler(deps.Dispatcher, deps.Renderer, cfg.Email.SMTPSettings())
		if err != nil {
			return nil, err
		}
		registerEmailRoutes(protected, emailHandler)
	}

	if cfg.Realtime.Enabled && deps.Hub != nil {
		liveHandler, err := handlers.NewLiveHandler(deps.Hub, deps.Operators)
		if err != nil {
			return nil, err
		}
		registerLiveRoutes(public, liveHandler)
	}

	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := strings.TrimSpace(cfg.Monitoring.Prometheus.Endpoint)
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
