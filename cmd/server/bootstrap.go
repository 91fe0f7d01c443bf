package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/gatepass/internal/api"
	"github.com/charlesng35/gatepass/internal/app"
	"github.com/charlesng35/gatepass/internal/app/maintenance"
	iauth "github.com/charlesng35/gatepass/internal/auth"
	"github.com/charlesng35/gatepass/internal/cache"
	"github.com/charlesng35/gatepass/internal/database"
	"github.com/charlesng35/gatepass/internal/middleware"
	"github.com/charlesng35/gatepass/internal/monitoring"
	"github.com/charlesng35/gatepass/internal/monitoring/checks"
	"github.com/charlesng35/gatepass/internal/realtime"
	"github.com/charlesng35/gatepass/internal/security"
	"github.com/charlesng35/gatepass/internal/services"
	"github.com/charlesng35/gatepass/internal/ticket"
	"github.com/charlesng35/gatepass/pkg/mail"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB         *gorm.DB
	Redis      *cache.RedisStore
	Hub        *realtime.Hub
	Dispatcher *services.DispatchService
	Cleaner    *maintenance.Cleaner
	Router     *gin.Engine

	stopBridge context.CancelFunc
}

// bootstrapRuntime initialises the database, optional Redis, services and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	// enable gin debug mod
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	logSecurityAudit(ctx, cfg, log)

	stack.DB, err = initialiseDatabase(cfg, log)
	if err != nil {
		return nil, err
	}

	dbStore := cache.NewDatabaseStore(stack.DB)
	var sharedStore cache.Store = dbStore

	if cfg.Cache.Redis.Enabled {
		if stack.Redis, err = cache.NewRedisStore(ctx, cfg.Cache.RedisClientConfig()); err != nil {
			log.Warn("redis unavailable; falling back to database-backed operations", zap.Error(err))
			stack.Redis = nil
		} else {
			sharedStore = stack.Redis
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
		}
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	operators, err := iauth.NewOperatorService(cfg.Auth.OperatorConfig(), jwtSvc, sharedStore)
	if err != nil {
		return nil, fmt.Errorf("initialise operator service: %w", err)
	}

	var broadcaster realtime.Broadcaster
	if cfg.Realtime.Enabled {
		stack.Hub = realtime.NewHub()
		broadcaster = stack.Hub
		if stack.Redis != nil && cfg.Realtime.RedisFanout {
			bridge := realtime.NewRedisBridge(stack.Redis.Client(), stack.Hub)
			bridgeCtx, cancel := context.WithCancel(context.Background())
			stack.stopBridge = cancel
			go func() {
				if err := bridge.Run(bridgeCtx); err != nil {
					log.Warn("live feed relay stopped", zap.Error(err))
				}
			}()
			broadcaster = bridge
		}
	}

	mailer, err := mail.NewSMTPMailer(cfg.Email.SMTPSettings())
	if err != nil {
		return nil, fmt.Errorf("initialise mailer: %w", err)
	}
	if !cfg.Email.SMTP.Enabled {
		log.Warn("smtp disabled; tickets will not be emailed")
	}

	stack.Dispatcher, err = services.NewDispatchService(mailer,
		services.WithDispatchTimeout(cfg.Checkin.DispatchDeadline()),
		services.WithEventName(cfg.Checkin.EventName),
		services.WithTicketSubject(cfg.Checkin.EmailSubject),
	)
	if err != nil {
		return nil, fmt.Errorf("initialise dispatcher: %w", err)
	}

	attendees, err := services.NewAttendeeStore(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise attendee store: %w", err)
	}

	scans, err := services.NewScanLogService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise scan log: %w", err)
	}

	renderer := ticket.NewRenderer(ticket.WithSize(cfg.Checkin.QRSize))

	registration, err := services.NewRegistrationService(attendees, renderer,
		services.WithCodeTTL(cfg.Checkin.TTL()),
		services.WithDispatcher(stack.Dispatcher),
		services.WithRegistrationBroadcaster(broadcaster),
	)
	if err != nil {
		return nil, fmt.Errorf("initialise registration service: %w", err)
	}

	redemption, err := services.NewRedemptionService(attendees,
		services.WithScanRecorder(scans),
		services.WithRedemptionBroadcaster(broadcaster),
	)
	if err != nil {
		return nil, fmt.Errorf("initialise redemption service: %w", err)
	}

	if cfg.Maintenance.Enabled {
		stack.Cleaner = maintenance.NewCleaner(
			maintenance.WithCachePurger(dbStore),
			maintenance.WithAttendeeCounter(attendees),
			maintenance.WithScanLogPruner(scans),
			maintenance.WithScanRetentionDays(cfg.Maintenance.ScanRetentionDays),
			maintenance.WithSchedules(cfg.Maintenance.CacheSchedule, cfg.Maintenance.GaugeSchedule, cfg.Maintenance.ScanLogSchedule),
		)
		if err := stack.Cleaner.RunOnce(ctx); err != nil {
			log.Warn("initial maintenance run failed", zap.Error(err))
		}
		if err := stack.Cleaner.Start(); err != nil {
			return nil, fmt.Errorf("start maintenance jobs: %w", err)
		}
	}

	stack.Router, err = api.NewRouter(cfg, api.Dependencies{
		DB:           stack.DB,
		Operators:    operators,
		Attendees:    attendees,
		Registration: registration,
		Redemption:   redemption,
		Scans:        scans,
		Renderer:     renderer,
		Dispatcher:   stack.Dispatcher,
		Hub:          stack.Hub,
		RateStore:    middleware.NewCacheRateStore(sharedStore),
		Health:       healthManager(cfg, stack),
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown stops background jobs, waits for in-flight emails and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.stopBridge != nil {
		s.stopBridge()
	}

	if s.Cleaner != nil {
		<-s.Cleaner.Stop().Done()
	}

	if s.Dispatcher != nil {
		done := make(chan struct{})
		go func() {
			s.Dispatcher.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			log.Warn("shutdown before pending ticket emails finished")
		}
	}

	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Warn("redis shutdown", zap.Error(err))
		}
	}

	if s.DB != nil {
		if err := database.Close(s.DB); err != nil {
			log.Warn("failed to close database", zap.Error(err))
		}
	}
}

func logSecurityAudit(ctx context.Context, cfg *app.Config, log *zap.Logger) {
	result := security.NewAuditService(cfg).Run(ctx)
	for _, check := range result.Checks {
		if check.Status == security.StatusPass {
			continue
		}
		log.Warn("security audit",
			zap.String("check", check.ID),
			zap.String("status", string(check.Status)),
			zap.String("message", check.Message),
		)
	}
}

func healthManager(cfg *app.Config, stack *runtimeStack) *monitoring.HealthManager {
	var redis checks.RedisPinger
	if stack.Redis != nil {
		redis = stack.Redis
	}
	var hub checks.SubscriberCounter
	if stack.Hub != nil {
		hub = stack.Hub
	}
	return monitoring.NewHealthManager(
		checks.Database(stack.DB, 0),
		checks.Redis(redis, cfg.Cache.Redis.Enabled, cfg.Cache.Redis.Timeout),
		checks.Realtime(hub),
	)
}

func initialiseDatabase(cfg *app.Config, log *zap.Logger) (*gorm.DB, error) {
	dbCfg := cfg.Database.ConnectionConfig()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log.Info("database connected", zap.String("driver", dbCfg.Driver))
	return db, nil
}
