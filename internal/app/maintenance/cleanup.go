package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/gatepass/internal/cache"
	"github.com/charlesng35/gatepass/internal/services"
	"github.com/charlesng35/gatepass/pkg/logger"
	"github.com/charlesng35/gatepass/pkg/metrics"
)

const (
	defaultScanRetentionDays = 90
	defaultCacheSpec         = "@every 10m"
	defaultGaugeSpec         = "@every 1m"
	defaultScanLogSpec       = "@daily"
)

// AttendeeCounter reports attendee totals for the gauges.
type AttendeeCounter interface {
	Stats(ctx context.Context) (services.AttendeeStats, error)
}

// ScanLogPruner deletes scan history past its retention window.
type ScanLogPruner interface {
	CleanupOlderThan(ctx context.Context, retentionDays int) (int64, error)
}

// Cleaner coordinates background maintenance: purging expired cache entries,
// refreshing attendee gauges and pruning old scan history.
type Cleaner struct {
	cache     cache.Purger
	attendees AttendeeCounter
	scans     ScanLogPruner
	cron      *cron.Cron
	now       func() time.Time
	log       *zap.Logger
	retention int

	cacheSchedule   string
	gaugeSchedule   string
	scanLogSchedule string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for expiry comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithCachePurger enables purging of expired database cache entries.
func WithCachePurger(p cache.Purger) Option {
	return func(cleaner *Cleaner) {
		cleaner.cache = p
	}
}

// WithAttendeeCounter enables the attendee gauge refresh.
func WithAttendeeCounter(counter AttendeeCounter) Option {
	return func(cleaner *Cleaner) {
		cleaner.attendees = counter
	}
}

// WithScanLogPruner enables scan history retention.
func WithScanLogPruner(pruner ScanLogPruner) Option {
	return func(cleaner *Cleaner) {
		cleaner.scans = pruner
	}
}

// WithScanRetentionDays adjusts how long scan logs are retained.
func WithScanRetentionDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days > 0 {
			cleaner.retention = days
		}
	}
}

// WithSchedules overrides the cron specifications. Empty values keep the defaults.
func WithSchedules(cacheSpec, gaugeSpec, scanLogSpec string) Option {
	return func(cleaner *Cleaner) {
		if cacheSpec != "" {
			cleaner.cacheSchedule = cacheSpec
		}
		if gaugeSpec != "" {
			cleaner.gaugeSchedule = gaugeSpec
		}
		if scanLogSpec != "" {
			cleaner.scanLogSchedule = scanLogSpec
		}
	}
}

// NewCleaner constructs a Cleaner. Jobs whose dependency was not supplied are skipped.
func NewCleaner(opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		now:             time.Now,
		retention:       defaultScanRetentionDays,
		cacheSchedule:   defaultCacheSpec,
		gaugeSchedule:   defaultGaugeSpec,
		scanLogSchedule: defaultScanLogSpec,
		log:             logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

func (c *Cleaner) enabled() bool {
	return c.cache != nil || c.attendees != nil || c.scans != nil
}

// Start registers jobs with the cron scheduler and launches it if at least one job is enabled.
func (c *Cleaner) Start() error {
	if !c.enabled() {
		return nil
	}

	if c.cache != nil {
		if _, err := c.cron.AddFunc(c.cacheSchedule, func() {
			if _, err := c.purgeCache(context.Background()); err != nil {
				c.log.Warn("cache purge failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if c.attendees != nil {
		if _, err := c.cron.AddFunc(c.gaugeSchedule, func() {
			if err := c.RefreshGauges(context.Background()); err != nil {
				c.log.Warn("gauge refresh failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if c.scans != nil && c.retention > 0 {
		if _, err := c.cron.AddFunc(c.scanLogSchedule, func() {
			if _, err := c.scans.CleanupOlderThan(context.Background(), c.retention); err != nil {
				c.log.Warn("scan log cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes every configured job sequentially. Used at startup and in tests.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if c.cache != nil {
		if _, err := c.purgeCache(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if c.attendees != nil {
		if err := c.RefreshGauges(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if c.scans != nil && c.retention > 0 {
		if _, err := c.scans.CleanupOlderThan(ctx, c.retention); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}

// RefreshGauges publishes the current used and unused attendee counts.
func (c *Cleaner) RefreshGauges(ctx context.Context) error {
	if c.attendees == nil {
		return nil
	}
	stats, err := c.attendees.Stats(ctx)
	if err != nil {
		return err
	}
	metrics.Attendees.WithLabelValues("used").Set(float64(stats.Used))
	metrics.Attendees.WithLabelValues("unused").Set(float64(stats.Unused))
	return nil
}

func (c *Cleaner) purgeCache(ctx context.Context) (int64, error) {
	removed, err := c.cache.PurgeExpired(ctx, c.now())
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		c.log.Debug("purged expired cache entries", zap.Int64("count", removed))
	}
	return removed, nil
}
