package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/charlesng35/gatepass/internal/auditctx"
	"github.com/charlesng35/gatepass/internal/models"
)

const maxScanCodeLength = 255

// ScanEntry captures a single validation attempt to persist.
type ScanEntry struct {
	AttendeeID string
	Code       string
	Mode       string
	Status     string
	Metadata   map[string]any
}

// ScanFilters narrows scan log queries.
type ScanFilters struct {
	Status string
	Mode   string
	Since  *time.Time
}

// ScanListOptions controls pagination and filtering for scan log queries.
type ScanListOptions struct {
	Page     int
	PageSize int
	Filters  ScanFilters
}

const (
	defaultScanPageSize = 50
	maxScanPageSize     = 200
)

// Paging returns the effective page and page size, falling back to defaults
// for out-of-range values.
func (o ScanListOptions) Paging() (page, perPage int) {
	page = o.Page
	if page <= 0 {
		page = 1
	}
	perPage = o.PageSize
	if perPage <= 0 || perPage > maxScanPageSize {
		perPage = defaultScanPageSize
	}
	return page, perPage
}

// ScanLogService keeps the history of gate validation attempts.
type ScanLogService struct {
	db *gorm.DB
}

// NewScanLogService constructs a ScanLogService using the provided database handle.
func NewScanLogService(db *gorm.DB) (*ScanLogService, error) {
	if db == nil {
		return nil, errors.New("scan log service: db is required")
	}
	return &ScanLogService{db: db}, nil
}

// Record stores a scan, attributing it to the operator found on ctx.
func (s *ScanLogService) Record(ctx context.Context, entry ScanEntry) error {
	ctx = ensureContext(ctx)

	if strings.TrimSpace(entry.Mode) == "" {
		return errors.New("scan log service: mode is required")
	}
	if strings.TrimSpace(entry.Status) == "" {
		return errors.New("scan log service: status is required")
	}

	log := models.ScanLog{
		Code:   truncate(strings.TrimSpace(entry.Code), maxScanCodeLength),
		Mode:   strings.TrimSpace(entry.Mode),
		Status: strings.TrimSpace(entry.Status),
	}
	if id := strings.TrimSpace(entry.AttendeeID); id != "" {
		log.AttendeeID = &id
	}
	if operator, ok := auditctx.FromContext(ctx); ok {
		log.Operator = operator.Username
		log.IPAddress = operator.IPAddress
		log.UserAgent = operator.UserAgent
	}
	if entry.Metadata != nil {
		encoded, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("scan log service: marshal metadata: %w", err)
		}
		log.Metadata = datatypes.JSON(encoded)
	}

	return s.db.WithContext(ctx).Create(&log).Error
}

// List returns paginated scans, newest first.
func (s *ScanLogService) List(ctx context.Context, opts ScanListOptions) ([]models.ScanLog, int64, error) {
	ctx = ensureContext(ctx)

	page, perPage := opts.Paging()

	var (
		results []models.ScanLog
		total   int64
	)

	query := applyScanFilters(s.db.WithContext(ctx).Model(&models.ScanLog{}), opts.Filters)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("scan log service: count scans: %w", err)
	}

	if err := query.
		Order("created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&results).Error; err != nil {
		return nil, 0, fmt.Errorf("scan log service: list scans: %w", err)
	}

	return results, total, nil
}

// CleanupOlderThan removes scans older than the retention window in days.
func (s *ScanLogService) CleanupOlderThan(ctx context.Context, retentionDays int) (int64, error) {
	ctx = ensureContext(ctx)

	if retentionDays <= 0 {
		return 0, errors.New("scan log service: retentionDays must be positive")
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	result := s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.ScanLog{})
	if result.Error != nil {
		return 0, fmt.Errorf("scan log service: cleanup scans: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func applyScanFilters(query *gorm.DB, filters ScanFilters) *gorm.DB {
	if filters.Status != "" {
		query = query.Where("status = ?", strings.ToUpper(filters.Status))
	}
	if filters.Mode != "" {
		query = query.Where("mode = ?", strings.ToLower(filters.Mode))
	}
	if filters.Since != nil {
		query = query.Where("created_at >= ?", *filters.Since)
	}
	return query
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	for limit > 0 && !utf8.RuneStart(value[limit]) {
		limit--
	}
	return value[:limit]
}
