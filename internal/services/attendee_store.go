package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/gatepass/internal/models"
)

// AttendeeStats summarises redemption progress.
type AttendeeStats struct {
	Total  int64 `json:"total"`
	Used   int64 `json:"used"`
	Unused int64 `json:"unused"`
}

// AttendeeStore persists attendees and is the only component that flips a
// code from unused to used.
type AttendeeStore struct {
	db *gorm.DB
}

// NewAttendeeStore constructs an AttendeeStore using the provided database handle.
func NewAttendeeStore(db *gorm.DB) (*AttendeeStore, error) {
	if db == nil {
		return nil, errors.New("attendee store: db is required")
	}
	return &AttendeeStore{db: db}, nil
}

// Insert creates the attendee. Uniqueness violations are reported as
// ErrDuplicateIdentity when the email is taken and ErrDuplicateCode otherwise.
func (s *AttendeeStore) Insert(ctx context.Context, attendee *models.Attendee) (*models.Attendee, error) {
	ctx = ensureContext(ctx)
	if attendee == nil {
		return nil, errors.New("attendee store: attendee is required")
	}

	attendee.Email = models.NormalizeEmail(attendee.Email)
	if err := s.db.WithContext(ctx).Create(attendee).Error; err != nil {
		if !isUniqueConstraintError(err) {
			return nil, fmt.Errorf("attendee store: insert: %w", err)
		}
		if existing, lookupErr := s.FindByEmail(ctx, attendee.Email); lookupErr == nil && existing != nil {
			return nil, ErrDuplicateIdentity
		}
		return nil, ErrDuplicateCode
	}
	return attendee, nil
}

// FindByCode returns the attendee holding the exact code.
func (s *AttendeeStore) FindByCode(ctx context.Context, code string) (*models.Attendee, error) {
	ctx = ensureContext(ctx)

	var attendee models.Attendee
	err := s.db.WithContext(ctx).Where("code = ?", code).Take(&attendee).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAttendeeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("attendee store: find by code: %w", err)
	}
	return &attendee, nil
}

// FindByID returns the attendee with the given identifier.
func (s *AttendeeStore) FindByID(ctx context.Context, id string) (*models.Attendee, error) {
	ctx = ensureContext(ctx)

	var attendee models.Attendee
	err := s.db.WithContext(ctx).Where("id = ?", strings.TrimSpace(id)).Take(&attendee).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAttendeeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("attendee store: find by id: %w", err)
	}
	return &attendee, nil
}

// FindByEmail matches on the normalized address.
func (s *AttendeeStore) FindByEmail(ctx context.Context, email string) (*models.Attendee, error) {
	ctx = ensureContext(ctx)

	var attendee models.Attendee
	err := s.db.WithContext(ctx).
		Where("LOWER(TRIM(email)) = ?", models.NormalizeEmail(email)).
		Take(&attendee).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAttendeeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("attendee store: find by email: %w", err)
	}
	return &attendee, nil
}

// MarkUsed consumes the code in a single conditional statement and returns the
// number of rows changed. Exactly one concurrent caller observes 1.
func (s *AttendeeStore) MarkUsed(ctx context.Context, code string, at time.Time) (int64, error) {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).
		Model(&models.Attendee{}).
		Where("code = ? AND used = ?", code, false).
		Updates(map[string]any{
			"used":    true,
			"used_at": at,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("attendee store: mark used: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// List returns every attendee, newest first.
func (s *AttendeeStore) List(ctx context.Context) ([]models.Attendee, error) {
	ctx = ensureContext(ctx)

	var attendees []models.Attendee
	if err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Find(&attendees).Error; err != nil {
		return nil, fmt.Errorf("attendee store: list: %w", err)
	}
	return attendees, nil
}

// Stats counts total and redeemed attendees.
func (s *AttendeeStore) Stats(ctx context.Context) (AttendeeStats, error) {
	ctx = ensureContext(ctx)

	var stats AttendeeStats
	if err := s.db.WithContext(ctx).Model(&models.Attendee{}).Count(&stats.Total).Error; err != nil {
		return AttendeeStats{}, fmt.Errorf("attendee store: count total: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&models.Attendee{}).Where("used = ?", true).Count(&stats.Used).Error; err != nil {
		return AttendeeStats{}, fmt.Errorf("attendee store: count used: %w", err)
	}
	stats.Unused = stats.Total - stats.Used
	return stats, nil
}
