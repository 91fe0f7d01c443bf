package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/gatepass/internal/models"
	"github.com/charlesng35/gatepass/internal/realtime"
	"github.com/charlesng35/gatepass/internal/ticket"
	"github.com/charlesng35/gatepass/pkg/logger"
	"github.com/charlesng35/gatepass/pkg/metrics"
)

// RedemptionStatus classifies a validation attempt.
type RedemptionStatus string

const (
	StatusNotFound RedemptionStatus = "NOT_FOUND"
	StatusUsed     RedemptionStatus = "USED"
	StatusExpired  RedemptionStatus = "EXPIRED"
	StatusRedeemed RedemptionStatus = "REDEEMED"
	// StatusValid is reported by Inspect for a code that could still be redeemed.
	StatusValid RedemptionStatus = "VALID"
)

const (
	modeRedeem  = "redeem"
	modeInspect = "inspect"
)

// RedemptionResult describes the outcome of a validation attempt. Expected
// outcomes such as an unknown or spent code are results, not errors.
type RedemptionResult struct {
	Status   RedemptionStatus
	Code     string
	Attendee *models.Attendee
	UsedAt   *time.Time
}

// Message returns an operator-facing description of the outcome.
func (r *RedemptionResult) Message() string {
	switch r.Status {
	case StatusNotFound:
		return "QR code not found"
	case StatusUsed:
		return "QR code has already been used"
	case StatusExpired:
		if r.Attendee != nil {
			return fmt.Sprintf("QR code has expired on %s", r.Attendee.ExpiresAt.UTC().Format("January 2, 2006"))
		}
		return "QR code has expired"
	case StatusRedeemed:
		return "QR code verified successfully"
	case StatusValid:
		return "QR code is valid"
	default:
		return string(r.Status)
	}
}

// ScanRecorder persists validation attempts.
type ScanRecorder interface {
	Record(ctx context.Context, entry ScanEntry) error
}

// RedemptionOption customises the RedemptionService.
type RedemptionOption func(*RedemptionService)

// WithRedemptionClock injects the clock used for expiry checks and used_at stamps.
func WithRedemptionClock(clock Clock) RedemptionOption {
	return func(s *RedemptionService) {
		s.now = ensureClock(clock)
	}
}

// WithScanRecorder records every attempt in the scan log.
func WithScanRecorder(recorder ScanRecorder) RedemptionOption {
	return func(s *RedemptionService) {
		s.recorder = recorder
	}
}

// WithRedemptionBroadcaster publishes outcomes to the live feed.
func WithRedemptionBroadcaster(b realtime.Broadcaster) RedemptionOption {
	return func(s *RedemptionService) {
		s.broadcaster = b
	}
}

// RedemptionService validates scanned codes and consumes them exactly once.
type RedemptionService struct {
	store       *AttendeeStore
	recorder    ScanRecorder
	broadcaster realtime.Broadcaster
	now         Clock
	log         *zap.Logger
}

// NewRedemptionService constructs the validator.
func NewRedemptionService(store *AttendeeStore, opts ...RedemptionOption) (*RedemptionService, error) {
	if store == nil {
		return nil, errors.New("redemption service: store is required")
	}
	svc := &RedemptionService{
		store: store,
		now:   time.Now,
		log:   logger.WithModule("redemption"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc, nil
}

// Redeem consumes the code if it exists, is unused and has not expired. The
// used check precedes the expiry check, which precedes consumption.
func (s *RedemptionService) Redeem(ctx context.Context, raw string) (*RedemptionResult, error) {
	ctx = ensureContext(ctx)

	code := ticket.ExtractCode(raw)
	if code == "" {
		return nil, ErrCodeRequired
	}

	result, err := s.classify(ctx, code)
	if err != nil {
		return nil, err
	}
	if result.Status != StatusValid {
		s.finish(ctx, modeRedeem, result)
		return result, nil
	}

	usedAt := s.now().UTC()
	changed, err := s.store.MarkUsed(ctx, code, usedAt)
	if err != nil {
		s.log.Error("mark code used", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	if changed == 1 {
		result.Attendee.Used = true
		result.Attendee.UsedAt = &usedAt
		result.Status = StatusRedeemed
		result.UsedAt = &usedAt
		s.finish(ctx, modeRedeem, result)
		return result, nil
	}

	// Another scan consumed the code between the read and the update.
	current, err := s.store.FindByCode(ctx, code)
	if err != nil {
		s.log.Error("reload raced code", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	result = &RedemptionResult{Status: StatusUsed, Code: code, Attendee: current, UsedAt: current.UsedAt}
	s.finish(ctx, modeRedeem, result)
	return result, nil
}

// Inspect classifies the code without consuming it.
func (s *RedemptionService) Inspect(ctx context.Context, raw string) (*RedemptionResult, error) {
	ctx = ensureContext(ctx)

	code := ticket.ExtractCode(raw)
	if code == "" {
		return nil, ErrCodeRequired
	}

	result, err := s.classify(ctx, code)
	if err != nil {
		return nil, err
	}
	s.finish(ctx, modeInspect, result)
	return result, nil
}

func (s *RedemptionService) classify(ctx context.Context, code string) (*RedemptionResult, error) {
	attendee, err := s.store.FindByCode(ctx, code)
	if errors.Is(err, ErrAttendeeNotFound) {
		return &RedemptionResult{Status: StatusNotFound, Code: code}, nil
	}
	if err != nil {
		s.log.Error("lookup code", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	result := &RedemptionResult{Code: code, Attendee: attendee}
	switch {
	case attendee.Used:
		result.Status = StatusUsed
		result.UsedAt = attendee.UsedAt
	case attendee.Expired(s.now()):
		result.Status = StatusExpired
	default:
		result.Status = StatusValid
	}
	return result, nil
}

func (s *RedemptionService) finish(ctx context.Context, mode string, result *RedemptionResult) {
	metrics.Validations.WithLabelValues(mode, string(result.Status)).Inc()

	attendeeID := ""
	if result.Attendee != nil {
		attendeeID = result.Attendee.ID
	}

	if s.recorder != nil {
		if err := s.recorder.Record(ctx, ScanEntry{
			AttendeeID: attendeeID,
			Code:       result.Code,
			Mode:       mode,
			Status:     string(result.Status),
		}); err != nil {
			s.log.Warn("record scan", zap.Error(err))
		}
	}

	if s.broadcaster != nil && mode == modeRedeem {
		data := map[string]any{
			"status":      result.Status,
			"attendee_id": attendeeID,
		}
		if result.Attendee != nil {
			data["name"] = result.Attendee.Name
		}
		s.broadcaster.BroadcastStream(realtime.StreamScans, realtime.Message{
			Event: realtime.EventCodeValidated,
			Data:  data,
		})
	}
}
