package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/charlesng35/gatepass/internal/models"
	"github.com/charlesng35/gatepass/internal/realtime"
	"github.com/charlesng35/gatepass/internal/ticket"
	"github.com/charlesng35/gatepass/pkg/logger"
	"github.com/charlesng35/gatepass/pkg/metrics"
)

const (
	// DefaultCodeTTL is how long an issued code stays redeemable.
	DefaultCodeTTL = 7 * 24 * time.Hour

	maxIssueAttempts = 2
)

// RegistrationInput carries the submitted registration form.
type RegistrationInput struct {
	Name  string
	Email string
	Phone string
}

// Registration is the outcome of a successful registration.
type Registration struct {
	Attendee *models.Attendee
	Code     string
}

// TicketDispatcher delivers an issued code to its holder.
type TicketDispatcher interface {
	Dispatch(attendee models.Attendee, png []byte)
}

// RegistrationOption customises the RegistrationService.
type RegistrationOption func(*RegistrationService)

// WithCodeTTL overrides the redemption window of issued codes.
func WithCodeTTL(ttl time.Duration) RegistrationOption {
	return func(s *RegistrationService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithRegistrationClock injects the clock used to stamp issuance.
func WithRegistrationClock(clock Clock) RegistrationOption {
	return func(s *RegistrationService) {
		s.now = ensureClock(clock)
	}
}

// WithCodeGenerator replaces the code source.
func WithCodeGenerator(gen func() string) RegistrationOption {
	return func(s *RegistrationService) {
		if gen != nil {
			s.newCode = gen
		}
	}
}

// WithDispatcher sets the component that emails issued codes.
func WithDispatcher(dispatcher TicketDispatcher) RegistrationOption {
	return func(s *RegistrationService) {
		s.dispatcher = dispatcher
	}
}

// WithRegistrationBroadcaster publishes new registrations to the live feed.
func WithRegistrationBroadcaster(b realtime.Broadcaster) RegistrationOption {
	return func(s *RegistrationService) {
		s.broadcaster = b
	}
}

// RegistrationService issues a unique, expiring code for each new attendee.
type RegistrationService struct {
	store       *AttendeeStore
	renderer    *ticket.Renderer
	dispatcher  TicketDispatcher
	broadcaster realtime.Broadcaster
	ttl         time.Duration
	now         Clock
	newCode     func() string
	log         *zap.Logger
}

// NewRegistrationService constructs the issuer.
func NewRegistrationService(store *AttendeeStore, renderer *ticket.Renderer, opts ...RegistrationOption) (*RegistrationService, error) {
	if store == nil {
		return nil, errors.New("registration service: store is required")
	}
	if renderer == nil {
		renderer = ticket.NewRenderer()
	}

	svc := &RegistrationService{
		store:    store,
		renderer: renderer,
		ttl:      DefaultCodeTTL,
		now:      time.Now,
		newCode:  ticket.NewCode,
		log:      logger.WithModule("registration"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc, nil
}

// Register stores the attendee with a fresh code and schedules the ticket email.
// The email outcome never affects the result.
func (s *RegistrationService) Register(ctx context.Context, input RegistrationInput) (*Registration, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(input.Name)
	email := models.NormalizeEmail(input.Email)
	if name == "" || email == "" {
		return nil, errors.New("registration service: name and email are required")
	}

	existing, err := s.store.FindByEmail(ctx, email)
	switch {
	case err == nil && existing != nil:
		metrics.Registrations.WithLabelValues("duplicate").Inc()
		return nil, ErrDuplicateRegistration
	case err != nil && !errors.Is(err, ErrAttendeeNotFound):
		metrics.Registrations.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("%w: %v", ErrIssuanceFailed, err)
	}

	var phone *string
	if trimmed := strings.TrimSpace(input.Phone); trimmed != "" {
		phone = &trimmed
	}

	var attendee *models.Attendee
	for attempt := 1; attempt <= maxIssueAttempts; attempt++ {
		attendee, err = s.issue(ctx, name, email, phone)
		if !errors.Is(err, ErrDuplicateCode) {
			break
		}
		metrics.CodeCollisions.Inc()
		s.log.Warn("generated code collided, regenerating", zap.Int("attempt", attempt))
	}

	switch {
	case err == nil:
	case errors.Is(err, ErrDuplicateIdentity):
		metrics.Registrations.WithLabelValues("duplicate").Inc()
		return nil, ErrDuplicateRegistration
	default:
		metrics.Registrations.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("%w: %v", ErrIssuanceFailed, err)
	}

	metrics.Registrations.WithLabelValues("issued").Inc()
	s.log.Info("attendee registered", zap.String("attendee_id", attendee.ID), zap.Time("expires_at", attendee.ExpiresAt))

	s.notify(*attendee)
	s.publish(*attendee)

	return &Registration{Attendee: attendee, Code: attendee.Code}, nil
}

func (s *RegistrationService) issue(ctx context.Context, name, email string, phone *string) (*models.Attendee, error) {
	issuedAt := s.now().UTC()
	code := s.newCode()

	payload, err := ticket.BuildPayload(code, name, email, issuedAt)
	if err != nil {
		return nil, err
	}

	attendee := &models.Attendee{
		BaseModel:   models.BaseModel{CreatedAt: issuedAt},
		Name:        name,
		Email:       email,
		Phone:       phone,
		Code:        code,
		CodePayload: datatypes.JSON(payload),
		ExpiresAt:   issuedAt.Add(s.ttl),
	}
	return s.store.Insert(ctx, attendee)
}

func (s *RegistrationService) notify(attendee models.Attendee) {
	if s.dispatcher == nil {
		return
	}

	png, err := s.renderer.PNG(attendee.CodePayload)
	if err != nil {
		// The email still carries the code for manual entry.
		s.log.Error("render qr image", zap.String("attendee_id", attendee.ID), zap.Error(err))
		png = nil
	}
	s.dispatcher.Dispatch(attendee, png)
}

func (s *RegistrationService) publish(attendee models.Attendee) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.BroadcastStream(realtime.StreamRegistrations, realtime.Message{
		Event: realtime.EventAttendeeRegistered,
		Data: map[string]any{
			"attendee_id": attendee.ID,
			"name":        attendee.Name,
			"created_at":  attendee.CreatedAt,
		},
	})
}
