package security

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charlesng35/gatepass/internal/app"
	"github.com/charlesng35/gatepass/pkg/crypto"
)

// CheckStatus captures the outcome of a security audit check.
type CheckStatus string

const (
	StatusPass CheckStatus = "pass"
	StatusWarn CheckStatus = "warn"
	StatusFail CheckStatus = "fail"
)

const (
	minJWTSecretBytes         = 32
	recommendedJWTSecretBytes = 48
	minPlainPasswordLength    = 12
	maxRecommendedTokenTTL    = 24 * time.Hour
)

// Check contains the result of a single audit verification.
type Check struct {
	ID          string      `json:"id"`
	Status      CheckStatus `json:"status"`
	Message     string      `json:"message"`
	Remediation string      `json:"remediation,omitempty"`
	Details     any         `json:"details,omitempty"`
}

// Result aggregates all checks with a simple status summary.
type Result struct {
	CheckedAt time.Time      `json:"checked_at"`
	Checks    []Check        `json:"checks"`
	Summary   map[string]int `json:"summary"`
}

// Failed reports whether any check failed.
func (r Result) Failed() bool {
	return r.Summary[string(StatusFail)] > 0
}

// AuditService evaluates the deployment's security-relevant configuration.
type AuditService struct {
	cfg *app.Config
	now func() time.Time
}

// NewAuditService constructs the audit service. A nil config degrades every
// check to a warning.
func NewAuditService(cfg *app.Config) *AuditService {
	return &AuditService{cfg: cfg, now: time.Now}
}

// WithClock overrides the clock used in results (primarily for testing).
func (s *AuditService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Run executes all audit checks and returns their outcome.
func (s *AuditService) Run(_ context.Context) Result {
	var checks []Check
	if s.cfg == nil {
		checks = []Check{{
			ID:          "configuration_loaded",
			Status:      StatusWarn,
			Message:     "Configuration not loaded; nothing to audit.",
			Remediation: "Load configuration before running the security audit.",
		}}
	} else {
		checks = []Check{
			s.checkJWTSecret(),
			s.checkOperatorPassword(),
			s.checkTokenTTL(),
			s.checkSMTP(),
			s.checkOrigins(),
		}
	}

	summary := map[string]int{
		string(StatusPass): 0,
		string(StatusWarn): 0,
		string(StatusFail): 0,
	}
	for _, check := range checks {
		summary[string(check.Status)]++
	}

	return Result{
		CheckedAt: s.now().UTC(),
		Checks:    checks,
		Summary:   summary,
	}
}

func (s *AuditService) checkJWTSecret() Check {
	length := len(strings.TrimSpace(s.cfg.Auth.JWT.Secret))

	switch {
	case length == 0:
		return Check{
			ID:          "jwt_secret_strength",
			Status:      StatusFail,
			Message:     "Missing JWT signing secret.",
			Remediation: "Provide a cryptographically secure signing secret (>= 32 bytes).",
		}
	case length < minJWTSecretBytes:
		return Check{
			ID:          "jwt_secret_strength",
			Status:      StatusFail,
			Message:     fmt.Sprintf("JWT signing secret is too short (%d bytes).", length),
			Remediation: "Use a randomly generated secret of at least 32 bytes.",
		}
	case length < recommendedJWTSecretBytes:
		return Check{
			ID:          "jwt_secret_strength",
			Status:      StatusWarn,
			Message:     fmt.Sprintf("JWT signing secret is %d bytes. Consider increasing to 48+ bytes.", length),
			Remediation: "Increase the length of GATEPASS_AUTH_JWT_SECRET to at least 48 bytes.",
			Details:     map[string]any{"length": length},
		}
	default:
		return Check{
			ID:      "jwt_secret_strength",
			Status:  StatusPass,
			Message: fmt.Sprintf("JWT signing secret length is %d bytes.", length),
			Details: map[string]any{"length": length},
		}
	}
}

func (s *AuditService) checkOperatorPassword() Check {
	password := s.cfg.Auth.Operator.Password

	switch {
	case password == "":
		return Check{
			ID:          "operator_password",
			Status:      StatusFail,
			Message:     "Operator password is not configured.",
			Remediation: "Set GATEPASS_AUTH_OPERATOR_PASSWORD, preferably to a bcrypt hash.",
		}
	case crypto.IsBcryptHash(password):
		return Check{
			ID:      "operator_password",
			Status:  StatusPass,
			Message: "Operator password is stored as a bcrypt hash.",
		}
	case len(password) < minPlainPasswordLength:
		return Check{
			ID:          "operator_password",
			Status:      StatusFail,
			Message:     fmt.Sprintf("Operator password is plain text and only %d characters.", len(password)),
			Remediation: "Use a bcrypt hash or a plain-text password of at least 12 characters.",
		}
	default:
		return Check{
			ID:          "operator_password",
			Status:      StatusWarn,
			Message:     "Operator password is stored in plain text.",
			Remediation: "Replace it with a bcrypt hash so the configuration does not reveal it.",
		}
	}
}

func (s *AuditService) checkTokenTTL() Check {
	ttl := s.cfg.Auth.JWT.TTL
	switch {
	case ttl <= 0:
		return Check{
			ID:          "access_token_ttl",
			Status:      StatusWarn,
			Message:     "Access token TTL is not configured; using default duration.",
			Remediation: "Set GATEPASS_AUTH_JWT_ACCESS_TOKEN_TTL to control operator session lifetime.",
		}
	case ttl > maxRecommendedTokenTTL:
		return Check{
			ID:          "access_token_ttl",
			Status:      StatusWarn,
			Message:     fmt.Sprintf("Access token TTL (%s) exceeds recommended maximum (%s).", ttl, maxRecommendedTokenTTL),
			Remediation: "Limit operator tokens to one event day.",
			Details:     map[string]any{"ttl": ttl.String()},
		}
	default:
		return Check{
			ID:      "access_token_ttl",
			Status:  StatusPass,
			Message: fmt.Sprintf("Access token TTL is %s.", ttl),
			Details: map[string]any{"ttl": ttl.String()},
		}
	}
}

func (s *AuditService) checkSMTP() Check {
	smtp := s.cfg.Email.SMTP
	switch {
	case !smtp.Enabled:
		return Check{
			ID:          "smtp_transport",
			Status:      StatusWarn,
			Message:     "SMTP delivery is disabled; attendees will not receive their codes.",
			Remediation: "Enable email.smtp and configure a relay.",
		}
	case !smtp.UseTLS:
		return Check{
			ID:          "smtp_transport",
			Status:      StatusWarn,
			Message:     "SMTP delivery runs without TLS; codes travel in clear text.",
			Remediation: "Set email.smtp.use_tls to true.",
		}
	default:
		return Check{
			ID:      "smtp_transport",
			Status:  StatusPass,
			Message: fmt.Sprintf("SMTP delivery via %s uses TLS.", smtp.Host),
		}
	}
}

func (s *AuditService) checkOrigins() Check {
	for _, origin := range s.cfg.Server.AllowedOrigins {
		if strings.TrimSpace(origin) == "*" {
			return Check{
				ID:          "cors_origins",
				Status:      StatusWarn,
				Message:     "Any origin may call the API with operator credentials.",
				Remediation: "List the scanner and dashboard origins in server.allowed_origins.",
			}
		}
	}
	return Check{
		ID:      "cors_origins",
		Status:  StatusPass,
		Message: fmt.Sprintf("%d allowed origin(s) configured.", len(s.cfg.Server.AllowedOrigins)),
	}
}
