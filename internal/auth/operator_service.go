package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charlesng35/gatepass/internal/cache"
	"github.com/charlesng35/gatepass/pkg/crypto"
)

const revokedTokenKeyPrefix = "auth:revoked:"

// ErrInvalidCredentials is returned for an unknown operator or wrong password.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// OperatorConfig holds the single gate operator account.
type OperatorConfig struct {
	Username string
	// Password is either a bcrypt hash or a plaintext secret.
	Password string
}

// OperatorService authenticates gate operators and tracks revoked tokens.
type OperatorService struct {
	cfg     OperatorConfig
	jwt     *JWTService
	revoked cache.Store
	now     func() time.Time
}

// NewOperatorService wires the operator account to the token issuer. The
// revocation store is optional; without it logout only clears the cookie.
func NewOperatorService(cfg OperatorConfig, jwt *JWTService, revoked cache.Store) (*OperatorService, error) {
	cfg.Username = strings.TrimSpace(cfg.Username)
	if cfg.Username == "" || cfg.Password == "" {
		return nil, errors.New("operator service: username and password are required")
	}
	if jwt == nil {
		return nil, errors.New("operator service: jwt service is required")
	}
	return &OperatorService{cfg: cfg, jwt: jwt, revoked: revoked, now: jwt.now}, nil
}

// Login checks the credentials and issues an access token.
func (s *OperatorService) Login(username, password string) (IssuedToken, error) {
	if !s.verify(strings.TrimSpace(username), password) {
		return IssuedToken{}, ErrInvalidCredentials
	}
	return s.jwt.GenerateAccessToken(s.cfg.Username)
}

// Authenticate validates a token and rejects revoked ones.
func (s *OperatorService) Authenticate(ctx context.Context, token string) (*Claims, error) {
	claims, err := s.jwt.ValidateAccessToken(token)
	if err != nil {
		return nil, err
	}
	if s.revoked != nil && claims.ID != "" {
		_, found, err := s.revoked.Get(ctx, revokedTokenKeyPrefix+claims.ID)
		if err != nil {
			return nil, fmt.Errorf("auth: check revocation: %w", err)
		}
		if found {
			return nil, errors.New("auth: token revoked")
		}
	}
	return claims, nil
}

// Logout revokes the token until it would have expired anyway.
func (s *OperatorService) Logout(ctx context.Context, claims *Claims) error {
	if s.revoked == nil || claims == nil || claims.ID == "" {
		return nil
	}
	ttl := time.Minute
	if claims.ExpiresAt != nil {
		ttl = claims.ExpiresAt.Time.Sub(s.now())
	}
	if ttl <= 0 {
		return nil
	}
	return s.revoked.Set(ctx, revokedTokenKeyPrefix+claims.ID, []byte("1"), ttl)
}

// TokenTTL reports how long issued tokens stay valid.
func (s *OperatorService) TokenTTL() time.Duration {
	return s.jwt.TTL()
}

func (s *OperatorService) verify(username, password string) bool {
	userOK := crypto.ConstantTimeEqual(username, s.cfg.Username)
	var passOK bool
	if crypto.IsBcryptHash(s.cfg.Password) {
		passOK = crypto.VerifyPassword(s.cfg.Password, password)
	} else {
		passOK = crypto.ConstantTimeEqual(password, s.cfg.Password)
	}
	return userOK && passOK
}
