package app

import (
	"strings"

	"github.com/charlesng35/gatepass/internal/auth"
)

// JWTServiceConfig converts AuthConfig into the parameters expected by the JWT service.
func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	ttl := c.JWT.TTL
	if ttl <= 0 {
		ttl = auth.DefaultAccessTokenTTL
	}

	return auth.JWTConfig{
		Secret:         c.JWT.Secret,
		Issuer:         c.JWT.Issuer,
		AccessTokenTTL: ttl,
	}
}

// OperatorConfig converts AuthConfig into the operator account settings.
func (c AuthConfig) OperatorConfig() auth.OperatorConfig {
	return auth.OperatorConfig{
		Username: strings.TrimSpace(c.Operator.Username),
		Password: c.Operator.Password,
	}
}
