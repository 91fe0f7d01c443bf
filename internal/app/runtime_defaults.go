package app

import (
	"fmt"
	"strings"

	"github.com/charlesng35/gatepass/pkg/crypto"
)

const (
	jwtSecretBytes        = 48
	operatorPasswordBytes = 18
)

// ApplyRuntimeDefaults ensures critical secrets are populated even when no configuration file is supplied.
// It returns a map describing which keys were generated so callers can log the event.
func ApplyRuntimeDefaults(cfg *Config) (map[string]bool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	generated := make(map[string]bool)

	if strings.TrimSpace(cfg.Auth.JWT.Secret) == "" {
		secret, err := crypto.GenerateToken(jwtSecretBytes)
		if err != nil {
			return nil, fmt.Errorf("generate jwt secret: %w", err)
		}
		cfg.Auth.JWT.Secret = secret
		generated["auth.jwt.secret"] = true
	}

	if strings.TrimSpace(cfg.Auth.Operator.Username) == "" {
		cfg.Auth.Operator.Username = "admin"
	}

	if cfg.Auth.Operator.Password == "" {
		password, err := crypto.GenerateToken(operatorPasswordBytes)
		if err != nil {
			return nil, fmt.Errorf("generate operator password: %w", err)
		}
		cfg.Auth.Operator.Password = password
		generated["auth.operator.password"] = true
	}

	return generated, nil
}
