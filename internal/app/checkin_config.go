package app

import (
	"time"

	"github.com/charlesng35/gatepass/internal/services"
)

const defaultDispatchTimeout = 15 * time.Second

// TTL returns how long issued codes stay redeemable. Whole days take
// precedence over the duration setting.
func (c CheckinConfig) TTL() time.Duration {
	if c.CodeTTLDays > 0 {
		return time.Duration(c.CodeTTLDays) * 24 * time.Hour
	}
	if c.CodeTTL > 0 {
		return c.CodeTTL
	}
	return services.DefaultCodeTTL
}

// DispatchDeadline bounds a single ticket email delivery.
func (c CheckinConfig) DispatchDeadline() time.Duration {
	if c.DispatchTimeout > 0 {
		return c.DispatchTimeout
	}
	return defaultDispatchTimeout
}
