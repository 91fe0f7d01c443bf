package checks

import (
	"context"
	"fmt"

	"github.com/charlesng35/gatepass/internal/monitoring"
	"github.com/charlesng35/gatepass/internal/realtime"
)

// SubscriberCounter exposes live feed connection counts.
type SubscriberCounter interface {
	Subscribers(stream string) int
}

// Realtime reports how many operator dashboards follow the scan stream. It
// never fails readiness; a disabled feed is reported as such.
func Realtime(hub SubscriberCounter) monitoring.Check {
	return monitoring.NewCheck("realtime", func(context.Context) monitoring.ProbeResult {
		if hub == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: "live feed disabled"}
		}
		return monitoring.ProbeResult{
			Status:  monitoring.StatusUp,
			Details: fmt.Sprintf("%d operator(s) watching scans", hub.Subscribers(realtime.StreamScans)),
		}
	})
}
