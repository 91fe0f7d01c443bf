package realtime

// Named realtime streams pushed to operator dashboards.
const (
	StreamRegistrations = "registrations"
	StreamScans         = "scans"
)

// Events published on the streams above.
const (
	EventAttendeeRegistered = "attendee.registered"
	EventCodeValidated      = "code.validated"
)

// DefaultStreams lists the streams an operator subscribes to when none are requested.
func DefaultStreams() []string {
	return []string{StreamRegistrations, StreamScans}
}
