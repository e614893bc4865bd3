package lead

import "time"

// Severity classifies how a lead is tracking against its response SLA.
// It is derived per read and never stored.
type Severity string

const (
	SeverityOK       Severity = "ok"
	SeverityWarn     Severity = "warn"
	SeverityBreached Severity = "breached"
)

// DefaultWarnSeconds is how close to breach a lead must be before it is
// flagged as warn.
const DefaultWarnSeconds = 30

// Remaining returns the whole seconds left on the SLA countdown,
// clamped at zero.
func Remaining(slaSeconds int, createdAt, now time.Time) int {
	elapsed := int(now.Sub(createdAt) / time.Second)
	remaining := slaSeconds - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// SeverityFor classifies a lead from its remaining seconds. A responded lead
// is always ok regardless of the clock.
func SeverityFor(remaining int, responded bool, warnSeconds int) Severity {
	if responded {
		return SeverityOK
	}
	if remaining == 0 {
		return SeverityBreached
	}
	if remaining <= warnSeconds {
		return SeverityWarn
	}
	return SeverityOK
}
