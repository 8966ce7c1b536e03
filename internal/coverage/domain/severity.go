package domain

// Severity is a coarse urgency tier derived from how late a visit is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Severities returns all severity tiers in ascending order of urgency.
func Severities() []Severity {
	return []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
}

// ClassifySeverity maps lateness to a severity tier. Boundary values belong
// to the higher tier. The result is frozen on the gap at detection time and
// never re-evaluated as the shift gets later.
func ClassifySeverity(minutesLate int) Severity {
	switch {
	case minutesLate >= 60:
		return SeverityCritical
	case minutesLate >= 30:
		return SeverityHigh
	case minutesLate >= 20:
		return SeverityMedium
	default:
		return SeverityLow
	}
}
