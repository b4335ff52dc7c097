package service

import "time"

// Priority label thresholds.
const (
	priorityCritical = 16
	priorityHigh     = 11
	priorityMedium   = 6
)

// DaysUnresolved returns the whole days elapsed since creation, floored at
// zero so clock skew never produces a negative age.
func DaysUnresolved(createdAt, now time.Time) int {
	days := int(now.Sub(createdAt).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// PriorityScore computes an issue's urgency ranking. A freshly created
// issue (one report, no upvotes, zero age) scores 2 + severity.
func PriorityScore(reportCount, severity int, createdAt time.Time, upvoteCount int, now time.Time) int {
	return reportCount*2 + severity + DaysUnresolved(createdAt, now) + upvoteCount
}

// PriorityLabel maps a score onto the four display tiers.
func PriorityLabel(score int) string {
	switch {
	case score >= priorityCritical:
		return "Critical"
	case score >= priorityHigh:
		return "High"
	case score >= priorityMedium:
		return "Medium"
	default:
		return "Low"
	}
}
