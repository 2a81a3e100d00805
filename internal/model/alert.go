package model

import "time"

// Severity classifies how urgent an emitted alert is.
type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// IsValid checks if the severity is one of the known values.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	default:
		return false
	}
}

// Alert is a persisted detection finding. Key holds the group value the rule
// bucketed events by (e.g. a source IP). Alerts are never mutated after
// creation; retention cleanup is external tooling.
type Alert struct {
	ID          string    `json:"id"`
	Rule        string    `json:"rule"`
	Severity    Severity  `json:"severity"`
	Key         string    `json:"key"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

// AggregateResult is one per-group count produced by the aggregator for a
// rule's window.
type AggregateResult struct {
	GroupValue string
	Count      int
}
