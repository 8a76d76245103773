package models

import "time"

// DispatchOutcome records how a dispatched mutation ended.
type DispatchOutcome string

const (
	DispatchOutcomeSucceeded DispatchOutcome = "SUCCEEDED"
	DispatchOutcomeFailed    DispatchOutcome = "FAILED"
	DispatchOutcomeDeclined  DispatchOutcome = "DECLINED"
	DispatchOutcomeConflict  DispatchOutcome = "CONFLICT"
)

// DispatchEntry is one journaled mutation attempt.
type DispatchEntry struct {
	ID         string          `db:"id" json:"id"`
	Page       string          `db:"page" json:"page"`
	Action     string          `db:"action" json:"action"`
	RecordID   string          `db:"record_id" json:"record_id"`
	ActorID    string          `db:"actor_id" json:"actor_id"`
	Outcome    DispatchOutcome `db:"outcome" json:"outcome"`
	Message    *string         `db:"message" json:"message,omitempty"`
	DurationMS int64           `db:"duration_ms" json:"duration_ms"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// DispatchFilter constrains journal listing queries.
type DispatchFilter struct {
	Page     string
	ActorID  string
	RecordID string
	Outcome  DispatchOutcome
	Limit    int
	Offset   int
}
