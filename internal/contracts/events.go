package contracts

import (
	"encoding/json"
	"time"
)

type EventEnvelope struct {
	EventID          string          `json:"event_id"`
	EventType        string          `json:"event_type"`
	EventClass       string          `json:"event_class,omitempty"`
	OccurredAt       time.Time       `json:"occurred_at"`
	PartitionKeyPath string          `json:"partition_key_path"`
	PartitionKey     string          `json:"partition_key"`
	SourceService    string          `json:"source_service"`
	TraceID          string          `json:"trace_id"`
	SchemaVersion    string          `json:"schema_version"`
	Data             json.RawMessage `json:"data"`
}

type SubmissionStatusChangedPayload struct {
	SubmissionID string `json:"submission_id"`
	TaskID       string `json:"task_id"`
	InfluencerID string `json:"influencer_id"`
	Status       string `json:"status"`
	Reason       string `json:"reason,omitempty"`
	ChangedAt    string `json:"changed_at"`
}

type PaymentCreditedPayload struct {
	SubmissionID    string   `json:"submission_id"`
	TaskID          string   `json:"task_id"`
	InfluencerID    string   `json:"influencer_id"`
	Tiers           []string `json:"tiers"`
	Amount          string   `json:"amount"`
	Currency        string   `json:"currency"`
	DeterminedPrice string   `json:"determined_price"`
	CreditedAt      string   `json:"credited_at"`
}

type MetricsRefreshedPayload struct {
	SubmissionID string `json:"submission_id"`
	Views        int64  `json:"views"`
	Likes        int64  `json:"likes"`
	Comments     int64  `json:"comments"`
	Quality      string `json:"quality"`
	CapturedAt   string `json:"captured_at"`
}

type TrackingCycleRequestedPayload struct {
	RequestedBy string `json:"requested_by"`
	Reason      string `json:"reason,omitempty"`
}

type DLQRecord struct {
	OriginalEvent EventEnvelope `json:"original_event"`
	ErrorSummary  string        `json:"error_summary"`
	RetryCount    int           `json:"retry_count"`
	FirstSeenAt   time.Time     `json:"first_seen_at"`
	LastErrorAt   time.Time     `json:"last_error_at"`
	SourceTopic   string        `json:"source_topic,omitempty"`
	DLQTopic      string        `json:"dlq_topic,omitempty"`
	TraceID       string        `json:"trace_id,omitempty"`
}
