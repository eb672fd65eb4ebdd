package postgres

import (
	"time"

	"github.com/shopspring/decimal"
)

type taskModel struct {
	TaskID             string          `gorm:"column:task_id;primaryKey"`
	ClientID           string          `gorm:"column:client_id"`
	Title              string          `gorm:"column:title"`
	Description        string          `gorm:"column:description"`
	Budget             decimal.Decimal `gorm:"column:budget;type:numeric(18,2)"`
	Currency           string          `gorm:"column:currency"`
	TargetMetrics      string          `gorm:"column:target_metrics;type:jsonb"`
	PricingTiers       string          `gorm:"column:pricing_tiers;type:jsonb"`
	MetricDeadlineDays int             `gorm:"column:metric_deadline_days"`
	MaxInfluencers     int             `gorm:"column:max_influencers"`
	WorkDeadline       *time.Time      `gorm:"column:work_deadline"`
	Status             string          `gorm:"column:status"`
	CreatedAt          time.Time       `gorm:"column:created_at"`
	UpdatedAt          time.Time       `gorm:"column:updated_at"`
}

func (taskModel) TableName() string { return "tasks" }

type submissionModel struct {
	SubmissionID    string          `gorm:"column:submission_id;primaryKey"`
	TaskID          string          `gorm:"column:task_id"`
	InfluencerID    string          `gorm:"column:influencer_id"`
	PostURL         string          `gorm:"column:post_url"`
	PostShortcode   string          `gorm:"column:post_shortcode"`
	PostKind        string          `gorm:"column:post_kind"`
	PlatformMediaID string          `gorm:"column:platform_media_id"`
	InitialMetrics  string          `gorm:"column:initial_metrics;type:jsonb"`
	CurrentMetrics  string          `gorm:"column:current_metrics;type:jsonb"`
	Status          string          `gorm:"column:status"`
	DeterminedPrice decimal.Decimal `gorm:"column:determined_price;type:numeric(18,2)"`
	PaidTiers       string          `gorm:"column:paid_tiers;type:jsonb"`
	ReviewNote      string          `gorm:"column:review_note"`
	ApprovedAt      *time.Time      `gorm:"column:approved_at"`
	MetricDeadline  *time.Time      `gorm:"column:metric_deadline"`
	LastTrackedAt   *time.Time      `gorm:"column:last_tracked_at"`
	LastAttemptedAt *time.Time      `gorm:"column:last_attempted_at"`
	CompletedAt     *time.Time      `gorm:"column:completed_at"`
	Version         int64           `gorm:"column:version"`
	CreatedAt       time.Time       `gorm:"column:created_at"`
	UpdatedAt       time.Time       `gorm:"column:updated_at"`
}

func (submissionModel) TableName() string { return "submissions" }

type ledgerEntryModel struct {
	EntryID      string          `gorm:"column:entry_id;primaryKey"`
	PaymentKey   string          `gorm:"column:payment_key"`
	AccountID    string          `gorm:"column:account_id"`
	SubmissionID string          `gorm:"column:submission_id"`
	TaskID       string          `gorm:"column:task_id"`
	Tier         string          `gorm:"column:tier"`
	EntryType    string          `gorm:"column:entry_type"`
	Amount       decimal.Decimal `gorm:"column:amount;type:numeric(18,2)"`
	Currency     string          `gorm:"column:currency"`
	OccurredAt   time.Time       `gorm:"column:occurred_at"`
}

func (ledgerEntryModel) TableName() string { return "ledger_entries" }

type linkedAccountModel struct {
	InfluencerID   string    `gorm:"column:influencer_id;primaryKey"`
	Platform       string    `gorm:"column:platform;primaryKey"`
	AccountID      string    `gorm:"column:account_id"`
	Username       string    `gorm:"column:username"`
	TokenEncrypted []byte    `gorm:"column:token_encrypted"`
	LinkedAt       time.Time `gorm:"column:linked_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (linkedAccountModel) TableName() string { return "linked_accounts" }

type outboxModel struct {
	RecordID     string     `gorm:"column:record_id;primaryKey"`
	EventClass   string     `gorm:"column:event_class"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Envelope     string     `gorm:"column:envelope;type:jsonb"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	SentAt       *time.Time `gorm:"column:sent_at"`
	RetryCount   int        `gorm:"column:retry_count"`
	LastError    string     `gorm:"column:last_error"`
	LastErrorAt  *time.Time `gorm:"column:last_error_at"`
}

func (outboxModel) TableName() string { return "tracking_outbox" }

type idempotencyModel struct {
	IdempotencyKey string    `gorm:"column:idempotency_key;primaryKey"`
	RequestHash    string    `gorm:"column:request_hash"`
	Status         string    `gorm:"column:status"`
	ResponseCode   int       `gorm:"column:response_code"`
	ResponseBody   *string   `gorm:"column:response_body"`
	ExpiresAt      time.Time `gorm:"column:expires_at"`
	CreatedAt      time.Time `gorm:"column:created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (idempotencyModel) TableName() string { return "tracking_idempotency" }

type eventDedupModel struct {
	EventID     string    `gorm:"column:event_id;primaryKey"`
	EventType   string    `gorm:"column:event_type"`
	ProcessedAt time.Time `gorm:"column:processed_at"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
}

func (eventDedupModel) TableName() string { return "tracking_event_dedup" }
