package contracts

type SuccessResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type ErrorPayload struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

type ErrorResponse struct {
	Status string       `json:"status"`
	Error  ErrorPayload `json:"error"`
}

type PricingTierRequest struct {
	Metric       string `json:"metric"`
	MinimumDelta int64  `json:"minimum_delta"`
	Price        string `json:"price"`
}

type CreateTaskRequest struct {
	Title              string               `json:"title"`
	Description        string               `json:"description,omitempty"`
	Budget             string               `json:"budget"`
	Currency           string               `json:"currency,omitempty"`
	TargetMetrics      map[string]int64     `json:"target_metrics,omitempty"`
	PricingTiers       []PricingTierRequest `json:"pricing_tiers,omitempty"`
	MetricDeadlineDays int                  `json:"metric_deadline_days,omitempty"`
	MaxInfluencers     int                  `json:"max_influencers,omitempty"`
	WorkDeadline       string               `json:"work_deadline,omitempty"`
}

type TaskResponse struct {
	TaskID             string               `json:"task_id"`
	ClientID           string               `json:"client_id"`
	Title              string               `json:"title"`
	Description        string               `json:"description,omitempty"`
	Budget             string               `json:"budget"`
	Currency           string               `json:"currency"`
	PaymentMode        string               `json:"payment_mode"`
	TargetMetrics      map[string]int64     `json:"target_metrics,omitempty"`
	PricingTiers       []PricingTierRequest `json:"pricing_tiers,omitempty"`
	MetricDeadlineDays int                  `json:"metric_deadline_days,omitempty"`
	MaxInfluencers     int                  `json:"max_influencers,omitempty"`
	WorkDeadline       string               `json:"work_deadline,omitempty"`
	Status             string               `json:"status"`
	CreatedAt          string               `json:"created_at"`
}

type SubmitPostRequest struct {
	InfluencerID  string `json:"influencer_id,omitempty"`
	PostReference string `json:"post_reference"`
}

type UpdateLinkRequest struct {
	PostReference string `json:"post_reference"`
}

type ReviewRequest struct {
	Note string `json:"note,omitempty"`
}

type ResubmitRequest struct {
	PostReference string `json:"post_reference,omitempty"`
}

type SnapshotResponse struct {
	Views       int64  `json:"views"`
	Likes       int64  `json:"likes"`
	Comments    int64  `json:"comments"`
	Reach       int64  `json:"reach"`
	Impressions int64  `json:"impressions"`
	Saves       int64  `json:"saves"`
	Shares      int64  `json:"shares"`
	Engagement  int64  `json:"engagement"`
	Quality     string `json:"quality"`
	CapturedAt  string `json:"captured_at"`
}

type SubmissionResponse struct {
	SubmissionID    string           `json:"submission_id"`
	TaskID          string           `json:"task_id"`
	InfluencerID    string           `json:"influencer_id"`
	PostURL         string           `json:"post_url"`
	PlatformMediaID string           `json:"platform_media_id,omitempty"`
	Status          string           `json:"status"`
	InitialMetrics  SnapshotResponse `json:"initial_metrics"`
	CurrentMetrics  SnapshotResponse `json:"current_metrics"`
	DeterminedPrice string           `json:"determined_price"`
	PaidTiers       []string         `json:"paid_tiers"`
	ReviewNote      string           `json:"review_note,omitempty"`
	ApprovedAt      string           `json:"approved_at,omitempty"`
	MetricDeadline  string           `json:"metric_deadline,omitempty"`
	LastTrackedAt   string           `json:"last_tracked_at,omitempty"`
	CompletedAt     string           `json:"completed_at,omitempty"`
	CreatedAt       string           `json:"created_at"`
	UpdatedAt       string           `json:"updated_at"`
}

type LinkAccountRequest struct {
	AccessToken string `json:"access_token"`
}

type LinkedAccountResponse struct {
	InfluencerID string `json:"influencer_id"`
	Platform     string `json:"platform"`
	AccountID    string `json:"account_id"`
	LinkedAt     string `json:"linked_at"`
}

type LedgerEntryResponse struct {
	EntryID    string `json:"entry_id"`
	AccountID  string `json:"account_id"`
	EntryType  string `json:"entry_type"`
	Tier       string `json:"tier"`
	Amount     string `json:"amount"`
	Currency   string `json:"currency"`
	OccurredAt string `json:"occurred_at"`
}

type BalanceResponse struct {
	AccountID string `json:"account_id"`
	Currency  string `json:"currency,omitempty"`
	Credited  string `json:"credited"`
	Debited   string `json:"debited"`
	Net       string `json:"net"`
}

type CycleReportResponse struct {
	CycleID           string `json:"cycle_id"`
	Scanned           int    `json:"scanned"`
	Tracked           int    `json:"tracked"`
	Completed         int    `json:"completed"`
	DeadlineCompleted int    `json:"deadline_completed"`
	FetchFailures     int    `json:"fetch_failures"`
	LedgerFailures    int    `json:"ledger_failures"`
	LockSkipped       int    `json:"lock_skipped"`
	Credited          string `json:"credited"`
	StartedAt         string `json:"started_at"`
	FinishedAt        string `json:"finished_at"`
}
