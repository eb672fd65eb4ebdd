package application

import (
	"log/slog"
	"time"

	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/domain"
	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/ports"
	"github.com/shopspring/decimal"
)

type Config struct {
	ServiceName          string
	DefaultCurrency      string
	IdempotencyTTL       time.Duration
	EventDedupTTL        time.Duration
	OutboxFlushBatchSize int

	TrackingBatchSize   int
	TrackingConcurrency int
	FetchTimeout        time.Duration
	LockTTL             time.Duration
}

type Actor struct {
	SubjectID      string
	Role           string
	RequestID      string
	IdempotencyKey string
}

type CreateTaskInput struct {
	ClientID           string
	Title              string
	Description        string
	Budget             decimal.Decimal
	Currency           string
	TargetMetrics      map[domain.Metric]int64
	PricingTiers       []domain.PricingTier
	MetricDeadlineDays int
	MaxInfluencers     int
	WorkDeadline       *time.Time
}

type SubmitPostInput struct {
	TaskID        string
	InfluencerID  string
	PostReference string
}

// CycleReport summarizes one tracking cycle.
type CycleReport struct {
	CycleID           string
	Scanned           int
	Tracked           int
	Completed         int
	DeadlineCompleted int
	FetchFailures     int
	LedgerFailures    int
	LockSkipped       int
	Credited          decimal.Decimal
	StartedAt         time.Time
	FinishedAt        time.Time
}

type Service struct {
	cfg          Config
	logger       *slog.Logger
	tasks        ports.TaskRepository
	submissions  ports.SubmissionRepository
	ledger       ports.LedgerRepository
	accounts     ports.AccountRepository
	idempotency  ports.IdempotencyRepository
	eventDedup   ports.EventDedupRepository
	outbox       ports.OutboxRepository
	fetcher      ports.MetricsFetcher
	locker       ports.Locker
	notifier     ports.Notifier
	encryption   ports.Encryption
	domainEvents ports.DomainPublisher
	analytics    ports.AnalyticsPublisher
	dlq          ports.DLQPublisher
	metrics      ports.TrackingMetrics
	nowFn        func() time.Time
	newID        func() string
}

type Dependencies struct {
	Config       Config
	Logger       *slog.Logger
	Tasks        ports.TaskRepository
	Submissions  ports.SubmissionRepository
	Ledger       ports.LedgerRepository
	Accounts     ports.AccountRepository
	Idempotency  ports.IdempotencyRepository
	EventDedup   ports.EventDedupRepository
	Outbox       ports.OutboxRepository
	Fetcher      ports.MetricsFetcher
	Locker       ports.Locker
	Notifier     ports.Notifier
	Encryption   ports.Encryption
	DomainEvents ports.DomainPublisher
	Analytics    ports.AnalyticsPublisher
	DLQ          ports.DLQPublisher
	Metrics      ports.TrackingMetrics
	Clock        func() time.Time
}

func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	if cfg.ServiceName == "" {
		cfg.ServiceName = "submission-tracking-service"
	}
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = "USD"
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = 7 * 24 * time.Hour
	}
	if cfg.EventDedupTTL <= 0 {
		cfg.EventDedupTTL = 7 * 24 * time.Hour
	}
	if cfg.OutboxFlushBatchSize <= 0 {
		cfg.OutboxFlushBatchSize = 100
	}
	if cfg.TrackingBatchSize <= 0 {
		cfg.TrackingBatchSize = 500
	}
	if cfg.TrackingConcurrency <= 0 {
		cfg.TrackingConcurrency = 8
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 20 * time.Second
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 2 * time.Minute
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}
	nowFn := deps.Clock
	if nowFn == nil {
		nowFn = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		cfg:          cfg,
		logger:       logger,
		tasks:        deps.Tasks,
		submissions:  deps.Submissions,
		ledger:       deps.Ledger,
		accounts:     deps.Accounts,
		idempotency:  deps.Idempotency,
		eventDedup:   deps.EventDedup,
		outbox:       deps.Outbox,
		fetcher:      deps.Fetcher,
		locker:       deps.Locker,
		notifier:     deps.Notifier,
		encryption:   deps.Encryption,
		domainEvents: deps.DomainEvents,
		analytics:    deps.Analytics,
		dlq:          deps.DLQ,
		metrics:      metrics,
		nowFn:        nowFn,
		newID:        newUUID,
	}
}

type noopMetrics struct{}

func (noopMetrics) ObserveCycle(ports.CycleStats)          {}
func (noopMetrics) ObserveFetch(string)                    {}
func (noopMetrics) ObservePayment(string, decimal.Decimal) {}
