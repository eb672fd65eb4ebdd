package ports

import (
	"context"
	"time"

	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/contracts"
	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/domain"
	"github.com/shopspring/decimal"
)

type AccountProfile struct {
	AccountID string
	Username  string
}

type PostMetrics struct {
	MediaID  string
	Snapshot domain.Snapshot
}

// MetricsFetcher reads post counters from the social platform. Failures
// wrap domain.ErrMetricsFetchFailure or domain.ErrMalformedReference.
type MetricsFetcher interface {
	ResolveAccountID(ctx context.Context, accessToken string) (AccountProfile, error)
	FetchPostMetrics(ctx context.Context, creds domain.Credentials, ref domain.PostReference) (PostMetrics, error)
	FetchMetricsByID(ctx context.Context, creds domain.Credentials, mediaID string) (domain.Snapshot, error)
}

// Locker hands out per-key mutual-exclusion tokens. ok is false when another
// holder owns the key.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (unlock func(context.Context) error, ok bool, err error)
}

type Notification struct {
	RecipientID string
	Kind        string
	Text        string
}

// Notifier delivers user-facing messages best-effort.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

type Encryption interface {
	Encrypt(subjectID string, value string) ([]byte, error)
	Decrypt(subjectID string, payload []byte) (string, error)
}

type DomainPublisher interface {
	PublishDomain(ctx context.Context, event contracts.EventEnvelope) error
}

type AnalyticsPublisher interface {
	PublishAnalytics(ctx context.Context, event contracts.EventEnvelope) error
}

type DLQPublisher interface {
	PublishDLQ(ctx context.Context, record contracts.DLQRecord) error
}

type CycleStats struct {
	Scanned           int
	Tracked           int
	Completed         int
	DeadlineCompleted int
	FetchFailures     int
	LedgerFailures    int
	LockSkipped       int
	Credited          decimal.Decimal
	Duration          time.Duration
}

// TrackingMetrics receives scheduler observations.
type TrackingMetrics interface {
	ObserveCycle(stats CycleStats)
	ObserveFetch(outcome string)
	ObservePayment(mode string, amount decimal.Decimal)
}
