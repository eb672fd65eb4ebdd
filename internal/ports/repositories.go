package ports

import (
	"context"
	"time"

	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/contracts"
	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/domain"
)

type TaskRepository interface {
	Create(ctx context.Context, row domain.Task) error
	GetByID(ctx context.Context, taskID string) (domain.Task, error)
	Update(ctx context.Context, row domain.Task) error
}

type SubmissionRepository interface {
	Create(ctx context.Context, row domain.Submission) error
	GetByID(ctx context.Context, submissionID string) (domain.Submission, error)
	// Update persists row when the stored version equals expectedVersion and
	// returns the row with its version advanced; otherwise ErrConflict.
	Update(ctx context.Context, row domain.Submission, expectedVersion int64) (domain.Submission, error)
	LatestForPairing(ctx context.Context, taskID, influencerID string) (domain.Submission, error)
	CountOccupyingSlots(ctx context.Context, taskID string) (int, error)
	// ListTrackable returns approved or in-progress submissions of
	// metric-driven tasks, least recently attempted first.
	ListTrackable(ctx context.Context, limit int) ([]domain.Submission, error)
	// MarkAttempted stamps a tracking attempt without touching the version.
	MarkAttempted(ctx context.Context, submissionID string, at time.Time) error
}

// LedgerRepository owns balances. ApplyPayment writes the entries, the
// submission update and the outbox records in one unit; a payment key that
// already exists yields ErrPaymentAlreadyRecorded and nothing is written.
type LedgerRepository interface {
	ApplyPayment(ctx context.Context, payment domain.Payment, events []OutboxRecord) (domain.Submission, error)
	ListBySubmission(ctx context.Context, submissionID string) ([]domain.LedgerEntry, error)
	ListByAccount(ctx context.Context, accountID string) ([]domain.LedgerEntry, error)
}

type AccountRepository interface {
	Upsert(ctx context.Context, row domain.LinkedAccount) error
	Get(ctx context.Context, influencerID, platform string) (domain.LinkedAccount, error)
}

type IdempotencyRecord struct {
	Key          string
	RequestHash  string
	ResponseCode int
	ResponseBody []byte
	ExpiresAt    time.Time
}

type IdempotencyRepository interface {
	Get(ctx context.Context, key string, now time.Time) (*IdempotencyRecord, error)
	Reserve(ctx context.Context, key, requestHash string, expiresAt time.Time) error
	Complete(ctx context.Context, key string, responseCode int, responseBody []byte, at time.Time) error
	// Release drops a reservation that never completed.
	Release(ctx context.Context, key string) error
}

type EventDedupRepository interface {
	IsDuplicate(ctx context.Context, eventID string, now time.Time) (bool, error)
	MarkProcessed(ctx context.Context, eventID, eventType string, expiresAt time.Time) error
}

type OutboxRecord struct {
	RecordID   string
	EventClass string
	Envelope   contracts.EventEnvelope
	CreatedAt  time.Time
	SentAt     *time.Time
	RetryCount int
	LastError  string
}

type OutboxRepository interface {
	Enqueue(ctx context.Context, record OutboxRecord) error
	ListPending(ctx context.Context, limit int) ([]OutboxRecord, error)
	MarkSent(ctx context.Context, recordID string, at time.Time) error
	MarkFailed(ctx context.Context, recordID, errMsg string, at time.Time) error
}
