package memory

import (
	"sync"
	"time"

	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/domain"
	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/ports"
)

// store holds every table behind one mutex so a payment can touch the ledger
// and a submission atomically.
type store struct {
	mu          sync.Mutex
	tasks       map[string]domain.Task
	submissions map[string]domain.Submission
	ledger      []domain.LedgerEntry
	paymentKeys map[string]struct{}
	accounts    map[string]domain.LinkedAccount
	idempotency map[string]ports.IdempotencyRecord
	dedup       map[string]eventDedupRow
	outbox      map[string]ports.OutboxRecord
	outboxOrder []string
	attempted   map[string]time.Time
}

type Repositories struct {
	Tasks       *TaskRepository
	Submissions *SubmissionRepository
	Ledger      *LedgerRepository
	Accounts    *AccountRepository
	Idempotency *IdempotencyRepository
	EventDedup  *EventDedupRepository
	Outbox      *OutboxRepository
}

func NewRepositories() *Repositories {
	s := &store{
		tasks:       map[string]domain.Task{},
		submissions: map[string]domain.Submission{},
		paymentKeys: map[string]struct{}{},
		accounts:    map[string]domain.LinkedAccount{},
		idempotency: map[string]ports.IdempotencyRecord{},
		dedup:       map[string]eventDedupRow{},
		outbox:      map[string]ports.OutboxRecord{},
		attempted:   map[string]time.Time{},
	}
	return &Repositories{
		Tasks:       &TaskRepository{s: s},
		Submissions: &SubmissionRepository{s: s},
		Ledger:      &LedgerRepository{s: s},
		Accounts:    &AccountRepository{s: s},
		Idempotency: &IdempotencyRepository{s: s},
		EventDedup:  &EventDedupRepository{s: s},
		Outbox:      &OutboxRepository{s: s},
	}
}
