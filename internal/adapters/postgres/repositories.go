package postgres

import (
	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/ports"
	"gorm.io/gorm"
)

type Repositories struct {
	Tasks       ports.TaskRepository
	Submissions ports.SubmissionRepository
	Ledger      ports.LedgerRepository
	Accounts    ports.AccountRepository
	Outbox      ports.OutboxRepository
	EventDedup  ports.EventDedupRepository
	Idempotency ports.IdempotencyRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Tasks:       &taskRepository{db: db},
		Submissions: &submissionRepository{db: db},
		Ledger:      &ledgerRepository{db: db},
		Accounts:    &accountRepository{db: db},
		Outbox:      &outboxRepository{db: db},
		EventDedup:  &eventDedupRepository{db: db},
		Idempotency: &idempotencyRepository{db: db},
	}
}
