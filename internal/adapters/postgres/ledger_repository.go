package postgres

import (
	"context"
	"errors"

	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/domain"
	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/ports"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ledgerRepository struct {
	db *gorm.DB
}

// ApplyPayment locks the submission row, inserts the entries and outbox rows
// and advances the submission in one transaction.
func (r *ledgerRepository) ApplyPayment(ctx context.Context, payment domain.Payment, events []ports.OutboxRecord) (domain.Submission, error) {
	var out domain.Submission
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current submissionModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("submission_id = ?", payment.Submission.SubmissionID).
			Take(&current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return err
		}
		if current.Version != payment.ExpectedVersion {
			return domain.ErrConflict
		}
		if len(payment.Entries) > 0 {
			rows := make([]ledgerEntryModel, 0, len(payment.Entries))
			for _, e := range payment.Entries {
				rows = append(rows, toLedgerEntryModel(e))
			}
			if err := tx.Create(&rows).Error; err != nil {
				if isUniqueViolation(err) {
					return domain.ErrPaymentAlreadyRecorded
				}
				return err
			}
		}
		updated, err := writeSubmission(tx, payment.Submission, payment.ExpectedVersion)
		if err != nil {
			return err
		}
		if len(events) > 0 {
			rows := make([]outboxModel, 0, len(events))
			for _, ev := range events {
				row, err := toOutboxModel(ev)
				if err != nil {
					return err
				}
				rows = append(rows, row)
			}
			if err := tx.Create(&rows).Error; err != nil {
				return err
			}
		}
		out = updated
		return nil
	})
	if err != nil {
		return domain.Submission{}, err
	}
	return out, nil
}

func (r *ledgerRepository) ListBySubmission(ctx context.Context, submissionID string) ([]domain.LedgerEntry, error) {
	var rows []ledgerEntryModel
	if err := r.db.WithContext(ctx).Where("submission_id = ?", submissionID).Order("occurred_at asc, entry_id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return fromLedgerEntryModels(rows)
}

func (r *ledgerRepository) ListByAccount(ctx context.Context, accountID string) ([]domain.LedgerEntry, error) {
	var rows []ledgerEntryModel
	if err := r.db.WithContext(ctx).Where("account_id = ?", accountID).Order("occurred_at asc, entry_id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return fromLedgerEntryModels(rows)
}
