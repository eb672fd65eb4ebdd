package memory

import (
	"context"

	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/domain"
	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/ports"
)

type LedgerRepository struct {
	s        *store
	failNext error
}

// FailNextPayment makes the next ApplyPayment return err without writing.
func (r *LedgerRepository) FailNextPayment(err error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.failNext = err
}

func (r *LedgerRepository) ApplyPayment(_ context.Context, payment domain.Payment, events []ports.OutboxRecord) (domain.Submission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.failNext; err != nil {
		r.failNext = nil
		return domain.Submission{}, err
	}
	current, ok := r.s.submissions[payment.Submission.SubmissionID]
	if !ok {
		return domain.Submission{}, domain.ErrNotFound
	}
	if current.Version != payment.ExpectedVersion {
		return domain.Submission{}, domain.ErrConflict
	}
	seen := map[string]struct{}{}
	for _, e := range payment.Entries {
		key := e.PaymentKey + "#" + e.EntryType
		if _, dup := r.s.paymentKeys[key]; dup {
			return domain.Submission{}, domain.ErrPaymentAlreadyRecorded
		}
		if _, dup := seen[key]; dup {
			return domain.Submission{}, domain.ErrPaymentAlreadyRecorded
		}
		seen[key] = struct{}{}
	}
	for _, ev := range events {
		if _, dup := r.s.outbox[ev.RecordID]; dup {
			return domain.Submission{}, domain.ErrConflict
		}
	}
	updated, err := r.s.writeSubmission(payment.Submission, payment.ExpectedVersion)
	if err != nil {
		return domain.Submission{}, err
	}
	for key := range seen {
		r.s.paymentKeys[key] = struct{}{}
	}
	r.s.ledger = append(r.s.ledger, payment.Entries...)
	for _, ev := range events {
		r.s.outbox[ev.RecordID] = ev
		r.s.outboxOrder = append(r.s.outboxOrder, ev.RecordID)
	}
	return updated, nil
}

// AppendEntries writes entries without touching the submission. It simulates
// a crash between the ledger write and the submission update.
func (r *LedgerRepository) AppendEntries(entries ...domain.LedgerEntry) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range entries {
		r.s.paymentKeys[e.PaymentKey+"#"+e.EntryType] = struct{}{}
	}
	r.s.ledger = append(r.s.ledger, entries...)
}

func (r *LedgerRepository) ListBySubmission(_ context.Context, submissionID string) ([]domain.LedgerEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]domain.LedgerEntry, 0)
	for _, e := range r.s.ledger {
		if e.SubmissionID == submissionID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *LedgerRepository) ListByAccount(_ context.Context, accountID string) ([]domain.LedgerEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]domain.LedgerEntry, 0)
	for _, e := range r.s.ledger {
		if e.AccountID == accountID {
			out = append(out, e)
		}
	}
	return out, nil
}
