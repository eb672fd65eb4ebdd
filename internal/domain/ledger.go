package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	LedgerEntryCredit = "credit"
	LedgerEntryDebit  = "debit"
)

// LedgerEntry is one side of a payment. Every payment writes a credit to the
// influencer and a debit to the task owner sharing the same PaymentKey.
type LedgerEntry struct {
	EntryID      string          `json:"entry_id"`
	PaymentKey   string          `json:"payment_key"`
	AccountID    string          `json:"account_id"`
	SubmissionID string          `json:"submission_id"`
	TaskID       string          `json:"task_id"`
	Tier         TierKey         `json:"tier"`
	EntryType    string          `json:"entry_type"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	OccurredAt   time.Time       `json:"occurred_at"`
}

type Balance struct {
	AccountID    string          `json:"account_id"`
	Currency     string          `json:"currency"`
	Credited     decimal.Decimal `json:"credited"`
	Debited      decimal.Decimal `json:"debited"`
	Net          decimal.Decimal `json:"net"`
	CalculatedAt time.Time       `json:"calculated_at"`
}

// PaymentKey is the unique marker for paying one tier of one submission.
func PaymentKey(submissionID string, tier TierKey) string {
	return submissionID + "/" + tier.String()
}

// Payment couples a submission state change with the ledger entries it
// requires. Stores apply both or neither.
type Payment struct {
	Submission      Submission
	ExpectedVersion int64
	Entries         []LedgerEntry
}

// BuildPaymentEntries creates the credit/debit pair for each newly paid tier.
func BuildPaymentEntries(sub Submission, task Task, tiers []PaidTier, at time.Time, newID func() string) []LedgerEntry {
	out := make([]LedgerEntry, 0, len(tiers)*2)
	for _, tier := range tiers {
		if !tier.Price.IsPositive() {
			continue
		}
		key := PaymentKey(sub.SubmissionID, tier.Key)
		base := LedgerEntry{
			PaymentKey:   key,
			SubmissionID: sub.SubmissionID,
			TaskID:       task.TaskID,
			Tier:         tier.Key,
			Amount:       tier.Price,
			Currency:     task.Currency,
			OccurredAt:   at,
		}
		credit := base
		credit.EntryID = newID()
		credit.AccountID = sub.InfluencerID
		credit.EntryType = LedgerEntryCredit
		debit := base
		debit.EntryID = newID()
		debit.AccountID = task.ClientID
		debit.EntryType = LedgerEntryDebit
		out = append(out, credit, debit)
	}
	return out
}

// SumBalance folds entries for one account into a balance.
func SumBalance(accountID string, entries []LedgerEntry, at time.Time) Balance {
	b := Balance{AccountID: accountID, Credited: decimal.Zero, Debited: decimal.Zero, CalculatedAt: at}
	for _, e := range entries {
		if e.AccountID != accountID {
			continue
		}
		if b.Currency == "" {
			b.Currency = e.Currency
		}
		switch e.EntryType {
		case LedgerEntryCredit:
			b.Credited = b.Credited.Add(e.Amount)
		case LedgerEntryDebit:
			b.Debited = b.Debited.Add(e.Amount)
		}
	}
	b.Net = b.Credited.Sub(b.Debited)
	return b
}
