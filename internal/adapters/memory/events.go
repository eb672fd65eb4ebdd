package memory

import (
	"context"
	"time"

	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/domain"
	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/ports"
)

type IdempotencyRepository struct {
	s *store
}

func (r *IdempotencyRepository) Get(_ context.Context, key string, now time.Time) (*ports.IdempotencyRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.s.idempotency[key]
	if !ok {
		return nil, nil
	}
	if now.After(row.ExpiresAt) {
		delete(r.s.idempotency, key)
		return nil, nil
	}
	cpy := row
	cpy.ResponseBody = append([]byte(nil), row.ResponseBody...)
	return &cpy, nil
}

func (r *IdempotencyRepository) Reserve(_ context.Context, key, requestHash string, expiresAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if row, ok := r.s.idempotency[key]; ok && time.Now().UTC().Before(row.ExpiresAt) {
		return domain.ErrIdempotencyConflict
	}
	r.s.idempotency[key] = ports.IdempotencyRecord{Key: key, RequestHash: requestHash, ExpiresAt: expiresAt}
	return nil
}

func (r *IdempotencyRepository) Complete(_ context.Context, key string, responseCode int, responseBody []byte, _ time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.s.idempotency[key]
	if !ok {
		return domain.ErrNotFound
	}
	row.ResponseCode = responseCode
	row.ResponseBody = append([]byte(nil), responseBody...)
	r.s.idempotency[key] = row
	return nil
}

func (r *IdempotencyRepository) Release(_ context.Context, key string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if row, ok := r.s.idempotency[key]; ok && len(row.ResponseBody) == 0 {
		delete(r.s.idempotency, key)
	}
	return nil
}

type eventDedupRow struct {
	EventType string
	ExpiresAt time.Time
}

type EventDedupRepository struct {
	s *store
}

func (r *EventDedupRepository) IsDuplicate(_ context.Context, eventID string, now time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.s.dedup[eventID]
	if !ok {
		return false, nil
	}
	if now.After(row.ExpiresAt) {
		delete(r.s.dedup, eventID)
		return false, nil
	}
	return true, nil
}

func (r *EventDedupRepository) MarkProcessed(_ context.Context, eventID, eventType string, expiresAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.dedup[eventID] = eventDedupRow{EventType: eventType, ExpiresAt: expiresAt}
	return nil
}

type OutboxRepository struct {
	s *store
}

func (r *OutboxRepository) Enqueue(_ context.Context, record ports.OutboxRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.outbox[record.RecordID]; ok {
		return domain.ErrConflict
	}
	r.s.outbox[record.RecordID] = record
	r.s.outboxOrder = append(r.s.outboxOrder, record.RecordID)
	return nil
}

func (r *OutboxRepository) ListPending(_ context.Context, limit int) ([]ports.OutboxRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}
	out := make([]ports.OutboxRecord, 0, limit)
	for _, id := range r.s.outboxOrder {
		row := r.s.outbox[id]
		if row.SentAt != nil {
			continue
		}
		out = append(out, row)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *OutboxRepository) MarkSent(_ context.Context, recordID string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.s.outbox[recordID]
	if !ok {
		return domain.ErrNotFound
	}
	t := at
	row.SentAt = &t
	r.s.outbox[recordID] = row
	return nil
}

func (r *OutboxRepository) MarkFailed(_ context.Context, recordID, errMsg string, _ time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.s.outbox[recordID]
	if !ok {
		return domain.ErrNotFound
	}
	row.RetryCount++
	row.LastError = errMsg
	r.s.outbox[recordID] = row
	return nil
}
