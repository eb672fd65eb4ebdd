package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/ports"
	"gorm.io/gorm"
)

type outboxRepository struct {
	db *gorm.DB
}

func (r *outboxRepository) Enqueue(ctx context.Context, record ports.OutboxRecord) error {
	rec, err := toOutboxModel(record)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(&rec).Error
}

func toOutboxModel(record ports.OutboxRecord) (outboxModel, error) {
	raw, err := json.Marshal(record.Envelope)
	if err != nil {
		return outboxModel{}, err
	}
	return outboxModel{
		RecordID:     record.RecordID,
		EventClass:   record.EventClass,
		EventType:    record.Envelope.EventType,
		PartitionKey: record.Envelope.PartitionKey,
		Envelope:     string(raw),
		CreatedAt:    record.CreatedAt,
	}, nil
}

func (r *outboxRepository) ListPending(ctx context.Context, limit int) ([]ports.OutboxRecord, error) {
	var rows []outboxModel
	if err := r.db.WithContext(ctx).Where("sent_at IS NULL").Order("created_at asc").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]ports.OutboxRecord, 0, len(rows))
	for _, row := range rows {
		rec := ports.OutboxRecord{
			RecordID:   row.RecordID,
			EventClass: row.EventClass,
			CreatedAt:  row.CreatedAt,
			SentAt:     row.SentAt,
			RetryCount: row.RetryCount,
			LastError:  row.LastError,
		}
		if err := json.Unmarshal([]byte(row.Envelope), &rec.Envelope); err != nil {
			return nil, fmt.Errorf("decode outbox record %s: %w", row.RecordID, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *outboxRepository) MarkSent(ctx context.Context, recordID string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&outboxModel{}).Where("record_id = ?", recordID).Update("sent_at", at).Error
}

func (r *outboxRepository) MarkFailed(ctx context.Context, recordID, errMsg string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&outboxModel{}).Where("record_id = ?", recordID).Updates(map[string]any{
		"retry_count":   gorm.Expr("retry_count + 1"),
		"last_error":    errMsg,
		"last_error_at": at,
	}).Error
}
