package application

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/contracts"
	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/domain"
	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/ports"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type traceIDKey struct{}

// WithTraceID attaches the request trace id used on emitted events.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

func traceIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey{}).(string); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return uuid.NewString()
}

func (s *Service) HandleCanonicalEvent(ctx context.Context, envelope contracts.EventEnvelope) error {
	if err := validateEnvelope(envelope); err != nil {
		return err
	}
	if !domain.IsCanonicalInputEvent(envelope.EventType) {
		return domain.ErrUnsupportedEventType
	}
	now := s.nowFn()
	if s.eventDedup != nil {
		dup, err := s.eventDedup.IsDuplicate(ctx, envelope.EventID, now)
		if err != nil {
			return err
		}
		if dup {
			return nil
		}
	}

	switch envelope.EventType {
	case domain.EventTrackingCycleRequested:
		var payload contracts.TrackingCycleRequestedPayload
		if err := json.Unmarshal(envelope.Data, &payload); err != nil {
			return domain.ErrInvalidEnvelope
		}
		if strings.TrimSpace(payload.RequestedBy) == "" || envelope.PartitionKey != payload.RequestedBy {
			return domain.ErrInvalidEnvelope
		}
		report, err := s.RunTrackingCycle(WithTraceID(ctx, envelope.TraceID))
		if err != nil {
			return err
		}
		s.logger.InfoContext(ctx, "event-triggered tracking cycle finished",
			"module", "application.events",
			"layer", "application",
			"operation", "handle_canonical_event",
			"outcome", "success",
			"event_id", envelope.EventID,
			"requested_by", payload.RequestedBy,
			"cycle_id", report.CycleID,
		)
	}

	if s.eventDedup != nil {
		return s.eventDedup.MarkProcessed(ctx, envelope.EventID, envelope.EventType, now.Add(s.cfg.EventDedupTTL))
	}
	return nil
}

// FlushOutbox publishes pending records in creation order. A domain event
// that cannot be published is copied to the DLQ and left pending.
func (s *Service) FlushOutbox(ctx context.Context) error {
	if s.outbox == nil {
		return nil
	}
	pending, err := s.outbox.ListPending(ctx, s.cfg.OutboxFlushBatchSize)
	if err != nil {
		return err
	}
	for _, rec := range pending {
		now := s.nowFn()
		switch rec.EventClass {
		case domain.CanonicalEventClassDomain:
			if s.domainEvents != nil {
				if err := s.domainEvents.PublishDomain(ctx, rec.Envelope); err != nil {
					_ = s.outbox.MarkFailed(ctx, rec.RecordID, err.Error(), now)
					if s.dlq != nil {
						_ = s.dlq.PublishDLQ(ctx, contracts.DLQRecord{
							OriginalEvent: rec.Envelope,
							ErrorSummary:  err.Error(),
							RetryCount:    rec.RetryCount + 1,
							FirstSeenAt:   rec.CreatedAt,
							LastErrorAt:   now,
							SourceTopic:   rec.Envelope.EventType,
							DLQTopic:      s.cfg.ServiceName + ".dlq",
							TraceID:       rec.Envelope.TraceID,
						})
					}
					return err
				}
			}
		case domain.CanonicalEventClassAnalyticsOnly:
			if s.analytics != nil {
				_ = s.analytics.PublishAnalytics(ctx, rec.Envelope)
			}
		default:
			return fmt.Errorf("%w: %s", domain.ErrUnsupportedEventClass, rec.EventClass)
		}
		if err := s.outbox.MarkSent(ctx, rec.RecordID, now); err != nil {
			return err
		}
	}
	return nil
}

// newOutboxRecord wraps data in a canonical envelope ready for the outbox.
func (s *Service) newOutboxRecord(ctx context.Context, eventType string, data any, partitionKey string, now time.Time) (ports.OutboxRecord, error) {
	if !domain.IsCanonicalEmittedEvent(eventType) {
		return ports.OutboxRecord{}, domain.ErrUnsupportedEventType
	}
	b, err := json.Marshal(data)
	if err != nil {
		return ports.OutboxRecord{}, domain.ErrInvalidInput
	}
	env := contracts.EventEnvelope{
		EventID:          uuid.NewString(),
		EventType:        eventType,
		EventClass:       domain.CanonicalEventClass(eventType),
		OccurredAt:       now,
		PartitionKeyPath: domain.CanonicalPartitionKeyPath(eventType),
		PartitionKey:     partitionKey,
		SourceService:    s.cfg.ServiceName,
		TraceID:          traceIDFrom(ctx),
		SchemaVersion:    "v1",
		Data:             b,
	}
	return ports.OutboxRecord{RecordID: uuid.NewString(), EventClass: env.EventClass, Envelope: env, CreatedAt: now}, nil
}

func (s *Service) enqueue(ctx context.Context, rec ports.OutboxRecord, err error) error {
	if err == nil && s.outbox != nil {
		err = s.outbox.Enqueue(ctx, rec)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "outbox enqueue failed",
			"module", "application.events",
			"layer", "application",
			"operation", "enqueue_event",
			"outcome", "failure",
			"event_type", rec.Envelope.EventType,
			"error", err,
		)
	}
	return err
}

func (s *Service) enqueueStatusChanged(ctx context.Context, eventType string, sub domain.Submission, reason string) error {
	rec, err := s.statusChangedRecord(ctx, eventType, sub, reason)
	return s.enqueue(ctx, rec, err)
}

func (s *Service) enqueueMetricsRefreshed(ctx context.Context, sub domain.Submission, at time.Time) error {
	rec, err := s.metricsRefreshedRecord(ctx, sub, at)
	return s.enqueue(ctx, rec, err)
}

func (s *Service) statusChangedRecord(ctx context.Context, eventType string, sub domain.Submission, reason string) (ports.OutboxRecord, error) {
	return s.newOutboxRecord(ctx, eventType, contracts.SubmissionStatusChangedPayload{
		SubmissionID: sub.SubmissionID,
		TaskID:       sub.TaskID,
		InfluencerID: sub.InfluencerID,
		Status:       string(sub.Status),
		Reason:       reason,
		ChangedAt:    sub.UpdatedAt.UTC().Format(time.RFC3339),
	}, sub.SubmissionID, sub.UpdatedAt)
}

func (s *Service) paymentCreditedRecord(ctx context.Context, sub domain.Submission, task domain.Task, tiers []domain.PaidTier, credited decimal.Decimal, at time.Time) (ports.OutboxRecord, error) {
	keys := make([]string, 0, len(tiers))
	for _, t := range tiers {
		keys = append(keys, t.Key.String())
	}
	return s.newOutboxRecord(ctx, domain.EventSubmissionPaymentCredited, contracts.PaymentCreditedPayload{
		SubmissionID:    sub.SubmissionID,
		TaskID:          sub.TaskID,
		InfluencerID:    sub.InfluencerID,
		Tiers:           keys,
		Amount:          credited.String(),
		Currency:        task.Currency,
		DeterminedPrice: sub.DeterminedPrice.String(),
		CreditedAt:      at.UTC().Format(time.RFC3339),
	}, sub.SubmissionID, at)
}

func (s *Service) metricsRefreshedRecord(ctx context.Context, sub domain.Submission, at time.Time) (ports.OutboxRecord, error) {
	m := sub.CurrentMetrics
	return s.newOutboxRecord(ctx, domain.EventSubmissionMetricsRefreshed, contracts.MetricsRefreshedPayload{
		SubmissionID: sub.SubmissionID,
		Views:        m.Views,
		Likes:        m.Likes,
		Comments:     m.Comments,
		Quality:      string(m.Quality),
		CapturedAt:   m.CapturedAt.UTC().Format(time.RFC3339),
	}, sub.SubmissionID, at)
}

// paymentRecords builds the events that commit together with a payment.
// Records that cannot be built are logged and left out.
func (s *Service) paymentRecords(ctx context.Context, builders ...func() (ports.OutboxRecord, error)) []ports.OutboxRecord {
	out := make([]ports.OutboxRecord, 0, len(builders))
	for _, build := range builders {
		rec, err := build()
		if err != nil {
			_ = s.enqueue(ctx, rec, err)
			continue
		}
		out = append(out, rec)
	}
	return out
}

func validateEnvelope(event contracts.EventEnvelope) error {
	if strings.TrimSpace(event.EventID) == "" || strings.TrimSpace(event.EventType) == "" || event.OccurredAt.IsZero() {
		return domain.ErrInvalidEnvelope
	}
	if strings.TrimSpace(event.SourceService) == "" || strings.TrimSpace(event.TraceID) == "" || strings.TrimSpace(event.SchemaVersion) == "" {
		return domain.ErrInvalidEnvelope
	}
	if len(event.Data) == 0 {
		return domain.ErrInvalidEnvelope
	}
	return nil
}
