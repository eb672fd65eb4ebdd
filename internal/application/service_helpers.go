package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/domain"
	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/ports"
	"github.com/google/uuid"
)

const (
	RoleClient     = "client"
	RoleInfluencer = "influencer"
	RoleAdmin      = "admin"
)

func newUUID() string { return uuid.NewString() }

func isAdmin(actor Actor) bool {
	return strings.EqualFold(strings.TrimSpace(actor.Role), RoleAdmin)
}

func requireActor(actor Actor) error {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.ErrUnauthorized
	}
	return nil
}

func canActForUser(actor Actor, userID string) bool {
	actorID := strings.TrimSpace(actor.SubjectID)
	userID = strings.TrimSpace(userID)
	return actorID != "" && userID != "" && (actorID == userID || isAdmin(actor))
}

// resolveUser returns requested, defaulting to the actor, when the actor may
// act for that user.
func resolveUser(actor Actor, requested string) (string, error) {
	if err := requireActor(actor); err != nil {
		return "", err
	}
	requested = strings.TrimSpace(requested)
	if requested == "" {
		requested = strings.TrimSpace(actor.SubjectID)
	}
	if !canActForUser(actor, requested) {
		return "", domain.ErrForbidden
	}
	return requested, nil
}

func canViewSubmission(actor Actor, sub domain.Submission, task domain.Task) bool {
	return canActForUser(actor, sub.InfluencerID) || canActForUser(actor, task.ClientID)
}

func hashJSON(v any) string {
	raw, _ := json.Marshal(v)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func (s *Service) getIdempotent(ctx context.Context, key, expectedHash string) ([]byte, bool, error) {
	if s.idempotency == nil || strings.TrimSpace(key) == "" {
		return nil, false, nil
	}
	rec, err := s.idempotency.Get(ctx, key, s.nowFn())
	if err != nil || rec == nil {
		return nil, false, err
	}
	if rec.RequestHash != expectedHash {
		return nil, false, domain.ErrIdempotencyConflict
	}
	if len(rec.ResponseBody) == 0 {
		return nil, false, nil
	}
	return rec.ResponseBody, true, nil
}

func (s *Service) reserveIdempotency(ctx context.Context, key, requestHash string) error {
	if s.idempotency == nil || strings.TrimSpace(key) == "" {
		return nil
	}
	return s.idempotency.Reserve(ctx, key, requestHash, s.nowFn().Add(s.cfg.IdempotencyTTL))
}

// releaseIdempotency frees a reserved key after the operation failed so a
// retry with the same key runs again.
func (s *Service) releaseIdempotency(ctx context.Context, key string) {
	if s.idempotency == nil || strings.TrimSpace(key) == "" {
		return
	}
	if err := s.idempotency.Release(context.WithoutCancel(ctx), key); err != nil {
		s.logger.WarnContext(ctx, "idempotency release failed",
			"module", "application.idempotency",
			"layer", "application",
			"operation", "release_idempotency",
			"outcome", "failure",
			"error", err,
		)
	}
}

func (s *Service) completeIdempotencyJSON(ctx context.Context, key string, code int, v any) error {
	if s.idempotency == nil || strings.TrimSpace(key) == "" {
		return nil
	}
	raw, _ := json.Marshal(v)
	return s.idempotency.Complete(ctx, key, code, raw, s.nowFn())
}

// replayIdempotent decodes a stored response into out when key was already
// used for the same request.
func (s *Service) replayIdempotent(ctx context.Context, key, requestHash string, out any) (bool, error) {
	raw, ok, err := s.getIdempotent(ctx, key, requestHash)
	if err != nil || !ok {
		return false, err
	}
	return json.Unmarshal(raw, out) == nil, nil
}

func (s *Service) notify(ctx context.Context, recipientID, kind, text string) {
	if s.notifier == nil || strings.TrimSpace(recipientID) == "" {
		return
	}
	if err := s.notifier.Notify(ctx, ports.Notification{RecipientID: recipientID, Kind: kind, Text: text}); err != nil {
		s.logger.WarnContext(ctx, "notification dropped",
			"module", "application.notify",
			"layer", "application",
			"operation", "notify",
			"outcome", "failure",
			"kind", kind,
			"error", err,
		)
	}
}
