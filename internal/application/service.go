package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/domain"
	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/ports"
	"github.com/shopspring/decimal"
)

func (s *Service) CreateTask(ctx context.Context, actor Actor, in CreateTaskInput) (domain.Task, error) {
	if err := requireActor(actor); err != nil {
		return domain.Task{}, err
	}
	if !isAdmin(actor) && !strings.EqualFold(actor.Role, RoleClient) {
		return domain.Task{}, domain.ErrForbidden
	}
	clientID, err := resolveUser(actor, in.ClientID)
	if err != nil {
		return domain.Task{}, err
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = s.cfg.DefaultCurrency
	}
	now := s.nowFn()
	task := domain.Task{
		TaskID:             "task-" + s.newID(),
		ClientID:           clientID,
		Title:              strings.TrimSpace(in.Title),
		Description:        strings.TrimSpace(in.Description),
		Budget:             in.Budget,
		Currency:           currency,
		TargetMetrics:      in.TargetMetrics,
		PricingTiers:       in.PricingTiers,
		MetricDeadlineDays: in.MetricDeadlineDays,
		MaxInfluencers:     in.MaxInfluencers,
		WorkDeadline:       in.WorkDeadline,
		Status:             domain.TaskStatusOpen,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := domain.ValidateTask(task); err != nil {
		return domain.Task{}, err
	}

	requestHash := hashJSON(map[string]any{"op": "create_task", "client_id": clientID, "title": task.Title, "budget": task.Budget.String(), "targets": task.TargetMetrics, "tiers": task.PricingTiers, "deadline_days": task.MetricDeadlineDays})
	var replay domain.Task
	if ok, err := s.replayIdempotent(ctx, actor.IdempotencyKey, requestHash, &replay); err != nil {
		return domain.Task{}, err
	} else if ok {
		return replay, nil
	}
	if err := s.reserveIdempotency(ctx, actor.IdempotencyKey, requestHash); err != nil {
		return domain.Task{}, err
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		s.releaseIdempotency(ctx, actor.IdempotencyKey)
		return domain.Task{}, err
	}
	_ = s.completeIdempotencyJSON(ctx, actor.IdempotencyKey, 201, task)
	return task, nil
}

func (s *Service) GetTask(ctx context.Context, actor Actor, taskID string) (domain.Task, error) {
	if err := requireActor(actor); err != nil {
		return domain.Task{}, err
	}
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return domain.Task{}, domain.ErrInvalidInput
	}
	return s.tasks.GetByID(ctx, taskID)
}

func (s *Service) CloseTask(ctx context.Context, actor Actor, taskID string) (domain.Task, error) {
	task, err := s.GetTask(ctx, actor, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	if !canActForUser(actor, task.ClientID) {
		return domain.Task{}, domain.ErrForbidden
	}
	if task.Status == domain.TaskStatusClosed {
		return task, nil
	}
	task.Status = domain.TaskStatusClosed
	task.UpdatedAt = s.nowFn()
	if err := s.tasks.Update(ctx, task); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

// SubmitPost registers an influencer's post for a task and captures the
// baseline metrics. A failed baseline fetch yields a zero baseline.
func (s *Service) SubmitPost(ctx context.Context, actor Actor, in SubmitPostInput) (domain.Submission, error) {
	influencerID, err := resolveUser(actor, in.InfluencerID)
	if err != nil {
		return domain.Submission{}, err
	}
	ref, err := domain.ParsePostReference(in.PostReference)
	if err != nil {
		return domain.Submission{}, err
	}
	task, err := s.tasks.GetByID(ctx, strings.TrimSpace(in.TaskID))
	if err != nil {
		return domain.Submission{}, err
	}
	now := s.nowFn()
	if !task.AcceptsSubmissions(now) {
		return domain.Submission{}, domain.ErrTaskClosed
	}

	requestHash := hashJSON(map[string]string{"op": "submit_post", "task_id": task.TaskID, "influencer_id": influencerID, "post_url": ref.URL})
	var replay domain.Submission
	if ok, err := s.replayIdempotent(ctx, actor.IdempotencyKey, requestHash, &replay); err != nil {
		return domain.Submission{}, err
	} else if ok {
		return replay, nil
	}

	unlock, err := s.lockKey(ctx, "pairing:"+task.TaskID+":"+influencerID)
	if err != nil {
		return domain.Submission{}, err
	}
	defer unlock()

	if latest, err := s.submissions.LatestForPairing(ctx, task.TaskID, influencerID); err == nil {
		if latest.Status.IsActive() {
			return domain.Submission{}, domain.ErrDuplicateActiveSubmission
		}
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.Submission{}, err
	}
	if err := s.reserveIdempotency(ctx, actor.IdempotencyKey, requestHash); err != nil {
		return domain.Submission{}, err
	}

	mediaID, baseline := s.captureBaseline(ctx, influencerID, ref)
	sub := domain.Submission{
		SubmissionID:    "sub-" + s.newID(),
		TaskID:          task.TaskID,
		InfluencerID:    influencerID,
		PostReference:   ref,
		PlatformMediaID: mediaID,
		InitialMetrics:  baseline,
		CurrentMetrics:  baseline,
		Status:          domain.SubmissionStatusPending,
		DeterminedPrice: decimal.Zero,
		PaidTiers:       []domain.TierKey{},
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.submissions.Create(ctx, sub); err != nil {
		s.releaseIdempotency(ctx, actor.IdempotencyKey)
		return domain.Submission{}, err
	}
	_ = s.enqueueStatusChanged(ctx, domain.EventSubmissionSubmitted, sub, "")
	s.notify(ctx, task.ClientID, "submission_received", fmt.Sprintf("New submission for %q: %s", task.Title, ref.URL))
	_ = s.completeIdempotencyJSON(ctx, actor.IdempotencyKey, 201, sub)
	return sub, nil
}

func (s *Service) GetSubmissionStatus(ctx context.Context, actor Actor, submissionID string) (domain.Submission, error) {
	sub, _, err := s.loadVisibleSubmission(ctx, actor, submissionID)
	return sub, err
}

// UpdatePostLink replaces the post reference of a pending submission and
// recaptures the baseline.
func (s *Service) UpdatePostLink(ctx context.Context, actor Actor, submissionID, postReference string) (domain.Submission, error) {
	sub, _, err := s.loadOwnSubmission(ctx, actor, submissionID)
	if err != nil {
		return domain.Submission{}, err
	}
	if sub.Status != domain.SubmissionStatusPending {
		return domain.Submission{}, fmt.Errorf("%w: link can only change while pending", domain.ErrInvalidTransition)
	}
	ref, err := domain.ParsePostReference(postReference)
	if err != nil {
		return domain.Submission{}, err
	}
	expected := sub.Version
	s.applyReference(ctx, &sub, ref)
	sub.UpdatedAt = s.nowFn()
	return s.submissions.Update(ctx, sub, expected)
}

func (s *Service) ApproveSubmission(ctx context.Context, actor Actor, submissionID string) (domain.Submission, error) {
	sub, task, err := s.loadReviewableSubmission(ctx, actor, submissionID)
	if err != nil {
		return domain.Submission{}, err
	}
	if task.MaxInfluencers > 0 {
		// Capacity is counted and claimed under one task-wide lock.
		unlock, err := s.lockKey(ctx, "task:"+task.TaskID)
		if err != nil {
			return domain.Submission{}, err
		}
		defer unlock()
		if sub, err = s.submissions.GetByID(ctx, sub.SubmissionID); err != nil {
			return domain.Submission{}, err
		}
		occupied, err := s.submissions.CountOccupyingSlots(ctx, task.TaskID)
		if err != nil {
			return domain.Submission{}, err
		}
		if occupied >= task.MaxInfluencers {
			return domain.Submission{}, domain.ErrTaskFull
		}
	}
	expected := sub.Version
	if err := sub.Approve(s.nowFn(), task.MetricDeadlineDays); err != nil {
		return domain.Submission{}, err
	}
	updated, err := s.submissions.Update(ctx, sub, expected)
	if err != nil {
		return domain.Submission{}, err
	}
	_ = s.enqueueStatusChanged(ctx, domain.EventSubmissionApproved, updated, "")
	s.notify(ctx, updated.InfluencerID, "submission_approved", fmt.Sprintf("Your post for %q was approved", task.Title))
	return updated, nil
}

func (s *Service) RequestRevision(ctx context.Context, actor Actor, submissionID, note string) (domain.Submission, error) {
	sub, task, err := s.loadReviewableSubmission(ctx, actor, submissionID)
	if err != nil {
		return domain.Submission{}, err
	}
	expected := sub.Version
	if err := sub.TransitionTo(domain.SubmissionStatusRevisionRequested, s.nowFn()); err != nil {
		return domain.Submission{}, err
	}
	sub.ReviewNote = strings.TrimSpace(note)
	updated, err := s.submissions.Update(ctx, sub, expected)
	if err != nil {
		return domain.Submission{}, err
	}
	_ = s.enqueueStatusChanged(ctx, domain.EventSubmissionRevisionRequested, updated, updated.ReviewNote)
	s.notify(ctx, updated.InfluencerID, "revision_requested", fmt.Sprintf("Revision requested for %q: %s", task.Title, updated.ReviewNote))
	return updated, nil
}

// ResubmitPost returns a submission from revision_requested to pending,
// optionally with a new link. The baseline is captured again.
func (s *Service) ResubmitPost(ctx context.Context, actor Actor, submissionID, postReference string) (domain.Submission, error) {
	sub, task, err := s.loadOwnSubmission(ctx, actor, submissionID)
	if err != nil {
		return domain.Submission{}, err
	}
	ref := sub.PostReference
	if strings.TrimSpace(postReference) != "" {
		if ref, err = domain.ParsePostReference(postReference); err != nil {
			return domain.Submission{}, err
		}
	}
	expected := sub.Version
	if err := sub.TransitionTo(domain.SubmissionStatusPending, s.nowFn()); err != nil {
		return domain.Submission{}, err
	}
	sub.ReviewNote = ""
	s.applyReference(ctx, &sub, ref)
	updated, err := s.submissions.Update(ctx, sub, expected)
	if err != nil {
		return domain.Submission{}, err
	}
	_ = s.enqueueStatusChanged(ctx, domain.EventSubmissionSubmitted, updated, "resubmitted")
	s.notify(ctx, task.ClientID, "submission_received", fmt.Sprintf("Resubmission for %q: %s", task.Title, ref.URL))
	return updated, nil
}

// RejectSubmission is terminal. A tracked submission stops being picked up by
// the next cycle.
func (s *Service) RejectSubmission(ctx context.Context, actor Actor, submissionID, note string) (domain.Submission, error) {
	sub, task, err := s.loadReviewableSubmission(ctx, actor, submissionID)
	if err != nil {
		return domain.Submission{}, err
	}
	unlock, err := s.lockKey(ctx, submissionLockKey(sub.SubmissionID))
	if err != nil {
		return domain.Submission{}, err
	}
	defer unlock()
	if sub, err = s.submissions.GetByID(ctx, sub.SubmissionID); err != nil {
		return domain.Submission{}, err
	}
	expected := sub.Version
	if err := sub.TransitionTo(domain.SubmissionStatusRejected, s.nowFn()); err != nil {
		return domain.Submission{}, err
	}
	sub.ReviewNote = strings.TrimSpace(note)
	updated, err := s.submissions.Update(ctx, sub, expected)
	if err != nil {
		return domain.Submission{}, err
	}
	_ = s.enqueueStatusChanged(ctx, domain.EventSubmissionRejected, updated, updated.ReviewNote)
	s.notify(ctx, updated.InfluencerID, "submission_rejected", fmt.Sprintf("Your post for %q was rejected", task.Title))
	return updated, nil
}

// CompleteFlatSubmission pays the budget of a flat-rate task once and closes
// the submission.
func (s *Service) CompleteFlatSubmission(ctx context.Context, actor Actor, submissionID string) (domain.Submission, error) {
	sub, task, err := s.loadReviewableSubmission(ctx, actor, submissionID)
	if err != nil {
		return domain.Submission{}, err
	}
	if task.IsMetricDriven() {
		return domain.Submission{}, fmt.Errorf("%w: metric-driven submissions complete through tracking", domain.ErrInvalidInput)
	}
	unlock, err := s.lockKey(ctx, submissionLockKey(sub.SubmissionID))
	if err != nil {
		return domain.Submission{}, err
	}
	defer unlock()
	if sub, err = s.submissions.GetByID(ctx, sub.SubmissionID); err != nil {
		return domain.Submission{}, err
	}
	if sub.Status != domain.SubmissionStatusApproved {
		return domain.Submission{}, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, sub.Status, domain.SubmissionStatusCompleted)
	}
	now := s.nowFn()
	expected := sub.Version
	tiers := []domain.PaidTier{{Key: domain.FlatTierKey, Price: task.Budget}}
	if err := sub.TransitionTo(domain.SubmissionStatusCompleted, now); err != nil {
		return domain.Submission{}, err
	}
	credited := sub.RecordPayment(tiers)
	events := s.paymentRecords(ctx,
		func() (ports.OutboxRecord, error) { return s.paymentCreditedRecord(ctx, sub, task, tiers, credited, now) },
		func() (ports.OutboxRecord, error) {
			return s.statusChangedRecord(ctx, domain.EventSubmissionCompleted, sub, "flat_completed")
		},
	)
	updated, err := s.ledger.ApplyPayment(ctx, domain.Payment{
		Submission:      sub,
		ExpectedVersion: expected,
		Entries:         domain.BuildPaymentEntries(sub, task, tiers, now, s.newID),
	}, events)
	if err != nil {
		return domain.Submission{}, fmt.Errorf("%w: %w", domain.ErrLedgerCreditFailure, err)
	}
	s.metrics.ObservePayment(string(domain.PaymentModeFlat), credited)
	s.notify(ctx, updated.InfluencerID, "payment_credited", fmt.Sprintf("%s %s credited for %q", credited.StringFixed(2), task.Currency, task.Title))
	return updated, nil
}

func (s *Service) LinkInstagramAccount(ctx context.Context, actor Actor, influencerID, accessToken string) (domain.LinkedAccount, error) {
	influencerID, err := resolveUser(actor, influencerID)
	if err != nil {
		return domain.LinkedAccount{}, err
	}
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return domain.LinkedAccount{}, domain.ErrInvalidInput
	}
	if s.fetcher == nil || s.accounts == nil || s.encryption == nil {
		return domain.LinkedAccount{}, domain.ErrDependencyUnavailable
	}
	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()
	profile, err := s.fetcher.ResolveAccountID(fetchCtx, accessToken)
	if err != nil {
		return domain.LinkedAccount{}, err
	}
	sealed, err := s.encryption.Encrypt(influencerID, accessToken)
	if err != nil {
		return domain.LinkedAccount{}, err
	}
	now := s.nowFn()
	acct := domain.LinkedAccount{
		InfluencerID:   influencerID,
		Platform:       domain.PlatformInstagram,
		AccountID:      profile.AccountID,
		Username:       profile.Username,
		TokenEncrypted: sealed,
		LinkedAt:       now,
		UpdatedAt:      now,
	}
	if err := s.accounts.Upsert(ctx, acct); err != nil {
		return domain.LinkedAccount{}, err
	}
	return acct, nil
}

func (s *Service) ListLedgerEntries(ctx context.Context, actor Actor, submissionID string) ([]domain.LedgerEntry, error) {
	sub, _, err := s.loadVisibleSubmission(ctx, actor, submissionID)
	if err != nil {
		return nil, err
	}
	return s.ledger.ListBySubmission(ctx, sub.SubmissionID)
}

func (s *Service) GetBalance(ctx context.Context, actor Actor, accountID string) (domain.Balance, error) {
	accountID, err := resolveUser(actor, accountID)
	if err != nil {
		return domain.Balance{}, err
	}
	entries, err := s.ledger.ListByAccount(ctx, accountID)
	if err != nil {
		return domain.Balance{}, err
	}
	return domain.SumBalance(accountID, entries, s.nowFn()), nil
}

func (s *Service) loadSubmissionWithTask(ctx context.Context, actor Actor, submissionID string) (domain.Submission, domain.Task, error) {
	if err := requireActor(actor); err != nil {
		return domain.Submission{}, domain.Task{}, err
	}
	submissionID = strings.TrimSpace(submissionID)
	if submissionID == "" {
		return domain.Submission{}, domain.Task{}, domain.ErrInvalidInput
	}
	sub, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		return domain.Submission{}, domain.Task{}, err
	}
	task, err := s.tasks.GetByID(ctx, sub.TaskID)
	if err != nil {
		return domain.Submission{}, domain.Task{}, err
	}
	return sub, task, nil
}

func (s *Service) loadVisibleSubmission(ctx context.Context, actor Actor, submissionID string) (domain.Submission, domain.Task, error) {
	sub, task, err := s.loadSubmissionWithTask(ctx, actor, submissionID)
	if err != nil {
		return domain.Submission{}, domain.Task{}, err
	}
	if !canViewSubmission(actor, sub, task) {
		return domain.Submission{}, domain.Task{}, domain.ErrForbidden
	}
	return sub, task, nil
}

func (s *Service) loadOwnSubmission(ctx context.Context, actor Actor, submissionID string) (domain.Submission, domain.Task, error) {
	sub, task, err := s.loadSubmissionWithTask(ctx, actor, submissionID)
	if err != nil {
		return domain.Submission{}, domain.Task{}, err
	}
	if !canActForUser(actor, sub.InfluencerID) {
		return domain.Submission{}, domain.Task{}, domain.ErrForbidden
	}
	return sub, task, nil
}

func (s *Service) loadReviewableSubmission(ctx context.Context, actor Actor, submissionID string) (domain.Submission, domain.Task, error) {
	sub, task, err := s.loadSubmissionWithTask(ctx, actor, submissionID)
	if err != nil {
		return domain.Submission{}, domain.Task{}, err
	}
	if !canActForUser(actor, task.ClientID) {
		return domain.Submission{}, domain.Task{}, domain.ErrForbidden
	}
	return sub, task, nil
}

// applyReference switches sub to ref and resets the baseline and current
// metrics from a fresh fetch.
func (s *Service) applyReference(ctx context.Context, sub *domain.Submission, ref domain.PostReference) {
	mediaID, baseline := s.captureBaseline(ctx, sub.InfluencerID, ref)
	sub.PostReference = ref
	sub.PlatformMediaID = mediaID
	sub.InitialMetrics = baseline
	sub.CurrentMetrics = baseline
}
