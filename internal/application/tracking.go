package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/domain"
	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/ports"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

type trackOutcome string

const (
	outcomeTracked           trackOutcome = "tracked"
	outcomeCompleted         trackOutcome = "completed"
	outcomeDeadlineCompleted trackOutcome = "deadline_completed"
	outcomeFetchFailed       trackOutcome = "fetch_failed"
	outcomeLedgerFailed      trackOutcome = "ledger_failed"
	outcomeLockSkipped       trackOutcome = "lock_skipped"
	outcomeSkipped           trackOutcome = "skipped"
	outcomeFailed            trackOutcome = "failed"
)

type trackResult struct {
	outcome  trackOutcome
	credited decimal.Decimal
}

func submissionLockKey(submissionID string) string {
	return "submission:" + submissionID
}

// RunTrackingCycle refreshes up to one batch of approved or in-progress
// submissions, least recently attempted first. Work runs concurrently across submissions and is serialized per submission;
// a failure for one submission never fails the cycle.
func (s *Service) RunTrackingCycle(ctx context.Context) (CycleReport, error) {
	report := CycleReport{CycleID: "cycle-" + s.newID(), Credited: decimal.Zero, StartedAt: s.nowFn()}
	candidates, err := s.submissions.ListTrackable(ctx, s.cfg.TrackingBatchSize)
	if err != nil {
		return report, err
	}
	report.Scanned = len(candidates)

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.cfg.TrackingConcurrency)
	for _, candidate := range candidates {
		submissionID := candidate.SubmissionID
		g.Go(func() error {
			res := s.trackOne(ctx, submissionID)
			mu.Lock()
			defer mu.Unlock()
			report.add(res)
			return nil
		})
	}
	_ = g.Wait()

	report.FinishedAt = s.nowFn()
	s.metrics.ObserveCycle(ports.CycleStats{
		Scanned:           report.Scanned,
		Tracked:           report.Tracked,
		Completed:         report.Completed,
		DeadlineCompleted: report.DeadlineCompleted,
		FetchFailures:     report.FetchFailures,
		LedgerFailures:    report.LedgerFailures,
		LockSkipped:       report.LockSkipped,
		Credited:          report.Credited,
		Duration:          report.FinishedAt.Sub(report.StartedAt),
	})
	s.logger.InfoContext(ctx, "tracking cycle finished",
		"module", "application.tracking",
		"layer", "application",
		"operation", "run_tracking_cycle",
		"outcome", "success",
		"cycle_id", report.CycleID,
		"scanned", report.Scanned,
		"tracked", report.Tracked,
		"completed", report.Completed,
		"deadline_completed", report.DeadlineCompleted,
		"fetch_failures", report.FetchFailures,
		"ledger_failures", report.LedgerFailures,
		"lock_skipped", report.LockSkipped,
		"credited", report.Credited.String(),
	)
	return report, ctx.Err()
}

func (r *CycleReport) add(res trackResult) {
	switch res.outcome {
	case outcomeTracked:
		r.Tracked++
	case outcomeCompleted:
		r.Tracked++
		r.Completed++
	case outcomeDeadlineCompleted:
		r.DeadlineCompleted++
	case outcomeFetchFailed:
		r.FetchFailures++
	case outcomeLedgerFailed:
		r.LedgerFailures++
	case outcomeLockSkipped:
		r.LockSkipped++
	}
	r.Credited = r.Credited.Add(res.credited)
}

func (s *Service) trackOne(ctx context.Context, submissionID string) trackResult {
	skipped := trackResult{outcome: outcomeSkipped, credited: decimal.Zero}
	// Every attempt moves the submission to the back of the batch order,
	// whatever its outcome.
	if err := s.submissions.MarkAttempted(ctx, submissionID, s.nowFn()); err != nil {
		s.logTrackFailure(ctx, submissionID, "mark_attempted", err)
	}
	if s.locker != nil {
		unlock, ok, err := s.locker.TryLock(ctx, submissionLockKey(submissionID), s.cfg.LockTTL)
		if err != nil {
			s.logTrackFailure(ctx, submissionID, "acquire_lock", err)
			return trackResult{outcome: outcomeFailed, credited: decimal.Zero}
		}
		if !ok {
			return trackResult{outcome: outcomeLockSkipped, credited: decimal.Zero}
		}
		defer func() { _ = unlock(context.WithoutCancel(ctx)) }()
	}

	// Re-read under the lock: status may have changed since the cycle listed it.
	sub, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		s.logTrackFailure(ctx, submissionID, "load_submission", err)
		return trackResult{outcome: outcomeFailed, credited: decimal.Zero}
	}
	if !sub.Status.IsTracked() {
		return skipped
	}
	task, err := s.tasks.GetByID(ctx, sub.TaskID)
	if err != nil {
		s.logTrackFailure(ctx, submissionID, "load_task", err)
		return trackResult{outcome: outcomeFailed, credited: decimal.Zero}
	}
	if !task.IsMetricDriven() {
		return skipped
	}

	now := s.nowFn()
	expected := sub.Version
	if sub.DeadlinePassed(now) {
		return s.completeOnDeadline(ctx, sub, task, expected, now)
	}

	dirty := false
	if sub.Status == domain.SubmissionStatusApproved {
		if err := sub.TransitionTo(domain.SubmissionStatusInProgress, now); err != nil {
			s.logTrackFailure(ctx, submissionID, "start_tracking", err)
			return trackResult{outcome: outcomeFailed, credited: decimal.Zero}
		}
		dirty = true
	}
	recovered, err := s.reconcileWithLedger(ctx, &sub)
	if err != nil {
		s.logTrackFailure(ctx, submissionID, "reconcile_ledger", err)
		return trackResult{outcome: outcomeFailed, credited: decimal.Zero}
	}
	dirty = dirty || recovered

	snap, mediaID, err := s.fetchCurrent(ctx, sub)
	if err != nil {
		s.metrics.ObserveFetch("failure")
		s.logger.WarnContext(ctx, "metrics fetch failed, retrying next cycle",
			"module", "application.tracking",
			"layer", "application",
			"operation", "fetch_metrics",
			"outcome", "failure",
			"submission_id", submissionID,
			"error", err,
		)
		if dirty {
			if _, err := s.submissions.Update(ctx, sub, expected); err != nil {
				s.logTrackFailure(ctx, submissionID, "persist_state", err)
			}
		}
		return trackResult{outcome: outcomeFetchFailed, credited: decimal.Zero}
	}
	s.metrics.ObserveFetch(string(snap.Quality))

	sub.CurrentMetrics = snap
	if mediaID != "" {
		sub.PlatformMediaID = mediaID
	}
	sub.LastTrackedAt = &now
	sub.UpdatedAt = now

	eval := domain.Evaluate(sub.InitialMetrics, snap, task.PricingConfig(), sub.PaidTierSet())
	if eval.FullyAttained {
		if err := sub.TransitionTo(domain.SubmissionStatusCompleted, now); err != nil {
			s.logTrackFailure(ctx, submissionID, "complete", err)
			return trackResult{outcome: outcomeFailed, credited: decimal.Zero}
		}
	}

	credited := decimal.Zero
	var updated domain.Submission
	if len(eval.NewlyPaid) > 0 {
		credited = sub.RecordPayment(eval.NewlyPaid)
		paid := sub
		events := s.paymentRecords(ctx, func() (ports.OutboxRecord, error) { return s.metricsRefreshedRecord(ctx, paid, now) })
		if credited.IsPositive() {
			events = append(events, s.paymentRecords(ctx, func() (ports.OutboxRecord, error) {
				return s.paymentCreditedRecord(ctx, paid, task, eval.NewlyPaid, credited, now)
			})...)
		}
		if paid.Status == domain.SubmissionStatusCompleted {
			events = append(events, s.paymentRecords(ctx, func() (ports.OutboxRecord, error) {
				return s.statusChangedRecord(ctx, domain.EventSubmissionCompleted, paid, "fully_attained")
			})...)
		}
		updated, err = s.ledger.ApplyPayment(ctx, domain.Payment{
			Submission:      sub,
			ExpectedVersion: expected,
			Entries:         domain.BuildPaymentEntries(sub, task, eval.NewlyPaid, now, s.newID),
		}, events)
		if err != nil {
			s.logger.ErrorContext(ctx, "ledger credit failed, tiers stay unpaid",
				"module", "application.tracking",
				"layer", "application",
				"operation", "apply_payment",
				"outcome", "failure",
				"submission_id", submissionID,
				"amount", credited.String(),
				"error", fmt.Errorf("%w: %w", domain.ErrLedgerCreditFailure, err),
			)
			return trackResult{outcome: outcomeLedgerFailed, credited: decimal.Zero}
		}
		s.metrics.ObservePayment(string(eval.Mode), credited)
		if credited.IsPositive() {
			s.notify(ctx, updated.InfluencerID, "payment_credited", fmt.Sprintf("%s %s credited for %q", credited.StringFixed(2), task.Currency, task.Title))
		}
	} else {
		updated, err = s.submissions.Update(ctx, sub, expected)
		if err != nil {
			s.logTrackFailure(ctx, submissionID, "persist_metrics", err)
			return trackResult{outcome: outcomeFailed, credited: decimal.Zero}
		}
		_ = s.enqueueMetricsRefreshed(ctx, updated, now)
		if updated.Status == domain.SubmissionStatusCompleted {
			_ = s.enqueueStatusChanged(ctx, domain.EventSubmissionCompleted, updated, "fully_attained")
		}
	}

	if updated.Status == domain.SubmissionStatusCompleted {
		s.notify(ctx, updated.InfluencerID, "tracking_completed", fmt.Sprintf("All targets reached for %q", task.Title))
		return trackResult{outcome: outcomeCompleted, credited: credited}
	}
	return trackResult{outcome: outcomeTracked, credited: credited}
}

func (s *Service) completeOnDeadline(ctx context.Context, sub domain.Submission, task domain.Task, expected int64, now time.Time) trackResult {
	if err := sub.TransitionTo(domain.SubmissionStatusCompleted, now); err != nil {
		s.logTrackFailure(ctx, sub.SubmissionID, "deadline_complete", err)
		return trackResult{outcome: outcomeFailed, credited: decimal.Zero}
	}
	updated, err := s.submissions.Update(ctx, sub, expected)
	if err != nil {
		s.logTrackFailure(ctx, sub.SubmissionID, "deadline_complete", err)
		return trackResult{outcome: outcomeFailed, credited: decimal.Zero}
	}
	_ = s.enqueueStatusChanged(ctx, domain.EventSubmissionCompleted, updated, "metric_deadline")
	s.notify(ctx, updated.InfluencerID, "tracking_completed", fmt.Sprintf("Tracking window for %q has ended", task.Title))
	return trackResult{outcome: outcomeDeadlineCompleted, credited: decimal.Zero}
}

// reconcileWithLedger merges tiers that have a credit entry but are missing
// from the paid set. The payment key is the write-ahead marker: a credit that
// landed without its submission update is adopted, never re-credited.
func (s *Service) reconcileWithLedger(ctx context.Context, sub *domain.Submission) (bool, error) {
	entries, err := s.ledger.ListBySubmission(ctx, sub.SubmissionID)
	if err != nil {
		return false, err
	}
	var missing []domain.PaidTier
	for _, e := range entries {
		if e.EntryType != domain.LedgerEntryCredit || sub.HasPaid(e.Tier) {
			continue
		}
		missing = append(missing, domain.PaidTier{Key: e.Tier, Price: e.Amount})
	}
	if len(missing) == 0 {
		return false, nil
	}
	sub.RecordPayment(missing)
	s.logger.WarnContext(ctx, "recovered ledger credits missing from submission",
		"module", "application.tracking",
		"layer", "application",
		"operation", "reconcile_ledger",
		"outcome", "recovered",
		"submission_id", sub.SubmissionID,
		"tiers", len(missing),
	)
	return true, nil
}

// fetchCurrent reads a fresh snapshot, resolving the media id on first use.
func (s *Service) fetchCurrent(ctx context.Context, sub domain.Submission) (domain.Snapshot, string, error) {
	if s.fetcher == nil {
		return domain.Snapshot{}, "", fmt.Errorf("%w: no fetcher configured", domain.ErrMetricsFetchFailure)
	}
	creds, err := s.credentialsFor(ctx, sub.InfluencerID)
	if err != nil {
		return domain.Snapshot{}, "", fmt.Errorf("%w: %w", domain.ErrMetricsFetchFailure, err)
	}
	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()
	if sub.PlatformMediaID != "" {
		snap, err := s.fetcher.FetchMetricsByID(fetchCtx, creds, sub.PlatformMediaID)
		return snap, "", err
	}
	res, err := s.fetcher.FetchPostMetrics(fetchCtx, creds, sub.PostReference)
	if err != nil {
		return domain.Snapshot{}, "", err
	}
	return res.Snapshot, res.MediaID, nil
}

// captureBaseline fetches the starting snapshot for a post. Any failure is
// logged and produces a zero baseline.
func (s *Service) captureBaseline(ctx context.Context, influencerID string, ref domain.PostReference) (string, domain.Snapshot) {
	now := s.nowFn()
	if s.fetcher == nil {
		return "", domain.ZeroSnapshot(now)
	}
	creds, err := s.credentialsFor(ctx, influencerID)
	if err != nil {
		if !errors.Is(err, domain.ErrCredentialsMissing) {
			s.logger.WarnContext(ctx, "baseline credentials unavailable",
				"module", "application.submissions",
				"layer", "application",
				"operation", "capture_baseline",
				"outcome", "degraded",
				"influencer_id", influencerID,
				"error", err,
			)
		}
		return "", domain.ZeroSnapshot(now)
	}
	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()
	res, err := s.fetcher.FetchPostMetrics(fetchCtx, creds, ref)
	if err != nil {
		s.metrics.ObserveFetch("failure")
		s.logger.WarnContext(ctx, "baseline fetch failed, using zero baseline",
			"module", "application.submissions",
			"layer", "application",
			"operation", "capture_baseline",
			"outcome", "degraded",
			"influencer_id", influencerID,
			"post_url", ref.URL,
			"error", err,
		)
		return "", domain.ZeroSnapshot(now)
	}
	s.metrics.ObserveFetch(string(res.Snapshot.Quality))
	return res.MediaID, res.Snapshot
}

func (s *Service) credentialsFor(ctx context.Context, influencerID string) (domain.Credentials, error) {
	if s.accounts == nil || s.encryption == nil {
		return domain.Credentials{}, domain.ErrCredentialsMissing
	}
	acct, err := s.accounts.Get(ctx, influencerID, domain.PlatformInstagram)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Credentials{}, domain.ErrCredentialsMissing
		}
		return domain.Credentials{}, err
	}
	token, err := s.encryption.Decrypt(influencerID, acct.TokenEncrypted)
	if err != nil {
		return domain.Credentials{}, fmt.Errorf("decrypt access token: %w", err)
	}
	creds := domain.Credentials{AccessToken: token, AccountID: acct.AccountID}
	if !creds.Valid() {
		return domain.Credentials{}, domain.ErrCredentialsMissing
	}
	return creds, nil
}

// lockKey takes a mutual-exclusion token for a user action. Contention is
// reported as ErrConflict so the caller can retry.
func (s *Service) lockKey(ctx context.Context, key string) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	unlock, ok, err := s.locker.TryLock(ctx, key, s.cfg.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrDependencyUnavailable, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s is busy", domain.ErrConflict, key)
	}
	return func() { _ = unlock(context.WithoutCancel(ctx)) }, nil
}

func (s *Service) logTrackFailure(ctx context.Context, submissionID, operation string, err error) {
	s.logger.ErrorContext(ctx, "tracking step failed",
		"module", "application.tracking",
		"layer", "application",
		"operation", operation,
		"outcome", "failure",
		"submission_id", submissionID,
		"error", err,
	)
}

// TriggerTrackingCycle runs a cycle on demand for an administrator.
func (s *Service) TriggerTrackingCycle(ctx context.Context, actor Actor) (CycleReport, error) {
	if err := requireActor(actor); err != nil {
		return CycleReport{}, err
	}
	if !isAdmin(actor) {
		return CycleReport{}, domain.ErrForbidden
	}
	if actor.RequestID != "" {
		ctx = WithTraceID(ctx, actor.RequestID)
	}
	return s.RunTrackingCycle(ctx)
}
