package application_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/application"
	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/contracts"
	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/domain"
)

func TestTieredTrackingPaysEachTierOnceThenCompletes(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	task := f.createTask(t, tieredTask())
	f.fetcher.set(1000, 10, 1)
	sub := f.approvedSubmission(t, task, influencer)
	if sub.InitialMetrics.Views != 1000 {
		t.Fatalf("expected baseline of 1000 views, got %d", sub.InitialMetrics.Views)
	}

	f.fetcher.set(1150, 12, 1)
	report := f.cycle(t)
	if report.Tracked != 1 || !report.Credited.Equal(dec("50")) {
		t.Fatalf("unexpected first cycle report: %+v", report)
	}
	got := f.submission(t, sub.SubmissionID)
	if got.Status != domain.SubmissionStatusInProgress || len(got.PaidTiers) != 1 {
		t.Fatalf("expected in_progress with one paid tier, got %s %v", got.Status, got.PaidTiers)
	}

	// Same numbers again: nothing new to pay.
	report = f.cycle(t)
	if !report.Credited.IsZero() {
		t.Fatalf("expected no credit on repeated cycle, got %s", report.Credited)
	}

	f.fetcher.set(1600, 20, 2)
	report = f.cycle(t)
	if report.Completed != 1 || !report.Credited.Equal(dec("120")) {
		t.Fatalf("unexpected final cycle report: %+v", report)
	}
	got = f.submission(t, sub.SubmissionID)
	if got.Status != domain.SubmissionStatusCompleted || !got.DeterminedPrice.Equal(dec("170")) {
		t.Fatalf("expected completed at 170, got %s %s", got.Status, got.DeterminedPrice)
	}

	balance, err := f.svc.GetBalance(context.Background(), influencer, "")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !balance.Credited.Equal(dec("170")) {
		t.Fatalf("expected 170 credited, got %s", balance.Credited)
	}
	if !f.notifier.has("payment_credited") || !f.notifier.has("tracking_completed") {
		t.Fatalf("expected payment and completion notifications, got %v", f.notifier.kinds)
	}

	if report := f.cycle(t); report.Scanned != 0 {
		t.Fatalf("completed submission must not be tracked again, scanned %d", report.Scanned)
	}
}

func TestTargetModePaysBudgetOnce(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	task := f.createTask(t, application.CreateTaskInput{
		Budget:             dec("300"),
		TargetMetrics:      map[domain.Metric]int64{domain.MetricLikes: 50},
		MetricDeadlineDays: 7,
	})
	f.fetcher.set(0, 10, 0)
	sub := f.approvedSubmission(t, task, influencer)

	f.fetcher.set(0, 55, 0)
	if report := f.cycle(t); !report.Credited.IsZero() {
		t.Fatalf("delta 45 must not attain target, credited %s", report.Credited)
	}
	f.fetcher.set(0, 65, 0)
	if report := f.cycle(t); !report.Credited.Equal(dec("300")) || report.Completed != 1 {
		t.Fatalf("expected 300 credited and completion, got %+v", report)
	}

	entries, err := f.svc.ListLedgerEntries(context.Background(), client, sub.SubmissionID)
	if err != nil {
		t.Fatalf("list ledger: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected one credit and one debit, got %d entries", len(entries))
	}
	for _, e := range entries {
		if e.Tier != domain.TargetTierKey {
			t.Fatalf("expected target tier key, got %s", e.Tier)
		}
	}
}

func TestDeadlineCompletesWithoutPayment(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	task := f.createTask(t, tieredTask())
	f.fetcher.set(100, 0, 0)
	sub := f.approvedSubmission(t, task, influencer)

	f.clock.Advance(31 * 24 * time.Hour)
	f.fetcher.set(5000, 0, 0)
	report := f.cycle(t)
	if report.DeadlineCompleted != 1 || !report.Credited.IsZero() {
		t.Fatalf("expected deadline completion without credit, got %+v", report)
	}
	if f.fetcher.callCount() != 1 {
		t.Fatalf("expected no fetch after the deadline, got %d calls", f.fetcher.callCount())
	}
	got := f.submission(t, sub.SubmissionID)
	if got.Status != domain.SubmissionStatusCompleted || !got.DeterminedPrice.IsZero() {
		t.Fatalf("expected completed with zero price, got %s %s", got.Status, got.DeterminedPrice)
	}
}

func TestLedgerFailureLeavesTiersUnpaidUntilNextCycle(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	task := f.createTask(t, tieredTask())
	f.fetcher.set(0, 0, 0)
	sub := f.approvedSubmission(t, task, influencer)

	f.fetcher.set(150, 0, 0)
	f.repos.Ledger.FailNextPayment(errors.New("ledger down"))
	report := f.cycle(t)
	if report.LedgerFailures != 1 || !report.Credited.IsZero() {
		t.Fatalf("expected a ledger failure, got %+v", report)
	}
	got := f.submission(t, sub.SubmissionID)
	if len(got.PaidTiers) != 0 {
		t.Fatalf("tiers must stay unpaid after a failed credit, got %v", got.PaidTiers)
	}

	report = f.cycle(t)
	if !report.Credited.Equal(dec("50")) {
		t.Fatalf("expected retry to credit 50, got %+v", report)
	}
}

func TestReconcileAdoptsCreditWrittenBeforeCrash(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	task := f.createTask(t, tieredTask())
	f.fetcher.set(0, 0, 0)
	sub := f.approvedSubmission(t, task, influencer)

	tier := domain.PaidTier{Key: task.PricingTiers[0].Key(), Price: task.PricingTiers[0].Price}
	n := 0
	f.repos.Ledger.AppendEntries(domain.BuildPaymentEntries(sub, task, []domain.PaidTier{tier}, f.clock.Now(), func() string {
		n++
		return "pre-crash-" + string(rune('a'+n))
	})...)

	f.fetcher.set(150, 0, 0)
	report := f.cycle(t)
	if !report.Credited.IsZero() {
		t.Fatalf("recovered tier must not be credited again, got %s", report.Credited)
	}
	got := f.submission(t, sub.SubmissionID)
	if !got.HasPaid(tier.Key) || !got.DeterminedPrice.Equal(dec("50")) {
		t.Fatalf("expected adopted tier, got %v %s", got.PaidTiers, got.DeterminedPrice)
	}
	entries, err := f.repos.Ledger.ListBySubmission(context.Background(), sub.SubmissionID)
	if err != nil {
		t.Fatalf("list ledger: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected only the pre-crash pair, got %d entries", len(entries))
	}
}

func TestFetchFailureKeepsSubmissionTracked(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	task := f.createTask(t, tieredTask())
	f.fetcher.set(0, 0, 0)
	sub := f.approvedSubmission(t, task, influencer)

	f.fetcher.fail(errors.New("graph api 500"))
	report := f.cycle(t)
	if report.FetchFailures != 1 {
		t.Fatalf("expected one fetch failure, got %+v", report)
	}
	got := f.submission(t, sub.SubmissionID)
	if got.Status != domain.SubmissionStatusInProgress {
		t.Fatalf("expected in_progress after failed fetch, got %s", got.Status)
	}
	if got.LastTrackedAt != nil {
		t.Fatalf("failed fetch must not stamp last_tracked_at")
	}
}

func TestDuplicateActiveSubmissionRejectedUntilTerminal(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	task := f.createTask(t, tieredTask())
	in := application.SubmitPostInput{TaskID: task.TaskID, PostReference: "https://www.instagram.com/reel/XYZ789/"}
	first, err := f.svc.SubmitPost(ctx, influencer, in)
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if _, err := f.svc.SubmitPost(ctx, influencer, in); !errors.Is(err, domain.ErrDuplicateActiveSubmission) {
		t.Fatalf("expected duplicate active submission, got %v", err)
	}
	if _, err := f.svc.RejectSubmission(ctx, client, first.SubmissionID, "off brief"); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if _, err := f.svc.SubmitPost(ctx, influencer, in); err != nil {
		t.Fatalf("submit after reject: %v", err)
	}
}

func TestSubmitWithoutCredentialsUsesZeroBaseline(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	task := f.createTask(t, tieredTask())
	f.fetcher.set(900, 0, 0)
	sub, err := f.svc.SubmitPost(context.Background(), influencer, application.SubmitPostInput{
		TaskID:        task.TaskID,
		PostReference: "https://instagram.com/p/ABC123",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if sub.InitialMetrics.Quality != domain.SnapshotQualityBaseline || sub.InitialMetrics.Views != 0 {
		t.Fatalf("expected zero baseline, got %+v", sub.InitialMetrics)
	}
	if f.fetcher.callCount() != 0 {
		t.Fatalf("fetcher must not be called without credentials")
	}
}

func TestCreateTaskReplaysIdempotencyKey(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	actor := client
	actor.IdempotencyKey = "idem-1"
	first, err := f.svc.CreateTask(ctx, actor, application.CreateTaskInput{Title: "Launch", Budget: dec("200")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := f.svc.CreateTask(ctx, actor, application.CreateTaskInput{Title: "Launch", Budget: dec("200")})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if first.TaskID != second.TaskID {
		t.Fatalf("expected replayed task %s, got %s", first.TaskID, second.TaskID)
	}
	if _, err := f.svc.CreateTask(ctx, actor, application.CreateTaskInput{Title: "Other", Budget: dec("200")}); !errors.Is(err, domain.ErrIdempotencyConflict) {
		t.Fatalf("expected idempotency conflict, got %v", err)
	}
}

func TestLockedSubmissionIsSkipped(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	task := f.createTask(t, tieredTask())
	f.fetcher.set(0, 0, 0)
	sub := f.approvedSubmission(t, task, influencer)

	unlock, ok, err := f.locker.TryLock(context.Background(), "submission:"+sub.SubmissionID, time.Minute)
	if err != nil || !ok {
		t.Fatalf("take lock: ok=%v err=%v", ok, err)
	}
	f.fetcher.set(1000, 0, 0)
	if report := f.cycle(t); report.LockSkipped != 1 || !report.Credited.IsZero() {
		t.Fatalf("expected locked submission to be skipped, got %+v", report)
	}
	_ = unlock(context.Background())
	if report := f.cycle(t); !report.Credited.Equal(dec("170")) {
		t.Fatalf("expected credit once unlocked, got %+v", report)
	}
}

func TestCompleteFlatSubmissionPaysOnce(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	task := f.createTask(t, application.CreateTaskInput{Budget: dec("80")})
	sub := f.approvedSubmission(t, task, influencer)

	done, err := f.svc.CompleteFlatSubmission(ctx, client, sub.SubmissionID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != domain.SubmissionStatusCompleted || !done.DeterminedPrice.Equal(dec("80")) {
		t.Fatalf("expected completed at 80, got %s %s", done.Status, done.DeterminedPrice)
	}
	if _, err := f.svc.CompleteFlatSubmission(ctx, client, sub.SubmissionID); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition on second completion, got %v", err)
	}
	balance, err := f.svc.GetBalance(ctx, client, "")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !balance.Debited.Equal(dec("80")) {
		t.Fatalf("expected client debited 80, got %s", balance.Debited)
	}
}

func TestHandleCanonicalEvent(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	task := f.createTask(t, tieredTask())
	f.fetcher.set(0, 0, 0)
	f.approvedSubmission(t, task, influencer)
	before := f.fetcher.callCount()

	data, _ := json.Marshal(contracts.TrackingCycleRequestedPayload{RequestedBy: "ops-1", Reason: "manual"})
	env := contracts.EventEnvelope{
		EventID:          "evt-1",
		EventType:        domain.EventTrackingCycleRequested,
		EventClass:       domain.CanonicalEventClassDomain,
		OccurredAt:       f.clock.Now(),
		PartitionKeyPath: "data.requested_by",
		PartitionKey:     "someone-else",
		SourceService:    "ops-console",
		TraceID:          "trace-1",
		SchemaVersion:    "v1",
		Data:             data,
	}
	if err := f.svc.HandleCanonicalEvent(ctx, env); !errors.Is(err, domain.ErrInvalidEnvelope) {
		t.Fatalf("expected invalid envelope on partition mismatch, got %v", err)
	}

	env.PartitionKey = "ops-1"
	if err := f.svc.HandleCanonicalEvent(ctx, env); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	afterFirst := f.fetcher.callCount()
	if afterFirst != before+1 {
		t.Fatalf("expected one cycle fetch, got %d calls", afterFirst-before)
	}
	if err := f.svc.HandleCanonicalEvent(ctx, env); err != nil {
		t.Fatalf("duplicate event: %v", err)
	}
	if f.fetcher.callCount() != afterFirst {
		t.Fatalf("duplicate event must not run another cycle")
	}

	env.EventID = "evt-2"
	env.EventType = "submission.unknown"
	if err := f.svc.HandleCanonicalEvent(ctx, env); !errors.Is(err, domain.ErrUnsupportedEventType) {
		t.Fatalf("expected unsupported event type, got %v", err)
	}
}

func TestFlushOutboxDeadLettersFailedDomainEvents(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	task := f.createTask(t, tieredTask())
	if _, err := f.svc.SubmitPost(ctx, influencer, application.SubmitPostInput{TaskID: task.TaskID, PostReference: "https://instagram.com/p/ABC123"}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	f.pub.FailDomain(errors.New("broker unavailable"))
	if err := f.svc.FlushOutbox(ctx); err == nil {
		t.Fatalf("expected flush error while broker is down")
	}
	if len(f.pub.DLQRecords()) != 1 {
		t.Fatalf("expected one DLQ record, got %d", len(f.pub.DLQRecords()))
	}

	f.pub.FailDomain(nil)
	if err := f.svc.FlushOutbox(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	published := f.pub.DomainEvents()
	if len(published) != 1 || published[0].EventType != domain.EventSubmissionSubmitted {
		t.Fatalf("expected the submitted event to be published, got %+v", published)
	}
	if err := f.svc.FlushOutbox(ctx); err != nil {
		t.Fatalf("second flush: %v", err)
	}
	if len(f.pub.DomainEvents()) != 1 {
		t.Fatalf("sent records must not be published twice")
	}
}

func TestApproveRespectsCapacity(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	in := tieredTask()
	in.MaxInfluencers = 1
	task := f.createTask(t, in)
	f.approvedSubmission(t, task, influencer)

	other := application.Actor{SubjectID: "inf-2", Role: application.RoleInfluencer}
	sub, err := f.svc.SubmitPost(ctx, other, application.SubmitPostInput{TaskID: task.TaskID, PostReference: "https://instagram.com/p/DEF456"})
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if _, err := f.svc.ApproveSubmission(ctx, client, sub.SubmissionID); !errors.Is(err, domain.ErrTaskFull) {
		t.Fatalf("expected task full, got %v", err)
	}
}

func TestOnlyTaskOwnerReviews(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	task := f.createTask(t, tieredTask())
	sub, err := f.svc.SubmitPost(ctx, influencer, application.SubmitPostInput{TaskID: task.TaskID, PostReference: "https://instagram.com/p/ABC123"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := f.svc.ApproveSubmission(ctx, influencer, sub.SubmissionID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden for influencer approval, got %v", err)
	}
	if _, err := f.svc.ApproveSubmission(ctx, admin, sub.SubmissionID); err != nil {
		t.Fatalf("admin approval: %v", err)
	}
	outsider := application.Actor{SubjectID: "inf-9", Role: application.RoleInfluencer}
	if _, err := f.svc.GetSubmissionStatus(ctx, outsider, sub.SubmissionID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden for unrelated influencer, got %v", err)
	}
}

func TestRevisionAndResubmitRecaptureBaseline(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	task := f.createTask(t, tieredTask())
	f.linkAccount(t, influencer)
	f.fetcher.set(10, 0, 0)
	sub, err := f.svc.SubmitPost(ctx, influencer, application.SubmitPostInput{TaskID: task.TaskID, PostReference: "https://instagram.com/p/ABC123"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := f.svc.RequestRevision(ctx, client, sub.SubmissionID, "tag the brand"); err != nil {
		t.Fatalf("request revision: %v", err)
	}
	f.fetcher.set(40, 0, 0)
	resubmitted, err := f.svc.ResubmitPost(ctx, influencer, sub.SubmissionID, "https://instagram.com/p/NEW999")
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if resubmitted.Status != domain.SubmissionStatusPending || resubmitted.InitialMetrics.Views != 40 {
		t.Fatalf("expected pending with fresh baseline, got %s %d", resubmitted.Status, resubmitted.InitialMetrics.Views)
	}
	if resubmitted.ReviewNote != "" {
		t.Fatalf("review note must be cleared on resubmit")
	}
}

func TestFailedSubmitReleasesIdempotencyKey(t *testing.T) {
	t.Parallel()
	var subs *failingCreates
	f := newFixtureWith(t, func(d *application.Dependencies) {
		subs = &failingCreates{SubmissionRepository: d.Submissions, n: 1}
		d.Submissions = subs
	})
	ctx := context.Background()
	task := f.createTask(t, tieredTask())
	actor := influencer
	actor.IdempotencyKey = "idem-submit"
	in := application.SubmitPostInput{TaskID: task.TaskID, PostReference: "https://instagram.com/p/ABC123"}

	if _, err := f.svc.SubmitPost(ctx, actor, in); err == nil {
		t.Fatalf("expected the first submit to fail")
	}
	sub, err := f.svc.SubmitPost(ctx, actor, in)
	if err != nil {
		t.Fatalf("retry with the same key: %v", err)
	}
	replay, err := f.svc.SubmitPost(ctx, actor, in)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if replay.SubmissionID != sub.SubmissionID {
		t.Fatalf("expected replay of %s, got %s", sub.SubmissionID, replay.SubmissionID)
	}
}

func TestApproveWithCapacityTakesTaskLock(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	in := tieredTask()
	in.MaxInfluencers = 2
	task := f.createTask(t, in)
	sub, err := f.svc.SubmitPost(ctx, influencer, application.SubmitPostInput{TaskID: task.TaskID, PostReference: "https://instagram.com/p/ABC123"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	unlock, ok, err := f.locker.TryLock(ctx, "task:"+task.TaskID, time.Minute)
	if err != nil || !ok {
		t.Fatalf("take task lock: ok=%v err=%v", ok, err)
	}
	if _, err := f.svc.ApproveSubmission(ctx, client, sub.SubmissionID); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict while another approval holds the task, got %v", err)
	}
	_ = unlock(ctx)
	if _, err := f.svc.ApproveSubmission(ctx, client, sub.SubmissionID); err != nil {
		t.Fatalf("approve after release: %v", err)
	}
}

func TestPaymentEventsCommitWithLedgerWrite(t *testing.T) {
	t.Parallel()
	f := newFixtureWith(t, func(d *application.Dependencies) {
		d.Outbox = enqueueFails{OutboxRepository: d.Outbox}
	})
	ctx := context.Background()
	task := f.createTask(t, tieredTask())
	f.fetcher.set(0, 0, 0)
	sub := f.approvedSubmission(t, task, influencer)

	f.fetcher.set(150, 0, 0)
	f.repos.Ledger.FailNextPayment(errors.New("ledger down"))
	f.cycle(t)
	pending, err := f.repos.Outbox.ListPending(ctx, 100)
	if err != nil {
		t.Fatalf("list outbox: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("a failed payment must not leave events behind, got %d", len(pending))
	}

	f.fetcher.set(600, 0, 0)
	if report := f.cycle(t); !report.Credited.Equal(dec("170")) {
		t.Fatalf("expected 170 credited, got %+v", report)
	}
	pending, err = f.repos.Outbox.ListPending(ctx, 100)
	if err != nil {
		t.Fatalf("list outbox: %v", err)
	}
	types := map[string]string{}
	for _, rec := range pending {
		types[rec.Envelope.EventType] = rec.Envelope.PartitionKey
	}
	for _, want := range []string{domain.EventSubmissionPaymentCredited, domain.EventSubmissionCompleted, domain.EventSubmissionMetricsRefreshed} {
		if key, ok := types[want]; !ok || key != sub.SubmissionID {
			t.Fatalf("expected %s for %s in outbox, got %v", want, sub.SubmissionID, types)
		}
	}
}

func TestTrackingBatchSkipsFlatTasks(t *testing.T) {
	t.Parallel()
	f := newFixtureWith(t, func(d *application.Dependencies) { d.Config.TrackingBatchSize = 1 })
	flat := f.createTask(t, application.CreateTaskInput{Budget: dec("80")})
	other := application.Actor{SubjectID: "inf-2", Role: application.RoleInfluencer}
	f.approvedSubmission(t, flat, other)

	tiered := f.createTask(t, tieredTask())
	f.fetcher.set(0, 0, 0)
	sub := f.approvedSubmission(t, tiered, influencer)
	f.fetcher.set(600, 0, 0)

	report := f.cycle(t)
	if report.Scanned != 1 || !report.Credited.Equal(dec("170")) {
		t.Fatalf("expected the tiered submission to be tracked first, got %+v", report)
	}
	if got := f.submission(t, sub.SubmissionID); got.Status != domain.SubmissionStatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
}

func TestTrackingBatchRotatesPastFailingSubmissions(t *testing.T) {
	t.Parallel()
	f := newFixtureWith(t, func(d *application.Dependencies) { d.Config.TrackingBatchSize = 1 })
	ctx := context.Background()
	task := f.createTask(t, tieredTask())

	// No linked account: every fetch for this one fails.
	unlinked := application.Actor{SubjectID: "inf-2", Role: application.RoleInfluencer}
	broken, err := f.svc.SubmitPost(ctx, unlinked, application.SubmitPostInput{TaskID: task.TaskID, PostReference: "https://instagram.com/p/DEF456"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := f.svc.ApproveSubmission(ctx, client, broken.SubmissionID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	f.fetcher.set(0, 0, 0)
	healthy := f.approvedSubmission(t, task, influencer)
	f.fetcher.set(600, 0, 0)

	total := application.CycleReport{Credited: dec("0")}
	for i := 0; i < 2; i++ {
		report := f.cycle(t)
		if report.Scanned != 1 {
			t.Fatalf("cycle %d scanned %d, want 1", i, report.Scanned)
		}
		total.FetchFailures += report.FetchFailures
		total.Credited = total.Credited.Add(report.Credited)
		f.clock.Advance(time.Hour)
	}
	if total.FetchFailures != 1 || !total.Credited.Equal(dec("170")) {
		t.Fatalf("expected both submissions attempted once, got %+v", total)
	}
	if got := f.submission(t, healthy.SubmissionID); got.Status != domain.SubmissionStatusCompleted {
		t.Fatalf("healthy submission status = %s, want completed", got.Status)
	}
}
