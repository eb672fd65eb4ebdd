package application_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/adapters/events"
	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/adapters/memory"
	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/adapters/security"
	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/application"
	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/domain"
	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/ports"
	"github.com/shopspring/decimal"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeFetcher serves whatever snapshot the test set last.
type fakeFetcher struct {
	mu      sync.Mutex
	current domain.Snapshot
	err     error
	calls   int
}

func (f *fakeFetcher) set(views, likes, comments int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = domain.Snapshot{Views: views, Likes: likes, Comments: comments, Quality: domain.SnapshotQualityFull}
	f.err = nil
}

func (f *fakeFetcher) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeFetcher) ResolveAccountID(_ context.Context, accessToken string) (ports.AccountProfile, error) {
	if accessToken == "bad" {
		return ports.AccountProfile{}, domain.ErrCredentialsMissing
	}
	return ports.AccountProfile{AccountID: "ig-" + accessToken, Username: "creator"}, nil
}

func (f *fakeFetcher) FetchPostMetrics(_ context.Context, creds domain.Credentials, _ domain.PostReference) (ports.PostMetrics, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return ports.PostMetrics{}, f.err
	}
	return ports.PostMetrics{MediaID: "media-" + creds.AccountID, Snapshot: f.current}, nil
}

func (f *fakeFetcher) FetchMetricsByID(_ context.Context, _ domain.Credentials, _ string) (domain.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return domain.Snapshot{}, f.err
	}
	return f.current, nil
}

// failingCreates fails the next n Create calls.
type failingCreates struct {
	ports.SubmissionRepository
	mu sync.Mutex
	n  int
}

func (r *failingCreates) Create(ctx context.Context, row domain.Submission) error {
	r.mu.Lock()
	if r.n > 0 {
		r.n--
		r.mu.Unlock()
		return errors.New("insert failed")
	}
	r.mu.Unlock()
	return r.SubmissionRepository.Create(ctx, row)
}

// enqueueFails rejects standalone outbox writes.
type enqueueFails struct {
	ports.OutboxRepository
}

func (enqueueFails) Enqueue(context.Context, ports.OutboxRecord) error {
	return errors.New("outbox unavailable")
}

type recordingNotifier struct {
	mu    sync.Mutex
	kinds []string
}

func (n *recordingNotifier) Notify(_ context.Context, msg ports.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.kinds = append(n.kinds, msg.Kind)
	return nil
}

func (n *recordingNotifier) has(kind string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, k := range n.kinds {
		if k == kind {
			return true
		}
	}
	return false
}

type fixture struct {
	svc      *application.Service
	repos    *memory.Repositories
	locker   *memory.Locker
	fetcher  *fakeFetcher
	pub      *events.MemoryPublisher
	notifier *recordingNotifier
	clock    *fakeClock
}

var (
	client     = application.Actor{SubjectID: "client-1", Role: application.RoleClient}
	influencer = application.Actor{SubjectID: "inf-1", Role: application.RoleInfluencer}
	admin      = application.Actor{SubjectID: "ops-1", Role: application.RoleAdmin}
)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, nil)
}

// newFixtureWith lets a test swap dependencies before the service is built.
func newFixtureWith(t *testing.T, customize func(*application.Dependencies)) *fixture {
	t.Helper()
	f := &fixture{
		repos:    memory.NewRepositories(),
		locker:   memory.NewLocker(),
		fetcher:  &fakeFetcher{},
		pub:      events.NewMemoryPublisher(),
		notifier: &recordingNotifier{},
		clock:    &fakeClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)},
	}
	deps := application.Dependencies{
		Tasks:        f.repos.Tasks,
		Submissions:  f.repos.Submissions,
		Ledger:       f.repos.Ledger,
		Accounts:     f.repos.Accounts,
		Idempotency:  f.repos.Idempotency,
		EventDedup:   f.repos.EventDedup,
		Outbox:       f.repos.Outbox,
		Fetcher:      f.fetcher,
		Locker:       f.locker,
		Notifier:     f.notifier,
		Encryption:   security.NewAESGCMEncryption("test-seed"),
		DomainEvents: f.pub,
		Analytics:    f.pub,
		DLQ:          f.pub,
		Clock:        f.clock.Now,
	}
	if customize != nil {
		customize(&deps)
	}
	f.svc = application.NewService(deps)
	return f
}

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func (f *fixture) createTask(t *testing.T, in application.CreateTaskInput) domain.Task {
	t.Helper()
	if in.Title == "" {
		in.Title = "Summer reel"
	}
	task, err := f.svc.CreateTask(context.Background(), client, in)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return task
}

func (f *fixture) linkAccount(t *testing.T, actor application.Actor) {
	t.Helper()
	if _, err := f.svc.LinkInstagramAccount(context.Background(), actor, "", "token-"+actor.SubjectID); err != nil {
		t.Fatalf("link account: %v", err)
	}
}

// approvedSubmission links the influencer, submits with the fetcher's current
// snapshot as baseline, and approves.
func (f *fixture) approvedSubmission(t *testing.T, task domain.Task, actor application.Actor) domain.Submission {
	t.Helper()
	f.linkAccount(t, actor)
	sub, err := f.svc.SubmitPost(context.Background(), actor, application.SubmitPostInput{
		TaskID:        task.TaskID,
		PostReference: "https://instagram.com/p/ABC123/",
	})
	if err != nil {
		t.Fatalf("submit post: %v", err)
	}
	approved, err := f.svc.ApproveSubmission(context.Background(), client, sub.SubmissionID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	return approved
}

func (f *fixture) cycle(t *testing.T) application.CycleReport {
	t.Helper()
	report, err := f.svc.RunTrackingCycle(context.Background())
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	return report
}

func (f *fixture) submission(t *testing.T, id string) domain.Submission {
	t.Helper()
	sub, err := f.repos.Submissions.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("load submission: %v", err)
	}
	return sub
}

func tieredTask() application.CreateTaskInput {
	return application.CreateTaskInput{
		Budget: dec("170"),
		PricingTiers: []domain.PricingTier{
			{Metric: domain.MetricViews, MinimumDelta: 100, Price: dec("50")},
			{Metric: domain.MetricViews, MinimumDelta: 500, Price: dec("120")},
		},
		MetricDeadlineDays: 30,
	}
}
