package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestSubmissionTransitions(t *testing.T) {
	t.Parallel()
	cases := []struct {
		from, to SubmissionStatus
		ok       bool
	}{
		{SubmissionStatusPending, SubmissionStatusApproved, true},
		{SubmissionStatusPending, SubmissionStatusInProgress, false},
		{SubmissionStatusRevisionRequested, SubmissionStatusPending, true},
		{SubmissionStatusApproved, SubmissionStatusInProgress, true},
		{SubmissionStatusInProgress, SubmissionStatusCompleted, true},
		{SubmissionStatusInProgress, SubmissionStatusRejected, true},
		{SubmissionStatusCompleted, SubmissionStatusInProgress, false},
		{SubmissionStatusRejected, SubmissionStatusPending, false},
	}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, tc := range cases {
		sub := Submission{Status: tc.from}
		err := sub.TransitionTo(tc.to, now)
		if tc.ok && err != nil {
			t.Fatalf("%s -> %s: unexpected error %v", tc.from, tc.to, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("%s -> %s: err = %v, want ErrInvalidTransition", tc.from, tc.to, err)
		}
		if !tc.ok && sub.Status != tc.from {
			t.Fatalf("rejected transition changed status to %s", sub.Status)
		}
	}
}

func TestApproveDerivesDeadline(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sub := Submission{Status: SubmissionStatusPending}
	if err := sub.Approve(now, 7); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if sub.MetricDeadline == nil || !sub.MetricDeadline.Equal(now.Add(7*24*time.Hour)) {
		t.Fatalf("deadline = %v", sub.MetricDeadline)
	}
	if sub.DeadlinePassed(now.Add(6 * 24 * time.Hour)) {
		t.Fatalf("deadline reported passed too early")
	}
	if !sub.DeadlinePassed(now.Add(8 * 24 * time.Hour)) {
		t.Fatalf("deadline not reported passed")
	}

	open := Submission{Status: SubmissionStatusPending}
	_ = open.Approve(now, 0)
	if open.MetricDeadline != nil || open.DeadlinePassed(now.Add(1000*time.Hour)) {
		t.Fatalf("zero deadline days should never expire")
	}
}

func TestStatusPredicates(t *testing.T) {
	t.Parallel()
	if !SubmissionStatusRevisionRequested.IsActive() || SubmissionStatusCompleted.IsActive() {
		t.Fatalf("IsActive mismatch")
	}
	if SubmissionStatusPending.IsTracked() || !SubmissionStatusInProgress.IsTracked() {
		t.Fatalf("IsTracked mismatch")
	}
	if !SubmissionStatusCompleted.OccupiesSlot() || SubmissionStatusRejected.OccupiesSlot() {
		t.Fatalf("OccupiesSlot mismatch")
	}
}

func TestValidateTask(t *testing.T) {
	t.Parallel()
	base := Task{ClientID: "c1", Title: "t", Budget: decimal.NewFromInt(100)}
	cases := map[string]func(*Task){
		"negative budget":       func(tk *Task) { tk.Budget = decimal.NewFromInt(-1) },
		"unknown target metric": func(tk *Task) { tk.TargetMetrics = map[Metric]int64{"shares": 5} },
		"duplicate tier": func(tk *Task) {
			tk.PricingTiers = []PricingTier{
				{Metric: MetricViews, MinimumDelta: 10, Price: decimal.NewFromInt(1)},
				{Metric: MetricViews, MinimumDelta: 10, Price: decimal.NewFromInt(2)},
			}
		},
		"target without budget": func(tk *Task) {
			tk.Budget = decimal.Zero
			tk.TargetMetrics = map[Metric]int64{MetricLikes: 5}
		},
		"sub-cent budget": func(tk *Task) { tk.Budget = decimal.RequireFromString("10.005") },
		"sub-cent tier price": func(tk *Task) {
			tk.PricingTiers = []PricingTier{{Metric: MetricViews, MinimumDelta: 10, Price: decimal.RequireFromString("0.005")}}
		},
	}
	if err := ValidateTask(base); err != nil {
		t.Fatalf("valid flat task rejected: %v", err)
	}
	cents := base
	cents.Budget = decimal.RequireFromString("99.990")
	cents.PricingTiers = []PricingTier{{Metric: MetricViews, MinimumDelta: 10, Price: decimal.RequireFromString("0.50")}}
	if err := ValidateTask(cents); err != nil {
		t.Fatalf("whole-cent amounts rejected: %v", err)
	}
	for name, mutate := range cases {
		tk := base
		mutate(&tk)
		if err := ValidateTask(tk); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("%s: err = %v", name, err)
		}
	}
}

func TestBuildPaymentEntriesAndBalance(t *testing.T) {
	t.Parallel()
	at := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	sub := Submission{SubmissionID: "sub-1", InfluencerID: "inf-1"}
	task := Task{TaskID: "task-1", ClientID: "client-1", Currency: "USD"}
	tiers := []PaidTier{
		{Key: TierKey{Metric: MetricViews, MinimumDelta: 100}, Price: decimal.NewFromInt(50)},
		{Key: TierKey{Metric: MetricViews, MinimumDelta: 0}, Price: decimal.Zero},
	}
	n := 0
	entries := BuildPaymentEntries(sub, task, tiers, at, func() string { n++; return string(rune('a' + n)) })
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want a single credit/debit pair", len(entries))
	}
	if entries[0].PaymentKey != "sub-1/views:100" || entries[0].PaymentKey != entries[1].PaymentKey {
		t.Fatalf("payment keys = %q %q", entries[0].PaymentKey, entries[1].PaymentKey)
	}
	inf := SumBalance("inf-1", entries, at)
	client := SumBalance("client-1", entries, at)
	if !inf.Net.Equal(decimal.NewFromInt(50)) || !client.Net.Equal(decimal.NewFromInt(-50)) {
		t.Fatalf("balances = %s / %s", inf.Net, client.Net)
	}
}
