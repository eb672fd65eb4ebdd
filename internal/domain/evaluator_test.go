package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func snap(views, likes, comments int64) Snapshot {
	return Snapshot{Views: views, Likes: likes, Comments: comments, CapturedAt: time.Unix(0, 0).UTC(), Quality: SnapshotQualityFull}
}

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func tieredConfig() PricingConfig {
	return PricingConfig{
		PricingTiers: []PricingTier{
			{Metric: MetricViews, MinimumDelta: 500, Price: d("120")},
			{Metric: MetricViews, MinimumDelta: 100, Price: d("50")},
		},
		FlatBudget: d("500"),
	}
}

func TestDeltasAreNeverNegative(t *testing.T) {
	t.Parallel()
	got := Deltas(snap(1000, 40, 9), snap(900, 55, 9))
	if got[MetricViews] != 0 || got[MetricLikes] != 15 || got[MetricComments] != 0 {
		t.Fatalf("deltas = %v", got)
	}
}

func TestEvaluateTiersPayTogether(t *testing.T) {
	t.Parallel()
	eval := Evaluate(snap(0, 0, 0), snap(600, 0, 0), tieredConfig(), nil)
	if eval.Mode != PaymentModeTiered {
		t.Fatalf("mode = %s", eval.Mode)
	}
	if !eval.DeltaPayment.Equal(d("170")) {
		t.Fatalf("deltaPayment = %s, want 170", eval.DeltaPayment)
	}
	if len(eval.NewlyPaid) != 2 || eval.NewlyPaid[0].Key.MinimumDelta != 100 || eval.NewlyPaid[1].Key.MinimumDelta != 500 {
		t.Fatalf("newly paid = %+v", eval.NewlyPaid)
	}
	if !eval.FullyAttained {
		t.Fatalf("expected fully attained")
	}
}

func TestEvaluateIsIdempotentForPaidTiers(t *testing.T) {
	t.Parallel()
	cfg := tieredConfig()
	first := Evaluate(snap(0, 0, 0), snap(600, 0, 0), cfg, nil)
	sub := Submission{DeterminedPrice: decimal.Zero}
	sub.RecordPayment(first.NewlyPaid)

	second := Evaluate(snap(0, 0, 0), snap(600, 0, 0), cfg, sub.PaidTierSet())
	if !second.DeltaPayment.IsZero() || len(second.NewlyPaid) != 0 {
		t.Fatalf("second run paid %s (%+v)", second.DeltaPayment, second.NewlyPaid)
	}
	if !second.FullyAttained {
		t.Fatalf("paid tiers still count toward attainment")
	}
}

func TestEvaluateTiersOutOfOrder(t *testing.T) {
	t.Parallel()
	paid := map[TierKey]struct{}{{Metric: MetricViews, MinimumDelta: 500}: {}}
	eval := Evaluate(snap(0, 0, 0), snap(600, 0, 0), tieredConfig(), paid)
	if len(eval.NewlyPaid) != 1 || eval.NewlyPaid[0].Key.MinimumDelta != 100 || !eval.DeltaPayment.Equal(d("50")) {
		t.Fatalf("eval = %+v", eval)
	}
}

func TestEvaluateTargetMode(t *testing.T) {
	t.Parallel()
	cfg := PricingConfig{TargetMetrics: map[Metric]int64{MetricLikes: 50, MetricViews: 0}, FlatBudget: d("300")}
	baseline := snap(0, 10, 0)

	early := Evaluate(baseline, snap(0, 55, 0), cfg, nil)
	if early.Mode != PaymentModeTarget || early.FullyAttained || !early.DeltaPayment.IsZero() {
		t.Fatalf("likes delta 45 should not attain: %+v", early)
	}

	met := Evaluate(baseline, snap(0, 65, 0), cfg, nil)
	if !met.FullyAttained || !met.DeltaPayment.Equal(d("300")) {
		t.Fatalf("likes delta 55 should pay the budget: %+v", met)
	}
	if met.NewlyPaid[0].Key != TargetTierKey {
		t.Fatalf("target payment key = %v", met.NewlyPaid[0].Key)
	}

	again := Evaluate(baseline, snap(0, 80, 0), cfg, map[TierKey]struct{}{TargetTierKey: {}})
	if !again.DeltaPayment.IsZero() {
		t.Fatalf("budget paid twice: %s", again.DeltaPayment)
	}
}

func TestEvaluateTieredTakesPrecedenceAndZeroThresholdsAreIgnored(t *testing.T) {
	t.Parallel()
	cfg := PricingConfig{
		TargetMetrics: map[Metric]int64{MetricLikes: 10},
		PricingTiers: []PricingTier{
			{Metric: MetricComments, MinimumDelta: 0, Price: d("999")},
			{Metric: MetricComments, MinimumDelta: 5, Price: d("20")},
		},
		FlatBudget: d("100"),
	}
	eval := Evaluate(snap(0, 0, 0), snap(0, 100, 6), cfg, nil)
	if eval.Mode != PaymentModeTiered || !eval.DeltaPayment.Equal(d("20")) {
		t.Fatalf("eval = %+v", eval)
	}
}

func TestEvaluateFlatModePaysNothing(t *testing.T) {
	t.Parallel()
	eval := Evaluate(snap(0, 0, 0), snap(1000, 1000, 1000), PricingConfig{FlatBudget: d("100")}, nil)
	if eval.Mode != PaymentModeFlat || !eval.DeltaPayment.IsZero() || eval.FullyAttained {
		t.Fatalf("eval = %+v", eval)
	}
}

func TestRecordPaymentIsMonotonic(t *testing.T) {
	t.Parallel()
	sub := Submission{DeterminedPrice: decimal.Zero}
	k1 := TierKey{Metric: MetricViews, MinimumDelta: 100}
	k2 := TierKey{Metric: MetricLikes, MinimumDelta: 10}
	if got := sub.RecordPayment([]PaidTier{{Key: k1, Price: d("50")}}); !got.Equal(d("50")) {
		t.Fatalf("credited = %s", got)
	}
	if got := sub.RecordPayment([]PaidTier{{Key: k1, Price: d("50")}, {Key: k2, Price: d("5")}}); !got.Equal(d("5")) {
		t.Fatalf("credited = %s, want only the new tier", got)
	}
	if !sub.DeterminedPrice.Equal(d("55")) || len(sub.PaidTiers) != 2 {
		t.Fatalf("sub = %+v", sub)
	}
	if sub.PaidTiers[0] != k2 {
		t.Fatalf("paid tiers not sorted: %v", sub.PaidTiers)
	}
}

func TestTierKeyRoundTrip(t *testing.T) {
	t.Parallel()
	for _, k := range []TierKey{{Metric: MetricViews, MinimumDelta: 500}, TargetTierKey, FlatTierKey} {
		got, err := ParseTierKey(k.String())
		if err != nil || got != k {
			t.Fatalf("ParseTierKey(%q) = %v, %v", k.String(), got, err)
		}
	}
	if _, err := ParseTierKey("views"); err == nil {
		t.Fatalf("expected error for key without threshold")
	}
}
