package domain

import "github.com/shopspring/decimal"

// PricingConfig is the part of a task the evaluator reads.
type PricingConfig struct {
	TargetMetrics map[Metric]int64
	PricingTiers  []PricingTier
	FlatBudget    decimal.Decimal
}

func (t Task) PricingConfig() PricingConfig {
	return PricingConfig{TargetMetrics: t.TargetMetrics, PricingTiers: t.PricingTiers, FlatBudget: t.Budget}
}

// PaidTier is a tier that became payable in an evaluation.
type PaidTier struct {
	Key   TierKey         `json:"key"`
	Price decimal.Decimal `json:"price"`
}

type Evaluation struct {
	Mode          PaymentMode      `json:"mode"`
	Deltas        map[Metric]int64 `json:"deltas"`
	NewlyPaid     []PaidTier       `json:"newly_paid"`
	DeltaPayment  decimal.Decimal  `json:"delta_payment"`
	FullyAttained bool             `json:"fully_attained"`
}

type payoutRule struct {
	key       TierKey
	price     decimal.Decimal
	satisfied func(deltas map[Metric]int64) bool
}

// Evaluate compares current against baseline and returns the tiers that
// became payable given the set already paid. It has no side effects.
func Evaluate(baseline, current Snapshot, cfg PricingConfig, alreadyPaid map[TierKey]struct{}) Evaluation {
	task := Task{TargetMetrics: cfg.TargetMetrics, PricingTiers: cfg.PricingTiers, Budget: cfg.FlatBudget}
	out := Evaluation{
		Mode:         task.Mode(),
		Deltas:       Deltas(baseline, current),
		DeltaPayment: decimal.Zero,
	}
	rules := payoutRules(task)
	if len(rules) == 0 {
		return out
	}

	paidAfter := 0
	for _, rule := range rules {
		if _, paid := alreadyPaid[rule.key]; paid {
			paidAfter++
			continue
		}
		if !rule.satisfied(out.Deltas) {
			continue
		}
		out.NewlyPaid = append(out.NewlyPaid, PaidTier{Key: rule.key, Price: rule.price})
		out.DeltaPayment = out.DeltaPayment.Add(rule.price)
		paidAfter++
	}
	out.FullyAttained = paidAfter == len(rules)
	return out
}

// payoutRules reduces both pricing modes to a list of independently payable
// rules. Target mode is a single rule that pays the budget when every
// configured target is met.
func payoutRules(t Task) []payoutRule {
	switch t.Mode() {
	case PaymentModeTiered:
		tiers := t.ActiveTiers()
		rules := make([]payoutRule, 0, len(tiers))
		for _, tier := range tiers {
			tier := tier
			rules = append(rules, payoutRule{
				key:   tier.Key(),
				price: tier.Price,
				satisfied: func(deltas map[Metric]int64) bool {
					return deltas[tier.Metric] >= tier.MinimumDelta
				},
			})
		}
		return rules
	case PaymentModeTarget:
		targets := t.ActiveTargets()
		return []payoutRule{{
			key:   TargetTierKey,
			price: t.Budget,
			satisfied: func(deltas map[Metric]int64) bool {
				for m, target := range targets {
					if deltas[m] < target {
						return false
					}
				}
				return true
			},
		}}
	default:
		return nil
	}
}
