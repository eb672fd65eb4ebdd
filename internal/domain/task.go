package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type TaskStatus string

const (
	TaskStatusOpen   TaskStatus = "open"
	TaskStatusClosed TaskStatus = "closed"
)

// PaymentMode is derived from which pricing fields a task populates.
type PaymentMode string

const (
	PaymentModeFlat   PaymentMode = "flat"
	PaymentModeTiered PaymentMode = "tiered"
	PaymentModeTarget PaymentMode = "target"
)

type PricingTier struct {
	Metric       Metric          `json:"metric"`
	MinimumDelta int64           `json:"minimum_delta"`
	Price        decimal.Decimal `json:"price"`
}

func (t PricingTier) Key() TierKey {
	return TierKey{Metric: t.Metric, MinimumDelta: t.MinimumDelta}
}

// TierKey identifies a tier within a task. Target mode pays through the
// synthetic TargetTierKey.
type TierKey struct {
	Metric       Metric `json:"metric"`
	MinimumDelta int64  `json:"minimum_delta"`
}

// Synthetic tier metrics: binary target attainment and manual flat payment.
const (
	MetricAllTargets Metric = "all_targets"
	MetricFlatBudget Metric = "flat_budget"
)

var (
	TargetTierKey = TierKey{Metric: MetricAllTargets}
	FlatTierKey   = TierKey{Metric: MetricFlatBudget}
)

// ParseTierKey is the inverse of TierKey.String.
func ParseTierKey(raw string) (TierKey, error) {
	idx := strings.LastIndex(raw, ":")
	if idx <= 0 {
		return TierKey{}, ErrInvalidInput
	}
	threshold, err := strconv.ParseInt(raw[idx+1:], 10, 64)
	if err != nil {
		return TierKey{}, ErrInvalidInput
	}
	return TierKey{Metric: Metric(raw[:idx]), MinimumDelta: threshold}, nil
}

func (k TierKey) String() string {
	return fmt.Sprintf("%s:%d", k.Metric, k.MinimumDelta)
}

type Task struct {
	TaskID             string           `json:"task_id"`
	ClientID           string           `json:"client_id"`
	Title              string           `json:"title"`
	Description        string           `json:"description,omitempty"`
	Budget             decimal.Decimal  `json:"budget"`
	Currency           string           `json:"currency"`
	TargetMetrics      map[Metric]int64 `json:"target_metrics,omitempty"`
	PricingTiers       []PricingTier    `json:"pricing_tiers,omitempty"`
	MetricDeadlineDays int              `json:"metric_deadline_days,omitempty"`
	MaxInfluencers     int              `json:"max_influencers,omitempty"`
	WorkDeadline       *time.Time       `json:"work_deadline,omitempty"`
	Status             TaskStatus       `json:"status"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

// ActiveTiers returns tiers with a positive threshold ordered by metric and
// ascending threshold. Zero thresholds mean "not required" and are dropped.
func (t Task) ActiveTiers() []PricingTier {
	out := make([]PricingTier, 0, len(t.PricingTiers))
	for _, tier := range t.PricingTiers {
		if tier.MinimumDelta > 0 {
			out = append(out, tier)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Metric != out[j].Metric {
			return out[i].Metric < out[j].Metric
		}
		return out[i].MinimumDelta < out[j].MinimumDelta
	})
	return out
}

// ActiveTargets returns targets with a positive value.
func (t Task) ActiveTargets() map[Metric]int64 {
	out := map[Metric]int64{}
	for m, v := range t.TargetMetrics {
		if v > 0 {
			out[m] = v
		}
	}
	return out
}

func (t Task) Mode() PaymentMode {
	if len(t.ActiveTiers()) > 0 {
		return PaymentModeTiered
	}
	if len(t.ActiveTargets()) > 0 {
		return PaymentModeTarget
	}
	return PaymentModeFlat
}

func (t Task) IsMetricDriven() bool {
	return t.Mode() != PaymentModeFlat
}

// MaxPayout is the ceiling on determinedPrice for a single submission.
func (t Task) MaxPayout() decimal.Decimal {
	if t.Mode() == PaymentModeTiered {
		sum := decimal.Zero
		for _, tier := range t.ActiveTiers() {
			sum = sum.Add(tier.Price)
		}
		return sum
	}
	return t.Budget
}

// AcceptsSubmissions reports whether influencers may still submit at now.
func (t Task) AcceptsSubmissions(now time.Time) bool {
	if t.Status != TaskStatusOpen {
		return false
	}
	return t.WorkDeadline == nil || !now.After(*t.WorkDeadline)
}

func ValidateTask(t Task) error {
	if strings.TrimSpace(t.ClientID) == "" || strings.TrimSpace(t.Title) == "" {
		return ErrInvalidInput
	}
	if t.Budget.IsNegative() {
		return fmt.Errorf("%w: budget must not be negative", ErrInvalidInput)
	}
	if !isWholeCents(t.Budget) {
		return fmt.Errorf("%w: budget has more than 2 decimal places", ErrInvalidInput)
	}
	if t.MetricDeadlineDays < 0 || t.MaxInfluencers < 0 {
		return fmt.Errorf("%w: negative limits", ErrInvalidInput)
	}
	for m, v := range t.TargetMetrics {
		if !IsTrackedMetric(m) {
			return fmt.Errorf("%w: unknown target metric %q", ErrInvalidInput, m)
		}
		if v < 0 {
			return fmt.Errorf("%w: negative target for %s", ErrInvalidInput, m)
		}
	}
	seen := map[TierKey]struct{}{}
	for _, tier := range t.PricingTiers {
		if !IsTrackedMetric(tier.Metric) {
			return fmt.Errorf("%w: unknown tier metric %q", ErrInvalidInput, tier.Metric)
		}
		if tier.MinimumDelta < 0 || tier.Price.IsNegative() {
			return fmt.Errorf("%w: tier %s has negative values", ErrInvalidInput, tier.Key())
		}
		if !isWholeCents(tier.Price) {
			return fmt.Errorf("%w: tier %s price has more than 2 decimal places", ErrInvalidInput, tier.Key())
		}
		if _, dup := seen[tier.Key()]; dup {
			return fmt.Errorf("%w: duplicate tier %s", ErrInvalidInput, tier.Key())
		}
		seen[tier.Key()] = struct{}{}
	}
	if t.Mode() == PaymentModeTarget && !t.Budget.IsPositive() {
		return fmt.Errorf("%w: target mode requires a positive budget", ErrInvalidInput)
	}
	return nil
}

// isWholeCents reports whether d is storable as NUMERIC(18,2) without rounding.
func isWholeCents(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(2))
}
