package domain

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

type SubmissionStatus string

const (
	SubmissionStatusPending           SubmissionStatus = "pending"
	SubmissionStatusRevisionRequested SubmissionStatus = "revision_requested"
	SubmissionStatusApproved          SubmissionStatus = "approved"
	SubmissionStatusInProgress        SubmissionStatus = "in_progress"
	SubmissionStatusCompleted         SubmissionStatus = "completed"
	SubmissionStatusRejected          SubmissionStatus = "rejected"
)

var submissionTransitions = map[SubmissionStatus][]SubmissionStatus{
	SubmissionStatusPending:           {SubmissionStatusApproved, SubmissionStatusRevisionRequested, SubmissionStatusRejected},
	SubmissionStatusRevisionRequested: {SubmissionStatusPending, SubmissionStatusRejected},
	SubmissionStatusApproved:          {SubmissionStatusInProgress, SubmissionStatusCompleted, SubmissionStatusRejected},
	SubmissionStatusInProgress:        {SubmissionStatusCompleted, SubmissionStatusRejected},
	SubmissionStatusCompleted:         nil,
	SubmissionStatusRejected:          nil,
}

func IsValidSubmissionStatus(s SubmissionStatus) bool {
	_, ok := submissionTransitions[s]
	return ok
}

// CanTransition reports whether from → to is in the transition table.
func CanTransition(from, to SubmissionStatus) bool {
	for _, next := range submissionTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsActive reports whether a submission still blocks a new one for the same
// task and influencer.
func (s SubmissionStatus) IsActive() bool {
	switch s {
	case SubmissionStatusPending, SubmissionStatusRevisionRequested, SubmissionStatusApproved, SubmissionStatusInProgress:
		return true
	default:
		return false
	}
}

// IsTracked reports whether the scheduler picks the submission up.
func (s SubmissionStatus) IsTracked() bool {
	return s == SubmissionStatusApproved || s == SubmissionStatusInProgress
}

// OccupiesSlot reports whether the submission counts against maxInfluencers.
func (s SubmissionStatus) OccupiesSlot() bool {
	switch s {
	case SubmissionStatusApproved, SubmissionStatusInProgress, SubmissionStatusCompleted:
		return true
	default:
		return false
	}
}

type Submission struct {
	SubmissionID    string           `json:"submission_id"`
	TaskID          string           `json:"task_id"`
	InfluencerID    string           `json:"influencer_id"`
	PostReference   PostReference    `json:"post_reference"`
	PlatformMediaID string           `json:"platform_media_id,omitempty"`
	InitialMetrics  Snapshot         `json:"initial_metrics"`
	CurrentMetrics  Snapshot         `json:"current_metrics"`
	Status          SubmissionStatus `json:"status"`
	DeterminedPrice decimal.Decimal  `json:"determined_price"`
	PaidTiers       []TierKey        `json:"paid_tiers"`
	ReviewNote      string           `json:"review_note,omitempty"`
	ApprovedAt      *time.Time       `json:"approved_at,omitempty"`
	MetricDeadline  *time.Time       `json:"metric_deadline,omitempty"`
	LastTrackedAt   *time.Time       `json:"last_tracked_at,omitempty"`
	CompletedAt     *time.Time       `json:"completed_at,omitempty"`
	Version         int64            `json:"version"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// TransitionTo moves the submission to next or returns ErrInvalidTransition.
func (s *Submission) TransitionTo(next SubmissionStatus, at time.Time) error {
	if !CanTransition(s.Status, next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Status, next)
	}
	s.Status = next
	s.UpdatedAt = at
	if next == SubmissionStatusCompleted {
		t := at
		s.CompletedAt = &t
	}
	return nil
}

// Approve records approval time and derives the metric deadline.
func (s *Submission) Approve(at time.Time, metricDeadlineDays int) error {
	if err := s.TransitionTo(SubmissionStatusApproved, at); err != nil {
		return err
	}
	approved := at
	s.ApprovedAt = &approved
	s.MetricDeadline = nil
	if metricDeadlineDays > 0 {
		deadline := at.Add(time.Duration(metricDeadlineDays) * 24 * time.Hour)
		s.MetricDeadline = &deadline
	}
	return nil
}

// DeadlinePassed reports whether tracking must stop at now.
func (s Submission) DeadlinePassed(now time.Time) bool {
	return s.MetricDeadline != nil && now.After(*s.MetricDeadline)
}

func (s Submission) PaidTierSet() map[TierKey]struct{} {
	out := make(map[TierKey]struct{}, len(s.PaidTiers))
	for _, k := range s.PaidTiers {
		out[k] = struct{}{}
	}
	return out
}

func (s Submission) HasPaid(k TierKey) bool {
	for _, paid := range s.PaidTiers {
		if paid == k {
			return true
		}
	}
	return false
}

// RecordPayment merges newly paid tiers and accumulates the price. Tiers
// already present are ignored so the paid set and price only grow.
func (s *Submission) RecordPayment(tiers []PaidTier) decimal.Decimal {
	credited := decimal.Zero
	for _, t := range tiers {
		if s.HasPaid(t.Key) {
			continue
		}
		s.PaidTiers = append(s.PaidTiers, t.Key)
		credited = credited.Add(t.Price)
	}
	sortTierKeys(s.PaidTiers)
	s.DeterminedPrice = s.DeterminedPrice.Add(credited)
	return credited
}

func sortTierKeys(keys []TierKey) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Metric != keys[j].Metric {
			return keys[i].Metric < keys[j].Metric
		}
		return keys[i].MinimumDelta < keys[j].MinimumDelta
	})
}
