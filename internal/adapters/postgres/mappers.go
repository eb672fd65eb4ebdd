package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/domain"
)

func toTaskModel(t domain.Task) (taskModel, error) {
	targets, err := json.Marshal(nonNilTargets(t.TargetMetrics))
	if err != nil {
		return taskModel{}, err
	}
	tiers := t.PricingTiers
	if tiers == nil {
		tiers = []domain.PricingTier{}
	}
	tiersRaw, err := json.Marshal(tiers)
	if err != nil {
		return taskModel{}, err
	}
	return taskModel{
		TaskID:             t.TaskID,
		ClientID:           t.ClientID,
		Title:              t.Title,
		Description:        t.Description,
		Budget:             t.Budget,
		Currency:           t.Currency,
		TargetMetrics:      string(targets),
		PricingTiers:       string(tiersRaw),
		MetricDeadlineDays: t.MetricDeadlineDays,
		MaxInfluencers:     t.MaxInfluencers,
		WorkDeadline:       t.WorkDeadline,
		Status:             string(t.Status),
		CreatedAt:          t.CreatedAt,
		UpdatedAt:          t.UpdatedAt,
	}, nil
}

func fromTaskModel(m taskModel) (domain.Task, error) {
	out := domain.Task{
		TaskID:             m.TaskID,
		ClientID:           m.ClientID,
		Title:              m.Title,
		Description:        m.Description,
		Budget:             m.Budget,
		Currency:           m.Currency,
		MetricDeadlineDays: m.MetricDeadlineDays,
		MaxInfluencers:     m.MaxInfluencers,
		WorkDeadline:       m.WorkDeadline,
		Status:             domain.TaskStatus(m.Status),
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
	if err := json.Unmarshal([]byte(m.TargetMetrics), &out.TargetMetrics); err != nil {
		return domain.Task{}, fmt.Errorf("decode target metrics for %s: %w", m.TaskID, err)
	}
	if err := json.Unmarshal([]byte(m.PricingTiers), &out.PricingTiers); err != nil {
		return domain.Task{}, fmt.Errorf("decode pricing tiers for %s: %w", m.TaskID, err)
	}
	return out, nil
}

func nonNilTargets(in map[domain.Metric]int64) map[domain.Metric]int64 {
	if in == nil {
		return map[domain.Metric]int64{}
	}
	return in
}

func toSubmissionModel(s domain.Submission) (submissionModel, error) {
	initial, err := json.Marshal(s.InitialMetrics)
	if err != nil {
		return submissionModel{}, err
	}
	current, err := json.Marshal(s.CurrentMetrics)
	if err != nil {
		return submissionModel{}, err
	}
	keys := make([]string, 0, len(s.PaidTiers))
	for _, k := range s.PaidTiers {
		keys = append(keys, k.String())
	}
	paid, err := json.Marshal(keys)
	if err != nil {
		return submissionModel{}, err
	}
	return submissionModel{
		SubmissionID:    s.SubmissionID,
		TaskID:          s.TaskID,
		InfluencerID:    s.InfluencerID,
		PostURL:         s.PostReference.URL,
		PostShortcode:   s.PostReference.Shortcode,
		PostKind:        string(s.PostReference.Kind),
		PlatformMediaID: s.PlatformMediaID,
		InitialMetrics:  string(initial),
		CurrentMetrics:  string(current),
		Status:          string(s.Status),
		DeterminedPrice: s.DeterminedPrice,
		PaidTiers:       string(paid),
		ReviewNote:      s.ReviewNote,
		ApprovedAt:      s.ApprovedAt,
		MetricDeadline:  s.MetricDeadline,
		LastTrackedAt:   s.LastTrackedAt,
		CompletedAt:     s.CompletedAt,
		Version:         s.Version,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}, nil
}

func fromSubmissionModel(m submissionModel) (domain.Submission, error) {
	out := domain.Submission{
		SubmissionID:    m.SubmissionID,
		TaskID:          m.TaskID,
		InfluencerID:    m.InfluencerID,
		PostReference:   domain.PostReference{URL: m.PostURL, Shortcode: m.PostShortcode, Kind: domain.PostKind(m.PostKind)},
		PlatformMediaID: m.PlatformMediaID,
		Status:          domain.SubmissionStatus(m.Status),
		DeterminedPrice: m.DeterminedPrice,
		ReviewNote:      m.ReviewNote,
		ApprovedAt:      m.ApprovedAt,
		MetricDeadline:  m.MetricDeadline,
		LastTrackedAt:   m.LastTrackedAt,
		CompletedAt:     m.CompletedAt,
		Version:         m.Version,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
	if err := json.Unmarshal([]byte(m.InitialMetrics), &out.InitialMetrics); err != nil {
		return domain.Submission{}, fmt.Errorf("decode initial metrics for %s: %w", m.SubmissionID, err)
	}
	if err := json.Unmarshal([]byte(m.CurrentMetrics), &out.CurrentMetrics); err != nil {
		return domain.Submission{}, fmt.Errorf("decode current metrics for %s: %w", m.SubmissionID, err)
	}
	var keys []string
	if err := json.Unmarshal([]byte(m.PaidTiers), &keys); err != nil {
		return domain.Submission{}, fmt.Errorf("decode paid tiers for %s: %w", m.SubmissionID, err)
	}
	out.PaidTiers = make([]domain.TierKey, 0, len(keys))
	for _, raw := range keys {
		k, err := domain.ParseTierKey(raw)
		if err != nil {
			return domain.Submission{}, fmt.Errorf("decode paid tier %q for %s: %w", raw, m.SubmissionID, err)
		}
		out.PaidTiers = append(out.PaidTiers, k)
	}
	return out, nil
}

func toLedgerEntryModel(e domain.LedgerEntry) ledgerEntryModel {
	return ledgerEntryModel{
		EntryID:      e.EntryID,
		PaymentKey:   e.PaymentKey,
		AccountID:    e.AccountID,
		SubmissionID: e.SubmissionID,
		TaskID:       e.TaskID,
		Tier:         e.Tier.String(),
		EntryType:    e.EntryType,
		Amount:       e.Amount,
		Currency:     e.Currency,
		OccurredAt:   e.OccurredAt,
	}
}

func fromLedgerEntryModels(rows []ledgerEntryModel) ([]domain.LedgerEntry, error) {
	out := make([]domain.LedgerEntry, 0, len(rows))
	for _, m := range rows {
		tier, err := domain.ParseTierKey(m.Tier)
		if err != nil {
			return nil, fmt.Errorf("decode tier for entry %s: %w", m.EntryID, err)
		}
		out = append(out, domain.LedgerEntry{
			EntryID:      m.EntryID,
			PaymentKey:   m.PaymentKey,
			AccountID:    m.AccountID,
			SubmissionID: m.SubmissionID,
			TaskID:       m.TaskID,
			Tier:         tier,
			EntryType:    m.EntryType,
			Amount:       m.Amount,
			Currency:     m.Currency,
			OccurredAt:   m.OccurredAt,
		})
	}
	return out, nil
}
