package http

import (
	"time"

	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/contracts"
	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/domain"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func toTaskResponse(t domain.Task) contracts.TaskResponse {
	resp := contracts.TaskResponse{
		TaskID:             t.TaskID,
		ClientID:           t.ClientID,
		Title:              t.Title,
		Description:        t.Description,
		Budget:             t.Budget.StringFixed(2),
		Currency:           t.Currency,
		PaymentMode:        string(t.Mode()),
		MetricDeadlineDays: t.MetricDeadlineDays,
		MaxInfluencers:     t.MaxInfluencers,
		WorkDeadline:       formatTimePtr(t.WorkDeadline),
		Status:             string(t.Status),
		CreatedAt:          formatTime(t.CreatedAt),
	}
	if len(t.TargetMetrics) > 0 {
		resp.TargetMetrics = make(map[string]int64, len(t.TargetMetrics))
		for m, v := range t.TargetMetrics {
			resp.TargetMetrics[string(m)] = v
		}
	}
	for _, tier := range t.PricingTiers {
		resp.PricingTiers = append(resp.PricingTiers, contracts.PricingTierRequest{
			Metric:       string(tier.Metric),
			MinimumDelta: tier.MinimumDelta,
			Price:        tier.Price.StringFixed(2),
		})
	}
	return resp
}

func toSnapshotResponse(s domain.Snapshot) contracts.SnapshotResponse {
	return contracts.SnapshotResponse{
		Views:       s.Views,
		Likes:       s.Likes,
		Comments:    s.Comments,
		Reach:       s.Reach,
		Impressions: s.Impressions,
		Saves:       s.Saves,
		Shares:      s.Shares,
		Engagement:  s.Engagement,
		Quality:     string(s.Quality),
		CapturedAt:  formatTime(s.CapturedAt),
	}
}

func toSubmissionResponse(s domain.Submission) contracts.SubmissionResponse {
	paid := make([]string, 0, len(s.PaidTiers))
	for _, k := range s.PaidTiers {
		paid = append(paid, k.String())
	}
	return contracts.SubmissionResponse{
		SubmissionID:    s.SubmissionID,
		TaskID:          s.TaskID,
		InfluencerID:    s.InfluencerID,
		PostURL:         s.PostReference.URL,
		PlatformMediaID: s.PlatformMediaID,
		Status:          string(s.Status),
		InitialMetrics:  toSnapshotResponse(s.InitialMetrics),
		CurrentMetrics:  toSnapshotResponse(s.CurrentMetrics),
		DeterminedPrice: s.DeterminedPrice.StringFixed(2),
		PaidTiers:       paid,
		ReviewNote:      s.ReviewNote,
		ApprovedAt:      formatTimePtr(s.ApprovedAt),
		MetricDeadline:  formatTimePtr(s.MetricDeadline),
		LastTrackedAt:   formatTimePtr(s.LastTrackedAt),
		CompletedAt:     formatTimePtr(s.CompletedAt),
		CreatedAt:       formatTime(s.CreatedAt),
		UpdatedAt:       formatTime(s.UpdatedAt),
	}
}

func toLedgerEntryResponse(e domain.LedgerEntry) contracts.LedgerEntryResponse {
	return contracts.LedgerEntryResponse{
		EntryID:    e.EntryID,
		AccountID:  e.AccountID,
		EntryType:  e.EntryType,
		Tier:       e.Tier.String(),
		Amount:     e.Amount.StringFixed(2),
		Currency:   e.Currency,
		OccurredAt: formatTime(e.OccurredAt),
	}
}
