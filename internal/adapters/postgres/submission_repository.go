package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/domain"
	"gorm.io/gorm"
)

var (
	activeStatuses   = []string{string(domain.SubmissionStatusPending), string(domain.SubmissionStatusRevisionRequested), string(domain.SubmissionStatusApproved), string(domain.SubmissionStatusInProgress)}
	trackedStatuses  = []string{string(domain.SubmissionStatusApproved), string(domain.SubmissionStatusInProgress)}
	occupiedStatuses = []string{string(domain.SubmissionStatusApproved), string(domain.SubmissionStatusInProgress), string(domain.SubmissionStatusCompleted)}
)

// Paths matching the tiers and targets domain.Task treats as active.
const (
	activeTierPath   = "$[*] ? (@.minimum_delta > 0)"
	activeTargetPath = "$.* ? (@ > 0)"
)

type submissionRepository struct {
	db *gorm.DB
}

func (r *submissionRepository) Create(ctx context.Context, row domain.Submission) error {
	rec, err := toSubmissionModel(row)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateActiveSubmission
		}
		return err
	}
	return nil
}

func (r *submissionRepository) GetByID(ctx context.Context, submissionID string) (domain.Submission, error) {
	var rec submissionModel
	if err := r.db.WithContext(ctx).Where("submission_id = ?", submissionID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Submission{}, domain.ErrNotFound
		}
		return domain.Submission{}, err
	}
	return fromSubmissionModel(rec)
}

func (r *submissionRepository) Update(ctx context.Context, row domain.Submission, expectedVersion int64) (domain.Submission, error) {
	return writeSubmission(r.db.WithContext(ctx), row, expectedVersion)
}

func (r *submissionRepository) LatestForPairing(ctx context.Context, taskID, influencerID string) (domain.Submission, error) {
	var rec submissionModel
	err := r.db.WithContext(ctx).
		Where("task_id = ? AND influencer_id = ?", taskID, influencerID).
		Order("created_at desc").
		Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Submission{}, domain.ErrNotFound
		}
		return domain.Submission{}, err
	}
	return fromSubmissionModel(rec)
}

func (r *submissionRepository) CountOccupyingSlots(ctx context.Context, taskID string) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&submissionModel{}).
		Where("task_id = ? AND status IN ?", taskID, occupiedStatuses).
		Count(&count).Error
	return int(count), err
}

// ListTrackable returns tracked submissions of tasks with an active tier or
// target, least recently attempted first.
func (r *submissionRepository) ListTrackable(ctx context.Context, limit int) ([]domain.Submission, error) {
	var rows []submissionModel
	q := r.db.WithContext(ctx).
		Model(&submissionModel{}).
		Select("submissions.*").
		Joins("JOIN tasks ON tasks.task_id = submissions.task_id").
		Where("submissions.status IN ?", trackedStatuses).
		Where("(jsonb_path_exists(tasks.pricing_tiers, ?::jsonpath) OR jsonb_path_exists(tasks.target_metrics, ?::jsonpath))",
			activeTierPath, activeTargetPath).
		Order("submissions.last_attempted_at asc nulls first").
		Order("submissions.submission_id asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Submission, 0, len(rows))
	for _, rec := range rows {
		sub, err := fromSubmissionModel(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, nil
}

func (r *submissionRepository) MarkAttempted(ctx context.Context, submissionID string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&submissionModel{}).
		Where("submission_id = ?", submissionID).
		Update("last_attempted_at", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// writeSubmission is the optimistic update shared by plain updates and
// payments. The caller's row carries the new state; the stored version must
// still equal expectedVersion.
func writeSubmission(tx *gorm.DB, row domain.Submission, expectedVersion int64) (domain.Submission, error) {
	row.Version = expectedVersion + 1
	rec, err := toSubmissionModel(row)
	if err != nil {
		return domain.Submission{}, err
	}
	res := tx.Model(&submissionModel{}).
		Where("submission_id = ? AND version = ?", row.SubmissionID, expectedVersion).
		Updates(map[string]any{
			"post_url":          rec.PostURL,
			"post_shortcode":    rec.PostShortcode,
			"post_kind":         rec.PostKind,
			"platform_media_id": rec.PlatformMediaID,
			"initial_metrics":   rec.InitialMetrics,
			"current_metrics":   rec.CurrentMetrics,
			"status":            rec.Status,
			"determined_price":  rec.DeterminedPrice,
			"paid_tiers":        rec.PaidTiers,
			"review_note":       rec.ReviewNote,
			"approved_at":       rec.ApprovedAt,
			"metric_deadline":   rec.MetricDeadline,
			"last_tracked_at":   rec.LastTrackedAt,
			"completed_at":      rec.CompletedAt,
			"version":           rec.Version,
			"updated_at":        rec.UpdatedAt,
		})
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return domain.Submission{}, domain.ErrDuplicateActiveSubmission
		}
		return domain.Submission{}, res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := tx.Model(&submissionModel{}).Where("submission_id = ?", row.SubmissionID).Count(&count).Error; err != nil {
			return domain.Submission{}, err
		}
		if count == 0 {
			return domain.Submission{}, domain.ErrNotFound
		}
		return domain.Submission{}, domain.ErrConflict
	}
	return row, nil
}
