package postgres

import (
	"context"
	"errors"

	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/domain"
	"gorm.io/gorm"
)

type taskRepository struct {
	db *gorm.DB
}

func (r *taskRepository) Create(ctx context.Context, row domain.Task) error {
	rec, err := toTaskModel(row)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *taskRepository) GetByID(ctx context.Context, taskID string) (domain.Task, error) {
	var rec taskModel
	if err := r.db.WithContext(ctx).Where("task_id = ?", taskID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Task{}, domain.ErrNotFound
		}
		return domain.Task{}, err
	}
	return fromTaskModel(rec)
}

func (r *taskRepository) Update(ctx context.Context, row domain.Task) error {
	rec, err := toTaskModel(row)
	if err != nil {
		return err
	}
	res := r.db.WithContext(ctx).Model(&taskModel{}).Where("task_id = ?", row.TaskID).Updates(map[string]any{
		"title":                rec.Title,
		"description":          rec.Description,
		"budget":               rec.Budget,
		"currency":             rec.Currency,
		"target_metrics":       rec.TargetMetrics,
		"pricing_tiers":        rec.PricingTiers,
		"metric_deadline_days": rec.MetricDeadlineDays,
		"max_influencers":      rec.MaxInfluencers,
		"work_deadline":        rec.WorkDeadline,
		"status":               rec.Status,
		"updated_at":           rec.UpdatedAt,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
