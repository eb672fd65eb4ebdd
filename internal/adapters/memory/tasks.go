package memory

import (
	"context"
	"strings"

	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/domain"
)

type TaskRepository struct {
	s *store
}

func (r *TaskRepository) Create(_ context.Context, row domain.Task) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tasks[row.TaskID]; ok {
		return domain.ErrConflict
	}
	r.s.tasks[row.TaskID] = cloneTask(row)
	return nil
}

func (r *TaskRepository) GetByID(_ context.Context, taskID string) (domain.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.s.tasks[strings.TrimSpace(taskID)]
	if !ok {
		return domain.Task{}, domain.ErrNotFound
	}
	return cloneTask(row), nil
}

func (r *TaskRepository) Update(_ context.Context, row domain.Task) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tasks[row.TaskID]; !ok {
		return domain.ErrNotFound
	}
	r.s.tasks[row.TaskID] = cloneTask(row)
	return nil
}

func cloneTask(t domain.Task) domain.Task {
	if t.TargetMetrics != nil {
		targets := make(map[domain.Metric]int64, len(t.TargetMetrics))
		for k, v := range t.TargetMetrics {
			targets[k] = v
		}
		t.TargetMetrics = targets
	}
	t.PricingTiers = append([]domain.PricingTier(nil), t.PricingTiers...)
	return t
}
