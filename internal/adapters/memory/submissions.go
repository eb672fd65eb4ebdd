package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/domain"
)

type SubmissionRepository struct {
	s *store
}

func (r *SubmissionRepository) Create(_ context.Context, row domain.Submission) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.submissions[row.SubmissionID]; ok {
		return domain.ErrConflict
	}
	if row.Status.IsActive() && r.s.hasActivePairing(row.TaskID, row.InfluencerID, row.SubmissionID) {
		return domain.ErrDuplicateActiveSubmission
	}
	r.s.submissions[row.SubmissionID] = cloneSubmission(row)
	return nil
}

func (r *SubmissionRepository) GetByID(_ context.Context, submissionID string) (domain.Submission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.s.submissions[strings.TrimSpace(submissionID)]
	if !ok {
		return domain.Submission{}, domain.ErrNotFound
	}
	return cloneSubmission(row), nil
}

func (r *SubmissionRepository) Update(_ context.Context, row domain.Submission, expectedVersion int64) (domain.Submission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.writeSubmission(row, expectedVersion)
}

func (r *SubmissionRepository) LatestForPairing(_ context.Context, taskID, influencerID string) (domain.Submission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var (
		latest domain.Submission
		found  bool
	)
	for _, row := range r.s.submissions {
		if row.TaskID != taskID || row.InfluencerID != influencerID {
			continue
		}
		if !found || row.CreatedAt.After(latest.CreatedAt) {
			latest, found = row, true
		}
	}
	if !found {
		return domain.Submission{}, domain.ErrNotFound
	}
	return cloneSubmission(latest), nil
}

func (r *SubmissionRepository) CountOccupyingSlots(_ context.Context, taskID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, row := range r.s.submissions {
		if row.TaskID == taskID && row.Status.OccupiesSlot() {
			n++
		}
	}
	return n, nil
}

func (r *SubmissionRepository) ListTrackable(_ context.Context, limit int) ([]domain.Submission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]domain.Submission, 0)
	for _, row := range r.s.submissions {
		if !row.Status.IsTracked() || !r.s.tasks[row.TaskID].IsMetricDriven() {
			continue
		}
		out = append(out, cloneSubmission(row))
	}
	sort.Slice(out, func(i, j int) bool {
		a, aok := r.s.attempted[out[i].SubmissionID]
		b, bok := r.s.attempted[out[j].SubmissionID]
		switch {
		case !aok && bok:
			return true
		case aok && !bok:
			return false
		case aok && bok && !a.Equal(b):
			return a.Before(b)
		}
		return out[i].SubmissionID < out[j].SubmissionID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *SubmissionRepository) MarkAttempted(_ context.Context, submissionID string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.submissions[submissionID]; !ok {
		return domain.ErrNotFound
	}
	r.s.attempted[submissionID] = at
	return nil
}

func (s *store) hasActivePairing(taskID, influencerID, exceptID string) bool {
	for id, row := range s.submissions {
		if id != exceptID && row.TaskID == taskID && row.InfluencerID == influencerID && row.Status.IsActive() {
			return true
		}
	}
	return false
}

// writeSubmission must be called with s.mu held.
func (s *store) writeSubmission(row domain.Submission, expectedVersion int64) (domain.Submission, error) {
	current, ok := s.submissions[row.SubmissionID]
	if !ok {
		return domain.Submission{}, domain.ErrNotFound
	}
	if current.Version != expectedVersion {
		return domain.Submission{}, domain.ErrConflict
	}
	if row.Status.IsActive() && s.hasActivePairing(row.TaskID, row.InfluencerID, row.SubmissionID) {
		return domain.Submission{}, domain.ErrDuplicateActiveSubmission
	}
	row.Version = expectedVersion + 1
	s.submissions[row.SubmissionID] = cloneSubmission(row)
	return cloneSubmission(row), nil
}

func cloneSubmission(s domain.Submission) domain.Submission {
	s.PaidTiers = append([]domain.TierKey{}, s.PaidTiers...)
	return s
}
