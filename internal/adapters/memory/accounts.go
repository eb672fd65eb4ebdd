package memory

import (
	"context"

	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/domain"
)

type AccountRepository struct {
	s *store
}

func accountKey(influencerID, platform string) string { return influencerID + ":" + platform }

func (r *AccountRepository) Upsert(_ context.Context, row domain.LinkedAccount) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k := accountKey(row.InfluencerID, row.Platform)
	if old, ok := r.s.accounts[k]; ok {
		row.LinkedAt = old.LinkedAt
	}
	row.TokenEncrypted = append([]byte(nil), row.TokenEncrypted...)
	r.s.accounts[k] = row
	return nil
}

func (r *AccountRepository) Get(_ context.Context, influencerID, platform string) (domain.LinkedAccount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.s.accounts[accountKey(influencerID, platform)]
	if !ok {
		return domain.LinkedAccount{}, domain.ErrNotFound
	}
	row.TokenEncrypted = append([]byte(nil), row.TokenEncrypted...)
	return row, nil
}
