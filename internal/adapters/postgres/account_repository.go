package postgres

import (
	"context"
	"errors"

	"github.com/TAMAKQR/telegram-marketplace-sub001/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type accountRepository struct {
	db *gorm.DB
}

func (r *accountRepository) Upsert(ctx context.Context, row domain.LinkedAccount) error {
	rec := linkedAccountModel{
		InfluencerID:   row.InfluencerID,
		Platform:       row.Platform,
		AccountID:      row.AccountID,
		Username:       row.Username,
		TokenEncrypted: row.TokenEncrypted,
		LinkedAt:       row.LinkedAt,
		UpdatedAt:      row.UpdatedAt,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "influencer_id"},
			{Name: "platform"},
		},
		DoUpdates: clause.Assignments(map[string]any{
			"account_id":      rec.AccountID,
			"username":        rec.Username,
			"token_encrypted": rec.TokenEncrypted,
			"updated_at":      rec.UpdatedAt,
		}),
	}).Create(&rec).Error
}

func (r *accountRepository) Get(ctx context.Context, influencerID, platform string) (domain.LinkedAccount, error) {
	var rec linkedAccountModel
	if err := r.db.WithContext(ctx).Where("influencer_id = ? AND platform = ?", influencerID, platform).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.LinkedAccount{}, domain.ErrNotFound
		}
		return domain.LinkedAccount{}, err
	}
	return domain.LinkedAccount{
		InfluencerID:   rec.InfluencerID,
		Platform:       rec.Platform,
		AccountID:      rec.AccountID,
		Username:       rec.Username,
		TokenEncrypted: rec.TokenEncrypted,
		LinkedAt:       rec.LinkedAt,
		UpdatedAt:      rec.UpdatedAt,
	}, nil
}
