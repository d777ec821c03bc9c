package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"lingo-challenge-service/internal/domain"
)

// QuotaRepository tracks per-creator daily allowances. Reserve locks the
// row so concurrent creations cannot both claim the last slot.
type QuotaRepository struct {
	db *bun.DB
}

func NewQuotaRepository(db *bun.DB) *QuotaRepository {
	return &QuotaRepository{db: db}
}

func (r *QuotaRepository) Get(ctx context.Context, creatorID string) (domain.Quota, error) {
	var row quotaRow
	err := r.db.NewSelect().Model(&row).Where("creator_id = ?", creatorID).Scan(ctx)
	if isNoRows(err) {
		return domain.Quota{CreatorID: creatorID, LastResetDate: time.Now().UTC()}, nil
	}
	if err != nil {
		return domain.Quota{}, fmt.Errorf("get quota: %w", err)
	}
	return row.toDomain(), nil
}

func (r *QuotaRepository) Reserve(ctx context.Context, creatorID string, today time.Time, limit int, enforceLimit bool) (domain.Quota, bool, error) {
	var out domain.Quota
	var ok bool
	err := r.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var row quotaRow
		err := tx.NewSelect().
			Model(&row).
			Where("creator_id = ?", creatorID).
			For("UPDATE").
			Scan(ctx)
		if isNoRows(err) {
			row = quotaRow{CreatorID: creatorID, LastResetDate: today}
			if _, err := tx.NewInsert().Model(&row).Exec(ctx); err != nil {
				return fmt.Errorf("create quota: %w", err)
			}
		} else if err != nil {
			return fmt.Errorf("lock quota: %w", err)
		}

		quota := row.toDomain()
		quota.Rollover(today)
		if enforceLimit && quota.ChallengesCreatedToday >= limit {
			out, ok = quota, false
			return nil
		}
		quota.ChallengesCreatedToday++
		quota.TotalChallengesCreated++

		_, err = tx.NewUpdate().
			Model((*quotaRow)(nil)).
			Set("challenges_created_today = ?", quota.ChallengesCreatedToday).
			Set("total_challenges_created = ?", quota.TotalChallengesCreated).
			Set("last_reset_date = ?", quota.LastResetDate).
			Where("creator_id = ?", creatorID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("update quota: %w", err)
		}
		out, ok = quota, true
		return nil
	})
	if err != nil {
		return domain.Quota{}, false, err
	}
	return out, ok, nil
}
