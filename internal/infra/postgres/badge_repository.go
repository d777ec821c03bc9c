package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/uptrace/bun"

	"lingo-challenge-service/internal/domain"
)

// BadgeRepository stores the badge catalog, per-participant grants, and
// lifetime point balances.
type BadgeRepository struct {
	db *bun.DB
}

func NewBadgeRepository(db *bun.DB) *BadgeRepository {
	return &BadgeRepository{db: db}
}

func (r *BadgeRepository) ActiveBadges(ctx context.Context) ([]domain.Badge, error) {
	var rows []badgeRow
	err := r.db.NewSelect().Model(&rows).Where("active = TRUE").Order("id ASC").Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("active badges: %w", err)
	}
	badges := make([]domain.Badge, 0, len(rows))
	for _, row := range rows {
		badges = append(badges, row.toDomain())
	}
	return badges, nil
}

func (r *BadgeRepository) Granted(ctx context.Context, participantID string) (map[int64]bool, error) {
	var ids []int64
	err := r.db.NewSelect().
		Model((*grantRow)(nil)).
		Column("badge_id").
		Where("participant_id = ?", participantID).
		Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("granted badges: %w", err)
	}
	granted := make(map[int64]bool, len(ids))
	for _, id := range ids {
		granted[id] = true
	}
	return granted, nil
}

// Award inserts the grants and credits point bonuses in one transaction.
// ON CONFLICT DO NOTHING makes a duplicate award a no-op, and points are
// credited only for grants this call actually inserted.
func (r *BadgeRepository) Award(ctx context.Context, participantID string, grants []domain.BadgeGrant) error {
	if len(grants) == 0 {
		return nil
	}
	return r.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var credit int
		for _, grant := range grants {
			row := grantRow{
				ParticipantID: grant.ParticipantID,
				BadgeID:       grant.BadgeID,
				PointBonus:    grant.PointBonus,
				AwardedAt:     grant.AwardedAt,
			}
			res, err := tx.NewInsert().
				Model(&row).
				On("CONFLICT (participant_id, badge_id) DO NOTHING").
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("insert grant %d: %w", grant.BadgeID, err)
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if affected == 1 {
				credit += grant.PointBonus
			}
		}
		if credit == 0 {
			return nil
		}
		points := pointsRow{ParticipantID: participantID, Points: credit}
		_, err := tx.NewInsert().
			Model(&points).
			On("CONFLICT (participant_id) DO UPDATE").
			Set("points = lifetime_points.points + EXCLUDED.points").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("credit points: %w", err)
		}
		return nil
	})
}

func (r *BadgeRepository) LifetimePoints(ctx context.Context, participantID string) (int, error) {
	var row pointsRow
	err := r.db.NewSelect().Model(&row).Where("participant_id = ?", participantID).Scan(ctx)
	if isNoRows(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("lifetime points: %w", err)
	}
	return row.Points, nil
}
