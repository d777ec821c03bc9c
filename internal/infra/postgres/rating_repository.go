package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/uptrace/bun"

	"lingo-challenge-service/internal/domain"
)

// RatingRepository stores player ratings and their per-match history.
type RatingRepository struct {
	db *bun.DB
}

func NewRatingRepository(db *bun.DB) *RatingRepository {
	return &RatingRepository{db: db}
}

func (r *RatingRepository) Get(ctx context.Context, participantID string) (domain.PlayerRating, bool, error) {
	var row ratingRow
	err := r.db.NewSelect().Model(&row).Where("participant_id = ?", participantID).Scan(ctx)
	if isNoRows(err) {
		return domain.PlayerRating{}, false, nil
	}
	if err != nil {
		return domain.PlayerRating{}, false, fmt.Errorf("get rating: %w", err)
	}
	return row.toDomain(), true, nil
}

func (r *RatingRepository) Create(ctx context.Context, rating *domain.PlayerRating) error {
	row := ratingToRow(*rating)
	if _, err := r.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return fmt.Errorf("create rating: %w", err)
	}
	return nil
}

// ApplyMatch writes both updated ratings and both history rows in a single
// transaction, so a match never lands half-applied.
func (r *RatingRepository) ApplyMatch(ctx context.Context, a, b *domain.PlayerRating, historyA, historyB *domain.RatingHistory) error {
	return r.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		for _, rating := range []*domain.PlayerRating{a, b} {
			row := ratingToRow(*rating)
			if _, err := tx.NewUpdate().Model(&row).WherePK().Exec(ctx); err != nil {
				return fmt.Errorf("update rating %s: %w", rating.ParticipantID, err)
			}
		}
		for _, h := range []*domain.RatingHistory{historyA, historyB} {
			row := historyToRow(*h)
			if _, err := tx.NewInsert().Model(&row).Exec(ctx); err != nil {
				return fmt.Errorf("insert history: %w", err)
			}
		}
		return nil
	})
}

func (r *RatingRepository) Leaderboard(ctx context.Context, language string, minMatches, limit int) ([]domain.PlayerRating, error) {
	var rows []ratingRow
	q := r.db.NewSelect().
		Model(&rows).
		Where("wins + losses + draws >= ?", minMatches).
		Order("current_rating DESC", "participant_id ASC").
		Limit(limit)
	if language != "" {
		q = q.Where("language = ?", language)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	ratings := make([]domain.PlayerRating, 0, len(rows))
	for _, row := range rows {
		ratings = append(ratings, row.toDomain())
	}
	return ratings, nil
}

func (r *RatingRepository) History(ctx context.Context, participantID string, limit int) ([]domain.RatingHistory, error) {
	var rows []historyRow
	err := r.db.NewSelect().
		Model(&rows).
		Where("participant_id = ?", participantID).
		Order("created_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("rating history: %w", err)
	}
	history := make([]domain.RatingHistory, 0, len(rows))
	for _, row := range rows {
		history = append(history, row.toDomain())
	}
	return history, nil
}
