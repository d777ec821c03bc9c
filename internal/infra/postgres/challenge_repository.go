package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/uptrace/bun"

	"lingo-challenge-service/internal/app"
	"lingo-challenge-service/internal/domain"
)

// ChallengeRepository persists challenges and attempts in Postgres.
// Question snapshots and answer sheets are stored as JSONB.
type ChallengeRepository struct {
	db *bun.DB
}

func NewChallengeRepository(db *bun.DB) *ChallengeRepository {
	return &ChallengeRepository{db: db}
}

func (r *ChallengeRepository) InsertChallenge(ctx context.Context, challenge *domain.Challenge) error {
	row, err := challengeToRow(*challenge)
	if err != nil {
		return err
	}
	if _, err := r.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("challenge code %q: %w", challenge.Code, domain.ErrCodeTaken)
		}
		return fmt.Errorf("insert challenge: %w", err)
	}
	return nil
}

func (r *ChallengeRepository) GetChallenge(ctx context.Context, code string) (domain.Challenge, error) {
	var row challengeRow
	err := r.db.NewSelect().Model(&row).Where("code = ?", code).Scan(ctx)
	if isNoRows(err) {
		return domain.Challenge{}, domain.ErrChallengeNotFound
	}
	if err != nil {
		return domain.Challenge{}, fmt.Errorf("get challenge: %w", err)
	}
	return row.toDomain()
}

// InsertAttempt stores the attempt and bumps the challenge attempt counter
// in the same transaction.
func (r *ChallengeRepository) InsertAttempt(ctx context.Context, attempt *domain.ChallengeAttempt) error {
	row, err := attemptToRow(*attempt)
	if err != nil {
		return err
	}
	return r.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(&row).Exec(ctx); err != nil {
			return fmt.Errorf("insert attempt: %w", err)
		}
		_, err := tx.NewUpdate().
			Model((*challengeRow)(nil)).
			Set("total_attempts = total_attempts + 1").
			Where("code = ?", attempt.ChallengeCode).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("bump attempt count: %w", err)
		}
		return nil
	})
}

func (r *ChallengeRepository) GetAttempt(ctx context.Context, id string) (domain.ChallengeAttempt, error) {
	var row attemptRow
	err := r.db.NewSelect().Model(&row).Where("id = ?", id).Scan(ctx)
	if isNoRows(err) {
		return domain.ChallengeAttempt{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return domain.ChallengeAttempt{}, fmt.Errorf("get attempt: %w", err)
	}
	return row.toDomain()
}

// CompleteAttempt finalizes the attempt and refreshes the challenge
// aggregates in one transaction. The guarded UPDATE makes completion
// one-way: a second call for the same attempt returns ErrAttemptCompleted.
func (r *ChallengeRepository) CompleteAttempt(ctx context.Context, attempt *domain.ChallengeAttempt) error {
	row, err := attemptToRow(*attempt)
	if err != nil {
		return err
	}
	return r.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model(&row).
			Column("score", "max_score", "percentage", "time_taken_seconds", "answers", "completed", "completed_at").
			Where("id = ? AND completed = FALSE", attempt.ID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("complete attempt: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return domain.ErrAttemptCompleted
		}

		var completions int
		var avg sql.NullFloat64
		err = tx.NewSelect().
			Model((*attemptRow)(nil)).
			ColumnExpr("count(*), avg(percentage)").
			Where("challenge_code = ? AND completed = TRUE", attempt.ChallengeCode).
			Scan(ctx, &completions, &avg)
		if err != nil {
			return fmt.Errorf("aggregate completions: %w", err)
		}
		_, err = tx.NewUpdate().
			Model((*challengeRow)(nil)).
			Set("total_completions = ?", completions).
			Set("average_score = ?", avg.Float64).
			Where("code = ?", attempt.ChallengeCode).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("refresh challenge aggregates: %w", err)
		}
		return nil
	})
}

func (r *ChallengeRepository) CompletedAttempts(ctx context.Context, challengeCode string) ([]domain.ChallengeAttempt, error) {
	var rows []attemptRow
	err := r.db.NewSelect().
		Model(&rows).
		Where("challenge_code = ? AND completed = TRUE", challengeCode).
		Order("percentage DESC", "time_taken_seconds ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("completed attempts: %w", err)
	}
	attempts := make([]domain.ChallengeAttempt, 0, len(rows))
	for _, row := range rows {
		attempt, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, attempt)
	}
	return attempts, nil
}

func (r *ChallengeRepository) AttemptStats(ctx context.Context, participantID string) (app.AttemptStats, error) {
	var stats struct {
		Completed int             `bun:"completed"`
		Perfect   int             `bun:"perfect"`
		AvgPct    sql.NullFloat64 `bun:"avg_pct"`
	}
	err := r.db.NewSelect().
		Model((*attemptRow)(nil)).
		ColumnExpr("count(*) AS completed").
		ColumnExpr("count(*) FILTER (WHERE score = max_score AND max_score > 0) AS perfect").
		ColumnExpr("avg(percentage) AS avg_pct").
		Where("participant_id = ? AND completed = TRUE", participantID).
		Scan(ctx, &stats)
	if err != nil {
		return app.AttemptStats{}, fmt.Errorf("attempt stats: %w", err)
	}
	return app.AttemptStats{
		Completed:       stats.Completed,
		Perfect:         stats.Perfect,
		AverageAccuracy: stats.AvgPct.Float64,
	}, nil
}
