package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"lingo-challenge-service/internal/domain"
)

// CurriculumLoader serves curriculum items and grammar content from
// Postgres over a pgx pool. Sampling is done server-side so large pools
// never cross the wire.
type CurriculumLoader struct {
	pool *pgxpool.Pool
}

func NewCurriculumLoader(pool *pgxpool.Pool) *CurriculumLoader {
	return &CurriculumLoader{pool: pool}
}

func (l *CurriculumLoader) Count(ctx context.Context, language, category string) (int, error) {
	var count int
	err := l.pool.QueryRow(ctx,
		`SELECT count(*) FROM curriculum_items WHERE language=$1 AND category=$2 AND active`,
		language, category).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count curriculum: %w", err)
	}
	return count, nil
}

func (l *CurriculumLoader) Sample(ctx context.Context, language, category string, n int, excludeIDs []string) ([]domain.CurriculumItem, error) {
	if excludeIDs == nil {
		excludeIDs = []string{}
	}
	rows, err := l.pool.Query(ctx,
		`SELECT id, display_value, translation, romanization, media_url
		 FROM curriculum_items
		 WHERE language=$1 AND category=$2 AND active AND NOT (id = ANY($3))
		 ORDER BY random() LIMIT $4`,
		language, category, excludeIDs, n)
	if err != nil {
		return nil, fmt.Errorf("sample curriculum: %w", err)
	}
	defer rows.Close()

	var items []domain.CurriculumItem
	for rows.Next() {
		var item domain.CurriculumItem
		if err := rows.Scan(&item.ID, &item.DisplayValue,
			&item.Translation, &item.Romanization, &item.MediaURL); err != nil {
			return nil, fmt.Errorf("scan curriculum item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (l *CurriculumLoader) MultipleChoiceExercises(ctx context.Context, language, difficulty string) ([]domain.GrammarExercise, error) {
	return l.exercises(ctx,
		`SELECT id, type, prompt, correct_answer, distractors
		 FROM grammar_exercises
		 WHERE language=$1 AND difficulty=$2 AND type='multiple_choice'`,
		language, difficulty)
}

func (l *CurriculumLoader) ExercisesForTopic(ctx context.Context, language, difficulty string) ([]domain.GrammarExercise, error) {
	return l.exercises(ctx,
		`SELECT id, type, prompt, correct_answer, distractors
		 FROM grammar_exercises
		 WHERE language=$1 AND difficulty=$2`,
		language, difficulty)
}

func (l *CurriculumLoader) exercises(ctx context.Context, query, language, difficulty string) ([]domain.GrammarExercise, error) {
	rows, err := l.pool.Query(ctx, query, language, difficulty)
	if err != nil {
		return nil, fmt.Errorf("load grammar exercises: %w", err)
	}
	defer rows.Close()

	var exercises []domain.GrammarExercise
	for rows.Next() {
		var ex domain.GrammarExercise
		if err := rows.Scan(&ex.ID, &ex.Type, &ex.Prompt, &ex.CorrectAnswer, &ex.Distractors); err != nil {
			return nil, fmt.Errorf("scan grammar exercise: %w", err)
		}
		exercises = append(exercises, ex)
	}
	return exercises, rows.Err()
}

func (l *CurriculumLoader) Rules(ctx context.Context, language, difficulty string) ([]domain.GrammarRule, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT id, title, example
		 FROM grammar_rules WHERE language=$1 AND difficulty=$2`,
		language, difficulty)
	if err != nil {
		return nil, fmt.Errorf("load grammar rules: %w", err)
	}
	defer rows.Close()

	var rules []domain.GrammarRule
	for rows.Next() {
		var rule domain.GrammarRule
		if err := rows.Scan(&rule.ID, &rule.Title, &rule.Example); err != nil {
			return nil, fmt.Errorf("scan grammar rule: %w", err)
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}
