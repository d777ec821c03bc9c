package postgres

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"

	"lingo-challenge-service/internal/domain"
)

type challengeRow struct {
	bun.BaseModel `bun:"table:challenges"`

	Code             string          `bun:"code,pk"`
	CreatorID        string          `bun:"creator_id"`
	ChildProfileID   string          `bun:"child_profile_id"`
	Language         string          `bun:"language"`
	Category         string          `bun:"category"`
	Difficulty       string          `bun:"difficulty"`
	QuestionCount    int             `bun:"question_count"`
	TimeLimitSeconds int             `bun:"time_limit_seconds"`
	Questions        json.RawMessage `bun:"questions,type:jsonb"`
	Active           bool            `bun:"active"`
	ExpiresAt        *time.Time      `bun:"expires_at"`
	TotalAttempts    int             `bun:"total_attempts"`
	TotalCompletions int             `bun:"total_completions"`
	AverageScore     float64         `bun:"average_score"`
	CreatedAt        time.Time       `bun:"created_at"`
}

func challengeToRow(c domain.Challenge) (challengeRow, error) {
	questions, err := json.Marshal(c.Questions)
	if err != nil {
		return challengeRow{}, fmt.Errorf("marshal questions: %w", err)
	}
	return challengeRow{
		Code:             c.Code,
		CreatorID:        c.CreatorID,
		ChildProfileID:   c.ChildProfileID,
		Language:         c.Language,
		Category:         c.Category,
		Difficulty:       c.Difficulty,
		QuestionCount:    c.QuestionCount,
		TimeLimitSeconds: c.TimeLimitSeconds,
		Questions:        questions,
		Active:           c.Active,
		ExpiresAt:        c.ExpiresAt,
		TotalAttempts:    c.TotalAttempts,
		TotalCompletions: c.TotalCompletions,
		AverageScore:     c.AverageScore,
		CreatedAt:        c.CreatedAt,
	}, nil
}

func (r challengeRow) toDomain() (domain.Challenge, error) {
	var questions []domain.Question
	if err := json.Unmarshal(r.Questions, &questions); err != nil {
		return domain.Challenge{}, fmt.Errorf("unmarshal questions: %w", err)
	}
	return domain.Challenge{
		Code:             r.Code,
		CreatorID:        r.CreatorID,
		ChildProfileID:   r.ChildProfileID,
		Language:         r.Language,
		Category:         r.Category,
		Difficulty:       r.Difficulty,
		QuestionCount:    r.QuestionCount,
		TimeLimitSeconds: r.TimeLimitSeconds,
		Questions:        questions,
		Active:           r.Active,
		ExpiresAt:        r.ExpiresAt,
		TotalAttempts:    r.TotalAttempts,
		TotalCompletions: r.TotalCompletions,
		AverageScore:     r.AverageScore,
		CreatedAt:        r.CreatedAt,
	}, nil
}

type attemptRow struct {
	bun.BaseModel `bun:"table:challenge_attempts"`

	ID                  string          `bun:"id,pk"`
	ChallengeCode       string          `bun:"challenge_code"`
	ParticipantName     string          `bun:"participant_name"`
	ParticipantLocation string          `bun:"participant_location"`
	ParticipantID       *string         `bun:"participant_id"`
	Score               int             `bun:"score"`
	MaxScore            int             `bun:"max_score"`
	Percentage          float64         `bun:"percentage"`
	TimeTakenSeconds    int             `bun:"time_taken_seconds"`
	Answers             json.RawMessage `bun:"answers,type:jsonb"`
	Completed           bool            `bun:"completed"`
	CompletedAt         *time.Time      `bun:"completed_at"`
	StartedAt           time.Time       `bun:"started_at"`
}

func attemptToRow(a domain.ChallengeAttempt) (attemptRow, error) {
	answers := a.Answers
	if answers == nil {
		answers = []int{}
	}
	raw, err := json.Marshal(answers)
	if err != nil {
		return attemptRow{}, fmt.Errorf("marshal answers: %w", err)
	}
	return attemptRow{
		ID:                  a.ID,
		ChallengeCode:       a.ChallengeCode,
		ParticipantName:     a.ParticipantName,
		ParticipantLocation: a.ParticipantLocation,
		ParticipantID:       a.ParticipantID,
		Score:               a.Score,
		MaxScore:            a.MaxScore,
		Percentage:          a.Percentage,
		TimeTakenSeconds:    a.TimeTakenSeconds,
		Answers:             raw,
		Completed:           a.Completed,
		CompletedAt:         a.CompletedAt,
		StartedAt:           a.StartedAt,
	}, nil
}

func (r attemptRow) toDomain() (domain.ChallengeAttempt, error) {
	var answers []int
	if len(r.Answers) > 0 {
		if err := json.Unmarshal(r.Answers, &answers); err != nil {
			return domain.ChallengeAttempt{}, fmt.Errorf("unmarshal answers: %w", err)
		}
	}
	return domain.ChallengeAttempt{
		ID:                  r.ID,
		ChallengeCode:       r.ChallengeCode,
		ParticipantName:     r.ParticipantName,
		ParticipantLocation: r.ParticipantLocation,
		ParticipantID:       r.ParticipantID,
		Score:               r.Score,
		MaxScore:            r.MaxScore,
		Percentage:          r.Percentage,
		TimeTakenSeconds:    r.TimeTakenSeconds,
		Answers:             answers,
		Completed:           r.Completed,
		CompletedAt:         r.CompletedAt,
		StartedAt:           r.StartedAt,
	}, nil
}

type quotaRow struct {
	bun.BaseModel `bun:"table:creator_quotas"`

	CreatorID              string    `bun:"creator_id,pk"`
	ChallengesCreatedToday int       `bun:"challenges_created_today"`
	TotalChallengesCreated int       `bun:"total_challenges_created"`
	LastResetDate          time.Time `bun:"last_reset_date"`
}

func (r quotaRow) toDomain() domain.Quota {
	return domain.Quota{
		CreatorID:              r.CreatorID,
		ChallengesCreatedToday: r.ChallengesCreatedToday,
		TotalChallengesCreated: r.TotalChallengesCreated,
		LastResetDate:          r.LastResetDate,
	}
}

type ratingRow struct {
	bun.BaseModel `bun:"table:player_ratings"`

	ParticipantID     string    `bun:"participant_id,pk"`
	CurrentRating     int       `bun:"current_rating"`
	HighestRating     int       `bun:"highest_rating"`
	LowestRating      int       `bun:"lowest_rating"`
	Wins              int       `bun:"wins"`
	Losses            int       `bun:"losses"`
	Draws             int       `bun:"draws"`
	CurrentWinStreak  int       `bun:"current_win_streak"`
	BestWinStreak     int       `bun:"best_win_streak"`
	CurrentLossStreak int       `bun:"current_loss_streak"`
	UnderdogWins      int       `bun:"underdog_wins"`
	GiantSlayerWins   int       `bun:"giant_slayer_wins"`
	RankTitle         string    `bun:"rank_title"`
	Language          string    `bun:"language"`
	UpdatedAt         time.Time `bun:"updated_at"`
}

func ratingToRow(r domain.PlayerRating) ratingRow {
	return ratingRow{
		ParticipantID:     r.ParticipantID,
		CurrentRating:     r.CurrentRating,
		HighestRating:     r.HighestRating,
		LowestRating:      r.LowestRating,
		Wins:              r.Wins,
		Losses:            r.Losses,
		Draws:             r.Draws,
		CurrentWinStreak:  r.CurrentWinStreak,
		BestWinStreak:     r.BestWinStreak,
		CurrentLossStreak: r.CurrentLossStreak,
		UnderdogWins:      r.UnderdogWins,
		GiantSlayerWins:   r.GiantSlayerWins,
		RankTitle:         r.RankTitle,
		Language:          r.Language,
		UpdatedAt:         r.UpdatedAt,
	}
}

func (r ratingRow) toDomain() domain.PlayerRating {
	return domain.PlayerRating{
		ParticipantID:     r.ParticipantID,
		CurrentRating:     r.CurrentRating,
		HighestRating:     r.HighestRating,
		LowestRating:      r.LowestRating,
		Wins:              r.Wins,
		Losses:            r.Losses,
		Draws:             r.Draws,
		CurrentWinStreak:  r.CurrentWinStreak,
		BestWinStreak:     r.BestWinStreak,
		CurrentLossStreak: r.CurrentLossStreak,
		UnderdogWins:      r.UnderdogWins,
		GiantSlayerWins:   r.GiantSlayerWins,
		RankTitle:         r.RankTitle,
		Language:          r.Language,
		UpdatedAt:         r.UpdatedAt,
	}
}

type historyRow struct {
	bun.BaseModel `bun:"table:rating_history"`

	ID             string    `bun:"id,pk"`
	ParticipantID  string    `bun:"participant_id"`
	RatingBefore   int       `bun:"rating_before"`
	RatingAfter    int       `bun:"rating_after"`
	Change         int       `bun:"change"`
	OpponentRating int       `bun:"opponent_rating"`
	IsWin          bool      `bun:"is_win"`
	IsDraw         bool      `bun:"is_draw"`
	CreatedAt      time.Time `bun:"created_at"`
}

func historyToRow(h domain.RatingHistory) historyRow {
	return historyRow{
		ID:             h.ID,
		ParticipantID:  h.ParticipantID,
		RatingBefore:   h.RatingBefore,
		RatingAfter:    h.RatingAfter,
		Change:         h.Change,
		OpponentRating: h.OpponentRating,
		IsWin:          h.IsWin,
		IsDraw:         h.IsDraw,
		CreatedAt:      h.CreatedAt,
	}
}

func (r historyRow) toDomain() domain.RatingHistory {
	return domain.RatingHistory{
		ID:             r.ID,
		ParticipantID:  r.ParticipantID,
		RatingBefore:   r.RatingBefore,
		RatingAfter:    r.RatingAfter,
		Change:         r.Change,
		OpponentRating: r.OpponentRating,
		IsWin:          r.IsWin,
		IsDraw:         r.IsDraw,
		CreatedAt:      r.CreatedAt,
	}
}

type badgeRow struct {
	bun.BaseModel `bun:"table:badges"`

	ID            int64      `bun:"id,pk,autoincrement"`
	Name          string     `bun:"name"`
	Description   string     `bun:"description"`
	Icon          string     `bun:"icon"`
	Rarity        string     `bun:"rarity"`
	Category      string     `bun:"category"`
	CriteriaType  string     `bun:"criteria_type"`
	CriteriaValue float64    `bun:"criteria_value"`
	PointBonus    int        `bun:"point_bonus"`
	Active        bool       `bun:"active"`
	SeasonalFrom  *time.Time `bun:"seasonal_from"`
	SeasonalUntil *time.Time `bun:"seasonal_until"`
}

func (r badgeRow) toDomain() domain.Badge {
	return domain.Badge{
		ID:            r.ID,
		Name:          r.Name,
		Description:   r.Description,
		Icon:          r.Icon,
		Rarity:        r.Rarity,
		Category:      r.Category,
		CriteriaType:  r.CriteriaType,
		CriteriaValue: r.CriteriaValue,
		PointBonus:    r.PointBonus,
		Active:        r.Active,
		SeasonalFrom:  r.SeasonalFrom,
		SeasonalUntil: r.SeasonalUntil,
	}
}

type grantRow struct {
	bun.BaseModel `bun:"table:badge_grants"`

	ParticipantID string    `bun:"participant_id,pk"`
	BadgeID       int64     `bun:"badge_id,pk"`
	PointBonus    int       `bun:"point_bonus"`
	AwardedAt     time.Time `bun:"awarded_at"`
}

type pointsRow struct {
	bun.BaseModel `bun:"table:lifetime_points"`

	ParticipantID string `bun:"participant_id,pk"`
	Points        int    `bun:"points"`
}

func isNoRows(err error) bool {
	return err == sql.ErrNoRows || (err != nil && err.Error() == sql.ErrNoRows.Error())
}

// isUniqueViolation reports a Postgres unique_violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.Field('C') == "23505"
}
