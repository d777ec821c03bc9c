package domain

import "time"

// Question is a multiple-choice question embedded in a challenge snapshot.
// CorrectIndex is a pointer so that snapshots with a missing or stripped
// answer key can still be represented; scoring treats nil as "unknown".
type Question struct {
	ID           string   `json:"id"`
	Prompt       string   `json:"prompt"`
	Options      []string `json:"options"`
	CorrectIndex *int     `json:"correct_index,omitempty"`
	MediaURL     string   `json:"media_url,omitempty"`
}

// Challenge is a short shareable quiz generated from curriculum content.
// The question snapshot is immutable once created; only the aggregates and
// the active/expired state may change afterwards.
type Challenge struct {
	Code             string     `json:"code"`
	CreatorID        string     `json:"creator_id"`
	ChildProfileID   string     `json:"child_profile_id,omitempty"`
	Language         string     `json:"language"`
	Category         string     `json:"category"`
	Difficulty       string     `json:"difficulty"`
	QuestionCount    int        `json:"question_count"`
	TimeLimitSeconds int        `json:"time_limit_seconds"` // display-only, never enforced
	Questions        []Question `json:"questions"`
	Active           bool       `json:"active"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	TotalAttempts    int        `json:"total_attempts"`
	TotalCompletions int        `json:"total_completions"`
	AverageScore     float64    `json:"average_score"`
	CreatedAt        time.Time  `json:"created_at"`
}

// Expired reports whether the challenge has passed its optional expiry.
func (c Challenge) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && now.After(*c.ExpiresAt)
}

// ChallengeAttempt is a single participant's run through a challenge.
// It is created in-progress and transitions exactly once to completed.
type ChallengeAttempt struct {
	ID                  string     `json:"id"`
	ChallengeCode       string     `json:"challenge_code"`
	ParticipantName     string     `json:"participant_name"`
	ParticipantLocation string     `json:"participant_location,omitempty"`
	ParticipantID       *string    `json:"participant_id,omitempty"` // nil = guest
	Score               int        `json:"score"`
	MaxScore            int        `json:"max_score"`
	Percentage          float64    `json:"percentage"`
	TimeTakenSeconds    int        `json:"time_taken_seconds"`
	Answers             []int      `json:"answers"`
	Completed           bool       `json:"completed"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
	StartedAt           time.Time  `json:"started_at"`
}

// Registered reports whether the attempt is linked to a registered identity.
func (a ChallengeAttempt) Registered() bool {
	return a.ParticipantID != nil && *a.ParticipantID != ""
}

// Quota tracks a creator's daily challenge-creation allowance.
type Quota struct {
	CreatorID              string    `json:"creator_id"`
	ChallengesCreatedToday int       `json:"challenges_created_today"`
	TotalChallengesCreated int       `json:"total_challenges_created"`
	LastResetDate          time.Time `json:"last_reset_date"`
}

// Rollover applies the lazy day-reset: if the stored reset date is before
// today, the daily counter goes back to zero. It must run before any check
// or increment so LastResetDate equals "today" after every mutating call.
func (q *Quota) Rollover(today time.Time) {
	day := today.UTC().Truncate(24 * time.Hour)
	if q.LastResetDate.Before(day) {
		q.ChallengesCreatedToday = 0
		q.LastResetDate = day
	}
}

// PlayerRating holds a registered participant's persistent competitive state.
type PlayerRating struct {
	ParticipantID     string    `json:"participant_id"`
	CurrentRating     int       `json:"current_rating"`
	HighestRating     int       `json:"highest_rating"`
	LowestRating      int       `json:"lowest_rating"`
	Wins              int       `json:"wins"`
	Losses            int       `json:"losses"`
	Draws             int       `json:"draws"`
	CurrentWinStreak  int       `json:"current_win_streak"`
	BestWinStreak     int       `json:"best_win_streak"`
	CurrentLossStreak int       `json:"current_loss_streak"`
	UnderdogWins      int       `json:"underdog_wins"`
	GiantSlayerWins   int       `json:"giant_slayer_wins"`
	RankTitle         string    `json:"rank_title"`
	Language          string    `json:"language,omitempty"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// TotalMatches is the number of rating-affecting matches played.
func (r PlayerRating) TotalMatches() int {
	return r.Wins + r.Losses + r.Draws
}

// RatingHistory is the immutable audit row written for every rating-affecting
// match, one per participant. A PlayerRating's CurrentRating always equals
// the newest history row's RatingAfter for that participant.
type RatingHistory struct {
	ID             string    `json:"id"`
	ParticipantID  string    `json:"participant_id"`
	RatingBefore   int       `json:"rating_before"`
	RatingAfter    int       `json:"rating_after"`
	Change         int       `json:"change"`
	OpponentRating int       `json:"opponent_rating"`
	IsWin          bool      `json:"is_win"`
	IsDraw         bool      `json:"is_draw"`
	CreatedAt      time.Time `json:"created_at"`
}

// RatingDelta summarizes one side of an applied match result.
type RatingDelta struct {
	ParticipantID string `json:"participant_id"`
	RatingBefore  int    `json:"rating_before"`
	RatingAfter   int    `json:"rating_after"`
	Change        int    `json:"change"`
}

// Badge criteria types recognized by the awarder. Anything else never matches.
const (
	CriteriaChallengesCompleted = "CHALLENGES_COMPLETED"
	CriteriaMatchesWon          = "MATCHES_WON"
	CriteriaBestWinStreak       = "BEST_WIN_STREAK"
	CriteriaPerfectChallenges   = "PERFECT_CHALLENGES"
	CriteriaUnderdogWins        = "UNDERDOG_WINS"
	CriteriaGiantSlayerWins     = "GIANT_SLAYER_WINS"
	CriteriaRatingReached       = "RATING_REACHED"
	CriteriaMatchesPlayed       = "MATCHES_PLAYED"
	CriteriaAverageAccuracy     = "AVERAGE_ACCURACY"
)

// Badge is read-only catalog data describing one achievement threshold.
type Badge struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	Icon          string     `json:"icon"`
	Rarity        string     `json:"rarity"`
	Category      string     `json:"category"`
	CriteriaType  string     `json:"criteria_type"`
	CriteriaValue float64    `json:"criteria_value"`
	PointBonus    int        `json:"point_bonus"`
	Active        bool       `json:"active"`
	SeasonalFrom  *time.Time `json:"seasonal_from,omitempty"`
	SeasonalUntil *time.Time `json:"seasonal_until,omitempty"`
}

// InSeason reports whether the badge may be granted at the given time.
// Non-seasonal badges always pass.
func (b Badge) InSeason(now time.Time) bool {
	if b.SeasonalFrom == nil || b.SeasonalUntil == nil {
		return true
	}
	return !now.Before(*b.SeasonalFrom) && !now.After(*b.SeasonalUntil)
}

// BadgeGrant records that a participant holds a badge. At most one grant
// exists per (participant, badge) pair. PointBonus snapshots the badge's
// bonus at award time so the lifetime point credit stays paired with the
// grant that earned it.
type BadgeGrant struct {
	ParticipantID string    `json:"participant_id"`
	BadgeID       int64     `json:"badge_id"`
	PointBonus    int       `json:"point_bonus"`
	AwardedAt     time.Time `json:"awarded_at"`
}

// AwardedBadge is the summary returned for each newly granted badge.
type AwardedBadge struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Icon        string    `json:"icon"`
	Rarity      string    `json:"rarity"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	PointBonus  int       `json:"point_bonus"`
	AwardedAt   time.Time `json:"awarded_at"`
}

// CurriculumItem is one entry of the external curriculum corpus pool.
type CurriculumItem struct {
	ID           string `json:"id"`
	DisplayValue string `json:"display_value"`
	Translation  string `json:"translation"`
	Romanization string `json:"romanization,omitempty"`
	MediaURL     string `json:"media_url,omitempty"`
}

// GrammarExercise is a pre-authored grammar drill usable as a question.
type GrammarExercise struct {
	ID            string   `json:"id"`
	Type          string   `json:"type"`
	Prompt        string   `json:"prompt"`
	CorrectAnswer string   `json:"correct_answer"`
	Distractors   []string `json:"distractors"`
}

// GrammarRule backs the synthetic-question fallback tier.
type GrammarRule struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Example string `json:"example"`
}

// Language is resolved through the injected LanguageCatalog.
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}
