package app

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"lingo-challenge-service/internal/domain"
)

// TimeBand maps an answer-time ceiling (seconds) to a speed multiplier.
// Bands are ordered fastest first; the last band is open-ended.
type TimeBand struct {
	MaxSeconds float64
	Multiplier decimal.Decimal
}

// StreakTier maps a minimum consecutive-correct count to a multiplier.
type StreakTier struct {
	MinConsecutive int
	Multiplier     decimal.Decimal
}

// UnderdogTier rewards beating a higher-rated opponent, keyed by rating-gap level.
type UnderdogTier struct {
	ScoreBonus decimal.Decimal // fraction added to the total score
	FlatPoints int
}

// ScoringConfig holds every scoring constant. Build it once via
// DefaultScoringConfig and treat it as immutable; tests inject alternates.
type ScoringConfig struct {
	BasePoints            int
	TimeBands             []TimeBand
	DifficultyMultipliers map[string]decimal.Decimal
	StreakTiers           []StreakTier
	FirstAttemptBonus     int
	CompletionBonus       int
	PerfectBonus          int
	UnderdogTiers         []UnderdogTier
	UnderdogGapStep       int
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// DefaultScoringConfig returns production defaults.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		BasePoints: 100,
		TimeBands: []TimeBand{
			{MaxSeconds: 5, Multiplier: dec("1.5")},
			{MaxSeconds: 10, Multiplier: dec("1.25")},
			{MaxSeconds: 20, Multiplier: dec("1.0")},
			{MaxSeconds: math.Inf(1), Multiplier: dec("0.8")},
		},
		DifficultyMultipliers: map[string]decimal.Decimal{
			"easy":   dec("1.0"),
			"medium": dec("1.25"),
			"hard":   dec("1.5"),
		},
		StreakTiers: []StreakTier{
			{MinConsecutive: 2, Multiplier: dec("1.1")},
			{MinConsecutive: 5, Multiplier: dec("1.25")},
			{MinConsecutive: 10, Multiplier: dec("1.5")},
		},
		FirstAttemptBonus: 10,
		CompletionBonus:   50,
		PerfectBonus:      100,
		UnderdogTiers: []UnderdogTier{
			{ScoreBonus: dec("0.10"), FlatPoints: 25},
			{ScoreBonus: dec("0.20"), FlatPoints: 50},
			{ScoreBonus: dec("0.30"), FlatPoints: 100},
		},
		UnderdogGapStep: 200,
	}
}

// ScoringEngine turns raw answers into scores. All methods are pure aside
// from warning logs on malformed snapshot data.
type ScoringEngine struct {
	cfg ScoringConfig
	log *logrus.Logger
}

func NewScoringEngine(cfg ScoringConfig, log *logrus.Logger) *ScoringEngine {
	return &ScoringEngine{cfg: cfg, log: log}
}

// DetailedResult explains the outcome for a single question.
// CorrectAnswer is -1 when the snapshot carries no usable answer key.
type DetailedResult struct {
	QuestionID    string `json:"question_id"`
	Correct       bool   `json:"correct"`
	UserAnswer    int    `json:"user_answer"`
	CorrectAnswer int    `json:"correct_answer"`
}

// ScoredResult is the raw percentage-based outcome of an attempt.
type ScoredResult struct {
	Score           int              `json:"score"`
	MaxScore        int              `json:"max_score"`
	Percentage      float64          `json:"percentage"`
	DetailedResults []DetailedResult `json:"detailed_results"`
}

// CalculateScore grades answers against the question snapshot. Answers beyond
// the question count are ignored; unanswered questions count as incorrect.
// A question with a missing or out-of-range answer key is graded incorrect
// and logged as a data-integrity anomaly, never raised to the caller.
func (e *ScoringEngine) CalculateScore(questions []domain.Question, answers []int) ScoredResult {
	results := make([]DetailedResult, 0, len(questions))
	score := 0

	for i, q := range questions {
		userAnswer := -1
		if i < len(answers) {
			userAnswer = answers[i]
		}

		correctAnswer := -1
		if q.CorrectIndex != nil && *q.CorrectIndex >= 0 && *q.CorrectIndex < len(q.Options) {
			correctAnswer = *q.CorrectIndex
		} else {
			e.log.WithFields(logrus.Fields{
				"question_id": q.ID,
				"options":     len(q.Options),
			}).Warn("question snapshot has no usable correct_index, grading as incorrect")
		}

		correct := correctAnswer >= 0 && userAnswer == correctAnswer
		if correct {
			score++
		}
		results = append(results, DetailedResult{
			QuestionID:    q.ID,
			Correct:       correct,
			UserAnswer:    userAnswer,
			CorrectAnswer: correctAnswer,
		})
	}

	maxScore := len(questions)
	percentage := 0.0
	if maxScore > 0 {
		percentage = round1(float64(score) / float64(maxScore) * 100)
	}
	return ScoredResult{
		Score:           score,
		MaxScore:        maxScore,
		Percentage:      percentage,
		DetailedResults: results,
	}
}

// AnswerBreakdown itemizes the reward for one answer. Every component is
// zero when the answer was wrong.
type AnswerBreakdown struct {
	BasePoints           int     `json:"base_points"`
	TimeMultiplier       float64 `json:"time_multiplier"`
	DifficultyMultiplier float64 `json:"difficulty_multiplier"`
	StreakMultiplier     float64 `json:"streak_multiplier"`
	FirstAttemptBonus    int     `json:"first_attempt_bonus"`
	FinalPoints          int     `json:"final_points"`
}

// AnswerScore computes the gamified reward for a single answer:
// floor(base x time x difficulty x streak) + first-attempt bonus.
// The multiplier chain runs on decimals so chained fractions don't drift.
func (e *ScoringEngine) AnswerScore(basePoints int, answerTimeSeconds float64, difficulty string, consecutiveCorrect int, isCorrect, isFirstAttempt bool) AnswerBreakdown {
	if !isCorrect {
		return AnswerBreakdown{}
	}

	tm := e.timeMultiplier(answerTimeSeconds)
	dm := e.difficultyMultiplier(difficulty)
	sm := e.streakMultiplier(consecutiveCorrect)

	points := decimal.NewFromInt(int64(basePoints)).Mul(tm).Mul(dm).Mul(sm).Floor()

	bonus := 0
	if isFirstAttempt {
		bonus = e.cfg.FirstAttemptBonus
	}

	return AnswerBreakdown{
		BasePoints:           basePoints,
		TimeMultiplier:       tm.InexactFloat64(),
		DifficultyMultiplier: dm.InexactFloat64(),
		StreakMultiplier:     sm.InexactFloat64(),
		FirstAttemptBonus:    bonus,
		FinalPoints:          int(points.IntPart()) + bonus,
	}
}

// AnswerInput is one answer of an attempt, in order.
type AnswerInput struct {
	Correct        bool
	TimeSeconds    float64
	IsFirstAttempt bool
}

// ChallengeReward aggregates the gamified score for a whole attempt.
type ChallengeReward struct {
	TotalScore            int               `json:"total_score"`
	CompletionBonus       int               `json:"completion_bonus"`
	PerfectBonus          int               `json:"perfect_bonus"`
	UnderdogLevel         int               `json:"underdog_level"`
	UnderdogFlatPoints    int               `json:"underdog_flat_points"`
	FinalScore            int               `json:"final_score"`
	CorrectCount          int               `json:"correct_count"`
	MaxStreak             int               `json:"max_streak"`
	Accuracy              float64           `json:"accuracy"`
	AverageTimeMultiplier float64           `json:"average_time_multiplier"`
	Breakdown             []AnswerBreakdown `json:"breakdown"`
}

// ChallengeScore walks the answers in order, accumulating per-answer rewards
// with streak tracking, then applies completion, perfect and underdog
// bonuses. Ratings are optional; the underdog bonus needs both plus a win by
// the lower-rated player.
func (e *ScoringEngine) ChallengeScore(answers []AnswerInput, difficulty string, opponentRating, playerRating *int, playerWon bool) ChallengeReward {
	reward := ChallengeReward{Breakdown: make([]AnswerBreakdown, 0, len(answers))}

	consecutive := 0
	timeMultSum := decimal.Zero
	total := 0
	for _, a := range answers {
		if a.Correct {
			consecutive++
			reward.CorrectCount++
			if consecutive > reward.MaxStreak {
				reward.MaxStreak = consecutive
			}
		} else {
			consecutive = 0
		}

		b := e.AnswerScore(e.cfg.BasePoints, a.TimeSeconds, difficulty, consecutive, a.Correct, a.IsFirstAttempt)
		reward.Breakdown = append(reward.Breakdown, b)
		total += b.FinalPoints
		timeMultSum = timeMultSum.Add(e.timeMultiplier(a.TimeSeconds))
	}

	if playerRating != nil && opponentRating != nil && playerWon && *playerRating < *opponentRating {
		level := (*opponentRating-*playerRating)/e.cfg.UnderdogGapStep + 1
		if level > len(e.cfg.UnderdogTiers) {
			level = len(e.cfg.UnderdogTiers)
		}
		tier := e.cfg.UnderdogTiers[level-1]
		boosted := decimal.NewFromInt(int64(total)).Mul(decimal.NewFromInt(1).Add(tier.ScoreBonus)).Floor()
		total = int(boosted.IntPart()) + tier.FlatPoints
		reward.UnderdogLevel = level
		reward.UnderdogFlatPoints = tier.FlatPoints
	}
	reward.TotalScore = total

	reward.CompletionBonus = e.cfg.CompletionBonus
	if len(answers) > 0 && reward.CorrectCount == len(answers) {
		reward.PerfectBonus = e.cfg.PerfectBonus
	}
	reward.FinalScore = reward.TotalScore + reward.CompletionBonus + reward.PerfectBonus

	if len(answers) > 0 {
		reward.Accuracy = round1(float64(reward.CorrectCount) / float64(len(answers)) * 100)
		avg := timeMultSum.Div(decimal.NewFromInt(int64(len(answers))))
		reward.AverageTimeMultiplier = avg.InexactFloat64()
	}
	return reward
}

func (e *ScoringEngine) timeMultiplier(seconds float64) decimal.Decimal {
	for _, band := range e.cfg.TimeBands {
		if seconds <= band.MaxSeconds {
			return band.Multiplier
		}
	}
	return decimal.NewFromInt(1)
}

func (e *ScoringEngine) difficultyMultiplier(difficulty string) decimal.Decimal {
	if m, ok := e.cfg.DifficultyMultipliers[strings.ToLower(difficulty)]; ok {
		return m
	}
	return decimal.NewFromInt(1)
}

func (e *ScoringEngine) streakMultiplier(consecutive int) decimal.Decimal {
	mult := decimal.NewFromInt(1)
	for _, tier := range e.cfg.StreakTiers {
		if consecutive >= tier.MinConsecutive {
			mult = tier.Multiplier
		}
	}
	return mult
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
