package app

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"lingo-challenge-service/internal/domain"
)

// RatingRepository persists player ratings and their audit history.
// ApplyMatch must write both rating rows and both history rows as one
// atomic unit; no reader may observe a half-applied match.
type RatingRepository interface {
	Get(ctx context.Context, participantID string) (domain.PlayerRating, bool, error)
	Create(ctx context.Context, rating *domain.PlayerRating) error
	ApplyMatch(ctx context.Context, a, b *domain.PlayerRating, historyA, historyB *domain.RatingHistory) error
	Leaderboard(ctx context.Context, language string, minMatches, limit int) ([]domain.PlayerRating, error)
	History(ctx context.Context, participantID string, limit int) ([]domain.RatingHistory, error)
}

// LeaderboardCache receives write-through rating updates (optional).
type LeaderboardCache interface {
	Record(ctx context.Context, participantID string, rating int) error
}

// RankTitle maps a minimum rating to a display title.
type RankTitle struct {
	MinRating int
	Title     string
}

// RatingConfig holds the ELO constants. Immutable once built.
type RatingConfig struct {
	InitialRating         int
	KFactorNew            int
	KFactorEstablished    int
	GamesThreshold        int
	GiantSlayerGap        int
	LeaderboardMinMatches int
	RankTitles            []RankTitle // sorted ascending by MinRating
	DefaultTitle          string
}

func DefaultRatingConfig() RatingConfig {
	return RatingConfig{
		InitialRating:         1000,
		KFactorNew:            32,
		KFactorEstablished:    16,
		GamesThreshold:        10,
		GiantSlayerGap:        200,
		LeaderboardMinMatches: 5,
		RankTitles: []RankTitle{
			{MinRating: 1000, Title: "Apprentice"},
			{MinRating: 1200, Title: "Skilled"},
			{MinRating: 1400, Title: "Expert"},
			{MinRating: 1600, Title: "Master"},
			{MinRating: 1800, Title: "Grandmaster"},
		},
		DefaultTitle: "Novice",
	}
}

// RatingService applies ELO-style rating updates for head-to-head matches
// between registered participants.
type RatingService struct {
	ratings RatingRepository
	cache   LeaderboardCache // may be nil
	cfg     RatingConfig
	log     *logrus.Logger
	now     func() time.Time
}

func NewRatingService(ratings RatingRepository, cache LeaderboardCache, cfg RatingConfig, log *logrus.Logger) *RatingService {
	return &RatingService{ratings: ratings, cache: cache, cfg: cfg, log: log, now: time.Now}
}

// ExpectedScore is the standard logistic ELO expectation. For any pair,
// ExpectedScore(a, b) + ExpectedScore(b, a) == 1.
func ExpectedScore(a, b int) float64 {
	return 1 / (1 + math.Pow(10, float64(b-a)/400))
}

// RatingChange rounds half away from zero so both sides of a match use the
// same convention and deltas stay reproducible.
func RatingChange(rating, opponentRating int, actual float64, k int) int {
	return int(math.Round(float64(k) * (actual - ExpectedScore(rating, opponentRating))))
}

// GetOrCreateRating lazily creates a rating record at the configured
// initial rating with zeroed counters.
func (s *RatingService) GetOrCreateRating(ctx context.Context, participantID string) (domain.PlayerRating, error) {
	rating, ok, err := s.ratings.Get(ctx, participantID)
	if err != nil {
		return domain.PlayerRating{}, fmt.Errorf("load rating: %w", err)
	}
	if ok {
		return rating, nil
	}

	rating = domain.PlayerRating{
		ParticipantID: participantID,
		CurrentRating: s.cfg.InitialRating,
		HighestRating: s.cfg.InitialRating,
		LowestRating:  s.cfg.InitialRating,
		RankTitle:     s.rankTitle(s.cfg.InitialRating),
		UpdatedAt:     s.now(),
	}
	if err := s.ratings.Create(ctx, &rating); err != nil {
		return domain.PlayerRating{}, fmt.Errorf("create rating: %w", err)
	}
	return rating, nil
}

// KFactor is high while a player is new and drops once established.
func (s *RatingService) KFactor(rating domain.PlayerRating) int {
	if rating.TotalMatches() < s.cfg.GamesThreshold {
		return s.cfg.KFactorNew
	}
	return s.cfg.KFactorEstablished
}

// UpdateRatingsAfterMatch applies the match result for both sides. When the
// match is not a draw the first attempt is the winner's. Guests never affect
// or receive ratings; the update is then a documented silent no-op returning
// (nil, nil).
func (s *RatingService) UpdateRatingsAfterMatch(ctx context.Context, winner, loser domain.ChallengeAttempt, isDraw bool) (*domain.RatingDelta, *domain.RatingDelta, error) {
	if !winner.Registered() || !loser.Registered() {
		return nil, nil, nil
	}

	ratingA, err := s.GetOrCreateRating(ctx, *winner.ParticipantID)
	if err != nil {
		return nil, nil, err
	}
	ratingB, err := s.GetOrCreateRating(ctx, *loser.ParticipantID)
	if err != nil {
		return nil, nil, err
	}

	preA, preB := ratingA.CurrentRating, ratingB.CurrentRating
	actualA, actualB := 1.0, 0.0
	if isDraw {
		actualA, actualB = 0.5, 0.5
	}

	// Both deltas come from the same pre-match pair, never sequentially.
	changeA := RatingChange(preA, preB, actualA, s.KFactor(ratingA))
	changeB := RatingChange(preB, preA, actualB, s.KFactor(ratingB))

	now := s.now()
	s.applyResult(&ratingA, changeA, actualA, isDraw, now)
	s.applyResult(&ratingB, changeB, actualB, isDraw, now)

	if !isDraw && preA < preB {
		ratingA.UnderdogWins++
		if preB-preA >= s.cfg.GiantSlayerGap {
			ratingA.GiantSlayerWins++
		}
	}

	ratingA.RankTitle = s.rankTitle(ratingA.CurrentRating)
	ratingB.RankTitle = s.rankTitle(ratingB.CurrentRating)

	historyA := s.historyRow(ratingA.ParticipantID, preA, ratingA.CurrentRating, changeA, preB, actualA == 1.0, isDraw, now)
	historyB := s.historyRow(ratingB.ParticipantID, preB, ratingB.CurrentRating, changeB, preA, false, isDraw, now)

	if err := s.ratings.ApplyMatch(ctx, &ratingA, &ratingB, historyA, historyB); err != nil {
		return nil, nil, fmt.Errorf("apply match: %w", err)
	}
	s.recordLeaderboard(ctx, ratingA, ratingB)

	deltaA := &domain.RatingDelta{ParticipantID: ratingA.ParticipantID, RatingBefore: preA, RatingAfter: ratingA.CurrentRating, Change: changeA}
	deltaB := &domain.RatingDelta{ParticipantID: ratingB.ParticipantID, RatingBefore: preB, RatingAfter: ratingB.CurrentRating, Change: changeB}
	return deltaA, deltaB, nil
}

func (s *RatingService) applyResult(r *domain.PlayerRating, change int, actual float64, isDraw bool, now time.Time) {
	r.CurrentRating += change
	if r.CurrentRating > r.HighestRating {
		r.HighestRating = r.CurrentRating
	}
	if r.CurrentRating < r.LowestRating {
		r.LowestRating = r.CurrentRating
	}

	switch {
	case isDraw:
		r.Draws++
		r.CurrentWinStreak = 0
		r.CurrentLossStreak = 0
	case actual == 1.0:
		r.Wins++
		r.CurrentWinStreak++
		if r.CurrentWinStreak > r.BestWinStreak {
			r.BestWinStreak = r.CurrentWinStreak
		}
		r.CurrentLossStreak = 0
	default:
		r.Losses++
		r.CurrentLossStreak++
		r.CurrentWinStreak = 0
	}
	r.UpdatedAt = now
}

func (s *RatingService) historyRow(participantID string, before, after, change, opponent int, isWin, isDraw bool, now time.Time) *domain.RatingHistory {
	return &domain.RatingHistory{
		ID:             uuid.NewString(),
		ParticipantID:  participantID,
		RatingBefore:   before,
		RatingAfter:    after,
		Change:         change,
		OpponentRating: opponent,
		IsWin:          isWin,
		IsDraw:         isDraw,
		CreatedAt:      now,
	}
}

func (s *RatingService) recordLeaderboard(ctx context.Context, ratings ...domain.PlayerRating) {
	if s.cache == nil {
		return
	}
	for _, r := range ratings {
		if err := s.cache.Record(ctx, r.ParticipantID, r.CurrentRating); err != nil {
			s.log.WithError(err).WithField("participant", r.ParticipantID).Warn("leaderboard cache update failed")
		}
	}
}

// Leaderboard lists established players (total matches above the configured
// floor) by current rating, optionally filtered to a language cohort.
func (s *RatingService) Leaderboard(ctx context.Context, language string, limit int) ([]domain.PlayerRating, error) {
	return s.ratings.Leaderboard(ctx, language, s.cfg.LeaderboardMinMatches, limit)
}

// History returns the most recent rating audit rows, newest first.
func (s *RatingService) History(ctx context.Context, participantID string, limit int) ([]domain.RatingHistory, error) {
	return s.ratings.History(ctx, participantID, limit)
}

// rankTitle picks the highest threshold at or below the rating, falling back
// to the default title.
func (s *RatingService) rankTitle(rating int) string {
	titles := s.cfg.RankTitles
	idx := sort.Search(len(titles), func(i int) bool { return titles[i].MinRating > rating })
	if idx == 0 {
		return s.cfg.DefaultTitle
	}
	return titles[idx-1].Title
}
