package app

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"lingo-challenge-service/internal/domain"
)

// BadgeRepository exposes the read-only badge catalog plus idempotent
// grants. Award must persist the grants and their point credits in one
// transaction: a crash mid-award must not grant a badge without its points
// or vice versa, and a grant that already exists credits nothing.
type BadgeRepository interface {
	ActiveBadges(ctx context.Context) ([]domain.Badge, error)
	Granted(ctx context.Context, participantID string) (map[int64]bool, error)
	Award(ctx context.Context, participantID string, grants []domain.BadgeGrant) error
	LifetimePoints(ctx context.Context, participantID string) (int, error)
}

// ParticipantStats is the cumulative snapshot badge criteria evaluate
// against. Rating-derived figures default to neutral values when the
// participant has no rating record yet.
type ParticipantStats struct {
	ChallengesCompleted int
	PerfectChallenges   int
	AverageAccuracy     float64
	CurrentRating       int
	BestWinStreak       int
	UnderdogWins        int
	GiantSlayerWins     int
	Wins                int
	TotalMatches        int
}

// BadgeService evaluates cumulative-stat thresholds and grants badges at
// most once per participant.
type BadgeService struct {
	badges     BadgeRepository
	ratings    RatingRepository
	challenges ChallengeRepository
	log        *logrus.Logger
	now        func() time.Time
}

func NewBadgeService(badges BadgeRepository, ratings RatingRepository, challenges ChallengeRepository, log *logrus.Logger) *BadgeService {
	return &BadgeService{badges: badges, ratings: ratings, challenges: challenges, log: log, now: time.Now}
}

// CheckAndAward re-evaluates every active badge for the participant and
// returns the newly granted ones. Calling it again with no new activity
// returns an empty slice; grants and point credits are never duplicated.
func (s *BadgeService) CheckAndAward(ctx context.Context, participantID string) ([]domain.AwardedBadge, error) {
	stats, err := s.snapshot(ctx, participantID)
	if err != nil {
		return nil, err
	}

	catalog, err := s.badges.ActiveBadges(ctx)
	if err != nil {
		return nil, fmt.Errorf("load badge catalog: %w", err)
	}
	granted, err := s.badges.Granted(ctx, participantID)
	if err != nil {
		return nil, fmt.Errorf("load granted badges: %w", err)
	}

	now := s.now()
	var grants []domain.BadgeGrant
	var awarded []domain.AwardedBadge
	points := 0
	for _, badge := range catalog {
		if granted[badge.ID] || !badge.InSeason(now) {
			continue
		}
		stat, recognized := statFor(badge.CriteriaType, stats)
		if !recognized || stat < badge.CriteriaValue {
			continue
		}

		bonus := 0
		if badge.PointBonus > 0 {
			bonus = badge.PointBonus
		}
		grants = append(grants, domain.BadgeGrant{
			ParticipantID: participantID,
			BadgeID:       badge.ID,
			PointBonus:    bonus,
			AwardedAt:     now,
		})
		awarded = append(awarded, domain.AwardedBadge{
			ID:          badge.ID,
			Name:        badge.Name,
			Icon:        badge.Icon,
			Rarity:      badge.Rarity,
			Category:    badge.Category,
			Description: badge.Description,
			PointBonus:  badge.PointBonus,
			AwardedAt:   now,
		})
		if badge.PointBonus > 0 {
			points += badge.PointBonus
		}
	}

	if len(grants) == 0 {
		return []domain.AwardedBadge{}, nil
	}
	if err := s.badges.Award(ctx, participantID, grants); err != nil {
		return nil, fmt.Errorf("award badges: %w", err)
	}
	s.log.WithFields(logrus.Fields{
		"participant": participantID,
		"badges":      len(grants),
		"points":      points,
	}).Info("badges awarded")
	return awarded, nil
}

func (s *BadgeService) snapshot(ctx context.Context, participantID string) (ParticipantStats, error) {
	attemptStats, err := s.challenges.AttemptStats(ctx, participantID)
	if err != nil {
		return ParticipantStats{}, fmt.Errorf("load attempt stats: %w", err)
	}

	stats := ParticipantStats{
		ChallengesCompleted: attemptStats.Completed,
		PerfectChallenges:   attemptStats.Perfect,
		AverageAccuracy:     attemptStats.AverageAccuracy,
	}

	rating, ok, err := s.ratings.Get(ctx, participantID)
	if err != nil {
		return ParticipantStats{}, fmt.Errorf("load rating: %w", err)
	}
	if ok {
		stats.CurrentRating = rating.CurrentRating
		stats.BestWinStreak = rating.BestWinStreak
		stats.UnderdogWins = rating.UnderdogWins
		stats.GiantSlayerWins = rating.GiantSlayerWins
		stats.Wins = rating.Wins
		stats.TotalMatches = rating.TotalMatches()
	}
	return stats, nil
}

// statFor resolves a criteria type to the matching stat. Unrecognized types
// never match.
func statFor(criteriaType string, stats ParticipantStats) (float64, bool) {
	switch criteriaType {
	case domain.CriteriaChallengesCompleted:
		return float64(stats.ChallengesCompleted), true
	case domain.CriteriaMatchesWon:
		return float64(stats.Wins), true
	case domain.CriteriaBestWinStreak:
		return float64(stats.BestWinStreak), true
	case domain.CriteriaPerfectChallenges:
		return float64(stats.PerfectChallenges), true
	case domain.CriteriaUnderdogWins:
		return float64(stats.UnderdogWins), true
	case domain.CriteriaGiantSlayerWins:
		return float64(stats.GiantSlayerWins), true
	case domain.CriteriaRatingReached:
		return float64(stats.CurrentRating), true
	case domain.CriteriaMatchesPlayed:
		return float64(stats.TotalMatches), true
	case domain.CriteriaAverageAccuracy:
		return stats.AverageAccuracy, true
	default:
		return 0, false
	}
}

// LifetimePoints returns the participant's accumulated badge point credits.
func (s *BadgeService) LifetimePoints(ctx context.Context, participantID string) (int, error) {
	return s.badges.LifetimePoints(ctx, participantID)
}
