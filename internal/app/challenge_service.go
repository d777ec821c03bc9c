package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"lingo-challenge-service/internal/domain"
)

// AttemptStats aggregates a participant's completed attempts for badge
// evaluation.
type AttemptStats struct {
	Completed       int
	Perfect         int
	AverageAccuracy float64
}

// ChallengeRepository persists challenges and attempts.
//   - InsertAttempt must bump the challenge's TotalAttempts in the same unit.
//   - CompleteAttempt must persist the final attempt values and refresh
//     TotalCompletions and AverageScore from the full completed set in the
//     same unit, serialized against concurrent submissions.
type ChallengeRepository interface {
	InsertChallenge(ctx context.Context, challenge *domain.Challenge) error
	GetChallenge(ctx context.Context, code string) (domain.Challenge, error)
	InsertAttempt(ctx context.Context, attempt *domain.ChallengeAttempt) error
	GetAttempt(ctx context.Context, id string) (domain.ChallengeAttempt, error)
	CompleteAttempt(ctx context.Context, attempt *domain.ChallengeAttempt) error
	CompletedAttempts(ctx context.Context, challengeCode string) ([]domain.ChallengeAttempt, error)
	AttemptStats(ctx context.Context, participantID string) (AttemptStats, error)
}

// RankedAttempt is a completed attempt with its computed rank.
type RankedAttempt struct {
	domain.ChallengeAttempt
	Rank int `json:"rank"`
}

// ChallengeService wires the core flow: quota gate, generation, attempts,
// scoring, aggregates, ratings and badges.
type ChallengeService struct {
	challenges ChallengeRepository
	generator  *QuestionGenerator
	quotas     *QuotaManager
	scoring    *ScoringEngine
	rating     *RatingService
	badges     *BadgeService
	catalog    LanguageCatalog
	log        *logrus.Logger
	now        func() time.Time

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewChallengeService(
	challenges ChallengeRepository,
	generator *QuestionGenerator,
	quotas *QuotaManager,
	scoring *ScoringEngine,
	rating *RatingService,
	badges *BadgeService,
	catalog LanguageCatalog,
	log *logrus.Logger,
) *ChallengeService {
	return &ChallengeService{
		challenges: challenges,
		generator:  generator,
		quotas:     quotas,
		scoring:    scoring,
		rating:     rating,
		badges:     badges,
		catalog:    catalog,
		log:        log,
		now:        time.Now,
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

const (
	challengeCodeLength  = 6
	challengeCodeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeInsertRetries    = 5
)

// CreateChallenge reserves a quota slot, generates the question snapshot and
// persists the challenge. Quota rejections wrap ErrQuotaExceeded with the
// human-readable remaining-count message; a too-small pool returns
// ErrContentUnavailable and releases nothing the user could retry into.
func (s *ChallengeService) CreateChallenge(ctx context.Context, creatorID, language, category, difficulty string, questionCount, timeLimitSeconds int) (domain.Challenge, error) {
	if _, ok := s.catalog.Language(language); !ok {
		return domain.Challenge{}, domain.ErrUnknownLanguage
	}

	allowed, message, err := s.quotas.Reserve(ctx, creatorID)
	if err != nil {
		return domain.Challenge{}, err
	}
	if !allowed {
		return domain.Challenge{}, fmt.Errorf("%s: %w", message, domain.ErrQuotaExceeded)
	}

	questions, err := s.generator.Generate(ctx, language, category, difficulty, questionCount)
	if err != nil {
		return domain.Challenge{}, err
	}
	if len(questions) == 0 {
		return domain.Challenge{}, domain.ErrContentUnavailable
	}

	challenge := domain.Challenge{
		CreatorID:        creatorID,
		Language:         language,
		Category:         category,
		Difficulty:       difficulty,
		QuestionCount:    len(questions),
		TimeLimitSeconds: timeLimitSeconds,
		Questions:        questions,
		Active:           true,
		CreatedAt:        s.now(),
	}

	for attempt := 0; attempt < codeInsertRetries; attempt++ {
		challenge.Code = s.newCode()
		err = s.challenges.InsertChallenge(ctx, &challenge)
		if err == nil {
			s.log.WithFields(logrus.Fields{
				"code":     challenge.Code,
				"creator":  creatorID,
				"language": language,
				"category": category,
			}).Info("challenge created")
			return challenge, nil
		}
		// only code collisions are worth another draw
		if !errors.Is(err, domain.ErrCodeTaken) {
			return domain.Challenge{}, fmt.Errorf("insert challenge: %w", err)
		}
	}
	return domain.Challenge{}, fmt.Errorf("insert challenge: %w", err)
}

// StartAttempt creates an in-progress attempt and bumps the challenge's
// attempt counter. identity is nil for guests.
func (s *ChallengeService) StartAttempt(ctx context.Context, code, participantName, location string, identity *string) (domain.ChallengeAttempt, error) {
	challenge, err := s.challenges.GetChallenge(ctx, code)
	if err != nil {
		return domain.ChallengeAttempt{}, err
	}
	if !challenge.Active {
		return domain.ChallengeAttempt{}, domain.ErrChallengeInactive
	}
	if challenge.Expired(s.now()) {
		return domain.ChallengeAttempt{}, domain.ErrChallengeExpired
	}

	attempt := domain.ChallengeAttempt{
		ID:                  uuid.NewString(),
		ChallengeCode:       code,
		ParticipantName:     participantName,
		ParticipantLocation: location,
		ParticipantID:       identity,
		StartedAt:           s.now(),
	}
	if err := s.challenges.InsertAttempt(ctx, &attempt); err != nil {
		return domain.ChallengeAttempt{}, fmt.Errorf("insert attempt: %w", err)
	}
	return attempt, nil
}

// SubmitAttempt scores the answers, completes the attempt (exactly once) and
// refreshes the challenge aggregates. Late submissions score normally; the
// time limit is a display-only contract. Badge checks for registered
// participants run after completion; their failure never voids the score.
func (s *ChallengeService) SubmitAttempt(ctx context.Context, attemptID string, answers []int, timeTakenSeconds int) (ScoredResult, []domain.AwardedBadge, error) {
	attempt, err := s.challenges.GetAttempt(ctx, attemptID)
	if err != nil {
		return ScoredResult{}, nil, err
	}
	if attempt.Completed {
		return ScoredResult{}, nil, domain.ErrAttemptCompleted
	}

	challenge, err := s.challenges.GetChallenge(ctx, attempt.ChallengeCode)
	if err != nil {
		return ScoredResult{}, nil, err
	}

	result := s.scoring.CalculateScore(challenge.Questions, answers)

	completedAt := s.now()
	attempt.Score = result.Score
	attempt.MaxScore = result.MaxScore
	attempt.Percentage = result.Percentage
	attempt.TimeTakenSeconds = timeTakenSeconds
	attempt.Answers = answers
	attempt.Completed = true
	attempt.CompletedAt = &completedAt

	if err := s.challenges.CompleteAttempt(ctx, &attempt); err != nil {
		return ScoredResult{}, nil, fmt.Errorf("complete attempt: %w", err)
	}

	var awarded []domain.AwardedBadge
	if attempt.Registered() {
		awarded, err = s.badges.CheckAndAward(ctx, *attempt.ParticipantID)
		if err != nil {
			s.log.WithError(err).WithField("participant", *attempt.ParticipantID).Warn("badge check failed after submission")
			awarded = nil
		}
	}
	return result, awarded, nil
}

// FinalizeMatch applies the rating update for a head-to-head match between
// two completed attempts and re-checks badges for both sides. When the
// match is not a draw the first attempt is the winner's. Guests yield
// (nil, nil) deltas without touching any rating state.
func (s *ChallengeService) FinalizeMatch(ctx context.Context, winnerAttemptID, loserAttemptID string, isDraw bool) (*domain.RatingDelta, *domain.RatingDelta, error) {
	winner, err := s.challenges.GetAttempt(ctx, winnerAttemptID)
	if err != nil {
		return nil, nil, err
	}
	loser, err := s.challenges.GetAttempt(ctx, loserAttemptID)
	if err != nil {
		return nil, nil, err
	}

	deltaW, deltaL, err := s.rating.UpdateRatingsAfterMatch(ctx, winner, loser, isDraw)
	if err != nil {
		return nil, nil, err
	}
	if deltaW == nil {
		return nil, nil, nil
	}

	for _, pid := range []string{deltaW.ParticipantID, deltaL.ParticipantID} {
		if _, err := s.badges.CheckAndAward(ctx, pid); err != nil {
			s.log.WithError(err).WithField("participant", pid).Warn("badge check failed after match")
		}
	}
	return deltaW, deltaL, nil
}

// Rank computes 1 + the number of completed attempts on the same challenge
// with a strictly higher percentage, or the same percentage and a strictly
// lower time. Exact ties share the same rank.
func (s *ChallengeService) Rank(ctx context.Context, attemptID string) (int, error) {
	attempt, err := s.challenges.GetAttempt(ctx, attemptID)
	if err != nil {
		return 0, err
	}
	if !attempt.Completed {
		return 0, fmt.Errorf("attempt %s is still in progress", attemptID)
	}

	completed, err := s.challenges.CompletedAttempts(ctx, attempt.ChallengeCode)
	if err != nil {
		return 0, fmt.Errorf("load completed attempts: %w", err)
	}
	return rankAmong(attempt, completed), nil
}

// Leaderboard returns the challenge's completed attempts in rank order,
// capped at limit (0 = no cap).
func (s *ChallengeService) Leaderboard(ctx context.Context, code string, limit int) ([]RankedAttempt, error) {
	if _, err := s.challenges.GetChallenge(ctx, code); err != nil {
		return nil, err
	}
	completed, err := s.challenges.CompletedAttempts(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("load completed attempts: %w", err)
	}

	sort.SliceStable(completed, func(i, j int) bool {
		if completed[i].Percentage != completed[j].Percentage {
			return completed[i].Percentage > completed[j].Percentage
		}
		return completed[i].TimeTakenSeconds < completed[j].TimeTakenSeconds
	})

	if limit > 0 && len(completed) > limit {
		completed = completed[:limit]
	}
	ranked := make([]RankedAttempt, 0, len(completed))
	for _, a := range completed {
		ranked = append(ranked, RankedAttempt{ChallengeAttempt: a, Rank: rankAmong(a, completed)})
	}
	return ranked, nil
}

func rankAmong(attempt domain.ChallengeAttempt, completed []domain.ChallengeAttempt) int {
	rank := 1
	for _, other := range completed {
		if other.ID == attempt.ID {
			continue
		}
		if other.Percentage > attempt.Percentage ||
			(other.Percentage == attempt.Percentage && other.TimeTakenSeconds < attempt.TimeTakenSeconds) {
			rank++
		}
	}
	return rank
}

func (s *ChallengeService) newCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	code := make([]byte, challengeCodeLength)
	for i := range code {
		code[i] = challengeCodeCharset[s.rnd.Intn(len(challengeCodeCharset))]
	}
	return string(code)
}
