package memory

import (
	"context"
	"fmt"
	"sync"

	"lingo-challenge-service/internal/app"
	"lingo-challenge-service/internal/domain"
)

// ChallengeStore is an in-memory implementation of app.ChallengeRepository.
// A single mutex serializes aggregate updates, matching the contract that
// concurrent submissions on one challenge never interleave read-modify-write.
type ChallengeStore struct {
	mu         sync.RWMutex
	challenges map[string]*domain.Challenge
	attempts   map[string]*domain.ChallengeAttempt
}

func NewChallengeStore() *ChallengeStore {
	return &ChallengeStore{
		challenges: make(map[string]*domain.Challenge),
		attempts:   make(map[string]*domain.ChallengeAttempt),
	}
}

func (s *ChallengeStore) InsertChallenge(_ context.Context, challenge *domain.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.challenges[challenge.Code]; exists {
		return fmt.Errorf("challenge code %q: %w", challenge.Code, domain.ErrCodeTaken)
	}
	stored := *challenge
	s.challenges[challenge.Code] = &stored
	return nil
}

func (s *ChallengeStore) GetChallenge(_ context.Context, code string) (domain.Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	challenge, ok := s.challenges[code]
	if !ok {
		return domain.Challenge{}, domain.ErrChallengeNotFound
	}
	return *challenge, nil
}

func (s *ChallengeStore) InsertAttempt(_ context.Context, attempt *domain.ChallengeAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	challenge, ok := s.challenges[attempt.ChallengeCode]
	if !ok {
		return domain.ErrChallengeNotFound
	}
	stored := *attempt
	s.attempts[attempt.ID] = &stored
	challenge.TotalAttempts++
	return nil
}

func (s *ChallengeStore) GetAttempt(_ context.Context, id string) (domain.ChallengeAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	attempt, ok := s.attempts[id]
	if !ok {
		return domain.ChallengeAttempt{}, domain.ErrAttemptNotFound
	}
	return *attempt, nil
}

// CompleteAttempt persists the final attempt values and refreshes the
// challenge aggregates from the full completed set in one critical section.
func (s *ChallengeStore) CompleteAttempt(_ context.Context, attempt *domain.ChallengeAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.attempts[attempt.ID]
	if !ok {
		return domain.ErrAttemptNotFound
	}
	if stored.Completed {
		return domain.ErrAttemptCompleted
	}
	challenge, ok := s.challenges[attempt.ChallengeCode]
	if !ok {
		return domain.ErrChallengeNotFound
	}

	*stored = *attempt

	completions := 0
	sum := 0.0
	for _, a := range s.attempts {
		if a.ChallengeCode == challenge.Code && a.Completed {
			completions++
			sum += a.Percentage
		}
	}
	challenge.TotalCompletions = completions
	challenge.AverageScore = 0
	if completions > 0 {
		challenge.AverageScore = sum / float64(completions)
	}
	return nil
}

func (s *ChallengeStore) CompletedAttempts(_ context.Context, challengeCode string) ([]domain.ChallengeAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var completed []domain.ChallengeAttempt
	for _, a := range s.attempts {
		if a.ChallengeCode == challengeCode && a.Completed {
			completed = append(completed, *a)
		}
	}
	return completed, nil
}

func (s *ChallengeStore) AttemptStats(_ context.Context, participantID string) (app.AttemptStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := app.AttemptStats{}
	sum := 0.0
	for _, a := range s.attempts {
		if !a.Completed || a.ParticipantID == nil || *a.ParticipantID != participantID {
			continue
		}
		stats.Completed++
		sum += a.Percentage
		if a.MaxScore > 0 && a.Score == a.MaxScore {
			stats.Perfect++
		}
	}
	if stats.Completed > 0 {
		stats.AverageAccuracy = sum / float64(stats.Completed)
	}
	return stats, nil
}
