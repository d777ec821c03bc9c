package memory

import (
	"context"
	"sort"
	"sync"

	"lingo-challenge-service/internal/domain"
)

// RatingStore is an in-memory implementation of app.RatingRepository.
// ApplyMatch writes both ratings and both history rows under one lock so no
// reader observes a half-applied match.
type RatingStore struct {
	mu      sync.RWMutex
	ratings map[string]*domain.PlayerRating
	history map[string][]domain.RatingHistory
}

func NewRatingStore() *RatingStore {
	return &RatingStore{
		ratings: make(map[string]*domain.PlayerRating),
		history: make(map[string][]domain.RatingHistory),
	}
}

func (s *RatingStore) Get(_ context.Context, participantID string) (domain.PlayerRating, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rating, ok := s.ratings[participantID]
	if !ok {
		return domain.PlayerRating{}, false, nil
	}
	return *rating, true, nil
}

func (s *RatingStore) Create(_ context.Context, rating *domain.PlayerRating) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.ratings[rating.ParticipantID]; ok {
		*rating = *existing
		return nil
	}
	stored := *rating
	s.ratings[rating.ParticipantID] = &stored
	return nil
}

func (s *RatingStore) ApplyMatch(_ context.Context, a, b *domain.PlayerRating, historyA, historyB *domain.RatingHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	storedA, storedB := *a, *b
	s.ratings[a.ParticipantID] = &storedA
	s.ratings[b.ParticipantID] = &storedB
	s.history[historyA.ParticipantID] = append(s.history[historyA.ParticipantID], *historyA)
	s.history[historyB.ParticipantID] = append(s.history[historyB.ParticipantID], *historyB)
	return nil
}

func (s *RatingStore) Leaderboard(_ context.Context, language string, minMatches, limit int) ([]domain.PlayerRating, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []domain.PlayerRating
	for _, r := range s.ratings {
		if r.TotalMatches() < minMatches {
			continue
		}
		if language != "" && r.Language != language {
			continue
		}
		entries = append(entries, *r)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CurrentRating != entries[j].CurrentRating {
			return entries[i].CurrentRating > entries[j].CurrentRating
		}
		return entries[i].ParticipantID < entries[j].ParticipantID
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *RatingStore) History(_ context.Context, participantID string, limit int) ([]domain.RatingHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.history[participantID]
	out := make([]domain.RatingHistory, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- { // newest first
		out = append(out, rows[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
