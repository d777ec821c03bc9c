package memory

import (
	"context"
	"sync"

	"lingo-challenge-service/internal/domain"
)

// BadgeStore is an in-memory implementation of app.BadgeRepository. Grants
// are keyed by (participant, badge) so a duplicate award is a no-op that
// credits no points.
type BadgeStore struct {
	mu      sync.RWMutex
	catalog []domain.Badge
	grants  map[string]map[int64]domain.BadgeGrant
	points  map[string]int
}

func NewBadgeStore(catalog []domain.Badge) *BadgeStore {
	return &BadgeStore{
		catalog: catalog,
		grants:  make(map[string]map[int64]domain.BadgeGrant),
		points:  make(map[string]int),
	}
}

func (s *BadgeStore) ActiveBadges(_ context.Context) ([]domain.Badge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var active []domain.Badge
	for _, b := range s.catalog {
		if b.Active {
			active = append(active, b)
		}
	}
	return active, nil
}

func (s *BadgeStore) Granted(_ context.Context, participantID string) (map[int64]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	granted := make(map[int64]bool, len(s.grants[participantID]))
	for id := range s.grants[participantID] {
		granted[id] = true
	}
	return granted, nil
}

func (s *BadgeStore) Award(_ context.Context, participantID string, grants []domain.BadgeGrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	held := s.grants[participantID]
	if held == nil {
		held = make(map[int64]domain.BadgeGrant)
		s.grants[participantID] = held
	}
	for _, grant := range grants {
		if _, exists := held[grant.BadgeID]; exists {
			continue
		}
		held[grant.BadgeID] = grant
		if grant.PointBonus > 0 {
			s.points[participantID] += grant.PointBonus
		}
	}
	return nil
}

func (s *BadgeStore) LifetimePoints(_ context.Context, participantID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.points[participantID], nil
}
