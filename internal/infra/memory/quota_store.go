package memory

import (
	"context"
	"sync"
	"time"

	"lingo-challenge-service/internal/domain"
)

// QuotaStore is an in-memory implementation of app.QuotaRepository. The
// mutex makes Reserve's rollover+check+increment a single critical section.
type QuotaStore struct {
	mu     sync.Mutex
	quotas map[string]*domain.Quota
}

func NewQuotaStore() *QuotaStore {
	return &QuotaStore{quotas: make(map[string]*domain.Quota)}
}

// Get returns the creator's quota, or a zero-usage default when no record
// exists yet.
func (s *QuotaStore) Get(_ context.Context, creatorID string) (domain.Quota, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if quota, ok := s.quotas[creatorID]; ok {
		return *quota, nil
	}
	return domain.Quota{CreatorID: creatorID}, nil
}

// Reserve applies the day rollover, then checks the limit (when enforced)
// and increments both counters atomically.
func (s *QuotaStore) Reserve(_ context.Context, creatorID string, today time.Time, limit int, enforceLimit bool) (domain.Quota, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	quota, ok := s.quotas[creatorID]
	if !ok {
		quota = &domain.Quota{CreatorID: creatorID}
		s.quotas[creatorID] = quota
	}
	quota.Rollover(today)

	if enforceLimit && quota.ChallengesCreatedToday >= limit {
		return *quota, false, nil
	}
	quota.ChallengesCreatedToday++
	quota.TotalChallengesCreated++
	return *quota, true, nil
}
