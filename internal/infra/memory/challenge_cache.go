package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"lingo-challenge-service/internal/app"
	"lingo-challenge-service/internal/domain"
)

// ChallengeCache decorates an app.ChallengeRepository with a TTL cache for
// challenge snapshots, so repeated submissions against a hot challenge do
// not hammer the backing store. Snapshots are immutable; the aggregates a
// cached copy carries may be up to one TTL stale, which only read paths see.
type ChallengeCache struct {
	app.ChallengeRepository

	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group
	rnd   *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedChallenge
}

type cachedChallenge struct {
	challenge domain.Challenge
	expiresAt time.Time
}

func NewChallengeCache(repo app.ChallengeRepository, ttl time.Duration) *ChallengeCache {
	return &ChallengeCache{
		ChallengeRepository: repo,
		ttl:                 ttl,
		clock:               time.Now,
		rnd:                 rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:               make(map[string]cachedChallenge),
	}
}

func (c *ChallengeCache) GetChallenge(ctx context.Context, code string) (domain.Challenge, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[code]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.challenge, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(code, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[code]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.challenge, nil
		}
		c.mu.RUnlock()

		challenge, err := c.ChallengeRepository.GetChallenge(ctx, code)
		if err != nil {
			return domain.Challenge{}, err
		}

		c.mu.Lock()
		c.cache[code] = cachedChallenge{
			challenge: challenge,
			expiresAt: now.Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return challenge, nil
	})
	if err != nil {
		return domain.Challenge{}, err
	}
	return result.(domain.Challenge), nil
}

func (c *ChallengeCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
