package app

import (
	"context"
	"fmt"
	"time"

	"lingo-challenge-service/internal/domain"
)

// AccountProvider is the identity collaborator. A single capability method
// decides whether a creator is on a paid plan.
type AccountProvider interface {
	IsPaid(ctx context.Context, creatorID string) (bool, error)
}

// QuotaRepository stores per-creator quotas. Reserve must apply the day
// rollover, the limit check and the increment inside one transaction or
// lock; a missing record counts as zero usage.
type QuotaRepository interface {
	Get(ctx context.Context, creatorID string) (domain.Quota, error)
	Reserve(ctx context.Context, creatorID string, today time.Time, limit int, enforceLimit bool) (domain.Quota, bool, error)
}

// QuotaConfig tunes the free-tier allowance.
type QuotaConfig struct {
	FreeDailyLimit int
}

func DefaultQuotaConfig() QuotaConfig {
	return QuotaConfig{FreeDailyLimit: 2}
}

// QuotaManager gates challenge creation by a daily allowance. Paid creators
// are never limited; free creators get FreeDailyLimit per calendar day with
// a lazy self-healing reset (no scheduler).
type QuotaManager struct {
	quotas   QuotaRepository
	accounts AccountProvider
	cfg      QuotaConfig
	now      func() time.Time
}

func NewQuotaManager(quotas QuotaRepository, accounts AccountProvider, cfg QuotaConfig) *QuotaManager {
	return &QuotaManager{quotas: quotas, accounts: accounts, cfg: cfg, now: time.Now}
}

// CanCreate is the read-only preflight check. The message always states the
// remaining count or that the limit is reached.
func (m *QuotaManager) CanCreate(ctx context.Context, creatorID string) (bool, string, error) {
	paid, err := m.accounts.IsPaid(ctx, creatorID)
	if err != nil {
		return false, "", fmt.Errorf("check paid status: %w", err)
	}
	if paid {
		return true, "Unlimited challenge creation on your plan.", nil
	}

	quota, err := m.quotas.Get(ctx, creatorID)
	if err != nil {
		return false, "", fmt.Errorf("load quota: %w", err)
	}
	quota.Rollover(m.now())

	remaining := m.cfg.FreeDailyLimit - quota.ChallengesCreatedToday
	if remaining <= 0 {
		return false, m.limitReachedMessage(), nil
	}
	return true, fmt.Sprintf("You can create %d more challenge(s) today.", remaining), nil
}

// RecordCreated bumps both counters after an out-of-band creation (admin
// seeding, imports). The rollover runs first inside the store transaction.
func (m *QuotaManager) RecordCreated(ctx context.Context, creatorID string) error {
	_, _, err := m.quotas.Reserve(ctx, creatorID, m.now(), m.cfg.FreeDailyLimit, false)
	return err
}

// Reserve atomically checks the allowance and claims one creation slot.
// This is the path challenge creation uses so concurrent requests cannot
// exceed the free limit.
func (m *QuotaManager) Reserve(ctx context.Context, creatorID string) (bool, string, error) {
	paid, err := m.accounts.IsPaid(ctx, creatorID)
	if err != nil {
		return false, "", fmt.Errorf("check paid status: %w", err)
	}

	quota, allowed, err := m.quotas.Reserve(ctx, creatorID, m.now(), m.cfg.FreeDailyLimit, !paid)
	if err != nil {
		return false, "", fmt.Errorf("reserve quota: %w", err)
	}
	if !allowed {
		return false, m.limitReachedMessage(), nil
	}
	if paid {
		return true, "Unlimited challenge creation on your plan.", nil
	}
	remaining := m.cfg.FreeDailyLimit - quota.ChallengesCreatedToday
	if remaining < 0 {
		remaining = 0
	}
	return true, fmt.Sprintf("You can create %d more challenge(s) today.", remaining), nil
}

func (m *QuotaManager) limitReachedMessage() string {
	return fmt.Sprintf("Daily limit of %d challenges reached. Try again tomorrow.", m.cfg.FreeDailyLimit)
}
