package app_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"lingo-challenge-service/internal/app"
	"lingo-challenge-service/internal/domain"
	"lingo-challenge-service/internal/infra/memory"
)

type badgeFixture struct {
	service    *app.BadgeService
	badges     *memory.BadgeStore
	ratings    *memory.RatingStore
	challenges *memory.ChallengeStore
	inserted   int
}

func newBadgeFixture(t *testing.T, catalog []domain.Badge) *badgeFixture {
	t.Helper()
	badges := memory.NewBadgeStore(catalog)
	ratings := memory.NewRatingStore()
	challenges := memory.NewChallengeStore()
	return &badgeFixture{
		service:    app.NewBadgeService(badges, ratings, challenges, testLogger()),
		badges:     badges,
		ratings:    ratings,
		challenges: challenges,
	}
}

// completeChallenges records n completed challenge attempts for the participant.
func (f *badgeFixture) completeChallenges(t *testing.T, participantID string, n int, percentage float64) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		code := fmt.Sprintf("BDG%03d", f.inserted)
		f.inserted++
		challenge := domain.Challenge{Code: code, CreatorID: "creator", Language: "es", Active: true}
		if err := f.challenges.InsertChallenge(ctx, &challenge); err != nil {
			t.Fatalf("insert challenge: %v", err)
		}
		score := 10
		if percentage < 100 {
			score = 5
		}
		attempt := domain.ChallengeAttempt{
			ID:            fmt.Sprintf("%s-%s", participantID, code),
			ChallengeCode: code,
			ParticipantID: &participantID,
		}
		if err := f.challenges.InsertAttempt(ctx, &attempt); err != nil {
			t.Fatalf("insert attempt: %v", err)
		}
		attempt.Score = score
		attempt.MaxScore = 10
		attempt.Percentage = percentage
		attempt.Completed = true
		if err := f.challenges.CompleteAttempt(ctx, &attempt); err != nil {
			t.Fatalf("complete attempt: %v", err)
		}
	}
}

func TestCheckAndAwardThresholdBadge(t *testing.T) {
	ctx := context.Background()
	fixture := newBadgeFixture(t, []domain.Badge{
		{ID: 1, Name: "Dedicated", CriteriaType: domain.CriteriaChallengesCompleted, CriteriaValue: 5, PointBonus: 25, Active: true},
	})

	fixture.completeChallenges(t, "alice", 4, 80)
	awarded, err := fixture.service.CheckAndAward(ctx, "alice")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if len(awarded) != 0 {
		t.Fatalf("4 completions should not reach a threshold of 5, got %v", awarded)
	}

	fixture.completeChallenges(t, "alice", 1, 80)
	awarded, err = fixture.service.CheckAndAward(ctx, "alice")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if len(awarded) != 1 || awarded[0].Name != "Dedicated" {
		t.Fatalf("expected Dedicated badge at 5 completions, got %v", awarded)
	}

	points, err := fixture.service.LifetimePoints(ctx, "alice")
	if err != nil {
		t.Fatalf("points: %v", err)
	}
	if points != 25 {
		t.Fatalf("expected 25 lifetime points, got %d", points)
	}
}

func TestCheckAndAwardIsIdempotent(t *testing.T) {
	ctx := context.Background()
	fixture := newBadgeFixture(t, []domain.Badge{
		{ID: 1, Name: "First Steps", CriteriaType: domain.CriteriaChallengesCompleted, CriteriaValue: 1, PointBonus: 10, Active: true},
	})
	fixture.completeChallenges(t, "alice", 1, 100)

	first, err := fixture.service.CheckAndAward(ctx, "alice")
	if err != nil {
		t.Fatalf("first check: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("expected one badge, got %d", len(first))
	}

	second, err := fixture.service.CheckAndAward(ctx, "alice")
	if err != nil {
		t.Fatalf("second check: %v", err)
	}
	if len(second) != 0 {
		t.Fatalf("repeat check with no new activity must award nothing, got %v", second)
	}

	points, _ := fixture.service.LifetimePoints(ctx, "alice")
	if points != 10 {
		t.Fatalf("points must be credited exactly once, got %d", points)
	}
}

func TestCheckAndAwardRatingCriteria(t *testing.T) {
	ctx := context.Background()
	fixture := newBadgeFixture(t, []domain.Badge{
		{ID: 1, Name: "Contender", CriteriaType: domain.CriteriaRatingReached, CriteriaValue: 1200, PointBonus: 40, Active: true},
		{ID: 2, Name: "Slayer", CriteriaType: domain.CriteriaGiantSlayerWins, CriteriaValue: 1, Active: true},
	})

	rating := domain.PlayerRating{ParticipantID: "alice", CurrentRating: 1250, GiantSlayerWins: 0}
	if err := fixture.ratings.Create(ctx, &rating); err != nil {
		t.Fatalf("seed rating: %v", err)
	}

	awarded, err := fixture.service.CheckAndAward(ctx, "alice")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if len(awarded) != 1 || awarded[0].Name != "Contender" {
		t.Fatalf("expected only the rating badge, got %v", awarded)
	}
}

func TestCheckAndAwardNoRatingDefaultsNeutral(t *testing.T) {
	ctx := context.Background()
	fixture := newBadgeFixture(t, []domain.Badge{
		{ID: 1, Name: "Contender", CriteriaType: domain.CriteriaRatingReached, CriteriaValue: 1000, Active: true},
	})

	// no rating record: CurrentRating snapshots as 0, not the initial rating
	awarded, err := fixture.service.CheckAndAward(ctx, "nobody")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if len(awarded) != 0 {
		t.Fatalf("unrated participant must not earn rating badges, got %v", awarded)
	}
}

func TestCheckAndAwardSeasonalWindow(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	open, until := now.Add(-time.Hour), now.Add(time.Hour)
	pastOpen, pastClose := now.Add(-48*time.Hour), now.Add(-24*time.Hour)

	fixture := newBadgeFixture(t, []domain.Badge{
		{ID: 1, Name: "In Season", CriteriaType: domain.CriteriaChallengesCompleted, CriteriaValue: 1, Active: true, SeasonalFrom: &open, SeasonalUntil: &until},
		{ID: 2, Name: "Out of Season", CriteriaType: domain.CriteriaChallengesCompleted, CriteriaValue: 1, Active: true, SeasonalFrom: &pastOpen, SeasonalUntil: &pastClose},
	})
	fixture.completeChallenges(t, "alice", 1, 100)

	awarded, err := fixture.service.CheckAndAward(ctx, "alice")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if len(awarded) != 1 || awarded[0].Name != "In Season" {
		t.Fatalf("expected only the in-season badge, got %v", awarded)
	}
}

func TestCheckAndAwardUnrecognizedCriteria(t *testing.T) {
	ctx := context.Background()
	fixture := newBadgeFixture(t, []domain.Badge{
		{ID: 1, Name: "Mystery", CriteriaType: "TOTAL_ECLIPSES", CriteriaValue: 0, Active: true},
	})
	fixture.completeChallenges(t, "alice", 1, 100)

	awarded, err := fixture.service.CheckAndAward(ctx, "alice")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if len(awarded) != 0 {
		t.Fatalf("unrecognized criteria must never match, got %v", awarded)
	}
}

func TestCheckAndAwardInactiveBadgeSkipped(t *testing.T) {
	ctx := context.Background()
	fixture := newBadgeFixture(t, []domain.Badge{
		{ID: 1, Name: "Retired", CriteriaType: domain.CriteriaChallengesCompleted, CriteriaValue: 1, Active: false},
	})
	fixture.completeChallenges(t, "alice", 1, 100)

	awarded, err := fixture.service.CheckAndAward(ctx, "alice")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if len(awarded) != 0 {
		t.Fatalf("inactive badges must not be granted, got %v", awarded)
	}
}

func TestCheckAndAwardMultipleAtOnce(t *testing.T) {
	ctx := context.Background()
	fixture := newBadgeFixture(t, []domain.Badge{
		{ID: 1, Name: "First Steps", CriteriaType: domain.CriteriaChallengesCompleted, CriteriaValue: 1, PointBonus: 10, Active: true},
		{ID: 2, Name: "Perfectionist", CriteriaType: domain.CriteriaPerfectChallenges, CriteriaValue: 1, PointBonus: 50, Active: true},
	})
	fixture.completeChallenges(t, "alice", 1, 100)

	awarded, err := fixture.service.CheckAndAward(ctx, "alice")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if len(awarded) != 2 {
		t.Fatalf("expected both badges in one pass, got %v", awarded)
	}
	points, _ := fixture.service.LifetimePoints(ctx, "alice")
	if points != 60 {
		t.Fatalf("expected 60 points, got %d", points)
	}
}
