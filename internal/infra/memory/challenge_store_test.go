package memory

import (
	"context"
	"errors"
	"testing"

	"lingo-challenge-service/internal/domain"
)

func sampleChallenge(code string) domain.Challenge {
	idx := 0
	return domain.Challenge{
		Code:      code,
		CreatorID: "creator-1",
		Language:  "es",
		Category:  "animals",
		Active:    true,
		Questions: []domain.Question{
			{ID: "q1", Prompt: "?", Options: []string{"a", "b"}, CorrectIndex: &idx},
		},
	}
}

func TestChallengeStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewChallengeStore()

	challenge := sampleChallenge("ABC123")
	if err := store.InsertChallenge(ctx, &challenge); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := store.InsertChallenge(ctx, &challenge); !errors.Is(err, domain.ErrCodeTaken) {
		t.Fatalf("duplicate code must surface ErrCodeTaken, got %v", err)
	}

	got, err := store.GetChallenge(ctx, "ABC123")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.CreatorID != "creator-1" || len(got.Questions) != 1 {
		t.Fatalf("unexpected challenge: %+v", got)
	}

	if _, err := store.GetChallenge(ctx, "NOPE"); err != domain.ErrChallengeNotFound {
		t.Fatalf("expected ErrChallengeNotFound, got %v", err)
	}
}

func TestChallengeStoreAttemptLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewChallengeStore()
	challenge := sampleChallenge("ABC123")
	if err := store.InsertChallenge(ctx, &challenge); err != nil {
		t.Fatalf("insert challenge: %v", err)
	}

	attempt := domain.ChallengeAttempt{ID: "a1", ChallengeCode: "ABC123", ParticipantName: "Alice"}
	if err := store.InsertAttempt(ctx, &attempt); err != nil {
		t.Fatalf("insert attempt: %v", err)
	}
	got, _ := store.GetChallenge(ctx, "ABC123")
	if got.TotalAttempts != 1 {
		t.Fatalf("insert must bump attempt counter, got %d", got.TotalAttempts)
	}

	attempt.Score = 1
	attempt.MaxScore = 1
	attempt.Percentage = 100
	attempt.Completed = true
	if err := store.CompleteAttempt(ctx, &attempt); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := store.CompleteAttempt(ctx, &attempt); err != domain.ErrAttemptCompleted {
		t.Fatalf("second completion must fail, got %v", err)
	}

	got, _ = store.GetChallenge(ctx, "ABC123")
	if got.TotalCompletions != 1 || got.AverageScore != 100 {
		t.Fatalf("aggregates not refreshed: %+v", got)
	}
}

func TestChallengeStoreAggregatesOverCompletedSet(t *testing.T) {
	ctx := context.Background()
	store := NewChallengeStore()
	challenge := sampleChallenge("ABC123")
	if err := store.InsertChallenge(ctx, &challenge); err != nil {
		t.Fatalf("insert challenge: %v", err)
	}

	for i, pct := range []float64{100, 50} {
		attempt := domain.ChallengeAttempt{ID: string(rune('a' + i)), ChallengeCode: "ABC123"}
		if err := store.InsertAttempt(ctx, &attempt); err != nil {
			t.Fatalf("insert: %v", err)
		}
		attempt.Percentage = pct
		attempt.Completed = true
		if err := store.CompleteAttempt(ctx, &attempt); err != nil {
			t.Fatalf("complete: %v", err)
		}
	}
	// a third attempt stays in progress and must not count
	pending := domain.ChallengeAttempt{ID: "pending", ChallengeCode: "ABC123"}
	if err := store.InsertAttempt(ctx, &pending); err != nil {
		t.Fatalf("insert pending: %v", err)
	}

	got, _ := store.GetChallenge(ctx, "ABC123")
	if got.TotalAttempts != 3 || got.TotalCompletions != 2 || got.AverageScore != 75 {
		t.Fatalf("unexpected aggregates: %+v", got)
	}

	completed, err := store.CompletedAttempts(ctx, "ABC123")
	if err != nil {
		t.Fatalf("completed: %v", err)
	}
	if len(completed) != 2 {
		t.Fatalf("expected 2 completed attempts, got %d", len(completed))
	}
}

func TestChallengeStoreAttemptStats(t *testing.T) {
	ctx := context.Background()
	store := NewChallengeStore()
	challenge := sampleChallenge("ABC123")
	if err := store.InsertChallenge(ctx, &challenge); err != nil {
		t.Fatalf("insert challenge: %v", err)
	}

	alice := "alice"
	runs := []struct {
		id         string
		score, max int
		pct        float64
	}{
		{"a1", 10, 10, 100},
		{"a2", 5, 10, 50},
	}
	for _, run := range runs {
		attempt := domain.ChallengeAttempt{ID: run.id, ChallengeCode: "ABC123", ParticipantID: &alice}
		if err := store.InsertAttempt(ctx, &attempt); err != nil {
			t.Fatalf("insert: %v", err)
		}
		attempt.Score = run.score
		attempt.MaxScore = run.max
		attempt.Percentage = run.pct
		attempt.Completed = true
		if err := store.CompleteAttempt(ctx, &attempt); err != nil {
			t.Fatalf("complete: %v", err)
		}
	}

	stats, err := store.AttemptStats(ctx, "alice")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Completed != 2 || stats.Perfect != 1 || stats.AverageAccuracy != 75 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	empty, _ := store.AttemptStats(ctx, "nobody")
	if empty.Completed != 0 || empty.AverageAccuracy != 0 {
		t.Fatalf("expected zero stats, got %+v", empty)
	}
}
