package redis

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLeaderboard(t *testing.T) *RatingLeaderboard {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRatingLeaderboard(client)
}

func TestRatingLeaderboardOrdersByRating(t *testing.T) {
	lb := newTestLeaderboard(t)
	ctx := context.Background()

	for _, rec := range []struct {
		id     string
		rating int
	}{
		{"player-a", 1200},
		{"player-b", 1450},
		{"player-c", 1000},
	} {
		if err := lb.Record(ctx, rec.id, rec.rating); err != nil {
			t.Fatalf("record %s: %v", rec.id, err)
		}
	}

	top, err := lb.Top(ctx, 2)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(top))
	}
	if top[0].ParticipantID != "player-b" || top[0].Rating != 1450 {
		t.Fatalf("unexpected first entry: %+v", top[0])
	}
	if top[1].ParticipantID != "player-a" {
		t.Fatalf("unexpected second entry: %+v", top[1])
	}
}

func TestRatingLeaderboardRecordOverwrites(t *testing.T) {
	lb := newTestLeaderboard(t)
	ctx := context.Background()

	if err := lb.Record(ctx, "player-a", 1000); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := lb.Record(ctx, "player-a", 1016); err != nil {
		t.Fatalf("record update: %v", err)
	}

	top, err := lb.Top(ctx, 10)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(top) != 1 {
		t.Fatalf("expected a single entry, got %d", len(top))
	}
	if top[0].Rating != 1016 {
		t.Fatalf("expected updated rating 1016, got %d", top[0].Rating)
	}
}

func TestRatingLeaderboardRemove(t *testing.T) {
	lb := newTestLeaderboard(t)
	ctx := context.Background()

	if err := lb.Record(ctx, "player-a", 1000); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := lb.Remove(ctx, "player-a"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	top, err := lb.Top(ctx, 10)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(top) != 0 {
		t.Fatalf("expected empty leaderboard, got %d entries", len(top))
	}
}
