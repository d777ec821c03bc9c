package memory

import (
	"context"
	"testing"

	"lingo-challenge-service/internal/domain"
)

func TestRatingStoreApplyMatchWritesBothSides(t *testing.T) {
	ctx := context.Background()
	store := NewRatingStore()

	a := domain.PlayerRating{ParticipantID: "alice", CurrentRating: 1016, Wins: 1}
	b := domain.PlayerRating{ParticipantID: "bob", CurrentRating: 984, Losses: 1}
	ha := domain.RatingHistory{ID: "h1", ParticipantID: "alice", RatingBefore: 1000, RatingAfter: 1016, Change: 16, IsWin: true}
	hb := domain.RatingHistory{ID: "h2", ParticipantID: "bob", RatingBefore: 1000, RatingAfter: 984, Change: -16}

	if err := store.ApplyMatch(ctx, &a, &b, &ha, &hb); err != nil {
		t.Fatalf("apply: %v", err)
	}

	gotA, ok, _ := store.Get(ctx, "alice")
	if !ok || gotA.CurrentRating != 1016 {
		t.Fatalf("winner not stored: %+v", gotA)
	}
	gotB, _, _ := store.Get(ctx, "bob")
	if gotB.CurrentRating != 984 {
		t.Fatalf("loser not stored: %+v", gotB)
	}
	history, _ := store.History(ctx, "alice", 10)
	if len(history) != 1 || history[0].RatingAfter != 1016 {
		t.Fatalf("history not written: %+v", history)
	}
}

func TestRatingStoreCreateKeepsExisting(t *testing.T) {
	ctx := context.Background()
	store := NewRatingStore()

	first := domain.PlayerRating{ParticipantID: "alice", CurrentRating: 1200}
	if err := store.Create(ctx, &first); err != nil {
		t.Fatalf("create: %v", err)
	}
	second := domain.PlayerRating{ParticipantID: "alice", CurrentRating: 1000}
	if err := store.Create(ctx, &second); err != nil {
		t.Fatalf("create again: %v", err)
	}
	if second.CurrentRating != 1200 {
		t.Fatalf("create must hand back the stored record, got %+v", second)
	}
}

func TestRatingStoreLeaderboardFiltersAndOrders(t *testing.T) {
	ctx := context.Background()
	store := NewRatingStore()

	seed := func(id string, rating, wins int, language string) {
		r := domain.PlayerRating{ParticipantID: id, CurrentRating: rating, Wins: wins, Language: language}
		if err := store.Create(ctx, &r); err != nil {
			t.Fatalf("seed %s: %v", id, err)
		}
	}
	seed("a", 1400, 6, "es")
	seed("b", 1500, 2, "es") // below the match floor
	seed("c", 1300, 9, "es")
	seed("d", 1600, 8, "fr")

	board, err := store.Leaderboard(ctx, "es", 5, 10)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(board) != 2 {
		t.Fatalf("expected 2 qualifying entries, got %d", len(board))
	}
	if board[0].ParticipantID != "a" || board[1].ParticipantID != "c" {
		t.Fatalf("unexpected order: %+v", board)
	}

	all, _ := store.Leaderboard(ctx, "", 5, 1)
	if len(all) != 1 || all[0].ParticipantID != "d" {
		t.Fatalf("expected top entry d across languages, got %+v", all)
	}
}

func TestRatingStoreHistoryNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewRatingStore()

	a := domain.PlayerRating{ParticipantID: "alice"}
	b := domain.PlayerRating{ParticipantID: "bob"}
	for i := 0; i < 3; i++ {
		ha := domain.RatingHistory{ID: string(rune('a' + i)), ParticipantID: "alice", RatingAfter: 1000 + i}
		hb := domain.RatingHistory{ID: string(rune('x' + i)), ParticipantID: "bob"}
		if err := store.ApplyMatch(ctx, &a, &b, &ha, &hb); err != nil {
			t.Fatalf("apply %d: %v", i, err)
		}
	}

	history, _ := store.History(ctx, "alice", 2)
	if len(history) != 2 {
		t.Fatalf("limit not applied, got %d", len(history))
	}
	if history[0].RatingAfter != 1002 || history[1].RatingAfter != 1001 {
		t.Fatalf("expected newest first, got %+v", history)
	}
}
