package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const leaderboardKey = "rating:leaderboard"

// RatingLeaderboard mirrors current ratings into a Redis sorted set so
// rank lookups never hit Postgres. It receives write-through updates from
// the rating service; Postgres remains the source of truth.
type RatingLeaderboard struct {
	client *redis.Client
}

func NewRatingLeaderboard(client *redis.Client) *RatingLeaderboard {
	return &RatingLeaderboard{client: client}
}

func (l *RatingLeaderboard) Record(ctx context.Context, participantID string, rating int) error {
	return l.client.ZAdd(ctx, leaderboardKey, redis.Z{
		Score:  float64(rating),
		Member: participantID,
	}).Err()
}

// Entry is one leaderboard row read back from the sorted set.
type Entry struct {
	ParticipantID string
	Rating        int
}

// Top returns the highest-rated participants, best first.
func (l *RatingLeaderboard) Top(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		return []Entry{}, nil
	}
	members, err := l.client.ZRevRangeWithScores(ctx, leaderboardKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(members))
	for _, m := range members {
		id, _ := m.Member.(string)
		entries = append(entries, Entry{ParticipantID: id, Rating: int(m.Score)})
	}
	return entries, nil
}

// Remove drops a participant from the mirror, for account cleanup.
func (l *RatingLeaderboard) Remove(ctx context.Context, participantID string) error {
	return l.client.ZRem(ctx, leaderboardKey, participantID).Err()
}
