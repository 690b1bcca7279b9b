// Package leaderboard ranks users by total XP in a Redis sorted set.
package leaderboard

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKey is the sorted set holding user XP
const DefaultKey = "codequest:leaderboard"

// Entry is one ranked user
type Entry struct {
	Rank   int    `json:"rank"`
	UserID string `json:"user_id"`
	XP     int    `json:"xp"`
}

// Config holds the Redis connection settings
type Config struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// Board is a Redis-backed leaderboard
type Board struct {
	client *redis.Client
	key    string
}

// New connects to Redis and verifies the connection
func New(cfg Config) (*Board, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis addr cannot be empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return NewWithClient(client, cfg.Key), nil
}

// NewWithClient wraps an existing client
func NewWithClient(client *redis.Client, key string) *Board {
	if key == "" {
		key = DefaultKey
	}
	return &Board{client: client, key: key}
}

// AddXP adds xp to the user's score
func (b *Board) AddXP(ctx context.Context, userID string, xp int) error {
	if err := b.client.ZIncrBy(ctx, b.key, float64(xp), userID).Err(); err != nil {
		return fmt.Errorf("increment score: %w", err)
	}
	return nil
}

// Set overwrites the user's score, used when resyncing from a progress store
func (b *Board) Set(ctx context.Context, userID string, xp int) error {
	return b.client.ZAdd(ctx, b.key, redis.Z{Score: float64(xp), Member: userID}).Err()
}

// Top returns the n highest-scoring users, best first. Ties share a rank.
func (b *Board) Top(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		return []Entry{}, nil
	}

	zs, err := b.client.ZRevRangeWithScores(ctx, b.key, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read leaderboard: %w", err)
	}

	entries := make([]Entry, 0, len(zs))
	for i, z := range zs {
		e := Entry{Rank: i + 1, UserID: fmt.Sprint(z.Member), XP: int(z.Score)}
		if i > 0 && entries[i-1].XP == e.XP {
			e.Rank = entries[i-1].Rank
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Rank returns the user's 1-based position, or 0 if unranked
func (b *Board) Rank(ctx context.Context, userID string) (int, error) {
	r, err := b.client.ZRevRank(ctx, b.key, userID).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read rank: %w", err)
	}
	return int(r) + 1, nil
}

// Close releases the client
func (b *Board) Close() error {
	return b.client.Close()
}
