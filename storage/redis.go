package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"court-notifier/types"
)

const (
	notifiedTTL = 48 * time.Hour
	courtsTTL   = 24 * time.Hour
)

// Redis keeps what was already sent and a short-lived court catalog cache.
type Redis struct {
	client *redis.Client
}

func NewRedis(addr, password string, db int) *Redis {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Redis{client: rdb}
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (s *Redis) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Redis) Close() error {
	return s.client.Close()
}

// ===== Notification state =====

func notifiedKey(requestID int64) string {
	return fmt.Sprintf("notified:%d", requestID)
}

// Notified returns the fingerprints already sent for a request.
func (s *Redis) Notified(ctx context.Context, requestID int64) (map[string]bool, error) {
	members, err := s.client.SMembers(ctx, notifiedKey(requestID)).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(members))
	for _, m := range members {
		out[m] = true
	}
	return out, nil
}

// MarkNotified remembers fingerprints for two days.
func (s *Redis) MarkNotified(ctx context.Context, requestID int64, fingerprints []string) error {
	if len(fingerprints) == 0 {
		return nil
	}
	key := notifiedKey(requestID)
	members := make([]interface{}, len(fingerprints))
	for i, f := range fingerprints {
		members[i] = f
	}
	if err := s.client.SAdd(ctx, key, members...).Err(); err != nil {
		return err
	}
	return s.client.Expire(ctx, key, notifiedTTL).Err()
}

// ResetNotified forgets everything sent for a request.
func (s *Redis) ResetNotified(ctx context.Context, requestID int64) error {
	return s.client.Del(ctx, notifiedKey(requestID)).Err()
}

// ===== Court catalog cache =====

type cachedCourt struct {
	ID            string
	Surface       types.Surface
	Roofed        bool
	DisplayNumber int
}

func courtsKey(club string) string {
	return "cache:courts:" + club
}

// SaveCourts caches the court list of a club.
func (s *Redis) SaveCourts(ctx context.Context, club string, courts []types.CourtRef) error {
	list := make([]cachedCourt, len(courts))
	for i, c := range courts {
		list[i] = cachedCourt{ID: c.ID, Surface: c.Surface, Roofed: c.Roofed, DisplayNumber: c.DisplayNumber}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, courtsKey(club), data, courtsTTL).Err()
}

// GetCourts returns nil, nil on a cache miss.
func (s *Redis) GetCourts(ctx context.Context, club string) ([]types.CourtRef, error) {
	val, err := s.client.Get(ctx, courtsKey(club)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var list []cachedCourt
	if err := json.Unmarshal([]byte(val), &list); err != nil {
		return nil, err
	}
	out := make([]types.CourtRef, len(list))
	for i, c := range list {
		out[i] = types.CourtRef{ID: c.ID, Surface: c.Surface, Roofed: c.Roofed, DisplayNumber: c.DisplayNumber, Known: true}
	}
	return out, nil
}

// InvalidateCourts drops the cached court list of a club.
func (s *Redis) InvalidateCourts(ctx context.Context, club string) error {
	return s.client.Del(ctx, courtsKey(club)).Err()
}
