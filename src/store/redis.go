package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds connection settings for the Redis store.
type RedisConfig struct {
	Addr        string // Redis address, default "localhost:6379"
	Password    string // Redis password, default ""
	DB          int    // Redis database number, default 0
	Prefix      string // key prefix, default "tui-chat:"
	MaxMessages int64  // per-room message cap, default 500
}

// DefaultRedisConfig returns a RedisConfig with sensible defaults.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:        "localhost:6379",
		Prefix:      "tui-chat:",
		MaxMessages: 500,
	}
}

// RedisConfigFromEnv loads Redis configuration from environment variables.
// Falls back to defaults for any missing values.
func RedisConfigFromEnv() RedisConfig {
	cfg := DefaultRedisConfig()

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	if pw := os.Getenv("REDIS_PASSWORD"); pw != "" {
		cfg.Password = pw
	}
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if db, err := strconv.Atoi(dbStr); err == nil {
			cfg.DB = db
		}
	}
	if prefix := os.Getenv("REDIS_PREFIX"); prefix != "" {
		cfg.Prefix = prefix
	}
	if capStr := os.Getenv("REDIS_MAX_MESSAGES"); capStr != "" {
		if n, err := strconv.ParseInt(capStr, 10, 64); err == nil && n > 0 {
			cfg.MaxMessages = n
		}
	}
	return cfg
}

// RedisStore keeps rooms in a hash and messages in capped per-room lists.
type RedisStore struct {
	client      *redis.Client
	prefix      string
	maxMessages int64
}

type redisMessage struct {
	Username string    `json:"username"`
	Content  string    `json:"content"`
	SentAt   time.Time `json:"sent_at"`
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("store: ping redis: %w", err)
	}
	return &RedisStore{
		client:      client,
		prefix:      cfg.Prefix,
		maxMessages: cfg.MaxMessages,
	}, nil
}

// EnsureRoom records the room slug in the rooms hash on first sight.
// Room IDs are the slug itself; Redis has no separate identifier to allocate.
func (s *RedisStore) EnsureRoom(ctx context.Context, slug string) (RoomRecord, error) {
	now := time.Now()
	created, err := s.client.HSetNX(ctx, s.roomsKey(), slug, now.Format(time.RFC3339)).Result()
	if err != nil {
		return RoomRecord{}, fmt.Errorf("store: ensure room %q: %w", slug, err)
	}

	createdAt := now
	if !created {
		if raw, err := s.client.HGet(ctx, s.roomsKey(), slug).Result(); err == nil {
			if ts, perr := time.Parse(time.RFC3339, raw); perr == nil {
				createdAt = ts
			}
		}
	}
	return RoomRecord{ID: slug, Slug: slug, CreatedAt: createdAt}, nil
}

// AppendMessage pushes the message onto the room's list and trims it to the
// configured cap, oldest entries evicted first.
func (s *RedisStore) AppendMessage(ctx context.Context, roomID, username, content string, sentAt time.Time) error {
	data, err := json.Marshal(redisMessage{Username: username, Content: content, SentAt: sentAt})
	if err != nil {
		return fmt.Errorf("store: encode message: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, s.messagesKey(roomID), data)
	pipe.LTrim(ctx, s.messagesKey(roomID), -s.maxMessages, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store: append message: %w", err)
	}
	return nil
}

// Close shuts down the Redis connection.
func (s *RedisStore) Close(context.Context) error {
	return s.client.Close()
}

func (s *RedisStore) roomsKey() string { return s.prefix + "rooms" }

func (s *RedisStore) messagesKey(roomID string) string {
	return s.prefix + "messages:" + roomID
}
