package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"docqa/internal/answer"
)

const answerKeyPrefix = "answer:"

type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new Redis cache client.
func NewRedisCache(addr, password string) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return &RedisCache{client: client}, nil
}

func (c *RedisCache) GetAnswer(ctx context.Context, key string) (*answer.Answer, error) {
	data, err := c.client.Get(ctx, answerKeyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, nil // cache miss
	}
	if err != nil {
		return nil, err
	}

	var ans answer.Answer
	if err := json.Unmarshal(data, &ans); err != nil {
		return nil, err
	}
	return &ans, nil
}

func (c *RedisCache) SetAnswer(ctx context.Context, key string, ans *answer.Answer, ttl time.Duration) error {
	data, err := json.Marshal(ans)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, answerKeyPrefix+key, data, ttl).Err()
}

// InvalidateAll scans and deletes every cached answer. Coarse, but corpus
// writes are rare relative to queries.
func (c *RedisCache) InvalidateAll(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, answerKeyPrefix+"*", 0).Iterator()

	pipe := c.client.Pipeline()
	count := 0
	for iter.Next(ctx) {
		pipe.Del(ctx, iter.Val())
		count++
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if count > 0 {
		_, err := pipe.Exec(ctx)
		return err
	}
	return nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
