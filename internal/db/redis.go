package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/samirkhann/study-assistant/internal/models"
	"github.com/samirkhann/study-assistant/internal/utils"
)

const redisHistoryKeyPrefix = "chat:history:"

// Redis keeps each conversation as a list of JSON-encoded messages. RPUSH is
// atomic server-side, so one variadic Append lands as one contiguous unit
// without client-side locking.
type Redis struct {
	Client *redis.Client
}

func NewRedis(ctx context.Context, cfg utils.RedisConfig) (*Redis, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, errors.New("redis: address is empty")
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})

	pingCtx, cancel := context.WithTimeout(ctx, timeoutOrDefault(cfg.DialTimeout))
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}

	return &Redis{Client: client}, nil
}

func (r *Redis) Close() error {
	if r == nil || r.Client == nil {
		return nil
	}
	return r.Client.Close()
}

func (r *Redis) History(ctx context.Context, conversationID string) ([]models.Message, error) {
	entries, err := r.Client.LRange(ctx, historyKey(conversationID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: load history: %w", err)
	}

	messages := make([]models.Message, 0, len(entries))
	for _, entry := range entries {
		var msg models.Message
		if err := json.Unmarshal([]byte(entry), &msg); err != nil {
			return nil, fmt.Errorf("redis: decode message: %w", err)
		}
		messages = append(messages, msg)
	}

	return messages, nil
}

func (r *Redis) Append(ctx context.Context, conversationID string, msgs ...models.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	values := make([]interface{}, 0, len(msgs))
	for _, msg := range msgs {
		msg.ID = messageID(msg)
		msg.Timestamp = messageTimestamp(msg)

		encoded, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("redis: encode message: %w", err)
		}
		values = append(values, encoded)
	}

	if err := r.Client.RPush(ctx, historyKey(conversationID), values...).Err(); err != nil {
		return fmt.Errorf("redis: append messages: %w", err)
	}

	return nil
}

func (r *Redis) Clear(ctx context.Context, conversationID string) error {
	if err := r.Client.Del(ctx, historyKey(conversationID)).Err(); err != nil {
		return fmt.Errorf("redis: clear conversation: %w", err)
	}
	return nil
}

func historyKey(conversationID string) string {
	return redisHistoryKeyPrefix + conversationID
}
