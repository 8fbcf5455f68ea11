// Package redis stores messages in Redis: one JSON value per message and a
// sorted set per room whose scores come from a global save counter.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vovakirdan/modchat-server/internal/store"
)

const defaultPrefix = "modchat:"

// RedisStore implements store.MessageStore on a Redis client.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// record is the JSON shape of a stored message.
type record struct {
	ID            string            `json:"id"`
	Room          string            `json:"room"`
	Sender        string            `json:"sender"`
	Text          string            `json:"text"`
	Status        string            `json:"status"`
	Moderation    *store.Moderation `json:"moderation,omitempty"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// New parses a redis:// URL, connects and verifies the connection.
func New(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return NewWithClient(client, defaultPrefix), nil
}

// NewWithClient wraps an existing client. Keys are namespaced by prefix.
func NewWithClient(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) messageKey(id string) string { return s.prefix + "msg:" + id }
func (s *RedisStore) roomKey(room string) string  { return s.prefix + "room:" + room }
func (s *RedisStore) seqKey() string              { return s.prefix + "seq" }

// SaveMessage persists a message to storage.
func (s *RedisStore) SaveMessage(ctx context.Context, msg *store.Message) error {
	data, err := json.Marshal(record{
		ID:            msg.ID,
		Room:          msg.Room,
		Sender:        msg.Sender,
		Text:          msg.Text,
		Status:        string(msg.Status),
		Moderation:    msg.Moderation,
		CorrelationID: msg.CorrelationID,
		CreatedAt:     msg.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	seq, err := s.client.Incr(ctx, s.seqKey()).Result()
	if err != nil {
		return fmt.Errorf("next seq: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.messageKey(msg.ID), data, 0)
		pipe.ZAdd(ctx, s.roomKey(msg.Room), redis.Z{Score: float64(seq), Member: msg.ID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	return nil
}

// GetMessage retrieves a message by id.
func (s *RedisStore) GetMessage(ctx context.Context, id string) (*store.Message, error) {
	data, err := s.client.Get(ctx, s.messageKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get message: %w", err)
	}
	return decode(data)
}

// ListMessages retrieves the latest messages of a room in save order.
func (s *RedisStore) ListMessages(ctx context.Context, room string, limit int) ([]*store.Message, error) {
	start := int64(0)
	if limit > 0 {
		start = -int64(limit)
	}

	ids, err := s.client.ZRange(ctx, s.roomKey(room), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list room ids: %w", err)
	}
	return s.load(ctx, ids)
}

// visiblePage is how many ids ListVisibleMessages reads per round trip.
const visiblePage = 128

// ListVisibleMessages retrieves the latest non-blocked messages of a room in save order.
// The room index carries no status, so it walks the index newest first one page at a time.
func (s *RedisStore) ListVisibleMessages(ctx context.Context, room string, limit int) ([]*store.Message, error) {
	var newestFirst []*store.Message
	for offset := int64(0); ; offset += visiblePage {
		ids, err := s.client.ZRevRange(ctx, s.roomKey(room), offset, offset+visiblePage-1).Result()
		if err != nil {
			return nil, fmt.Errorf("list room ids: %w", err)
		}
		page, err := s.load(ctx, ids)
		if err != nil {
			return nil, err
		}
		for _, msg := range page {
			if !msg.Visible() {
				continue
			}
			newestFirst = append(newestFirst, msg)
			if limit > 0 && len(newestFirst) == limit {
				break
			}
		}
		if len(ids) < visiblePage || (limit > 0 && len(newestFirst) == limit) {
			break
		}
	}

	messages := make([]*store.Message, 0, len(newestFirst))
	for i := len(newestFirst) - 1; i >= 0; i-- {
		messages = append(messages, newestFirst[i])
	}
	return messages, nil
}

// load fetches message bodies for ids, preserving their order.
func (s *RedisStore) load(ctx context.Context, ids []string) ([]*store.Message, error) {
	if len(ids) == 0 {
		return []*store.Message{}, nil
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, s.messageKey(id))
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}

	messages := make([]*store.Message, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue // removed between ZRANGE and MGET
		}
		msg, err := decode([]byte(raw))
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// DeleteMessage removes a single message.
func (s *RedisStore) DeleteMessage(ctx context.Context, id string) error {
	msg, err := s.GetMessage(ctx, id)
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.messageKey(id))
		pipe.ZRem(ctx, s.roomKey(msg.Room), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

// DeleteRoomMessages removes every message of a room.
func (s *RedisStore) DeleteRoomMessages(ctx context.Context, room string) (int64, error) {
	ids, err := s.client.ZRange(ctx, s.roomKey(room), 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("list room ids: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			pipe.Del(ctx, s.messageKey(id))
		}
		pipe.Del(ctx, s.roomKey(room))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("delete room messages: %w", err)
	}
	return int64(len(ids)), nil
}

func decode(data []byte) (*store.Message, error) {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	return &store.Message{
		ID:            r.ID,
		Room:          r.Room,
		Sender:        r.Sender,
		Text:          r.Text,
		Status:        store.Status(r.Status),
		Moderation:    r.Moderation,
		CorrelationID: r.CorrelationID,
		CreatedAt:     r.CreatedAt,
	}, nil
}
