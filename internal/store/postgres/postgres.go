package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vovakirdan/modchat-server/internal/store"
)

// Schema creates the messages table. seq preserves save order.
const Schema = `
CREATE TABLE IF NOT EXISTS messages (
	seq            BIGSERIAL PRIMARY KEY,
	id             TEXT NOT NULL UNIQUE,
	room           TEXT NOT NULL,
	sender         TEXT NOT NULL,
	body           TEXT NOT NULL,
	status         TEXT NOT NULL,
	moderation     JSONB,
	correlation_id TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_room ON messages(room, seq);
`

// PostgresStore implements store.MessageStore on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// New connects to databaseURL, verifies the connection and applies the schema.
func New(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 20 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Don't leak a half-open pool.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, Schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// SaveMessage persists a message to storage.
func (s *PostgresStore) SaveMessage(ctx context.Context, msg *store.Message) error {
	moderation, err := store.MarshalModeration(msg.Moderation)
	if err != nil {
		return fmt.Errorf("encode moderation: %w", err)
	}

	query := `
		INSERT INTO messages (id, room, sender, body, status, moderation, correlation_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = s.pool.Exec(ctx, query,
		msg.ID, msg.Room, msg.Sender, msg.Text, string(msg.Status),
		moderation, msg.CorrelationID, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// GetMessage retrieves a message by id.
func (s *PostgresStore) GetMessage(ctx context.Context, id string) (*store.Message, error) {
	query := `
		SELECT id, room, sender, body, status, moderation, correlation_id, created_at
		FROM messages
		WHERE id = $1`

	msg, err := scanMessage(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query message: %w", err)
	}
	return msg, nil
}

// ListMessages retrieves the latest messages of a room in save order.
func (s *PostgresStore) ListMessages(ctx context.Context, room string, limit int) ([]*store.Message, error) {
	return s.list(ctx, "room = $1", room, limit)
}

// ListVisibleMessages retrieves the latest non-blocked messages of a room in save order.
func (s *PostgresStore) ListVisibleMessages(ctx context.Context, room string, limit int) ([]*store.Message, error) {
	return s.list(ctx, "room = $1 AND status <> 'blocked'", room, limit)
}

// list selects rows matching where, which may only reference $1 (the room).
func (s *PostgresStore) list(ctx context.Context, where, room string, limit int) ([]*store.Message, error) {
	var query string
	var args []any

	if limit > 0 {
		query = `
			SELECT id, room, sender, body, status, moderation, correlation_id, created_at
			FROM (
				SELECT * FROM messages WHERE ` + where + ` ORDER BY seq DESC LIMIT $2
			) latest
			ORDER BY seq ASC`
		args = []any{room, limit}
	} else {
		query = `
			SELECT id, room, sender, body, status, moderation, correlation_id, created_at
			FROM messages
			WHERE ` + where + `
			ORDER BY seq ASC`
		args = []any{room}
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*store.Message, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}

// DeleteMessage removes a single message.
func (s *PostgresStore) DeleteMessage(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM messages WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeleteRoomMessages removes every message of a room.
func (s *PostgresStore) DeleteRoomMessages(ctx context.Context, room string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM messages WHERE room = $1`, room)
	if err != nil {
		return 0, fmt.Errorf("delete room messages: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanMessage(row pgx.Row) (*store.Message, error) {
	var (
		msg        store.Message
		status     string
		moderation []byte
	)
	if err := row.Scan(
		&msg.ID,
		&msg.Room,
		&msg.Sender,
		&msg.Text,
		&status,
		&moderation,
		&msg.CorrelationID,
		&msg.CreatedAt,
	); err != nil {
		return nil, err
	}
	msg.Status = store.Status(status)

	mod, err := store.UnmarshalModeration(moderation)
	if err != nil {
		return nil, fmt.Errorf("decode moderation: %w", err)
	}
	msg.Moderation = mod
	return &msg, nil
}
