package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vovakirdan/modchat-server/internal/store"
)

// Schema creates the messages table. seq preserves save order.
const Schema = `
CREATE TABLE IF NOT EXISTS messages (
	seq            INTEGER PRIMARY KEY AUTOINCREMENT,
	id             TEXT NOT NULL UNIQUE,
	room           TEXT NOT NULL,
	sender         TEXT NOT NULL,
	body           TEXT NOT NULL,
	status         TEXT NOT NULL,
	moderation     TEXT,
	correlation_id TEXT NOT NULL DEFAULT '',
	created_at     DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_room ON messages(room, seq);
`

// SQLiteStore implements store.MessageStore for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(Schema)
		return err
	})
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply a custom schema.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also keeps :memory: databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveMessage persists a message to storage.
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *store.Message) error {
	moderation, err := store.MarshalModeration(msg.Moderation)
	if err != nil {
		return fmt.Errorf("encode moderation: %w", err)
	}

	query := `
		INSERT INTO messages (id, room, sender, body, status, moderation, correlation_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		msg.ID, msg.Room, msg.Sender, msg.Text, string(msg.Status),
		nullableText(moderation), msg.CorrelationID, msg.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// GetMessage retrieves a message by id.
func (s *SQLiteStore) GetMessage(ctx context.Context, id string) (*store.Message, error) {
	query := `
		SELECT id, room, sender, body, status, moderation, correlation_id, created_at
		FROM messages
		WHERE id = ?
	`
	msg, err := scanMessage(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query message: %w", err)
	}
	return msg, nil
}

// ListMessages retrieves the latest messages of a room in save order.
func (s *SQLiteStore) ListMessages(ctx context.Context, room string, limit int) ([]*store.Message, error) {
	query := `
		SELECT id, room, sender, body, status, moderation, correlation_id, created_at
		FROM messages
		WHERE room = ?
		ORDER BY seq DESC
		LIMIT ?
	`
	return s.listLatest(ctx, query, room, limit)
}

// ListVisibleMessages retrieves the latest non-blocked messages of a room in save order.
func (s *SQLiteStore) ListVisibleMessages(ctx context.Context, room string, limit int) ([]*store.Message, error) {
	query := `
		SELECT id, room, sender, body, status, moderation, correlation_id, created_at
		FROM messages
		WHERE room = ? AND status <> 'blocked'
		ORDER BY seq DESC
		LIMIT ?
	`
	return s.listLatest(ctx, query, room, limit)
}

// listLatest runs a newest-first query bound to (room, limit) and returns rows in save order.
func (s *SQLiteStore) listLatest(ctx context.Context, query, room string, limit int) ([]*store.Message, error) {
	if limit <= 0 {
		limit = -1 // no limit in SQLite
	}

	rows, err := s.db.QueryContext(ctx, query, room, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
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

	// Reverse to get save order
	for i := range len(messages) / 2 {
		messages[i], messages[len(messages)-1-i] = messages[len(messages)-1-i], messages[i]
	}

	return messages, nil
}

// DeleteMessage removes a single message.
func (s *SQLiteStore) DeleteMessage(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeleteRoomMessages removes every message of a room.
func (s *SQLiteStore) DeleteRoomMessages(ctx context.Context, room string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE room = ?`, room)
	if err != nil {
		return 0, fmt.Errorf("delete room messages: %w", err)
	}
	return result.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*store.Message, error) {
	var (
		msg        store.Message
		status     string
		moderation sql.NullString
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

	if moderation.Valid {
		mod, err := store.UnmarshalModeration([]byte(moderation.String))
		if err != nil {
			return nil, fmt.Errorf("decode moderation: %w", err)
		}
		msg.Moderation = mod
	}
	return &msg, nil
}

func nullableText(data []byte) sql.NullString {
	if data == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(data), Valid: true}
}
