package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/samirkhann/study-assistant/internal/models"
	"github.com/samirkhann/study-assistant/internal/utils"
)

// Postgres stores conversation messages in a single append-only table
// ordered by a per-conversation seq column.
type Postgres struct {
	Pool *pgxpool.Pool

	locks *keyedMutex
}

func NewPostgres(ctx context.Context, cfg utils.PostgresConfig) (*Postgres, error) {
	dsn := cfg.BuildDSN()
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns >= 0 {
		poolConfig.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.HealthCheckPeriod > 0 {
		poolConfig.HealthCheckPeriod = cfg.HealthCheckPeriod
	}

	ctx, cancel := context.WithTimeout(ctx, timeoutOrDefault(cfg.ConnectTimeout))
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}

	return &Postgres{Pool: pool, locks: newKeyedMutex()}, nil
}

func (p *Postgres) Close() {
	if p == nil || p.Pool == nil {
		return
	}
	p.Pool.Close()
}

func (p *Postgres) Ping(ctx context.Context) error {
	if p == nil || p.Pool == nil {
		return fmt.Errorf("postgres: pool not initialised")
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return p.Pool.Ping(ctx)
}

func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if p == nil || p.Pool == nil {
		return fmt.Errorf("postgres: pool not initialised")
	}

	statements := []string{
		strings.Join([]string{
			"CREATE TABLE IF NOT EXISTS messages (",
			"    id TEXT PRIMARY KEY,",
			"    conversation_id TEXT NOT NULL,",
			"    seq BIGINT NOT NULL,",
			"    role TEXT NOT NULL,",
			"    content TEXT NOT NULL,",
			"    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),",
			"    UNIQUE (conversation_id, seq)",
			")",
		}, "\n"),
		"CREATE INDEX IF NOT EXISTS messages_conversation_idx ON messages (conversation_id, seq)",
	}

	for _, stmt := range statements {
		if _, err := p.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: ensure schema: %w", err)
		}
	}

	return nil
}

func (p *Postgres) History(ctx context.Context, conversationID string) ([]models.Message, error) {
	const query = "SELECT id, role, content, created_at FROM messages WHERE conversation_id = $1 ORDER BY seq"

	rows, err := p.Pool.Query(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("postgres: load history: %w", err)
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(&msg.ID, &msg.Role, &msg.Content, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("postgres: scan message: %w", err)
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: read history: %w", err)
	}

	return messages, nil
}

func (p *Postgres) Append(ctx context.Context, conversationID string, msgs ...models.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	unlock := p.locks.Lock(conversationID)
	defer unlock()

	tx, err := p.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin append: %w", err)
	}
	defer tx.Rollback(ctx)

	var seq int64
	const seqQuery = "SELECT COALESCE(MAX(seq), 0) FROM messages WHERE conversation_id = $1"
	if err := tx.QueryRow(ctx, seqQuery, conversationID).Scan(&seq); err != nil {
		return fmt.Errorf("postgres: read last seq: %w", err)
	}

	const insert = "INSERT INTO messages (id, conversation_id, seq, role, content, created_at) VALUES ($1, $2, $3, $4, $5, $6)"
	for _, msg := range msgs {
		seq++
		_, err := tx.Exec(ctx, insert, messageID(msg), conversationID, seq, msg.Role, msg.Content, messageTimestamp(msg))
		if err != nil {
			return fmt.Errorf("postgres: append message: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit append: %w", err)
	}

	return nil
}

func (p *Postgres) Clear(ctx context.Context, conversationID string) error {
	if _, err := p.Pool.Exec(ctx, "DELETE FROM messages WHERE conversation_id = $1", conversationID); err != nil {
		return fmt.Errorf("postgres: clear conversation: %w", err)
	}
	return nil
}
