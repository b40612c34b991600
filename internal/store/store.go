package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/relaylabs/chatrelay/internal/model"
)

// ErrNotFound is returned when a requested user does not exist.
var ErrNotFound = errors.New("not found")

// MaxHistoryLimit caps how many messages a single history query returns.
const MaxHistoryLimit = 100

// Store provides durable access to users and messages.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New creates a Store on top of an existing connection pool.
func New(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}
}

// Ping verifies the storage connection is healthy.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// EnsureSchema creates the tables and indexes if they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id   BIGSERIAL PRIMARY KEY,
			name VARCHAR(30) NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id           BIGSERIAL PRIMARY KEY,
			user_id      BIGINT NOT NULL REFERENCES users(id),
			content      VARCHAR(500) NOT NULL,
			is_from_user BOOLEAN NOT NULL,
			ts           TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_message_user_id ON messages (user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_message_timestamp ON messages (ts)`,
	}

	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// SeedUserIfNeeded creates the default user unless it already exists.
func (s *Store) SeedUserIfNeeded(ctx context.Context, name string) error {
	user, err := s.FindOrCreateUser(ctx, name)
	if err != nil {
		return fmt.Errorf("seed user: %w", err)
	}
	s.logger.Info("seed user ready", "id", user.ID, "name", user.Name)
	return nil
}

// FindOrCreateUser returns the user with the given name, creating it on
// first use.
func (s *Store) FindOrCreateUser(ctx context.Context, name string) (model.User, error) {
	var user model.User

	// ON CONFLICT keeps concurrent find-or-create calls race-free; the
	// follow-up SELECT covers the conflict case where nothing is returned.
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (name) VALUES ($1)
		 ON CONFLICT (name) DO NOTHING
		 RETURNING id, name`, name,
	).Scan(&user.ID, &user.Name)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, fmt.Errorf("create user: %w", err)
	}

	err = s.pool.QueryRow(ctx,
		`SELECT id, name FROM users WHERE name = $1`, name,
	).Scan(&user.ID, &user.Name)
	if err != nil {
		return model.User{}, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

// GetUser fetches a user by id. Returns ErrNotFound if absent.
func (s *Store) GetUser(ctx context.Context, id int64) (model.User, error) {
	var user model.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, name FROM users WHERE id = $1`, id,
	).Scan(&user.ID, &user.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// AppendMessage durably writes one message and returns it with the
// storage-assigned id and timestamp.
func (s *Store) AppendMessage(ctx context.Context, msg model.Message) (model.Message, error) {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO messages (user_id, content, is_from_user)
		 VALUES ($1, $2, $3)
		 RETURNING id, ts`,
		msg.UserID, msg.Content, msg.IsFromUser,
	).Scan(&msg.ID, &msg.Timestamp)
	if err != nil {
		return model.Message{}, fmt.Errorf("append message: %w", err)
	}
	return msg, nil
}

// AppendMessages durably writes a batch of messages as a single
// transaction and returns them with assigned ids and timestamps.
func (s *Store) AppendMessages(ctx context.Context, msgs []model.Message) ([]model.Message, error) {
	if len(msgs) == 0 {
		return nil, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin batch: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, m := range msgs {
		batch.Queue(
			`INSERT INTO messages (user_id, content, is_from_user)
			 VALUES ($1, $2, $3)
			 RETURNING id, ts`,
			m.UserID, m.Content, m.IsFromUser,
		)
	}

	results := tx.SendBatch(ctx, batch)
	out := make([]model.Message, len(msgs))
	for i, m := range msgs {
		if err := results.QueryRow().Scan(&m.ID, &m.Timestamp); err != nil {
			results.Close()
			return nil, fmt.Errorf("append batch row %d: %w", i, err)
		}
		out[i] = m
	}
	if err := results.Close(); err != nil {
		return nil, fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit batch: %w", err)
	}
	return out, nil
}

// RecentMessages returns up to limit messages for a user, oldest first.
// When beforeID is non-zero only messages with smaller ids are returned,
// which pages backwards through history.
func (s *Store) RecentMessages(ctx context.Context, userID, beforeID int64, limit int) ([]model.Message, error) {
	limit = ClampLimit(limit)

	var (
		rows pgx.Rows
		err  error
	)
	if beforeID > 0 {
		rows, err = s.pool.Query(ctx,
			`SELECT id, user_id, content, is_from_user, ts
			 FROM messages
			 WHERE user_id = $1 AND id < $2
			 ORDER BY id DESC
			 LIMIT $3`,
			userID, beforeID, limit)
	} else {
		rows, err = s.pool.Query(ctx,
			`SELECT id, user_id, content, is_from_user, ts
			 FROM messages
			 WHERE user_id = $1
			 ORDER BY id DESC
			 LIMIT $2`,
			userID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	msgs := make([]model.Message, 0, limit)
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.UserID, &m.Content, &m.IsFromUser, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read messages: %w", err)
	}

	Reverse(msgs)
	return msgs, nil
}

// ClampLimit normalizes a requested history page size.
func ClampLimit(limit int) int {
	if limit <= 0 || limit > MaxHistoryLimit {
		return MaxHistoryLimit
	}
	return limit
}

// Reverse flips a newest-first result into oldest-first order.
func Reverse(msgs []model.Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}
