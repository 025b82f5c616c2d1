package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/aws-agent/console/internal/storage/models"
	"github.com/aws-agent/console/pkg/logger"
)

// ErrNoSession is returned when nobody is logged in.
var ErrNoSession = errors.New("no active session")

// One dashboard session per process, stored under a fixed row id.
const currentSession = "current"

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		token TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS mutation_history (
		id TEXT PRIMARY KEY,
		recommendation_id TEXT NOT NULL,
		action TEXT NOT NULL,
		success INTEGER NOT NULL,
		message TEXT,
		latency_ms INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_mutation_created ON mutation_history(created_at);
	CREATE INDEX IF NOT EXISTS idx_mutation_recommendation ON mutation_history(recommendation_id);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

// SaveSession replaces the stored session.
func (c *Client) SaveSession(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO sessions (id, username, token, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			token = excluded.token,
			created_at = excluded.created_at
	`

	createdAt := session.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := c.db.ExecContext(ctx, query, currentSession, session.Username, session.Token, createdAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	logger.Info("Session saved", zap.String("username", session.Username))
	return nil
}

func (c *Client) LoadSession(ctx context.Context) (*models.Session, error) {
	query := `SELECT username, token, created_at FROM sessions WHERE id = ?`

	var session models.Session
	var createdAt int64

	err := c.db.QueryRowContext(ctx, query, currentSession).Scan(
		&session.Username,
		&session.Token,
		&createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	session.CreatedAt = time.Unix(createdAt, 0)
	return &session, nil
}

func (c *Client) DeleteSession(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, currentSession)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	logger.Info("Session deleted")
	return nil
}

// Token returns the stored bearer token, or "" when logged out.
func (c *Client) Token(ctx context.Context) (string, error) {
	session, err := c.LoadSession(ctx)
	if errors.Is(err, ErrNoSession) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return session.Token, nil
}

func (c *Client) RecordMutation(ctx context.Context, record *models.MutationRecord) error {
	query := `
		INSERT INTO mutation_history (id, recommendation_id, action, success, message, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	success := 0
	if record.Success {
		success = 1
	}

	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := c.db.ExecContext(
		ctx,
		query,
		record.ID,
		record.RecommendationID,
		record.Action,
		success,
		record.Message,
		record.LatencyMS,
		createdAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to record mutation: %w", err)
	}

	logger.Debug("Mutation recorded",
		zap.String("recommendation_id", record.RecommendationID),
		zap.String("action", record.Action),
		zap.Bool("success", record.Success),
	)
	return nil
}

// RecentMutations returns up to limit records, newest first.
func (c *Client) RecentMutations(ctx context.Context, limit int) ([]models.MutationRecord, error) {
	query := `
		SELECT id, recommendation_id, action, success, message, latency_ms, created_at
		FROM mutation_history
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`

	rows, err := c.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query mutation history: %w", err)
	}
	defer rows.Close()

	records := []models.MutationRecord{}
	for rows.Next() {
		var record models.MutationRecord
		var success int
		var message sql.NullString
		var createdAt int64

		err := rows.Scan(
			&record.ID,
			&record.RecommendationID,
			&record.Action,
			&success,
			&message,
			&record.LatencyMS,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mutation record: %w", err)
		}

		record.Success = success == 1
		record.Message = message.String
		record.CreatedAt = time.UnixMilli(createdAt)
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read mutation history: %w", err)
	}
	return records, nil
}
