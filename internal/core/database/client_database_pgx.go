package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/cepa-dev/cepa-chat/internal/config"
	"github.com/cepa-dev/cepa-chat/internal/core"
	"github.com/cepa-dev/cepa-chat/internal/models"
)

type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(ctx context.Context, cfg *config.Config) (core.DbClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Sensible pool settings for an API service; adjust as needed.
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Implementing the db interface for documents

func (c *DatabaseClient) ListDocuments(ctx context.Context, activeOnly bool) ([]models.Document, error) {
	q := `
		SELECT id, name, file_path, description, is_active, created_at, updated_at
		FROM chatbot_documents
		ORDER BY created_at DESC
	`
	if activeOnly {
		q = `
		SELECT id, name, file_path, description, is_active, created_at, updated_at
		FROM chatbot_documents
		WHERE is_active = TRUE
		ORDER BY created_at DESC
	`
	}
	rows, err := c.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Document
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(
			&d.ID, &d.Name, &d.FilePath, &d.Description, &d.IsActive, &d.CreatedAt, &d.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) ListPublications(ctx context.Context) ([]models.Publication, error) {
	const q = `
		SELECT id, title, description, COALESCE(pdf_path, ''), COALESCE(url, ''), created_at, updated_at
		FROM publications
		ORDER BY created_at DESC
	`
	rows, err := c.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Publication
	for rows.Next() {
		var p models.Publication
		if err := rows.Scan(
			&p.ID, &p.Title, &p.Description, &p.PDFPath, &p.URL, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Implementing the db interface for chat sessions

func (c *DatabaseClient) CreateChatSession(ctx context.Context, session *models.ChatSession) error {
	if session == nil {
		return errors.New("nil session")
	}
	const q = `
		INSERT INTO chat_sessions (id, session_title, started_at, last_activity, is_active, created_at, updated_at)
		VALUES ($1, $2, COALESCE($3, now()), COALESCE($4, now()), $5, COALESCE($6, now()), COALESCE($7, now()))
	`
	_, err := c.db.ExecContext(ctx, q,
		session.ID, session.SessionTitle, session.StartedAt, session.LastActivity,
		session.IsActive, session.CreatedAt, session.UpdatedAt)
	return err
}

func (c *DatabaseClient) GetChatSessionByID(ctx context.Context, id string) (*models.ChatSession, error) {
	const q = `
		SELECT id, COALESCE(session_title, ''), started_at, last_activity, is_active, created_at, updated_at
		FROM chat_sessions
		WHERE id = $1
	`
	var s models.ChatSession
	err := c.db.QueryRowContext(ctx, q, id).Scan(
		&s.ID, &s.SessionTitle, &s.StartedAt, &s.LastActivity, &s.IsActive, &s.CreatedAt, &s.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *DatabaseClient) ListChatSessions(ctx context.Context, activeOnly bool) ([]models.ChatSession, error) {
	q := `
		SELECT s.id, COALESCE(s.session_title, ''), s.started_at, s.last_activity, s.is_active,
		       s.created_at, s.updated_at, COUNT(m.id)
		FROM chat_sessions s
		LEFT JOIN chat_messages m ON m.session_id = s.id
		GROUP BY s.id
		ORDER BY s.last_activity DESC
	`
	if activeOnly {
		q = `
		SELECT s.id, COALESCE(s.session_title, ''), s.started_at, s.last_activity, s.is_active,
		       s.created_at, s.updated_at, COUNT(m.id)
		FROM chat_sessions s
		LEFT JOIN chat_messages m ON m.session_id = s.id
		WHERE s.is_active = TRUE
		GROUP BY s.id
		ORDER BY s.last_activity DESC
	`
	}
	rows, err := c.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ChatSession
	for rows.Next() {
		var s models.ChatSession
		if err := rows.Scan(
			&s.ID, &s.SessionTitle, &s.StartedAt, &s.LastActivity, &s.IsActive,
			&s.CreatedAt, &s.UpdatedAt, &s.MessageCount,
		); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) DeleteChatSession(ctx context.Context, id string) error {
	// Messages cascade via the FK.
	const q = `DELETE FROM chat_sessions WHERE id = $1`
	res, err := c.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: %s", core.ErrSessionNotFound, id)
	}
	return nil
}

// Implementing the db interface for chat messages

func (c *DatabaseClient) ListSessionMessages(ctx context.Context, sessionID string) ([]models.ChatMessage, error) {
	const q = `
		SELECT id, session_id, message_type, content,
		       COALESCE(source_document_name, ''), COALESCE(source_document_url, ''),
		       COALESCE(source_document_type, ''), confidence, created_at
		FROM chat_messages
		WHERE session_id = $1
		ORDER BY created_at ASC
	`
	return c.queryMessages(ctx, q, sessionID)
}

func (c *DatabaseClient) GetRecentMessages(ctx context.Context, sessionID string, limit int) ([]models.ChatMessage, error) {
	const q = `
		SELECT id, session_id, message_type, content,
		       COALESCE(source_document_name, ''), COALESCE(source_document_url, ''),
		       COALESCE(source_document_type, ''), confidence, created_at
		FROM chat_messages
		WHERE session_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	return c.queryMessages(ctx, q, sessionID, limit)
}

func (c *DatabaseClient) queryMessages(ctx context.Context, q string, args ...any) ([]models.ChatMessage, error) {
	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(
			&m.ID, &m.SessionID, &m.MessageType, &m.Content,
			&m.SourceDocumentName, &m.SourceDocumentURL, &m.SourceDocumentType,
			&m.Confidence, &m.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// CreateTurnMessages inserts the user and assistant messages of one turn in
// a single transaction and bumps the session's last_activity with them.
func (c *DatabaseClient) CreateTurnMessages(ctx context.Context, userMsg, assistantMsg *models.ChatMessage) error {
	if userMsg == nil || assistantMsg == nil {
		return errors.New("nil message")
	}
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}

	const q = `
		INSERT INTO chat_messages
			(id, session_id, message_type, content,
			 source_document_name, source_document_url, source_document_type,
			 confidence, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), $8, COALESCE($9, now()))
	`
	for _, m := range []*models.ChatMessage{userMsg, assistantMsg} {
		if _, err := tx.ExecContext(ctx, q,
			m.ID, m.SessionID, m.MessageType, m.Content,
			m.SourceDocumentName, m.SourceDocumentURL, m.SourceDocumentType,
			m.Confidence, m.CreatedAt,
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	const touch = `UPDATE chat_sessions SET last_activity = now(), updated_at = now() WHERE id = $1`
	if _, err := tx.ExecContext(ctx, touch, userMsg.SessionID); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}
