package core

import (
	"context"
	"errors"

	"github.com/cepa-dev/cepa-chat/internal/models"
)

// ErrSessionNotFound reports a write against a session that does not exist.
var ErrSessionNotFound = errors.New("session not found")

// DbClient defines all persistence operations the services need.
// It abstracts Postgres so higher layers never depend on a specific DB
// and can be tested against mocks.
type DbClient interface {
	ListDocuments(ctx context.Context, activeOnly bool) ([]models.Document, error)
	ListPublications(ctx context.Context) ([]models.Publication, error)

	CreateChatSession(ctx context.Context, session *models.ChatSession) error
	GetChatSessionByID(ctx context.Context, id string) (*models.ChatSession, error)
	ListChatSessions(ctx context.Context, activeOnly bool) ([]models.ChatSession, error)
	DeleteChatSession(ctx context.Context, id string) error

	ListSessionMessages(ctx context.Context, sessionID string) ([]models.ChatMessage, error)
	GetRecentMessages(ctx context.Context, sessionID string, limit int) ([]models.ChatMessage, error)

	// CreateTurnMessages inserts one user/assistant pair in a single
	// transaction and bumps the session's last_activity. Either both
	// messages land or neither does.
	CreateTurnMessages(ctx context.Context, userMsg, assistantMsg *models.ChatMessage) error

	Close() error
}

// TextExtractor pulls plain text out of a source file on disk.
type TextExtractor interface {
	ExtractText(ctx context.Context, path string) (string, error)
}
