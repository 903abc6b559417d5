package models

import (
	"time"
)

// Message type discriminators for ChatMessage.
const (
	MessageTypeUser      = "user"
	MessageTypeAssistant = "assistant"
)

// Source kinds for answer attribution.
const (
	SourceTypeDocument    = "document"
	SourceTypePublication = "publication"
)

// Document is a knowledge-base source managed through the admin tooling.
// The chat pipeline only ever reads it.
type Document struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	FilePath    string    `db:"file_path" json:"file"`
	FileURL     string    `db:"-" json:"file_url"`
	Description string    `db:"description" json:"description"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Publication is a research output owned by the resources collaborator.
// It carries either an uploaded PDF or an external URL, possibly neither.
type Publication struct {
	ID          string    `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	PDFPath     string    `db:"pdf_path" json:"pdf,omitempty"`
	URL         string    `db:"url" json:"url,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// ChatSession is one conversation container. The ID is server-generated
// and immutable; LastActivity is touched on every persisted turn.
type ChatSession struct {
	ID           string    `db:"id" json:"id"`
	SessionTitle string    `db:"session_title" json:"session_title"`
	StartedAt    time.Time `db:"started_at" json:"started_at"`
	LastActivity time.Time `db:"last_activity" json:"last_activity"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	MessageCount int       `db:"-" json:"message_count,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// ChatMessage is one turn's content. Source attribution and confidence are
// populated only on assistant messages.
type ChatMessage struct {
	ID                 string    `db:"id" json:"id"`
	SessionID          string    `db:"session_id" json:"session_id"`
	MessageType        string    `db:"message_type" json:"message_type"`
	Content            string    `db:"content" json:"content"`
	SourceDocumentName string    `db:"source_document_name" json:"source_document_name,omitempty"`
	SourceDocumentURL  string    `db:"source_document_url" json:"source_document_url,omitempty"`
	SourceDocumentType string    `db:"source_document_type" json:"source_document_type,omitempty"`
	Confidence         *float64  `db:"confidence" json:"confidence,omitempty"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
}
