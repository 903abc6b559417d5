package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/cepa-dev/cepa-chat/internal/core"
	"github.com/cepa-dev/cepa-chat/internal/core/knowledge"
	"github.com/cepa-dev/cepa-chat/internal/models"
)

// Precondition failures of a chat turn; handlers map them to HTTP statuses.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrNoDocuments     = errors.New("no documents found in knowledge base")
	ErrNoReadableText  = errors.New("no readable text found in documents")
	ErrNotConfigured   = errors.New("generation API key not configured")
)

// sessionTitleLimit is how much of the first query becomes the session title.
const sessionTitleLimit = 50

// defaultConfidence is the fixed score attached to every assistant message.
// The pipeline does not compute a real one.
const defaultConfidence = 0.8

type ChatRequest struct {
	Query     string `json:"query" validate:"required"`
	SessionID string `json:"session_id"`
}

type ChatResponse struct {
	SessionID          string    `json:"session_id"`
	UserMessageID      string    `json:"user_message_id"`
	AssistantMessageID string    `json:"assistant_message_id"`
	Answer             string    `json:"answer"`
	SourceDocumentName string    `json:"source_document_name"`
	SourceDocumentURL  string    `json:"source_document_url"`
	SourceDocumentType string    `json:"source_document_type"`
	Confidence         float64   `json:"confidence"`
	Timestamp          time.Time `json:"timestamp"`
}

// ChatService orchestrates one chat turn: session resolution, corpus scan,
// two-stage retrieval and answering, and message persistence.
type ChatService struct {
	dbclient  core.DbClient
	llm       core.LLMProvider
	corpus    *knowledge.Corpus
	extractor core.TextExtractor
	apiKey    string
	workers   int
}

func NewChatService(dbclient core.DbClient, llm core.LLMProvider, corpus *knowledge.Corpus, extractor core.TextExtractor, apiKey string, workers int) *ChatService {
	return &ChatService{
		dbclient:  dbclient,
		llm:       llm,
		corpus:    corpus,
		extractor: extractor,
		apiKey:    apiKey,
		workers:   workers,
	}
}

// Chat processes one query and returns the structured turn result.
func (s *ChatService) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	session, err := s.resolveSession(ctx, req)
	if err != nil {
		return nil, err
	}

	// The key is a hard precondition for the whole turn; checked before
	// any document is touched.
	if s.apiKey == "" {
		return nil, ErrNotConfigured
	}

	candidates, err := s.corpus.ListCandidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("load corpus: %w", err)
	}
	if len(candidates) == 0 {
		return nil, ErrNoDocuments
	}

	extracted := s.corpus.Extract(ctx, s.extractor, candidates, s.workers)
	if len(extracted) == 0 {
		return nil, ErrNoReadableText
	}

	conversationContext := BuildConversationContext(ctx, s.dbclient, session.ID)

	selected := extracted[s.selectDocument(ctx, req.Query, conversationContext, extracted)]
	answer := s.generateAnswer(ctx, req.Query, conversationContext, selected)

	confidence := defaultConfidence
	userMsg := &models.ChatMessage{
		ID:          uuid.NewString(),
		SessionID:   session.ID,
		MessageType: models.MessageTypeUser,
		Content:     req.Query,
		CreatedAt:   time.Now(),
	}
	assistantMsg := &models.ChatMessage{
		ID:                 uuid.NewString(),
		SessionID:          session.ID,
		MessageType:        models.MessageTypeAssistant,
		Content:            answer,
		SourceDocumentName: selected.Name,
		SourceDocumentURL:  selected.URL,
		SourceDocumentType: selected.SourceType,
		Confidence:         &confidence,
		CreatedAt:          time.Now(),
	}

	if err := s.dbclient.CreateTurnMessages(ctx, userMsg, assistantMsg); err != nil {
		return nil, fmt.Errorf("persist turn: %w", err)
	}

	return &ChatResponse{
		SessionID:          session.ID,
		UserMessageID:      userMsg.ID,
		AssistantMessageID: assistantMsg.ID,
		Answer:             answer,
		SourceDocumentName: selected.Name,
		SourceDocumentURL:  selected.URL,
		SourceDocumentType: selected.SourceType,
		Confidence:         confidence,
		Timestamp:          assistantMsg.CreatedAt,
	}, nil
}

// resolveSession reuses the caller's session or creates a fresh one titled
// after the query.
func (s *ChatService) resolveSession(ctx context.Context, req ChatRequest) (*models.ChatSession, error) {
	if req.SessionID != "" {
		session, err := s.dbclient.GetChatSessionByID(ctx, req.SessionID)
		if err != nil {
			return nil, fmt.Errorf("look up session: %w", err)
		}
		if session == nil {
			return nil, ErrSessionNotFound
		}
		return session, nil
	}

	title := req.Query
	if utf8.RuneCountInString(title) > sessionTitleLimit {
		title = core.TruncateRunes(title, sessionTitleLimit) + "..."
	}
	now := time.Now()
	session := &models.ChatSession{
		ID:           uuid.NewString(),
		SessionTitle: title,
		StartedAt:    now,
		LastActivity: now,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.dbclient.CreateChatSession(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

// selectDocument runs stage 1. A generation failure or an unparsable reply
// falls back to the first candidate rather than failing the turn.
func (s *ChatService) selectDocument(ctx context.Context, query, conversationContext string, docs []knowledge.Extracted) int {
	prompt := buildSelectionPrompt(query, conversationContext, docs)
	reply, err := s.llm.Generate(ctx, prompt, stage1MaxTokens)
	if err != nil {
		log.Printf("Error in document selection: %v", err)
		return 0
	}
	return parseSelectedIndex(reply, len(docs))
}

// generateAnswer runs stage 2. It always returns some answer string; a
// generation failure becomes an error description the caller can see.
func (s *ChatService) generateAnswer(ctx context.Context, query, conversationContext string, doc knowledge.Extracted) string {
	prompt := buildAnswerPrompt(query, conversationContext, doc)
	answer, err := s.llm.Generate(ctx, prompt, stage2MaxTokens)
	if err != nil {
		return fmt.Sprintf("Error generating answer: %v", err)
	}
	return answer
}
