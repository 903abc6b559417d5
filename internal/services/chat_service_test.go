package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cepa-dev/cepa-chat/internal/core/knowledge"
	"github.com/cepa-dev/cepa-chat/internal/models"
)

// MockDbClient is a mock type for the core.DbClient interface
type MockDbClient struct {
	mock.Mock
}

func (m *MockDbClient) ListDocuments(ctx context.Context, activeOnly bool) ([]models.Document, error) {
	args := m.Called(ctx, activeOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Document), args.Error(1)
}

func (m *MockDbClient) ListPublications(ctx context.Context) ([]models.Publication, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Publication), args.Error(1)
}

func (m *MockDbClient) CreateChatSession(ctx context.Context, session *models.ChatSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockDbClient) GetChatSessionByID(ctx context.Context, id string) (*models.ChatSession, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ChatSession), args.Error(1)
}

func (m *MockDbClient) ListChatSessions(ctx context.Context, activeOnly bool) ([]models.ChatSession, error) {
	args := m.Called(ctx, activeOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ChatSession), args.Error(1)
}

func (m *MockDbClient) DeleteChatSession(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDbClient) ListSessionMessages(ctx context.Context, sessionID string) ([]models.ChatMessage, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ChatMessage), args.Error(1)
}

func (m *MockDbClient) GetRecentMessages(ctx context.Context, sessionID string, limit int) ([]models.ChatMessage, error) {
	args := m.Called(ctx, sessionID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ChatMessage), args.Error(1)
}

func (m *MockDbClient) CreateTurnMessages(ctx context.Context, userMsg, assistantMsg *models.ChatMessage) error {
	args := m.Called(ctx, userMsg, assistantMsg)
	return args.Error(0)
}

func (m *MockDbClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockLLM is a mock type for the core.LLMProvider interface
type MockLLM struct {
	mock.Mock
}

func (m *MockLLM) Generate(ctx context.Context, prompt string, maxTokens int32) (string, error) {
	args := m.Called(ctx, prompt, maxTokens)
	return args.String(0), args.Error(1)
}

// fakeExtractor serves canned text per path.
type fakeExtractor struct {
	texts map[string]string
	errs  map[string]error
}

func (f *fakeExtractor) ExtractText(ctx context.Context, path string) (string, error) {
	if err, ok := f.errs[path]; ok {
		return "", err
	}
	return f.texts[path], nil
}

func newTestService(dbc *MockDbClient, llm *MockLLM, ext *fakeExtractor, apiKey string) *ChatService {
	corpus := knowledge.NewCorpus(dbc, "/media", "https://api.example.org/media/")
	return NewChatService(dbc, llm, corpus, ext, apiKey, 2)
}

func annualReportDoc() models.Document {
	return models.Document{
		ID:       "doc-1",
		Name:     "Annual Report.pdf",
		FilePath: "chatbot/documents/annual-report.pdf",
		IsActive: true,
	}
}

func TestChatCreatesSessionWhenAbsent(t *testing.T) {
	dbc := new(MockDbClient)
	llm := new(MockLLM)
	ext := &fakeExtractor{texts: map[string]string{
		"/media/chatbot/documents/annual-report.pdf": "CEPA promotes parliamentary accountability.",
	}}

	var created *models.ChatSession
	dbc.On("CreateChatSession", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		created = args.Get(1).(*models.ChatSession)
	}).Return(nil)
	dbc.On("ListDocuments", mock.Anything, true).Return([]models.Document{annualReportDoc()}, nil)
	dbc.On("ListPublications", mock.Anything).Return([]models.Publication{}, nil)
	dbc.On("GetChatSessionByID", mock.Anything, mock.Anything).Return(nil, nil).Maybe()
	dbc.On("GetRecentMessages", mock.Anything, mock.Anything, 10).Return([]models.ChatMessage{}, nil).Maybe()

	llm.On("Generate", mock.Anything, mock.Anything, stage1MaxTokens).Return("1", nil)
	llm.On("Generate", mock.Anything, mock.Anything, stage2MaxTokens).Return("CEPA promotes accountability in Uganda's parliament.", nil)

	var userMsg, assistantMsg *models.ChatMessage
	dbc.On("CreateTurnMessages", mock.Anything, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		userMsg = args.Get(1).(*models.ChatMessage)
		assistantMsg = args.Get(2).(*models.ChatMessage)
	}).Return(nil)

	svc := newTestService(dbc, llm, ext, "test-key")
	resp, err := svc.Chat(context.Background(), ChatRequest{Query: "What does CEPA do?"})

	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, "What does CEPA do?", created.SessionTitle)
	assert.True(t, created.IsActive)
	assert.Equal(t, created.ID, resp.SessionID)
	assert.Equal(t, "Annual Report.pdf", resp.SourceDocumentName)
	assert.Equal(t, models.SourceTypeDocument, resp.SourceDocumentType)
	assert.Equal(t, 0.8, resp.Confidence)
	assert.NotEmpty(t, resp.Answer)

	// One user/assistant pair, in that order, with attribution only on
	// the assistant side.
	require.NotNil(t, userMsg)
	require.NotNil(t, assistantMsg)
	assert.Equal(t, models.MessageTypeUser, userMsg.MessageType)
	assert.Equal(t, "What does CEPA do?", userMsg.Content)
	assert.Empty(t, userMsg.SourceDocumentName)
	assert.Nil(t, userMsg.Confidence)
	assert.Equal(t, models.MessageTypeAssistant, assistantMsg.MessageType)
	assert.Equal(t, resp.Answer, assistantMsg.Content)
	assert.Equal(t, "Annual Report.pdf", assistantMsg.SourceDocumentName)
	require.NotNil(t, assistantMsg.Confidence)
	assert.Equal(t, 0.8, *assistantMsg.Confidence)
	assert.False(t, assistantMsg.CreatedAt.Before(userMsg.CreatedAt))
	assert.Equal(t, userMsg.ID, resp.UserMessageID)
	assert.Equal(t, assistantMsg.ID, resp.AssistantMessageID)
}

func TestChatSessionTitleTruncation(t *testing.T) {
	dbc := new(MockDbClient)
	llm := new(MockLLM)
	ext := &fakeExtractor{texts: map[string]string{
		"/media/chatbot/documents/annual-report.pdf": "some text",
	}}

	query := strings.Repeat("a", 80)

	var created *models.ChatSession
	dbc.On("CreateChatSession", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		created = args.Get(1).(*models.ChatSession)
	}).Return(nil)
	dbc.On("ListDocuments", mock.Anything, true).Return([]models.Document{annualReportDoc()}, nil)
	dbc.On("ListPublications", mock.Anything).Return([]models.Publication{}, nil)
	dbc.On("GetChatSessionByID", mock.Anything, mock.Anything).Return(nil, nil).Maybe()
	dbc.On("GetRecentMessages", mock.Anything, mock.Anything, 10).Return([]models.ChatMessage{}, nil).Maybe()
	llm.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return("1", nil)
	dbc.On("CreateTurnMessages", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	svc := newTestService(dbc, llm, ext, "test-key")
	_, err := svc.Chat(context.Background(), ChatRequest{Query: query})

	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, strings.Repeat("a", 50)+"...", created.SessionTitle)
}

func TestChatSessionTitleMultibyte(t *testing.T) {
	// Titles are bounded in characters, not bytes, so a multibyte query
	// must never be cut mid-rune.
	run := func(t *testing.T, query string) *models.ChatSession {
		dbc := new(MockDbClient)
		llm := new(MockLLM)
		ext := &fakeExtractor{texts: map[string]string{
			"/media/chatbot/documents/annual-report.pdf": "some text",
		}}

		var created *models.ChatSession
		dbc.On("CreateChatSession", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			created = args.Get(1).(*models.ChatSession)
		}).Return(nil)
		dbc.On("ListDocuments", mock.Anything, true).Return([]models.Document{annualReportDoc()}, nil)
		dbc.On("ListPublications", mock.Anything).Return([]models.Publication{}, nil)
		dbc.On("GetChatSessionByID", mock.Anything, mock.Anything).Return(nil, nil).Maybe()
		dbc.On("GetRecentMessages", mock.Anything, mock.Anything, 10).Return([]models.ChatMessage{}, nil).Maybe()
		llm.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return("1", nil)
		dbc.On("CreateTurnMessages", mock.Anything, mock.Anything, mock.Anything).Return(nil)

		svc := newTestService(dbc, llm, ext, "test-key")
		_, err := svc.Chat(context.Background(), ChatRequest{Query: query})
		require.NoError(t, err)
		require.NotNil(t, created)
		return created
	}

	t.Run("under the limit in characters stays whole", func(t *testing.T) {
		// 20 characters is 60 bytes; the full query must survive.
		created := run(t, strings.Repeat("日", 20))
		assert.Equal(t, strings.Repeat("日", 20), created.SessionTitle)
	})

	t.Run("over the limit truncates on a character boundary", func(t *testing.T) {
		created := run(t, strings.Repeat("日", 60))
		assert.Equal(t, strings.Repeat("日", 50)+"...", created.SessionTitle)
		assert.True(t, utf8.ValidString(created.SessionTitle))
	})
}

func TestChatReusesExistingSession(t *testing.T) {
	dbc := new(MockDbClient)
	llm := new(MockLLM)
	ext := &fakeExtractor{texts: map[string]string{
		"/media/chatbot/documents/annual-report.pdf": "some text",
	}}

	existing := &models.ChatSession{ID: "session-42", SessionTitle: "earlier", IsActive: true}
	dbc.On("GetChatSessionByID", mock.Anything, "session-42").Return(existing, nil)
	dbc.On("ListDocuments", mock.Anything, true).Return([]models.Document{annualReportDoc()}, nil)
	dbc.On("ListPublications", mock.Anything).Return([]models.Publication{}, nil)
	dbc.On("GetRecentMessages", mock.Anything, "session-42", 10).Return([]models.ChatMessage{
		{MessageType: models.MessageTypeAssistant, Content: "hi"},
		{MessageType: models.MessageTypeUser, Content: "hello"},
	}, nil)
	llm.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return("1", nil)
	dbc.On("CreateTurnMessages", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	svc := newTestService(dbc, llm, ext, "test-key")
	resp, err := svc.Chat(context.Background(), ChatRequest{Query: "follow-up", SessionID: "session-42"})

	require.NoError(t, err)
	assert.Equal(t, "session-42", resp.SessionID)
	dbc.AssertNotCalled(t, "CreateChatSession", mock.Anything, mock.Anything)
}

func TestChatSessionNotFound(t *testing.T) {
	dbc := new(MockDbClient)
	llm := new(MockLLM)

	dbc.On("GetChatSessionByID", mock.Anything, "nonexistent-id").Return(nil, nil)

	svc := newTestService(dbc, llm, &fakeExtractor{}, "test-key")
	_, err := svc.Chat(context.Background(), ChatRequest{Query: "hello", SessionID: "nonexistent-id"})

	assert.ErrorIs(t, err, ErrSessionNotFound)
	dbc.AssertNotCalled(t, "CreateTurnMessages", mock.Anything, mock.Anything, mock.Anything)
	dbc.AssertNotCalled(t, "ListDocuments", mock.Anything, mock.Anything)
}

func TestChatMissingAPIKey(t *testing.T) {
	dbc := new(MockDbClient)
	llm := new(MockLLM)

	dbc.On("CreateChatSession", mock.Anything, mock.Anything).Return(nil)

	svc := newTestService(dbc, llm, &fakeExtractor{}, "")
	_, err := svc.Chat(context.Background(), ChatRequest{Query: "hello"})

	assert.ErrorIs(t, err, ErrNotConfigured)
	dbc.AssertNotCalled(t, "ListDocuments", mock.Anything, mock.Anything)
	dbc.AssertNotCalled(t, "CreateTurnMessages", mock.Anything, mock.Anything, mock.Anything)
}

func TestChatEmptyCorpus(t *testing.T) {
	dbc := new(MockDbClient)
	llm := new(MockLLM)

	dbc.On("CreateChatSession", mock.Anything, mock.Anything).Return(nil)
	dbc.On("ListDocuments", mock.Anything, true).Return([]models.Document{}, nil)
	dbc.On("ListPublications", mock.Anything).Return([]models.Publication{}, nil)

	svc := newTestService(dbc, llm, &fakeExtractor{}, "test-key")
	_, err := svc.Chat(context.Background(), ChatRequest{Query: "hello"})

	assert.ErrorIs(t, err, ErrNoDocuments)
	dbc.AssertNotCalled(t, "CreateTurnMessages", mock.Anything, mock.Anything, mock.Anything)
}

func TestChatNoReadableText(t *testing.T) {
	dbc := new(MockDbClient)
	llm := new(MockLLM)
	ext := &fakeExtractor{errs: map[string]error{
		"/media/chatbot/documents/annual-report.pdf": errors.New("corrupt file"),
	}}

	dbc.On("CreateChatSession", mock.Anything, mock.Anything).Return(nil)
	dbc.On("ListDocuments", mock.Anything, true).Return([]models.Document{annualReportDoc()}, nil)
	dbc.On("ListPublications", mock.Anything).Return([]models.Publication{}, nil)

	svc := newTestService(dbc, llm, ext, "test-key")
	_, err := svc.Chat(context.Background(), ChatRequest{Query: "hello"})

	assert.ErrorIs(t, err, ErrNoReadableText)
	dbc.AssertNotCalled(t, "CreateTurnMessages", mock.Anything, mock.Anything, mock.Anything)
}

func TestChatCorruptDocumentIsSkipped(t *testing.T) {
	dbc := new(MockDbClient)
	llm := new(MockLLM)
	ext := &fakeExtractor{
		texts: map[string]string{
			"/media/chatbot/documents/readable.pdf": "readable content",
		},
		errs: map[string]error{
			"/media/chatbot/documents/corrupt.pdf": errors.New("bad xref"),
		},
	}

	docs := []models.Document{
		{ID: "doc-bad", Name: "Corrupt.pdf", FilePath: "chatbot/documents/corrupt.pdf", IsActive: true},
		{ID: "doc-ok", Name: "Readable.pdf", FilePath: "chatbot/documents/readable.pdf", IsActive: true},
	}

	dbc.On("CreateChatSession", mock.Anything, mock.Anything).Return(nil)
	dbc.On("ListDocuments", mock.Anything, true).Return(docs, nil)
	dbc.On("ListPublications", mock.Anything).Return([]models.Publication{}, nil)
	dbc.On("GetChatSessionByID", mock.Anything, mock.Anything).Return(nil, nil).Maybe()
	dbc.On("GetRecentMessages", mock.Anything, mock.Anything, 10).Return([]models.ChatMessage{}, nil).Maybe()
	llm.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return("1", nil)
	dbc.On("CreateTurnMessages", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	svc := newTestService(dbc, llm, ext, "test-key")
	resp, err := svc.Chat(context.Background(), ChatRequest{Query: "hello"})

	require.NoError(t, err)
	assert.Equal(t, "Readable.pdf", resp.SourceDocumentName)
}

func TestChatSelectorFallbackOnLLMFailure(t *testing.T) {
	dbc := new(MockDbClient)
	llm := new(MockLLM)
	ext := &fakeExtractor{texts: map[string]string{
		"/media/chatbot/documents/first.pdf":  "first content",
		"/media/chatbot/documents/second.pdf": "second content",
	}}

	docs := []models.Document{
		{ID: "doc-1", Name: "First.pdf", FilePath: "chatbot/documents/first.pdf", IsActive: true},
		{ID: "doc-2", Name: "Second.pdf", FilePath: "chatbot/documents/second.pdf", IsActive: true},
	}

	dbc.On("CreateChatSession", mock.Anything, mock.Anything).Return(nil)
	dbc.On("ListDocuments", mock.Anything, true).Return(docs, nil)
	dbc.On("ListPublications", mock.Anything).Return([]models.Publication{}, nil)
	dbc.On("GetChatSessionByID", mock.Anything, mock.Anything).Return(nil, nil).Maybe()
	dbc.On("GetRecentMessages", mock.Anything, mock.Anything, 10).Return([]models.ChatMessage{}, nil).Maybe()

	llm.On("Generate", mock.Anything, mock.Anything, stage1MaxTokens).Return("", errors.New("upstream unreachable"))
	llm.On("Generate", mock.Anything, mock.Anything, stage2MaxTokens).Return("an answer", nil)
	dbc.On("CreateTurnMessages", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	svc := newTestService(dbc, llm, ext, "test-key")
	resp, err := svc.Chat(context.Background(), ChatRequest{Query: "hello"})

	require.NoError(t, err)
	assert.Equal(t, "First.pdf", resp.SourceDocumentName)
}

func TestChatStage2FailureStillCompletesTurn(t *testing.T) {
	dbc := new(MockDbClient)
	llm := new(MockLLM)
	ext := &fakeExtractor{texts: map[string]string{
		"/media/chatbot/documents/annual-report.pdf": "some text",
	}}

	dbc.On("CreateChatSession", mock.Anything, mock.Anything).Return(nil)
	dbc.On("ListDocuments", mock.Anything, true).Return([]models.Document{annualReportDoc()}, nil)
	dbc.On("ListPublications", mock.Anything).Return([]models.Publication{}, nil)
	dbc.On("GetChatSessionByID", mock.Anything, mock.Anything).Return(nil, nil).Maybe()
	dbc.On("GetRecentMessages", mock.Anything, mock.Anything, 10).Return([]models.ChatMessage{}, nil).Maybe()

	llm.On("Generate", mock.Anything, mock.Anything, stage1MaxTokens).Return("1", nil)
	llm.On("Generate", mock.Anything, mock.Anything, stage2MaxTokens).Return("", errors.New("rate limited"))

	var assistantMsg *models.ChatMessage
	dbc.On("CreateTurnMessages", mock.Anything, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		assistantMsg = args.Get(2).(*models.ChatMessage)
	}).Return(nil)

	svc := newTestService(dbc, llm, ext, "test-key")
	resp, err := svc.Chat(context.Background(), ChatRequest{Query: "hello"})

	require.NoError(t, err)
	assert.Contains(t, resp.Answer, "Error generating answer")
	require.NotNil(t, assistantMsg)
	assert.Equal(t, resp.Answer, assistantMsg.Content)
}
