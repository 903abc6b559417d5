package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cepa-dev/cepa-chat/internal/config"
	"github.com/cepa-dev/cepa-chat/internal/core"
	db "github.com/cepa-dev/cepa-chat/internal/core/database"
	"github.com/cepa-dev/cepa-chat/internal/core/extraction"
	"github.com/cepa-dev/cepa-chat/internal/core/knowledge"
	"github.com/cepa-dev/cepa-chat/internal/core/llm"
	"github.com/cepa-dev/cepa-chat/internal/services"
)

type App struct {
	DBClient core.DbClient
	LLM      *llm.GeminiLLM
	Server   *Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	dbClient, err := db.NewDatabaseClient(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	log.Println("Database initialized and ready.")

	llmProvider, err := llm.NewGeminiLLM(appCtx, cfg.AIAPIKey, cfg.GenModel)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the LLM client, %w", err)
	}

	extractor := extraction.NewCachingExtractor(extraction.NewDocconvExtractor())
	corpus := knowledge.NewCorpus(dbClient, cfg.MediaRoot, cfg.MediaBaseURL)

	chatService := services.NewChatService(
		dbClient, llmProvider, corpus, extractor, cfg.AIAPIKey, cfg.ExtractLimit)

	server := NewServer(cfg, dbClient, chatService)

	return &App{DBClient: dbClient, LLM: llmProvider, Server: server}, nil
}

func (a *App) Close() {
	if a.LLM != nil {
		_ = a.LLM.Close()
	}
	if a.DBClient != nil {
		_ = a.DBClient.Close()
	}
}
