package app

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/cepa-dev/cepa-chat/internal/api/handlers"
	"github.com/cepa-dev/cepa-chat/internal/config"
	"github.com/cepa-dev/cepa-chat/internal/core"
	"github.com/cepa-dev/cepa-chat/internal/services"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, dbclient core.DbClient, chatService *services.ChatService) *Server {
	chatHandler := handlers.NewChatHandler(chatService)
	sessionHandler := handlers.NewSessionHandler(dbclient)
	docHandler := handlers.NewDocumentHandler(dbclient, cfg)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(api chi.Router) {
		api.Post("/chat", chatHandler.Chat)

		api.Get("/documents", docHandler.ListDocuments)
		api.Get("/documents/active", docHandler.ActiveDocuments)

		api.Get("/sessions", sessionHandler.ListSessions)
		api.Get("/sessions/active", sessionHandler.ActiveSessions)
		api.Get("/sessions/{id}", sessionHandler.GetSession)
		api.Delete("/sessions/{id}", sessionHandler.DeleteSession)
	})

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	return &Server{httpServer: httpSrv}
}

// Start runs the HTTP server.
func (s *Server) Start() {
	log.Printf("HTTP server listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down HTTP server...")
	return s.httpServer.Shutdown(ctx)
}
