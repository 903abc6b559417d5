package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/cepa-dev/cepa-chat/internal/services"
)

type ChatHandler struct {
	chat     *services.ChatService
	validate *validator.Validate
}

func NewChatHandler(chat *services.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat, validate: validator.New()}
}

// Chat processes a chat query and returns the AI response, creating or
// continuing a session.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req services.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	resp, err := h.chat.Chat(r.Context(), req)
	if err != nil {
		status, msg := mapChatError(err)
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func mapChatError(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrSessionNotFound):
		return http.StatusNotFound, "Session not found"
	case errors.Is(err, services.ErrNoDocuments):
		return http.StatusNotFound, "No documents found in knowledge base"
	case errors.Is(err, services.ErrNoReadableText):
		return http.StatusNotFound, "No readable text found in documents"
	case errors.Is(err, services.ErrNotConfigured):
		return http.StatusInternalServerError, "AI API key not configured. Please set GEMINI_API_KEY in environment variables."
	default:
		return http.StatusInternalServerError, fmt.Sprintf("Error processing request: %v", err)
	}
}
