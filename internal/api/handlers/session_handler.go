package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cepa-dev/cepa-chat/internal/core"
	"github.com/cepa-dev/cepa-chat/internal/models"
)

type SessionHandler struct {
	dbclient core.DbClient
}

func NewSessionHandler(dbclient core.DbClient) *SessionHandler {
	return &SessionHandler{dbclient: dbclient}
}

// sessionDetail is the retrieve view: the session plus its messages in
// conversation order.
type sessionDetail struct {
	models.ChatSession
	Messages []models.ChatMessage `json:"messages"`
}

func (h *SessionHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	h.listSessions(w, r, false)
}

// ActiveSessions returns only sessions still marked active.
func (h *SessionHandler) ActiveSessions(w http.ResponseWriter, r *http.Request) {
	h.listSessions(w, r, true)
}

func (h *SessionHandler) listSessions(w http.ResponseWriter, r *http.Request, activeOnly bool) {
	sessions, err := h.dbclient.ListChatSessions(r.Context(), activeOnly)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if sessions == nil {
		sessions = []models.ChatSession{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	session, err := h.dbclient.GetChatSessionByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if session == nil {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}

	messages, err := h.dbclient.ListSessionMessages(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if messages == nil {
		messages = []models.ChatMessage{}
	}

	writeJSON(w, http.StatusOK, sessionDetail{ChatSession: *session, Messages: messages})
}

// DeleteSession removes the session; its messages cascade with it. The
// delete itself reports a missing session, so no pre-lookup is needed.
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.dbclient.DeleteChatSession(r.Context(), id); err != nil {
		if errors.Is(err, core.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
