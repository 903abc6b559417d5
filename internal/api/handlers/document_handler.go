package handlers

import (
	"net/http"
	"strings"

	"github.com/cepa-dev/cepa-chat/internal/config"
	"github.com/cepa-dev/cepa-chat/internal/core"
	"github.com/cepa-dev/cepa-chat/internal/models"
)

type DocumentHandler struct {
	dbclient core.DbClient
	cfg      *config.Config
}

func NewDocumentHandler(dbclient core.DbClient, cfg *config.Config) *DocumentHandler {
	return &DocumentHandler{dbclient: dbclient, cfg: cfg}
}

func (h *DocumentHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	h.listDocuments(w, r, false)
}

// ActiveDocuments returns only documents included in the knowledge base.
func (h *DocumentHandler) ActiveDocuments(w http.ResponseWriter, r *http.Request) {
	h.listDocuments(w, r, true)
}

func (h *DocumentHandler) listDocuments(w http.ResponseWriter, r *http.Request, activeOnly bool) {
	docs, err := h.dbclient.ListDocuments(r.Context(), activeOnly)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	for i := range docs {
		docs[i].FileURL = h.fileURL(docs[i].FilePath)
	}
	if docs == nil {
		docs = []models.Document{}
	}
	writeJSON(w, http.StatusOK, docs)
}

func (h *DocumentHandler) fileURL(path string) string {
	if path == "" {
		return ""
	}
	return strings.TrimSuffix(h.cfg.MediaBaseURL, "/") + "/" + strings.TrimPrefix(path, "/")
}
