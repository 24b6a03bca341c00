package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/martingsewell/e-nor/internal/store"
)

// MemoriesHandler handles HTTP requests for stored memories.
type MemoriesHandler struct {
	store *store.Store
}

// NewMemoriesHandler creates a new MemoriesHandler.
func NewMemoriesHandler(s *store.Store) *MemoriesHandler {
	return &MemoriesHandler{store: s}
}

type memoryResponse struct {
	ID        string `json:"id"`
	Fact      string `json:"fact"`
	CreatedAt string `json:"created_at"`
}

type addMemoryRequest struct {
	Fact string `json:"fact"`
}

// ServeHTTP routes memory API requests.
// Paths: /api/memories (GET, POST) and /api/memories/{id} (DELETE).
func (h *MemoriesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/memories")
	path = strings.Trim(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.add(w, r)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	}

	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	h.delete(w, r, path)
}

func (h *MemoriesHandler) list(w http.ResponseWriter, r *http.Request) {
	memories, err := h.store.Memories().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]memoryResponse, len(memories))
	for i, m := range memories {
		out[i] = memoryResponse{
			ID:        m.ID,
			Fact:      m.Fact,
			CreatedAt: m.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"memories": out})
}

func (h *MemoriesHandler) add(w http.ResponseWriter, r *http.Request) {
	var req addMemoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Fact) == "" {
		writeError(w, http.StatusBadRequest, "fact is required")
		return
	}

	m, err := h.store.Memories().Add(strings.TrimSpace(req.Fact))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, memoryResponse{
		ID:        m.ID,
		Fact:      m.Fact,
		CreatedAt: m.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	})
}

func (h *MemoriesHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Memories().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "memory not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
