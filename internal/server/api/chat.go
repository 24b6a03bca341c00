package api

import (
	"encoding/json"
	"net/http"

	"github.com/martingsewell/e-nor/internal/chat"
)

// ChatHandler handles POST /api/chat: one message in, one reply out.
type ChatHandler struct {
	service *chat.Service
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(service *chat.Service) *ChatHandler {
	return &ChatHandler{service: service}
}

type chatRequest struct {
	Message string `json:"message"`
}

// ServeHTTP implements the http.Handler interface.
func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	reply := h.service.Process(r.Context(), req.Message)
	writeJSON(w, http.StatusOK, reply)
}
