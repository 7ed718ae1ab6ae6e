package api

import (
	"net/http"

	"github.com/uplift-ai/uplift/internal/agent"
	"github.com/uplift-ai/uplift/internal/log"
)

// sessionHandler manages the user's short-term conversation history.
type sessionHandler struct {
	sessions *agent.SessionStore
	logger   log.Logger
}

func (h *sessionHandler) clear(w http.ResponseWriter, r *http.Request) {
	userID := ensureUserID(w, r)

	if err := h.sessions.Clear(userID); err != nil {
		h.logger.Error("clearing session", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "session_error", "clearing session failed", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cleared": true}, h.logger)
}

func (h *sessionHandler) status(w http.ResponseWriter, r *http.Request) {
	userID := ensureUserID(w, r)

	status, err := h.sessions.Status(userID)
	if err != nil {
		h.logger.Error("reading session status", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "session_error", "reading session status failed", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, status, h.logger)
}
