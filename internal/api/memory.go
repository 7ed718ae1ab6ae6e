package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/uplift-ai/uplift/internal/log"
	"github.com/uplift-ai/uplift/internal/memory"
)

// memoryHandler exposes the user's long-term memory for inspection and
// removal. A disabled memory layer answers 503 rather than erroring.
type memoryHandler struct {
	gateway *memory.Gateway
	logger  log.Logger
}

func (h *memoryHandler) stats(w http.ResponseWriter, r *http.Request) {
	userID := ensureUserID(w, r)

	stats, err := h.gateway.Stats(r.Context(), userID)
	if err != nil {
		h.fail(w, "fetching memory stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats, h.logger)
}

type memorySearchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"topK,omitempty"`
}

func (h *memoryHandler) search(w http.ResponseWriter, r *http.Request) {
	userID := ensureUserID(w, r)

	var req memorySearchRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body", h.logger)
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "missing_query", "query is required", h.logger)
		return
	}

	records, err := h.gateway.Search(r.Context(), userID, req.Query, req.TopK)
	if err != nil {
		h.fail(w, "searching memory", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"query":   req.Query,
		"count":   len(records),
		"results": records,
	}, h.logger)
}

func (h *memoryHandler) recent(w http.ResponseWriter, r *http.Request) {
	userID := ensureUserID(w, r)

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer", h.logger)
			return
		}
		limit = n
	}

	records, err := h.gateway.Recent(r.Context(), userID, limit)
	if err != nil {
		h.fail(w, "listing recent memory", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(records),
		"results": records,
	}, h.logger)
}

func (h *memoryHandler) clear(w http.ResponseWriter, r *http.Request) {
	userID := ensureUserID(w, r)

	deleted, err := h.gateway.Clear(r.Context(), userID)
	if err != nil {
		h.fail(w, "clearing memory", err)
		return
	}
	h.logger.Info("memory cleared", "user_id", userID, "deleted", deleted)
	writeJSON(w, http.StatusOK, map[string]any{"deleted": deleted}, h.logger)
}

func (h *memoryHandler) fail(w http.ResponseWriter, action string, err error) {
	if errors.Is(err, memory.ErrDisabled) {
		writeError(w, http.StatusServiceUnavailable, "memory_disabled", "memory is not enabled", h.logger)
		return
	}
	h.logger.Error(action, "error", err)
	writeError(w, http.StatusInternalServerError, "memory_error", "memory operation failed", h.logger)
}
