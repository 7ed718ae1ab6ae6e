package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/uplift-ai/uplift/internal/log"
	"github.com/uplift-ai/uplift/internal/stream"
)

// maxChatBodyBytes bounds the request body on chat endpoints.
const maxChatBodyBytes = 64 * 1024

// chatHandler is the transport adapter: it maps the orchestration core's
// event sequence onto SSE frames (or one collected JSON body for -sync).
type chatHandler struct {
	mux    *stream.Mux
	logger log.Logger
}

type chatRequest struct {
	Query string `json:"query"`
}

// frame is the wire form of one event. Field presence varies by type:
// content carries content+accumulated, status carries message, error carries
// error, heartbeat carries only the timestamp and end only its type.
type frame struct {
	Type        string `json:"type"`
	Content     string `json:"content,omitempty"`
	Accumulated string `json:"accumulated,omitempty"`
	Message     string `json:"message,omitempty"`
	Error       string `json:"error,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"`
}

func frameFor(ev stream.Event) frame {
	ts := ev.Timestamp.UTC().Format(time.RFC3339)
	switch ev.Kind {
	case stream.KindContent:
		return frame{Type: "content", Content: ev.Delta, Accumulated: ev.Accumulated, Timestamp: ts}
	case stream.KindStatus:
		return frame{Type: "status", Message: ev.Message, Timestamp: ts}
	case stream.KindHeartbeat:
		return frame{Type: "heartbeat", Timestamp: ts}
	case stream.KindError:
		return frame{Type: "error", Error: ev.Message, Timestamp: ts}
	default:
		return frame{Type: "end"}
	}
}

// stream handles POST /chat: one SSE frame per event, in emission order.
func (h *chatHandler) stream(w http.ResponseWriter, r *http.Request) {
	userID := ensureUserID(w, r)

	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "no_streaming", "streaming not supported", h.logger)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	// Streaming responses must not be cut off by the server write timeout.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("clearing write deadline", "error", err)
	}

	// Immediate keep-alive so proxies flush headers before the model starts.
	fmt.Fprint(w, ": keep-alive\n\n")
	flusher.Flush()

	q := stream.Query{UserID: userID, Text: req.Query}
	for ev := range h.mux.Run(r.Context(), q) {
		if err := h.writeFrame(w, flusher, ev); err != nil {
			h.logger.Debug("SSE write failed, client likely gone", "error", err)
			return
		}
	}
}

// writeFrame sends one `data: <json>` frame. A marshal failure degrades to a
// minimal frame rather than dropping the event.
func (h *chatHandler) writeFrame(w http.ResponseWriter, flusher http.Flusher, ev stream.Event) error {
	data, err := json.Marshal(frameFor(ev))
	if err != nil {
		h.logger.Warn("event marshal failed, sending minimal frame", "kind", ev.Kind, "error", err)
		minimal := struct {
			Type      string `json:"type"`
			Content   string `json:"content"`
			Timestamp string `json:"timestamp"`
		}{string(ev.Kind), ev.Delta + ev.Message, time.Now().UTC().Format(time.RFC3339)}
		data, err = json.Marshal(minimal)
		if err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

type syncResponse struct {
	Success   bool     `json:"success"`
	Answer    string   `json:"answer,omitempty"`
	Error     string   `json:"error,omitempty"`
	ToolsUsed []string `json:"tools_used"`
	Query     string   `json:"query"`
	Timestamp string   `json:"timestamp"`
}

// sync handles POST /chat-sync: the whole sequence collected into one JSON
// body. Application-level failure is still a 200 with success:false.
func (h *chatHandler) sync(w http.ResponseWriter, r *http.Request) {
	userID := ensureUserID(w, r)

	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	resp := syncResponse{
		ToolsUsed: []string{},
		Query:     req.Query,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	q := stream.Query{UserID: userID, Text: req.Query}
	for ev := range h.mux.Run(r.Context(), q) {
		switch ev.Kind {
		case stream.KindContent:
			resp.Answer = ev.Accumulated
		case stream.KindStatus:
			if ev.Tool != "" && !slices.Contains(resp.ToolsUsed, ev.Tool) {
				resp.ToolsUsed = append(resp.ToolsUsed, ev.Tool)
			}
		case stream.KindEnd:
			resp.Success = true
		case stream.KindError:
			resp.Error = ev.Message
		}
	}

	writeJSON(w, http.StatusOK, resp, h.logger)
}

func (h *chatHandler) decode(w http.ResponseWriter, r *http.Request) (chatRequest, bool) {
	var req chatRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body", h.logger)
		return chatRequest{}, false
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "missing_query", "query is required", h.logger)
		return chatRequest{}, false
	}
	return req, true
}
