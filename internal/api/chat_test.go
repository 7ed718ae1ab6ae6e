package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/uplift-ai/uplift/internal/stream"
	"github.com/uplift-ai/uplift/internal/testutil"
)

func postChat(t *testing.T, ts string, path, body string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Post(ts+path, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	return resp, string(raw)
}

func TestChat_EmptyQueryRejected(t *testing.T) {
	ts, _ := newTestServer(t, &fakeOpener{})

	resp, _ := postChat(t, ts.URL, "/chat", `{"query":"  "}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}

	resp2, _ := postChat(t, ts.URL, "/chat-sync", `{}`)
	if resp2.StatusCode != http.StatusBadRequest {
		t.Errorf("sync status = %d, want 400", resp2.StatusCode)
	}
}

func TestChat_StreamFrames(t *testing.T) {
	ts, backend := newTestServer(t, &fakeOpener{events: []stream.RawEvent{
		contentRaw("Postgres 16 "),
		{Kind: stream.RawToolUse, Tool: "search_knowledge"},
		{Kind: stream.RawToolResult, Tool: "search_knowledge"},
		contentRaw("changed the stats collector."),
	}})

	resp, body := postChat(t, ts.URL, "/chat", `{"query":"what changed in postgres 16?"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	frames := testutil.ParseSSE(t, body)
	if len(frames) == 0 {
		t.Fatal("no SSE frames")
	}

	var types []string
	var lastContent frame
	for _, f := range frames {
		var fr frame
		if err := json.Unmarshal([]byte(f.Data), &fr); err != nil {
			t.Fatalf("frame %q not JSON: %v", f.Data, err)
		}
		types = append(types, fr.Type)
		if fr.Type == "content" {
			lastContent = fr
		}
	}

	if types[len(types)-1] != "end" {
		t.Errorf("last frame type = %q, want end", types[len(types)-1])
	}
	for _, typ := range types[:len(types)-1] {
		if typ == "end" || typ == "error" {
			t.Errorf("terminal frame %q before end of stream", typ)
		}
	}

	want := "Postgres 16 changed the stats collector."
	if lastContent.Accumulated != want {
		t.Errorf("accumulated = %q, want %q", lastContent.Accumulated, want)
	}

	count := 0
	for _, typ := range types {
		if typ == "status" {
			count++
		}
	}
	if count < 2 {
		t.Errorf("got %d status frames, want at least 2 (tool start and finish)", count)
	}

	if len(backend.records) != 1 {
		t.Fatalf("memory writes = %d, want 1", len(backend.records))
	}
	if backend.records[0].Answer != want {
		t.Errorf("recorded answer = %q", backend.records[0].Answer)
	}
}

func TestChat_StreamErrorTerminal(t *testing.T) {
	tsErr, backendErr := newTestServer(t, &fakeOpener{openErr: io.ErrUnexpectedEOF})
	resp, body := postChat(t, tsErr.URL, "/chat", `{"query":"hello"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	frames := testutil.ParseSSE(t, body)
	if len(frames) != 1 {
		t.Fatalf("frames = %d, want 1", len(frames))
	}
	var fr frame
	if err := json.Unmarshal([]byte(frames[0].Data), &fr); err != nil {
		t.Fatalf("frame not JSON: %v", err)
	}
	if fr.Type != "error" || fr.Error == "" {
		t.Errorf("frame = %+v, want terminal error", fr)
	}
	if len(backendErr.records) != 0 {
		t.Errorf("memory written on failed query")
	}
}

func TestChatSync_CollectsAnswer(t *testing.T) {
	ts, _ := newTestServer(t, &fakeOpener{events: []stream.RawEvent{
		contentRaw("Use pg_upgrade."),
	}})

	resp, body := postChat(t, ts.URL, "/chat-sync", `{"query":"how to upgrade?"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var sr syncResponse
	if err := json.Unmarshal([]byte(body), &sr); err != nil {
		t.Fatalf("body not JSON: %v\n%s", err, body)
	}
	if !sr.Success {
		t.Errorf("success = false: %+v", sr)
	}
	if sr.Answer != "Use pg_upgrade." {
		t.Errorf("answer = %q", sr.Answer)
	}
	if sr.Query != "how to upgrade?" {
		t.Errorf("query = %q", sr.Query)
	}
	if sr.ToolsUsed == nil {
		t.Error("tools_used missing")
	}
}

func TestChatSync_ToolsUsedCarriesToolNames(t *testing.T) {
	ts, _ := newTestServer(t, &fakeOpener{events: []stream.RawEvent{
		{Kind: stream.RawToolUse, Tool: "search_knowledge"},
		{Kind: stream.RawToolResult, Tool: "search_knowledge"},
		{Kind: stream.RawToolUse, Tool: "crawl_page"},
		{Kind: stream.RawToolResult, Tool: "crawl_page"},
		contentRaw("The release notes cover it."),
	}})

	resp, body := postChat(t, ts.URL, "/chat-sync", `{"query":"what changed?"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var sr syncResponse
	if err := json.Unmarshal([]byte(body), &sr); err != nil {
		t.Fatalf("body not JSON: %v", err)
	}
	// Tool names come from the events themselves, so tools with the friendly
	// search and crawl status phrasings still show up, each exactly once.
	want := []string{"search_knowledge", "crawl_page"}
	if len(sr.ToolsUsed) != len(want) {
		t.Fatalf("tools_used = %v, want %v", sr.ToolsUsed, want)
	}
	for i, name := range want {
		if sr.ToolsUsed[i] != name {
			t.Errorf("tools_used[%d] = %q, want %q", i, sr.ToolsUsed[i], name)
		}
	}
}

func TestChatSync_ErrorIsStill200(t *testing.T) {
	ts, _ := newTestServer(t, &fakeOpener{openErr: io.ErrUnexpectedEOF})

	resp, body := postChat(t, ts.URL, "/chat-sync", `{"query":"hello"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 with success:false", resp.StatusCode)
	}

	var sr syncResponse
	if err := json.Unmarshal([]byte(body), &sr); err != nil {
		t.Fatalf("body not JSON: %v", err)
	}
	if sr.Success || sr.Error == "" {
		t.Errorf("response = %+v, want success:false with error", sr)
	}
}
