// Package testutil holds shared test infrastructure: an SSE stream parser,
// a deterministic fake embedder, and a pgvector test container helper.
package testutil

import (
	"bufio"
	"strings"
	"testing"
)

// SSEFrame is one parsed `data:` frame from an SSE body.
type SSEFrame struct {
	Data string
}

// ParseSSE splits an SSE response body into data frames. Comment lines
// (leading ":") such as keep-alives are skipped; multi-line data is joined
// with newlines per the SSE spec.
func ParseSSE(t *testing.T, body string) []SSEFrame {
	t.Helper()

	var frames []SSEFrame
	var dataLines []string

	scanner := bufio.NewScanner(strings.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "data: "):
			dataLines = append(dataLines, strings.TrimPrefix(line, "data: "))
		case line == "":
			if len(dataLines) > 0 {
				frames = append(frames, SSEFrame{Data: strings.Join(dataLines, "\n")})
				dataLines = nil
			}
		case strings.HasPrefix(line, ":"):
			// comment / keep-alive
		default:
			t.Fatalf("unexpected SSE line: %q", line)
		}
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scanning SSE body: %v", err)
	}
	if len(dataLines) > 0 {
		frames = append(frames, SSEFrame{Data: strings.Join(dataLines, "\n")})
	}
	return frames
}
