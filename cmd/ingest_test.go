package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/uplift-ai/uplift/internal/knowledge"
)

func writeDoc(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile %s: %v", name, err)
	}
}

func TestLoadPassages(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "postgres.md", "# Postgres 16 upgrade\n\nThe stats collector moved to shared memory.")
	writeDoc(t, dir, "notes.txt", "KRaft replaces Zookeeper for metadata.")
	writeDoc(t, dir, "config.json", `{"ignored": true}`)
	writeDoc(t, dir, filepath.Join("kafka", "kraft.md"), "# Kafka 3.0\n\nMetadata moves to KRaft.")
	writeDoc(t, dir, "empty.md", "# Heading only\n")

	passages, err := loadPassages(dir)
	if err != nil {
		t.Fatalf("loadPassages: %v", err)
	}
	if len(passages) != 3 {
		t.Fatalf("passages = %d, want 3: %+v", len(passages), passages)
	}

	byTitle := map[string]knowledge.Passage{}
	for _, p := range passages {
		byTitle[p.Title] = p
	}

	pg, ok := byTitle["Postgres 16 upgrade"]
	if !ok {
		t.Fatal("markdown heading not used as title")
	}
	if pg.Content != "The stats collector moved to shared memory." {
		t.Errorf("content = %q", pg.Content)
	}
	if pg.Source != "postgres.md" {
		t.Errorf("source = %q, want path relative to the ingest root", pg.Source)
	}

	txt, ok := byTitle["notes"]
	if !ok {
		t.Fatal("file name not used as title for plain text")
	}
	if txt.Content != "KRaft replaces Zookeeper for metadata." {
		t.Errorf("content = %q", txt.Content)
	}

	if sub := byTitle["Kafka 3.0"]; sub.Source != filepath.Join("kafka", "kraft.md") {
		t.Errorf("nested source = %q", sub.Source)
	}
}

func TestSplitTitle(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		content    string
		wantTitle  string
		wantBody   string
	}{
		{
			name:      "markdown heading",
			path:      "doc.md",
			content:   "# Upgrading nginx\n\nQUIC listeners are built in from 1.25.",
			wantTitle: "Upgrading nginx",
			wantBody:  "QUIC listeners are built in from 1.25.",
		},
		{
			name:      "no heading falls back to file name",
			path:      "upgrade-notes.txt",
			content:   "plain body",
			wantTitle: "upgrade-notes",
			wantBody:  "plain body",
		},
		{
			name:      "heading without body",
			path:      "doc.md",
			content:   "# Title only\n",
			wantTitle: "Title only",
			wantBody:  "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			title, body := splitTitle(tt.path, tt.content)
			if title != tt.wantTitle || body != tt.wantBody {
				t.Errorf("splitTitle = (%q, %q), want (%q, %q)", title, body, tt.wantTitle, tt.wantBody)
			}
		})
	}
}
