package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/uplift-ai/uplift/internal/app"
	"github.com/uplift-ai/uplift/internal/config"
	"github.com/uplift-ai/uplift/internal/knowledge"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <dir>",
	Short: "Index documentation files into the knowledge base",
	Long: `Walks a directory tree and upserts every .md and .txt file as one
searchable passage. Passage IDs derive from titles, so re-running over
updated files replaces the stored copies in place.`,
	Args: cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return runIngest(args[0])
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(dir string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := newLogger()

	passages, err := loadPassages(dir)
	if err != nil {
		return fmt.Errorf("collecting documents: %w", err)
	}
	if len(passages) == 0 {
		return fmt.Errorf("no .md or .txt files under %s", dir)
	}

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	indexed := 0
	for _, p := range passages {
		if err := a.Knowledge.Index(ctx, p); err != nil {
			logger.Warn("skipping document", "source", p.Source, "error", err)
			continue
		}
		indexed++
	}
	logger.Info("ingest finished", "indexed", indexed, "skipped", len(passages)-indexed)
	return nil
}

// loadPassages collects one passage per .md or .txt file under dir. The
// source field records the path relative to dir.
func loadPassages(dir string) ([]knowledge.Passage, error) {
	var passages []knowledge.Passage
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if ext := filepath.Ext(path); ext != ".md" && ext != ".txt" {
			return nil
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		title, body := splitTitle(path, string(raw))
		if body == "" {
			return nil
		}
		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			rel = path
		}
		passages = append(passages, knowledge.Passage{Title: title, Content: body, Source: rel})
		return nil
	})
	return passages, err
}

// splitTitle takes a leading markdown heading as the title, falling back to
// the file name without its extension.
func splitTitle(path, content string) (title, body string) {
	content = strings.TrimSpace(content)
	if after, ok := strings.CutPrefix(content, "# "); ok {
		line, rest, _ := strings.Cut(after, "\n")
		return strings.TrimSpace(line), strings.TrimSpace(rest)
	}
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name)), content
}
