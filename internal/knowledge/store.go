// Package knowledge stores upgrade documentation passages and retrieves them
// by semantic similarity. It backs the knowledge-search tool and the MCP
// knowledge server.
package knowledge

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"google.golang.org/genai"

	"github.com/uplift-ai/uplift/internal/log"
)

// VectorDimension is the embedding width for passage vectors. Must match the
// passages migration.
const VectorDimension int32 = 768

const (
	// DefaultTopK is the passage count returned to the agent tool.
	DefaultTopK = 3
	// MaxTopK caps caller-supplied result sizes.
	MaxTopK = 10
	// EmbedTimeout bounds each embedding call.
	EmbedTimeout = 10 * time.Second
	// MaxContentSize caps indexed passage bodies.
	MaxContentSize = 10_000
)

// Passage is one retrievable unit of documentation.
type Passage struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Content string  `json:"content"`
	Source  string  `json:"source,omitempty"`
	Score   float64 `json:"score,omitempty"`
}

// Embedder is the slice of the embedding runtime the store needs. ai.Embedder
// satisfies it; tests inject a deterministic fake.
type Embedder interface {
	Embed(ctx context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error)
}

// Store manages documentation passages in PostgreSQL + pgvector.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool     *pgxpool.Pool
	embedder Embedder
	logger   log.Logger
}

// NewStore creates a knowledge Store.
func NewStore(pool *pgxpool.Pool, embedder Embedder, logger log.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Store{pool: pool, embedder: embedder, logger: logger}, nil
}

func (s *Store) embed(ctx context.Context, text string) (pgvector.Vector, error) {
	dim := VectorDimension
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input:   []*ai.Document{ai.DocumentFromText(text, nil)},
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("embedding text: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return pgvector.Vector{}, fmt.Errorf("empty embedding response")
	}
	return pgvector.NewVector(resp.Embeddings[0].Embedding), nil
}

// Index upserts one passage. The passage ID is derived from the title, so
// re-indexing the same document updates it in place.
func (s *Store) Index(ctx context.Context, p Passage) error {
	if p.Title == "" || p.Content == "" {
		return fmt.Errorf("title and content are required")
	}
	if len(p.Content) > MaxContentSize {
		return fmt.Errorf("content size %d exceeds maximum %d bytes", len(p.Content), MaxContentSize)
	}
	if p.ID == "" {
		p.ID = fmt.Sprintf("doc:%x", sha256.Sum256([]byte(p.Title)))
	}

	embedCtx, cancel := context.WithTimeout(ctx, EmbedTimeout)
	defer cancel()

	vec, err := s.embed(embedCtx, p.Title+"\n"+p.Content)
	if err != nil {
		return fmt.Errorf("embedding passage %q: %w", p.ID, err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO passages (id, title, content, source, embedding)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE
		 SET title = EXCLUDED.title, content = EXCLUDED.content,
		     source = EXCLUDED.source, embedding = EXCLUDED.embedding,
		     updated_at = now()`,
		p.ID, p.Title, p.Content, p.Source, vec,
	)
	if err != nil {
		return fmt.Errorf("upserting passage %q: %w", p.ID, err)
	}

	s.logger.Debug("indexed passage", "id", p.ID, "content_length", len(p.Content))
	return nil
}

// Search returns the passages most similar to the query, ordered by cosine
// similarity descending.
func (s *Store) Search(ctx context.Context, query string, topK int) ([]Passage, error) {
	if query == "" {
		return []Passage{}, nil
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}

	embedCtx, cancel := context.WithTimeout(ctx, EmbedTimeout)
	defer cancel()

	vec, err := s.embed(embedCtx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, title, content, source, 1 - (embedding <=> $1) AS score
		 FROM passages
		 ORDER BY embedding <=> $1
		 LIMIT $2`,
		vec, topK,
	)
	if err != nil {
		return nil, fmt.Errorf("searching passages: %w", err)
	}
	defer rows.Close()

	passages := []Passage{}
	for rows.Next() {
		var p Passage
		if err := rows.Scan(&p.ID, &p.Title, &p.Content, &p.Source, &p.Score); err != nil {
			return nil, fmt.Errorf("scanning passage: %w", err)
		}
		passages = append(passages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating passages: %w", err)
	}
	return passages, nil
}

// JoinText renders passages into the single text block tool callers receive:
// title lines followed by bodies, separated by blank lines.
func JoinText(passages []Passage) string {
	if len(passages) == 0 {
		return "No relevant documentation found."
	}
	parts := make([]string, 0, len(passages))
	for _, p := range passages {
		parts = append(parts, fmt.Sprintf("### %s\n%s", p.Title, p.Content))
	}
	return strings.Join(parts, "\n\n")
}
