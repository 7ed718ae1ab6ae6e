package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"google.golang.org/genai"

	"github.com/uplift-ai/uplift/internal/log"
)

// Embedder is the slice of the embedding runtime the store needs. ai.Embedder
// satisfies it; tests inject a deterministic fake.
type Embedder interface {
	Embed(ctx context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error)
}

// recordCols is the standard SELECT column list for scanRecords.
const recordCols = `id, owner_id, query, answer, metadata, created_at`

// Store manages persistent exchange memory backed by PostgreSQL + pgvector.
//
// Store is safe for concurrent use by multiple goroutines; cross-request
// safety is the database's concern, every row carries its owner.
type Store struct {
	pool     *pgxpool.Pool
	embedder Embedder
	logger   log.Logger
}

// NewStore creates a memory Store.
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

// embed generates a vector embedding for the given text, truncated to
// VectorDimension.
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

// Add persists one exchange. Exact duplicates for the same owner are dropped
// by the ON CONFLICT guard, making retried writes idempotent.
func (s *Store) Add(ctx context.Context, ownerID, query, answer string, metadata map[string]string) error {
	if ownerID == "" {
		return fmt.Errorf("owner ID is required")
	}
	if query == "" || answer == "" {
		return fmt.Errorf("query and answer are required")
	}
	if len(answer) > MaxContentLength {
		answer = answer[:MaxContentLength]
	}

	embedCtx, cancel := context.WithTimeout(ctx, EmbedTimeout)
	defer cancel()

	// The embedding covers both sides of the exchange so later queries match
	// on either the question or the answer.
	vec, err := s.embed(embedCtx, query+"\n"+answer)
	if err != nil {
		return fmt.Errorf("embedding exchange: %w", err)
	}

	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO exchanges (owner_id, query, answer, embedding, metadata)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (owner_id, md5(query || answer)) DO NOTHING`,
		ownerID, query, answer, vec, metaJSON,
	)
	if err != nil {
		return fmt.Errorf("inserting exchange: %w", err)
	}

	s.logger.Debug("stored exchange", "owner_id", ownerID, "answer_len", len(answer))
	return nil
}

// Search finds exchanges similar to the query, filtered by owner. Results are
// ordered by cosine similarity descending, up to topK.
func (s *Store) Search(ctx context.Context, ownerID, query string, topK int) ([]*Record, error) {
	if query == "" || ownerID == "" {
		return []*Record{}, nil
	}
	topK = clampTopK(topK)
	if len(query) > MaxSearchQueryLen {
		query = query[:MaxSearchQueryLen]
	}
	if strings.ContainsRune(query, 0) {
		return []*Record{}, nil
	}

	embedCtx, cancel := context.WithTimeout(ctx, EmbedTimeout)
	defer cancel()

	vec, err := s.embed(embedCtx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+recordCols+`, 1 - (embedding <=> $2) AS score
		 FROM exchanges
		 WHERE owner_id = $1
		 ORDER BY embedding <=> $2
		 LIMIT $3`,
		ownerID, vec, topK,
	)
	if err != nil {
		return nil, fmt.Errorf("searching exchanges: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows, true)
}

// Recent returns the newest exchanges for an owner, newest first.
func (s *Store) Recent(ctx context.Context, ownerID string, limit int) ([]*Record, error) {
	if ownerID == "" {
		return []*Record{}, nil
	}
	limit = clampTopK(limit)

	rows, err := s.pool.Query(ctx,
		`SELECT `+recordCols+`
		 FROM exchanges
		 WHERE owner_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		ownerID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing recent exchanges: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows, false)
}

// Stats summarizes one owner's stored exchanges.
func (s *Store) Stats(ctx context.Context, ownerID string) (Stats, error) {
	if ownerID == "" {
		return Stats{}, fmt.Errorf("owner ID is required")
	}

	var st Stats
	var oldest, newest *time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*), MIN(created_at), MAX(created_at)
		 FROM exchanges WHERE owner_id = $1`,
		ownerID,
	).Scan(&st.Count, &oldest, &newest)
	if err != nil {
		return Stats{}, fmt.Errorf("counting exchanges: %w", err)
	}
	st.Enabled = true
	st.Oldest = oldest
	st.Newest = newest
	return st, nil
}

// Clear deletes all of one owner's exchanges and reports how many went away.
func (s *Store) Clear(ctx context.Context, ownerID string) (int64, error) {
	if ownerID == "" {
		return 0, fmt.Errorf("owner ID is required")
	}

	tag, err := s.pool.Exec(ctx,
		`DELETE FROM exchanges WHERE owner_id = $1`, ownerID)
	if err != nil {
		return 0, fmt.Errorf("clearing exchanges: %w", err)
	}
	return tag.RowsAffected(), nil
}

func clampTopK(topK int) int {
	if topK <= 0 {
		return DefaultTopK
	}
	if topK > MaxTopK {
		return MaxTopK
	}
	return topK
}

// scanRecords reads Record structs from pgx.Rows. withScore expects a trailing
// similarity column.
func scanRecords(rows pgx.Rows, withScore bool) ([]*Record, error) {
	records := []*Record{}
	for rows.Next() {
		r := &Record{}
		var metaJSON []byte
		dest := []any{&r.ID, &r.OwnerID, &r.Query, &r.Answer, &metaJSON, &r.CreatedAt}
		if withScore {
			dest = append(dest, &r.Score)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scanning exchange: %w", err)
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &r.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshaling metadata: %w", err)
			}
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating exchanges: %w", err)
	}
	return records, nil
}
