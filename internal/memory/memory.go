// Package memory persists completed exchanges per user and retrieves them by
// semantic similarity. The Store talks to PostgreSQL + pgvector directly; the
// Gateway wraps it in the never-raise facade the orchestration core consumes.
package memory

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// VectorDimension is the embedding width stored in pgvector. The embedder is
// asked to truncate its output to this dimensionality; the column type in the
// exchanges migration must match.
const VectorDimension int32 = 768

const (
	// DefaultTopK is the number of prior exchanges folded into query context.
	DefaultTopK = 3
	// MaxTopK caps caller-supplied result sizes.
	MaxTopK = 10
	// EmbedTimeout bounds each embedding call.
	EmbedTimeout = 10 * time.Second
	// MaxContentLength caps stored answer text.
	MaxContentLength = 20_000
	// MaxSearchQueryLen truncates oversized search queries before embedding.
	MaxSearchQueryLen = 2_000
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("memory not found")

	// ErrDisabled indicates long-term memory is turned off by configuration.
	ErrDisabled = errors.New("memory is disabled")
)

// Record is one persisted exchange. Records are scoped to a single owner; no
// operation may surface another owner's rows.
type Record struct {
	ID        uuid.UUID         `json:"id"`
	OwnerID   string            `json:"-"`
	Query     string            `json:"query"`
	Answer    string            `json:"answer"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`

	// Score is the similarity for search results, zero otherwise.
	Score float64 `json:"score,omitempty"`
}

// Stats summarizes one owner's stored exchanges.
type Stats struct {
	Enabled bool       `json:"enabled"`
	Count   int64      `json:"count"`
	Oldest  *time.Time `json:"oldest,omitempty"`
	Newest  *time.Time `json:"newest,omitempty"`
}
