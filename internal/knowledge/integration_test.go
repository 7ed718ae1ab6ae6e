//go:build integration

package knowledge_test

import (
	"context"
	"testing"

	"github.com/uplift-ai/uplift/internal/knowledge"
	"github.com/uplift-ai/uplift/internal/log"
	"github.com/uplift-ai/uplift/internal/testutil"
)

func TestStore_IndexAndSearch(t *testing.T) {
	tdb := testutil.SetupTestDB(t)
	store, err := knowledge.NewStore(tdb.Pool, &testutil.FakeEmbedder{}, log.NewNop())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	ctx := context.Background()

	passages := []knowledge.Passage{
		{Title: "Postgres 16 release notes", Content: "The stats collector moved to shared memory.", Source: "postgresql.org"},
		{Title: "Kafka 3.0 upgrade", Content: "KRaft replaces Zookeeper for metadata.", Source: "kafka.apache.org"},
	}
	for _, p := range passages {
		if err := store.Index(ctx, p); err != nil {
			t.Fatalf("Index(%q): %v", p.Title, err)
		}
	}

	// Re-indexing the same title upserts instead of duplicating.
	if err := store.Index(ctx, passages[0]); err != nil {
		t.Fatalf("re-Index: %v", err)
	}

	// The fake embedder is deterministic, so querying with the exact indexed
	// text makes that passage the best match.
	results, err := store.Search(ctx, passages[0].Title+"\n"+passages[0].Content, 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if results[0].Title != "Postgres 16 release notes" {
		t.Errorf("top result = %q", results[0].Title)
	}
}
