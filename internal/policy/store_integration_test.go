package policy

import (
	"context"
	"testing"

	"github.com/arcalabs/arca/internal/chunk"
	"github.com/arcalabs/arca/internal/testutil"
)

// Exercises the real pgvector schema: insert under two tenants, search with
// tenant scoping and the shared-corpus fallback.
func TestStorePostgres(t *testing.T) {
	tdb, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	emb := &fakeEmbedder{dim: 768}
	s, err := NewStore(tdb.Pool, emb, chunk.NewSplitter(400, 50), DefaultTenant, nil)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	if err := s.Add(ctx, "All vendors must complete a security review before onboarding.", "vendors.md", "acme"); err != nil {
		t.Fatalf("Add(acme) error = %v", err)
	}
	if err := s.Add(ctx, "Customer data is retained for seven years then purged.", "retention.md", DefaultTenant); err != nil {
		t.Fatalf("Add(default) error = %v", err)
	}

	t.Run("tenant scoped", func(t *testing.T) {
		matches, err := s.Search(ctx, "vendor onboarding", "acme", 5)
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if len(matches) != 1 {
			t.Fatalf("got %d matches, want 1", len(matches))
		}
		if matches[0].Content == "" {
			t.Error("match has empty content")
		}
	})

	t.Run("fallback to shared corpus", func(t *testing.T) {
		matches, err := s.Search(ctx, "retention period", "tenant-without-corpus", 5)
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if len(matches) != 1 {
			t.Fatalf("got %d matches, want 1 from shared corpus", len(matches))
		}
	})

	t.Run("topk clamps", func(t *testing.T) {
		matches, err := s.Search(ctx, "anything", "acme", MaxTopK+500)
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if len(matches) > MaxTopK {
			t.Errorf("got %d matches, want at most %d", len(matches), MaxTopK)
		}
	})
}
