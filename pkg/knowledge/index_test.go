package knowledge

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
)

// fakeEmbedder maps known strings to fixed vectors so similarity ordering is
// deterministic in tests.
type fakeEmbedder struct {
	vectors   map[string][]float32
	shouldErr bool
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.shouldErr {
		return nil, errors.New("embedding service down")
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 1}, nil
}

func buildTestIndex(t *testing.T, chunks []string, vectors map[string][]float32) *Index {
	t.Helper()
	idx := NewIndex(&fakeEmbedder{vectors: vectors}, zap.NewNop())
	if err := idx.Build(context.Background(), chunks); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return idx
}

func TestIndex_Retrieve_OrdersBySimilarity(t *testing.T) {
	vectors := map[string][]float32{
		"We are open 9am to 5pm weekdays.": {1, 0, 0},
		"Returns accepted within 30 days.": {0, 1, 0},
		"Shipping takes 3 to 5 days.":      {0.9, 0.1, 0},
		"What are your hours?":             {1, 0, 0},
	}
	idx := buildTestIndex(t, []string{
		"We are open 9am to 5pm weekdays.",
		"Returns accepted within 30 days.",
		"Shipping takes 3 to 5 days.",
	}, vectors)

	got, err := idx.Retrieve(context.Background(), "What are your hours?", 2)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Retrieve() returned %d passages, want 2", len(got))
	}
	if got[0].Content != "We are open 9am to 5pm weekdays." {
		t.Errorf("Retrieve() best match = %q, want hours passage", got[0].Content)
	}
	if got[0].Score < got[1].Score {
		t.Errorf("Retrieve() scores not descending: %v, %v", got[0].Score, got[1].Score)
	}
}

func TestIndex_Retrieve_TieBreakByIngestionOrder(t *testing.T) {
	// Identical vectors: every passage scores the same against any query.
	vectors := map[string][]float32{
		"first":  {1, 0, 0},
		"second": {1, 0, 0},
		"third":  {1, 0, 0},
		"query":  {1, 0, 0},
	}
	idx := buildTestIndex(t, []string{"first", "second", "third"}, vectors)

	got, err := idx.Retrieve(context.Background(), "query", 3)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	want := []string{"first", "second", "third"}
	for i := range want {
		if got[i].Content != want[i] {
			t.Errorf("Retrieve() position %d = %q, want %q", i, got[i].Content, want[i])
		}
	}
}

func TestIndex_Retrieve_ReturnsAtMostK(t *testing.T) {
	idx := buildTestIndex(t, []string{"a", "b"}, nil)

	got, err := idx.Retrieve(context.Background(), "anything", 5)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Retrieve() returned %d passages, want 2", len(got))
	}
}

func TestIndex_Retrieve_EmptyIndex(t *testing.T) {
	idx := NewIndex(&fakeEmbedder{}, zap.NewNop())
	if err := idx.Build(context.Background(), nil); err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	got, err := idx.Retrieve(context.Background(), "anything", 3)
	if err != nil {
		t.Errorf("Retrieve() on empty index error = %v, want nil", err)
	}
	if len(got) != 0 {
		t.Errorf("Retrieve() on empty index returned %d passages, want 0", len(got))
	}
}

func TestIndex_Build_FailsOnEmbeddingError(t *testing.T) {
	idx := NewIndex(&fakeEmbedder{shouldErr: true}, zap.NewNop())
	if err := idx.Build(context.Background(), []string{"chunk"}); err == nil {
		t.Error("Build() = nil, want error when embedding fails")
	}
	if idx.Size() != 0 {
		t.Errorf("Size() = %d after failed build, want 0", idx.Size())
	}
}

func TestIndex_Retrieve_QueryEmbeddingError(t *testing.T) {
	f := &fakeEmbedder{}
	idx := NewIndex(f, zap.NewNop())
	if err := idx.Build(context.Background(), []string{"chunk"}); err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	f.shouldErr = true
	if _, err := idx.Retrieve(context.Background(), "query", 3); err == nil {
		t.Error("Retrieve() = nil, want error when query embedding fails")
	}
}
