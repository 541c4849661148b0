package knowledge

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/Sunil-1234/Virtual-call-assistant/pkg/retry"
)

// Passage is one retrievable chunk of the corpus. Embeddings are owned by
// the index and never change after Build.
type Passage struct {
	Content   string
	embedding []float32
	ord       int
}

// Index is an in-memory vector store over corpus passages. It is immutable
// after Build and safe for concurrent Retrieve calls without locking.
type Index struct {
	embedder Embedder
	passages []Passage
	logger   *zap.Logger
}

// NewIndex creates an empty index backed by the given embedder.
func NewIndex(embedder Embedder, logger *zap.Logger) *Index {
	return &Index{
		embedder: embedder,
		logger:   logger,
	}
}

// Build embeds every chunk and stores it in ingestion order. Any embedding
// failure aborts the build: serving ungrounded answers is worse than not
// starting.
func (idx *Index) Build(ctx context.Context, chunks []string) error {
	passages := make([]Passage, 0, len(chunks))

	for i, chunk := range chunks {
		var embedding []float32
		err := retry.Do(ctx, retry.DefaultConfig(), func() error {
			var embedErr error
			embedding, embedErr = idx.embedder.Embed(ctx, chunk)
			return embedErr
		})
		if err != nil {
			return fmt.Errorf("failed to embed chunk %d: %w", i, err)
		}

		passages = append(passages, Passage{
			Content:   chunk,
			embedding: embedding,
			ord:       i,
		})
	}

	idx.passages = passages
	idx.logger.Info("Knowledge index built", zap.Int("passages", len(passages)))
	return nil
}

// Size returns the number of indexed passages.
func (idx *Index) Size() int {
	return len(idx.passages)
}

// ScoredPassage pairs a passage with its similarity to a query.
type ScoredPassage struct {
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Retrieve returns up to k passages most similar to query, best first.
// Equal scores keep ingestion order. An empty index yields an empty result,
// not an error.
func (idx *Index) Retrieve(ctx context.Context, query string, k int) ([]ScoredPassage, error) {
	if k <= 0 || len(idx.passages) == 0 {
		return nil, nil
	}

	queryVec, err := idx.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	scored := make([]struct {
		passage *Passage
		score   float64
	}, len(idx.passages))
	for i := range idx.passages {
		scored[i].passage = &idx.passages[i]
		scored[i].score = cosineSimilarity(queryVec, idx.passages[i].embedding)
	}

	sort.SliceStable(scored, func(a, b int) bool {
		if scored[a].score != scored[b].score {
			return scored[a].score > scored[b].score
		}
		return scored[a].passage.ord < scored[b].passage.ord
	})

	if k > len(scored) {
		k = len(scored)
	}
	results := make([]ScoredPassage, k)
	for i := 0; i < k; i++ {
		results[i] = ScoredPassage{
			Content: scored[i].passage.Content,
			Score:   scored[i].score,
		}
	}
	return results, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
