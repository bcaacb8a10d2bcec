package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kevinmichaelchen/repo-analyzer/internal/models"
)

type HistoryStore interface {
	SaveAnalysis(ctx context.Context, a models.Analysis) (string, error)
	UpdateEmbedding(ctx context.Context, id string, embedding []float32) error
}

type Embedder interface {
	EmbedSingle(ctx context.Context, text string) ([]float32, error)
}

// HistoryRecorder saves analyses and, when an embedder is set, their
// embeddings for later semantic search. Failures are logged only.
type HistoryRecorder struct {
	store    HistoryStore
	embedder Embedder
}

func NewHistoryRecorder(store HistoryStore, embedder Embedder) *HistoryRecorder {
	return &HistoryRecorder{store: store, embedder: embedder}
}

func (h *HistoryRecorder) Record(ctx context.Context, a models.Analysis) {
	id, err := h.store.SaveAnalysis(ctx, a)
	if err != nil {
		slog.Warn("Could not save analysis", "repo", a.FullName, "error", err)
		return
	}
	slog.Debug("Saved analysis", "repo", a.FullName, "id", id)

	if h.embedder == nil {
		return
	}

	vec, err := h.embedder.EmbedSingle(ctx, EmbeddingText(a))
	if err != nil {
		slog.Warn("Could not embed analysis", "repo", a.FullName, "error", err)
		return
	}
	if err := h.store.UpdateEmbedding(ctx, id, vec); err != nil {
		slog.Warn("Could not store embedding", "repo", a.FullName, "error", err)
	}
}

// EmbeddingText is the text embedded for an analysis.
func EmbeddingText(a models.Analysis) string {
	return fmt.Sprintf("%s: %s", a.FullName, a.Markdown)
}

type ReindexStore interface {
	ListUnembedded(ctx context.Context, limit int) ([]models.Analysis, error)
	UpdateEmbedding(ctx context.Context, id string, embedding []float32) error
}

type BatchEmbedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Reindex embeds up to limit saved analyses that have no embedding yet and
// returns how many were updated.
func Reindex(ctx context.Context, store ReindexStore, embedder BatchEmbedder, limit int) (int, error) {
	pending, err := store.ListUnembedded(ctx, limit)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	texts := make([]string, len(pending))
	for i, a := range pending {
		texts[i] = EmbeddingText(a)
	}
	vecs, err := embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embedding %d analyses: %w", len(pending), err)
	}

	var updated int
	for i, a := range pending {
		if err := store.UpdateEmbedding(ctx, a.ID, vecs[i]); err != nil {
			return updated, err
		}
		updated++
	}
	slog.Info("Reindexed analyses", "count", updated)
	return updated, nil
}
