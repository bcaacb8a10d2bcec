package surrealdb

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kevinmichaelchen/repo-analyzer/internal/config"
	"github.com/kevinmichaelchen/repo-analyzer/internal/models"
	sdk "github.com/surrealdb/surrealdb.go"
)

// Client stores finished analyses so they can be listed and searched later.
type Client struct {
	db *sdk.DB
}

func NewClient(ctx context.Context, cfg *config.Config) (*Client, error) {
	if !cfg.HistoryEnabled() {
		return nil, fmt.Errorf("history store not configured (set SURREAL_URL)")
	}

	db, err := sdk.FromEndpointURLString(ctx, cfg.SurrealURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to SurrealDB: %w", err)
	}

	if _, err := db.SignIn(ctx, sdk.Auth{
		Namespace: cfg.SurrealNS,
		Database:  cfg.SurrealDB,
		Username:  cfg.SurrealUser,
		Password:  cfg.SurrealPass,
	}); err != nil {
		_ = db.Close(ctx)
		return nil, fmt.Errorf("signing in: %w", err)
	}

	if err := db.Use(ctx, cfg.SurrealNS, cfg.SurrealDB); err != nil {
		_ = db.Close(ctx)
		return nil, fmt.Errorf("selecting ns/db: %w", err)
	}

	return &Client{db: db}, nil
}

func (c *Client) Close(ctx context.Context) error {
	return c.db.Close(ctx)
}

const schema = `
DEFINE TABLE IF NOT EXISTS analysis SCHEMAFULL;

DEFINE FIELD IF NOT EXISTS full_name  ON TABLE analysis TYPE string;
DEFINE FIELD IF NOT EXISTS url        ON TABLE analysis TYPE string;
DEFINE FIELD IF NOT EXISTS model      ON TABLE analysis TYPE string;
DEFINE FIELD IF NOT EXISTS markdown   ON TABLE analysis TYPE string;
DEFINE FIELD IF NOT EXISTS seconds    ON TABLE analysis TYPE float;
DEFINE FIELD IF NOT EXISTS created_at ON TABLE analysis TYPE datetime;
DEFINE FIELD IF NOT EXISTS embedding  ON TABLE analysis TYPE option<array<float>>;

DEFINE INDEX IF NOT EXISTS idx_full_name ON TABLE analysis FIELDS full_name;
`

func (c *Client) InitSchema(ctx context.Context) error {
	_, err := sdk.Query[any](ctx, c.db, schema, nil)
	if err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}
	return nil
}

// SaveAnalysis inserts a new record and returns its id. A repository may have
// many analyses, one per run.
func (c *Client) SaveAnalysis(ctx context.Context, a models.Analysis) (string, error) {
	id := a.ID
	if id == "" {
		id = uuid.NewString()
	}
	created := a.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	data := map[string]any{
		"full_name":  a.FullName,
		"url":        a.URL,
		"model":      a.Model,
		"markdown":   a.Markdown,
		"seconds":    a.Seconds,
		"created_at": created.UTC(),
	}
	if len(a.Embedding) > 0 {
		data["embedding"] = a.Embedding
	}

	_, err := sdk.Query[any](ctx, c.db,
		`CREATE type::thing("analysis", $id) CONTENT $data`,
		map[string]any{
			"id":   id,
			"data": data,
		})
	if err != nil {
		return "", fmt.Errorf("saving analysis of %s: %w", a.FullName, err)
	}
	return id, nil
}

func (c *Client) UpdateEmbedding(ctx context.Context, id string, embedding []float32) error {
	_, err := sdk.Query[any](ctx, c.db,
		`UPDATE type::thing("analysis", $id) SET embedding = $embedding`,
		map[string]any{
			"id":        id,
			"embedding": embedding,
		})
	if err != nil {
		return fmt.Errorf("updating embedding for %s: %w", id, err)
	}
	return nil
}

// ListUnembedded returns analyses saved without an embedding, for example
// while the embedding model was unavailable.
func (c *Client) ListUnembedded(ctx context.Context, limit int) ([]models.Analysis, error) {
	query := fmt.Sprintf(`
		SELECT meta::id(id) AS id, full_name, url, model, markdown, seconds
		FROM analysis
		WHERE embedding IS NONE
		LIMIT %d
	`, limit)

	results, err := sdk.Query[[]models.Analysis](ctx, c.db, query, nil)
	if err != nil {
		return nil, fmt.Errorf("listing unembedded analyses: %w", err)
	}
	if len(*results) == 0 {
		return nil, nil
	}
	return (*results)[0].Result, nil
}

// ListAnalyses returns the most recent analyses, newest first.
func (c *Client) ListAnalyses(ctx context.Context, limit int) ([]models.HistoryEntry, error) {
	query := fmt.Sprintf(`
		SELECT full_name, url, model, seconds, created_at,
			time::format(created_at, "%%Y-%%m-%%d %%H:%%M") AS created
		FROM analysis
		ORDER BY created_at DESC
		LIMIT %d
	`, limit)

	results, err := sdk.Query[[]models.HistoryEntry](ctx, c.db, query, nil)
	if err != nil {
		return nil, fmt.Errorf("listing analyses: %w", err)
	}
	if len(*results) == 0 {
		return nil, nil
	}
	return (*results)[0].Result, nil
}

func (c *Client) VectorSearch(ctx context.Context, queryVec []float32, k int) ([]models.SearchResult, error) {
	// Brute-force cosine similarity; history tables stay small.
	query := fmt.Sprintf(`
		SELECT full_name, url, model, markdown,
			vector::similarity::cosine(embedding, $query_vec) AS score
		FROM analysis
		WHERE embedding IS NOT NONE
		ORDER BY score DESC
		LIMIT %d
	`, k)

	results, err := sdk.Query[[]models.SearchResult](ctx, c.db, query,
		map[string]any{"query_vec": queryVec})
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	if len(*results) == 0 {
		return nil, nil
	}
	return (*results)[0].Result, nil
}

type Stats struct {
	Total    int
	Repos    int
	Embedded int
}

func (c *Client) GetStats(ctx context.Context) (*Stats, error) {
	results, err := sdk.Query[[]map[string]any](ctx, c.db,
		`SELECT
			count() AS total,
			math::sum(IF embedding IS NOT NONE THEN 1 ELSE 0 END) AS embedded
		FROM analysis GROUP ALL`,
		nil)
	if err != nil {
		return nil, fmt.Errorf("getting stats: %w", err)
	}
	stats := &Stats{}
	if len(*results) > 0 && len((*results)[0].Result) > 0 {
		row := (*results)[0].Result[0]
		stats.Total = toInt(row["total"])
		stats.Embedded = toInt(row["embedded"])
	}

	repos, err := sdk.Query[[]map[string]any](ctx, c.db,
		`SELECT count() AS n FROM (SELECT full_name FROM analysis GROUP BY full_name) GROUP ALL`, nil)
	if err != nil {
		return nil, fmt.Errorf("counting repos: %w", err)
	}
	if len(*repos) > 0 && len((*repos)[0].Result) > 0 {
		stats.Repos = toInt((*repos)[0].Result[0]["n"])
	}
	return stats, nil
}

type ModelCount struct {
	Model string
	Count int
}

// GetModelBreakdown counts analyses per model.
func (c *Client) GetModelBreakdown(ctx context.Context) ([]ModelCount, error) {
	results, err := sdk.Query[[]models.HistoryEntry](ctx, c.db,
		`SELECT model FROM analysis`, nil)
	if err != nil {
		return nil, fmt.Errorf("getting models: %w", err)
	}
	if len(*results) == 0 {
		return nil, nil
	}
	return countModels((*results)[0].Result), nil
}

func countModels(entries []models.HistoryEntry) []ModelCount {
	counts := map[string]int{}
	var order []string
	for _, e := range entries {
		if _, ok := counts[e.Model]; !ok {
			order = append(order, e.Model)
		}
		counts[e.Model]++
	}
	out := make([]ModelCount, 0, len(order))
	for _, m := range order {
		out = append(out, ModelCount{Model: m, Count: counts[m]})
	}
	return out
}

func toInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	case uint64:
		return int(n)
	default:
		return 0
	}
}
