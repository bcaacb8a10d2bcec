package main

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/kevinmichaelchen/repo-analyzer/internal/config"
	"github.com/kevinmichaelchen/repo-analyzer/internal/embedding"
	"github.com/kevinmichaelchen/repo-analyzer/internal/github"
	"github.com/kevinmichaelchen/repo-analyzer/internal/llm"
	"github.com/kevinmichaelchen/repo-analyzer/internal/logging"
	"github.com/kevinmichaelchen/repo-analyzer/internal/models"
	"github.com/kevinmichaelchen/repo-analyzer/internal/ollama"
	"github.com/kevinmichaelchen/repo-analyzer/internal/pipeline"
	"github.com/kevinmichaelchen/repo-analyzer/internal/surrealdb"
)

// app holds the wired services for one command invocation.
type app struct {
	cfg      *config.Config
	ensurer  *ollama.Ensurer
	analyzer *pipeline.Analyzer
	db       *surrealdb.Client
}

// setup loads config and configures logging. Logs go to w so the UI can keep
// them off the screen it draws on.
func setup(w io.Writer) *config.Config {
	cfg := config.Load()
	logging.Setup(w, cfg.LogLevel, cfg.LogFormat)
	return cfg
}

// newApp wires the pipeline. The history store is attached when configured;
// if it cannot be reached the analysis still runs without it.
func newApp(ctx context.Context, cfg *config.Config) *app {
	ensurer := ollama.NewEnsurer(ollama.NewClient(cfg.OllamaHost), cfg.FetchTimeout, cfg.PullTimeout)
	analyzer := pipeline.New(
		ensurer,
		github.NewClient(cfg.GitHubToken, cfg.FetchTimeout),
		llm.NewClient(cfg.OpenAIBaseURL(), cfg.LLMTimeout),
	)

	a := &app{cfg: cfg, ensurer: ensurer, analyzer: analyzer}

	if cfg.HistoryEnabled() {
		db, err := surrealdb.NewClient(ctx, cfg)
		if err != nil {
			slog.Warn("History disabled", "error", err)
		} else {
			a.db = db
			emb := embedding.NewClient(cfg.OpenAIBaseURL(), cfg.EmbeddingModel, cfg.LLMTimeout)
			analyzer.WithRecorder(pipeline.NewHistoryRecorder(db, emb))
		}
	}

	return a
}

func (a *app) Close(ctx context.Context) {
	if a.db != nil {
		_ = a.db.Close(ctx)
	}
}

// defaultModel is REPO_ANALYZER_MODEL when set, else the first curated model.
func defaultModel(cfg *config.Config) string {
	if cfg.DefaultModel != "" {
		return cfg.DefaultModel
	}
	return models.DefaultModel()
}

// openHistory connects to the history store for the history commands, which
// have nothing to do without it.
func openHistory(ctx context.Context) (*config.Config, *surrealdb.Client, error) {
	cfg := setup(os.Stderr)
	db, err := surrealdb.NewClient(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}
