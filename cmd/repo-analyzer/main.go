package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/kevinmichaelchen/repo-analyzer/internal/embedding"
	"github.com/kevinmichaelchen/repo-analyzer/internal/models"
	"github.com/kevinmichaelchen/repo-analyzer/internal/ollama"
	"github.com/kevinmichaelchen/repo-analyzer/internal/pipeline"
	"github.com/kevinmichaelchen/repo-analyzer/internal/tui"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var errAnalysisFailed = errors.New("analysis failed")

func main() {
	root := &cobra.Command{
		Use:   "repo-analyzer",
		Short: "Summarize GitHub repositories from their README with a local Ollama model",
		RunE: func(cmd *cobra.Command, args []string) error {
			fd := os.Stdout.Fd()
			if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
				return runUI()
			}
			return cmd.Help()
		},
	}

	root.AddCommand(
		analyzeCmd(), uiCmd(), modelsCmd(), batchCmd(),
		schemaCmd(), historyCmd(), searchCmd(), statsCmd(), reindexCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func analyzeCmd() *cobra.Command {
	var url, model string
	var failOnError bool

	cmd := &cobra.Command{
		Use:          "analyze",
		Short:        "Analyze one repository and print the result",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			cfg := setup(os.Stderr)
			if model == "" {
				model = defaultModel(cfg)
			}

			a := newApp(ctx, cfg)
			defer a.Close(context.Background())

			fmt.Println("--- GitHub Repo Analyzer CLI ---")
			res := a.analyzer.Run(ctx, url, model, nil)
			printResult(os.Stdout, res)

			if failOnError && res.Failed {
				return errAnalysisFailed
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "URL of the GitHub repository to analyze")
	cmd.Flags().StringVar(&model, "model", "", "Ollama model to use (default: REPO_ANALYZER_MODEL or "+models.DefaultModel()+")")
	cmd.Flags().BoolVar(&failOnError, "fail-on-error", false, "Exit with status 1 when the analysis fails")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

func printResult(w io.Writer, res pipeline.Result) {
	fmt.Fprintln(w, "\n--- Analysis Result ---")
	fmt.Fprintln(w, res.Analysis)
	fmt.Fprintln(w, "-----------------------")
	fmt.Fprintf(w, "Processing Time: %s\n", res.Timing)
	fmt.Fprintln(w, "-----------------------")
}

func uiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ui",
		Short: "Launch the interactive terminal UI",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUI()
		},
	}
}

// runUI keeps logs off the terminal the UI draws on.
func runUI() error {
	ctx := context.Background()
	cfg := setup(io.Discard)

	a := newApp(ctx, cfg)
	defer a.Close(ctx)

	return tui.Run(a.analyzer, defaultModel(cfg))
}

func modelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List curated models and which are installed locally",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg := setup(os.Stderr)
			a := newApp(ctx, cfg)
			defer a.Close(ctx)

			printModels(os.Stdout, a.ensurer.Installed(ctx), defaultModel(cfg))
			return nil
		},
	}
}

// printModels lists the curated models, marking installed ones with their
// size, then any other installed models.
func printModels(w io.Writer, installed []ollama.Model, def string) {
	byName := make(map[string]ollama.Model, len(installed))
	for _, m := range installed {
		byName[m.Name] = m
	}

	for _, m := range models.CuratedModels() {
		name := m.Name
		if name == def {
			name += " (default)"
		}
		if local, ok := byName[m.Name]; ok {
			fmt.Fprintf(w, "✓ %-30s %-40s %s\n", name, m.Note, modelDetails(local))
		} else {
			fmt.Fprintf(w, "  %-30s %s\n", name, m.Note)
		}
	}

	curated := models.ModelNames()
	var others []ollama.Model
	for _, m := range installed {
		if !slices.Contains(curated, m.Name) {
			others = append(others, m)
		}
	}
	if len(others) == 0 {
		return
	}
	sort.Slice(others, func(i, j int) bool { return others[i].Name < others[j].Name })
	fmt.Fprintln(w, "\nOther local models:")
	for _, m := range others {
		fmt.Fprintf(w, "✓ %-30s %s\n", m.Name, modelDetails(m))
	}
}

func modelDetails(m ollama.Model) string {
	parts := []string{humanize.Bytes(uint64(max(m.Size, 0)))}
	if m.ParameterSize != "" {
		parts = append(parts, m.ParameterSize)
	}
	if m.Family != "" {
		parts = append(parts, m.Family)
	}
	if !m.ModifiedAt.IsZero() {
		parts = append(parts, "updated "+humanize.Time(m.ModifiedAt))
	}
	return strings.Join(parts, ", ")
}

func batchCmd() *cobra.Command {
	var model, file string
	var concurrency int
	var failOnError bool

	cmd := &cobra.Command{
		Use:          "batch [url...]",
		Short:        "Analyze several repositories with one model",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			urls := args
			if file != "" {
				fromFile, err := readURLs(file)
				if err != nil {
					return err
				}
				urls = append(urls, fromFile...)
			}
			if len(urls) == 0 {
				return fmt.Errorf("no repository URLs given")
			}

			cfg := setup(os.Stderr)
			if model == "" {
				model = defaultModel(cfg)
			}

			a := newApp(ctx, cfg)
			defer a.Close(context.Background())

			results := a.analyzer.Batch(ctx, urls, model, concurrency)

			var failures int
			for i, res := range results {
				fmt.Printf("=== %s ===\n", urls[i])
				printResult(os.Stdout, res)
				fmt.Println()
				if res.Failed {
					failures++
				}
			}
			fmt.Printf("%d analyzed, %d failed\n", len(results)-failures, failures)

			if failOnError && failures > 0 {
				return errAnalysisFailed
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&model, "model", "", "Ollama model to use")
	cmd.Flags().StringVar(&file, "file", "", "File with one repository URL per line")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "Repositories analyzed at once")
	cmd.Flags().BoolVar(&failOnError, "fail-on-error", false, "Exit with status 1 when any analysis fails")
	return cmd
}

// readURLs reads one URL per line, skipping blanks and # comments.
func readURLs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening url file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var urls []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading url file: %w", err)
	}
	return urls, nil
}

func schemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Initialize/update the SurrealDB history schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			_, db, err := openHistory(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close(ctx) }()

			if err := db.InitSchema(ctx); err != nil {
				return err
			}
			fmt.Println("Schema initialized")
			return nil
		},
	}
}

func historyCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent analyses",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			_, db, err := openHistory(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close(ctx) }()

			entries, err := db.ListAnalyses(ctx, limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("No analyses yet")
				return nil
			}
			for _, e := range entries {
				fmt.Printf("%s  %-40s %-22s %6.2fs\n", e.CreatedAt, e.FullName, e.Model, e.Seconds)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of analyses")
	return cmd
}

func searchCmd() *cobra.Command {
	var k int

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Semantic similarity search across saved analyses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg, db, err := openHistory(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close(ctx) }()
			query := args[0]

			embClient := embedding.NewClient(cfg.OpenAIBaseURL(), cfg.EmbeddingModel, cfg.LLMTimeout)
			vec, err := embClient.EmbedSingle(ctx, query)
			if err != nil {
				return fmt.Errorf("embedding query: %w", err)
			}

			results, err := db.VectorSearch(ctx, vec, k)
			if err != nil {
				return err
			}

			if len(results) == 0 {
				fmt.Println("No results found")
				return nil
			}

			fmt.Printf("Top %d results for %q:\n\n", len(results), query)
			for i, r := range results {
				fmt.Printf("%d. %s  (%.3f)  %s\n", i+1, r.FullName, r.Score, r.Model)
				fmt.Printf("   %s\n", r.URL)
				if summary := firstParagraph(r.Markdown); summary != "" {
					fmt.Printf("   %s\n", summary)
				}
				fmt.Println()
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&k, "k", "k", 10, "Number of results")
	return cmd
}

// firstParagraph returns the first non-heading line of an analysis.
func firstParagraph(markdown string) string {
	for _, line := range strings.Split(markdown, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") {
			return line
		}
	}
	return ""
}

func reindexCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Embed saved analyses that have no embedding yet",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg, db, err := openHistory(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close(ctx) }()

			emb := embedding.NewClient(cfg.OpenAIBaseURL(), cfg.EmbeddingModel, cfg.LLMTimeout)
			n, err := pipeline.Reindex(ctx, db, emb, limit)
			if err != nil {
				return err
			}
			fmt.Printf("Embedded %d analyses\n", n)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 500, "Maximum analyses to embed")
	return cmd
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show analysis counts and model breakdown",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			_, db, err := openHistory(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close(ctx) }()

			stats, err := db.GetStats(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("Analyses: %d\n", stats.Total)
			fmt.Printf("Repos:    %d\n", stats.Repos)
			fmt.Printf("Embedded: %d\n", stats.Embedded)

			counts, err := db.GetModelBreakdown(ctx)
			if err != nil {
				return err
			}

			if len(counts) > 0 {
				sort.Slice(counts, func(i, j int) bool {
					return counts[i].Count > counts[j].Count
				})
				fmt.Println("\nModel breakdown:")
				for _, c := range counts {
					fmt.Printf("  %-24s %d\n", c.Model, c.Count)
				}
			}

			return nil
		},
	}
}
