package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kevinmichaelchen/repo-analyzer/internal/github"
	"github.com/kevinmichaelchen/repo-analyzer/internal/llm"
	"github.com/kevinmichaelchen/repo-analyzer/internal/models"
	"github.com/kevinmichaelchen/repo-analyzer/internal/ollama"
)

// PromptMessage is returned in both positions when the URL or model is missing.
const PromptMessage = "Please enter a GitHub repository URL to begin and select a model."

// ProgressFunc receives a completion fraction in [0,1] and a description.
type ProgressFunc func(fraction float64, desc string)

type ModelEnsurer interface {
	EnsureModel(ctx context.Context, model string, progress ollama.PullProgressFunc) error
}

type ReadmeFetcher interface {
	FetchReadme(ctx context.Context, repoURL string) (string, error)
}

type RepoAnalyzer interface {
	Analyze(ctx context.Context, readme, model string) (*llm.Result, error)
}

// Recorder persists successful analyses. It must not fail the run.
type Recorder interface {
	Record(ctx context.Context, a models.Analysis)
}

// Result is what the presentation layer shows: the analysis markdown (or an
// error message) and the timing line. On early failures both hold the same
// message.
type Result struct {
	Analysis string
	Timing   string
	Failed   bool
}

func failed(msg string) Result {
	return Result{Analysis: msg, Timing: msg, Failed: true}
}

// Analyzer runs the check-model, fetch, analyze sequence.
type Analyzer struct {
	ensurer  ModelEnsurer
	fetcher  ReadmeFetcher
	analyzer RepoAnalyzer
	recorder Recorder
}

func New(ensurer ModelEnsurer, fetcher ReadmeFetcher, analyzer RepoAnalyzer) *Analyzer {
	return &Analyzer{ensurer: ensurer, fetcher: fetcher, analyzer: analyzer}
}

// WithRecorder enables saving successful analyses.
func (a *Analyzer) WithRecorder(r Recorder) *Analyzer {
	a.recorder = r
	return a
}

// Run analyzes the repository at repoURL with model. It never returns an
// error; failures are rendered into the Result. A nil progress logs each step
// instead.
func (a *Analyzer) Run(ctx context.Context, repoURL, model string, progress ProgressFunc) Result {
	return a.run(ctx, repoURL, model, progress, true)
}

func (a *Analyzer) run(ctx context.Context, repoURL, model string, progress ProgressFunc, ensure bool) Result {
	repoURL = strings.TrimSpace(repoURL)
	model = strings.TrimSpace(model)
	if repoURL == "" || model == "" {
		return failed(PromptMessage)
	}

	report := progress
	if report == nil {
		report = logProgress(repoURL)
	}

	report(0, "Initiating github repo analysis...")

	if ensure {
		report(0.25, fmt.Sprintf("Step (1/4) Checking model: %s...", model))
		if err := a.ensurer.EnsureModel(ctx, model, pullProgress(report, model)); err != nil {
			return failed(render(err))
		}
	}

	report(0.5, fmt.Sprintf("Step (2/4) Fetching content for: %s...", repoURL))
	readme, err := a.fetcher.FetchReadme(ctx, repoURL)
	if err != nil {
		return failed(render(err))
	}

	report(0.75, fmt.Sprintf("Step (3/4) Analyzing content with LLM -> %s...", model))
	res, err := a.analyzer.Analyze(ctx, readme, model)
	report(1, "Step (4/4) Done!")
	if err != nil {
		return Result{Analysis: render(err), Timing: "", Failed: true}
	}

	if a.recorder != nil {
		a.recorder.Record(ctx, analysisRecord(repoURL, model, res))
	}

	return Result{Analysis: res.Content, Timing: res.TimingNote()}
}

// render turns an error into the tagged text shown to users.
func render(err error) string {
	msg := err.Error()
	if models.IsErrorText(msg) {
		return msg
	}
	return fmt.Sprintf("%s: %s", models.ErrorTag, msg)
}

func analysisRecord(repoURL, model string, res *llm.Result) models.Analysis {
	a := models.Analysis{
		FullName: repoURL,
		URL:      repoURL,
		Model:    model,
		Markdown: res.Content,
		Seconds:  res.Duration.Seconds(),
	}
	if ref, err := github.ParseRepoURL(repoURL); err == nil {
		a.FullName = ref.FullName()
	}
	return a
}

func logProgress(repoURL string) ProgressFunc {
	return func(fraction float64, desc string) {
		slog.Info(desc, "url", repoURL, "progress", fraction)
	}
}

// pullProgress reports a model download as updates to the model-check step.
// Repeats of the same status and whole percentage are skipped.
func pullProgress(report ProgressFunc, model string) ollama.PullProgressFunc {
	var last string
	return func(status string, completed, total int64) {
		desc := fmt.Sprintf("Step (1/4) Pulling model %s: %s", model, status)
		if total > 0 {
			desc = fmt.Sprintf("%s %d%%", desc, completed*100/total)
		}
		if desc == last {
			return
		}
		last = desc
		report(0.25, desc)
	}
}
