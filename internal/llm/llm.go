package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kevinmichaelchen/repo-analyzer/internal/models"
	openai "github.com/sashabaranov/go-openai"
)

// Client sends README analyses to an OpenAI-compatible chat endpoint, which
// for Ollama lives under {host}/v1.
type Client struct {
	client *openai.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	// Ollama ignores the key but the SDK always sends one
	cfg := openai.DefaultConfig("ollama")
	cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return &Client{client: openai.NewClientWithConfig(cfg)}
}

const promptTemplate = `
You are an expert senior AI researcher with 20 years of experience.
Your task is to analyze the following GitHub repository's README file and provide a structured, concise, and insightful summary.

**README Content:**
---
%s
---

**Your Analysis:**
Provide the output in the following markdown format:

### 🚀 Project Summary
(A brief, one-paragraph summary of the project's main goal and functionality.)

### 🛠️ Key Technologies & Libraries
(A bulleted list of the primary technologies, languages, and libraries mentioned or implied.)

### 💡 Potential Use Cases
(A bulleted list of 2-3 potential real-world applications for this project.)

### 📈 Complexity
(Your expert opinion on the project's complexity: Beginner, Intermediate, or Advanced.)
`

// BuildPrompt embeds readme verbatim; nothing is escaped or truncated.
func BuildPrompt(readme string) string {
	return fmt.Sprintf(promptTemplate, readme)
}

// Result is a successful analysis.
type Result struct {
	Content  string
	Duration time.Duration
}

// TimingNote renders the wall-clock time of the chat call.
func (r *Result) TimingNote() string {
	return FormatTiming(r.Duration)
}

func FormatTiming(d time.Duration) string {
	return fmt.Sprintf("*LLM processing time: %.2f seconds.*", d.Seconds())
}

// AnalysisError wraps any failure of the chat call.
type AnalysisError struct {
	Model string
	Err   error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("%s communicating with LLM %s: %v", models.ErrorTag, e.Model, e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }

// Analyze asks model for a structured review of readme. Failures are
// *AnalysisError.
func (c *Client) Analyze(ctx context.Context, readme, model string) (*Result, error) {
	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(readme)},
		},
	}

	slog.Debug("Sending request to LLM", "model", model, "prompt_bytes", len(req.Messages[0].Content))
	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, req)
	elapsed := time.Since(start)
	if err != nil {
		slog.Warn("LLM call failed", "model", model, "error", err)
		return nil, &AnalysisError{Model: model, Err: err}
	}

	if len(resp.Choices) == 0 {
		return nil, &AnalysisError{Model: model, Err: errors.New("no choices returned")}
	}
	// The reply is passed through as-is, even when empty.
	result := &Result{Content: resp.Choices[0].Message.Content, Duration: elapsed}
	slog.Info("Received response from LLM", "model", model, "seconds", fmt.Sprintf("%.2f", elapsed.Seconds()))
	return result, nil
}
