// Package embedding turns saved analyses and search queries into vectors
// using an Ollama embedding model behind its OpenAI-compatible endpoint.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// maxInputRunes keeps a long analysis inside the context window of small
// embedding models such as nomic-embed-text.
const maxInputRunes = 8000

// batchSize bounds one /v1/embeddings request when reindexing history.
const batchSize = 64

var errEmptyInput = errors.New("nothing to embed")

type Client struct {
	api   *openai.Client
	model openai.EmbeddingModel
}

func NewClient(baseURL, model string, timeout time.Duration) *Client {
	cfg := openai.DefaultConfig("ollama")
	cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return &Client{api: openai.NewClientWithConfig(cfg), model: openai.EmbeddingModel(model)}
}

// EmbedSingle embeds one text, typically a search query or a fresh analysis.
func (c *Client) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	text = prepare(text)
	if text == "" {
		return nil, errEmptyInput
	}
	vecs, err := c.request(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// Embed embeds texts in order, batchSize at a time.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for chunk := range slices.Chunk(texts, batchSize) {
		inputs := make([]string, len(chunk))
		for i, t := range chunk {
			if inputs[i] = prepare(t); inputs[i] == "" {
				return nil, fmt.Errorf("text %d: %w", len(out)+i, errEmptyInput)
			}
		}
		vecs, err := c.request(ctx, inputs)
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// request sends one embeddings call and places results by their index.
func (c *Client) request(ctx context.Context, inputs []string) ([][]float32, error) {
	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: inputs,
		Model: c.model,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding with %s: %w", c.model, err)
	}

	vecs := make([][]float32, len(inputs))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(inputs) {
			return nil, fmt.Errorf("%s returned embedding index %d for %d inputs", c.model, d.Index, len(inputs))
		}
		vecs[d.Index] = d.Embedding
	}
	for i, v := range vecs {
		if len(v) == 0 {
			return nil, fmt.Errorf("%s returned no embedding for input %d", c.model, i)
		}
	}
	return vecs, nil
}

func prepare(text string) string {
	text = strings.TrimSpace(text)
	if r := []rune(text); len(r) > maxInputRunes {
		text = string(r[:maxInputRunes])
	}
	return text
}
