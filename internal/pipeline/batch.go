package pipeline

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Batch analyzes several repositories with one model. The model is ensured
// once up front; fetch and analysis then run with at most limit in flight.
// Results are in input order.
func (a *Analyzer) Batch(ctx context.Context, urls []string, model string, limit int) []Result {
	results := make([]Result, len(urls))
	if len(urls) == 0 {
		return results
	}

	model = strings.TrimSpace(model)
	if model == "" {
		for i := range results {
			results[i] = failed(PromptMessage)
		}
		return results
	}

	if err := a.ensurer.EnsureModel(ctx, model, nil); err != nil {
		msg := render(err)
		for i := range results {
			results[i] = failed(msg)
		}
		return results
	}

	if limit < 1 {
		limit = 1
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, u := range urls {
		g.Go(func() error {
			results[i] = a.run(gCtx, u, model, nil, false)
			return nil // one failed repo does not stop the others
		})
	}

	_ = g.Wait()
	return results
}
