package ollama

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/kevinmichaelchen/repo-analyzer/internal/models"
)

// ModelUnavailableError means a missing model could not be pulled.
type ModelUnavailableError struct {
	Model string
	Err   error
}

func (e *ModelUnavailableError) Error() string {
	return fmt.Sprintf("%s: Failed to pull model '%s'. Please check the model name and your connection. Details: %v",
		models.ErrorTag, e.Model, e.Err)
}

func (e *ModelUnavailableError) Unwrap() error { return e.Err }

// ModelManager is the subset of the Ollama API the Ensurer needs.
type ModelManager interface {
	ListModels(ctx context.Context) ([]Model, error)
	PullModel(ctx context.Context, name string, progress PullProgressFunc) error
}

// Ensurer makes sure a model is installed before it is used.
type Ensurer struct {
	manager     ModelManager
	listTimeout time.Duration
	pullTimeout time.Duration
}

// NewEnsurer bounds model listing by listTimeout and pulls by pullTimeout.
// Zero means no bound.
func NewEnsurer(manager ModelManager, listTimeout, pullTimeout time.Duration) *Ensurer {
	return &Ensurer{manager: manager, listTimeout: listTimeout, pullTimeout: pullTimeout}
}

// Installed returns the models on the server, or an empty slice when the
// server cannot be queried in time. A missing server then surfaces as a pull
// failure.
func (e *Ensurer) Installed(ctx context.Context) []Model {
	listCtx, cancel := withTimeout(ctx, e.listTimeout)
	defer cancel()

	list, err := e.manager.ListModels(listCtx)
	if err != nil {
		slog.Warn("Could not list local models", "error", err)
		return []Model{}
	}
	return list
}

// LocalModels returns installed model names.
func (e *Ensurer) LocalModels(ctx context.Context) []string {
	installed := e.Installed(ctx)
	names := make([]string, 0, len(installed))
	for _, m := range installed {
		names = append(names, m.Name)
	}
	return names
}

// EnsureModel pulls model unless it is already installed. Names are compared
// exactly. progress receives pull status and may be nil. Failure is a
// *ModelUnavailableError.
func (e *Ensurer) EnsureModel(ctx context.Context, model string, progress PullProgressFunc) error {
	if slices.Contains(e.LocalModels(ctx), model) {
		slog.Debug("Model already available", "model", model)
		return nil
	}

	slog.Info("Model not found locally, pulling from Ollama", "model", model)

	pullCtx, cancel := withTimeout(ctx, e.pullTimeout)
	defer cancel()

	if progress == nil {
		progress = logPullProgress(model)
	}
	if err := e.manager.PullModel(pullCtx, model, progress); err != nil {
		return &ModelUnavailableError{Model: model, Err: err}
	}
	return nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// logPullProgress logs each distinct status line once.
func logPullProgress(model string) PullProgressFunc {
	var last string
	return func(status string, completed, total int64) {
		if status == last {
			return
		}
		last = status
		slog.Debug("Pulling model", "model", model, "status", status, "completed", completed, "total", total)
	}
}
