package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	gogithub "github.com/google/go-github/v57/github"
	"github.com/kevinmichaelchen/repo-analyzer/internal/models"
)

// DefaultBranches are tried in order; the first hit wins.
var DefaultBranches = []string{"main", "master", "develop", "dev"}

// Strategy is one way of locating a repository's README.
//
// Fetch returns errNoReadme when the strategy found nothing and the next one
// should be tried. Any other error aborts the fetch.
type Strategy interface {
	Fetch(ctx context.Context, c *Client, ref models.RepoRef) (string, error)
}

// BranchStrategy requests README.md on a fixed list of branch names through the
// raw content host. It needs no credentials.
type BranchStrategy struct {
	Branches []string
}

func (s BranchStrategy) Fetch(ctx context.Context, c *Client, ref models.RepoRef) (string, error) {
	for _, branch := range s.Branches {
		text, err := c.getRaw(ctx, ref, branch)
		if err == nil {
			slog.Debug("Found README", "repo", ref.FullName(), "branch", branch)
			return text, nil
		}
		if !errors.Is(err, errNoReadme) {
			return "", err
		}
	}
	return "", errNoReadme
}

// APIStrategy asks the GitHub REST API for the repository's preferred README
// on its default branch, whatever that branch and file are called.
//
// API failures other than 404 are logged, and every failure is treated as a
// miss. A fetch that ends here reports KindNotFound even if the API was down.
type APIStrategy struct {
	client *gogithub.Client
}

func NewAPIStrategy(httpClient *http.Client, token string) *APIStrategy {
	return &APIStrategy{client: gogithub.NewClient(httpClient).WithAuthToken(token)}
}

func (s *APIStrategy) Fetch(ctx context.Context, _ *Client, ref models.RepoRef) (string, error) {
	content, _, err := s.client.Repositories.GetReadme(ctx, ref.Owner, ref.Name, nil)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		var errResp *gogithub.ErrorResponse
		if !errors.As(err, &errResp) || errResp.Response == nil || errResp.Response.StatusCode != http.StatusNotFound {
			slog.Warn("GitHub API README lookup failed", "repo", ref.FullName(), "error", err)
		}
		return "", errNoReadme
	}

	text, err := content.GetContent()
	if err != nil {
		return "", fmt.Errorf("decoding README for %s: %w", ref.FullName(), err)
	}
	slog.Debug("Found README via API", "repo", ref.FullName(), "path", content.GetPath())
	return text, nil
}
