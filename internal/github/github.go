package github

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kevinmichaelchen/repo-analyzer/internal/models"
)

const (
	rawContentBase = "https://raw.githubusercontent.com"
	hostMarker     = "github.com"
)

// errNoReadme is returned by a Strategy that found nothing; the client moves on
// to the next strategy.
var errNoReadme = errors.New("no README found")

// Client fetches README files from public GitHub repositories.
type Client struct {
	rawBaseURL string
	httpClient *http.Client
	strategies []Strategy
}

// NewClient returns a client that reads from raw.githubusercontent.com. When token
// is non-empty the GitHub REST API is consulted after every branch misses.
func NewClient(token string, timeout time.Duration) *Client {
	httpClient := &http.Client{Timeout: timeout}
	strategies := []Strategy{BranchStrategy{Branches: DefaultBranches}}
	if token != "" {
		strategies = append(strategies, NewAPIStrategy(httpClient, token))
	}
	return &Client{
		rawBaseURL: rawContentBase,
		httpClient: httpClient,
		strategies: strategies,
	}
}

// ParseRepoURL derives owner and repository from a GitHub URL using the last
// two path segments after the host.
func ParseRepoURL(repoURL string) (models.RepoRef, error) {
	idx := strings.Index(repoURL, hostMarker)
	if idx == -1 {
		return models.RepoRef{}, &FetchError{Kind: KindInvalidURL, URL: repoURL}
	}

	path := strings.TrimRight(repoURL[idx+len(hostMarker):], "/")
	var parts []string
	for _, p := range strings.Split(path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) < 2 {
		return models.RepoRef{}, &FetchError{Kind: KindMalformedReference, URL: repoURL}
	}

	return models.RepoRef{
		URL:   repoURL,
		Owner: parts[len(parts)-2],
		Name:  strings.TrimSuffix(parts[len(parts)-1], ".git"),
	}, nil
}

// FetchReadme returns the README text for the repository at repoURL. Every
// failure is a *FetchError.
func (c *Client) FetchReadme(ctx context.Context, repoURL string) (string, error) {
	ref, err := ParseRepoURL(repoURL)
	if err != nil {
		return "", err
	}

	for _, s := range c.strategies {
		text, err := s.Fetch(ctx, c, ref)
		if err == nil {
			return text, nil
		}
		if errors.Is(err, errNoReadme) {
			continue
		}
		return "", &FetchError{Kind: KindTransport, URL: repoURL, Ref: ref, Err: err}
	}

	return "", &FetchError{Kind: KindNotFound, URL: repoURL, Ref: ref}
}

// getRaw fetches one file from the raw content host. A non-200 status yields
// errNoReadme.
func (c *Client) getRaw(ctx context.Context, ref models.RepoRef, branch string) (string, error) {
	rawURL := fmt.Sprintf("%s/%s/%s/%s/README.md", c.rawBaseURL, ref.Owner, ref.Name, branch)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		slog.Debug("README branch missed", "url", rawURL, "status", resp.StatusCode)
		return "", errNoReadme
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	return string(body), nil
}
