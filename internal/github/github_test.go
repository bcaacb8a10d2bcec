package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	gogithub "github.com/google/go-github/v57/github"
	"github.com/kevinmichaelchen/repo-analyzer/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rawServer serves README.md for the given branches and 404 otherwise,
// recording every requested path.
type rawServer struct {
	*httptest.Server
	mu    sync.Mutex
	paths []string
}

func newRawServer(t *testing.T, bodies map[string]string) *rawServer {
	t.Helper()
	rs := &rawServer{}
	rs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rs.mu.Lock()
		rs.paths = append(rs.paths, r.URL.Path)
		rs.mu.Unlock()

		for branch, body := range bodies {
			if strings.HasSuffix(r.URL.Path, "/"+branch+"/README.md") {
				_, _ = w.Write([]byte(body))
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(rs.Close)
	return rs
}

func (rs *rawServer) calls() []string {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return append([]string(nil), rs.paths...)
}

func newTestClient(rs *rawServer, strategies ...Strategy) *Client {
	if len(strategies) == 0 {
		strategies = []Strategy{BranchStrategy{Branches: DefaultBranches}}
	}
	return &Client{
		rawBaseURL: rs.URL,
		httpClient: rs.Client(),
		strategies: strategies,
	}
}

func TestParseRepoURL(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		wantOwner string
		wantName  string
		wantKind  Kind
		wantErr   bool
	}{
		{name: "plain", url: "https://github.com/openai/gpt-oss", wantOwner: "openai", wantName: "gpt-oss"},
		{name: "trailing slashes", url: "https://github.com/ollama/ollama//", wantOwner: "ollama", wantName: "ollama"},
		{name: "no scheme", url: "github.com/huggingface/transformers", wantOwner: "huggingface", wantName: "transformers"},
		{name: "git suffix", url: "https://github.com/facebookresearch/llama.git", wantOwner: "facebookresearch", wantName: "llama"},
		{name: "not github", url: "https://gitlab.com/foo/bar", wantErr: true, wantKind: KindInvalidURL},
		{name: "owner only", url: "https://github.com/openai", wantErr: true, wantKind: KindMalformedReference},
		{name: "host only", url: "https://github.com/", wantErr: true, wantKind: KindMalformedReference},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, err := ParseRepoURL(tt.url)
			if tt.wantErr {
				var fe *FetchError
				require.ErrorAs(t, err, &fe)
				assert.Equal(t, tt.wantKind, fe.Kind)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOwner, ref.Owner)
			assert.Equal(t, tt.wantName, ref.Name)
			assert.Equal(t, tt.url, ref.URL)
		})
	}
}

func TestFetchReadme_InvalidURLMakesNoRequests(t *testing.T) {
	rs := newRawServer(t, map[string]string{"main": "x"})
	c := newTestClient(rs)

	for _, u := range []string{"https://gitlab.com/a/b", "not a url", ""} {
		text, err := c.FetchReadme(context.Background(), u)
		require.Error(t, err)
		assert.Empty(t, text)
		assert.Equal(t, "Error<repoAnalyzerAgent>: Please provide a valid GitHub URL.", err.Error())
	}
	assert.Empty(t, rs.calls())
}

func TestFetchReadme_MalformedReference(t *testing.T) {
	rs := newRawServer(t, nil)
	c := newTestClient(rs)

	_, err := c.FetchReadme(context.Background(), "https://github.com/openai")
	require.Error(t, err)
	assert.True(t, models.IsErrorText(err.Error()))
	assert.Contains(t, err.Error(), "https://github.com/openai")
	assert.Empty(t, rs.calls())
}

func TestFetchReadme_FirstSuccessfulBranchWins(t *testing.T) {
	rs := newRawServer(t, map[string]string{
		"master":  "# from master",
		"develop": "# from develop",
	})
	c := newTestClient(rs)

	text, err := c.FetchReadme(context.Background(), "https://github.com/openai/gpt-oss")
	require.NoError(t, err)
	assert.Equal(t, "# from master", text)
	assert.Equal(t, []string{
		"/openai/gpt-oss/main/README.md",
		"/openai/gpt-oss/master/README.md",
	}, rs.calls())
}

func TestFetchReadme_MainShortCircuits(t *testing.T) {
	rs := newRawServer(t, map[string]string{"main": "# main", "master": "# master"})
	c := newTestClient(rs)

	text, err := c.FetchReadme(context.Background(), "https://github.com/openai/gpt-oss/")
	require.NoError(t, err)
	assert.Equal(t, "# main", text)
	assert.Len(t, rs.calls(), 1)
}

func TestFetchReadme_AllBranchesMiss(t *testing.T) {
	rs := newRawServer(t, nil)
	c := newTestClient(rs)

	_, err := c.FetchReadme(context.Background(), "https://github.com/this/repo-does-not-exist")
	require.Error(t, err)

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, KindNotFound, fe.Kind)
	assert.Contains(t, err.Error(), models.ErrorTag)
	assert.Contains(t, err.Error(), "'main' or 'master' branch")
	assert.Len(t, rs.calls(), len(DefaultBranches))
}

func TestFetchReadme_TransportError(t *testing.T) {
	rs := newRawServer(t, nil)
	c := newTestClient(rs)
	rs.Close()

	_, err := c.FetchReadme(context.Background(), "https://github.com/openai/gpt-oss")
	require.Error(t, err)

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, KindTransport, fe.Kind)
	assert.True(t, strings.HasPrefix(err.Error(), "Error<repoAnalyzerAgent> fetching content: "))
	assert.NotNil(t, errors.Unwrap(err))
}

func TestFetchReadme_Timeout(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer slow.Close()

	c := &Client{
		rawBaseURL: slow.URL,
		httpClient: &http.Client{Timeout: 20 * time.Millisecond},
		strategies: []Strategy{BranchStrategy{Branches: DefaultBranches}},
	}

	_, err := c.FetchReadme(context.Background(), "https://github.com/openai/gpt-oss")
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, KindTransport, fe.Kind)
}

func newAPIStrategy(t *testing.T, handler http.HandlerFunc) *APIStrategy {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	gh := gogithub.NewClient(srv.Client()).WithAuthToken("test-token")
	base, err := url.Parse(srv.URL + "/")
	require.NoError(t, err)
	gh.BaseURL = base
	return &APIStrategy{client: gh}
}

func TestFetchReadme_APIFallback(t *testing.T) {
	rs := newRawServer(t, nil)
	api := newAPIStrategy(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/openai/gpt-oss/readme", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"type":     "file",
			"name":     "README.rst",
			"path":     "README.rst",
			"encoding": "base64",
			"content":  base64.StdEncoding.EncodeToString([]byte("gpt-oss\n=======")),
		})
	})
	c := newTestClient(rs, BranchStrategy{Branches: DefaultBranches}, api)

	text, err := c.FetchReadme(context.Background(), "https://github.com/openai/gpt-oss")
	require.NoError(t, err)
	assert.Equal(t, "gpt-oss\n=======", text)
	assert.Len(t, rs.calls(), len(DefaultBranches), "branches are tried before the API")
}

func TestFetchReadme_APIFallbackMiss(t *testing.T) {
	rs := newRawServer(t, nil)
	api := newAPIStrategy(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Not Found"}`))
	})
	c := newTestClient(rs, BranchStrategy{Branches: DefaultBranches}, api)

	_, err := c.FetchReadme(context.Background(), "https://github.com/openai/gpt-oss")
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, KindNotFound, fe.Kind)
}

func TestFetchReadme_APIServerErrorIsAMiss(t *testing.T) {
	rs := newRawServer(t, nil)
	api := newAPIStrategy(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"message":"Bad Gateway"}`))
	})
	c := newTestClient(rs, BranchStrategy{Branches: DefaultBranches}, api)

	_, err := c.FetchReadme(context.Background(), "https://github.com/openai/gpt-oss")
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, KindNotFound, fe.Kind)
}

func TestNewClient_Strategies(t *testing.T) {
	assert.Len(t, NewClient("", time.Second).strategies, 1)
	assert.Len(t, NewClient("token", time.Second).strategies, 2)
}
