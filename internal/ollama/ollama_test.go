package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/kevinmichaelchen/repo-analyzer/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeManager implements ModelManager and records calls.
type fakeManager struct {
	models    []Model
	listErr   error
	pullErr   error
	mu        sync.Mutex
	pullCalls []string
}

func (f *fakeManager) ListModels(ctx context.Context) ([]Model, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.models, nil
}

func (f *fakeManager) PullModel(ctx context.Context, name string, progress PullProgressFunc) error {
	f.mu.Lock()
	f.pullCalls = append(f.pullCalls, name)
	f.mu.Unlock()
	if progress != nil {
		progress("pulling manifest", 0, 0)
		progress("success", 0, 0)
	}
	return f.pullErr
}

func TestEnsureModel_PresentIsNoop(t *testing.T) {
	fm := &fakeManager{models: []Model{{Name: "llama3:8b"}, {Name: "gemma3:270M"}}}
	e := NewEnsurer(fm, time.Minute, time.Minute)

	require.NoError(t, e.EnsureModel(context.Background(), "gemma3:270M", nil))
	assert.Empty(t, fm.pullCalls)
}

func TestEnsureModel_ExactMatchOnly(t *testing.T) {
	fm := &fakeManager{models: []Model{{Name: "gemma3:270m"}}}
	e := NewEnsurer(fm, time.Minute, time.Minute)

	require.NoError(t, e.EnsureModel(context.Background(), "gemma3:270M", nil))
	assert.Equal(t, []string{"gemma3:270M"}, fm.pullCalls)
}

func TestEnsureModel_PullsMissing(t *testing.T) {
	fm := &fakeManager{models: []Model{{Name: "llama3:8b"}}}
	e := NewEnsurer(fm, time.Minute, time.Minute)

	var statuses []string
	progress := func(status string, completed, total int64) { statuses = append(statuses, status) }

	require.NoError(t, e.EnsureModel(context.Background(), "mistral:7b", progress))
	assert.Equal(t, []string{"mistral:7b"}, fm.pullCalls)
	assert.Equal(t, []string{"pulling manifest", "success"}, statuses)
}

func TestEnsureModel_PullFailure(t *testing.T) {
	cause := errors.New("pull model manifest: file does not exist")
	fm := &fakeManager{pullErr: cause}
	e := NewEnsurer(fm, time.Minute, time.Minute)

	err := e.EnsureModel(context.Background(), "no-such-model:1b", nil)
	require.Error(t, err)

	var mu *ModelUnavailableError
	require.ErrorAs(t, err, &mu)
	assert.Equal(t, "no-such-model:1b", mu.Model)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "no-such-model:1b")
	assert.Contains(t, err.Error(), "Please check the model name and your connection")
	assert.Contains(t, err.Error(), cause.Error())
	assert.True(t, models.IsErrorText(err.Error()))
}

func TestEnsureModel_ListFailureFallsThroughToPull(t *testing.T) {
	fm := &fakeManager{listErr: errors.New("connection refused"), pullErr: errors.New("connection refused")}
	e := NewEnsurer(fm, time.Minute, time.Minute)

	assert.Empty(t, e.LocalModels(context.Background()))
	assert.NotNil(t, e.LocalModels(context.Background()))

	err := e.EnsureModel(context.Background(), "llama3:8b", nil)
	require.Error(t, err)
	assert.Equal(t, []string{"llama3:8b"}, fm.pullCalls)
}

func TestClient_ListModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		_, _ = w.Write([]byte(`{"models":[
			{"name":"llama3:8b","model":"llama3:8b","size":4661224676,"details":{"family":"llama","parameter_size":"8.0B"}},
			{"name":"gemma3:270m","size":291554930}
		]}`))
	}))
	defer server.Close()

	c := &Client{baseURL: server.URL, httpClient: server.Client()}
	list, err := c.ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "llama3:8b", list[0].Name)
	assert.Equal(t, "llama", list[0].Family)
	assert.Equal(t, "8.0B", list[0].ParameterSize)
	assert.Equal(t, "gemma3:270m", list[1].Name, "falls back to name when model is absent")
}

func TestClient_ListModelsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer server.Close()

	c := &Client{baseURL: server.URL, httpClient: server.Client()}
	_, err := c.ListModels(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestClient_PullModel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/pull", r.URL.Path)
		var req pullRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gemma3:270M", req.Model)
		assert.True(t, req.Stream)

		fmt.Fprintln(w, `{"status":"pulling manifest"}`)
		fmt.Fprintln(w, `{"status":"pulling abc","digest":"sha256:abc","total":100,"completed":50}`)
		fmt.Fprintln(w, `not json`)
		fmt.Fprintln(w, `{"status":"success"}`)
	}))
	defer server.Close()

	c := &Client{baseURL: server.URL, httpClient: server.Client()}

	var got []int64
	err := c.PullModel(context.Background(), "gemma3:270M", func(status string, completed, total int64) {
		got = append(got, completed)
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 50, 0}, got)
}

func TestClient_PullModelStreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"status":"pulling manifest"}`)
		fmt.Fprintln(w, `{"error":"pull model manifest: file does not exist"}`)
	}))
	defer server.Close()

	c := &Client{baseURL: server.URL, httpClient: server.Client()}
	err := c.PullModel(context.Background(), "nope", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file does not exist")
}

func TestClient_PullModelStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model not found"}`))
	}))
	defer server.Close()

	c := &Client{baseURL: server.URL, httpClient: server.Client()}
	err := c.PullModel(context.Background(), "nope", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestClient_PullModelTruncatedStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"status":"pulling manifest"}`)
	}))
	defer server.Close()

	c := &Client{baseURL: server.URL, httpClient: server.Client()}
	err := c.PullModel(context.Background(), "llama3:8b", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "without success")
}

func TestEnsurer_WithRealClient(t *testing.T) {
	var pulls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			_, _ = w.Write([]byte(`{"models":[]}`))
		case "/api/pull":
			pulls++
			fmt.Fprintln(w, `{"status":"success"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	e := NewEnsurer(NewClient(server.URL+"/"), time.Minute, time.Minute)
	require.NoError(t, e.EnsureModel(context.Background(), "tinydolphin:1.1b", nil))
	assert.Equal(t, 1, pulls)
}

// hangingManager accepts calls and never answers until ctx ends.
type hangingManager struct {
	fakeManager
}

func (h *hangingManager) ListModels(ctx context.Context) ([]Model, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestInstalled_ListIsBounded(t *testing.T) {
	e := NewEnsurer(&hangingManager{}, 50*time.Millisecond, time.Minute)

	done := make(chan []Model, 1)
	go func() { done <- e.Installed(context.Background()) }()

	select {
	case got := <-done:
		assert.Empty(t, got)
	case <-time.After(2 * time.Second):
		t.Fatal("listing models did not time out")
	}
}

func TestEnsureModel_ListTimeoutFallsThroughToPull(t *testing.T) {
	hm := &hangingManager{}
	e := NewEnsurer(hm, 50*time.Millisecond, time.Minute)

	require.NoError(t, e.EnsureModel(context.Background(), "phi3:3.8b", nil))
	assert.Equal(t, []string{"phi3:3.8b"}, hm.pullCalls)
}

func TestInstalled_KeepsDetails(t *testing.T) {
	fm := &fakeManager{models: []Model{{Name: "llama3:8b", Size: 4661224676, ParameterSize: "8.0B", Family: "llama"}}}
	e := NewEnsurer(fm, 0, 0)

	got := e.Installed(context.Background())
	require.Len(t, got, 1)
	assert.Equal(t, "8.0B", got[0].ParameterSize)
	assert.Equal(t, []string{"llama3:8b"}, e.LocalModels(context.Background()))
}
