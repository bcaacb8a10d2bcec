package models

import "time"

// RepoRef identifies a GitHub repository by the URL the user typed and the
// owner/name pair derived from it.
type RepoRef struct {
	URL   string `json:"url"`
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

func (r RepoRef) FullName() string {
	return r.Owner + "/" + r.Name
}

// Analysis is one saved analysis in the history store.
type Analysis struct {
	ID        string    `json:"id,omitempty"`
	FullName  string    `json:"full_name"`
	URL       string    `json:"url"`
	Model     string    `json:"model"`
	Markdown  string    `json:"markdown"`
	Seconds   float64   `json:"seconds"`
	CreatedAt time.Time `json:"-"`
	Embedding []float32 `json:"embedding,omitempty"`
}

// HistoryEntry is a row returned when listing the history store.
type HistoryEntry struct {
	FullName  string  `json:"full_name"`
	URL       string  `json:"url"`
	Model     string  `json:"model"`
	Seconds   float64 `json:"seconds"`
	CreatedAt string  `json:"created"`
}

type SearchResult struct {
	FullName string  `json:"full_name"`
	URL      string  `json:"url"`
	Model    string  `json:"model"`
	Markdown string  `json:"markdown"`
	Score    float64 `json:"score"`
}
