package github

import (
	"fmt"

	"github.com/kevinmichaelchen/repo-analyzer/internal/models"
)

// Kind classifies why a README could not be fetched.
type Kind int

const (
	// KindInvalidURL means the URL does not point at github.com.
	KindInvalidURL Kind = iota

	// KindMalformedReference means owner and repository could not be
	// derived from the URL path.
	KindMalformedReference

	// KindNotFound means every attempt came back without a README.
	KindNotFound

	// KindTransport means a request failed before a status was received.
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindInvalidURL:
		return "INVALID_URL"
	case KindMalformedReference:
		return "MALFORMED_REFERENCE"
	case KindNotFound:
		return "NOT_FOUND"
	case KindTransport:
		return "TRANSPORT"
	default:
		return "UNKNOWN"
	}
}

// FetchError is returned by Client.FetchReadme. Its message is the text shown
// to the user.
type FetchError struct {
	Kind Kind
	URL  string
	Ref  models.RepoRef
	Err  error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case KindInvalidURL:
		return models.ErrorTag + ": Please provide a valid GitHub URL."
	case KindMalformedReference:
		return fmt.Sprintf("%s: Could not determine owner and repository from '%s'.", models.ErrorTag, e.URL)
	case KindNotFound:
		// Only the first two branches are named even though more are tried.
		return models.ErrorTag + ": Could not find README.md in 'main' or 'master' branch."
	default:
		return fmt.Sprintf("%s fetching content: %v", models.ErrorTag, e.Err)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }
