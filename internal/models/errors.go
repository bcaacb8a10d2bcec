package models

import "strings"

// ErrorTag prefixes every user-facing error message.
const ErrorTag = "Error<repoAnalyzerAgent>"

// IsErrorText reports whether s is a rendered error rather than a result.
func IsErrorText(s string) bool {
	return strings.HasPrefix(s, ErrorTag)
}
