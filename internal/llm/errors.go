// Package llm - error taxonomy and provider error classification.
package llm

import (
	"fmt"
	"strings"
)

// ConfigurationError indicates a model selection that cannot be turned into
// a working adapter: incomplete custom-endpoint config, unsupported kind.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// ProviderError indicates a model call that failed after construction:
// credential rejection, malformed response, provider timeout.
type ProviderError struct {
	Provider string // Provider display name
	Status   int    // HTTP status if known, 0 otherwise
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Provider, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsAuthMessage checks if a message indicates credential rejection.
func IsAuthMessage(msg string) bool {
	if msg == "" {
		return false
	}
	lower := strings.ToLower(msg)

	if strings.Contains(lower, "401") || strings.Contains(lower, "403") {
		return true
	}
	return strings.Contains(lower, "invalid api key") ||
		strings.Contains(lower, "invalid_api_key") ||
		strings.Contains(lower, "incorrect api key") ||
		strings.Contains(lower, "unauthorized") ||
		strings.Contains(lower, "forbidden") ||
		strings.Contains(lower, "authentication") ||
		strings.Contains(lower, "invalid credentials")
}

// IsTimeoutMessage checks if a message indicates a timeout or cancellation.
func IsTimeoutMessage(msg string) bool {
	if msg == "" {
		return false
	}
	lower := strings.ToLower(msg)

	if strings.Contains(lower, "408") || strings.Contains(lower, "504") {
		return true
	}
	return strings.Contains(lower, "timeout") ||
		strings.Contains(lower, "timed out") ||
		strings.Contains(lower, "deadline exceeded") ||
		strings.Contains(lower, "connection reset")
}

// IsConnectionMessage checks if a message indicates the service was unreachable.
func IsConnectionMessage(msg string) bool {
	if msg == "" {
		return false
	}
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "connection refused") ||
		strings.Contains(lower, "no such host") ||
		strings.Contains(lower, "dial tcp") ||
		strings.Contains(lower, "eof")
}

// SuggestionFor returns a remediation hint for a provider error message,
// or "" when no specific remedy applies.
func SuggestionFor(kind ProviderKind, msg string) string {
	switch {
	case IsAuthMessage(msg):
		return "Check that your API key is correct and has not expired."
	case IsConnectionMessage(msg):
		if kind == KindOllama {
			return "Start the local Ollama service with 'ollama serve'."
		}
		return "Check the endpoint URL and your network connection."
	case IsTimeoutMessage(msg):
		return "The provider did not respond in time. Try again in a moment."
	}
	return ""
}
