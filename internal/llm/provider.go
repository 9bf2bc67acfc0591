// Package llm provides the unified model catalog, availability probing,
// and provider adapters behind a single generate interface.
package llm

import (
	"context"

	"github.com/seqchat/seqchat/internal/types"
)

// ProviderKind is the closed set of supported provider wire formats.
type ProviderKind string

const (
	// KindOllama is a local inference server speaking the Ollama HTTP API.
	KindOllama ProviderKind = "ollama"
	// KindOpenAI is a cloud API speaking the OpenAI chat-completions wire format.
	KindOpenAI ProviderKind = "openai"
	// KindCustom is a user-supplied OpenAI-compatible endpoint, configured
	// entirely from the request payload.
	KindCustom ProviderKind = "custom"
	// KindAnthropic is Anthropic's native messages API (not OpenAI-shaped).
	KindAnthropic ProviderKind = "anthropic"
)

// ModelDescriptor is a static catalog entry for a known model.
// Descriptors are built once at startup and never mutated.
type ModelDescriptor struct {
	ID          string       `json:"id"`
	Kind        ProviderKind `json:"provider"`
	Model       string       `json:"model"`       // Provider-specific model name
	DisplayName string       `json:"name"`        // Human-readable identity
	RequiresKey bool         `json:"requiresKey"` // Credential needed before any call
	BaseURL     string       `json:"-"`           // Endpoint, empty if resolved elsewhere
	OpenAIWire  bool         `json:"-"`           // Speaks the OpenAI chat-completions format
	Disabled    bool         `json:"-"`           // Hidden from the selectable catalog
	Default     bool         `json:"-"`           // Fallback for unknown lookups
}

// CustomConfig is the inline endpoint configuration carried by a request
// when the user selects a custom OpenAI-compatible endpoint. All four
// fields must be populated.
type CustomConfig struct {
	Name    string `json:"name"`
	BaseURL string `json:"baseUrl"`
	APIKey  string `json:"apiKey"`
	Model   string `json:"model"`
}

// Selection is the per-request model choice. The credential is request-scoped:
// it lives only for the duration of one generate call and is never cached.
type Selection struct {
	ModelID string        `json:"modelId"`
	Kind    ProviderKind  `json:"providerKind,omitempty"`
	APIKey  string        `json:"apiKey,omitempty"`
	Custom  *CustomConfig `json:"customConfig,omitempty"`
}

// Invoker is the single normalized operation every provider exposes.
// The router never sees provider-specific wire formats.
type Invoker interface {
	// Generate produces a complete reply for the conversation history.
	// The last history entry is the current user message.
	Generate(ctx context.Context, history []types.Message) (string, error)

	// DisplayName identifies the resolved model for the response envelope.
	DisplayName() string
}

// AvailabilityStatus is the normalized outcome of a provider probe.
type AvailabilityStatus string

const (
	StatusAvailable    AvailabilityStatus = "available"
	StatusUnavailable  AvailabilityStatus = "unavailable"
	StatusChecking     AvailabilityStatus = "checking"
	StatusUnconfigured AvailabilityStatus = "unconfigured"
)

// AvailabilityResult reports whether a model can be used right now.
// Unconfigured means a required credential is absent; Unavailable means the
// service was reached (or reached for) and rejected or failed. The client UI
// offers different remediation for each, so they must not be conflated.
type AvailabilityResult struct {
	Status     AvailabilityStatus `json:"status"`
	Message    string             `json:"message"`
	Suggestion string             `json:"suggestion,omitempty"`
}
