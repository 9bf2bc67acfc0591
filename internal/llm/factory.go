// Package llm - adapter factory
package llm

import (
	"time"
)

// Factory builds single-use invokers from per-request model selections.
// Credentials pass through to the constructed client and are not retained.
type Factory struct {
	registry *Registry
	timeout  time.Duration
}

// NewFactory creates a factory bound to the model catalog.
// timeout is the per-request generate budget applied to every client.
func NewFactory(registry *Registry, timeout time.Duration) *Factory {
	return &Factory{registry: registry, timeout: timeout}
}

// Build turns a model selection into an Invoker. The decision table,
// evaluated in order:
//
//  1. Custom endpoint: all four inline fields must be present, then a
//     generic OpenAI-wire client is pointed at the inline endpoint.
//  2. Catalog descriptors flagged OpenAI-wire get the same generic client
//     against the descriptor's endpoint with the request credential.
//  3. Remaining kinds dispatch to their native adapters.
//
// Unknown model ids resolve to the default descriptor (never an error);
// incomplete or unsupported selections fail with ConfigurationError
// before any network activity.
func (f *Factory) Build(sel Selection) (Invoker, error) {
	d := f.registry.Resolve(sel.ModelID)

	if sel.Kind == KindCustom || (sel.ModelID != "" && d.Kind == KindCustom) {
		c := sel.Custom
		if c == nil {
			return nil, &ConfigurationError{Reason: "custom endpoint selected but no configuration supplied"}
		}
		if c.Name == "" || c.BaseURL == "" || c.APIKey == "" || c.Model == "" {
			return nil, &ConfigurationError{Reason: "custom endpoint requires name, baseUrl, apiKey and model"}
		}
		return newOpenAIWireInvoker(c.Name, c.BaseURL, c.APIKey, c.Model, f.timeout), nil
	}

	if d.OpenAIWire {
		return newOpenAIWireInvoker(d.DisplayName, d.BaseURL, sel.APIKey, d.Model, f.timeout), nil
	}

	switch d.Kind {
	case KindOllama:
		return newOllamaInvoker(d.BaseURL, d.Model, f.timeout), nil
	case KindAnthropic:
		return newAnthropicInvoker(sel.APIKey, d.Model, f.timeout), nil
	default:
		return nil, &ConfigurationError{Reason: "unsupported provider: " + string(d.Kind)}
	}
}
