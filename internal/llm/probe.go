// Package llm - provider availability probing
package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	. "github.com/seqchat/seqchat/internal/logging"
)

// Prober performs provider-specific liveness and credential checks before
// a model is committed to. Probes are bounded by a short timeout so a hung
// provider cannot block the caller.
type Prober struct {
	registry *Registry
	timeout  time.Duration
	client   *http.Client
}

// NewProber creates a prober bound to the model catalog. timeout should be
// single-digit seconds.
func NewProber(registry *Registry, timeout time.Duration) *Prober {
	return &Prober{
		registry: registry,
		timeout:  timeout,
		client:   &http.Client{Timeout: timeout},
	}
}

// Probe checks whether the selected model is usable right now.
//
// A required-but-absent credential yields Unconfigured with no network
// call. Everything else issues a minimal provider-native request: a model
// listing for Ollama, a 1-token completion for OpenAI-wire endpoints, a
// 1-token message for Anthropic.
func (p *Prober) Probe(ctx context.Context, sel Selection) AvailabilityResult {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if sel.Kind == KindCustom || (sel.Custom != nil && sel.ModelID == "custom") {
		return p.probeCustom(ctx, sel.Custom)
	}

	d := p.registry.Resolve(sel.ModelID)

	if d.RequiresKey && sel.APIKey == "" {
		return AvailabilityResult{
			Status:     StatusUnconfigured,
			Message:    d.DisplayName + " requires an API key",
			Suggestion: "Add your API key in the model settings.",
		}
	}

	switch d.Kind {
	case KindOllama:
		return p.probeOllama(ctx, d)
	case KindAnthropic:
		return p.probeAnthropic(ctx, d, sel.APIKey)
	default:
		if d.OpenAIWire {
			return p.probeOpenAIWire(ctx, d.DisplayName, d.BaseURL, sel.APIKey, d.Model)
		}
		return AvailabilityResult{
			Status:  StatusUnavailable,
			Message: "unsupported provider: " + string(d.Kind),
		}
	}
}

// probeOllama checks that the local server is running and has the model pulled.
func (p *Prober) probeOllama(ctx context.Context, d ModelDescriptor) AvailabilityResult {
	names, err := listOllamaModels(ctx, d.BaseURL, p.client)
	if err != nil {
		L_debug("llm: ollama probe failed", "url", d.BaseURL, "error", err)
		return AvailabilityResult{
			Status:     StatusUnavailable,
			Message:    fmt.Sprintf("Ollama is not reachable at %s", d.BaseURL),
			Suggestion: "Start the local Ollama service with 'ollama serve'.",
		}
	}

	if !hasOllamaModel(names, d.Model) {
		return AvailabilityResult{
			Status:     StatusUnavailable,
			Message:    fmt.Sprintf("model %q is not available on the Ollama server", d.Model),
			Suggestion: fmt.Sprintf("Pull it with 'ollama pull %s'.", d.Model),
		}
	}

	return AvailabilityResult{Status: StatusAvailable, Message: d.DisplayName + " is ready"}
}

// probeOpenAIWire issues a 1-token completion against an OpenAI-compatible
// endpoint and maps the outcome onto the availability statuses.
func (p *Prober) probeOpenAIWire(ctx context.Context, display, baseURL, apiKey, model string) AvailabilityResult {
	inv := newOpenAIWireInvoker(display, baseURL, apiKey, model, p.timeout)
	return resultFromProbeError(display, inv.probeCompletion(ctx))
}

// probeAnthropic issues a 1-token message against the Anthropic API.
func (p *Prober) probeAnthropic(ctx context.Context, d ModelDescriptor, apiKey string) AvailabilityResult {
	inv := newAnthropicInvoker(apiKey, d.Model, p.timeout)
	return resultFromProbeError(d.DisplayName, inv.probeMessage(ctx))
}

// probeCustom validates the inline config, then probes it like any other
// OpenAI-wire endpoint. Missing fields are a configuration problem, not an
// availability one, so they report Unconfigured.
func (p *Prober) probeCustom(ctx context.Context, c *CustomConfig) AvailabilityResult {
	if c == nil || c.Name == "" || c.BaseURL == "" || c.APIKey == "" || c.Model == "" {
		return AvailabilityResult{
			Status:     StatusUnconfigured,
			Message:    "custom endpoint configuration is incomplete",
			Suggestion: "Provide a name, base URL, API key and model name.",
		}
	}
	return p.probeOpenAIWire(ctx, c.Name, c.BaseURL, c.APIKey, c.Model)
}

// resultFromProbeError maps a probe call outcome onto an AvailabilityResult.
// 401/403 mean a reachable-but-rejecting service: Unavailable, never
// Unconfigured.
func resultFromProbeError(display string, err error) AvailabilityResult {
	if err == nil {
		return AvailabilityResult{Status: StatusAvailable, Message: display + " is ready"}
	}

	var status int
	if pe, ok := err.(*ProviderError); ok {
		status = pe.Status
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return AvailabilityResult{
			Status:     StatusUnavailable,
			Message:    display + " rejected the API key",
			Suggestion: "Check that your API key is correct and has not expired.",
		}
	case status > 0:
		return AvailabilityResult{
			Status:  StatusUnavailable,
			Message: fmt.Sprintf("%s returned status %d", display, status),
		}
	default:
		return AvailabilityResult{
			Status:     StatusUnavailable,
			Message:    fmt.Sprintf("%s is not reachable: %v", display, err),
			Suggestion: SuggestionFor(KindOpenAI, err.Error()),
		}
	}
}
