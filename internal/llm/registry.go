package llm

import (
	. "github.com/seqchat/seqchat/internal/logging"
)

// Registry is the static model catalog. It is built once at startup and
// read-only afterwards, so lookups need no locking.
type Registry struct {
	byID  map[string]ModelDescriptor
	order []string
	def   ModelDescriptor
}

// RegistryConfig carries the endpoint settings descriptors depend on.
type RegistryConfig struct {
	OllamaURL          string
	OllamaDefaultModel string
	DeepseekBaseURL    string
}

// NewRegistry builds the catalog from the built-in descriptor set.
// Exactly one descriptor is the default; unknown lookups resolve to it.
func NewRegistry(cfg RegistryConfig) *Registry {
	descriptors := []ModelDescriptor{
		{
			ID:          "ollama-local",
			Kind:        KindOllama,
			Model:       cfg.OllamaDefaultModel,
			DisplayName: "Ollama (" + cfg.OllamaDefaultModel + ")",
			BaseURL:     cfg.OllamaURL,
			Default:     true,
		},
		{
			ID:          "deepseek-chat",
			Kind:        KindOpenAI,
			Model:       "deepseek-chat",
			DisplayName: "DeepSeek Chat",
			BaseURL:     cfg.DeepseekBaseURL,
			RequiresKey: true,
			OpenAIWire:  true,
		},
		{
			ID:          "gpt-4o-mini",
			Kind:        KindOpenAI,
			Model:       "gpt-4o-mini",
			DisplayName: "OpenAI GPT-4o mini",
			RequiresKey: true,
			OpenAIWire:  true,
		},
		{
			ID:          "claude-sonnet",
			Kind:        KindAnthropic,
			Model:       "claude-sonnet-4-20250514",
			DisplayName: "Claude Sonnet",
			RequiresKey: true,
		},
		{
			ID:          "custom",
			Kind:        KindCustom,
			DisplayName: "Custom endpoint",
			RequiresKey: true,
		},
		{
			// Retained for lookup-by-id of old client configs; not selectable.
			ID:          "deepseek-coder",
			Kind:        KindOpenAI,
			Model:       "deepseek-coder",
			DisplayName: "DeepSeek Coder",
			BaseURL:     cfg.DeepseekBaseURL,
			RequiresKey: true,
			OpenAIWire:  true,
			Disabled:    true,
		},
	}

	r := &Registry{byID: make(map[string]ModelDescriptor, len(descriptors))}
	for _, d := range descriptors {
		r.byID[d.ID] = d
		r.order = append(r.order, d.ID)
		if d.Default {
			r.def = d
		}
	}

	L_debug("llm: registry built", "models", len(descriptors), "default", r.def.ID)
	return r
}

// Selectable returns the catalog entries offered to clients,
// excluding disabled descriptors, in declaration order.
func (r *Registry) Selectable() []ModelDescriptor {
	out := make([]ModelDescriptor, 0, len(r.order))
	for _, id := range r.order {
		d := r.byID[id]
		if d.Disabled {
			continue
		}
		out = append(out, d)
	}
	return out
}

// Resolve returns the descriptor for id, falling back to the default
// descriptor for unknown ids. It never fails: a stale client selection
// degrades to the default model instead of breaking the request.
func (r *Registry) Resolve(id string) ModelDescriptor {
	if d, ok := r.byID[id]; ok {
		return d
	}
	if id != "" {
		L_debug("llm: unknown model id, using default", "id", id, "default", r.def.ID)
	}
	return r.def
}

// Default returns the default descriptor.
func (r *Registry) Default() ModelDescriptor {
	return r.def
}
