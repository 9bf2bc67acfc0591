package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	. "github.com/seqchat/seqchat/internal/logging"
	"github.com/seqchat/seqchat/internal/types"
)

// ollamaInvoker drives a local Ollama server through its native chat API.
// No credential is involved.
type ollamaInvoker struct {
	url    string
	model  string
	client *http.Client
}

// ollamaChatMessage is a message in Ollama chat format
type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ollamaChatRequest is the request body for /api/chat
type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
}

// ollamaChatResponse is the response from /api/chat (non-streaming)
type ollamaChatResponse struct {
	Message ollamaChatMessage `json:"message"`
	Done    bool              `json:"done"`
}

// ollamaTagsResponse is the response from /api/tags
type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// newOllamaInvoker builds a client for the local inference server.
func newOllamaInvoker(url, model string, timeout time.Duration) *ollamaInvoker {
	url = strings.TrimSuffix(url, "/")

	L_debug("llm: ollama client created", "url", url, "model", model, "timeout", timeout)

	return &ollamaInvoker{
		url:    url,
		model:  model,
		client: &http.Client{Timeout: timeout},
	}
}

// DisplayName returns the resolved model identity.
func (v *ollamaInvoker) DisplayName() string {
	return "Ollama (" + v.model + ")"
}

// Generate sends the conversation history and returns the complete reply.
func (v *ollamaInvoker) Generate(ctx context.Context, history []types.Message) (string, error) {
	start := time.Now()

	msgs := make([]ollamaChatMessage, 0, len(history))
	for _, m := range history {
		msgs = append(msgs, ollamaChatMessage{Role: string(m.Role), Content: m.Content})
	}

	reqBody := ollamaChatRequest{
		Model:    v.model,
		Messages: msgs,
		Stream:   false,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", &ProviderError{Provider: v.DisplayName(), Err: fmt.Errorf("marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url+"/api/chat", bytes.NewReader(jsonData))
	if err != nil {
		return "", &ProviderError{Provider: v.DisplayName(), Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		L_error("llm: ollama request failed", "url", v.url, "error", err)
		return "", &ProviderError{Provider: v.DisplayName(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		L_error("llm: ollama returned error", "status", resp.StatusCode, "body", string(body))
		return "", &ProviderError{
			Provider: v.DisplayName(),
			Status:   resp.StatusCode,
			Err:      fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(body)),
		}
	}

	var result ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", &ProviderError{Provider: v.DisplayName(), Err: fmt.Errorf("decode response: %w", err)}
	}

	L_elapsed(start, "llm: request completed", "display", v.DisplayName(), "chars", len(result.Message.Content))
	return result.Message.Content, nil
}

// listOllamaModels fetches the model names the server has pulled.
// Used by the availability prober.
func listOllamaModels(ctx context.Context, url string, client *http.Client) ([]string, error) {
	url = strings.TrimSuffix(url, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}

	var result ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode tags response: %w", err)
	}

	names := make([]string, 0, len(result.Models))
	for _, m := range result.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// hasOllamaModel reports whether the listing contains the wanted model.
// Tags match loosely: "gemma3:4b" matches both "gemma3:4b" and a bare "gemma3".
func hasOllamaModel(names []string, model string) bool {
	base := strings.SplitN(model, ":", 2)[0]
	for _, n := range names {
		if n == model || strings.SplitN(n, ":", 2)[0] == base {
			return true
		}
	}
	return false
}
