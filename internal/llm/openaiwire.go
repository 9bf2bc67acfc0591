package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	. "github.com/seqchat/seqchat/internal/logging"
	"github.com/seqchat/seqchat/internal/types"
)

// openAIWireInvoker drives any endpoint speaking the OpenAI chat-completions
// wire format: OpenAI itself, DeepSeek, and user-supplied custom endpoints.
type openAIWireInvoker struct {
	client  *openai.Client
	model   string
	display string
}

// newOpenAIWireInvoker builds a client for an OpenAI-compatible endpoint.
// baseURL may be empty for the OpenAI default.
func newOpenAIWireInvoker(display, baseURL, apiKey, model string, timeout time.Duration) *openAIWireInvoker {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		// OpenAI-compatible APIs expect the /v1 prefix on the base URL
		if !strings.HasSuffix(baseURL, "/v1") && !strings.HasSuffix(baseURL, "/v1/") {
			baseURL = strings.TrimSuffix(baseURL, "/") + "/v1"
		}
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}

	L_debug("llm: openai-wire client created", "display", display, "baseURL", baseURL, "model", model)

	return &openAIWireInvoker{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		display: display,
	}
}

// DisplayName returns the resolved model identity.
func (v *openAIWireInvoker) DisplayName() string {
	return v.display
}

// Generate sends the conversation history and returns the complete reply.
func (v *openAIWireInvoker) Generate(ctx context.Context, history []types.Message) (string, error) {
	start := time.Now()

	msgs := make([]openai.ChatCompletionMessage, 0, len(history))
	for _, m := range history {
		role := openai.ChatMessageRoleUser
		if m.Role == types.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	resp, err := v.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    v.model,
		Messages: msgs,
	})
	if err != nil {
		L_error("llm: openai-wire request failed", "display", v.display, "error", err)
		return "", wrapOpenAIError(v.display, err)
	}

	if len(resp.Choices) == 0 {
		return "", &ProviderError{Provider: v.display, Err: errors.New("empty response: no choices returned")}
	}

	reply := resp.Choices[0].Message.Content
	L_elapsed(start, "llm: request completed", "display", v.display, "model", v.model, "chars", len(reply))
	return reply, nil
}

// probeCompletion issues a minimal 1-token completion to verify the
// endpoint accepts the credential. Used by the availability prober.
func (v *openAIWireInvoker) probeCompletion(ctx context.Context) error {
	_, err := v.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     v.model,
		MaxTokens: 1,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: "hi"},
		},
	})
	if err != nil {
		return wrapOpenAIError(v.display, err)
	}
	return nil
}

// wrapOpenAIError normalizes go-openai errors into ProviderError,
// preserving the HTTP status when the library exposes one.
func wrapOpenAIError(display string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &ProviderError{Provider: display, Status: apiErr.HTTPStatusCode, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &ProviderError{Provider: display, Status: reqErr.HTTPStatusCode, Err: err}
	}
	return &ProviderError{Provider: display, Err: err}
}
