package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	. "github.com/seqchat/seqchat/internal/logging"
	"github.com/seqchat/seqchat/internal/types"
)

// anthropicInvoker drives Anthropic's native messages API. The wire format
// is not OpenAI-shaped: roles map onto user/assistant message params with
// content blocks, and the reply text lives in typed content blocks.
type anthropicInvoker struct {
	client *anthropic.Client
	model  string
}

const anthropicMaxTokens = 2048

// newAnthropicInvoker builds a client for the Anthropic API.
func newAnthropicInvoker(apiKey, model string, timeout time.Duration) *anthropicInvoker {
	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(&http.Client{Timeout: timeout}),
	)

	L_debug("llm: anthropic client created", "model", model)

	return &anthropicInvoker{client: &client, model: model}
}

// DisplayName returns the resolved model identity.
func (v *anthropicInvoker) DisplayName() string {
	return "Claude (" + v.model + ")"
}

// Generate sends the conversation history and returns the complete reply.
func (v *anthropicInvoker) Generate(ctx context.Context, history []types.Message) (string, error) {
	start := time.Now()

	msgs := make([]anthropic.MessageParam, 0, len(history))
	for _, m := range history {
		if m.Content == "" {
			continue
		}
		if m.Role == types.RoleAssistant {
			msgs = append(msgs, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		} else {
			msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	msg, err := v.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(v.model),
		MaxTokens: anthropicMaxTokens,
		Messages:  msgs,
	})
	if err != nil {
		L_error("llm: anthropic request failed", "model", v.model, "error", err)
		return "", wrapAnthropicError(v.DisplayName(), err)
	}

	var reply strings.Builder
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			reply.WriteString(tb.Text)
		}
	}
	if reply.Len() == 0 {
		return "", &ProviderError{Provider: v.DisplayName(), Err: errors.New("malformed response: no text content blocks")}
	}

	L_elapsed(start, "llm: request completed", "display", v.DisplayName(), "chars", reply.Len())
	return reply.String(), nil
}

// probeMessage issues a minimal 1-token message to verify the credential.
// Used by the availability prober.
func (v *anthropicInvoker) probeMessage(ctx context.Context) error {
	_, err := v.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(v.model),
		MaxTokens: 1,
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock("hi"))},
	})
	if err != nil {
		return wrapAnthropicError(v.DisplayName(), err)
	}
	return nil
}

// wrapAnthropicError normalizes SDK errors into ProviderError,
// preserving the HTTP status when one is available.
func wrapAnthropicError(display string, err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &ProviderError{Provider: display, Status: apiErr.StatusCode, Err: err}
	}
	return &ProviderError{Provider: display, Err: err}
}
