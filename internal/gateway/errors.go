package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/seqchat/seqchat/internal/analysis"
	"github.com/seqchat/seqchat/internal/llm"
	. "github.com/seqchat/seqchat/internal/logging"
)

// errorItem classifies err into the gateway taxonomy and renders it as an
// error-kind response with a plain-language message and, where one can be
// derived, a remediation suggestion. Raw error detail is only included in
// dev mode.
func (r *Router) errorItem(err error) ResponseItem {
	item := ResponseItem{Type: ResponseError}

	var cfgErr *llm.ConfigurationError
	var provErr *llm.ProviderError
	var svcErr *analysis.ServiceError

	switch {
	case errors.As(err, &cfgErr):
		item.Content = "The selected model is not configured correctly: " + cfgErr.Reason + "."
		item.Suggestion = "Review the model settings and try again."
		L_warn("gateway: configuration error", "error", err)

	case errors.As(err, &provErr):
		item.Content = "The AI service could not complete the request."
		item.Suggestion = llm.SuggestionFor(llm.KindOpenAI, provErr.Error())
		if llm.IsAuthMessage(provErr.Error()) {
			item.Content = "The AI service rejected the API key."
		} else if llm.IsTimeoutMessage(provErr.Error()) {
			item.Content = "The AI service did not respond in time."
		} else if llm.IsConnectionMessage(provErr.Error()) {
			item.Content = "The AI service is not reachable."
		}
		L_warn("gateway: provider error", "provider", provErr.Provider, "status", provErr.Status, "error", err)

	case errors.As(err, &svcErr):
		item.Content = fmt.Sprintf("The analysis service did not respond after %d attempts.", svcErr.Attempts)
		item.Suggestion = "Check that the analysis service is running, then retry."
		L_warn("gateway: analysis service error", "attempts", svcErr.Attempts, "error", err)

	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		item.Content = "The request was cancelled or timed out."
		L_warn("gateway: request cancelled", "error", err)

	default:
		item.Content = "An unexpected error occurred while processing the request."
		L_error("gateway: internal error", "error", err)
	}

	if r.devMode {
		item.Content = fmt.Sprintf("%s (%v)", item.Content, err)
	}
	return item
}
