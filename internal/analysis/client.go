// Package analysis provides the client for the external single-cell
// analysis service. The service is an opaque HTTP collaborator: seqchat
// forwards a natural-language query plus a file reference and normalizes
// the response and error shapes.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	. "github.com/seqchat/seqchat/internal/logging"
)

// RetryPolicy controls how transport-level failures are retried.
// The delay is fixed between attempts; swap the policy to change strategy.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultRetryPolicy matches the service's historical tuning.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Delay: 2 * time.Second}
}

// Result is the normalized analysis-service response.
// Data is opaque to the gateway; the presentation layer renders it.
type Result struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

// ServiceError reports a request that failed after exhausting retries.
type ServiceError struct {
	Attempts int
	LastErr  error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("analysis service unreachable after %d attempts: %v", e.Attempts, e.LastErr)
}

func (e *ServiceError) Unwrap() error {
	return e.LastErr
}

// Client calls the analysis service with bounded retries.
type Client struct {
	url    string
	policy RetryPolicy
	client *http.Client
}

// NewClient creates a client for the service at url. timeout bounds each
// individual attempt, not the whole retry sequence.
func NewClient(url string, timeout time.Duration, policy RetryPolicy) *Client {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &Client{
		url:    url,
		policy: policy,
		client: &http.Client{Timeout: timeout},
	}
}

// analyzeRequest is the service's wire request shape.
type analyzeRequest struct {
	Query     string `json:"query"`
	FilePath  string `json:"file_path"`
	SessionID string `json:"session_id"`
}

// Analyze forwards the query and file reference to the analysis service.
//
// Transport failures are retried up to the policy's maximum with a fixed
// delay. A well-formed response with success:false is a definitive answer
// from the service and is returned without retrying. Context cancellation
// stops the retry loop immediately.
func (c *Client) Analyze(ctx context.Context, query, filePath, sessionID string) (*Result, error) {
	body, err := json.Marshal(analyzeRequest{Query: query, FilePath: filePath, SessionID: sessionID})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			L_warn("analysis: retrying", "attempt", attempt, "max", c.policy.MaxAttempts, "lastError", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.policy.Delay):
			}
		}

		result, err := c.post(ctx, body)
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			// No retry after cancellation
			return nil, ctx.Err()
		}
		lastErr = err
	}

	L_error("analysis: giving up", "attempts", c.policy.MaxAttempts, "error", lastErr)
	return nil, &ServiceError{Attempts: c.policy.MaxAttempts, LastErr: lastErr}
}

// post performs one attempt against the service.
func (c *Client) post(ctx context.Context, body []byte) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var result Result
	if jsonErr := json.Unmarshal(raw, &result); jsonErr != nil {
		// A non-2xx without a parseable body is a transport-level failure
		// worth retrying; a 2xx with garbage is a broken service.
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("analysis service returned status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("decode response: %w", jsonErr)
	}

	L_elapsed(start, "analysis: response received", "status", resp.StatusCode, "success", result.Success)

	// Well-formed body: the service answered, even if with a failure.
	// That is definitive and must not be retried.
	return &result, nil
}
