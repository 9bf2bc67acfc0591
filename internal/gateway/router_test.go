package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/seqchat/seqchat/internal/analysis"
	"github.com/seqchat/seqchat/internal/llm"
	"github.com/seqchat/seqchat/internal/session"
	"github.com/seqchat/seqchat/internal/types"
)

// fakeInvoker returns a canned reply and records the history it saw.
type fakeInvoker struct {
	reply   string
	err     error
	history []types.Message
}

func (f *fakeInvoker) Generate(_ context.Context, history []types.Message) (string, error) {
	f.history = history
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeInvoker) DisplayName() string { return "Fake Model" }

// fakeBuilder hands out a fixed invoker or a fixed build error.
type fakeBuilder struct {
	inv *fakeInvoker
	err error
}

func (f *fakeBuilder) Build(llm.Selection) (llm.Invoker, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.inv, nil
}

// fakeAnalyzer records calls and returns a canned result.
type fakeAnalyzer struct {
	result   *analysis.Result
	err      error
	called   int
	gotQuery string
	gotPath  string
}

func (f *fakeAnalyzer) Analyze(_ context.Context, query, filePath, _ string) (*analysis.Result, error) {
	f.called++
	f.gotQuery = query
	f.gotPath = filePath
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func newTestRouter(b Builder, a Analyzer) *Router {
	return NewRouter(session.NewMemoryStore(), b, a, 5, false)
}

func itemsOfType(env *Envelope, kind string) []ResponseItem {
	var out []ResponseItem
	for _, it := range env.Responses {
		if it.Type == kind {
			out = append(out, it)
		}
	}
	return out
}

func TestHandleChatHappyPath(t *testing.T) {
	inv := &fakeInvoker{reply: "hello there"}
	an := &fakeAnalyzer{}
	r := newTestRouter(&fakeBuilder{inv: inv}, an)

	env := r.Handle(context.Background(), &ChatRequest{Message: "hi", SessionID: "s1"})

	if !env.Success {
		t.Fatalf("Success = false, responses: %+v", env.Responses)
	}
	if env.WorkflowUsed {
		t.Error("WorkflowUsed = true for a plain chat request")
	}
	if env.AIService != "Fake Model" {
		t.Errorf("AIService = %q, want the invoker display name", env.AIService)
	}
	chat := itemsOfType(env, ResponseChat)
	if len(chat) != 1 || chat[0].Content != "hello there" {
		t.Errorf("chat responses = %+v", chat)
	}
	if an.called != 0 {
		t.Error("the analyzer must not be called in chat mode")
	}
	if env.ProcessingTime < 0 {
		t.Errorf("ProcessingTime = %f", env.ProcessingTime)
	}
}

func TestHandleGeneratesSessionID(t *testing.T) {
	r := newTestRouter(&fakeBuilder{inv: &fakeInvoker{reply: "ok"}}, &fakeAnalyzer{})

	env := r.Handle(context.Background(), &ChatRequest{Message: "hi"})
	if env.SessionID == "" {
		t.Error("empty request session id must be replaced with a generated one")
	}
}

func TestHandleEmptyRequest(t *testing.T) {
	r := newTestRouter(&fakeBuilder{inv: &fakeInvoker{reply: "ok"}}, &fakeAnalyzer{})

	env := r.Handle(context.Background(), &ChatRequest{Message: "   "})
	if env.Success {
		t.Error("Success = true for an empty request")
	}
	errs := itemsOfType(env, ResponseError)
	if len(errs) != 1 || errs[0].Suggestion == "" {
		t.Errorf("error responses = %+v, want one with a suggestion", errs)
	}
}

// Mode selection follows the workflow flag alone. A data file on a chat
// request must not reroute it, and a workflow request with no analyzable
// file must not degrade into chat.
func TestModeFollowsWorkflowFlagOnly(t *testing.T) {
	h5ad := types.FileRef{Name: "cells.h5ad", Path: "/up/cells.h5ad", Kind: "h5ad", Size: 10}

	t.Run("chat with file stays chat", func(t *testing.T) {
		inv := &fakeInvoker{reply: "ok"}
		an := &fakeAnalyzer{}
		r := newTestRouter(&fakeBuilder{inv: inv}, an)

		env := r.Handle(context.Background(), &ChatRequest{
			Message: "what is in this file?", SessionID: "s1",
			Files: []types.FileRef{h5ad},
		})

		if an.called != 0 {
			t.Error("analyzer called despite useWorkflow=false")
		}
		if len(itemsOfType(env, ResponseChat)) != 1 {
			t.Errorf("responses = %+v, want a chat response", env.Responses)
		}
	})

	t.Run("workflow without file stays workflow", func(t *testing.T) {
		inv := &fakeInvoker{reply: "ok"}
		an := &fakeAnalyzer{}
		r := newTestRouter(&fakeBuilder{inv: inv}, an)

		env := r.Handle(context.Background(), &ChatRequest{
			Message: "cluster please", SessionID: "s2", UseWorkflow: true,
		})

		if len(itemsOfType(env, ResponseChat)) != 0 {
			t.Error("workflow request degraded into a chat response")
		}
		errs := itemsOfType(env, ResponseError)
		if len(errs) != 1 || !strings.Contains(errs[0].Suggestion, "h5ad") {
			t.Errorf("error responses = %+v, want a file-upload suggestion", errs)
		}
	})
}

func TestWorkflowPrefersH5ad(t *testing.T) {
	an := &fakeAnalyzer{result: &analysis.Result{
		Success: true,
		Data:    json.RawMessage(`{"points":[]}`),
		Message: "done",
	}}
	r := newTestRouter(&fakeBuilder{inv: &fakeInvoker{}}, an)

	env := r.Handle(context.Background(), &ChatRequest{
		Message: "cluster", SessionID: "s1", UseWorkflow: true,
		Files: []types.FileRef{
			{Name: "meta.csv", Path: "/up/meta.csv", Kind: "table", Size: 5},
			{Name: "cells.h5ad", Path: "/up/cells.h5ad", Kind: "h5ad", Size: 5},
		},
	})

	if !env.Success {
		t.Fatalf("Success = false, responses: %+v", env.Responses)
	}
	if an.gotPath != "/up/cells.h5ad" {
		t.Errorf("analyzer got %q, want the h5ad file preferred over the table", an.gotPath)
	}
	vis := itemsOfType(env, ResponseVisualization)
	if len(vis) != 1 || len(vis[0].Data) == 0 {
		t.Errorf("visualization responses = %+v", vis)
	}
	if !env.WorkflowUsed {
		t.Error("WorkflowUsed = false on a workflow request")
	}
}

func TestWorkflowUsesSessionFilesFromEarlierTurns(t *testing.T) {
	an := &fakeAnalyzer{result: &analysis.Result{Success: true, Message: "done"}}
	r := newTestRouter(&fakeBuilder{inv: &fakeInvoker{reply: "noted"}}, an)

	// First turn uploads the file in chat mode.
	r.Handle(context.Background(), &ChatRequest{
		Message: "here is my data", SessionID: "s1",
		Files: []types.FileRef{{Name: "cells.h5ad", Path: "/up/cells.h5ad", Kind: "h5ad", Size: 5}},
	})

	// Second turn runs the workflow with no new upload.
	env := r.Handle(context.Background(), &ChatRequest{
		Message: "now cluster it", SessionID: "s1", UseWorkflow: true,
	})

	if !env.Success {
		t.Fatalf("Success = false, responses: %+v", env.Responses)
	}
	if an.gotPath != "/up/cells.h5ad" {
		t.Errorf("analyzer got %q, want the file from the earlier turn", an.gotPath)
	}
}

func TestWorkflowDefinitiveFailure(t *testing.T) {
	an := &fakeAnalyzer{result: &analysis.Result{Success: false, Message: "matrix is malformed"}}
	r := newTestRouter(&fakeBuilder{inv: &fakeInvoker{}}, an)

	env := r.Handle(context.Background(), &ChatRequest{
		Message: "cluster", SessionID: "s1", UseWorkflow: true,
		Files: []types.FileRef{{Name: "cells.h5ad", Path: "/up/c.h5ad", Kind: "h5ad", Size: 1}},
	})

	if env.Success {
		t.Error("Success = true for a failed analysis")
	}
	errs := itemsOfType(env, ResponseError)
	if len(errs) != 1 || !strings.Contains(errs[0].Content, "matrix is malformed") {
		t.Errorf("error responses = %+v, want the service's message surfaced", errs)
	}
}

func TestErrorConversionBoundary(t *testing.T) {
	tests := []struct {
		name        string
		buildErr    error
		genErr      error
		wantContent string
	}{
		{
			"configuration error",
			&llm.ConfigurationError{Reason: "custom endpoint requires name, baseUrl, apiKey and model"},
			nil,
			"not configured correctly",
		},
		{
			"auth rejection",
			nil,
			&llm.ProviderError{Provider: "DeepSeek Chat", Status: 401, Err: errors.New("401 unauthorized")},
			"rejected the API key",
		},
		{
			"provider unreachable",
			nil,
			&llm.ProviderError{Provider: "Ollama (gemma3:4b)", Err: errors.New("dial tcp 127.0.0.1:11434: connection refused")},
			"not reachable",
		},
		{
			"unexpected error",
			nil,
			errors.New("something odd"),
			"unexpected error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &fakeBuilder{inv: &fakeInvoker{err: tt.genErr}, err: tt.buildErr}
			r := newTestRouter(b, &fakeAnalyzer{})

			env := r.Handle(context.Background(), &ChatRequest{Message: "hi", SessionID: "s1"})

			if env.Success {
				t.Fatal("Success = true for a failed request")
			}
			errs := itemsOfType(env, ResponseError)
			if len(errs) != 1 {
				t.Fatalf("responses = %+v, want exactly one error item", env.Responses)
			}
			if !strings.Contains(errs[0].Content, tt.wantContent) {
				t.Errorf("error content = %q, want it to mention %q", errs[0].Content, tt.wantContent)
			}
		})
	}
}

func TestAnalysisServiceErrorSurfacesAttempts(t *testing.T) {
	an := &fakeAnalyzer{err: &analysis.ServiceError{Attempts: 3, LastErr: errors.New("connection refused")}}
	r := newTestRouter(&fakeBuilder{inv: &fakeInvoker{}}, an)

	env := r.Handle(context.Background(), &ChatRequest{
		Message: "cluster", SessionID: "s1", UseWorkflow: true,
		Files: []types.FileRef{{Name: "c.h5ad", Path: "/up/c.h5ad", Kind: "h5ad", Size: 1}},
	})

	errs := itemsOfType(env, ResponseError)
	if len(errs) != 1 || !strings.Contains(errs[0].Content, "3 attempts") {
		t.Errorf("error responses = %+v, want the attempt count surfaced", errs)
	}
}

func TestContextWindowLimitsHistory(t *testing.T) {
	inv := &fakeInvoker{reply: "ok"}
	r := newTestRouter(&fakeBuilder{inv: inv}, &fakeAnalyzer{})

	for i := 0; i < 6; i++ {
		r.Handle(context.Background(), &ChatRequest{Message: "turn", SessionID: "s1"})
	}

	if len(inv.history) != 5 {
		t.Errorf("model saw %d messages, want the 5-message window", len(inv.history))
	}
	// The current user message is always the last entry.
	if last := inv.history[len(inv.history)-1]; last.Role != types.RoleUser {
		t.Errorf("last history entry role = %q, want user", last.Role)
	}
}

func TestAttachmentAugmentationInChatMode(t *testing.T) {
	inv := &fakeInvoker{reply: "ok"}
	r := newTestRouter(&fakeBuilder{inv: inv}, &fakeAnalyzer{})

	r.Handle(context.Background(), &ChatRequest{
		Message: "what is this?", SessionID: "s1",
		Files: []types.FileRef{{Name: "cells.h5ad", Kind: "h5ad", Size: 2048}},
	})

	last := inv.history[len(inv.history)-1].Content
	if !strings.Contains(last, "cells.h5ad") || !strings.Contains(last, "Attached files") {
		t.Errorf("augmented message = %q, want the attachment described", last)
	}
	if !strings.HasPrefix(last, "what is this?") {
		t.Errorf("augmented message = %q, want the original text preserved", last)
	}
}

func TestFileInfoEchoedPerUpload(t *testing.T) {
	r := newTestRouter(&fakeBuilder{inv: &fakeInvoker{reply: "ok"}}, &fakeAnalyzer{})

	env := r.Handle(context.Background(), &ChatRequest{
		Message: "two files", SessionID: "s1",
		Files: []types.FileRef{
			{Name: "a.h5ad", Kind: "h5ad", Size: 1},
			{Name: "b.csv", Kind: "table", Size: 1},
		},
	})

	infos := itemsOfType(env, ResponseFileInfo)
	if len(infos) != 2 {
		t.Fatalf("file_info responses = %d, want 2", len(infos))
	}
	if infos[0].File == nil || infos[0].File.Name != "a.h5ad" {
		t.Errorf("first file_info = %+v", infos[0])
	}
}

// panicInvoker simulates a provider adapter blowing up mid-request.
type panicInvoker struct{}

func (panicInvoker) Generate(context.Context, []types.Message) (string, error) { panic("boom") }
func (panicInvoker) DisplayName() string                                       { return "Panicky" }

type panicBuilder struct{}

func (panicBuilder) Build(llm.Selection) (llm.Invoker, error) { return panicInvoker{}, nil }

func TestPanicBecomesErrorResponse(t *testing.T) {
	r := newTestRouter(panicBuilder{}, &fakeAnalyzer{})

	env := r.Handle(context.Background(), &ChatRequest{Message: "hi", SessionID: "s1"})

	if env.Success {
		t.Error("Success = true after a panic")
	}
	if len(itemsOfType(env, ResponseError)) == 0 {
		t.Error("a panic must surface as an error response item")
	}
	if env.ProcessingTime < 0 {
		t.Errorf("ProcessingTime = %f", env.ProcessingTime)
	}
}
