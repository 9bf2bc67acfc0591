// Package gateway implements the request router: the single entry point
// that assembles conversation context and dispatches a request either to a
// language model or to the external analysis service.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/seqchat/seqchat/internal/analysis"
	"github.com/seqchat/seqchat/internal/llm"
	. "github.com/seqchat/seqchat/internal/logging"
	"github.com/seqchat/seqchat/internal/session"
	"github.com/seqchat/seqchat/internal/types"
)

// Response kinds in the envelope.
const (
	ResponseChat          = "chat_response"
	ResponseFileInfo      = "file_info"
	ResponseVisualization = "deckgl_visualization"
	ResponseError         = "error"
)

// ChatRequest is a parsed inbound request.
type ChatRequest struct {
	Message     string
	SessionID   string // Generated when empty
	UseWorkflow bool
	Files       []types.FileRef
	Selection   llm.Selection
}

// ResponseItem is one structured entry in the response envelope.
type ResponseItem struct {
	Type       string          `json:"type"`
	Content    string          `json:"content,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	File       *types.FileRef  `json:"file,omitempty"`
	Suggestion string          `json:"suggestion,omitempty"`
}

// Envelope is the normalized response returned for every request,
// including failures.
type Envelope struct {
	Responses      []ResponseItem `json:"responses"`
	AIService      string         `json:"aiService"`
	SessionID      string         `json:"sessionId"`
	ProcessingTime float64        `json:"processingTime"` // Seconds
	WorkflowUsed   bool           `json:"workflowUsed"`
	Success        bool           `json:"success"`
}

// Analyzer is the downstream analysis dependency.
type Analyzer interface {
	Analyze(ctx context.Context, query, filePath, sessionID string) (*analysis.Result, error)
}

// Builder turns a model selection into an invoker.
type Builder interface {
	Build(sel llm.Selection) (llm.Invoker, error)
}

// Router dispatches chat requests. All taxonomy and unexpected errors are
// converted into error-kind responses at this boundary; Handle never
// propagates an error or panic to its caller.
type Router struct {
	sessions session.Store
	builder  Builder
	analysis Analyzer
	window   int  // Messages of history per model call
	devMode  bool // Include raw error detail in messages
}

// NewRouter wires the router's dependencies. window <= 0 selects the
// default context window of 5 messages.
func NewRouter(sessions session.Store, builder Builder, analyzer Analyzer, window int, devMode bool) *Router {
	if window <= 0 {
		window = 5
	}
	return &Router{
		sessions: sessions,
		builder:  builder,
		analysis: analyzer,
		window:   window,
		devMode:  devMode,
	}
}

// Handle processes one chat request end to end.
func (r *Router) Handle(ctx context.Context, req *ChatRequest) (env *Envelope) {
	start := time.Now()

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	env = &Envelope{SessionID: sessionID, WorkflowUsed: req.UseWorkflow}
	defer func() {
		if rec := recover(); rec != nil {
			L_error("gateway: panic recovered", "session", sessionID, "panic", rec)
			env.Responses = append(env.Responses, r.errorItem(fmt.Errorf("internal error: %v", rec)))
			env.Success = false
		}
		env.ProcessingTime = time.Since(start).Seconds()
	}()

	if strings.TrimSpace(req.Message) == "" && len(req.Files) == 0 {
		env.Responses = append(env.Responses, ResponseItem{
			Type:       ResponseError,
			Content:    "The request contains no message and no files.",
			Suggestion: "Type a message or attach a data file.",
		})
		return env
	}

	L_info("gateway: request", "session", sessionID, "workflow", req.UseWorkflow,
		"files", len(req.Files), "chars", len(req.Message))

	// Echo uploaded file metadata back to the client.
	for i := range req.Files {
		f := req.Files[i]
		env.Responses = append(env.Responses, ResponseItem{
			Type:    ResponseFileInfo,
			Content: fmt.Sprintf("Received %s (%s)", f.Name, f.HumanSize()),
			File:    &f,
		})
	}

	r.sessions.AppendMessage(sessionID, types.NewUserMessage(req.Message, req.Files))

	// The mode decision depends on the workflow flag alone. File presence
	// or message content never switches the path: routing stays
	// deterministic and testable.
	if req.UseWorkflow {
		r.handleWorkflow(ctx, env, req, sessionID)
	} else {
		r.handleChat(ctx, env, req, sessionID)
	}

	return env
}

// handleChat builds the model adapter and generates a reply from the
// recent conversation context.
func (r *Router) handleChat(ctx context.Context, env *Envelope, req *ChatRequest, sessionID string) {
	inv, err := r.builder.Build(req.Selection)
	if err != nil {
		env.Responses = append(env.Responses, r.errorItem(err))
		return
	}
	env.AIService = inv.DisplayName()

	history := r.sessions.RecentContext(sessionID, r.window)
	history = augmentCurrentMessage(history, req.Files)

	reply, err := inv.Generate(ctx, history)
	if err != nil {
		env.Responses = append(env.Responses, r.errorItem(err))
		return
	}

	r.sessions.AppendMessage(sessionID, types.NewAssistantMessage(reply))
	env.Responses = append(env.Responses, ResponseItem{Type: ResponseChat, Content: reply})
	env.Success = true
}

// handleWorkflow forwards the request to the analysis service using the
// most relevant attached file.
func (r *Router) handleWorkflow(ctx context.Context, env *Envelope, req *ChatRequest, sessionID string) {
	files := req.Files
	if len(files) == 0 {
		// Fall back to files uploaded in earlier turns of this session.
		files = r.sessions.Files(sessionID)
	}
	target, ok := pickAnalysisFile(files)
	if !ok {
		env.Responses = append(env.Responses, ResponseItem{
			Type:       ResponseError,
			Content:    "Workflow analysis needs a data file.",
			Suggestion: "Upload an .h5ad matrix or a CSV/TSV expression table.",
		})
		return
	}

	L_info("gateway: dispatching to analysis service", "session", sessionID, "file", target.Name)

	result, err := r.analysis.Analyze(ctx, req.Message, target.Path, sessionID)
	if err != nil {
		env.Responses = append(env.Responses, r.errorItem(err))
		return
	}
	if !result.Success {
		msg := result.Message
		if msg == "" {
			msg = "The analysis service reported a failure."
		}
		env.Responses = append(env.Responses, ResponseItem{Type: ResponseError, Content: msg})
		r.sessions.AppendMessage(sessionID, types.NewAssistantMessage("Analysis failed: "+msg))
		return
	}

	env.AIService = "Analysis workflow"
	if len(result.Data) > 0 {
		env.Responses = append(env.Responses, ResponseItem{
			Type:    ResponseVisualization,
			Content: result.Message,
			Data:    result.Data,
		})
	} else {
		// The service answered conversationally, without plot output.
		env.Responses = append(env.Responses, ResponseItem{Type: ResponseChat, Content: result.Message})
	}
	r.sessions.AppendMessage(sessionID, types.NewAssistantMessage("Analysis of "+target.Name+" complete."))
	env.Success = true
}

// pickAnalysisFile selects the most relevant file for analysis:
// a domain-native .h5ad matrix first, then a tabular file, then whatever
// came first.
func pickAnalysisFile(files []types.FileRef) (types.FileRef, bool) {
	if len(files) == 0 {
		return types.FileRef{}, false
	}
	for _, f := range files {
		if f.Kind == "h5ad" {
			return f, true
		}
	}
	for _, f := range files {
		if f.Kind == "table" {
			return f, true
		}
	}
	return files[0], true
}

// augmentCurrentMessage appends a short textual description of the current
// attachments to the final user message. Attachments are not passed to the
// model in chat mode, so the description is all it sees of them.
func augmentCurrentMessage(history []types.Message, files []types.FileRef) []types.Message {
	if len(files) == 0 || len(history) == 0 {
		return history
	}
	last := len(history) - 1
	if history[last].Role != types.RoleUser {
		return history
	}

	var b strings.Builder
	b.WriteString(history[last].Content)
	b.WriteString("\n\n[Attached files: ")
	for i, f := range files {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s (%s, %s)", f.Name, f.Kind, f.HumanSize())
	}
	b.WriteString("]")

	history[last].Content = b.String()
	return history
}
