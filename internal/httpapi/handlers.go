package httpapi

import (
	"encoding/json"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/seqchat/seqchat/internal/gateway"
	"github.com/seqchat/seqchat/internal/llm"
	. "github.com/seqchat/seqchat/internal/logging"
	"github.com/seqchat/seqchat/internal/types"
)

// maxMultipartMemory bounds how much of a multipart body is held in memory
// before spilling to temp files.
const maxMultipartMemory = 32 << 20

// handleChat accepts a multipart chat request, stores any uploads, and runs
// the request through the gateway router. The response is always a 200 with
// a normalized envelope; failures surface as error-kind entries inside it.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Bound the whole body: all file parts plus form overhead.
	r.Body = http.MaxBytesReader(w, r.Body, s.uploads.maxBytes*4+maxMultipartMemory)

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		L_warn("http: bad multipart request", "error", err)
		writeJSON(w, http.StatusBadRequest, &gateway.Envelope{
			Responses: []gateway.ResponseItem{{
				Type:    gateway.ResponseError,
				Content: "The request body is not a valid multipart form.",
			}},
		})
		return
	}

	req := &gateway.ChatRequest{
		Message:     r.FormValue("message"),
		SessionID:   r.FormValue("sessionId"),
		UseWorkflow: r.FormValue("useWorkflow") == "true",
		Selection:   parseSelection(r),
	}

	if r.MultipartForm != nil {
		for _, fh := range r.MultipartForm.File["files"] {
			ref, err := s.saveUpload(fh)
			if err != nil {
				L_warn("http: upload rejected", "name", fh.Filename, "error", err)
				writeJSON(w, http.StatusOK, &gateway.Envelope{
					SessionID: req.SessionID,
					Responses: []gateway.ResponseItem{{
						Type:       gateway.ResponseError,
						Content:    "Upload failed: " + err.Error(),
						Suggestion: "Check the file and try again.",
					}},
				})
				return
			}
			req.Files = append(req.Files, ref)
		}
	}

	env := s.router.Handle(r.Context(), req)
	writeJSON(w, http.StatusOK, env)
}

// saveUpload opens one multipart part and streams it into the upload store.
func (s *Server) saveUpload(fh *multipart.FileHeader) (types.FileRef, error) {
	f, err := fh.Open()
	if err != nil {
		return types.FileRef{}, err
	}
	defer f.Close()
	return s.uploads.Save(fh.Filename, f)
}

// parseSelection extracts the model choice from the form. The structured
// modelPayload field wins; the flat selectedModelId/apiKey fields remain
// accepted for older clients and are folded into the same Selection.
func parseSelection(r *http.Request) llm.Selection {
	if payload := r.FormValue("modelPayload"); payload != "" {
		var sel llm.Selection
		if err := json.Unmarshal([]byte(payload), &sel); err == nil {
			return sel
		}
		L_warn("http: unparseable modelPayload, falling back to flat fields")
	}
	return llm.Selection{
		ModelID: r.FormValue("selectedModelId"),
		APIKey:  r.FormValue("apiKey"),
	}
}

// checkModelResponse is the availability-check reply shape.
type checkModelResponse struct {
	Success    bool                   `json:"success"`
	Status     llm.AvailabilityStatus `json:"status"`
	Message    string                 `json:"message"`
	Suggestion string                 `json:"suggestion,omitempty"`
}

// handleCheckModel probes whether the selected model is usable right now.
// The probe itself never errors; every outcome maps onto a status.
func (s *Server) handleCheckModel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var sel llm.Selection
	if err := json.NewDecoder(r.Body).Decode(&sel); err != nil {
		writeJSON(w, http.StatusBadRequest, checkModelResponse{
			Status:  llm.StatusUnavailable,
			Message: "invalid request body",
		})
		return
	}

	result := s.prober.Probe(r.Context(), sel)
	writeJSON(w, http.StatusOK, checkModelResponse{
		Success:    result.Status == llm.StatusAvailable,
		Status:     result.Status,
		Message:    result.Message,
		Suggestion: result.Suggestion,
	})
}

// handleModels returns the selectable model catalog.
func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"models":         s.registry.Selectable(),
		"defaultModelId": s.registry.Default().ID,
	})
}

// handleHealth is the liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"service":   "seqchat",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
