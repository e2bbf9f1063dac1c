package api

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/matchboxhq/matchbox/log"
	"github.com/matchboxhq/matchbox/pipeline"
	backendsiface "github.com/matchboxhq/matchbox/queue/backends/iface"
	"github.com/matchboxhq/matchbox/queue/tasks"
)

// defaultSearchLimit is used when a search request does not name one.
const defaultSearchLimit = 10

type parseResumeRequest struct {
	ResumeURL string `json:"resumeUrl" validate:"required,url"`
}

type syncRequest struct {
	Collection  string `json:"collection" validate:"required,oneof=jobs profiles"`
	DocumentID  string `json:"documentId" validate:"required"`
	TextContent string `json:"textContent" validate:"required"`
}

type searchRequest struct {
	Collection  string `json:"collection" validate:"required,oneof=jobs profiles"`
	TextContent string `json:"textContent" validate:"required"`
	Limit       int    `json:"limit" validate:"omitempty,min=1,max=100"`
}

type taskAcceptedResponse struct {
	TaskID string `json:"taskId"`
	Status string `json:"status"`
}

type rankedResult struct {
	ID    string  `json:"id"`
	Score float32 `json:"score"`
}

type searchResponse struct {
	RankedResults []rankedResult `json:"rankedResults"`
}

type taskStatusResponse struct {
	TaskID string          `json:"taskId"`
	State  string          `json:"state"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) parseResume(w http.ResponseWriter, r *http.Request) {
	var req parseResumeRequest
	if !s.decode(w, r, &req) {
		return
	}

	asyncResult, err := s.queue.SendTaskWithContext(r.Context(), &tasks.Signature{
		Name: pipeline.TaskParseResume,
		Args: []tasks.Arg{
			{Name: "resume_url", Type: "string", Value: req.ResumeURL},
		},
	})
	if err != nil {
		log.ERROR.Printf("Dispatch %s failed: %s", pipeline.TaskParseResume, err)
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	respondJSON(w, http.StatusOK, &taskAcceptedResponse{
		TaskID: asyncResult.Signature.UUID,
		Status: "processing",
	})
}

func (s *Server) syncDocument(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if !s.decode(w, r, &req) {
		return
	}

	asyncResult, err := s.queue.SendTaskWithContext(r.Context(), &tasks.Signature{
		Name: pipeline.TaskCreateEmbedding,
		Args: []tasks.Arg{
			{Name: "collection", Type: "string", Value: req.Collection},
			{Name: "document_id", Type: "string", Value: req.DocumentID},
			{Name: "text_content", Type: "string", Value: req.TextContent},
		},
	})
	if err != nil {
		log.ERROR.Printf("Dispatch %s failed: %s", pipeline.TaskCreateEmbedding, err)
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	respondJSON(w, http.StatusOK, &taskAcceptedResponse{
		TaskID: asyncResult.Signature.UUID,
		Status: "syncing",
	})
}

// search is the synchronous path: the query text is embedded and matched
// inside the request. Internal failures surface as a generic 500 so model
// and store details never leak to callers.
func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Limit == 0 {
		req.Limit = defaultSearchLimit
	}

	vector, err := s.encoder.Encode(r.Context(), req.TextContent)
	if err != nil {
		log.ERROR.Printf("Search encode failed: %s", err)
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	hits, err := s.store.Search(r.Context(), req.Collection, vector, req.Limit)
	if err != nil {
		log.ERROR.Printf("Search in %s failed: %s", req.Collection, err)
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })

	results := make([]rankedResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, rankedResult{ID: hit.ID, Score: hit.Score})
	}
	respondJSON(w, http.StatusOK, &searchResponse{RankedResults: results})
}

func (s *Server) taskStatus(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	state, err := s.queue.GetBackend().GetState(taskID)
	if err != nil {
		if err == backendsiface.ErrStateNotFound {
			// Unknown and expired ids read as still pending
			respondJSON(w, http.StatusOK, &taskStatusResponse{TaskID: taskID, State: tasks.PendingState})
			return
		}
		log.ERROR.Printf("Read state of %s failed: %s", taskID, err)
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := &taskStatusResponse{TaskID: state.TaskUUID, State: state.State}
	switch {
	case state.IsSuccess():
		resp.Result = renderResults(state.Results)
	case state.IsFailure():
		resp.Error = state.Error
	}
	respondJSON(w, http.StatusOK, resp)
}

// decode reads and validates a JSON request body, answering 400 itself when
// either step fails.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		respondError(w, http.StatusBadRequest, "validation error: "+err.Error())
		return false
	}
	return true
}

// renderResults passes a single JSON-document result through verbatim so
// callers see the stored document itself, not a quoted string of it.
func renderResults(results []*tasks.TaskResult) json.RawMessage {
	if len(results) == 0 {
		return nil
	}
	if len(results) == 1 {
		if text, ok := results[0].Value.(string); ok && json.Valid([]byte(text)) {
			return json.RawMessage(text)
		}
		out, err := json.Marshal(results[0].Value)
		if err != nil {
			return nil
		}
		return out
	}

	values := make([]interface{}, len(results))
	for i, result := range results {
		values[i] = result.Value
	}
	out, err := json.Marshal(values)
	if err != nil {
		return nil
	}
	return out
}
