package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matchboxhq/matchbox/api"
	"github.com/matchboxhq/matchbox/config"
	"github.com/matchboxhq/matchbox/queue"
	"github.com/matchboxhq/matchbox/vectorstore"
)

type stubEncoder struct {
	vector []float32
	err    error
}

func (e *stubEncoder) Encode(ctx context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.vector, nil
}

type stubStore struct {
	ensured       []string
	ensuredDims   []int
	ensureErr     error
	hits          []vectorstore.ScoredPoint
	searchErr     error
	gotCollection string
	gotLimit      int
}

func (s *stubStore) EnsureCollection(ctx context.Context, name string, dimension int) error {
	if s.ensureErr != nil {
		return s.ensureErr
	}
	s.ensured = append(s.ensured, name)
	s.ensuredDims = append(s.ensuredDims, dimension)
	return nil
}

func (s *stubStore) Search(ctx context.Context, collection string, vector []float32, limit int) ([]vectorstore.ScoredPoint, error) {
	s.gotCollection = collection
	s.gotLimit = limit
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	return s.hits, nil
}

func newTestAPI(t *testing.T, handlers map[string]interface{}, encoder *stubEncoder, store *stubStore) (*httptest.Server, *api.Server) {
	t.Helper()

	cnf := &config.Config{
		Broker:        "eager",
		ResultBackend: "eager",
		DefaultQueue:  "matchbox_tasks",
		Collections:   []string{"jobs", "profiles"},
		Embedding:     &config.EmbeddingConfig{Dim: 384},
	}

	queueServer, err := queue.NewServer(cnf)
	require.NoError(t, err)
	if len(handlers) > 0 {
		require.NoError(t, queueServer.RegisterTasks(handlers))
	}

	apiServer := api.New(cnf, queueServer, encoder, store)
	ts := httptest.NewServer(apiServer.Router())
	t.Cleanup(ts.Close)
	return ts, apiServer
}

func postJSON(t *testing.T, url, body string) (int, map[string]interface{}) {
	t.Helper()

	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp.StatusCode, decoded
}

func getJSON(t *testing.T, url string) (int, map[string]interface{}) {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp.StatusCode, decoded
}

func TestHealth(t *testing.T) {
	t.Parallel()

	ts, _ := newTestAPI(t, nil, &stubEncoder{}, &stubStore{})
	status, body := getJSON(t, ts.URL+"/health")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestParseResumeDispatchesTask(t *testing.T) {
	t.Parallel()

	var gotURL string
	handlers := map[string]interface{}{
		"parse_resume": func(resumeURL string) (string, error) {
			gotURL = resumeURL
			return `{"skills": ["Go"], "work_experience": [], "education": []}`, nil
		},
		"create_embedding": func(collection, documentID, textContent string) (string, error) {
			return "{}", nil
		},
	}
	ts, _ := newTestAPI(t, handlers, &stubEncoder{}, &stubStore{})

	status, body := postJSON(t, ts.URL+"/v1/parsing/resume", `{"resumeUrl": "https://cdn.example.com/resume.pdf"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "processing", body["status"])

	taskID, ok := body["taskId"].(string)
	require.True(t, ok)
	assert.Contains(t, taskID, "task_")
	assert.Equal(t, "https://cdn.example.com/resume.pdf", gotURL)

	// The eager pair ran the task inline, so the record is already terminal
	status, statusBody := getJSON(t, fmt.Sprintf("%s/v1/tasks/%s", ts.URL, taskID))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "SUCCESS", statusBody["state"])

	result, ok := statusBody["result"].(map[string]interface{})
	require.True(t, ok, "stored JSON document should pass through as an object")
	assert.Equal(t, []interface{}{"Go"}, result["skills"])
}

func TestParseResumeValidation(t *testing.T) {
	t.Parallel()

	ts, _ := newTestAPI(t, nil, &stubEncoder{}, &stubStore{})

	status, body := postJSON(t, ts.URL+"/v1/parsing/resume", `{}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["error"], "validation error")

	status, _ = postJSON(t, ts.URL+"/v1/parsing/resume", `{"resumeUrl": "not a url"}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = postJSON(t, ts.URL+"/v1/parsing/resume", `{`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid request body", body["error"])
}

func TestSyncDispatchesTask(t *testing.T) {
	t.Parallel()

	var gotCollection, gotDocumentID, gotText string
	handlers := map[string]interface{}{
		"create_embedding": func(collection, documentID, textContent string) (string, error) {
			gotCollection = collection
			gotDocumentID = documentID
			gotText = textContent
			return `{"status": "success", "documentId": "` + documentID + `"}`, nil
		},
	}
	ts, _ := newTestAPI(t, handlers, &stubEncoder{}, &stubStore{})

	status, body := postJSON(t, ts.URL+"/internal/sync",
		`{"collection": "jobs", "documentId": "job_101", "textContent": "Senior Backend Engineer"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "syncing", body["status"])

	assert.Equal(t, "jobs", gotCollection)
	assert.Equal(t, "job_101", gotDocumentID)
	assert.Equal(t, "Senior Backend Engineer", gotText)

	taskID := body["taskId"].(string)
	status, statusBody := getJSON(t, fmt.Sprintf("%s/v1/tasks/%s", ts.URL, taskID))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "SUCCESS", statusBody["state"])
}

func TestSyncRejectsUnknownCollection(t *testing.T) {
	t.Parallel()

	ts, _ := newTestAPI(t, nil, &stubEncoder{}, &stubStore{})
	status, body := postJSON(t, ts.URL+"/internal/sync",
		`{"collection": "users", "documentId": "user_1", "textContent": "text"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["error"], "validation error")
}

func TestTaskStatusUnknownID(t *testing.T) {
	t.Parallel()

	ts, _ := newTestAPI(t, nil, &stubEncoder{}, &stubStore{})
	status, body := getJSON(t, ts.URL+"/v1/tasks/task_never-published")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "task_never-published", body["taskId"])
	assert.Equal(t, "PENDING", body["state"])
	assert.NotContains(t, body, "result")
	assert.NotContains(t, body, "error")
}

func TestTaskStatusFailedTask(t *testing.T) {
	t.Parallel()

	handlers := map[string]interface{}{
		"parse_resume": func(resumeURL string) (string, error) {
			return "", errors.New("fetch_error: GET " + resumeURL + " returned 404")
		},
	}
	ts, _ := newTestAPI(t, handlers, &stubEncoder{}, &stubStore{})

	status, body := postJSON(t, ts.URL+"/v1/parsing/resume", `{"resumeUrl": "https://cdn.example.com/gone.pdf"}`)
	require.Equal(t, http.StatusOK, status)

	taskID := body["taskId"].(string)
	status, statusBody := getJSON(t, fmt.Sprintf("%s/v1/tasks/%s", ts.URL, taskID))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "FAILURE", statusBody["state"])
	assert.Equal(t, "fetch_error: GET https://cdn.example.com/gone.pdf returned 404", statusBody["error"])
}

func TestSearchRanksResults(t *testing.T) {
	t.Parallel()

	store := &stubStore{
		hits: []vectorstore.ScoredPoint{
			{ID: "point-low", Score: 0.71},
			{ID: "point-high", Score: 0.93},
		},
	}
	ts, _ := newTestAPI(t, nil, &stubEncoder{vector: []float32{0.5, 0.5}}, store)

	status, body := postJSON(t, ts.URL+"/v1/matching/search",
		`{"collection": "jobs", "textContent": "Golang backend engineer"}`)
	require.Equal(t, http.StatusOK, status)

	results, ok := body["rankedResults"].([]interface{})
	require.True(t, ok)
	require.Equal(t, 2, len(results))

	first := results[0].(map[string]interface{})
	second := results[1].(map[string]interface{})
	assert.Equal(t, "point-high", first["id"])
	assert.Equal(t, "point-low", second["id"])

	assert.Equal(t, "jobs", store.gotCollection)
	assert.Equal(t, 10, store.gotLimit)
}

func TestSearchHonorsLimit(t *testing.T) {
	t.Parallel()

	store := &stubStore{}
	ts, _ := newTestAPI(t, nil, &stubEncoder{vector: []float32{1}}, store)

	status, body := postJSON(t, ts.URL+"/v1/matching/search",
		`{"collection": "profiles", "textContent": "query", "limit": 3}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 3, store.gotLimit)

	results, ok := body["rankedResults"].([]interface{})
	require.True(t, ok)
	assert.Equal(t, 0, len(results))
}

func TestSearchValidation(t *testing.T) {
	t.Parallel()

	ts, _ := newTestAPI(t, nil, &stubEncoder{}, &stubStore{})

	status, _ := postJSON(t, ts.URL+"/v1/matching/search", `{"collection": "jobs"}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = postJSON(t, ts.URL+"/v1/matching/search",
		`{"collection": "jobs", "textContent": "query", "limit": -1}`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestSearchInternalErrorsStayGeneric(t *testing.T) {
	t.Parallel()

	store := &stubStore{searchErr: errors.New("dial tcp 127.0.0.1:6333: connection refused")}
	ts, _ := newTestAPI(t, nil, &stubEncoder{vector: []float32{1}}, store)

	status, body := postJSON(t, ts.URL+"/v1/matching/search",
		`{"collection": "jobs", "textContent": "query"}`)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "internal server error", body["error"])
}

func TestSearchEncoderErrorStaysGeneric(t *testing.T) {
	t.Parallel()

	ts, _ := newTestAPI(t, nil, &stubEncoder{err: errors.New("model loading")}, &stubStore{})

	status, body := postJSON(t, ts.URL+"/v1/matching/search",
		`{"collection": "jobs", "textContent": "query"}`)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "internal server error", body["error"])
}

func TestBootstrap(t *testing.T) {
	t.Parallel()

	store := &stubStore{}
	_, apiServer := newTestAPI(t, nil, &stubEncoder{}, store)

	require.NoError(t, apiServer.Bootstrap(context.Background()))
	assert.Equal(t, []string{"jobs", "profiles"}, store.ensured)
	assert.Equal(t, []int{384, 384}, store.ensuredDims)
}

func TestBootstrapPropagatesError(t *testing.T) {
	t.Parallel()

	store := &stubStore{ensureErr: errors.New("connection refused")}
	_, apiServer := newTestAPI(t, nil, &stubEncoder{}, store)
	assert.Error(t, apiServer.Bootstrap(context.Background()))
}
