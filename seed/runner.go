package seed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/matchboxhq/matchbox/log"
	"github.com/matchboxhq/matchbox/queue/tasks"
)

const (
	// DefaultTimeout bounds a single API round trip.
	DefaultTimeout = 10 * time.Second

	// pollInterval is how often a pending embedding task is re-checked.
	pollInterval = 500 * time.Millisecond

	// taskDeadline is how long one embedding task may take before the run
	// is abandoned.
	taskDeadline = 60 * time.Second
)

// Runner seeds a running API instance and verifies the result with a
// smoke search.
type Runner struct {
	baseURL    string
	httpClient *http.Client
}

// NewRunner returns a Runner for the API at baseURL. A zero timeout falls
// back to DefaultTimeout.
func NewRunner(baseURL string, timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Runner{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Run posts every corpus document through the sync endpoint, waits for each
// embedding task to finish and then issues a smoke search against the jobs
// collection.
func (r *Runner) Run(ctx context.Context) error {
	for _, document := range Jobs() {
		taskID, err := r.sync(ctx, document)
		if err != nil {
			return errors.Wrapf(err, "seed %s", document.DocumentID)
		}
		if err := r.waitForTask(ctx, taskID); err != nil {
			return errors.Wrapf(err, "seed %s", document.DocumentID)
		}
		log.INFO.Printf("Seeded %s (task %s)", document.DocumentID, taskID)
	}

	return r.smokeSearch(ctx)
}

func (r *Runner) sync(ctx context.Context, document Document) (string, error) {
	var resp struct {
		TaskID string `json:"taskId"`
		Status string `json:"status"`
	}
	if err := r.post(ctx, "/internal/sync", document, &resp); err != nil {
		return "", err
	}
	if resp.TaskID == "" {
		return "", errors.New("sync response carries no task id")
	}
	return resp.TaskID, nil
}

func (r *Runner) waitForTask(ctx context.Context, taskID string) error {
	deadline := time.Now().Add(taskDeadline)

	for {
		var status struct {
			State string `json:"state"`
			Error string `json:"error"`
		}
		if err := r.get(ctx, "/v1/tasks/"+taskID, &status); err != nil {
			return err
		}

		switch status.State {
		case tasks.SuccessState:
			return nil
		case tasks.FailureState:
			return errors.Errorf("task %s failed: %s", taskID, status.Error)
		}

		if time.Now().After(deadline) {
			return errors.Errorf("task %s still %s after %s", taskID, status.State, taskDeadline)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func (r *Runner) smokeSearch(ctx context.Context) error {
	request := map[string]interface{}{
		"collection":  "jobs",
		"textContent": "Golang backend engineer with Kubernetes experience",
		"limit":       3,
	}
	var resp struct {
		RankedResults []struct {
			ID    string  `json:"id"`
			Score float32 `json:"score"`
		} `json:"rankedResults"`
	}
	if err := r.post(ctx, "/v1/matching/search", request, &resp); err != nil {
		return errors.Wrap(err, "smoke search")
	}
	if len(resp.RankedResults) == 0 {
		return errors.New("smoke search returned no results")
	}

	log.INFO.Printf("Smoke search ok, best match %s (score %.3f)", resp.RankedResults[0].ID, resp.RankedResults[0].Score)
	return nil
}

func (r *Runner) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	return r.do(req, out)
}

func (r *Runner) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+path, nil)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	return r.do(req, out)
}

func (r *Runner) do(req *http.Request, out interface{}) error {
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s returned %d: %s", req.Method, req.URL.Path, resp.StatusCode, bytes.TrimSpace(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
