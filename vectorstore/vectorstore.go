// Package vectorstore is a client for the Qdrant REST API, covering the
// slice of it this system uses: collection bootstrap, point upserts and
// similarity search.
package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// DefaultTimeout bounds a single vector store round trip.
const DefaultTimeout = 10 * time.Second

// Point is a vector with its id and payload.
type Point struct {
	ID      string                 `json:"id"`
	Vector  []float32              `json:"vector"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// ScoredPoint is a search hit.
type ScoredPoint struct {
	ID    string  `json:"id"`
	Score float32 `json:"score"`
}

// Client talks to a single Qdrant instance.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient returns a client for the Qdrant instance at host:port. A zero
// timeout falls back to DefaultTimeout.
func NewClient(host string, port int, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    fmt.Sprintf("http://%s:%d", host, port),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type vectorParams struct {
	Size     int    `json:"size"`
	Distance string `json:"distance"`
}

type createCollectionRequest struct {
	Vectors vectorParams `json:"vectors"`
}

// EnsureCollection creates a cosine-distance collection of the given
// dimension. A collection that already exists counts as success, whatever
// its parameters; bootstrap must be safe to run on every startup.
func (c *Client) EnsureCollection(ctx context.Context, name string, dimension int) error {
	body := &createCollectionRequest{
		Vectors: vectorParams{Size: dimension, Distance: "Cosine"},
	}
	resp, err := c.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s", name), body)
	if err != nil {
		return errors.Wrapf(err, "create collection %s", name)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		return nil
	}
	return checkStatus(resp, "create collection "+name)
}

type upsertRequest struct {
	Points []Point `json:"points"`
}

// Upsert writes points and waits for the write to be applied before
// returning, so a completed sync task means the document is searchable.
func (c *Client) Upsert(ctx context.Context, collection string, points []Point) error {
	resp, err := c.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s/points?wait=true", collection), &upsertRequest{Points: points})
	if err != nil {
		return errors.Wrapf(err, "upsert into %s", collection)
	}
	defer resp.Body.Close()

	return checkStatus(resp, "upsert into "+collection)
}

type searchRequest struct {
	Vector []float32 `json:"vector"`
	Limit  int       `json:"limit"`
}

type searchResponse struct {
	Result []ScoredPoint `json:"result"`
}

// Search returns the ids of the points closest to the query vector, best
// match first.
func (c *Client) Search(ctx context.Context, collection string, vector []float32, limit int) ([]ScoredPoint, error) {
	resp, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/search", collection), &searchRequest{Vector: vector, Limit: limit})
	if err != nil {
		return nil, errors.Wrapf(err, "search %s", collection)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, "search "+collection); err != nil {
		return nil, err
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errors.Wrap(err, "decode search response")
	}
	return result.Result, nil
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "encode request")
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	return c.httpClient.Do(req)
}

func checkStatus(resp *http.Response, operation string) error {
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return errors.Errorf("%s: qdrant returned %d: %s", operation, resp.StatusCode, bytes.TrimSpace(body))
}
