// Package inference is a client for hosted text-generation endpoints
// speaking the Hugging Face Inference API protocol.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// DefaultTimeout bounds a single generation round trip. Large models routinely
// take tens of seconds to respond.
const DefaultTimeout = 90 * time.Second

// Client calls a single hosted model endpoint.
type Client struct {
	url        string
	token      string
	httpClient *http.Client
}

// NewClient returns a client for the given endpoint. The token is sent as a
// bearer credential when non-empty. A zero timeout falls back to DefaultTimeout.
func NewClient(url, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		url:        url,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type generateRequest struct {
	Inputs     string             `json:"inputs"`
	Parameters generateParameters `json:"parameters"`
}

type generateParameters struct {
	ReturnFullText bool `json:"return_full_text"`
}

type generation struct {
	GeneratedText string `json:"generated_text"`
}

// Generate posts the prompt and returns the generated continuation. The
// prompt itself is never echoed back (return_full_text is off).
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(&generateRequest{Inputs: prompt})
	if err != nil {
		return "", errors.Wrap(err, "encode generation request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", errors.Wrap(err, "build generation request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "generation request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", errors.Errorf("inference endpoint returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var generations []generation
	if err := json.NewDecoder(resp.Body).Decode(&generations); err != nil {
		return "", errors.Wrap(err, "decode generation response")
	}
	if len(generations) == 0 {
		return "", errors.New("inference endpoint returned no generations")
	}

	return generations[0].GeneratedText, nil
}
