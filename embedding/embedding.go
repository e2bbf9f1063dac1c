// Package embedding turns text into fixed-size vectors.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// DefaultTimeout bounds a single encode round trip.
const DefaultTimeout = 30 * time.Second

// Encoder turns a piece of text into its vector representation.
type Encoder interface {
	Encode(ctx context.Context, text string) ([]float32, error)
}

// HuggingFace encodes text through a hosted feature-extraction pipeline
// (sentence-transformers models pool to a single vector per input).
type HuggingFace struct {
	url        string
	token      string
	httpClient *http.Client
}

// NewHuggingFace returns an encoder for the given pipeline endpoint. The
// token is sent as a bearer credential when non-empty. A zero timeout falls
// back to DefaultTimeout.
func NewHuggingFace(url, token string, timeout time.Duration) *HuggingFace {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HuggingFace{
		url:        url,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type encodeRequest struct {
	Inputs string `json:"inputs"`
}

// Encode returns the vector for a single piece of text.
func (h *HuggingFace) Encode(ctx context.Context, text string) ([]float32, error) {
	payload, err := json.Marshal(&encodeRequest{Inputs: text})
	if err != nil {
		return nil, errors.Wrap(err, "encode embedding request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "build embedding request")
	}
	req.Header.Set("Content-Type", "application/json")
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "embedding request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.Errorf("embedding endpoint returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read embedding response")
	}

	return decodeVector(body)
}

// decodeVector accepts both response shapes the pipeline produces, a bare
// vector for a single input and a list of vectors for batched input.
func decodeVector(body []byte) ([]float32, error) {
	var vector []float32
	if err := json.Unmarshal(body, &vector); err == nil {
		if len(vector) == 0 {
			return nil, errors.New("embedding endpoint returned an empty vector")
		}
		return vector, nil
	}

	var vectors [][]float32
	if err := json.Unmarshal(body, &vectors); err != nil {
		return nil, errors.Wrap(err, "decode embedding response")
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, errors.New("embedding endpoint returned an empty vector")
	}
	return vectors[0], nil
}
