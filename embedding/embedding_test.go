package embedding_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matchboxhq/matchbox/embedding"
)

func TestEncodeBareVector(t *testing.T) {
	t.Parallel()

	var gotBody map[string]interface{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(`[0.1, -0.2, 0.3]`))
	}))
	defer ts.Close()

	encoder := embedding.NewHuggingFace(ts.URL, "hf_test_token", time.Second)
	vector, err := encoder.Encode(context.Background(), "Senior Backend Engineer")
	require.NoError(t, err)

	assert.Equal(t, []float32{0.1, -0.2, 0.3}, vector)
	assert.Equal(t, "Senior Backend Engineer", gotBody["inputs"])
}

func TestEncodeBatchedVector(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[[1, 2, 3], [4, 5, 6]]`))
	}))
	defer ts.Close()

	encoder := embedding.NewHuggingFace(ts.URL, "", time.Second)
	vector, err := encoder.Encode(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, vector)
}

func TestEncodeEmptyVector(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer ts.Close()

	encoder := embedding.NewHuggingFace(ts.URL, "", time.Second)
	_, err := encoder.Encode(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty vector")
}

func TestEncodeEndpointError(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
	}))
	defer ts.Close()

	encoder := embedding.NewHuggingFace(ts.URL, "", time.Second)
	_, err := encoder.Encode(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestEncodeMalformedResponse(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": "unexpected shape"}`))
	}))
	defer ts.Close()

	encoder := embedding.NewHuggingFace(ts.URL, "", time.Second)
	_, err := encoder.Encode(context.Background(), "text")
	assert.Error(t, err)
}
