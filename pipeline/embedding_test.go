package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matchboxhq/matchbox/pipeline"
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
	collection string
	points     []vectorstore.Point
	err        error
}

func (s *stubStore) Upsert(ctx context.Context, collection string, points []vectorstore.Point) error {
	s.collection = collection
	s.points = points
	return s.err
}

func TestCreateEmbedding(t *testing.T) {
	t.Parallel()

	store := &stubStore{}
	p := pipeline.New(pipeline.Deps{
		Encoder: &stubEncoder{vector: []float32{0.1, 0.2, 0.3}},
		Store:   store,
	})

	out, err := p.CreateEmbedding(context.Background(), "jobs", "job_101", "Senior Backend Engineer specializing in Golang")
	require.NoError(t, err)

	var result map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "success", result["status"])
	assert.Equal(t, "job_101", result["documentId"])

	assert.Equal(t, "jobs", store.collection)
	require.Equal(t, 1, len(store.points))
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, store.points[0].Vector)
	assert.Equal(t, "job_101", store.points[0].Payload["original_id"])
	assert.Equal(t, uuid.NewSHA1(uuid.NameSpaceDNS, []byte("job_101")).String(), store.points[0].ID)
}

func TestCreateEmbeddingPointIDIsDeterministic(t *testing.T) {
	t.Parallel()

	store := &stubStore{}
	p := pipeline.New(pipeline.Deps{
		Encoder: &stubEncoder{vector: []float32{1}},
		Store:   store,
	})

	_, err := p.CreateEmbedding(context.Background(), "profiles", "profile_7", "first sync")
	require.NoError(t, err)
	firstID := store.points[0].ID

	_, err = p.CreateEmbedding(context.Background(), "profiles", "profile_7", "second sync, new text")
	require.NoError(t, err)

	// Re-syncing a document must overwrite its point, not add a second one
	assert.Equal(t, firstID, store.points[0].ID)
}

func TestCreateEmbeddingEncoderError(t *testing.T) {
	t.Parallel()

	p := pipeline.New(pipeline.Deps{
		Encoder: &stubEncoder{err: errors.New("rate limit exceeded")},
		Store:   &stubStore{},
	})

	_, err := p.CreateEmbedding(context.Background(), "jobs", "job_101", "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inference_error: rate limit exceeded")
}

func TestCreateEmbeddingStoreError(t *testing.T) {
	t.Parallel()

	p := pipeline.New(pipeline.Deps{
		Encoder: &stubEncoder{vector: []float32{1}},
		Store:   &stubStore{err: errors.New("connection refused")},
	})

	_, err := p.CreateEmbedding(context.Background(), "jobs", "job_101", "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store_error: connection refused")

	var perr *pipeline.Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, pipeline.KindStore, perr.Kind())
}
