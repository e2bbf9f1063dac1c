package pipeline

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/matchboxhq/matchbox/log"
	"github.com/matchboxhq/matchbox/vectorstore"
)

type syncResult struct {
	Status     string `json:"status"`
	DocumentID string `json:"documentId"`
}

// CreateEmbedding encodes a document and stores its vector in the given
// collection. The point id is derived from the document id, so syncing the
// same document again overwrites the previous vector instead of duplicating
// it.
func (p *Pipeline) CreateEmbedding(ctx context.Context, collection, documentID, textContent string) (string, error) {
	log.INFO.Printf("Embedding document %s into collection %s", documentID, collection)

	vector, err := p.encoder.Encode(ctx, textContent)
	if err != nil {
		return "", NewInferenceError(err)
	}

	point := vectorstore.Point{
		ID:      uuid.NewSHA1(uuid.NameSpaceDNS, []byte(documentID)).String(),
		Vector:  vector,
		Payload: map[string]interface{}{"original_id": documentID},
	}
	if err := p.store.Upsert(ctx, collection, []vectorstore.Point{point}); err != nil {
		return "", NewStoreError(err)
	}

	out, err := json.Marshal(&syncResult{Status: "success", DocumentID: documentID})
	if err != nil {
		return "", errors.Wrap(err, "encode sync result")
	}

	log.INFO.Printf("Stored embedding for document %s as point %s", documentID, point.ID)
	return string(out), nil
}
