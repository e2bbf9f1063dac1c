// Package pipeline holds the task handlers the worker processes execute:
// resume parsing and document embedding. Handlers are stateless; their
// external collaborators are injected once at startup and shared across
// invocations.
package pipeline

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/matchboxhq/matchbox/embedding"
	"github.com/matchboxhq/matchbox/queue"
	"github.com/matchboxhq/matchbox/vectorstore"
)

// Task names as they appear on the wire.
const (
	TaskParseResume     = "parse_resume"
	TaskCreateEmbedding = "create_embedding"
)

// DefaultFetchTimeout bounds a resume download.
const DefaultFetchTimeout = 30 * time.Second

// Generator produces text from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// VectorStore is the slice of the vector database the handlers write to.
type VectorStore interface {
	Upsert(ctx context.Context, collection string, points []vectorstore.Point) error
}

// Deps are the external collaborators the handlers depend on.
type Deps struct {
	// HTTPClient downloads source documents. Optional; a client with
	// DefaultFetchTimeout is used when nil.
	HTTPClient *http.Client
	Generator  Generator
	Encoder    embedding.Encoder
	Store      VectorStore
}

// Pipeline bundles the handlers with their shared clients.
type Pipeline struct {
	httpClient *http.Client
	generator  Generator
	encoder    embedding.Encoder
	store      VectorStore
	validate   *validator.Validate
}

// New returns a Pipeline wired to the given collaborators.
func New(deps Deps) *Pipeline {
	httpClient := deps.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultFetchTimeout}
	}
	return &Pipeline{
		httpClient: httpClient,
		generator:  deps.Generator,
		encoder:    deps.Encoder,
		store:      deps.Store,
		validate:   validator.New(),
	}
}

// Tasks is the registration table, the single place task names are bound to
// handlers.
func (p *Pipeline) Tasks() map[string]interface{} {
	return map[string]interface{}{
		TaskParseResume:     p.ParseResume,
		TaskCreateEmbedding: p.CreateEmbedding,
	}
}

// Register registers every handler with the server.
func (p *Pipeline) Register(server *queue.Server) error {
	return server.RegisterTasks(p.Tasks())
}
