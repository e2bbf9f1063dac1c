package mongo

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/matchboxhq/matchbox/config"
	"github.com/matchboxhq/matchbox/log"
	"github.com/matchboxhq/matchbox/queue/backends/iface"
	"github.com/matchboxhq/matchbox/queue/common"
	"github.com/matchboxhq/matchbox/queue/tasks"
)

// Backend represents a MongoDB result backend
type Backend struct {
	common.Backend
	client *mongo.Client
	tc     *mongo.Collection
	mu     sync.Mutex
}

// New creates Backend instance
func New(cnf *config.Config) iface.Backend {
	return &Backend{Backend: common.NewBackend(cnf)}
}

// SetStatePending updates task state to PENDING
func (b *Backend) SetStatePending(signature *tasks.Signature) error {
	update := bson.M{
		"state":      tasks.PendingState,
		"task_name":  signature.Name,
		"created_at": time.Now().UTC(),
	}
	return b.updateState(signature, update)
}

// SetStateStarted updates task state to STARTED
func (b *Backend) SetStateStarted(signature *tasks.Signature) error {
	update := bson.M{
		"state":      tasks.StartedState,
		"task_name":  signature.Name,
		"created_at": time.Now().UTC(),
	}
	return b.updateState(signature, update)
}

// SetStateSuccess updates task state to SUCCESS
func (b *Backend) SetStateSuccess(signature *tasks.Signature, results []*tasks.TaskResult) error {
	update := bson.M{
		"state":      tasks.SuccessState,
		"task_name":  signature.Name,
		"results":    b.decodeResults(results),
		"created_at": time.Now().UTC(),
	}
	return b.updateState(signature, update)
}

// SetStateFailure updates task state to FAILURE
func (b *Backend) SetStateFailure(signature *tasks.Signature, err string) error {
	update := bson.M{
		"state":      tasks.FailureState,
		"task_name":  signature.Name,
		"error":      err,
		"created_at": time.Now().UTC(),
	}
	return b.updateState(signature, update)
}

// GetState returns the latest task state
func (b *Backend) GetState(taskUUID string) (*tasks.TaskState, error) {
	if err := b.connect(); err != nil {
		return nil, err
	}

	state := new(tasks.TaskState)
	err := b.tc.FindOne(context.Background(), bson.M{"_id": taskUUID}).Decode(state)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, iface.ErrStateNotFound
		}
		return nil, err
	}

	return state, nil
}

// PurgeState deletes stored task state
func (b *Backend) PurgeState(taskUUID string) error {
	if err := b.connect(); err != nil {
		return err
	}

	_, err := b.tc.DeleteOne(context.Background(), bson.M{"_id": taskUUID})
	return err
}

// decodeResults detects & decodes json strings in TaskResult.Value and returns a new slice
func (b *Backend) decodeResults(results []*tasks.TaskResult) []*tasks.TaskResult {
	l := len(results)
	jsonResults := make([]*tasks.TaskResult, l)
	for i, result := range results {
		jsonResult := new(bson.M)
		resultType := reflect.TypeOf(result.Value).Kind()
		if resultType == reflect.String {
			err := json.NewDecoder(strings.NewReader(result.Value.(string))).Decode(&jsonResult)
			if err == nil {
				jsonResults[i] = &tasks.TaskResult{
					Type:  "json",
					Value: jsonResult,
				}
				continue
			}
		}
		jsonResults[i] = result
	}
	return jsonResults
}

// updateState saves current task state. The filter skips records already in a
// completed state so a late write can never regress them, the upsert conflict
// it produces on such records is treated as a no-op
func (b *Backend) updateState(signature *tasks.Signature, update bson.M) error {
	if err := b.connect(); err != nil {
		return err
	}

	filter := bson.M{
		"_id":   signature.UUID,
		"state": bson.M{"$nin": []string{tasks.SuccessState, tasks.FailureState}},
	}

	_, err := b.tc.UpdateOne(context.Background(), filter, bson.M{"$set": update}, options.Update().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return err
	}
	return nil
}

// connect creates the underlying mongodb client if it doesn't exist yet.
// A failed dial leaves the backend unconnected so the next call retries
func (b *Backend) connect() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.tc != nil {
		return nil
	}
	return b.dial()
}

// dial connects via the injected client if one is configured, else via the
// ResultBackend uri. Index creation trouble is logged and does not fail the
// connection
func (b *Backend) dial() error {
	database := "matchbox"
	if b.GetConfig().MongoDB != nil && b.GetConfig().MongoDB.Database != "" {
		database = b.GetConfig().MongoDB.Database
	}

	if b.GetConfig().MongoDB != nil && b.GetConfig().MongoDB.Client != nil {
		b.client = b.GetConfig().MongoDB.Client
	} else {
		uri := b.GetConfig().ResultBackend
		if !strings.HasPrefix(uri, "mongodb://") && !strings.HasPrefix(uri, "mongodb+srv://") {
			uri = fmt.Sprintf("mongodb://%s", uri)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
		if err != nil {
			return err
		}
		b.client = client
	}

	b.tc = b.client.Database(database).Collection("tasks")

	if err := b.createMongoIndexes(); err != nil {
		log.WARNING.Printf("Failed to create mongodb indexes: %s", err)
	}

	return nil
}

// createMongoIndexes ensures the TTL index expiring stale task states and the
// index used when filtering on state
func (b *Backend) createMongoIndexes() error {
	expireIn := int32(b.GetConfig().ResultsExpireIn)
	if expireIn == 0 {
		expireIn = int32(config.DefaultResultsExpireIn)
	}

	_, err := b.tc.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{
			Keys:    bson.M{"created_at": 1},
			Options: options.Index().SetExpireAfterSeconds(expireIn),
		},
		{
			Keys: bson.M{"state": 1},
		},
	})
	return err
}
