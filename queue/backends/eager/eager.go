package eager

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/matchboxhq/matchbox/config"
	"github.com/matchboxhq/matchbox/queue/backends/iface"
	"github.com/matchboxhq/matchbox/queue/common"
	"github.com/matchboxhq/matchbox/queue/tasks"
)

// Backend represents an "eager" in-memory result backend
type Backend struct {
	common.Backend
	tasks      map[string][]byte
	stateMutex sync.Mutex
}

// New creates EagerBackend instance
func New() iface.Backend {
	return &Backend{
		Backend: common.NewBackend(new(config.Config)),
		tasks:   make(map[string][]byte),
	}
}

// SetStatePending updates task state to PENDING
func (b *Backend) SetStatePending(signature *tasks.Signature) error {
	state := tasks.NewPendingTaskState(signature)
	return b.updateState(state)
}

// SetStateStarted updates task state to STARTED
func (b *Backend) SetStateStarted(signature *tasks.Signature) error {
	state := tasks.NewStartedTaskState(signature)
	return b.updateState(state)
}

// SetStateSuccess updates task state to SUCCESS
func (b *Backend) SetStateSuccess(signature *tasks.Signature, results []*tasks.TaskResult) error {
	state := tasks.NewSuccessTaskState(signature, results)
	return b.updateState(state)
}

// SetStateFailure updates task state to FAILURE
func (b *Backend) SetStateFailure(signature *tasks.Signature, err string) error {
	state := tasks.NewFailureTaskState(signature, err)
	return b.updateState(state)
}

// GetState returns the latest task state
func (b *Backend) GetState(taskUUID string) (*tasks.TaskState, error) {
	b.stateMutex.Lock()
	taskStateBytes, ok := b.tasks[taskUUID]
	b.stateMutex.Unlock()
	if !ok {
		return nil, iface.ErrStateNotFound
	}

	state := new(tasks.TaskState)
	decoder := json.NewDecoder(bytes.NewReader(taskStateBytes))
	decoder.UseNumber()
	if err := decoder.Decode(state); err != nil {
		return nil, fmt.Errorf("Failed to unmarshal task state %v", b)
	}

	return state, nil
}

// PurgeState deletes stored task state
func (b *Backend) PurgeState(taskUUID string) error {
	b.stateMutex.Lock()
	defer b.stateMutex.Unlock()

	_, ok := b.tasks[taskUUID]
	if !ok {
		return iface.ErrStateNotFound
	}

	delete(b.tasks, taskUUID)
	return nil
}

func (b *Backend) updateState(s *tasks.TaskState) error {
	// simulate the behavior of json marshal/unmarshal
	b.stateMutex.Lock()
	defer b.stateMutex.Unlock()

	// Completed states are final, a late write must not regress them
	if existingBytes, ok := b.tasks[s.TaskUUID]; ok {
		existing := new(tasks.TaskState)
		if err := json.Unmarshal(existingBytes, existing); err == nil && existing.IsCompleted() {
			return nil
		}
	}

	msg, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("Marshal task state error: %v", err)
	}

	b.tasks[s.TaskUUID] = msg
	return nil
}
