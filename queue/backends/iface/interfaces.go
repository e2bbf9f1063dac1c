package iface

import (
	"errors"

	"github.com/matchboxhq/matchbox/queue/tasks"
)

// ErrStateNotFound is returned from GetState when there is no record of the
// task UUID. Callers polling for results treat it as still pending.
var ErrStateNotFound = errors.New("Task state not found")

// Backend - a common interface for all result backends
type Backend interface {
	// Setting / getting task state
	SetStatePending(signature *tasks.Signature) error
	SetStateStarted(signature *tasks.Signature) error
	SetStateSuccess(signature *tasks.Signature, results []*tasks.TaskResult) error
	SetStateFailure(signature *tasks.Signature, err string) error
	GetState(taskUUID string) (*tasks.TaskState, error)

	// Purging stored task states
	PurgeState(taskUUID string) error
}
