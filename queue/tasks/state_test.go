package tasks_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/matchboxhq/matchbox/queue/tasks"
)

func TestTaskStateIsCompleted(t *testing.T) {
	t.Parallel()

	taskState := &tasks.TaskState{
		TaskUUID: "taskUUID",
		State:    tasks.PendingState,
	}

	assert.False(t, taskState.IsCompleted())

	taskState.State = tasks.StartedState
	assert.False(t, taskState.IsCompleted())

	taskState.State = tasks.SuccessState
	assert.True(t, taskState.IsCompleted())
	assert.True(t, taskState.IsSuccess())

	taskState.State = tasks.FailureState
	assert.True(t, taskState.IsCompleted())
	assert.True(t, taskState.IsFailure())
}

func TestTaskStateConstructors(t *testing.T) {
	t.Parallel()

	signature := &tasks.Signature{
		UUID: "task_1234",
		Name: "parse_resume",
	}

	pending := tasks.NewPendingTaskState(signature)
	assert.Equal(t, "task_1234", pending.TaskUUID)
	assert.Equal(t, "parse_resume", pending.TaskName)
	assert.Equal(t, tasks.PendingState, pending.State)
	assert.False(t, pending.CreatedAt.IsZero())

	started := tasks.NewStartedTaskState(signature)
	assert.Equal(t, tasks.StartedState, started.State)

	success := tasks.NewSuccessTaskState(signature, []*tasks.TaskResult{
		{Type: "string", Value: "done"},
	})
	assert.Equal(t, tasks.SuccessState, success.State)
	assert.Len(t, success.Results, 1)

	failure := tasks.NewFailureTaskState(signature, "something broke")
	assert.Equal(t, tasks.FailureState, failure.State)
	assert.Equal(t, "something broke", failure.Error)
}
