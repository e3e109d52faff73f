package a2a

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskStore_CreateAndGet(t *testing.T) {
	store := NewTaskStore()
	task := Task{
		ID:     "t-1",
		Status: TaskStatus{State: TaskStateSubmitted},
	}
	require.NoError(t, store.Create(task))

	got, err := store.Get("t-1")
	require.NoError(t, err)
	assert.Equal(t, "t-1", got.ID)
	assert.Equal(t, TaskStateSubmitted, got.Status.State)
	assert.Equal(t, 1, store.Len())
}

func TestTaskStore_CreateDuplicate(t *testing.T) {
	store := NewTaskStore()
	require.NoError(t, store.Create(Task{ID: "dup"}))

	err := store.Create(Task{ID: "dup"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestTaskStore_NotFound(t *testing.T) {
	store := NewTaskStore()

	_, err := store.Get("missing")
	assert.True(t, errors.Is(err, ErrTaskNotFound))

	err = store.Update("missing", func(*Task) {})
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestTaskStore_GetReturnsCopy(t *testing.T) {
	store := NewTaskStore()
	require.NoError(t, store.Create(Task{
		ID:        "t-1",
		Artifacts: []Artifact{{ArtifactID: "a", Parts: []Part{TextPart("original")}}},
		Metadata:  map[string]string{"k": "v"},
		Status:    TaskStatus{Message: &Message{Parts: []Part{TextPart("status")}}},
	}))

	got, err := store.Get("t-1")
	require.NoError(t, err)
	got.Artifacts[0].Parts[0].Text = "mutated"
	got.Metadata["k"] = "mutated"
	got.Status.Message.Parts[0].Text = "mutated"

	again, err := store.Get("t-1")
	require.NoError(t, err)
	assert.Equal(t, "original", again.Artifacts[0].Parts[0].Text)
	assert.Equal(t, "v", again.Metadata["k"])
	assert.Equal(t, "status", again.Status.Message.Parts[0].Text)
}

func TestTaskStore_Update(t *testing.T) {
	store := NewTaskStore()
	require.NoError(t, store.Create(Task{ID: "t-1", Status: TaskStatus{State: TaskStateSubmitted}}))

	require.NoError(t, store.Update("t-1", func(task *Task) {
		task.Status.State = TaskStateCompleted
		task.Artifacts = append(task.Artifacts, Artifact{Parts: []Part{TextPart("done")}})
	}))

	got, err := store.Get("t-1")
	require.NoError(t, err)
	assert.Equal(t, TaskStateCompleted, got.Status.State)
	assert.Equal(t, "done", got.Text())
}

func TestTaskStore_Concurrent(t *testing.T) {
	store := NewTaskStore()
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("t-%d", i)
			assert.NoError(t, store.Create(Task{ID: id}))
			assert.NoError(t, store.Update(id, func(task *Task) {
				task.Status.State = TaskStateWorking
			}))
			_, err := store.Get(id)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, store.Len())
}

func TestNewTaskID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for range 100 {
		id := NewTaskID()
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestTaskState_IsTerminal(t *testing.T) {
	assert.False(t, TaskStateSubmitted.IsTerminal())
	assert.False(t, TaskStateWorking.IsTerminal())
	assert.True(t, TaskStateCompleted.IsTerminal())
	assert.True(t, TaskStateFailed.IsTerminal())
	assert.True(t, TaskStateCanceled.IsTerminal())
}
