package a2a

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ErrTaskNotFound is returned when a task ID is unknown to the store.
var ErrTaskNotFound = errors.New("task not found")

// NewTaskID generates a random task identifier.
func NewTaskID() string {
	return uuid.NewString()
}

// TaskStore is a concurrency-safe in-memory store for agent-side task tracking.
type TaskStore struct {
	mu    sync.RWMutex
	tasks map[string]*Task
}

// NewTaskStore returns an initialized TaskStore ready for use.
func NewTaskStore() *TaskStore {
	return &TaskStore{tasks: make(map[string]*Task)}
}

// Create stores a new task. It returns an error if the ID is taken.
func (s *TaskStore) Create(task Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[task.ID]; exists {
		return fmt.Errorf("task %q already exists", task.ID)
	}
	s.tasks[task.ID] = &task
	return nil
}

// Get returns a deep copy of the task with the given ID.
func (s *TaskStore) Get(id string) (*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %q: %w", id, ErrTaskNotFound)
	}
	return copyTask(t), nil
}

// Update applies fn to the stored task under the write lock.
func (s *TaskStore) Update(id string, fn func(*Task)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("task %q: %w", id, ErrTaskNotFound)
	}
	fn(t)
	return nil
}

// Len returns the number of stored tasks.
func (s *TaskStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

// copyTask returns a copy of src whose slices and maps are independent.
func copyTask(src *Task) *Task {
	dst := *src

	if src.Artifacts != nil {
		dst.Artifacts = make([]Artifact, len(src.Artifacts))
		for i, a := range src.Artifacts {
			a.Parts = append([]Part(nil), a.Parts...)
			dst.Artifacts[i] = a
		}
	}
	if src.Metadata != nil {
		dst.Metadata = make(map[string]string, len(src.Metadata))
		for k, v := range src.Metadata {
			dst.Metadata[k] = v
		}
	}
	if src.Status.Message != nil {
		msg := *src.Status.Message
		msg.Parts = append([]Part(nil), msg.Parts...)
		dst.Status.Message = &msg
	}
	return &dst
}
