package refresh

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the lifecycle state of a triggered refresh.
type TaskStatus string

const (
	TaskPending TaskStatus = "pending"
	TaskRunning TaskStatus = "running"
	TaskDone    TaskStatus = "done"
	TaskFailed  TaskStatus = "failed"
)

// Task tracks one refresh request so callers can poll its outcome.
type Task struct {
	ID          string     `json:"task_id"`
	Status      TaskStatus `json:"state"`
	RequestedBy string     `json:"requested_by"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// keepTasks bounds the registry so long-running daemons do not grow it
// without limit.
const keepTasks = 128

// taskRegistry is an in-memory task table. Tasks do not survive restarts.
type taskRegistry struct {
	mu    sync.Mutex
	tasks map[string]*Task
	order []string
}

func newTaskRegistry() *taskRegistry {
	return &taskRegistry{tasks: make(map[string]*Task)}
}

func (r *taskRegistry) create(requestedBy string) *Task {
	r.mu.Lock()
	defer r.mu.Unlock()

	task := &Task{
		ID:          uuid.NewString(),
		Status:      TaskPending,
		RequestedBy: requestedBy,
		CreatedAt:   time.Now().UTC(),
	}

	r.tasks[task.ID] = task
	r.order = append(r.order, task.ID)

	for len(r.order) > keepTasks {
		delete(r.tasks, r.order[0])
		r.order = r.order[1:]
	}

	return task
}

// get returns a copy so callers never race the scheduler's updates.
func (r *taskRegistry) get(id string) (Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *task, true
}

func (r *taskRegistry) setRunning(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if task, ok := r.tasks[id]; ok {
		task.Status = TaskRunning
	}
}

func (r *taskRegistry) finish(id string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[id]
	if !ok {
		return
	}

	now := time.Now().UTC()
	task.FinishedAt = &now
	if err != nil {
		task.Status = TaskFailed
		task.Error = err.Error()
	} else {
		task.Status = TaskDone
	}
}
