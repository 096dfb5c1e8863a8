package task

import (
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/aurano/domain"
	"github.com/fastygo/aurano/pkg/clock"
	"github.com/fastygo/aurano/repository"
	"github.com/fastygo/aurano/usecase"
)

// AddTaskInput is the payload accepted by Store.AddTask. Category is parsed case-insensitively.
type AddTaskInput struct {
	Title       string
	Category    string
	Description string
	DueDate     *time.Time
}

// AddTaskOutput reports the resulting task. Created is false when a pending task
// with the same title already existed; Task is then that existing task.
type AddTaskOutput struct {
	Task    domain.Task
	Created bool
}

// AddHabitInput is the payload accepted by Store.AddHabit.
type AddHabitInput struct {
	Title       string
	Description string
	Frequency   string
}

// Status narrows ListTasks.
type Status string

const (
	StatusAll       Status = ""
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// TaskFilter narrows ListTasks. Zero values match everything.
type TaskFilter struct {
	Category domain.Category
	Query    string
	Status   Status
}

// Deps are shared by every Store opened through a Registry.
type Deps struct {
	Repo   repository.UserDataRepository
	Buffer usecase.SnapshotBuffer
	Clock  clock.Clock
	Logger *zap.Logger
}

func (d Deps) withDefaults() Deps {
	d.Clock = clock.OrSystem(d.Clock)
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return d
}
