package task

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fastygo/aurano/domain"
)

const focusSessionTitle = "Focus session"

// Store owns the UserData aggregate of one user. All mutations are serialized by mu
// and persisted before the call returns.
type Store struct {
	userID string
	deps   Deps

	mu       sync.Mutex
	data     *domain.UserData
	buffered bool
}

func newStore(userID string, data *domain.UserData, deps Deps) *Store {
	if data == nil {
		data = domain.NewUserData()
	}
	return &Store{
		userID: userID,
		deps:   deps.withDefaults(),
		data:   data,
	}
}

// UserID returns the identity the store is bound to.
func (s *Store) UserID() string {
	return s.userID
}

// AddTask appends a new pending task unless one with the same normalized title is already pending.
func (s *Store) AddTask(ctx context.Context, in AddTaskInput) (AddTaskOutput, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return AddTaskOutput{}, domain.ErrEmptyTitle
	}
	category, err := domain.ParseCategory(in.Category)
	if err != nil {
		return AddTaskOutput{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if idx := s.data.FindPendingByTitle(title); idx >= 0 {
		s.deps.Logger.Debug("duplicate pending task ignored",
			zap.String("user_id", s.userID),
			zap.String("task_id", s.data.Tasks[idx].ID))
		return AddTaskOutput{Task: s.data.Tasks[idx].Clone()}, nil
	}

	now := s.deps.Clock.Now()
	task := domain.Task{
		ID:          uuid.NewString(),
		Title:       title,
		Category:    category,
		Description: strings.TrimSpace(in.Description),
		CreatedAt:   now,
	}
	if in.DueDate != nil {
		due := *in.DueDate
		task.DueDate = &due
	}

	s.data.Tasks = append(s.data.Tasks, task)
	s.data.PushActivity(newActivity(domain.ActivityTaskAdded, fmt.Sprintf(`Added "%s"`, title), now))
	s.commit(ctx, now)
	return AddTaskOutput{Task: task.Clone(), Created: true}, nil
}

// CompleteTask marks the task completed. It reports false when the id is unknown.
// Completing an already completed task changes nothing.
func (s *Store) CompleteTask(ctx context.Context, id string) (domain.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.data.TaskIndex(id)
	if idx < 0 {
		return domain.Task{}, false
	}
	now := s.deps.Clock.Now()
	task := &s.data.Tasks[idx]
	if !task.MarkCompleted(now) {
		return task.Clone(), true
	}
	s.data.PushActivity(newActivity(domain.ActivityTaskCompleted, fmt.Sprintf(`Completed "%s"`, task.Title), now))
	out := task.Clone()
	s.commit(ctx, now)
	return out, true
}

// ReopenTask reverts a completion. It refuses when another pending task already uses the title.
func (s *Store) ReopenTask(ctx context.Context, id string) (domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.data.TaskIndex(id)
	if idx < 0 {
		return domain.Task{}, domain.ErrTaskNotFound
	}
	task := &s.data.Tasks[idx]
	if !task.Completed {
		return task.Clone(), nil
	}
	if s.data.FindPendingByTitle(task.Title) >= 0 {
		return domain.Task{}, domain.ErrDuplicatePendingTask
	}
	task.Reopen()
	out := task.Clone()
	s.commit(ctx, s.deps.Clock.Now())
	return out, nil
}

// DeleteTask removes the task. Deletions are not logged as activities.
func (s *Store) DeleteTask(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.data.TaskIndex(id)
	if idx < 0 {
		return false
	}
	s.data.Tasks = append(s.data.Tasks[:idx], s.data.Tasks[idx+1:]...)
	s.commit(ctx, s.deps.Clock.Now())
	return true
}

// ListTasks returns copies of the tasks matching filter, in insertion order.
func (s *Store) ListTasks(filter TaskFilter) []domain.Task {
	query := strings.ToLower(strings.TrimSpace(filter.Query))

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Task, 0, len(s.data.Tasks))
	for i := range s.data.Tasks {
		t := &s.data.Tasks[i]
		if filter.Category != "" && t.Category != filter.Category {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(t.Title), query) {
			continue
		}
		switch filter.Status {
		case StatusPending:
			if t.Completed {
				continue
			}
		case StatusCompleted:
			if !t.Completed {
				continue
			}
		}
		out = append(out, t.Clone())
	}
	return out
}

// RecordFocusSession logs the start or the completion of a focus session.
func (s *Store) RecordFocusSession(ctx context.Context, completed bool) domain.Activity {
	kind := domain.ActivityFocusSessionStarted
	if completed {
		kind = domain.ActivityFocusSessionCompleted
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.deps.Clock.Now()
	activity := newActivity(kind, focusSessionTitle, now)
	s.data.PushActivity(activity)
	s.commit(ctx, now)
	return activity
}

// AddHabit creates a habit with a zero streak.
func (s *Store) AddHabit(ctx context.Context, in AddHabitInput) (domain.Habit, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return domain.Habit{}, domain.ErrEmptyTitle
	}
	frequency, err := domain.ParseHabitFrequency(in.Frequency)
	if err != nil {
		return domain.Habit{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.deps.Clock.Now()
	habit := domain.Habit{
		ID:          uuid.NewString(),
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Frequency:   frequency,
		CreatedAt:   now,
	}
	s.data.Habits = append(s.data.Habits, habit)
	s.commit(ctx, now)
	return habit.Clone(), nil
}

// CompleteHabit records a completion and updates the streak.
func (s *Store) CompleteHabit(ctx context.Context, id string) (domain.Habit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.data.HabitIndex(id)
	if idx < 0 {
		return domain.Habit{}, domain.ErrHabitNotFound
	}
	now := s.deps.Clock.Now()
	habit := &s.data.Habits[idx]
	habit.Complete(now)
	out := habit.Clone()
	s.commit(ctx, now)
	return out, nil
}

// DeleteHabit removes the habit. It reports false when the id is unknown.
func (s *Store) DeleteHabit(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.data.HabitIndex(id)
	if idx < 0 {
		return false
	}
	s.data.Habits = append(s.data.Habits[:idx], s.data.Habits[idx+1:]...)
	s.commit(ctx, s.deps.Clock.Now())
	return true
}

// Metrics derives the productivity figures from the current state.
func (s *Store) Metrics() domain.Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.Metrics(s.deps.Clock.Now())
}

// Snapshot returns a deep copy of the aggregate with derived fields as of now.
func (s *Store) Snapshot() domain.UserData {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.data.Clone()
	out.Recompute(s.deps.Clock.Now())
	return *out
}

// Flush writes the current state to the repository and clears any buffered snapshot
// once the write succeeds. It reports whether the repository accepted the write.
func (s *Store) Flush(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persist(ctx, true)
}

// commit finishes a mutation: derived fields, last activity and persistence.
// Callers hold mu.
func (s *Store) commit(ctx context.Context, now time.Time) {
	last := now
	s.data.LastActiveDate = &last
	s.data.Recompute(now)
	s.persist(ctx, false)
}

func (s *Store) persist(ctx context.Context, force bool) bool {
	ctx = context.WithoutCancel(ctx)
	snapshot := s.data.Clone()
	log := s.deps.Logger.With(zap.String("user_id", s.userID))

	if s.deps.Repo == nil {
		return false
	}
	if err := s.deps.Repo.Save(ctx, s.userID, snapshot); err != nil {
		log.Error("failed to persist user data", zap.Error(err))
		if s.deps.Buffer == nil {
			return false
		}
		if err := s.deps.Buffer.Stash(ctx, s.userID, snapshot); err != nil {
			log.Error("failed to buffer user data snapshot", zap.Error(err))
			return false
		}
		s.buffered = true
		log.Warn("user data snapshot buffered")
		return false
	}

	if s.deps.Buffer != nil && (s.buffered || force) {
		if err := s.deps.Buffer.Discard(ctx, s.userID); err != nil {
			log.Warn("failed to discard buffered snapshot", zap.Error(err))
			return true
		}
		s.buffered = false
	}
	return true
}

func newActivity(kind domain.ActivityType, title string, at time.Time) domain.Activity {
	return domain.Activity{
		ID:        uuid.NewString(),
		Type:      kind,
		Title:     title,
		Timestamp: at,
	}
}
