package domain

import (
	"sort"
	"time"
)

// UserData is the per-user aggregate root holding tasks, habits and the activity log.
// Derived fields are recomputed by the owning store and persisted alongside the data.
type UserData struct {
	Tasks               []Task     `json:"tasks"`
	Habits              []Habit    `json:"habits"`
	Activities          []Activity `json:"activities"`
	ProductivityScore   int        `json:"productivity_score"`
	TotalTasksCompleted int        `json:"total_tasks_completed"`
	CurrentStreak       int        `json:"current_streak"`
	LastActiveDate      *time.Time `json:"last_active_date,omitempty"`
}

// Metrics is the read model served to dashboards.
type Metrics struct {
	ProductivityScore   int `json:"productivity_score"`
	TotalTasksCompleted int `json:"total_tasks_completed"`
	TotalTasks          int `json:"total_tasks"`
	CurrentStreak       int `json:"current_streak"`
}

// NewUserData returns an empty aggregate.
func NewUserData() *UserData {
	return &UserData{
		Tasks:      []Task{},
		Habits:     []Habit{},
		Activities: []Activity{},
	}
}

// Metrics derives the productivity figures from the current tasks as of now.
func (u *UserData) Metrics(now time.Time) Metrics {
	if u == nil {
		return Metrics{}
	}
	completed := 0
	for i := range u.Tasks {
		if u.Tasks[i].Completed {
			completed++
		}
	}
	return Metrics{
		ProductivityScore:   productivityScore(completed, len(u.Tasks)),
		TotalTasksCompleted: completed,
		TotalTasks:          len(u.Tasks),
		CurrentStreak:       completionStreak(u.Tasks, now),
	}
}

// Recompute refreshes the persisted derived fields as of now.
func (u *UserData) Recompute(now time.Time) {
	if u == nil {
		return
	}
	m := u.Metrics(now)
	u.ProductivityScore = m.ProductivityScore
	u.TotalTasksCompleted = m.TotalTasksCompleted
	u.CurrentStreak = m.CurrentStreak
}

// PushActivity prepends an entry and drops anything beyond MaxActivities.
func (u *UserData) PushActivity(a Activity) {
	if u == nil {
		return
	}
	activities := make([]Activity, 0, MaxActivities)
	activities = append(activities, a)
	activities = append(activities, u.Activities...)
	if len(activities) > MaxActivities {
		activities = activities[:MaxActivities]
	}
	u.Activities = activities
}

// FindPendingByTitle returns the index of a pending task with the same normalized title, or -1.
func (u *UserData) FindPendingByTitle(title string) int {
	key := NormalizeTitle(title)
	for i := range u.Tasks {
		if !u.Tasks[i].Completed && u.Tasks[i].NormalizedTitle() == key {
			return i
		}
	}
	return -1
}

// TaskIndex returns the position of the task with the given id, or -1.
func (u *UserData) TaskIndex(id string) int {
	for i := range u.Tasks {
		if u.Tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// HabitIndex returns the position of the habit with the given id, or -1.
func (u *UserData) HabitIndex(id string) int {
	for i := range u.Habits {
		if u.Habits[i].ID == id {
			return i
		}
	}
	return -1
}

// Repair fixes historical corruption after a load: tasks sharing an id collapse into the entry
// with the later CreatedAt (kept at the first occurrence's position), the activity log is bounded
// and derived fields are recomputed as of now. It reports whether anything changed and is idempotent.
func (u *UserData) Repair(now time.Time) bool {
	if u == nil {
		return false
	}
	changed := false
	if u.Tasks == nil {
		u.Tasks = []Task{}
	}
	if u.Habits == nil {
		u.Habits = []Habit{}
	}
	if u.Activities == nil {
		u.Activities = []Activity{}
	}

	positions := make(map[string]int, len(u.Tasks))
	unique := make([]Task, 0, len(u.Tasks))
	for _, t := range u.Tasks {
		if pos, ok := positions[t.ID]; ok {
			if t.CreatedAt.After(unique[pos].CreatedAt) {
				unique[pos] = t
			}
			continue
		}
		positions[t.ID] = len(unique)
		unique = append(unique, t)
	}
	if len(unique) != len(u.Tasks) {
		u.Tasks = unique
		changed = true
	}

	if len(u.Activities) > MaxActivities {
		u.Activities = u.Activities[:MaxActivities]
		changed = true
	}

	before := [3]int{u.ProductivityScore, u.TotalTasksCompleted, u.CurrentStreak}
	u.Recompute(now)
	if before != [3]int{u.ProductivityScore, u.TotalTasksCompleted, u.CurrentStreak} {
		changed = true
	}
	return changed
}

// Clone returns a deep copy safe to hand to persistence or callers.
func (u *UserData) Clone() *UserData {
	if u == nil {
		return nil
	}
	out := &UserData{
		Tasks:               make([]Task, len(u.Tasks)),
		Habits:              make([]Habit, len(u.Habits)),
		Activities:          make([]Activity, len(u.Activities)),
		ProductivityScore:   u.ProductivityScore,
		TotalTasksCompleted: u.TotalTasksCompleted,
		CurrentStreak:       u.CurrentStreak,
	}
	for i := range u.Tasks {
		out.Tasks[i] = u.Tasks[i].Clone()
	}
	for i := range u.Habits {
		out.Habits[i] = u.Habits[i].Clone()
	}
	copy(out.Activities, u.Activities)
	if u.LastActiveDate != nil {
		last := *u.LastActiveDate
		out.LastActiveDate = &last
	}
	return out
}

func productivityScore(completed, total int) int {
	if total < 1 {
		total = 1
	}
	score := completed * 100 / total
	if score > 100 {
		return 100
	}
	return score
}

// completionStreak counts the run of consecutive calendar days with a completion that ends
// today or yesterday, judged in now's location. An older run counts as broken.
func completionStreak(tasks []Task, now time.Time) int {
	seen := make(map[int64]struct{})
	for i := range tasks {
		if tasks[i].Completed && tasks[i].CompletedAt != nil {
			seen[dayNumber(tasks[i].CompletedAt.In(now.Location()))] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return 0
	}
	days := make([]int64, 0, len(seen))
	for d := range seen {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i] > days[j] })
	if dayNumber(now)-days[0] > 1 {
		return 0
	}

	streak := 1
	for i := 1; i < len(days); i++ {
		if days[i-1]-days[i] != 1 {
			break
		}
		streak++
	}
	return streak
}
