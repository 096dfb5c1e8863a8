package domain

import (
	"strings"
	"time"
)

// Category groups tasks on the dashboard.
type Category string

const (
	CategoryWork     Category = "Work"
	CategoryHealth   Category = "Health"
	CategoryPersonal Category = "Personal"
	CategoryLearning Category = "Learning"
	CategoryOther    Category = "Other"

	DefaultCategory = CategoryWork
)

// Categories lists the accepted categories in display order.
var Categories = []Category{
	CategoryWork,
	CategoryHealth,
	CategoryPersonal,
	CategoryLearning,
	CategoryOther,
}

// ParseCategory matches a category name case-insensitively. Blank input yields the default.
func ParseCategory(raw string) (Category, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultCategory, nil
	}
	for _, c := range Categories {
		if strings.EqualFold(string(c), raw) {
			return c, nil
		}
	}
	return "", WrapError(ErrCodeInvalid, "unknown category "+raw, ErrInvalidCategory)
}

// Task represents a user-owned to-do item.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Category    Category   `json:"category"`
	Description string     `json:"description,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Completed   bool       `json:"completed"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// IsPending reports whether the task still awaits completion.
func (t *Task) IsPending() bool {
	return t != nil && !t.Completed
}

// NormalizedTitle is the key used for duplicate detection among pending tasks.
func (t *Task) NormalizedTitle() string {
	if t == nil {
		return ""
	}
	return NormalizeTitle(t.Title)
}

// NormalizeTitle lowercases and trims a title.
func NormalizeTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// MarkCompleted flips the task to completed. It reports false if it already was.
func (t *Task) MarkCompleted(at time.Time) bool {
	if t == nil || t.Completed {
		return false
	}
	t.Completed = true
	completedAt := at
	t.CompletedAt = &completedAt
	return true
}

// Reopen reverts a completion and clears CompletedAt.
func (t *Task) Reopen() bool {
	if t == nil || !t.Completed {
		return false
	}
	t.Completed = false
	t.CompletedAt = nil
	return true
}

// Clone returns a copy that shares no pointers with t.
func (t Task) Clone() Task {
	out := t
	if t.DueDate != nil {
		due := *t.DueDate
		out.DueDate = &due
	}
	if t.CompletedAt != nil {
		done := *t.CompletedAt
		out.CompletedAt = &done
	}
	return out
}
