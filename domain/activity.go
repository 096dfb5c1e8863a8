package domain

import "time"

// ActivityType classifies entries of the recent-activity log.
type ActivityType string

const (
	ActivityTaskAdded             ActivityType = "task_added"
	ActivityTaskCompleted         ActivityType = "task_completed"
	ActivityFocusSessionStarted   ActivityType = "focus_session_started"
	ActivityFocusSessionCompleted ActivityType = "focus_session_completed"
)

// MaxActivities bounds the activity log; older entries are dropped.
const MaxActivities = 10

// Activity is an append-only log entry shown as "recent activity".
type Activity struct {
	ID        string       `json:"id"`
	Type      ActivityType `json:"type"`
	Title     string       `json:"title"`
	Timestamp time.Time    `json:"timestamp"`
}
