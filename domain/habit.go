package domain

import (
	"strings"
	"time"
)

// HabitFrequency is how often a habit is meant to be repeated.
type HabitFrequency string

const (
	HabitDaily   HabitFrequency = "daily"
	HabitWeekly  HabitFrequency = "weekly"
	HabitMonthly HabitFrequency = "monthly"
)

// ParseHabitFrequency accepts daily, weekly or monthly. Blank input means daily.
func ParseHabitFrequency(raw string) (HabitFrequency, error) {
	switch HabitFrequency(strings.ToLower(strings.TrimSpace(raw))) {
	case "", HabitDaily:
		return HabitDaily, nil
	case HabitWeekly:
		return HabitWeekly, nil
	case HabitMonthly:
		return HabitMonthly, nil
	default:
		return "", WrapError(ErrCodeInvalid, "unknown habit frequency "+raw, ErrInvalidPayload)
	}
}

// Habit is a recurring intention with a completion streak.
type Habit struct {
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	Description   string         `json:"description,omitempty"`
	Frequency     HabitFrequency `json:"frequency"`
	Streak        int            `json:"streak"`
	LastCompleted *time.Time     `json:"last_completed,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// Complete records a completion at the given instant.
// Same calendar day keeps the streak, the following day extends it, anything else restarts it at 1.
func (h *Habit) Complete(at time.Time) {
	if h == nil {
		return
	}
	switch {
	case h.LastCompleted == nil:
		h.Streak = 1
	default:
		gap := dayNumber(at) - dayNumber(h.LastCompleted.In(at.Location()))
		switch gap {
		case 0:
			if h.Streak == 0 {
				h.Streak = 1
			}
		case 1:
			h.Streak++
		default:
			h.Streak = 1
		}
	}
	last := at
	h.LastCompleted = &last
}

// Clone returns a copy that shares no pointers with h.
func (h Habit) Clone() Habit {
	out := h
	if h.LastCompleted != nil {
		last := *h.LastCompleted
		out.LastCompleted = &last
	}
	return out
}

// dayNumber maps the calendar date of t (in its own location) to a day count.
func dayNumber(t time.Time) int64 {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400
}
