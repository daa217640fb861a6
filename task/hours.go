package task

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidMinutes is returned when a time log has a non-positive duration.
var ErrInvalidMinutes = errors.New("minutes must be positive")

// DateLayout is the calendar-day format used by time logs.
const DateLayout = "2006-01-02"

// TimeLog records minutes spent on a task by a user on a given day.
type TimeLog struct {
	ID        string    `json:"id" yaml:"id"`
	TaskID    string    `json:"task_id" yaml:"task_id"`
	UserID    string    `json:"user_id" yaml:"user_id"`
	Minutes   int       `json:"minutes" yaml:"minutes"`
	Date      time.Time `json:"date" yaml:"date"`
	Notes     string    `json:"notes" yaml:"notes"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// NewTimeLog returns a log for taskID with a fresh ID. The date is truncated
// to the calendar day.
func NewTimeLog(taskID, userID string, minutes int, date, now time.Time) TimeLog {
	return TimeLog{
		ID:        NewLogID(),
		TaskID:    taskID,
		UserID:    userID,
		Minutes:   minutes,
		Date:      Day(date),
		CreatedAt: now,
	}
}

// NewLogID returns a time-log identifier of the form WHXXXXXXXX.
func NewLogID() string {
	return "WH" + shortHex(8)
}

// Validate checks the required fields of a time log.
func (l TimeLog) Validate() error {
	if strings.TrimSpace(l.TaskID) == "" {
		return fmt.Errorf("task_id is required")
	}
	if strings.TrimSpace(l.UserID) == "" {
		return fmt.Errorf("user_id is required")
	}
	if l.Minutes <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMinutes, l.Minutes)
	}
	return nil
}

// Day truncates t to midnight in its own location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// ParseDay parses YYYY-MM-DD or an RFC 3339 timestamp into a calendar day.
func ParseDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "T") {
		ts, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, err
		}
		return Day(ts), nil
	}
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	return time.Parse(DateLayout, s)
}

// HoursQuery filters time logs. Zero values match everything; From and To
// are inclusive calendar days.
type HoursQuery struct {
	TaskID string
	UserID string
	From   time.Time
	To     time.Time
}

// Match reports whether l satisfies the query.
func (q HoursQuery) Match(l TimeLog) bool {
	if q.TaskID != "" && l.TaskID != q.TaskID {
		return false
	}
	if q.UserID != "" && l.UserID != q.UserID {
		return false
	}
	day := Day(l.Date)
	if !q.From.IsZero() && day.Before(Day(q.From)) {
		return false
	}
	if !q.To.IsZero() && day.After(Day(q.To)) {
		return false
	}
	return true
}

// HoursRepository stores time logs.
type HoursRepository interface {
	AddLog(ctx context.Context, l TimeLog) (TimeLog, error)
	ListLogs(ctx context.Context, q HoursQuery) ([]TimeLog, error)
}

// TotalMinutes sums the minutes of logs.
func TotalMinutes(logs []TimeLog) int {
	total := 0
	for _, l := range logs {
		total += l.Minutes
	}
	return total
}
