package task

import (
	"math"
	"strings"
	"time"
)

// Metrics summarizes productivity over a trailing window.
type Metrics struct {
	PeriodDays             int              `json:"period_days" yaml:"period_days"`
	Assignee               string           `json:"assignee" yaml:"assignee"`
	TotalTasks             int              `json:"total_tasks" yaml:"total_tasks"`
	StatusBreakdown        map[Status]int   `json:"status_breakdown" yaml:"status_breakdown"`
	PriorityBreakdown      map[Priority]int `json:"priority_breakdown" yaml:"priority_breakdown"`
	CompletionRate         float64          `json:"completion_rate" yaml:"completion_rate"`
	AverageCompletionHours *float64         `json:"average_completion_hours" yaml:"average_completion_hours"`
	LoggedMinutes          int              `json:"logged_minutes,omitempty" yaml:"logged_minutes,omitempty"`
}

// ComputeMetrics reports on tasks created within the last days days. An empty
// assignee covers everyone and is reported as "all".
func ComputeMetrics(tasks []Task, assignee string, days int, now time.Time) Metrics {
	m := Metrics{
		PeriodDays:        days,
		Assignee:          assignee,
		StatusBreakdown:   map[Status]int{},
		PriorityBreakdown: map[Priority]int{},
	}
	if m.Assignee == "" {
		m.Assignee = "all"
	}
	for _, s := range Statuses {
		m.StatusBreakdown[s] = 0
	}
	for _, p := range Priorities {
		m.PriorityBreakdown[p] = 0
	}

	cutoff := now.Add(-time.Duration(days) * 24 * time.Hour)
	var hours []float64
	for _, t := range tasks {
		if assignee != "" && !strings.EqualFold(t.Assignee, assignee) {
			continue
		}
		if t.CreatedAt.Before(cutoff) {
			continue
		}
		m.TotalTasks++
		m.StatusBreakdown[t.Status]++
		m.PriorityBreakdown[t.Priority]++
		if t.Status == StatusCompleted && t.CompletedAt != nil && !t.CreatedAt.IsZero() {
			hours = append(hours, t.CompletedAt.Sub(t.CreatedAt).Hours())
		}
	}

	if m.TotalTasks > 0 {
		rate := float64(m.StatusBreakdown[StatusCompleted]) / float64(m.TotalTasks) * 100
		m.CompletionRate = round2(rate)
	}
	if len(hours) > 0 {
		sum := 0.0
		for _, h := range hours {
			sum += h
		}
		avg := round2(sum / float64(len(hours)))
		m.AverageCompletionHours = &avg
	}
	return m
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
