package chart

import (
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/jonwraymond/taskexec/task"
)

var priorityColors = []string{"#dc3545", "#ffc107", "#28a745"}

// PriorityDistribution counts tasks per priority, highest first.
func PriorityDistribution(tasks []task.Task) Figure {
	counts := map[task.Priority]float64{}
	for _, t := range tasks {
		counts[t.Priority]++
	}
	s := Series{Label: "tasks", Colors: priorityColors}
	for _, p := range task.Priorities {
		s.X = append(s.X, string(p))
		s.Y = append(s.Y, counts[p])
	}
	return Figure{
		Title:  "Task Distribution by Priority",
		XLabel: "Priority Level",
		YLabel: "Number of Tasks",
		Kind:   KindBar,
		Series: []Series{s},
	}
}

// CompletionRate plots, per creation day within the last days days, the
// percentage of tasks created that day which are completed. Days without
// tasks are omitted.
func CompletionRate(tasks []task.Task, days int, now time.Time) Figure {
	cutoff := now.Add(-time.Duration(days) * 24 * time.Hour)
	total := map[string]int{}
	done := map[string]int{}
	for _, t := range tasks {
		if t.CreatedAt.Before(cutoff) {
			continue
		}
		day := t.CreatedAt.Format(task.DateLayout)
		total[day]++
		if t.Status == task.StatusCompleted {
			done[day]++
		}
	}

	keys := make([]string, 0, len(total))
	for k := range total {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	s := Series{Label: "completion rate"}
	for _, k := range keys {
		rate := float64(done[k]) / float64(total[k]) * 100
		s.X = append(s.X, k)
		s.Y = append(s.Y, math.Round(rate*100)/100)
	}
	return Figure{
		Title:  "Task Completion Rate Over Last " + strconv.Itoa(days) + " Days",
		XLabel: "Date",
		YLabel: "Completion Rate (%)",
		Kind:   KindLine,
		Series: []Series{s},
	}
}
