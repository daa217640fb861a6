package notify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"slices"
	"strconv"
	"strings"
	"text/template"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jonwraymond/taskexec/task"
)

// Email errors.
var (
	ErrEmailDisabled = errors.New("email service not configured: set the SMTP address and password")
	ErrNotCompleted  = errors.New("task is not completed")
	ErrNoRecipient   = errors.New("recipient address is required")
)

// Message is a plain-text email.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Sender delivers email messages.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: an unconfigured sender returns ErrEmailDisabled.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSender sends mail through an SMTP relay with PLAIN auth. STARTTLS is
// used when the server offers it.
type SMTPSender struct {
	Host     string
	Port     int
	From     string
	Password string
}

// Enabled reports whether the sender has credentials.
func (s SMTPSender) Enabled() bool {
	return s.From != "" && s.Password != ""
}

// Send delivers msg. The context only gates the start of delivery; net/smtp
// has no cancellation.
func (s SMTPSender) Send(ctx context.Context, msg Message) error {
	if !s.Enabled() {
		return ErrEmailDisabled
	}
	if strings.TrimSpace(msg.To) == "" {
		return ErrNoRecipient
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	port := s.Port
	if port == 0 {
		port = 587
	}
	addr := net.JoinHostPort(s.Host, strconv.Itoa(port))
	auth := smtp.PlainAuth("", s.From, s.Password, s.Host)
	if err := smtp.SendMail(addr, auth, s.From, []string{msg.To}, formatMessage(s.From, msg)); err != nil {
		return fmt.Errorf("send email to %s: %w", msg.To, err)
	}
	return nil
}

func formatMessage(from string, msg Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return []byte(b.String())
}

const rule = "----------------------------------------"

var funcs = template.FuncMap{
	"upper": func(v any) string { return strings.ToUpper(fmt.Sprint(v)) },
	"label": func(v any) string {
		return cases.Title(language.English).String(strings.ReplaceAll(fmt.Sprint(v), "_", " "))
	},
	"when": func(ts *time.Time, missing string) string {
		if ts == nil {
			return missing
		}
		return ts.Format("2006-01-02 15:04")
	},
	"truncate": func(s string, n int) string {
		if len(s) <= n {
			return s
		}
		return s[:n] + "..."
	},
	"join": strings.Join,
	"inc":  func(i int) int { return i + 1 },
}

var reminderTemplate = template.Must(template.New("reminder").Funcs(funcs).Parse(
	`Task Reminder

You have {{len .Tasks}} task(s) due in the next {{.Days}} day(s):

{{range $i, $t := .Tasks}}{{inc $i}}. {{$t.Title}}
   Priority: {{upper $t.Priority}}
   Status: {{label $t.Status}}
   Deadline: {{when $t.Deadline "No deadline"}}
{{- if $t.Description}}
   Description: {{truncate $t.Description 100}}
{{- end}}
{{- if $t.Tags}}
   Tags: {{join $t.Tags ", "}}
{{- end}}

{{end}}
---
Task Management Agent`))

var summaryTemplate = template.Must(template.New("summary").Funcs(funcs).Parse(
	`Productivity Summary

Period: Last {{.PeriodDays}} days

Overview:
` + rule + `
Total Tasks: {{.TotalTasks}}
Completion Rate: {{.CompletionRate}}%

Status Breakdown:
  Completed: {{index .Status "completed"}}
  In Progress: {{index .Status "in_progress"}}
  To Do: {{index .Status "todo"}}

Priority Breakdown:
  High: {{index .Priority "high"}}
  Medium: {{index .Priority "medium"}}
  Low: {{index .Priority "low"}}
{{- with .AverageHours}}

Average Completion Time: {{.}} hours
{{- end}}

` + rule + `
Task Management Agent`))

var completionTemplate = template.Must(template.New("completion").Funcs(funcs).Parse(
	`Task Completed!

Great job completing your task!

Task Details:
` + rule + `
Title: {{.Title}}
Priority: {{upper .Priority}}
Completed At: {{when .CompletedAt "N/A"}}
{{if .Description}}
Description: {{.Description}}
{{end}}
{{- if .Tags}}
Tags: {{join .Tags ", "}}
{{end}}
Keep up the great work!

` + rule + `
Task Management Agent`))

func render(t *template.Template, data any) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render %s email: %w", t.Name(), err)
	}
	return b.String(), nil
}

// ReminderEmail builds the reminder for tasks due within days.
func ReminderEmail(to string, tasks []task.Task, days int) (Message, error) {
	body, err := render(reminderTemplate, map[string]any{"Tasks": tasks, "Days": days})
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      to,
		Subject: fmt.Sprintf("Task Reminder: %d task(s) due soon", len(tasks)),
		Body:    body,
	}, nil
}

// ProductivitySummaryEmail builds the summary for m.
func ProductivitySummaryEmail(to string, m task.Metrics) (Message, error) {
	status := make(map[string]int, len(m.StatusBreakdown))
	for k, v := range m.StatusBreakdown {
		status[string(k)] = v
	}
	priority := make(map[string]int, len(m.PriorityBreakdown))
	for k, v := range m.PriorityBreakdown {
		priority[string(k)] = v
	}
	data := map[string]any{
		"PeriodDays":     m.PeriodDays,
		"TotalTasks":     m.TotalTasks,
		"CompletionRate": m.CompletionRate,
		"Status":         status,
		"Priority":       priority,
	}
	if m.AverageCompletionHours != nil {
		data["AverageHours"] = *m.AverageCompletionHours
	}
	body, err := render(summaryTemplate, data)
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      to,
		Subject: fmt.Sprintf("Productivity Summary - Last %d Days", m.PeriodDays),
		Body:    body,
	}, nil
}

// CompletionEmail builds the notification for a completed task.
func CompletionEmail(to string, t task.Task) (Message, error) {
	if t.Status != task.StatusCompleted {
		return Message{}, fmt.Errorf("%w: %s", ErrNotCompleted, t.ID)
	}
	body, err := render(completionTemplate, t)
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: "Task Completed: " + t.Title, Body: body}, nil
}

// UpcomingTasks returns open tasks whose deadline falls within the next
// days, optionally restricted to assignee (case-insensitive), soonest first.
func UpcomingTasks(tasks []task.Task, days int, assignee string, now time.Time) []task.Task {
	cutoff := now.Add(time.Duration(days) * 24 * time.Hour)
	var out []task.Task
	for _, t := range tasks {
		if t.Deadline == nil || t.Status == task.StatusCompleted {
			continue
		}
		if t.Deadline.Before(now) || t.Deadline.After(cutoff) {
			continue
		}
		if assignee != "" && !strings.EqualFold(t.Assignee, assignee) {
			continue
		}
		out = append(out, t.Clone())
	}
	slices.SortStableFunc(out, func(a, b task.Task) int { return a.Deadline.Compare(*b.Deadline) })
	return out
}
