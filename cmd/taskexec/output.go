package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

var (
	styleHeader = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	styleCell   = lipgloss.NewStyle().Padding(0, 1)
	styleOK     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	styleError  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	styleMuted  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	priorityStyles = map[string]lipgloss.Style{
		"high":   lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
		"medium": lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		"low":    lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
	}
)

var taskColumns = []string{"ID", "TITLE", "PRIORITY", "STATUS", "DEADLINE", "ASSIGNEE"}

// printer writes command results in the selected format.
type printer struct {
	w      io.Writer
	format string
}

func newPrinter(w io.Writer, format string) (*printer, error) {
	switch f := strings.ToLower(strings.TrimSpace(format)); f {
	case "", formatText:
		return &printer{w: w, format: formatText}, nil
	case formatJSON, formatYAML:
		return &printer{w: w, format: f}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q: want text, json, or yaml", format)
	}
}

// print writes v. Text output renders task lists as tables and messages as
// single lines; anything else falls back to YAML.
func (p *printer) print(v any) error {
	switch p.format {
	case formatJSON:
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		return p.yaml(v)
	default:
		return p.text(v)
	}
}

func (p *printer) yaml(v any) error {
	enc := yaml.NewEncoder(p.w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func (p *printer) text(v any) error {
	m, ok := v.(map[string]any)
	if !ok {
		return p.yaml(v)
	}
	printed := false
	if msg, ok := m["message"].(string); ok && msg != "" {
		p.line(styleOK.Render(msg))
		printed = true
	}
	switch {
	case m["tasks"] != nil:
		rows, _ := m["tasks"].([]map[string]any)
		if len(rows) == 0 {
			p.line(styleMuted.Render("no tasks"))
			return nil
		}
		p.line(taskTable(rows))
		return nil
	case isTask(m):
		p.line(taskTable([]map[string]any{m}))
		return nil
	case printed:
		return nil
	}
	return p.yaml(v)
}

func (p *printer) line(s string) {
	fmt.Fprintln(p.w, s)
}

func isTask(m map[string]any) bool {
	_, id := m["task_id"]
	_, title := m["title"]
	return id && title
}

// taskTable renders task maps as a bordered table.
func taskTable(rows []map[string]any) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(taskColumns...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styleHeader
			}
			return styleCell
		})
	for _, r := range rows {
		priority := cell(r["priority"])
		if s, ok := priorityStyles[priority]; ok {
			priority = s.Render(priority)
		}
		t.Row(cell(r["task_id"]), cell(r["title"]), priority, cell(r["status"]), cell(r["deadline"]), cell(r["assignee"]))
	}
	return t.String()
}

// kvTable renders a flat map as sorted key/value rows.
func kvTable(m map[string]any) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	t := table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(_, _ int) lipgloss.Style { return styleCell })
	for _, k := range keys {
		t.Row(k, cell(m[k]))
	}
	return t.String()
}

func cell(v any) string {
	if v == nil {
		return "-"
	}
	s := fmt.Sprint(v)
	if s == "" {
		return "-"
	}
	return s
}
