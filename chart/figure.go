// Package chart models simple charts drawn by chart snippets and by the
// built-in productivity reports.
//
// Charts are data, not images: a [Figure] records its labels and series and
// can be saved as JSON or rendered as terminal bars.
package chart

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Kind is the chart type.
type Kind string

const (
	KindBar  Kind = "bar"
	KindLine Kind = "line"
	KindPie  Kind = "pie"
)

// ErrEmptyFigure is returned when saving or rendering a figure without data.
var ErrEmptyFigure = errors.New("figure has no series")

// Series is one labelled data sequence.
type Series struct {
	Label  string    `json:"label,omitempty"`
	X      []string  `json:"x"`
	Y      []float64 `json:"y"`
	Colors []string  `json:"colors,omitempty"`
}

// Figure is a complete chart.
type Figure struct {
	Title   string   `json:"title,omitempty"`
	XLabel  string   `json:"xlabel,omitempty"`
	YLabel  string   `json:"ylabel,omitempty"`
	Kind    Kind     `json:"kind"`
	Legend  bool     `json:"legend,omitempty"`
	Series  []Series `json:"series"`
	SavedAs string   `json:"saved_as,omitempty"`
}

// Empty reports whether the figure has no data points.
func (f Figure) Empty() bool {
	for _, s := range f.Series {
		if len(s.Y) > 0 {
			return false
		}
	}
	return true
}

// Save writes fig as indented JSON to dir/name. A missing ".json" extension
// is added and any other extension replaced. It returns the written path.
func Save(dir, name string, fig Figure) (string, error) {
	if fig.Empty() {
		return "", ErrEmptyFigure
	}
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "chart"
	}
	name = strings.TrimSuffix(name, filepath.Ext(name)) + ".json"

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create chart dir: %w", err)
	}
	data, err := json.MarshalIndent(fig, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode figure: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write figure: %w", err)
	}
	return path, nil
}

// Load reads a figure written by Save.
func Load(path string) (Figure, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Figure{}, err
	}
	var fig Figure
	if err := json.Unmarshal(data, &fig); err != nil {
		return Figure{}, fmt.Errorf("decode figure %s: %w", path, err)
	}
	return fig, nil
}
