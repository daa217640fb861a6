package chart

import (
	"errors"
	"fmt"
	"sync"
)

// Canvas is the state behind the plotting handle: a current figure being
// drawn and the list of figures already finished. It mirrors the small
// subset of a pyplot-style API that report snippets use.
//
// A Canvas is owned by one snippet run but is safe for concurrent use.
type Canvas struct {
	mu       sync.Mutex
	current  *Figure
	finished []Figure
}

// NewCanvas returns an empty canvas.
func NewCanvas() *Canvas {
	return &Canvas{}
}

func (c *Canvas) fig() *Figure {
	if c.current == nil {
		c.current = &Figure{Kind: KindBar}
	}
	return c.current
}

// NewFigure finishes the current figure, if it has data, and starts a new one.
func (c *Canvas) NewFigure() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flush()
	c.current = &Figure{Kind: KindBar}
}

// Bar adds a bar series.
func (c *Canvas) Bar(x []string, y []float64, label string, colors []string) error {
	return c.add(KindBar, x, y, label, colors)
}

// Plot adds a line series.
func (c *Canvas) Plot(x []string, y []float64, label string) error {
	return c.add(KindLine, x, y, label, nil)
}

// Pie adds a pie series; labels name the wedges.
func (c *Canvas) Pie(values []float64, labels []string) error {
	if len(labels) == 0 {
		labels = make([]string, len(values))
		for i := range values {
			labels[i] = fmt.Sprintf("%d", i+1)
		}
	}
	return c.add(KindPie, labels, values, "", nil)
}

func (c *Canvas) add(kind Kind, x []string, y []float64, label string, colors []string) error {
	if len(x) != len(y) {
		return fmt.Errorf("x and y must have same length, got %d and %d", len(x), len(y))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	f := c.fig()
	f.Kind = kind
	f.Series = append(f.Series, Series{
		Label:  label,
		X:      append([]string(nil), x...),
		Y:      append([]float64(nil), y...),
		Colors: append([]string(nil), colors...),
	})
	return nil
}

// SetTitle sets the current figure's title.
func (c *Canvas) SetTitle(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fig().Title = s
}

// SetXLabel sets the current figure's x-axis label.
func (c *Canvas) SetXLabel(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fig().XLabel = s
}

// SetYLabel sets the current figure's y-axis label.
func (c *Canvas) SetYLabel(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fig().YLabel = s
}

// ShowLegend marks the current figure as having a legend.
func (c *Canvas) ShowLegend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fig().Legend = true
}

// ErrNothingToSave is returned by SaveAs when no data has been drawn.
var ErrNothingToSave = errors.New("nothing drawn to save")

// SaveAs records name on the current figure. Nothing is written; callers
// persist figures through Save.
func (c *Canvas) SaveAs(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil || c.current.Empty() {
		return ErrNothingToSave
	}
	c.current.SavedAs = name
	return nil
}

// Close finishes the current figure.
func (c *Canvas) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flush()
}

func (c *Canvas) flush() {
	if c.current != nil && !c.current.Empty() {
		c.finished = append(c.finished, *c.current)
	}
	c.current = nil
}

// Figures returns every figure with data, including the one still open.
func (c *Canvas) Figures() []Figure {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := append([]Figure(nil), c.finished...)
	if c.current != nil && !c.current.Empty() {
		out = append(out, *c.current)
	}
	return out
}
