package chart

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	barStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

// RenderText draws fig as horizontal bars no wider than width columns.
// Every series kind renders the same way; pie wedges become bars of their
// share.
func RenderText(fig Figure, width int) (string, error) {
	if fig.Empty() {
		return "", ErrEmptyFigure
	}
	if width < 20 {
		width = 20
	}

	var b strings.Builder
	if fig.Title != "" {
		b.WriteString(titleStyle.Render(fig.Title))
		b.WriteString("\n")
	}

	for _, s := range fig.Series {
		if s.Label != "" && len(fig.Series) > 1 {
			b.WriteString(labelStyle.Render(s.Label))
			b.WriteString("\n")
		}
		writeSeries(&b, fig.Kind, s, width)
	}

	if fig.XLabel != "" || fig.YLabel != "" {
		b.WriteString(labelStyle.Render(strings.TrimSpace(fig.XLabel + " / " + fig.YLabel)))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func writeSeries(b *strings.Builder, kind Kind, s Series, width int) {
	labelWidth := 0
	for _, x := range s.X {
		labelWidth = max(labelWidth, lipgloss.Width(x))
	}

	total, peak := 0.0, 0.0
	for _, y := range s.Y {
		total += y
		peak = math.Max(peak, y)
	}
	scaleTo := peak
	if kind == KindPie {
		scaleTo = total
	}

	barSpace := max(width-labelWidth-12, 1)
	for i, y := range s.Y {
		n := 0
		if scaleTo > 0 && y > 0 {
			n = int(math.Round(y / scaleTo * float64(barSpace)))
		}
		value := formatValue(y)
		if kind == KindPie && total > 0 {
			value = fmt.Sprintf("%.1f%%", y/total*100)
		}
		fmt.Fprintf(b, "%-*s %s %s\n", labelWidth, s.X[i], barStyle.Render(strings.Repeat("█", n)), value)
	}
}

func formatValue(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}
