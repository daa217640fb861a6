package sandbox

import (
	"fmt"
	"strconv"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/jonwraymond/taskexec/chart"
)

// plotNoops are accepted for compatibility and ignored.
var plotNoops = []string{
	"annotate", "axis", "grid", "show", "subplots_adjust", "text",
	"tight_layout", "xlim", "xticks", "ylim", "yticks",
}

// newPlotModule returns the plt binding drawing onto canvas. Styling
// keyword arguments are accepted and ignored.
func newPlotModule(canvas *chart.Canvas) *starlarkstruct.Module {
	members := starlark.StringDict{
		"figure": plotBuiltin("figure", func(plotArgs) error {
			canvas.NewFigure()
			return nil
		}),
		"bar":  plotBuiltin("bar", func(a plotArgs) error { return plotBar(canvas, a) }),
		"barh": plotBuiltin("barh", func(a plotArgs) error { return plotBar(canvas, a) }),
		"plot": plotBuiltin("plot", func(a plotArgs) error { return plotLine(canvas, a) }),
		"pie": plotBuiltin("pie", func(a plotArgs) error {
			values, err := a.floatsAt(0, "x")
			if err != nil {
				return err
			}
			var names []string
			if l, ok := a.kw["labels"]; ok && l != starlark.None {
				if names, err = labels(l); err != nil {
					return err
				}
			}
			return canvas.Pie(values, names)
		}),
		"title": plotBuiltin("title", func(a plotArgs) error {
			s, err := a.stringAt(0, "label")
			if err != nil {
				return err
			}
			canvas.SetTitle(s)
			return nil
		}),
		"xlabel": plotBuiltin("xlabel", func(a plotArgs) error {
			s, err := a.stringAt(0, "xlabel")
			if err != nil {
				return err
			}
			canvas.SetXLabel(s)
			return nil
		}),
		"ylabel": plotBuiltin("ylabel", func(a plotArgs) error {
			s, err := a.stringAt(0, "ylabel")
			if err != nil {
				return err
			}
			canvas.SetYLabel(s)
			return nil
		}),
		"legend": plotBuiltin("legend", func(plotArgs) error {
			canvas.ShowLegend()
			return nil
		}),
		"savefig": plotBuiltin("savefig", func(a plotArgs) error {
			name, err := a.stringAt(0, "fname")
			if err != nil {
				return err
			}
			return canvas.SaveAs(name)
		}),
		"close": plotBuiltin("close", func(plotArgs) error {
			canvas.Close()
			return nil
		}),
	}
	for _, name := range plotNoops {
		members[name] = plotBuiltin(name, func(plotArgs) error { return nil })
	}
	return &starlarkstruct.Module{Name: "plt", Members: members}
}

type plotArgs struct {
	pos []starlark.Value
	kw  map[string]starlark.Value
}

func (a plotArgs) arg(i int, name string) (starlark.Value, bool) {
	if i < len(a.pos) {
		return a.pos[i], true
	}
	v, ok := a.kw[name]
	return v, ok
}

func (a plotArgs) floatsAt(i int, name string) ([]float64, error) {
	v, ok := a.arg(i, name)
	if !ok {
		return nil, fmt.Errorf("missing argument %s", name)
	}
	return floats(v)
}

func (a plotArgs) labelsAt(i int, name string) ([]string, error) {
	v, ok := a.arg(i, name)
	if !ok {
		return nil, fmt.Errorf("missing argument %s", name)
	}
	return labels(v)
}

func (a plotArgs) stringAt(i int, name string) (string, error) {
	v, ok := a.arg(i, name)
	if !ok {
		return "", fmt.Errorf("missing argument %s", name)
	}
	if s, ok := starlark.AsString(v); ok {
		return s, nil
	}
	return v.String(), nil
}

func (a plotArgs) label() string {
	if v, ok := a.kw["label"]; ok {
		if s, ok := starlark.AsString(v); ok {
			return s
		}
	}
	return ""
}

func plotBuiltin(name string, fn func(plotArgs) error) *starlark.Builtin {
	return starlark.NewBuiltin(name, func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		a := plotArgs{pos: args, kw: make(map[string]starlark.Value, len(kwargs))}
		for _, kv := range kwargs {
			k, _ := starlark.AsString(kv[0])
			a.kw[k] = kv[1]
		}
		if err := fn(a); err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		return starlark.None, nil
	})
}

func plotBar(canvas *chart.Canvas, a plotArgs) error {
	x, err := a.labelsAt(0, "x")
	if err != nil {
		return err
	}
	y, err := a.floatsAt(1, "height")
	if err != nil {
		return err
	}
	var colors []string
	if c, ok := a.kw["color"]; ok {
		if s, ok := starlark.AsString(c); ok {
			colors = []string{s}
		} else if colors, err = labels(c); err != nil {
			return err
		}
	}
	return canvas.Bar(x, y, a.label(), colors)
}

// plotLine accepts plot(y) and plot(x, y).
func plotLine(canvas *chart.Canvas, a plotArgs) error {
	if len(a.pos) == 1 {
		y, err := a.floatsAt(0, "y")
		if err != nil {
			return err
		}
		x := make([]string, len(y))
		for i := range y {
			x[i] = strconv.Itoa(i)
		}
		return canvas.Plot(x, y, a.label())
	}
	x, err := a.labelsAt(0, "x")
	if err != nil {
		return err
	}
	y, err := a.floatsAt(1, "y")
	if err != nil {
		return err
	}
	return canvas.Plot(x, y, a.label())
}

// newTableModule returns the pd binding.
func newTableModule() *starlarkstruct.Module {
	return &starlarkstruct.Module{
		Name: "pd",
		Members: starlark.StringDict{
			"DataFrame": starlark.NewBuiltin("DataFrame", makeDataFrame),
		},
	}
}

// makeDataFrame builds a table from a list of dicts or task values.
func makeDataFrame(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var data starlark.Value = starlark.NewList(nil)
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0, &data); err != nil {
		return nil, err
	}
	vals, err := iterValues(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	rows := make([]map[string]any, len(vals))
	for i, v := range vals {
		row, ok := toGo(v).(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s: row %d: got %s, want dict", b.Name(), i, v.Type())
		}
		rows[i] = row
	}
	return &tableValue{t: chart.NewTable(rows)}, nil
}

// tableValue is a DataFrame-like view over a chart.Table. Indexing by
// column name yields the column as a list; iteration yields column names.
type tableValue struct {
	t *chart.Table
}

var (
	_ starlark.HasAttrs = (*tableValue)(nil)
	_ starlark.Mapping  = (*tableValue)(nil)
	_ starlark.Sequence = (*tableValue)(nil)
)

func (tv *tableValue) String() string {
	return fmt.Sprintf("DataFrame(%d rows x %d columns)", tv.t.Len(), len(tv.t.Columns))
}
func (tv *tableValue) Type() string          { return "DataFrame" }
func (tv *tableValue) Freeze()               {}
func (tv *tableValue) Truth() starlark.Bool  { return tv.t.Len() > 0 }
func (tv *tableValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: %s", tv.Type()) }
func (tv *tableValue) Len() int              { return tv.t.Len() }

func (tv *tableValue) Iterate() starlark.Iterator {
	cols := make([]starlark.Value, len(tv.t.Columns))
	for i, c := range tv.t.Columns {
		cols[i] = starlark.String(c)
	}
	return starlark.Tuple(cols).Iterate()
}

func (tv *tableValue) Get(k starlark.Value) (starlark.Value, bool, error) {
	name, ok := starlark.AsString(k)
	if !ok {
		return nil, false, fmt.Errorf("DataFrame index: got %s, want string", k.Type())
	}
	col, err := tv.t.Column(name)
	if err != nil {
		return nil, false, nil
	}
	return fromGo(col), true, nil
}

func (tv *tableValue) AttrNames() []string {
	return []string{"columns", "groupby_count", "shape", "to_dict", "value_counts"}
}

func (tv *tableValue) Attr(name string) (starlark.Value, error) {
	switch name {
	case "columns":
		return fromGo(tv.t.Columns), nil
	case "shape":
		return starlark.Tuple{starlark.MakeInt(tv.t.Len()), starlark.MakeInt(len(tv.t.Columns))}, nil
	case "to_dict":
		return starlark.NewBuiltin(name, func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
			rows := make([]any, len(tv.t.Rows))
			for i, r := range tv.t.Rows {
				rows[i] = r
			}
			return fromGo(rows), nil
		}).BindReceiver(tv), nil
	case "value_counts", "groupby_count":
		return starlark.NewBuiltin(name, func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var col string
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &col); err != nil {
				return nil, err
			}
			count := tv.t.ValueCounts
			if b.Name() == "groupby_count" {
				count = tv.t.GroupCount
			}
			counts, err := count(col)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", b.Name(), err)
			}
			d := starlark.NewDict(len(counts))
			for _, c := range counts {
				if err := d.SetKey(starlark.String(c.Value), starlark.MakeInt(c.N)); err != nil {
					return nil, err
				}
			}
			return d, nil
		}).BindReceiver(tv), nil
	}
	return nil, nil
}
