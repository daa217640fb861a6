package sandbox

import (
	"fmt"
	"sort"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// counterValue is a dict whose missing keys read as zero.
//
// Membership tests go through the same lookup, so "k in counter" is true
// for every key; snippets test membership with counter.get(k) instead.
type counterValue struct {
	*starlark.Dict
}

var _ starlark.HasSetKey = (*counterValue)(nil)

func (c *counterValue) Type() string   { return "Counter" }
func (c *counterValue) String() string { return "Counter(" + c.Dict.String() + ")" }

func (c *counterValue) Get(k starlark.Value) (starlark.Value, bool, error) {
	v, found, err := c.Dict.Get(k)
	if err != nil || found {
		return v, found, err
	}
	return zero, true, nil
}

func (c *counterValue) CompareSameType(op syntax.Token, y starlark.Value, depth int) (bool, error) {
	return c.Dict.CompareSameType(op, y.(*counterValue).Dict, depth)
}

func (c *counterValue) AttrNames() []string {
	return append(c.Dict.AttrNames(), "most_common", "total")
}

func (c *counterValue) Attr(name string) (starlark.Value, error) {
	switch name {
	case "most_common":
		return starlark.NewBuiltin(name, c.mostCommon).BindReceiver(c), nil
	case "total":
		return starlark.NewBuiltin(name, func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
			var sum starlark.Value = zero
			for _, item := range c.Items() {
				s, err := starlark.Binary(syntax.PLUS, sum, item[1])
				if err != nil {
					return nil, err
				}
				sum = s
			}
			return sum, nil
		}).BindReceiver(c), nil
	}
	return c.Dict.Attr(name)
}

func (c *counterValue) mostCommon(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	n := -1
	var nv starlark.Value = starlark.None
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0, &nv); err != nil {
		return nil, err
	}
	if nv != starlark.None {
		if err := starlark.AsInt(nv, &n); err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
	}

	items := c.Items()
	counts := make([]float64, len(items))
	for i, item := range items {
		f, err := toFloat(item[1])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		counts[i] = f
	}
	idx := make([]int, len(items))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return counts[idx[a]] > counts[idx[b]] })
	if n >= 0 && n < len(idx) {
		idx = idx[:n]
	}

	out := make([]starlark.Value, len(idx))
	for i, j := range idx {
		out[i] = starlark.Tuple{items[j][0], items[j][1]}
	}
	return starlark.NewList(out), nil
}

// makeCounter implements Counter(iterable_or_mapping=None).
func makeCounter(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var src starlark.Value = starlark.None
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0, &src); err != nil {
		return nil, err
	}
	c := &counterValue{Dict: starlark.NewDict(0)}
	switch x := src.(type) {
	case starlark.NoneType:
	case starlark.IterableMapping:
		for _, item := range x.Items() {
			if err := c.SetKey(item[0], item[1]); err != nil {
				return nil, err
			}
		}
	default:
		vals, err := iterValues(src)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		one := starlark.MakeInt(1)
		for _, v := range vals {
			cur, _, err := c.Get(v)
			if err != nil {
				return nil, err
			}
			next, err := starlark.Binary(syntax.PLUS, cur, one)
			if err != nil {
				return nil, err
			}
			if err := c.SetKey(v, next); err != nil {
				return nil, err
			}
		}
	}
	for _, kv := range kwargs {
		if err := c.SetKey(kv[0], kv[1]); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// defaultdictValue is a dict that fills missing keys from a factory.
// Lookups, including membership tests, insert the default.
type defaultdictValue struct {
	*starlark.Dict
	factory starlark.Value
	thread  *starlark.Thread
}

var _ starlark.HasSetKey = (*defaultdictValue)(nil)

func (d *defaultdictValue) Type() string { return "defaultdict" }

func (d *defaultdictValue) String() string {
	name := "None"
	if d.factory != starlark.None {
		name = d.factory.String()
	}
	return fmt.Sprintf("defaultdict(%s, %s)", strings.TrimSpace(name), d.Dict.String())
}

func (d *defaultdictValue) Get(k starlark.Value) (starlark.Value, bool, error) {
	v, found, err := d.Dict.Get(k)
	if err != nil || found || d.factory == starlark.None {
		return v, found, err
	}
	v, err = starlark.Call(d.thread, d.factory, nil, nil)
	if err != nil {
		return nil, false, err
	}
	if err := d.SetKey(k, v); err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (d *defaultdictValue) CompareSameType(op syntax.Token, y starlark.Value, depth int) (bool, error) {
	return d.Dict.CompareSameType(op, y.(*defaultdictValue).Dict, depth)
}

// makeDefaultdict implements defaultdict(default_factory=None).
func makeDefaultdict(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var factory starlark.Value = starlark.None
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0, &factory); err != nil {
		return nil, err
	}
	if _, ok := factory.(starlark.Callable); !ok && factory != starlark.None {
		return nil, fmt.Errorf("%s: first argument must be callable or None, not %s", b.Name(), factory.Type())
	}
	return &defaultdictValue{Dict: starlark.NewDict(0), factory: factory, thread: thread}, nil
}
