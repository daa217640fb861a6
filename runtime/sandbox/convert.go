package sandbox

import (
	"fmt"
	"math"
	"sort"
	"time"

	"go.starlark.net/starlark"
	starlarktime "go.starlark.net/lib/time"
)

// maxConvertDepth bounds recursion through self-referencing containers.
const maxConvertDepth = 64

// toGo converts a Starlark value into plain Go data: nil, bool, int64,
// float64, string, []any, or map[string]any. Task values become their
// dictionary shape and times become RFC 3339 strings.
func toGo(v starlark.Value) any {
	return toGoDepth(v, 0)
}

func toGoDepth(v starlark.Value, depth int) any {
	if depth > maxConvertDepth {
		return v.String()
	}
	switch x := v.(type) {
	case nil, starlark.NoneType:
		return nil
	case starlark.Bool:
		return bool(x)
	case starlark.Int:
		if i, ok := x.Int64(); ok {
			return i
		}
		return x.String()
	case starlark.Float:
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return x.String()
		}
		return f
	case starlark.String:
		return string(x)
	case *taskValue:
		return x.toMap()
	case *datetimeValue:
		return x.t.Format(time.RFC3339)
	case *timedeltaValue:
		return x.d.Seconds()
	case starlarktime.Time:
		return time.Time(x).Format(time.RFC3339)
	case starlarktime.Duration:
		return time.Duration(x).Seconds()
	case *counterValue:
		return dictToGo(x.Dict, depth)
	case *defaultdictValue:
		return dictToGo(x.Dict, depth)
	case *starlark.Dict:
		return dictToGo(x, depth)
	case *starlark.List:
		out := make([]any, x.Len())
		for i := 0; i < x.Len(); i++ {
			out[i] = toGoDepth(x.Index(i), depth+1)
		}
		return out
	case starlark.Tuple:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = toGoDepth(e, depth+1)
		}
		return out
	case *starlark.Set:
		out := make([]any, 0, x.Len())
		iter := x.Iterate()
		defer iter.Done()
		var e starlark.Value
		for iter.Next(&e) {
			out = append(out, toGoDepth(e, depth+1))
		}
		return out
	case *tableValue:
		rows := make([]any, len(x.t.Rows))
		for i, r := range x.t.Rows {
			rows[i] = r
		}
		return rows
	default:
		return v.String()
	}
}

func dictToGo(d *starlark.Dict, depth int) map[string]any {
	out := make(map[string]any, d.Len())
	for _, item := range d.Items() {
		out[keyString(item[0])] = toGoDepth(item[1], depth+1)
	}
	return out
}

func keyString(k starlark.Value) string {
	if s, ok := starlark.AsString(k); ok {
		return s
	}
	return k.String()
}

// fromGo converts plain Go data into a Starlark value.
func fromGo(v any) starlark.Value {
	switch x := v.(type) {
	case nil:
		return starlark.None
	case starlark.Value:
		return x
	case bool:
		return starlark.Bool(x)
	case int:
		return starlark.MakeInt(x)
	case int64:
		return starlark.MakeInt64(x)
	case float64:
		return starlark.Float(x)
	case string:
		return starlark.String(x)
	case time.Time:
		return newDatetime(x)
	case *time.Time:
		if x == nil {
			return starlark.None
		}
		return newDatetime(*x)
	case []string:
		elems := make([]starlark.Value, len(x))
		for i, s := range x {
			elems[i] = starlark.String(s)
		}
		return starlark.NewList(elems)
	case []any:
		elems := make([]starlark.Value, len(x))
		for i, e := range x {
			elems[i] = fromGo(e)
		}
		return starlark.NewList(elems)
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		d := starlark.NewDict(len(x))
		for _, k := range keys {
			_ = d.SetKey(starlark.String(k), fromGo(x[k]))
		}
		return d
	default:
		return starlark.String(fmt.Sprint(v))
	}
}

// toFloat converts a numeric Starlark value to float64.
func toFloat(v starlark.Value) (float64, error) {
	switch x := v.(type) {
	case starlark.Int:
		return float64(x.Float()), nil
	case starlark.Float:
		return float64(x), nil
	case starlark.Bool:
		if x {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("got %s, want number", v.Type())
}

// iterValues collects the elements of an iterable.
func iterValues(v starlark.Value) ([]starlark.Value, error) {
	iterable, ok := v.(starlark.Iterable)
	if !ok {
		return nil, fmt.Errorf("%s value is not iterable", v.Type())
	}
	iter := iterable.Iterate()
	defer iter.Done()
	var out []starlark.Value
	var e starlark.Value
	for iter.Next(&e) {
		out = append(out, e)
	}
	return out, nil
}

// floats converts an iterable of numbers.
func floats(v starlark.Value) ([]float64, error) {
	vals, err := iterValues(v)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(vals))
	for i, e := range vals {
		f, err := toFloat(e)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}

// labels converts an iterable to display strings.
func labels(v starlark.Value) ([]string, error) {
	vals, err := iterValues(v)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(vals))
	for i, e := range vals {
		if s, ok := starlark.AsString(e); ok {
			out[i] = s
		} else {
			out[i] = e.String()
		}
	}
	return out, nil
}
