package sandbox

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// datetimeValue is a point in time with Python datetime-like attributes.
type datetimeValue struct {
	t time.Time
}

func newDatetime(t time.Time) *datetimeValue { return &datetimeValue{t: t} }

var (
	_ starlark.HasAttrs       = (*datetimeValue)(nil)
	_ starlark.HasBinary      = (*datetimeValue)(nil)
	_ starlark.TotallyOrdered = (*datetimeValue)(nil)
	_ json.Marshaler          = (*datetimeValue)(nil)
)

func (d *datetimeValue) String() string        { return d.t.Format("2006-01-02 15:04:05") }
func (d *datetimeValue) Type() string          { return "datetime" }
func (d *datetimeValue) Freeze()               {}
func (d *datetimeValue) Truth() starlark.Bool  { return starlark.True }
func (d *datetimeValue) Hash() (uint32, error) { return uint32(d.t.UnixNano()) ^ uint32(d.t.UnixNano()>>32), nil }

func (d *datetimeValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.t.Format(time.RFC3339))
}

func (d *datetimeValue) Cmp(y starlark.Value, depth int) (int, error) {
	other := y.(*datetimeValue)
	return d.t.Compare(other.t), nil
}

func (d *datetimeValue) Binary(op syntax.Token, y starlark.Value, side starlark.Side) (starlark.Value, error) {
	switch op {
	case syntax.PLUS:
		if td, ok := y.(*timedeltaValue); ok {
			return newDatetime(d.t.Add(td.d)), nil
		}
	case syntax.MINUS:
		if side == starlark.Right {
			return nil, nil
		}
		switch y := y.(type) {
		case *timedeltaValue:
			return newDatetime(d.t.Add(-y.d)), nil
		case *datetimeValue:
			return &timedeltaValue{d: d.t.Sub(y.t)}, nil
		}
	}
	return nil, nil
}

var datetimeAttrs = []string{
	"date", "day", "hour", "isoformat", "minute", "month", "replace",
	"second", "strftime", "timestamp", "weekday", "year",
}

func (d *datetimeValue) AttrNames() []string { return datetimeAttrs }

func (d *datetimeValue) Attr(name string) (starlark.Value, error) {
	switch name {
	case "year":
		return starlark.MakeInt(d.t.Year()), nil
	case "month":
		return starlark.MakeInt(int(d.t.Month())), nil
	case "day":
		return starlark.MakeInt(d.t.Day()), nil
	case "hour":
		return starlark.MakeInt(d.t.Hour()), nil
	case "minute":
		return starlark.MakeInt(d.t.Minute()), nil
	case "second":
		return starlark.MakeInt(d.t.Second()), nil
	case "date":
		return d.method(name, func(starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
			y, m, day := d.t.Date()
			return newDatetime(time.Date(y, m, day, 0, 0, 0, 0, d.t.Location())), nil
		}), nil
	case "isoformat":
		return d.method(name, func(starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
			return starlark.String(d.t.Format("2006-01-02T15:04:05")), nil
		}), nil
	case "timestamp":
		return d.method(name, func(starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
			return starlark.Float(float64(d.t.UnixNano()) / 1e9), nil
		}), nil
	case "weekday":
		return d.method(name, func(starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
			// Monday is 0.
			return starlark.MakeInt((int(d.t.Weekday()) + 6) % 7), nil
		}), nil
	case "strftime":
		return d.method(name, func(args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var format string
			if err := starlark.UnpackPositionalArgs("strftime", args, kwargs, 1, &format); err != nil {
				return nil, err
			}
			return starlark.String(strftime(d.t, format)), nil
		}), nil
	case "replace":
		return d.method(name, func(args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			y, mo, day := d.t.Date()
			h, mi, s := d.t.Clock()
			m := int(mo)
			if err := starlark.UnpackArgs("replace", args, kwargs,
				"year?", &y, "month?", &m, "day?", &day, "hour?", &h, "minute?", &mi, "second?", &s,
				"microsecond?", new(int)); err != nil {
				return nil, err
			}
			return newDatetime(time.Date(y, time.Month(m), day, h, mi, s, 0, d.t.Location())), nil
		}), nil
	}
	return nil, nil
}

func (d *datetimeValue) method(name string, fn func(starlark.Tuple, []starlark.Tuple) (starlark.Value, error)) *starlark.Builtin {
	return starlark.NewBuiltin(name, func(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		return fn(args, kwargs)
	}).BindReceiver(d)
}

var strftimeDirectives = map[byte]string{
	'Y': "2006", 'y': "06", 'm': "01", 'd': "02", 'H': "15", 'I': "03",
	'M': "04", 'S': "05", 'p': "PM", 'b': "Jan", 'B': "January",
	'a': "Mon", 'A': "Monday", 'Z': "MST", 'z': "-0700", 'f': "000000",
}

// strftime formats t using the common C-style directives.
func strftime(t time.Time, format string) string {
	var b strings.Builder
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' || i+1 == len(format) {
			b.WriteByte(c)
			continue
		}
		i++
		switch d := format[i]; d {
		case '%':
			b.WriteByte('%')
		case 'j':
			fmt.Fprintf(&b, "%03d", t.YearDay())
		case 'f':
			fmt.Fprintf(&b, "%06d", t.Nanosecond()/1000)
		default:
			if layout, ok := strftimeDirectives[d]; ok {
				b.WriteString(t.Format(layout))
			} else {
				b.WriteByte('%')
				b.WriteByte(d)
			}
		}
	}
	return b.String()
}

// timedeltaValue is a duration with Python timedelta-like attributes.
type timedeltaValue struct {
	d time.Duration
}

var (
	_ starlark.HasAttrs       = (*timedeltaValue)(nil)
	_ starlark.HasBinary      = (*timedeltaValue)(nil)
	_ starlark.HasUnary       = (*timedeltaValue)(nil)
	_ starlark.TotallyOrdered = (*timedeltaValue)(nil)
)

func (td *timedeltaValue) String() string        { return formatTimedelta(td.d) }
func (td *timedeltaValue) Type() string          { return "timedelta" }
func (td *timedeltaValue) Freeze()               {}
func (td *timedeltaValue) Truth() starlark.Bool  { return td.d != 0 }
func (td *timedeltaValue) Hash() (uint32, error) { return uint32(td.d) ^ uint32(td.d>>32), nil }

func (td *timedeltaValue) Cmp(y starlark.Value, depth int) (int, error) {
	other := y.(*timedeltaValue)
	switch {
	case td.d < other.d:
		return -1, nil
	case td.d > other.d:
		return 1, nil
	}
	return 0, nil
}

func (td *timedeltaValue) Unary(op syntax.Token) (starlark.Value, error) {
	switch op {
	case syntax.MINUS:
		return &timedeltaValue{d: -td.d}, nil
	case syntax.PLUS:
		return td, nil
	}
	return nil, nil
}

func (td *timedeltaValue) Binary(op syntax.Token, y starlark.Value, side starlark.Side) (starlark.Value, error) {
	switch op {
	case syntax.PLUS:
		switch y := y.(type) {
		case *timedeltaValue:
			return &timedeltaValue{d: td.d + y.d}, nil
		case *datetimeValue:
			return newDatetime(y.t.Add(td.d)), nil
		}
	case syntax.MINUS:
		if other, ok := y.(*timedeltaValue); ok {
			if side == starlark.Left {
				return &timedeltaValue{d: td.d - other.d}, nil
			}
			return &timedeltaValue{d: other.d - td.d}, nil
		}
	case syntax.STAR:
		if f, err := toFloat(y); err == nil {
			return &timedeltaValue{d: time.Duration(float64(td.d) * f)}, nil
		}
	case syntax.SLASH:
		if side == starlark.Right {
			return nil, nil
		}
		if other, ok := y.(*timedeltaValue); ok {
			if other.d == 0 {
				return nil, fmt.Errorf("division by zero")
			}
			return starlark.Float(float64(td.d) / float64(other.d)), nil
		}
		if f, err := toFloat(y); err == nil {
			if f == 0 {
				return nil, fmt.Errorf("division by zero")
			}
			return &timedeltaValue{d: time.Duration(float64(td.d) / f)}, nil
		}
	}
	return nil, nil
}

var timedeltaAttrs = []string{"days", "microseconds", "seconds", "total_seconds"}

func (td *timedeltaValue) AttrNames() []string { return timedeltaAttrs }

func (td *timedeltaValue) Attr(name string) (starlark.Value, error) {
	day := 24 * time.Hour
	days := int64(math.Floor(float64(td.d) / float64(day)))
	rem := td.d - time.Duration(days)*day
	switch name {
	case "days":
		return starlark.MakeInt64(days), nil
	case "seconds":
		return starlark.MakeInt64(int64(rem / time.Second)), nil
	case "microseconds":
		return starlark.MakeInt64(int64(rem%time.Second) / 1000), nil
	case "total_seconds":
		return starlark.NewBuiltin("total_seconds", func(_ *starlark.Thread, _ *starlark.Builtin, _ starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
			return starlark.Float(td.d.Seconds()), nil
		}).BindReceiver(td), nil
	}
	return nil, nil
}

func formatTimedelta(d time.Duration) string {
	day := 24 * time.Hour
	days := int64(math.Floor(float64(d) / float64(day)))
	rem := d - time.Duration(days)*day
	h := int(rem / time.Hour)
	m := int(rem % time.Hour / time.Minute)
	s := int(rem % time.Minute / time.Second)
	clock := fmt.Sprintf("%d:%02d:%02d", h, m, s)
	switch {
	case days == 0:
		return clock
	case days == 1 || days == -1:
		return fmt.Sprintf("%d day, %s", days, clock)
	default:
		return fmt.Sprintf("%d days, %s", days, clock)
	}
}

// makeTimedelta implements timedelta(days, seconds, microseconds,
// milliseconds, minutes, hours, weeks).
func makeTimedelta(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var days, seconds, micros, millis, minutes, hours, weeks starlark.Value = zero, zero, zero, zero, zero, zero, zero
	if err := starlark.UnpackArgs(b.Name(), args, kwargs,
		"days?", &days, "seconds?", &seconds, "microseconds?", &micros,
		"milliseconds?", &millis, "minutes?", &minutes, "hours?", &hours, "weeks?", &weeks); err != nil {
		return nil, err
	}
	parts := []struct {
		v    starlark.Value
		unit time.Duration
	}{
		{days, 24 * time.Hour}, {seconds, time.Second}, {micros, time.Microsecond},
		{millis, time.Millisecond}, {minutes, time.Minute}, {hours, time.Hour},
		{weeks, 7 * 24 * time.Hour},
	}
	var total float64
	for _, p := range parts {
		f, err := toFloat(p.v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		total += f * float64(p.unit)
	}
	if math.Abs(total) > math.MaxInt64 {
		return nil, fmt.Errorf("%s: value out of range", b.Name())
	}
	return &timedeltaValue{d: time.Duration(total)}, nil
}

var (
	zero             = starlark.MakeInt(0)
	timedeltaBuiltin = starlark.NewBuiltin("timedelta", makeTimedelta)
)

// datetimeType is the callable datetime binding. Calling it constructs a
// datetime; its attributes are the class methods now, today, fromisoformat,
// and strptime.
type datetimeType struct {
	now func() time.Time
}

var (
	_ starlark.Callable = (*datetimeType)(nil)
	_ starlark.HasAttrs = (*datetimeType)(nil)
)

func (dt *datetimeType) String() string        { return "<class 'datetime'>" }
func (dt *datetimeType) Type() string          { return "type" }
func (dt *datetimeType) Name() string          { return "datetime" }
func (dt *datetimeType) Freeze()               {}
func (dt *datetimeType) Truth() starlark.Bool  { return starlark.True }
func (dt *datetimeType) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable: %s", dt.Type()) }

func (dt *datetimeType) CallInternal(_ *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var y, m, d, h, mi, s, us int
	if err := starlark.UnpackArgs("datetime", args, kwargs,
		"year", &y, "month", &m, "day", &d, "hour?", &h, "minute?", &mi, "second?", &s, "microsecond?", &us); err != nil {
		return nil, err
	}
	if m < 1 || m > 12 {
		return nil, fmt.Errorf("datetime: month %d out of range", m)
	}
	return newDatetime(time.Date(y, time.Month(m), d, h, mi, s, us*1000, dt.now().Location())), nil
}

func (dt *datetimeType) AttrNames() []string {
	return []string{"datetime", "fromisoformat", "now", "strptime", "timedelta", "today"}
}

func (dt *datetimeType) Attr(name string) (starlark.Value, error) {
	switch name {
	case "datetime":
		return dt, nil
	case "timedelta":
		return timedeltaBuiltin, nil
	case "now", "today":
		return starlark.NewBuiltin(name, func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
				return nil, err
			}
			return newDatetime(dt.now()), nil
		}), nil
	case "fromisoformat":
		return starlark.NewBuiltin(name, func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var s string
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &s); err != nil {
				return nil, err
			}
			t, err := parseISO(s, dt.now().Location())
			if err != nil {
				return nil, err
			}
			return newDatetime(t), nil
		}), nil
	case "strptime":
		return starlark.NewBuiltin(name, func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var s, format string
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &s, &format); err != nil {
				return nil, err
			}
			t, err := time.ParseInLocation(strptimeLayout(format), s, dt.now().Location())
			if err != nil {
				return nil, fmt.Errorf("cannot parse %q with format %q", s, format)
			}
			return newDatetime(t), nil
		}), nil
	}
	return nil, nil
}

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

func parseISO(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range isoLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid isoformat string: %q", s)
}

// strptimeLayout translates C-style directives into a Go layout.
func strptimeLayout(format string) string {
	var b strings.Builder
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' || i+1 == len(format) {
			b.WriteByte(c)
			continue
		}
		i++
		if layout, ok := strftimeDirectives[format[i]]; ok {
			b.WriteString(layout)
		} else {
			b.WriteByte(format[i])
		}
	}
	return b.String()
}
