package sandbox

import (
	"reflect"
	"testing"

	"go.starlark.net/starlark"

	"github.com/jonwraymond/taskexec/code"
)

func TestRun_PythonBuiltins(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want any
	}{
		{"sum ints", "result = sum([1, 2, 3])", int64(6)},
		{"sum floats", "result = sum([0.5, 1.5])", 2.0},
		{"sum start", "result = sum([1, 2], 10)", int64(13)},
		{"sum generator", "result = sum(len(t) for t in ['ab', 'c'])", int64(3)},
		{"round half even", "result = [round(2.5), round(3.5), round(-0.5)]", []any{int64(2), int64(4), int64(0)}},
		{"round digits", "result = [round(3.14159, 2), round(2.675, 2), round(7, 1)]", []any{3.14, 2.67, int64(7)}},
		{"isinstance", "result = [isinstance('a', str), isinstance(1, int), isinstance(True, int), isinstance(1.0, (int, float)), isinstance([], dict)]",
			[]any{true, true, true, true, false}},
		{"isinstance datetime", "result = isinstance(datetime.now(), datetime)", true},
		{"abs", "result = abs(-3)", int64(3)},
		{"json dumps", `result = json.dumps({"b": 1, "a": [1, 2]})`, `{"a":[1,2],"b":1}`},
		{"json dumps indent", `result = json.dumps({"a": 1}, indent=2, default=str)`, "{\n  \"a\": 1\n}"},
		{"json loads", `result = json.loads('{"x": [1, 2]}')["x"][1]`, int64(2)},
		{"json encode", `result = json.encode([1])`, "[1]"},
		{"f-string spec", `result = f"{0.4567:.1%} of {1234567:,}"`, "45.7% of 1,234,567"},
		{"is not None", "x = None\nresult = x is not None", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := mustRun(t, tt.src, queryEnv(nil))
			if got := res.Globals[code.OutResult]; !reflect.DeepEqual(got, tt.want) {
				t.Errorf("result = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestRun_IsinstanceRejectsNonType(t *testing.T) {
	_, err := run(t, "result = isinstance(1, 2)", queryEnv(nil))
	if f := faultOf(t, err); f.Kind != code.TypeFault {
		t.Errorf("Kind = %v, want %v (%s)", f.Kind, code.TypeFault, f.Message)
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		v    starlark.Value
		spec string
		want string
	}{
		{starlark.MakeInt(1234567), ",", "1,234,567"},
		{starlark.Float(0.4567), ".1%", "45.7%"},
		{starlark.Float(3.14159), ".2f", "3.14"},
		{starlark.Float(1234.5), ",.2f", "1,234.50"},
		{starlark.MakeInt(42), ".1f", "42.0"},
		{starlark.MakeInt(-42), "05", "-0042"},
		{starlark.MakeInt(7), "+d", "+7"},
		{starlark.MakeInt(255), "#x", "0xff"},
		{starlark.MakeInt(5), ">3", "  5"},
		{starlark.String("ab"), ">5", "   ab"},
		{starlark.String("ab"), "*^6", "**ab**"},
		{starlark.String("abcdef"), ".3", "abc"},
		{starlark.String("ab"), "5", "ab   "},
		{starlark.None, "", "None"},
	}
	for _, tt := range tests {
		got, err := formatValue(tt.v, tt.spec)
		if err != nil {
			t.Errorf("formatValue(%v, %q) error = %v", tt.v, tt.spec, err)
			continue
		}
		if got != tt.want {
			t.Errorf("formatValue(%v, %q) = %q, want %q", tt.v, tt.spec, got, tt.want)
		}
	}

	for _, bad := range []struct {
		v    starlark.Value
		spec string
	}{
		{starlark.String("x"), "d"},
		{starlark.MakeInt(1), "q"},
	} {
		if _, err := formatValue(bad.v, bad.spec); err == nil {
			t.Errorf("formatValue(%v, %q) expected error", bad.v, bad.spec)
		}
	}
}
