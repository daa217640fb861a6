package sandbox

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	starlarkjson "go.starlark.net/lib/json"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
	"go.starlark.net/syntax"
)

var (
	sumBuiltin        = starlark.NewBuiltin("sum", builtinSum)
	roundBuiltin      = starlark.NewBuiltin("round", builtinRound)
	isinstanceBuiltin = starlark.NewBuiltin("isinstance", builtinIsinstance)
	formatValueFunc   = starlark.NewBuiltin(formatBuiltin, builtinFormat)
)

func builtinSum(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		iterable starlark.Iterable
		start    starlark.Value = starlark.MakeInt(0)
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "iterable", &iterable, "start?", &start); err != nil {
		return nil, err
	}
	iter := iterable.Iterate()
	defer iter.Done()
	acc := start
	var x starlark.Value
	for iter.Next(&x) {
		next, err := starlark.Binary(syntax.PLUS, acc, x)
		if err != nil {
			return nil, fmt.Errorf("sum: %w", err)
		}
		acc = next
	}
	return acc, nil
}

// builtinRound rounds half to even. Without ndigits it returns an int.
func builtinRound(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		number  starlark.Value
		ndigits starlark.Value = starlark.None
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "number", &number, "ndigits?", &ndigits); err != nil {
		return nil, err
	}
	if i, ok := number.(starlark.Int); ok {
		return i, nil
	}
	f, ok := starlark.AsFloat(number)
	if !ok {
		return nil, fmt.Errorf("round: got %s, want number", number.Type())
	}
	if ndigits == starlark.None {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("round: cannot convert %v to integer", f)
		}
		return starlark.NumberToInt(starlark.Float(math.RoundToEven(f)))
	}
	var n int
	if err := starlark.AsInt(ndigits, &n); err != nil {
		return nil, fmt.Errorf("round: ndigits: %w", err)
	}
	// FormatFloat rounds the exact binary value half to even.
	rounded, err := strconv.ParseFloat(strconv.FormatFloat(f, 'f', max(n, 0), 64), 64)
	if err != nil {
		return nil, fmt.Errorf("round: %w", err)
	}
	if n < 0 {
		p := math.Pow(10, float64(-n))
		rounded = math.RoundToEven(f/p) * p
	}
	return starlark.Float(rounded), nil
}

// typeNames maps the builtins usable as isinstance classes to the type names
// they accept.
var typeNames = map[string][]string{
	"str":   {"string"},
	"int":   {"int", "bool"},
	"float": {"float"},
	"bool":  {"bool"},
	"list":  {"list"},
	"dict":  {"dict", "Counter", "defaultdict"},
	"tuple": {"tuple"},
	"set":   {"set"},
}

func builtinIsinstance(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var obj, classes starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &obj, &classes); err != nil {
		return nil, err
	}
	candidates := starlark.Tuple{classes}
	if t, ok := classes.(starlark.Tuple); ok {
		candidates = t
	}
	for _, c := range candidates {
		match, err := isInstance(obj, c)
		if err != nil {
			return nil, err
		}
		if match {
			return starlark.True, nil
		}
	}
	return starlark.False, nil
}

func isInstance(obj, class starlark.Value) (bool, error) {
	switch c := class.(type) {
	case *starlark.Builtin:
		names, ok := typeNames[c.Name()]
		if !ok {
			break
		}
		for _, n := range names {
			if obj.Type() == n {
				return true, nil
			}
		}
		return false, nil
	case *datetimeType:
		_, ok := obj.(*datetimeValue)
		return ok, nil
	}
	return false, fmt.Errorf("isinstance: got %s, want type or tuple of types", class.Type())
}

// newJSONModule extends the json module with dumps and loads.
func newJSONModule() *starlarkstruct.Module {
	members := make(starlark.StringDict, len(starlarkjson.Module.Members)+2)
	for k, v := range starlarkjson.Module.Members {
		members[k] = v
	}
	members["dumps"] = starlark.NewBuiltin("dumps", jsonDumps)
	members["loads"] = starlarkjson.Module.Members["decode"]
	return &starlarkstruct.Module{Name: "json", Members: members}
}

// jsonDumps encodes a value with sorted keys. Tasks and datetimes encode
// the way they do in answers, so default= is accepted and ignored.
func jsonDumps(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("%s: got %d positional arguments, want 1", b.Name(), len(args))
	}
	indent := -1
	for _, kv := range kwargs {
		switch name := string(kv[0].(starlark.String)); name {
		case "indent":
			if kv[1] == starlark.None {
				continue
			}
			if err := starlark.AsInt(kv[1], &indent); err != nil {
				return nil, fmt.Errorf("%s: indent: %w", b.Name(), err)
			}
		case "default", "sort_keys", "ensure_ascii", "separators":
		default:
			return nil, fmt.Errorf("%s: unexpected keyword argument %s", b.Name(), name)
		}
	}

	var buf strings.Builder
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent >= 0 {
		enc.SetIndent("", strings.Repeat(" ", indent))
	}
	if err := enc.Encode(toGo(args[0])); err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return starlark.String(strings.TrimSuffix(buf.String(), "\n")), nil
}

func builtinFormat(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		v    starlark.Value
		spec string
	)
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &v, &spec); err != nil {
		return nil, err
	}
	s, err := formatValue(v, spec)
	if err != nil {
		return nil, err
	}
	return starlark.String(s), nil
}

var formatSpec = regexp.MustCompile(`^(?:(.)?([<>=^]))?([+\- ])?(#)?(0)?(\d+)?([,_])?(?:\.(\d+))?([bcdeEfFgGnosxX%])?$`)

// formatValue applies a format spec such as ">8", ".1f", ",d", or ".0%".
func formatValue(v starlark.Value, spec string) (string, error) {
	m := formatSpec.FindStringSubmatch(spec)
	if m == nil {
		return "", fmt.Errorf("invalid format specifier %q", spec)
	}
	fill, align, sign, alt, zero, widthStr, group, precStr, verb := m[1], m[2], m[3], m[4] != "", m[5] != "", m[6], m[7], m[8], m[9]
	width, _ := strconv.Atoi(widthStr)
	prec := -1
	if precStr != "" {
		prec, _ = strconv.Atoi(precStr)
	}

	var body, signStr string
	numeric := true
	switch x := v.(type) {
	case starlark.Int, starlark.Float:
		f, _ := starlark.AsFloat(x)
		_, isInt := x.(starlark.Int)
		if f < 0 || f == 0 && math.Signbit(f) {
			signStr = "-"
			f = -f
		} else if sign == "+" || sign == " " {
			signStr = sign
		}
		var err error
		body, err = formatNumber(x, f, isInt, verb, prec, alt)
		if err != nil {
			return "", err
		}
		if group != "" {
			body = groupDigits(body, group)
		}
	default:
		numeric = false
		if verb != "" && verb != "s" {
			return "", fmt.Errorf("unknown format code %q for %s", verb, v.Type())
		}
		if s, ok := starlark.AsString(v); ok {
			body = s
		} else {
			body = v.String()
		}
		if prec >= 0 && utf8.RuneCountInString(body) > prec {
			body = string([]rune(body)[:prec])
		}
	}

	if fill == "" {
		fill = " "
	}
	if align == "" {
		switch {
		case zero && numeric:
			fill, align = "0", "="
		case numeric:
			align = ">"
		default:
			align = "<"
		}
	}
	pad := width - utf8.RuneCountInString(signStr+body)
	if pad <= 0 {
		return signStr + body, nil
	}
	switch align {
	case "<":
		return signStr + body + strings.Repeat(fill, pad), nil
	case "^":
		left := pad / 2
		return strings.Repeat(fill, left) + signStr + body + strings.Repeat(fill, pad-left), nil
	case "=":
		return signStr + strings.Repeat(fill, pad) + body, nil
	default:
		return strings.Repeat(fill, pad) + signStr + body, nil
	}
}

// formatNumber renders the magnitude f of x without its sign.
func formatNumber(x starlark.Value, f float64, isInt bool, verb string, prec int, alt bool) (string, error) {
	if isInt {
		switch verb {
		case "", "d", "n":
			s := x.String()
			return strings.TrimPrefix(s, "-"), nil
		case "b", "o", "x", "X":
			i, _ := starlark.AsInt32(x)
			if i < 0 {
				i = -i
			}
			base := map[string]int{"b": 2, "o": 8, "x": 16, "X": 16}[verb]
			s := strconv.FormatInt(int64(i), base)
			if verb == "X" {
				s = strings.ToUpper(s)
			}
			if alt {
				s = "0" + strings.ToLower(verb) + s
			}
			return s, nil
		case "c":
			i, _ := starlark.AsInt32(x)
			return string(rune(i)), nil
		}
	}
	if prec < 0 {
		prec = 6
	}
	switch verb {
	case "f", "F":
		return strconv.FormatFloat(f, 'f', prec, 64), nil
	case "e", "E":
		s := strconv.FormatFloat(f, verb[0], prec, 64)
		return s, nil
	case "g", "G", "n":
		if prec == 0 {
			prec = 1
		}
		return strconv.FormatFloat(f, 'g', prec, 64), nil
	case "%":
		return strconv.FormatFloat(f*100, 'f', prec, 64) + "%", nil
	case "":
		if isInt {
			return strings.TrimPrefix(x.String(), "-"), nil
		}
		return strings.TrimPrefix(starlark.Float(f).String(), "-"), nil
	}
	return "", fmt.Errorf("unknown format code %q for %s", verb, x.Type())
}

// groupDigits inserts sep between thousands in the integer part of s.
func groupDigits(s, sep string) string {
	end := strings.IndexFunc(s, func(r rune) bool { return r < '0' || r > '9' })
	if end < 0 {
		end = len(s)
	}
	digits := s[:end]
	if len(digits) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteString(sep)
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String() + s[end:]
}
