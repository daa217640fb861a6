package sandbox

import (
	"fmt"
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// Flag values match the conventional re module constants.
const (
	reIgnoreCase = 2
	reMultiline  = 8
	reDotAll     = 16
)

const regexCacheSize = 256

// regexCache holds compiled patterns across runs, keyed by flags and source.
var regexCache = mustCache[string, *regexp.Regexp](regexCacheSize)

func mustCache[K comparable, V any](size int) *lru.Cache[K, V] {
	c, err := lru.New[K, V](size)
	if err != nil {
		panic(fmt.Sprintf("sandbox: regex cache: %v", err))
	}
	return c
}

var backrefPattern = regexp.MustCompile(`\\(\d+)|\\g<(\w+)>`)

func compileRegex(pattern string, flags int) (*regexp.Regexp, error) {
	key := fmt.Sprintf("%d:%s", flags, pattern)
	if re, ok := regexCache.Get(key); ok {
		return re, nil
	}
	var prefix string
	if flags&reIgnoreCase != 0 {
		prefix += "i"
	}
	if flags&reMultiline != 0 {
		prefix += "m"
	}
	if flags&reDotAll != 0 {
		prefix += "s"
	}
	src := pattern
	if prefix != "" {
		src = "(?" + prefix + ")" + pattern
	}
	re, err := regexp.Compile(src)
	if err != nil {
		return nil, fmt.Errorf("invalid regular expression %q: %v", pattern, err)
	}
	regexCache.Add(key, re)
	return re, nil
}

// expandTemplate converts a replacement string using \1 and \g<name>
// references into regexp.Expand syntax.
func expandTemplate(repl string) string {
	repl = strings.ReplaceAll(repl, "$", "$$")
	return backrefPattern.ReplaceAllString(repl, "${$1$2}")
}

func newReModule() *starlarkstruct.Module {
	return &starlarkstruct.Module{
		Name: "re",
		Members: starlark.StringDict{
			"compile":    starlark.NewBuiltin("compile", reCompile),
			"search":     starlark.NewBuiltin("search", reModuleCall(patternSearch)),
			"match":      starlark.NewBuiltin("match", reModuleCall(patternMatch)),
			"fullmatch":  starlark.NewBuiltin("fullmatch", reModuleCall(patternFullmatch)),
			"findall":    starlark.NewBuiltin("findall", reModuleCall(patternFindall)),
			"split":      starlark.NewBuiltin("split", reModuleCall(patternSplit)),
			"sub":        starlark.NewBuiltin("sub", reSub),
			"escape":     starlark.NewBuiltin("escape", reEscape),
			"I":          starlark.MakeInt(reIgnoreCase),
			"IGNORECASE": starlark.MakeInt(reIgnoreCase),
			"M":          starlark.MakeInt(reMultiline),
			"MULTILINE":  starlark.MakeInt(reMultiline),
			"S":          starlark.MakeInt(reDotAll),
			"DOTALL":     starlark.MakeInt(reDotAll),
		},
	}
}

type patternFunc func(thread *starlark.Thread, name string, re *regexp.Regexp, s string, extra int) (starlark.Value, error)

// reModuleCall adapts a pattern method to the module-level form
// fn(pattern, string, [maxsplit], flags=0).
func reModuleCall(fn patternFunc) func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var pattern, s string
		var flags, extra int
		var err error
		if b.Name() == "split" {
			err = starlark.UnpackArgs(b.Name(), args, kwargs, "pattern", &pattern, "string", &s, "maxsplit?", &extra, "flags?", &flags)
		} else {
			err = starlark.UnpackArgs(b.Name(), args, kwargs, "pattern", &pattern, "string", &s, "flags?", &flags)
		}
		if err != nil {
			return nil, err
		}
		re, err := compileRegex(pattern, flags)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		return fn(thread, b.Name(), re, s, extra)
	}
}

func reCompile(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var pattern string
	var flags int
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "pattern", &pattern, "flags?", &flags); err != nil {
		return nil, err
	}
	re, err := compileRegex(pattern, flags)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return &patternValue{re: re, source: pattern}, nil
}

func reSub(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var pattern, s string
	var repl starlark.Value
	var count, flags int
	if err := starlark.UnpackArgs(b.Name(), args, kwargs,
		"pattern", &pattern, "repl", &repl, "string", &s, "count?", &count, "flags?", &flags); err != nil {
		return nil, err
	}
	re, err := compileRegex(pattern, flags)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return substitute(thread, re, repl, s, count)
}

func reEscape(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var s string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &s); err != nil {
		return nil, err
	}
	return starlark.String(regexp.QuoteMeta(s)), nil
}

func patternSearch(_ *starlark.Thread, _ string, re *regexp.Regexp, s string, _ int) (starlark.Value, error) {
	loc := re.FindStringSubmatchIndex(s)
	if loc == nil {
		return starlark.None, nil
	}
	return &matchValue{re: re, s: s, loc: loc}, nil
}

func patternMatch(_ *starlark.Thread, _ string, re *regexp.Regexp, s string, _ int) (starlark.Value, error) {
	loc := re.FindStringSubmatchIndex(s)
	if loc == nil || loc[0] != 0 {
		return starlark.None, nil
	}
	return &matchValue{re: re, s: s, loc: loc}, nil
}

func patternFullmatch(_ *starlark.Thread, _ string, re *regexp.Regexp, s string, _ int) (starlark.Value, error) {
	anchored, err := compileRegex(`\A(?:`+re.String()+`)\z`, 0)
	if err != nil {
		return nil, err
	}
	loc := anchored.FindStringSubmatchIndex(s)
	if loc == nil {
		return starlark.None, nil
	}
	return &matchValue{re: anchored, s: s, loc: loc}, nil
}

// patternFindall returns the matched strings, the single group's text, or
// tuples of group texts depending on how many groups the pattern has.
func patternFindall(_ *starlark.Thread, _ string, re *regexp.Regexp, s string, _ int) (starlark.Value, error) {
	all := re.FindAllStringSubmatch(s, -1)
	out := make([]starlark.Value, len(all))
	for i, m := range all {
		switch re.NumSubexp() {
		case 0:
			out[i] = starlark.String(m[0])
		case 1:
			out[i] = starlark.String(m[1])
		default:
			groups := make(starlark.Tuple, len(m)-1)
			for j, g := range m[1:] {
				groups[j] = starlark.String(g)
			}
			out[i] = groups
		}
	}
	return starlark.NewList(out), nil
}

func patternSplit(_ *starlark.Thread, _ string, re *regexp.Regexp, s string, maxsplit int) (starlark.Value, error) {
	n := -1
	if maxsplit > 0 {
		n = maxsplit + 1
	}
	parts := re.Split(s, n)
	out := make([]starlark.Value, len(parts))
	for i, p := range parts {
		out[i] = starlark.String(p)
	}
	return starlark.NewList(out), nil
}

func substitute(thread *starlark.Thread, re *regexp.Regexp, repl starlark.Value, s string, count int) (starlark.Value, error) {
	n := -1
	if count > 0 {
		n = count
	}
	var b []byte
	last := 0
	for _, loc := range re.FindAllStringSubmatchIndex(s, n) {
		b = append(b, s[last:loc[0]]...)
		switch r := repl.(type) {
		case starlark.String:
			b = re.ExpandString(b, expandTemplate(string(r)), s, loc)
		case starlark.Callable:
			v, err := starlark.Call(thread, r, starlark.Tuple{&matchValue{re: re, s: s, loc: loc}}, nil)
			if err != nil {
				return nil, err
			}
			text, ok := starlark.AsString(v)
			if !ok {
				return nil, fmt.Errorf("sub: replacement function returned %s, want string", v.Type())
			}
			b = append(b, text...)
		default:
			return nil, fmt.Errorf("sub: repl: got %s, want string or callable", repl.Type())
		}
		last = loc[1]
	}
	b = append(b, s[last:]...)
	return starlark.String(b), nil
}

// patternValue is a compiled regular expression.
type patternValue struct {
	re     *regexp.Regexp
	source string
}

var _ starlark.HasAttrs = (*patternValue)(nil)

func (p *patternValue) String() string        { return fmt.Sprintf("re.compile(%q)", p.source) }
func (p *patternValue) Type() string          { return "Pattern" }
func (p *patternValue) Freeze()               {}
func (p *patternValue) Truth() starlark.Bool  { return starlark.True }
func (p *patternValue) Hash() (uint32, error) { return starlark.String(p.re.String()).Hash() }

func (p *patternValue) AttrNames() []string {
	return []string{"findall", "fullmatch", "match", "pattern", "search", "split", "sub"}
}

func (p *patternValue) Attr(name string) (starlark.Value, error) {
	var fn patternFunc
	switch name {
	case "pattern":
		return starlark.String(p.source), nil
	case "search":
		fn = patternSearch
	case "match":
		fn = patternMatch
	case "fullmatch":
		fn = patternFullmatch
	case "findall":
		fn = patternFindall
	case "split":
		fn = patternSplit
	case "sub":
		return starlark.NewBuiltin(name, func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var repl starlark.Value
			var s string
			var count int
			if err := starlark.UnpackArgs(b.Name(), args, kwargs, "repl", &repl, "string", &s, "count?", &count); err != nil {
				return nil, err
			}
			return substitute(thread, p.re, repl, s, count)
		}).BindReceiver(p), nil
	default:
		return nil, nil
	}
	return starlark.NewBuiltin(name, func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var s string
		var extra int
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "string", &s, "maxsplit?", &extra); err != nil {
			return nil, err
		}
		return fn(thread, b.Name(), p.re, s, extra)
	}).BindReceiver(p), nil
}

// matchValue is the result of a successful search or match.
type matchValue struct {
	re  *regexp.Regexp
	s   string
	loc []int
}

var _ starlark.HasAttrs = (*matchValue)(nil)

func (m *matchValue) String() string {
	return fmt.Sprintf("<re.Match span=(%d, %d) match=%q>", m.loc[0], m.loc[1], m.s[m.loc[0]:m.loc[1]])
}
func (m *matchValue) Type() string          { return "Match" }
func (m *matchValue) Freeze()               {}
func (m *matchValue) Truth() starlark.Bool  { return starlark.True }
func (m *matchValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: %s", m.Type()) }

func (m *matchValue) group(v starlark.Value) (starlark.Value, error) {
	i := -1
	if name, ok := starlark.AsString(v); ok {
		i = m.re.SubexpIndex(name)
		if i < 0 {
			return nil, fmt.Errorf("no such group %q", name)
		}
	} else if err := starlark.AsInt(v, &i); err != nil {
		return nil, err
	}
	if i < 0 || 2*i+1 >= len(m.loc) {
		return nil, fmt.Errorf("group index %d out of range", i)
	}
	if m.loc[2*i] < 0 {
		return starlark.None, nil
	}
	return starlark.String(m.s[m.loc[2*i]:m.loc[2*i+1]]), nil
}

func (m *matchValue) AttrNames() []string {
	return []string{"end", "group", "groupdict", "groups", "span", "start"}
}

func (m *matchValue) Attr(name string) (starlark.Value, error) {
	var fn func(args starlark.Tuple) (starlark.Value, error)
	switch name {
	case "group":
		fn = func(args starlark.Tuple) (starlark.Value, error) {
			if len(args) == 0 {
				return m.group(zero)
			}
			if len(args) == 1 {
				return m.group(args[0])
			}
			out := make(starlark.Tuple, len(args))
			for i, a := range args {
				g, err := m.group(a)
				if err != nil {
					return nil, err
				}
				out[i] = g
			}
			return out, nil
		}
	case "groups":
		fn = func(starlark.Tuple) (starlark.Value, error) {
			out := make(starlark.Tuple, m.re.NumSubexp())
			for i := range out {
				g, err := m.group(starlark.MakeInt(i + 1))
				if err != nil {
					return nil, err
				}
				out[i] = g
			}
			return out, nil
		}
	case "groupdict":
		fn = func(starlark.Tuple) (starlark.Value, error) {
			d := starlark.NewDict(0)
			for i, name := range m.re.SubexpNames() {
				if name == "" {
					continue
				}
				g, err := m.group(starlark.MakeInt(i))
				if err != nil {
					return nil, err
				}
				if err := d.SetKey(starlark.String(name), g); err != nil {
					return nil, err
				}
			}
			return d, nil
		}
	case "start", "end", "span":
		fn = func(args starlark.Tuple) (starlark.Value, error) {
			i := 0
			if len(args) > 0 {
				if err := starlark.AsInt(args[0], &i); err != nil {
					return nil, err
				}
			}
			if i < 0 || 2*i+1 >= len(m.loc) {
				return nil, fmt.Errorf("group index %d out of range", i)
			}
			start, end := starlark.MakeInt(m.loc[2*i]), starlark.MakeInt(m.loc[2*i+1])
			switch name {
			case "start":
				return start, nil
			case "end":
				return end, nil
			}
			return starlark.Tuple{start, end}, nil
		}
	default:
		return nil, nil
	}
	return starlark.NewBuiltin(name, func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if len(kwargs) > 0 {
			return nil, fmt.Errorf("%s: unexpected keyword arguments", b.Name())
		}
		return fn(args)
	}).BindReceiver(m), nil
}
