package sandbox

import (
	"regexp"
	"strconv"
	"strings"
)

// formatBuiltin renders a value with a format spec. F-strings whose fields
// carry a spec are rewritten to call it.
const formatBuiltin = "__format__"

// prepareSource rewrites the Python idioms generated snippets commonly use
// into the interpreter's dialect: imports of bound names, f-strings,
// identity comparisons, and bare generator expressions. Every rewrite keeps
// the snippet's line count, so fault positions still match the source.
func prepareSource(src string, bound func(string) bool) string {
	src = stripImports(src, bound)
	src = rewriteFStrings(src)
	src = rewriteIdentity(src)
	return rewriteGenerators(src)
}

func isIdentByte(c byte) bool {
	return c == '_' || 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9'
}

// literalEnd returns the index just past the string literal whose opening
// quote is at q. An unterminated single-quoted literal ends at the newline
// so the parser reports it.
func literalEnd(src string, q int) int {
	quote := src[q : q+1]
	if strings.HasPrefix(src[q:], strings.Repeat(quote, 3)) {
		quote = strings.Repeat(quote, 3)
	}
	i := q + len(quote)
	for i < len(src) {
		switch {
		case src[i] == '\\':
			i += 2
		case strings.HasPrefix(src[i:], quote):
			return i + len(quote)
		case src[i] == '\n' && len(quote) == 1:
			return i
		default:
			i++
		}
	}
	return len(src)
}

// stringPrefix reports the prefix letters of a string literal starting at
// src[i], if one starts there.
func stringPrefix(src string, i int) (string, bool) {
	j := i
	for j < len(src) && j-i < 2 && strings.IndexByte("rRbBfFuU", src[j]) >= 0 {
		j++
	}
	if j < len(src) && (src[j] == '"' || src[j] == '\'') {
		return src[i:j], true
	}
	return "", false
}

// codeMask marks the bytes of src that are outside string literals and
// comments.
func codeMask(src string) []bool {
	mask := make([]bool, len(src))
	for i := 0; i < len(src); {
		switch c := src[i]; {
		case c == '#':
			for i < len(src) && src[i] != '\n' {
				i++
			}
		case c == '"' || c == '\'':
			i = literalEnd(src, i)
		default:
			mask[i] = true
			i++
		}
	}
	return mask
}

// rewriteFStrings turns f"a {x} b {y:.1f}" into
// "a {} b {}".format((x), __format__((y), ".1f")).
func rewriteFStrings(src string) string {
	var b strings.Builder
	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == '#':
			j := i
			for j < len(src) && src[j] != '\n' {
				j++
			}
			b.WriteString(src[i:j])
			i = j
		case c == '"' || c == '\'':
			j := literalEnd(src, i)
			b.WriteString(src[i:j])
			i = j
		case isIdentByte(c) && (i == 0 || !isIdentByte(src[i-1])):
			prefix, ok := stringPrefix(src, i)
			if !ok {
				j := i
				for j < len(src) && isIdentByte(src[j]) {
					j++
				}
				b.WriteString(src[i:j])
				i = j
				continue
			}
			q := i + len(prefix)
			end := literalEnd(src, q)
			if strings.ContainsAny(prefix, "fF") {
				b.WriteString(convertFString(prefix, src[q:end]))
			} else {
				b.WriteString(src[i:end])
			}
			i = end
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String()
}

// convertFString rewrites one f-string literal. Literals it cannot split
// are returned unchanged for the parser to reject.
func convertFString(prefix, lit string) string {
	original := prefix + lit
	quote := lit[:1]
	if strings.HasPrefix(lit, strings.Repeat(quote, 3)) && len(lit) >= 6 {
		quote = strings.Repeat(quote, 3)
	}
	if len(lit) < 2*len(quote) || !strings.HasSuffix(lit, quote) {
		return original
	}
	body := lit[len(quote) : len(lit)-len(quote)]
	raw := strings.ContainsAny(prefix, "rR")

	var (
		text     strings.Builder
		args     []string
		newlines int
	)
	for k := 0; k < len(body); {
		c := body[k]
		switch {
		case c == '\\' && !raw && k+1 < len(body) && body[k+1] != '{' && body[k+1] != '}':
			text.WriteString(body[k : k+2])
			k += 2
		case strings.HasPrefix(body[k:], "{{"), strings.HasPrefix(body[k:], "}}"):
			text.WriteString(body[k : k+2])
			k += 2
		case c == '{':
			f, ok := splitField(body, k+1)
			if !ok {
				return original
			}
			newlines += strings.Count(f.expr, "\n")
			expr := strings.TrimSpace(strings.ReplaceAll(f.expr, "\n", " "))
			if expr == "" {
				return original
			}
			if f.selfDoc {
				text.WriteString(strings.ReplaceAll(f.expr, "\n", " ") + "=")
			}
			expr = "(" + rewriteFStrings(expr) + ")"
			switch f.conv {
			case "":
			case "r", "a":
				f.conv = "r"
			case "s":
			default:
				return original
			}
			if f.spec == "" {
				text.WriteString("{")
				if f.conv != "" {
					text.WriteString("!" + f.conv)
				}
				text.WriteString("}")
				args = append(args, expr)
			} else {
				switch f.conv {
				case "r":
					expr = "repr" + expr
				case "s":
					expr = "str" + expr
				}
				text.WriteString("{}")
				args = append(args, formatBuiltin+"("+expr+", "+strconv.Quote(f.spec)+")")
			}
			k = f.end + 1
		default:
			text.WriteByte(c)
			k++
		}
	}

	newPrefix := strings.Map(func(r rune) rune {
		if r == 'f' || r == 'F' {
			return -1
		}
		return r
	}, prefix)
	return newPrefix + quote + text.String() + quote +
		".format(" + strings.Join(args, ", ") + strings.Repeat("\n", newlines) + ")"
}

type fstringField struct {
	expr    string
	conv    string
	spec    string
	selfDoc bool
	end     int // index of the closing brace
}

// splitField parses a replacement field whose expression starts at
// body[start], up to its closing brace.
func splitField(body string, start int) (fstringField, bool) {
	var f fstringField
	depth := 0
	exprEnd, convStart := -1, -1
	i := start
	for ; i < len(body); i++ {
		c := body[i]
		if c == '"' || c == '\'' {
			i = literalEnd(body, i) - 1
			continue
		}
		if depth > 0 {
			switch c {
			case '(', '[', '{':
				depth++
			case ')', ']', '}':
				depth--
			}
			continue
		}
		if c == '(' || c == '[' || c == '{' {
			depth++
			continue
		}
		if c == '!' && exprEnd < 0 && i+1 < len(body) && body[i+1] != '=' {
			exprEnd, convStart = i, i+1
			continue
		}
		if c == ':' || c == '}' {
			break
		}
	}
	if i >= len(body) {
		return f, false
	}
	if exprEnd < 0 {
		exprEnd = i
	}
	f.expr = body[start:exprEnd]
	if convStart >= 0 {
		f.conv = strings.TrimSpace(body[convStart:i])
	}
	if body[i] == ':' {
		j := strings.IndexAny(body[i+1:], "{}")
		if j < 0 || body[i+1+j] == '{' {
			// Nested fields in a format spec are not supported.
			return f, false
		}
		f.spec = body[i+1 : i+1+j]
		i += 1 + j
	}
	f.end = i

	trimmed := strings.TrimRight(f.expr, " ")
	if n := len(trimmed); n >= 2 && trimmed[n-1] == '=' && !strings.ContainsRune("=!<>", rune(trimmed[n-2])) {
		f.selfDoc = true
		f.expr = trimmed[:n-1]
		if f.conv == "" && f.spec == "" {
			f.conv = "r"
		}
	}
	return f, true
}

var identityOp = regexp.MustCompile(`\bis([ \t]+not)?\b`)

// rewriteIdentity turns "is not" into != and "is" into ==.
func rewriteIdentity(src string) string {
	mask := codeMask(src)
	var b strings.Builder
	last := 0
	for _, m := range identityOp.FindAllStringSubmatchIndex(src, -1) {
		start, end := m[0], m[1]
		if !mask[start] || start > 0 && src[start-1] == '.' {
			continue
		}
		b.WriteString(src[last:start])
		if m[2] >= 0 {
			b.WriteString("!=")
		} else {
			b.WriteString("==")
		}
		last = end
	}
	b.WriteString(src[last:])
	return b.String()
}

// rewriteGenerators wraps parenthesized generator expressions in brackets,
// so sum(x for x in xs) becomes sum([x for x in xs]).
func rewriteGenerators(src string) string {
	type bracket struct {
		pos   int
		comma bool
		gen   bool
	}
	mask := codeMask(src)
	inserts := make(map[int]string)
	var stack []bracket
	for i := 0; i < len(src); i++ {
		if !mask[i] {
			continue
		}
		switch c := src[i]; c {
		case '(', '[', '{':
			stack = append(stack, bracket{pos: i})
		case ')', ']', '}':
			if len(stack) == 0 {
				continue
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if c == ')' && src[top.pos] == '(' && top.gen && !top.comma {
				inserts[top.pos+1] += "["
				inserts[i] += "]"
			}
		case ',':
			if n := len(stack); n > 0 && !stack[n-1].gen {
				stack[n-1].comma = true
			}
		case 'f':
			if n := len(stack); n > 0 && isKeyword(src, mask, i, "for") {
				stack[n-1].gen = true
			}
		}
	}
	if len(inserts) == 0 {
		return src
	}
	var b strings.Builder
	for i := 0; i <= len(src); i++ {
		b.WriteString(inserts[i])
		if i < len(src) {
			b.WriteByte(src[i])
		}
	}
	return b.String()
}

func isKeyword(src string, mask []bool, i int, kw string) bool {
	end := i + len(kw)
	if end > len(src) || src[i:end] != kw || !mask[end-1] {
		return false
	}
	if i > 0 && isIdentByte(src[i-1]) {
		return false
	}
	return end == len(src) || !isIdentByte(src[end])
}
