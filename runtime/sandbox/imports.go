package sandbox

import (
	"regexp"
	"slices"
	"strings"
)

var (
	importLine     = regexp.MustCompile(`^(\s*)import\s+([\w.]+)(?:\s+as\s+(\w+))?\s*(?:#.*)?$`)
	fromImportLine = regexp.MustCompile(`^(\s*)from\s+([\w.]+)\s+import\s+\(?([\w\s,]+?)\)?\s*(?:#.*)?$`)
)

// boundModules are bindings that stand in for a whole module, so
// "from m import n" can become "n = m.n".
var boundModules = map[string]bool{
	"json": true, "math": true, "re": true, "statistics": true, "time": true,
}

// importHomes maps module names to the top-level bindings they provide.
var importHomes = map[string][]string{
	"datetime":          {"datetime", "timedelta"},
	"collections":       {"Counter", "defaultdict"},
	"matplotlib.pyplot": {"plt"},
	"pandas":            {"pd"},
}

// stripImports rewrites import statements for names the environment
// already binds. Each rewritten line keeps its line number, so error
// positions still point at the snippet as written. Imports of anything
// else are left alone and fail to parse.
func stripImports(src string, bound func(string) bool) string {
	lines := strings.Split(src, "\n")
	for i, line := range lines {
		if m := importLine.FindStringSubmatch(line); m != nil {
			if rewritten, ok := rewriteImport(m[1], m[2], m[3], bound); ok {
				lines[i] = rewritten
			}
			continue
		}
		if m := fromImportLine.FindStringSubmatch(line); m != nil {
			if rewritten, ok := rewriteFromImport(m[1], m[2], m[3], bound); ok {
				lines[i] = rewritten
			}
		}
	}
	return strings.Join(lines, "\n")
}

func rewriteImport(indent, module, alias string, bound func(string) bool) (string, bool) {
	name := module
	if alias != "" {
		name = alias
	}
	if boundModules[module] && bound(module) {
		if name == module {
			return indent + "pass", true
		}
		return indent + name + " = " + module, true
	}
	for _, provided := range importHomes[module] {
		if provided == name && bound(name) {
			return indent + "pass", true
		}
	}
	// The datetime binding also answers datetime.datetime and
	// datetime.timedelta, so it can stand in for the module.
	if module == "datetime" && bound("datetime") {
		if alias == "" {
			return indent + "pass", true
		}
		return indent + alias + " = datetime", true
	}
	return "", false
}

func rewriteFromImport(indent, module, names string, bound func(string) bool) (string, bool) {
	var stmts []string
	for _, n := range strings.Split(names, ",") {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		switch {
		case slices.Contains(importHomes[module], n) && bound(n):
		case boundModules[module] && bound(module):
			stmts = append(stmts, n+" = "+module+"."+n)
		default:
			return "", false
		}
	}
	if len(stmts) == 0 {
		return indent + "pass", true
	}
	return indent + strings.Join(stmts, "; "), true
}
