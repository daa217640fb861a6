package sandbox

import (
	"errors"
	"regexp"
	"strings"

	"go.starlark.net/resolve"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/jonwraymond/taskexec/code"
)

const builtinFile = "<builtin>"

// uninitialized matches the runtime error for a name that resolved as
// predeclared but has no binding.
var uninitialized = regexp.MustCompile(`predeclared variable (\S+) is uninitialized`)

// toFault classifies an interpreter error and records where it happened.
func toFault(err error) *code.Fault {
	var f *code.Fault
	if errors.As(err, &f) {
		return f
	}

	var synErr syntax.Error
	if errors.As(err, &synErr) {
		f = code.NewFault(code.SyntaxFault, err)
		f.Message = synErr.Msg
		setPos(f, synErr.Pos)
		return f
	}

	var resolveErrs resolve.ErrorList
	if errors.As(err, &resolveErrs) && len(resolveErrs) > 0 {
		first := resolveErrs[0]
		kind := code.ClassifyMessage(first.Msg)
		if kind != code.NameResolutionFault {
			kind = code.SyntaxFault
		}
		f = code.NewFault(kind, err)
		f.Message = first.Msg
		setPos(f, first.Pos)
		return f
	}

	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		f = code.NewFault(code.ClassifyMessage(evalErr.Msg), err)
		f.Message = strings.TrimPrefix(evalErr.Msg, "Starlark ")
		f.Trace = evalErr.Backtrace()
		if m := uninitialized.FindStringSubmatch(evalErr.Msg); m != nil {
			f.Kind = code.NameResolutionFault
			f.Message = "undefined: " + m[1]
			f.Trace = strings.Replace(f.Trace, evalErr.Msg, f.Message, 1)
		}
		for i := 0; i < len(evalErr.CallStack); i++ {
			frame := evalErr.CallStack.At(i)
			if frame.Pos.Filename() != builtinFile && frame.Pos.Line > 0 {
				setPos(f, frame.Pos)
				break
			}
		}
		return f
	}

	return code.NewFault(code.Classify(err), err)
}

func setPos(f *code.Fault, pos syntax.Position) {
	f.Line = int(pos.Line)
	f.Column = int(pos.Col)
}
