// Package sandbox provides the Starlark implementation of code.Engine.
//
// Snippets are written in the Python-like Starlark dialect. The engine
// binds only the names in the environment whitelist: the task snapshot as
// a list of Task values, datetime and timedelta, the json, math, time, re,
// and statistics modules, Counter and defaultdict, sum, round, isinstance,
// abs, the task_manager callbacks, and for chart snippets the plt and pd
// handles.
//
// There is no file, network, or process access, and load statements are
// rejected. Before parsing, import statements naming a bound module, f-strings,
// "is" comparisons, and bare generator arguments are rewritten in place so
// snippets written in everyday Python still run.
//
// A name that is neither bound nor builtin fails when its statement runs,
// not before the snippet starts, so earlier statements keep their effects.
//
// Each run is bounded twice: by the context deadline, which cancels the
// interpreter thread, and by an interpreter step budget. Both surface as a
// TimeoutFault.
package sandbox
