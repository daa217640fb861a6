package code

// Logger is an optional interface for observability during execution.
// Implementations can log run timing, fault kinds, and snapshot failures.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: logging must be best-effort; Logf should not panic.
// - Ownership: format/args are read-only.
type Logger interface {
	// Logf logs a formatted message.
	Logf(format string, args ...any)
}

func (e *DefaultExecutor) logf(format string, args ...any) {
	if e.cfg.Logger != nil {
		e.cfg.Logger.Logf(format, args...)
	}
}
