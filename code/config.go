package code

import (
	"fmt"
	"strings"
	"time"

	"github.com/jonwraymond/taskexec/task"
)

// Defaults applied by NewDefaultExecutor.
const (
	DefaultTimeout  = 5 * time.Second
	DefaultMaxSteps = 10_000_000
)

// Config holds the configuration for a code executor.
type Config struct {
	// Repository supplies the task snapshots.
	// Required.
	Repository task.Reader

	// Engine is the pluggable snippet interpreter.
	// Required.
	Engine Engine

	// DefaultTimeout bounds each run unless WithTimeout overrides it.
	// Defaults to 5s if zero.
	DefaultTimeout time.Duration

	// MaxSteps is the interpreter step budget per run.
	// Defaults to 10,000,000 if zero.
	MaxSteps uint64

	// Logger is an optional logger for observability.
	Logger Logger
}

// Validate checks that all required fields are set.
// Returns ErrConfiguration if any required field is missing.
func (c *Config) Validate() error {
	var missing []string

	if c.Repository == nil {
		missing = append(missing, "Repository")
	}
	if c.Engine == nil {
		missing = append(missing, "Engine")
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required fields: %s",
			ErrConfiguration, strings.Join(missing, ", "))
	}
	if c.DefaultTimeout < 0 {
		return fmt.Errorf("%w: negative DefaultTimeout %v", ErrConfiguration, c.DefaultTimeout)
	}
	return nil
}

// applyDefaults sets default values for optional fields.
func (c *Config) applyDefaults() {
	if c.DefaultTimeout == 0 {
		c.DefaultTimeout = DefaultTimeout
	}
	if c.MaxSteps == 0 {
		c.MaxSteps = DefaultMaxSteps
	}
}
