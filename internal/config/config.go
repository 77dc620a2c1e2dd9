package config

import (
	"errors"
	"fmt"
	"time"
)

// Default quota ceilings. They bound every stack tree managed by one
// process and are read-only once the engine is running.
const (
	DefaultMaxNestedDepth       = 3
	DefaultMaxResourcesPerStack = 1000
)

// Limits holds the process-wide quota ceilings enforced before any nested
// stack is created or grown.
type Limits struct {
	// MaxNestedDepth is the maximum nesting depth of stacks. A resource at
	// recursion depth >= MaxNestedDepth may not create another stack.
	MaxNestedDepth int
	// MaxResourcesPerStack is the maximum number of resources in an entire
	// stack tree, counted from the root stack down.
	MaxResourcesPerStack int
}

// DefaultLimits returns the default quota ceilings.
func DefaultLimits() Limits {
	return Limits{
		MaxNestedDepth:       DefaultMaxNestedDepth,
		MaxResourcesPerStack: DefaultMaxResourcesPerStack,
	}
}

// Config holds all the configuration a single engine instance needs to run.
type Config struct {
	TemplatePath string            // path to the root stack template (.hcl)
	Parameters   map[string]string // user-supplied parameter values
	StackName    string            // name of the root stack
	Timeout      time.Duration     // lifecycle timeout for the root stack, 0 means unbounded

	LogFormat string // "text" or "json"
	LogLevel  string // "debug", "info", "warn" or "error"

	Limits Limits
}

// New validates a Config and fills in defaults for the zero-valued fields.
func New(cfg Config) (*Config, error) {
	if cfg.TemplatePath == "" {
		return nil, errors.New("TemplatePath is a required configuration field and cannot be empty")
	}
	if cfg.StackName == "" {
		cfg.StackName = "root"
	}
	if cfg.Limits.MaxNestedDepth == 0 {
		cfg.Limits.MaxNestedDepth = DefaultMaxNestedDepth
	}
	if cfg.Limits.MaxResourcesPerStack == 0 {
		cfg.Limits.MaxResourcesPerStack = DefaultMaxResourcesPerStack
	}
	if cfg.Limits.MaxNestedDepth < 0 {
		return nil, fmt.Errorf("MaxNestedDepth must not be negative, got %d", cfg.Limits.MaxNestedDepth)
	}
	if cfg.Limits.MaxResourcesPerStack < 0 {
		return nil, fmt.Errorf("MaxResourcesPerStack must not be negative, got %d", cfg.Limits.MaxResourcesPerStack)
	}
	return &cfg, nil
}
