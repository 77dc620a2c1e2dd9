// Package cli turns command-line arguments into an engine configuration.
package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/zhangknight/heat/internal/config"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// paramFlags collects repeated -p key=value flags.
type paramFlags map[string]string

func (p paramFlags) String() string {
	parts := make([]string, 0, len(p))
	for k, v := range p {
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, ",")
}

func (p paramFlags) Set(raw string) error {
	key, value, ok := strings.Cut(raw, "=")
	if !ok || key == "" {
		return fmt.Errorf("parameter must be key=value, got %q", raw)
	}
	p[key] = value
	return nil
}

// Parse processes command-line arguments. It returns a validated Config, a
// boolean indicating the program should exit cleanly (help shown), or an
// ExitError for invalid input.
func Parse(args []string, output io.Writer) (*config.Config, bool, error) {
	flagSet := flag.NewFlagSet("heat", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
heat - drives a stack of declared resources through its lifecycle.

Usage:
  heat [options] [TEMPLATE_PATH]

Arguments:
  TEMPLATE_PATH
    Path to a stack template (.hcl file).

Options:
`)
		flagSet.PrintDefaults()
	}

	params := paramFlags{}
	templateFlag := flagSet.String("template", "", "Path to the stack template file.")
	tFlag := flagSet.String("t", "", "Path to the stack template file (shorthand).")
	flagSet.Var(params, "p", "Stack parameter as key=value. May be repeated.")
	nameFlag := flagSet.String("name", "root", "Name of the root stack.")
	timeoutFlag := flagSet.Duration("timeout", 0, "Lifecycle timeout for the root stack. 0 is unbounded.")
	maxDepthFlag := flagSet.Int("max-depth", config.DefaultMaxNestedDepth, "Maximum nested stack depth.")
	maxResourcesFlag := flagSet.Int("max-resources", config.DefaultMaxResourcesPerStack, "Maximum resources per stack tree.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	path := ""
	if *templateFlag != "" {
		path = *templateFlag
	} else if *tFlag != "" {
		path = *tFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}

	if path == "" {
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	cfg, err := config.New(config.Config{
		TemplatePath: path,
		Parameters:   params,
		StackName:    *nameFlag,
		Timeout:      *timeoutFlag,
		LogFormat:    logFormat,
		LogLevel:     logLevel,
		Limits: config.Limits{
			MaxNestedDepth:       *maxDepthFlag,
			MaxResourcesPerStack: *maxResourcesFlag,
		},
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	return cfg, false, nil
}
