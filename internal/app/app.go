// Package app wires the engine together for a single run: logger, store,
// root stack, and the outer scheduler loop that drives lifecycle tasks to
// completion. This loop is the only place in the module that repeats; the
// engine itself only ever exposes non-blocking start/step operations.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/zhangknight/heat/internal/config"
	"github.com/zhangknight/heat/internal/ctxlog"
	"github.com/zhangknight/heat/internal/environment"
	"github.com/zhangknight/heat/internal/inmemorystore"
	"github.com/zhangknight/heat/internal/stack"
	"github.com/zhangknight/heat/internal/task"
	"github.com/zhangknight/heat/internal/template"
)

// stepInterval is the quantum the scheduler loop sleeps between task steps.
const stepInterval = 25 * time.Millisecond

// App encapsulates the engine's dependencies and configuration for one run.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	cfg    *config.Config
	store  stack.Store
}

// New constructs an App with its own isolated logger and an in-memory stack
// store.
func New(outW io.Writer, cfg *config.Config) *App {
	return &App{
		outW:   outW,
		logger: newLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr),
		cfg:    cfg,
		store:  inmemorystore.New(),
	}
}

// Store returns the application's stack store. This is primarily for testing.
func (a *App) Store() stack.Store {
	return a.store
}

// Run loads the configured template, creates the root stack and drives its
// CREATE task to completion, then prints the stack's outputs.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)

	src, err := os.ReadFile(a.cfg.TemplatePath)
	if err != nil {
		return fmt.Errorf("failed to read template: %w", err)
	}
	tmpl, err := template.Parse(src, a.cfg.TemplatePath)
	if err != nil {
		return err
	}
	a.logger.Debug("Template parsed.", "path", a.cfg.TemplatePath, "resources", tmpl.ResourceCount())

	env := environment.FromStrings(a.cfg.Parameters)
	root := stack.New(a.cfg.StackName, tmpl, env, a.store, stack.Options{
		Timeout: a.cfg.Timeout,
	})
	if err := root.Validate(); err != nil {
		return err
	}
	id, err := root.Store(ctx)
	if err != nil {
		return err
	}
	a.logger.Info("Root stack stored.", "stack", root.Name(), "id", id)

	runner := task.NewRunner(ctx, "create "+root.Name(), root.StackTask(stack.ActionCreate, false))
	runner.Start(root.Timeout())

	if err := a.stepToCompletion(ctx, runner); err != nil {
		return err
	}

	state := root.State()
	if (state != stack.State{Action: stack.ActionCreate, Status: stack.StatusComplete}) {
		return fmt.Errorf("stack %s ended in state %s: %s", root.Name(), state, root.StatusReason())
	}
	a.logger.Info("Stack create complete.", "stack", root.Name())

	for _, name := range root.OutputNames() {
		value, err := root.OutputString(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.outW, "%s = %s\n", name, value)
	}
	return nil
}

// stepToCompletion is the outer scheduler loop: it polls the task until it
// reports done or the context is cancelled.
func (a *App) stepToCompletion(ctx context.Context, t task.Task) error {
	ticker := time.NewTicker(stepInterval)
	defer ticker.Stop()

	for !t.Step() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
