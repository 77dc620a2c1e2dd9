package stack

import (
	"context"
	"errors"
	"fmt"

	"github.com/zhangknight/heat/internal/ctxlog"
	"github.com/zhangknight/heat/internal/dag"
	"github.com/zhangknight/heat/internal/task"
)

// StackTask returns the task function for one lifecycle action over this
// stack's resources. With reverse set the walk runs dependents-first, the
// order suspend uses; create and resume walk forward. The task owns the
// stack's state transitions: IN_PROGRESS on entry, then exactly one of
// COMPLETE or FAILED with a reason.
func (s *Stack) StackTask(action Action, reverse bool) task.Func {
	return func(ctx context.Context) error {
		return s.walk(ctx, action, reverse)
	}
}

// UpdateTask returns the task function that transitions this persisted stack
// toward the target definition. The target carries the new template,
// parameters and timeout; it is a transient object and is never persisted
// itself.
func (s *Stack) UpdateTask(target *Stack) task.Func {
	return func(ctx context.Context) error {
		s.mu.Lock()
		s.tmpl = target.tmpl
		s.env = target.env
		s.timeout = target.timeout
		s.mu.Unlock()
		return s.walk(ctx, ActionUpdate, false)
	}
}

// DeleteTask returns the task function that deletes the stack. Deletion
// walks in reverse dependency order, honors the deletion policy, and ends by
// removing the stack's record from the store. It is bounded by the stack's
// own configured timeout rather than a caller-supplied one.
func (s *Stack) DeleteTask() task.Func {
	return func(ctx context.Context) error {
		if s.timeout > 0 {
			bounded, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			ctx = bounded
		}

		if s.DeletionPolicy() == PolicyRetain {
			s.setState(ActionDelete, StatusComplete, "DELETE complete, resources retained")
		} else if err := s.walk(ctx, ActionDelete, true); err != nil {
			return err
		}

		if err := s.store.Remove(ctx, s.id); err != nil {
			s.setState(ActionDelete, StatusFailed, fmt.Sprintf("Failed to remove stack record: %v", err))
			return err
		}
		s.persist(ctx)
		return nil
	}
}

// walk performs one action over every resource in dependency order,
// translating the first failure or context expiry into a FAILED terminal
// state with a reason.
func (s *Stack) walk(ctx context.Context, action Action, reverse bool) error {
	logger := ctxlog.FromContext(ctx).With("stack", s.name, "action", action.String())

	s.setState(action, StatusInProgress, fmt.Sprintf("%s in progress", action))
	s.persist(ctx)

	graph, err := dag.Build(s.tmpl)
	if err != nil {
		s.fail(ctx, action, err.Error())
		return err
	}
	order, err := graph.Order(reverse)
	if err != nil {
		s.fail(ctx, action, err.Error())
		return err
	}

	for _, name := range order {
		if err := ctx.Err(); err != nil {
			reason := fmt.Sprintf("%s aborted: %v", action, err)
			if err == context.DeadlineExceeded {
				reason = fmt.Sprintf("%s timed out", action)
			}
			s.fail(ctx, action, reason)
			return err
		}
		if s.resourceFn == nil {
			continue
		}
		res := s.tmpl.ResourceByName(name)
		logger.Debug("Walking resource.", "resource", name)
		if err := s.resourceFn(ctx, action, res); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				s.fail(ctx, action, fmt.Sprintf("%s timed out", action))
			} else {
				s.fail(ctx, action, fmt.Sprintf("Resource %s %s failed: %v", name, action, err))
			}
			return err
		}
	}

	s.setState(action, StatusComplete, fmt.Sprintf("%s complete", action))
	s.persist(ctx)
	logger.Debug("Stack action complete.")
	return nil
}

func (s *Stack) fail(ctx context.Context, action Action, reason string) {
	s.setState(action, StatusFailed, reason)
	s.persist(ctx)
	ctxlog.FromContext(ctx).Warn("Stack action failed.",
		"stack", s.name, "action", action.String(), "reason", reason)
}

// persist saves the stack's current state, logging rather than failing the
// walk when the store rejects it: state transitions must still be observable
// in memory for the caller's terminal-state check.
func (s *Stack) persist(ctx context.Context) {
	if s.id == "" {
		return
	}
	if _, err := s.store.Save(ctx, s); err != nil {
		ctxlog.FromContext(ctx).Warn("Failed to persist stack state.", "stack", s.name, "error", err)
	}
}
