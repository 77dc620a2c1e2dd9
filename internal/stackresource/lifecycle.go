package stackresource

import (
	"context"
	"errors"
	"time"

	"github.com/zclconf/go-cty/cty"

	"github.com/zhangknight/heat/internal/ctxlog"
	"github.com/zhangknight/heat/internal/environment"
	"github.com/zhangknight/heat/internal/quota"
	"github.com/zhangknight/heat/internal/stack"
	"github.com/zhangknight/heat/internal/task"
	"github.com/zhangknight/heat/internal/template"
)

// CreateWithTemplate creates the nested stack from the given template source
// and user parameters and starts its CREATE task, which it returns for the
// outer scheduler to drive. Quota guards run before anything is persisted.
func (r *StackResource) CreateWithTemplate(ctx context.Context, src []byte, userParams map[string]cty.Value, timeout time.Duration) (task.Task, error) {
	if err := quota.CheckDepth(r.recursionDepth, r.limits.MaxNestedDepth); err != nil {
		return nil, err
	}

	tmpl, err := template.Parse(src, r.physicalResourceName()+".hcl")
	if err != nil {
		return nil, err
	}

	root, err := r.parentStack.RootStack(ctx)
	if err != nil {
		return nil, err
	}
	rootTotal, err := root.TotalResources(ctx)
	if err != nil {
		return nil, err
	}
	if err := quota.CheckResourceCount(tmpl.ResourceCount(), 0, rootTotal, r.limits.MaxResourcesPerStack); err != nil {
		return nil, err
	}

	r.outputsToAttributes(tmpl)

	// Rollback is disabled unconditionally: a failed nested stack is rolled
	// back by the parent stack, never by the nested stack itself.
	nested := stack.New(r.physicalResourceName(), tmpl, environment.New(userParams), r.store, stack.Options{
		Timeout:         timeout,
		DisableRollback: true,
		OwnerID:         r.parentStack.ID(),
		ResourceFunc:    r.resourceFn,
	})
	if err := nested.Validate(); err != nil {
		return nil, err
	}

	r.nested = nested
	id, err := nested.Store(ctx)
	if err != nil {
		return nil, err
	}
	r.resourceID = id
	ctxlog.FromContext(ctx).Debug("Nested stack stored.", "resource", r.name, "stack_id", id)

	runner := task.NewRunner(ctx, "create "+nested.Name(), nested.StackTask(stack.ActionCreate, false))
	runner.Start(nested.Timeout())
	return runner, nil
}

// CheckCreateComplete advances the create task one step. It returns false
// while the task runs and true once the nested stack reached
// (CREATE, COMPLETE); any other terminal state fails with ChildStackError
// carrying the stack's status reason.
func (r *StackResource) CheckCreateComplete(ctx context.Context, t task.Task) (bool, error) {
	return r.checkComplete(ctx, t, stack.ActionCreate)
}

// UpdateWithTemplate starts an UPDATE task transitioning the existing nested
// stack toward the new template and parameters. Updating a resource whose
// stack was never created fails with ChildStackError.
func (r *StackResource) UpdateWithTemplate(ctx context.Context, src []byte, userParams map[string]cty.Value, timeout time.Duration) (task.Task, error) {
	tmpl, err := template.Parse(src, r.physicalResourceName()+".hcl")
	if err != nil {
		return nil, err
	}

	nested, err := r.Nested(ctx)
	if err != nil {
		return nil, err
	}
	if nested == nil {
		return nil, &ChildStackError{Resource: r.name, Reason: "cannot update, stack not created"}
	}

	// The update guard measures marginal change: the delta against the
	// nested stack's own current resource count, not its subtree total.
	root, err := nested.RootStack(ctx)
	if err != nil {
		return nil, err
	}
	rootTotal, err := root.TotalResources(ctx)
	if err != nil {
		return nil, err
	}
	if err := quota.CheckResourceCount(tmpl.ResourceCount(), nested.ResourceCount(), rootTotal, r.limits.MaxResourcesPerStack); err != nil {
		return nil, err
	}

	target := stack.New(r.physicalResourceName(), tmpl, environment.New(userParams), r.store, stack.Options{
		Timeout:         timeout,
		DisableRollback: true,
		OwnerID:         r.parentStack.ID(),
		ResourceFunc:    r.resourceFn,
	})
	if err := target.Validate(); err != nil {
		return nil, err
	}

	// Types that declare their own schema keep it; everything else re-derives
	// its attributes from the new template's outputs.
	if !r.fixedSchema {
		r.attrs = nil
		r.outputsToAttributes(tmpl)
	}

	runner := task.NewRunner(ctx, "update "+nested.Name(), nested.UpdateTask(target))
	runner.Start(target.Timeout())
	return runner, nil
}

// CheckUpdateComplete advances the update task. A nil task means no update
// was necessary and is immediately complete.
func (r *StackResource) CheckUpdateComplete(ctx context.Context, t task.Task) (bool, error) {
	return r.checkComplete(ctx, t, stack.ActionUpdate)
}

// DeleteNested starts the DELETE task for the nested stack. A stack that is
// already gone is treated as nothing to do: the call logs and returns no
// task. Delete takes no caller timeout; the stack's own configured timeout
// bounds it.
func (r *StackResource) DeleteNested(ctx context.Context) (task.Task, error) {
	nested, err := r.Nested(ctx)
	if err != nil {
		if errors.Is(err, stack.ErrNotFound) {
			ctxlog.FromContext(ctx).Info("Nested stack not found, nothing to delete.", "resource", r.name)
			return nil, nil
		}
		return nil, err
	}
	if nested == nil {
		return nil, nil
	}

	runner := task.NewRunner(ctx, "delete "+nested.Name(), nested.DeleteTask())
	runner.Start(0)
	return runner, nil
}

// CheckDeleteComplete advances the delete task; a nil task is immediately
// complete.
func (r *StackResource) CheckDeleteComplete(ctx context.Context, t task.Task) (bool, error) {
	return r.checkComplete(ctx, t, stack.ActionDelete)
}

// HandleSuspend starts a SUSPEND task over the nested stack, walking its
// resources in reverse dependency order. Suspending a resource whose stack
// was never created fails with ChildStackError.
func (r *StackResource) HandleSuspend(ctx context.Context) (task.Task, error) {
	nested, err := r.Nested(ctx)
	if err != nil {
		return nil, err
	}
	if nested == nil {
		return nil, &ChildStackError{Resource: r.name, Reason: "cannot suspend, stack not created"}
	}

	runner := task.NewRunner(ctx, "suspend "+nested.Name(), nested.StackTask(stack.ActionSuspend, true))
	runner.Start(nested.Timeout())
	return runner, nil
}

// CheckSuspendComplete advances the suspend task; a nil task is immediately
// complete.
func (r *StackResource) CheckSuspendComplete(ctx context.Context, t task.Task) (bool, error) {
	return r.checkComplete(ctx, t, stack.ActionSuspend)
}

// HandleResume starts a RESUME task over the nested stack, walking its
// resources in forward dependency order. Resuming a resource whose stack
// was never created fails with ChildStackError.
func (r *StackResource) HandleResume(ctx context.Context) (task.Task, error) {
	nested, err := r.Nested(ctx)
	if err != nil {
		return nil, err
	}
	if nested == nil {
		return nil, &ChildStackError{Resource: r.name, Reason: "cannot resume, stack not created"}
	}

	runner := task.NewRunner(ctx, "resume "+nested.Name(), nested.StackTask(stack.ActionResume, false))
	runner.Start(nested.Timeout())
	return runner, nil
}

// CheckResumeComplete advances the resume task; a nil task is immediately
// complete.
func (r *StackResource) CheckResumeComplete(ctx context.Context, t task.Task) (bool, error) {
	return r.checkComplete(ctx, t, stack.ActionResume)
}

// checkComplete is the shared shape of every check operation: step the task,
// and once it reports done, require the nested stack's state pair to equal
// (action, COMPLETE).
func (r *StackResource) checkComplete(ctx context.Context, t task.Task, action stack.Action) (bool, error) {
	if t == nil {
		return true, nil
	}
	if !t.Step() {
		return false, nil
	}

	// The cached reference is always populated here: every start operation
	// resolves it before launching the task it handed back.
	nested, err := r.Nested(ctx)
	if err != nil {
		return false, err
	}
	want := stack.State{Action: action, Status: stack.StatusComplete}
	if got := nested.State(); got != want {
		return false, &ChildStackError{Resource: r.name, Reason: nested.StatusReason()}
	}
	return true, nil
}
