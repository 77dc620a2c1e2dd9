// Package stackresource implements the nested-stack lifecycle orchestrator:
// the pattern by which one resource in a parent stack owns and drives an
// entire subordinate stack through the shared action/status state machine.
//
// Every lifecycle action comes as a start/check pair. The start operation
// guards quotas, prepares the nested stack and launches a task; the paired
// check operation advances that task by one quantum and, once done, compares
// the nested stack's (action, status) pair against the expected terminal
// state. The orchestrator never loops waiting for completion — the outer
// scheduler owns all repetition, which is what lets many sibling resources'
// nested stacks make progress inside one process.
//
// Preconditions: at most one task is outstanding per resource instance at a
// time, and a check operation is not called again after it has returned
// true. Neither is guarded defensively.
package stackresource

import (
	"context"
	"fmt"

	"github.com/zhangknight/heat/internal/attributes"
	"github.com/zhangknight/heat/internal/config"
	"github.com/zhangknight/heat/internal/stack"
	"github.com/zhangknight/heat/internal/template"
)

// ChildStackError reports that the nested stack reached a terminal state
// other than the expected one, or that an action presupposing a created
// stack was requested without one. Reason carries the stack's own status
// reason verbatim.
type ChildStackError struct {
	Resource string
	Reason   string
}

func (e *ChildStackError) Error() string {
	return fmt.Sprintf("nested stack of resource %q: %s", e.Resource, e.Reason)
}

// Option configures a StackResource at construction time.
type Option func(*StackResource)

// WithFixedSchema declares the resource type's own attribute schema. When
// set, the outputs of supplied templates never override it.
func WithFixedSchema(schema attributes.Schema) Option {
	return func(r *StackResource) {
		r.fixedSchema = true
		r.attrs = attributes.New(r.name, schema, r.resolveOutput)
	}
}

// WithResourceFunc sets the per-resource hook propagated into every nested
// stack this resource builds.
func WithResourceFunc(fn stack.ResourceFunc) Option {
	return func(r *StackResource) { r.resourceFn = fn }
}

// StackResource orchestrates the lifecycle of one nested stack on behalf of
// the resource owning it. One instance exists per owning resource instance
// and is the sole writer of its own nested-stack reference.
type StackResource struct {
	name        string
	parentStack *stack.Stack
	store       stack.Store
	limits      config.Limits

	// recursionDepth is computed once at construction from the direct
	// parent chain and never recomputed.
	recursionDepth int

	// resourceID is the persisted id of the nested stack, bound when the
	// stack is first stored.
	resourceID string
	// nested is the lazily cached nested stack; Nested reloads it from the
	// store when empty but a backing id exists.
	nested *stack.Stack

	attrs       *attributes.Attributes
	fixedSchema bool
	resourceFn  stack.ResourceFunc
}

// New creates the orchestrator for one resource instance. parent is the
// StackResource owning the stack this resource lives in, or nil at the root
// of the recursion tree; the recursion depth derives from that chain alone.
func New(name string, parent *StackResource, parentStack *stack.Stack, store stack.Store, limits config.Limits, opts ...Option) *StackResource {
	r := &StackResource{
		name:        name,
		parentStack: parentStack,
		store:       store,
		limits:      limits,
	}
	if parent != nil {
		r.recursionDepth = parent.recursionDepth + 1
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Name returns the resource's name within its parent stack.
func (r *StackResource) Name() string { return r.name }

// RecursionDepth returns the nesting depth of this resource: 0 at the root,
// parent's depth + 1 below.
func (r *StackResource) RecursionDepth() int { return r.recursionDepth }

// ResourceID returns the nested stack's backing id, or "" before creation.
func (r *StackResource) ResourceID() string { return r.resourceID }

// SetResourceID binds the backing id of an already-persisted nested stack,
// as happens when a resource is rehydrated from its stored record. The
// cached reference is dropped so the next access reloads from the store.
func (r *StackResource) SetResourceID(id string) {
	r.resourceID = id
	r.nested = nil
}

// Attributes returns the resource's attribute bridge, or nil when neither a
// fixed schema nor a template with outputs has established one.
func (r *StackResource) Attributes() *attributes.Attributes { return r.attrs }

// Nested returns the nested stack, loading it from the store when the cache
// is empty but a backing id exists. It returns (nil, nil) when the stack was
// never created, and an error wrapping stack.ErrNotFound when the backing id
// resolves to nothing.
func (r *StackResource) Nested(ctx context.Context) (*stack.Stack, error) {
	if r.nested == nil && r.resourceID != "" {
		s, err := stack.Load(ctx, r.store, r.resourceID, false)
		if err != nil {
			return nil, fmt.Errorf("nested stack of resource %q: %w", r.name, err)
		}
		r.nested = s
	}
	return r.nested, nil
}

// physicalResourceName is the name the nested stack is created under.
func (r *StackResource) physicalResourceName() string {
	return r.parentStack.Name() + "-" + r.name
}

// outputsToAttributes derives the attribute bridge from a template's
// declared outputs. It is a no-op when a bridge already exists or the
// template declares no outputs.
func (r *StackResource) outputsToAttributes(tmpl *template.Template) {
	if r.attrs != nil || len(tmpl.Outputs) == 0 {
		return
	}
	schema := attributes.SchemaFromOutputs(tmpl.Outputs)
	r.attrs = attributes.New(r.name, schema, r.resolveOutput)
}

// resolveOutput is the lazy resolver behind the attribute bridge: every read
// re-fetches the nested stack's current output value as text.
func (r *StackResource) resolveOutput(ctx context.Context, name string) (string, error) {
	value, ok, err := r.GetOutput(ctx, name)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	return value, nil
}

// ResolveAttribute resolves a named attribute through the bridge. Resources
// without a bridge expose no attributes.
func (r *StackResource) ResolveAttribute(ctx context.Context, name string) (string, error) {
	if r.attrs == nil {
		return "", &attributes.InvalidAttributeError{Resource: r.name, Name: name}
	}
	return r.attrs.Get(ctx, name)
}

// GetOutput returns the named output of the nested stack. When no stack has
// been created the second return is false with no error; when the stack
// exists but does not expose the output, the call fails with
// InvalidAttributeError.
func (r *StackResource) GetOutput(ctx context.Context, name string) (string, bool, error) {
	nested, err := r.Nested(ctx)
	if err != nil {
		return "", false, err
	}
	if nested == nil {
		return "", false, nil
	}
	if !nested.HasOutput(name) {
		return "", false, &attributes.InvalidAttributeError{Resource: r.name, Name: name}
	}
	value, err := nested.OutputString(name)
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// SetDeletionPolicy propagates a deletion policy to the nested stack.
func (r *StackResource) SetDeletionPolicy(ctx context.Context, policy stack.DeletionPolicy) error {
	nested, err := r.Nested(ctx)
	if err != nil {
		return err
	}
	if nested == nil {
		return &ChildStackError{Resource: r.name, Reason: "cannot set deletion policy, stack not created"}
	}
	nested.SetDeletionPolicy(policy)
	return nil
}

// GetAbandonData exports the nested stack's abandon payload.
func (r *StackResource) GetAbandonData(ctx context.Context) (map[string]any, error) {
	nested, err := r.Nested(ctx)
	if err != nil {
		return nil, err
	}
	if nested == nil {
		return nil, &ChildStackError{Resource: r.name, Reason: "cannot abandon, stack not created"}
	}
	return nested.AbandonData(ctx)
}
