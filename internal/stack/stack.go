// Package stack implements the stack collaborator: an independently
// persisted, recursively composable collection of resources with its own
// action/status state machine. A stack never drives itself; lifecycle
// progress happens inside task functions produced by the factories in
// tasks.go and stepped by an outer scheduler.
package stack

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	ctyjson "github.com/zclconf/go-cty/cty/json"

	"github.com/zhangknight/heat/internal/dag"
	"github.com/zhangknight/heat/internal/environment"
	"github.com/zhangknight/heat/internal/template"
)

// ResourceFunc performs the per-resource work of one lifecycle action. The
// default used when none is supplied treats every resource action as an
// immediate success; engines plug in real behavior here.
type ResourceFunc func(ctx context.Context, action Action, res *template.Resource) error

// Options configures a new stack.
type Options struct {
	// Timeout bounds each lifecycle action of this stack. Zero means the
	// action is only bounded by its caller's context.
	Timeout time.Duration
	// DisableRollback is always set for nested stacks: rolling back on
	// failure is the parent's responsibility, never the nested stack's own.
	DisableRollback bool
	// OwnerID links a nested stack to the id of the stack owning it. Empty
	// for root stacks.
	OwnerID string
	// ResourceFunc is the per-resource hook invoked while a task walks the
	// stack. Nil means every resource action succeeds immediately.
	ResourceFunc ResourceFunc
}

// Stack is one graph of resources. Exactly one goroutine mutates a given
// stack at a time (the task currently running on it); the state fields are
// additionally guarded so that progress may be observed concurrently.
type Stack struct {
	id   string
	name string

	tmpl *template.Template
	env  *environment.Environment

	ownerID         string
	disableRollback bool
	timeout         time.Duration
	store           Store
	resourceFn      ResourceFunc

	mu             sync.Mutex
	action         Action
	status         Status
	statusReason   string
	deletionPolicy DeletionPolicy
}

// New builds an in-memory stack. The stack is not persisted and has no id
// until Store is called; Validate should pass first.
func New(name string, tmpl *template.Template, env *environment.Environment, store Store, opts Options) *Stack {
	return &Stack{
		name:            name,
		tmpl:            tmpl,
		env:             env,
		store:           store,
		ownerID:         opts.OwnerID,
		disableRollback: opts.DisableRollback,
		timeout:         opts.Timeout,
		resourceFn:      opts.ResourceFunc,
		action:          ActionCreate,
		status:          StatusInProgress,
		statusReason:    "Stack not started",
	}
}

// ID returns the persisted id, or the empty string before the first Store.
func (s *Stack) ID() string { return s.id }

// SetID binds the persisted id. It is called by stores on first save and
// must not be used elsewhere.
func (s *Stack) SetID(id string) { s.id = id }

// Name returns the stack name.
func (s *Stack) Name() string { return s.name }

// OwnerID returns the id of the owning stack, or "" for a root stack.
func (s *Stack) OwnerID() string { return s.ownerID }

// Timeout returns the configured lifecycle timeout.
func (s *Stack) Timeout() time.Duration { return s.timeout }

// DisableRollback reports whether rollback-on-failure is disabled.
func (s *Stack) DisableRollback() bool { return s.disableRollback }

// Template returns the stack's current template.
func (s *Stack) Template() *template.Template { return s.tmpl }

// Environment returns the stack's current parameter environment.
func (s *Stack) Environment() *environment.Environment { return s.env }

// Resources returns the stack's own resources, excluding descendants.
func (s *Stack) Resources() []*template.Resource { return s.tmpl.Resources }

// ResourceCount returns the stack's own resource count, excluding
// descendants. Tree-wide sizing goes through TotalResources.
func (s *Stack) ResourceCount() int { return s.tmpl.ResourceCount() }

// State returns the current (action, status) pair.
func (s *Stack) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{Action: s.action, Status: s.status}
}

// StatusReason returns the human-readable reason for the current state.
func (s *Stack) StatusReason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusReason
}

// SetDeletionPolicy controls whether DeleteTask tears resources down
// (PolicyDelete) or leaves them in place (PolicyRetain).
func (s *Stack) SetDeletionPolicy(p DeletionPolicy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletionPolicy = p
}

// DeletionPolicy returns the current deletion policy.
func (s *Stack) DeletionPolicy() DeletionPolicy {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deletionPolicy
}

func (s *Stack) setState(action Action, status Status, reason string) {
	s.mu.Lock()
	s.action = action
	s.status = status
	s.statusReason = reason
	s.mu.Unlock()
}

// Validate checks the stack as a whole before it is persisted or acted on:
// the template's internal consistency, parameter resolution, and the
// dependency graph (including implicit references and cycles).
func (s *Stack) Validate() error {
	if err := s.tmpl.Validate(); err != nil {
		return fmt.Errorf("stack %s: %w", s.name, err)
	}
	if err := s.env.Resolve(s.tmpl); err != nil {
		return fmt.Errorf("stack %s: %w", s.name, err)
	}
	if _, err := dag.Build(s.tmpl); err != nil {
		return fmt.Errorf("stack %s: %w", s.name, err)
	}
	return nil
}

// Store persists the stack and returns its id, assigning one on first save.
func (s *Stack) Store(ctx context.Context) (string, error) {
	id, err := s.store.Save(ctx, s)
	if err != nil {
		return "", fmt.Errorf("failed to store stack %s: %w", s.name, err)
	}
	return id, nil
}

// TotalResources counts the resources of this stack and every descendant
// stack reachable through the store. This is the number the tree-wide quota
// is checked against.
func (s *Stack) TotalResources(ctx context.Context) (int, error) {
	total := s.ResourceCount()
	if s.id == "" {
		return total, nil
	}
	children, err := s.store.Children(ctx, s.id)
	if err != nil {
		return 0, err
	}
	for _, child := range children {
		sub, err := child.TotalResources(ctx)
		if err != nil {
			return 0, err
		}
		total += sub
	}
	return total, nil
}

// RootStack walks the owner chain up to the root of the recursion tree.
func (s *Stack) RootStack(ctx context.Context) (*Stack, error) {
	current := s
	for current.ownerID != "" {
		owner, err := Load(ctx, s.store, current.ownerID, false)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve owner of stack %s: %w", current.name, err)
		}
		current = owner
	}
	return current, nil
}

// OutputNames returns the names of the outputs this stack exposes.
func (s *Stack) OutputNames() []string { return s.tmpl.OutputNames() }

// HasOutput reports whether the stack exposes an output with this name.
func (s *Stack) HasOutput(name string) bool { return s.tmpl.HasOutput(name) }

// Output evaluates the named output's value expression against the stack's
// parameters and resources.
func (s *Stack) Output(name string) (cty.Value, error) {
	out, ok := s.tmpl.Outputs[name]
	if !ok {
		return cty.NilVal, fmt.Errorf("stack %s has no output %q", s.name, name)
	}
	v, diags := out.Value.Value(s.evalContext())
	if diags.HasErrors() {
		return cty.NilVal, fmt.Errorf("failed to evaluate output %q of stack %s: %w", name, s.name, diags)
	}
	return v, nil
}

// OutputString evaluates the named output and converts it to text, which is
// the form attribute resolution exposes.
func (s *Stack) OutputString(name string) (string, error) {
	v, err := s.Output(name)
	if err != nil {
		return "", err
	}
	converted, err := convert.Convert(v, cty.String)
	if err != nil {
		return "", fmt.Errorf("output %q of stack %s is not convertible to string: %w", name, s.name, err)
	}
	if converted.IsNull() {
		return "", nil
	}
	return converted.AsString(), nil
}

// evalContext exposes param.* and resource.* to output expressions. Each
// resource is visible as an object carrying its declared identity.
func (s *Stack) evalContext() *hcl.EvalContext {
	evalCtx := s.env.EvalContext()
	resources := make(map[string]cty.Value, len(s.tmpl.Resources))
	for _, r := range s.tmpl.Resources {
		resources[r.Name] = cty.ObjectVal(map[string]cty.Value{
			"type": cty.StringVal(r.Type),
			"name": cty.StringVal(r.Name),
		})
	}
	if len(resources) > 0 {
		evalCtx.Variables["resource"] = cty.ObjectVal(resources)
	} else {
		evalCtx.Variables["resource"] = cty.EmptyObjectVal
	}
	return evalCtx
}

// AbandonData exports the stack's identity and contents in an opaque,
// JSON-encodable form, for callers that adopt the stack's resources without
// deleting them.
func (s *Stack) AbandonData(ctx context.Context) (map[string]any, error) {
	state := s.State()
	data := map[string]any{
		"id":        s.id,
		"name":      s.name,
		"action":    state.Action.String(),
		"status":    state.Status.String(),
		"resources": s.tmpl.ResourceNames(),
	}

	outputs := make(map[string]any, len(s.tmpl.Outputs))
	for _, name := range s.tmpl.OutputNames() {
		v, err := s.Output(name)
		if err != nil {
			return nil, err
		}
		raw, err := ctyjson.Marshal(v, v.Type())
		if err != nil {
			return nil, fmt.Errorf("failed to encode output %q of stack %s: %w", name, s.name, err)
		}
		outputs[name] = json.RawMessage(raw)
	}
	data["outputs"] = outputs

	children, err := s.store.Children(ctx, s.id)
	if err != nil {
		return nil, err
	}
	if len(children) > 0 {
		nested := make(map[string]any, len(children))
		for _, child := range children {
			childData, err := child.AbandonData(ctx)
			if err != nil {
				return nil, err
			}
			nested[child.Name()] = childData
		}
		data["stacks"] = nested
	}
	return data, nil
}
