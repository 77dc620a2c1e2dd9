// Package environment resolves the parameter values a stack is created
// with: user-supplied values merged over the defaults its template declares.
package environment

import (
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"

	"github.com/zhangknight/heat/internal/template"
)

// Environment holds the parameter values for one stack. User values are kept
// separately from the resolved set so that Resolve can be re-run against a
// new template on update.
type Environment struct {
	user     map[string]cty.Value
	resolved map[string]cty.Value
}

// New creates an environment from user-supplied parameter values. The map is
// copied; the caller keeps ownership of its own map.
func New(user map[string]cty.Value) *Environment {
	e := &Environment{user: make(map[string]cty.Value, len(user))}
	for k, v := range user {
		e.user[k] = v
	}
	return e
}

// FromStrings builds an environment from plain string values, as collected
// from command-line -p flags.
func FromStrings(user map[string]string) *Environment {
	vals := make(map[string]cty.Value, len(user))
	for k, v := range user {
		vals[k] = cty.StringVal(v)
	}
	return New(vals)
}

// Resolve merges the environment against the template's declared parameters.
// Every user value must correspond to a declared parameter, and every
// parameter without a default must be supplied by the user.
func (e *Environment) Resolve(tmpl *template.Template) error {
	for name := range e.user {
		if _, ok := tmpl.Parameters[name]; !ok {
			return fmt.Errorf("unknown parameter %q", name)
		}
	}

	resolved := make(map[string]cty.Value, len(tmpl.Parameters))
	for name, param := range tmpl.Parameters {
		if v, ok := e.user[name]; ok {
			resolved[name] = v
			continue
		}
		if param.Default == nil {
			return fmt.Errorf("parameter %q is required and has no value", name)
		}
		resolved[name] = *param.Default
	}
	e.resolved = resolved
	return nil
}

// Values returns a copy of the resolved parameter set. It is empty until
// Resolve has been called.
func (e *Environment) Values() map[string]cty.Value {
	out := make(map[string]cty.Value, len(e.resolved))
	for k, v := range e.resolved {
		out[k] = v
	}
	return out
}

// UserValues returns a copy of the raw user-supplied values, before any
// template defaults are applied.
func (e *Environment) UserValues() map[string]cty.Value {
	out := make(map[string]cty.Value, len(e.user))
	for k, v := range e.user {
		out[k] = v
	}
	return out
}

// ParameterNames returns the resolved parameter names in sorted order.
func (e *Environment) ParameterNames() []string {
	names := make([]string, 0, len(e.resolved))
	for name := range e.resolved {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EvalContext returns an hcl.EvalContext exposing the resolved parameters
// under the param.* namespace.
func (e *Environment) EvalContext() *hcl.EvalContext {
	params := make(map[string]cty.Value, len(e.resolved))
	for k, v := range e.resolved {
		params[k] = v
	}
	vars := map[string]cty.Value{}
	if len(params) > 0 {
		vars["param"] = cty.ObjectVal(params)
	} else {
		vars["param"] = cty.EmptyObjectVal
	}
	return &hcl.EvalContext{Variables: vars}
}
