// Package template parses and validates HCL stack templates.
//
// A stack template declares three kinds of blocks:
//
//	parameter "db_name" {
//	  description = "Name of the database"
//	  default     = "mydb"
//	}
//
//	resource "server" "web" {
//	  arguments {
//	    image = "ubuntu"
//	    db    = param.db_name
//	  }
//	  depends_on = ["db"]
//	}
//
//	output "address" {
//	  value = "${resource.web.name}.local"
//	}
//
// Resources reference each other either explicitly via depends_on or
// implicitly through resource.<name> traversals inside argument expressions.
package template

import (
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
)

// Parameter declares a single user-settable input of a template.
type Parameter struct {
	Name        string
	Description string
	// Default is nil when the parameter is required.
	Default *cty.Value
}

// Resource declares one node of the stack. Arguments are kept as raw HCL
// expressions; evaluation is the stack engine's concern, not the template's.
type Resource struct {
	Type      string
	Name      string
	Arguments map[string]hcl.Expression
	DependsOn []string
}

// Output declares a named value the stack exposes to its owner.
type Output struct {
	Name        string
	Description string
	Value       hcl.Expression
}

// Template is the parsed, decoded form of a stack template.
type Template struct {
	Parameters map[string]*Parameter
	Resources  []*Resource
	Outputs    map[string]*Output
}

// --- HCL decoding schema ---

type argumentsBlock struct {
	Body hcl.Body `hcl:",remain"`
}

type parameterBlock struct {
	Name        string     `hcl:"name,label"`
	Description string     `hcl:"description,optional"`
	Default     *cty.Value `hcl:"default,optional"`
}

type resourceBlock struct {
	Type      string          `hcl:"type,label"`
	Name      string          `hcl:"name,label"`
	Arguments *argumentsBlock `hcl:"arguments,block"`
	DependsOn []string        `hcl:"depends_on,optional"`
}

type outputBlock struct {
	Name        string         `hcl:"name,label"`
	Description string         `hcl:"description,optional"`
	Value       hcl.Expression `hcl:"value"`
}

type templateFile struct {
	Parameters []*parameterBlock `hcl:"parameter,block"`
	Resources  []*resourceBlock  `hcl:"resource,block"`
	Outputs    []*outputBlock    `hcl:"output,block"`
}

// Parse decodes src into a Template. The filename is only used in
// diagnostics. The returned template is decoded but not yet validated; call
// Validate before acting on it.
func Parse(src []byte, filename string) (*Template, error) {
	file, diags := hclsyntax.ParseConfig(src, filename, hcl.InitialPos)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse template %s: %w", filename, diags)
	}

	var raw templateFile
	if diags := gohcl.DecodeBody(file.Body, nil, &raw); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode template %s: %w", filename, diags)
	}

	tmpl := &Template{
		Parameters: make(map[string]*Parameter, len(raw.Parameters)),
		Outputs:    make(map[string]*Output, len(raw.Outputs)),
	}
	for _, p := range raw.Parameters {
		if _, exists := tmpl.Parameters[p.Name]; exists {
			return nil, fmt.Errorf("duplicate parameter %q in template %s", p.Name, filename)
		}
		tmpl.Parameters[p.Name] = &Parameter{
			Name:        p.Name,
			Description: p.Description,
			Default:     p.Default,
		}
	}
	for _, r := range raw.Resources {
		res := &Resource{
			Type:      r.Type,
			Name:      r.Name,
			DependsOn: r.DependsOn,
			Arguments: map[string]hcl.Expression{},
		}
		if r.Arguments != nil {
			attrs, diags := r.Arguments.Body.JustAttributes()
			if diags.HasErrors() {
				return nil, fmt.Errorf("failed to decode arguments of resource %q: %w", r.Name, diags)
			}
			for name, attr := range attrs {
				res.Arguments[name] = attr.Expr
			}
		}
		tmpl.Resources = append(tmpl.Resources, res)
	}
	for _, o := range raw.Outputs {
		if _, exists := tmpl.Outputs[o.Name]; exists {
			return nil, fmt.Errorf("duplicate output %q in template %s", o.Name, filename)
		}
		tmpl.Outputs[o.Name] = &Output{
			Name:        o.Name,
			Description: o.Description,
			Value:       o.Value,
		}
	}
	return tmpl, nil
}

// Validate checks the internal consistency of the template: unique resource
// names and depends_on references that resolve to declared resources.
func (t *Template) Validate() error {
	seen := make(map[string]struct{}, len(t.Resources))
	for _, r := range t.Resources {
		if r.Name == "" {
			return fmt.Errorf("resource of type %q has an empty name", r.Type)
		}
		if _, dup := seen[r.Name]; dup {
			return fmt.Errorf("duplicate resource name %q", r.Name)
		}
		seen[r.Name] = struct{}{}
	}
	for _, r := range t.Resources {
		for _, dep := range r.DependsOn {
			if _, ok := seen[dep]; !ok {
				return fmt.Errorf("resource %q depends on unknown resource %q", r.Name, dep)
			}
		}
	}
	return nil
}

// ResourceCount returns the number of resources declared by the template.
func (t *Template) ResourceCount() int {
	return len(t.Resources)
}

// ResourceByName returns the named resource, or nil when it is not declared.
func (t *Template) ResourceByName(name string) *Resource {
	for _, r := range t.Resources {
		if r.Name == name {
			return r
		}
	}
	return nil
}

// ResourceNames returns the declared resource names in sorted order.
func (t *Template) ResourceNames() []string {
	names := make([]string, 0, len(t.Resources))
	for _, r := range t.Resources {
		names = append(names, r.Name)
	}
	sort.Strings(names)
	return names
}

// OutputNames returns the declared output names in sorted order.
func (t *Template) OutputNames() []string {
	names := make([]string, 0, len(t.Outputs))
	for name := range t.Outputs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasOutput reports whether the template declares an output with this name.
func (t *Template) HasOutput(name string) bool {
	_, ok := t.Outputs[name]
	return ok
}
