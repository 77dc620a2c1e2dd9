// Package attributes bridges a nested stack's outputs into the attribute
// namespace of the resource owning it. Schemas are either derived from the
// output names a template declares or fixed by the resource type itself.
package attributes

import (
	"context"
	"fmt"
	"sort"

	"github.com/zhangknight/heat/internal/template"
)

// InvalidAttributeError reports a request for an attribute the resource does
// not expose.
type InvalidAttributeError struct {
	Resource string
	Name     string
}

func (e *InvalidAttributeError) Error() string {
	return fmt.Sprintf("resource %q has no attribute %q", e.Resource, e.Name)
}

// Attribute describes one resolvable attribute.
type Attribute struct {
	Description string
}

// Schema maps attribute names to their descriptions.
type Schema map[string]Attribute

// SchemaFromOutputs derives a schema from a template's declared outputs;
// each output name becomes one resolvable attribute.
func SchemaFromOutputs(outputs map[string]*template.Output) Schema {
	schema := make(Schema, len(outputs))
	for name, out := range outputs {
		schema[name] = Attribute{Description: out.Description}
	}
	return schema
}

// Resolver produces the current text value of a named attribute. Resolution
// is lazy: it runs at read time and is never cached.
type Resolver func(ctx context.Context, name string) (string, error)

// Attributes is the set of resolvable attributes of one resource instance.
type Attributes struct {
	resource string
	schema   Schema
	resolve  Resolver
}

// New builds the attribute set for a resource.
func New(resource string, schema Schema, resolve Resolver) *Attributes {
	return &Attributes{resource: resource, schema: schema, resolve: resolve}
}

// Names returns the attribute names in sorted order.
func (a *Attributes) Names() []string {
	names := make([]string, 0, len(a.schema))
	for name := range a.schema {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether the schema declares the named attribute.
func (a *Attributes) Has(name string) bool {
	_, ok := a.schema[name]
	return ok
}

// Get resolves the named attribute. Names outside the schema fail with
// InvalidAttributeError identifying the resource and the requested name.
func (a *Attributes) Get(ctx context.Context, name string) (string, error) {
	if _, ok := a.schema[name]; !ok {
		return "", &InvalidAttributeError{Resource: a.resource, Name: name}
	}
	return a.resolve(ctx, name)
}
