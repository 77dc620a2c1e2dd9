// Package quota holds the pure guard functions that bound nested-stack
// recursion depth and tree-wide resource counts. Guards run before any
// persistence or task start, so a rejected request leaves no partial state.
package quota

import "fmt"

// RecursionLimitError reports a nested-stack creation at or beyond the
// configured depth ceiling.
type RecursionLimitError struct {
	Depth int
	Limit int
}

func (e *RecursionLimitError) Error() string {
	return fmt.Sprintf("recursion depth %d reaches the nested stack limit of %d", e.Depth, e.Limit)
}

// ResourceLimitError reports a stack tree that would exceed the configured
// resource-count ceiling.
type ResourceLimitError struct {
	Count int
	Limit int
}

func (e *ResourceLimitError) Error() string {
	return fmt.Sprintf("stack tree would hold %d resources, exceeding the limit of %d", e.Count, e.Limit)
}

// CheckDepth rejects creation at or beyond the depth ceiling. It is checked
// on creation only; the other lifecycle actions never deepen the tree.
func CheckDepth(depth, limit int) error {
	if depth >= limit {
		return &RecursionLimitError{Depth: depth, Limit: limit}
	}
	return nil
}

// CheckResourceCount rejects a change that would grow the tree past the
// resource ceiling. requested is the candidate template's resource count and
// existing the count it replaces: zero on creation, the nested stack's own
// current count on update. rootTotal is the tree-wide total measured at the
// root.
func CheckResourceCount(requested, existing, rootTotal, limit int) error {
	if count := rootTotal + requested - existing; count > limit {
		return &ResourceLimitError{Count: count, Limit: limit}
	}
	return nil
}
