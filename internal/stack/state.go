package stack

// Action is one of the five lifecycle actions a stack can perform.
type Action int

const (
	ActionCreate Action = iota
	ActionUpdate
	ActionDelete
	ActionSuspend
	ActionResume
)

// String returns the canonical upper-case name of the action.
func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "CREATE"
	case ActionUpdate:
		return "UPDATE"
	case ActionDelete:
		return "DELETE"
	case ActionSuspend:
		return "SUSPEND"
	case ActionResume:
		return "RESUME"
	default:
		return "UNKNOWN"
	}
}

// Status is the progress of the current action.
type Status int

const (
	StatusInProgress Status = iota
	StatusComplete
	StatusFailed
)

// String returns the canonical upper-case name of the status.
func (s Status) String() string {
	switch s {
	case StatusInProgress:
		return "IN_PROGRESS"
	case StatusComplete:
		return "COMPLETE"
	case StatusFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// State is the (action, status) pair that fully describes where a stack is
// in its lifecycle. It is comparable, so callers match terminal outcomes
// with a plain equality check instead of string comparison.
type State struct {
	Action Action
	Status Status
}

// String renders the pair as e.g. "CREATE_COMPLETE".
func (s State) String() string {
	return s.Action.String() + "_" + s.Status.String()
}

// DeletionPolicy controls what happens to a stack's resources when the
// stack is deleted.
type DeletionPolicy int

const (
	// PolicyDelete tears down every resource before removing the stack.
	PolicyDelete DeletionPolicy = iota
	// PolicyRetain removes the stack record but leaves resources untouched.
	PolicyRetain
)
