package collect

import "errors"

// Errors reported by collection operations.
var (
	// ErrNoActiveStack indicates the backend has no stopped thread to
	// collect from.
	ErrNoActiveStack = errors.New("no active stack")

	// ErrStructuralFailure indicates the backend reported an error instead
	// of children or frames.
	ErrStructuralFailure = errors.New("backend structural failure")
)
