package collect

// Budgets holds the hard limits that truncate collection. A budget never
// fails a collection; exceeding one is a soft stop.
type Budgets struct {
	// MaxStackItems is the maximum number of retained stack frames.
	MaxStackItems int

	// MaxStackBytes is the maximum serialized size of the stack list.
	MaxStackBytes int

	// MaxSnapshotBytes is the maximum serialized size of the top-level
	// snapshot list.
	MaxSnapshotBytes int

	// MaxBackendCalls is the maximum number of child resolutions issued
	// during one snapshot walk.
	MaxBackendCalls int

	// MaxValueDepth is the maximum nesting depth of snapshot items.
	// Top-level locals are at depth 0.
	MaxValueDepth int

	// MaxTraceLines is the maximum number of stack-trace lines retained in
	// an exception detail.
	MaxTraceLines int

	// FunctionPrefixLines is the number of lines kept before the target
	// line when clipping an enclosing-function excerpt.
	FunctionPrefixLines int

	// FunctionSuffixLines is the number of lines kept after the target
	// line when clipping an enclosing-function excerpt.
	FunctionSuffixLines int
}

// DefaultBudgets returns the default collection budgets.
func DefaultBudgets() Budgets {
	return Budgets{
		MaxStackItems:       20,
		MaxStackBytes:       16 * 1024,
		MaxSnapshotBytes:    16 * 1024,
		MaxBackendCalls:     500,
		MaxValueDepth:       3,
		MaxTraceLines:       50,
		FunctionPrefixLines: 16,
		FunctionSuffixLines: 16,
	}
}
