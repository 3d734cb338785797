package collect

import "sync/atomic"

// itemOverheadBytes approximates the JSON framing cost of one snapshot item
// for the walker's incremental size estimate.
const itemOverheadBytes = 48

// treeWalker performs a depth-, call- and size-bounded asynchronous walk of
// a value tree. The walker issues child requests from within backend
// callbacks and coordinates completion through Join barriers; it never
// blocks and never spawns goroutines of its own.
type treeWalker struct {
	budgets Budgets

	// calls counts resolved children across the whole walk.
	calls int64

	// bytes is a running estimate of the serialized result size. The hard
	// size guarantee is enforced by a final TrimToSize pass; this estimate
	// stops the walk from gathering far past the budget.
	bytes int64

	// failed is set when the backend reports a structural failure for any
	// subtree.
	failed int32
}

// newTreeWalker creates a walker with the given budgets.
func newTreeWalker(budgets Budgets) *treeWalker {
	return &treeWalker{budgets: budgets}
}

// Failed reports whether any structural failure occurred during the walk.
func (w *treeWalker) Failed() bool {
	return atomic.LoadInt32(&w.failed) == 1
}

// overBudget reports whether the call or size budget is exhausted. Once it
// returns true no new child requests are issued; work already in flight is
// still drained through its join.
func (w *treeWalker) overBudget() bool {
	if w.budgets.MaxBackendCalls > 0 && atomic.LoadInt64(&w.calls) >= int64(w.budgets.MaxBackendCalls) {
		return true
	}
	if w.budgets.MaxSnapshotBytes > 0 && atomic.LoadInt64(&w.bytes) >= int64(w.budgets.MaxSnapshotBytes) {
		return true
	}
	return false
}

// issuedChild pairs a child's builder with its backend value for the
// fan-out phase of one level.
type issuedChild struct {
	builder *itemBuilder
	value   Value
}

// walk lists value's children as items at the given depth under parent and
// invokes done exactly once after the whole subtree has joined.
//
// A structural failure marks the walk failed and joins immediately; children
// skipped by a mid-iteration budget stop are omitted without error.
func (w *treeWalker) walk(value Value, parent *itemBuilder, depth int, done func()) {
	value.Children(func(children []NamedValue, err error) {
		if err != nil {
			atomic.StoreInt32(&w.failed, 1)
			done()
			return
		}

		kind := ItemField
		if depth == 0 {
			kind = ItemLocal
		}

		var issued []issuedChild
		for _, child := range children {
			if w.overBudget() {
				break
			}
			atomic.AddInt64(&w.calls, 1)

			builder := newItemBuilder(child.Name, kind)
			parent.addChild(builder)
			issued = append(issued, issuedChild{builder: builder, value: child.Value})
		}

		join := NewJoin(len(issued), done)
		for _, child := range issued {
			w.resolve(child.value, child.builder, depth, join)
		}
	})
}

// resolve requests one child's presentation and, when the child is
// expandable and depth budget remains, recurses into its children. The
// parent's join is completed exactly once per child: a presentation error
// leaves the builder's placeholders in place and still counts as a
// completion.
func (w *treeWalker) resolve(value Value, builder *itemBuilder, depth int, join *Join) {
	value.Presentation(func(p Presentation, err error) {
		if err != nil {
			join.Complete()
			return
		}

		typeName := typeNameOrUnknown(p)
		text := renderText(p)
		builder.setPresentation(typeName, text)
		atomic.AddInt64(&w.bytes, int64(itemOverheadBytes+len(builder.name)+len(typeName)+len(text)))

		// Depth budget reached: treat as a leaf even if expandable.
		if p.HasChildren && depth+1 <= w.budgets.MaxValueDepth && !w.overBudget() {
			w.walk(value, builder, depth+1, join.Complete)
			return
		}

		join.Complete()
	})
}
