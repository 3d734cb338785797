package collect

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"
)

// fakeRenderer renders a fixed string as a single plain fragment.
type fakeRenderer struct {
	text string
	err  error
}

func (r *fakeRenderer) RenderTo(sink FragmentSink) error {
	if r.err != nil {
		return r.err
	}
	sink.Append(FragmentPlain, r.text)
	return nil
}

// fakeValue implements Value with canned results, delivering every callback
// on its own goroutine to mimic the backend's arbitrary threading.
type fakeValue struct {
	typeName string
	text     string
	children []NamedValue
	childErr error
	presErr  error
}

func (v *fakeValue) Presentation(cb func(Presentation, error)) {
	go func() {
		if v.presErr != nil {
			cb(Presentation{}, v.presErr)
			return
		}
		cb(Presentation{
			TypeName:    v.typeName,
			Renderer:    &fakeRenderer{text: v.text},
			HasChildren: len(v.children) > 0,
		}, nil)
	}()
}

func (v *fakeValue) Children(cb func([]NamedValue, error)) {
	go func() {
		if v.childErr != nil {
			cb(nil, v.childErr)
			return
		}
		cb(v.children, nil)
	}()
}

// fakeFrame implements Frame over a fake locals value.
type fakeFrame struct {
	pos    SourcePosition
	hasPos bool
	locals Value
}

func (f *fakeFrame) SourcePosition() (SourcePosition, bool) {
	return f.pos, f.hasPos
}

func (f *fakeFrame) Locals() Value {
	return f.locals
}

// awaitItem waits for the collection callback to deliver a result.
func awaitItem(t *testing.T, collect func(onDone func(ContextItem))) ContextItem {
	t.Helper()

	done := make(chan ContextItem, 1)
	collect(func(item ContextItem) {
		done <- item
	})

	select {
	case item := <-done:
		return item
	case <-time.After(5 * time.Second):
		t.Fatal("collection did not complete")
		return ContextItem{}
	}
}

// localsWith builds a frame whose locals have the given children.
func localsWith(children ...NamedValue) *fakeFrame {
	return &fakeFrame{locals: &fakeValue{children: children}}
}

func named(name string, v *fakeValue) NamedValue {
	return NamedValue{Name: name, Value: v}
}

func TestCollectSnapshot_EmptyFrame(t *testing.T) {
	c := NewCollector(DefaultBudgets())

	item := awaitItem(t, func(onDone func(ContextItem)) {
		c.CollectSnapshot(localsWith(), onDone)
	})

	if !item.Success {
		t.Error("expected success for empty frame")
	}
	if item.Kind != KindSnapshot {
		t.Errorf("expected kind snapshot, got %s", item.Kind)
	}
	if len(item.Snapshot) != 0 {
		t.Errorf("expected empty snapshot, got %d items", len(item.Snapshot))
	}
}

func TestCollectSnapshot_ResolvesChildren(t *testing.T) {
	frame := localsWith(
		named("count", &fakeValue{typeName: "int", text: "42"}),
		named("label", &fakeValue{typeName: "string", text: `"boom"`}),
	)
	c := NewCollector(DefaultBudgets())

	item := awaitItem(t, func(onDone func(ContextItem)) {
		c.CollectSnapshot(frame, onDone)
	})

	if !item.Success {
		t.Fatal("expected success")
	}
	if len(item.Snapshot) != 2 {
		t.Fatalf("expected 2 items, got %d", len(item.Snapshot))
	}
	if item.Snapshot[0].Name != "count" || item.Snapshot[0].Value != "42" || item.Snapshot[0].Type != "int" {
		t.Errorf("unexpected first item: %+v", item.Snapshot[0])
	}
	if item.Snapshot[0].Kind != ItemLocal {
		t.Errorf("top-level item should be local, got %s", item.Snapshot[0].Kind)
	}
}

func TestCollectSnapshot_NestedChildrenAreFields(t *testing.T) {
	child := &fakeValue{typeName: "point", text: "{1, 2}", children: []NamedValue{
		named("x", &fakeValue{typeName: "int", text: "1"}),
		named("y", &fakeValue{typeName: "int", text: "2"}),
	}}
	frame := localsWith(named("p", child))
	c := NewCollector(DefaultBudgets())

	item := awaitItem(t, func(onDone func(ContextItem)) {
		c.CollectSnapshot(frame, onDone)
	})

	if len(item.Snapshot) != 1 {
		t.Fatalf("expected 1 item, got %d", len(item.Snapshot))
	}
	children := item.Snapshot[0].Children
	if len(children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(children))
	}
	for _, c := range children {
		if c.Kind != ItemField {
			t.Errorf("nested item %s should be a field, got %s", c.Name, c.Kind)
		}
	}
}

// maxDepth returns the deepest nesting level in a snapshot tree, with
// top-level items at depth 0. Empty lists report -1.
func maxDepth(items []SnapshotItem) int {
	deepest := -1
	for _, item := range items {
		d := 0
		if child := maxDepth(item.Children); child >= 0 {
			d = child + 1
		}
		if d > deepest {
			deepest = d
		}
	}
	return deepest
}

// chainValue builds a linked chain of expandable values n levels deep.
func chainValue(n int) *fakeValue {
	v := &fakeValue{typeName: "leaf", text: "end"}
	for i := 0; i < n; i++ {
		v = &fakeValue{
			typeName: "node",
			text:     fmt.Sprintf("level %d", n-i),
			children: []NamedValue{named("next", v)},
		}
	}
	return v
}

func TestCollectSnapshot_DepthBudget(t *testing.T) {
	tests := []struct {
		name     string
		maxDepth int
	}{
		{"leaf only", 0},
		{"one level", 1},
		{"three levels", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			budgets := DefaultBudgets()
			budgets.MaxValueDepth = tt.maxDepth
			frame := localsWith(named("root", chainValue(10)))
			c := NewCollector(budgets)

			item := awaitItem(t, func(onDone func(ContextItem)) {
				c.CollectSnapshot(frame, onDone)
			})

			if !item.Success {
				t.Fatal("expected success")
			}
			if got := maxDepth(item.Snapshot); got > tt.maxDepth {
				t.Errorf("max depth %d exceeds budget %d", got, tt.maxDepth)
			}
		})
	}
}

// countItems counts every node in a snapshot tree.
func countItems(items []SnapshotItem) int {
	total := len(items)
	for _, item := range items {
		total += countItems(item.Children)
	}
	return total
}

func TestCollectSnapshot_CallBudget(t *testing.T) {
	var children []NamedValue
	for i := 0; i < 50; i++ {
		children = append(children, named(fmt.Sprintf("v%d", i), &fakeValue{typeName: "int", text: "0"}))
	}
	budgets := DefaultBudgets()
	budgets.MaxBackendCalls = 7
	c := NewCollector(budgets)

	item := awaitItem(t, func(onDone func(ContextItem)) {
		c.CollectSnapshot(localsWith(children...), onDone)
	})

	if !item.Success {
		t.Fatal("budget truncation must not fail the collection")
	}
	if got := countItems(item.Snapshot); got > 7 {
		t.Errorf("resolved %d items, budget is 7", got)
	}
}

func TestCollectSnapshot_SizeBudget(t *testing.T) {
	big := make([]byte, 512)
	for i := range big {
		big[i] = 'x'
	}

	var children []NamedValue
	for i := 0; i < 40; i++ {
		children = append(children, named(fmt.Sprintf("blob%d", i), &fakeValue{typeName: "string", text: string(big)}))
	}

	budgets := DefaultBudgets()
	budgets.MaxSnapshotBytes = 2048
	c := NewCollector(budgets)

	item := awaitItem(t, func(onDone func(ContextItem)) {
		c.CollectSnapshot(localsWith(children...), onDone)
	})

	if !item.Success {
		t.Fatal("budget truncation must not fail the collection")
	}
	if size := SerializedSize(item.Snapshot); size > 2048 {
		t.Errorf("serialized size %d exceeds budget 2048", size)
	}
	if len(item.Snapshot) >= 40 {
		t.Error("expected trailing items to be dropped")
	}
}

func TestCollectSnapshot_StructuralErrorAtRoot(t *testing.T) {
	frame := &fakeFrame{locals: &fakeValue{childErr: errors.New("variables request failed")}}
	c := NewCollector(DefaultBudgets())

	item := awaitItem(t, func(onDone func(ContextItem)) {
		c.CollectSnapshot(frame, onDone)
	})

	if item.Success {
		t.Error("expected failure for structural error at root")
	}
	if len(item.Snapshot) != 0 {
		t.Errorf("expected empty snapshot, got %d items", len(item.Snapshot))
	}
}

func TestCollectSnapshot_StructuralErrorInSubtree(t *testing.T) {
	broken := &fakeValue{typeName: "obj", text: "{...}", children: []NamedValue{
		named("inner", &fakeValue{typeName: "int", text: "1"}),
	}}
	broken.children[0].Value = &fakeValue{typeName: "int", text: "1", childErr: nil}
	bad := &fakeValue{typeName: "obj", text: "{...}"}
	bad.childErr = errors.New("unreadable")
	// Make bad expandable so the walker recurses into the failure.
	bad.children = nil

	frame := localsWith(
		named("ok", &fakeValue{typeName: "int", text: "9"}),
		named("bad", &fakeValue{typeName: "obj", text: "{...}", children: []NamedValue{
			named("oops", &fakeValue{typeName: "obj", text: "?", childErr: errors.New("unreadable")}),
		}}),
	)
	c := NewCollector(DefaultBudgets())

	item := awaitItem(t, func(onDone func(ContextItem)) {
		c.CollectSnapshot(frame, onDone)
	})

	// Partial results are still delivered alongside the failure flag.
	if len(item.Snapshot) == 0 {
		t.Error("expected partial results to be delivered")
	}
}

func TestCollectSnapshot_PresentationErrorKeepsPlaceholders(t *testing.T) {
	frame := localsWith(
		named("broken", &fakeValue{presErr: errors.New("render blew up")}),
		named("fine", &fakeValue{typeName: "int", text: "5"}),
	)
	c := NewCollector(DefaultBudgets())

	item := awaitItem(t, func(onDone func(ContextItem)) {
		c.CollectSnapshot(frame, onDone)
	})

	if !item.Success {
		t.Fatal("a render failure must not fail the collection")
	}
	if len(item.Snapshot) != 2 {
		t.Fatalf("expected 2 items, got %d", len(item.Snapshot))
	}
	if item.Snapshot[0].Type != TypeUnknown || item.Snapshot[0].Value != ValueUnavailable {
		t.Errorf("expected placeholders, got %+v", item.Snapshot[0])
	}
	if item.Snapshot[1].Value != "5" {
		t.Error("sibling processing must not be affected by a render failure")
	}
}

func TestCollectSnapshot_NilFrame(t *testing.T) {
	c := NewCollector(DefaultBudgets())

	item := awaitItem(t, func(onDone func(ContextItem)) {
		c.CollectSnapshot(nil, onDone)
	})

	if item.Success {
		t.Error("expected failure for nil frame")
	}
}

func TestCollectSnapshot_StoresLatest(t *testing.T) {
	frame := localsWith(named("x", &fakeValue{typeName: "int", text: "1"}))
	c := NewCollector(DefaultBudgets())

	awaitItem(t, func(onDone func(ContextItem)) {
		c.CollectSnapshot(frame, onDone)
	})

	first := c.LatestSnapshot()
	second := c.LatestSnapshot()

	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("expected stored snapshot of 1 item, got %d and %d", len(first), len(second))
	}
	if !reflect.DeepEqual(first[0], second[0]) {
		t.Error("consecutive reads should be equal")
	}

	// Copies must be independently mutable.
	first[0].Name = "mutated"
	if c.LatestSnapshot()[0].Name != "x" {
		t.Error("mutating a returned copy must not affect the store")
	}
}

func TestCollectSnapshot_FailedCollectionDoesNotOverwriteStore(t *testing.T) {
	good := localsWith(named("x", &fakeValue{typeName: "int", text: "1"}))
	bad := &fakeFrame{locals: &fakeValue{childErr: errors.New("gone")}}
	c := NewCollector(DefaultBudgets())

	awaitItem(t, func(onDone func(ContextItem)) {
		c.CollectSnapshot(good, onDone)
	})
	awaitItem(t, func(onDone func(ContextItem)) {
		c.CollectSnapshot(bad, onDone)
	})

	if len(c.LatestSnapshot()) != 1 {
		t.Error("failed collection must not overwrite the stored result")
	}
}

func TestCollectorClear(t *testing.T) {
	frame := localsWith(named("x", &fakeValue{typeName: "int", text: "1"}))
	c := NewCollector(DefaultBudgets())

	awaitItem(t, func(onDone func(ContextItem)) {
		c.CollectSnapshot(frame, onDone)
	})

	c.Clear()

	if got := c.LatestSnapshot(); got != nil {
		t.Errorf("expected nil snapshot after clear, got %v", got)
	}
	if got := c.LatestStack(); got != nil {
		t.Errorf("expected nil stack after clear, got %v", got)
	}
	if _, ok := c.LatestException(); ok {
		t.Error("expected no exception after clear")
	}
}
