package collect

import "sync"

// ItemKind classifies a snapshot item.
type ItemKind string

const (
	// ItemLocal is a top-level local binding of a frame.
	ItemLocal ItemKind = "local"
	// ItemField is a nested field of another item.
	ItemField ItemKind = "field"
)

// SnapshotItem is one frozen binding in a collected snapshot tree. Items are
// immutable once produced; accessors on the store return independent copies.
type SnapshotItem struct {
	// Name is the binding name.
	Name string `json:"name"`

	// Type is the resolved type name, or "unknown".
	Type string `json:"type"`

	// Value is the rendered value text, or "unavailable".
	Value string `json:"value"`

	// Kind reports whether the item is a local or a nested field.
	Kind ItemKind `json:"kind"`

	// Children are the item's collected child bindings in backend order.
	Children []SnapshotItem `json:"children,omitempty"`
}

// copyItems returns a deep copy of a snapshot item list.
func copyItems(items []SnapshotItem) []SnapshotItem {
	if items == nil {
		return nil
	}

	result := make([]SnapshotItem, len(items))
	for i, item := range items {
		result[i] = item
		result[i].Children = copyItems(item.Children)
	}
	return result
}

// itemBuilder accumulates one snapshot item during a walk.
//
// A builder is owned exclusively by the walk branch that created it: its
// presentation is written by the single asynchronous callback resolving the
// binding, and its children are appended by that binding's children
// callback. The mutex covers the handoff between those callbacks and the
// final freeze, which happens only after the branch's join has fired.
type itemBuilder struct {
	mu       sync.Mutex
	name     string
	typeName string
	value    string
	kind     ItemKind
	children []*itemBuilder
}

// newItemBuilder creates a builder with unresolved placeholders.
func newItemBuilder(name string, kind ItemKind) *itemBuilder {
	return &itemBuilder{
		name:     name,
		typeName: TypeUnknown,
		value:    ValueUnavailable,
		kind:     kind,
	}
}

// setPresentation records the resolved type and rendered value.
func (b *itemBuilder) setPresentation(typeName, value string) {
	b.mu.Lock()
	b.typeName = typeName
	b.value = value
	b.mu.Unlock()
}

// addChild appends a child builder.
func (b *itemBuilder) addChild(child *itemBuilder) {
	b.mu.Lock()
	b.children = append(b.children, child)
	b.mu.Unlock()
}

// finalize freezes the builder into an immutable snapshot item. It must only
// be called after the builder's subtree has joined; no aliasing remains
// between the builder and the returned value.
func (b *itemBuilder) finalize() SnapshotItem {
	b.mu.Lock()
	defer b.mu.Unlock()

	item := SnapshotItem{
		Name:  b.name,
		Type:  b.typeName,
		Value: b.value,
		Kind:  b.kind,
	}

	if len(b.children) > 0 {
		item.Children = make([]SnapshotItem, len(b.children))
		for i, child := range b.children {
			item.Children[i] = child.finalize()
		}
	}

	return item
}
