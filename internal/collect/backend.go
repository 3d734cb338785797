package collect

// FragmentKind classifies a piece of rendered value text.
type FragmentKind int

const (
	// FragmentPlain is unclassified text.
	FragmentPlain FragmentKind = iota
	// FragmentString is string literal text.
	FragmentString
	// FragmentNumeric is numeric literal text.
	FragmentNumeric
	// FragmentKeyword is keyword text (true, false, nil, None).
	FragmentKeyword
	// FragmentSymbol is punctuation or operator text.
	FragmentSymbol
	// FragmentError is error text produced in place of a real rendering.
	FragmentError
)

// FragmentSink receives typed text fragments from a Renderer.
type FragmentSink interface {
	// Append adds one fragment to the rendering.
	Append(kind FragmentKind, text string)
}

// Renderer streams the textual presentation of a value as typed fragments.
type Renderer interface {
	// RenderTo writes the value's rendering into the sink. An error means
	// the rendering failed; fragments already appended are kept.
	RenderTo(sink FragmentSink) error
}

// Presentation is the resolved presentation of a backend value.
type Presentation struct {
	// TypeName is the value's type name, empty if the backend could not
	// resolve it.
	TypeName string

	// Renderer streams the rendered value text. Nil means the value's
	// presentation is not yet computed by the backend.
	Renderer Renderer

	// HasChildren reports whether the backend considers the value
	// expandable.
	HasChildren bool
}

// Value is a single debuggee value exposed by the backend.
//
// Both methods are asynchronous: the callback is invoked exactly once, on a
// goroutine of the backend's choosing. The engine relies on that contract
// for forward progress; a backend that never calls back stalls the
// collection that issued the request.
type Value interface {
	// Presentation resolves the value's type and rendered text.
	Presentation(cb func(p Presentation, err error))

	// Children lists the value's named child bindings in backend order.
	// A non-nil error is a structural failure: the backend could not
	// produce children at all.
	Children(cb func(children []NamedValue, err error))
}

// NamedValue is one named child binding of a value.
type NamedValue struct {
	// Name is the binding name as reported by the backend.
	Name string

	// Value is the bound value.
	Value Value
}

// SourcePosition identifies a location in a source file.
type SourcePosition struct {
	// FilePath is the absolute or workspace-relative file path.
	FilePath string

	// Line is the 1-based line number.
	Line int
}

// Frame is one entry in a paused call stack.
type Frame interface {
	// SourcePosition returns the frame's source location. ok is false when
	// the frame has no resolvable source.
	SourcePosition() (pos SourcePosition, ok bool)

	// Locals returns the frame's visible local bindings as a value whose
	// children are the bindings.
	Locals() Value
}

// StackSource exposes a paused session's call stack.
type StackSource interface {
	// ActiveFrame returns the innermost frame of the stopped thread, or
	// ok=false when the session has no active stack.
	ActiveFrame() (frame Frame, ok bool)

	// FramesFrom asynchronously lists frames starting at index, innermost
	// first. The callback is invoked exactly once on a goroutine of the
	// backend's choosing; a non-nil error yields no frames.
	FramesFrom(index int, cb func(frames []Frame, err error))
}

// SourceNavigator resolves enclosing-function excerpts for the stack
// collector. Implementations live outside this package; see the source
// package for a file-based one.
type SourceNavigator interface {
	// EnclosingFunctionText returns the text of the function enclosing the
	// given position along with the 1-based line its first line occupies in
	// the file. ok is false when no enclosing function is resolvable.
	EnclosingFunctionText(file string, line int) (text string, startLine int, ok bool)
}
