package collect

import "strings"

// Placeholder strings used until a value is resolved.
const (
	// TypeUnknown is the type placeholder for an unresolved value.
	TypeUnknown = "unknown"

	// ValueUnavailable is the value placeholder for an unresolved or
	// unrenderable value.
	ValueUnavailable = "unavailable"
)

// textSink concatenates renderer fragments into a single string, discarding
// the fragment kinds. It is the adapter between a backend's structured
// rendering callbacks and the flat strings stored in snapshot items.
type textSink struct {
	sb strings.Builder
}

// Append implements FragmentSink.
func (s *textSink) Append(kind FragmentKind, text string) {
	s.sb.WriteString(text)
}

// String returns the concatenated rendering.
func (s *textSink) String() string {
	return s.sb.String()
}

// renderText flattens a presentation's renderer into one string.
//
// A nil renderer means the backend has not computed the presentation; the
// placeholder is returned. A render error keeps any fragments already
// appended, falling back to the placeholder only when nothing was produced.
func renderText(p Presentation) string {
	if p.Renderer == nil {
		return ValueUnavailable
	}

	var sink textSink
	err := p.Renderer.RenderTo(&sink)
	if err != nil && sink.sb.Len() == 0 {
		return ValueUnavailable
	}

	return sink.String()
}

// typeNameOrUnknown returns the presentation's type name, or the placeholder
// when the backend did not resolve one.
func typeNameOrUnknown(p Presentation) string {
	if p.TypeName == "" {
		return TypeUnknown
	}
	return p.TypeName
}
