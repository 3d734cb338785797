package backend

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dshills/debugctx/internal/backend/dap"
	"github.com/dshills/debugctx/internal/collect"
)

// requestTimeout bounds each DAP request issued on behalf of a collection
// callback.
const requestTimeout = 10 * time.Second

// StackSource exposes the session's paused call stack to the collection
// engine. The source is only useful while the session is stopped; requests
// issued after it resumes fail and surface as collection failures.
func (s *Session) StackSource() collect.StackSource {
	return &dapStack{session: s}
}

// dapStack implements collect.StackSource over the stopped thread.
type dapStack struct {
	session *Session
}

// ActiveFrame fetches the innermost frame of the stopped thread.
func (d *dapStack) ActiveFrame() (collect.Frame, bool) {
	thread, ok := d.session.StoppedThread()
	if !ok {
		return nil, false
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	body, err := d.session.client.StackTrace(ctx, dap.StackTraceArguments{
		ThreadID: thread,
		Levels:   1,
	})
	if err != nil || len(body.StackFrames) == 0 {
		return nil, false
	}

	return &dapFrame{session: d.session, frame: body.StackFrames[0]}, true
}

// FramesFrom lists frames starting at index, innermost first.
func (d *dapStack) FramesFrom(index int, cb func([]collect.Frame, error)) {
	thread, ok := d.session.StoppedThread()
	if !ok {
		go cb(nil, collect.ErrNoActiveStack)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		body, err := d.session.client.StackTrace(ctx, dap.StackTraceArguments{
			ThreadID:   thread,
			StartFrame: index,
		})
		if err != nil {
			cb(nil, err)
			return
		}

		frames := make([]collect.Frame, len(body.StackFrames))
		for i, f := range body.StackFrames {
			frames[i] = &dapFrame{session: d.session, frame: f}
		}
		cb(frames, nil)
	}()
}

// dapFrame implements collect.Frame over one DAP stack frame.
type dapFrame struct {
	session *Session
	frame   dap.StackFrame
}

// SourcePosition returns the frame's source location. Synthetic frames
// without a file path report ok=false.
func (f *dapFrame) SourcePosition() (collect.SourcePosition, bool) {
	src := f.frame.Source
	if src == nil || src.Path == "" || f.frame.Line < 1 {
		return collect.SourcePosition{}, false
	}
	return collect.SourcePosition{FilePath: src.Path, Line: f.frame.Line}, true
}

// Locals returns the frame's local bindings as an expandable value.
func (f *dapFrame) Locals() collect.Value {
	return &scopeValue{session: f.session, frameID: f.frame.ID}
}

// scopeValue is the synthetic root value whose children are a frame's
// locals. Its own presentation is never meaningful.
type scopeValue struct {
	session *Session
	frameID int
}

// Presentation reports an expandable value with no rendering.
func (v *scopeValue) Presentation(cb func(collect.Presentation, error)) {
	go cb(collect.Presentation{HasChildren: true}, nil)
}

// Children resolves the locals scope and lists its variables.
func (v *scopeValue) Children(cb func([]collect.NamedValue, error)) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		scopes, err := v.session.client.Scopes(ctx, dap.ScopesArguments{FrameID: v.frameID})
		if err != nil {
			cb(nil, err)
			return
		}

		scope, ok := localsScope(scopes)
		if !ok {
			cb(nil, nil)
			return
		}

		variables, err := v.session.client.Variables(ctx, dap.VariablesArguments{
			VariablesReference: scope.VariablesReference,
		})
		if err != nil {
			cb(nil, err)
			return
		}

		cb(namedValues(v.session, variables), nil)
	}()
}

// localsScope picks the scope holding local variables: the one hinted
// "locals", else the first matching by name, else the first inexpensive
// scope.
func localsScope(scopes []dap.Scope) (dap.Scope, bool) {
	for _, s := range scopes {
		if s.PresentationHint == "locals" {
			return s, true
		}
	}
	for _, s := range scopes {
		if strings.Contains(strings.ToLower(s.Name), "local") {
			return s, true
		}
	}
	for _, s := range scopes {
		if !s.Expensive {
			return s, true
		}
	}
	return dap.Scope{}, false
}

// namedValues wraps DAP variables as collect values.
func namedValues(session *Session, variables []dap.Variable) []collect.NamedValue {
	result := make([]collect.NamedValue, len(variables))
	for i, v := range variables {
		result[i] = collect.NamedValue{
			Name:  v.Name,
			Value: &dapValue{session: session, variable: v},
		}
	}
	return result
}

// dapValue implements collect.Value over one DAP variable. The variables
// response already carries the name, value text and type, so Presentation
// resolves without another round trip; only Children goes back to the
// adapter.
type dapValue struct {
	session  *Session
	variable dap.Variable
}

// Presentation delivers the variable's cached type and value text.
func (v *dapValue) Presentation(cb func(collect.Presentation, error)) {
	go cb(collect.Presentation{
		TypeName:    v.variable.Type,
		Renderer:    &valueRenderer{text: v.variable.Value},
		HasChildren: v.variable.VariablesReference > 0,
	}, nil)
}

// Children lists the variable's fields or elements.
func (v *dapValue) Children(cb func([]collect.NamedValue, error)) {
	if v.variable.VariablesReference == 0 {
		go cb(nil, nil)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		variables, err := v.session.client.Variables(ctx, dap.VariablesArguments{
			VariablesReference: v.variable.VariablesReference,
		})
		if err != nil {
			cb(nil, fmt.Errorf("variables %d: %w", v.variable.VariablesReference, err))
			return
		}

		cb(namedValues(v.session, variables), nil)
	}()
}

// valueRenderer streams a variable's value text as classified fragments.
// DAP delivers one flat string, so classification sniffs the text shape.
type valueRenderer struct {
	text string
}

// RenderTo implements collect.Renderer.
func (r *valueRenderer) RenderTo(sink collect.FragmentSink) error {
	sink.Append(classifyValueText(r.text), r.text)
	return nil
}

// classifyValueText guesses the fragment kind for a rendered value.
func classifyValueText(text string) collect.FragmentKind {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return collect.FragmentPlain
	}

	switch trimmed {
	case "true", "false", "nil", "null", "None", "undefined", "True", "False":
		return collect.FragmentKeyword
	}

	if len(trimmed) >= 2 {
		if (trimmed[0] == '"' && trimmed[len(trimmed)-1] == '"') ||
			(trimmed[0] == '\'' && trimmed[len(trimmed)-1] == '\'') {
			return collect.FragmentString
		}
	}

	if isNumericText(trimmed) {
		return collect.FragmentNumeric
	}

	return collect.FragmentPlain
}

// isNumericText reports whether text looks like a numeric literal.
func isNumericText(text string) bool {
	seenDigit := false
	for i, r := range text {
		switch {
		case r >= '0' && r <= '9':
			seenDigit = true
		case (r == '-' || r == '+') && i == 0:
		case r == '.' || r == 'e' || r == 'E' || r == 'x' || r == 'X':
		case r >= 'a' && r <= 'f' || r >= 'A' && r <= 'F':
			// Hex digits only count after an x prefix; without one this
			// is not a number.
			if !strings.ContainsAny(text, "xX") {
				return false
			}
		default:
			return false
		}
	}
	return seenDigit
}
