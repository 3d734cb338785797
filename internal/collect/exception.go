package collect

import (
	"strings"
	"sync"
)

// ExceptionDetail describes the active exception assembled from a paused
// frame. It is only materialized once both the message and the stack trace
// have arrived.
type ExceptionDetail struct {
	// Message is the exception message, possibly composed from a primary
	// message and a secondary detail message.
	Message string `json:"message"`

	// Type is the exception type name.
	Type string `json:"type"`

	// StackTraceText is the line-limited stack trace text.
	StackTraceText string `json:"stackTrace,omitempty"`

	// FilePath is the source file of the frame the exception was found in.
	FilePath string `json:"filePath,omitempty"`

	// LineNumber is the 1-based line of that frame.
	LineNumber int `json:"lineNumber,omitempty"`
}

// assemblyState is the state of an exception assembly.
type assemblyState int

const (
	// assemblyInit is the initial state: neither field has arrived.
	assemblyInit assemblyState = iota
	// assemblyMessageReady means the message arrived first.
	assemblyMessageReady
	// assemblyStackReady means the stack trace arrived first.
	assemblyStackReady
	// assemblyComplete means both fields are set and the detail was
	// delivered.
	assemblyComplete
)

// String returns a string representation of the state.
func (s assemblyState) String() string {
	switch s {
	case assemblyInit:
		return "init"
	case assemblyMessageReady:
		return "message-ready"
	case assemblyStackReady:
		return "stack-ready"
	case assemblyComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// exceptionAssembly accumulates the two independently arriving exception
// fields. Either field may arrive first, on any goroutine; the final detail
// is built and delivered exactly once, when both are set. Duplicate arrivals
// are ignored.
type exceptionAssembly struct {
	mu            sync.Mutex
	state         assemblyState
	detail        ExceptionDetail
	maxTraceLines int
	deliver       func(ExceptionDetail)
}

// newExceptionAssembly creates an assembly seeded with the fields known up
// front (type and source position).
func newExceptionAssembly(seed ExceptionDetail, maxTraceLines int, deliver func(ExceptionDetail)) *exceptionAssembly {
	return &exceptionAssembly{
		state:         assemblyInit,
		detail:        seed,
		maxTraceLines: maxTraceLines,
		deliver:       deliver,
	}
}

// SetType records the exception type name. It does not participate in the
// state machine; it must be recorded before the field that completes the
// assembly arrives.
func (a *exceptionAssembly) SetType(typeName string) {
	a.mu.Lock()
	if a.state != assemblyComplete && typeName != "" {
		a.detail.Type = typeName
	}
	a.mu.Unlock()
}

// SetMessage records the message field.
func (a *exceptionAssembly) SetMessage(message string) {
	a.mu.Lock()
	switch a.state {
	case assemblyInit:
		a.detail.Message = message
		a.state = assemblyMessageReady
		a.mu.Unlock()
	case assemblyStackReady:
		a.detail.Message = message
		a.complete()
	default:
		a.mu.Unlock()
	}
}

// SetStackTrace records the stack-trace field, clipped to the configured
// line limit.
func (a *exceptionAssembly) SetStackTrace(trace string) {
	a.mu.Lock()
	switch a.state {
	case assemblyInit:
		a.detail.StackTraceText = clipLines(trace, a.maxTraceLines)
		a.state = assemblyStackReady
		a.mu.Unlock()
	case assemblyMessageReady:
		a.detail.StackTraceText = clipLines(trace, a.maxTraceLines)
		a.complete()
	default:
		a.mu.Unlock()
	}
}

// complete transitions to the terminal state and delivers the detail. The
// mutex must be held; it is released before the delivery callback runs.
func (a *exceptionAssembly) complete() {
	a.state = assemblyComplete
	detail := a.detail
	deliver := a.deliver
	a.mu.Unlock()

	deliver(detail)
}

// detectCandidateByName returns the index of the exception candidate among a
// frame's direct children using name heuristics, or -1.
//
// Predicates are applied in declared priority order, each scanning the
// children in backend-reported order; the first match wins. The original
// precedence between disagreeing heuristics is unspecified, so this order is
// the contract:
//
//  1. name contains "exception"
//  2. name contains "throwable"
//  3. name contains a language-specific marker name
//  4. name equals a conventional short name
func detectCandidateByName(children []NamedValue, caps LanguageCapability) int {
	predicates := []func(name string) bool{
		func(name string) bool { return strings.Contains(name, "exception") },
		func(name string) bool { return strings.Contains(name, "throwable") },
		func(name string) bool {
			for _, marker := range caps.MarkerNames {
				if strings.Contains(name, strings.ToLower(marker)) {
					return true
				}
			}
			return false
		},
		func(name string) bool {
			for _, short := range caps.ShortNames {
				if name == strings.ToLower(short) {
					return true
				}
			}
			return false
		},
	}

	for _, match := range predicates {
		for i, child := range children {
			if match(strings.ToLower(child.Name)) {
				return i
			}
		}
	}

	return -1
}

// matchesExceptionType reports whether a resolved presentation type signals
// an exception. This is the lowest-priority detection heuristic, consulted
// only when no name predicate matched.
func matchesExceptionType(typeName string) bool {
	return strings.Contains(strings.ToLower(typeName), "exception")
}

// Field-name heuristics for assembly. Names are compared lowercased with
// underscores removed, so "stack_trace", "stackTrace" and "StackTrace" all
// normalize identically.

func normalizeFieldName(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), "_", "")
}

func isPrimaryMessageField(name string) bool {
	switch normalizeFieldName(name) {
	case "message", "msg", "args":
		return true
	}
	return false
}

func isDetailMessageField(name string) bool {
	switch normalizeFieldName(name) {
	case "detailmessage", "detail":
		return true
	}
	return false
}

func isStackTraceField(name string) bool {
	normalized := normalizeFieldName(name)
	return strings.Contains(normalized, "stacktrace") || strings.Contains(normalized, "traceback")
}

// assembleException builds the ExceptionDetail for a chosen candidate and
// delivers it exactly once.
//
// pres is the candidate's already-resolved presentation: its type seeds the
// detail and its rendered text is the fallback message when no message field
// exists among the candidate's children. The message and stack-trace fields
// are requested concurrently and may complete in either order.
func assembleException(cand NamedValue, pres Presentation, pos SourcePosition, budgets Budgets, caps LanguageCapability, deliver func(ExceptionDetail)) {
	seed := ExceptionDetail{
		Type:       typeNameOrUnknown(pres),
		FilePath:   pos.FilePath,
		LineNumber: pos.Line,
	}
	fallback := renderText(pres)
	asm := newExceptionAssembly(seed, budgets.MaxTraceLines, deliver)

	cand.Value.Children(func(fields []NamedValue, err error) {
		if err != nil {
			asm.SetMessage(fallback)
			asm.SetStackTrace("")
			return
		}

		if caps.StructuredTriple && isStructuredTriple(fields) {
			assembleFromTriple(fields, asm)
			return
		}

		assembleFromFields(fields, fallback, asm)
	})
}

// isStructuredTriple reports whether the candidate's children follow the
// positional (type, object, trace) convention: exactly three members, none
// of which carries a recognizable field name.
func isStructuredTriple(fields []NamedValue) bool {
	if len(fields) != 3 {
		return false
	}
	for _, f := range fields {
		if isPrimaryMessageField(f.Name) || isDetailMessageField(f.Name) || isStackTraceField(f.Name) {
			return false
		}
	}
	return true
}

// assembleFromTriple extracts type, message and trace from the triple's
// positional members. The type member resolves first so the assembly cannot
// complete without it; the remaining two drive the state machine as usual.
func assembleFromTriple(fields []NamedValue, asm *exceptionAssembly) {
	fields[0].Value.Presentation(func(p Presentation, err error) {
		if err == nil {
			asm.SetType(renderText(p))
		}

		fields[1].Value.Presentation(func(p Presentation, err error) {
			if err != nil {
				asm.SetMessage(ValueUnavailable)
				return
			}
			asm.SetMessage(renderText(p))
		})

		fields[2].Value.Presentation(func(p Presentation, err error) {
			if err != nil {
				asm.SetStackTrace("")
				return
			}
			asm.SetStackTrace(renderText(p))
		})
	})
}

// assembleFromFields resolves the named message and stack-trace fields.
func assembleFromFields(fields []NamedValue, fallback string, asm *exceptionAssembly) {
	var primary, detail, trace *NamedValue
	for i := range fields {
		f := &fields[i]
		switch {
		case primary == nil && isPrimaryMessageField(f.Name):
			primary = f
		case detail == nil && isDetailMessageField(f.Name):
			detail = f
		case trace == nil && isStackTraceField(f.Name):
			trace = f
		}
	}

	resolveMessage(primary, detail, fallback, asm)

	if trace == nil {
		asm.SetStackTrace("")
		return
	}
	trace.Value.Presentation(func(p Presentation, err error) {
		if err != nil {
			asm.SetStackTrace("")
			return
		}
		asm.SetStackTrace(renderText(p))
	})
}

// resolveMessage composes the message from the primary and detail fields.
// When both exist their renderings join as "primary: detail"; when neither
// exists the fallback synthesized from the candidate's own presentation is
// used.
func resolveMessage(primary, detail *NamedValue, fallback string, asm *exceptionAssembly) {
	if primary == nil && detail == nil {
		asm.SetMessage(fallback)
		return
	}

	var mu sync.Mutex
	var primaryText, detailText string

	pending := 0
	if primary != nil {
		pending++
	}
	if detail != nil {
		pending++
	}

	join := NewJoin(pending, func() {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case primaryText != "" && detailText != "":
			asm.SetMessage(primaryText + ": " + detailText)
		case primaryText != "":
			asm.SetMessage(primaryText)
		case detailText != "":
			asm.SetMessage(detailText)
		default:
			asm.SetMessage(fallback)
		}
	})

	if primary != nil {
		primary.Value.Presentation(func(p Presentation, err error) {
			if err == nil {
				mu.Lock()
				primaryText = renderText(p)
				mu.Unlock()
			}
			join.Complete()
		})
	}
	if detail != nil {
		detail.Value.Presentation(func(p Presentation, err error) {
			if err == nil {
				mu.Lock()
				detailText = renderText(p)
				mu.Unlock()
			}
			join.Complete()
		})
	}
}
