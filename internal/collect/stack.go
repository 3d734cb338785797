package collect

import "strings"

// StackItem is one retained frame of a collected call stack. Items are
// immutable once constructed and ordered innermost first.
type StackItem struct {
	// FilePath is the frame's source file.
	FilePath string `json:"filePath"`

	// LineNumber is the 1-based current line in the source.
	LineNumber int `json:"lineNumber"`

	// EnclosingFunctionText is the excerpt of the function enclosing the
	// line, possibly empty.
	EnclosingFunctionText string `json:"enclosingFunction,omitempty"`

	// LanguageHint is the source language derived from the file extension.
	LanguageHint string `json:"language,omitempty"`
}

// collectStackItems builds the bounded stack list from a frame list: the
// first MaxStackItems frames with a resolvable source position are retained,
// each with an optional enclosing-function excerpt, then trailing items are
// trimmed until the list fits MaxStackBytes.
func collectStackItems(frames []Frame, nav SourceNavigator, budgets Budgets) []StackItem {
	items := make([]StackItem, 0, len(frames))
	for _, frame := range frames {
		if budgets.MaxStackItems > 0 && len(items) >= budgets.MaxStackItems {
			break
		}

		pos, ok := frame.SourcePosition()
		if !ok {
			continue
		}

		items = append(items, buildStackItem(pos, nav, budgets))
	}

	return TrimToSize(items, budgets.MaxStackBytes)
}

// buildStackItem constructs the item for one source position, consulting the
// source navigator for an enclosing-function excerpt when one is available.
func buildStackItem(pos SourcePosition, nav SourceNavigator, budgets Budgets) StackItem {
	item := StackItem{
		FilePath:     pos.FilePath,
		LineNumber:   pos.Line,
		LanguageHint: LanguageHint(pos.FilePath),
	}

	if nav == nil {
		return item
	}

	text, startLine, ok := nav.EnclosingFunctionText(pos.FilePath, pos.Line)
	if !ok {
		return item
	}

	item.EnclosingFunctionText = clipWindow(text, startLine, pos.Line, budgets.FunctionPrefixLines, budgets.FunctionSuffixLines)
	return item
}

// clipWindow clips an excerpt to a prefix+suffix line window centered on the
// target line when it exceeds that window; shorter excerpts are returned
// verbatim. startLine is the 1-based file line of the excerpt's first line.
func clipWindow(text string, startLine, targetLine, prefix, suffix int) string {
	lines := strings.Split(text, "\n")
	if len(lines) <= prefix+suffix+1 {
		return text
	}

	target := targetLine - startLine
	if target < 0 {
		target = 0
	}
	if target >= len(lines) {
		target = len(lines) - 1
	}

	lo := target - prefix
	if lo < 0 {
		lo = 0
	}
	hi := target + suffix + 1
	if hi > len(lines) {
		hi = len(lines)
	}

	return strings.Join(lines[lo:hi], "\n")
}
