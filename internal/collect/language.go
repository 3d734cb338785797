package collect

import (
	"path/filepath"
	"strings"
	"sync"
)

// LanguageCapability describes language-specific exception heuristics. A
// capability is registered per source language and looked up by the hint
// derived from a frame's file extension, replacing any runtime probing of
// the debuggee's introspection facilities.
type LanguageCapability struct {
	// MarkerNames are language-specific binding names that identify the
	// active exception (matched case-insensitively, as substrings).
	MarkerNames []string

	// ShortNames are conventional short binding names for a caught
	// exception (matched case-insensitively, exact).
	ShortNames []string

	// StructuredTriple indicates the backend exposes the exception as a
	// positional (type, object, trace) triple instead of named fields.
	StructuredTriple bool
}

// LanguageRegistry maps a language hint to its capability.
type LanguageRegistry struct {
	mu   sync.RWMutex
	caps map[string]LanguageCapability
}

// NewLanguageRegistry creates a registry seeded with the built-in
// capabilities for go, python, javascript, and java.
func NewLanguageRegistry() *LanguageRegistry {
	r := &LanguageRegistry{
		caps: make(map[string]LanguageCapability),
	}

	r.Register("go", LanguageCapability{})
	r.Register("python", LanguageCapability{
		MarkerNames:      []string{"__exception__"},
		ShortNames:       []string{"e", "exc"},
		StructuredTriple: true,
	})
	r.Register("javascript", LanguageCapability{
		ShortNames: []string{"e", "err"},
	})
	r.Register("java", LanguageCapability{
		ShortNames: []string{"e", "ex", "t"},
	})

	return r
}

// Register adds or replaces the capability for a language.
func (r *LanguageRegistry) Register(language string, cap LanguageCapability) {
	r.mu.Lock()
	r.caps[strings.ToLower(language)] = cap
	r.mu.Unlock()
}

// Lookup returns the capability for a language hint.
func (r *LanguageRegistry) Lookup(language string) (LanguageCapability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cap, ok := r.caps[strings.ToLower(language)]
	return cap, ok
}

// Languages returns the registered language hints.
func (r *LanguageRegistry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]string, 0, len(r.caps))
	for lang := range r.caps {
		result = append(result, lang)
	}
	return result
}

// LanguageHint derives a language hint from a source file path. Unrecognized
// extensions yield the bare extension so the hint stays useful for display.
func LanguageHint(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".go":
		return "go"
	case ".py", ".pyw":
		return "python"
	case ".js", ".mjs", ".cjs", ".ts", ".tsx", ".jsx":
		return "javascript"
	case ".java", ".kt", ".kts":
		return "java"
	case ".rb":
		return "ruby"
	case ".rs":
		return "rust"
	case ".c", ".cc", ".cpp", ".h", ".hpp":
		return "c"
	default:
		return strings.TrimPrefix(ext, ".")
	}
}
