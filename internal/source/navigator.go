// Package source resolves enclosing-function excerpts from source files on
// disk. It backs the stack collector's function context without requiring a
// language server.
package source

import (
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/dshills/debugctx/internal/collect"
)

// maxFunctionLines bounds both the upward scan for a function start and the
// forward scan for its end.
const maxFunctionLines = 400

// Navigator finds the function enclosing a source position by scanning the
// file with per-language heuristics. It implements collect.SourceNavigator
// and is safe for concurrent use.
type Navigator struct {
	mu    sync.Mutex
	cache map[string]*cachedFile
}

// cachedFile holds a file's split lines, invalidated when the file changes.
type cachedFile struct {
	modTime time.Time
	size    int64
	lines   []string
}

// NewNavigator creates a navigator with an empty file cache.
func NewNavigator() *Navigator {
	return &Navigator{cache: make(map[string]*cachedFile)}
}

var (
	goFuncPattern     = regexp.MustCompile(`^func\b`)
	pythonFuncPattern = regexp.MustCompile(`^([ \t]*)(async[ \t]+)?def[ \t]+\w+`)
	jsFuncPattern     = regexp.MustCompile(`^[ \t]*(export[ \t]+)?(async[ \t]+)?function\b|^[ \t]*[\w$.]+[ \t]*=[ \t]*(async[ \t]+)?\(|^[ \t]*(get[ \t]+|set[ \t]+)?[\w$]+[ \t]*\([^)]*\)[ \t]*\{`)
	braceFuncPattern  = regexp.MustCompile(`\)[ \t]*\{[ \t]*$`)
)

// EnclosingFunctionText returns the text of the function containing line,
// along with the 1-based file line of its first line. ok is false when the
// file cannot be read, the language is unrecognized, or no enclosing
// function is found within the scan limit.
func (n *Navigator) EnclosingFunctionText(file string, line int) (string, int, bool) {
	lines, err := n.fileLines(file)
	if err != nil || line < 1 || line > len(lines) {
		return "", 0, false
	}

	switch collect.LanguageHint(file) {
	case "go":
		return enclosingBraced(lines, line, goFuncPattern)
	case "python":
		return enclosingIndented(lines, line)
	case "javascript":
		return enclosingBraced(lines, line, jsFuncPattern)
	case "java", "c":
		return enclosingBraced(lines, line, braceFuncPattern)
	default:
		return "", 0, false
	}
}

// fileLines returns the file's lines, reading from the cache when the file
// is unchanged since the last read.
func (n *Navigator) fileLines(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if c, ok := n.cache[path]; ok && c.modTime.Equal(info.ModTime()) && c.size == info.Size() {
		return c.lines, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	n.cache[path] = &cachedFile{
		modTime: info.ModTime(),
		size:    info.Size(),
		lines:   lines,
	}
	return lines, nil
}

// enclosingBraced scans upward from the target line for a function start
// matching the pattern, then brace-matches forward for the function end. The
// first start whose span contains the target wins.
func enclosingBraced(lines []string, target int, start *regexp.Regexp) (string, int, bool) {
	idx := target - 1
	lo := idx - maxFunctionLines
	if lo < 0 {
		lo = 0
	}

	for i := idx; i >= lo; i-- {
		if !start.MatchString(lines[i]) {
			continue
		}

		end, ok := matchBraces(lines, i)
		if !ok || end < idx {
			continue
		}

		return strings.Join(lines[i:end+1], "\n"), i + 1, true
	}

	return "", 0, false
}

// matchBraces returns the index of the line that closes the first brace
// opened at or after start. Braces inside string literals and comments are
// counted too; the miscount this can cause is acceptable for an excerpt.
func matchBraces(lines []string, start int) (int, bool) {
	limit := start + maxFunctionLines
	if limit > len(lines) {
		limit = len(lines)
	}

	depth := 0
	opened := false
	for i := start; i < limit; i++ {
		for _, r := range lines[i] {
			switch r {
			case '{':
				depth++
				opened = true
			case '}':
				depth--
				if opened && depth == 0 {
					return i, true
				}
			}
		}
	}

	return 0, false
}

// enclosingIndented scans upward for a def whose indentation level encloses
// the target line, then extends forward until the indentation returns to the
// def's level.
func enclosingIndented(lines []string, target int) (string, int, bool) {
	idx := target - 1
	lo := idx - maxFunctionLines
	if lo < 0 {
		lo = 0
	}

	for i := idx; i >= lo; i-- {
		m := pythonFuncPattern.FindStringSubmatch(lines[i])
		if m == nil {
			continue
		}

		defIndent := len(m[1])
		if i != idx && strings.TrimSpace(lines[idx]) != "" && indentOf(lines[idx]) <= defIndent {
			// The target sits outside this def's body.
			continue
		}

		end := i
		limit := i + maxFunctionLines
		if limit > len(lines) {
			limit = len(lines)
		}
		for j := i + 1; j < limit; j++ {
			if strings.TrimSpace(lines[j]) == "" {
				continue
			}
			if indentOf(lines[j]) <= defIndent {
				break
			}
			end = j
		}

		if end < idx {
			continue
		}

		return strings.Join(lines[i:end+1], "\n"), i + 1, true
	}

	return "", 0, false
}

// indentOf returns the index of the first non-whitespace rune.
func indentOf(s string) int {
	for i, r := range s {
		if r != ' ' && r != '\t' {
			return i
		}
	}
	return len(s)
}
