package source

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const goSource = `package main

import "fmt"

func helper() int {
	return 1
}

func process(items []int) int {
	total := 0
	for _, n := range items {
		total += n
	}
	return total
}

func main() {
	fmt.Println(process([]int{1, 2, 3}))
}
`

func TestEnclosingFunctionGo(t *testing.T) {
	path := writeFile(t, "main.go", goSource)
	nav := NewNavigator()

	text, startLine, ok := nav.EnclosingFunctionText(path, 12)
	if !ok {
		t.Fatal("expected a function")
	}
	if startLine != 9 {
		t.Errorf("startLine = %d, want 9", startLine)
	}
	if !strings.HasPrefix(text, "func process(") {
		t.Errorf("text begins %q", strings.SplitN(text, "\n", 2)[0])
	}
	if !strings.HasSuffix(text, "}") {
		t.Errorf("text ends %q", text[len(text)-10:])
	}
	if strings.Contains(text, "func main") {
		t.Error("excerpt leaked into the following function")
	}
}

func TestEnclosingFunctionGoOnStartLine(t *testing.T) {
	path := writeFile(t, "main.go", goSource)
	nav := NewNavigator()

	_, startLine, ok := nav.EnclosingFunctionText(path, 9)
	if !ok || startLine != 9 {
		t.Errorf("startLine = %d, ok = %v, want 9", startLine, ok)
	}
}

func TestEnclosingFunctionGoBetweenFunctions(t *testing.T) {
	path := writeFile(t, "main.go", goSource)
	nav := NewNavigator()

	// Line 8 is the blank line between helper and process.
	if _, _, ok := nav.EnclosingFunctionText(path, 8); ok {
		t.Error("a line between functions has no enclosing function")
	}
}

const pythonSource = `import sys


def helper():
    return 1


class Worker:
    def run(self, items):
        total = 0
        for n in items:
            total += n
        return total

    def stop(self):
        pass
`

func TestEnclosingFunctionPython(t *testing.T) {
	path := writeFile(t, "worker.py", pythonSource)
	nav := NewNavigator()

	text, startLine, ok := nav.EnclosingFunctionText(path, 11)
	if !ok {
		t.Fatal("expected a function")
	}
	if startLine != 9 {
		t.Errorf("startLine = %d, want 9", startLine)
	}
	if !strings.Contains(text, "def run(self, items):") {
		t.Errorf("unexpected excerpt:\n%s", text)
	}
	if strings.Contains(text, "def stop") {
		t.Error("excerpt leaked into the following method")
	}
}

func TestEnclosingFunctionPythonTopLevel(t *testing.T) {
	path := writeFile(t, "worker.py", pythonSource)
	nav := NewNavigator()

	text, startLine, ok := nav.EnclosingFunctionText(path, 5)
	if !ok {
		t.Fatal("expected a function")
	}
	if startLine != 4 || !strings.HasPrefix(text, "def helper():") {
		t.Errorf("startLine = %d, text begins %q", startLine, strings.SplitN(text, "\n", 2)[0])
	}
}

const jsSource = `const fs = require("fs");

function readConfig(path) {
  const raw = fs.readFileSync(path);
  return JSON.parse(raw);
}

const handler = async (req) => {
  return readConfig(req.path);
};
`

func TestEnclosingFunctionJavaScript(t *testing.T) {
	path := writeFile(t, "app.js", jsSource)
	nav := NewNavigator()

	text, startLine, ok := nav.EnclosingFunctionText(path, 4)
	if !ok {
		t.Fatal("expected a function")
	}
	if startLine != 3 || !strings.HasPrefix(text, "function readConfig(") {
		t.Errorf("startLine = %d, text begins %q", startLine, strings.SplitN(text, "\n", 2)[0])
	}
}

func TestEnclosingFunctionUnknownLanguage(t *testing.T) {
	path := writeFile(t, "data.txt", "just\nsome\ntext\n")
	nav := NewNavigator()

	if _, _, ok := nav.EnclosingFunctionText(path, 2); ok {
		t.Error("unrecognized language must not resolve")
	}
}

func TestEnclosingFunctionMissingFile(t *testing.T) {
	nav := NewNavigator()

	if _, _, ok := nav.EnclosingFunctionText("/nonexistent/file.go", 1); ok {
		t.Error("missing file must not resolve")
	}
}

func TestEnclosingFunctionLineOutOfRange(t *testing.T) {
	path := writeFile(t, "main.go", goSource)
	nav := NewNavigator()

	if _, _, ok := nav.EnclosingFunctionText(path, 9999); ok {
		t.Error("out-of-range line must not resolve")
	}
	if _, _, ok := nav.EnclosingFunctionText(path, 0); ok {
		t.Error("line 0 must not resolve")
	}
}

func TestNavigatorCacheInvalidation(t *testing.T) {
	path := writeFile(t, "main.go", goSource)
	nav := NewNavigator()

	if _, _, ok := nav.EnclosingFunctionText(path, 12); !ok {
		t.Fatal("expected a function")
	}

	// The replacement is shorter, so the size check invalidates the cache
	// even when the rewrite lands within mtime granularity.
	replaced := "package main\n\nfunc changed() {\n\t_ = 1\n}\n"
	if err := os.WriteFile(path, []byte(replaced), 0o644); err != nil {
		t.Fatal(err)
	}

	text, _, ok := nav.EnclosingFunctionText(path, 4)
	if !ok {
		t.Fatal("expected a function after rewrite")
	}
	if !strings.HasPrefix(text, "func changed()") {
		t.Errorf("stale cache served old content: %q", strings.SplitN(text, "\n", 2)[0])
	}
}
