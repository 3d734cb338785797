package collect

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

// fakeStackSource implements StackSource over a canned frame list.
type fakeStackSource struct {
	frames []Frame
	err    error
}

func (s *fakeStackSource) ActiveFrame() (Frame, bool) {
	if len(s.frames) == 0 {
		return nil, false
	}
	return s.frames[0], true
}

func (s *fakeStackSource) FramesFrom(index int, cb func([]Frame, error)) {
	go func() {
		if s.err != nil {
			cb(nil, s.err)
			return
		}
		if index >= len(s.frames) {
			cb(nil, nil)
			return
		}
		cb(s.frames[index:], nil)
	}()
}

// fakeNavigator serves a fixed excerpt for every resolvable file.
type fakeNavigator struct {
	text      string
	startLine int
	ok        bool
}

func (n *fakeNavigator) EnclosingFunctionText(file string, line int) (string, int, bool) {
	return n.text, n.startLine, n.ok
}

func sourceFrame(path string, line int) Frame {
	return &fakeFrame{
		pos:    SourcePosition{FilePath: path, Line: line},
		hasPos: true,
		locals: &fakeValue{},
	}
}

func syntheticFrame() Frame {
	return &fakeFrame{locals: &fakeValue{}}
}

func TestCollectStack_KeepsInnermostFirst(t *testing.T) {
	var frames []Frame
	for i := 0; i < 50; i++ {
		frames = append(frames, sourceFrame(fmt.Sprintf("/src/f%d.go", i), i+1))
	}
	c := NewCollector(DefaultBudgets())

	item := awaitItem(t, func(onDone func(ContextItem)) {
		c.CollectStack(&fakeStackSource{frames: frames}, onDone)
	})

	if !item.Success || item.Kind != KindStack {
		t.Fatalf("unexpected result: %+v", item)
	}
	if len(item.Stack) != 20 {
		t.Fatalf("expected 20 items, got %d", len(item.Stack))
	}
	if item.Stack[0].FilePath != "/src/f0.go" || item.Stack[19].FilePath != "/src/f19.go" {
		t.Error("retained items must be the innermost frames in order")
	}
}

func TestCollectStack_SkipsUnresolvableFrames(t *testing.T) {
	frames := []Frame{
		sourceFrame("/src/a.go", 1),
		syntheticFrame(),
		sourceFrame("/src/b.go", 2),
		syntheticFrame(),
	}
	c := NewCollector(DefaultBudgets())

	item := awaitItem(t, func(onDone func(ContextItem)) {
		c.CollectStack(&fakeStackSource{frames: frames}, onDone)
	})

	if len(item.Stack) != 2 {
		t.Fatalf("expected 2 items, got %d", len(item.Stack))
	}
	if item.Stack[0].FilePath != "/src/a.go" || item.Stack[1].FilePath != "/src/b.go" {
		t.Errorf("unexpected items: %+v", item.Stack)
	}
}

func TestCollectStack_UnresolvableFramesDoNotConsumeBudget(t *testing.T) {
	var frames []Frame
	for i := 0; i < 30; i++ {
		frames = append(frames, syntheticFrame())
	}
	for i := 0; i < 5; i++ {
		frames = append(frames, sourceFrame(fmt.Sprintf("/src/f%d.go", i), i+1))
	}
	c := NewCollector(DefaultBudgets())

	item := awaitItem(t, func(onDone func(ContextItem)) {
		c.CollectStack(&fakeStackSource{frames: frames}, onDone)
	})

	if len(item.Stack) != 5 {
		t.Errorf("expected 5 items, got %d", len(item.Stack))
	}
}

func TestCollectStack_ByteBudget(t *testing.T) {
	nav := &fakeNavigator{text: strings.Repeat("line\n", 10) + "line", startLine: 1, ok: true}

	var frames []Frame
	for i := 0; i < 20; i++ {
		frames = append(frames, sourceFrame(fmt.Sprintf("/src/f%d.go", i), 3))
	}

	budgets := DefaultBudgets()
	budgets.MaxStackBytes = 512
	c := NewCollector(budgets, WithNavigator(nav))

	item := awaitItem(t, func(onDone func(ContextItem)) {
		c.CollectStack(&fakeStackSource{frames: frames}, onDone)
	})

	if !item.Success {
		t.Fatal("byte trimming must not fail the collection")
	}
	if size := SerializedSize(item.Stack); size > 512 {
		t.Errorf("serialized size %d exceeds budget 512", size)
	}
	if len(item.Stack) == 0 || len(item.Stack) >= 20 {
		t.Errorf("expected partial trim, got %d items", len(item.Stack))
	}
}

func TestCollectStack_ListingFailure(t *testing.T) {
	c := NewCollector(DefaultBudgets())

	item := awaitItem(t, func(onDone func(ContextItem)) {
		c.CollectStack(&fakeStackSource{err: errors.New("no stopped thread")}, onDone)
	})

	if item.Success {
		t.Error("expected failure")
	}
	if len(item.Stack) != 0 {
		t.Errorf("expected no items, got %d", len(item.Stack))
	}
	if c.LatestStack() != nil {
		t.Error("failed collection must not populate the store")
	}
}

func TestCollectStack_NilSource(t *testing.T) {
	c := NewCollector(DefaultBudgets())

	item := awaitItem(t, func(onDone func(ContextItem)) {
		c.CollectStack(nil, onDone)
	})

	if item.Success {
		t.Error("expected failure for nil source")
	}
}

func TestCollectStack_LanguageHint(t *testing.T) {
	c := NewCollector(DefaultBudgets())

	item := awaitItem(t, func(onDone func(ContextItem)) {
		c.CollectStack(&fakeStackSource{frames: []Frame{sourceFrame("/app/run.py", 12)}}, onDone)
	})

	if got := item.Stack[0].LanguageHint; got != "python" {
		t.Errorf("language hint = %q, want python", got)
	}
}

func TestBuildStackItem_NoNavigator(t *testing.T) {
	item := buildStackItem(SourcePosition{FilePath: "/src/a.go", Line: 5}, nil, DefaultBudgets())

	if item.EnclosingFunctionText != "" {
		t.Error("no navigator means no excerpt")
	}
	if item.FilePath != "/src/a.go" || item.LineNumber != 5 {
		t.Errorf("unexpected item: %+v", item)
	}
}

func TestClipWindow(t *testing.T) {
	var lines []string
	for i := 1; i <= 100; i++ {
		lines = append(lines, fmt.Sprintf("line %d", i))
	}
	text := strings.Join(lines, "\n")

	tests := []struct {
		name       string
		startLine  int
		targetLine int
		wantFirst  string
		wantLast   string
		wantCount  int
	}{
		{"centered", 1, 50, "line 34", "line 66", 33},
		{"near top", 1, 5, "line 1", "line 21", 21},
		{"near bottom", 1, 98, "line 82", "line 100", 19},
		{"offset excerpt", 200, 250, "line 35", "line 67", 33},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := clipWindow(text, tt.startLine, tt.targetLine, 16, 16)
			gotLines := strings.Split(got, "\n")

			if len(gotLines) != tt.wantCount {
				t.Fatalf("got %d lines, want %d", len(gotLines), tt.wantCount)
			}
			if gotLines[0] != tt.wantFirst {
				t.Errorf("first line = %q, want %q", gotLines[0], tt.wantFirst)
			}
			if gotLines[len(gotLines)-1] != tt.wantLast {
				t.Errorf("last line = %q, want %q", gotLines[len(gotLines)-1], tt.wantLast)
			}
		})
	}
}

func TestClipWindowShortExcerptVerbatim(t *testing.T) {
	text := "func f() {\n\treturn 1\n}"

	if got := clipWindow(text, 10, 11, 16, 16); got != text {
		t.Errorf("short excerpt must be returned verbatim, got %q", got)
	}
}
