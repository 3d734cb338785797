package collect

import (
	"strings"
	"testing"
)

func TestTrimToSizeFits(t *testing.T) {
	items := []StackItem{
		{FilePath: "main.go", LineNumber: 10},
		{FilePath: "util.go", LineNumber: 20},
	}

	got := TrimToSize(items, 4096)
	if len(got) != 2 {
		t.Errorf("expected all items kept, got %d", len(got))
	}
}

func TestTrimToSizeDropsTrailing(t *testing.T) {
	big := strings.Repeat("x", 200)
	items := []StackItem{
		{FilePath: "a.go", LineNumber: 1, EnclosingFunctionText: big},
		{FilePath: "b.go", LineNumber: 2, EnclosingFunctionText: big},
		{FilePath: "c.go", LineNumber: 3, EnclosingFunctionText: big},
	}

	limit := SerializedSize(items[:2]) + 1
	got := TrimToSize(items, limit)

	if len(got) != 2 {
		t.Fatalf("expected 2 items, got %d", len(got))
	}
	if got[0].FilePath != "a.go" || got[1].FilePath != "b.go" {
		t.Error("trimming must drop from the end, keeping leading items")
	}
	if SerializedSize(got) > limit {
		t.Errorf("trimmed size %d exceeds limit %d", SerializedSize(got), limit)
	}
}

func TestTrimToSizeCanEmpty(t *testing.T) {
	items := []StackItem{
		{FilePath: "a.go", LineNumber: 1, EnclosingFunctionText: strings.Repeat("x", 100)},
	}

	got := TrimToSize(items, 4)
	if len(got) != 0 {
		t.Errorf("expected empty result, got %d items", len(got))
	}
}

func TestTrimToSizeDisabled(t *testing.T) {
	items := []StackItem{{FilePath: "a.go"}, {FilePath: "b.go"}}

	if got := TrimToSize(items, 0); len(got) != 2 {
		t.Errorf("maxBytes 0 must disable the limit, got %d items", len(got))
	}
}

func TestTrimToSizeDoesNotAlias(t *testing.T) {
	items := []StackItem{{FilePath: "a.go"}, {FilePath: "b.go"}}

	got := TrimToSize(items, 4096)
	got[0].FilePath = "mutated"

	if items[0].FilePath != "a.go" {
		t.Error("result must not alias the input backing array")
	}
}

func TestClipLines(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		maxLines int
		want     string
	}{
		{"under limit", "a\nb", 5, "a\nb"},
		{"at limit", "a\nb\nc", 3, "a\nb\nc"},
		{"over limit", "a\nb\nc\nd", 2, "a\nb"},
		{"single line", "only", 1, "only"},
		{"disabled", "a\nb\nc", 0, "a\nb\nc"},
		{"empty", "", 3, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := clipLines(tt.text, tt.maxLines); got != tt.want {
				t.Errorf("clipLines(%q, %d) = %q, want %q", tt.text, tt.maxLines, got, tt.want)
			}
		})
	}
}
