package dap

import (
	"bufio"
	"bytes"
	"strings"
	"testing"
)

func TestWriteFrame(t *testing.T) {
	var buf bytes.Buffer
	content := []byte(`{"seq":1,"type":"request"}`)

	if err := writeFrame(&buf, content); err != nil {
		t.Fatal(err)
	}

	want := "Content-Length: 26\r\n\r\n" + string(content)
	if buf.String() != want {
		t.Errorf("frame = %q, want %q", buf.String(), want)
	}
}

func TestReadFrame(t *testing.T) {
	payload := `{"seq":2,"type":"response"}`
	input := "Content-Length: 27\r\n\r\n" + payload

	content, err := readFrame(bufio.NewReader(strings.NewReader(input)))
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != payload {
		t.Errorf("content = %q, want %q", content, payload)
	}
}

func TestReadFrameExtraHeaders(t *testing.T) {
	payload := `{}`
	input := "Content-Type: application/vscode-jsonrpc; charset=utf-8\r\nContent-Length: 2\r\n\r\n" + payload

	content, err := readFrame(bufio.NewReader(strings.NewReader(input)))
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != payload {
		t.Errorf("content = %q", content)
	}
}

func TestReadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	first := []byte(`{"seq":1}`)
	second := []byte(`{"seq":2,"body":{"threads":[]}}`)

	if err := writeFrame(&buf, first); err != nil {
		t.Fatal(err)
	}
	if err := writeFrame(&buf, second); err != nil {
		t.Fatal(err)
	}

	r := bufio.NewReader(&buf)
	got, err := readFrame(r)
	if err != nil || string(got) != string(first) {
		t.Fatalf("first frame = %q, err = %v", got, err)
	}
	got, err = readFrame(r)
	if err != nil || string(got) != string(second) {
		t.Fatalf("second frame = %q, err = %v", got, err)
	}
}

func TestReadFrameErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"missing content length", "\r\n"},
		{"invalid header", "NotAHeader\r\n\r\n"},
		{"bad length value", "Content-Length: many\r\n\r\n"},
		{"negative length", "Content-Length: -5\r\n\r\n"},
		{"truncated content", "Content-Length: 100\r\n\r\n{}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := readFrame(bufio.NewReader(strings.NewReader(tt.input))); err == nil {
				t.Error("expected error")
			}
		})
	}
}
