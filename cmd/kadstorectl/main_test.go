package main

import (
	"io"
	"testing"
)

func TestSplitOnce(t *testing.T) {
	cases := []struct {
		in, cmd, arg string
	}{
		{"get deadbeef", "get", "deadbeef"},
		{"exit", "exit", ""},
		{"put key some value here", "put", "key some value here"},
		{"  get   deadbeef  ", "get", "deadbeef"},
	}
	for _, tc := range cases {
		cmd, arg := splitOnce(tc.in)
		if cmd != tc.cmd || arg != tc.arg {
			t.Errorf("splitOnce(%q) = (%q, %q), want (%q, %q)", tc.in, cmd, arg, tc.cmd, tc.arg)
		}
	}
}

func TestRunLineExitReturnsEOF(t *testing.T) {
	cli := NewCLI(nil, "", discardWriter{})
	if err := cli.RunLine(nil, "exit"); err != io.EOF {
		t.Fatal("expected io.EOF from exit")
	}
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
