package client

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func collectInput(ctx context.Context, input string, max int) []string {
	lines := make(chan string)
	go readInput(ctx, strings.NewReader(input), max, lines)

	var got []string
	for line := range lines {
		got = append(got, line)
	}
	return got
}

func TestReadInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
		max   int
		want  []string
	}{
		{"lines", "hello\nworld\n", 255, []string{"hello", "world"}},
		{"no trailing newline", "hello\nworld", 255, []string{"hello", "world"}},
		{"crlf", "a\r\nb\r\n", 255, []string{"a", "b"}},
		{"empty lines", "\n\nx\n", 255, []string{"", "", "x"}},
		{"long line is split", "abcdefghij\n", 4, []string{"abcd", "efgh", "ij"}},
		{"line of exactly max", "abcd\nxy\n", 4, []string{"abcd", "xy"}},
		{"stops at exit", "one\nexit\nnever\n", 255, []string{"one", "exit"}},
		{"nothing", "", 255, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := collectInput(context.Background(), tt.input, tt.max)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("readInput() produced unexpected lines; diff:\n%s", diff)
			}
		})
	}
}

func TestReadInput_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	lines := make(chan string)
	go readInput(ctx, strings.NewReader("one\ntwo\n"), 255, lines)

	// lines is closed once ctx is seen, whether or not every line got through.
	got := 0
	for range lines {
		got++
	}
	if got > 2 {
		t.Errorf("readInput() sent %d lines from two lines of input", got)
	}
}
