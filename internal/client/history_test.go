package client

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestHistory(t *testing.T) {
	if _, err := NewHistory(0); err == nil {
		t.Error("NewHistory(0) expected an error")
	}
	if _, err := NewHistory(-1); err == nil {
		t.Error("NewHistory(-1) expected an error")
	}

	h, err := NewHistory(2)
	if err != nil {
		t.Fatalf("NewHistory() returned an unexpected error: %s", err)
	}
	h.Push("1")
	h.Push("2")
	h.Push("3")
	if h.Len() != 2 {
		t.Errorf("Len() want = 2, got = %d", h.Len())
	}

	tests := []struct {
		n    int
		want []string
	}{
		{0, []string{}},
		{1, []string{"3"}},
		{2, []string{"2", "3"}},
		{-2, []string{"2", "3"}},
		{100, []string{"2", "3"}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, h.Tail(tt.n)); diff != "" {
			t.Errorf("Tail(%d) returned unexpected lines; diff:\n%s", tt.n, diff)
		}
	}
}
