package client

import (
	"fmt"
	"sync"
)

// History keeps the most recent lines shown to the user. Once full, every
// push drops the oldest line.
type History struct {
	max  int
	mu   sync.RWMutex
	data []string
}

func NewHistory(max int) (*History, error) {
	if max <= 0 {
		return nil, fmt.Errorf("history size must be greater than 0, got %d", max)
	}
	return &History{max: max, data: []string{}}, nil
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.data)
}

func (h *History) Push(line string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.data) == h.max {
		h.data = h.data[1:]
	}
	h.data = append(h.data, line)
}

// Tail copies the last n lines, oldest first. Negative n is treated as its
// absolute value.
func (h *History) Tail(n int) []string {
	if n < 0 {
		n = -n
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if n > len(h.data) {
		n = len(h.data)
	}
	tail := make([]string, n)
	copy(tail, h.data[len(h.data)-n:])
	return tail
}
