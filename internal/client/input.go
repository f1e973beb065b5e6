package client

import (
	"bufio"
	"bytes"
	"context"
	"io"
)

// readInput sends every line read from r to lines until r is exhausted, the
// exit command is read, or ctx is done. Lines longer than max bytes arrive as
// several chunks. lines is closed on return.
func readInput(ctx context.Context, r io.Reader, max int, lines chan<- string) {
	defer close(lines)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, min(4096, max+1)), max+1)
	scanner.Split(splitLines(max))

	for scanner.Scan() {
		line := scanner.Text()
		select {
		case lines <- line:
		case <-ctx.Done():
			return
		}
		if line == exitCommand {
			return
		}
	}
}

// splitLines is a bufio.SplitFunc returning lines with their line ending
// removed, cutting any line longer than max bytes into max-sized pieces.
func splitLines(max int) bufio.SplitFunc {
	return func(data []byte, atEOF bool) (int, []byte, error) {
		if atEOF && len(data) == 0 {
			return 0, nil, nil
		}
		if i := bytes.IndexByte(data, '\n'); i >= 0 && i <= max {
			return i + 1, dropCR(data[:i]), nil
		}
		if len(data) >= max {
			return max, data[:max], nil
		}
		if atEOF {
			return len(data), dropCR(data), nil
		}
		return 0, nil, nil
	}
}

func dropCR(data []byte) []byte {
	if len(data) > 0 && data[len(data)-1] == '\r' {
		return data[:len(data)-1]
	}
	return data
}
