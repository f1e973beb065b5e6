package client

import (
	"fmt"
	"io"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"

	"github.com/dcrodman/wirechat/internal/core/segment"
)

// Display renders segments received from the server.
type Display interface {
	Show(seg segment.Segment)
	// ShowHistory re-renders the most recent lines.
	ShowHistory()
}

// Terminal is a line-oriented Display that writes to Out and remembers what it
// wrote in History.
type Terminal struct {
	Out     io.Writer
	History *History
}

func (d *Terminal) Show(seg segment.Segment) {
	line, ok := Render(seg)
	if !ok {
		return
	}
	if d.History != nil {
		d.History.Push(line)
	}
	fmt.Fprintln(d.Out, line)
}

func (d *Terminal) ShowHistory() {
	if d.History == nil {
		return
	}
	fmt.Fprintln(d.Out, "--- history ---")
	for _, line := range d.History.Tail(d.History.Len()) {
		fmt.Fprintln(d.Out, line)
	}
	fmt.Fprintln(d.Out, "---------------")
}

// Render formats seg as a single line of text. Segments with nothing to show
// report false.
func Render(seg segment.Segment) (string, bool) {
	switch seg := seg.(type) {
	case segment.Message:
		return fmt.Sprintf("[%s] %s", sanitize(seg.Sender), sanitize(seg.Contents)), true
	case segment.Status:
		return fmt.Sprintf("*** %s ***", sanitize(seg.Text)), true
	default:
		return "", false
	}
}

// sanitize keeps a peer from moving the cursor or clearing the screen by
// dropping control characters and replacing invalid UTF-8.
func sanitize(s string) string {
	t := transform.Chain(runes.ReplaceIllFormed(), runes.Remove(runes.In(unicode.Cc)))
	out, _, err := transform.String(t, s)
	if err != nil {
		return ""
	}
	return out
}
