package surface

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

const barWidth = 30

// Terminal renders a panel as plain text lines on w.
//
// A line is written whenever the visible text changes; animation toggles alone do not print.
type Terminal struct {
	*Panel

	w    io.Writer
	mu   sync.Mutex
	last string
	err  error
}

// NewTerminal creates a terminal surface writing to w.
func NewTerminal(prefix string, w io.Writer) *Terminal {
	t := &Terminal{Panel: NewPanel(prefix), w: w}
	t.Panel.OnChange = t.render
	return t
}

// Err returns the first write error, if any.
func (t *Terminal) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *Terminal) render(s Snapshot) {
	if !s.Visible {
		return
	}
	line := RenderLine(s)

	t.mu.Lock()
	defer t.mu.Unlock()
	if line == t.last || t.err != nil {
		return
	}
	t.last = line
	if _, err := fmt.Fprintln(t.w, line); err != nil {
		t.err = err
	}
}

// RenderLine formats a snapshot as "[#####.....]  40%  status  tracks  error/success".
func RenderLine(s Snapshot) string {
	filled := s.Fill * barWidth / 100
	bar := "[" + strings.Repeat("#", filled) + strings.Repeat(".", barWidth-filled) + "]"

	parts := []string{bar, fmt.Sprintf("%4s", s.Percent)}
	for _, text := range []string{s.Status, s.Tracks, s.Error, s.Success} {
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "  ")
}
