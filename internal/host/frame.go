package host

import "fmt"

// Frame is an immediate-mode text surface rebuilt on every redraw.
// Modules append lines during their draw call; the shell renders the
// accumulated lines top to bottom.
type Frame struct {
	lines []string
}

// NewFrame creates an empty frame.
func NewFrame() *Frame {
	return &Frame{}
}

// Println appends one line to the frame.
func (f *Frame) Println(s string) {
	f.lines = append(f.lines, s)
}

// Printf appends one formatted line to the frame.
func (f *Frame) Printf(format string, args ...any) {
	f.lines = append(f.lines, fmt.Sprintf(format, args...))
}

// Separator appends a blank line.
func (f *Frame) Separator() {
	f.lines = append(f.lines, "")
}

// Lines returns the accumulated lines.
func (f *Frame) Lines() []string {
	return f.lines
}

// Reset clears the frame for the next redraw.
func (f *Frame) Reset() {
	f.lines = f.lines[:0]
}
