// Package report renders run diagnostics as console lines and delivers them
// to an emit sink.
package report

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// Sink receives one report line at a time.
type Sink interface {
	Emit(line string)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(line string)

// Emit implements Sink.
func (f SinkFunc) Emit(line string) { f(line) }

// Discard drops every line.
var Discard Sink = SinkFunc(func(string) {})

// ConsoleSink writes lines to w, coloring status prefixes when enabled.
type ConsoleSink struct {
	mu       sync.Mutex
	w        io.Writer
	prefixes []prefixColor
}

type prefixColor struct {
	prefix string
	color  *color.Color
}

// NewConsoleSink creates a sink writing to w.
func NewConsoleSink(w io.Writer, colored bool) *ConsoleSink {
	mk := func(attrs ...color.Attribute) *color.Color {
		c := color.New(attrs...)
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		return c
	}
	green := mk(color.FgGreen, color.Bold)
	red := mk(color.FgRed, color.Bold)
	yellow := mk(color.FgYellow, color.Bold)

	return &ConsoleSink{
		w: w,
		prefixes: []prefixColor{
			{"[OK]", green},
			{"[SUCCESS]", green},
			{"[FAIL]", red},
			{"[ERROR]", red},
			{"error:", red},
			{"[WARNING]", yellow},
		},
	}
}

// Emit implements Sink.
func (s *ConsoleSink) Emit(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.prefixes {
		if strings.HasPrefix(line, p.prefix) {
			line = p.color.Sprint(p.prefix) + line[len(p.prefix):]
			break
		}
	}
	fmt.Fprintln(s.w, line)
}

// Recorder keeps every emitted line.
type Recorder struct {
	mu    sync.Mutex
	lines []string
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Emit implements Sink.
func (r *Recorder) Emit(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line)
}

// Lines returns a copy of the recorded lines.
func (r *Recorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.lines))
	copy(out, r.lines)
	return out
}

// Contains reports whether any recorded line contains substr.
func (r *Recorder) Contains(substr string) bool {
	for _, l := range r.Lines() {
		if strings.Contains(l, substr) {
			return true
		}
	}
	return false
}

// Count returns the number of lines with the given prefix.
func (r *Recorder) Count(prefix string) int {
	n := 0
	for _, l := range r.Lines() {
		if strings.HasPrefix(l, prefix) {
			n++
		}
	}
	return n
}
