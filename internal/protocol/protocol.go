// Package protocol owns the text lines a driver run prints and the runner
// parses back to find where a crashed run stopped. The formats are part of
// the runner contract: change them together with ParseClassLine.
package protocol

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// classLine matches a class progress line: index plus a single token.
// Method outcome lines carry a trailing message and never match.
var classLine = regexp.MustCompile(`^\[\d+\]\s*\S+\s*$`)

// Writer serializes protocol lines from concurrent compile commands. Each
// line is written with a single Write call.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (o *Writer) printf(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	o.mu.Lock()
	defer o.mu.Unlock()
	io.WriteString(o.w, line)
}

// ClassStarted prints "[<id>]\t<name>".
func (o *Writer) ClassStarted(id int64, name string) {
	o.printf("[%d]\t%s\n", id, name)
}

// MethodOutcome prints "[<id>]\t<class>::<signature>\t<message>".
func (o *Writer) MethodOutcome(id int64, class, signature, message string) {
	o.printf("[%d]\t%s::%s\t%s\n", id, class, signature, message)
}

// ClassSkipped reports an error that abandoned the rest of a class.
func (o *Writer) ClassSkipped(id int64, name string, err error) {
	o.printf("[%d]\t%s\tskipping %v\n", id, name, err)
}

// ClassWarning reports a non-fatal class-level problem.
func (o *Writer) ClassWarning(id int64, name, message string) {
	o.printf("[%d]\t%s\tWARNING %s\n", id, name, message)
}

// LoadFailed reports a class that could not be resolved.
func (o *Writer) LoadFailed(name string, err error) {
	o.printf("Class %s loading failed : %v\n", name, err)
}

// MissingPath reports an input path that does not exist.
func (o *Writer) MissingPath(path string) {
	o.printf("CTW: path %s does not exist, skipping\n", path)
}

// Done prints the final summary line.
func (o *Writer) Done(classes, methods, millis int64) {
	o.printf("Done (%d classes, %d methods, %d ms)\n", classes, methods, millis)
}

// IsClassLine reports whether line is a class progress line.
func IsClassLine(line string) bool {
	return classLine.MatchString(line)
}

// ParseClassLine extracts the index and class name from a class progress
// line. The name is returned with '/' separators.
func ParseClassLine(line string) (index int64, name string, ok bool) {
	if !IsClassLine(line) {
		return 0, "", false
	}
	open := strings.IndexByte(line, '[') + 1
	end := strings.IndexByte(line, ']')
	index, err := strconv.ParseInt(line[open:end], 10, 64)
	if err != nil {
		return 0, "", false
	}
	name = strings.ReplaceAll(strings.TrimSpace(line[end+1:]), ".", "/")
	return index, name, true
}
