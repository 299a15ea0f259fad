package pathhandler

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/vk/ctwgo/internal/ctxlog"
	"github.com/vk/ctwgo/internal/fsutil"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// List reads class names from a text file, one per line. Classes are
// resolved through the class path loader.
type List struct {
	path string
	deps Deps
}

// NewList returns a list file handler.
func NewList(path string, deps Deps) *List {
	return &List{path: path, deps: deps}
}

// Root implements Handler.
func (l *List) Root() string { return l.path }

// Process implements Handler. Blank lines are skipped and surrounding
// whitespace is trimmed; a leading byte order mark is dropped.
func (l *List) Process(ctx context.Context) error {
	if !fsutil.Exists(l.path) {
		l.deps.Out.MissingPath(l.path)
		return nil
	}
	f, err := os.Open(l.path)
	if err != nil {
		return fmt.Errorf("opening list %s: %w", l.path, err)
	}
	defer f.Close()

	decoded := transform.NewReader(f, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	scanner := bufio.NewScanner(decoded)
	loader := l.deps.parent()
	count := 0
	for ctx.Err() == nil && scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name == "" {
			continue
		}
		l.deps.Sink.ProcessClass(ctx, name, loader)
		count++
		if l.deps.stopped(ctx) {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading list %s: %w", l.path, err)
	}
	ctxlog.FromContext(ctx).Debug("Read class list.", "path", l.path, "classes", count)
	return nil
}
