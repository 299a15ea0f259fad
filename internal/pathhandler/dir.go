package pathhandler

import (
	"context"
	"fmt"

	"github.com/vk/ctwgo/internal/classload"
	"github.com/vk/ctwgo/internal/ctxlog"
	"github.com/vk/ctwgo/internal/fsutil"
)

// Dir enumerates a class tree rooted at a directory.
type Dir struct {
	root string
	deps Deps
}

// NewDir returns a directory handler.
func NewDir(root string, deps Deps) *Dir {
	return &Dir{root: root, deps: deps}
}

// Root implements Handler.
func (d *Dir) Root() string { return d.root }

// Process implements Handler. Symbolic links are followed and each real
// directory is entered once.
func (d *Dir) Process(ctx context.Context) error {
	if !fsutil.Exists(d.root) {
		d.deps.Out.MissingPath(d.root)
		return nil
	}
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Walking class directory.", "root", d.root)

	loader := classload.NewDir(d.root, d.deps.parent())
	err := fsutil.Walk(d.root, func(_, rel string) error {
		if ctx.Err() != nil {
			return fsutil.ErrStop
		}
		if !isClassFile(rel) {
			return nil
		}
		d.deps.Sink.ProcessClass(ctx, className(rel), loader)
		if d.deps.stopped(ctx) {
			return fsutil.ErrStop
		}
		return nil
	}, func(path string, err error) {
		logger.Warn("Skipping unreadable path.", "path", path, "error", err)
	})
	if err != nil {
		return fmt.Errorf("walking %s: %w", d.root, err)
	}
	return nil
}
