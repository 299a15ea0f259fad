package pathhandler

import (
	"context"
	"fmt"
	"strings"

	"github.com/vk/ctwgo/internal/classload"
	"github.com/vk/ctwgo/internal/ctxlog"
	"github.com/vk/ctwgo/internal/fsutil"
	"github.com/vk/ctwgo/internal/jimage"
)

const moduleInfo = "module-info.class"

// Image enumerates the classes of a jimage module image.
type Image struct {
	path string
	deps Deps
}

// NewImage returns a module image handler.
func NewImage(path string, deps Deps) *Image {
	return &Image{path: path, deps: deps}
}

// Root implements Handler.
func (h *Image) Root() string { return h.path }

// Process implements Handler. All class names are collected first and
// then dispatched in one pass; the sink itself ignores names once latched.
// An interrupted context ends the pass.
func (h *Image) Process(ctx context.Context) error {
	if !fsutil.Exists(h.path) {
		h.deps.Out.MissingPath(h.path)
		return nil
	}
	img, err := jimage.Open(h.path)
	if err != nil {
		return fmt.Errorf("opening module image %s: %w", h.path, err)
	}
	defer img.Close()

	names := imageClassNames(img.Entries())
	ctxlog.FromContext(ctx).Debug("Read module image.", "path", h.path, "classes", len(names))

	loader := classload.NewImage(h.path, img, h.deps.parent())
	for _, name := range names {
		if ctx.Err() != nil {
			break
		}
		h.deps.Sink.ProcessClass(ctx, name, loader)
	}
	return nil
}

// imageClassNames maps "/module/p/q/C.class" entries to "p.q.C", dropping
// module descriptors and non-class resources.
func imageClassNames(entries []string) []string {
	var out []string
	for _, e := range entries {
		if !strings.HasSuffix(e, classSuffix) || strings.HasSuffix(e, "/"+moduleInfo) {
			continue
		}
		rest := strings.TrimPrefix(e, "/")
		slash := strings.IndexByte(rest, '/')
		if slash < 0 {
			continue
		}
		out = append(out, className(rest[slash+1:]))
	}
	return out
}
