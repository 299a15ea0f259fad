// Package pathhandler enumerates the classes reachable from one input path
// and feeds them to a Sink. The variant set is closed: Dir, Jar, JarInDir,
// Image and List, selected by Create.
package pathhandler

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/vk/ctwgo/internal/classload"
	"github.com/vk/ctwgo/internal/protocol"
)

// Sink receives discovered class names. The engine is the production sink.
type Sink interface {
	ProcessClass(ctx context.Context, name string, loader classload.Loader)
	IsLimitReached() bool
}

// Handler walks one input path. Process is called once per handler.
type Handler interface {
	Process(ctx context.Context) error
	Root() string
}

// Deps are the collaborators every handler shares.
type Deps struct {
	Sink Sink
	// Parent is the class path loader. Handler loaders delegate to it and
	// List resolves through it directly. May be nil.
	Parent classload.Loader
	Out    *protocol.Writer
}

func (d Deps) parent() classload.Loader {
	if d.Parent == nil {
		return classload.Chain{}
	}
	return d.Parent
}

// stopped reports whether enumeration should end: the run was interrupted
// or the sink latched.
func (d Deps) stopped(ctx context.Context) bool {
	return ctx.Err() != nil || d.Sink.IsLimitReached()
}

const classSuffix = ".class"

// isClassFile accepts "X.class" paths whose remaining part contains no
// other '.', which excludes versioned and oddly named entries.
func isClassFile(name string) bool {
	if !strings.HasSuffix(name, classSuffix) {
		return false
	}
	return !strings.Contains(strings.TrimSuffix(name, classSuffix), ".")
}

// className converts a root-relative class file path to a binary name.
func className(rel string) string {
	rel = strings.TrimSuffix(filepath.ToSlash(rel), classSuffix)
	return strings.ReplaceAll(rel, "/", ".")
}
