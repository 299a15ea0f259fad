package pathhandler

import (
	"context"
	"fmt"

	"github.com/klauspost/compress/zip"
	"github.com/vk/ctwgo/internal/classload"
	"github.com/vk/ctwgo/internal/ctxlog"
	"github.com/vk/ctwgo/internal/fsutil"
)

// Jar enumerates the class entries of a jar or zip archive.
type Jar struct {
	path string
	deps Deps
}

// NewJar returns an archive handler.
func NewJar(path string, deps Deps) *Jar {
	return &Jar{path: path, deps: deps}
}

// Root implements Handler.
func (j *Jar) Root() string { return j.path }

// Process implements Handler. Entries are visited in archive order.
func (j *Jar) Process(ctx context.Context) error {
	if !fsutil.Exists(j.path) {
		j.deps.Out.MissingPath(j.path)
		return nil
	}
	r, err := zip.OpenReader(j.path)
	if err != nil {
		return fmt.Errorf("opening archive %s: %w", j.path, err)
	}
	loader := classload.NewZipReader(j.path, &r.Reader, r, j.deps.parent())
	defer loader.Close()

	ctxlog.FromContext(ctx).Debug("Reading archive.", "path", j.path, "entries", len(r.File))
	for _, f := range r.File {
		if ctx.Err() != nil {
			break
		}
		if f.FileInfo().IsDir() || !isClassFile(f.Name) {
			continue
		}
		j.deps.Sink.ProcessClass(ctx, className(f.Name), loader)
		if j.deps.stopped(ctx) {
			break
		}
	}
	return nil
}

// JarInDir processes every *.jar directly inside a directory, in name
// order, each with its own Jar handler.
type JarInDir struct {
	dir  string
	deps Deps
}

// NewJarInDir returns a jar-in-directory handler.
func NewJarInDir(dir string, deps Deps) *JarInDir {
	return &JarInDir{dir: dir, deps: deps}
}

// Root implements Handler.
func (j *JarInDir) Root() string { return j.dir }

// Process implements Handler.
func (j *JarInDir) Process(ctx context.Context) error {
	if !fsutil.Exists(j.dir) {
		j.deps.Out.MissingPath(j.dir)
		return nil
	}
	jars, err := fsutil.ListFilesByExtension(j.dir, ".jar")
	if err != nil {
		return fmt.Errorf("listing jars in %s: %w", j.dir, err)
	}
	ctxlog.FromContext(ctx).Debug("Found jars.", "dir", j.dir, "count", len(jars))
	for _, path := range jars {
		if j.deps.stopped(ctx) {
			break
		}
		if err := NewJar(path, j.deps).Process(ctx); err != nil {
			return err
		}
	}
	return nil
}
