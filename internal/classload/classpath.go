package classload

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vk/ctwgo/internal/classfile"
	"github.com/vk/ctwgo/internal/jimage"
)

// Chain tries each loader in order and returns the first hit.
type Chain []Loader

// Load implements Loader.
func (c Chain) Load(name string) (*classfile.Class, error) {
	for _, l := range c {
		cls, err := l.Load(name)
		if errors.Is(err, ErrClassNotFound) {
			continue
		}
		return cls, err
	}
	return nil, fmt.Errorf("%w: %s", ErrClassNotFound, name)
}

// ClassPath is a loader over a list of class path segments (directories,
// jars, module images). Missing segments are ignored, as the JVM does.
type ClassPath struct {
	Chain
	closers []func() error
}

// OpenClassPath opens every segment. Segments that exist but cannot be
// opened are reported as errors.
func OpenClassPath(segments []string) (*ClassPath, error) {
	cp := &ClassPath{}
	for _, seg := range segments {
		info, err := os.Stat(seg)
		if err != nil {
			continue
		}
		switch {
		case info.IsDir():
			cp.Chain = append(cp.Chain, NewDir(seg, nil))
		case isArchive(seg):
			z, err := NewZip(seg, nil)
			if err != nil {
				cp.Close()
				return nil, fmt.Errorf("opening class path segment %s: %w", seg, err)
			}
			cp.Chain = append(cp.Chain, z)
			cp.closers = append(cp.closers, z.Close)
		case filepath.Base(seg) == "modules":
			img, err := jimage.Open(seg)
			if err != nil {
				cp.Close()
				return nil, fmt.Errorf("opening class path segment %s: %w", seg, err)
			}
			cp.Chain = append(cp.Chain, NewImage(seg, img, nil))
			cp.closers = append(cp.closers, img.Close)
		}
	}
	return cp, nil
}

// Close releases every opened archive and image.
func (cp *ClassPath) Close() error {
	var errs []error
	for _, c := range cp.closers {
		errs = append(errs, c())
	}
	cp.closers = nil
	return errors.Join(errs...)
}

func isArchive(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".jar") || strings.HasSuffix(lower, ".zip")
}
