// Package classload resolves binary class names to parsed class files from a
// directory tree, a jar/zip archive or a module image. Each path handler owns
// its own loader; loaders chain to a parent (usually the boot class path) for
// names they do not contain.
package classload

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/vk/ctwgo/internal/classfile"
)

var (
	// ErrClassNotFound is returned when no loader in the chain has the class.
	ErrClassNotFound = errors.New("class not found")
	// ErrLinkage is returned for classes that exist but cannot be defined,
	// e.g. a malformed class file or a name mismatch.
	ErrLinkage = errors.New("linkage error")
)

// Loader resolves a binary name ("java.lang.Object") to a class.
type Loader interface {
	Load(name string) (*classfile.Class, error)
}

// IsSkippable reports whether err is one of the per-class resolution
// failures that a run tolerates.
func IsSkippable(err error) bool {
	return errors.Is(err, ErrClassNotFound) || errors.Is(err, ErrLinkage)
}

// InternalName converts "a.b.C" to "a/b/C".
func InternalName(name string) string {
	return strings.ReplaceAll(name, ".", "/")
}

// source is the lookup primitive each loader kind implements: raw class
// bytes for an internal name, or ErrClassNotFound.
type source interface {
	find(internalName string) ([]byte, error)
	String() string
}

type result struct {
	class *classfile.Class
	err   error
}

// base gives a source caching, parent delegation and name verification.
// The loader's own source is consulted before the parent so that the
// handler's root is authoritative for the classes it enumerates.
type base struct {
	src    source
	parent Loader
	closer io.Closer

	mu    sync.Mutex
	cache map[string]result
}

func newBase(src source, parent Loader, closer io.Closer) *base {
	return &base{src: src, parent: parent, closer: closer, cache: make(map[string]result)}
}

// Load implements Loader.
func (b *base) Load(name string) (*classfile.Class, error) {
	b.mu.Lock()
	r, ok := b.cache[name]
	b.mu.Unlock()
	if ok {
		return r.class, r.err
	}

	c, err := b.define(name)
	if errors.Is(err, ErrClassNotFound) && b.parent != nil {
		c, err = b.parent.Load(name)
	}

	b.mu.Lock()
	b.cache[name] = result{c, err}
	b.mu.Unlock()
	return c, err
}

func (b *base) define(name string) (*classfile.Class, error) {
	internal := InternalName(name)
	data, err := b.src.find(internal)
	if err != nil {
		return nil, err
	}
	c, err := classfile.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s from %s: %v", ErrLinkage, name, b.src, err)
	}
	if c.Name != internal {
		return nil, fmt.Errorf("%w: %s (wrong name: %s)", ErrLinkage, name, c.Name)
	}
	return c, nil
}

// Close releases the underlying archive or image, if any.
func (b *base) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer.Close()
}

func (b *base) String() string {
	return b.src.String()
}

func notFound(name string, where fmt.Stringer) error {
	return fmt.Errorf("%w: %s in %s", ErrClassNotFound, strings.ReplaceAll(name, "/", "."), where)
}
