package testutil

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/vk/ctwgo/internal/classfile"
	"github.com/vk/ctwgo/internal/classload"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// Lines returns the buffered output split on newlines, without the
// trailing empty element.
func (b *SafeBuffer) Lines() []string {
	s := strings.TrimSuffix(b.String(), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// MapLoader is a classload.Loader over in-memory class bytes keyed by
// internal name.
type MapLoader map[string][]byte

// Load implements classload.Loader.
func (m MapLoader) Load(name string) (*classfile.Class, error) {
	data, ok := m[classload.InternalName(name)]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, classload.ErrClassNotFound)
	}
	cls, err := classfile.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", name, classload.ErrLinkage, err)
	}
	return cls, nil
}

// RecordingSink collects class names handed to it in order, together with
// the loader each arrived with.
type RecordingSink struct {
	mu      sync.Mutex
	names   []string
	loaders []classload.Loader
	// Limit latches after this many names; zero means never.
	Limit int
}

// ProcessClass records name.
func (s *RecordingSink) ProcessClass(_ context.Context, name string, loader classload.Loader) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Limit > 0 && len(s.names) >= s.Limit {
		return
	}
	s.names = append(s.names, name)
	s.loaders = append(s.loaders, loader)
}

// IsLimitReached reports whether Limit names have been recorded.
func (s *RecordingSink) IsLimitReached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Limit > 0 && len(s.names) >= s.Limit
}

// Names returns the recorded names.
func (s *RecordingSink) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.names...)
}

// Loaders returns the loader recorded with each name.
func (s *RecordingSink) Loaders() []classload.Loader {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]classload.Loader(nil), s.loaders...)
}
