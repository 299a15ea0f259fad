package runner

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sync/atomic"

	"github.com/vk/ctwgo/internal/classload"
	"github.com/vk/ctwgo/internal/fsutil"
	"github.com/vk/ctwgo/internal/pathhandler"
	"github.com/vk/ctwgo/internal/protocol"
)

// ModulesTarget names the platform module image of the configured JDK.
const ModulesTarget = "modules"

// ResolveTarget maps the runner target to a path. The ModulesTarget token
// becomes <javaHome>/lib/modules; anything else must exist as given.
func ResolveTarget(target, javaHome string) (string, error) {
	path := target
	if target == ModulesTarget {
		if javaHome == "" {
			return "", fmt.Errorf("target %q needs java.home or JAVA_HOME", ModulesTarget)
		}
		path = filepath.Join(javaHome, "lib", pathhandler.ImageFileName)
	}
	if !fsutil.Exists(path) {
		return "", fmt.Errorf("target %s does not exist", path)
	}
	return path, nil
}

// countingSink counts discovered classes without loading them.
type countingSink struct {
	n atomic.Int64
}

func (s *countingSink) ProcessClass(context.Context, string, classload.Loader) {
	s.n.Add(1)
}

func (s *countingSink) IsLimitReached() bool { return false }

// CountClasses enumerates path with the handler a driver would use and
// returns the number of classes it would index.
func CountClasses(ctx context.Context, path string) (int64, error) {
	sink := &countingSink{}
	h := pathhandler.Create(path, pathhandler.Deps{
		Sink: sink,
		Out:  protocol.NewWriter(io.Discard),
	})
	if err := h.Process(ctx); err != nil {
		return 0, fmt.Errorf("failed to count classes in %s: %w", path, err)
	}
	return sink.n.Load(), nil
}
