// Package backend defines the contract between the compile engine and the
// JIT compiler it drives. The compiler itself is external: implementations
// either simulate it in-process (package sim) or talk to a compiler-control
// agent over HTTP (package remote).
package backend

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNoManagement means the compiler management interface is missing
	// entirely. Fatal for a run.
	ErrNoManagement = errors.New("compiler management interface not available")
	// ErrProfileUnsupported means the platform profile cannot report
	// compiler availability. A run proceeds with a warning.
	ErrProfileUnsupported = errors.New("compiler availability check not supported on this profile")
	// ErrInterpreted means no JIT compiler is active.
	ErrInterpreted = errors.New("CTW can not work in interpreted mode")
)

// Method identifies a compilation target.
type Method struct {
	// Class is the binary class name, e.g. "java.lang.String".
	Class      string `json:"class"`
	Name       string `json:"name"`
	Descriptor string `json:"descriptor"`
}

func (m Method) String() string {
	return fmt.Sprintf("%s::%s%s", m.Class, m.Name, m.Descriptor)
}

// Info describes the compiler the backend drives.
type Info struct {
	Name string `json:"name"`
	// Available is false when the VM runs interpreted only.
	Available bool `json:"available"`
	// CompilerCount mirrors CICompilerCount; zero means unknown.
	CompilerCount int `json:"compiler_count"`
	// MaxLevel is the highest tier the compiler supports.
	MaxLevel int `json:"max_level"`
}

// Backend is the compiler-control surface used by compile commands. Every
// method may be called concurrently.
type Backend interface {
	// Check reports compiler availability before a run starts.
	Check(ctx context.Context) (Info, error)
	IsCompilable(ctx context.Context, m Method, level int) (bool, error)
	// Enqueue asks for m to be compiled at level and reports whether the
	// request was accepted.
	Enqueue(ctx context.Context, m Method, level int) (bool, error)
	// EnqueueInitializer compiles the static initializer of class.
	EnqueueInitializer(ctx context.Context, class string, level int) error
	IsQueued(ctx context.Context, m Method) (bool, error)
	// Level returns the tier m is currently compiled at, 0 if interpreted.
	Level(ctx context.Context, m Method) (int, error)
	Deoptimize(ctx context.Context, m Method) error
	DeoptimizeAll(ctx context.Context) error
}

// CheckAvailable applies the start-up policy to a Check result: a missing
// management interface or an interpreted-only VM is fatal, an unsupported
// profile is not. The returned bool is false when availability is unknown.
func CheckAvailable(ctx context.Context, b Backend) (Info, bool, error) {
	info, err := b.Check(ctx)
	switch {
	case errors.Is(err, ErrProfileUnsupported):
		return info, false, nil
	case err != nil:
		return info, false, err
	case !info.Available:
		return info, false, ErrInterpreted
	}
	return info, true, nil
}
