package runner

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vk/ctwgo/internal/ledger"
)

// ErrPhaseLimit is wrapped by an Error whose run stopped at MaxPhases.
var ErrPhaseLimit = errors.New("phase limit reached")

// ErrNoClasses is returned when the target holds nothing to compile.
var ErrNoClasses = errors.New("target contains no classes")

// Error aggregates the failures of every phase of a run.
type Error struct {
	Target     string
	Failures   []ledger.Failure
	Incomplete bool
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "compile the world of %s had %d failure(s)", e.Target, len(e.Failures))
	if e.Incomplete {
		b.WriteString(" and stopped before the end")
	}
	for _, f := range e.Failures {
		b.WriteString("\n  ")
		b.WriteString(describeFailure(f))
	}
	return b.String()
}

// Unwrap exposes ErrPhaseLimit for incomplete runs.
func (e *Error) Unwrap() error {
	if e.Incomplete {
		return ErrPhaseLimit
	}
	return nil
}

func describeFailure(f ledger.Failure) string {
	exit := fmt.Sprintf("exit code %d", f.ExitCode)
	if f.Signal != "" {
		exit = "signal " + f.Signal
	}
	if f.Class == "" {
		return fmt.Sprintf("phase %d: unknown failure before any class started at #%d (%s)", f.Phase, f.Index, exit)
	}
	return fmt.Sprintf("phase %d: failed during compilation of class #%d : %s (%s)", f.Phase, f.Index, f.Class, exit)
}
