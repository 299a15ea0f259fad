package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// Phase is one driver subprocess launch.
type Phase struct {
	Number int
	// Start is the first class index compiled by the phase.
	Start int64
	// Stop is the last class index, 0 for no limit.
	Stop int64
	// Target is the resolved input path.
	Target  string
	LogFile string
}

// Launcher builds the subprocess for a phase. Output redirection is done
// by the runner.
type Launcher interface {
	BuildCommand(ctx context.Context, phase Phase) (*exec.Cmd, error)
}

// DriverLauncher runs the ctw driver binary.
type DriverLauncher struct {
	Driver string
	// Args go before the compile range properties.
	Args []string
	// Env is appended to the runner's environment.
	Env []string
}

// BuildCommand implements Launcher.
func (l *DriverLauncher) BuildCommand(ctx context.Context, phase Phase) (*exec.Cmd, error) {
	if l.Driver == "" {
		return nil, errors.New("driver binary is not configured")
	}
	args := append([]string{}, l.Args...)
	args = append(args, fmt.Sprintf("-DCompileTheWorldStartAt=%d", phase.Start))
	if phase.Stop > 0 {
		args = append(args, fmt.Sprintf("-DCompileTheWorldStopAt=%d", phase.Stop))
	}
	args = append(args, phase.Target)

	cmd := exec.CommandContext(ctx, l.Driver, args...)
	if len(l.Env) > 0 {
		cmd.Env = append(os.Environ(), l.Env...)
	}
	return cmd, nil
}
