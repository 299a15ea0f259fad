//go:build !windows && !plan9

package runner_test

import (
	"context"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/ctwgo/internal/runner"
)

func killSelf() {
	_ = syscall.Kill(os.Getpid(), syscall.SIGKILL)
}

func TestRun_RecordsKillingSignal(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	l := &scriptLauncher{scripts: map[int]script{1: {output: "[2]\tp.C01\n", kill: true}}}
	r, banners := newRunner(t, runner.Config{Target: classDir(t, 5)}, l)

	// --- Act ---
	_, err := r.Run(context.Background())

	// --- Assert ---
	var runErr *runner.Error
	require.ErrorAs(t, err, &runErr)
	require.Equal(t, "SIGKILL", runErr.Failures[0].Signal)
	require.Equal(t, -1, runErr.Failures[0].ExitCode)
	require.Contains(t, banners.String(), "killed by SIGKILL")
	require.Equal(t, []int64{1, 3}, l.starts())
}
