package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/ctwgo/internal/cli"
	"github.com/vk/ctwgo/internal/runner"
	"github.com/vk/ctwgo/internal/testutil"
)

func TestRun_Help(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}

	err := run(context.Background(), out, &bytes.Buffer{}, []string{"-h"})

	require.NoError(t, err)
	require.Contains(t, out.String(), "Usage:")
	require.Contains(t, out.String(), "-max-phases")
}

func TestRun_MissingTarget(t *testing.T) {
	t.Parallel()

	err := run(context.Background(), &bytes.Buffer{}, &bytes.Buffer{}, nil)

	var exitErr *cli.ExitError
	require.ErrorAs(t, err, &exitErr)
	require.Equal(t, 2, exitErr.Code)
}

func TestRun_EmptyTarget(t *testing.T) {
	t.Parallel()

	err := run(context.Background(), &bytes.Buffer{}, &bytes.Buffer{}, []string{"-log-dir", t.TempDir(), t.TempDir()})

	require.ErrorIs(t, err, runner.ErrNoClasses)
}

func TestRun_DriverCannotBeLaunched(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	target := testutil.WriteClassTree(t, t.TempDir(), map[string][]byte{"A": testutil.ClassBytes("A")})
	args := []string{
		"-driver", filepath.Join(t.TempDir(), "no-such-ctw"),
		"-log-dir", t.TempDir(),
		"-log-format", "text",
		target,
	}
	banners := &bytes.Buffer{}

	// --- Act ---
	err := run(context.Background(), banners, &bytes.Buffer{}, args)

	// --- Assert ---
	require.ErrorContains(t, err, "failed to launch driver")
	require.Contains(t, banners.String(), "Phase 1 started at")
}
