package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/ctwgo/internal/cli"
	"github.com/vk/ctwgo/internal/testutil"
)

func TestRun_ShouldExit(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// The "-h" (help) flag should cause cli.Parse to return `shouldExit=true`.
	args := []string{"-h"}
	out := &bytes.Buffer{}

	// --- Act ---
	err := run(context.Background(), out, &bytes.Buffer{}, args)

	// --- Assert ---
	require.NoError(t, err, "run() should return a nil error when shouldExit is true")
	require.Contains(t, out.String(), "Usage:", "Expected help text to be printed to the output buffer")
}

func TestRun_ParseError(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	args := []string{"--this-is-not-a-valid-flag"}
	out := &bytes.Buffer{}

	// --- Act ---
	err := run(context.Background(), out, &bytes.Buffer{}, args)

	// --- Assert ---
	var exitErr *cli.ExitError
	require.ErrorAs(t, err, &exitErr)
	require.Equal(t, 2, exitErr.Code)
	require.Contains(t, err.Error(), "flag provided but not defined: -this-is-not-a-valid-flag")
}

func TestRun_CompilesDirectory(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	root := testutil.WriteClassTree(t, t.TempDir(), map[string][]byte{
		"p/A": testutil.ClassBytes("p/A", "run:()V"),
		"p/B": testutil.ClassBytes("p/B"),
	})
	out, logs := &bytes.Buffer{}, &bytes.Buffer{}
	args := []string{
		"-log-format", "text",
		"-DCICompilerCount=1",
		"-DBackgroundCompilation=false",
		"-Djava.home=" + filepath.Join(t.TempDir(), "nojdk"),
		root,
	}

	// --- Act ---
	err := run(context.Background(), out, logs, args)

	// --- Assert ---
	require.NoError(t, err, logs.String())
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Equal(t, "[1]\tp.A", lines[0])
	require.Equal(t, "[2]\tp.B", lines[1])
	require.True(t, strings.HasPrefix(lines[len(lines)-1], "Done (2 classes, 3 methods, "), lines[len(lines)-1])
	require.Contains(t, logs.String(), "Compilation finished")
}

func TestRun_CancelledContextSkipsInputs(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	root := testutil.WriteClassTree(t, t.TempDir(), map[string][]byte{"A": testutil.ClassBytes("A")})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := &bytes.Buffer{}

	// --- Act ---
	_ = run(ctx, out, &bytes.Buffer{}, []string{
		"-DCICompilerCount=1", "-Djava.home=" + filepath.Join(os.TempDir(), "ctw-no-such-jdk"), root,
	})

	// --- Assert ---
	require.True(t, strings.HasPrefix(out.String(), "Done (0 classes, 0 methods, "), out.String())
}
