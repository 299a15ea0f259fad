package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitProperties(t *testing.T) {
	t.Parallel()

	props, rest := SplitProperties([]string{
		"-DCompileTheWorldStartAt=5", "-log-level", "debug", "dir", "-DCompileTheWorldVerbose", "--", "-Dliteral",
	})

	require.Equal(t, map[string]string{
		"CompileTheWorldStartAt": "5",
		"CompileTheWorldVerbose": "true",
	}, props)
	require.Equal(t, []string{"-log-level", "debug", "dir", "--", "-Dliteral"}, rest)
}

func TestParse_PropertiesAndInputs(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	args := []string{"-DCompileTheWorldStartAt=43", "-log-format", "json", "classes", "lib/*"}
	out := &bytes.Buffer{}

	// --- Act ---
	cfg, shouldExit, err := Parse(args, out)

	// --- Assert ---
	require.NoError(t, err)
	require.False(t, shouldExit)
	require.Equal(t, []string{"classes", "lib/*"}, cfg.Inputs)
	require.Equal(t, int64(43), cfg.Settings.StartAt)
	require.Equal(t, "json", cfg.LogFormat)
	require.Equal(t, "info", cfg.LogLevel)
}

func TestParse_NoInputsIsBootClassPathMode(t *testing.T) {
	t.Parallel()

	cfg, shouldExit, err := Parse(nil, &bytes.Buffer{})

	require.NoError(t, err)
	require.False(t, shouldExit)
	require.Empty(t, cfg.Inputs)
}

func TestParse_Help(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	cfg, shouldExit, err := Parse([]string{"-h"}, out)

	require.NoError(t, err)
	require.True(t, shouldExit)
	require.Nil(t, cfg)
	require.Contains(t, out.String(), "Usage:")
	require.Contains(t, out.String(), "CompileTheWorldStopAt")
}

func TestParse_UsageErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown flag", []string{"-nope"}, "flag provided but not defined"},
		{"bad log format", []string{"-log-format", "xml"}, "invalid log-format"},
		{"bad log level", []string{"-log-level", "loud"}, "invalid log-level"},
		{"unknown property", []string{"-DNoSuchThing=1"}, `unknown property "NoSuchThing"`},
		{"bad property value", []string{"-DCICompilerCount=lots"}, "property CICompilerCount"},
		{"invalid range", []string{"-DCompileTheWorldStartAt=5", "-DCompileTheWorldStopAt=4"}, "invalid settings"},
		{"missing config file", []string{"-config", "/no/such/ctw.hcl"}, "failed to parse config file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, _, err := Parse(tt.args, &bytes.Buffer{})

			var exitErr *ExitError
			require.ErrorAs(t, err, &exitErr)
			require.Equal(t, 2, exitErr.Code)
			require.Contains(t, exitErr.Message, tt.want)
		})
	}
}

func TestParse_LayerOrder(t *testing.T) {
	// Not parallel: uses t.Setenv.

	// --- Arrange ---
	path := filepath.Join(t.TempDir(), "ctw.hcl")
	require.NoError(t, os.WriteFile(path, []byte("compiler_count = 2\nverbose = true\n"), 0o600))
	t.Setenv("CICompilerCount", "3")

	// --- Act ---
	fromEnv, _, err := Parse([]string{"-config", path}, &bytes.Buffer{})
	require.NoError(t, err)
	fromProp, _, err := Parse([]string{"-config", path, "-DCICompilerCount=5"}, &bytes.Buffer{})
	require.NoError(t, err)

	// --- Assert ---
	require.Equal(t, 3, fromEnv.Settings.CompilerCount, "environment overrides the file")
	require.True(t, fromEnv.Settings.Verbose, "file overrides defaults")
	require.Equal(t, 5, fromProp.Settings.CompilerCount, "properties override the environment")
}

func TestParseRunner(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	args := []string{
		"-driver", "/opt/ctw", "-start", "43", "-max-phases", "3", "-java-home", "/jdk",
		"modules", "-DTieredCompilation=false", "-log-format", "json",
	}

	// --- Act ---
	cfg, shouldExit, err := ParseRunner(args, &bytes.Buffer{})

	// --- Assert ---
	require.NoError(t, err)
	require.False(t, shouldExit)
	require.Equal(t, "modules", cfg.Runner.Target)
	require.Equal(t, int64(43), cfg.Runner.StartAt)
	require.Equal(t, 3, cfg.Runner.MaxPhases)
	require.Equal(t, "/jdk", cfg.Runner.JavaHome)
	require.Equal(t, "/opt/ctw", cfg.Launcher.Driver)
	require.Equal(t, []string{"-Djava.home=/jdk", "-DTieredCompilation=false", "-log-format", "json"}, cfg.Launcher.Args,
		"arguments after the target belong to the driver")
	require.Equal(t, "auto", cfg.LogFormat)
}

func TestParseRunner_UsageErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing target", nil, "missing target"},
		{"bad range", []string{"-start", "9", "-stop", "3", "dir"}, "stop index 3 is below start index 9"},
		{"bad log level", []string{"-log-level", "loud", "dir"}, "invalid log-level"},
		{"unknown flag", []string{"-nope", "dir"}, "flag provided but not defined"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, _, err := ParseRunner(tt.args, &bytes.Buffer{})

			var exitErr *ExitError
			require.ErrorAs(t, err, &exitErr)
			require.Equal(t, 2, exitErr.Code)
			require.Contains(t, exitErr.Message, tt.want)
		})
	}
}
