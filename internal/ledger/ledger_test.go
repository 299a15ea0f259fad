package ledger

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) (*Ledger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "runner.ledger")
	l, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l, path
}

func TestResume_FreshLedger(t *testing.T) {
	t.Parallel()

	l, _ := openTemp(t)

	s, err := l.Resume("classes", 7)

	require.NoError(t, err)
	require.Equal(t, State{Target: "classes", Phase: 1, Start: 7}, s)
}

func TestSaveAndFailures_SurviveReopen(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	l, path := openTemp(t)
	want := []Failure{
		{Class: "foo/Bar", Index: 42, Phase: 1, ExitCode: 134},
		{Index: 43, Phase: 2, ExitCode: -1, Signal: "SIGSEGV"},
	}
	for _, f := range want {
		require.NoError(t, l.AddFailure(f))
	}
	require.NoError(t, l.Save(State{Target: "classes", Phase: 3, Start: 44}))
	require.NoError(t, l.Close())

	// --- Act ---
	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()
	s, resumeErr := reopened.Resume("classes", 1)
	got, failErr := reopened.Failures()

	// --- Assert ---
	require.NoError(t, resumeErr)
	require.NoError(t, failErr)
	require.Equal(t, State{Target: "classes", Phase: 3, Start: 44}, s)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("failures mismatch (-want +got):\n%s", diff)
	}
}

func TestResume_TargetMismatch(t *testing.T) {
	t.Parallel()

	l, _ := openTemp(t)
	require.NoError(t, l.Save(State{Target: "a.jar", Phase: 2, Start: 10}))

	_, err := l.Resume("b.jar", 1)

	require.ErrorIs(t, err, ErrTargetMismatch)
}

func TestReset(t *testing.T) {
	t.Parallel()

	l, _ := openTemp(t)
	require.NoError(t, l.Save(State{Target: "a.jar", Phase: 2, Start: 10, Done: true}))
	require.NoError(t, l.AddFailure(Failure{Class: "A", Index: 9, Phase: 1}))

	require.NoError(t, l.Reset())

	_, ok, err := l.Load()
	require.NoError(t, err)
	require.False(t, ok)
	failures, err := l.Failures()
	require.NoError(t, err)
	require.Empty(t, failures)

	require.NoError(t, l.AddFailure(Failure{Class: "B", Index: 3, Phase: 1}))
	failures, err = l.Failures()
	require.NoError(t, err)
	require.Len(t, failures, 1)
}
