package engine_test

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vk/ctwgo/internal/backend/sim"
	"github.com/vk/ctwgo/internal/ctxlog"
	"github.com/vk/ctwgo/internal/engine"
	"github.com/vk/ctwgo/internal/executor"
	"github.com/vk/ctwgo/internal/protocol"
	"github.com/vk/ctwgo/internal/testutil"
)

type harness struct {
	engine *engine.Engine
	sim    *sim.Compiler
	out    *testutil.SafeBuffer
	loader testutil.MapLoader
}

func newHarness(t *testing.T, settings engine.Settings, opts sim.Options, classes int) *harness {
	t.Helper()
	loader := testutil.MapLoader{}
	for i := 1; i <= classes; i++ {
		name := fmt.Sprintf("p/C%d", i)
		loader[name] = testutil.ClassBytes(name, "run:()V")
	}
	out := &testutil.SafeBuffer{}
	compiler := sim.New(opts)
	return &harness{
		engine: engine.New(settings, compiler, &executor.Inline{}, protocol.NewWriter(out)),
		sim:    compiler,
		out:    out,
		loader: loader,
	}
}

func (h *harness) feed(ctx context.Context, n int) {
	for i := 1; i <= n; i++ {
		h.engine.ProcessClass(ctx, fmt.Sprintf("p.C%d", i), h.loader)
	}
}

func classLines(lines []string) []string {
	var out []string
	for _, l := range lines {
		if protocol.IsClassLine(l) {
			out = append(out, l)
		}
	}
	return out
}

func TestProcessClass_StopsAtLimit(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	ctx := ctxlog.Discard(context.Background())
	h := newHarness(t, engine.Settings{StartAt: 1, StopAt: 2}, sim.Options{}, 3)

	// --- Act ---
	h.feed(ctx, 3)

	// --- Assert ---
	c := h.engine.Counters()
	require.Equal(t, int64(2), c.Classes(), "the index past the limit is handed back")
	require.Equal(t, int64(4), c.Methods(), "one constructor and one method per class")
	require.True(t, h.engine.IsLimitReached())
	require.Equal(t, []string{"[1]\tp.C1", "[2]\tp.C2"}, classLines(h.out.Lines()))
	require.Equal(t, int64(4), h.sim.Stats().Enqueued)
}

func TestProcessClass_LatchedLimitSubmitsNothing(t *testing.T) {
	t.Parallel()

	ctx := ctxlog.Discard(context.Background())
	h := newHarness(t, engine.Settings{StartAt: 1, StopAt: 1}, sim.Options{}, 3)
	h.feed(ctx, 2)
	require.True(t, h.engine.IsLimitReached())
	before := h.sim.Stats().Enqueued

	h.engine.ProcessClass(ctx, "p.C3", h.loader)

	require.Equal(t, before, h.sim.Stats().Enqueued)
	require.Equal(t, int64(1), h.engine.Counters().Classes())
}

func TestProcessClass_InterruptedSubmitsNothing(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	ctx, cancel := context.WithCancel(ctxlog.Discard(context.Background()))
	h := newHarness(t, engine.Settings{StartAt: 1, StopAt: 10}, sim.Options{}, 3)
	h.feed(ctx, 1)

	// --- Act ---
	cancel()
	h.engine.ProcessClass(ctx, "p.C2", h.loader)
	h.engine.ProcessClass(ctx, "p.C3", h.loader)

	// --- Assert ---
	require.Equal(t, int64(1), h.engine.Counters().Classes())
	require.Equal(t, []string{"[1]\tp.C1"}, classLines(h.out.Lines()))
	require.False(t, h.engine.IsLimitReached())
}

func TestProcessClass_CompileRange(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	ctx := ctxlog.Discard(context.Background())
	h := newHarness(t, engine.Settings{StartAt: 2, StopAt: 3}, sim.Options{}, 5)

	// --- Act ---
	h.feed(ctx, 5)

	// --- Assert ---
	require.Equal(t, []string{"[2]\tp.C2", "[3]\tp.C3"}, classLines(h.out.Lines()))
	require.Equal(t, int64(3), h.engine.Counters().Classes())
	require.Equal(t, int64(4), h.engine.Counters().Methods())
	require.True(t, h.engine.IsLimitReached())
}

func TestProcessClass_LoadFailureIsReported(t *testing.T) {
	t.Parallel()

	ctx := ctxlog.Discard(context.Background())
	h := newHarness(t, engine.Settings{StartAt: 1, StopAt: 10}, sim.Options{}, 1)

	h.engine.ProcessClass(ctx, "p.Missing", h.loader)
	h.engine.ProcessClass(ctx, "p.C1", h.loader)

	lines := h.out.Lines()
	require.True(t, strings.HasPrefix(lines[0], "Class p.Missing loading failed : "), lines[0])
	require.Equal(t, "[2]\tp.C1", lines[1])
	require.Equal(t, int64(2), h.engine.Counters().Classes())
}

func TestCompile_TieredVerbose(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	ctx := ctxlog.Discard(context.Background())
	settings := engine.Settings{StartAt: 1, StopAt: 10, Tiered: true, MaxLevel: 4, Verbose: true}
	h := newHarness(t, settings, sim.Options{}, 1)

	// --- Act ---
	h.feed(ctx, 1)

	// --- Assert ---
	out := h.out.String()
	for level := 1; level <= 4; level++ {
		require.Contains(t, out, fmt.Sprintf("[1]\tp.C1::run()\tcompilation level = %d. OK\n", level))
	}
	require.Equal(t, int64(8), h.sim.Stats().Enqueued)
	require.NotContains(t, out, "WARNING")
}

func TestCompile_ReportsFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts sim.Options
		want string
	}{
		{
			name: "enqueue error",
			opts: sim.Options{FailOn: regexp.MustCompile(`C1`)},
			want: "[1]\tp.C1::run()\terror on compile at 4 level: ",
		},
		{
			name: "not compilable",
			opts: sim.Options{NotCompilable: regexp.MustCompile(`::run$`)},
			want: "[1]\tp.C1::run()\tnot compilable at 4",
		},
		{
			name: "above max level",
			opts: sim.Options{MaxLevel: 3},
			want: "[1]\tp.C1::run()\tnot compilable at 4",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := ctxlog.Discard(context.Background())
			h := newHarness(t, engine.Settings{StartAt: 1, StopAt: 10, Verbose: true}, tt.opts, 1)

			h.feed(ctx, 1)

			require.Contains(t, h.out.String(), tt.want)
		})
	}
}

func TestCompile_TieredFailureMovesToNextLevel(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	ctx := ctxlog.Discard(context.Background())
	settings := engine.Settings{StartAt: 1, StopAt: 10, Tiered: true, MaxLevel: 4}
	h := newHarness(t, settings, sim.Options{FailOn: regexp.MustCompile(`C1$`), MaxLevel: 4}, 1)

	// --- Act ---
	h.feed(ctx, 1)

	// --- Assert ---
	out := h.out.String()
	for level := 1; level <= 4; level++ {
		require.Contains(t, out, fmt.Sprintf("[1]\tp.C1::run()\terror on compile at %d level: sim: compilation of ", level))
	}
	require.Equal(t, 8, strings.Count(out, "error on compile at "), "constructor and method fail at every level")
	require.Zero(t, h.sim.Stats().Enqueued)
	require.Equal(t, int64(2), h.engine.Counters().Methods())
}

func TestCompile_WaitsForBackgroundCompilation(t *testing.T) {
	t.Parallel()

	ctx := ctxlog.Discard(context.Background())
	settings := engine.Settings{
		StartAt:               1,
		StopAt:                10,
		BackgroundCompilation: true,
		WaitAttempts:          50,
		WaitInterval:          5 * time.Millisecond,
	}
	h := newHarness(t, settings, sim.Options{Delay: 20 * time.Millisecond}, 1)

	h.feed(ctx, 1)

	require.NotContains(t, h.out.String(), "WARNING")
}

func TestCompile_GivesUpWaiting(t *testing.T) {
	t.Parallel()

	ctx := ctxlog.Discard(context.Background())
	settings := engine.Settings{
		StartAt:               1,
		StopAt:                10,
		BackgroundCompilation: true,
		WaitAttempts:          2,
		WaitInterval:          time.Millisecond,
	}
	h := newHarness(t, settings, sim.Options{Delay: time.Hour}, 1)

	h.feed(ctx, 1)

	require.Contains(t, h.out.String(), "[1]\tp.C1::run()\tWARNING compilation level = 0, but not 4\n")
}

func TestCompile_InitializerAndDeoptimizeAll(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	ctx := ctxlog.Discard(context.Background())
	settings := engine.Settings{StartAt: 1, StopAt: 10, DeoptimizeAllRate: 2, Preload: true}
	h := newHarness(t, settings, sim.Options{}, 4)
	h.loader["p/C1"] = testutil.ClassSpec{
		Name:    "p/C1",
		Methods: []string{"<init>:()V", "<clinit>:()V", "run:()V"},
		Refs:    []string{"p/C2", "q/Absent"},
	}.Bytes()

	// --- Act ---
	h.feed(ctx, 4)

	// --- Assert ---
	stats := h.sim.Stats()
	require.Equal(t, int64(1), stats.Initializers, "one tier without tiered compilation")
	require.Equal(t, int64(2), stats.DeoptimizeAll, "classes 2 and 4")
	require.Equal(t, int64(8), h.engine.Counters().Methods(), "the initializer is not a method command")
	require.NotContains(t, h.out.String(), "preloading failed", "unresolvable references are skipped")
}

func TestCompile_PoolExecutor(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	ctx := ctxlog.Discard(context.Background())
	loader := testutil.MapLoader{}
	for i := 1; i <= 20; i++ {
		name := fmt.Sprintf("p/C%d", i)
		loader[name] = testutil.ClassBytes(name, "a:()V", "b:(I)I")
	}
	compiler := sim.New(sim.Options{})
	pool := executor.NewPool(ctx, 4, executor.CallerRuns)
	out := &testutil.SafeBuffer{}
	e := engine.New(engine.Settings{StartAt: 1, StopAt: 100}, compiler, pool, protocol.NewWriter(out))

	// --- Act ---
	for i := 1; i <= 20; i++ {
		e.ProcessClass(ctx, fmt.Sprintf("p.C%d", i), loader)
	}
	pool.Shutdown()
	require.NoError(t, pool.Await(ctx))

	// --- Assert ---
	require.Equal(t, int64(20), e.Counters().Classes())
	require.Equal(t, int64(60), e.Counters().Methods())
	require.Equal(t, int64(60), compiler.Stats().Enqueued)
	require.Len(t, classLines(out.Lines()), 20)
}
