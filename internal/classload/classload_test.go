package classload_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/ctwgo/internal/classload"
	"github.com/vk/ctwgo/internal/jimage"
	"github.com/vk/ctwgo/internal/testutil"
)

func TestDir_LoadAndDelegate(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	parentRoot := testutil.WriteClassTree(t, t.TempDir(), map[string][]byte{
		"java/lang/Object": testutil.ClassBytes("java/lang/Object"),
	})
	root := testutil.WriteClassTree(t, t.TempDir(), map[string][]byte{
		"p/A":     testutil.ClassBytes("p/A", "run:()V"),
		"p/Wrong": testutil.ClassBytes("p/Other"),
		"p/Bad":   []byte("not a class"),
	})
	loader := classload.NewDir(root, classload.NewDir(parentRoot, nil))

	// --- Act / Assert ---
	c, err := loader.Load("p.A")
	require.NoError(t, err)
	require.Equal(t, "p/A", c.Name)

	c, err = loader.Load("java.lang.Object")
	require.NoError(t, err, "parent should resolve classes missing from the root")
	require.Equal(t, "java/lang/Object", c.Name)

	_, err = loader.Load("p.Missing")
	require.True(t, errors.Is(err, classload.ErrClassNotFound))
	require.True(t, classload.IsSkippable(err))

	_, err = loader.Load("p.Wrong")
	require.True(t, errors.Is(err, classload.ErrLinkage))
	require.Contains(t, err.Error(), "wrong name")

	_, err = loader.Load("p.Bad")
	require.True(t, errors.Is(err, classload.ErrLinkage))
}

func TestZip_Load(t *testing.T) {
	t.Parallel()

	jar := testutil.WriteJar(t, filepath.Join(t.TempDir(), "lib.jar"), map[string][]byte{
		"a/b/C.class": testutil.ClassBytes("a/b/C"),
	})
	loader, err := classload.NewZip(jar, nil)
	require.NoError(t, err)
	defer loader.Close()

	c, err := loader.Load("a.b.C")
	require.NoError(t, err)
	require.Equal(t, "a.b.C", c.BinaryName())

	_, err = loader.Load("a.b.D")
	require.True(t, errors.Is(err, classload.ErrClassNotFound))
}

func TestOpenClassPath_MixedSegments(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	dir := t.TempDir()
	classes := testutil.WriteClassTree(t, filepath.Join(dir, "classes"), map[string][]byte{
		"x/InDir": testutil.ClassBytes("x/InDir"),
	})
	jar := testutil.WriteJar(t, filepath.Join(dir, "lib.JAR"), map[string][]byte{
		"x/InJar.class": testutil.ClassBytes("x/InJar"),
	})
	image := testutil.WriteImage(t, filepath.Join(dir, "modules"), []testutil.ImageEntry{
		{Name: "/java.base/java/lang/Object.class", Data: testutil.ClassBytes("java/lang/Object")},
	})

	// --- Act ---
	cp, err := classload.OpenClassPath([]string{classes, jar, image, filepath.Join(dir, "missing")})
	require.NoError(t, err)
	defer cp.Close()

	// --- Assert ---
	require.Len(t, cp.Chain, 3)
	for _, name := range []string{"x.InDir", "x.InJar", "java.lang.Object"} {
		_, err := cp.Load(name)
		require.NoError(t, err, name)
	}
	_, err = cp.Load("x.Nope")
	require.True(t, errors.Is(err, classload.ErrClassNotFound))
}

func TestImage_Load(t *testing.T) {
	t.Parallel()

	path := testutil.WriteImage(t, filepath.Join(t.TempDir(), "modules"), []testutil.ImageEntry{
		{Name: "/java.base/java/util/Map.class", Data: testutil.ClassBytes("java/util/Map"), Compress: true},
	})
	img, err := jimage.Open(path)
	require.NoError(t, err)
	defer img.Close()

	loader := classload.NewImage(path, img, nil)
	c, err := loader.Load("java.util.Map")
	require.NoError(t, err)
	require.Equal(t, "java/util/Map", c.Name)
}
