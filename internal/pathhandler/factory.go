package pathhandler

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/vk/ctwgo/internal/fsutil"
)

// Kind names a handler variant.
type Kind string

const (
	KindDir      Kind = "dir"
	KindJar      Kind = "jar"
	KindJarInDir Kind = "jar-in-dir"
	KindImage    Kind = "jimage"
	KindList     Kind = "list"
)

// ImageFileName is the file name of a jimage module image.
const ImageFileName = "modules"

var jarInDir = regexp.MustCompile(`^(.*[/\\])?\*$`)

// Classify selects the handler variant for path and returns the root the
// handler works on. Only the path string and file type are inspected; the
// target is never opened.
func Classify(path string) (Kind, string) {
	if m := jarInDir.FindStringSubmatch(path); m != nil {
		dir := m[1]
		if dir == "" {
			dir = "."
		}
		return KindJarInDir, dir
	}
	lower := strings.ToLower(path)
	switch {
	case (strings.HasSuffix(lower, ".jar") || strings.HasSuffix(lower, ".zip")) && fsutil.IsRegularFile(path):
		return KindJar, path
	case strings.HasSuffix(path, ".lst") && fsutil.IsRegularFile(path):
		return KindList, path
	case filepath.Base(path) == ImageFileName && fsutil.IsRegularFile(path):
		return KindImage, path
	default:
		return KindDir, path
	}
}

// Create returns the handler for path.
func Create(path string, deps Deps) Handler {
	kind, root := Classify(path)
	switch kind {
	case KindJarInDir:
		return NewJarInDir(root, deps)
	case KindJar:
		return NewJar(root, deps)
	case KindList:
		return NewList(root, deps)
	case KindImage:
		return NewImage(root, deps)
	default:
		return NewDir(root, deps)
	}
}

// KindOf reports the variant of a handler returned by Create.
func KindOf(h Handler) Kind {
	switch h.(type) {
	case *JarInDir:
		return KindJarInDir
	case *Jar:
		return KindJar
	case *List:
		return KindList
	case *Image:
		return KindImage
	default:
		return KindDir
	}
}

// BootClassPath resolves the default inputs when none are given: the
// explicit boot class path if set, else the module image under javaHome,
// else the jars of a pre-module JDK layout. Segments are split on the host
// list separator.
func BootClassPath(explicit, javaHome string) []string {
	if explicit != "" {
		return filepath.SplitList(explicit)
	}
	if javaHome == "" {
		return nil
	}
	image := filepath.Join(javaHome, "lib", ImageFileName)
	if fsutil.IsRegularFile(image) {
		return []string{image}
	}
	jars, err := fsutil.ListFilesByExtension(filepath.Join(javaHome, "jre", "lib"), ".jar")
	if err != nil {
		jars, _ = fsutil.ListFilesByExtension(filepath.Join(javaHome, "lib"), ".jar")
	}
	for i, j := range jars {
		if i > 0 && filepath.Base(j) == "rt.jar" {
			jars = append([]string{j}, append(jars[:i:i], jars[i+1:]...)...)
			break
		}
	}
	return jars
}

// SkipDuplicateRuntime reports whether segment i of the default boot class
// path should be skipped: an rt.jar segment that is not the first one.
func SkipDuplicateRuntime(segment string, i int) bool {
	return i > 0 && filepath.Base(segment) == "rt.jar"
}

// JavaHome returns the java.home setting, falling back to $JAVA_HOME.
func JavaHome(setting string) string {
	if setting != "" {
		return setting
	}
	return os.Getenv("JAVA_HOME")
}
