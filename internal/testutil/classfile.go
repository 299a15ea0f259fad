package testutil

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"
)

// ClassSpec describes a synthetic class file for tests.
type ClassSpec struct {
	// Name is the internal name, e.g. "p/Foo".
	Name  string
	Super string
	// Methods are "name:descriptor" pairs, e.g. "<init>:()V".
	Methods []string
	// Refs are extra CONSTANT_Class entries.
	Refs []string
	// Long adds a CONSTANT_Long entry, which occupies two pool slots.
	Long bool
}

// ClassBytes builds a class with a default constructor plus the given methods.
func ClassBytes(name string, methods ...string) []byte {
	return ClassSpec{Name: name, Methods: append([]string{"<init>:()V"}, methods...)}.Bytes()
}

// Bytes encodes s as a version 52 class file.
func (s ClassSpec) Bytes() []byte {
	super := s.Super
	if super == "" {
		super = "java/lang/Object"
	}

	var pool bytes.Buffer
	count := uint16(1)
	utf8s := map[string]uint16{}
	utf8 := func(v string) uint16 {
		if idx, ok := utf8s[v]; ok {
			return idx
		}
		pool.WriteByte(1)
		binary.Write(&pool, binary.BigEndian, uint16(len(v)))
		pool.WriteString(v)
		utf8s[v] = count
		count++
		return utf8s[v]
	}
	class := func(v string) uint16 {
		nameIdx := utf8(v)
		pool.WriteByte(7)
		binary.Write(&pool, binary.BigEndian, nameIdx)
		count++
		return count - 1
	}

	if s.Long {
		pool.WriteByte(5)
		binary.Write(&pool, binary.BigEndian, int64(42))
		count += 2
	}
	thisIdx := class(s.Name)
	superIdx := class(super)
	for _, r := range s.Refs {
		class(r)
	}
	type method struct{ name, desc uint16 }
	var methods []method
	for _, m := range s.Methods {
		name, desc, _ := strings.Cut(m, ":")
		methods = append(methods, method{utf8(name), utf8(desc)})
	}

	var out bytes.Buffer
	w := func(v any) { binary.Write(&out, binary.BigEndian, v) }
	w(uint32(0xCAFEBABE))
	w(uint16(0))
	w(uint16(52))
	w(count)
	out.Write(pool.Bytes())
	w(uint16(0x0021))
	w(thisIdx)
	w(superIdx)
	w(uint16(0)) // interfaces
	w(uint16(0)) // fields
	w(uint16(len(methods)))
	for _, m := range methods {
		w(uint16(0x0001))
		w(m.name)
		w(m.desc)
		w(uint16(0))
	}
	w(uint16(0)) // attributes
	return out.Bytes()
}

// WriteClassTree writes internal-name -> class bytes under root as
// root/<name>.class and returns root.
func WriteClassTree(t *testing.T, root string, classes map[string][]byte) string {
	t.Helper()
	for name, data := range classes {
		path := filepath.Join(root, filepath.FromSlash(name)+".class")
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, data, 0o644))
	}
	return root
}

// WriteJar writes a zip archive at path containing name -> content entries.
func WriteJar(t *testing.T, path string, entries map[string][]byte) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range entries {
		f, err := zw.Create(name)
		require.NoError(t, err)
		_, err = f.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}
