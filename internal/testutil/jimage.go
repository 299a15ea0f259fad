package testutil

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/require"
)

// ImageEntry is one resource of a synthetic module image.
type ImageEntry struct {
	// Name is the full name, e.g. "/java.base/java/lang/Object.class".
	Name     string
	Data     []byte
	Compress bool
}

// WriteImage writes a little-endian jimage file at path.
func WriteImage(t *testing.T, path string, entries []ImageEntry) string {
	t.Helper()
	le := binary.LittleEndian

	var strs bytes.Buffer
	strs.WriteByte(0)
	strOffsets := map[string]uint64{"": 0}
	str := func(s string) uint64 {
		if off, ok := strOffsets[s]; ok {
			return off
		}
		off := uint64(strs.Len())
		strs.WriteString(s)
		strs.WriteByte(0)
		strOffsets[s] = off
		return off
	}
	zipName := str("zip")

	var locations, resources bytes.Buffer
	offsets := make([]uint32, 0, len(entries))
	for _, e := range entries {
		module, rest, _ := strings.Cut(strings.TrimPrefix(e.Name, "/"), "/")
		parent, file := "", rest
		if i := strings.LastIndexByte(rest, '/'); i >= 0 {
			parent, file = rest[:i], rest[i+1:]
		}
		base, ext := file, ""
		if i := strings.LastIndexByte(file, '.'); i >= 0 {
			base, ext = file[:i], file[i+1:]
		}

		var attrs [8]uint64
		attrs[1] = str(module)
		attrs[2] = str(parent)
		attrs[3] = str(base)
		attrs[4] = str(ext)
		attrs[5] = uint64(resources.Len())
		attrs[7] = uint64(len(e.Data))
		if e.Compress {
			var body bytes.Buffer
			zw := zlib.NewWriter(&body)
			_, err := zw.Write(e.Data)
			require.NoError(t, err)
			require.NoError(t, zw.Close())

			hdr := make([]byte, 29)
			le.PutUint32(hdr, 0xCAFEFAFA)
			le.PutUint64(hdr[4:], uint64(body.Len()))
			le.PutUint64(hdr[12:], uint64(len(e.Data)))
			le.PutUint32(hdr[20:], uint32(zipName))
			hdr[28] = 1
			resources.Write(hdr)
			resources.Write(body.Bytes())
			attrs[6] = uint64(len(hdr) + body.Len())
		} else {
			resources.Write(e.Data)
		}

		offsets = append(offsets, uint32(locations.Len()))
		for kind := 1; kind < len(attrs); kind++ {
			v := attrs[kind]
			if v == 0 {
				continue
			}
			n := 1
			for n < 8 && v>>(8*n) != 0 {
				n++
			}
			locations.WriteByte(byte(kind<<3 | (n - 1)))
			for j := n - 1; j >= 0; j-- {
				locations.WriteByte(byte(v >> (8 * j)))
			}
		}
		locations.WriteByte(0)
	}

	var out bytes.Buffer
	w := func(v any) { binary.Write(&out, le, v) }
	w(uint32(0xCAFEDADA))
	w(uint32(1 << 16))
	w(uint32(0))
	w(uint32(len(entries)))
	w(uint32(len(entries)))
	w(uint32(locations.Len()))
	w(uint32(strs.Len()))
	for range entries {
		w(int32(0)) // redirect
	}
	for _, off := range offsets {
		w(off)
	}
	out.Write(locations.Bytes())
	out.Write(strs.Bytes())
	out.Write(resources.Bytes())

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, out.Bytes(), 0o644))
	return path
}
