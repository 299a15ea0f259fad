// Package jimage reads the JDK module image ("lib/modules"): the resource
// index and resource contents. Only the "zip" decompressor is supported for
// compressed resources.
package jimage

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/klauspost/compress/zlib"
)

const (
	// Magic is the image header magic in the image's own byte order.
	Magic = 0xCAFEDADA
	// compressedMagic marks a compressed resource header.
	compressedMagic = 0xCAFEFAFA

	headerSize           = 7 * 4
	compressedHeaderSize = 29
)

// Location attribute kinds.
const (
	attrEnd = iota
	attrModule
	attrParent
	attrBase
	attrExtension
	attrOffset
	attrCompressed
	attrUncompressed
	attrCount
)

// ErrNotFound is returned by Read for names absent from the image.
var ErrNotFound = errors.New("jimage: resource not found")

// Header is the fixed image header.
type Header struct {
	Major         uint16
	Minor         uint16
	Flags         uint32
	ResourceCount uint32
	TableLength   uint32
	LocationsSize uint32
	StringsSize   uint32
}

// Image is an open module image.
type Image struct {
	f      *os.File
	order  binary.ByteOrder
	Header Header

	offsets   []uint32
	locations []byte
	strings   []byte
	indexSize int64

	once   sync.Once
	byName map[string]int
	// byPath maps "parent/base.ext" to the full name in the first module,
	// in name order, that holds it.
	byPath map[string]string
	names  []string
}

// Open reads the header and index of the image at path.
func Open(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	img, err := newImage(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("jimage: %s: %w", path, err)
	}
	return img, nil
}

func newImage(f *os.File) (*Image, error) {
	raw := make([]byte, headerSize)
	if _, err := f.ReadAt(raw, 0); err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	img := &Image{f: f}
	switch {
	case binary.LittleEndian.Uint32(raw) == Magic:
		img.order = binary.LittleEndian
	case binary.BigEndian.Uint32(raw) == Magic:
		img.order = binary.BigEndian
	default:
		return nil, fmt.Errorf("bad magic %#x", binary.BigEndian.Uint32(raw))
	}
	u4 := func(i int) uint32 { return img.order.Uint32(raw[i*4:]) }
	version := u4(1)
	img.Header = Header{
		Major:         uint16(version >> 16),
		Minor:         uint16(version),
		Flags:         u4(2),
		ResourceCount: u4(3),
		TableLength:   u4(4),
		LocationsSize: u4(5),
		StringsSize:   u4(6),
	}

	h := img.Header
	tables := make([]byte, int64(h.TableLength)*8)
	if _, err := f.ReadAt(tables, headerSize); err != nil {
		return nil, fmt.Errorf("reading index tables: %w", err)
	}
	img.offsets = make([]uint32, h.TableLength)
	for i := range img.offsets {
		img.offsets[i] = img.order.Uint32(tables[int(h.TableLength)*4+i*4:])
	}

	pos := int64(headerSize) + int64(len(tables))
	img.locations = make([]byte, h.LocationsSize)
	if _, err := f.ReadAt(img.locations, pos); err != nil {
		return nil, fmt.Errorf("reading locations: %w", err)
	}
	pos += int64(h.LocationsSize)
	img.strings = make([]byte, h.StringsSize)
	if _, err := f.ReadAt(img.strings, pos); err != nil {
		return nil, fmt.Errorf("reading strings: %w", err)
	}
	img.indexSize = pos + int64(h.StringsSize)
	return img, nil
}

// Close releases the underlying file.
func (img *Image) Close() error {
	return img.f.Close()
}

// Entries returns the full name ("/module/parent/base.ext") of every
// resource, sorted.
func (img *Image) Entries() []string {
	img.index()
	return img.names
}

// Read returns the uncompressed content of the named resource.
func (img *Image) Read(name string) ([]byte, error) {
	img.index()
	i, ok := img.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	attrs, err := img.attributes(i)
	if err != nil {
		return nil, err
	}
	size := attrs[attrUncompressed]
	if attrs[attrCompressed] != 0 {
		size = attrs[attrCompressed]
	}
	data := make([]byte, size)
	if _, err := img.f.ReadAt(data, img.indexSize+int64(attrs[attrOffset])); err != nil {
		return nil, fmt.Errorf("jimage: reading %s: %w", name, err)
	}
	if attrs[attrCompressed] == 0 {
		return data, nil
	}
	return img.decompress(data)
}

// FindClass locates a class by internal name ("java/lang/Object") in any
// module.
func (img *Image) FindClass(internalName string) ([]byte, error) {
	img.index()
	name, ok := img.byPath[internalName+".class"]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, internalName)
	}
	return img.Read(name)
}

func (img *Image) index() {
	img.once.Do(func() {
		img.byName = make(map[string]int, len(img.offsets))
		for i := range img.offsets {
			attrs, err := img.attributes(i)
			if err != nil {
				continue
			}
			name := img.fullName(attrs)
			img.byName[name] = i
			img.names = append(img.names, name)
		}
		sort.Strings(img.names)
		img.byPath = make(map[string]string, len(img.names))
		for _, name := range img.names {
			rest := strings.TrimPrefix(name, "/")
			slash := strings.IndexByte(rest, '/')
			if slash < 0 {
				continue
			}
			if _, seen := img.byPath[rest[slash+1:]]; !seen {
				img.byPath[rest[slash+1:]] = name
			}
		}
	})
}

func (img *Image) attributes(i int) ([attrCount]uint64, error) {
	var attrs [attrCount]uint64
	off := int(img.offsets[i])
	for off < len(img.locations) {
		b := img.locations[off]
		kind := int(b >> 3)
		if kind == attrEnd {
			return attrs, nil
		}
		if kind >= attrCount {
			return attrs, fmt.Errorf("jimage: bad location attribute %d", kind)
		}
		n := int(b&7) + 1
		if off+n >= len(img.locations) {
			return attrs, io.ErrUnexpectedEOF
		}
		var v uint64
		for j := 1; j <= n; j++ {
			v = v<<8 | uint64(img.locations[off+j])
		}
		attrs[kind] = v
		off += n + 1
	}
	return attrs, io.ErrUnexpectedEOF
}

func (img *Image) stringAt(off uint64) string {
	if off >= uint64(len(img.strings)) {
		return ""
	}
	s := img.strings[off:]
	if end := bytes.IndexByte(s, 0); end >= 0 {
		s = s[:end]
	}
	return string(s)
}

func (img *Image) fullName(attrs [attrCount]uint64) string {
	var b strings.Builder
	if m := attrs[attrModule]; m != 0 {
		b.WriteString("/")
		b.WriteString(img.stringAt(m))
		b.WriteString("/")
	}
	if p := attrs[attrParent]; p != 0 {
		b.WriteString(img.stringAt(p))
		b.WriteString("/")
	}
	b.WriteString(img.stringAt(attrs[attrBase]))
	if e := attrs[attrExtension]; e != 0 {
		b.WriteString(".")
		b.WriteString(img.stringAt(e))
	}
	return b.String()
}

// decompress unwraps stacked compressed-resource headers.
func (img *Image) decompress(data []byte) ([]byte, error) {
	for len(data) >= compressedHeaderSize && img.order.Uint32(data) == compressedMagic {
		compressedSize := img.order.Uint64(data[4:])
		uncompressedSize := img.order.Uint64(data[12:])
		decompressor := img.stringAt(uint64(img.order.Uint32(data[20:])))
		body := data[compressedHeaderSize:]
		if uint64(len(body)) < compressedSize {
			return nil, io.ErrUnexpectedEOF
		}
		body = body[:compressedSize]

		switch decompressor {
		case "zip":
			zr, err := zlib.NewReader(bytes.NewReader(body))
			if err != nil {
				return nil, fmt.Errorf("jimage: inflating resource: %w", err)
			}
			out := make([]byte, 0, uncompressedSize)
			buf := bytes.NewBuffer(out)
			if _, err := io.Copy(buf, zr); err != nil {
				return nil, fmt.Errorf("jimage: inflating resource: %w", err)
			}
			zr.Close()
			data = buf.Bytes()
		default:
			return nil, fmt.Errorf("jimage: unsupported decompressor %q", decompressor)
		}
	}
	return data, nil
}
