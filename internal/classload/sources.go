package classload

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zip"
	"github.com/vk/ctwgo/internal/jimage"
)

// Dir loads classes from root/<internal name>.class.
type Dir struct{ *base }

type dirSource string

func (d dirSource) find(internal string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(string(d), filepath.FromSlash(internal)+".class"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, notFound(internal, d)
	}
	return data, err
}

func (d dirSource) String() string { return string(d) }

// NewDir returns a loader over a class directory.
func NewDir(root string, parent Loader) *Dir {
	return &Dir{newBase(dirSource(root), parent, nil)}
}

// Zip loads classes from a jar or zip archive.
type Zip struct{ *base }

type zipSource struct {
	path  string
	files map[string]*zip.File
}

func (z *zipSource) find(internal string) ([]byte, error) {
	f, ok := z.files[internal+".class"]
	if !ok {
		return nil, notFound(internal, z)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLinkage, f.Name, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (z *zipSource) String() string { return z.path }

// NewZip opens the archive at path. The caller closes the loader.
func NewZip(path string, parent Loader) (*Zip, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	return NewZipReader(path, &r.Reader, r, parent), nil
}

// NewZipReader wraps an already open archive; closer may be nil.
func NewZipReader(path string, r *zip.Reader, closer io.Closer, parent Loader) *Zip {
	src := &zipSource{path: path, files: make(map[string]*zip.File, len(r.File))}
	for _, f := range r.File {
		src.files[f.Name] = f
	}
	return &Zip{newBase(src, parent, closer)}
}

// Image loads classes from a module image.
type Image struct{ *base }

type imageSource struct {
	path string
	img  *jimage.Image
}

func (s *imageSource) find(internal string) ([]byte, error) {
	data, err := s.img.FindClass(internal)
	if errors.Is(err, jimage.ErrNotFound) {
		return nil, notFound(internal, s)
	}
	return data, err
}

func (s *imageSource) String() string { return s.path }

// NewImage wraps an open image; closing the loader does not close img.
func NewImage(path string, img *jimage.Image, parent Loader) *Image {
	return &Image{newBase(&imageSource{path: path, img: img}, parent, nil)}
}
