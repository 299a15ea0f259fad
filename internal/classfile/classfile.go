// Package classfile reads the parts of a JVM class file that compilation
// needs: the class name, the constant-pool class references and the declared
// methods. Field and attribute contents are skipped.
package classfile

import (
	"bytes"
	"fmt"
	"io"
	"strings"
)

// Magic is the first four bytes of every class file.
const Magic = 0xCAFEBABE

// Constant pool tags.
const (
	tagUtf8               = 1
	tagInteger            = 3
	tagFloat              = 4
	tagLong               = 5
	tagDouble             = 6
	tagClass              = 7
	tagString             = 8
	tagFieldref           = 9
	tagMethodref          = 10
	tagInterfaceMethodref = 11
	tagNameAndType        = 12
	tagMethodHandle       = 15
	tagMethodType         = 16
	tagDynamic            = 17
	tagInvokeDynamic      = 18
	tagModule             = 19
	tagPackage            = 20
)

// Method access flags used by callers.
const (
	AccStatic    = 0x0008
	AccNative    = 0x0100
	AccAbstract  = 0x0400
	AccSynthetic = 0x1000
)

// Special method names.
const (
	ConstructorName = "<init>"
	InitializerName = "<clinit>"
)

// FormatError reports a malformed class file.
type FormatError struct {
	Offset int
	Msg    string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("classfile: %s at offset %d", e.Msg, e.Offset)
}

type cpEntry struct {
	tag  uint8
	utf8 string
	ref  uint16
}

// Class is a parsed class file.
type Class struct {
	Major       uint16
	Minor       uint16
	AccessFlags uint16
	// Name is the internal (slash separated) name, e.g. "java/lang/Object".
	Name       string
	SuperName  string
	Interfaces []string
	Methods    []Method

	pool []cpEntry
}

// Method is one entry of the methods table.
type Method struct {
	AccessFlags uint16
	Name        string
	Descriptor  string
}

// Parse reads a class file from r.
func Parse(r io.Reader) (*Class, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return ParseBytes(data)
}

// ParseBytes parses an in-memory class file.
func ParseBytes(data []byte) (*Class, error) {
	d := &decoder{buf: data}
	if m := d.u4(); d.err == nil && m != Magic {
		return nil, &FormatError{Offset: 0, Msg: fmt.Sprintf("bad magic %#x", m)}
	}
	c := &Class{}
	c.Minor = d.u2()
	c.Major = d.u2()

	count := int(d.u2())
	c.pool = make([]cpEntry, count)
	for i := 1; i < count && d.err == nil; i++ {
		e := cpEntry{tag: d.u1()}
		switch e.tag {
		case tagUtf8:
			n := int(d.u2())
			e.utf8 = string(d.bytes(n))
		case tagClass, tagString, tagMethodType, tagModule, tagPackage:
			e.ref = d.u2()
		case tagInteger, tagFloat, tagFieldref, tagMethodref, tagInterfaceMethodref,
			tagNameAndType, tagDynamic, tagInvokeDynamic:
			d.skip(4)
		case tagLong, tagDouble:
			d.skip(8)
			c.pool[i] = e
			i++
			continue
		case tagMethodHandle:
			d.skip(3)
		default:
			d.fail(fmt.Sprintf("unknown constant pool tag %d", e.tag))
		}
		c.pool[i] = e
	}

	c.AccessFlags = d.u2()
	thisIdx := d.u2()
	superIdx := d.u2()
	n := int(d.u2())
	ifaces := make([]uint16, 0, n)
	for i := 0; i < n && d.err == nil; i++ {
		ifaces = append(ifaces, d.u2())
	}

	// fields
	n = int(d.u2())
	for i := 0; i < n && d.err == nil; i++ {
		d.skip(6)
		d.skipAttributes()
	}

	n = int(d.u2())
	c.Methods = make([]Method, 0, n)
	for i := 0; i < n && d.err == nil; i++ {
		flags := d.u2()
		nameIdx := d.u2()
		descIdx := d.u2()
		d.skipAttributes()
		if d.err != nil {
			break
		}
		name, err := c.utf8At(nameIdx)
		if err != nil {
			return nil, err
		}
		desc, err := c.utf8At(descIdx)
		if err != nil {
			return nil, err
		}
		c.Methods = append(c.Methods, Method{AccessFlags: flags, Name: name, Descriptor: desc})
	}
	if d.err != nil {
		return nil, d.err
	}

	var err error
	if c.Name, err = c.classAt(thisIdx); err != nil {
		return nil, err
	}
	if superIdx != 0 {
		if c.SuperName, err = c.classAt(superIdx); err != nil {
			return nil, err
		}
	}
	for _, idx := range ifaces {
		name, err := c.classAt(idx)
		if err != nil {
			return nil, err
		}
		c.Interfaces = append(c.Interfaces, name)
	}
	return c, nil
}

func (c *Class) utf8At(idx uint16) (string, error) {
	if int(idx) <= 0 || int(idx) >= len(c.pool) || c.pool[idx].tag != tagUtf8 {
		return "", &FormatError{Msg: fmt.Sprintf("constant pool index %d is not Utf8", idx)}
	}
	return c.pool[idx].utf8, nil
}

func (c *Class) classAt(idx uint16) (string, error) {
	if int(idx) <= 0 || int(idx) >= len(c.pool) || c.pool[idx].tag != tagClass {
		return "", &FormatError{Msg: fmt.Sprintf("constant pool index %d is not Class", idx)}
	}
	return c.utf8At(c.pool[idx].ref)
}

// BinaryName returns the dotted name, e.g. "java.lang.Object".
func (c *Class) BinaryName() string {
	return strings.ReplaceAll(c.Name, "/", ".")
}

// Constructors returns the declared <init> methods in class-file order.
func (c *Class) Constructors() []Method {
	var out []Method
	for _, m := range c.Methods {
		if m.Name == ConstructorName {
			out = append(out, m)
		}
	}
	return out
}

// DeclaredMethods returns every declared method that is neither a
// constructor nor the static initializer.
func (c *Class) DeclaredMethods() []Method {
	var out []Method
	for _, m := range c.Methods {
		if m.Name != ConstructorName && m.Name != InitializerName {
			out = append(out, m)
		}
	}
	return out
}

// HasInitializer reports whether the class declares <clinit>.
func (c *Class) HasInitializer() bool {
	for _, m := range c.Methods {
		if m.Name == InitializerName {
			return true
		}
	}
	return false
}

// ClassRefs lists every CONSTANT_Class entry except the class itself, in
// pool order. Array descriptors are reduced to their element class; arrays of
// primitives are dropped.
func (c *Class) ClassRefs() []string {
	var out []string
	for i := 1; i < len(c.pool); i++ {
		e := c.pool[i]
		if e.tag != tagClass {
			continue
		}
		name, err := c.utf8At(e.ref)
		if err != nil || name == c.Name {
			continue
		}
		if strings.HasPrefix(name, "[") {
			name = strings.TrimLeft(name, "[")
			if !strings.HasPrefix(name, "L") || !strings.HasSuffix(name, ";") {
				continue
			}
			name = name[1 : len(name)-1]
		}
		out = append(out, name)
	}
	return out
}

// decoder is a big-endian cursor with a sticky error.
type decoder struct {
	buf []byte
	off int
	err error
}

func (d *decoder) fail(msg string) {
	if d.err == nil {
		d.err = &FormatError{Offset: d.off, Msg: msg}
	}
}

func (d *decoder) need(n int) bool {
	if d.err != nil {
		return false
	}
	if n < 0 || d.off+n > len(d.buf) {
		d.fail("unexpected end of class file")
		return false
	}
	return true
}

func (d *decoder) u1() uint8 {
	if !d.need(1) {
		return 0
	}
	v := d.buf[d.off]
	d.off++
	return v
}

func (d *decoder) u2() uint16 {
	if !d.need(2) {
		return 0
	}
	v := uint16(d.buf[d.off])<<8 | uint16(d.buf[d.off+1])
	d.off += 2
	return v
}

func (d *decoder) u4() uint32 {
	if !d.need(4) {
		return 0
	}
	b := d.buf[d.off:]
	d.off += 4
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func (d *decoder) bytes(n int) []byte {
	if !d.need(n) {
		return nil
	}
	v := bytes.Clone(d.buf[d.off : d.off+n])
	d.off += n
	return v
}

func (d *decoder) skip(n int) {
	if d.need(n) {
		d.off += n
	}
}

func (d *decoder) skipAttributes() {
	n := int(d.u2())
	for i := 0; i < n && d.err == nil; i++ {
		d.skip(2)
		d.skip(int(d.u4()))
	}
}
