package classfile

import (
	"fmt"
	"strings"
)

var primitiveNames = map[byte]string{
	'B': "byte",
	'C': "char",
	'D': "double",
	'F': "float",
	'I': "int",
	'J': "long",
	'S': "short",
	'Z': "boolean",
	'V': "void",
}

// ParamTypes returns the parameter types of the method descriptor using the
// spelling of java.lang.Class#getName: "int", "java.lang.String",
// "[Ljava.lang.String;", "[I".
func (m Method) ParamTypes() ([]string, error) {
	desc := m.Descriptor
	if !strings.HasPrefix(desc, "(") {
		return nil, fmt.Errorf("classfile: bad method descriptor %q", desc)
	}
	end := strings.IndexByte(desc, ')')
	if end < 0 {
		return nil, fmt.Errorf("classfile: bad method descriptor %q", desc)
	}
	params := desc[1:end]
	var out []string
	for len(params) > 0 {
		name, n, err := fieldTypeName(params)
		if err != nil {
			return nil, fmt.Errorf("classfile: bad method descriptor %q: %w", desc, err)
		}
		out = append(out, name)
		params = params[n:]
	}
	return out, nil
}

// fieldTypeName decodes one field type at the start of s and returns its
// display name and the number of bytes consumed.
func fieldTypeName(s string) (string, int, error) {
	switch s[0] {
	case 'L':
		end := strings.IndexByte(s, ';')
		if end < 0 {
			return "", 0, fmt.Errorf("unterminated class type %q", s)
		}
		return strings.ReplaceAll(s[1:end], "/", "."), end + 1, nil
	case '[':
		dims := 0
		for dims < len(s) && s[dims] == '[' {
			dims++
		}
		if dims == len(s) {
			return "", 0, fmt.Errorf("array type without element %q", s)
		}
		_, n, err := fieldTypeName(s[dims:])
		if err != nil {
			return "", 0, err
		}
		return strings.ReplaceAll(s[:dims+n], "/", "."), dims + n, nil
	default:
		name, ok := primitiveNames[s[0]]
		if !ok || s[0] == 'V' {
			return "", 0, fmt.Errorf("unknown type %q", s[0])
		}
		return name, 1, nil
	}
}

// Signature renders "name(type, type)" for log lines. Constructors are named
// after the declaring class, as reflection reports them.
func (m Method) Signature(className string) string {
	name := m.Name
	if name == ConstructorName {
		name = className
	}
	params, err := m.ParamTypes()
	if err != nil {
		return name + m.Descriptor
	}
	return name + "(" + strings.Join(params, ", ") + ")"
}
