package jvm

import "strings"

// DecodeDescriptor converts a type descriptor into a dotted source name,
// e.g. "Lfoo/Bar;" -> "foo.Bar" and "[[I" -> "int[][]". Malformed input is
// returned unchanged.
func DecodeDescriptor(d string) string {
	dims := 0
	for dims < len(d) && d[dims] == '[' {
		dims++
	}
	if dims == len(d) {
		return d
	}

	var base string
	switch c := d[dims]; c {
	case 'L':
		if !strings.HasSuffix(d, ";") {
			return d
		}
		base = strings.ReplaceAll(d[dims+1:len(d)-1], "/", ".")
	case 'B':
		base = "byte"
	case 'C':
		base = "char"
	case 'D':
		base = "double"
	case 'F':
		base = "float"
	case 'I':
		base = "int"
	case 'J':
		base = "long"
	case 'S':
		base = "short"
	case 'Z':
		base = "boolean"
	case 'V':
		base = "void"
	default:
		return d
	}
	if c := d[dims]; c != 'L' && len(d) != dims+1 {
		return d
	}

	return base + strings.Repeat("[]", dims)
}

// InternalName converts a dotted name to slash form ("foo.Bar" -> "foo/Bar").
func InternalName(name string) string {
	return strings.ReplaceAll(name, ".", "/")
}
