package main

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/zboralski/dexhook/internal/jvm"
)

// classFilter matches dotted class names against a glob. Dots are treated
// as path separators so "com.example.*" matches one package level and
// "com.example.**" matches every subpackage.
type classFilter struct {
	pattern string
}

func newClassFilter(pattern string) (*classFilter, error) {
	if pattern == "" {
		pattern = "**"
	}
	p := jvm.InternalName(pattern)
	if !doublestar.ValidatePattern(p) {
		return nil, fmt.Errorf("invalid class pattern %q", pattern)
	}
	return &classFilter{pattern: p}, nil
}

func (f *classFilter) Match(name string) bool {
	internal := jvm.InternalName(name)
	if ok, _ := doublestar.Match(f.pattern, internal); ok {
		return true
	}
	// A pattern without a package matches simple names anywhere.
	if !strings.Contains(f.pattern, "/") {
		simple := internal[strings.LastIndex(internal, "/")+1:]
		ok, _ := doublestar.Match(f.pattern, simple)
		return ok
	}
	return false
}

func (f *classFilter) Select(classes []*jvm.Class) []*jvm.Class {
	var out []*jvm.Class
	for _, c := range classes {
		if f.Match(c.Name()) {
			out = append(out, c)
		}
	}
	return out
}
