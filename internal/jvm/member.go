package jvm

import "strings"

// MemberKind distinguishes the three reflective member variants.
type MemberKind int

const (
	KindMethod MemberKind = iota
	KindConstructor
	KindField
)

func (k MemberKind) String() string {
	switch k {
	case KindMethod:
		return "method"
	case KindConstructor:
		return "constructor"
	case KindField:
		return "field"
	}
	return "unknown"
}

// Member is a method, constructor or field of a loaded class.
type Member interface {
	Target
	Name() string
	DeclaringClass() *Class
	Kind() MemberKind
	String() string
}

// Executable is a member with a parameter list.
type Executable interface {
	Member
	ParameterTypes() []*Class
}

type memberBase struct {
	name      string
	modifiers Modifier
	class     *Class
}

func (m *memberBase) Name() string            { return m.name }
func (m *memberBase) Modifiers() Modifier     { return m.modifiers }
func (m *memberBase) DeclaringClass() *Class { return m.class }

// Method is a declared method.
type Method struct {
	memberBase
	ret    *Class
	params []*Class
}

func (m *Method) Kind() MemberKind          { return KindMethod }
func (m *Method) ReturnType() *Class        { return m.ret }
func (m *Method) ParameterTypes() []*Class { return m.params }

func (m *Method) String() string {
	var b strings.Builder
	writeMods(&b, m.modifiers)
	b.WriteString(typeName(m.ret))
	b.WriteByte(' ')
	b.WriteString(m.class.name)
	b.WriteByte('.')
	b.WriteString(m.name)
	writeParams(&b, m.params)
	return b.String()
}

// Constructor is a declared constructor.
type Constructor struct {
	memberBase
	params []*Class
}

func (k *Constructor) Kind() MemberKind          { return KindConstructor }
func (k *Constructor) ParameterTypes() []*Class { return k.params }

func (k *Constructor) String() string {
	var b strings.Builder
	writeMods(&b, k.modifiers)
	b.WriteString(k.class.name)
	writeParams(&b, k.params)
	return b.String()
}

// Field is a declared field.
type Field struct {
	memberBase
	typ *Class
}

func (f *Field) Kind() MemberKind { return KindField }
func (f *Field) Type() *Class     { return f.typ }

func (f *Field) String() string {
	var b strings.Builder
	writeMods(&b, f.modifiers)
	b.WriteString(typeName(f.typ))
	b.WriteByte(' ')
	b.WriteString(f.class.name)
	b.WriteByte('.')
	b.WriteString(f.name)
	return b.String()
}

func writeMods(b *strings.Builder, m Modifier) {
	if s := (m &^ Interface).String(); s != "" {
		b.WriteString(s)
		b.WriteByte(' ')
	}
}

func writeParams(b *strings.Builder, params []*Class) {
	b.WriteByte('(')
	for i, p := range params {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(typeName(p))
	}
	b.WriteByte(')')
}

func typeName(c *Class) string {
	if c == nil {
		return "?"
	}
	return c.name
}
