// Package jvm models the reflective member tables of managed classes:
// classes, methods, constructors and fields together with their modifier
// bitsets and type identities.
package jvm

import (
	"strings"
)

// Well-known foundational class names.
const (
	ObjectName      = "java.lang.Object"
	ClassLoaderName = "java.lang.ClassLoader"
	ClassName       = "java.lang.Class"
	MethodName      = "java.lang.reflect.Method"
	FieldName       = "java.lang.reflect.Field"
	ConstructorName = "java.lang.reflect.Constructor"
	MemberName      = "java.lang.reflect.Member"
	StringName      = "java.lang.String"
)

// Class is a loaded type and its declared member table. Member order is the
// declaration order and is never re-sorted.
type Class struct {
	name       string
	modifiers  Modifier
	super      *Class
	superName  string
	interfaces []string
	primitive  bool
	defined    bool

	methods      []*Method
	constructors []*Constructor
	fields       []*Field
}

// NewClass creates a defined class with the given superclass (may be nil).
func NewClass(name string, mods Modifier, super *Class) *Class {
	c := &Class{name: name, modifiers: mods, super: super, defined: true}
	if super != nil {
		c.superName = super.name
	}
	return c
}

// Name returns the binary name in dotted form, e.g. "com.example.Foo".
func (c *Class) Name() string { return c.name }

// SimpleName returns the name without its package.
func (c *Class) SimpleName() string {
	if i := strings.LastIndexByte(c.name, '.'); i >= 0 {
		return c.name[i+1:]
	}
	return c.name
}

// Modifiers returns the declared class modifiers.
func (c *Class) Modifiers() Modifier { return c.modifiers }

// Superclass returns the linked superclass or nil.
func (c *Class) Superclass() *Class { return c.super }

// SuperclassName returns the declared superclass name, linked or not.
func (c *Class) SuperclassName() string { return c.superName }

// Interfaces returns the names of directly implemented interfaces.
func (c *Class) Interfaces() []string { return c.interfaces }

// IsPrimitive reports whether c is a primitive type such as int.
func (c *Class) IsPrimitive() bool { return c.primitive }

// IsDefined reports whether the class has a member table. Types referenced
// only by signature are undefined placeholders.
func (c *Class) IsDefined() bool { return c.defined }

// Methods returns the declared methods in declaration order.
func (c *Class) Methods() []*Method { return c.methods }

// Constructors returns the declared constructors in declaration order.
func (c *Class) Constructors() []*Constructor { return c.constructors }

// Fields returns the declared fields in declaration order.
func (c *Class) Fields() []*Field { return c.fields }

// Ancestors returns the superclass chain from most to least derived.
func (c *Class) Ancestors() []*Class {
	var out []*Class
	for s := c.super; s != nil; s = s.super {
		out = append(out, s)
	}
	return out
}

// SetInterfaces records the directly implemented interfaces.
func (c *Class) SetInterfaces(names ...string) {
	c.interfaces = names
}

// AddMethod declares a method on c. mods may carry raw DEX flags.
func (c *Class) AddMethod(name string, mods Modifier, ret *Class, params ...*Class) *Method {
	m := &Method{memberBase: memberBase{name: name, modifiers: MethodFlags(mods), class: c}, ret: ret, params: params}
	c.methods = append(c.methods, m)
	return m
}

// AddConstructor declares a constructor on c.
func (c *Class) AddConstructor(mods Modifier, params ...*Class) *Constructor {
	k := &Constructor{memberBase: memberBase{name: "<init>", modifiers: MethodFlags(mods), class: c}, params: params}
	c.constructors = append(c.constructors, k)
	return k
}

// AddField declares a field on c.
func (c *Class) AddField(name string, mods Modifier, typ *Class) *Field {
	f := &Field{memberBase: memberBase{name: name, modifiers: mods, class: c}, typ: typ}
	c.fields = append(c.fields, f)
	return f
}

func (c *Class) String() string {
	if c.primitive {
		return c.name
	}
	if c.modifiers.Has(Interface) {
		return "interface " + c.name
	}
	return "class " + c.name
}

// Primitive types. They are shared by every Loader.
var (
	Void    = primitive("void")
	Boolean = primitive("boolean")
	Byte    = primitive("byte")
	Char    = primitive("char")
	Short   = primitive("short")
	Int     = primitive("int")
	Long    = primitive("long")
	Float   = primitive("float")
	Double  = primitive("double")
)

var primitives = map[string]*Class{}

func primitive(name string) *Class {
	c := &Class{name: name, modifiers: Public | Final | Abstract, primitive: true, defined: true}
	primitives[name] = c
	return c
}

// PrimitiveByName returns the primitive type with the given name.
func PrimitiveByName(name string) (*Class, bool) {
	c, ok := primitives[name]
	return c, ok
}
