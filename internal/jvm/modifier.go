package jvm

import "strings"

// Modifier is the declared modifier bitset of a class or member. The values
// match java.lang.reflect.Modifier and the DEX access_flags encoding.
type Modifier uint32

const (
	Public       Modifier = 0x0001
	Private      Modifier = 0x0002
	Protected    Modifier = 0x0004
	Static       Modifier = 0x0008
	Final        Modifier = 0x0010
	Synchronized Modifier = 0x0020
	Volatile     Modifier = 0x0040
	Transient    Modifier = 0x0080
	Native       Modifier = 0x0100
	Interface    Modifier = 0x0200
	Abstract     Modifier = 0x0400
	Strict       Modifier = 0x0800

	// DEX-only flags.
	Synthetic            Modifier = 0x1000
	Annotation           Modifier = 0x2000
	Enum                 Modifier = 0x4000
	ConstructorFlag      Modifier = 0x10000
	DeclaredSynchronized Modifier = 0x20000
)

// MethodFlags maps DEX method access flags onto reflective modifiers.
// DeclaredSynchronized implies Synchronized and the DEX-only bits above
// 0xffff are dropped.
func MethodFlags(m Modifier) Modifier {
	if m&DeclaredSynchronized != 0 {
		m |= Synchronized
	}
	return m & 0xffff
}

// Bridge and Varargs share bits with Volatile and Transient on methods.
const (
	Bridge  = Volatile
	Varargs = Transient
)

var modifierNames = []struct {
	flag Modifier
	name string
}{
	{Public, "public"},
	{Protected, "protected"},
	{Private, "private"},
	{Abstract, "abstract"},
	{Static, "static"},
	{Final, "final"},
	{Transient, "transient"},
	{Volatile, "volatile"},
	{Synchronized, "synchronized"},
	{Native, "native"},
	{Strict, "strictfp"},
	{Interface, "interface"},
}

// Has reports whether every flag in f is set.
func (m Modifier) Has(f Modifier) bool {
	return m&f == f
}

// String renders the modifiers in canonical Java source order.
func (m Modifier) String() string {
	var parts []string
	for _, n := range modifierNames {
		if m&n.flag != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, " ")
}

// ParseModifier maps a Java keyword to its flag.
func ParseModifier(name string) (Modifier, bool) {
	if name == "strict" {
		return Strict, true
	}
	for _, n := range modifierNames {
		if n.name == name {
			return n.flag, true
		}
	}
	return 0, false
}
