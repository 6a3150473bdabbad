package finder

import (
	"strings"

	"github.com/zboralski/dexhook/internal/jvm"
)

// ModifierRules is a conjunctive predicate over a modifier bitset: every
// declared flag must be present. The zero value declares nothing and
// matches everything. Values are immutable; each builder method returns a
// copy, so one set of rules can be shared across queries and goroutines.
type ModifierRules struct {
	flags jvm.Modifier
}

// Rules returns rules requiring all of flags.
func Rules(flags ...jvm.Modifier) ModifierRules {
	var r ModifierRules
	for _, f := range flags {
		r.flags |= f
	}
	return r
}

func (r ModifierRules) with(f jvm.Modifier) ModifierRules {
	r.flags |= f
	return r
}

func (r ModifierRules) IsPublic() ModifierRules       { return r.with(jvm.Public) }
func (r ModifierRules) IsPrivate() ModifierRules      { return r.with(jvm.Private) }
func (r ModifierRules) IsProtected() ModifierRules    { return r.with(jvm.Protected) }
func (r ModifierRules) IsStatic() ModifierRules       { return r.with(jvm.Static) }
func (r ModifierRules) IsFinal() ModifierRules        { return r.with(jvm.Final) }
func (r ModifierRules) IsSynchronized() ModifierRules { return r.with(jvm.Synchronized) }
func (r ModifierRules) IsVolatile() ModifierRules     { return r.with(jvm.Volatile) }
func (r ModifierRules) IsTransient() ModifierRules    { return r.with(jvm.Transient) }
func (r ModifierRules) IsNative() ModifierRules       { return r.with(jvm.Native) }
func (r ModifierRules) IsInterface() ModifierRules    { return r.with(jvm.Interface) }
func (r ModifierRules) IsAbstract() ModifierRules     { return r.with(jvm.Abstract) }
func (r ModifierRules) IsStrict() ModifierRules       { return r.with(jvm.Strict) }

// Empty reports whether no flag is declared.
func (r ModifierRules) Empty() bool { return r.flags == 0 }

// Flags returns the required bitset.
func (r ModifierRules) Flags() jvm.Modifier { return r.flags }

// Check evaluates the rules against a class or member. Any other value
// fails closed with a jvm.InvalidTargetError.
func (r ModifierRules) Check(v any) (bool, error) {
	t, err := jvm.TargetOf(v)
	if err != nil {
		return false, err
	}
	return t.Modifiers().Has(r.flags), nil
}

// Matches is Check without the error.
func (r ModifierRules) Matches(v any) bool {
	ok, _ := r.Check(v)
	return ok
}

func (r ModifierRules) String() string {
	var parts []string
	for _, f := range []jvm.Modifier{
		jvm.Public, jvm.Private, jvm.Protected, jvm.Static, jvm.Final, jvm.Synchronized,
		jvm.Volatile, jvm.Transient, jvm.Native, jvm.Interface, jvm.Abstract, jvm.Strict,
	} {
		if r.flags&f != 0 {
			name := f.String()
			if f == jvm.Strict {
				name = "strict"
			}
			parts = append(parts, "<"+name+">")
		}
	}
	return "[" + strings.Join(parts, " ") + "]"
}
