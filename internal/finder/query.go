package finder

import (
	"fmt"
	"strings"

	"github.com/zboralski/dexhook/internal/jvm"
)

// TypeSpec constrains one type slot: a wildcard, an exact class identity,
// or a type name compared as a string (for unresolved or obfuscated types).
type TypeSpec struct {
	class *jvm.Class
	name  string
	any   bool
}

// Any matches every type.
func Any() TypeSpec { return TypeSpec{any: true} }

// Type matches exactly c by identity; assignability is not considered.
func Type(c *jvm.Class) TypeSpec { return TypeSpec{class: c} }

// TypeName matches any type whose dotted name equals name.
func TypeName(name string) TypeSpec { return TypeSpec{name: name} }

// IsAny reports whether the slot is a wildcard.
func (t TypeSpec) IsAny() bool { return t.any }

func (t TypeSpec) matches(c *jvm.Class) bool {
	switch {
	case t.any:
		return true
	case t.class != nil:
		return c == t.class
	default:
		return c != nil && c.Name() == t.name
	}
}

func (t TypeSpec) String() string {
	switch {
	case t.any:
		return "*"
	case t.class != nil:
		return t.class.Name()
	default:
		return t.name
	}
}

func (t TypeSpec) key() string {
	switch {
	case t.any:
		return "*"
	case t.class != nil:
		return fmt.Sprintf("@%p", t.class)
	default:
		return "$" + t.name
	}
}

// Unbounded is the open upper bound for parameter counts and search depth.
const Unbounded = -1

// Query is an immutable set of member constraints. Build one with a Builder.
type Query struct {
	kind jvm.MemberKind

	name    string
	hasName bool

	typ     TypeSpec
	hasType bool

	params    []TypeSpec
	hasParams bool

	minParams int
	maxParams int
	hasCount  bool

	modifiers ModifierRules

	index    int
	hasIndex bool

	superclass bool
	depth      int
	exhaustive bool
}

// Kind returns the member variant the query resolves.
func (q Query) Kind() jvm.MemberKind { return q.kind }

// Name returns the name constraint, if any.
func (q Query) Name() (string, bool) { return q.name, q.hasName }

// Index returns the index selector, if any.
func (q Query) Index() (int, bool) { return q.index, q.hasIndex }

// Params returns a copy of the positional parameter constraints.
func (q Query) Params() []TypeSpec { return append([]TypeSpec(nil), q.params...) }

// matches runs the candidate tests in a fixed order, cheapest first.
func (q Query) matches(m jvm.Member) bool {
	if q.hasName && m.Name() != q.name {
		return false
	}

	var params []*jvm.Class
	if e, ok := m.(jvm.Executable); ok {
		params = e.ParameterTypes()
	}
	if q.hasCount {
		n := len(params)
		if n < q.minParams || (q.maxParams != Unbounded && n > q.maxParams) {
			return false
		}
	}
	if q.hasParams {
		if len(params) != len(q.params) {
			return false
		}
		for i, spec := range q.params {
			if !spec.matches(params[i]) {
				return false
			}
		}
	}

	if !q.modifiers.Matches(m) {
		return false
	}

	if q.hasType {
		switch x := m.(type) {
		case *jvm.Method:
			return q.typ.matches(x.ReturnType())
		case *jvm.Field:
			return q.typ.matches(x.Type())
		}
	}
	return true
}

// key is the canonical cache key of the full constraint set.
func (q Query) key() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d", q.kind)
	if q.hasName {
		fmt.Fprintf(&b, "|n=%q", q.name)
	}
	if q.hasType {
		b.WriteString("|t=" + q.typ.key())
	}
	if q.hasParams {
		b.WriteString("|p=")
		for _, p := range q.params {
			b.WriteString(p.key() + ",")
		}
	}
	if q.hasCount {
		fmt.Fprintf(&b, "|c=%d:%d", q.minParams, q.maxParams)
	}
	fmt.Fprintf(&b, "|m=%d", q.modifiers.flags)
	if q.hasIndex {
		fmt.Fprintf(&b, "|i=%d", q.index)
	}
	if q.superclass {
		fmt.Fprintf(&b, "|s=%d:%t", q.depth, q.exhaustive)
	}
	return b.String()
}

func (q Query) String() string {
	var parts []string
	if q.hasName {
		parts = append(parts, fmt.Sprintf("name:%q", q.name))
	}
	if q.hasParams {
		specs := make([]string, len(q.params))
		for i, p := range q.params {
			specs[i] = p.String()
		}
		parts = append(parts, "params:("+strings.Join(specs, ",")+")")
	}
	if q.hasCount {
		if q.maxParams == Unbounded {
			parts = append(parts, fmt.Sprintf("paramCount:[%d,+)", q.minParams))
		} else if q.minParams == q.maxParams {
			parts = append(parts, fmt.Sprintf("paramCount:%d", q.minParams))
		} else {
			parts = append(parts, fmt.Sprintf("paramCount:[%d,%d]", q.minParams, q.maxParams))
		}
	}
	if q.hasType {
		label := "returnType"
		if q.kind == jvm.KindField {
			label = "type"
		}
		parts = append(parts, label+":"+q.typ.String())
	}
	if !q.modifiers.Empty() {
		parts = append(parts, "modifiers:"+q.modifiers.String())
	}
	if q.hasIndex {
		parts = append(parts, fmt.Sprintf("index:%d", q.index))
	}
	if q.superclass {
		depth := "all"
		if q.depth != Unbounded {
			depth = fmt.Sprint(q.depth)
		}
		parts = append(parts, "superclass:"+depth)
	}
	return q.kind.String() + " {" + strings.Join(parts, " ") + "}"
}

// Builder declares a Query incrementally. Setters overwrite earlier values.
type Builder struct {
	q Query
}

// NewMethod starts a method query.
func NewMethod() *Builder { return &Builder{q: Query{kind: jvm.KindMethod, depth: Unbounded}} }

// NewConstructor starts a constructor query.
func NewConstructor() *Builder {
	return &Builder{q: Query{kind: jvm.KindConstructor, depth: Unbounded}}
}

// NewField starts a field query.
func NewField() *Builder { return &Builder{q: Query{kind: jvm.KindField, depth: Unbounded}} }

func (b *Builder) Name(name string) *Builder {
	b.q.name, b.q.hasName = name, true
	return b
}

// Param constrains the parameter list positionally; use Any() for slots
// that should not be checked.
func (b *Builder) Param(types ...TypeSpec) *Builder {
	b.q.params, b.q.hasParams = append([]TypeSpec(nil), types...), true
	return b
}

// EmptyParam requires a member without parameters.
func (b *Builder) EmptyParam() *Builder {
	return b.Param()
}

// ParamCount requires exactly n parameters.
func (b *Builder) ParamCount(n int) *Builder {
	return b.ParamCountRange(n, n)
}

// ParamCountRange requires between min and max parameters inclusive; max
// may be Unbounded.
func (b *Builder) ParamCountRange(min, max int) *Builder {
	b.q.minParams, b.q.maxParams, b.q.hasCount = min, max, true
	return b
}

// ReturnType constrains a method's return type.
func (b *Builder) ReturnType(t TypeSpec) *Builder {
	b.q.typ, b.q.hasType = t, true
	return b
}

// Type constrains a field's declared type.
func (b *Builder) Type(t TypeSpec) *Builder {
	return b.ReturnType(t)
}

func (b *Builder) Modifiers(r ModifierRules) *Builder {
	b.q.modifiers = r
	return b
}

// Index selects the i-th (0-based) structural match.
func (b *Builder) Index(i int) *Builder {
	b.q.index, b.q.hasIndex = i, true
	return b
}

// Superclass enables searching every ancestor level.
func (b *Builder) Superclass() *Builder {
	return b.SuperclassDepth(Unbounded)
}

// SuperclassDepth enables searching at most depth ancestor levels.
func (b *Builder) SuperclassDepth(depth int) *Builder {
	b.q.superclass, b.q.depth = true, depth
	return b
}

// AllLevels collects matches from every searched level instead of stopping
// at the first level that yields one.
func (b *Builder) AllLevels() *Builder {
	b.q.exhaustive = true
	return b
}

// Build returns the immutable query.
func (b *Builder) Build() Query {
	q := b.q
	q.params = append([]TypeSpec(nil), b.q.params...)
	return q
}
