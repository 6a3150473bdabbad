package plan

import (
	"context"
	"fmt"

	"github.com/zboralski/dexhook/internal/bridge"
	"github.com/zboralski/dexhook/internal/finder"
	"github.com/zboralski/dexhook/internal/hook"
	"github.com/zboralski/dexhook/internal/jvm"
	"github.com/zboralski/dexhook/internal/script"
)

// Build converts q into a query of the given kind.
func (q *QuerySpec) Build(kind jvm.MemberKind) (finder.Query, error) {
	var b *finder.Builder
	switch kind {
	case jvm.KindMethod:
		b = finder.NewMethod()
	case jvm.KindConstructor:
		b = finder.NewConstructor()
	default:
		b = finder.NewField()
	}
	if q == nil {
		if kind == jvm.KindConstructor {
			b.EmptyParam()
		}
		return b.Build(), nil
	}

	if q.Name != "" {
		b.Name(q.Name)
	}
	switch {
	case len(q.Params) > 0:
		b.Param(typeSpecs(q.Params)...)
	case q.EmptyParam:
		b.EmptyParam()
	}
	if q.ParamCount != nil {
		b.ParamCount(*q.ParamCount)
	}
	if q.ReturnType != "" {
		b.ReturnType(typeSpec(q.ReturnType))
	}
	if len(q.Modifiers) > 0 {
		var flags []jvm.Modifier
		for _, name := range q.Modifiers {
			f, ok := jvm.ParseModifier(name)
			if !ok {
				return finder.Query{}, fmt.Errorf("unknown modifier %q", name)
			}
			flags = append(flags, f)
		}
		b.Modifiers(finder.Rules(flags...))
	}
	if q.Index != nil {
		b.Index(*q.Index)
	}
	if q.Depth != nil {
		b.SuperclassDepth(*q.Depth)
	} else if q.Superclass {
		b.Superclass()
	}
	if q.AllLevels {
		b.AllLevels()
	}
	return b.Build(), nil
}

func typeSpec(name string) finder.TypeSpec {
	if name == "*" {
		return finder.Any()
	}
	return finder.TypeName(jvm.DecodeDescriptor(name))
}

func typeSpecs(names []string) []finder.TypeSpec {
	out := make([]finder.TypeSpec, len(names))
	for i, n := range names {
		out[i] = typeSpec(n)
	}
	return out
}

// Apply declares every target on reg and starts the sessions committed.
// All scripts are compiled first; nothing is declared if one fails.
func (p *Plan) Apply(reg *hook.Registry, loader *jvm.Loader) ([]*hook.CreatorResult, error) {
	type entry struct {
		member  Member
		query   finder.Query
		hasQ    bool
		before  *script.Script
		after   *script.Script
		replace *script.Script
		value   any
	}
	prepared := make([][]entry, len(p.Targets))

	for i, t := range p.Targets {
		for j, m := range t.Members {
			e := entry{member: m}
			var err error
			switch {
			case m.Method != nil:
				e.query, err = m.Method.Build(jvm.KindMethod)
				e.hasQ = true
			case m.Constructor != nil:
				e.query, err = m.Constructor.Build(jvm.KindConstructor)
				e.hasQ = true
			}
			if err == nil && m.HasReplaceTo() {
				e.value, err = m.ReplaceValue()
			}
			if err != nil {
				return nil, fmt.Errorf("target %s member %d: %w", t.Class, j, err)
			}
			name := fmt.Sprintf("%s#%d", t.Class, j)
			if e.before, err = compile(name+".before", m.Before); err != nil {
				return nil, err
			}
			if e.after, err = compile(name+".after", m.After); err != nil {
				return nil, err
			}
			if e.replace, err = compile(name+".replace", m.Replace); err != nil {
				return nil, err
			}
			prepared[i] = append(prepared[i], e)
		}
	}

	var sessions []*hook.CreatorResult
	for i, t := range p.Targets {
		c := reg.ClassName(t.Class, loader)
		for _, e := range prepared[i] {
			e := e
			priority := hook.PriorityDefault
			if e.member.Priority != nil {
				priority = *e.member.Priority
			}
			c.InjectPriority(priority, e.member.Tag, func(m *hook.MemberHook) {
				switch {
				case e.hasQ:
					m.Query(e.query)
				case e.member.All:
					m.AllMembers()
				}
				if e.before != nil {
					m.BeforeHook(e.before.Hook())
				}
				if e.after != nil {
					m.AfterHook(e.after.Hook())
				}
				switch {
				case e.replace != nil:
					m.ReplaceAny(e.replace.Replace())
				case e.member.HasReplaceTo():
					v := e.value
					m.ReplaceAny(func(param *hook.Param) (any, error) {
						return script.ReturnValue(param.Member(), v), nil
					})
				case e.member.Intercept:
					m.Intercept()
				}
			})
		}

		s, err := c.Hook()
		if err != nil {
			return sessions, fmt.Errorf("target %s: %w", t.Class, err)
		}
		byClassFound := t.ByClassFound
		s.Apply(func(r *hook.CreatorResult) {
			if byClassFound {
				r.IgnoredHookClassNotFoundFailure()
			}
		})
		sessions = append(sessions, s)
	}
	return sessions, nil
}

func compile(name, src string) (*script.Script, error) {
	if src == "" {
		return nil, nil
	}
	return script.Compile(name, src)
}

// Implementations installs the JavaScript bodies of the plan on rt.
func (p *Plan) Implementations(rt *bridge.Runtime, f *finder.Finder, loader *jvm.Loader) error {
	for i, im := range p.Implement {
		m, err := lookup(f, loader, im.Class, im.Method, im.Params)
		if err != nil {
			return fmt.Errorf("implement %d: %w", i, err)
		}
		s, err := script.Compile(fmt.Sprintf("%s.%s", im.Class, im.Method), im.Body)
		if err != nil {
			return fmt.Errorf("implement %d: %w", i, err)
		}
		rt.Implement(m, s.Body())
	}
	return nil
}

// Call is the outcome of one invocation.
type Call struct {
	Invocation Invocation
	Member     jvm.Member
	Result     any
	Err        error
}

// Run performs the plan invocations in order. A failing call is recorded
// in its Call and does not stop later ones; only cancellation does.
func (p *Plan) Run(ctx context.Context, rt *bridge.Runtime, f *finder.Finder, loader *jvm.Loader) ([]Call, error) {
	calls := make([]Call, 0, len(p.Invoke))
	for _, inv := range p.Invoke {
		if err := ctx.Err(); err != nil {
			return calls, err
		}
		call := Call{Invocation: inv}
		m, err := lookup(f, loader, inv.Class, inv.Method, inv.Params)
		if err != nil {
			call.Err = err
			calls = append(calls, call)
			continue
		}
		call.Member = m
		call.Result, call.Err = rt.Invoke(m, nil, coerceArgs(m, inv.Args)...)
		calls = append(calls, call)
	}
	return calls, nil
}

// lookup finds a method, or a constructor when name is "<init>".
func lookup(f *finder.Finder, loader *jvm.Loader, class, name string, params []string) (jvm.Member, error) {
	var b *finder.Builder
	if name == "<init>" {
		b = finder.NewConstructor()
	} else {
		b = finder.NewMethod().Name(name)
	}
	if params != nil {
		b.Param(typeSpecs(params)...)
	}
	return f.FindFirst(jvm.NewRef(class, loader), b.Build())
}

func coerceArgs(m jvm.Member, args []any) []any {
	e, ok := m.(jvm.Executable)
	if !ok {
		return args
	}
	types := e.ParameterTypes()
	out := make([]any, len(args))
	for i, a := range args {
		if i < len(types) {
			out[i] = script.Coerce(a, types[i])
		} else {
			out[i] = a
		}
	}
	return out
}
