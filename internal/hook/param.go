package hook

import (
	"github.com/zboralski/dexhook/internal/bridge"
	"github.com/zboralski/dexhook/internal/finder"
	"github.com/zboralski/dexhook/internal/jvm"
)

// Param is the context handed to a callback body. Each intercepted call
// gets its own Param, shared by the before and after body of one entry.
type Param struct {
	frame *bridge.Frame
	entry *MemberHook
	class *jvm.Class

	done bool
}

func paramKey(m *MemberHook) string { return "hook.param." + m.id.String() }

// paramFor returns the Param of entry m for the call behind f.
func paramFor(m *MemberHook, class *jvm.Class, f *bridge.Frame) *Param {
	key := paramKey(m)
	if v, ok := f.Attached(key); ok {
		return v.(*Param)
	}
	p := &Param{frame: f, entry: m, class: class}
	f.Attach(key, p)
	return p
}

// Member returns the intercepted member.
func (p *Param) Member() jvm.Member { return p.frame.Member() }

// Class returns the hooked class.
func (p *Param) Class() *jvm.Class { return p.class }

// Tag returns the tag of the entry that owns the callback.
func (p *Param) Tag() string { return p.entry.tag }

// Instance returns the receiver, nil for static members.
func (p *Param) Instance() any { return p.frame.This }

// Args returns the call arguments. The slice is live; prefer SetArg.
func (p *Param) Args() []any { return p.frame.Args }

// Arg returns argument i or nil when out of range.
func (p *Param) Arg(i int) any {
	if i < 0 || i >= len(p.frame.Args) {
		return nil
	}
	return p.frame.Args[i]
}

// SetArg rewrites argument i. It has effect only before the original
// member runs.
func (p *Param) SetArg(i int, v any) bool {
	if i < 0 || i >= len(p.frame.Args) {
		return false
	}
	p.frame.Args[i] = v
	return true
}

// Result returns the current return value.
func (p *Param) Result() any { return p.frame.Result() }

// SetResult sets the return value. From a before body this skips the
// original member.
func (p *Param) SetResult(v any) { p.frame.SetResult(v) }

// Err returns the error the call ends with.
func (p *Param) Err() error { return p.frame.Err() }

// SetErr makes the call end with err. From a before body this skips the
// original member.
func (p *Param) SetErr(err error) { p.frame.SetErr(err) }

// Done reports whether a body of this entry completed for this call.
func (p *Param) Done() bool { return p.done }

// Method looks up methods on the hooked class.
func (p *Param) Method(configure func(b *finder.Builder)) *finder.Result {
	return p.lookup(finder.NewMethod(), configure)
}

// Constructor looks up constructors on the hooked class. Without a
// configure function it selects the no-argument constructor.
func (p *Param) Constructor(configure func(b *finder.Builder)) *finder.Result {
	b := finder.NewConstructor()
	if configure == nil {
		b.EmptyParam()
	}
	return p.lookup(b, configure)
}

// Field looks up fields on the hooked class.
func (p *Param) Field(configure func(b *finder.Builder)) *finder.Result {
	return p.lookup(finder.NewField(), configure)
}

func (p *Param) lookup(b *finder.Builder, configure func(b *finder.Builder)) *finder.Result {
	if configure != nil {
		configure(b)
	}
	return p.entry.finder().FindIn(p.class, b.Build())
}
