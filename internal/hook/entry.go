package hook

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/zboralski/dexhook/internal/bridge"
	"github.com/zboralski/dexhook/internal/finder"
	"github.com/zboralski/dexhook/internal/jvm"
	"github.com/zboralski/dexhook/internal/log"
)

// State is the lifecycle position of a MemberHook.
type State int

const (
	Declared State = iota
	MembersResolved
	Installing
	Installed
	ResolutionFailed
)

func (s State) String() string {
	switch s {
	case Declared:
		return "declared"
	case MembersResolved:
		return "members-resolved"
	case Installing:
		return "installing"
	case Installed:
		return "installed"
	case ResolutionFailed:
		return "resolution-failed"
	}
	return "unknown"
}

type selection int

const (
	selectNone selection = iota
	selectQuery
	selectMembers
	selectAll
)

// MemberHook declares which members of the session class to intercept and
// how. Selections are exclusive: the last of Query, Method, Constructor,
// Members and AllMembers wins. Interceptions follow the same rule.
type MemberHook struct {
	creator  *Creator
	id       uuid.UUID
	tag      string
	priority int

	mu        sync.Mutex
	state     State
	sel       selection
	query     finder.Query
	explicit  []jvm.Member
	selErr    error
	intercept Intercept
	members   []jvm.Member
	handles   []*bridge.Handle

	result *Result
}

func newMemberHook(c *Creator, priority int, tag string) *MemberHook {
	if tag == "" {
		tag = DefaultTag
	}
	m := &MemberHook{creator: c, id: uuid.New(), tag: tag, priority: priority}
	m.result = &Result{entry: m}
	return m
}

// ID returns the callback identity submitted to the primitive.
func (m *MemberHook) ID() uuid.UUID { return m.id }

// Tag returns the entry tag.
func (m *MemberHook) Tag() string { return m.tag }

// Priority returns the entry priority.
func (m *MemberHook) Priority() int { return m.priority }

// State returns the current lifecycle state.
func (m *MemberHook) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// ResolvedMembers returns the members resolved by the last install pass.
func (m *MemberHook) ResolvedMembers() []jvm.Member {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]jvm.Member(nil), m.members...)
}

// Interception returns the configured interception, nil if none.
func (m *MemberHook) Interception() Intercept {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.intercept
}

func (m *MemberHook) finder() *finder.Finder { return m.creator.reg.finder }

func (m *MemberHook) log() *log.Logger { return m.creator.reg.log() }

func (m *MemberHook) choose(sel selection) {
	if m.sel != selectNone {
		m.log().Warn("member selection replaced",
			log.Class(m.creator.ref.Name()),
			log.Tag(m.tag),
		)
	}
	m.sel = sel
	m.selErr = nil
	m.explicit = nil
	if m.state == Declared {
		m.state = MembersResolved
	}
}

// Query selects the members matching q on the session class.
func (m *MemberHook) Query(q finder.Query) *MemberHook {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.choose(selectQuery)
	m.query = q
	return m
}

// Method selects methods declared through configure.
func (m *MemberHook) Method(configure func(b *finder.Builder)) *MemberHook {
	b := finder.NewMethod()
	if configure != nil {
		configure(b)
	}
	return m.Query(b.Build())
}

// Constructor selects constructors declared through configure. Without a
// configure function it selects the no-argument constructor.
func (m *MemberHook) Constructor(configure func(b *finder.Builder)) *MemberHook {
	b := finder.NewConstructor()
	if configure == nil {
		b.EmptyParam()
	} else {
		configure(b)
	}
	return m.Query(b.Build())
}

// Members selects an explicit member list. nil members are dropped; an
// empty list is reported as a no-such-member failure at install time.
func (m *MemberHook) Members(members ...jvm.Member) *MemberHook {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.choose(selectMembers)
	for _, x := range members {
		if x != nil {
			m.explicit = append(m.explicit, x)
		}
	}
	if len(m.explicit) == 0 {
		m.selErr = fmt.Errorf("%w [%s]", ErrEmptyMembers, m.tag)
	}
	return m
}

// AllMembers selects every constructor then every method of the class.
func (m *MemberHook) AllMembers() *MemberHook {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.choose(selectAll)
	return m
}

// Set replaces the interception.
func (m *MemberHook) Set(i Intercept) *MemberHook {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.intercept = i
	return m
}

// BeforeHook runs fn ahead of the member. It discards a replacement.
func (m *MemberHook) BeforeHook(fn HookFunc) *MemberHook {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.intercept = withBefore(m.intercept, fn)
	return m
}

// AfterHook runs fn after the member returned. It discards a replacement.
func (m *MemberHook) AfterHook(fn HookFunc) *MemberHook {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.intercept = withAfter(m.intercept, fn)
	return m
}

// ReplaceAny runs fn instead of the member and returns its value. It
// discards before and after bodies.
func (m *MemberHook) ReplaceAny(fn ReplaceFunc) *MemberHook {
	return m.Set(Replace{Body: fn})
}

// ReplaceUnit runs fn instead of the member and returns nil.
func (m *MemberHook) ReplaceUnit(fn HookFunc) *MemberHook {
	return m.ReplaceAny(func(p *Param) (any, error) { return nil, fn(p) })
}

// ReplaceTo makes the member return v.
func (m *MemberHook) ReplaceTo(v any) *MemberHook {
	return m.ReplaceAny(func(*Param) (any, error) { return v, nil })
}

func (m *MemberHook) ReplaceToTrue() *MemberHook  { return m.ReplaceTo(true) }
func (m *MemberHook) ReplaceToFalse() *MemberHook { return m.ReplaceTo(false) }

// Intercept makes the member do nothing and return nil.
func (m *MemberHook) Intercept() *MemberHook { return m.ReplaceTo(nil) }

// Result returns the handle used to register failure channels and remove
// the entry.
func (m *MemberHook) Result() *Result { return m.result }

func (m *MemberHook) String() string {
	m.mu.Lock()
	members := make([]string, len(m.members))
	for i, x := range m.members {
		members[i] = x.String()
	}
	m.mu.Unlock()
	return fmt.Sprintf("[tag] %s [priority] %d [class] %s [members] [%s]",
		m.tag, m.priority, m.creator.ref, strings.Join(members, ", "))
}

func (m *MemberHook) resolve(class *jvm.Class) ([]jvm.Member, error) {
	switch m.sel {
	case selectQuery:
		r := m.finder().FindIn(class, m.query)
		if err := r.Err(); err != nil {
			return nil, err
		}
		return r.Members(), nil
	case selectMembers:
		if m.selErr != nil {
			return nil, m.selErr
		}
		return append([]jvm.Member(nil), m.explicit...), nil
	case selectAll:
		var out []jvm.Member
		for _, k := range class.Constructors() {
			out = append(out, k)
		}
		for _, x := range class.Methods() {
			out = append(out, x)
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("%w: %s declares no constructor or method [%s]",
				finder.ErrNoSuchMember, class.Name(), m.tag)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w by %s [%s]", ErrNoSelection, class.Name(), m.tag)
}

// install runs one install pass for this entry. Channel callbacks are
// dispatched after the entry lock is released.
func (m *MemberHook) install(class *jvm.Class) {
	type note struct {
		channel string
		fn      func()
	}
	var notify []note
	defer func() {
		for _, n := range notify {
			m.creator.reg.dispatch(n.channel, m.tag, n.fn)
		}
	}()

	r := m.result
	if !gate(r.condition()) {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == ResolutionFailed {
		return
	}

	members, err := m.resolve(class)
	if err != nil {
		m.state = ResolutionFailed
		notify = append(notify, note{EventNoSuchMember, func() { r.noSuchMember(class, err) }})
		return
	}
	m.members = members
	m.state = Installing

	cb := m.callback(class)
	for _, member := range members {
		member := member
		out := m.creator.reg.installer.Install(member, cb)
		switch out.Status {
		case bridge.Installed:
			m.handles = append(m.handles, out.Handle)
			m.log().HookInstall(class.Name(), member.String(), m.tag, m.priority)
			m.creator.reg.emit(EventInstalled, member.String(), m.tag)
			notify = append(notify, note{EventInstalled, func() { r.hooked(member) }})
		case bridge.AlreadyInstalled:
			m.creator.reg.emit(EventAlreadyInstalled, member.String(), m.tag)
			notify = append(notify, note{EventAlreadyInstalled, func() { r.alreadyHooked(member) }})
		default:
			ierr := &InstallError{Class: class.Name(), Tag: m.tag, Member: member, Err: out.Err}
			notify = append(notify, note{EventInstallFailed, func() { r.installFailure(class, member, ierr) }})
		}
	}

	if len(m.handles) > 0 {
		m.state = Installed
	} else {
		m.state = MembersResolved
	}
}

// classMissing marks the entry unresolvable after its class failed to load.
func (m *MemberHook) classMissing() {
	if !gate(m.result.condition()) {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = ResolutionFailed
}

func (m *MemberHook) callback(class *jvm.Class) bridge.Callback {
	cb := bridge.Callback{ID: m.id, Priority: m.priority}
	if rep, ok := m.intercept.(Replace); ok {
		cb.Mode = bridge.ModeReplace
		cb.Replace = func(f *bridge.Frame) (any, error) {
			return m.replace(class, f, rep.Body), nil
		}
		return cb
	}

	before, after := hooks(m.intercept)
	if before != nil {
		cb.Before = func(f *bridge.Frame) { m.conduct(class, f, "before", before) }
	}
	if after != nil {
		cb.After = func(f *bridge.Frame) { m.conduct(class, f, "after", after) }
	}
	return cb
}

func (m *MemberHook) conduct(class *jvm.Class, f *bridge.Frame, phase string, body HookFunc) {
	p := paramFor(m, class, f)
	panicked, err := protect(func() error { return body(p) })
	if err != nil {
		m.result.conductFailure(class, p, &CallbackError{
			Phase: phase, Tag: m.tag, Member: f.Member(), Err: err, Panic: panicked,
		})
		return
	}
	p.done = true
	m.debugDone(phase, f.Member())
}

// replace runs a replacement body. A failing body is routed to the
// conduct channels and the call returns nil.
func (m *MemberHook) replace(class *jvm.Class, f *bridge.Frame, body ReplaceFunc) any {
	if body == nil {
		return nil
	}
	p := paramFor(m, class, f)
	var v any
	panicked, err := protect(func() error {
		var err error
		v, err = body(p)
		return err
	})
	if err != nil {
		m.result.conductFailure(class, p, &CallbackError{
			Phase: "replace", Tag: m.tag, Member: f.Member(), Err: err, Panic: panicked,
		})
		return nil
	}
	p.done = true
	m.debugDone("replace", f.Member())
	return v
}

func (m *MemberHook) debugDone(phase string, member jvm.Member) {
	if !Current().Debug {
		return
	}
	m.log().Info(phase+" hook done",
		log.Member(member.String()),
		log.Tag(m.tag),
	)
}

// remove releases every held handle in reverse install order.
func (m *MemberHook) remove() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.handles) == 0 {
		return false
	}
	for i := len(m.handles) - 1; i >= 0; i-- {
		h := m.handles[i]
		h.Release()
		member := h.Member().String()
		m.log().HookRemove(m.creator.ref.Name(), member, m.tag)
		m.creator.reg.emit(EventRemoved, member, m.tag)
	}
	m.handles = nil
	m.state = Declared
	return true
}

func (m *MemberHook) installed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.handles)
}
