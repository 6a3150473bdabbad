package hook

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zboralski/dexhook/internal/jvm"
)

// Creator is a hook session for one target class. Entries are declared
// with Inject; Hook starts the install pass.
type Creator struct {
	reg *Registry
	ref *jvm.ClassRef

	mu      sync.Mutex
	entries []*MemberHook
}

// Class returns the target class reference.
func (c *Creator) Class() *jvm.ClassRef { return c.ref }

// Inject declares an entry at PriorityDefault.
func (c *Creator) Inject(tag string, configure func(m *MemberHook)) *Result {
	return c.InjectPriority(PriorityDefault, tag, configure)
}

// InjectPriority declares an entry. configure selects the members and
// sets the interception.
func (c *Creator) InjectPriority(priority int, tag string, configure func(m *MemberHook)) *Result {
	m := newMemberHook(c, priority, tag)
	if configure != nil {
		configure(m)
	}
	c.mu.Lock()
	c.entries = append(c.entries, m)
	c.mu.Unlock()
	return m.result
}

// Entries returns the declared entries in declaration order.
func (c *Creator) Entries() []*MemberHook {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*MemberHook(nil), c.entries...)
}

// Hook starts an install pass over every declared entry. The pass waits
// until the returned session is committed, so configuration done on the
// CreatorResult and on entry Results is complete before any member can be
// intercepted.
func (c *Creator) Hook() (*CreatorResult, error) {
	entries := c.Entries()
	if len(entries) == 0 {
		return nil, fmt.Errorf("hook %s: %w, hook aborted", c.ref.Name(), ErrNoEntries)
	}

	r := &CreatorResult{
		creator: c,
		entries: entries,
		ready:   make(chan struct{}),
		done:    make(chan struct{}),
	}
	c.reg.track(c, r)
	go r.run()
	return r, nil
}

// installed returns the number of intercepts held by the entries.
func (c *Creator) installed() int {
	n := 0
	for _, m := range c.Entries() {
		n += m.installed()
	}
	return n
}

// CreatorResult is one pending or finished install pass.
type CreatorResult struct {
	creator *Creator
	entries []*MemberHook

	ready  chan struct{}
	commit sync.Once
	done   chan struct{}

	mu              sync.Mutex
	cond            func() bool
	onPrepare       func()
	onClassNotFound func(error)
	err             error
}

// By sets a precondition for the whole session, evaluated once when the
// pass starts. False or a panic disables the session silently.
func (r *CreatorResult) By(cond func() bool) *CreatorResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cond = cond
	return r
}

// OnPrepareHook is called once the class resolved, before any entry is
// installed.
func (r *CreatorResult) OnPrepareHook(fn func()) *CreatorResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onPrepare = fn
	return r
}

// OnHookClassNotFoundFailure is called when the target class cannot be
// resolved.
func (r *CreatorResult) OnHookClassNotFoundFailure(fn func(error)) *CreatorResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onClassNotFound = fn
	return r
}

// IgnoredHookClassNotFoundFailure runs the session only if the class
// resolves.
func (r *CreatorResult) IgnoredHookClassNotFoundFailure() *CreatorResult {
	ref := r.creator.ref
	return r.By(func() bool { return ref.Err() == nil })
}

// Commit releases the install pass. Later calls do nothing.
func (r *CreatorResult) Commit() *CreatorResult {
	r.commit.Do(func() { close(r.ready) })
	return r
}

// Apply runs configure and commits.
func (r *CreatorResult) Apply(configure func(r *CreatorResult)) *CreatorResult {
	if configure != nil {
		configure(r)
	}
	return r.Commit()
}

// Done is closed when the install pass finished.
func (r *CreatorResult) Done() <-chan struct{} { return r.done }

// Wait blocks until the install pass finished or ctx is done.
func (r *CreatorResult) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the class resolution failure of a finished pass.
func (r *CreatorResult) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Entries returns the entry handles of this session.
func (r *CreatorResult) Entries() []*Result {
	out := make([]*Result, len(r.entries))
	for i, m := range r.entries {
		out[i] = m.result
	}
	return out
}

func (r *CreatorResult) run() {
	defer close(r.done)

	if timeout := Current().InstallTimeout; timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		select {
		case <-r.ready:
		case <-t.C:
		}
	} else {
		<-r.ready
	}

	r.mu.Lock()
	cond, prepare, notFound := r.cond, r.onPrepare, r.onClassNotFound
	r.mu.Unlock()

	if !gate(cond) {
		return
	}

	reg := r.creator.reg
	class, err := r.creator.ref.Resolve()
	if err != nil {
		r.mu.Lock()
		r.err = err
		r.mu.Unlock()

		for _, m := range r.entries {
			m.classMissing()
		}
		reg.emit(EventClassNotFound, r.creator.ref.Name(), "")
		if notFound != nil {
			reg.dispatch(EventClassNotFound, "", func() { notFound(err) })
		} else {
			reg.failure(KindClassNotFound, r.creator.ref.Name(), "", "", err)
		}
		return
	}

	reg.advise(class)
	if prepare != nil {
		if _, err := protect(func() error { prepare(); return nil }); err != nil {
			reg.log().Error("prepare hook failed", zap.Error(err))
		}
	}
	for _, m := range r.entries {
		m.install(class)
	}
}
