package hook

import (
	"sync"

	"github.com/zboralski/dexhook/internal/jvm"
)

// Failure kinds reported to the default diagnostic sink.
const (
	KindInstall       = "install"
	KindNoSuchMember  = "no-such-member"
	KindConduct       = "conduct"
	KindClassNotFound = "class-not-found"
)

// Result is the handle of one MemberHook. It carries the precondition,
// the outcome and failure channels, and removal.
//
// Failures are offered to the most specific registered channel first,
// then to the catch-all OnAllFailure. Only when the caller registered
// neither is the default diagnostic logged.
type Result struct {
	entry *MemberHook

	mu              sync.RWMutex
	cond            func() bool
	onHooked        func(jvm.Member)
	onAlreadyHooked func(jvm.Member)
	onNoSuchMember  func(error)
	onConduct       func(*Param, error)
	onHooking       func(error)
	onAll           func(error)
}

// Entry returns the declaring entry.
func (r *Result) Entry() *MemberHook { return r.entry }

// By sets a precondition evaluated once per install pass. When it returns
// false or panics the entry is skipped and reports nothing.
func (r *Result) By(cond func() bool) *Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cond = cond
	return r
}

func (r *Result) condition() func() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cond
}

// OnHooked is called for every member that got intercepted.
func (r *Result) OnHooked(fn func(jvm.Member)) *Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onHooked = fn
	return r
}

// OnAlreadyHooked is called for members that already carried this entry.
func (r *Result) OnAlreadyHooked(fn func(jvm.Member)) *Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onAlreadyHooked = fn
	return r
}

// OnNoSuchMemberFailure is called when member resolution failed.
func (r *Result) OnNoSuchMemberFailure(fn func(error)) *Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onNoSuchMember = fn
	return r
}

// OnConductFailure is called when a callback body fails during a call.
func (r *Result) OnConductFailure(fn func(*Param, error)) *Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onConduct = fn
	return r
}

// OnHookingFailure is called for install and member resolution failures.
func (r *Result) OnHookingFailure(fn func(error)) *Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onHooking = fn
	return r
}

// OnAllFailure is called for every failure of the entry.
func (r *Result) OnAllFailure(fn func(error)) *Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onAll = fn
	return r
}

func (r *Result) IgnoredNoSuchMemberFailure() *Result {
	return r.OnNoSuchMemberFailure(func(error) {})
}

func (r *Result) IgnoredConductFailure() *Result {
	return r.OnConductFailure(func(*Param, error) {})
}

func (r *Result) IgnoredHookingFailure() *Result {
	return r.OnHookingFailure(func(error) {})
}

func (r *Result) IgnoredAllFailure() *Result {
	return r.OnAllFailure(func(error) {})
}

// Remove releases every intercept the entry holds. It reports false when
// nothing was installed.
func (r *Result) Remove() bool { return r.entry.remove() }

func (r *Result) String() string { return r.entry.String() }

func (r *Result) hooked(m jvm.Member) {
	r.mu.RLock()
	fn := r.onHooked
	r.mu.RUnlock()
	if fn != nil {
		fn(m)
	}
}

func (r *Result) alreadyHooked(m jvm.Member) {
	r.mu.RLock()
	fn := r.onAlreadyHooked
	r.mu.RUnlock()
	if fn != nil {
		fn(m)
	}
}

func (r *Result) installFailure(class *jvm.Class, m jvm.Member, err error) {
	r.mu.RLock()
	hooking, all := r.onHooking, r.onAll
	r.mu.RUnlock()

	r.entry.creator.reg.emit(EventInstallFailed, m.String(), r.entry.tag)
	if hooking != nil {
		hooking(err)
	}
	if all != nil {
		all(err)
	}
	if hooking == nil && all == nil {
		r.entry.creator.reg.failure(KindInstall, class.Name(), r.entry.tag, m.String(), err)
	}
}

func (r *Result) noSuchMember(class *jvm.Class, err error) {
	r.mu.RLock()
	noSuch, hooking, all := r.onNoSuchMember, r.onHooking, r.onAll
	r.mu.RUnlock()

	r.entry.creator.reg.emit(EventNoSuchMember, class.Name(), r.entry.tag)
	if noSuch != nil {
		noSuch(err)
	}
	if hooking != nil {
		hooking(err)
	}
	if all != nil {
		all(err)
	}
	if noSuch == nil && hooking == nil && all == nil {
		r.entry.creator.reg.failure(KindNoSuchMember, class.Name(), r.entry.tag, "", err)
	}
}

func (r *Result) conductFailure(class *jvm.Class, p *Param, err error) {
	r.mu.RLock()
	conduct, all := r.onConduct, r.onAll
	r.mu.RUnlock()

	r.entry.creator.reg.emit(EventConductFailure, p.Member().String(), r.entry.tag)
	if conduct != nil {
		conduct(p, err)
	}
	if all != nil {
		all(err)
	}
	if conduct == nil && all == nil {
		r.entry.creator.reg.failure(KindConduct, class.Name(), r.entry.tag, p.Member().String(), err)
	}
}
