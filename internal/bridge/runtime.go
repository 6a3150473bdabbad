package bridge

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zboralski/dexhook/internal/jvm"
	"github.com/zboralski/dexhook/internal/log"
)

// Body is the original implementation of a member.
type Body func(f *Frame) (any, error)

// ErrArgCount is returned by Invoke when the argument count does not match
// the member's parameter list.
var ErrArgCount = errors.New("wrong number of arguments")

type installed struct {
	cb     Callback
	handle *Handle
	seq    uint64
}

// Runtime is an in-process Installer. Members are given bodies with
// Implement and called through Invoke, which runs the intercept chain.
//
// Chains are ordered by priority: a lower value runs its before callback
// earlier and its after callback later. Equal priorities keep install
// order.
type Runtime struct {
	mu     sync.RWMutex
	bodies map[jvm.Member]Body
	chains map[jvm.Member][]*installed
	seq    uint64

	logger *log.Logger
}

// Default is the process-wide runtime.
var Default = NewRuntime()

// NewRuntime creates an empty runtime.
func NewRuntime() *Runtime {
	return &Runtime{
		bodies: make(map[jvm.Member]Body),
		chains: make(map[jvm.Member][]*installed),
	}
}

// SetLogger sets the logger used for callback panics. The global logger is
// used otherwise.
func (r *Runtime) SetLogger(l *log.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = l
}

func (r *Runtime) log() *log.Logger {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.logger != nil {
		return r.logger
	}
	return log.Get()
}

// Implement sets the original body of m.
func (r *Runtime) Implement(m jvm.Member, body Body) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bodies[m] = body
}

// Install adds cb to the chain of m.
func (r *Runtime) Install(m jvm.Member, cb Callback) Outcome {
	if m == nil {
		return Outcome{Status: Failed, Err: fmt.Errorf("%w: nil member", ErrUnsupported)}
	}
	switch {
	case m.Kind() == jvm.KindField:
		return Outcome{Status: Failed, Err: unsupported(m, "fields have no body")}
	case m.Modifiers().Has(jvm.Abstract):
		return Outcome{Status: Failed, Err: unsupported(m, "abstract member")}
	case cb.Mode == ModeReplace && cb.Replace == nil:
		return Outcome{Status: Failed, Err: fmt.Errorf("%w: %s", ErrNoReplacement, m)}
	}
	if cb.ID == uuid.Nil {
		cb.ID = uuid.New()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	chain := r.chains[m]
	for _, in := range chain {
		if in.cb.ID == cb.ID {
			return Outcome{Status: AlreadyInstalled, Handle: in.handle}
		}
	}

	r.seq++
	in := &installed{cb: cb, seq: r.seq}
	in.handle = &Handle{id: uuid.New(), callback: cb.ID, member: m}
	in.handle.release = func() bool { return r.remove(m, in) }

	// Copy on write so Invoke can run a snapshot without holding the lock.
	next := make([]*installed, 0, len(chain)+1)
	next = append(next, chain...)
	next = append(next, in)
	sort.SliceStable(next, func(i, j int) bool {
		if next[i].cb.Priority != next[j].cb.Priority {
			return next[i].cb.Priority < next[j].cb.Priority
		}
		return next[i].seq < next[j].seq
	})
	r.chains[m] = next

	return Outcome{Status: Installed, Handle: in.handle}
}

func (r *Runtime) remove(m jvm.Member, target *installed) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	chain := r.chains[m]
	next := make([]*installed, 0, len(chain))
	found := false
	for _, in := range chain {
		if in == target {
			found = true
			continue
		}
		next = append(next, in)
	}
	if !found {
		return false
	}
	if len(next) == 0 {
		delete(r.chains, m)
	} else {
		r.chains[m] = next
	}
	return true
}

// Hooks returns the number of intercepts installed on m.
func (r *Runtime) Hooks(m jvm.Member) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.chains[m])
}

// Hooked returns every member that carries at least one intercept.
func (r *Runtime) Hooked() []jvm.Member {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]jvm.Member, 0, len(r.chains))
	for m := range r.chains {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Invoke calls m through its intercept chain.
func (r *Runtime) Invoke(m jvm.Member, this any, args ...any) (any, error) {
	if m == nil {
		return nil, fmt.Errorf("invoke: %w: nil member", ErrUnsupported)
	}
	if m.Kind() == jvm.KindField {
		return nil, fmt.Errorf("invoke: %w", unsupported(m, "fields have no body"))
	}
	if e, ok := m.(jvm.Executable); ok && len(e.ParameterTypes()) != len(args) {
		return nil, fmt.Errorf("invoke %s: %w: got %d, want %d", m, ErrArgCount, len(args), len(e.ParameterTypes()))
	}

	r.mu.RLock()
	chain := r.chains[m]
	body := r.bodies[m]
	r.mu.RUnlock()

	f := NewFrame(m, this, args)

	i := 0
	for ; i < len(chain); i++ {
		r.before(chain[i], f)
		if f.returnEarly {
			i++
			break
		}
	}
	if !f.returnEarly {
		f.result, f.err = r.original(body, f)
	}
	for j := i - 1; j >= 0; j-- {
		r.after(chain[j], f)
	}
	return f.result, f.err
}

// InvokeOriginal calls the body of m, bypassing every intercept.
func (r *Runtime) InvokeOriginal(m jvm.Member, this any, args ...any) (any, error) {
	r.mu.RLock()
	body := r.bodies[m]
	r.mu.RUnlock()
	return r.original(body, NewFrame(m, this, args))
}

func (r *Runtime) original(body Body, f *Frame) (result any, err error) {
	if body == nil {
		return nil, nil
	}
	defer func() {
		if p := recover(); p != nil {
			result, err = nil, fmt.Errorf("%s panicked: %v", f.member, p)
		}
	}()
	return body(f)
}

func (r *Runtime) before(in *installed, f *Frame) {
	defer r.recoverCallback(in, f, "before", f.result, f.err, f.returnEarly)

	switch in.cb.Mode {
	case ModeReplace:
		v, err := in.cb.Replace(f)
		if err != nil {
			f.SetErr(err)
		} else {
			f.SetResult(v)
		}
	default:
		if in.cb.Before != nil {
			in.cb.Before(f)
		}
	}
}

func (r *Runtime) after(in *installed, f *Frame) {
	if in.cb.Mode != ModeWrap || in.cb.After == nil {
		return
	}
	defer r.recoverCallback(in, f, "after", f.result, f.err, f.returnEarly)
	in.cb.After(f)
}

// recoverCallback keeps a panicking callback from unwinding the call and
// restores the frame outcome it saw on entry.
func (r *Runtime) recoverCallback(in *installed, f *Frame, phase string, result any, err error, early bool) {
	if p := recover(); p != nil {
		f.result, f.err, f.returnEarly = result, err, early
		r.log().Error("callback panicked",
			zap.String("phase", phase),
			log.Member(f.member.String()),
			zap.Stringer("callback", in.cb.ID),
			zap.Any("panic", p),
		)
	}
}
