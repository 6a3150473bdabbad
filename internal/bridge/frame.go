package bridge

import "github.com/zboralski/dexhook/internal/jvm"

// Frame is the state of one intercepted call. A fresh Frame is created per
// invocation and shared by every callback in the chain of that invocation.
type Frame struct {
	member jvm.Member

	// This is the receiver; nil for static members and constructors
	// invoked without an instance.
	This any
	// Args are the call arguments. Before callbacks may rewrite them.
	Args []any

	result      any
	err         error
	returnEarly bool

	extra map[string]any
}

// NewFrame creates the frame for one call of m.
func NewFrame(m jvm.Member, this any, args []any) *Frame {
	return &Frame{member: m, This: this, Args: args}
}

// Member returns the intercepted member.
func (f *Frame) Member() jvm.Member { return f.member }

// Result returns the current return value.
func (f *Frame) Result() any { return f.result }

// SetResult sets the return value. Called from a before callback it
// prevents the original body from running.
func (f *Frame) SetResult(v any) {
	f.result = v
	f.err = nil
	f.returnEarly = true
}

// Err returns the error the call currently ends with.
func (f *Frame) Err() error { return f.err }

// SetErr makes the call end with err. Called from a before callback it
// prevents the original body from running.
func (f *Frame) SetErr(err error) {
	f.err = err
	f.result = nil
	f.returnEarly = true
}

// Returned reports whether a result or error has been forced.
func (f *Frame) Returned() bool { return f.returnEarly }

// Attach stores per-invocation data under key.
func (f *Frame) Attach(key string, v any) {
	if f.extra == nil {
		f.extra = make(map[string]any)
	}
	f.extra[key] = v
}

// Attached returns data stored with Attach.
func (f *Frame) Attached(key string) (any, bool) {
	v, ok := f.extra[key]
	return v, ok
}
