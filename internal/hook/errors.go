package hook

import (
	"errors"
	"fmt"

	"github.com/zboralski/dexhook/internal/jvm"
)

var (
	// ErrInstall matches every InstallError.
	ErrInstall = errors.New("hook install failed")
	// ErrCallback matches every CallbackError.
	ErrCallback = errors.New("hook callback failed")
	// ErrNoEntries is returned by Hook for a session without entries.
	ErrNoEntries = errors.New("hook members is empty")
	// ErrEmptyMembers is reported when Members is given nothing to hook.
	ErrEmptyMembers = errors.New("custom hooking members is empty")
	// ErrNoSelection is reported when an entry never selected members.
	ErrNoSelection = errors.New("hooked member cannot be non-null")
)

// InstallError is a member the primitive refused to intercept.
type InstallError struct {
	Class  string
	Tag    string
	Member jvm.Member
	Err    error
}

func (e *InstallError) Error() string {
	return fmt.Sprintf("try to hook [%s][%s] got an exception [%s]: %v", e.Class, e.Member, e.Tag, e.Err)
}

func (e *InstallError) Unwrap() error { return e.Err }

func (e *InstallError) Is(target error) bool { return target == ErrInstall }

// CallbackError is a failure raised by a before, after or replace body.
type CallbackError struct {
	Phase  string
	Tag    string
	Member jvm.Member
	Err    error
	// Panic holds the recovered value when the body panicked.
	Panic any
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("%s hook of [%s] failed [%s]: %v", e.Phase, e.Member, e.Tag, e.Err)
}

func (e *CallbackError) Unwrap() error { return e.Err }

func (e *CallbackError) Is(target error) bool { return target == ErrCallback }

// protect runs fn and turns a panic into an error. The recovered value is
// returned alongside.
func protect(fn func() error) (panicked any, err error) {
	defer func() {
		if p := recover(); p != nil {
			panicked = p
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return nil, fn()
}

// gate evaluates a precondition. A panicking condition counts as false.
func gate(cond func() bool) (ok bool) {
	if cond == nil {
		return true
	}
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return cond()
}
