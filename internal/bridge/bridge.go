// Package bridge defines the hook-installation primitive the lifecycle
// layer drives, and ships an in-process Runtime that implements it.
//
// A primitive accepts a member and a Callback and reports one of three
// outcomes: the intercept was installed, the same callback identity was
// already installed on that member, or installation failed. Installed
// intercepts are reversed through their Handle.
package bridge

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/zboralski/dexhook/internal/jvm"
)

// Mode selects the wrapper installed around a member.
type Mode int

const (
	// ModeWrap runs Before ahead of the original body and After once it
	// returned.
	ModeWrap Mode = iota
	// ModeReplace runs Replace instead of the original body.
	ModeReplace
)

func (m Mode) String() string {
	switch m {
	case ModeWrap:
		return "wrap"
	case ModeReplace:
		return "replace"
	}
	return "unknown"
}

// Callback is one intercept submitted to an Installer. ID is the callback
// identity: submitting the same ID for the same member again is reported
// as AlreadyInstalled instead of stacking a second intercept.
type Callback struct {
	ID       uuid.UUID
	Mode     Mode
	Priority int

	Before  func(f *Frame)
	After   func(f *Frame)
	Replace func(f *Frame) (any, error)
}

// Status is the outcome class of an install request.
type Status int

const (
	Installed Status = iota
	AlreadyInstalled
	Failed
)

func (s Status) String() string {
	switch s {
	case Installed:
		return "installed"
	case AlreadyInstalled:
		return "already-installed"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Outcome is the response to an install request. Handle is set for
// Installed and AlreadyInstalled, Err for Failed.
type Outcome struct {
	Status Status
	Handle *Handle
	Err    error
}

// Installer is the external hook-installation primitive.
type Installer interface {
	Install(m jvm.Member, cb Callback) Outcome
}

var (
	// ErrUnsupported is returned for members that cannot carry an intercept.
	ErrUnsupported = errors.New("member cannot be intercepted")
	// ErrNoReplacement is returned for a replace callback without a body.
	ErrNoReplacement = errors.New("replace callback has no body")
)

func unsupported(m jvm.Member, why string) error {
	return fmt.Errorf("%w: %s: %s", ErrUnsupported, why, m)
}

// Handle reverses one installed intercept.
type Handle struct {
	id       uuid.UUID
	callback uuid.UUID
	member   jvm.Member

	once    sync.Once
	release func() bool
	ok      bool
}

// ID returns the unique id of this installation.
func (h *Handle) ID() uuid.UUID { return h.id }

// Callback returns the identity of the installed callback.
func (h *Handle) Callback() uuid.UUID { return h.callback }

// Member returns the intercepted member.
func (h *Handle) Member() jvm.Member { return h.member }

// Release uninstalls the intercept. Only the first call can succeed.
func (h *Handle) Release() bool {
	h.once.Do(func() {
		if h.release != nil {
			h.ok = h.release()
		}
	})
	return h.ok
}

func (h *Handle) String() string {
	return fmt.Sprintf("%s@%s", h.id, h.member)
}
