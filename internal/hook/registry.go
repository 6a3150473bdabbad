// Package hook drives the interception lifecycle: entries declared on a
// class session are resolved to members, installed through a bridge
// primitive, and removed on request. Every failure is delivered to the
// entry's registered channels or, when none is registered, logged.
package hook

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zboralski/dexhook/internal/bridge"
	"github.com/zboralski/dexhook/internal/finder"
	"github.com/zboralski/dexhook/internal/jvm"
	"github.com/zboralski/dexhook/internal/log"
	"github.com/zboralski/dexhook/internal/trace"
)

// Event categories passed to Registry.OnEvent.
const (
	EventInstalled        = string(trace.Installed)
	EventAlreadyInstalled = string(trace.AlreadyInstalled)
	EventRemoved          = string(trace.Removed)
	EventInstallFailed    = string(trace.InstallFailed)
	EventNoSuchMember     = string(trace.NoSuchMember)
	EventConductFailure   = string(trace.ConductFailure)
	EventClassNotFound    = string(trace.ClassNotFound)
	EventAdvisory         = string(trace.Advisory)
)

// Option configures a Registry.
type Option func(*Registry)

// WithFinder sets the member finder. finder.Default is used otherwise.
func WithFinder(f *finder.Finder) Option {
	return func(r *Registry) { r.finder = f }
}

// WithLogger sets the diagnostic sink. The global logger is used otherwise.
func WithLogger(l *log.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithHost names the hooked application in diagnostics as [pkg] or, for a
// secondary user, [pkg][userID].
func WithHost(pkg string, userID int) Option {
	return func(r *Registry) {
		if userID != 0 {
			r.host = fmt.Sprintf("[%s][%d]", pkg, userID)
		} else {
			r.host = fmt.Sprintf("[%s]", pkg)
		}
	}
}

// Registry owns the class sessions hooked through one primitive.
type Registry struct {
	installer bridge.Installer
	finder    *finder.Finder
	logger    *log.Logger
	host      string

	mu       sync.RWMutex
	creators []*Creator
	seen     map[*Creator]bool
	sessions []*CreatorResult

	// OnEvent receives every lifecycle event.
	OnEvent func(category, name, detail string)
}

// DefaultRegistry hooks through bridge.Default.
var DefaultRegistry = NewRegistry(bridge.Default)

// NewRegistry creates a registry installing through inst.
func NewRegistry(inst bridge.Installer, opts ...Option) *Registry {
	r := &Registry{
		installer: inst,
		finder:    finder.Default,
		seen:      make(map[*Creator]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Class opens a session for ref.
func (r *Registry) Class(ref *jvm.ClassRef) *Creator {
	return &Creator{reg: r, ref: ref}
}

// ClassName opens a session for the class name resolved through loader.
func (r *Registry) ClassName(name string, loader *jvm.Loader) *Creator {
	return r.Class(jvm.NewRef(name, loader))
}

// Finder returns the member finder.
func (r *Registry) Finder() *finder.Finder { return r.finder }

// Host returns the host tag name used in diagnostics.
func (r *Registry) Host() string { return r.host }

func (r *Registry) track(c *Creator, s *CreatorResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.seen[c] {
		r.seen[c] = true
		r.creators = append(r.creators, c)
	}
	r.sessions = append(r.sessions, s)
}

// Sessions returns every install pass started through the registry.
func (r *Registry) Sessions() []*CreatorResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*CreatorResult(nil), r.sessions...)
}

// CommitAll commits every pending session.
func (r *Registry) CommitAll() {
	for _, s := range r.Sessions() {
		s.Commit()
	}
}

// Wait blocks until every started session finished.
func (r *Registry) Wait(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, s := range r.Sessions() {
		g.Go(func() error { return s.Wait(ctx) })
	}
	return g.Wait()
}

// Count returns the number of intercepts currently held.
func (r *Registry) Count() int {
	r.mu.RLock()
	creators := append([]*Creator(nil), r.creators...)
	r.mu.RUnlock()

	n := 0
	for _, c := range creators {
		n += c.installed()
	}
	return n
}

// RemoveAll removes every entry and returns how many held intercepts.
func (r *Registry) RemoveAll() int {
	r.mu.RLock()
	creators := append([]*Creator(nil), r.creators...)
	r.mu.RUnlock()

	n := 0
	for _, c := range creators {
		for _, m := range c.Entries() {
			if m.remove() {
				n++
			}
		}
	}
	return n
}

func (r *Registry) log() *log.Logger {
	if r.logger != nil {
		return r.logger
	}
	return log.Get()
}

// emit calls the OnEvent callback and logs via zap.
func (r *Registry) emit(category, name, detail string) {
	if r.OnEvent != nil {
		r.OnEvent(category, name, detail)
	}
	r.log().Event(category, name, detail)
}

// dispatch runs a user channel callback. A panic is logged and dropped so
// the rest of the install pass goes on.
func (r *Registry) dispatch(channel, tag string, fn func()) {
	if _, err := protect(func() error { fn(); return nil }); err != nil {
		r.log().Error("hook channel panicked",
			zap.String("channel", channel),
			zap.String("tag", tag),
			zap.Error(err))
	}
}

func (r *Registry) failure(kind, class, tag, member string, err error) {
	r.log().Failure(kind, r.host, class, tag, member, err)
}

// Class opens a session on DefaultRegistry.
func Class(ref *jvm.ClassRef) *Creator {
	return DefaultRegistry.Class(ref)
}
