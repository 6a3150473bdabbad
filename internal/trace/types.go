// Package trace provides types for hook event collection and analysis.
package trace

import (
	"sync"
	"time"
)

// Tag represents a hook event category.
// Tags are stored without # prefix; the prefix is added on rendering.
type Tag string

// Standard tags for hook events.
const (
	Installed        Tag = "installed"
	AlreadyInstalled Tag = "already-installed"
	Removed          Tag = "removed"
	InstallFailed    Tag = "install-failed"
	NoSuchMember     Tag = "no-such-member"
	ConductFailure   Tag = "conduct-failure"
	ClassNotFound    Tag = "class-not-found"
	Advisory         Tag = "advisory"
	Invoke           Tag = "invoke"
	Failure          Tag = "failure"
	Lifecycle        Tag = "lifecycle"
)

// Tags is a collection of tags with helper methods.
type Tags []Tag

// Has returns true if the tag collection contains the given tag.
func (t Tags) Has(tag Tag) bool {
	for _, x := range t {
		if x == tag {
			return true
		}
	}
	return false
}

// Add adds a tag if not already present.
func (t *Tags) Add(tag Tag) {
	if !t.Has(tag) {
		*t = append(*t, tag)
	}
}

// Strings returns tags as strings with # prefix for display.
func (t Tags) Strings() []string {
	out := make([]string, len(t))
	for i, tag := range t {
		out[i] = "#" + string(tag)
	}
	return out
}

// Primary returns the first tag or empty string if none.
func (t Tags) Primary() Tag {
	if len(t) > 0 {
		return t[0]
	}
	return ""
}

// Annotations holds key-value metadata for hook events.
type Annotations map[string]string

// Set adds or updates an annotation.
func (a Annotations) Set(k, v string) {
	a[k] = v
}

// Get retrieves an annotation value.
func (a Annotations) Get(k string) string {
	return a[k]
}

// Event is one hook lifecycle event.
type Event struct {
	Tags        Tags        // Multiple hashtags, first is primary
	Name        string      // Member signature or class name
	Detail      string      // Entry tag or advisory name
	Annotations Annotations // Key-value metadata
	Timestamp   time.Time   // When the event occurred
}

// NewEvent creates a new hook event with the given parameters.
func NewEvent(category, name, detail string) *Event {
	return &Event{
		Tags:        Tags{Tag(category)},
		Name:        name,
		Detail:      detail,
		Annotations: make(Annotations),
		Timestamp:   time.Now(),
	}
}

// AddTag adds a tag to the event.
func (e *Event) AddTag(tag Tag) {
	e.Tags.Add(tag)
}

// Annotate sets an annotation on the event.
func (e *Event) Annotate(k, v string) {
	if e.Annotations == nil {
		e.Annotations = make(Annotations)
	}
	e.Annotations.Set(k, v)
}

// PrimaryTag returns the primary (first) tag with # prefix.
func (e *Event) PrimaryTag() string {
	if len(e.Tags) > 0 {
		return "#" + string(e.Tags[0])
	}
	return ""
}

// Enricher enriches hook events based on category.
type Enricher func(e *Event)

// DefaultEnricher groups categories under the failure and lifecycle tags.
func DefaultEnricher(e *Event) {
	if len(e.Tags) == 0 {
		return
	}

	switch e.Tags[0] {
	case InstallFailed, NoSuchMember, ConductFailure, ClassNotFound:
		e.AddTag(Failure)
		e.Annotate("severity", "error")

	case Installed, AlreadyInstalled, Removed:
		e.AddTag(Lifecycle)

	case Advisory:
		e.Annotate("severity", "warn")
	}
}

// Recorder collects events from concurrent producers.
type Recorder struct {
	mu       sync.Mutex
	events   []*Event
	enricher Enricher
}

// NewRecorder creates a recorder applying enricher to each event (may be
// nil).
func NewRecorder(enricher Enricher) *Recorder {
	return &Recorder{enricher: enricher}
}

// Record is shaped to be used as an event callback.
func (r *Recorder) Record(category, name, detail string) {
	e := NewEvent(category, name, detail)
	if r.enricher != nil {
		r.enricher(e)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a snapshot of the recorded events.
func (r *Recorder) Events() []*Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Event(nil), r.events...)
}

// Count returns the number of recorded events carrying tag.
func (r *Recorder) Count(tag Tag) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Tags.Has(tag) {
			n++
		}
	}
	return n
}
