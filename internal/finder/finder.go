// Package finder resolves declarative member queries against class member
// tables.
//
// A Query names the constraints (name, parameter types and count, modifier
// rules, declared type, index selector and superclass search). A Finder
// enumerates the declared members of the class, then optionally its
// ancestors, keeps every candidate that passes all constraints in native
// declaration order, and caches the outcome keyed on class identity and the
// full query. Failures are returned as values inside the Result.
package finder

import (
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/zboralski/dexhook/internal/jvm"
)

type cacheKey struct {
	class *jvm.Class
	query string
}

// Stats reports cache effectiveness.
type Stats struct {
	Scans   int64 // member table scans performed
	Hits    int64 // queries answered from the cache
	Entries int   // cached results
}

// Finder resolves queries and caches results for the process lifetime.
// Member tables never change once a class is defined, so entries are never
// evicted.
type Finder struct {
	mu    sync.RWMutex
	cache map[cacheKey]*Result
	group singleflight.Group

	scans atomic.Int64
	hits  atomic.Int64
}

// Default is the finder used by the package-level helpers.
var Default = New()

// New creates an empty finder.
func New() *Finder {
	return &Finder{cache: make(map[cacheKey]*Result)}
}

// Find resolves q against the class behind ref. A class that failed to
// resolve short-circuits to a Result carrying the resolution error.
func (f *Finder) Find(ref *jvm.ClassRef, q Query) *Result {
	c, err := ref.Resolve()
	if err != nil {
		return failed(q, nil, err)
	}
	return f.FindIn(c, q)
}

// FindIn resolves q against an already loaded class.
func (f *Finder) FindIn(c *jvm.Class, q Query) *Result {
	key := cacheKey{class: c, query: q.key()}

	f.mu.RLock()
	r, ok := f.cache[key]
	f.mu.RUnlock()
	if ok {
		f.hits.Add(1)
		return r
	}

	// Concurrent identical lookups share one scan; a lookup that races in
	// after the flight completed finds the entry on the re-check.
	v, _, _ := f.group.Do(fmt.Sprintf("%p|%s", c, key.query), func() (any, error) {
		f.mu.RLock()
		r, ok := f.cache[key]
		f.mu.RUnlock()
		if ok {
			f.hits.Add(1)
			return r, nil
		}

		r = f.resolve(c, q)

		f.mu.Lock()
		if existing, ok := f.cache[key]; ok {
			r = existing
		} else {
			f.cache[key] = r
		}
		f.mu.Unlock()
		return r, nil
	})
	return v.(*Result)
}

// FindFirst returns the first member matching q.
func (f *Finder) FindFirst(ref *jvm.ClassRef, q Query) (jvm.Member, error) {
	r := f.Find(ref, q)
	if r.Err() != nil {
		return nil, r.Err()
	}
	return r.First(), nil
}

// FindAll returns every member matching q.
func (f *Finder) FindAll(ref *jvm.ClassRef, q Query) ([]jvm.Member, error) {
	r := f.Find(ref, q)
	if r.Err() != nil {
		return nil, r.Err()
	}
	return r.Members(), nil
}

// Lazy returns a deferred lookup. Nothing is resolved until it is used.
func (f *Finder) Lazy(ref *jvm.ClassRef, q Query) *Lazy {
	return &Lazy{finder: f, ref: ref, query: q}
}

// Stats returns a snapshot of cache counters.
func (f *Finder) Stats() Stats {
	f.mu.RLock()
	n := len(f.cache)
	f.mu.RUnlock()
	return Stats{Scans: f.scans.Load(), Hits: f.hits.Load(), Entries: n}
}

func (f *Finder) resolve(c *jvm.Class, q Query) *Result {
	f.scans.Add(1)

	matches := scan(c, q)
	if len(matches) == 0 {
		return failed(q, c, &NoSuchMemberError{Class: c.Name(), Query: q})
	}
	if q.hasIndex {
		if q.index < 0 || q.index >= len(matches) {
			return failed(q, c, &IndexOutOfRangeError{Class: c.Name(), Query: q, Count: len(matches)})
		}
		matches = matches[q.index : q.index+1]
	}
	return &Result{Query: q, Class: c, members: matches}
}

// scan walks the class, then its ancestors when enabled. The walk stops at
// the first level with a match unless the query is exhaustive.
func scan(c *jvm.Class, q Query) []jvm.Member {
	levels := []*jvm.Class{c}
	if q.superclass {
		for i, a := range c.Ancestors() {
			if q.depth != Unbounded && i >= q.depth {
				break
			}
			levels = append(levels, a)
		}
	}

	var out []jvm.Member
	seen := make(map[jvm.Member]bool)
	for _, level := range levels {
		found := false
		for _, m := range declared(level, q.kind) {
			if seen[m] || !q.matches(m) {
				continue
			}
			seen[m] = true
			out = append(out, m)
			found = true
		}
		if found && !q.exhaustive {
			break
		}
	}
	return out
}

func declared(c *jvm.Class, kind jvm.MemberKind) []jvm.Member {
	var out []jvm.Member
	switch kind {
	case jvm.KindMethod:
		for _, m := range c.Methods() {
			out = append(out, m)
		}
	case jvm.KindConstructor:
		for _, k := range c.Constructors() {
			out = append(out, k)
		}
	case jvm.KindField:
		for _, fd := range c.Fields() {
			out = append(out, fd)
		}
	}
	return out
}

// Find resolves q with the Default finder.
func Find(ref *jvm.ClassRef, q Query) *Result {
	return Default.Find(ref, q)
}
