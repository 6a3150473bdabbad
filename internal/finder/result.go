package finder

import (
	"sync"

	"github.com/zboralski/dexhook/internal/jvm"
)

// Result is the ordered, deduplicated outcome of resolving a Query against
// a class. Resolution failures are carried as values in Err.
type Result struct {
	Query Query
	Class *jvm.Class

	members []jvm.Member
	err     error
}

func failed(q Query, c *jvm.Class, err error) *Result {
	return &Result{Query: q, Class: c, err: err}
}

// Err returns the resolution failure, if any.
func (r *Result) Err() error { return r.err }

// Ok reports whether at least one member resolved.
func (r *Result) Ok() bool { return r.err == nil && len(r.members) > 0 }

// Len returns the number of resolved members.
func (r *Result) Len() int { return len(r.members) }

// Members returns the resolved members in native enumeration order.
func (r *Result) Members() []jvm.Member {
	return append([]jvm.Member(nil), r.members...)
}

// First returns the first resolved member or nil.
func (r *Result) First() jvm.Member {
	if len(r.members) == 0 {
		return nil
	}
	return r.members[0]
}

// Methods returns the resolved methods.
func (r *Result) Methods() []*jvm.Method {
	var out []*jvm.Method
	for _, m := range r.members {
		if x, ok := m.(*jvm.Method); ok {
			out = append(out, x)
		}
	}
	return out
}

// Constructors returns the resolved constructors.
func (r *Result) Constructors() []*jvm.Constructor {
	var out []*jvm.Constructor
	for _, m := range r.members {
		if x, ok := m.(*jvm.Constructor); ok {
			out = append(out, x)
		}
	}
	return out
}

// Fields returns the resolved fields.
func (r *Result) Fields() []*jvm.Field {
	var out []*jvm.Field
	for _, m := range r.members {
		if x, ok := m.(*jvm.Field); ok {
			out = append(out, x)
		}
	}
	return out
}

// Lazy defers class resolution and member lookup until first use, so it can
// be created for a class that does not resolve.
type Lazy struct {
	finder *Finder
	ref    *jvm.ClassRef
	query  Query

	once sync.Once
	res  *Result
}

// Result resolves on first call and returns the same Result afterwards.
func (l *Lazy) Result() *Result {
	l.once.Do(func() {
		l.res = l.finder.Find(l.ref, l.query)
	})
	return l.res
}

// Get returns the members or the resolution failure.
func (l *Lazy) Get() ([]jvm.Member, error) {
	r := l.Result()
	return r.Members(), r.Err()
}
