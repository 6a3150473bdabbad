package jvm

import (
	"errors"
	"fmt"
	"sync"
)

// ErrClassNotFound is the sentinel for class resolution failures.
var ErrClassNotFound = errors.New("class not found")

// ClassNotFoundError records a failed class resolution.
type ClassNotFoundError struct {
	Name  string
	Cause error
}

func (e *ClassNotFoundError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("class %s not found: %v", e.Name, e.Cause)
	}
	return fmt.Sprintf("class %s not found", e.Name)
}

func (e *ClassNotFoundError) Unwrap() error { return e.Cause }

func (e *ClassNotFoundError) Is(target error) bool { return target == ErrClassNotFound }

// Loader is a class namespace. Defined classes carry member tables; every
// other name referenced from a signature is interned as a placeholder so
// type identity is pointer identity within one Loader.
type Loader struct {
	parent *Loader
	link   sync.Mutex

	mu      sync.RWMutex
	classes map[string]*Class
	order   []*Class
}

// NewLoader creates a loader delegating to parent first (may be nil).
func NewLoader(parent *Loader) *Loader {
	return &Loader{parent: parent, classes: make(map[string]*Class)}
}

// Define registers a class. Redefining a name that already has a member
// table is an error; a placeholder is upgraded in place so earlier
// references keep their identity.
func (l *Loader) Define(c *Class) (*Class, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if existing, ok := l.classes[c.name]; ok {
		if existing.defined {
			return nil, fmt.Errorf("define %s: duplicate class definition", c.name)
		}
		*existing = *c
		existing.defined = true
		for _, m := range existing.methods {
			m.class = existing
		}
		for _, k := range existing.constructors {
			k.class = existing
		}
		for _, f := range existing.fields {
			f.class = existing
		}
		l.order = append(l.order, existing)
		return existing, nil
	}
	c.defined = true
	l.classes[c.name] = c
	l.order = append(l.order, c)
	return c, nil
}

// Type returns the interned type for name, creating a placeholder when the
// name is unknown.
func (l *Loader) Type(name string) *Class {
	if p, ok := primitives[name]; ok {
		return p
	}
	if c := l.lookup(name); c != nil {
		return c
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if c, ok := l.classes[name]; ok {
		return c
	}
	c := &Class{name: name}
	l.classes[name] = c
	return c
}

func (l *Loader) lookup(name string) *Class {
	if l.parent != nil {
		if c := l.parent.lookup(name); c != nil && c.defined {
			return c
		}
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.classes[name]
}

// Load resolves a defined class by dotted name.
func (l *Loader) Load(name string) (*Class, error) {
	if p, ok := primitives[name]; ok {
		return p, nil
	}
	if c := l.lookup(name); c != nil && c.defined {
		return c, nil
	}
	return nil, &ClassNotFoundError{Name: name}
}

// Classes returns the defined classes in definition order.
func (l *Loader) Classes() []*Class {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]*Class(nil), l.order...)
}

// Link resolves declared superclass names to classes. Superclasses that are
// not defined anywhere stay as placeholders.
func (l *Loader) Link() {
	l.link.Lock()
	defer l.link.Unlock()
	for _, c := range l.Classes() {
		if c.super == nil && c.superName != "" {
			c.super = l.Type(c.superName)
		}
	}
}

// DefineNamed creates and registers a class whose superclass is linked by
// name later via Link.
func (l *Loader) DefineNamed(name string, mods Modifier, superName string) (*Class, error) {
	return l.Define(&Class{name: name, modifiers: mods, superName: superName})
}

// ClassRef is a lazily resolved handle to a target class. Resolution runs at
// most once; the outcome, success or failure, is memoized.
type ClassRef struct {
	name   string
	loader *Loader

	once  sync.Once
	class *Class
	err   error
}

// NewRef creates a reference resolved through loader on first access.
func NewRef(name string, loader *Loader) *ClassRef {
	return &ClassRef{name: name, loader: loader}
}

// RefOf wraps an already loaded class.
func RefOf(c *Class) *ClassRef {
	r := &ClassRef{name: c.name, class: c}
	r.once.Do(func() {})
	return r
}

// Name returns the requested class name.
func (r *ClassRef) Name() string { return r.name }

// Resolve loads the class on first call and returns the memoized outcome.
func (r *ClassRef) Resolve() (*Class, error) {
	r.once.Do(func() {
		if r.loader == nil {
			r.err = &ClassNotFoundError{Name: r.name, Cause: errors.New("no class loader")}
			return
		}
		r.class, r.err = r.loader.Load(r.name)
	})
	return r.class, r.err
}

// Class returns the resolved class or nil on failure.
func (r *ClassRef) Class() *Class {
	c, _ := r.Resolve()
	return c
}

// Err returns the captured resolution failure, if any.
func (r *ClassRef) Err() error {
	_, err := r.Resolve()
	return err
}

func (r *ClassRef) String() string {
	if c := r.Class(); c != nil {
		return c.name
	}
	return r.name
}
