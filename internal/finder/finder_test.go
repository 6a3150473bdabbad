package finder

import (
	"errors"
	"sync"
	"testing"

	"github.com/zboralski/dexhook/internal/jvm"
)

// fixture builds:
//
//	class com.example.Base          { void foo(); static int count; }
//	class com.example.Foo extends Base {
//	    Foo(); Foo(int);
//	    public void foo(); public void foo(int); private static String bar(String, int);
//	    private String name;
//	}
func fixture(t *testing.T) (*jvm.Loader, *jvm.ClassRef) {
	t.Helper()
	l := jvm.NewLoader(nil)
	str := l.Type(jvm.StringName)

	base := jvm.NewClass("com.example.Base", jvm.Public, nil)
	base.AddMethod("foo", jvm.Public, jvm.Void)
	base.AddMethod("baseOnly", jvm.Protected, jvm.Void)
	base.AddField("count", jvm.Static, jvm.Int)
	if _, err := l.Define(base); err != nil {
		t.Fatal(err)
	}

	foo := jvm.NewClass("com.example.Foo", jvm.Public, base)
	foo.AddConstructor(jvm.Public)
	foo.AddConstructor(jvm.Public, jvm.Int)
	foo.AddMethod("foo", jvm.Public, jvm.Void)
	foo.AddMethod("foo", jvm.Public, jvm.Void, jvm.Int)
	foo.AddMethod("bar", jvm.Private|jvm.Static, str, str, jvm.Int)
	foo.AddField("name", jvm.Private, str)
	if _, err := l.Define(foo); err != nil {
		t.Fatal(err)
	}
	return l, jvm.NewRef("com.example.Foo", l)
}

func TestFindByNameReturnsOverloadsInOrder(t *testing.T) {
	_, ref := fixture(t)
	f := New()

	r := f.Find(ref, NewMethod().Name("foo").Build())
	if r.Err() != nil {
		t.Fatalf("Find: %v", r.Err())
	}
	ms := r.Methods()
	if len(ms) != 2 {
		t.Fatalf("got %d methods, want 2", len(ms))
	}
	if len(ms[0].ParameterTypes()) != 0 || len(ms[1].ParameterTypes()) != 1 {
		t.Errorf("wrong order: %v", ms)
	}

	r = f.Find(ref, NewMethod().Name("foo").ParamCount(1).Build())
	if r.Len() != 1 || r.Methods()[0].ParameterTypes()[0] != jvm.Int {
		t.Errorf("ParamCount(1) = %v", r.Members())
	}
}

func TestFindParamTypes(t *testing.T) {
	l, ref := fixture(t)
	f := New()
	str := l.Type(jvm.StringName)

	tests := []struct {
		name  string
		query Query
		want  int
	}{
		{"exact identity", NewMethod().Param(Type(str), Type(jvm.Int)).Build(), 1},
		{"by type name", NewMethod().Param(TypeName(jvm.StringName), TypeName("int")).Build(), 1},
		{"wildcard slot", NewMethod().Param(Any(), Type(jvm.Int)).Build(), 1},
		{"wrong slot", NewMethod().Param(Type(jvm.Int), Any()).Build(), 0},
		{"arity mismatch", NewMethod().Param(Any()).Name("bar").Build(), 0},
		{"empty param", NewMethod().Name("foo").EmptyParam().Build(), 1},
		{"count range", NewMethod().ParamCountRange(1, Unbounded).Build(), 2},
		{"return type", NewMethod().ReturnType(TypeName(jvm.StringName)).Build(), 1},
		{"modifiers", NewMethod().Modifiers(Rules().IsPrivate().IsStatic()).Build(), 1},
		{"field type", NewField().Type(Type(str)).Build(), 1},
		{"constructor", NewConstructor().Param(Type(jvm.Int)).Build(), 1},
	}
	for _, tt := range tests {
		r := f.Find(ref, tt.query)
		if r.Len() != tt.want {
			t.Errorf("%s: got %d matches, want %d (err %v)", tt.name, r.Len(), tt.want, r.Err())
		}
		if tt.want == 0 && !errors.Is(r.Err(), ErrNoSuchMember) {
			t.Errorf("%s: err = %v, want ErrNoSuchMember", tt.name, r.Err())
		}
	}
}

func TestFindNoConstraintsReturnsAll(t *testing.T) {
	_, ref := fixture(t)
	r := New().Find(ref, NewMethod().Build())
	if r.Len() != 3 {
		t.Errorf("got %d methods, want every declared method (3)", r.Len())
	}
}

func TestFindIndexSelector(t *testing.T) {
	_, ref := fixture(t)
	f := New()
	all := f.Find(ref, NewMethod().Build()).Members()

	for i := range all {
		r := f.Find(ref, NewMethod().Index(i).Build())
		if r.Err() != nil || r.Len() != 1 || r.First() != all[i] {
			t.Errorf("Index(%d) = %v, %v; want %v", i, r.Members(), r.Err(), all[i])
		}
	}

	r := f.Find(ref, NewMethod().Index(len(all)).Build())
	var oor *IndexOutOfRangeError
	if !errors.As(r.Err(), &oor) || oor.Count != len(all) {
		t.Fatalf("err = %v, want IndexOutOfRangeError with count %d", r.Err(), len(all))
	}
	if !errors.Is(r.Err(), ErrIndexOutOfRange) {
		t.Error("errors.Is(ErrIndexOutOfRange) should hold")
	}
}

func TestFindSuperclass(t *testing.T) {
	_, ref := fixture(t)
	f := New()

	if r := f.Find(ref, NewMethod().Name("baseOnly").Build()); r.Err() == nil {
		t.Error("baseOnly should not resolve without superclass search")
	}
	r := f.Find(ref, NewMethod().Name("baseOnly").Superclass().Build())
	if r.Len() != 1 || r.First().DeclaringClass().Name() != "com.example.Base" {
		t.Errorf("superclass search = %v, %v", r.Members(), r.Err())
	}

	// Lazy per level: foo() is found on Foo, Base is never consulted.
	r = f.Find(ref, NewMethod().Name("foo").EmptyParam().Superclass().Build())
	if r.Len() != 1 || r.First().DeclaringClass().Name() != "com.example.Foo" {
		t.Errorf("lazy level walk = %v", r.Members())
	}
	r = f.Find(ref, NewMethod().Name("foo").EmptyParam().Superclass().AllLevels().Build())
	if r.Len() != 2 {
		t.Errorf("exhaustive walk = %v", r.Members())
	}

	if r := f.Find(ref, NewField().Name("count").SuperclassDepth(0).Build()); r.Err() == nil {
		t.Error("depth 0 should not reach Base")
	}
	if r := f.Find(ref, NewField().Name("count").SuperclassDepth(1).Build()); r.Len() != 1 {
		t.Errorf("depth 1 = %v", r.Err())
	}
}

func TestFindCache(t *testing.T) {
	_, ref := fixture(t)
	f := New()
	q := NewMethod().Name("foo").Build()

	a := f.Find(ref, q)
	b := f.Find(ref, NewMethod().Name("foo").Build())
	if a != b {
		t.Error("identical queries should return the cached result")
	}
	if s := f.Stats(); s.Scans != 1 || s.Hits != 1 || s.Entries != 1 {
		t.Errorf("stats = %+v", s)
	}

	// Failures are cached too.
	f.Find(ref, NewMethod().Name("missing").Build())
	f.Find(ref, NewMethod().Name("missing").Build())
	if s := f.Stats(); s.Scans != 2 {
		t.Errorf("scans = %d, want 2", s.Scans)
	}
}

func TestFindCacheConcurrent(t *testing.T) {
	_, ref := fixture(t)
	f := New()

	var wg sync.WaitGroup
	results := make([]*Result, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = f.Find(ref, NewMethod().Name("foo").Build())
		}(i)
	}
	wg.Wait()

	for _, r := range results[1:] {
		if r != results[0] {
			t.Fatal("concurrent lookups should converge on one cached result")
		}
	}
	if s := f.Stats(); s.Entries != 1 || s.Scans != 1 {
		t.Errorf("stats = %+v", s)
	}
}

func TestFindUnresolvedClass(t *testing.T) {
	l, _ := fixture(t)
	f := New()
	ref := jvm.NewRef("com.example.Missing", l)

	lazy := f.Lazy(ref, NewMethod().Name("foo").Build())
	if s := f.Stats(); s.Scans != 0 {
		t.Fatal("Lazy must not resolve eagerly")
	}
	_, err := lazy.Get()
	if !errors.Is(err, jvm.ErrClassNotFound) {
		t.Errorf("err = %v, want ErrClassNotFound", err)
	}
	if s := f.Stats(); s.Scans != 0 {
		t.Error("an unresolved class must not be scanned")
	}
}

func TestFindFirstAndAll(t *testing.T) {
	_, ref := fixture(t)
	f := New()

	m, err := f.FindFirst(ref, NewMethod().Name("bar").Build())
	if err != nil || m.Name() != "bar" {
		t.Errorf("FindFirst = %v, %v", m, err)
	}
	all, err := f.FindAll(ref, NewConstructor().Build())
	if err != nil || len(all) != 2 {
		t.Errorf("FindAll = %v, %v", all, err)
	}
	if _, err := f.FindFirst(ref, NewMethod().Name("nope").Build()); err == nil {
		t.Error("FindFirst should fail for a missing member")
	}
}
