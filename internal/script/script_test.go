package script

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/zboralski/dexhook/internal/bridge"
	"github.com/zboralski/dexhook/internal/finder"
	"github.com/zboralski/dexhook/internal/hook"
	"github.com/zboralski/dexhook/internal/jvm"
	"github.com/zboralski/dexhook/internal/log"
)

func calc() (*jvm.Class, *jvm.Method, *jvm.Method) {
	l := jvm.NewLoader(nil)
	c := jvm.NewClass("com.example.Calc", jvm.Public, nil)
	twice := c.AddMethod("twice", jvm.Public|jvm.Static, jvm.Int, jvm.Int)
	greet := c.AddMethod("greet", jvm.Public|jvm.Static, l.Type(jvm.StringName), l.Type(jvm.StringName))
	l.Define(c)
	return c, twice, greet
}

func TestBody(t *testing.T) {
	_, twice, greet := calc()

	s := MustCompile("twice", "param.arg(0) * 2")
	got, err := s.Body()(bridge.NewFrame(twice, nil, []any{21}))
	if err != nil || got != 42 {
		t.Errorf("twice = %#v, %v; want int 42", got, err)
	}

	s = MustCompile("greet", `"hello " + param.arg(0)`)
	got, _ = s.Body()(bridge.NewFrame(greet, nil, []any{"dex"}))
	if got != "hello dex" {
		t.Errorf("greet = %#v", got)
	}
}

func TestBodyThrow(t *testing.T) {
	_, twice, _ := calc()

	f := bridge.NewFrame(twice, nil, []any{1})
	_, err := MustCompile("t", `param.throw("nope")`).Body()(f)
	if err == nil || err.Error() != "nope" {
		t.Errorf("err = %v, want nope", err)
	}

	_, err = MustCompile("js", `throw new Error("bad")`).Body()(bridge.NewFrame(twice, nil, []any{1}))
	if err == nil {
		t.Error("a JavaScript exception should surface as an error")
	}
}

func TestCompileError(t *testing.T) {
	if _, err := Compile("broken", "param.arg(("); err == nil {
		t.Error("Compile should reject invalid source")
	}
}

func TestTimeout(t *testing.T) {
	_, twice, _ := calc()
	s := MustCompile("loop", "if (param.arg(0) > 0) { for (;;) {} } 5").WithTimeout(50 * time.Millisecond)

	_, err := s.Body()(bridge.NewFrame(twice, nil, []any{1}))
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}

	// The interrupted run must not affect the next one.
	got, err := s.Body()(bridge.NewFrame(twice, nil, []any{0}))
	if err != nil || got != 5 {
		t.Errorf("second run = %v, %v; want 5", got, err)
	}
}

func TestGlobalsDoNotLeakAcrossRuns(t *testing.T) {
	_, twice, _ := calc()
	s := MustCompile("counter", "var count = (typeof count === 'number' ? count : 0) + 1; count")
	body := s.Body()
	for i := 0; i < 3; i++ {
		got, err := body(bridge.NewFrame(twice, nil, []any{0}))
		if err != nil || got != 1 {
			t.Fatalf("run %d = %v, %v; want 1", i, got, err)
		}
	}
}

func TestConcurrentRuns(t *testing.T) {
	_, twice, _ := calc()
	s := MustCompile("twice", "param.arg(0) * 2")
	body := s.Body()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := body(bridge.NewFrame(twice, nil, []any{i}))
			if err != nil || got != i*2 {
				t.Errorf("twice(%d) = %v, %v", i, got, err)
			}
		}(i)
	}
	wg.Wait()
}

func TestHookBodies(t *testing.T) {
	c, twice, greet := calc()
	rt := bridge.NewRuntime()
	rt.Implement(twice, func(f *bridge.Frame) (any, error) { return f.Args[0].(int) * 2, nil })
	rt.Implement(greet, func(f *bridge.Frame) (any, error) { return "hi " + f.Args[0].(string), nil })

	reg := hook.NewRegistry(rt, hook.WithFinder(finder.New()), hook.WithLogger(log.NewNop()))
	cr := reg.Class(jvm.RefOf(c))
	cr.Inject("args", func(m *hook.MemberHook) {
		m.Method(func(b *finder.Builder) { b.Name("twice") })
		m.BeforeHook(MustCompile("before", "param.setArg(0, param.arg(0) + 1)").Hook())
	})
	cr.Inject("replace", func(m *hook.MemberHook) {
		m.Method(func(b *finder.Builder) { b.Name("greet") })
		m.ReplaceAny(MustCompile("replace", `param.tag + ":" + param.arg(0)`).Replace())
	})
	s, err := cr.Hook()
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Commit().Wait(ctx); err != nil {
		t.Fatal(err)
	}

	if got, err := rt.Invoke(twice, nil, 4); err != nil || got != 10 {
		t.Errorf("twice(4) = %v, %v; want 10", got, err)
	}
	if got, _ := rt.Invoke(greet, nil, "x"); got != "replace:x" {
		t.Errorf("greet = %v", got)
	}
}

func TestCoerce(t *testing.T) {
	str := jvm.NewLoader(nil).Type(jvm.StringName)
	tests := []struct {
		in   any
		typ  *jvm.Class
		want any
	}{
		{int64(7), jvm.Int, 7},
		{float64(7), jvm.Long, int64(7)},
		{"12", jvm.Int, 12},
		{"0x10", jvm.Short, int16(16)},
		{"true", jvm.Boolean, true},
		{"a", jvm.Char, 'a'},
		{int64(2), jvm.Double, float64(2)},
		{int64(3), str, "3"},
		{"nope", jvm.Int, "nope"},
		{nil, jvm.Int, nil},
	}
	for _, tt := range tests {
		if got := Coerce(tt.in, tt.typ); got != tt.want {
			t.Errorf("Coerce(%#v, %s) = %#v, want %#v", tt.in, tt.typ, got, tt.want)
		}
	}
}
