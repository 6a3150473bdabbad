package plan

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zboralski/dexhook/internal/bridge"
	"github.com/zboralski/dexhook/internal/finder"
	"github.com/zboralski/dexhook/internal/hook"
	"github.com/zboralski/dexhook/internal/jvm"
	"github.com/zboralski/dexhook/internal/log"
)

const calcPlan = `
debug: false
host: com.example.app
implement:
  - class: com.example.Calc
    method: add
    params: [int, int]
    body: param.arg(0) + param.arg(1)
  - class: com.example.Calc
    method: isPositive
    params: [int]
    body: param.arg(0) > 0
targets:
  - class: com.example.Calc
    members:
      - tag: double-first
        method: {name: add, params: ["*", I]}
        before: param.setArg(0, param.arg(0) * 2)
      - tag: always
        method:
          name: isPositive
          modifiers: [public, static]
        replace_to: true
  - class: com.example.Missing
    by_class_found: true
    members:
      - all: true
        intercept: true
invoke:
  - class: com.example.Calc
    method: add
    params: [int, int]
    args: [3, 4]
  - class: com.example.Calc
    method: isPositive
    args: [-5]
  - class: com.example.Calc
    method: nope
`

func calcLoader(t *testing.T) *jvm.Loader {
	t.Helper()
	l := jvm.NewLoader(nil)
	c := jvm.NewClass("com.example.Calc", jvm.Public, nil)
	c.AddMethod("add", jvm.Public|jvm.Static, jvm.Int, jvm.Int, jvm.Int)
	c.AddMethod("isPositive", jvm.Public|jvm.Static, jvm.Boolean, jvm.Int)
	if _, err := l.Define(c); err != nil {
		t.Fatal(err)
	}
	return l
}

func TestParseAndRun(t *testing.T) {
	p, err := Parse([]byte(calcPlan))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.Host != "com.example.app" || len(p.Targets) != 2 || len(p.Invoke) != 3 {
		t.Fatalf("unexpected plan: %+v", p)
	}

	loader := calcLoader(t)
	rt := bridge.NewRuntime()
	f := finder.New()
	reg := hook.NewRegistry(rt, hook.WithFinder(f), hook.WithLogger(log.NewNop()))

	if err := p.Implementations(rt, f, loader); err != nil {
		t.Fatalf("Implementations: %v", err)
	}
	sessions, err := p.Apply(reg, loader)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("sessions = %d", len(sessions))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := reg.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	if reg.Count() != 2 {
		t.Errorf("installed = %d, want 2", reg.Count())
	}

	calls, err := p.Run(ctx, rt, f, loader)
	if err != nil {
		t.Fatal(err)
	}
	if calls[0].Err != nil || calls[0].Result != 10 {
		t.Errorf("add(3, 4) = %v, %v; want 10", calls[0].Result, calls[0].Err)
	}
	if calls[1].Result != true {
		t.Errorf("isPositive(-5) = %v, want replaced true", calls[1].Result)
	}
	if !errors.Is(calls[2].Err, finder.ErrNoSuchMember) {
		t.Errorf("nope err = %v", calls[2].Err)
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("targets:\n  - class: a.B\n    memberz: []\n"))
	if err == nil || !strings.Contains(err.Error(), "memberz") {
		t.Errorf("err = %v, want unknown field error", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"no selection", "targets:\n  - class: a.B\n    members:\n      - tag: x\n", "exactly one of"},
		{"two selections", "targets:\n  - class: a.B\n    members:\n      - all: true\n        method: {name: f}\n", "exactly one of"},
		{"replace and before", "targets:\n  - class: a.B\n    members:\n      - all: true\n        replace: '1'\n        before: '2'\n", "cannot be combined"},
		{"two replacements", "targets:\n  - class: a.B\n    members:\n      - all: true\n        intercept: true\n        replace_to: 1\n", "exclusive"},
		{"no class", "targets:\n  - members:\n      - all: true\n", "class is required"},
		{"no members", "targets:\n  - class: a.B\n", "no members"},
		{"implement body", "implement:\n  - class: a.B\n    method: f\n", "required"},
	}
	for _, tt := range tests {
		_, err := Parse([]byte(tt.doc))
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Errorf("%s: err = %v, want %q", tt.name, err, tt.want)
		}
	}
}

func TestReplaceToNull(t *testing.T) {
	p, err := Parse([]byte("targets:\n  - class: a.B\n    members:\n      - all: true\n        replace_to: null\n"))
	if err != nil {
		t.Fatal(err)
	}
	m := p.Targets[0].Members[0]
	if !m.HasReplaceTo() {
		t.Fatal("replace_to: null should count as set")
	}
	if v, err := m.ReplaceValue(); err != nil || v != nil {
		t.Errorf("ReplaceValue = %v, %v; want nil", v, err)
	}
}

func TestQuerySpecBuild(t *testing.T) {
	depth := 1
	q, err := (&QuerySpec{Name: "f", Params: []string{"Ljava/lang/String;", "*"}, Depth: &depth}).Build(jvm.KindMethod)
	if err != nil {
		t.Fatal(err)
	}
	want := `method {name:"f" params:(java.lang.String,*) superclass:1}`
	if q.String() != want {
		t.Errorf("query = %s, want %s", q, want)
	}

	if _, err := (&QuerySpec{Modifiers: []string{"sealed"}}).Build(jvm.KindMethod); err == nil {
		t.Error("unknown modifier should be rejected")
	}

	q, _ = (*QuerySpec)(nil).Build(jvm.KindConstructor)
	if params := q.Params(); len(params) != 0 {
		t.Errorf("default constructor query params = %v", params)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	if err := os.WriteFile(path, []byte(calcPlan), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load should fail for a missing file")
	}
}

func TestApplyScriptError(t *testing.T) {
	p, err := Parse([]byte("targets:\n  - class: a.B\n    members:\n      - all: true\n        before: 'param.arg(('\n"))
	if err != nil {
		t.Fatal(err)
	}
	reg := hook.NewRegistry(bridge.NewRuntime(), hook.WithLogger(log.NewNop()))
	if _, err := p.Apply(reg, jvm.NewLoader(nil)); err == nil {
		t.Fatal("Apply should fail on a script that does not compile")
	}
	if len(reg.Sessions()) != 0 {
		t.Error("nothing may be declared when a script fails")
	}
}
