package log

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observed(level zapcore.Level) (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return Wrap(zap.New(core)), logs
}

func TestFailureFields(t *testing.T) {
	l, logs := observed(zapcore.DebugLevel)
	l.Failure("install", "[com.example.app]", "com.example.Foo", "t", "void com.example.Foo.run()", errors.New("boom"))

	entries := logs.FilterMessage("hook failure").All()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.Level != zapcore.ErrorLevel {
		t.Errorf("level = %v", e.Level)
	}
	fields := e.ContextMap()
	for k, want := range map[string]string{
		"kind":   "install",
		"host":   "[com.example.app]",
		"class":  "com.example.Foo",
		"tag":    "t",
		"member": "void com.example.Foo.run()",
		"error":  "boom",
	} {
		if got := fields[k]; got != want {
			t.Errorf("%s = %v, want %q", k, got, want)
		}
	}
}

func TestFailureWithoutMember(t *testing.T) {
	l, logs := observed(zapcore.DebugLevel)
	l.Failure("class-not-found", "", "a.Missing", "", "", errors.New("gone"))
	if _, ok := logs.All()[0].ContextMap()["member"]; ok {
		t.Error("member field should be omitted when empty")
	}
}

func TestEventCallback(t *testing.T) {
	l, logs := observed(zapcore.DebugLevel)
	var got []string
	l.SetOnEvent(func(category, name, detail string) {
		got = append(got, category+"|"+name+"|"+detail)
	})

	l.Event("installed", "int a.B.f()", "tag")
	l.WithCategory("hook").Event("removed", "int a.B.f()", "tag")

	if len(got) != 2 || got[0] != "installed|int a.B.f()|tag" || got[1] != "removed|int a.B.f()|tag" {
		t.Errorf("events = %v", got)
	}
	if n := logs.FilterField(zap.String("cat", "hook")).Len(); n != 1 {
		t.Errorf("category entries = %d, want 1", n)
	}
}

func TestAdvisoryIsWarning(t *testing.T) {
	l, logs := observed(zapcore.WarnLevel)
	l.HookInstall("a.B", "int a.B.f()", "t", 50)
	l.Advisory("java.lang.Object", "dangerous")

	if logs.Len() != 1 {
		t.Fatalf("entries = %d, want only the advisory", logs.Len())
	}
	if e := logs.All()[0]; e.Message != "dangerous" || e.ContextMap()["class"] != "java.lang.Object" {
		t.Errorf("advisory = %+v", e)
	}
}

func TestGetBeforeInit(t *testing.T) {
	if Get() == nil {
		t.Fatal("Get returned nil")
	}
}
