// Package script runs JavaScript callback bodies through goja.
//
// A script is a statement list evaluated with a global "param" object
// describing the intercepted call. Every run gets a fresh global scope. The value of the last expression is
// the replacement result when the script is used as a replace body.
//
//	param.arg(i), param.setArg(i, v), param.args()
//	param.result(), param.setResult(v), param.throw(msg)
//	param.instance, param.member, param.tag
package script

import (
	"errors"
	"fmt"
	"time"

	"github.com/dop251/goja"

	"github.com/zboralski/dexhook/internal/bridge"
	"github.com/zboralski/dexhook/internal/hook"
	"github.com/zboralski/dexhook/internal/jvm"
)

// ErrTimeout is returned when a script exceeded its time budget.
var ErrTimeout = errors.New("script timed out")

// Script is a compiled body. It is safe for concurrent use: the program is
// shared and every run gets its own goja runtime, so globals declared by
// one run are never seen by the next.
type Script struct {
	name    string
	prog    *goja.Program
	timeout time.Duration
}

// Compile parses src. name appears in error messages.
func Compile(name, src string) (*Script, error) {
	prog, err := goja.Compile(name, src, true)
	if err != nil {
		return nil, fmt.Errorf("compile script %s: %w", name, err)
	}
	return &Script{name: name, prog: prog}, nil
}

// MustCompile is Compile that panics on error.
func MustCompile(name, src string) *Script {
	s, err := Compile(name, src)
	if err != nil {
		panic(err)
	}
	return s
}

// WithTimeout bounds each run. Zero disables the bound.
func (s *Script) WithTimeout(d time.Duration) *Script {
	s.timeout = d
	return s
}

// Name returns the script name.
func (s *Script) Name() string { return s.name }

// call is the view of an intercepted call a script operates on.
type call interface {
	Member() jvm.Member
	Instance() any
	Args() []any
	SetArg(i int, v any) bool
	Result() any
	SetResult(v any)
	SetErr(err error)
}

// Hook returns the script as a before or after body.
func (s *Script) Hook() hook.HookFunc {
	return func(p *hook.Param) error {
		_, err := s.run(p, p.Tag())
		return err
	}
}

// Replace returns the script as a replace body.
func (s *Script) Replace() hook.ReplaceFunc {
	return func(p *hook.Param) (any, error) {
		v, err := s.run(p, p.Tag())
		if err != nil {
			return nil, err
		}
		return ReturnValue(p.Member(), v), nil
	}
}

// Body returns the script as the original implementation of a member.
func (s *Script) Body() bridge.Body {
	return func(f *bridge.Frame) (any, error) {
		v, err := s.run(frameCall{f}, "")
		if err != nil {
			return nil, err
		}
		if f.Returned() {
			return f.Result(), f.Err()
		}
		return ReturnValue(f.Member(), v), nil
	}
}

func (s *Script) run(c call, tag string) (v any, err error) {
	vm := goja.New()
	if s.timeout > 0 {
		t := time.AfterFunc(s.timeout, func() { vm.Interrupt(ErrTimeout) })
		defer t.Stop()
	}

	if err := vm.Set("param", bind(vm, c, tag)); err != nil {
		return nil, fmt.Errorf("script %s: %w", s.name, err)
	}
	res, err := vm.RunProgram(s.prog)
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return nil, fmt.Errorf("script %s: %w", s.name, ErrTimeout)
		}
		return nil, fmt.Errorf("script %s: %w", s.name, err)
	}
	if res == nil || goja.IsUndefined(res) || goja.IsNull(res) {
		return nil, nil
	}
	return res.Export(), nil
}

// bind builds the param object for one run.
func bind(vm *goja.Runtime, c call, tag string) *goja.Object {
	m := c.Member()
	var params []*jvm.Class
	if e, ok := m.(jvm.Executable); ok {
		params = e.ParameterTypes()
	}

	o := vm.NewObject()
	o.Set("member", m.String())
	o.Set("tag", tag)
	o.Set("instance", c.Instance())
	o.Set("args", func() []any { return c.Args() })
	o.Set("arg", func(i int) any {
		args := c.Args()
		if i < 0 || i >= len(args) {
			return nil
		}
		return args[i]
	})
	o.Set("setArg", func(i int, v goja.Value) bool {
		var t *jvm.Class
		if i >= 0 && i < len(params) {
			t = params[i]
		}
		return c.SetArg(i, Coerce(export(v), t))
	})
	o.Set("result", func() any { return c.Result() })
	o.Set("setResult", func(v goja.Value) {
		c.SetResult(ReturnValue(m, export(v)))
	})
	o.Set("throw", func(msg string) {
		c.SetErr(errors.New(msg))
	})
	return o
}

func export(v goja.Value) any {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	return v.Export()
}

// ReturnValue coerces v to the return type of m when m is a method.
func ReturnValue(m jvm.Member, v any) any {
	if meth, ok := m.(*jvm.Method); ok {
		return Coerce(v, meth.ReturnType())
	}
	return v
}

// frameCall adapts a raw frame, used for original bodies.
type frameCall struct{ f *bridge.Frame }

func (c frameCall) Member() jvm.Member { return c.f.Member() }
func (c frameCall) Instance() any      { return c.f.This }
func (c frameCall) Args() []any        { return c.f.Args }
func (c frameCall) Result() any        { return c.f.Result() }
func (c frameCall) SetResult(v any)    { c.f.SetResult(v) }
func (c frameCall) SetErr(err error)   { c.f.SetErr(err) }

func (c frameCall) SetArg(i int, v any) bool {
	if i < 0 || i >= len(c.f.Args) {
		return false
	}
	c.f.Args[i] = v
	return true
}
