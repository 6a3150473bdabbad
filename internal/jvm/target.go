package jvm

import (
	"errors"
	"fmt"
)

// ErrInvalidTarget is returned when a modifier check runs against a value
// that is neither a class nor a member.
var ErrInvalidTarget = errors.New("invalid reflection target")

// InvalidTargetError carries the offending value's type.
type InvalidTargetError struct {
	Type string
}

func (e *InvalidTargetError) Error() string {
	return fmt.Sprintf("invalid reflection target: %s is neither a class nor a member", e.Type)
}

func (e *InvalidTargetError) Is(target error) bool { return target == ErrInvalidTarget }

// Target is anything exposing a modifier bitset.
type Target interface {
	Modifiers() Modifier
}

// TypeTarget is the class variant of a reflective target.
type TypeTarget struct{ Class *Class }

func (t TypeTarget) Modifiers() Modifier { return t.Class.Modifiers() }

// MemberTarget is the member variant of a reflective target.
type MemberTarget struct{ Member Member }

func (t MemberTarget) Modifiers() Modifier { return t.Member.Modifiers() }

// TargetOf classifies v as a TypeTarget or MemberTarget.
func TargetOf(v any) (Target, error) {
	switch x := v.(type) {
	case TypeTarget:
		if x.Class != nil {
			return x, nil
		}
	case MemberTarget:
		if x.Member != nil {
			return x, nil
		}
	case *Class:
		if x != nil {
			return TypeTarget{Class: x}, nil
		}
	case Member:
		if x != nil {
			return MemberTarget{Member: x}, nil
		}
	}
	return nil, &InvalidTargetError{Type: fmt.Sprintf("%T", v)}
}
