package finder

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSuchMember is the sentinel for queries that matched nothing.
	ErrNoSuchMember = errors.New("no such member")
	// ErrIndexOutOfRange is the sentinel for index selectors past the match count.
	ErrIndexOutOfRange = errors.New("member index out of range")
)

// NoSuchMemberError carries the query that matched zero candidates.
type NoSuchMemberError struct {
	Class string
	Query Query
}

func (e *NoSuchMemberError) Error() string {
	return fmt.Sprintf("no %s matching %s in class %s", e.Query.kind, e.Query, e.Class)
}

func (e *NoSuchMemberError) Is(target error) bool { return target == ErrNoSuchMember }

// IndexOutOfRangeError is returned when an index selector exceeds the
// number of structural matches.
type IndexOutOfRangeError struct {
	Class string
	Query Query
	Count int
}

func (e *IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("index %d out of range for %d matches of %s in class %s", e.Query.index, e.Count, e.Query, e.Class)
}

func (e *IndexOutOfRangeError) Is(target error) bool { return target == ErrIndexOutOfRange }
