package hook

import "github.com/zboralski/dexhook/internal/bridge"

// HookFunc is a before or after body.
type HookFunc func(p *Param) error

// ReplaceFunc is a replacement body; its value becomes the call result.
type ReplaceFunc func(p *Param) (any, error)

// Intercept is the interception an entry installs. It is one of Before,
// After, BeforeAndAfter or Replace.
type Intercept interface {
	Mode() bridge.Mode
	String() string
}

// Before runs Body ahead of the original member.
type Before struct{ Body HookFunc }

// After runs Body once the original member returned.
type After struct{ Body HookFunc }

// BeforeAndAfter wraps the original member on both sides.
type BeforeAndAfter struct{ Before, After HookFunc }

// Replace runs Body instead of the original member.
type Replace struct{ Body ReplaceFunc }

func (Before) Mode() bridge.Mode         { return bridge.ModeWrap }
func (After) Mode() bridge.Mode          { return bridge.ModeWrap }
func (BeforeAndAfter) Mode() bridge.Mode { return bridge.ModeWrap }
func (Replace) Mode() bridge.Mode        { return bridge.ModeReplace }

func (Before) String() string         { return "before" }
func (After) String() string          { return "after" }
func (BeforeAndAfter) String() string { return "before+after" }
func (Replace) String() string        { return "replace" }

// hooks splits a wrapping intercept into its two bodies.
func hooks(i Intercept) (before, after HookFunc) {
	switch x := i.(type) {
	case Before:
		return x.Body, nil
	case After:
		return nil, x.Body
	case BeforeAndAfter:
		return x.Before, x.After
	}
	return nil, nil
}

// withBefore sets the before body, keeping an existing after body. A
// replacement is discarded.
func withBefore(cur Intercept, fn HookFunc) Intercept {
	if _, after := hooks(cur); after != nil {
		return BeforeAndAfter{Before: fn, After: after}
	}
	return Before{Body: fn}
}

// withAfter sets the after body, keeping an existing before body. A
// replacement is discarded.
func withAfter(cur Intercept, fn HookFunc) Intercept {
	if before, _ := hooks(cur); before != nil {
		return BeforeAndAfter{Before: before, After: fn}
	}
	return After{Body: fn}
}
