package callback

import "errors"

// Coercer turns returned values into UI elements for content properties.
type Coercer interface {
	// IsContentProperty reports whether property holds free-form content.
	IsContentProperty(property string) bool
	// CoerceOutput converts v for the output dep. Values it does not
	// recognize are returned unchanged.
	CoerceOutput(dep Dependency, v any) any
}

type passthrough struct{}

func (passthrough) IsContentProperty(string) bool        { return false }
func (passthrough) CoerceOutput(_ Dependency, v any) any { return v }

// Passthrough never coerces.
var Passthrough Coercer = passthrough{}

type noUpdate struct{}

func (noUpdate) String() string { return "<no update>" }

// NoUpdate may be returned for any output leaf, or as the whole result, to
// leave the corresponding properties untouched.
var NoUpdate any = noUpdate{}

// IsNoUpdate reports whether v is the NoUpdate marker.
func IsNoUpdate(v any) bool {
	_, ok := v.(noUpdate)
	return ok
}

// ErrPreventUpdate aborts a call without updating any output. It is returned
// from Handle unchanged (possibly wrapped).
var ErrPreventUpdate = errors.New("callback: prevent update")
