package domain

import (
	"fmt"
	"strconv"
)

// Activity is one decoded value from the feed. Raw is only set for values
// read directly off the wire; sub-objects handed to classifier emissions carry
// just the decoded Value.
type Activity struct {
	Raw   []byte
	Value any
}

func (a Activity) Object() (map[string]any, bool) {
	obj, ok := a.Value.(map[string]any)
	return obj, ok
}

// Lookup walks nested objects. A missing key or a non-object along the path
// reports false instead of failing.
func (a Activity) Lookup(path ...string) (any, bool) {
	return lookup(a.Value, path...)
}

func lookup(value any, path ...string) (any, bool) {
	current := value
	for _, key := range path {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = obj[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// scalarString renders identifiers, which arrive as strings or numbers.
func scalarString(value any) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case bool:
		return strconv.FormatBool(v), true
	case fmt.Stringer:
		return v.String(), true
	default:
		return "", false
	}
}
