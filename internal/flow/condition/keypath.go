package condition

import (
	"strings"

	"github.com/fossabot/authrim-sub007/internal/flow/models"
)

// Reserved path segments. Flow definitions and runtime context can both carry
// attacker-chosen strings; in the original JavaScript engine these segments
// pivoted into the object prototype chain. Go maps have no such chain, so the
// closed Context variant already makes the attack unexpressible for known
// sections - the denylist stays as defense-in-depth for the open-ended Ext
// sections and for config portability across engine implementations.
const (
	segmentProto       = "__proto__"
	segmentConstructor = "constructor"
	segmentPrototype   = "prototype"
)

// IsReservedSegment reports whether a single path segment is denylisted.
func IsReservedSegment(s string) bool {
	return s == segmentProto || s == segmentConstructor || s == segmentPrototype
}

// DangerousSegment returns the first reserved segment of path, if any.
// Callers that must surface a security event (the switch executor) check
// this before resolving; the evaluator itself just fails closed.
func DangerousSegment(path string) (string, bool) {
	for _, seg := range strings.Split(path, ".") {
		if IsReservedSegment(seg) {
			return seg, true
		}
	}
	return "", false
}

// ResolveKey walks a dotted path through the context one segment at a time.
// Any reserved segment aborts the walk. Descent only ever uses direct map
// lookup on the current value; a nil, missing, or non-object value at any
// point resolves to absent. The second return is false when the path does
// not resolve.
func ResolveKey(path string, ctx *models.Context) (any, bool) {
	if ctx == nil || path == "" {
		return nil, false
	}
	segments := strings.Split(path, ".")
	if IsReservedSegment(segments[0]) {
		return nil, false
	}
	section, ok := ctx.Section(segments[0])
	if !ok {
		return nil, false
	}
	if len(segments) == 1 {
		return section, true
	}

	var current any = map[string]any(section)
	for _, seg := range segments[1:] {
		if IsReservedSegment(seg) {
			return nil, false
		}
		obj, ok := asObject(current)
		if !ok {
			return nil, false
		}
		current, ok = obj[seg]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// asObject normalizes the map shapes a context value can take after JSON
// decoding or direct construction.
func asObject(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case models.Section:
		return map[string]any(m), true
	default:
		return nil, false
	}
}
