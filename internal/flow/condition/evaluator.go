// Package condition evaluates flow predicates and condition groups against a
// runtime context.
//
// The evaluator is deliberately total: no input - malformed, oversized,
// adversarial, or simply absent - ever produces an error or a panic. A
// predicate that cannot be evaluated safely is false. A crash inside
// predicate evaluation would either abort an in-progress login or, if
// mishandled by a caller, be caught and misread as "allow"; a safe boolean
// is strictly better than either.
package condition

import (
	"log/slog"
	"math"
	"reflect"
	"regexp"
	"strings"

	"github.com/fossabot/authrim-sub007/internal/flow/models"
)

// Evaluation limits. Predicates run on every authentication step of every
// user; each limit bounds the cost of a single predicate to a small constant.
const (
	// MaxRecursionDepth caps condition group nesting during evaluation.
	MaxRecursionDepth = 10
	// MaxStringLength caps strings fed to substring/prefix/suffix/regex tests.
	MaxStringLength = 10000
	// MaxArrayLength caps arrays fed to membership tests.
	MaxArrayLength = 1000
	// MaxRegexLength caps user-supplied match patterns.
	MaxRegexLength = 100
)

// Evaluator evaluates conditions against a context. It is stateless and safe
// for concurrent use; every call takes a fresh context and shares nothing.
type Evaluator struct {
	logger *slog.Logger
}

// Option configures the Evaluator.
type Option func(*Evaluator)

// WithLogger attaches a logger for debug-level diagnostics. Evaluation
// outcomes are never errors, so nothing above debug is emitted.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Evaluator) {
		e.logger = logger
	}
}

// New constructs an evaluator.
func New(opts ...Option) *Evaluator {
	e := &Evaluator{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate tests a condition tree against the context. It never returns an
// error: unresolvable or unsafe input fails closed to false.
func (e *Evaluator) Evaluate(cond models.Condition, ctx *models.Context) bool {
	// The root group sits at depth 1, so MaxRecursionDepth counts nested
	// group levels, not tree edges.
	return e.evaluateNode(cond, ctx, 1)
}

func (e *Evaluator) evaluateNode(cond models.Condition, ctx *models.Context, depth int) bool {
	if cond.Group != nil {
		return e.evaluateGroup(cond.Group, ctx, depth)
	}
	if cond.Predicate != nil {
		return e.evaluateSingle(cond.Predicate, ctx)
	}
	return false
}

// evaluateGroup combines member results under the group's logic. Groups
// nested past MaxRecursionDepth and groups with no members are false for
// both logics: an empty or unboundedly nested policy never authorizes.
func (e *Evaluator) evaluateGroup(g *models.Group, ctx *models.Context, depth int) bool {
	if depth > MaxRecursionDepth {
		if e.logger != nil {
			e.logger.Debug("condition group exceeded max depth", "depth", depth)
		}
		return false
	}
	if len(g.Conditions) == 0 {
		return false
	}
	switch g.Logic {
	case models.LogicAnd:
		for _, member := range g.Conditions {
			if !e.evaluateNode(member, ctx, depth+1) {
				return false
			}
		}
		return true
	case models.LogicOr:
		for _, member := range g.Conditions {
			if e.evaluateNode(member, ctx, depth+1) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// evaluateSingle resolves the predicate key and applies its operator. Every
// branch is total; see the package comment for why nothing here may fail
// with an error.
func (e *Evaluator) evaluateSingle(p *models.Predicate, ctx *models.Context) bool {
	if p.Operator == "" {
		return false
	}

	subject, found := ResolveKey(p.Key, ctx)

	switch p.Operator {
	case models.OpExists:
		return found
	case models.OpNotExists:
		return !found

	case models.OpEquals:
		return looseEqual(subject, p.Value)
	case models.OpNotEquals:
		return !looseEqual(subject, p.Value)

	case models.OpContains:
		hit, ok := containment(subject, p.Value)
		return ok && hit
	case models.OpNotContains:
		hit, ok := containment(subject, p.Value)
		return ok && !hit

	case models.OpStartsWith:
		s, v, ok := stringPair(subject, p.Value)
		return ok && strings.HasPrefix(s, v)
	case models.OpEndsWith:
		s, v, ok := stringPair(subject, p.Value)
		return ok && strings.HasSuffix(s, v)

	case models.OpMatches:
		return matches(subject, p.Value)

	case models.OpGreaterThan:
		a, b, ok := numericPair(subject, p.Value)
		return ok && a > b
	case models.OpLessThan:
		a, b, ok := numericPair(subject, p.Value)
		return ok && a < b
	case models.OpGreaterOrEqual:
		a, b, ok := numericPair(subject, p.Value)
		return ok && a >= b
	case models.OpLessOrEqual:
		a, b, ok := numericPair(subject, p.Value)
		return ok && a <= b

	case models.OpIn:
		list, ok := p.Value.([]any)
		if !ok || len(list) > MaxArrayLength {
			return false
		}
		return memberOf(subject, list)
	case models.OpNotIn:
		list, ok := p.Value.([]any)
		if !ok {
			// A negative test against a malformed list fails toward
			// "not restricted", the safer default for notIn.
			return true
		}
		if len(list) > MaxArrayLength {
			return false
		}
		return !memberOf(subject, list)

	case models.OpIsTrue:
		b, ok := subject.(bool)
		return ok && b
	case models.OpIsFalse:
		b, ok := subject.(bool)
		return ok && !b

	default:
		return false
	}
}

// containment implements substring test for strings and membership for
// arrays, both under their respective size limits. The second return is
// false when the subject is neither, or a limit is exceeded, so both
// contains and notContains fail closed on unusable input.
func containment(subject, value any) (hit bool, ok bool) {
	switch s := subject.(type) {
	case string:
		v, isStr := value.(string)
		if !isStr || len(s) > MaxStringLength || len(v) > MaxStringLength {
			return false, false
		}
		return strings.Contains(s, v), true
	case []any:
		if len(s) > MaxArrayLength {
			return false, false
		}
		return memberOf(value, s), true
	default:
		return false, false
	}
}

// matches compiles the predicate's pattern and tests the subject. Oversized
// or denylisted patterns, uncompilable patterns, and non-string subjects are
// all false.
func matches(subject, value any) bool {
	pattern, ok := value.(string)
	if !ok || len(pattern) > MaxRegexLength || unsafePattern(pattern) {
		return false
	}
	s, ok := subject.(string)
	if !ok || len(s) > MaxStringLength {
		return false
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(s)
}

func memberOf(needle any, haystack []any) bool {
	for _, candidate := range haystack {
		if looseEqual(needle, candidate) {
			return true
		}
	}
	return false
}

// stringPair asserts both operands are strings within the size limit.
func stringPair(subject, value any) (string, string, bool) {
	s, ok := subject.(string)
	if !ok || len(s) > MaxStringLength {
		return "", "", false
	}
	v, ok := value.(string)
	if !ok || len(v) > MaxStringLength {
		return "", "", false
	}
	return s, v, true
}

// numericPair converts both operands to float64, rejecting non-numbers, NaN
// and infinities. Risk scores and claims arriving from external systems must
// not satisfy a threshold by being NaN or Inf.
func numericPair(subject, value any) (float64, float64, bool) {
	a, ok := toFloat(subject)
	if !ok {
		return 0, 0, false
	}
	b, ok := toFloat(value)
	if !ok {
		return 0, 0, false
	}
	return a, b, true
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Equal reports value equality under the evaluator's comparison semantics.
// Exported so switch-case matching in the executor agrees exactly with
// predicate equality.
func Equal(a, b any) bool {
	return looseEqual(a, b)
}

// looseEqual compares two values, normalizing numeric types first: a
// definition authored with 80 must match a context carrying 80.0 after JSON
// decoding. Everything else compares structurally; incomparable values are
// simply unequal.
func looseEqual(a, b any) bool {
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		return ok && af == bf
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return reflect.DeepEqual(a, b)
}
