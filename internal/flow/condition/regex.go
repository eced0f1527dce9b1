package condition

import "regexp"

// Static rejection of regex shapes with catastrophic backtracking potential.
//
// Go's regexp is RE2-based and matches in linear time, so these shapes are
// not exploitable here; the denylist is kept so a flow definition accepted by
// this engine stays safe when evaluated by backtracking engines, and as a
// second line if the matcher ever changes. It is a best-effort shape check,
// not a proof of safety.
var unsafePatternShapes = []*regexp.Regexp{
	// Nested quantifiers: (a+)+, (.*)* and friends.
	regexp.MustCompile(`\([^)]*[+*]\)[+*{]`),
	// Quantified alternation: (a|ab)*.
	regexp.MustCompile(`\([^)|]*\|[^)]*\)[+*{]`),
	// Quantified lookaround: (?=a)+ and variants. RE2 rejects lookaround at
	// compile time anyway; checked here so the reason is a policy decision
	// rather than a compile failure.
	regexp.MustCompile(`\(\?<?[=!][^)]*\)[+*{]`),
}

// unsafePattern reports whether a user-supplied pattern matches the denylist
// of dangerous constructs.
func unsafePattern(pattern string) bool {
	for _, shape := range unsafePatternShapes {
		if shape.MatchString(pattern) {
			return true
		}
	}
	return false
}
