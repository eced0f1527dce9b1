package models

import (
	"encoding/json"

	dErrors "github.com/fossabot/authrim-sub007/pkg/domain-errors"
)

// Logic combines the members of a condition group.
type Logic string

const (
	LogicAnd Logic = "AND"
	LogicOr  Logic = "OR"
)

// Operator enumerates the comparison operators a predicate may use.
// Every operator is a total function over its inputs: evaluation maps
// malformed or oversized input to false, never to an error.
type Operator string

const (
	OpEquals         Operator = "equals"
	OpNotEquals      Operator = "notEquals"
	OpContains       Operator = "contains"
	OpNotContains    Operator = "notContains"
	OpStartsWith     Operator = "startsWith"
	OpEndsWith       Operator = "endsWith"
	OpMatches        Operator = "matches"
	OpGreaterThan    Operator = "greaterThan"
	OpLessThan       Operator = "lessThan"
	OpGreaterOrEqual Operator = "greaterOrEqual"
	OpLessOrEqual    Operator = "lessOrEqual"
	OpIn             Operator = "in"
	OpNotIn          Operator = "notIn"
	OpExists         Operator = "exists"
	OpNotExists      Operator = "notExists"
	OpIsTrue         Operator = "isTrue"
	OpIsFalse        Operator = "isFalse"
)

// Predicate is a single named comparison against the runtime Context.
// Key is a dotted path into the Context ("risk.score", "user.mfaEnrolled").
type Predicate struct {
	Key      string   `json:"key"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value,omitempty"`
}

// Group is a boolean tree of predicates combined with AND/OR. Groups nest
// arbitrarily in authoring; evaluation bounds the depth. An empty Conditions
// slice is valid and always evaluates to false, for both logics: an empty
// policy never selects a branch.
type Group struct {
	Logic      Logic       `json:"logic"`
	Conditions []Condition `json:"conditions"`
}

// Condition is one node of a condition tree: exactly one of Predicate or
// Group is non-nil. The closed two-variant shape is decided at decode time
// so evaluation never re-inspects raw maps.
type Condition struct {
	Predicate *Predicate
	Group     *Group
}

// conditionProbe sniffs which variant a raw condition object is. The
// authoring format distinguishes groups by the presence of "logic".
type conditionProbe struct {
	Logic *Logic `json:"logic"`
}

// UnmarshalJSON decodes either variant. Objects carrying "logic" decode as a
// group; everything else decodes as a predicate.
func (c *Condition) UnmarshalJSON(data []byte) error {
	var probe conditionProbe
	if err := json.Unmarshal(data, &probe); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "condition is not a JSON object")
	}
	if probe.Logic != nil {
		var g Group
		if err := json.Unmarshal(data, &g); err != nil {
			return dErrors.Wrap(err, dErrors.CodeValidation, "malformed condition group")
		}
		c.Group = &g
		c.Predicate = nil
		return nil
	}
	var p Predicate
	if err := json.Unmarshal(data, &p); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "malformed predicate")
	}
	c.Predicate = &p
	c.Group = nil
	return nil
}

// MarshalJSON emits the active variant in the authoring format.
func (c Condition) MarshalJSON() ([]byte, error) {
	if c.Group != nil {
		return json.Marshal(c.Group)
	}
	if c.Predicate != nil {
		return json.Marshal(c.Predicate)
	}
	return []byte("null"), nil
}
