package models

// Section is one named bag of signals inside a Context. Values are arbitrary
// JSON-shaped data (scalars, []any, map[string]any) supplied by the context
// builder; the engine treats them as untrusted and read-only.
type Section map[string]any

// Context is the per-attempt snapshot of signals that flow conditions are
// evaluated against. It is built fresh for every authentication step by the
// context builder and never retained by the engine beyond a single call.
//
// The known sections form a closed set so a condition key can only reach data
// the builder deliberately put there. Ext carries integration-specific
// sections (e.g. claims copied from an upstream IdP); because those are
// open-ended, the evaluator applies its reserved-key checks on every path
// segment as defense-in-depth.
type Context struct {
	User      Section
	Device    Section
	Request   Section
	Risk      Section
	Form      Section
	PrevNode  Section
	Variables Section
	Ext       map[string]Section
}

// Known top-level section names.
const (
	SectionUser      = "user"
	SectionDevice    = "device"
	SectionRequest   = "request"
	SectionRisk      = "risk"
	SectionForm      = "form"
	SectionPrevNode  = "prevNode"
	SectionVariables = "variables"
)

// Section returns the named top-level section. Known names dispatch through
// the closed set; anything else is looked up in Ext. The second return is
// false when the section does not exist.
func (c *Context) Section(name string) (Section, bool) {
	if c == nil {
		return nil, false
	}
	switch name {
	case SectionUser:
		return c.User, c.User != nil
	case SectionDevice:
		return c.Device, c.Device != nil
	case SectionRequest:
		return c.Request, c.Request != nil
	case SectionRisk:
		return c.Risk, c.Risk != nil
	case SectionForm:
		return c.Form, c.Form != nil
	case SectionPrevNode:
		return c.PrevNode, c.PrevNode != nil
	case SectionVariables:
		return c.Variables, c.Variables != nil
	}
	s, ok := c.Ext[name]
	return s, ok
}
