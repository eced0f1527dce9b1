package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fossabot/authrim-sub007/internal/flow/compiler"
	"github.com/fossabot/authrim-sub007/internal/flow/condition"
	"github.com/fossabot/authrim-sub007/internal/flow/models"
)

type capturedSecurityEvents struct {
	rejected []string
}

func (c *capturedSecurityEvents) DangerousKeyRejected(nodeID, key, segment string) {
	c.rejected = append(c.rejected, nodeID+"/"+key+"/"+segment)
}

func newExecutor(opts ...Option) *Executor {
	return New(condition.New(), opts...)
}

// riskGatePlan compiles the risk-score decision scenario:
// branches {>70 -> step-up (p1)}, {>30 -> otp (p2)}, {<=30 -> done (p3)},
// optional default branch -> review.
func riskGatePlan(t *testing.T, withDefault bool) *models.CompiledPlan {
	t.Helper()
	config := map[string]any{
		"branches": []any{
			map[string]any{
				"id": "high", "priority": 1,
				"condition": map[string]any{"key": "risk.score", "operator": "greaterThan", "value": 70},
			},
			map[string]any{
				"id": "medium", "priority": 2,
				"condition": map[string]any{"key": "risk.score", "operator": "greaterThan", "value": 30},
			},
			map[string]any{
				"id": "low", "priority": 3,
				"condition": map[string]any{"key": "risk.score", "operator": "lessOrEqual", "value": 30},
			},
		},
	}
	if withDefault {
		config["defaultBranch"] = "fallback"
	}

	def := models.GraphDefinition{
		ID: "risk-routing",
		Nodes: []models.Node{
			{ID: "gate", Type: models.NodeTypeDecision, Data: models.NodeData{Config: config}},
			{ID: "step-up", Type: "webauthn"},
			{ID: "otp", Type: "otp"},
			{ID: "done", Type: "complete"},
			{ID: "review", Type: "manual_review"},
		},
		Edges: []models.Edge{
			{ID: "e1", Source: "gate", Target: "step-up", Type: models.EdgeTypeConditional, SourceHandle: "high"},
			{ID: "e2", Source: "gate", Target: "otp", Type: models.EdgeTypeConditional, SourceHandle: "medium"},
			{ID: "e3", Source: "gate", Target: "done", Type: models.EdgeTypeConditional, SourceHandle: "low"},
			{ID: "e4", Source: "gate", Target: "review", Type: models.EdgeTypeConditional, SourceHandle: "fallback"},
		},
	}

	plan, err := compiler.Compile(def)
	require.NoError(t, err)
	return plan
}

func TestResolveNext_DecisionScenario(t *testing.T) {
	exec := newExecutor()
	plan := riskGatePlan(t, false)
	gate := plan.Nodes["gate"]

	tests := []struct {
		name  string
		score any
		want  string
	}{
		{"high risk routes to step-up", 80.0, "step-up"},
		{"medium risk routes to otp", 50.0, "otp"},
		{"low risk completes", 10.0, "done"},
		{"boundary 70 is medium", 70.0, "otp"},
		{"boundary 30 is low", 30.0, "done"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := &models.Context{Risk: models.Section{"score": tt.score}}
			assert.Equal(t, tt.want, exec.ResolveNext(gate, plan, ctx))
		})
	}
}

func TestResolveNext_DecisionFallback(t *testing.T) {
	exec := newExecutor()
	gateNoDefault := riskGatePlan(t, false)
	gateDefault := riskGatePlan(t, true)

	// Score absent: every branch fails closed.
	ctx := &models.Context{Risk: models.Section{}}

	assert.Equal(t, "", gateNext(exec, gateNoDefault, ctx),
		"no match and no default resolves to no destination")
	assert.Equal(t, "review", gateNext(exec, gateDefault, ctx),
		"no match falls back to the default branch target")
}

func gateNext(exec *Executor, plan *models.CompiledPlan, ctx *models.Context) string {
	return exec.ResolveNext(plan.Nodes["gate"], plan, ctx)
}

func TestResolveNext_PriorityOrderWins(t *testing.T) {
	exec := newExecutor()

	// Three branches whose conditions are all true: the lowest priority
	// number must win, regardless of authoring order.
	def := models.GraphDefinition{
		ID: "priority",
		Nodes: []models.Node{
			{ID: "gate", Type: models.NodeTypeDecision, Data: models.NodeData{Config: map[string]any{
				"branches": []any{
					map[string]any{"id": "p3", "priority": 3,
						"condition": map[string]any{"key": "risk.score", "operator": "exists"}},
					map[string]any{"id": "p1", "priority": 1,
						"condition": map[string]any{"key": "risk.score", "operator": "exists"}},
					map[string]any{"id": "p2", "priority": 2,
						"condition": map[string]any{"key": "risk.score", "operator": "exists"}},
				},
			}}},
			{ID: "t1", Type: "x"}, {ID: "t2", Type: "x"}, {ID: "t3", Type: "x"},
		},
		Edges: []models.Edge{
			{ID: "e1", Source: "gate", Target: "t1", Type: models.EdgeTypeConditional, SourceHandle: "p1"},
			{ID: "e2", Source: "gate", Target: "t2", Type: models.EdgeTypeConditional, SourceHandle: "p2"},
			{ID: "e3", Source: "gate", Target: "t3", Type: models.EdgeTypeConditional, SourceHandle: "p3"},
		},
	}
	plan, err := compiler.Compile(def)
	require.NoError(t, err)

	ctx := &models.Context{Risk: models.Section{"score": 1.0}}
	assert.Equal(t, "t1", exec.ResolveNext(plan.Nodes["gate"], plan, ctx))
}

func countryPlan(t *testing.T) *models.CompiledPlan {
	t.Helper()
	def := models.GraphDefinition{
		ID: "country-routing",
		Nodes: []models.Node{
			{ID: "router", Type: models.NodeTypeSwitch, Data: models.NodeData{Config: map[string]any{
				"switchKey": "request.country",
				"cases": []any{
					map[string]any{"id": "case_us", "values": []any{"US", "USA"}},
					map[string]any{"id": "case_eu", "values": []any{"DE", "FR", "UK"}},
				},
				"defaultCase": "case_other",
			}}},
			{ID: "us_action", Type: "x"},
			{ID: "eu_action", Type: "x"},
			{ID: "other_action", Type: "x"},
		},
		Edges: []models.Edge{
			{ID: "e1", Source: "router", Target: "us_action", Type: models.EdgeTypeConditional, SourceHandle: "case_us"},
			{ID: "e2", Source: "router", Target: "eu_action", Type: models.EdgeTypeConditional, SourceHandle: "case_eu"},
			{ID: "e3", Source: "router", Target: "other_action", Type: models.EdgeTypeConditional, SourceHandle: "case_other"},
		},
	}
	plan, err := compiler.Compile(def)
	require.NoError(t, err)
	return plan
}

func TestResolveNext_SwitchScenario(t *testing.T) {
	exec := newExecutor()
	plan := countryPlan(t)
	router := plan.Nodes["router"]

	tests := []struct {
		name    string
		request models.Section
		want    string
	}{
		{"first case value", models.Section{"country": "US"}, "us_action"},
		{"second case value", models.Section{"country": "USA"}, "us_action"},
		{"eu member", models.Section{"country": "DE"}, "eu_action"},
		{"unmatched value takes default", models.Section{"country": "AU"}, "other_action"},
		{"missing key takes default", models.Section{}, "other_action"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := &models.Context{Request: tt.request}
			assert.Equal(t, tt.want, exec.ResolveNext(router, plan, ctx))
		})
	}
}

func TestResolveNext_SwitchWithoutDefaultStalls(t *testing.T) {
	exec := newExecutor()
	def := models.GraphDefinition{
		ID: "no-default",
		Nodes: []models.Node{
			{ID: "router", Type: models.NodeTypeSwitch, Data: models.NodeData{Config: map[string]any{
				"switchKey": "request.country",
				"cases": []any{
					map[string]any{"id": "case_us", "values": []any{"US"}},
				},
			}}},
			{ID: "us_action", Type: "x"},
		},
		Edges: []models.Edge{
			{ID: "e1", Source: "router", Target: "us_action", Type: models.EdgeTypeConditional, SourceHandle: "case_us"},
		},
	}
	plan, err := compiler.Compile(def)
	require.NoError(t, err)

	ctx := &models.Context{Request: models.Section{"country": "AU"}}
	assert.Equal(t, "", exec.ResolveNext(plan.Nodes["router"], plan, ctx))
}

func TestResolveNext_DangerousSwitchKey(t *testing.T) {
	events := &capturedSecurityEvents{}
	exec := newExecutor(WithSecurityEvents(events))

	def := models.GraphDefinition{
		ID: "hostile-key",
		Nodes: []models.Node{
			{ID: "router", Type: models.NodeTypeSwitch, Data: models.NodeData{Config: map[string]any{
				"switchKey": "user.__proto__.role",
				"cases": []any{
					map[string]any{"id": "case_admin", "values": []any{"admin"}},
				},
				"defaultCase": "case_other",
			}}},
			{ID: "admin_action", Type: "x"},
			{ID: "other_action", Type: "x"},
		},
		Edges: []models.Edge{
			{ID: "e1", Source: "router", Target: "admin_action", Type: models.EdgeTypeConditional, SourceHandle: "case_admin"},
			{ID: "e2", Source: "router", Target: "other_action", Type: models.EdgeTypeConditional, SourceHandle: "case_other"},
		},
	}
	plan, err := compiler.Compile(def)
	require.NoError(t, err)

	ctx := &models.Context{User: models.Section{"role": "admin"}}
	// Resolution aborts to absent and falls through to the default case.
	assert.Equal(t, "other_action", exec.ResolveNext(plan.Nodes["router"], plan, ctx))

	// The rejection is surfaced as a security event, not silently ignored.
	require.Len(t, events.rejected, 1)
	assert.Equal(t, "router/user.__proto__.role/__proto__", events.rejected[0])
}

func TestResolveNext_PlainNodeFollowsFixedEdges(t *testing.T) {
	exec := newExecutor()
	def := models.GraphDefinition{
		ID: "plain",
		Nodes: []models.Node{
			{ID: "password", Type: "password"},
			{ID: "done", Type: "complete"},
			{ID: "failed", Type: "failure"},
		},
		Edges: []models.Edge{
			{ID: "e1", Source: "password", Target: "done", Type: models.EdgeTypeSuccess},
			{ID: "e2", Source: "password", Target: "failed", Type: models.EdgeTypeError},
		},
	}
	plan, err := compiler.Compile(def)
	require.NoError(t, err)

	node := plan.Nodes["password"]
	assert.Equal(t, "done", exec.ResolveNext(node, plan, &models.Context{}))
	assert.Equal(t, "failed", exec.ResolveError(node))
}

func TestResolveNext_Idempotent(t *testing.T) {
	exec := newExecutor()
	plan := riskGatePlan(t, true)
	gate := plan.Nodes["gate"]
	ctx := &models.Context{Risk: models.Section{"score": 80.0}}

	first := exec.ResolveNext(gate, plan, ctx)
	second := exec.ResolveNext(gate, plan, ctx)
	assert.Equal(t, first, second)
	assert.Equal(t, "step-up", first)

	// The call must not have mutated the plan or the context.
	assert.Equal(t, 80.0, ctx.Risk["score"])
	assert.Len(t, plan.Nodes["gate"].Decision.Branches, 3)
}

func TestResolveNext_MatchedBranchWithoutTransition(t *testing.T) {
	exec := newExecutor()
	def := models.GraphDefinition{
		ID: "dead-branch",
		Nodes: []models.Node{
			{ID: "gate", Type: models.NodeTypeDecision, Data: models.NodeData{Config: map[string]any{
				"branches": []any{
					map[string]any{"id": "dead", "priority": 1,
						"condition": map[string]any{"key": "risk.score", "operator": "exists"}},
					map[string]any{"id": "live", "priority": 2,
						"condition": map[string]any{"key": "risk.score", "operator": "exists"}},
				},
			}}},
			{ID: "next", Type: "x"},
		},
		Edges: []models.Edge{
			{ID: "e1", Source: "gate", Target: "next", Type: models.EdgeTypeConditional, SourceHandle: "live"},
		},
	}
	plan, err := compiler.Compile(def)
	require.NoError(t, err)
	require.NotEmpty(t, plan.Warnings, "dead branch is flagged at compile time")

	// The dead branch matches first but behaves as a non-match at runtime.
	ctx := &models.Context{Risk: models.Section{"score": 1.0}}
	assert.Equal(t, "next", exec.ResolveNext(plan.Nodes["gate"], plan, ctx))
}
