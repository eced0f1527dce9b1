package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/fossabot/authrim-sub007/internal/flow/cache"
	"github.com/fossabot/authrim-sub007/internal/flow/executor"
	"github.com/fossabot/authrim-sub007/internal/flow/models"
	"github.com/fossabot/authrim-sub007/internal/flow/store/definition"
	sessionstore "github.com/fossabot/authrim-sub007/internal/flow/store/session"
	id "github.com/fossabot/authrim-sub007/pkg/domain"
	dErrors "github.com/fossabot/authrim-sub007/pkg/domain-errors"
	"github.com/fossabot/authrim-sub007/pkg/platform/audit"
)

// capturingPublisher records published audit events for assertions.
type capturingPublisher struct {
	mu     sync.Mutex
	events []audit.Event
}

func (p *capturingPublisher) Publish(_ context.Context, event audit.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *capturingPublisher) actions() []audit.Action {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]audit.Action, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Action)
	}
	return out
}

func (p *capturingPublisher) firstOf(action audit.Action) (audit.Event, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.events {
		if e.Action == action {
			return e, true
		}
	}
	return audit.Event{}, false
}

type ServiceSuite struct {
	suite.Suite
	ctx       context.Context
	tenantID  id.TenantID
	flowID    id.FlowID
	store     *definition.InMemoryStore
	sessions  *sessionstore.InMemoryStore
	publisher *capturingPublisher
	service   *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.tenantID = id.NewTenantID()
	s.flowID = id.NewFlowID()
	s.store = definition.NewInMemoryStore()
	s.sessions = sessionstore.NewInMemoryStore()
	s.publisher = &capturingPublisher{}
	s.service = New(s.store, s.sessions, cache.NewPlanCache(),
		WithAuditPublisher(s.publisher),
	)
}

// riskFlow is a three-node flow: a password node leading into a decision
// that routes high risk scores to step-up and everything else to success.
func (s *ServiceSuite) riskFlow(version string) models.GraphDefinition {
	return models.GraphDefinition{
		ID:          s.flowID.String(),
		FlowVersion: version,
		Nodes: []models.Node{
			{ID: "password", Type: "password"},
			{ID: "risk-gate", Type: models.NodeTypeDecision, Data: models.NodeData{
				Config: map[string]any{
					"branches": []any{
						map[string]any{
							"id":       "high-risk",
							"priority": 1,
							"condition": map[string]any{
								"key":      "risk.score",
								"operator": "greaterOrEqual",
								"value":    80,
							},
						},
					},
					"defaultBranch": "low-risk",
				},
			}},
			{ID: "step-up", Type: "otp"},
			{ID: "done", Type: "complete"},
		},
		Edges: []models.Edge{
			{ID: "e1", Source: "password", Target: "risk-gate", Type: models.EdgeTypeSuccess},
			{ID: "e2", Source: "risk-gate", Target: "step-up", Type: models.EdgeTypeConditional, SourceHandle: "high-risk"},
			{ID: "e3", Source: "risk-gate", Target: "done", Type: models.EdgeTypeConditional, SourceHandle: "low-risk"},
			{ID: "e4", Source: "step-up", Target: "done", Type: models.EdgeTypeSuccess},
		},
	}
}

func (s *ServiceSuite) publishRiskFlow(version string) {
	_, err := s.service.Publish(s.ctx, s.tenantID, s.riskFlow(version))
	s.Require().NoError(err)
}

func (s *ServiceSuite) newSession(currentNode string) models.Session {
	session := models.Session{
		ID:            id.NewSessionID(),
		TenantID:      s.tenantID,
		ClientID:      id.NewClientID(),
		UserID:        id.NewUserID(),
		FlowID:        s.flowID,
		FlowVersion:   "1",
		CurrentNodeID: currentNode,
	}
	s.Require().NoError(s.sessions.Put(s.ctx, session))
	return session
}

func (s *ServiceSuite) TestPublishCompilesAndStores() {
	plan, err := s.service.Publish(s.ctx, s.tenantID, s.riskFlow("1"))
	s.Require().NoError(err)
	s.Equal("password", plan.EntryNodeID)
	s.Empty(plan.Warnings)

	stored, err := s.store.Get(s.ctx, s.tenantID, s.flowID.String(), "1")
	s.Require().NoError(err)
	s.Equal("1", stored.FlowVersion)

	event, ok := s.publisher.firstOf(audit.ActionFlowPublished)
	s.Require().True(ok)
	s.Equal(s.tenantID.String(), event.TenantID)
	s.Equal(s.flowID.String(), event.FlowID)
}

func (s *ServiceSuite) TestPublishRejectsInvalidDefinition() {
	def := s.riskFlow("1")
	def.Nodes = nil

	_, err := s.service.Publish(s.ctx, s.tenantID, def)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidFlowConfiguration))

	_, err = s.store.Get(s.ctx, s.tenantID, s.flowID.String(), "1")
	s.Require().Error(err, "rejected definition must not be stored")

	_, ok := s.publisher.firstOf(audit.ActionFlowCompileRejected)
	s.True(ok)
}

func (s *ServiceSuite) TestPublishSameVersionConflicts() {
	s.publishRiskFlow("1")

	_, err := s.service.Publish(s.ctx, s.tenantID, s.riskFlow("1"))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestPublishAuditsDanglingHandleWarnings() {
	def := s.riskFlow("1")
	// Drop the low-risk edge so the default branch has no transition.
	def.Edges = def.Edges[:2]

	plan, err := s.service.Publish(s.ctx, s.tenantID, def)
	s.Require().NoError(err)
	s.NotEmpty(plan.Warnings)

	_, ok := s.publisher.firstOf(audit.ActionFlowCompileWarning)
	s.True(ok)
}

func (s *ServiceSuite) TestPlanServesFromCacheAfterPublish() {
	s.publishRiskFlow("1")

	first, err := s.service.Plan(s.ctx, s.tenantID, s.flowID.String(), "1")
	s.Require().NoError(err)
	second, err := s.service.Plan(s.ctx, s.tenantID, s.flowID.String(), "1")
	s.Require().NoError(err)
	s.Same(first, second, "pinned versions should come from the plan cache")
}

func (s *ServiceSuite) TestPlanUnknownFlow() {
	_, err := s.service.Plan(s.ctx, s.tenantID, id.NewFlowID().String(), "1")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestResolveStepHighRiskRoutesToStepUp() {
	s.publishRiskFlow("1")
	session := s.newSession("risk-gate")

	result, err := s.service.ResolveStep(s.ctx, ResolveStepInput{
		SessionID: session.ID,
		Risk:      map[string]any{"score": 91.0},
	})
	s.Require().NoError(err)
	s.Equal("risk-gate", result.CurrentNodeID)
	s.Equal("step-up", result.NextNodeID)
	s.Equal(OutcomeAdvanced, result.Outcome)

	advanced, err := s.sessions.Get(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Equal("step-up", advanced.CurrentNodeID)
}

func (s *ServiceSuite) TestResolveStepLowRiskTakesDefault() {
	s.publishRiskFlow("1")
	session := s.newSession("risk-gate")

	result, err := s.service.ResolveStep(s.ctx, ResolveStepInput{
		SessionID: session.ID,
		Risk:      map[string]any{"score": 12.0},
	})
	s.Require().NoError(err)
	s.Equal("done", result.NextNodeID)
}

func (s *ServiceSuite) TestResolveStepEmptyCursorStartsAtEntry() {
	s.publishRiskFlow("1")
	session := s.newSession("")

	result, err := s.service.ResolveStep(s.ctx, ResolveStepInput{SessionID: session.ID})
	s.Require().NoError(err)
	s.Equal("password", result.CurrentNodeID)
	s.Equal("risk-gate", result.NextNodeID)
}

func (s *ServiceSuite) TestResolveStepCompletesOnTerminalNode() {
	s.publishRiskFlow("1")
	session := s.newSession("done")

	result, err := s.service.ResolveStep(s.ctx, ResolveStepInput{SessionID: session.ID})
	s.Require().NoError(err)
	s.Empty(result.NextNodeID)
	s.Equal(OutcomeCompleted, result.Outcome)
}

func (s *ServiceSuite) TestResolveStepStallsWithoutDefault() {
	def := s.riskFlow("1")
	// No default branch and a condition that will not match.
	gate := def.Nodes[1].Data.Config
	gate["defaultBranch"] = ""

	_, err := s.service.Publish(s.ctx, s.tenantID, def)
	s.Require().NoError(err)
	session := s.newSession("risk-gate")

	result, err := s.service.ResolveStep(s.ctx, ResolveStepInput{
		SessionID: session.ID,
		Risk:      map[string]any{"score": 5.0},
	})
	s.Require().NoError(err)
	s.Empty(result.NextNodeID)
	s.Equal(OutcomeStalled, result.Outcome)

	_, ok := s.publisher.firstOf(audit.ActionFlowStalled)
	s.True(ok)

	unchanged, err := s.sessions.Get(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Equal("risk-gate", unchanged.CurrentNodeID, "stalled flows must not advance")
}

func (s *ServiceSuite) TestResolveStepFailedFollowsErrorEdge() {
	def := s.riskFlow("1")
	def.Nodes = append(def.Nodes, models.Node{ID: "locked", Type: "deny"})
	def.Edges = append(def.Edges, models.Edge{
		ID: "e5", Source: "password", Target: "locked", Type: models.EdgeTypeError,
	})
	_, err := s.service.Publish(s.ctx, s.tenantID, def)
	s.Require().NoError(err)
	session := s.newSession("password")

	result, err := s.service.ResolveStep(s.ctx, ResolveStepInput{
		SessionID:  session.ID,
		StepFailed: true,
	})
	s.Require().NoError(err)
	s.Equal("locked", result.NextNodeID)
}

func (s *ServiceSuite) TestResolveStepTenantMismatchRejected() {
	s.publishRiskFlow("1")
	session := s.newSession("risk-gate")
	otherTenant := id.NewTenantID()

	_, err := s.service.ResolveStep(s.ctx, ResolveStepInput{
		SessionID: session.ID,
		Scope:     models.StepScope{TenantID: &otherTenant},
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidSession))
	s.True(errors.Is(err, executor.ErrTenantMismatch))

	event, ok := s.publisher.firstOf(audit.ActionSessionBoundaryViolation)
	s.Require().True(ok)
	s.Equal("tenant_mismatch", event.Reason)

	unchanged, err := s.sessions.Get(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Equal("risk-gate", unchanged.CurrentNodeID, "boundary violations must not touch the session")
}

func (s *ServiceSuite) TestResolveStepUnknownSession() {
	s.publishRiskFlow("1")

	_, err := s.service.ResolveStep(s.ctx, ResolveStepInput{SessionID: id.NewSessionID()})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.NotContains(s.publisher.actions(), audit.ActionStepResolved)
}
