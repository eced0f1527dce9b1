// Package service orchestrates the flow engine: publishing definitions,
// caching compiled plans, and resolving the next step for a session.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fossabot/authrim-sub007/internal/flow/cache"
	"github.com/fossabot/authrim-sub007/internal/flow/compiler"
	"github.com/fossabot/authrim-sub007/internal/flow/condition"
	"github.com/fossabot/authrim-sub007/internal/flow/contextbuilder"
	"github.com/fossabot/authrim-sub007/internal/flow/executor"
	"github.com/fossabot/authrim-sub007/internal/flow/metrics"
	"github.com/fossabot/authrim-sub007/internal/flow/models"
	"github.com/fossabot/authrim-sub007/internal/flow/ports"
	id "github.com/fossabot/authrim-sub007/pkg/domain"
	dErrors "github.com/fossabot/authrim-sub007/pkg/domain-errors"
	"github.com/fossabot/authrim-sub007/pkg/platform/audit"
	"github.com/fossabot/authrim-sub007/pkg/platform/sentinel"
	"github.com/fossabot/authrim-sub007/pkg/requestcontext"
)

// Service wires the compiler, executor and stores into the two operations
// the HTTP surface exposes: publishing a flow and resolving a step.
type Service struct {
	store     ports.DefinitionStore
	sessions  ports.SessionStore
	planCache ports.PlanCache

	executor *executor.Executor
	builder  *contextbuilder.Builder

	publisher ports.AuditPublisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithAuditPublisher(publisher ports.AuditPublisher) Option {
	return func(s *Service) {
		s.publisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs the service. The evaluator and executor are built here so
// dangerous-key rejections flow into this service's metrics and audit trail.
func New(store ports.DefinitionStore, sessions ports.SessionStore, planCache ports.PlanCache, opts ...Option) *Service {
	s := &Service{
		store:     store,
		sessions:  sessions,
		planCache: planCache,
		logger:    slog.Default(),
		tracer:    otel.Tracer("flow/service"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	evaluator := condition.New(condition.WithLogger(s.logger))
	s.executor = executor.New(evaluator,
		executor.WithLogger(s.logger),
		executor.WithSecurityEvents(&securityBridge{service: s}),
	)
	s.builder = contextbuilder.New()
	return s
}

// Publish compiles a definition, persists it and caches the plan. A
// definition that fails compilation is rejected whole; nothing is stored.
func (s *Service) Publish(ctx context.Context, tenantID id.TenantID, def models.GraphDefinition) (*models.CompiledPlan, error) {
	ctx, span := s.tracer.Start(ctx, "flow.Publish", trace.WithAttributes(
		attribute.String("flow.id", def.ID),
		attribute.String("flow.version", def.FlowVersion),
	))
	defer span.End()

	plan, err := compiler.Compile(def)
	if err != nil {
		if s.metrics != nil {
			s.metrics.IncrementCompileRejected()
		}
		ports.LogAudit(ctx, s.logger, s.publisher, audit.ActionFlowCompileRejected,
			"tenant_id", tenantID.String(),
			"flow_id", def.ID,
			"reason", err.Error(),
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, err
	}

	if err := s.store.Save(ctx, tenantID, def); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Newf(dErrors.CodeConflict,
				"flow %q version %q is already published", def.ID, def.FlowVersion)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persist flow definition")
	}

	s.planCache.Put(cache.PlanKey(tenantID, def.ID, def.FlowVersion), plan)

	for _, warning := range plan.Warnings {
		ports.LogAudit(ctx, s.logger, s.publisher, audit.ActionFlowCompileWarning,
			"tenant_id", tenantID.String(),
			"flow_id", def.ID,
			"reason", warning,
		)
	}

	if s.metrics != nil {
		s.metrics.IncrementFlowsPublished()
	}
	ports.LogAudit(ctx, s.logger, s.publisher, audit.ActionFlowPublished,
		"tenant_id", tenantID.String(),
		"flow_id", def.ID,
		"request_id", requestcontext.RequestID(ctx),
	)
	return plan, nil
}

// Plan returns the compiled plan for a flow version, compiling on cache
// miss. An empty version resolves to the latest published definition.
func (s *Service) Plan(ctx context.Context, tenantID id.TenantID, flowID, version string) (*models.CompiledPlan, error) {
	if version != "" {
		key := cache.PlanKey(tenantID, flowID, version)
		if plan, ok := s.planCache.Get(key); ok {
			if s.metrics != nil {
				s.metrics.IncrementPlanCacheHit()
			}
			return plan, nil
		}
		if s.metrics != nil {
			s.metrics.IncrementPlanCacheMiss()
		}
	}

	def, err := s.loadDefinition(ctx, tenantID, flowID, version)
	if err != nil {
		return nil, err
	}

	plan, err := compiler.Compile(def)
	if err != nil {
		// A stored definition failing to compile means the store holds
		// something publish never accepted.
		return nil, dErrors.Wrap(err, dErrors.CodeInvariantViolation, "stored flow definition does not compile")
	}

	s.planCache.Put(cache.PlanKey(tenantID, flowID, def.FlowVersion), plan)
	return plan, nil
}

func (s *Service) loadDefinition(ctx context.Context, tenantID id.TenantID, flowID, version string) (models.GraphDefinition, error) {
	var (
		def models.GraphDefinition
		err error
	)
	if version == "" {
		def, err = s.store.Latest(ctx, tenantID, flowID)
	} else {
		def, err = s.store.Get(ctx, tenantID, flowID, version)
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.GraphDefinition{}, dErrors.Newf(dErrors.CodeNotFound, "flow %q not found", flowID)
	}
	if err != nil {
		return models.GraphDefinition{}, dErrors.Wrap(err, dErrors.CodeInternal, "load flow definition")
	}
	return def, nil
}

// ResolveStepInput carries one step submission: which session it belongs
// to, the boundary identifiers the caller asserts, whether the node's own
// execution failed, and the signals the evaluation context is built from.
type ResolveStepInput struct {
	SessionID  id.SessionID
	Scope      models.StepScope
	StepFailed bool

	RemoteIP  string
	UserAgent string
	Form      map[string]any
	Risk      map[string]any
	PrevNode  map[string]any
	Variables map[string]any
	Ext       map[string]models.Section
}

// Step resolution outcomes reported to callers. The values double as the
// metric label so dashboards and API responses agree.
const (
	OutcomeAdvanced  = metrics.OutcomeAdvanced
	OutcomeCompleted = metrics.OutcomeCompleted
	OutcomeStalled   = metrics.OutcomeStalled
)

// ResolveStepResult reports where the flow went. NextNodeID is empty when
// the flow completed or stalled; Outcome distinguishes the two.
type ResolveStepResult struct {
	CurrentNodeID string
	NextNodeID    string
	Outcome       string
}

// ResolveStep validates the session boundary, evaluates the current node's
// transitions against a freshly built context, and advances the session
// cursor. The boundary check runs before any flow logic.
func (s *Service) ResolveStep(ctx context.Context, in ResolveStepInput) (ResolveStepResult, error) {
	ctx, span := s.tracer.Start(ctx, "flow.ResolveStep", trace.WithAttributes(
		attribute.String("session.id", in.SessionID.String()),
	))
	defer span.End()
	started := s.now()

	session, err := s.sessions.Get(ctx, in.SessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return ResolveStepResult{}, dErrors.New(dErrors.CodeNotFound, "session not found")
		}
		return ResolveStepResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "load session")
	}

	if err := executor.ValidateSession(session, in.Scope); err != nil {
		s.recordBoundaryViolation(ctx, session, err)
		return ResolveStepResult{}, err
	}

	plan, err := s.Plan(ctx, session.TenantID, session.FlowID.String(), session.FlowVersion)
	if err != nil {
		return ResolveStepResult{}, err
	}

	currentID := session.CurrentNodeID
	if currentID == "" {
		currentID = plan.EntryNodeID
	}
	node, ok := plan.Node(currentID)
	if !ok {
		return ResolveStepResult{}, dErrors.Newf(dErrors.CodeInvariantViolation,
			"session cursor points at unknown node %q", currentID)
	}

	evalCtx := s.builder.Build(ctx, contextbuilder.Input{
		Session:   session,
		RemoteIP:  in.RemoteIP,
		UserAgent: in.UserAgent,
		RequestID: requestcontext.RequestID(ctx),
		Form:      in.Form,
		Risk:      in.Risk,
		PrevNode:  in.PrevNode,
		Variables: in.Variables,
		Ext:       in.Ext,
	})

	var next string
	if in.StepFailed {
		next = s.executor.ResolveError(node)
	} else {
		next = s.executor.ResolveNext(node, plan, evalCtx)
	}

	result := ResolveStepResult{
		CurrentNodeID: currentID,
		NextNodeID:    next,
		Outcome:       classifyOutcome(node, next),
	}

	if next != "" {
		if err := s.sessions.Advance(ctx, in.SessionID, next); err != nil {
			return ResolveStepResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "advance session")
		}
	}

	s.recordResolution(ctx, session, result, s.now().Sub(started))
	return result, nil
}

// classifyOutcome interprets an empty destination: a plain node with no
// outgoing edge means the flow finished; a branching node that matched
// nothing means the flow is stuck on a configuration gap.
func classifyOutcome(node models.CompiledNode, next string) string {
	if next != "" {
		return OutcomeAdvanced
	}
	if node.Type.IsBranching() {
		return OutcomeStalled
	}
	return OutcomeCompleted
}

func (s *Service) recordResolution(ctx context.Context, session models.Session, result ResolveStepResult, elapsed time.Duration) {
	action := audit.ActionStepResolved
	if result.Outcome == OutcomeStalled {
		action = audit.ActionFlowStalled
	}

	if s.metrics != nil {
		s.metrics.ObserveStepResolved(result.Outcome, elapsed.Seconds())
	}
	ports.LogAudit(ctx, s.logger, s.publisher, action,
		"tenant_id", session.TenantID.String(),
		"session_id", session.ID.String(),
		"flow_id", session.FlowID.String(),
		"node_id", result.CurrentNodeID,
		"request_id", requestcontext.RequestID(ctx),
	)
}

func (s *Service) recordBoundaryViolation(ctx context.Context, session models.Session, err error) {
	reason := "unknown"
	switch {
	case errors.Is(err, executor.ErrTenantMismatch):
		reason = executor.ErrTenantMismatch.Error()
	case errors.Is(err, executor.ErrClientMismatch):
		reason = executor.ErrClientMismatch.Error()
	}

	if s.metrics != nil {
		s.metrics.IncrementSessionBoundaryFailure(reason)
	}
	ports.LogAudit(ctx, s.logger, s.publisher, audit.ActionSessionBoundaryViolation,
		"tenant_id", session.TenantID.String(),
		"session_id", session.ID.String(),
		"reason", reason,
		"request_id", requestcontext.RequestID(ctx),
	)
}

// securityBridge routes executor security events into metrics and audit.
type securityBridge struct {
	service *Service
}

func (b *securityBridge) DangerousKeyRejected(nodeID, key, segment string) {
	s := b.service
	if s.metrics != nil {
		s.metrics.IncrementDangerousKeys()
	}
	ports.LogAudit(context.Background(), s.logger, s.publisher, audit.ActionDangerousKeyRejected,
		"node_id", nodeID,
		"reason", segment,
	)
	s.logger.Warn("dangerous key rejected during step resolution",
		"node_id", nodeID,
		"key", key,
		"segment", segment,
	)
}
