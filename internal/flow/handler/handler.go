// Package handler wires the flow engine endpoints to the flow service.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fossabot/authrim-sub007/internal/flow/models"
	"github.com/fossabot/authrim-sub007/internal/flow/service"
	"github.com/fossabot/authrim-sub007/internal/platform/middleware"
	id "github.com/fossabot/authrim-sub007/pkg/domain"
	dErrors "github.com/fossabot/authrim-sub007/pkg/domain-errors"
	"github.com/fossabot/authrim-sub007/pkg/platform/httputil"
	"github.com/fossabot/authrim-sub007/pkg/requestcontext"
)

// Service defines the flow operations the handler exposes.
type Service interface {
	Publish(ctx context.Context, tenantID id.TenantID, def models.GraphDefinition) (*models.CompiledPlan, error)
	Plan(ctx context.Context, tenantID id.TenantID, flowID, version string) (*models.CompiledPlan, error)
	ResolveStep(ctx context.Context, in service.ResolveStepInput) (service.ResolveStepResult, error)
}

// Handler wires flow endpoints to the flow service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a flow handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts flow endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/flows", h.HandlePublish)
	r.Get("/flows/{flowID}/plan", h.HandlePlan)
	r.Post("/sessions/{sessionID}/steps", h.HandleResolveStep)
}

type publishResponse struct {
	FlowID      string   `json:"flow_id"`
	FlowVersion string   `json:"flow_version,omitempty"`
	EntryNodeID string   `json:"entry_node_id"`
	Warnings    []string `json:"warnings,omitempty"`
}

// HandlePublish handles POST /flows requests.
func (h *Handler) HandlePublish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)
	start := time.Now()

	tenantID, ok := h.tenantFromContext(w, ctx)
	if !ok {
		return
	}

	def, ok := httputil.DecodeAndPrepare[models.GraphDefinition](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	plan, err := h.service.Publish(ctx, tenantID, def)
	if err != nil {
		h.logger.WarnContext(ctx, "flow publish failed",
			"request_id", requestID,
			"tenant_id", tenantID,
			"flow_id", def.ID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "flow published",
		"request_id", requestID,
		"tenant_id", tenantID,
		"flow_id", plan.ID,
		"warnings", len(plan.Warnings),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusCreated, publishResponse{
		FlowID:      plan.ID,
		FlowVersion: plan.FlowVersion,
		EntryNodeID: plan.EntryNodeID,
		Warnings:    plan.Warnings,
	})
}

// HandlePlan handles GET /flows/{flowID}/plan requests. An absent version
// query parameter resolves to the latest published version.
func (h *Handler) HandlePlan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tenantID, ok := h.tenantFromContext(w, ctx)
	if !ok {
		return
	}

	flowID := chi.URLParam(r, "flowID")
	version := r.URL.Query().Get("version")

	plan, err := h.service.Plan(ctx, tenantID, flowID, version)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, plan)
}

type resolveStepRequest struct {
	TenantID   string                    `json:"tenant_id,omitempty"`
	ClientID   string                    `json:"client_id,omitempty"`
	StepFailed bool                      `json:"step_failed,omitempty"`
	Form       map[string]any            `json:"form,omitempty"`
	Risk       map[string]any            `json:"risk,omitempty"`
	PrevNode   map[string]any            `json:"prev_node,omitempty"`
	Variables  map[string]any            `json:"variables,omitempty"`
	Ext        map[string]models.Section `json:"ext,omitempty"`
}

type resolveStepResponse struct {
	CurrentNodeID string `json:"current_node_id"`
	NextNodeID    string `json:"next_node_id,omitempty"`
	Outcome       string `json:"outcome"`
}

// HandleResolveStep handles POST /sessions/{sessionID}/steps requests.
func (h *Handler) HandleResolveStep(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)
	start := time.Now()

	sessionID, err := id.ParseSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid session id"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[resolveStepRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	scope, err := parseScope(req.TenantID, req.ClientID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.ResolveStep(ctx, service.ResolveStepInput{
		SessionID:  sessionID,
		Scope:      scope,
		StepFailed: req.StepFailed,
		RemoteIP:   requestcontext.ClientIP(ctx),
		UserAgent:  requestcontext.UserAgent(ctx),
		Form:       req.Form,
		Risk:       req.Risk,
		PrevNode:   req.PrevNode,
		Variables:  req.Variables,
		Ext:        req.Ext,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "step resolution failed",
			"request_id", requestID,
			"session_id", sessionID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "step resolved",
		"request_id", requestID,
		"session_id", sessionID,
		"current_node_id", result.CurrentNodeID,
		"next_node_id", result.NextNodeID,
		"outcome", result.Outcome,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, resolveStepResponse{
		CurrentNodeID: result.CurrentNodeID,
		NextNodeID:    result.NextNodeID,
		Outcome:       result.Outcome,
	})
}

func (h *Handler) tenantFromContext(w http.ResponseWriter, ctx context.Context) (id.TenantID, bool) {
	tenantID := requestcontext.TenantID(ctx)
	if tenantID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "tenant scope required"))
		return id.TenantID{}, false
	}
	return tenantID, true
}

// parseScope turns the optional boundary identifiers of a step submission
// into a typed scope. Present but malformed identifiers are rejected rather
// than silently skipping the boundary check.
func parseScope(tenant, client string) (models.StepScope, error) {
	var scope models.StepScope
	if tenant != "" {
		tenantID, err := id.ParseTenantID(tenant)
		if err != nil {
			return models.StepScope{}, dErrors.New(dErrors.CodeBadRequest, "invalid tenant id")
		}
		scope.TenantID = &tenantID
	}
	if client != "" {
		clientID, err := id.ParseClientID(client)
		if err != nil {
			return models.StepScope{}, dErrors.New(dErrors.CodeBadRequest, "invalid client id")
		}
		scope.ClientID = &clientID
	}
	return scope, nil
}
