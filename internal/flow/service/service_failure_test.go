package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/fossabot/authrim-sub007/internal/flow/models"
	"github.com/fossabot/authrim-sub007/internal/flow/ports/mocks"
	id "github.com/fossabot/authrim-sub007/pkg/domain"
	dErrors "github.com/fossabot/authrim-sub007/pkg/domain-errors"
)

// These tests fault-inject the ports to cover the error translation paths
// the in-memory stores cannot produce.

func validGraph(flowID string) models.GraphDefinition {
	return models.GraphDefinition{
		ID:          flowID,
		FlowVersion: "1",
		Nodes:       []models.Node{{ID: "start", Type: "password"}},
	}
}

func TestPublishStoreFailureIsInternal(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockDefinitionStore(ctrl)
	sessions := mocks.NewMockSessionStore(ctrl)
	planCache := mocks.NewMockPlanCache(ctrl)

	tenantID := id.NewTenantID()
	def := validGraph(id.NewFlowID().String())
	store.EXPECT().Save(gomock.Any(), tenantID, def).Return(errors.New("connection reset"))

	svc := New(store, sessions, planCache)
	_, err := svc.Publish(context.Background(), tenantID, def)
	require.Error(t, err)
	require.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
}

func TestPlanStoredDefinitionThatNoLongerCompiles(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockDefinitionStore(ctrl)
	sessions := mocks.NewMockSessionStore(ctrl)
	planCache := mocks.NewMockPlanCache(ctrl)

	tenantID := id.NewTenantID()
	flowID := id.NewFlowID().String()

	planCache.EXPECT().Get(gomock.Any()).Return(nil, false)
	store.EXPECT().Get(gomock.Any(), tenantID, flowID, "1").
		Return(models.GraphDefinition{ID: flowID, FlowVersion: "1"}, nil)

	svc := New(store, sessions, planCache)
	_, err := svc.Plan(context.Background(), tenantID, flowID, "1")
	require.Error(t, err)
	require.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func TestResolveStepAdvanceFailureIsInternal(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockDefinitionStore(ctrl)
	sessions := mocks.NewMockSessionStore(ctrl)
	planCache := mocks.NewMockPlanCache(ctrl)

	tenantID := id.NewTenantID()
	flowID := id.NewFlowID()
	sessionID := id.NewSessionID()

	def := models.GraphDefinition{
		ID:          flowID.String(),
		FlowVersion: "1",
		Nodes: []models.Node{
			{ID: "password", Type: "password"},
			{ID: "done", Type: "complete"},
		},
		Edges: []models.Edge{
			{ID: "e1", Source: "password", Target: "done", Type: models.EdgeTypeSuccess},
		},
	}

	sessions.EXPECT().Get(gomock.Any(), sessionID).Return(models.Session{
		ID:            sessionID,
		TenantID:      tenantID,
		FlowID:        flowID,
		FlowVersion:   "1",
		CurrentNodeID: "password",
	}, nil)
	planCache.EXPECT().Get(gomock.Any()).Return(nil, false)
	store.EXPECT().Get(gomock.Any(), tenantID, flowID.String(), "1").Return(def, nil)
	planCache.EXPECT().Put(gomock.Any(), gomock.Any())
	sessions.EXPECT().Advance(gomock.Any(), sessionID, "done").Return(errors.New("write timeout"))

	svc := New(store, sessions, planCache)
	_, err := svc.ResolveStep(context.Background(), ResolveStepInput{SessionID: sessionID})
	require.Error(t, err)
	require.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
}
