package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fossabot/authrim-sub007/internal/flow/models"
	id "github.com/fossabot/authrim-sub007/pkg/domain"
)

func TestPlanCachePutGet(t *testing.T) {
	c := NewPlanCache()
	plan := &models.CompiledPlan{ID: "login", FlowVersion: "1"}

	_, ok := c.Get("k")
	assert.False(t, ok)

	c.Put("k", plan)
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Same(t, plan, got)
}

func TestPlanCacheIgnoresNil(t *testing.T) {
	c := NewPlanCache()
	c.Put("k", nil)

	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestPlanKeyIsTenantScoped(t *testing.T) {
	tenantA := id.NewTenantID()
	tenantB := id.NewTenantID()

	assert.NotEqual(t, PlanKey(tenantA, "login", "1"), PlanKey(tenantB, "login", "1"))
	assert.NotEqual(t, PlanKey(tenantA, "login", "1"), PlanKey(tenantA, "login", "2"))
}
