// Package cache holds the compiled plan cache and the redis-backed
// definition read-through used by the flow service.
package cache

import (
	"fmt"
	"sync"

	"github.com/fossabot/authrim-sub007/internal/flow/models"
	id "github.com/fossabot/authrim-sub007/pkg/domain"
)

// PlanKey builds the cache key for a compiled plan. Plans are tenant-scoped
// and immutable per version, so the key is stable for the definition's life.
func PlanKey(tenantID id.TenantID, flowID, version string) string {
	return fmt.Sprintf("%s:%s:%s", tenantID, flowID, version)
}

// PlanCache is an in-process cache of compiled plans. Compilation is cheap
// relative to a network hop, so plans stay local to each instance rather
// than in redis; the definition layer underneath is what gets shared.
type PlanCache struct {
	mu    sync.RWMutex
	plans map[string]*models.CompiledPlan
}

func NewPlanCache() *PlanCache {
	return &PlanCache{plans: make(map[string]*models.CompiledPlan)}
}

func (c *PlanCache) Get(key string) (*models.CompiledPlan, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	plan, ok := c.plans[key]
	return plan, ok
}

func (c *PlanCache) Put(key string, plan *models.CompiledPlan) {
	if plan == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.plans[key] = plan
}
