package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fossabot/authrim-sub007/internal/flow/models"
	"github.com/fossabot/authrim-sub007/internal/flow/ports"
	id "github.com/fossabot/authrim-sub007/pkg/domain"
)

const defaultDefinitionTTL = 10 * time.Minute

// RedisDefinitionStore wraps a DefinitionStore with a redis read-through.
// Pinned versions are immutable so cached entries are safe to serve until
// eviction; Latest is never cached because a new publish changes it.
type RedisDefinitionStore struct {
	inner  ports.DefinitionStore
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// Option configures a RedisDefinitionStore.
type Option func(*RedisDefinitionStore)

func WithTTL(ttl time.Duration) Option {
	return func(s *RedisDefinitionStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *RedisDefinitionStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewRedisDefinitionStore(inner ports.DefinitionStore, client *redis.Client, opts ...Option) *RedisDefinitionStore {
	s := &RedisDefinitionStore{
		inner:  inner,
		client: client,
		ttl:    defaultDefinitionTTL,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func definitionKey(tenantID id.TenantID, flowID, version string) string {
	return fmt.Sprintf("flowdef:%s:%s:%s", tenantID, flowID, version)
}

func (s *RedisDefinitionStore) Save(ctx context.Context, tenantID id.TenantID, def models.GraphDefinition) error {
	if err := s.inner.Save(ctx, tenantID, def); err != nil {
		return err
	}
	s.put(ctx, definitionKey(tenantID, def.ID, def.FlowVersion), def)
	return nil
}

func (s *RedisDefinitionStore) Get(ctx context.Context, tenantID id.TenantID, flowID, version string) (models.GraphDefinition, error) {
	key := definitionKey(tenantID, flowID, version)
	if def, ok := s.lookup(ctx, key); ok {
		return def, nil
	}

	def, err := s.inner.Get(ctx, tenantID, flowID, version)
	if err != nil {
		return models.GraphDefinition{}, err
	}
	s.put(ctx, key, def)
	return def, nil
}

func (s *RedisDefinitionStore) Latest(ctx context.Context, tenantID id.TenantID, flowID string) (models.GraphDefinition, error) {
	return s.inner.Latest(ctx, tenantID, flowID)
}

// lookup is best-effort: a redis failure degrades to the inner store.
func (s *RedisDefinitionStore) lookup(ctx context.Context, key string) (models.GraphDefinition, bool) {
	if s.client == nil {
		return models.GraphDefinition{}, false
	}

	raw, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.WarnContext(ctx, "definition cache read failed", "key", key, "error", err)
		}
		return models.GraphDefinition{}, false
	}

	var def models.GraphDefinition
	if err := json.Unmarshal(raw, &def); err != nil {
		s.logger.WarnContext(ctx, "definition cache entry corrupt", "key", key, "error", err)
		return models.GraphDefinition{}, false
	}
	return def, true
}

func (s *RedisDefinitionStore) put(ctx context.Context, key string, def models.GraphDefinition) {
	if s.client == nil {
		return
	}

	raw, err := json.Marshal(def)
	if err != nil {
		s.logger.WarnContext(ctx, "definition cache encode failed", "key", key, "error", err)
		return
	}
	if err := s.client.Set(ctx, key, raw, s.ttl).Err(); err != nil {
		s.logger.WarnContext(ctx, "definition cache write failed", "key", key, "error", err)
	}
}
