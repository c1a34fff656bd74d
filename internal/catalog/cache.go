package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/clinicdesk/clinicdesk/pkg/logging"
)

// Source loads the catalog on a cache miss.
type Source interface {
	ListByOrg(ctx context.Context, orgID string) ([]Procedure, error)
}

// Cache is a read-through procedure cache in front of the catalog store.
// Callers must invalidate explicitly after any catalog commit; there is no
// ambient shared cache state beyond this object. Redis failures degrade to
// direct source reads; they never fail the read path.
type Cache struct {
	redis  *redis.Client
	source Source
	ttl    time.Duration
	logger *logging.Logger
}

// NewCache creates a read-through cache. A zero ttl disables expiry.
func NewCache(redisClient *redis.Client, source Source, ttl time.Duration, logger *logging.Logger) *Cache {
	if logger == nil {
		logger = logging.Default()
	}
	return &Cache{redis: redisClient, source: source, ttl: ttl, logger: logger}
}

func (c *Cache) key(orgID string) string {
	return fmt.Sprintf("catalog:procedures:%s", orgID)
}

// ListByOrg returns the org's catalog, populating the cache on a miss.
func (c *Cache) ListByOrg(ctx context.Context, orgID string) ([]Procedure, error) {
	data, err := c.redis.Get(ctx, c.key(orgID)).Bytes()
	if err == nil {
		var procs []Procedure
		if err := json.Unmarshal(data, &procs); err == nil {
			return procs, nil
		}
		// Corrupt entry: fall through to the source and overwrite.
	} else if err != redis.Nil {
		c.logger.Warn("catalog cache read failed, serving from source", "org_id", orgID, "error", err)
	}

	procs, err := c.source.ListByOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(procs); err == nil {
		if err := c.redis.Set(ctx, c.key(orgID), data, c.ttl).Err(); err != nil {
			c.logger.Warn("catalog cache write failed", "org_id", orgID, "error", err)
		}
	}
	return procs, nil
}

// Resolve maps the requested procedure ids to catalog entries, preserving
// request order. Returns ErrUnknownProcedure if any id is missing.
func (c *Cache) Resolve(ctx context.Context, orgID string, ids []uuid.UUID) ([]Procedure, error) {
	procs, err := c.ListByOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]Procedure, len(procs))
	for _, p := range procs {
		byID[p.ID] = p
	}
	resolved := make([]Procedure, 0, len(ids))
	for _, id := range ids {
		p, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownProcedure, id)
		}
		resolved = append(resolved, p)
	}
	return resolved, nil
}

// Invalidate drops the org's cached catalog. Call after any catalog commit.
func (c *Cache) Invalidate(ctx context.Context, orgID string) error {
	if err := c.redis.Del(ctx, c.key(orgID)).Err(); err != nil {
		return fmt.Errorf("catalog: cache invalidate: %w", err)
	}
	return nil
}
