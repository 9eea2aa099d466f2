package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

const ruleCacheGlobalKey = "automation:rules:global"

// CachedRuleRepository is a read-through cache over a RuleRepository. Rule
// sets are read on every ticket change, so scope lookups are served from
// redis; writes invalidate the affected scope. Cache failures degrade to the
// backing store.
type CachedRuleRepository struct {
	inner  RuleRepository
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedRuleRepository wraps a rule repository with a redis cache.
func NewCachedRuleRepository(inner RuleRepository, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedRuleRepository {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedRuleRepository{inner: inner, client: client, ttl: ttl, logger: logger}
}

func scopeKey(teamID *string) string {
	if teamID == nil {
		return ruleCacheGlobalKey
	}
	return "automation:rules:team:" + *teamID
}

func (c *CachedRuleRepository) ListForScope(ctx context.Context, teamID *string) ([]domain.AutomationRule, error) {
	key := scopeKey(teamID)
	if c.client != nil {
		if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
			var rules []domain.AutomationRule
			if err := json.Unmarshal(raw, &rules); err == nil {
				return rules, nil
			}
			c.invalidate(ctx, key)
		}
	}

	rules, err := c.inner.ListForScope(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if c.client != nil {
		if raw, err := json.Marshal(rules); err == nil {
			if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
				c.logger.Debug("rule cache set failed", zap.Error(err))
			}
		}
	}
	return rules, nil
}

func (c *CachedRuleRepository) Create(ctx context.Context, rule *domain.AutomationRule) error {
	if err := c.inner.Create(ctx, rule); err != nil {
		return err
	}
	c.invalidateRule(ctx, rule)
	return nil
}

func (c *CachedRuleRepository) Update(ctx context.Context, rule *domain.AutomationRule) error {
	if err := c.inner.Update(ctx, rule); err != nil {
		return err
	}
	c.invalidateRule(ctx, rule)
	return nil
}

func (c *CachedRuleRepository) Delete(ctx context.Context, id string) error {
	rule, err := c.inner.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := c.inner.Delete(ctx, id); err != nil {
		return err
	}
	c.invalidateRule(ctx, rule)
	return nil
}

func (c *CachedRuleRepository) GetByID(ctx context.Context, id string) (*domain.AutomationRule, error) {
	return c.inner.GetByID(ctx, id)
}

func (c *CachedRuleRepository) ListAll(ctx context.Context) ([]domain.AutomationRule, error) {
	return c.inner.ListAll(ctx)
}

func (c *CachedRuleRepository) invalidateRule(ctx context.Context, rule *domain.AutomationRule) {
	// Global rules feed every scope's lookup, so team keys must go too.
	if rule.TeamID == nil {
		c.invalidateAllScopes(ctx)
		return
	}
	c.invalidate(ctx, scopeKey(rule.TeamID))
}

func (c *CachedRuleRepository) invalidateAllScopes(ctx context.Context) {
	if c.client == nil {
		return
	}
	iter := c.client.Scan(ctx, 0, "automation:rules:*", 0).Iterator()
	for iter.Next(ctx) {
		c.invalidate(ctx, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.logger.Debug("rule cache scan failed", zap.Error(err))
	}
}

func (c *CachedRuleRepository) invalidate(ctx context.Context, key string) {
	if c.client == nil {
		return
	}
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.logger.Debug("rule cache invalidation failed", zap.String("key", key), zap.Error(err))
	}
}
