package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-engine/internal/domain"
)

const activeRulesKey = "helpdesk:workflow:active_rules"

// CachedRuleRepository fronts a rule repository with a Redis copy of the
// active rule set. Cache failures fall through to the underlying store.
type CachedRuleRepository struct {
	inner  WorkflowRuleRepository
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedRuleRepository wraps inner. A nil client or non-positive ttl
// disables caching.
func NewCachedRuleRepository(inner WorkflowRuleRepository, client *redis.Client, ttl time.Duration, logger *zap.Logger) WorkflowRuleRepository {
	if client == nil || ttl <= 0 {
		return inner
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedRuleRepository{inner: inner, client: client, ttl: ttl, logger: logger}
}

func (r *CachedRuleRepository) ListActive(ctx context.Context) ([]domain.WorkflowRule, error) {
	raw, err := r.client.Get(ctx, activeRulesKey).Bytes()
	switch {
	case err == nil:
		var rules []domain.WorkflowRule
		if jsonErr := json.Unmarshal(raw, &rules); jsonErr == nil {
			return rules, nil
		}
		r.logger.Warn("discarding unreadable rule cache entry")
	case !errors.Is(err, redis.Nil):
		r.logger.Warn("rule cache read failed", zap.Error(err))
	}

	rules, err := r.inner.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	if payload, err := json.Marshal(rules); err == nil {
		if err := r.client.Set(ctx, activeRulesKey, payload, r.ttl).Err(); err != nil {
			r.logger.Warn("rule cache write failed", zap.Error(err))
		}
	}
	return rules, nil
}

// Invalidate drops the cached rule set.
func (r *CachedRuleRepository) Invalidate(ctx context.Context) error {
	return r.client.Del(ctx, activeRulesKey).Err()
}
