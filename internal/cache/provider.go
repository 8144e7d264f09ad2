package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/pipehealth/pipehealth-go/internal/models"
	"github.com/pipehealth/pipehealth-go/internal/storage"
	"github.com/sirupsen/logrus"
)

const (
	kindHealthRules        = "health_rules"
	kindStageProbabilities = "stage_probabilities"
	kindScoreLabels        = "score_labels"
)

// OrgConfig serves per-org configuration (health rules, stage probabilities,
// score labels) through a two-level cache: Redis when available, a local
// bbolt file otherwise, falling through to storage on miss.
//
// Cache failures are logged and never fail the read; storage is the source
// of truth.
type OrgConfig struct {
	store  storage.Store
	redis  *Client // nil when Redis is not configured
	local  *Local  // nil when local caching is disabled
	logger *logrus.Logger
}

// NewOrgConfig builds an org config provider. redis and local may each be nil.
func NewOrgConfig(store storage.Store, redis *Client, local *Local, logger *logrus.Logger) *OrgConfig {
	return &OrgConfig{
		store:  store,
		redis:  redis,
		local:  local,
		logger: logger,
	}
}

// HealthRules returns the org's health score rules. A missing rule table is
// reported as storage.ErrSchemaMissing and is never cached.
func (p *OrgConfig) HealthRules(ctx context.Context, orgID string) ([]models.HealthScoreRule, error) {
	key := OrgConfigKey(orgID, kindHealthRules)

	var rules []models.HealthScoreRule
	if p.cacheGet(ctx, key, &rules) {
		return rules, nil
	}

	rules, err := p.store.ListHealthRules(ctx, orgID)
	if err != nil {
		return nil, err
	}

	p.cacheSet(ctx, key, rules)
	return rules, nil
}

// StageProbabilities returns the org's stage weights, falling back to
// platform defaults when the org has no override row.
func (p *OrgConfig) StageProbabilities(ctx context.Context, orgID string) (models.StageProbabilities, error) {
	key := OrgConfigKey(orgID, kindStageProbabilities)

	var probs models.StageProbabilities
	if p.cacheGet(ctx, key, &probs) {
		return probs, nil
	}

	stored, err := p.store.GetStageProbabilities(ctx, orgID)
	switch {
	case err == nil:
		probs = *stored
	case errors.Is(err, storage.ErrNotFound):
		probs = models.DefaultStageProbabilities(orgID)
	default:
		return models.StageProbabilities{}, err
	}

	p.cacheSet(ctx, key, probs)
	return probs, nil
}

// ScoreLabels returns the org's score label overrides
func (p *OrgConfig) ScoreLabels(ctx context.Context, orgID string) ([]models.ScoreLabel, error) {
	key := OrgConfigKey(orgID, kindScoreLabels)

	var labels []models.ScoreLabel
	if p.cacheGet(ctx, key, &labels) {
		return labels, nil
	}

	labels, err := p.store.ListScoreLabels(ctx, orgID)
	if err != nil {
		return nil, err
	}

	p.cacheSet(ctx, key, labels)
	return labels, nil
}

// Invalidate drops every cached config entry for an org. Called after any
// admin write that touches org configuration.
func (p *OrgConfig) Invalidate(ctx context.Context, orgID string) error {
	var firstErr error

	if p.redis != nil {
		if _, err := p.redis.DeletePattern(ctx, OrgConfigPattern(orgID)); err != nil {
			firstErr = fmt.Errorf("redis invalidate: %w", err)
		}
	}
	if p.local != nil {
		if _, err := p.local.DeleteOrg(orgID); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("local invalidate: %w", err)
		}
	}

	return firstErr
}

func (p *OrgConfig) cacheGet(ctx context.Context, key string, target interface{}) bool {
	if p.redis != nil {
		found, err := p.redis.Get(ctx, key, target)
		if err != nil {
			p.logger.WithError(err).WithField("key", key).Warn("Redis read failed, falling through")
		} else if found {
			return true
		}
	}
	if p.local != nil {
		found, err := p.local.Get(key, target)
		if err != nil {
			p.logger.WithError(err).WithField("key", key).Warn("Local cache read failed, falling through")
		} else if found {
			return true
		}
	}
	return false
}

func (p *OrgConfig) cacheSet(ctx context.Context, key string, value interface{}) {
	if p.redis != nil {
		if err := p.redis.Set(ctx, key, value); err != nil {
			p.logger.WithError(err).WithField("key", key).Warn("Redis write failed")
		}
	}
	if p.local != nil {
		if err := p.local.Set(key, value); err != nil {
			p.logger.WithError(err).WithField("key", key).Warn("Local cache write failed")
		}
	}
}
