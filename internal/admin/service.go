package admin

import (
	"context"
	"time"

	"github.com/pipehealth/pipehealth-go/internal/cache"
	apperrors "github.com/pipehealth/pipehealth-go/internal/errors"
	"github.com/pipehealth/pipehealth-go/internal/forecast"
	"github.com/pipehealth/pipehealth-go/internal/models"
	"github.com/pipehealth/pipehealth-go/internal/storage"
	"github.com/pipehealth/pipehealth-go/internal/visibility"
	"github.com/sirupsen/logrus"
)

// Service owns the configuration write path: health rules, quota periods,
// visibility edges and manager assignments. Every write that touches cached
// org configuration invalidates the cache before returning.
type Service struct {
	store  storage.Store
	orgCfg *cache.OrgConfig // nil when caching is disabled
	logger *logrus.Logger
}

// NewService creates an admin service. orgCfg may be nil.
func NewService(store storage.Store, orgCfg *cache.OrgConfig, logger *logrus.Logger) *Service {
	return &Service{
		store:  store,
		orgCfg: orgCfg,
		logger: logger,
	}
}

// CreateHealthRule validates and persists a health score rule. The modifier
// is clamped to its legal range rather than rejected.
func (s *Service) CreateHealthRule(ctx context.Context, rule *models.HealthScoreRule) error {
	if rule.OrgID == "" {
		return apperrors.ValidationError("rule org_id is required")
	}
	if rule.MinScore < 0 {
		return apperrors.ValidationErrorf("min_score %d must not be negative", rule.MinScore)
	}
	if rule.MinScore > rule.MaxScore {
		return apperrors.ValidationErrorf("min_score %d exceeds max_score %d", rule.MinScore, rule.MaxScore)
	}
	switch rule.MappedCategory {
	case models.BucketCommit, models.BucketBestCase, models.BucketPipeline:
	default:
		return apperrors.ValidationErrorf("mapped_category %q is not a forecast bucket", rule.MappedCategory)
	}

	rule.ProbabilityModifier = forecast.ClampModifier(rule.ProbabilityModifier)
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now().UTC()
	}

	if err := s.store.CreateHealthRule(ctx, rule); err != nil {
		return apperrors.DatabaseError(err, "failed to create health rule")
	}
	s.invalidate(ctx, rule.OrgID)

	s.logger.WithFields(logrus.Fields{
		"org_id":   rule.OrgID,
		"rule_id":  rule.ID,
		"range":    []int{rule.MinScore, rule.MaxScore},
		"category": rule.MappedCategory,
	}).Info("Health rule created")
	return nil
}

// DeleteHealthRule removes a rule scoped to its org
func (s *Service) DeleteHealthRule(ctx context.Context, orgID string, ruleID int64) error {
	if err := s.store.DeleteHealthRule(ctx, orgID, ruleID); err != nil {
		if err == storage.ErrNotFound {
			return apperrors.NotFoundErrorf("rule %d not found in org %s", ruleID, orgID)
		}
		return apperrors.DatabaseError(err, "failed to delete health rule")
	}
	s.invalidate(ctx, orgID)

	s.logger.WithFields(logrus.Fields{"org_id": orgID, "rule_id": ruleID}).Info("Health rule deleted")
	return nil
}

// RuleOverlaps reports overlapping rule ranges for an org. Overlaps are
// legal (resolution is deterministic) so this is diagnostic output only.
func (s *Service) RuleOverlaps(ctx context.Context, orgID string) ([]forecast.RuleOverlap, error) {
	rules, err := s.store.ListHealthRules(ctx, orgID)
	if err != nil {
		return nil, apperrors.DatabaseError(err, "failed to list health rules")
	}
	return forecast.DetectOverlaps(rules), nil
}

// CreateQuotaPeriod persists a fiscal window
func (s *Service) CreateQuotaPeriod(ctx context.Context, p *models.QuotaPeriod) error {
	if p.OrgID == "" {
		return apperrors.ValidationError("period org_id is required")
	}
	if !p.PeriodStart.Before(p.PeriodEnd) {
		return apperrors.ValidationErrorf("period_start %s must precede period_end %s",
			p.PeriodStart.Format("2006-01-02"), p.PeriodEnd.Format("2006-01-02"))
	}
	if p.FiscalQuarter < 1 || p.FiscalQuarter > 4 {
		return apperrors.ValidationErrorf("fiscal_quarter %d out of range", p.FiscalQuarter)
	}

	if err := s.store.CreateQuotaPeriod(ctx, p); err != nil {
		return apperrors.DatabaseError(err, "failed to create quota period")
	}

	s.logger.WithFields(logrus.Fields{
		"org_id":    p.OrgID,
		"period_id": p.ID,
		"fiscal":    []int{p.FiscalYear, p.FiscalQuarter},
	}).Info("Quota period created")
	return nil
}

// SetUserManager rewires a user's manager edge. The write is rejected when it
// would close a cycle in the manager chain.
func (s *Service) SetUserManager(ctx context.Context, orgID, userID string, managerUserID *string) error {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if err == storage.ErrNotFound {
			return apperrors.NotFoundErrorf("user %s not found", userID)
		}
		return apperrors.DatabaseError(err, "failed to load user")
	}
	if user.OrgID != orgID {
		return apperrors.ValidationErrorf("user %s does not belong to org %s", userID, orgID)
	}

	if managerUserID != nil {
		manager, err := s.store.GetUser(ctx, *managerUserID)
		if err != nil {
			if err == storage.ErrNotFound {
				return apperrors.NotFoundErrorf("manager %s not found", *managerUserID)
			}
			return apperrors.DatabaseError(err, "failed to load manager")
		}
		if manager.OrgID != orgID {
			return apperrors.ValidationErrorf("manager %s does not belong to org %s", *managerUserID, orgID)
		}

		users, err := s.store.ListUsers(ctx, orgID)
		if err != nil {
			return apperrors.DatabaseError(err, "failed to list users")
		}
		if err := visibility.CheckManagerAssignment(users, userID, *managerUserID); err != nil {
			return apperrors.ValidationErrorf("manager assignment rejected: %v", err)
		}
	}

	if err := s.store.SetUserManager(ctx, userID, managerUserID); err != nil {
		return apperrors.DatabaseError(err, "failed to set manager")
	}

	s.logger.WithFields(logrus.Fields{"org_id": orgID, "user_id": userID}).Info("Manager assignment updated")
	return nil
}

// CreateVisibilityEdge grants a manager explicit visibility of a user
func (s *Service) CreateVisibilityEdge(ctx context.Context, edge *models.VisibilityEdge) error {
	for _, id := range []string{edge.ManagerUserID, edge.VisibleUserID} {
		u, err := s.store.GetUser(ctx, id)
		if err != nil {
			if err == storage.ErrNotFound {
				return apperrors.NotFoundErrorf("user %s not found", id)
			}
			return apperrors.DatabaseError(err, "failed to load user")
		}
		if u.OrgID != edge.OrgID {
			return apperrors.ValidationErrorf("user %s does not belong to org %s", id, edge.OrgID)
		}
	}
	if edge.ManagerUserID == edge.VisibleUserID {
		return apperrors.ValidationError("visibility edge cannot point at its own manager")
	}

	if err := s.store.CreateVisibilityEdge(ctx, edge); err != nil {
		return apperrors.DatabaseError(err, "failed to create visibility edge")
	}

	s.logger.WithFields(logrus.Fields{
		"org_id":  edge.OrgID,
		"manager": edge.ManagerUserID,
		"visible": edge.VisibleUserID,
	}).Info("Visibility edge created")
	return nil
}

// DeleteVisibilityEdge removes an explicit grant
func (s *Service) DeleteVisibilityEdge(ctx context.Context, id int64) error {
	if err := s.store.DeleteVisibilityEdge(ctx, id); err != nil {
		if err == storage.ErrNotFound {
			return apperrors.NotFoundErrorf("visibility edge %d not found", id)
		}
		return apperrors.DatabaseError(err, "failed to delete visibility edge")
	}
	return nil
}

func (s *Service) invalidate(ctx context.Context, orgID string) {
	if s.orgCfg == nil {
		return
	}
	if err := s.orgCfg.Invalidate(ctx, orgID); err != nil {
		s.logger.WithError(err).WithField("org_id", orgID).Warn("Cache invalidation failed")
	}
}
