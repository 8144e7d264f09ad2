package service

import (
	"context"
	"errors"
	"time"

	"github.com/pipehealth/pipehealth-go/internal/cache"
	apperrors "github.com/pipehealth/pipehealth-go/internal/errors"
	"github.com/pipehealth/pipehealth-go/internal/forecast"
	"github.com/pipehealth/pipehealth-go/internal/models"
	"github.com/pipehealth/pipehealth-go/internal/period"
	"github.com/pipehealth/pipehealth-go/internal/storage"
	"github.com/pipehealth/pipehealth-go/internal/visibility"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// OutlookService stitches storage, caching, visibility and the engine into
// one read path. Everything the engine consumes is fetched here; the engine
// itself never touches I/O.
type OutlookService struct {
	store    storage.Store
	orgCfg   *cache.OrgConfig // nil disables caching, reads go to the store
	resolver *visibility.Resolver
	engine   *forecast.Engine
	logger   *logrus.Logger
}

// NewOutlookService creates the orchestration service. orgCfg may be nil.
func NewOutlookService(store storage.Store, orgCfg *cache.OrgConfig, logger *logrus.Logger) *OutlookService {
	if logger == nil {
		logger = logrus.New()
	}
	return &OutlookService{
		store:    store,
		orgCfg:   orgCfg,
		resolver: visibility.NewResolver(logger),
		engine:   forecast.NewEngine(logger),
		logger:   logger,
	}
}

// Request identifies the caller and narrows one outlook computation
type Request struct {
	CallerUserID string
	PeriodID     *int64 // nil resolves the current period
	Filters      forecast.Filters

	// Now overrides the clock for period resolution; zero means time.Now.
	Now time.Time
}

// orgData is everything one computation reads from durable state
type orgData struct {
	caller  models.User
	org     models.Organization
	orgs    []models.Organization
	users   []models.User
	edges   []models.VisibilityEdge
	periods []models.QuotaPeriod

	rules            []models.HealthScoreRule
	ruleTableMissing bool
	probabilities    models.StageProbabilities
	labels           []models.ScoreLabel
}

// Run computes one weighted outlook for the caller
func (s *OutlookService) Run(ctx context.Context, req Request) (*models.OutlookResult, error) {
	now := req.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	data, err := s.loadOrgData(ctx, req.CallerUserID)
	if err != nil {
		return nil, err
	}

	quotaPeriod, err := period.Resolve(data.periods, req.PeriodID, now)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeValidation, apperrors.SeverityMedium,
			"no quota period covers this request")
	}

	scope := s.resolver.Resolve(visibility.Input{
		Caller: data.caller,
		Org:    data.org,
		Orgs:   data.orgs,
		Users:  data.users,
		Edges:  data.edges,
	})

	deals, err := s.loadDeals(ctx, data, scope, quotaPeriod)
	if err != nil {
		return nil, apperrors.DatabaseError(err, "failed to load deals")
	}

	return s.engine.Compute(ctx, forecast.ComputeInput{
		Caller:           data.caller,
		Period:           quotaPeriod,
		Deals:            deals,
		AllowedReps:      scope,
		Rules:            data.rules,
		Probabilities:    data.probabilities,
		Labels:           models.BuildScoreLabelMap(data.labels),
		RuleTableMissing: data.ruleTableMissing,
		Filters:          req.Filters,
	})
}

// loadOrgData fetches the caller, hierarchy and org configuration. The
// independent reads fan out concurrently.
func (s *OutlookService) loadOrgData(ctx context.Context, callerUserID string) (*orgData, error) {
	caller, err := s.store.GetUser(ctx, callerUserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.NotFoundErrorf("caller %s not found", callerUserID)
		}
		return nil, apperrors.DatabaseError(err, "failed to load caller")
	}
	if !caller.Active {
		return nil, apperrors.AuthorizationError("caller is deactivated")
	}

	org, err := s.store.GetOrganization(ctx, caller.OrgID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.NotFoundErrorf("org %s not found", caller.OrgID)
		}
		return nil, apperrors.DatabaseError(err, "failed to load org")
	}

	data := &orgData{caller: *caller, org: *org}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		data.orgs, data.users, err = s.loadHierarchy(gctx, data.caller, data.org)
		return err
	})
	g.Go(func() error {
		var err error
		data.edges, err = s.store.ListVisibilityEdges(gctx, caller.OrgID)
		if err != nil {
			return apperrors.DatabaseError(err, "failed to load visibility edges")
		}
		return nil
	})
	g.Go(func() error {
		var err error
		data.periods, err = s.store.ListQuotaPeriods(gctx, caller.OrgID)
		if err != nil {
			return apperrors.DatabaseError(err, "failed to load quota periods")
		}
		return nil
	})
	g.Go(func() error {
		rules, err := s.healthRules(gctx, caller.OrgID)
		switch {
		case errors.Is(err, storage.ErrSchemaMissing):
			// Deployment without the rule schema: weighting degrades to
			// CRM-only rather than failing the request.
			s.logger.WithField("org_id", caller.OrgID).Warn("Rule table missing, using CRM-only weighting")
			data.ruleTableMissing = true
			return nil
		case err != nil:
			return apperrors.DatabaseError(err, "failed to load health rules")
		}
		data.rules = rules
		return nil
	})
	g.Go(func() error {
		probs, err := s.stageProbabilities(gctx, caller.OrgID)
		if err != nil {
			return apperrors.DatabaseError(err, "failed to load stage probabilities")
		}
		data.probabilities = probs
		return nil
	})
	g.Go(func() error {
		labels, err := s.scoreLabels(gctx, caller.OrgID)
		if err != nil {
			return apperrors.DatabaseError(err, "failed to load score labels")
		}
		data.labels = labels
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return data, nil
}

// loadHierarchy returns the org universe and user set visibility needs.
// Full-analytics admins span descendant orgs; everyone else stays inside
// their own org.
func (s *OutlookService) loadHierarchy(ctx context.Context, caller models.User, org models.Organization) ([]models.Organization, []models.User, error) {
	if caller.Role != models.RoleAdmin || !org.FullAnalyticsAccess {
		users, err := s.store.ListUsers(ctx, caller.OrgID)
		if err != nil {
			return nil, nil, apperrors.DatabaseError(err, "failed to load users")
		}
		return []models.Organization{org}, users, nil
	}

	orgs, err := s.store.ListOrganizations(ctx)
	if err != nil {
		return nil, nil, apperrors.DatabaseError(err, "failed to load organizations")
	}

	closure := descendantOrgIDs(orgs, org.ID)
	var users []models.User
	for _, o := range orgs {
		if !closure[o.ID] {
			continue
		}
		batch, err := s.store.ListUsers(ctx, o.ID)
		if err != nil {
			return nil, nil, apperrors.DatabaseError(err, "failed to load users")
		}
		users = append(users, batch...)
	}
	return orgs, users, nil
}

// loadDeals fetches every visible deal inside the period window, bounded by
// the store's row cap. An empty scope stays empty: visibility fails closed.
func (s *OutlookService) loadDeals(ctx context.Context, data *orgData, scope map[string]models.User, p models.QuotaPeriod) ([]models.Deal, error) {
	if len(scope) == 0 {
		return nil, nil
	}

	// Group visible reps by org so each store query stays single-org.
	repsByOrg := make(map[string][]string)
	for id, u := range scope {
		repsByOrg[u.OrgID] = append(repsByOrg[u.OrgID], id)
	}

	remaining := storage.DefaultDealLimit
	var deals []models.Deal
	for orgID, reps := range repsByOrg {
		if remaining <= 0 {
			break
		}
		batch, err := s.store.ListDeals(ctx, storage.DealQuery{
			OrgID:       orgID,
			RepUserIDs:  reps,
			WindowStart: p.PeriodStart,
			WindowEnd:   p.PeriodEnd,
			Limit:       remaining,
		})
		if err != nil {
			return nil, err
		}
		deals = append(deals, batch...)
		remaining -= len(batch)
	}
	return deals, nil
}

func (s *OutlookService) healthRules(ctx context.Context, orgID string) ([]models.HealthScoreRule, error) {
	if s.orgCfg != nil {
		return s.orgCfg.HealthRules(ctx, orgID)
	}
	return s.store.ListHealthRules(ctx, orgID)
}

func (s *OutlookService) stageProbabilities(ctx context.Context, orgID string) (models.StageProbabilities, error) {
	if s.orgCfg != nil {
		return s.orgCfg.StageProbabilities(ctx, orgID)
	}
	probs, err := s.store.GetStageProbabilities(ctx, orgID)
	if errors.Is(err, storage.ErrNotFound) {
		return models.DefaultStageProbabilities(orgID), nil
	}
	if err != nil {
		return models.StageProbabilities{}, err
	}
	return *probs, nil
}

func (s *OutlookService) scoreLabels(ctx context.Context, orgID string) ([]models.ScoreLabel, error) {
	if s.orgCfg != nil {
		return s.orgCfg.ScoreLabels(ctx, orgID)
	}
	return s.store.ListScoreLabels(ctx, orgID)
}

func descendantOrgIDs(orgs []models.Organization, rootID string) map[string]bool {
	children := make(map[string][]string)
	for _, o := range orgs {
		if o.ParentOrgID == nil {
			continue
		}
		children[*o.ParentOrgID] = append(children[*o.ParentOrgID], o.ID)
	}

	closure := map[string]bool{rootID: true}
	queue := []string{rootID}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, child := range children[current] {
			if closure[child] {
				continue
			}
			closure[child] = true
			queue = append(queue, child)
		}
	}
	return closure
}
