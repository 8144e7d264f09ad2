package forecast

import (
	"context"
	"strings"
	"time"

	"github.com/pipehealth/pipehealth-go/internal/models"
	"github.com/sirupsen/logrus"
)

// Engine computes weighted outlooks over deals already fetched and scoped
// by the calling layer. It is pure and stateless: no I/O, no shared mutable
// state, safe for concurrent invocations.
type Engine struct {
	logger *logrus.Logger
}

// NewEngine creates an outlook engine
func NewEngine(logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.New()
	}
	return &Engine{logger: logger}
}

// ComputeInput carries everything one computation needs. All durable state
// is read by the caller beforehand; the engine never fetches.
type ComputeInput struct {
	Caller      models.User
	Period      models.QuotaPeriod
	Deals       []models.Deal
	AllowedReps map[string]models.User

	// Org configuration, injected explicitly so the weighting core stays
	// side-effect-free and independently testable.
	Rules         []models.HealthScoreRule
	Probabilities models.StageProbabilities
	Labels        models.ScoreLabelMap

	// RuleTableMissing switches every deal to unmodified CRM-only weighting
	// instead of failing the whole computation.
	RuleTableMissing bool

	Filters Filters
}

// Compute runs one full outlook computation
func (e *Engine) Compute(ctx context.Context, in ComputeInput) (*models.OutlookResult, error) {
	start := time.Now()

	if err := in.Filters.Validate(); err != nil {
		return nil, err
	}

	result := &models.OutlookResult{
		QuotaPeriod: in.Period,
		Groups: models.OutlookGroups{
			Commit:   models.OutlookGroup{Deals: []models.DealOutlook{}},
			BestCase: models.OutlookGroup{Deals: []models.DealOutlook{}},
			Pipeline: models.OutlookGroup{Deals: []models.DealOutlook{}},
		},
	}

	repCtx, repAllowed := e.resolveRepContext(&in)
	if !repAllowed {
		// Requested rep is outside the caller's resolved scope. Fail closed
		// with an empty result; never an error that confirms existence.
		e.logger.WithFields(logrus.Fields{
			"caller": in.Caller.ID,
			"org":    in.Caller.OrgID,
		}).Warn("Rep filter outside visibility scope, returning empty result")
		return result, nil
	}
	result.RepContext = repCtx

	universe := e.buildUniverse(&in, repCtx)

	groups := map[models.StageBucket]*models.OutlookGroup{
		models.BucketCommit:   &result.Groups.Commit,
		models.BucketBestCase: &result.Groups.BestCase,
		models.BucketPipeline: &result.Groups.Pipeline,
	}

	// Per-bucket totals over the full visible universe, before any
	// selection truncates the displayed list.
	byBucket := make(map[models.StageBucket][]models.DealOutlook, 3)
	for _, d := range universe {
		byBucket[d.CRMStage.Bucket] = append(byBucket[d.CRMStage.Bucket], d)
	}

	for bucket, group := range groups {
		deals := byBucket[bucket]
		for i := range deals {
			group.Totals.Add(deals[i].Weighted)
		}

		var shown []models.DealOutlook
		switch in.Filters.Mode {
		case models.ModeRisk:
			shown = SelectRisk(deals, RiskOptions{
				MinDownside:        in.Filters.RiskMinDownside,
				RequireScoreEffect: in.Filters.RiskRequireScoreEffect,
				Take:               in.Filters.RiskTake,
			})
		default:
			shown = SelectDrivers(deals, group.Totals.Gap, DriverOptions{
				MinAbsGap:          in.Filters.DriverMinAbsGap,
				RequireScoreEffect: in.Filters.DriverRequireScoreEffect,
				Take:               in.Filters.DriverTake,
			})
		}
		if shown == nil {
			shown = []models.DealOutlook{}
		}
		group.Deals = shown
		for i := range shown {
			group.ShownTotals.Add(shown[i].Weighted)
		}

		result.Totals.CRMOutlookWeighted += group.Totals.CRMOutlookWeighted
		result.Totals.AIOutlookWeighted += group.Totals.AIOutlookWeighted
		result.Totals.Gap += group.Totals.Gap
		result.ShownTotals.CRMOutlookWeighted += group.ShownTotals.CRMOutlookWeighted
		result.ShownTotals.AIOutlookWeighted += group.ShownTotals.AIOutlookWeighted
		result.ShownTotals.Gap += group.ShownTotals.Gap
	}

	e.logger.WithFields(logrus.Fields{
		"org":      in.Caller.OrgID,
		"deals":    len(universe),
		"mode":     in.Filters.Mode,
		"gap":      result.Totals.Gap,
		"duration": time.Since(start).String(),
	}).Info("Outlook computation completed")

	return result, nil
}

// resolveRepContext applies the rep filter against the caller's allowed
// scope. Returns repAllowed=false when a rep was requested but is not
// visible to the caller.
func (e *Engine) resolveRepContext(in *ComputeInput) (*models.RepContext, bool) {
	if in.Filters.RepUserID != "" {
		u, ok := in.AllowedReps[in.Filters.RepUserID]
		if !ok {
			return nil, false
		}
		return &models.RepContext{UserID: u.ID, Name: u.Name}, true
	}

	if in.Filters.RepName != "" {
		want := strings.ToLower(strings.TrimSpace(in.Filters.RepName))
		for _, u := range in.AllowedReps {
			if strings.ToLower(u.Name) == want {
				return &models.RepContext{UserID: u.ID, Name: u.Name}, true
			}
		}
		return nil, false
	}

	return nil, true
}

// buildUniverse classifies, weights and enriches every visible open deal,
// then applies the universe-narrowing filters. The returned slice is the
// "full visible universe" all bucket totals sum over.
func (e *Engine) buildUniverse(in *ComputeInput, repCtx *models.RepContext) []models.DealOutlook {
	stageFilter, hasStageFilter := in.Filters.StageFilterBucket()

	universe := make([]models.DealOutlook, 0, len(in.Deals))
	for i := range in.Deals {
		deal := &in.Deals[i]

		if _, visible := in.AllowedReps[deal.RepUserID]; !visible {
			continue
		}
		if repCtx != nil && deal.RepUserID != repCtx.UserID {
			continue
		}

		bucket := ClassifyStage(deal.ForecastStage)
		if bucket == models.BucketExcluded {
			continue
		}
		if hasStageFilter && bucket != stageFilter {
			continue
		}

		res := NoRuleResolution()
		if !in.RuleTableMissing {
			res = ResolveRule(in.Rules, bucket, deal.HealthScore)
		}

		health, weighted := Weigh(deal, bucket, in.Probabilities, res)

		if in.Filters.SuppressedOnly && !health.Suppression {
			continue
		}
		if !matchesPctRange(health.HealthPct, in.Filters.HealthPctMin, in.Filters.HealthPctMax) {
			continue
		}
		if in.Filters.RiskCategory != "" && !HasRiskCategory(deal, in.Filters.RiskCategory) {
			continue
		}

		flags, insights := ExtractRiskFlags(deal, in.Labels, health.Suppression)

		universe = append(universe, models.DealOutlook{
			ID:               deal.ID,
			RepUserID:        deal.RepUserID,
			RepName:          deal.RepName,
			AccountName:      deal.AccountName,
			OpportunityName:  deal.OpportunityName,
			CloseDate:        deal.CloseDate,
			Amount:           deal.Amount,
			CRMStage:         models.CRMStage{Raw: deal.ForecastStage, Bucket: bucket, Label: bucketLabel(bucket)},
			AIVerdictStage:   AIVerdictStage(deal.HealthScore),
			Health:           health,
			Weighted:         weighted,
			Categories:       deal.Categories,
			SignalText:       deal.SignalText,
			RiskFlags:        flags,
			CoachingInsights: insights,
		})
	}
	return universe
}

// matchesPctRange checks the health-percentile filter. Deals without a
// health percentage drop out when a bound is set.
func matchesPctRange(pct, min, max *int) bool {
	if min == nil && max == nil {
		return true
	}
	if pct == nil {
		return false
	}
	if min != nil && *pct < *min {
		return false
	}
	if max != nil && *pct > *max {
		return false
	}
	return true
}

func bucketLabel(bucket models.StageBucket) string {
	switch bucket {
	case models.BucketCommit:
		return "Commit"
	case models.BucketBestCase:
		return "Best Case"
	case models.BucketPipeline:
		return "Pipeline"
	default:
		return "Excluded"
	}
}
