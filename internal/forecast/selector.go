package forecast

import (
	"math"
	"sort"

	"github.com/pipehealth/pipehealth-go/internal/models"
)

// driverGapCoverage is the share of a bucket's total directional gap the
// driver selection must explain before it stops.
const driverGapCoverage = 0.90

// scoreEffectEpsilon is the minimum |modifier - 1| for a rule to count as
// having actually changed the outcome.
const scoreEffectEpsilon = 0.01

// riskScoreEffectCutoff: a modifier at or above this is treated as a
// probability-table artifact rather than a real penalty.
const riskScoreEffectCutoff = 0.999

// DriverOptions tune drivers-mode selection for one bucket
type DriverOptions struct {
	MinAbsGap          float64
	RequireScoreEffect bool
	Take               int
}

// RiskOptions tune risk-mode selection for one bucket
type RiskOptions struct {
	MinDownside        float64
	RequireScoreEffect bool
	Take               int
}

// SelectDrivers picks the minimal explainable subset of deals accounting
// for a bucket's gap.
//
// Direction follows the bucket's total gap: non-positive totals select the
// most negative individual gaps first, positive totals the most positive.
// Candidates may be required to show a real score effect and a minimum
// absolute gap. Deals whose gap sign matches the direction are preferred;
// when none match, selection falls back to the full filtered, sorted list.
// Accumulation stops once cumulative |gap| covers 90% of the bucket's total
// directional gap magnitude, the per-bucket cap is hit, or candidates run
// out - but always returns at least one deal when any candidate exists.
func SelectDrivers(deals []models.DealOutlook, totalGap float64, opts DriverOptions) []models.DealOutlook {
	if len(deals) == 0 || opts.Take <= 0 {
		return nil
	}

	dir := 1.0
	if totalGap <= 0 {
		dir = -1.0
	}

	candidates := make([]models.DealOutlook, 0, len(deals))
	for _, d := range deals {
		if opts.RequireScoreEffect && math.Abs(d.Health.HealthModifier-1) < scoreEffectEpsilon {
			continue
		}
		if math.Abs(d.Weighted.Gap) < opts.MinAbsGap {
			continue
		}
		candidates = append(candidates, d)
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if dir < 0 {
			return candidates[i].Weighted.Gap < candidates[j].Weighted.Gap
		}
		return candidates[i].Weighted.Gap > candidates[j].Weighted.Gap
	})

	matching := make([]models.DealOutlook, 0, len(candidates))
	for _, d := range candidates {
		if d.Weighted.Gap*dir > 0 {
			matching = append(matching, d)
		}
	}
	pool := matching
	if len(pool) == 0 {
		pool = candidates
	}

	target := driverGapCoverage * math.Abs(totalGap)
	var covered float64
	var selected []models.DealOutlook
	for _, d := range pool {
		selected = append(selected, d)
		covered += math.Abs(d.Weighted.Gap)
		if covered >= target || len(selected) >= opts.Take {
			break
		}
	}
	return selected
}

// SelectRisk picks downside deals for one bucket.
//
// A deal qualifies when its gap is negative, its downside (crm - ai) meets
// the minimum, and - when required - the rule engine actually penalized it
// rather than the probability table. Most negative gaps sort first.
func SelectRisk(deals []models.DealOutlook, opts RiskOptions) []models.DealOutlook {
	if opts.Take <= 0 {
		return nil
	}

	var selected []models.DealOutlook
	for _, d := range deals {
		if d.Weighted.Gap >= 0 {
			continue
		}
		downside := d.Weighted.CRMWeighted - d.Weighted.AIWeighted
		if downside < opts.MinDownside {
			continue
		}
		if opts.RequireScoreEffect && d.Health.HealthModifier >= riskScoreEffectCutoff {
			continue
		}
		selected = append(selected, d)
	}

	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].Weighted.Gap < selected[j].Weighted.Gap
	})

	if len(selected) > opts.Take {
		selected = selected[:opts.Take]
	}
	return selected
}
