package models

import (
	"time"
)

// CRMStage describes how a deal's free-text forecast stage classified
type CRMStage struct {
	Raw    string      `json:"raw"`
	Bucket StageBucket `json:"bucket"`
	Label  string      `json:"label"`
}

// HealthDetail carries the resolved health-rule outcome for a deal.
// HealthModifier is the effective multiplier: 0.0 under suppression,
// otherwise the rule's probability modifier, 1.0 when no rule matched.
type HealthDetail struct {
	HealthScore         *int    `json:"health_score"`
	HealthPct           *int    `json:"health_pct"`
	Suppression         bool    `json:"suppression"`
	ProbabilityModifier float64 `json:"probability_modifier"`
	HealthModifier      float64 `json:"health_modifier"`
}

// WeightedDetail carries the weighted revenue figures for a deal
type WeightedDetail struct {
	StageProbability float64 `json:"stage_probability"`
	CRMWeighted      float64 `json:"crm_weighted"`
	AIWeighted       float64 `json:"ai_weighted"`
	Gap              float64 `json:"gap"`
}

// RiskFlag marks a weak or missing qualification signal on a deal
type RiskFlag struct {
	CategoryKey string `json:"category_key"`
	Label       string `json:"label"`
	CoachingTip string `json:"coaching_tip,omitempty"`
	Synthetic   bool   `json:"synthetic,omitempty"`
}

// DealOutlook is one deal enriched with classification, weighting and flags
type DealOutlook struct {
	ID               string          `json:"id"`
	RepUserID        string          `json:"rep_user_id"`
	RepName          string          `json:"rep_name"`
	AccountName      string          `json:"account_name"`
	OpportunityName  string          `json:"opportunity_name"`
	CloseDate        time.Time       `json:"close_date"`
	Amount           float64         `json:"amount"`
	CRMStage         CRMStage        `json:"crm_stage"`
	AIVerdictStage   StageBucket     `json:"ai_verdict_stage"`
	Health           HealthDetail    `json:"health"`
	Weighted         WeightedDetail  `json:"weighted"`
	Categories       []CategoryScore `json:"categories"`
	SignalText       string          `json:"signal_text,omitempty"`
	RiskFlags        []RiskFlag      `json:"risk_flags"`
	CoachingInsights []string        `json:"coaching_insights"`
}

// OutlookTotals are weighted sums over a set of deals
type OutlookTotals struct {
	CRMOutlookWeighted float64 `json:"crm_outlook_weighted"`
	AIOutlookWeighted  float64 `json:"ai_outlook_weighted"`
	Gap                float64 `json:"gap"`
}

// Add accumulates one deal's weighted figures
func (t *OutlookTotals) Add(w WeightedDetail) {
	t.CRMOutlookWeighted += w.CRMWeighted
	t.AIOutlookWeighted += w.AIWeighted
	t.Gap += w.Gap
}

// OutlookGroup is one bucket's deal list with full-universe and shown totals
type OutlookGroup struct {
	Deals       []DealOutlook `json:"deals"`
	Totals      OutlookTotals `json:"totals"`
	ShownTotals OutlookTotals `json:"shown_totals"`
}

// RepContext identifies the single rep a computation was filtered down to
type RepContext struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

// OutlookResult is the full engine output for one computation
type OutlookResult struct {
	QuotaPeriod QuotaPeriod   `json:"quota_period"`
	Totals      OutlookTotals `json:"totals"`
	ShownTotals OutlookTotals `json:"shown_totals"`
	RepContext  *RepContext   `json:"rep_context"`
	Groups      OutlookGroups `json:"groups"`
}

// OutlookGroups holds the three per-bucket groups
type OutlookGroups struct {
	Commit   OutlookGroup `json:"commit"`
	BestCase OutlookGroup `json:"best_case"`
	Pipeline OutlookGroup `json:"pipeline"`
}
