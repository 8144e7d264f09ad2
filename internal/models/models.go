package models

import (
	"time"
)

// Role identifies a caller's position in the sales organization
type Role string

const (
	RoleRep         Role = "REP"
	RoleManager     Role = "MANAGER"
	RoleExecManager Role = "EXEC_MANAGER"
	RoleAdmin       Role = "ADMIN"
)

// StageBucket is the CRM forecast bucket a deal classifies into
type StageBucket string

const (
	BucketExcluded StageBucket = "EXCLUDED"
	BucketCommit   StageBucket = "COMMIT"
	BucketBestCase StageBucket = "BEST_CASE"
	BucketPipeline StageBucket = "PIPELINE"
)

// Mode selects which deals the engine surfaces per bucket
type Mode string

const (
	ModeDrivers Mode = "drivers"
	ModeRisk    Mode = "risk"
)

// CategoryCount is the number of MEDDPICC+TB qualification categories
const CategoryCount = 10

// CategoryKeys lists the MEDDPICC+TB categories in canonical display order
var CategoryKeys = [CategoryCount]string{
	"metrics",
	"economic_buyer",
	"decision_criteria",
	"decision_process",
	"paper_process",
	"pain",
	"champion",
	"competition",
	"timing",
	"budget",
}

// Organization represents a tenant. Organizations form a tree via ParentOrgID.
type Organization struct {
	ID                  string    `json:"id" db:"id"`
	Name                string    `json:"name" db:"name"`
	ParentOrgID         *string   `json:"parent_org_id" db:"parent_org_id"`
	FullAnalyticsAccess bool      `json:"full_analytics_access" db:"full_analytics_access"`
	CreatedAt           time.Time `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time `json:"updated_at" db:"updated_at"`
}

// User represents a sales user within an organization
type User struct {
	ID               string  `json:"id" db:"id"`
	OrgID            string  `json:"org_id" db:"org_id"`
	Name             string  `json:"name" db:"name"`
	Email            string  `json:"email" db:"email"`
	Role             Role    `json:"role" db:"role"`
	HierarchyLevel   int     `json:"hierarchy_level" db:"hierarchy_level"`
	ManagerUserID    *string `json:"manager_user_id" db:"manager_user_id"`
	Active           bool    `json:"active" db:"active"`
	SeeAllVisibility bool    `json:"see_all_visibility" db:"see_all_visibility"`
}

// VisibilityEdge grants a manager explicit visibility of another user.
// Irrelevant for managers whose SeeAllVisibility flag is set.
type VisibilityEdge struct {
	ID            int64  `json:"id" db:"id"`
	OrgID         string `json:"org_id" db:"org_id"`
	ManagerUserID string `json:"manager_user_id" db:"manager_user_id"`
	VisibleUserID string `json:"visible_user_id" db:"visible_user_id"`
}

// CategoryScore is a single MEDDPICC+TB category assessment on a deal.
// Score is 0-3, nil when the category was never scored.
type CategoryScore struct {
	Key             string `json:"key" db:"key"`
	Score           *int   `json:"score" db:"score"`
	EvidenceSummary string `json:"evidence_summary,omitempty" db:"evidence_summary"`
	CoachingTip     string `json:"coaching_tip,omitempty" db:"coaching_tip"`
}

// Deal is an open opportunity as written by upstream ingestion/scoring.
// Read-only to the outlook engine.
type Deal struct {
	ID              string          `json:"id" db:"id"`
	OrgID           string          `json:"org_id" db:"org_id"`
	RepUserID       string          `json:"rep_user_id" db:"rep_user_id"`
	RepName         string          `json:"rep_name" db:"rep_name"`
	AccountName     string          `json:"account_name" db:"account_name"`
	OpportunityName string          `json:"opportunity_name" db:"opportunity_name"`
	Amount          float64         `json:"amount" db:"amount"`
	CloseDate       time.Time       `json:"close_date" db:"close_date"`
	ForecastStage   string          `json:"forecast_stage" db:"forecast_stage"`
	HealthScore     *int            `json:"health_score" db:"health_score"`
	SignalText      string          `json:"signal_text" db:"signal_text"`
	Categories      []CategoryScore `json:"categories"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// HealthScoreRule maps a health-score range to a suppression flag and a
// probability modifier for one forecast bucket. Ranges are inclusive and may
// overlap; resolution is deterministic by sort order at read time.
type HealthScoreRule struct {
	ID                  int64       `json:"id" db:"id"`
	OrgID               string      `json:"org_id" db:"org_id"`
	MinScore            int         `json:"min_score" db:"min_score"`
	MaxScore            int         `json:"max_score" db:"max_score"`
	MappedCategory      StageBucket `json:"mapped_category" db:"mapped_category"`
	Suppression         bool        `json:"suppression" db:"suppression"`
	ProbabilityModifier float64     `json:"probability_modifier" db:"probability_modifier"`
	CreatedAt           time.Time   `json:"created_at" db:"created_at"`
}

// QuotaPeriod is a fiscal window deals are scoped against
type QuotaPeriod struct {
	ID            int64     `json:"id" db:"id"`
	OrgID         string    `json:"org_id" db:"org_id"`
	PeriodStart   time.Time `json:"period_start" db:"period_start"`
	PeriodEnd     time.Time `json:"period_end" db:"period_end"`
	FiscalYear    int       `json:"fiscal_year" db:"fiscal_year"`
	FiscalQuarter int       `json:"fiscal_quarter" db:"fiscal_quarter"`
}

// StageProbabilities holds per-org weights for the three forecast buckets
type StageProbabilities struct {
	OrgID    string  `json:"org_id" db:"org_id"`
	Commit   float64 `json:"commit" db:"commit"`
	BestCase float64 `json:"best_case" db:"best_case"`
	Pipeline float64 `json:"pipeline" db:"pipeline"`
}

// DefaultStageProbabilities returns the platform defaults used when an org
// has no override row
func DefaultStageProbabilities(orgID string) StageProbabilities {
	return StageProbabilities{
		OrgID:    orgID,
		Commit:   0.8,
		BestCase: 0.325,
		Pipeline: 0.1,
	}
}

// ForBucket returns the configured probability for a bucket
func (p StageProbabilities) ForBucket(bucket StageBucket) float64 {
	switch bucket {
	case BucketCommit:
		return p.Commit
	case BucketBestCase:
		return p.BestCase
	default:
		return p.Pipeline
	}
}

// ScoreLabel maps (category, integer score) to a display label.
// Presentation only, never classification logic.
type ScoreLabel struct {
	OrgID       string `json:"org_id" db:"org_id"`
	CategoryKey string `json:"category_key" db:"category_key"`
	Score       int    `json:"score" db:"score"`
	Label       string `json:"label" db:"label"`
}

// ScoreLabelMap indexes score labels by category key and score
type ScoreLabelMap map[string]map[int]string

// BuildScoreLabelMap indexes a flat label list for lookup
func BuildScoreLabelMap(labels []ScoreLabel) ScoreLabelMap {
	m := make(ScoreLabelMap)
	for _, l := range labels {
		if m[l.CategoryKey] == nil {
			m[l.CategoryKey] = make(map[int]string)
		}
		m[l.CategoryKey][l.Score] = l.Label
	}
	return m
}

// Lookup returns the configured label for (category, score), or "" when none
// is configured
func (m ScoreLabelMap) Lookup(categoryKey string, score int) string {
	if byScore, ok := m[categoryKey]; ok {
		return byScore[score]
	}
	return ""
}
