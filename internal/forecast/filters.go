package forecast

import (
	"fmt"

	"github.com/pipehealth/pipehealth-go/internal/models"
)

// Selection defaults and bounds
const (
	DefaultDriverTake = 50
	DefaultRiskTake   = 2000
)

// InvalidFilterError rejects a computation before it starts, naming the
// offending field.
type InvalidFilterError struct {
	Field  string
	Reason string
}

func (e *InvalidFilterError) Error() string {
	return fmt.Sprintf("invalid filter %q: %s", e.Field, e.Reason)
}

// Filters narrow the visible universe and tune per-mode selection
type Filters struct {
	// Universe filters
	RepUserID      string `json:"rep_user_id,omitempty"`
	RepName        string `json:"rep_name,omitempty"`
	Stage          string `json:"stage,omitempty"` // commit | best_case | pipeline, empty = all
	HealthPctMin   *int   `json:"health_pct_min,omitempty"`
	HealthPctMax   *int   `json:"health_pct_max,omitempty"`
	RiskCategory   string `json:"risk_category,omitempty"`
	SuppressedOnly bool   `json:"suppressed_only,omitempty"`

	// Mode and tunables
	Mode                     models.Mode `json:"mode,omitempty"`
	DriverMinAbsGap          float64     `json:"driver_min_abs_gap,omitempty"`
	DriverRequireScoreEffect bool        `json:"driver_require_score_effect,omitempty"`
	DriverTake               int         `json:"driver_take,omitempty"`
	RiskMinDownside          float64     `json:"risk_min_downside,omitempty"`
	RiskRequireScoreEffect   bool        `json:"risk_require_score_effect,omitempty"`
	RiskTake                 int         `json:"risk_take,omitempty"`
}

// stageBuckets are the accepted values for the Stage filter
var stageBuckets = map[string]models.StageBucket{
	"commit":    models.BucketCommit,
	"best_case": models.BucketBestCase,
	"pipeline":  models.BucketPipeline,
}

// Validate normalizes defaults and rejects out-of-range values. Called once
// per computation before anything else runs.
func (f *Filters) Validate() error {
	if f.Mode == "" {
		f.Mode = models.ModeDrivers
	}
	if f.Mode != models.ModeDrivers && f.Mode != models.ModeRisk {
		return &InvalidFilterError{Field: "mode", Reason: fmt.Sprintf("unknown mode %q", f.Mode)}
	}

	if f.Stage != "" {
		if _, ok := stageBuckets[f.Stage]; !ok {
			return &InvalidFilterError{Field: "stage", Reason: fmt.Sprintf("unknown stage %q", f.Stage)}
		}
	}

	if f.HealthPctMin != nil && (*f.HealthPctMin < 0 || *f.HealthPctMin > 100) {
		return &InvalidFilterError{Field: "health_pct_min", Reason: "must be between 0 and 100"}
	}
	if f.HealthPctMax != nil && (*f.HealthPctMax < 0 || *f.HealthPctMax > 100) {
		return &InvalidFilterError{Field: "health_pct_max", Reason: "must be between 0 and 100"}
	}
	if f.HealthPctMin != nil && f.HealthPctMax != nil && *f.HealthPctMin > *f.HealthPctMax {
		return &InvalidFilterError{Field: "health_pct_min", Reason: "lower bound exceeds upper bound"}
	}

	if f.RiskCategory != "" && !validCategoryKey(f.RiskCategory) {
		return &InvalidFilterError{Field: "risk_category", Reason: fmt.Sprintf("unknown category %q", f.RiskCategory)}
	}

	if f.DriverMinAbsGap < 0 {
		return &InvalidFilterError{Field: "driver_min_abs_gap", Reason: "must not be negative"}
	}
	if f.RiskMinDownside < 0 {
		return &InvalidFilterError{Field: "risk_min_downside", Reason: "must not be negative"}
	}

	if f.DriverTake < 0 {
		return &InvalidFilterError{Field: "driver_take", Reason: "must not be negative"}
	}
	if f.DriverTake == 0 {
		f.DriverTake = DefaultDriverTake
	}
	if f.RiskTake < 0 {
		return &InvalidFilterError{Field: "risk_take", Reason: "must not be negative"}
	}
	if f.RiskTake == 0 {
		f.RiskTake = DefaultRiskTake
	}

	return nil
}

// StageFilterBucket returns the bucket the Stage filter names, if any
func (f *Filters) StageFilterBucket() (models.StageBucket, bool) {
	b, ok := stageBuckets[f.Stage]
	return b, ok
}

func validCategoryKey(key string) bool {
	for _, k := range models.CategoryKeys {
		if k == key {
			return true
		}
	}
	return false
}
