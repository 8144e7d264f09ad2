package storage

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pipehealth/pipehealth-go/internal/models"
	"gopkg.in/yaml.v3"
)

// Seed is a YAML fixture describing one org's data set. Used to populate a
// MemoryStore for demo mode and local experiments.
type Seed struct {
	Organization struct {
		ID                  string `yaml:"id"`
		Name                string `yaml:"name"`
		ParentOrgID         string `yaml:"parent_org_id"`
		FullAnalyticsAccess bool   `yaml:"full_analytics_access"`
	} `yaml:"organization"`

	Users []struct {
		ID               string `yaml:"id"`
		Name             string `yaml:"name"`
		Email            string `yaml:"email"`
		Role             string `yaml:"role"`
		HierarchyLevel   int    `yaml:"hierarchy_level"`
		ManagerUserID    string `yaml:"manager_user_id"`
		Inactive         bool   `yaml:"inactive"`
		SeeAllVisibility bool   `yaml:"see_all_visibility"`
	} `yaml:"users"`

	Deals []struct {
		ID              string  `yaml:"id"`
		RepUserID       string  `yaml:"rep_user_id"`
		RepName         string  `yaml:"rep_name"`
		AccountName     string  `yaml:"account_name"`
		OpportunityName string  `yaml:"opportunity_name"`
		Amount          float64 `yaml:"amount"`
		CloseDate       string  `yaml:"close_date"`
		ForecastStage   string  `yaml:"forecast_stage"`
		HealthScore     *int    `yaml:"health_score"`
		SignalText      string  `yaml:"signal_text"`
		Categories      []struct {
			Key             string `yaml:"key"`
			Score           *int   `yaml:"score"`
			EvidenceSummary string `yaml:"evidence_summary"`
			CoachingTip     string `yaml:"coaching_tip"`
		} `yaml:"categories"`
	} `yaml:"deals"`

	HealthScoreRules []struct {
		MinScore            int     `yaml:"min_score"`
		MaxScore            int     `yaml:"max_score"`
		MappedCategory      string  `yaml:"mapped_category"`
		Suppression         bool    `yaml:"suppression"`
		ProbabilityModifier float64 `yaml:"probability_modifier"`
	} `yaml:"health_score_rules"`

	QuotaPeriods []struct {
		PeriodStart   string `yaml:"period_start"`
		PeriodEnd     string `yaml:"period_end"`
		FiscalYear    int    `yaml:"fiscal_year"`
		FiscalQuarter int    `yaml:"fiscal_quarter"`
	} `yaml:"quota_periods"`

	StageProbabilities *struct {
		Commit   float64 `yaml:"commit"`
		BestCase float64 `yaml:"best_case"`
		Pipeline float64 `yaml:"pipeline"`
	} `yaml:"stage_probabilities"`

	ScoreLabels []struct {
		CategoryKey string `yaml:"category_key"`
		Score       int    `yaml:"score"`
		Label       string `yaml:"label"`
	} `yaml:"score_labels"`

	VisibilityEdges []struct {
		ManagerUserID string `yaml:"manager_user_id"`
		VisibleUserID string `yaml:"visible_user_id"`
	} `yaml:"visibility_edges"`
}

// LoadSeed parses a YAML seed fixture from disk
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	if seed.Organization.ID == "" {
		return nil, fmt.Errorf("seed file %s: organization.id is required", path)
	}
	return &seed, nil
}

// Apply populates a MemoryStore from the seed. Dates are YYYY-MM-DD, UTC.
func (s *Seed) Apply(store *MemoryStore) error {
	ctx := context.Background()
	orgID := s.Organization.ID

	org := models.Organization{
		ID:                  orgID,
		Name:                s.Organization.Name,
		FullAnalyticsAccess: s.Organization.FullAnalyticsAccess,
	}
	if s.Organization.ParentOrgID != "" {
		parent := s.Organization.ParentOrgID
		org.ParentOrgID = &parent
	}
	store.PutOrganization(org)

	for _, u := range s.Users {
		user := models.User{
			ID:               u.ID,
			OrgID:            orgID,
			Name:             u.Name,
			Email:            u.Email,
			Role:             models.Role(u.Role),
			HierarchyLevel:   u.HierarchyLevel,
			Active:           !u.Inactive,
			SeeAllVisibility: u.SeeAllVisibility,
		}
		if u.ManagerUserID != "" {
			mgr := u.ManagerUserID
			user.ManagerUserID = &mgr
		}
		store.PutUser(user)
	}

	for _, d := range s.Deals {
		closeDate, err := parseSeedDate(d.CloseDate)
		if err != nil {
			return fmt.Errorf("deal %s: %w", d.ID, err)
		}
		deal := models.Deal{
			ID:              d.ID,
			OrgID:           orgID,
			RepUserID:       d.RepUserID,
			RepName:         d.RepName,
			AccountName:     d.AccountName,
			OpportunityName: d.OpportunityName,
			Amount:          d.Amount,
			CloseDate:       closeDate,
			ForecastStage:   d.ForecastStage,
			HealthScore:     d.HealthScore,
			SignalText:      d.SignalText,
		}
		for _, c := range d.Categories {
			deal.Categories = append(deal.Categories, models.CategoryScore{
				Key:             c.Key,
				Score:           c.Score,
				EvidenceSummary: c.EvidenceSummary,
				CoachingTip:     c.CoachingTip,
			})
		}
		store.PutDeal(deal)
	}

	for _, r := range s.HealthScoreRules {
		rule := models.HealthScoreRule{
			OrgID:               orgID,
			MinScore:            r.MinScore,
			MaxScore:            r.MaxScore,
			MappedCategory:      models.StageBucket(r.MappedCategory),
			Suppression:         r.Suppression,
			ProbabilityModifier: r.ProbabilityModifier,
			CreatedAt:           time.Now().UTC(),
		}
		if err := store.CreateHealthRule(ctx, &rule); err != nil {
			return fmt.Errorf("seed rule [%d,%d]: %w", r.MinScore, r.MaxScore, err)
		}
	}

	for _, p := range s.QuotaPeriods {
		start, err := parseSeedDate(p.PeriodStart)
		if err != nil {
			return fmt.Errorf("quota period: %w", err)
		}
		end, err := parseSeedDate(p.PeriodEnd)
		if err != nil {
			return fmt.Errorf("quota period: %w", err)
		}
		period := models.QuotaPeriod{
			OrgID:         orgID,
			PeriodStart:   start,
			PeriodEnd:     end,
			FiscalYear:    p.FiscalYear,
			FiscalQuarter: p.FiscalQuarter,
		}
		if err := store.CreateQuotaPeriod(ctx, &period); err != nil {
			return fmt.Errorf("seed quota period: %w", err)
		}
	}

	if s.StageProbabilities != nil {
		store.PutStageProbabilities(models.StageProbabilities{
			OrgID:    orgID,
			Commit:   s.StageProbabilities.Commit,
			BestCase: s.StageProbabilities.BestCase,
			Pipeline: s.StageProbabilities.Pipeline,
		})
	}

	for _, l := range s.ScoreLabels {
		store.PutScoreLabel(models.ScoreLabel{
			OrgID:       orgID,
			CategoryKey: l.CategoryKey,
			Score:       l.Score,
			Label:       l.Label,
		})
	}

	for _, e := range s.VisibilityEdges {
		edge := models.VisibilityEdge{
			OrgID:         orgID,
			ManagerUserID: e.ManagerUserID,
			VisibleUserID: e.VisibleUserID,
		}
		if err := store.CreateVisibilityEdge(ctx, &edge); err != nil {
			return fmt.Errorf("seed visibility edge: %w", err)
		}
	}

	return nil
}

func parseSeedDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("date is required")
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad date %q (want YYYY-MM-DD): %w", s, err)
	}
	return t, nil
}
